package collcomm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPeer is returned when addressing a rank that
	// does not exist.
	ErrNoPeer = errors.New("no such peer")

	// ErrUnmatched indicates that messages arrived which
	// no receive ever claimed.
	ErrUnmatched = errors.New("unmatched messages")
)

// A SizeError is returned when a message does not fit
// the receive buffer it was matched with.
type SizeError struct {
	Rank int
	Peer int
	Tag  Tag
	Want int
	Got  int
}

func (s *SizeError) Error() string {
	return fmt.Sprintf("rank %d: message from rank %d (tag %s) has %d values, expected %d",
		s.Rank, s.Peer, s.Tag, s.Got, s.Want)
}

// CheckDrained returns an error if messages were left
// unmatched in the mailbox.
func (c *Comms) CheckDrained() error {
	if n := c.Pending(); n > 0 {
		return fmt.Errorf("%w: rank %d holds %d", ErrUnmatched, c.rank, n)
	}
	return nil
}
