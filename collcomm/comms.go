// Package collcomm implements message passing between a
// fixed set of ranked workers on a simulated network.
//
// Messages are matched by source rank, tag and sequence
// number: the n-th message sent from rank A to rank B with
// tag T is delivered to the n-th receive posted by B for
// (A, T), no matter how the network reorders messages.
package collcomm

import (
	"fmt"

	"github.com/unixpickle/dist-jacobi/simulator"
	"github.com/unixpickle/essentials"
)

// A Tag distinguishes unrelated message flows between the
// same pair of ranks.
type Tag int

// Tags used internally by the collective operations.
const (
	TagReduce Tag = iota
	TagBcast
	TagScatter
	TagGather

	// UserTag is the first tag available to callers.
	UserTag
)

func (t Tag) String() string {
	switch t {
	case TagReduce:
		return "reduce"
	case TagBcast:
		return "bcast"
	case TagScatter:
		return "scatter"
	case TagGather:
		return "gather"
	}
	return fmt.Sprintf("user+%d", int(t-UserTag))
}

// envelopeHeader is the wire size of an envelope without
// its payload.
const envelopeHeader = 24

type envelope struct {
	source  int
	tag     Tag
	seq     int
	ack     bool
	payload []float64
}

func (e *envelope) size() float64 {
	return float64(len(e.payload)*8 + envelopeHeader)
}

type pairKey struct {
	peer int
	tag  Tag
}

// Comms is one worker's view of a set of connected
// workers.
//
// A Comms object belongs to a single Goroutine.
type Comms struct {
	// Handle is the worker's handle on the event loop.
	Handle *simulator.Handle

	// Port is the worker's own port.
	Port *simulator.Port

	// Ports contains ports to all the workers, indexed by
	// rank, including the current worker.
	Ports []*simulator.Port

	// Network is the network connecting the workers.
	Network simulator.Network

	rank    int
	mailbox []*envelope
	sendSeq map[pairKey]int
	recvSeq map[pairKey]int
}

// SpawnComms creates Comms objects for every node in a
// network and calls f for each node in its own Goroutine.
// The i-th node gets rank i.
func SpawnComms(loop *simulator.EventLoop, network simulator.Network, nodes []*simulator.Node,
	f func(c *Comms)) {
	ports := make([]*simulator.Port, len(nodes))
	for i, node := range nodes {
		ports[i] = node.Port(loop)
	}
	for i := range nodes {
		rank := i
		loop.GoNamed(fmt.Sprintf("rank-%d", rank), func(h *simulator.Handle) {
			f(&Comms{
				Handle:  h,
				Port:    ports[rank],
				Ports:   ports,
				Network: network,
				rank:    rank,
				sendSeq: map[pairKey]int{},
				recvSeq: map[pairKey]int{},
			})
		})
	}
}

// Rank gets the current worker's rank.
func (c *Comms) Rank() int {
	return c.rank
}

// Size gets the number of workers.
func (c *Comms) Size() int {
	return len(c.Ports)
}

// Pending returns the number of messages that arrived
// but were never matched by a receive.
func (c *Comms) Pending() int {
	return len(c.mailbox)
}

func (c *Comms) checkPeer(peer int) error {
	if peer < 0 || peer >= len(c.Ports) {
		return fmt.Errorf("%w: rank %d of %d", ErrNoPeer, peer, len(c.Ports))
	}
	return nil
}

func (c *Comms) nextSeq(counters map[pairKey]int, peer int, tag Tag) int {
	key := pairKey{peer: peer, tag: tag}
	seq := counters[key]
	counters[key] = seq + 1
	return seq
}

func (c *Comms) post(dst int, env *envelope) {
	c.Network.Send(c.Handle, &simulator.Message{
		Source:  c.Port,
		Dest:    c.Ports[dst],
		Message: env,
		Size:    env.size(),
	})
}

// await blocks until an envelope matching f is available.
// Envelopes that do not match are kept for later.
func (c *Comms) await(f func(e *envelope) bool) *envelope {
	for i, env := range c.mailbox {
		if f(env) {
			essentials.OrderedDelete(&c.mailbox, i)
			return env
		}
	}
	for {
		env := c.Port.Recv(c.Handle).Message.(*envelope)
		if f(env) {
			return env
		}
		c.mailbox = append(c.mailbox, env)
	}
}
