package collcomm

import (
	"fmt"

	"github.com/unixpickle/essentials"
)

// Scatter distributes chunks[i] from rank 0 into buf on
// rank i.
//
// Only rank 0 reads chunks, which must hold one chunk per
// rank; other ranks may pass nil.
func (c *Comms) Scatter(chunks [][]float64, buf []float64) error {
	if c.rank != 0 {
		return essentials.AddCtx("scatter", c.Recv(0, TagScatter, buf))
	}
	if len(chunks) != c.Size() {
		return fmt.Errorf("scatter: got %d chunks for %d ranks", len(chunks), c.Size())
	}
	if len(chunks[0]) != len(buf) {
		return &SizeError{Peer: 0, Tag: TagScatter, Want: len(buf), Got: len(chunks[0])}
	}
	reqs := make([]*Request, 0, len(chunks)-1)
	for dst, chunk := range chunks[1:] {
		req, err := c.Isend(dst+1, TagScatter, chunk)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}
	copy(buf, chunks[0])
	return essentials.AddCtx("scatter", c.WaitAll(reqs...))
}

// Gather collects buf from every rank on rank 0.
//
// Rank 0 gets one slice per rank, in rank order; other
// ranks get nil.
// All ranks must pass buffers of the same length.
func (c *Comms) Gather(buf []float64) ([][]float64, error) {
	if c.rank != 0 {
		return nil, essentials.AddCtx("gather", c.Send(0, TagGather, buf))
	}
	res := make([][]float64, c.Size())
	res[0] = append([]float64{}, buf...)
	reqs := make([]*Request, 0, c.Size()-1)
	for src := 1; src < c.Size(); src++ {
		res[src] = make([]float64, len(buf))
		req, err := c.Irecv(src, TagGather, res[src])
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if err := c.WaitAll(reqs...); err != nil {
		return nil, essentials.AddCtx("gather", err)
	}
	return res, nil
}
