package collcomm

import "github.com/unixpickle/essentials"

// Reduce combines every rank's vector with fn along a
// binary tree rooted at rank 0.
//
// The reduced vector is returned on rank 0; other ranks
// get nil. Every rank must call Reduce with vectors of
// the same length.
// A rank always combines its own vector first, followed
// by its children's in rank order, so the result does not
// depend on message timing.
func (c *Comms) Reduce(vec []float64, fn ReduceFn) ([]float64, error) {
	parent, children := positionInTree(c.rank, c.Size())

	messages := [][]float64{vec}
	reqs := make([]*Request, len(children))
	for i, child := range children {
		buf := make([]float64, len(vec))
		messages = append(messages, buf)
		req, err := c.Irecv(child, TagReduce, buf)
		if err != nil {
			return nil, err
		}
		reqs[i] = req
	}
	if err := c.WaitAll(reqs...); err != nil {
		return nil, essentials.AddCtx("reduce", err)
	}

	reduced := fn(c.Handle, messages...)
	if parent >= 0 {
		if err := c.Send(parent, TagReduce, reduced); err != nil {
			return nil, essentials.AddCtx("reduce", err)
		}
		return nil, nil
	}
	return reduced, nil
}

// Bcast copies rank 0's vec into vec on every other rank.
//
// The call returns once this rank's children in the tree
// have received the data.
func (c *Comms) Bcast(vec []float64) error {
	parent, children := positionInTree(c.rank, c.Size())
	if parent >= 0 {
		if err := c.Recv(parent, TagBcast, vec); err != nil {
			return essentials.AddCtx("bcast", err)
		}
	}
	reqs := make([]*Request, len(children))
	for i, child := range children {
		req, err := c.Isend(child, TagBcast, vec)
		if err != nil {
			return err
		}
		reqs[i] = req
	}
	return essentials.AddCtx("bcast", c.WaitAll(reqs...))
}

// positionInTree returns the parent and children of a
// rank in the reduction tree.
//
// The parent is -1 for the root (rank 0).
// There may be no children.
func positionInTree(rank, size int) (parent int, children []int) {
	parent = -1
	for depth := uint(0); true; depth++ {
		rowSize := 1 << depth
		rowStart := rowSize - 1
		if rank >= rowStart+rowSize {
			continue
		}
		rowIdx := rank - rowStart
		if depth > 0 {
			parent = rowIdx/2 + (rowSize/2 - 1)
		}
		firstChild := rowIdx*2 + (rowSize*2 - 1)
		for i := 0; i < 2; i++ {
			if firstChild+i < size {
				children = append(children, firstChild+i)
			}
		}
		return
	}
	panic("unreachable")
}
