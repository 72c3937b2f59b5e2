package collcomm

// A Request tracks a non-blocking send or receive.
type Request struct {
	send bool
	peer int
	tag  Tag
	seq  int
	buf  []float64
	done bool
}

// Done reports whether Wait has completed the request.
func (r *Request) Done() bool {
	return r.done
}

// Isend posts a message and returns immediately.
//
// The data is copied before Isend returns, so buf may be
// reused right away.
// The request completes once the receiver has matched the
// message.
func (c *Comms) Isend(dst int, tag Tag, buf []float64) (*Request, error) {
	if err := c.checkPeer(dst); err != nil {
		return nil, err
	}
	seq := c.nextSeq(c.sendSeq, dst, tag)
	c.post(dst, &envelope{
		source:  c.rank,
		tag:     tag,
		seq:     seq,
		payload: append([]float64{}, buf...),
	})
	return &Request{send: true, peer: dst, tag: tag, seq: seq}, nil
}

// Irecv registers a receive into buf and returns
// immediately.
//
// buf is only written during Wait, and must not be read
// before the request completes.
func (c *Comms) Irecv(src int, tag Tag, buf []float64) (*Request, error) {
	if err := c.checkPeer(src); err != nil {
		return nil, err
	}
	seq := c.nextSeq(c.recvSeq, src, tag)
	return &Request{peer: src, tag: tag, seq: seq, buf: buf}, nil
}

// Wait blocks until a request completes.
//
// Calling Wait on a completed request does nothing.
func (c *Comms) Wait(r *Request) error {
	if r.done {
		return nil
	}
	if r.send {
		c.await(func(e *envelope) bool {
			return e.ack && e.source == r.peer && e.tag == r.tag && e.seq == r.seq
		})
		r.done = true
		return nil
	}

	env := c.await(func(e *envelope) bool {
		return !e.ack && e.source == r.peer && e.tag == r.tag && e.seq == r.seq
	})
	if len(env.payload) != len(r.buf) {
		return &SizeError{
			Rank: c.rank,
			Peer: r.peer,
			Tag:  r.tag,
			Want: len(r.buf),
			Got:  len(env.payload),
		}
	}
	copy(r.buf, env.payload)
	c.post(r.peer, &envelope{source: c.rank, tag: r.tag, seq: r.seq, ack: true})
	r.done = true
	return nil
}

// WaitAll waits for every non-nil request in order.
func (c *Comms) WaitAll(reqs ...*Request) error {
	for _, r := range reqs {
		if r == nil {
			continue
		}
		if err := c.Wait(r); err != nil {
			return err
		}
	}
	return nil
}

// Send transmits buf to dst and blocks until dst has
// posted a matching receive and consumed the message.
//
// Two ranks that both Send to each other before either
// receives will deadlock.
func (c *Comms) Send(dst int, tag Tag, buf []float64) error {
	req, err := c.Isend(dst, tag, buf)
	if err != nil {
		return err
	}
	return c.Wait(req)
}

// Recv blocks until the next message from src with the
// given tag arrives and copies it into buf.
func (c *Comms) Recv(src int, tag Tag, buf []float64) error {
	req, err := c.Irecv(src, tag, buf)
	if err != nil {
		return err
	}
	return c.Wait(req)
}
