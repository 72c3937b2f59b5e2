package jacobi

import (
	"fmt"

	"github.com/unixpickle/dist-jacobi/collcomm"
)

// A Phase is one direction of the halo exchange.
//
// Each phase has its own message tag, so a worker talking
// to both neighbours never confuses the two flows:
//
//	UpperHalo  collcomm.UserTag+0  rank r -> r+1, bottom owned row into the upper halo
//	LowerHalo  collcomm.UserTag+1  rank r -> r-1, top owned row into the lower halo
type Phase int

const (
	UpperHalo Phase = iota
	LowerHalo
)

var phases = []Phase{UpperHalo, LowerHalo}

// Tag returns the message tag of the phase.
func (p Phase) Tag() collcomm.Tag {
	return collcomm.UserTag + collcomm.Tag(p)
}

func (p Phase) String() string {
	switch p {
	case UpperHalo:
		return "upper-halo"
	case LowerHalo:
		return "lower-halo"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// An Exchanger refreshes a worker's halo rows and relaxes
// all of its update rows for one iteration.
//
// Sweep returns the worker's sum of squared changes.
// Every worker of a run must use the same Exchanger.
type Exchanger interface {
	Sweep(w *Worker) (float64, error)
}

// NewExchanger creates an Exchanger by strategy name.
func NewExchanger(name string) (Exchanger, error) {
	switch name {
	case StrategyBlocking:
		return Blocking{}, nil
	case StrategyOverlapped:
		return Overlapped{}, nil
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", ErrConfig, name)
}

// A route says what a worker sends and receives during a
// phase.
// A peer of -1 means there is no such neighbour and the
// operation is skipped.
type route struct {
	dst     int
	sendRow int

	src     int
	recvRow int
}

func (w *Worker) route(p Phase) route {
	l := w.Layout
	r := route{dst: -1, src: -1}
	switch p {
	case UpperHalo:
		if l.HasLower {
			r.dst, r.sendRow = l.Rank+1, l.LastOwned()
		}
		if l.HasUpper {
			r.src, r.recvRow = l.Rank-1, l.UpperHalo()
		}
	case LowerHalo:
		if l.HasUpper {
			r.dst, r.sendRow = l.Rank-1, l.FirstOwned()
		}
		if l.HasLower {
			r.src, r.recvRow = l.Rank+1, l.LowerHalo()
		}
	default:
		panic("unknown phase")
	}
	return r
}

// Blocking exchanges halos with blocking sends and
// receives, then relaxes every row.
//
// In each phase even ranks send before receiving and odd
// ranks receive before sending. A blocking send only
// completes once the receiver is waiting for it, so if
// every rank sent first the chain of sends would never
// complete.
type Blocking struct{}

// Sweep runs one iteration.
func (Blocking) Sweep(w *Worker) (float64, error) {
	for _, p := range phases {
		if err := w.exchangeOrdered(p); err != nil {
			return 0, fmt.Errorf("%s exchange: %w", p, err)
		}
	}
	w.relax(w.Layout.UpdateRows())
	return w.finishSweep(), nil
}

func (w *Worker) exchangeOrdered(p Phase) error {
	r := w.route(p)
	send := func() error {
		if r.dst < 0 {
			return nil
		}
		return w.Comms.Send(r.dst, p.Tag(), w.row(r.sendRow))
	}
	recv := func() error {
		if r.src < 0 {
			return nil
		}
		return w.Comms.Recv(r.src, p.Tag(), w.row(r.recvRow))
	}
	if w.Layout.Rank%2 == 0 {
		if err := send(); err != nil {
			return err
		}
		return recv()
	}
	if err := recv(); err != nil {
		return err
	}
	return send()
}

// Overlapped posts all halo sends and receives without
// blocking, relaxes the rows that do not touch a halo
// while the rows are in flight, and only waits for a halo
// right before relaxing the row next to it.
//
// All sends are waited on before Sweep returns, so no
// request outlives its iteration.
type Overlapped struct{}

// Sweep runs one iteration.
func (Overlapped) Sweep(w *Worker) (float64, error) {
	var sends, recvs [2]*collcomm.Request
	for _, p := range phases {
		r := w.route(p)
		var err error
		if r.dst >= 0 {
			if sends[p], err = w.Comms.Isend(r.dst, p.Tag(), w.row(r.sendRow)); err != nil {
				return 0, fmt.Errorf("%s send: %w", p, err)
			}
		}
		if r.src >= 0 {
			if recvs[p], err = w.Comms.Irecv(r.src, p.Tag(), w.row(r.recvRow)); err != nil {
				return 0, fmt.Errorf("%s receive: %w", p, err)
			}
		}
	}

	l := w.Layout
	first, last := l.UpdateRows()
	upperRow, lowerRow := -1, -1
	if first <= last && l.HasUpper && first-1 == l.UpperHalo() {
		upperRow = first
	}
	if first <= last && l.HasLower && last+1 == l.LowerHalo() {
		lowerRow = last
	}

	interiorFirst, interiorLast := first, last
	if upperRow >= 0 {
		interiorFirst++
	}
	if lowerRow >= 0 {
		interiorLast--
	}
	w.relax(interiorFirst, interiorLast)

	if err := w.Comms.WaitAll(recvs[UpperHalo]); err != nil {
		return 0, fmt.Errorf("%s receive: %w", UpperHalo, err)
	}
	if upperRow >= 0 && upperRow != lowerRow {
		w.relax(upperRow, upperRow)
	}

	if err := w.Comms.WaitAll(recvs[LowerHalo]); err != nil {
		return 0, fmt.Errorf("%s receive: %w", LowerHalo, err)
	}
	if lowerRow >= 0 {
		w.relax(lowerRow, lowerRow)
	}

	if err := w.Comms.WaitAll(sends[:]...); err != nil {
		return 0, fmt.Errorf("halo send: %w", err)
	}
	return w.finishSweep(), nil
}
