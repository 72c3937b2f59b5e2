package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/unixpickle/essentials"
)

// An EventStream is a uni-directional channel of events
// that are passed through an EventLoop.
//
// It is only safe to use an EventStream on one EventLoop
// at once.
type EventStream struct {
	loop    *EventLoop
	pending []interface{}
}

// An Event is a message received on some EventStream.
type Event struct {
	Message interface{}
	Stream  *EventStream
}

// A Timer controls the delayed delivery of an event.
type Timer struct {
	time  float64
	event *Event
}

// Time gets the virtual time when the timer fires.
func (t *Timer) Time() float64 {
	return t.time
}

// A DeadlockError is returned by EventLoop.Run when every
// running Goroutine is polling and no timer can wake any
// of them up.
type DeadlockError struct {
	// Blocked lists the names of the stuck Goroutines.
	Blocked []string

	// Time is the virtual time of the deadlock.
	Time float64
}

func (d *DeadlockError) Error() string {
	return fmt.Sprintf("deadlock at t=%f: all handles are polling (%s)",
		d.Time, strings.Join(d.Blocked, ", "))
}

// abortSignal unwinds a Goroutine whose loop has been
// aborted. It never escapes EventLoop.Go.
type abortSignal struct{}

// A Handle is a Goroutine's mechanism for accessing an
// EventLoop. Goroutines should not share Handles.
type Handle struct {
	*EventLoop

	name string

	// Empty while the Goroutine is running in real time.
	pollStreams []*EventStream
	pollChan    chan<- *Event
}

// Name returns the name given to EventLoop.GoNamed, or a
// generated one.
func (h *Handle) Name() string {
	return h.name
}

// Poll waits for the next event from a set of streams.
//
// If the loop is aborted while the Goroutine is waiting,
// Poll never returns and the Goroutine exits.
func (h *Handle) Poll(streams ...*EventStream) *Event {
	ch := make(chan *Event, 1)
	h.modifyHandles(func() {
		if h.pollStreams != nil {
			panic("Handle is shared between Goroutines")
		}
		if h.abortErr != nil {
			ch <- nil
			return
		}
		for _, stream := range streams {
			if len(stream.pending) > 0 {
				msg := stream.pending[0]
				essentials.OrderedDelete(&stream.pending, 0)
				ch <- &Event{Message: msg, Stream: stream}
				return
			}
		}
		h.pollStreams = streams
		h.pollChan = ch
	})
	event := <-ch
	if event == nil {
		panic(abortSignal{})
	}
	return event
}

// Schedule creates a Timer for delivering an event.
func (h *Handle) Schedule(stream *EventStream, msg interface{}, delay float64) *Timer {
	if stream.loop != h.EventLoop {
		panic("EventStream is not associated with the correct EventLoop")
	}
	var timer *Timer
	h.modify(func() {
		timer = &Timer{
			time:  h.time + delay,
			event: &Event{Message: msg, Stream: stream},
		}
		if math.IsInf(timer.time, 0) || math.IsNaN(timer.time) {
			panic(fmt.Sprintf("invalid deadline: %f", timer.time))
		}
		h.timers = append(h.timers, timer)
	})
	return timer
}

// Sleep waits for some virtual time to elapse.
//
// A non-positive delay returns immediately.
func (h *Handle) Sleep(delay float64) {
	if delay <= 0 {
		return
	}
	stream := h.Stream()
	h.Schedule(stream, nil, delay)
	h.Poll(stream)
}

// Abort stops the loop with an error.
// See EventLoop.Abort.
func (h *Handle) Abort(err error) {
	h.EventLoop.Abort(err)
}

// An EventLoop is a global scheduler for events in a
// simulated distributed system.
//
// All Goroutines which access an EventLoop should be
// started using Go or GoNamed.
//
// The loop only advances virtual time when every active
// Goroutine is polling for an event, so simulated workers
// never have to reason about real timing.
type EventLoop struct {
	lock    sync.Mutex
	timers  []*Timer
	handles []*Handle
	started int

	time     float64
	abortErr error

	running  bool
	notifyCh chan struct{}
}

// NewEventLoop creates an event loop whose clock starts
// at 0.
func NewEventLoop() *EventLoop {
	return &EventLoop{notifyCh: make(chan struct{}, 1)}
}

// Stream creates a new EventStream.
func (e *EventLoop) Stream() *EventStream {
	return &EventStream{loop: e}
}

// Go runs a function in a Goroutine and passes it a new
// handle to the EventLoop.
func (e *EventLoop) Go(f func(h *Handle)) {
	e.GoNamed("", f)
}

// GoNamed is like Go, but the handle carries a name that
// shows up in deadlock reports.
func (e *EventLoop) GoNamed(name string, f func(h *Handle)) {
	e.lock.Lock()
	if name == "" {
		name = fmt.Sprintf("goroutine-%d", e.started)
	}
	e.started++
	h := &Handle{EventLoop: e, name: name}
	e.handles = append(e.handles, h)
	e.lock.Unlock()

	go func() {
		defer e.release(h)
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(abortSignal); !ok {
					panic(r)
				}
			}
		}()
		f(h)
	}()
}

// Abort terminates the run.
//
// Every Goroutine polling the loop, now or later, exits
// without returning from Poll, and Run returns err.
// Only the first call has an effect.
func (e *EventLoop) Abort(err error) {
	if err == nil {
		panic("abort requires an error")
	}
	e.modifyHandles(func() {
		if e.abortErr == nil {
			e.abortErr = err
			e.wakeAll()
		}
	})
}

// Run runs the loop and blocks until all handles have
// been closed.
//
// It is not safe to run the loop from more than one
// Goroutine at once.
//
// Returns a *DeadlockError if all Goroutines block
// forever, or the error passed to Abort.
func (e *EventLoop) Run() error {
	e.lock.Lock()
	if e.running {
		e.lock.Unlock()
		panic("EventLoop is already running.")
	}
	e.running = true
	e.lock.Unlock()

	defer func() {
		e.lock.Lock()
		e.running = false
		e.lock.Unlock()
	}()

	var firstErr error
	for range e.notifyCh {
		shouldContinue, err := e.step()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if !shouldContinue {
			return firstErr
		}
	}

	panic("unreachable")
}

// Time gets the current virtual time.
func (e *EventLoop) Time() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.time
}

// modify calls f while holding the loop lock.
// f must not cause scheduling changes; use modifyHandles
// for that.
func (e *EventLoop) modify(f func()) {
	e.lock.Lock()
	defer e.lock.Unlock()
	f()
}

// modifyHandles is like modify, but wakes up the loop
// afterwards since the set of polling handles may change.
func (e *EventLoop) modifyHandles(f func()) {
	e.lock.Lock()
	defer func() {
		e.lock.Unlock()
		select {
		case e.notifyCh <- struct{}{}:
		default:
		}
	}()
	f()
}

func (e *EventLoop) release(h *Handle) {
	e.modifyHandles(func() {
		for i, handle := range e.handles {
			if handle == h {
				essentials.UnorderedDelete(&e.handles, i)
				return
			}
		}
		panic("cannot free handle that does not exist")
	})
}

// wakeAll unblocks every polling handle with a nil event.
// The caller must hold the lock.
func (e *EventLoop) wakeAll() {
	for _, h := range e.handles {
		if h.pollChan != nil {
			h.pollChan <- nil
			h.pollChan = nil
			h.pollStreams = nil
		}
	}
}

// step runs the next event on the loop, if possible.
//
// The first return value is false once the loop has no
// Goroutines left.
func (e *EventLoop) step() (bool, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if len(e.handles) == 0 {
		return false, e.abortErr
	}
	if e.abortErr != nil {
		// Remaining Goroutines are unwinding.
		return true, e.abortErr
	}

	for _, h := range e.handles {
		if len(h.pollStreams) == 0 {
			// Do not run the loop while a Goroutine is
			// doing work in real-time.
			return true, nil
		}
	}

	for len(e.timers) > 0 {
		// Shuffle so that two timers with the same deadline
		// don't execute in a deterministic order.
		indices := rand.Perm(len(e.timers))

		minTimerIdx := indices[0]
		for _, i := range indices[1:] {
			if e.timers[i].time < e.timers[minTimerIdx].time {
				minTimerIdx = i
			}
		}
		timer := e.timers[minTimerIdx]

		essentials.UnorderedDelete(&e.timers, minTimerIdx)
		e.time = math.Max(e.time, timer.time)
		if e.deliver(timer.event) {
			return true, nil
		}
	}

	names := make([]string, len(e.handles))
	for i, h := range e.handles {
		names[i] = h.name
	}
	sort.Strings(names)
	e.abortErr = &DeadlockError{Blocked: names, Time: e.time}
	e.wakeAll()
	return true, e.abortErr
}

func (e *EventLoop) deliver(event *Event) bool {
	// Shuffle the handles so that two receivers don't get
	// messages in a deterministic order.
	indices := rand.Perm(len(e.handles))
	for _, i := range indices {
		h := e.handles[i]
		for _, stream := range h.pollStreams {
			if stream == event.Stream {
				h.pollChan <- event
				h.pollChan = nil
				h.pollStreams = nil
				return true
			}
		}
	}
	event.Stream.pending = append(event.Stream.pending, event.Message)
	return false
}
