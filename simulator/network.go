package simulator

import (
	"math/rand"
	"sync"
)

// A Node represents a machine on a virtual network.
type Node struct {
	unused int
}

// NewNode creates a new, unique Node.
func NewNode() *Node {
	return &Node{}
}

// Port creates a new Port connected to the Node.
func (n *Node) Port(loop *EventLoop) *Port {
	return &Port{Node: n, Incoming: loop.Stream()}
}

// A Port identifies a point of communication on a Node.
// Data is sent from Ports and received on Ports.
type Port struct {
	// The Node to which the Port is attached.
	Node *Node

	// A stream of *Message objects.
	Incoming *EventStream
}

// Recv receives the next message.
func (p *Port) Recv(h *Handle) *Message {
	return h.Poll(p.Incoming).Message.(*Message)
}

// A Message is a chunk of data sent between nodes over a
// network.
type Message struct {
	Source  *Port
	Dest    *Port
	Message interface{}

	// Size is the number of bytes on the wire.
	Size float64
}

// A Network represents an abstract way of communicating
// between nodes.
type Network interface {
	// Send message objects from one node to another.
	// The message will arrive on the receiving port's
	// incoming EventStream.
	//
	// This is a non-blocking operation.
	Send(h *Handle, msgs ...*Message)
}

// A RandomNetwork is a network that assigns random delays
// to every message.
// Messages between the same pair of ports may arrive out
// of order.
type RandomNetwork struct{}

// Send sends the messages with random delays.
func (r RandomNetwork) Send(h *Handle, msgs ...*Message) {
	for _, msg := range msgs {
		h.Schedule(msg.Dest.Incoming, msg, rand.Float64())
	}
}

// A LinkNetwork gives every destination node a single
// incoming link.
// A message takes Latency seconds plus Size/Rate seconds
// to arrive, starting once the previous message into the
// same node has arrived, so messages arrive in the order
// they were sent.
type LinkNetwork struct {
	Latency float64
	Rate    float64

	lock      sync.Mutex
	nextTimes map[*Node]float64
}

// NewLinkNetwork creates a LinkNetwork.
//
// The rate is in bytes per second and must be positive.
func NewLinkNetwork(latency, rate float64) *LinkNetwork {
	if rate <= 0 {
		panic("link rate must be positive")
	}
	return &LinkNetwork{
		Latency:   latency,
		Rate:      rate,
		nextTimes: map[*Node]float64{},
	}
}

// Send sends the messages in order.
func (l *LinkNetwork) Send(h *Handle, msgs ...*Message) {
	l.lock.Lock()
	defer l.lock.Unlock()

	curTime := h.Time()
	for _, msg := range msgs {
		dest := msg.Dest.Node
		delay := l.Latency + msg.Size/l.Rate
		if t, ok := l.nextTimes[dest]; ok && t > curTime {
			// Queue behind the link's previous message.
			delay += t - curTime
		}
		h.Schedule(msg.Dest.Incoming, msg, delay)
		l.nextTimes[dest] = curTime + delay
	}
}
