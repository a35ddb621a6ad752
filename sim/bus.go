// sim/bus.go
package sim

import "container/heap"

// Delivery is one scheduled message delivery: at Tick, the node at
// Subscriber receives Value on Topic.
type Delivery struct {
	Tick       int
	Subscriber int
	Topic      string
	Value      int

	// seq breaks ties within a tick: FIFO by insertion order.
	seq int
}

// deliveryHeap implements heap.Interface ordered by (Tick, seq).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type deliveryHeap []*Delivery

func (h deliveryHeap) Len() int { return len(h) }
func (h deliveryHeap) Less(i, j int) bool {
	if h[i].Tick != h[j].Tick {
		return h[i].Tick < h[j].Tick
	}
	return h[i].seq < h[j].seq
}
func (h deliveryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *deliveryHeap) Push(x any) {
	*h = append(*h, x.(*Delivery))
}

func (h *deliveryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// MessageBus holds pending deliveries keyed by delivery tick. Within a tick,
// deliveries drain in stable insertion order. Suppression happens at publish
// time, so the bus never cancels anything once scheduled.
type MessageBus struct {
	pending deliveryHeap
	nextSeq int
}

// NewMessageBus creates an empty bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{pending: make(deliveryHeap, 0)}
}

// Schedule enqueues a delivery to subscriber on topic at the given tick.
func (b *MessageBus) Schedule(tick, subscriber int, topic string, value int) {
	d := &Delivery{Tick: tick, Subscriber: subscriber, Topic: topic, Value: value, seq: b.nextSeq}
	b.nextSeq++
	heap.Push(&b.pending, d)
}

// DrainDue removes and returns every delivery with Tick <= now, in stable
// insertion order.
func (b *MessageBus) DrainDue(now int) []*Delivery {
	var due []*Delivery
	for len(b.pending) > 0 && b.pending[0].Tick <= now {
		due = append(due, heap.Pop(&b.pending).(*Delivery))
	}
	return due
}

// HasDue reports whether any pending delivery is due at or before now.
func (b *MessageBus) HasDue(now int) bool {
	return len(b.pending) > 0 && b.pending[0].Tick <= now
}

// Len returns the number of pending deliveries.
func (b *MessageBus) Len() int { return len(b.pending) }
