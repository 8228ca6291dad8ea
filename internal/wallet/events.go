package wallet

import (
	"sync"
)

type EventKind int

const (
	AccountsChanged EventKind = iota + 1
	ChainChanged
)

func (k EventKind) String() string {
	switch k {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind     EventKind
	Accounts []string
	ChainID  string
}

// eventQueue delivers events on a single goroutine in the order they were pushed.
// push never blocks, so handlers may emit further events; those are delivered after the current one.
type eventQueue struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Event)
	order    []int
	pending  []Event

	wake  chan struct{}
	apply func(Event)
	done  chan struct{}
	once  sync.Once
}

func newEventQueue(apply func(Event)) *eventQueue {
	q := &eventQueue{
		handlers: make(map[int]func(Event)),
		wake:     make(chan struct{}, 1),
		apply:    apply,
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *eventQueue) run() {
	for {
		select {
		case <-q.wake:
			for {
				evt, ok := q.next()
				if !ok {
					break
				}
				if q.apply != nil {
					q.apply(evt)
				}
				for _, fn := range q.snapshot() {
					fn(evt)
				}
			}
		case <-q.done:
			return
		}
	}
}

func (q *eventQueue) next() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case <-q.done:
		return Event{}, false
	default:
	}
	if len(q.pending) == 0 {
		return Event{}, false
	}
	evt := q.pending[0]
	q.pending = q.pending[1:]
	return evt, true
}

func (q *eventQueue) snapshot() []func(Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]func(Event), 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.handlers[id])
	}
	return out
}

func (q *eventQueue) subscribe(fn func(Event)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	q.handlers[id] = fn
	q.order = append(q.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			delete(q.handlers, id)
			for i, v := range q.order {
				if v == id {
					q.order = append(q.order[:i], q.order[i+1:]...)
					break
				}
			}
		})
	}
}

// push queues evt for delivery; it drops the event once the queue is closed.
func (q *eventQueue) push(evt Event) {
	q.mu.Lock()
	select {
	case <-q.done:
		q.mu.Unlock()
		return
	default:
	}
	q.pending = append(q.pending, evt)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) close() {
	q.once.Do(func() { close(q.done) })
}
