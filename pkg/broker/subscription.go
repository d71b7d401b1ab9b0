package broker

import (
	"sync"

	"github.com/theapemachine/a2a-runtime/pkg/a2a"
)

/*
Subscription is one consumer's view of a task's event stream. Events arrive on
Events() in publish order; the channel is closed after the final event or
when the consumer calls Close.
*/
type Subscription struct {
	taskID string
	broker *Broker
	events chan a2a.Event
	done   chan struct{}

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []a2a.Event
	ended  bool
	closed bool
	once   sync.Once
}

func newSubscription(taskID string, broker *Broker) *Subscription {
	sub := &Subscription{
		taskID: taskID,
		broker: broker,
		events: make(chan a2a.Event),
		done:   make(chan struct{}),
	}

	sub.cond = sync.NewCond(&sub.mu)

	go sub.drain()

	return sub
}

/*
NewFinishedSubscription returns a subscription that yields the given events
and then ends, without being attached to any broker. Used when a task is
already terminal at subscribe time.
*/
func NewFinishedSubscription(taskID string, events ...a2a.Event) *Subscription {
	sub := newSubscription(taskID, nil)

	for _, evt := range events {
		sub.push(evt)
	}

	sub.mu.Lock()
	sub.ended = true
	sub.cond.Signal()
	sub.mu.Unlock()

	return sub
}

func (sub *Subscription) TaskID() string {
	return sub.taskID
}

func (sub *Subscription) Events() <-chan a2a.Event {
	return sub.events
}

/*
Close detaches the subscription. Undelivered events are discarded and the
events channel is closed. Safe to call more than once.
*/
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		if sub.broker != nil {
			sub.broker.remove(sub)
		}

		sub.mu.Lock()
		sub.closed = true
		sub.queue = nil
		sub.cond.Broadcast()
		sub.mu.Unlock()

		close(sub.done)
	})
}

func (sub *Subscription) push(evt a2a.Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed || sub.ended {
		return
	}

	sub.queue = append(sub.queue, evt)

	if evt.IsFinal() {
		sub.ended = true
	}

	sub.cond.Signal()
}

/*
next blocks until an event is queued. It reports false once the stream is
over: closed, or ended with an empty queue.
*/
func (sub *Subscription) next() (a2a.Event, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	for len(sub.queue) == 0 && !sub.closed && !sub.ended {
		sub.cond.Wait()
	}

	if sub.closed || len(sub.queue) == 0 {
		return nil, false
	}

	evt := sub.queue[0]
	sub.queue[0] = nil
	sub.queue = sub.queue[1:]

	return evt, true
}

func (sub *Subscription) drain() {
	defer close(sub.events)

	for {
		evt, ok := sub.next()

		if !ok {
			return
		}

		select {
		case sub.events <- evt:
		case <-sub.done:
			return
		}
	}
}
