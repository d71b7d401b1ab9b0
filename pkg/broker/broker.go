package broker

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
)

/*
Broker fans task events out to every subscriber of that task. Delivery to one
subscriber never blocks the publisher or any other subscriber: each
subscription buffers without bound and drains on its own goroutine, so nothing
is dropped and per-task order is kept.
*/
type Broker struct {
	mu          sync.Mutex
	subscribers map[string]map[*Subscription]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string]map[*Subscription]struct{}),
	}
}

/*
Subscribe registers a new subscription for taskID. It sees every event
published after this call returns.
*/
func (broker *Broker) Subscribe(taskID string) *Subscription {
	sub := newSubscription(taskID, broker)

	broker.mu.Lock()
	defer broker.mu.Unlock()

	subs, ok := broker.subscribers[taskID]

	if !ok {
		subs = make(map[*Subscription]struct{})
		broker.subscribers[taskID] = subs
	}

	subs[sub] = struct{}{}

	log.Debug("subscriber added", "task_id", taskID, "subscribers", len(subs))

	return sub
}

/*
Publish hands evt to every current subscriber of its task. A final event
ends every subscription after it has been delivered, and the task's
subscriber list is dropped.
*/
func (broker *Broker) Publish(evt a2a.Event) {
	taskID := evt.TaskID()

	broker.mu.Lock()
	defer broker.mu.Unlock()

	subs := broker.subscribers[taskID]

	for sub := range subs {
		sub.push(evt)
	}

	if evt.IsFinal() {
		delete(broker.subscribers, taskID)
	}
}

// SubscriberCount returns the number of live subscriptions for taskID.
func (broker *Broker) SubscriberCount(taskID string) int {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	return len(broker.subscribers[taskID])
}

func (broker *Broker) remove(sub *Subscription) {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	subs, ok := broker.subscribers[sub.taskID]

	if !ok {
		return
	}

	delete(subs, sub)

	if len(subs) == 0 {
		delete(broker.subscribers, sub.taskID)
	}
}
