package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/broker"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
	"github.com/theapemachine/a2a-runtime/pkg/metrics"
	"github.com/theapemachine/a2a-runtime/pkg/stores"
	"github.com/theapemachine/a2a-runtime/pkg/utils"
)

const noOutputMessage = "handler finished without producing output"

/*
TaskManager drives tasks through their lifecycle: it runs the handler for
each send, applies what the handler emits to the stored task, and fans the
resulting events out to subscribers.
*/
type TaskManager struct {
	store         stores.TaskStore
	handler       Handler
	broker        *broker.Broker
	metrics       *metrics.TaskMetrics
	cancelTimeout time.Duration
	now           func() time.Time

	locks  *utils.KeyedMutex
	runsMu sync.Mutex
	runs   map[string]*run
}

type TaskManagerOption func(*TaskManager)

/*
run is one invocation of the handler. Everything except cancelled is
guarded by the task lock.
*/
type run struct {
	ctx       context.Context
	taskID    string
	data      *a2a.TaskAndHistory
	started   time.Time
	cancelled atomic.Bool
	finished  bool
	output    bool
	err       error
	finalized chan struct{}
}

func NewTaskManager(options ...TaskManagerOption) (*TaskManager, error) {
	manager := &TaskManager{
		broker:        broker.NewBroker(),
		cancelTimeout: 5 * time.Second,
		now:           time.Now,
		locks:         utils.NewKeyedMutex(),
		runs:          make(map[string]*run),
	}

	for _, option := range options {
		option(manager)
	}

	var missing []error

	if manager.store == nil {
		missing = append(missing, errors.ErrMissingTaskStore)
	}

	if manager.handler == nil {
		missing = append(missing, errors.ErrMissingHandler)
	}

	if err := errors.NewConfigError("task manager", missing...); err != nil {
		return nil, err
	}

	return manager, nil
}

func WithTaskStore(store stores.TaskStore) TaskManagerOption {
	return func(manager *TaskManager) {
		manager.store = store
	}
}

func WithHandler(handler Handler) TaskManagerOption {
	return func(manager *TaskManager) {
		manager.handler = handler
	}
}

func WithBroker(b *broker.Broker) TaskManagerOption {
	return func(manager *TaskManager) {
		manager.broker = b
	}
}

func WithMetrics(m *metrics.TaskMetrics) TaskManagerOption {
	return func(manager *TaskManager) {
		manager.metrics = m
	}
}

/*
WithCancelTimeout bounds how long a cancel waits for the handler to notice
before the task is finalized as canceled regardless.
*/
func WithCancelTimeout(timeout time.Duration) TaskManagerOption {
	return func(manager *TaskManager) {
		if timeout > 0 {
			manager.cancelTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) TaskManagerOption {
	return func(manager *TaskManager) {
		manager.now = now
	}
}

/*
SendTask starts or continues a task and runs the handler to completion,
returning the finalized task.
*/
func (manager *TaskManager) SendTask(
	ctx context.Context, params a2a.TaskSendParams,
) (*a2a.Task, error) {
	r, hctx, _, err := manager.begin(ctx, params, false)

	if err != nil {
		return nil, err
	}

	manager.execute(r, hctx)
	<-r.finalized

	return manager.result(r, params.HistoryLength)
}

/*
SendTaskSubscribe starts or continues a task in the background. The returned
subscription is attached before anything is published, so it sees every
event of the run and ends with the final one.
*/
func (manager *TaskManager) SendTaskSubscribe(
	ctx context.Context, params a2a.TaskSendParams,
) (*broker.Subscription, error) {
	r, hctx, sub, err := manager.begin(ctx, params, true)

	if err != nil {
		return nil, err
	}

	go manager.execute(r, hctx)

	return sub, nil
}

/*
GetTask returns the stored task. History is embedded according to
historyLength: absent or zero for none, positive for the last N messages,
negative for all of it.
*/
func (manager *TaskManager) GetTask(
	ctx context.Context, params a2a.TaskQueryParams,
) (*a2a.Task, error) {
	if err := stores.ValidateTaskID(params.ID); err != nil {
		return nil, err
	}

	data, err := manager.store.Load(ctx, params.ID)

	if err != nil {
		return nil, errors.FromError(err)
	}

	task := data.Task
	task.History = selectHistory(data.History, params.HistoryLength)

	return task, nil
}

/*
CancelTask asks the task's running handler to stop and waits, up to the
cancel timeout, for it to do so. The task ends up canceled either way. A
task with no active run is canceled on the spot.
*/
func (manager *TaskManager) CancelTask(
	ctx context.Context, params a2a.TaskIDParams,
) (*a2a.Task, error) {
	taskID := params.ID

	if err := stores.ValidateTaskID(taskID); err != nil {
		return nil, err
	}

	unlock := manager.locks.Lock(taskID)

	data, err := manager.store.Load(ctx, taskID)

	if err != nil {
		unlock()
		return nil, errors.FromError(err)
	}

	if data.Task.Status.State.IsTerminal() {
		unlock()
		return nil, errors.ErrTaskNotCancelable.WithMessagef(
			"task %s is already %s", taskID, data.Task.Status.State,
		).WithTask(taskID)
	}

	r := manager.activeRun(taskID)

	if r == nil {
		defer unlock()

		log.Info("canceling idle task", "task_id", taskID, "state", data.Task.Status.State)

		data.Task.ToStatus(a2a.TaskStateCanceled, nil, manager.stamp(data.Task.Status.Timestamp))

		if err := manager.store.Save(ctx, data); err != nil {
			log.Error("failed to persist cancellation", "task_id", taskID, "error", err)
			return nil, errors.ErrInternal.WithMessagef("failed to persist task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
		}

		manager.broker.Publish(a2a.TaskStatusUpdateEvent{
			ID:     taskID,
			Status: data.Task.Status.Clone(),
			Final:  true,
		})

		return data.Task, nil
	}

	r.cancelled.Store(true)
	unlock()

	log.Info("cancel requested", "task_id", taskID)

	timer := time.NewTimer(manager.cancelTimeout)
	defer timer.Stop()

	select {
	case <-r.finalized:
	case <-timer.C:
		log.Warn("handler did not acknowledge cancel in time", "task_id", taskID, "timeout", manager.cancelTimeout)
	case <-ctx.Done():
	}

	manager.withLock(taskID, func() {
		manager.finalizeLocked(r, a2a.TaskStateCanceled, nil, false)
	})

	return manager.result(r, nil)
}

/*
Resubscribe attaches to the event stream of an existing task. For a task that
already finished the subscription yields its final status and ends.
*/
func (manager *TaskManager) Resubscribe(
	ctx context.Context, params a2a.TaskQueryParams,
) (*broker.Subscription, error) {
	taskID := params.ID

	if err := stores.ValidateTaskID(taskID); err != nil {
		return nil, err
	}

	unlock := manager.locks.Lock(taskID)
	defer unlock()

	data, err := manager.store.Load(ctx, taskID)

	if err != nil {
		return nil, errors.FromError(err)
	}

	if data.Task.Status.State.IsTerminal() {
		return broker.NewFinishedSubscription(taskID, a2a.TaskStatusUpdateEvent{
			ID:     taskID,
			Status: data.Task.Status,
			Final:  true,
		}), nil
	}

	return manager.broker.Subscribe(taskID), nil
}

/*
begin validates the request, records the user message and registers the run.
Nothing is written when validation fails.
*/
func (manager *TaskManager) begin(
	ctx context.Context, params a2a.TaskSendParams, stream bool,
) (*run, *HandlerContext, *broker.Subscription, error) {
	taskID := params.ID

	if err := validateSend(params); err != nil {
		return nil, nil, nil, err
	}

	unlock := manager.locks.Lock(taskID)
	defer unlock()

	if manager.activeRun(taskID) != nil {
		return nil, nil, nil, errors.ErrInvalidRequest.WithMessagef("task %s already running", taskID).WithTask(taskID)
	}

	data, err := manager.store.Load(ctx, taskID)
	isNew := false

	switch {
	case errors.Code(err) == errors.ErrorCodeTaskNotFound:
		isNew = true
		data = &a2a.TaskAndHistory{
			Task:    a2a.NewTask(taskID, params.SessionID, params.Metadata, manager.stamp(time.Time{})),
			History: []a2a.Message{},
		}
	case err != nil:
		log.Error("failed to load task", "task_id", taskID, "error", err)
		return nil, nil, nil, errors.FromError(err)
	}

	var previous *a2a.TaskStatus

	if !isNew {
		if state := data.Task.Status.State; state.IsTerminal() {
			return nil, nil, nil, errors.ErrInvalidParams.WithMessagef(
				"task %s is in terminal state %s and accepts no further messages", taskID, state,
			).WithTask(taskID)
		}

		if params.SessionID != "" && data.Task.SessionID != "" && params.SessionID != data.Task.SessionID {
			return nil, nil, nil, errors.ErrInvalidParams.WithMessagef(
				"task %s belongs to session %s, not %s", taskID, data.Task.SessionID, params.SessionID,
			).WithTask(taskID)
		}

		status := data.Task.Status.Clone()
		previous = &status
	}

	data.History = append(data.History, *params.Message.Clone())

	if err := manager.store.Save(ctx, data); err != nil {
		log.Error("failed to persist task", "task_id", taskID, "error", err)
		return nil, nil, nil, errors.ErrInternal.WithMessagef("failed to persist task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	r := &run{
		ctx:       context.WithoutCancel(ctx),
		taskID:    taskID,
		data:      data,
		started:   manager.now(),
		finalized: make(chan struct{}),
	}

	manager.runsMu.Lock()
	manager.runs[taskID] = r
	manager.runsMu.Unlock()

	manager.metrics.RunStarted()

	var sub *broker.Subscription

	if stream {
		sub = manager.broker.Subscribe(taskID)
	}

	if isNew {
		manager.broker.Publish(a2a.TaskStatusUpdateEvent{
			ID:     taskID,
			Status: data.Task.Status.Clone(),
		})
	}

	log.Info("task run started", "task_id", taskID, "new", isNew, "stream", stream)

	snapshot := data.Clone()

	hctx := &HandlerContext{
		Task:           snapshot.Task,
		UserMessage:    *params.Message.Clone(),
		History:        snapshot.History,
		PreviousStatus: previous,
		Metadata:       params.Metadata,
		IsCancelled:    r.cancelled.Load,
	}

	return r, hctx, sub, nil
}

/*
execute runs the handler and settles whatever state it left the task in.
*/
func (manager *TaskManager) execute(r *run, hctx *HandlerContext) {
	emit := func(update a2a.Update) error {
		return manager.apply(r, update)
	}

	override, err := manager.invoke(r, hctx, emit)

	unlock := manager.locks.Lock(r.taskID)
	defer unlock()

	if r.finished {
		return
	}

	if r.cancelled.Load() {
		manager.finalizeLocked(r, a2a.TaskStateCanceled, nil, false)
		return
	}

	if err != nil {
		log.Error("handler failed", "task_id", r.taskID, "error", err)
		manager.finalizeLocked(r, a2a.TaskStateFailed, a2a.NewTextMessage(a2a.RoleAgent, err.Error()), true)
		return
	}

	task := r.data.Task

	if override != nil {
		override = override.Clone()

		if override.Artifacts != nil {
			task.Artifacts = override.Artifacts
		}

		if override.Metadata != nil {
			task.Metadata = override.Metadata
		}

		switch state := override.Status.State; {
		case state.IsTerminal():
			manager.finalizeLocked(r, state, override.Status.Message, true)
			return
		case state != "" && !state.IsValid():
			manager.finalizeLocked(r, a2a.TaskStateFailed, a2a.NewTextMessage(
				a2a.RoleAgent, fmt.Sprintf("handler returned unknown state %q", state),
			), true)
			return
		case override.Status.Message != nil:
			task.Status.Message = override.Status.Message
			r.output = true
		}
	}

	switch {
	case task.Status.State == a2a.TaskStateInputReq:
		manager.pauseLocked(r)
	case len(task.Artifacts) > 0 || (r.output && task.Status.Message != nil):
		manager.finalizeLocked(r, a2a.TaskStateCompleted, task.Status.Message, false)
	default:
		manager.finalizeLocked(r, a2a.TaskStateFailed, a2a.NewTextMessage(a2a.RoleAgent, noOutputMessage), true)
	}
}

/*
invoke calls the handler, turning a panic into an error.
*/
func (manager *TaskManager) invoke(
	r *run, hctx *HandlerContext, emit Emit,
) (task *a2a.Task, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("handler panicked", "task_id", r.taskID, "panic", rec)
			task, err = nil, fmt.Errorf("handler panic: %v", rec)
		}
	}()

	return manager.handler.Handle(r.ctx, hctx, emit)
}

/*
apply is the emit path: one update, applied, persisted and broadcast before
returning.
*/
func (manager *TaskManager) apply(r *run, update a2a.Update) error {
	unlock := manager.locks.Lock(r.taskID)
	defer unlock()

	if r.finished {
		if r.err != nil {
			return r.err
		}

		return ErrRunFinished
	}

	if r.cancelled.Load() {
		manager.finalizeLocked(r, a2a.TaskStateCanceled, nil, false)
		return ErrRunFinished
	}

	task := r.data.Task

	switch pointer := update.(type) {
	case *a2a.StatusUpdate:
		if pointer != nil {
			update = *pointer
		}
	case *a2a.ArtifactUpdate:
		if pointer != nil {
			update = *pointer
		}
	}

	switch update := update.(type) {
	case a2a.StatusUpdate:
		var err *errors.RpcError

		switch {
		case !update.State.IsValid():
			err = errors.ErrInvalidParams.WithMessagef("unknown task state %q", update.State)
		case update.State == a2a.TaskStateSubmitted:
			// submitted is only ever the initial state.
			err = errors.ErrInvalidParams.WithMessagef("task cannot move from %s back to %s", task.Status.State, update.State)
		}

		if err != nil {
			err = err.WithTask(r.taskID)
			manager.finalizeLocked(r, a2a.TaskStateFailed, a2a.NewTextMessage(a2a.RoleAgent, err.Message), true)
			return err
		}

		manager.metrics.RecordUpdate("status")

		if update.State.IsTerminal() {
			manager.finalizeLocked(r, update.State, update.Message, true)
			return r.err
		}

		task.ToStatus(update.State, update.Message, manager.stamp(task.Status.Timestamp))
		r.output = update.Message != nil

		if update.Message != nil {
			r.data.History = append(r.data.History, *update.Message.Clone())
		}

		if err := manager.persistLocked(r); err != nil {
			return err
		}

		manager.broker.Publish(a2a.TaskStatusUpdateEvent{
			ID:     r.taskID,
			Status: task.Status.Clone(),
		})
	case a2a.ArtifactUpdate:
		manager.metrics.RecordUpdate("artifact")

		task.UpsertArtifact(update.Artifact)

		if err := manager.persistLocked(r); err != nil {
			return err
		}

		manager.broker.Publish(a2a.TaskArtifactUpdateEvent{
			ID:       r.taskID,
			Artifact: update.Artifact.Clone(),
		})
	default:
		err := errors.ErrInternal.WithMessagef("unclassifiable update %T", update).WithTask(r.taskID)
		manager.finalizeLocked(r, a2a.TaskStateFailed, a2a.NewTextMessage(a2a.RoleAgent, err.Message), true)
		return err
	}

	return nil
}

/*
persistLocked saves the working copy. A failed save aborts the run: the
caller gets an InternalError and subscribers a final failed event.
*/
func (manager *TaskManager) persistLocked(r *run) error {
	err := manager.store.Save(r.ctx, r.data)

	if err == nil {
		return nil
	}

	log.Error("failed to persist task", "task_id", r.taskID, "error", err)

	r.err = errors.ErrInternal.WithMessagef("failed to persist task %s: %v", r.taskID, err).WithTask(r.taskID).Wrap(err)
	r.data.Task.ToStatus(
		a2a.TaskStateFailed,
		a2a.NewTextMessage(a2a.RoleAgent, r.err.Error()),
		manager.stamp(r.data.Task.Status.Timestamp),
	)

	manager.broker.Publish(a2a.TaskStatusUpdateEvent{
		ID:     r.taskID,
		Status: r.data.Task.Status.Clone(),
		Final:  true,
	})

	manager.endLocked(r)

	return r.err
}

/*
finalizeLocked moves the run's task into a terminal state and ends the run.
The message is added to history when record is set.
*/
func (manager *TaskManager) finalizeLocked(
	r *run, state a2a.TaskState, message *a2a.Message, record bool,
) {
	if r.finished {
		return
	}

	task := r.data.Task
	task.ToStatus(state, message, manager.stamp(task.Status.Timestamp))

	if record && message != nil {
		r.data.History = append(r.data.History, *message.Clone())
	}

	if err := manager.persistLocked(r); err != nil {
		return
	}

	manager.broker.Publish(a2a.TaskStatusUpdateEvent{
		ID:     r.taskID,
		Status: task.Status.Clone(),
		Final:  true,
	})

	log.Info("task finalized", "task_id", r.taskID, "state", state)

	manager.endLocked(r)
}

/*
pauseLocked ends a run that left the task waiting for input. The task stays
open for the next send; its current stream ends here.
*/
func (manager *TaskManager) pauseLocked(r *run) {
	manager.broker.Publish(a2a.TaskStatusUpdateEvent{
		ID:     r.taskID,
		Status: r.data.Task.Status.Clone(),
		Final:  true,
	})

	log.Info("task waiting for input", "task_id", r.taskID)

	manager.endLocked(r)
}

func (manager *TaskManager) endLocked(r *run) {
	r.finished = true

	manager.runsMu.Lock()

	if manager.runs[r.taskID] == r {
		delete(manager.runs, r.taskID)
	}

	manager.runsMu.Unlock()

	manager.metrics.RunFinished(string(r.data.Task.Status.State), manager.now().Sub(r.started))

	close(r.finalized)
}

func (manager *TaskManager) result(r *run, historyLength *int) (*a2a.Task, error) {
	unlock := manager.locks.Lock(r.taskID)
	defer unlock()

	if r.err != nil {
		return nil, r.err
	}

	task := r.data.Task.Clone()
	task.History = selectHistory(r.data.History, historyLength)

	return task, nil
}

func (manager *TaskManager) activeRun(taskID string) *run {
	manager.runsMu.Lock()
	defer manager.runsMu.Unlock()

	return manager.runs[taskID]
}

func (manager *TaskManager) withLock(taskID string, fn func()) {
	unlock := manager.locks.Lock(taskID)
	defer unlock()

	fn()
}

/*
stamp returns the current time, forced strictly after previous so status
timestamps of one task never go backwards.
*/
func (manager *TaskManager) stamp(previous time.Time) time.Time {
	now := manager.now().UTC().Round(0)

	if !now.After(previous) {
		return previous.Add(time.Nanosecond)
	}

	return now
}

func selectHistory(history []a2a.Message, historyLength *int) []a2a.Message {
	if historyLength == nil || *historyLength == 0 || len(history) == 0 {
		return nil
	}

	n := *historyLength

	if n < 0 || n > len(history) {
		n = len(history)
	}

	out := make([]a2a.Message, n)

	for i, msg := range history[len(history)-n:] {
		out[i] = *msg.Clone()
	}

	return out
}

func validateSend(params a2a.TaskSendParams) error {
	if err := stores.ValidateTaskID(params.ID); err != nil {
		return err
	}

	if params.Message.Role != a2a.RoleUser {
		return errors.ErrInvalidParams.WithMessagef(
			"message role must be %q, got %q", a2a.RoleUser, params.Message.Role,
		).WithTask(params.ID)
	}

	if len(params.Message.Parts) == 0 {
		return errors.ErrInvalidParams.WithMessagef("message must carry at least one part").WithTask(params.ID)
	}

	if params.PushNotification != nil {
		return errors.ErrPushNotificationNotSupported.WithTask(params.ID)
	}

	return nil
}
