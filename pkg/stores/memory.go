package stores

import (
	"context"
	"sync"

	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
)

/*
InMemoryTaskStore keeps every task in a map. Data is lost when the process
stops. Safe for concurrent use.
*/
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.TaskAndHistory
}

var _ TaskStore = (*InMemoryTaskStore)(nil)

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks: make(map[string]*a2a.TaskAndHistory),
	}
}

func (store *InMemoryTaskStore) Load(
	ctx context.Context, taskID string,
) (*a2a.TaskAndHistory, error) {
	if err := ValidateTaskID(taskID); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	data, ok := store.tasks[taskID]

	if !ok {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", taskID).WithTask(taskID)
	}

	return data.Clone(), nil
}

func (store *InMemoryTaskStore) Save(
	ctx context.Context, data *a2a.TaskAndHistory,
) error {
	if err := checkData(data); err != nil {
		return err
	}

	if err := ValidateTaskID(data.Task.ID); err != nil {
		return err
	}

	entry, err := normalize(data)

	if err != nil {
		return err
	}

	store.mu.Lock()
	store.tasks[entry.Task.ID] = entry
	store.mu.Unlock()

	return nil
}

// Len returns the number of stored tasks.
func (store *InMemoryTaskStore) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return len(store.tasks)
}
