package s3

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
	"github.com/theapemachine/a2a-runtime/pkg/stores"
	"github.com/theapemachine/a2a-runtime/pkg/utils"
)

/*
Store keeps tasks in an S3 compatible bucket, using the same layout as the
file store: <id>.json for the task, <id>.history.json for its messages.
*/
type Store struct {
	conn   Objects
	bucket string
	retry  *errors.RetryConfig
	locks  *utils.KeyedMutex
}

var _ stores.TaskStore = (*Store)(nil)

type StoreOption func(*Store)

func WithRetry(config *errors.RetryConfig) StoreOption {
	return func(store *Store) {
		store.retry = config
	}
}

/*
NewStore creates a task store on top of the given object client.
*/
func NewStore(conn Objects, bucket string, options ...StoreOption) *Store {
	store := &Store{
		conn:   conn,
		bucket: bucket,
		retry:  errors.DefaultRetryConfig(),
		locks:  utils.NewKeyedMutex(),
	}

	for _, option := range options {
		option(store)
	}

	return store
}

func (store *Store) Load(
	ctx context.Context, taskID string,
) (*a2a.TaskAndHistory, error) {
	if err := stores.ValidateTaskID(taskID); err != nil {
		return nil, err
	}

	unlock := store.locks.Lock(taskID)
	defer unlock()

	buf, err := store.conn.Get(ctx, store.bucket, taskID+".json")

	if stderrors.Is(err, ErrNoSuchKey) {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", taskID).WithTask(taskID)
	}

	if err != nil {
		log.Error("failed to get task", "task_id", taskID, "bucket", store.bucket, "error", err)
		return nil, errors.ErrInternal.WithMessagef("failed to get task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	var task a2a.Task

	if err := json.Unmarshal(buf, &task); err != nil {
		log.Error("failed to unmarshal task", "task_id", taskID, "error", err)
		return nil, errors.ErrInternal.WithMessagef("failed to unmarshal task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	history := []a2a.Message{}
	buf, err = store.conn.Get(ctx, store.bucket, taskID+stores.HistorySuffix+".json")

	switch {
	case stderrors.Is(err, ErrNoSuchKey):
	case err != nil:
		log.Error("failed to get history", "task_id", taskID, "bucket", store.bucket, "error", err)
		return nil, errors.ErrInternal.WithMessagef("failed to get history for task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	default:
		var stored a2a.TaskHistory

		if err := json.Unmarshal(buf, &stored); err != nil {
			log.Warn("malformed history object, treating as empty", "task_id", taskID, "error", err)
		} else if stored.MessageHistory != nil {
			history = stored.MessageHistory
		}
	}

	return &a2a.TaskAndHistory{Task: &task, History: history}, nil
}

func (store *Store) Save(
	ctx context.Context, data *a2a.TaskAndHistory,
) error {
	if data == nil || data.Task == nil {
		return errors.ErrInvalidParams.WithMessagef("task cannot be nil")
	}

	taskID := data.Task.ID

	if err := stores.ValidateTaskID(taskID); err != nil {
		return err
	}

	taskBuf, err := json.Marshal(data.Task)

	if err != nil {
		return errors.ErrInternal.WithMessagef("failed to marshal task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	history := data.History

	if history == nil {
		history = []a2a.Message{}
	}

	historyBuf, err := json.Marshal(a2a.TaskHistory{MessageHistory: history})

	if err != nil {
		return errors.ErrInternal.WithMessagef("failed to marshal history for task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	unlock := store.locks.Lock(taskID)
	defer unlock()

	if err := store.put(ctx, taskID+".json", taskBuf); err != nil {
		log.Error("failed to store task", "task_id", taskID, "bucket", store.bucket, "error", err)
		return errors.ErrInternal.WithMessagef("failed to store task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	if err := store.put(ctx, taskID+stores.HistorySuffix+".json", historyBuf); err != nil {
		log.Error("failed to store history", "task_id", taskID, "bucket", store.bucket, "error", err)
		return errors.ErrInternal.WithMessagef("failed to store history for task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	return nil
}

func (store *Store) put(ctx context.Context, key string, body []byte) error {
	return errors.RetryWithBackoff(ctx, store.retry, nil, func() error {
		return store.conn.Put(ctx, store.bucket, key, body)
	})
}
