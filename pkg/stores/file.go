package stores

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
	"github.com/theapemachine/a2a-runtime/pkg/utils"
)

/*
FileTaskStore persists each task as two sibling JSON files in a base
directory: <id>.json holds the task, <id>.history.json holds
{"messageHistory": [...]}.
*/
type FileTaskStore struct {
	baseDir string
	locks   *utils.KeyedMutex
}

var _ TaskStore = (*FileTaskStore)(nil)

/*
NewFileTaskStore creates the base directory if needed.
*/
func NewFileTaskStore(baseDir string) (*FileTaskStore, error) {
	abs, err := filepath.Abs(baseDir)

	if err != nil {
		return nil, errors.ErrInternal.WithMessagef("invalid task directory %q: %v", baseDir, err).Wrap(err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.ErrInternal.WithMessagef("failed to create task directory: %v", err).Wrap(err)
	}

	return &FileTaskStore{
		baseDir: abs,
		locks:   utils.NewKeyedMutex(),
	}, nil
}

func (store *FileTaskStore) BaseDir() string {
	return store.baseDir
}

func (store *FileTaskStore) Load(
	ctx context.Context, taskID string,
) (*a2a.TaskAndHistory, error) {
	if err := ValidateTaskID(taskID); err != nil {
		return nil, err
	}

	unlock := store.locks.Lock(taskID)
	defer unlock()

	buf, err := os.ReadFile(store.taskPath(taskID))

	if os.IsNotExist(err) {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", taskID).WithTask(taskID)
	}

	if err != nil {
		log.Error("failed to read task file", "task_id", taskID, "error", err)
		return nil, errors.ErrInternal.WithMessagef("failed to read task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	var task a2a.Task

	if err := json.Unmarshal(buf, &task); err != nil {
		log.Error("failed to decode task file", "task_id", taskID, "error", err)
		return nil, errors.ErrInternal.WithMessagef("failed to decode task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	history, err := store.loadHistory(taskID)

	if err != nil {
		return nil, err
	}

	return &a2a.TaskAndHistory{Task: &task, History: history}, nil
}

/*
loadHistory treats a missing history file as an empty history, since a task
can exist before its first message is recorded. A malformed file is logged
and also read as empty; the next Save rewrites it.
*/
func (store *FileTaskStore) loadHistory(taskID string) ([]a2a.Message, error) {
	buf, err := os.ReadFile(store.historyPath(taskID))

	if os.IsNotExist(err) {
		return []a2a.Message{}, nil
	}

	if err != nil {
		log.Error("failed to read history file", "task_id", taskID, "error", err)
		return nil, errors.ErrInternal.WithMessagef("failed to read history for task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	var history a2a.TaskHistory

	if err := json.Unmarshal(buf, &history); err != nil {
		log.Warn("malformed history file, treating as empty", "task_id", taskID, "error", err)
		return []a2a.Message{}, nil
	}

	if history.MessageHistory == nil {
		return []a2a.Message{}, nil
	}

	return history.MessageHistory, nil
}

func (store *FileTaskStore) Save(
	ctx context.Context, data *a2a.TaskAndHistory,
) error {
	if err := checkData(data); err != nil {
		return err
	}

	taskID := data.Task.ID

	if err := ValidateTaskID(taskID); err != nil {
		return err
	}

	taskBuf, err := json.MarshalIndent(data.Task, "", "  ")

	if err != nil {
		return errors.ErrInternal.WithMessagef("failed to encode task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	history := data.History

	if history == nil {
		history = []a2a.Message{}
	}

	historyBuf, err := json.MarshalIndent(a2a.TaskHistory{MessageHistory: history}, "", "  ")

	if err != nil {
		return errors.ErrInternal.WithMessagef("failed to encode history for task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	unlock := store.locks.Lock(taskID)
	defer unlock()

	if err := store.writeFile(store.taskPath(taskID), taskBuf); err != nil {
		log.Error("failed to write task file", "task_id", taskID, "error", err)
		return errors.ErrInternal.WithMessagef("failed to write task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	if err := store.writeFile(store.historyPath(taskID), historyBuf); err != nil {
		log.Error("failed to write history file", "task_id", taskID, "error", err)
		return errors.ErrInternal.WithMessagef("failed to write history for task %s: %v", taskID, err).WithTask(taskID).Wrap(err)
	}

	return nil
}

// writeFile replaces path atomically via a temp file in the same directory.
func (store *FileTaskStore) writeFile(path string, buf []byte) error {
	tmp, err := os.CreateTemp(store.baseDir, TempPrefix+"*")

	if err != nil {
		return err
	}

	if _, err = tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return nil
}

func (store *FileTaskStore) taskPath(taskID string) string {
	return filepath.Join(store.baseDir, taskID+".json")
}

func (store *FileTaskStore) historyPath(taskID string) string {
	return filepath.Join(store.baseDir, taskID+HistorySuffix+".json")
}
