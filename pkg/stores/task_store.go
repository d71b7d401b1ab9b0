package stores

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
)

/*
TaskStore persists a task together with its full message history, keyed by
task ID. Implementations must hand out and keep independent copies: nothing a
caller does with a loaded or saved value may reach the stored state.

Entries pass through their JSON encoding on save in every implementation, so
a loaded value carries JSON types: numbers inside metadata and data parts come
back as float64, nested objects as map[string]any.
*/
type TaskStore interface {
	// Load returns a deep copy of the stored entry, or a TaskNotFound error.
	Load(ctx context.Context, taskID string) (*a2a.TaskAndHistory, error)

	// Save fully overwrites the entry for data.Task.ID.
	Save(ctx context.Context, data *a2a.TaskAndHistory) error
}

const (
	// HistorySuffix marks the sidecar holding a task's messages.
	HistorySuffix = ".history"
	// TempPrefix is reserved for in-flight writes.
	TempPrefix = ".tmp-"
)

/*
ValidateTaskID accepts only IDs that are safe to use as a bare filename or
object key component. Anything that could escape a base directory, or land on
another task's history sidecar or a temp file, is a hard validation failure,
never rewritten.
*/
func ValidateTaskID(taskID string) error {
	switch {
	case taskID == "":
		return errors.ErrInvalidParams.WithMessagef("task id must not be empty")
	case taskID == "." || taskID == "..":
		return errors.ErrInvalidParams.WithMessagef("task id %q is not a valid file name", taskID).WithTask(taskID)
	case strings.Contains(taskID, ".."):
		return errors.ErrInvalidParams.WithMessagef("task id %q contains a path traversal sequence", taskID).WithTask(taskID)
	case strings.ContainsAny(taskID, "/\\\x00"):
		return errors.ErrInvalidParams.WithMessagef("task id %q contains a path separator", taskID).WithTask(taskID)
	case strings.HasSuffix(taskID, HistorySuffix):
		return errors.ErrInvalidParams.WithMessagef("task id %q must not end in %s", taskID, HistorySuffix).WithTask(taskID)
	case strings.HasPrefix(taskID, TempPrefix):
		return errors.ErrInvalidParams.WithMessagef("task id %q must not start with %s", taskID, TempPrefix).WithTask(taskID)
	}

	return nil
}

func checkData(data *a2a.TaskAndHistory) error {
	if data == nil || data.Task == nil {
		return errors.ErrInvalidParams.WithMessagef("task cannot be nil")
	}

	if data.Task.ID == "" {
		return errors.ErrInvalidParams.WithMessagef("task id must not be empty")
	}

	return nil
}

/*
normalize returns a copy of data decoded from its own JSON encoding, giving
the in-memory store the same value types the file and object stores return.
*/
func normalize(data *a2a.TaskAndHistory) (*a2a.TaskAndHistory, error) {
	buf, err := json.Marshal(data)

	if err != nil {
		return nil, errors.ErrInternal.WithMessagef("failed to encode task %s: %v", data.Task.ID, err).WithTask(data.Task.ID).Wrap(err)
	}

	var out a2a.TaskAndHistory

	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, errors.ErrInternal.WithMessagef("failed to decode task %s: %v", data.Task.ID, err).WithTask(data.Task.ID).Wrap(err)
	}

	if out.History == nil {
		out.History = []a2a.Message{}
	}

	return &out, nil
}
