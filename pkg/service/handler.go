package service

import (
	"context"
	stderrors "errors"

	"github.com/theapemachine/a2a-runtime/pkg/a2a"
)

// ErrRunFinished is returned by Emit for updates arriving after the run ended.
var ErrRunFinished = stderrors.New("task run already finished")

/*
Emit applies one update to the running task. It returns after the update has
been persisted and broadcast.
*/
type Emit func(update a2a.Update) error

/*
Handler does the actual work of a task. It reports progress through emit and
may return a Task whose status, artifacts and metadata replace the working
copy once it returns. A returned error fails the task.
*/
type Handler interface {
	Handle(ctx context.Context, hctx *HandlerContext, emit Emit) (*a2a.Task, error)
}

type HandlerFunc func(ctx context.Context, hctx *HandlerContext, emit Emit) (*a2a.Task, error)

func (fn HandlerFunc) Handle(ctx context.Context, hctx *HandlerContext, emit Emit) (*a2a.Task, error) {
	return fn(ctx, hctx, emit)
}

/*
HandlerContext is what a handler sees of the task it runs for. Task and
History are snapshots taken when the run started.
*/
type HandlerContext struct {
	Task        *a2a.Task
	UserMessage a2a.Message
	History     []a2a.Message

	// PreviousStatus is set when the run continues an existing task.
	PreviousStatus *a2a.TaskStatus

	// Metadata is the metadata sent along with this request.
	Metadata map[string]any

	// IsCancelled reports whether a cancel was requested for this run.
	IsCancelled func() bool
}

// IsContinuation reports whether the run resumes an earlier task.
func (hctx *HandlerContext) IsContinuation() bool {
	return hctx.PreviousStatus != nil
}
