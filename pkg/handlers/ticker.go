package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/service"
)

const (
	DefaultTicks        = 10
	DefaultTickInterval = 500 * time.Millisecond
)

/*
Ticker streams one artifact in chunks, one per tick, and stops early when the
task is canceled. It leaves finalization to the engine.
*/
func Ticker(ticks int, interval time.Duration) service.Handler {
	return service.HandlerFunc(func(
		ctx context.Context, hctx *service.HandlerContext, emit service.Emit,
	) (*a2a.Task, error) {
		if err := emit(a2a.StatusUpdate{State: a2a.TaskStateWorking}); err != nil {
			return nil, err
		}

		for i := 0; i < ticks; i++ {
			if hctx.IsCancelled() {
				return nil, nil
			}

			chunk := a2a.Artifact{
				Name:      "ticks.txt",
				MimeType:  "text/plain",
				Parts:     []a2a.Part{a2a.NewTextPart(fmt.Sprintf("tick %d\n", i+1))},
				Append:    i > 0,
				LastChunk: i == ticks-1,
			}

			if err := emit(a2a.ArtifactUpdate{Artifact: chunk}); err != nil {
				return nil, err
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}

		return nil, nil
	})
}
