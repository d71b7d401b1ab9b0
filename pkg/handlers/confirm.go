package handlers

import (
	"context"
	"strings"

	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/service"
)

/*
Confirm pauses for input on the first message and settles on the reply:
"yes" completes the task, anything else fails it.
*/
func Confirm() service.Handler {
	return service.HandlerFunc(func(
		ctx context.Context, hctx *service.HandlerContext, emit service.Emit,
	) (*a2a.Task, error) {
		if !hctx.IsContinuation() {
			return nil, emit(a2a.StatusUpdate{
				State: a2a.TaskStateInputReq,
				Message: a2a.NewTextMessage(
					a2a.RoleAgent, "About to act on: "+hctx.UserMessage.String()+". Reply yes to confirm.",
				),
			})
		}

		if err := emit(a2a.StatusUpdate{State: a2a.TaskStateWorking}); err != nil {
			return nil, err
		}

		if !strings.EqualFold(strings.TrimSpace(hctx.UserMessage.String()), "yes") {
			return nil, emit(a2a.StatusUpdate{
				State:   a2a.TaskStateFailed,
				Message: a2a.NewTextMessage(a2a.RoleAgent, "not confirmed"),
			})
		}

		// The first user message is what was asked for.
		request := hctx.History[0].String()

		if err := emit(a2a.ArtifactUpdate{Artifact: a2a.NewTextArtifact("confirmed.txt", request)}); err != nil {
			return nil, err
		}

		return nil, emit(a2a.StatusUpdate{
			State:   a2a.TaskStateCompleted,
			Message: a2a.NewTextMessage(a2a.RoleAgent, "confirmed"),
		})
	})
}
