package handlers

import (
	"context"

	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/service"
)

/*
Echo answers with an out.txt artifact holding the user's text.
*/
func Echo() service.Handler {
	return service.HandlerFunc(func(
		ctx context.Context, hctx *service.HandlerContext, emit service.Emit,
	) (*a2a.Task, error) {
		if err := emit(a2a.StatusUpdate{State: a2a.TaskStateWorking}); err != nil {
			return nil, err
		}

		artifact := a2a.NewTextArtifact("out.txt", "echo: "+hctx.UserMessage.String())

		if err := emit(a2a.ArtifactUpdate{Artifact: artifact}); err != nil {
			return nil, err
		}

		return nil, emit(a2a.StatusUpdate{
			State:   a2a.TaskStateCompleted,
			Message: a2a.NewTextMessage(a2a.RoleAgent, "done"),
		})
	})
}
