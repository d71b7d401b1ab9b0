package tasks

import (
	"context"
	"encoding/json"

	"github.com/cohesivestack/valgo"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/broker"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
)

/*
TaskManager is the engine surface the JSON-RPC methods call into.
*/
type TaskManager interface {
	SendTask(ctx context.Context, params a2a.TaskSendParams) (*a2a.Task, error)
	SendTaskSubscribe(ctx context.Context, params a2a.TaskSendParams) (*broker.Subscription, error)
	GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error)
	CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error)
	Resubscribe(ctx context.Context, params a2a.TaskQueryParams) (*broker.Subscription, error)
}

/*
decode unmarshals raw params into out. Missing params decode as an empty
object so the validators report what is absent.
*/
func decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.ErrInvalidParams.WithMessagef("failed to unmarshal params: %v", err).Wrap(err)
	}

	return nil
}

func check(val *valgo.Validation) error {
	if val.Valid() {
		return nil
	}

	err := val.Error()

	return errors.ErrInvalidParams.WithMessagef("invalid params: %v", err).WithData(err).Wrap(err)
}

func validateID(id string) *valgo.Validation {
	return valgo.Is(valgo.String(id, "id").Not().Blank())
}
