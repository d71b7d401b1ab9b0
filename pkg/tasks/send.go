package tasks

import (
	"context"
	"encoding/json"

	"github.com/cohesivestack/valgo"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/broker"
)

func decodeSend(raw json.RawMessage) (a2a.TaskSendParams, error) {
	var params a2a.TaskSendParams

	if err := decode(raw, &params); err != nil {
		return params, err
	}

	val := validateID(params.ID).
		Is(valgo.String(params.Message.Role, "message.role").EqualTo(a2a.RoleUser)).
		Is(valgo.Int(len(params.Message.Parts), "message.parts").GreaterThan(0))

	return params, check(val)
}

/*
Send handles tasks/send: the task runs to completion and the final task is
the result.
*/
func Send(
	ctx context.Context,
	raw json.RawMessage,
	tm TaskManager,
) (any, error) {
	params, err := decodeSend(raw)

	if err != nil {
		return nil, err
	}

	return tm.SendTask(ctx, params)
}

/*
SendSubscribe handles tasks/sendSubscribe: the task runs in the background
and the caller streams its events from the returned subscription.
*/
func SendSubscribe(
	ctx context.Context,
	raw json.RawMessage,
	tm TaskManager,
) (*broker.Subscription, error) {
	params, err := decodeSend(raw)

	if err != nil {
		return nil, err
	}

	return tm.SendTaskSubscribe(ctx, params)
}
