package tasks

import (
	"context"
	"encoding/json"

	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/broker"
)

/*
Resubscribe handles tasks/resubscribe, reattaching a client to the event
stream of a task it lost track of.
*/
func Resubscribe(
	ctx context.Context,
	raw json.RawMessage,
	tm TaskManager,
) (*broker.Subscription, error) {
	var params a2a.TaskQueryParams

	if err := decode(raw, &params); err != nil {
		return nil, err
	}

	if err := check(validateID(params.ID)); err != nil {
		return nil, err
	}

	return tm.Resubscribe(ctx, params)
}
