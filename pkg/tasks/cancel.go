package tasks

import (
	"context"
	"encoding/json"

	"github.com/theapemachine/a2a-runtime/pkg/a2a"
)

func Cancel(
	ctx context.Context,
	raw json.RawMessage,
	tm TaskManager,
) (any, error) {
	var params a2a.TaskIDParams

	if err := decode(raw, &params); err != nil {
		return nil, err
	}

	if err := check(validateID(params.ID)); err != nil {
		return nil, err
	}

	return tm.CancelTask(ctx, params)
}
