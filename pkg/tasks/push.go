package tasks

import (
	"context"
	"encoding/json"

	"github.com/theapemachine/a2a-runtime/pkg/errors"
)

// SetPushNotification handles tasks/pushNotification/set, which this agent does not offer.
func SetPushNotification(
	ctx context.Context,
	raw json.RawMessage,
	tm TaskManager,
) (any, error) {
	return nil, errors.ErrPushNotificationNotSupported
}

// GetPushNotification handles tasks/pushNotification/get, which this agent does not offer.
func GetPushNotification(
	ctx context.Context,
	raw json.RawMessage,
	tm TaskManager,
) (any, error) {
	return nil, errors.ErrPushNotificationNotSupported
}
