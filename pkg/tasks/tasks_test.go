package tasks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/broker"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
)

type recordingManager struct {
	send   *a2a.TaskSendParams
	query  *a2a.TaskQueryParams
	cancel *a2a.TaskIDParams
}

func (m *recordingManager) SendTask(ctx context.Context, params a2a.TaskSendParams) (*a2a.Task, error) {
	m.send = &params
	return &a2a.Task{ID: params.ID}, nil
}

func (m *recordingManager) SendTaskSubscribe(ctx context.Context, params a2a.TaskSendParams) (*broker.Subscription, error) {
	m.send = &params
	return broker.NewFinishedSubscription(params.ID), nil
}

func (m *recordingManager) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	m.query = &params
	return &a2a.Task{ID: params.ID}, nil
}

func (m *recordingManager) CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	m.cancel = &params
	return &a2a.Task{ID: params.ID}, nil
}

func (m *recordingManager) Resubscribe(ctx context.Context, params a2a.TaskQueryParams) (*broker.Subscription, error) {
	m.query = &params
	return broker.NewFinishedSubscription(params.ID), nil
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code errors.ErrorCode
	}{
		{"valid", `{"id":"t1","message":{"role":"user","parts":[{"type":"text","text":"hi"}]}}`, 0},
		{"missing id", `{"message":{"role":"user","parts":[{"type":"text","text":"hi"}]}}`, errors.ErrorCodeInvalidParams},
		{"agent role", `{"id":"t1","message":{"role":"agent","parts":[{"type":"text","text":"hi"}]}}`, errors.ErrorCodeInvalidParams},
		{"no parts", `{"id":"t1","message":{"role":"user","parts":[]}}`, errors.ErrorCodeInvalidParams},
		{"not an object", `[1,2]`, errors.ErrorCodeInvalidParams},
		{"no params", ``, errors.ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := &recordingManager{}
			result, err := Send(context.Background(), json.RawMessage(tt.raw), tm)

			if tt.code == 0 {
				require.NoError(t, err)
				assert.Equal(t, "t1", result.(*a2a.Task).ID)
				require.NotNil(t, tm.send)
				assert.Equal(t, "hi", tm.send.Message.Parts[0].Text)
				return
			}

			assert.Equal(t, tt.code, errors.Code(err))
			assert.Nil(t, tm.send, "manager must not be reached")
		})
	}
}

func TestQueryMethods(t *testing.T) {
	ctx := context.Background()
	tm := &recordingManager{}

	_, err := Get(ctx, json.RawMessage(`{"id":"t1","historyLength":3}`), tm)
	require.NoError(t, err)
	require.NotNil(t, tm.query.HistoryLength)
	assert.Equal(t, 3, *tm.query.HistoryLength)

	_, err = Cancel(ctx, json.RawMessage(`{"id":"t2"}`), tm)
	require.NoError(t, err)
	assert.Equal(t, "t2", tm.cancel.ID)

	sub, err := Resubscribe(ctx, json.RawMessage(`{"id":"t3"}`), tm)
	require.NoError(t, err)
	assert.Equal(t, "t3", sub.TaskID())

	_, err = Get(ctx, json.RawMessage(`{"id":"  "}`), tm)
	assert.Equal(t, errors.ErrorCodeInvalidParams, errors.Code(err))
}

func TestPushNotificationsUnsupported(t *testing.T) {
	_, err := SetPushNotification(context.Background(), nil, &recordingManager{})
	assert.Equal(t, errors.ErrorCodePushNotificationNotSupported, errors.Code(err))

	_, err = GetPushNotification(context.Background(), nil, &recordingManager{})
	assert.Equal(t, errors.ErrorCodePushNotificationNotSupported, errors.Code(err))
}
