package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
	"github.com/theapemachine/a2a-runtime/pkg/jsonrpc"
	"github.com/theapemachine/a2a-runtime/pkg/metrics"
)

func newTestServer(t *testing.T) (*A2AServer, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewTaskMetrics(reg)

	manager, _ := newManager(t, echoHandler(), WithMetrics(m))

	card := a2a.NewAgentCard("runtime", "test", "http://localhost/rpc", a2a.AgentSkill{ID: "echo", Name: "echo"})

	return NewA2AServer(manager, WithServerMetrics(m, reg), WithAgentCard(card)), reg
}

func TestA2AServerRPC(t *testing.T) {
	Convey("Given an A2A server behind an HTTP listener", t, func() {
		srv, _ := newTestServer(t)
		httpSrv := httptest.NewServer(srv.Handler())
		defer httpSrv.Close()

		client := jsonrpc.NewRPCClient(httpSrv.URL)
		ctx := context.Background()

		Convey("tasks/send returns the completed task", func() {
			var task a2a.Task
			err := client.Call(ctx, "tasks/send", sendParams("t-1", "hi"), &task)

			So(err, ShouldBeNil)
			So(task.Status.State, ShouldEqual, a2a.TaskStateCompleted)
			So(task.Artifacts, ShouldHaveLength, 1)
			So(task.Artifacts[0].Parts[0].Text, ShouldEqual, "echo: hi")

			Convey("tasks/get returns the same task", func() {
				var got a2a.Task
				err := client.Call(ctx, "tasks/get", a2a.TaskQueryParams{
					TaskIDParams: a2a.TaskIDParams{ID: "t-1"},
				}, &got)

				So(err, ShouldBeNil)
				So(got.Status.State, ShouldEqual, a2a.TaskStateCompleted)
			})

			Convey("tasks/cancel reports the task as not cancelable", func() {
				err := client.Call(ctx, "tasks/cancel", a2a.TaskIDParams{ID: "t-1"}, nil)
				So(errors.Code(err), ShouldEqual, errors.ErrorCodeTaskNotCancelable)
			})
		})

		Convey("tasks/sendSubscribe streams every event up to the final one", func() {
			var events []a2a.Event

			err := client.Stream(ctx, "tasks/sendSubscribe", sendParams("t-2", "hi"), func(evt a2a.Event) error {
				events = append(events, evt)
				return nil
			})

			So(err, ShouldBeNil)
			So(len(events), ShouldBeGreaterThanOrEqualTo, 3)
			So(events[len(events)-1].IsFinal(), ShouldBeTrue)
		})

		Convey("push notification methods are rejected", func() {
			err := client.Call(ctx, "tasks/pushNotification/get", a2a.TaskIDParams{ID: "t-1"}, nil)
			So(errors.Code(err), ShouldEqual, errors.ErrorCodePushNotificationNotSupported)
		})

		Convey("unknown methods are rejected", func() {
			err := client.Call(ctx, "tasks/unknown", nil, nil)
			So(errors.Code(err), ShouldEqual, errors.ErrorCodeMethodNotFound)
		})
	})
}

func TestA2AServerApp(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "a2a_tasks_active_runs")

	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card a2a.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	require.True(t, card.Capabilities.Streaming)
	require.Equal(t, "echo", card.Skills[0].ID)
}

func TestA2AServerStreamsThroughApp(t *testing.T) {
	release := make(chan struct{})

	handler := HandlerFunc(func(ctx context.Context, hctx *HandlerContext, emit Emit) (*a2a.Task, error) {
		if err := emit(a2a.StatusUpdate{State: a2a.TaskStateWorking}); err != nil {
			return nil, err
		}

		// Only a client that already saw the working event can let the run go on.
		select {
		case <-release:
		case <-time.After(5 * time.Second):
			return nil, stderrors.New("working event never reached the client")
		}

		return nil, emit(a2a.StatusUpdate{
			State:   a2a.TaskStateCompleted,
			Message: a2a.NewTextMessage(a2a.RoleAgent, "done"),
		})
	})

	manager, _ := newManager(t, handler)
	srv := NewA2AServer(manager)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = srv.App().Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	defer srv.App().Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		events []a2a.Event
		once   sync.Once
	)

	client := jsonrpc.NewRPCClient("http://" + ln.Addr().String() + "/rpc")

	err = client.Stream(ctx, "tasks/sendSubscribe", sendParams("t-live", "hi"), func(evt a2a.Event) error {
		events = append(events, evt)

		if status, ok := evt.(a2a.TaskStatusUpdateEvent); ok && status.Status.State == a2a.TaskStateWorking {
			once.Do(func() { close(release) })
		}

		return nil
	})

	require.NoError(t, err)
	require.Equal(t, []a2a.TaskState{
		a2a.TaskStateSubmitted, a2a.TaskStateWorking, a2a.TaskStateCompleted,
	}, states(events))
}
