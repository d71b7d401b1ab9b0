package jsonrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/broker"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
)

func newTestServer() *RPCServer {
	srv := NewRPCServer(nil)

	srv.Register("echo", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p map[string]any
		_ = json.Unmarshal(params, &p)
		return p, nil
	})

	srv.Register("fail", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, errors.ErrTaskNotFound.WithMessagef("task x not found").WithTask("x")
	})

	srv.RegisterStream("watch", func(ctx context.Context, params json.RawMessage) (*broker.Subscription, error) {
		return broker.NewFinishedSubscription("t1",
			a2a.TaskStatusUpdateEvent{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}},
			a2a.TaskArtifactUpdateEvent{ID: "t1", Artifact: a2a.NewTextArtifact("out", "hi")},
			a2a.TaskStatusUpdateEvent{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}, Final: true},
		), nil
	})

	return srv
}

func post(srv http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(rec *httptest.ResponseRecorder) rawResponse {
	var resp rawResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return resp
}

func TestRPCServer(t *testing.T) {
	Convey("Given an RPC server", t, func() {
		srv := newTestServer()

		Convey("A call returns its result under the request ID", func() {
			resp := decodeResponse(post(srv, `{"jsonrpc":"2.0","id":7,"method":"echo","params":{"a":"b"}}`))
			So(resp.Error, ShouldBeNil)
			So(string(resp.ID), ShouldEqual, "7")
			So(string(resp.Result), ShouldEqual, `{"a":"b"}`)
		})

		Convey("Method errors keep their code and data", func() {
			resp := decodeResponse(post(srv, `{"jsonrpc":"2.0","id":"r1","method":"fail"}`))
			So(resp.Error, ShouldNotBeNil)
			So(resp.Error.Code, ShouldEqual, int(errors.ErrorCodeTaskNotFound))
			So(resp.Error.Data, ShouldResemble, map[string]any{"taskId": "x"})
		})

		Convey("Malformed JSON is a ParseError with a null ID", func() {
			rec := post(srv, `{"jsonrpc":`)
			resp := decodeResponse(rec)
			So(resp.Error.Code, ShouldEqual, int(errors.ErrorCodeParseError))
			So(string(resp.ID), ShouldEqual, "null")
		})

		Convey("A wrong version is an InvalidRequest", func() {
			resp := decodeResponse(post(srv, `{"jsonrpc":"1.0","id":1,"method":"echo"}`))
			So(resp.Error.Code, ShouldEqual, int(errors.ErrorCodeInvalidRequest))
		})

		Convey("An unknown method is MethodNotFound", func() {
			resp := decodeResponse(post(srv, `{"jsonrpc":"2.0","id":1,"method":"nope"}`))
			So(resp.Error.Code, ShouldEqual, int(errors.ErrorCodeMethodNotFound))
		})

		Convey("Notifications get no body", func() {
			rec := post(srv, `{"jsonrpc":"2.0","method":"echo"}`)
			So(rec.Code, ShouldEqual, http.StatusNoContent)
			So(rec.Body.Len(), ShouldEqual, 0)
		})

		Convey("Batches answer every non-notification in order", func() {
			rec := post(srv, `[
				{"jsonrpc":"2.0","id":1,"method":"echo","params":{"n":1}},
				{"jsonrpc":"2.0","method":"echo"},
				{"jsonrpc":"2.0","id":2,"method":"fail"},
				{"jsonrpc":"2.0","id":3,"method":"watch"}
			]`)

			var responses []rawResponse
			So(json.Unmarshal(rec.Body.Bytes(), &responses), ShouldBeNil)
			So(responses, ShouldHaveLength, 3)
			So(string(responses[0].ID), ShouldEqual, "1")
			So(responses[1].Error.Code, ShouldEqual, int(errors.ErrorCodeTaskNotFound))
			So(responses[2].Error.Code, ShouldEqual, int(errors.ErrorCodeInvalidRequest))
		})

		Convey("Streaming methods answer with an event stream", func() {
			rec := post(srv, `{"jsonrpc":"2.0","id":9,"method":"watch"}`)
			So(rec.Header().Get("Content-Type"), ShouldEqual, "text/event-stream")
			So(strings.Count(rec.Body.String(), "data: "), ShouldEqual, 3)
			So(rec.Body.String(), ShouldContainSubstring, `"id":9`)
		})

		Convey("Only POST is accepted", func() {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc", nil))
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestLookupStream(t *testing.T) {
	Convey("Given an RPC server with a streaming method", t, func() {
		srv := newTestServer()

		Convey("A single streaming request is found", func() {
			call, ok := srv.LookupStream([]byte(` {"jsonrpc":"2.0","id":"s1","method":"watch"}`))
			So(ok, ShouldBeTrue)
			So(call.Method(), ShouldEqual, "watch")

			sub, err := call.Open(context.Background())
			So(err, ShouldBeNil)

			evt := <-sub.Events()
			buf, err := json.Marshal(call.Encode(evt))
			So(err, ShouldBeNil)
			So(string(buf), ShouldContainSubstring, `"id":"s1"`)
			sub.Close()

			resp := call.Fail(errors.ErrTaskNotFound)
			So(errors.Code(resp.Error), ShouldEqual, errors.ErrorCodeTaskNotFound)
		})

		Convey("Everything else is left to ServeHTTP", func() {
			for _, body := range []string{
				``,
				`not json`,
				`[{"jsonrpc":"2.0","id":1,"method":"watch"}]`,
				`{"jsonrpc":"2.0","id":1,"method":"echo"}`,
				`{"jsonrpc":"1.0","id":1,"method":"watch"}`,
			} {
				_, ok := srv.LookupStream([]byte(body))
				So(ok, ShouldBeFalse)
			}
		})
	})
}

func TestRPCClient(t *testing.T) {
	Convey("Given a client talking to an RPC server", t, func() {
		ts := httptest.NewServer(newTestServer())
		defer ts.Close()

		client := NewRPCClient(ts.URL)
		ctx := context.Background()

		Convey("Call decodes results", func() {
			var out map[string]string
			So(client.Call(ctx, "echo", map[string]string{"a": "b"}, &out), ShouldBeNil)
			So(out["a"], ShouldEqual, "b")
		})

		Convey("Call returns RPC errors with their code", func() {
			err := client.Call(ctx, "fail", nil, nil)
			So(errors.Code(err), ShouldEqual, errors.ErrorCodeTaskNotFound)
		})

		Convey("Stream delivers events up to the final one", func() {
			var events []a2a.Event

			err := client.Stream(ctx, "watch", nil, func(evt a2a.Event) error {
				events = append(events, evt)
				return nil
			})

			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 3)
			So(events[1], ShouldHaveSameTypeAs, a2a.TaskArtifactUpdateEvent{})
			So(events[2].IsFinal(), ShouldBeTrue)
		})

		Convey("Stream surfaces errors raised before streaming", func() {
			err := client.Stream(ctx, "nope", nil, func(a2a.Event) error { return nil })
			So(errors.Code(err), ShouldEqual, errors.ErrorCodeMethodNotFound)
		})
	})
}
