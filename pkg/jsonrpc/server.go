package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/broker"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
	"github.com/theapemachine/a2a-runtime/pkg/service/sse"
)

/*
Method answers one JSON-RPC call with a single result.
*/
type Method func(ctx context.Context, params json.RawMessage) (any, error)

/*
StreamMethod answers a JSON-RPC call with a stream of events, each sent to the
client as a response carrying the request's ID.
*/
type StreamMethod func(ctx context.Context, params json.RawMessage) (*broker.Subscription, error)

/*
RPCServer is an http.Handler speaking JSON-RPC 2.0, including batches and
notifications. Streaming methods answer with text/event-stream.
*/
type RPCServer struct {
	methods  map[string]Method
	streams  map[string]StreamMethod
	streamer *sse.Streamer
}

func NewRPCServer(streamer *sse.Streamer) *RPCServer {
	if streamer == nil {
		streamer = sse.NewStreamer(nil)
	}

	return &RPCServer{
		methods:  make(map[string]Method),
		streams:  make(map[string]StreamMethod),
		streamer: streamer,
	}
}

func (srv *RPCServer) Register(name string, method Method) {
	srv.methods[name] = method
}

func (srv *RPCServer) RegisterStream(name string, method StreamMethod) {
	srv.streams[name] = method
}

func (srv *RPCServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST supported", http.StatusMethodNotAllowed)
		return
	}

	var (
		body []byte
		err  error
	)

	if body, err = io.ReadAll(r.Body); err != nil {
		respond(w, newErrorResponse(nil, errors.ErrParseError))
		return
	}

	// Support batch requests if the first byte is '['
	body = bytes.TrimSpace(body)

	if len(body) == 0 {
		respond(w, newErrorResponse(nil, errors.ErrInvalidRequest.WithMessagef("empty request body")))
		return
	}

	if body[0] == '[' {
		srv.serveBatch(w, r, body)
		return
	}

	var req RPCRequest

	if err = json.Unmarshal(body, &req); err != nil {
		respond(w, newErrorResponse(nil, errors.ErrParseError.WithMessagef("Parse error: %v", err)))
		return
	}

	if call, ok := srv.streamCall(req); ok {
		srv.serveStream(w, r, call)
		return
	}

	resp := srv.handle(r.Context(), &req)

	// Notification – no ID → no response.
	if req.IsNotification() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respond(w, resp)
}

func (srv *RPCServer) serveBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var batch []json.RawMessage

	if err := json.Unmarshal(body, &batch); err != nil {
		respond(w, newErrorResponse(nil, errors.ErrParseError.WithMessagef("Parse error: %v", err)))
		return
	}

	if len(batch) == 0 {
		respond(w, newErrorResponse(nil, errors.ErrInvalidRequest.WithMessagef("empty batch")))
		return
	}

	var responses []RPCResponse

	for _, raw := range batch {
		var req RPCRequest

		if err := json.Unmarshal(raw, &req); err != nil {
			responses = append(responses, newErrorResponse(nil, errors.ErrInvalidRequest))
			continue
		}

		resp := srv.handle(r.Context(), &req)

		// Notifications have no ID – skip sending a response.
		if !req.IsNotification() {
			responses = append(responses, resp)
		}
	}

	if len(responses) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respond(w, responses)
}

func (srv *RPCServer) handle(ctx context.Context, req *RPCRequest) RPCResponse {
	if req.JSONRPC != Version {
		return newErrorResponse(req.ID, errors.ErrInvalidRequest.WithMessagef("jsonrpc must be %q", Version))
	}

	if req.Method == "" {
		return newErrorResponse(req.ID, errors.ErrInvalidRequest.WithMessagef("method is required"))
	}

	if _, ok := srv.streams[req.Method]; ok {
		return newErrorResponse(req.ID, errors.ErrInvalidRequest.WithMessagef(
			"streaming method %s cannot be batched", req.Method,
		))
	}

	method, ok := srv.methods[req.Method]

	if !ok {
		return newErrorResponse(req.ID, errors.ErrMethodNotFound.WithMessagef("Method not found: %s", req.Method))
	}

	result, err := method(ctx, req.Params)

	if err != nil {
		log.Warn("rpc method failed", "method", req.Method, "error", err)
		return newErrorResponse(req.ID, err)
	}

	return newResult(req.ID, result)
}

/*
StreamCall is a parsed request for a registered streaming method, ready to be
opened on whichever transport carries the event stream.
*/
type StreamCall struct {
	req    RPCRequest
	method StreamMethod
}

/*
LookupStream parses body as a single request and reports whether it calls a
streaming method. Batches, malformed bodies and plain methods report false
and are left to ServeHTTP.
*/
func (srv *RPCServer) LookupStream(body []byte) (*StreamCall, bool) {
	body = bytes.TrimSpace(body)

	if len(body) == 0 || body[0] == '[' {
		return nil, false
	}

	var req RPCRequest

	if err := json.Unmarshal(body, &req); err != nil {
		return nil, false
	}

	return srv.streamCall(req)
}

func (srv *RPCServer) streamCall(req RPCRequest) (*StreamCall, bool) {
	method, ok := srv.streams[req.Method]

	if !ok || req.JSONRPC != Version {
		return nil, false
	}

	return &StreamCall{req: req, method: method}, true
}

func (call *StreamCall) Method() string {
	return call.req.Method
}

// Open runs the method, returning the subscription to stream.
func (call *StreamCall) Open(ctx context.Context) (*broker.Subscription, error) {
	return call.method(ctx, call.req.Params)
}

// Encode wraps an event in a response carrying the request's ID.
func (call *StreamCall) Encode(evt a2a.Event) any {
	return newResult(call.req.ID, evt)
}

// Fail is the plain response for an error raised before the stream starts.
func (call *StreamCall) Fail(err error) RPCResponse {
	log.Warn("rpc stream failed", "method", call.req.Method, "error", err)
	return newErrorResponse(call.req.ID, err)
}

/*
serveStream runs a streaming method. Errors before the stream starts are
plain JSON-RPC error responses.
*/
func (srv *RPCServer) serveStream(w http.ResponseWriter, r *http.Request, call *StreamCall) {
	sub, err := call.Open(r.Context())

	if err != nil {
		respond(w, call.Fail(err))
		return
	}

	streamer := *srv.streamer
	streamer.Encode = call.Encode

	streamer.Stream(w, r, sub)
}

func respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode rpc response", "error", err)
	}
}
