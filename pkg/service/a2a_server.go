package service

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/broker"
	"github.com/theapemachine/a2a-runtime/pkg/jsonrpc"
	"github.com/theapemachine/a2a-runtime/pkg/metrics"
	"github.com/theapemachine/a2a-runtime/pkg/service/sse"
	"github.com/theapemachine/a2a-runtime/pkg/tasks"
)

/*
A2AServer exposes a TaskManager over JSON-RPC on /rpc, with health and
Prometheus endpoints alongside.
*/
type A2AServer struct {
	app      *fiber.App
	manager  *TaskManager
	rpc      *jsonrpc.RPCServer
	metrics  *metrics.TaskMetrics
	gatherer prometheus.Gatherer
	card     *a2a.AgentCard
	addr     string

	streamer   *sse.Streamer
	rpcHandler fiber.Handler

	// streams is canceled on shutdown so open event streams let go.
	streams     context.Context
	stopStreams context.CancelFunc
}

const shutdownTimeout = 5 * time.Second

type ServerOption func(*A2AServer)

func WithAddr(addr string) ServerOption {
	return func(srv *A2AServer) {
		srv.addr = addr
	}
}

// WithAgentCard serves card at /.well-known/agent.json.
func WithAgentCard(card *a2a.AgentCard) ServerOption {
	return func(srv *A2AServer) {
		srv.card = card
	}
}

/*
WithServerMetrics reports stream connections to m and serves gatherer on
/metrics.
*/
func WithServerMetrics(m *metrics.TaskMetrics, gatherer prometheus.Gatherer) ServerOption {
	return func(srv *A2AServer) {
		srv.metrics = m
		srv.gatherer = gatherer
	}
}

/*
NewA2AServer wires the task methods of manager into a fiber app. Call Start to
serve it.
*/
func NewA2AServer(manager *TaskManager, options ...ServerOption) *A2AServer {
	srv := &A2AServer{
		manager:  manager,
		gatherer: prometheus.DefaultGatherer,
		addr:     ":3210",
	}

	for _, option := range options {
		option(srv)
	}

	srv.streamer = sse.NewStreamer(nil)
	srv.streamer.OnOpen = srv.metrics.StreamOpened
	srv.streamer.OnClose = srv.metrics.StreamClosed
	srv.streams, srv.stopStreams = context.WithCancel(context.Background())

	srv.rpc = jsonrpc.NewRPCServer(srv.streamer)
	srv.rpcHandler = fiberadaptor.HTTPHandler(srv.rpc)
	srv.registerMethods()

	srv.app = fiber.New(fiber.Config{
		AppName:      "a2a-runtime",
		ServerHeader: "A2A-Task-Server",
	})

	srv.app.Use(logger.New(logger.Config{
		// Skip logging for scrapes and probes to reduce noise
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/metrics" || c.Path() == "/healthz"
		},
	}))

	srv.app.Get("/", srv.handleRoot)
	srv.app.Get("/.well-known/agent.json", srv.handleAgentCard)
	srv.app.Get("/healthz", healthcheck.New())
	srv.app.Get("/metrics", fiberadaptor.HTTPHandler(
		promhttp.HandlerFor(srv.gatherer, promhttp.HandlerOpts{}),
	))
	srv.app.Post("/rpc", srv.handleRPC)

	return srv
}

func (srv *A2AServer) registerMethods() {
	method := func(fn func(context.Context, json.RawMessage, tasks.TaskManager) (any, error)) jsonrpc.Method {
		return func(ctx context.Context, params json.RawMessage) (any, error) {
			return fn(ctx, params, srv.manager)
		}
	}

	stream := func(fn func(context.Context, json.RawMessage, tasks.TaskManager) (*broker.Subscription, error)) jsonrpc.StreamMethod {
		return func(ctx context.Context, params json.RawMessage) (*broker.Subscription, error) {
			return fn(ctx, params, srv.manager)
		}
	}

	srv.rpc.Register("tasks/send", method(tasks.Send))
	srv.rpc.Register("tasks/get", method(tasks.Get))
	srv.rpc.Register("tasks/cancel", method(tasks.Cancel))
	srv.rpc.Register("tasks/pushNotification/set", method(tasks.SetPushNotification))
	srv.rpc.Register("tasks/pushNotification/get", method(tasks.GetPushNotification))
	srv.rpc.RegisterStream("tasks/sendSubscribe", stream(tasks.SendSubscribe))
	srv.rpc.RegisterStream("tasks/resubscribe", stream(tasks.Resubscribe))
}

/*
handleRPC streams event methods natively so every event is flushed as it is
published. Everything else goes through the net/http JSON-RPC server.
*/
func (srv *A2AServer) handleRPC(ctx fiber.Ctx) error {
	call, ok := srv.rpc.LookupStream(ctx.Body())

	if !ok {
		return srv.rpcHandler(ctx)
	}

	// The fiber context is recycled once the handler returns, before the
	// stream writer runs.
	sub, err := call.Open(srv.streams)

	if err != nil {
		return ctx.JSON(call.Fail(err))
	}

	streamer := *srv.streamer
	streamer.Encode = call.Encode

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")

	return ctx.SendStreamWriter(func(w *bufio.Writer) {
		streamer.Pump(srv.streams, w, w.Flush, sub)
	})
}

/*
Handler returns the JSON-RPC endpoint as a plain http.Handler.
*/
func (srv *A2AServer) Handler() http.Handler {
	return srv.rpc
}

func (srv *A2AServer) App() *fiber.App {
	return srv.app
}

/*
Start serves until ctx is done, then shuts the app down.
*/
func (srv *A2AServer) Start(ctx context.Context) error {
	errs := make(chan error, 1)

	go func() {
		log.Info("serving", "addr", srv.addr)
		errs <- srv.app.Listen(srv.addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		log.Info("shutting down", "addr", srv.addr)
		srv.stopStreams()
		return srv.app.ShutdownWithTimeout(shutdownTimeout)
	}
}

func (srv *A2AServer) handleRoot(ctx fiber.Ctx) error {
	return ctx.SendString("OK")
}

func (srv *A2AServer) handleAgentCard(ctx fiber.Ctx) error {
	if srv.card == nil {
		return ctx.SendStatus(fiber.StatusNotFound)
	}

	return ctx.JSON(srv.card)
}
