package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
	"github.com/theapemachine/a2a-runtime/pkg/handlers"
	"github.com/theapemachine/a2a-runtime/pkg/metrics"
	"github.com/theapemachine/a2a-runtime/pkg/service"
	"github.com/theapemachine/a2a-runtime/pkg/stores"
	"github.com/theapemachine/a2a-runtime/pkg/stores/s3"
	"golang.org/x/sync/errgroup"
)

var (
	portFlag int
	hostFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the task runtime over JSON-RPC",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				viper.Set("server.port", portFlag)
			}

			if cmd.Flags().Changed("host") {
				viper.Set("server.host", hostFlag)
			}

			return serve(cmd.Context())
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 3210, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newTaskStore(ctx)

	if err != nil {
		return err
	}

	handlerName := viper.GetString("tasks.handler")
	handler, err := handlers.New(handlerName)

	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewTaskMetrics(reg)

	manager, err := service.NewTaskManager(
		service.WithTaskStore(store),
		service.WithHandler(handler),
		service.WithMetrics(m),
		service.WithCancelTimeout(viper.GetDuration("tasks.cancelTimeout")),
	)

	if err != nil {
		return err
	}

	addr := net.JoinHostPort(
		viper.GetString("server.host"),
		strconv.Itoa(viper.GetInt("server.port")),
	)

	card := a2a.NewAgentCard(
		viper.GetString("agent.name"),
		viper.GetString("agent.version"),
		viper.GetString("agent.url"),
		a2a.AgentSkill{
			ID:          handlerName,
			Name:        handlerName,
			Description: viper.GetString("agent.description"),
		},
	)
	card.Description = viper.GetString("agent.description")

	srv := service.NewA2AServer(
		manager,
		service.WithAddr(addr),
		service.WithServerMetrics(m, reg),
		service.WithAgentCard(card),
	)

	log.Info(
		"starting task runtime",
		"addr", addr,
		"store", viper.GetString("store.driver"),
		"handler", handlerName,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return srv.Start(groupCtx)
	})

	return group.Wait()
}

/*
newTaskStore builds the store named by store.driver.
*/
func newTaskStore(ctx context.Context) (stores.TaskStore, error) {
	switch driver := viper.GetString("store.driver"); driver {
	case "memory":
		return stores.NewInMemoryTaskStore(), nil
	case "file":
		return stores.NewFileTaskStore(expandHome(viper.GetString("store.file.dir")))
	case "s3":
		conn, err := s3.NewConn(s3.ConnConfig{
			Endpoint:  viper.GetString("store.s3.endpoint"),
			AccessKey: viper.GetString("store.s3.accessKey"),
			SecretKey: viper.GetString("store.s3.secretKey"),
			UseSSL:    viper.GetBool("store.s3.useSSL"),
		})

		if err != nil {
			return nil, err
		}

		bucket := viper.GetString("store.s3.bucket")

		if err := conn.EnsureBucket(ctx, bucket); err != nil {
			return nil, err
		}

		return s3.NewStore(conn, bucket), nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownStore, driver)
	}
}

var longServe = `
Serve the task runtime. Tasks are accepted on POST /rpc, with health on
/healthz, Prometheus metrics on /metrics and the agent card on
/.well-known/agent.json.

Examples:
  # Serve on port 8080 with the configured store
  a2a-runtime serve --port 8080

  # Keep tasks in memory only
  A2A_STORE_DRIVER=memory a2a-runtime serve
`
