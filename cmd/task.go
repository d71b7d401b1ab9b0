package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/jsonrpc"
)

var (
	taskIDFlag    string
	sessionIDFlag string
	historyFlag   int
	subscribeFlag bool

	eventStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	taskCmd = &cobra.Command{
		Use:   "task",
		Short: "Drive tasks on a running runtime",
		Long:  longTask,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	taskSendCmd = &cobra.Command{
		Use:   "send [text]",
		Short: "Send a message to a new or existing task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskIDFlag == "" {
				taskIDFlag = uuid.NewString()
			}

			params := a2a.TaskSendParams{
				ID:        taskIDFlag,
				SessionID: sessionIDFlag,
				Message:   *a2a.NewTextMessage(a2a.RoleUser, strings.Join(args, " ")),
			}

			if cmd.Flags().Changed("history") {
				params.HistoryLength = &historyFlag
			}

			if subscribeFlag {
				return streamTask(cmd, "tasks/sendSubscribe", params)
			}

			return callTask(cmd, "tasks/send", params)
		},
	}

	taskGetCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := a2a.TaskQueryParams{TaskIDParams: a2a.TaskIDParams{ID: args[0]}}

			if cmd.Flags().Changed("history") {
				params.HistoryLength = &historyFlag
			}

			return callTask(cmd, "tasks/get", params)
		},
	}

	taskCancelCmd = &cobra.Command{
		Use:   "cancel [id]",
		Short: "Cancel a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTask(cmd, "tasks/cancel", a2a.TaskIDParams{ID: args[0]})
		},
	}

	taskWatchCmd = &cobra.Command{
		Use:   "watch [id]",
		Short: "Stream the updates of a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return streamTask(cmd, "tasks/resubscribe", a2a.TaskIDParams{ID: args[0]})
		},
	}
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskSendCmd, taskGetCmd, taskCancelCmd, taskWatchCmd)

	taskCmd.PersistentFlags().String("url", "", "JSON-RPC endpoint of the runtime")
	_ = viper.BindPFlag("client.url", taskCmd.PersistentFlags().Lookup("url"))
	taskCmd.PersistentFlags().IntVar(&historyFlag, "history", 0, "Number of history messages to include, negative for all")

	taskSendCmd.Flags().StringVarP(&taskIDFlag, "id", "i", "", "Task ID, a new one is generated when empty")
	taskSendCmd.Flags().StringVarP(&sessionIDFlag, "session", "s", "", "Session ID")
	taskSendCmd.Flags().BoolVarP(&subscribeFlag, "subscribe", "S", false, "Stream updates instead of waiting for the result")
}

func newClient() *jsonrpc.RPCClient {
	return jsonrpc.NewRPCClient(viper.GetString("client.url"))
}

func callTask(cmd *cobra.Command, method string, params any) error {
	var task a2a.Task

	if err := newClient().Call(cmdContext(cmd), method, params, &task); err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), task.String())

	return nil
}

func streamTask(cmd *cobra.Command, method string, params any) error {
	out := cmd.OutOrStdout()

	return newClient().Stream(cmdContext(cmd), method, params, func(evt a2a.Event) error {
		switch evt := evt.(type) {
		case a2a.TaskStatusUpdateEvent:
			line := fmt.Sprintf("[%s] %s", evt.ID, evt.Status.State)

			if evt.Status.Message != nil {
				line += ": " + evt.Status.Message.String()
			}

			fmt.Fprintln(out, eventStyle.Render(line))
		case a2a.TaskArtifactUpdateEvent:
			fmt.Fprintln(out, eventStyle.Render(fmt.Sprintf(
				"[%s] artifact %d %s", evt.ID, evt.Artifact.Index, evt.Artifact.Name,
			)))

			for _, part := range evt.Artifact.Parts {
				if part.Text != "" {
					fmt.Fprintln(out, part.Text)
				}
			}
		}

		return nil
	})
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

var longTask = `
Send, inspect, cancel and watch tasks on a running runtime.

Examples:
  # Run a task to completion and print it
  a2a-runtime task send hello

  # Stream the updates of a new task
  a2a-runtime task send --subscribe --id t1 hello

  # Follow a task started elsewhere
  a2a-runtime task watch t1
`
