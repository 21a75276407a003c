package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewSessionsCmd builds the "sessions" command group.
func NewSessionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect connected extension sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered extension sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sessions, err := client.ListSessions()
			if err != nil {
				return err
			}

			headers := []string{"ID", "STATUS", "IN_FLIGHT", "AVG_RESPONSE_MS", "CONNECTED"}
			rows := make([][]string, len(sessions))
			for i, s := range sessions {
				rows[i] = []string{
					s.ID, s.Status,
					strconv.Itoa(s.InFlightCount),
					strconv.FormatFloat(s.AvgResponseTimeMs, 'f', 1, 64),
					s.ConnectedAt,
				}
			}
			out.Print(headers, rows, sessions)
			return nil
		},
	})

	return cmd
}

// NewDrainCmd builds the top-level "drain" command.
func NewDrainCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Stop the dispatcher from binding new work, ahead of a shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.Drain(); err != nil {
				return err
			}
			out.Success("Dispatcher draining: in-flight jobs will resolve, no new work will be bound")
			return nil
		},
	}
}
