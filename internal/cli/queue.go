package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewQueueCmd builds the "queue" command group: status, enqueue, show,
// cancel — and its "dlq" subgroup.
func NewQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	cmd.AddCommand(
		newQueueStatusCmd(clientFn, outputFn),
		newQueueEnqueueCmd(clientFn, outputFn),
		newQueueShowCmd(clientFn, outputFn),
		newQueueCancelCmd(clientFn, outputFn),
		newDLQCmd(clientFn, outputFn),
	)

	return cmd
}

func newQueueStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue depths, in-flight count, and rate limiter state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.QueueStatus()
			if err != nil {
				return err
			}

			headers := []string{"LANE", "DEPTH"}
			rows := make([][]string, 0, len(status.Depths))
			for lane, depth := range status.Depths {
				rows = append(rows, []string{lane, strconv.Itoa(depth)})
			}
			out.Print(headers, rows, status)
			return nil
		},
	}
}

func newQueueEnqueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var priority string
	var addonID string
	var aiTool string
	var callbackURL string

	cmd := &cobra.Command{
		Use:   "enqueue URL",
		Short: "Submit a new job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.Enqueue(EnqueueRequest{
				URL:         args[0],
				Priority:    priority,
				AddonID:     addonID,
				AITool:      aiTool,
				CallbackURL: callbackURL,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job enqueued: %s", job.ID))
			out.Print(
				[]string{"ID", "PRIORITY", "STATUS", "CREATED"},
				[][]string{{job.ID, job.Priority, job.Status, job.CreatedAt}},
				job,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&priority, "priority", "normal", "Lane: high, normal, or low")
	cmd.Flags().StringVar(&addonID, "addon-id", "", "Originating addon identifier")
	cmd.Flags().StringVar(&aiTool, "ai-tool", "", "Tool-activation hint for the worker")
	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "Webhook to notify on completion")

	return cmd
}

func newQueueShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a job's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "PRIORITY", "STATUS", "ATTEMPTS", "EXTENSION", "ERROR"},
				[][]string{{job.ID, job.Priority, job.Status, strconv.Itoa(job.Attempts), job.AssignedExtensionID, job.Error}},
				job,
			)
			return nil
		},
	}
}

func newQueueCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelJob(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job cancelled: %s", args[0]))
			return nil
		},
	}
}

func newDLQCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Manage the dead letter queue",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List dead lettered jobs",
			RunE: func(cmd *cobra.Command, args []string) error {
				client := clientFn()
				out := outputFn()

				jobs, err := client.ListDLQ()
				if err != nil {
					return err
				}

				headers := []string{"ID", "PRIORITY", "ATTEMPTS", "ERROR", "CREATED"}
				rows := make([][]string, len(jobs))
				for i, j := range jobs {
					rows[i] = []string{j.ID, j.Priority, strconv.Itoa(j.Attempts), j.Error, j.CreatedAt}
				}
				out.Print(headers, rows, jobs)
				return nil
			},
		},
		&cobra.Command{
			Use:   "retry ID",
			Short: "Requeue a dead lettered job",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client := clientFn()
				out := outputFn()

				job, err := client.RetryDLQItem(args[0])
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Requeued: %s", job.ID))
				return nil
			},
		},
		&cobra.Command{
			Use:   "purge",
			Short: "Delete every dead lettered job",
			RunE: func(cmd *cobra.Command, args []string) error {
				client := clientFn()
				out := outputFn()

				if err := client.PurgeDLQ(); err != nil {
					return err
				}
				out.Success("DLQ purged")
				return nil
			},
		},
	)

	return cmd
}
