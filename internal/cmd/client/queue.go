package client

import (
	"github.com/spf13/cobra"
)

// NewQueueCommand builds the "queue" command group: enqueue, claim, complete,
// requeue, and depths against the HTTP API.
func NewQueueCommand(baseURL BaseURLFunc) *cobra.Command {
	queueCmd := &cobra.Command{Use: "queue", Short: "Queue operations"}

	enqueueCmd := &cobra.Command{
		Use:   "enqueue <stage> <featureId>",
		Short: "Enqueue a feature on a stage queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := postJSON(baseURL(), "/v1/queues/enqueue",
				map[string]string{"stage": args[0], "featureId": args[1]}, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	queueCmd.AddCommand(enqueueCmd)

	claimCmd := &cobra.Command{
		Use:   "claim <stage>",
		Short: "Claim the oldest unclaimed item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID, _ := cmd.Flags().GetString("worker")
			var out map[string]any
			if err := postJSON(baseURL(), "/v1/queues/claim",
				map[string]string{"stage": args[0], "workerId": workerID}, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	claimCmd.Flags().String("worker", "", "Worker id (generated when empty)")
	queueCmd.AddCommand(claimCmd)

	completeCmd := &cobra.Command{
		Use:   "complete <stage> <featureId>",
		Short: "Complete a claimed item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID, _ := cmd.Flags().GetString("worker")
			return postJSON(baseURL(), "/v1/queues/complete",
				map[string]string{"stage": args[0], "featureId": args[1], "workerId": workerID}, nil)
		},
	}
	completeCmd.Flags().String("worker", "", "Worker id holding the claim")
	queueCmd.AddCommand(completeCmd)

	requeueCmd := &cobra.Command{
		Use:   "requeue <stage> <featureId>",
		Short: "Return a claimed item to the queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := postJSON(baseURL(), "/v1/queues/requeue",
				map[string]string{"stage": args[0], "featureId": args[1]}, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	queueCmd.AddCommand(requeueCmd)

	depthsCmd := &cobra.Command{
		Use:   "depths",
		Short: "Show queue depths",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := getJSON(baseURL(), "/v1/queues/depths", &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	queueCmd.AddCommand(depthsCmd)

	return queueCmd
}
