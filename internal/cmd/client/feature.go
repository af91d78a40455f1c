package client

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// NewFeatureCommand builds the "feature" command group: register, transition,
// get, and list against the HTTP API.
func NewFeatureCommand(baseURL BaseURLFunc) *cobra.Command {
	featureCmd := &cobra.Command{Use: "feature", Short: "Feature operations"}

	registerCmd := &cobra.Command{
		Use:   "register <id>",
		Short: "Register a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, _ := cmd.Flags().GetString("batch")
			var out map[string]any
			if err := postJSON(baseURL(), "/v1/features/register",
				map[string]string{"id": args[0], "batchId": batchID}, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	registerCmd.Flags().String("batch", "", "Batch id to group this feature under")
	featureCmd.AddCommand(registerCmd)

	transitionCmd := &cobra.Command{
		Use:   "transition <id> <stage>",
		Short: "Move a feature to a later stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := postJSON(baseURL(), "/v1/features/transition",
				map[string]string{"id": args[0], "stage": args[1]}, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	featureCmd.AddCommand(transitionCmd)

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := getJSON(baseURL(), "/v1/features/get?id="+url.QueryEscape(args[0]), &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	featureCmd.AddCommand(getCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List features, optionally by stage or CEL filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, _ := cmd.Flags().GetString("stage")
			filter, _ := cmd.Flags().GetString("filter")
			if filter != "" && stage != "" {
				return fmt.Errorf("use --stage or --filter, not both")
			}
			path := "/v1/features/list"
			if stage != "" {
				path += "?stage=" + url.QueryEscape(stage)
			}
			if filter != "" {
				path = "/v1/status/features?filter=" + url.QueryEscape(filter)
			}
			var out map[string]any
			if err := getJSON(baseURL(), path, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	listCmd.Flags().String("stage", "", "Only features in this stage")
	listCmd.Flags().String("filter", "", `CEL filter, e.g. 'stage == "review"'`)
	featureCmd.AddCommand(listCmd)

	return featureCmd
}
