package client

import (
	"net/url"

	"github.com/spf13/cobra"
)

// NewFolderCommand builds the "folder" command group: open, fill, status,
// and close against the HTTP API.
func NewFolderCommand(baseURL BaseURLFunc) *cobra.Command {
	folderCmd := &cobra.Command{Use: "folder", Short: "Job folder operations"}

	openCmd := &cobra.Command{
		Use:   "open <featureId>",
		Short: "Open a job folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, _ := cmd.Flags().GetString("stage")
			slots, _ := cmd.Flags().GetStringSlice("slots")
			var out map[string]any
			if err := postJSON(baseURL(), "/v1/folders/open",
				map[string]any{"featureId": args[0], "stage": stage, "requiredSlots": slots}, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	openCmd.Flags().String("stage", "", "Stage whose configured slots to use")
	openCmd.Flags().StringSlice("slots", nil, "Required slot names (overrides --stage)")
	folderCmd.AddCommand(openCmd)

	fillCmd := &cobra.Command{
		Use:   "fill <featureId> <slot>",
		Short: "Fill a folder slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			var out map[string]any
			if err := postJSON(baseURL(), "/v1/folders/fill",
				map[string]any{"featureId": args[0], "slot": args[1], "overwrite": overwrite}, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	fillCmd.Flags().Bool("overwrite", false, "Allow refilling an already filled slot")
	folderCmd.AddCommand(fillCmd)

	statusCmd := &cobra.Command{
		Use:   "status <featureId>",
		Short: "Show folder completeness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := getJSON(baseURL(), "/v1/folders/status?featureId="+url.QueryEscape(args[0]), &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	folderCmd.AddCommand(statusCmd)

	closeCmd := &cobra.Command{
		Use:   "close <featureId>",
		Short: "Close and archive a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			var out map[string]any
			if err := postJSON(baseURL(), "/v1/folders/close",
				map[string]any{"featureId": args[0], "force": force}, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	closeCmd.Flags().Bool("force", false, "Close even with missing slots")
	folderCmd.AddCommand(closeCmd)

	return folderCmd
}
