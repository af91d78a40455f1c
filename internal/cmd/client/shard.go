package client

import (
	"net/url"

	"github.com/spf13/cobra"
)

// NewShardCommand builds the "shard" command group: partition, reshard, map,
// and dispatcher lookup against the HTTP API.
func NewShardCommand(baseURL BaseURLFunc) *cobra.Command {
	shardCmd := &cobra.Command{Use: "shard", Short: "Dispatcher assignment operations"}

	partitionCmd := &cobra.Command{
		Use:   "partition [dispatcherId...]",
		Short: "Assign all features across dispatchers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := postJSON(baseURL(), "/v1/shards/partition",
				map[string]any{"dispatcherIds": args}, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	shardCmd.AddCommand(partitionCmd)

	reshardCmd := &cobra.Command{
		Use:   "reshard <dispatcherId...>",
		Short: "Recompute the assignment and list moved features",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := postJSON(baseURL(), "/v1/shards/reshard",
				map[string]any{"dispatcherIds": args}, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	shardCmd.AddCommand(reshardCmd)

	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "Show the current assignment by dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := getJSON(baseURL(), "/v1/shards/map", &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	shardCmd.AddCommand(mapCmd)

	dispatcherCmd := &cobra.Command{
		Use:   "dispatcher <featureId>",
		Short: "Show which dispatcher owns a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := getJSON(baseURL(), "/v1/shards/dispatcher?featureId="+url.QueryEscape(args[0]), &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	shardCmd.AddCommand(dispatcherCmd)

	return shardCmd
}
