package client

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type statusSummary struct {
	Queues map[string]struct {
		Depth   int `json:"depth"`
		Claimed int `json:"claimed"`
		Ready   int `json:"ready"`
	} `json:"queues"`
	Recommendations []string `json:"recommendations"`
}

type statusSnapshot struct {
	Features []struct {
		ID    string `json:"id"`
		Stage string `json:"stage"`
	} `json:"features"`
	Alerts []struct {
		Stage    string `json:"stage"`
		Depth    int    `json:"depth"`
		RaisedAt string `json:"raisedAt"`
	} `json:"alerts"`
	ShardMap map[string][]string `json:"shardMap"`
}

// NewStatusCommand builds the "status" command: a table overview of queues,
// alerts, and shards, or the raw snapshot with --json.
func NewStatusCommand(baseURL BaseURLFunc) *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			var snap statusSnapshot
			if err := getJSON(baseURL(), "/v1/status", &snap); err != nil {
				return err
			}
			if asJSON {
				printJSON(snap)
				return nil
			}
			var sum statusSummary
			if err := getJSON(baseURL(), "/v1/queues/summary", &sum); err != nil {
				return err
			}

			alertByStage := make(map[string]string)
			for _, a := range snap.Alerts {
				alertByStage[a.Stage] = fmt.Sprintf("BOTTLENECK since %s", a.RaisedAt)
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Queue", "Depth", "Ready", "Claimed", "Alert"})
			stages := make([]string, 0, len(sum.Queues))
			for stage := range sum.Queues {
				stages = append(stages, stage)
			}
			sort.Strings(stages)
			for _, stage := range stages {
				q := sum.Queues[stage]
				t.AppendRow(table.Row{stage, q.Depth, q.Ready, q.Claimed, alertByStage[stage]})
			}
			t.Render()

			stageCounts := make(map[string]int)
			for _, f := range snap.Features {
				stageCounts[f.Stage]++
			}
			fmt.Printf("\n%d features", len(snap.Features))
			if len(stageCounts) > 0 {
				names := make([]string, 0, len(stageCounts))
				for s := range stageCounts {
					names = append(names, s)
				}
				sort.Strings(names)
				fmt.Print(" (")
				for i, s := range names {
					if i > 0 {
						fmt.Print(", ")
					}
					fmt.Printf("%s: %d", s, stageCounts[s])
				}
				fmt.Print(")")
			}
			fmt.Printf(", %d dispatchers\n", len(snap.ShardMap))

			for _, rec := range sum.Recommendations {
				fmt.Println("recommendation:", rec)
			}
			return nil
		},
	}
	statusCmd.Flags().Bool("json", false, "Print the raw snapshot JSON")
	return statusCmd
}
