package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ellipsesearch/visibility-cli/internal/model"
	"github.com/ellipsesearch/visibility-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored simulations",
	Long:  "Commands for listing and viewing stored ensemble simulations.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored simulations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		engine, _ := cmd.Flags().GetString("engine")
		query, _ := cmd.Flags().GetString("query")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.SimulationFilter{
			Status: model.SimulationStatus(status),
			Engine: model.Engine(engine),
			Query:  query,
			Limit:  limit,
		}

		sims, err := st.ListSimulations(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(sims) == 0 {
			fmt.Fprintln(os.Stderr, "No simulations found.")
			return nil
		}

		formatSimulationsList(os.Stdout, sims)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <simulation-id>",
	Short: "Show full details of a simulation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sim, err := st.GetSimulation(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sim)
	},
}

func formatSimulationsList(w io.Writer, sims []model.Simulation) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENGINE\tQUERY\tBRAND\tSTATUS\tVISIBILITY\tCREATED")
	for _, sim := range sims {
		visibility := "-"
		if sim.Result != nil && sim.Result.TargetBrandResult != nil {
			visibility = fmt.Sprintf("%.0f%% (%s)",
				sim.Result.TargetBrandResult.VisibilityFrequency*100,
				sim.Result.TargetBrandResult.PresenceLevel,
			)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sim.ID,
			sim.Request.Engine,
			truncate(sim.Request.Query, 40),
			sim.Request.Target.Name,
			sim.Status,
			visibility,
			sim.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush() //nolint:errcheck
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by status (queued, running, complete, failed)")
	runsListCmd.Flags().String("engine", "", "filter by engine")
	runsListCmd.Flags().String("query", "", "filter by exact query text")
	runsListCmd.Flags().Int("limit", 50, "max number of simulations to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
