package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

var (
	simEngine   string
	simQuery    string
	simLanguage string
	simRegion   string
	simBrand    string
	simDomain   string
	simAliases  []string
	simRuns     int
	simVariance bool
	simSave     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run an ensemble simulation for one query",
	Long: `Runs N independent trials of a query against a generative answer
engine, extracts brands from each trial, and aggregates them into
presence statistics for the target brand and every other brand seen.

Examples:
  # 5 trials against the perplexity engine
  visibility-cli simulate --engine perplexity --query "best crm software" \
    --brand Acme --domain acme.com

  # 10 trials with significance testing, persisted to the store
  visibility-cli simulate --engine chatgpt --query "best crm software" \
    --brand Acme --domain acme.com --runs 10 --variance --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		engine, err := model.ParseEngine(simEngine)
		if err != nil {
			return err
		}

		runs := simRuns
		if runs == 0 {
			runs = cfg.Ensemble.DefaultRunCount
		}

		req := model.SimulationRequest{
			Engine:   engine,
			Query:    simQuery,
			Language: simLanguage,
			Region:   simRegion,
			Target: model.TargetBrand{
				Name:    simBrand,
				Domain:  simDomain,
				Aliases: simAliases,
			},
			RunCount:              runs,
			EnableVarianceMetrics: simVariance,
		}

		runner, err := initRunner()
		if err != nil {
			return err
		}

		var simID string
		if simSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			sim, err := st.CreateSimulation(ctx, req)
			if err != nil {
				return err
			}
			simID = sim.ID

			if err := st.UpdateSimulationStatus(ctx, simID, model.SimulationRunning); err != nil {
				return err
			}

			result, runErr := runner.Run(ctx, req)
			if runErr != nil {
				if fErr := st.FailSimulation(ctx, simID, runErr.Error()); fErr != nil {
					zap.L().Warn("failed to record simulation failure", zap.Error(fErr))
				}
				return eris.Wrap(runErr, "simulate")
			}
			if err := st.UpdateSimulationResult(ctx, simID, result); err != nil {
				return err
			}

			zap.L().Info("simulation saved", zap.String("id", simID))
			return printResultJSON(result)
		}

		result, err := runner.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "simulate")
		}
		return printResultJSON(result)
	},
}

func printResultJSON(result *model.EnsembleSimulationResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func init() {
	simulateCmd.Flags().StringVar(&simEngine, "engine", "perplexity", "answer engine (chatgpt, perplexity, gemini, grok)")
	simulateCmd.Flags().StringVar(&simQuery, "query", "", "query to simulate (required)")
	simulateCmd.Flags().StringVar(&simLanguage, "language", "en", "BCP-47 language tag for the answer")
	simulateCmd.Flags().StringVar(&simRegion, "region", "global", "audience region hint")
	simulateCmd.Flags().StringVar(&simBrand, "brand", "", "target brand name (required)")
	simulateCmd.Flags().StringVar(&simDomain, "domain", "", "target brand canonical domain")
	simulateCmd.Flags().StringSliceVar(&simAliases, "alias", nil, "target brand alias (repeatable)")
	simulateCmd.Flags().IntVar(&simRuns, "runs", 0, "trial count (default from config)")
	simulateCmd.Flags().BoolVar(&simVariance, "variance", false, "compute confidence interval and significance test")
	simulateCmd.Flags().BoolVar(&simSave, "save", false, "persist the simulation to the store")
	_ = simulateCmd.MarkFlagRequired("query")
	_ = simulateCmd.MarkFlagRequired("brand")
	rootCmd.AddCommand(simulateCmd)
}
