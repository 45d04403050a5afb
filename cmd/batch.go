package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

var (
	batchCSV         string
	batchLimit       int
	batchConcurrency int
	batchDryRun      bool
	batchOutput      string
	batchVariance    bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run ensemble simulations for a CSV of queries",
	Long: `Reads simulation jobs from a CSV with a header row and columns
engine,query,brand,domain,aliases,runs,language,region (aliases
semicolon-separated; engine, runs, language and region optional).

Examples:
  # Validate the CSV without calling any APIs
  visibility-cli batch --csv queries.csv --dry-run

  # Run all jobs, three at a time, writing results to a file
  visibility-cli batch --csv queries.csv --output results.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		jobs, err := parseBatchCSV(batchCSV)
		if err != nil {
			return eris.Wrap(err, "batch: parse csv")
		}
		zap.L().Info("parsed csv", zap.Int("jobs", len(jobs)))

		if batchLimit > 0 && batchLimit < len(jobs) {
			jobs = jobs[:batchLimit]
		}

		if batchDryRun {
			return printJobsJSON(jobs)
		}

		runner, err := initRunner()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentJobs
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		var mu sync.Mutex
		var results []*model.EnsembleSimulationResult
		var succeeded, failed atomic.Int64

		for i, job := range jobs {
			g.Go(func() error {
				log := zap.L().With(
					zap.Int("job", i+1),
					zap.Int("of", len(jobs)),
					zap.String("query", job.Query),
				)

				sim, err := st.CreateSimulation(gCtx, job)
				if err != nil {
					failed.Add(1)
					log.Error("batch: create simulation failed", zap.Error(err))
					return nil
				}
				if err := st.UpdateSimulationStatus(gCtx, sim.ID, model.SimulationRunning); err != nil {
					log.Warn("batch: status update failed", zap.Error(err))
				}

				result, runErr := runner.Run(gCtx, job)
				if runErr != nil {
					failed.Add(1)
					log.Error("batch: simulation failed", zap.Error(runErr))
					if fErr := st.FailSimulation(gCtx, sim.ID, runErr.Error()); fErr != nil {
						log.Warn("batch: failure record failed", zap.Error(fErr))
					}
					return nil // don't abort batch on individual failure
				}

				if err := st.UpdateSimulationResult(gCtx, sim.ID, result); err != nil {
					log.Warn("batch: result save failed", zap.Error(err))
				}

				succeeded.Add(1)
				log.Info("batch: simulation complete",
					zap.Int("successful_runs", result.SuccessfulRuns),
					zap.Int("brands", len(result.AllBrands)),
				)
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
				return nil
			})
		}

		_ = g.Wait()

		zap.L().Info("batch complete",
			zap.Int("total", len(jobs)),
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)

		if batchOutput != "" {
			return writeResultsFile(batchOutput, results)
		}
		return nil
	},
}

// parseBatchCSV reads simulation jobs from a CSV file with a header row.
func parseBatchCSV(path string) ([]model.SimulationRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read header")
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"query", "brand"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("csv missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var jobs []model.SimulationRequest
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "read line %d", line)
		}

		engine := field(record, "engine")
		if engine == "" {
			engine = string(model.EnginePerplexity)
		}

		runs := cfg.Ensemble.DefaultRunCount
		if raw := field(record, "runs"); raw != "" {
			runs, err = strconv.Atoi(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "line %d: runs", line)
			}
		}

		var aliases []string
		if raw := field(record, "aliases"); raw != "" {
			for _, alias := range strings.Split(raw, ";") {
				if alias = strings.TrimSpace(alias); alias != "" {
					aliases = append(aliases, alias)
				}
			}
		}

		jobs = append(jobs, model.SimulationRequest{
			Engine:   model.Engine(engine),
			Query:    field(record, "query"),
			Language: field(record, "language"),
			Region:   field(record, "region"),
			Target: model.TargetBrand{
				Name:    field(record, "brand"),
				Domain:  field(record, "domain"),
				Aliases: aliases,
			},
			RunCount:              runs,
			EnableVarianceMetrics: batchVariance,
		})
	}

	return jobs, nil
}

func printJobsJSON(jobs []model.SimulationRequest) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(jobs)
}

func writeResultsFile(path string, results []*model.EnsembleSimulationResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create output file")
	}
	defer f.Close() //nolint:errcheck

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(results), "write results")
}

func init() {
	batchCmd.Flags().StringVar(&batchCSV, "csv", "", "path to jobs CSV (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of jobs to run")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "concurrent jobs (default from config)")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "parse the CSV and print jobs without running")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write results JSON to a file")
	batchCmd.Flags().BoolVar(&batchVariance, "variance", false, "compute variance metrics for every job")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}
