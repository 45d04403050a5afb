package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ellipsesearch/visibility-cli/internal/ensemble"
	"github.com/ellipsesearch/visibility-cli/internal/model"
	"github.com/ellipsesearch/visibility-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for simulation requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, err := initRunner()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, runner, st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API surface. baseCtx outlives individual
// requests so async simulations survive the response being sent.
func newRouter(baseCtx context.Context, runner *ensemble.Runner, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/simulations", func(w http.ResponseWriter, req *http.Request) {
		var simReq model.SimulationRequest
		if err := json.NewDecoder(req.Body).Decode(&simReq); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if simReq.RunCount == 0 {
			simReq.RunCount = cfg.Ensemble.DefaultRunCount
		}
		if err := simReq.Validate(cfg.Ensemble.MinRunCount, cfg.Ensemble.MaxRunCount); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		sim, err := st.CreateSimulation(req.Context(), simReq)
		if err != nil {
			zap.L().Error("create simulation failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "create simulation failed"})
			return
		}

		// Run asynchronously; the caller polls GET /simulations/{id}.
		go runSimulationJob(baseCtx, runner, st, sim.ID, simReq)

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     sim.ID,
			"status": string(sim.Status),
		})
	})

	r.Get("/simulations/{id}", func(w http.ResponseWriter, req *http.Request) {
		sim, err := st.GetSimulation(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "simulation not found"})
			return
		}
		writeJSON(w, http.StatusOK, sim)
	})

	r.Get("/simulations", func(w http.ResponseWriter, req *http.Request) {
		filter := store.SimulationFilter{
			Status: model.SimulationStatus(req.URL.Query().Get("status")),
			Engine: model.Engine(req.URL.Query().Get("engine")),
			Query:  req.URL.Query().Get("query"),
		}
		sims, err := st.ListSimulations(req.Context(), filter)
		if err != nil {
			zap.L().Error("list simulations failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list simulations failed"})
			return
		}
		if sims == nil {
			sims = []model.Simulation{}
		}
		writeJSON(w, http.StatusOK, sims)
	})

	return r
}

func runSimulationJob(ctx context.Context, runner *ensemble.Runner, st store.Store, id string, req model.SimulationRequest) {
	log := zap.L().With(zap.String("simulation", id))

	if err := st.UpdateSimulationStatus(ctx, id, model.SimulationRunning); err != nil {
		log.Warn("status update failed", zap.Error(err))
	}

	result, err := runner.Run(ctx, req)
	if err != nil {
		log.Error("simulation failed", zap.Error(err))
		if fErr := st.FailSimulation(ctx, id, err.Error()); fErr != nil {
			log.Warn("failure record failed", zap.Error(fErr))
		}
		return
	}

	if err := st.UpdateSimulationResult(ctx, id, result); err != nil {
		log.Error("result save failed", zap.Error(err))
		return
	}
	log.Info("simulation complete",
		zap.Int("successful_runs", result.SuccessfulRuns),
		zap.Int("brands", len(result.AllBrands)),
	)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
