package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellipsesearch/visibility-cli/internal/ensemble"
	"github.com/ellipsesearch/visibility-cli/internal/extract"
	"github.com/ellipsesearch/visibility-cli/internal/model"
	"github.com/ellipsesearch/visibility-cli/internal/simulate"
	"github.com/ellipsesearch/visibility-cli/internal/store"
)

type failingSimulator struct{}

func (failingSimulator) Simulate(context.Context, model.Engine, string, string, string) (*simulate.Output, error) {
	return nil, eris.New("engine unavailable")
}

type noopExtractor struct{}

func (noopExtractor) Extract(context.Context, extract.Input) (*model.BrandExtractionResult, error) {
	return &model.BrandExtractionResult{}, nil
}

func newTestServer(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	withTestConfig(t)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	runner := ensemble.NewRunner(failingSimulator{}, noopExtractor{}, 1, 20, 0)
	return newRouter(context.Background(), runner, st), st
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_CreateSimulation_InvalidJSON(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/simulations", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestRouter_CreateSimulation_InvalidRequest(t *testing.T) {
	router, _ := newTestServer(t)

	body, _ := json.Marshal(model.SimulationRequest{
		Engine: "bing",
		Query:  "best crm software",
		Target: model.TargetBrand{Name: "Acme"},
	})

	req := httptest.NewRequest(http.MethodPost, "/simulations", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown engine")
}

func TestRouter_CreateSimulation_Accepted(t *testing.T) {
	router, st := newTestServer(t)

	body, _ := json.Marshal(model.SimulationRequest{
		Engine: model.EnginePerplexity,
		Query:  "best crm software",
		Target: model.TargetBrand{Name: "Acme", Domain: "acme.com"},
	})

	req := httptest.NewRequest(http.MethodPost, "/simulations", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])
	assert.Equal(t, "queued", resp["status"])

	// The failing simulator drives the async job to the failed state.
	require.Eventually(t, func() bool {
		sim, err := st.GetSimulation(context.Background(), resp["id"])
		return err == nil && sim.Status == model.SimulationFailed
	}, 2*time.Second, 10*time.Millisecond)

	sim, err := st.GetSimulation(context.Background(), resp["id"])
	require.NoError(t, err)
	assert.Contains(t, sim.Error, "trials failed")
}

func TestRouter_GetSimulation_NotFound(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/simulations/nonexistent", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_ListSimulations_Empty(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/simulations", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}
