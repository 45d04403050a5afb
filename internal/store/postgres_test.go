package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateSimulation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO simulations`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sim, err := s.CreateSimulation(context.Background(), model.SimulationRequest{
		Engine:   model.EnginePerplexity,
		Query:    "best crm software",
		Target:   model.TargetBrand{Name: "Acme", Domain: "acme.com"},
		RunCount: 5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sim.ID)
	assert.Equal(t, model.SimulationQueued, sim.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSimulation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, request, status, result, error, created_at, updated_at FROM simulations WHERE id = \$1`).
		WithArgs("nonexistent-id").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSimulation(context.Background(), "nonexistent-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get simulation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSimulationStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE simulations SET status`).
		WithArgs("running", pgxmock.AnyArg(), "missing-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateSimulationStatus(context.Background(), "missing-id", model.SimulationRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSimulationResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE simulations SET result`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "sim-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateSimulationResult(context.Background(), "sim-1", &model.EnsembleSimulationResult{
		Engine:         model.EnginePerplexity,
		TotalRuns:      5,
		SuccessfulRuns: 5,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailSimulation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE simulations SET status`).
		WithArgs("failed", "all trials failed", pgxmock.AnyArg(), "sim-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailSimulation(context.Background(), "sim-2", "all trials failed")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSimulations_AppliesFilters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, request, status, result, error, created_at, updated_at FROM simulations WHERE true AND status = \$1 AND request->>'engine' = \$2`).
		WithArgs("complete", "chatgpt", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "request", "status", "result", "error", "created_at", "updated_at"}))

	sims, err := s.ListSimulations(context.Background(), SimulationFilter{
		Status: model.SimulationComplete,
		Engine: model.EngineChatGPT,
	})
	require.NoError(t, err)
	assert.Empty(t, sims)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS simulations`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
