package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, satisfied by
// pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS simulations (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	request    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_simulations_status ON simulations(status);
CREATE INDEX IF NOT EXISTS idx_simulations_created_at ON simulations(created_at);
CREATE INDEX IF NOT EXISTS idx_simulations_engine ON simulations((request->>'engine'));
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateSimulation(ctx context.Context, req model.SimulationRequest) (*model.Simulation, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO simulations (id, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, reqJSON, string(model.SimulationQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert simulation")
	}

	return &model.Simulation{
		ID:        id,
		Request:   req,
		Status:    model.SimulationQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateSimulationStatus(ctx context.Context, id string, status model.SimulationStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE simulations SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update simulation status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("simulation not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateSimulationResult(ctx context.Context, id string, result *model.EnsembleSimulationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE simulations SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.SimulationComplete), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update simulation result %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("simulation not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) FailSimulation(ctx context.Context, id string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE simulations SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.SimulationFailed), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail simulation %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("simulation not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) GetSimulation(ctx context.Context, id string) (*model.Simulation, error) {
	var sim model.Simulation
	var reqJSON []byte
	var resultJSON *[]byte
	var errMsg *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, request, status, result, error, created_at, updated_at FROM simulations WHERE id = $1`,
		id,
	).Scan(&sim.ID, &reqJSON, &sim.Status, &resultJSON, &errMsg, &sim.CreatedAt, &sim.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get simulation %s", id)
	}

	if err := json.Unmarshal(reqJSON, &sim.Request); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal request")
	}
	if resultJSON != nil {
		sim.Result = &model.EnsembleSimulationResult{}
		if err := json.Unmarshal(*resultJSON, sim.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	if errMsg != nil {
		sim.Error = *errMsg
	}
	return &sim, nil
}

func (s *PostgresStore) ListSimulations(ctx context.Context, filter SimulationFilter) ([]model.Simulation, error) {
	query := `SELECT id, request, status, result, error, created_at, updated_at FROM simulations WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Engine != "" {
		query += fmt.Sprintf(` AND request->>'engine' = $%d`, argIdx)
		args = append(args, string(filter.Engine))
		argIdx++
	}
	if filter.Query != "" {
		query += fmt.Sprintf(` AND request->>'query' = $%d`, argIdx)
		args = append(args, filter.Query)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list simulations")
	}
	defer rows.Close()

	var sims []model.Simulation
	for rows.Next() {
		var sim model.Simulation
		var reqJSON []byte
		var resultJSON *[]byte
		var errMsg *string

		if err := rows.Scan(&sim.ID, &reqJSON, &sim.Status, &resultJSON, &errMsg, &sim.CreatedAt, &sim.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan simulation")
		}
		if err := json.Unmarshal(reqJSON, &sim.Request); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal request")
		}
		if resultJSON != nil {
			sim.Result = &model.EnsembleSimulationResult{}
			if err := json.Unmarshal(*resultJSON, sim.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		if errMsg != nil {
			sim.Error = *errMsg
		}
		sims = append(sims, sim)
	}
	return sims, eris.Wrap(rows.Err(), "postgres: list simulations iterate")
}

// NewFromConfig opens the store named by driver: "postgres" or "sqlite".
func NewFromConfig(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, databaseURL, nil)
	case "sqlite", "":
		return NewSQLite(databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
