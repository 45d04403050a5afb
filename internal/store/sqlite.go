package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS simulations (
	id         TEXT PRIMARY KEY,
	request    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_simulations_status ON simulations(status);
CREATE INDEX IF NOT EXISTS idx_simulations_created_at ON simulations(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSimulation(ctx context.Context, req model.SimulationRequest) (*model.Simulation, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal request")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO simulations (id, request, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(reqJSON), string(model.SimulationQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert simulation")
	}

	return &model.Simulation{
		ID:        id,
		Request:   req,
		Status:    model.SimulationQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateSimulationStatus(ctx context.Context, id string, status model.SimulationStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE simulations SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update simulation status %s", id)
	}
	return checkRowsAffected(res, "simulation", id)
}

func (s *SQLiteStore) UpdateSimulationResult(ctx context.Context, id string, result *model.EnsembleSimulationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE simulations SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.SimulationComplete), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update simulation result %s", id)
	}
	return checkRowsAffected(res, "simulation", id)
}

func (s *SQLiteStore) FailSimulation(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE simulations SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.SimulationFailed), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail simulation %s", id)
	}
	return checkRowsAffected(res, "simulation", id)
}

func (s *SQLiteStore) GetSimulation(ctx context.Context, id string) (*model.Simulation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, request, status, result, error, created_at, updated_at FROM simulations WHERE id = ?`,
		id,
	)
	return scanSimulation(row)
}

func (s *SQLiteStore) ListSimulations(ctx context.Context, filter SimulationFilter) ([]model.Simulation, error) {
	query := `SELECT id, request, status, result, error, created_at, updated_at FROM simulations WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Engine != "" {
		query += ` AND json_extract(request, '$.engine') = ?`
		args = append(args, string(filter.Engine))
	}
	if filter.Query != "" {
		query += ` AND json_extract(request, '$.query') = ?`
		args = append(args, filter.Query)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list simulations")
	}
	defer rows.Close()

	var sims []model.Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, err
		}
		sims = append(sims, *sim)
	}
	return sims, eris.Wrap(rows.Err(), "sqlite: list simulations iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSimulation(row scannable) (*model.Simulation, error) {
	var sim model.Simulation
	var reqJSON string
	var resultJSON, errMsg sql.NullString

	err := row.Scan(&sim.ID, &reqJSON, &sim.Status, &resultJSON, &errMsg, &sim.CreatedAt, &sim.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("simulation not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan simulation")
	}

	if err := json.Unmarshal([]byte(reqJSON), &sim.Request); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal request")
	}
	if resultJSON.Valid {
		sim.Result = &model.EnsembleSimulationResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), sim.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	if errMsg.Valid {
		sim.Error = errMsg.String
	}
	return &sim, nil
}
