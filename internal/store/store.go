// Package store persists simulations and their serialized results.
package store

import (
	"context"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// SimulationFilter specifies criteria for listing simulations.
type SimulationFilter struct {
	Status model.SimulationStatus `json:"status,omitempty"`
	Engine model.Engine           `json:"engine,omitempty"`
	Query  string                 `json:"query,omitempty"`
	Limit  int                    `json:"limit,omitempty"`
	Offset int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for ensemble simulations.
type Store interface {
	CreateSimulation(ctx context.Context, req model.SimulationRequest) (*model.Simulation, error)
	UpdateSimulationStatus(ctx context.Context, id string, status model.SimulationStatus) error
	UpdateSimulationResult(ctx context.Context, id string, result *model.EnsembleSimulationResult) error
	FailSimulation(ctx context.Context, id string, errMsg string) error
	GetSimulation(ctx context.Context, id string) (*model.Simulation, error)
	ListSimulations(ctx context.Context, filter SimulationFilter) ([]model.Simulation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
