// Package store persists solved period results keyed by their input hash.
// The solver never touches it; commands consult the cache before solving
// and write back afterwards.
package store

import (
	"context"
	"time"

	"github.com/griff-rees/estios/internal/model"
)

// ResultFilter specifies criteria for listing cached results.
type ResultFilter struct {
	Scenario  string `json:"scenario,omitempty"`
	Period    string `json:"period,omitempty"`
	Converged *bool  `json:"converged,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// ResultSummary is a listing row without the result payload.
type ResultSummary struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	Period    string    `json:"period"`
	InputHash string    `json:"input_hash"`
	Converged bool      `json:"converged"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence interface for the result cache.
type Store interface {
	// PutResult upserts a solved period under its input hash. Solving the
	// same inputs again overwrites the earlier row rather than duplicating it.
	PutResult(ctx context.Context, scenario string, result *model.PeriodResult) error
	// GetResult returns the cached result for an input hash, or (nil, nil)
	// on a cache miss.
	GetResult(ctx context.Context, inputHash string) (*model.PeriodResult, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]ResultSummary, error)
	// DeleteResults drops every cached result of a scenario and reports how
	// many rows went.
	DeleteResults(ctx context.Context, scenario string) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}
