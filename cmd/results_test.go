package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/griff-rees/estios/internal/store"
)

func TestPrintResultSummaries_Empty(t *testing.T) {
	var sb strings.Builder
	printResultSummaries(&sb, nil)
	assert.Equal(t, "no cached results\n", sb.String())
}

func TestPrintResultSummaries(t *testing.T) {
	created := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)
	var sb strings.Builder
	printResultSummaries(&sb, []store.ResultSummary{
		{ID: "id-1", Scenario: "yorkshire", Period: "2017Q3", InputHash: "abc123", Converged: true, CreatedAt: created},
		{ID: "id-2", Scenario: "yorkshire", Period: "2017Q4", InputHash: "def456", Converged: false, CreatedAt: created},
	})

	out := sb.String()
	assert.Contains(t, out, "SCENARIO")
	assert.Contains(t, out, "2017Q3")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "2026-08-30 14:05:00")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
}
