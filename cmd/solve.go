package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/griff-rees/estios/internal/model"
	"github.com/griff-rees/estios/internal/scenario"
	"github.com/griff-rees/estios/internal/solver"
	"github.com/griff-rees/estios/internal/store"
	"github.com/griff-rees/estios/internal/temporal"
)

var (
	solveScenarioPath string
	solveOutDir       string
	solveNoCache      bool
	solveParallelism  int
)

// periodOutcome pairs a period with its result and how it was obtained.
type periodOutcome struct {
	Period string
	Hash   string
	Cached bool
	Result *model.PeriodResult
	Err    error
}

// runScenario solves every period of an assembled scenario, consulting the
// result cache first and persisting fresh solves afterwards. Period failures
// are carried in the outcomes, not returned; the error return covers the
// run itself (cache access, cancellation).
func runScenario(ctx context.Context, st store.Store, name string, asm *scenario.Assembled, parallelism int, noCache bool) ([]periodOutcome, error) {
	outcomes := make([]periodOutcome, len(asm.Periods))
	var pending []model.PeriodInputs
	var pendingIdx []int

	for i, in := range asm.Periods {
		hash, err := solver.InputHash(in, asm.Coefficients, asm.Distances, asm.Options)
		if err != nil {
			return nil, err
		}
		outcomes[i] = periodOutcome{Period: in.Period.String(), Hash: hash}
		if !noCache {
			cached, err := st.GetResult(ctx, hash)
			if err != nil {
				return nil, err
			}
			if cached != nil {
				outcomes[i].Cached = true
				outcomes[i].Result = cached
				continue
			}
		}
		pending = append(pending, in)
		pendingIdx = append(pendingIdx, i)
	}

	if len(pending) > 0 {
		orch, err := temporal.New(asm.Coefficients, asm.Distances, asm.Options, parallelism)
		if err != nil {
			return nil, err
		}
		solved, err := orch.Run(ctx, pending)
		if err != nil {
			return nil, err
		}
		for k, out := range solved {
			i := pendingIdx[k]
			if out.Err != nil {
				outcomes[i].Err = out.Err
				continue
			}
			if err := st.PutResult(ctx, name, out.Result); err != nil {
				return nil, err
			}
			outcomes[i].Result = out.Result
		}
	}
	return outcomes, nil
}

// writeResults writes each solved period's result JSON into dir as
// <period>.json.
func writeResults(dir string, outcomes []periodOutcome) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "create output dir")
	}
	for _, out := range outcomes {
		if out.Result == nil {
			continue
		}
		data, err := json.MarshalIndent(out.Result, "", "  ")
		if err != nil {
			return eris.Wrapf(err, "marshal result %s", out.Period)
		}
		path := filepath.Join(dir, out.Period+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrapf(err, "write result %s", out.Period)
		}
	}
	return nil
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve every period of a scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("solve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		sc, err := scenario.Load(solveScenarioPath)
		if err != nil {
			return err
		}
		asm, err := sc.Assemble(filepath.Dir(solveScenarioPath))
		if err != nil {
			return err
		}
		// Scenario overrides apply on top of the configured model options.
		asm.Options = sc.Model.Apply(cfg.Model.Options())

		parallelism := cfg.Solve.Parallelism
		if asm.Parallelism > 0 {
			parallelism = asm.Parallelism
		}
		if solveParallelism > 0 {
			parallelism = solveParallelism
		}

		zap.L().Info("scenario assembled",
			zap.String("scenario", sc.Name),
			zap.Int("periods", len(asm.Periods)),
			zap.Int("regions", asm.Distances.Len()),
			zap.Int("parallelism", parallelism),
		)

		noCache := solveNoCache || cfg.Solve.NoCache
		outcomes, err := runScenario(ctx, st, sc.Name, asm, parallelism, noCache)
		if err != nil {
			return err
		}

		failed := 0
		for _, out := range outcomes {
			switch {
			case out.Err != nil:
				failed++
				zap.L().Error("period failed", zap.String("period", out.Period), zap.Error(out.Err))
				fmt.Printf("%-8s failed: %v\n", out.Period, out.Err)
			case out.Cached:
				fmt.Printf("%-8s cached   converged=%t iterations=%d\n",
					out.Period, out.Result.Diagnostics.Converged, out.Result.Diagnostics.OuterIterations)
			default:
				d := out.Result.Diagnostics
				fmt.Printf("%-8s solved   converged=%t iterations=%d residual=%.3g failed_regions=%d\n",
					out.Period, d.Converged, d.OuterIterations, d.Residual, len(d.FailedRegions))
			}
		}

		if solveOutDir != "" {
			if err := writeResults(solveOutDir, outcomes); err != nil {
				return err
			}
		}

		if failed == len(outcomes) && failed > 0 {
			return eris.Errorf("all %d periods failed", failed)
		}
		return nil
	},
}

func init() {
	solveCmd.Flags().StringVar(&solveScenarioPath, "scenario", "", "scenario YAML file (required)")
	solveCmd.Flags().StringVar(&solveOutDir, "out", "", "directory to write per-period result JSON")
	solveCmd.Flags().BoolVar(&solveNoCache, "no-cache", false, "solve even when a cached result exists")
	solveCmd.Flags().IntVar(&solveParallelism, "parallelism", 0, "max concurrent period solves (default from scenario or config)")
	_ = solveCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(solveCmd)
}
