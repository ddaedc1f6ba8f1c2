package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/griff-rees/estios/internal/store"
)

var (
	resultsScenario  string
	resultsPeriod    string
	resultsConverged bool
	resultsLimit     int
	resultsOffset    int
)

func printResultSummaries(w io.Writer, summaries []store.ResultSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "no cached results")
		return
	}
	fmt.Fprintf(w, "%-20s %-8s %-10s %-20s %s\n", "SCENARIO", "PERIOD", "CONVERGED", "CREATED", "HASH")
	for _, rs := range summaries {
		fmt.Fprintf(w, "%-20s %-8s %-10t %-20s %s\n",
			rs.Scenario, rs.Period, rs.Converged, rs.CreatedAt.Format("2006-01-02 15:04:05"), rs.InputHash)
	}
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect and manage cached results",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("results"); err != nil {
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

		filter := store.ResultFilter{
			Scenario: resultsScenario,
			Period:   resultsPeriod,
			Limit:    resultsLimit,
			Offset:   resultsOffset,
		}
		if cmd.Flags().Changed("converged") {
			filter.Converged = &resultsConverged
		}

		summaries, err := st.ListResults(ctx, filter)
		if err != nil {
			return err
		}
		printResultSummaries(cmd.OutOrStdout(), summaries)
		return nil
	},
}

var resultsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete a scenario's cached results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("results"); err != nil {
			return err
		}
		if resultsScenario == "" {
			return eris.New("--scenario is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		n, err := st.DeleteResults(ctx, resultsScenario)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d results for scenario %q\n", n, resultsScenario)
		return nil
	},
}

func init() {
	resultsCmd.PersistentFlags().StringVar(&resultsScenario, "scenario", "", "filter by scenario name")
	resultsListCmd.Flags().StringVar(&resultsPeriod, "period", "", "filter by period, e.g. 2017Q3")
	resultsListCmd.Flags().BoolVar(&resultsConverged, "converged", false, "filter by convergence")
	resultsListCmd.Flags().IntVar(&resultsLimit, "limit", 0, "max rows (default 100)")
	resultsListCmd.Flags().IntVar(&resultsOffset, "offset", 0, "rows to skip")
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsClearCmd)
	rootCmd.AddCommand(resultsCmd)
}
