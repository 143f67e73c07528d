package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show stored runs and their verdicts",
		Long: `Without arguments, list the most recent runs.
With a run ID, show every verdict of that run and, for labelled
recordings, the confusion matrix.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of runs to list (0 = all)")

	return cmd
}

// historyStore is the subset of storage the history command reads.
type historyStore interface {
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListVerdicts(ctx context.Context, runID string) ([]model.StoredVerdict, error)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	v := viper.GetViper()
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := initStorage(ctx, v)
	if err != nil {
		return err
	}
	defer closeStorage(db)

	if len(args) == 0 {
		return showRuns(ctx, cmd.OutOrStdout(), db, limit)
	}

	classes, err := model.NewClassSet(v.GetStringSlice("classes"))
	if err != nil {
		return err
	}
	return showRun(ctx, cmd.OutOrStdout(), db, classes, args[0])
}

func showRuns(ctx context.Context, w io.Writer, store historyStore, limit int) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, report.RenderRuns(runs))
	return err
}

func showRun(ctx context.Context, w io.Writer, store historyStore, classes *model.ClassSet, runID string) error {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	verdicts, err := store.ListVerdicts(ctx, run.ID)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, report.RenderRuns([]model.Run{*run})); err != nil {
		return err
	}

	rows := make([]report.Row, 0, len(verdicts))
	matrix := report.NewConfusionMatrix(classes)
	for _, sv := range verdicts {
		rows = append(rows, report.Row{
			Recording:      sv.Recording,
			Expected:       sv.ExpectedLabel,
			Verdict:        sv.Verdict,
			SkippedWindows: sv.SkippedWindows,
		})
		if sv.ExpectedLabel != "" {
			// Verdicts from runs with a different class set are shown but not scored.
			_ = matrix.Add(sv.ExpectedLabel, sv.Verdict.ClassName)
		}
	}

	if _, err := fmt.Fprintln(w, report.RenderVerdictTable(rows)); err != nil {
		return err
	}
	if matrix.Total() > 0 {
		if _, err := fmt.Fprintln(w, report.RenderMatrix(matrix)); err != nil {
			return err
		}
	}
	return nil
}
