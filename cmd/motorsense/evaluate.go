package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/motorsense/internal/cli"
	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/pipeline"
	"github.com/Veraticus/motorsense/internal/recording"
	"github.com/Veraticus/motorsense/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <dataset-dir>",
		Short: "Evaluate the classifier on a labelled dataset",
		Long: `Classify every recording of a labelled dataset and report accuracy.

The dataset is a directory with one sub-directory per class:

  dataset/
    motorOFF/*.csv
    motorON/*.csv
    motorON_NoFan/*.csv
    motorON_BadFan/*.csv

Verdicts are saved to the history database unless --no-store is given.`,
		Args: cobra.ExactArgs(1),
		RunE: runEvaluate,
	}

	cmd.Flags().Bool("no-store", false, "Do not save verdicts to the history database")
	cmd.Flags().Bool("no-progress", false, "Hide the progress bar")

	return cmd
}

// verdictSink receives verdicts as they are produced.
type verdictSink interface {
	SaveVerdict(ctx context.Context, v *model.StoredVerdict) error
}

// evaluation is the outcome of a dataset run.
type evaluation struct {
	matrix  *report.ConfusionMatrix
	rows    []report.Row
	failed  []string
	skipped int
}

// evaluateDataset classifies recs in order. Recording-level failures
// (too short, aborted inference) are counted and evaluation continues;
// configuration errors and cancellation stop it.
func evaluateDataset(ctx context.Context, p *pipeline.Pipeline, recs []*recording.Recording, sink verdictSink, runID string, progress *cli.Progress) (*evaluation, error) {
	eval := &evaluation{matrix: report.NewConfusionMatrix(p.Classes())}

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return eval, err
		}
		if progress != nil {
			progress.Step(rec.Name)
		}

		if _, err := p.Classes().Index(rec.Label); err != nil {
			slog.Warn("Skipping recording with unknown label", "recording", rec.Name, "label", rec.Label)
			eval.skipped++
			continue
		}

		result, err := p.Run(ctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, common.ErrConfiguration), errors.Is(err, context.Canceled):
			return eval, err
		case errors.Is(err, common.ErrInsufficientData):
			var dataErr *common.InsufficientDataError
			if errors.As(err, &dataErr) && dataErr.Failed > 0 {
				common.LogError(err, "Recording failed", common.Fields{"recording": rec.Name})
				eval.failed = append(eval.failed, rec.Name)
				continue
			}
			slog.Warn("Recording too short to classify", "recording", rec.Name, "error", err)
			eval.skipped++
			continue
		default:
			common.LogError(err, "Recording failed", common.Fields{"recording": rec.Name})
			eval.failed = append(eval.failed, rec.Name)
			continue
		}

		if err := eval.matrix.Add(result.Label, result.Verdict.ClassName); err != nil {
			return eval, err
		}
		eval.rows = append(eval.rows, report.Row{
			Recording:      result.Recording,
			Expected:       result.Label,
			Verdict:        result.Verdict,
			SkippedWindows: result.SkippedWindows,
		})

		if sink != nil {
			if err := sink.SaveVerdict(ctx, storedVerdict(runID, result)); err != nil {
				return eval, fmt.Errorf("failed to save verdict for %q: %w", rec.Name, err)
			}
		}
	}

	return eval, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	v := viper.GetViper()
	out := cmd.OutOrStdout()

	noStore, _ := cmd.Flags().GetBool("no-store")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	recs, err := recording.LoadDataset(args[0])
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return common.NewUserError(fmt.Sprintf("no recordings found under %s", args[0]), nil)
	}

	p, cfg, err := buildPipeline(v)
	if err != nil {
		return err
	}

	var (
		sink  verdictSink
		runID string
		hint  string
	)
	if !noStore {
		db, err := initStorage(ctx, v)
		if err != nil {
			return err
		}
		defer closeStorage(db)

		run, err := startRun(ctx, db, v, "evaluate", cfg)
		if err != nil {
			return err
		}
		sink, runID = db, run.ID
		hint = "Verdicts so far are saved. See them with: motorsense history " + run.ID
	}

	interrupts := cli.NewInterruptHandler(out)
	ctx = interrupts.HandleInterrupts(ctx, hint)

	var progress *cli.Progress
	if !noProgress {
		progress = cli.NewProgress(cmd.ErrOrStderr(), len(recs), "Evaluating recordings")
	}

	slog.Info("Evaluating dataset", "dataset", args[0], "recordings", len(recs))

	eval, err := evaluateDataset(ctx, p, recs, sink, runID, progress)
	if progress != nil {
		progress.Finish()
	}
	if err != nil && !stoppedEarly(err, interrupts.WasInterrupted()) {
		return err
	}

	return printEvaluation(out, eval, runID)
}

// stoppedEarly reports whether err only means the dataset was cut short, in
// which case the partial report is still printed. The root context can be
// canceled by main's own signal handler before the interrupt handler marks
// the run.
func stoppedEarly(err error, interrupted bool) bool {
	return interrupted || errors.Is(err, context.Canceled)
}

func printEvaluation(w io.Writer, eval *evaluation, runID string) error {
	lines := []string{
		report.RenderVerdictTable(eval.rows),
		"",
		report.RenderMatrix(eval.matrix),
	}
	if eval.skipped > 0 {
		lines = append(lines, cli.FormatWarning(fmt.Sprintf("%d recordings skipped (too short or unlabelled)", eval.skipped)))
	}
	if len(eval.failed) > 0 {
		lines = append(lines, cli.FormatError(fmt.Sprintf("%d recordings failed inference: %v", len(eval.failed), eval.failed)))
	}
	if runID != "" {
		lines = append(lines, cli.FormatInfo("Saved as run "+runID))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
