package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/motorsense/internal/pipeline"
	"github.com/Veraticus/motorsense/internal/recording"
	"github.com/Veraticus/motorsense/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <recording.csv>",
		Short: "Classify one recording",
		Long: `Classify the motor state of a single accelerometer recording.

The CSV needs ax, ay and az columns (accel_x/x style names also work).
Other columns such as timestamps are ignored.

Examples:
  motorsense classify bench-07.csv
  motorsense classify bench-07.csv --label motorON --store
  motorsense classify bench-07.csv --json`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().String("label", "", "Expected class, shown next to the verdict")
	cmd.Flags().Bool("json", false, "Print the verdict as JSON")
	cmd.Flags().Bool("store", false, "Save the verdict to the history database")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	v := viper.GetViper()

	label, _ := cmd.Flags().GetString("label")
	asJSON, _ := cmd.Flags().GetBool("json")
	store, _ := cmd.Flags().GetBool("store")

	rec, err := recording.LoadCSV(args[0])
	if err != nil {
		return err
	}
	rec.Label = label

	p, cfg, err := buildPipeline(v)
	if err != nil {
		return err
	}

	if label != "" {
		if _, err := p.Classes().Index(label); err != nil {
			return fmt.Errorf("--label: %w", err)
		}
	}

	result, err := p.Run(ctx, rec)
	if err != nil {
		return err
	}

	slog.Debug("Classified recording",
		"recording", result.Recording,
		"class", result.Verdict.ClassName,
		"duration", result.Duration)

	if store {
		db, err := initStorage(ctx, v)
		if err != nil {
			return err
		}
		defer closeStorage(db)

		run, err := startRun(ctx, db, v, "classify", cfg)
		if err != nil {
			return err
		}
		if err := db.SaveVerdict(ctx, storedVerdict(run.ID, result)); err != nil {
			return fmt.Errorf("failed to save verdict: %w", err)
		}
		slog.Info("Saved verdict", "run_id", run.ID)
	}

	return printResult(cmd.OutOrStdout(), p, result, asJSON)
}

func printResult(w io.Writer, p *pipeline.Pipeline, result *pipeline.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Recording      string `json:"recording"`
			Label          string `json:"label,omitempty"`
			Verdict        any    `json:"verdict"`
			SkippedWindows int    `json:"skippedWindows"`
		}{
			Recording:      result.Recording,
			Label:          result.Label,
			Verdict:        result.Verdict,
			SkippedWindows: result.SkippedWindows,
		})
	}

	_, err := fmt.Fprintln(w, report.RenderVerdict(p.Classes(), report.Row{
		Recording:      result.Recording,
		Expected:       result.Label,
		Verdict:        result.Verdict,
		SkippedWindows: result.SkippedWindows,
	}))
	return err
}
