// Package pipeline evaluates one recording end to end: features, normalization,
// windowing, per-window inference and confidence-weighted aggregation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/motorsense/internal/aggregate"
	"github.com/Veraticus/motorsense/internal/classifier"
	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/features"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/recording"
	"github.com/Veraticus/motorsense/internal/window"
)

// Pipeline is immutable after New and safe for concurrent use across recordings.
type Pipeline struct {
	classes    *model.ClassSet
	normalizer *features.Normalizer
	segmenter  *window.Segmenter
	adapter    *classifier.Adapter
	cfg        Config
}

// Result is the outcome for one recording.
type Result struct {
	Recording      string
	Label          string
	Verdict        model.AggregateVerdict
	SkippedWindows int
	Duration       time.Duration
}

// Correct reports whether the verdict matches a known label.
func (r *Result) Correct() bool {
	return r.Label != "" && r.Label == r.Verdict.ClassName
}

// New validates cfg and wires the stages around m.
func New(cfg Config, m classifier.Model) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	classes, err := model.NewClassSet(cfg.Classes)
	if err != nil {
		return nil, err
	}

	if n, ok := classifier.DeclaredClasses(m); ok {
		if err := classes.Validate(n); err != nil {
			return nil, err
		}
	}

	normalizer, err := features.NewNormalizer(cfg.Scaler)
	if err != nil {
		return nil, err
	}

	segmenter, err := window.NewSegmenter(cfg.WindowLength, cfg.Stride)
	if err != nil {
		return nil, err
	}

	adapter, err := classifier.NewAdapter(m, classifier.Shape{Rows: cfg.WindowLength, Cols: model.FeatureDim}, classes.Len())
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:        cfg,
		classes:    classes,
		normalizer: normalizer,
		segmenter:  segmenter,
		adapter:    adapter,
	}, nil
}

// Classes returns the class set verdicts are expressed in.
func (p *Pipeline) Classes() *model.ClassSet {
	return p.classes
}

// Run evaluates a complete recording.
func (p *Pipeline) Run(ctx context.Context, rec *recording.Recording) (*Result, error) {
	start := time.Now()

	stream := p.normalizer.Stream(rec.Samples)
	windows, err := p.segmenter.Segment(stream, rec.Label)
	if err != nil {
		return nil, fmt.Errorf("recording %q: %w", rec.Name, err)
	}

	if windows.Len() == 0 {
		return nil, &common.InsufficientDataError{
			Recording: rec.Name,
			Samples:   len(rec.Samples),
			Window:    p.segmenter.Length(),
		}
	}

	slog.Debug("Classifying recording",
		"recording", rec.Name,
		"samples", len(rec.Samples),
		"windows", windows.Len())

	outcomes, err := p.classifyAll(ctx, rec.Name, windows)
	if err != nil {
		return nil, err
	}

	records := make([]model.PredictionRecord, 0, len(outcomes))
	skipped := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			skipped++
			common.LogError(outcome.Err, "Excluding window from vote", common.Fields{
				"recording": rec.Name,
			})
			continue
		}
		records = append(records, outcome.Record)
	}

	if len(records) == 0 {
		return nil, &common.InsufficientDataError{
			Recording: rec.Name,
			Samples:   len(rec.Samples),
			Window:    p.segmenter.Length(),
			Failed:    skipped,
		}
	}

	verdict, err := aggregate.Aggregate(p.classes, records)
	if err != nil {
		return nil, fmt.Errorf("recording %q: %w", rec.Name, err)
	}

	return &Result{
		Recording:      rec.Name,
		Label:          rec.Label,
		Verdict:        verdict,
		SkippedWindows: skipped,
		Duration:       time.Since(start),
	}, nil
}

// classifyAll scores every window on a bounded worker pool. Outcomes are
// indexed by window. Under PolicyAbort the first failure cancels the
// remaining work and is returned as the error. A configuration error
// stops the run under either policy.
func (p *Pipeline) classifyAll(ctx context.Context, name string, windows *window.Windows) ([]classifier.BatchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]classifier.BatchResult, windows.Len())

	var (
		firstErr error
		errOnce  sync.Once
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	// Create work channel of window index batches
	workChan := make(chan []int, windows.Len()/p.cfg.BatchSize+1)
	batch := make([]int, 0, p.cfg.BatchSize)
	for k := 0; k < windows.Len(); k++ {
		batch = append(batch, k)
		if len(batch) == p.cfg.BatchSize {
			workChan <- batch
			batch = make([]int, 0, p.cfg.BatchSize)
		}
	}
	if len(batch) > 0 {
		workChan <- batch
	}
	close(workChan)

	workers := p.cfg.Workers
	if workers > windows.Len() {
		workers = windows.Len()
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			for indexes := range workChan {
				if ctx.Err() != nil {
					return
				}

				batchWindows := make([]window.Window, len(indexes))
				for j, k := range indexes {
					batchWindows[j] = windows.At(k)
				}

				slog.Debug("worker classifying batch",
					"worker_id", workerID,
					"recording", name,
					"first_window", indexes[0],
					"batch_size", len(indexes))

				for j, result := range p.adapter.ClassifyBatch(ctx, batchWindows) {
					attachRecording(result.Err, name)
					outcomes[indexes[j]] = result
					if result.Err == nil {
						continue
					}
					var configErr *common.ConfigError
					if errors.As(result.Err, &configErr) {
						fail(fmt.Errorf("recording %q window %d: %w", name, indexes[j], configErr))
					} else if p.cfg.OnError == PolicyAbort {
						fail(result.Err)
					}
				}
			}
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("recording %q: %w", name, context.Cause(ctx))
	}
	return outcomes, nil
}

func attachRecording(err error, name string) {
	var inferenceErr *common.InferenceError
	if errors.As(err, &inferenceErr) {
		inferenceErr.Recording = name
	}
}
