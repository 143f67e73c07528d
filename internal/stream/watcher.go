package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/pipeline"
	"github.com/Veraticus/motorsense/internal/recording"
)

// Classifier turns a recording into a verdict. *pipeline.Pipeline satisfies it.
type Classifier interface {
	Run(ctx context.Context, rec *recording.Recording) (*pipeline.Result, error)
}

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// VerdictMessage is the JSON published for every live recording.
type VerdictMessage struct {
	ProducedAt     time.Time `json:"producedAt"`
	Recording      string    `json:"recording"`
	ClassName      string    `json:"className"`
	WeightedScores []float64 `json:"weightedScores"`
	Votes          []int     `json:"votes"`
	FinalClass     int       `json:"finalClass"`
	WindowCount    int       `json:"windowCount"`
	SkippedWindows int       `json:"skippedWindows"`
}

// Watcher connects incoming sample messages to the classifier.
type Watcher struct {
	classifier   Classifier
	publisher    Publisher
	buffer       *Buffer
	recordings   chan *recording.Recording
	onVerdict    func(*pipeline.Result)
	verdictTopic string
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// OnVerdict, if set, is called after each verdict is published.
	OnVerdict func(*pipeline.Result)
	// VerdictTopic receives VerdictMessage payloads.
	VerdictTopic string
	// RecordingPrefix names live recordings.
	RecordingPrefix string
	// RecordingSamples is the number of samples per live recording.
	RecordingSamples int
	// QueueSize bounds recordings waiting for inference.
	QueueSize int
}

// NewWatcher creates a watcher. Call Run to start classifying.
func NewWatcher(c Classifier, p Publisher, cfg WatcherConfig) (*Watcher, error) {
	if c == nil || p == nil {
		return nil, errors.New("watcher needs a classifier and a publisher")
	}
	if cfg.VerdictTopic == "" {
		return nil, common.NewConfigError("mqtt.verdict_topic", "must not be empty")
	}
	if cfg.RecordingPrefix == "" {
		cfg.RecordingPrefix = "live"
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 8
	}

	buffer, err := NewBuffer(cfg.RecordingPrefix, cfg.RecordingSamples)
	if err != nil {
		return nil, common.NewConfigError("stream.recording_samples", "%v", err)
	}

	return &Watcher{
		classifier:   c,
		publisher:    p,
		buffer:       buffer,
		recordings:   make(chan *recording.Recording, cfg.QueueSize),
		onVerdict:    cfg.OnVerdict,
		verdictTopic: cfg.VerdictTopic,
	}, nil
}

// HandlePayload decodes one sample message. Malformed payloads are logged and
// dropped. Completed recordings are queued for Run; when the queue is full the
// oldest work is kept and the new recording is dropped.
func (w *Watcher) HandlePayload(payload []byte) {
	samples, err := DecodeSamples(payload)
	if err != nil {
		slog.Warn("Dropping sample message", "error", err, "bytes", len(payload))
		return
	}

	for _, rec := range w.buffer.Add(samples...) {
		select {
		case w.recordings <- rec:
		default:
			slog.Warn("Inference queue full, dropping recording", "recording", rec.Name)
		}
	}
}

// Run classifies queued recordings until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-w.recordings:
			if err := w.process(ctx, rec); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				common.LogError(err, "Live inference failed", common.Fields{
					"recording": rec.Name,
				})
			}
		}
	}
}

func (w *Watcher) process(ctx context.Context, rec *recording.Recording) error {
	result, err := w.classifier.Run(ctx, rec)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(VerdictMessage{
		ProducedAt:     time.Now().UTC(),
		Recording:      result.Recording,
		ClassName:      result.Verdict.ClassName,
		FinalClass:     result.Verdict.FinalClass,
		WeightedScores: result.Verdict.WeightedScores,
		Votes:          result.Verdict.Votes,
		WindowCount:    result.Verdict.WindowCount,
		SkippedWindows: result.SkippedWindows,
	})
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}

	if err := w.publisher.Publish(w.verdictTopic, payload); err != nil {
		return fmt.Errorf("failed to publish verdict: %w", err)
	}

	common.LogInfo("Published live verdict", common.Fields{
		"recording": result.Recording,
		"class":     result.Verdict.ClassName,
		"windows":   result.Verdict.WindowCount,
	})

	if w.onVerdict != nil {
		w.onVerdict(result)
	}
	return nil
}
