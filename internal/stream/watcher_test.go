package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/motorsense/internal/classifier"
	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/features"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/pipeline"
	"github.com/Veraticus/motorsense/internal/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	err      error
	messages map[string][][]byte
	mu       sync.Mutex
}

func (p *recordingPublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.messages == nil {
		p.messages = make(map[string][][]byte)
	}
	p.messages[topic] = append(p.messages[topic], payload)
	return nil
}

func (p *recordingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[topic])
}

func testPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	cfg := pipeline.DefaultConfig()
	cfg.WindowLength = 4
	cfg.Stride = 2
	cfg.Scaler = features.ScalerParams{Mean: []float64{0, 0, 0, 0}, Scale: []float64{1, 1, 1, 1}}

	p, err := pipeline.New(cfg, classifier.Fixed(0.1, 0.7, 0.1, 0.1))
	require.NoError(t, err)
	return p
}

func samplePayloads(n int) []byte {
	samples := make([]map[string]float64, n)
	for i := range samples {
		samples[i] = map[string]float64{"ax": float64(i), "ay": 0, "az": 1}
	}
	payload, _ := json.Marshal(samples)
	return payload
}

func TestWatcher_PublishesVerdictPerRecording(t *testing.T) {
	pub := &recordingPublisher{}
	results := make(chan *pipeline.Result, 2)

	w, err := NewWatcher(testPipeline(t), pub, WatcherConfig{
		VerdictTopic:     "motors/verdicts",
		RecordingSamples: 8,
		OnVerdict:        func(r *pipeline.Result) { results <- r },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	w.HandlePayload([]byte(`{"broken":`))
	w.HandlePayload(samplePayloads(17))

	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			assert.Equal(t, model.ClassMotorOn, r.Verdict.ClassName)
			assert.Equal(t, 3, r.Verdict.WindowCount)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for verdict")
		}
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	require.Equal(t, 2, pub.count("motors/verdicts"))
	var msg VerdictMessage
	require.NoError(t, json.Unmarshal(pub.messages["motors/verdicts"][0], &msg))
	assert.Equal(t, "live-1", msg.Recording)
	assert.Equal(t, 1, msg.FinalClass)
	assert.Equal(t, []int{0, 3, 0, 0}, msg.Votes)
	assert.InDelta(t, 2.1, msg.WeightedScores[1], 1e-9)
	assert.Equal(t, 1, w.buffer.Pending())
}

type failingClassifier struct{}

func (failingClassifier) Run(context.Context, *recording.Recording) (*pipeline.Result, error) {
	return nil, &common.InferenceError{Err: errors.New("model offline")}
}

func TestWatcher_InferenceFailureKeepsRunning(t *testing.T) {
	pub := &recordingPublisher{}
	w, err := NewWatcher(failingClassifier{}, pub, WatcherConfig{
		VerdictTopic:     "v",
		RecordingSamples: 1,
	})
	require.NoError(t, err)

	rec := &recording.Recording{Name: "live-x"}
	assert.ErrorIs(t, w.process(context.Background(), rec), common.ErrInference)
	assert.Zero(t, pub.count("v"))
}

func TestWatcher_PublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker gone")}
	w, err := NewWatcher(testPipeline(t), pub, WatcherConfig{VerdictTopic: "v", RecordingSamples: 4})
	require.NoError(t, err)

	rec := &recording.Recording{Name: "r", Samples: make([]model.Sample, 4)}
	err = w.process(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker gone")
}

func TestNewWatcher_Validation(t *testing.T) {
	p := testPipeline(t)
	pub := &recordingPublisher{}

	_, err := NewWatcher(p, pub, WatcherConfig{RecordingSamples: 4})
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = NewWatcher(p, pub, WatcherConfig{VerdictTopic: "v"})
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = NewWatcher(nil, pub, WatcherConfig{VerdictTopic: "v", RecordingSamples: 4})
	assert.Error(t, err)
}

func TestConnect_RequiresBroker(t *testing.T) {
	_, err := Connect(MQTTConfig{})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}
