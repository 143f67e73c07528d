// Package stream runs live inference on accelerometer samples arriving over
// MQTT. Samples are buffered into fixed-size recordings, each recording is
// classified and the verdict is published back to the broker.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/recording"
)

// ErrMalformedSample is returned for payloads that are not IMU samples.
var ErrMalformedSample = errors.New("malformed sample payload")

// samplePayload mirrors the IMU producer's JSON. Pointer fields detect
// missing axes.
type samplePayload struct {
	AX *float64 `json:"ax"`
	AY *float64 `json:"ay"`
	AZ *float64 `json:"az"`
}

func (p samplePayload) sample() (model.Sample, error) {
	if p.AX == nil || p.AY == nil || p.AZ == nil {
		return model.Sample{}, fmt.Errorf("%w: missing axis", ErrMalformedSample)
	}
	s := model.Sample{AX: *p.AX, AY: *p.AY, AZ: *p.AZ}
	for _, v := range []float64{s.AX, s.AY, s.AZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Sample{}, fmt.Errorf("%w: non-finite value", ErrMalformedSample)
		}
	}
	return s, nil
}

// DecodeSamples parses a single sample object or an array of them.
func DecodeSamples(payload []byte) ([]model.Sample, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedSample)
	}

	var raw []samplePayload
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedSample, err)
		}
	} else {
		var one samplePayload
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedSample, err)
		}
		raw = []samplePayload{one}
	}

	samples := make([]model.Sample, 0, len(raw))
	for i, p := range raw {
		s, err := p.sample()
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// Buffer collects samples and cuts them into recordings of a fixed size.
// It is safe for concurrent use.
type Buffer struct {
	prefix  string
	pending []model.Sample
	size    int
	seq     int
	mu      sync.Mutex
}

// NewBuffer cuts recordings of size samples named prefix-<n>.
func NewBuffer(prefix string, size int) (*Buffer, error) {
	if size < 1 {
		return nil, fmt.Errorf("recording size must be positive, got %d", size)
	}
	return &Buffer{
		prefix:  prefix,
		size:    size,
		pending: make([]model.Sample, 0, size),
	}, nil
}

// Add appends samples and returns every recording completed by them.
func (b *Buffer) Add(samples ...model.Sample) []*recording.Recording {
	b.mu.Lock()
	defer b.mu.Unlock()

	var full []*recording.Recording
	for _, s := range samples {
		b.pending = append(b.pending, s)
		if len(b.pending) < b.size {
			continue
		}
		b.seq++
		full = append(full, &recording.Recording{
			Name:    fmt.Sprintf("%s-%d", b.prefix, b.seq),
			Samples: b.pending,
		})
		b.pending = make([]model.Sample, 0, b.size)
	}
	return full
}

// Pending returns how many samples are waiting for the next recording.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
