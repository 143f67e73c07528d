package config

import (
	"strings"
	"time"

	"github.com/Veraticus/motorsense/internal/classifier"
	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/features"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/pipeline"
	"github.com/Veraticus/motorsense/internal/stream"
	"github.com/Veraticus/motorsense/internal/window"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// DefaultDatabasePath is used when database.path is unset.
const DefaultDatabasePath = "$HOME/.local/share/motorsense/motorsense.db"

// SetDefaults registers default values for every known key so that
// environment variables can override them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("window.length", window.DefaultLength)
	v.SetDefault("window.stride", window.DefaultStride)
	v.SetDefault("classes", model.DefaultClassNames())
	v.SetDefault("scaler.path", "")
	v.SetDefault("scaler.mean", []float64{})
	v.SetDefault("scaler.scale", []float64{})
	v.SetDefault("classifier.url", "")
	v.SetDefault("classifier.model", "motor_state")
	v.SetDefault("classifier.timeout", 30*time.Second)
	v.SetDefault("classifier.retries", 3)
	v.SetDefault("classifier.classes", 0)
	v.SetDefault("inference.on_error", string(pipeline.PolicyAbort))
	v.SetDefault("inference.workers", 1)
	v.SetDefault("inference.batch_size", 1)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.sample_topic", "motors/samples")
	v.SetDefault("mqtt.verdict_topic", "motors/verdicts")
	v.SetDefault("stream.recording_samples", 1024)
}

// LoadPipelineConfig builds the pipeline configuration. Scaler parameters
// come from scaler.path when set, otherwise from scaler.mean and scaler.scale.
func LoadPipelineConfig(v *viper.Viper) (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	cfg.WindowLength = v.GetInt("window.length")
	cfg.Stride = v.GetInt("window.stride")
	cfg.OnError = pipeline.ErrorPolicy(strings.ToLower(v.GetString("inference.on_error")))
	cfg.Workers = v.GetInt("inference.workers")
	cfg.BatchSize = v.GetInt("inference.batch_size")

	if classes := v.GetStringSlice("classes"); len(classes) > 0 {
		cfg.Classes = classes
	}

	scaler, err := loadScaler(v)
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg.Scaler = scaler

	return cfg, nil
}

func loadScaler(v *viper.Viper) (features.ScalerParams, error) {
	if path := v.GetString("scaler.path"); path != "" {
		return features.LoadScalerParams(ExpandPath(path))
	}

	mean, err := floatSlice(v, "scaler.mean")
	if err != nil {
		return features.ScalerParams{}, err
	}
	scale, err := floatSlice(v, "scaler.scale")
	if err != nil {
		return features.ScalerParams{}, err
	}
	if len(mean) == 0 && len(scale) == 0 {
		return features.ScalerParams{}, common.NewConfigError("scaler", "set scaler.path or scaler.mean and scaler.scale")
	}
	return features.ScalerParams{Mean: mean, Scale: scale}, nil
}

// floatSlice reads a list of numbers from YAML or a comma separated
// environment value.
func floatSlice(v *viper.Viper, key string) ([]float64, error) {
	var items []any
	switch raw := v.Get(key).(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		for _, part := range strings.Split(raw, ",") {
			items = append(items, strings.TrimSpace(part))
		}
	case []any:
		items = raw
	case []float64:
		out := make([]float64, len(raw))
		copy(out, raw)
		return out, nil
	default:
		return nil, common.NewConfigError(key, "expected a list of numbers, got %T", raw)
	}

	out := make([]float64, len(items))
	for i, item := range items {
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return nil, common.NewConfigError(key, "element %d: %v", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// LoadHTTPConfig returns the model server settings.
func LoadHTTPConfig(v *viper.Viper) classifier.HTTPConfig {
	return classifier.HTTPConfig{
		BaseURL: v.GetString("classifier.url"),
		Model:   v.GetString("classifier.model"),
		Timeout: v.GetDuration("classifier.timeout"),
		Classes: v.GetInt("classifier.classes"),
	}
}

// LoadRetryOptions returns the retry policy wrapped around the model server.
// classifier.retries counts retries, so 0 means a single attempt.
func LoadRetryOptions(v *viper.Viper) (common.RetryOptions, error) {
	retries := v.GetInt("classifier.retries")
	if retries < 0 {
		return common.RetryOptions{}, common.NewConfigError("classifier.retries", "must be >= 0, got %d", retries)
	}
	return common.RetryOptions{
		MaxAttempts:  retries + 1,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}, nil
}

// DatabasePath returns the expanded SQLite path.
func DatabasePath(v *viper.Viper) string {
	path := v.GetString("database.path")
	if path == "" {
		path = DefaultDatabasePath
	}
	return ExpandPath(path)
}

// StreamConfig holds everything the watch command needs besides the pipeline.
type StreamConfig struct {
	SampleTopic string
	MQTT        stream.MQTTConfig
	Watcher     stream.WatcherConfig
}

// LoadStreamConfig reads mqtt.* and stream.* keys.
func LoadStreamConfig(v *viper.Viper) (StreamConfig, error) {
	cfg := StreamConfig{
		SampleTopic: v.GetString("mqtt.sample_topic"),
		MQTT: stream.MQTTConfig{
			Broker:   v.GetString("mqtt.broker"),
			ClientID: v.GetString("mqtt.client_id"),
		},
		Watcher: stream.WatcherConfig{
			VerdictTopic:     v.GetString("mqtt.verdict_topic"),
			RecordingSamples: v.GetInt("stream.recording_samples"),
		},
	}
	if cfg.MQTT.Broker == "" {
		return StreamConfig{}, common.NewConfigError("mqtt.broker", "must be set, e.g. tcp://localhost:1883")
	}
	if cfg.SampleTopic == "" {
		return StreamConfig{}, common.NewConfigError("mqtt.sample_topic", "must not be empty")
	}
	if cfg.Watcher.RecordingSamples < 1 {
		return StreamConfig{}, common.NewConfigError("stream.recording_samples", "must be >= 1, got %d", cfg.Watcher.RecordingSamples)
	}
	// A shorter buffer would never yield a window, so every flush would fail.
	if length := v.GetInt("window.length"); cfg.Watcher.RecordingSamples < length {
		return StreamConfig{}, common.NewConfigError("stream.recording_samples",
			"must be >= window.length %d, got %d", length, cfg.Watcher.RecordingSamples)
	}
	return cfg, nil
}
