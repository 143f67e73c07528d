package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/pipeline"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	}
	return v
}

func TestLoadPipelineConfig_FromYAML(t *testing.T) {
	v := newViper(t, `
window:
  length: 128
  stride: 64
scaler:
  mean: [0.1, 0.2, 9.8, 9.9]
  scale: [1, 1, 0.5, 0.5]
inference:
  on_error: SKIP
  workers: 4
  batch_size: 16
`)

	cfg, err := LoadPipelineConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.WindowLength)
	assert.Equal(t, 64, cfg.Stride)
	assert.Equal(t, pipeline.PolicySkip, cfg.OnError)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, model.DefaultClassNames(), cfg.Classes)
	assert.Equal(t, []float64{0.1, 0.2, 9.8, 9.9}, cfg.Scaler.Mean)
	assert.Equal(t, []float64{1, 1, 0.5, 0.5}, cfg.Scaler.Scale)
}

func TestLoadPipelineConfig_Defaults(t *testing.T) {
	v := newViper(t, `
scaler:
  mean: [0, 0, 0, 0]
  scale: [1, 1, 1, 1]
`)
	cfg, err := LoadPipelineConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.WindowLength)
	assert.Equal(t, 128, cfg.Stride)
	assert.Equal(t, pipeline.PolicyAbort, cfg.OnError)
	assert.Equal(t, 1, cfg.Workers)
}

func TestLoadPipelineConfig_ScalerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scaler.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mean":[1,2,3,4],"scale":[5,6,7,8]}`), 0600))

	v := newViper(t, "")
	v.Set("scaler.path", path)

	cfg, err := LoadPipelineConfig(v)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, cfg.Scaler.Mean)
	assert.Equal(t, []float64{5, 6, 7, 8}, cfg.Scaler.Scale)
}

func TestLoadPipelineConfig_ScalerFromEnvString(t *testing.T) {
	v := newViper(t, "")
	v.Set("scaler.mean", "0, 0, 9.81, 9.81")
	v.Set("scaler.scale", "1,1,1,1")

	cfg, err := LoadPipelineConfig(v)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 9.81, 9.81}, cfg.Scaler.Mean)
}

func TestLoadPipelineConfig_Errors(t *testing.T) {
	t.Run("missing scaler", func(t *testing.T) {
		_, err := LoadPipelineConfig(newViper(t, ""))
		assert.ErrorIs(t, err, common.ErrConfiguration)
	})

	t.Run("non numeric scaler", func(t *testing.T) {
		v := newViper(t, "")
		v.Set("scaler.mean", "a,b,c,d")
		v.Set("scaler.scale", "1,1,1,1")
		_, err := LoadPipelineConfig(v)
		assert.ErrorIs(t, err, common.ErrConfiguration)
	})
}

func TestLoadRetryOptions(t *testing.T) {
	v := newViper(t, "")
	opts, err := LoadRetryOptions(v)
	require.NoError(t, err)
	assert.Equal(t, 4, opts.MaxAttempts)

	v.Set("classifier.retries", 0)
	opts, err = LoadRetryOptions(v)
	require.NoError(t, err)
	assert.Equal(t, 1, opts.MaxAttempts)

	v.Set("classifier.retries", -1)
	_, err = LoadRetryOptions(v)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestLoadHTTPConfig(t *testing.T) {
	v := newViper(t, `
classifier:
  url: http://models:8501
  timeout: 5s
  classes: 4
`)
	cfg := LoadHTTPConfig(v)
	assert.Equal(t, "http://models:8501", cfg.BaseURL)
	assert.Equal(t, "motor_state", cfg.Model)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Classes)
}

func TestLoadStreamConfig(t *testing.T) {
	_, err := LoadStreamConfig(newViper(t, ""))
	assert.ErrorIs(t, err, common.ErrConfiguration, "broker is required")

	v := newViper(t, `
mqtt:
  broker: tcp://localhost:1883
  client_id: bench
stream:
  recording_samples: 512
`)
	cfg, err := LoadStreamConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "bench", cfg.MQTT.ClientID)
	assert.Equal(t, "motors/samples", cfg.SampleTopic)
	assert.Equal(t, "motors/verdicts", cfg.Watcher.VerdictTopic)
	assert.Equal(t, 512, cfg.Watcher.RecordingSamples)
}

func TestLoadStreamConfig_RecordingShorterThanWindow(t *testing.T) {
	v := newViper(t, `
mqtt:
  broker: tcp://localhost:1883
stream:
  recording_samples: 100
window:
  length: 256
`)
	_, err := LoadStreamConfig(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	var configErr *common.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "stream.recording_samples", configErr.Field)

	v.Set("stream.recording_samples", 256)
	_, err = LoadStreamConfig(v)
	assert.NoError(t, err, "one full window is enough")
}

func TestDatabasePath(t *testing.T) {
	t.Setenv("MOTORSENSE_TEST_DIR", "/tmp/ms")
	v := newViper(t, "")
	v.Set("database.path", "$MOTORSENSE_TEST_DIR/history.db")
	assert.Equal(t, "/tmp/ms/history.db", DatabasePath(v))
}
