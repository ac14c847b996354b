package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"rtsprecord/duration"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "output.avi", cfg.Output)
	assert.Equal(t, "MJPG", cfg.Codec)
	assert.Equal(t, 24.0, cfg.FPS)
	assert.Equal(t, WriterOpenCV, cfg.Writer)
	assert.Equal(t, duration.None{}, cfg.Bound())
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)

	cfg.Source = "rtsp://cam"
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
source: rtsp://camera.local/stream1
output: /tmp/out.avi
duration: 5min
writer: mjpeg
fps: 30
logging:
  level: debug
  file: /tmp/rec.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rtsp://camera.local/stream1", cfg.Source)
	assert.Equal(t, "/tmp/out.avi", cfg.Output)
	assert.Equal(t, duration.Text("5min"), cfg.Bound())
	assert.Equal(t, WriterMJPEG, cfg.Writer)
	assert.Equal(t, 30.0, cfg.FPS)
	assert.Equal(t, "MJPG", cfg.Codec, "defaults survive")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Logging.MaxBackups)
	assert.NoError(t, cfg.Validate())
}

func TestDuration_KeepsYAMLType(t *testing.T) {
	tests := []struct {
		doc  string
		want duration.Value
	}{
		{"duration: 30", duration.Numeric(30)},
		{"duration: 2.5", duration.Numeric(2.5)},
		{"duration: 30sec", duration.Text("30sec")},
		{`duration: "30"`, duration.Text("30")},
	}

	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			var cfg Config
			require.NoError(t, yaml.Unmarshal([]byte(tt.doc), &cfg))
			assert.Equal(t, tt.want, cfg.Bound())
		})
	}

	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("duration:"), &cfg))
	assert.Equal(t, duration.None{}, cfg.Bound())

	err := yaml.Unmarshal([]byte("duration: [1, 2]"), &cfg)
	assert.ErrorIs(t, err, duration.ErrUnsupportedDurationType)

	err = yaml.Unmarshal([]byte("duration: true"), &cfg)
	assert.ErrorIs(t, err, duration.ErrUnsupportedDurationType)
}

func TestDuration_RoundTrip(t *testing.T) {
	out, err := yaml.Marshal(struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}{Duration{duration.Numeric(30)}, Duration{duration.Text("1day")}})
	require.NoError(t, err)

	assert.Equal(t, "a: 30\nb: 1day\n", string(out))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Codec = "H264x"
	cfg.FPS = 0
	cfg.Writer = "gstreamer"
	cfg.JPEGQuality = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)

	for _, want := range []string{"source is required", "four character", "fps must be positive", "unknown writer", "jpeg_quality", "unknown log level"} {
		assert.Contains(t, err.Error(), want)
	}

	mj := Default()
	mj.Source = "rtsp://cam"
	mj.Writer = WriterMJPEG
	mj.Codec = "XVID"
	assert.ErrorIs(t, mj.Validate(), ErrInvalidConfig)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "source: [unclosed"))
	assert.Error(t, err)
}
