package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rtsprecord/duration"
)

// ErrInvalidConfig reports a configuration that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Writer backends
const (
	WriterOpenCV = "opencv"
	WriterMJPEG  = "mjpeg"
)

// Config holds the complete recorder configuration
type Config struct {
	// Stream source URI, e.g. rtsp://host/stream
	Source string `yaml:"source" json:"source"`

	// Output file path
	Output string `yaml:"output" json:"output"`

	// Recording bound, a number of seconds or a string such as "5min"
	Duration Duration `yaml:"duration" json:"duration"`

	// Output container settings
	Codec           string  `yaml:"codec" json:"codec"`
	FPS             float64 `yaml:"fps" json:"fps"`
	Writer          string  `yaml:"writer" json:"writer"`
	JPEGQuality     int     `yaml:"jpeg_quality" json:"jpeg_quality"`
	SkipEmptyFrames bool    `yaml:"skip_empty_frames" json:"skip_empty_frames"`

	// Frame rate assumed when the source does not report one
	FallbackFPS float64 `yaml:"fallback_fps" json:"fallback_fps"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	JSON       bool   `yaml:"json" json:"json"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Output:          "output.avi",
		Duration:        Duration{Value: duration.None{}},
		Codec:           "MJPG",
		FPS:             24,
		Writer:          WriterOpenCV,
		JPEGQuality:     90,
		SkipEmptyFrames: true,
		FallbackFPS:     25,
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Bound returns the configured duration. A null field means no bound.
func (c *Config) Bound() duration.Value {
	if c.Duration.Value == nil {
		return duration.None{}
	}

	return c.Duration.Value
}

// Validate checks the configuration values that do not need I/O.
func (c *Config) Validate() error {
	var errs []error

	if c.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}

	if c.Output == "" {
		errs = append(errs, errors.New("output is required"))
	}

	if len(c.Codec) != 4 {
		errs = append(errs, fmt.Errorf("codec %q must be a four character code", c.Codec))
	}

	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %v", c.FPS))
	}

	switch c.Writer {
	case WriterOpenCV:
	case WriterMJPEG:
		if !strings.EqualFold(c.Codec, "MJPG") {
			errs = append(errs, fmt.Errorf("writer %s only supports codec MJPG, got %q", c.Writer, c.Codec))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown writer %q (want %s or %s)", c.Writer, WriterOpenCV, WriterMJPEG))
	}

	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg_quality must be within 1-100, got %d", c.JPEGQuality))
	}

	if c.FallbackFPS < 0 {
		errs = append(errs, fmt.Errorf("fallback_fps must not be negative, got %v", c.FallbackFPS))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// Duration keeps the YAML type of the duration field, so `30` is read as
// seconds and `"30sec"` as text.
type Duration struct {
	Value duration.Value
}

// UnmarshalYAML resolves the node by its tag.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: duration must be a scalar", duration.ErrUnsupportedDurationType)
	}

	switch node.ShortTag() {
	case "!!null":
		d.Value = duration.None{}
	case "!!int", "!!float":
		var n float64

		if err := node.Decode(&n); err != nil {
			return err
		}

		d.Value = duration.Numeric(n)
	case "!!str":
		d.Value = duration.Text(node.Value)
	default:
		return fmt.Errorf("%w: %s", duration.ErrUnsupportedDurationType, node.ShortTag())
	}

	return nil
}

// MarshalYAML writes the duration back in its original form.
func (d Duration) MarshalYAML() (interface{}, error) {
	switch v := d.Value.(type) {
	case duration.Numeric:
		return float64(v), nil
	case duration.Text:
		return string(v), nil
	default:
		return nil, nil
	}
}
