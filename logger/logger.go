package logger

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"

	"rtsprecord/config"
)

// Name of the root logger.
const Name = "rtsprecord"

// New builds the root logger. It always writes to stderr and additionally to
// a size rotated file when cfg.File is set. The returned closer releases the
// file and is never nil.
func New(cfg config.LoggingConfig) (hclog.Logger, io.Closer) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LoggingConfig, stderr io.Writer) (hclog.Logger, io.Closer) {
	var (
		output io.Writer = stderr
		closer io.Closer = nopCloser{}
	)

	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}

		output = io.MultiWriter(stderr, file)
		closer = file
	}

	level := hclog.LevelFromString(cfg.Level)

	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       Name,
		Level:      level,
		Output:     output,
		JSONFormat: cfg.JSON,
	}), closer
}

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}
