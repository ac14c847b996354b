package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"rtsprecord/cameras"
	"rtsprecord/config"
	"rtsprecord/duration"
	"rtsprecord/events"
	"rtsprecord/ffmpeg"
	"rtsprecord/logger"
	"rtsprecord/mjpeg"
	"rtsprecord/record"
	"rtsprecord/recorder"
	"rtsprecord/video"
)

const Version = "0.1.0"

// Exit codes
const (
	ExitOK          = 0
	ExitError       = 1
	ExitBroken      = 2
	ExitInterrupted = 130
)

func main() {
	args := os.Args[1:]

	command := "record"

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = strings.ToLower(args[0]), args[1:]
	}

	switch command {

	case "record":
		os.Exit(recordCall(args))

	case "version":
		fmt.Println("rtsprecord", Version)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q, use record or version\n", command)
		os.Exit(ExitError)

	}
}

type recordFlags struct {
	config   string
	source   string
	output   string
	duration string
	codec    string
	fps      float64
	writer   string
	level    string
	logFile  string
}

func parseRecordFlags(args []string) (*recordFlags, *flag.FlagSet, error) {
	f := &recordFlags{}

	fs := flag.NewFlagSet("record", flag.ContinueOnError)

	fs.StringVar(&f.config, "config", "", "path to a YAML config file")
	fs.StringVar(&f.source, "link", "", "stream link, e.g. rtsp://host/stream or a device index")
	fs.StringVar(&f.source, "l", "", "shorthand for -link")
	fs.StringVar(&f.output, "output", "", "output file (default output.avi)")
	fs.StringVar(&f.output, "o", "", "shorthand for -output")
	fs.StringVar(&f.duration, "duration", "", "recording length, seconds or e.g. 30sec, 5min, 1hour, 1day")
	fs.StringVar(&f.duration, "d", "", "shorthand for -duration")
	fs.StringVar(&f.codec, "codec", "", "four character codec code (default MJPG)")
	fs.StringVar(&f.codec, "c", "", "shorthand for -codec")
	fs.Float64Var(&f.fps, "fps", 0, "output frame rate (default 24)")
	fs.StringVar(&f.writer, "writer", "", "output backend: opencv or mjpeg")
	fs.StringVar(&f.level, "log-level", "", "trace, debug, info, warn or error")
	fs.StringVar(&f.logFile, "log-file", "", "also write logs to this rotating file")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}

	return f, fs, nil
}

// loadConfig layers flags set on the command line over the config file.
func loadConfig(f *recordFlags, fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()

	if f.config != "" {
		loaded, err := config.Load(f.config)

		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "link", "l":
			cfg.Source = f.source
		case "output", "o":
			cfg.Output = f.output
		case "duration", "d":
			cfg.Duration = config.Duration{Value: duration.FromArg(f.duration)}
		case "codec", "c":
			cfg.Codec = strings.ToUpper(f.codec)
		case "fps":
			cfg.FPS = f.fps
		case "writer":
			cfg.Writer = strings.ToLower(f.writer)
		case "log-level":
			cfg.Logging.Level = f.level
		case "log-file":
			cfg.Logging.File = f.logFile
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func writerOpener(cfg *config.Config) record.Opener {
	if cfg.Writer == config.WriterMJPEG {
		return mjpeg.Opener(cfg.JPEGQuality)
	}

	return ffmpeg.Open
}

func recordCall(args []string) int {
	f, fs, err := parseRecordFlags(args)

	if errors.Is(err, flag.ErrHelp) {
		return ExitOK
	}

	if err != nil {
		return ExitError
	}

	cfg, err := loadConfig(f, fs)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return ExitError
	}

	log, closer := logger.New(cfg.Logging)
	defer closer.Close()

	stream := events.NewStream(64)
	done := stream.Subscribe(events.Log(log.Named("events")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := recorder.New(
		recorder.WithSourceOpener(cameras.Opener),
		recorder.WithWriterOpener(writerOpener(cfg)),
		recorder.WithReporter(stream),
		recorder.WithLogger(log.Named("recorder")),
		recorder.WithOutputFPS(cfg.FPS),
		recorder.WithCodec(cfg.Codec),
		recorder.WithSkipEmpty(cfg.SkipEmptyFrames),
		recorder.WithFallbackFPS(cfg.FallbackFPS),
	)

	result, err := rec.Record(ctx, recorder.Request{
		Source:   cfg.Source,
		Output:   cfg.Output,
		Duration: cfg.Bound(),
	})

	stream.Close()
	<-done

	return exitCode(log, result, err)
}

func exitCode(log hclog.Logger, result recorder.Result, err error) int {
	if err == nil {
		log.Info("done", "frames", result.Frames, "skipped", result.Skipped, "elapsed", result.Elapsed)
		return ExitOK
	}

	switch {
	case result.Status == recorder.StatusInterrupted:
		return ExitInterrupted
	case errors.Is(err, video.ErrBrokenConnection):
		return ExitBroken
	case result.SessionID == "":
		// nothing was recorded, the session never started
		log.Error("error recording video stream", "error", err)
	}

	return ExitError
}
