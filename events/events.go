package events

import (
	"fmt"
	"time"
)

// Kind classifies an Event.
type Kind int

const (
	// Progress is emitted once per whole second of native playback.
	Progress Kind = iota
	// Started is emitted when frames begin flowing into the output.
	Started
	// Saved is emitted when the bound was reached and the output finalized.
	Saved
	// ConnectionLost is emitted when the source dropped mid-session.
	ConnectionLost
	// Cancelled is emitted when the caller stopped the session.
	Cancelled
	// Failed is emitted for any other terminal error.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Progress:
		return "progress"
	case Started:
		return "started"
	case Saved:
		return "saved"
	case ConnectionLost:
		return "connection_lost"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the kind ends a session.
func (k Kind) Terminal() bool {
	return k >= Saved
}

// Event is an observation made during a recording session.
type Event struct {
	Session string
	Kind    Kind
	Time    time.Time
	Source  string
	Output  string
	Second  uint64
	Frames  uint64
	Err     error
}

// Message renders the event for humans.
func (e Event) Message() string {
	switch e.Kind {
	case Progress:
		return fmt.Sprintf("%d second was recorded", e.Second)
	case Started:
		return fmt.Sprintf("start recording video stream [%s]", shorten(e.Source, 24))
	case Saved:
		return fmt.Sprintf("record was successfully saved to %s (%d frames)", e.Output, e.Frames)
	case ConnectionLost:
		return fmt.Sprintf("connection was interrupted, kept %d frames in %s: %v", e.Frames, e.Output, e.Err)
	case Cancelled:
		return fmt.Sprintf("recording stopped by user, kept %d frames in %s", e.Frames, e.Output)
	case Failed:
		return fmt.Sprintf("error recording video stream: %v", e.Err)
	default:
		return e.Kind.String()
	}
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

// Reporter receives session events. Implementations must not block for long.
type Reporter interface {
	Report(e Event)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(e Event)

// Report calls fn(e).
func (fn ReporterFunc) Report(e Event) {
	fn(e)
}

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})
