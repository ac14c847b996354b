package events

import (
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/reactivex/rxgo/v2"
)

// Stream is a Reporter that publishes events as an rxgo observable, so a
// slow consumer runs on its own goroutine instead of the drain loop.
type Stream struct {
	items      chan rxgo.Item
	observable rxgo.Observable

	mutex  sync.Mutex
	closed bool
}

// NewStream creates a stream buffering up to buffer events.
func NewStream(buffer int) *Stream {
	items := make(chan rxgo.Item, buffer)

	return &Stream{
		items:      items,
		observable: rxgo.FromChannel(items),
	}
}

// Report publishes e. Events reported after Close are dropped.
func (s *Stream) Report(e Event) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}

	s.items <- rxgo.Of(e)
}

// Observable returns the event observable.
func (s *Stream) Observable() rxgo.Observable {
	return s.observable
}

// Subscribe consumes the stream with fn. The returned channel is closed once
// the stream is closed and every event was handled.
func (s *Stream) Subscribe(fn func(Event)) rxgo.Disposed {
	return s.observable.ForEach(func(i interface{}) {
		if e, ok := i.(Event); ok {
			fn(e)
		}
	}, func(error) {}, func() {})
}

// Close completes the observable.
func (s *Stream) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.items)
}

// Log writes events to logger, using the level that matches their kind.
func Log(logger hclog.Logger) func(Event) {
	return func(e Event) {
		args := []interface{}{"session", e.Session, "event", e.Kind.String()}

		if e.Kind.Terminal() {
			args = append(args, "frames", e.Frames, "output", e.Output)
		}

		switch e.Kind {
		case ConnectionLost, Cancelled:
			logger.Warn(e.Message(), args...)
		case Failed:
			logger.Error(e.Message(), args...)
		default:
			logger.Info(e.Message(), args...)
		}
	}
}
