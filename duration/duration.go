package duration

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidDuration reports a duration value that could not be parsed.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrUnsupportedDurationType reports a duration of a type the parser does not handle.
	ErrUnsupportedDurationType = errors.New("cannot apply this value to a stream duration")
)

// MaxDigitCount caps the length of the digit run in a textual duration.
// Durations such as "120sec" are rejected because of it.
const MaxDigitCount = 3

// Measures maps the accepted unit tokens to their length in seconds.
var Measures = map[string]float64{
	"sec":  1,
	"min":  60,
	"hour": 60 * 60,
	"day":  60 * 60 * 24,
}

var (
	digitRun = regexp.MustCompile(`[0-9]+`)
	alphaRun = regexp.MustCompile(`[a-zA-Z]+`)
)

// Value is a caller supplied duration before it is parsed.
type Value interface {
	isValue()
}

// Numeric is a duration already expressed in seconds.
type Numeric float64

// Text is a duration written as one number and one unit, e.g. "30sec".
type Text string

// None asks for an unbounded recording.
type None struct{}

func (Numeric) isValue() {}
func (Text) isValue()    {}
func (None) isValue()    {}

// Spec is a parsed recording bound in seconds, or unbounded.
type Spec struct {
	seconds float64
	bounded bool
}

// Unbounded returns a Spec without a limit.
func Unbounded() Spec {
	return Spec{}
}

// Bounded reports whether the spec limits the recording.
func (s Spec) Bounded() bool {
	return s.bounded
}

// Seconds returns the bound in seconds. It is zero for unbounded specs.
func (s Spec) Seconds() float64 {
	return s.seconds
}

// Duration converts the bound to a time.Duration.
func (s Spec) Duration() time.Duration {
	return time.Duration(s.seconds * float64(time.Second))
}

// Frames returns how many frames of a stream running at fps fit in the bound.
func (s Spec) Frames(fps float64) uint64 {
	if !s.bounded || fps <= 0 {
		return 0
	}

	// float noise such as 0.29*100 = 28.999999999999996
	return uint64(math.Floor(s.seconds*fps + 1e-9))
}

func (s Spec) String() string {
	if !s.bounded {
		return "unbounded"
	}

	return s.Duration().String()
}

// Parse converts a duration value into a Spec.
func Parse(v Value) (Spec, error) {
	switch v := v.(type) {
	case Numeric:
		return parseNumeric(float64(v))
	case Text:
		return parseText(string(v))
	case None:
		return Unbounded(), nil
	default:
		return Spec{}, fmt.Errorf("%w: %T", ErrUnsupportedDurationType, v)
	}
}

func parseNumeric(seconds float64) (Spec, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return Spec{}, fmt.Errorf("%w: %v is not a finite number", ErrInvalidDuration, seconds)
	}

	if seconds < 0 {
		return Spec{}, fmt.Errorf("%w: %v is negative", ErrInvalidDuration, seconds)
	}

	return Spec{seconds: seconds, bounded: true}, nil
}

func parseText(raw string) (Spec, error) {
	digits := digitRun.FindAllString(raw, -1)

	if len(digits) == 0 {
		return Spec{}, fmt.Errorf("%w: duration digit not provided", ErrInvalidDuration)
	}

	if len(digits) > 1 || len(digits[0]) >= MaxDigitCount {
		return Spec{}, fmt.Errorf("%w: multiple digits not allowed", ErrInvalidDuration)
	}

	measures := alphaRun.FindAllString(raw, -1)

	if len(measures) != 1 {
		return Spec{}, fmt.Errorf("%w: check duration measurement correctly filled", ErrInvalidDuration)
	}

	multiplier, ok := Measures[strings.ToLower(measures[0])]

	if !ok {
		return Spec{}, fmt.Errorf("%w: measure %q not accessible", ErrInvalidDuration, measures[0])
	}

	n, err := strconv.ParseFloat(digits[0], 64)

	if err != nil {
		return Spec{}, fmt.Errorf("%w: %v", ErrInvalidDuration, err)
	}

	return Spec{seconds: n * multiplier, bounded: true}, nil
}
