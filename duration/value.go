package duration

import (
	"fmt"
	"strconv"
	"strings"
)

// FromAny resolves a dynamically typed duration into a Value.
func FromAny(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return None{}, nil
	case Value:
		return v, nil
	case float64:
		return Numeric(v), nil
	case float32:
		return Numeric(v), nil
	case int:
		return Numeric(v), nil
	case int8:
		return Numeric(v), nil
	case int16:
		return Numeric(v), nil
	case int32:
		return Numeric(v), nil
	case int64:
		return Numeric(v), nil
	case uint:
		return Numeric(v), nil
	case uint8:
		return Numeric(v), nil
	case uint16:
		return Numeric(v), nil
	case uint32:
		return Numeric(v), nil
	case uint64:
		return Numeric(v), nil
	case string:
		return Text(v), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedDurationType, v)
	}
}

// FromArg resolves a command line argument. A plain number is taken as
// seconds, an empty argument as no bound, anything else as Text.
func FromArg(arg string) Value {
	arg = strings.TrimSpace(arg)

	if arg == "" {
		return None{}
	}

	if n, err := strconv.ParseFloat(arg, 64); err == nil {
		return Numeric(n)
	}

	return Text(arg)
}
