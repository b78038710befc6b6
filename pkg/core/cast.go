package core

import (
	"fmt"
	"strconv"
	"time"
)

// CastValue converts a raw driver value to the declared semantic type of
// a property. Drivers hand back whatever their backend produces (SQLite
// reports integers as int64 and text as string; Postgres may produce
// []byte for text columns); materialization and generated-identity
// readback normalize through this single function.
//
// A nil value stays nil regardless of the target type.
func CastValue(t PropertyType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		return castString(v), nil
	case TypeInt:
		return castInt(v)
	case TypeFloat:
		return castFloat(v)
	case TypeBool:
		return castBool(v)
	case TypeTime:
		return castTime(v)
	case TypeBytes:
		return castBytes(v), nil
	default:
		return nil, fmt.Errorf("unknown property type %v", t)
	}
}

func castString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func castInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot cast %T to int", v)
	}
}

func castFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("cannot cast %T to float", v)
	}
}

func castBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case int:
		return b != 0, nil
	case []byte:
		return strconv.ParseBool(string(b))
	case string:
		return strconv.ParseBool(b)
	default:
		return false, fmt.Errorf("cannot cast %T to bool", v)
	}
}

func castTime(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts, nil
	case string:
		return parseTime(ts)
	case []byte:
		return parseTime(string(ts))
	case int64:
		return time.Unix(ts, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot cast %T to time", v)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", s)
}

func castBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}
