package mapper

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// toFloat converts a decoded JSON value to float64.
// Missing, null, non-numeric, NaN and infinite values all become 0.
func toFloat(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// toString converts a decoded JSON value to a trimmed string.
// Numbers are formatted; null and other types become "".
func toString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}

// firstPresent returns the first non-null value among keys.
func firstPresent(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// floatOf returns the first non-null value among keys as float64.
func floatOf(raw map[string]any, keys ...string) float64 {
	v, _ := firstPresent(raw, keys...)
	return toFloat(v)
}

// stringOf returns the first non-empty string among keys.
func stringOf(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := toString(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

// toTime converts an epoch number in the given scale, or an RFC3339 string, to UTC time.
// Zero, negative and unparsable values return the zero time.
func toTime(v any, scale TimestampScale) time.Time {
	if s, ok := v.(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
			return ts.UTC()
		}
	}
	n := toFloat(v)
	if n <= 0 {
		return time.Time{}
	}
	switch scale {
	case ScaleSeconds:
		sec, frac := math.Modf(n)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	default:
		return time.UnixMilli(int64(n)).UTC()
	}
}
