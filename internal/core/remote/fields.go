package remote

import (
	"time"
)

// String returns a string field.
func String(fields map[string]any, key string) (string, bool) {
	s, ok := fields[key].(string)
	return s, ok
}

// Bool returns a boolean field.
func Bool(fields map[string]any, key string) (bool, bool) {
	b, ok := fields[key].(bool)
	return b, ok
}

// Time returns a timestamp field. Accepted encodings are time.Time, RFC3339
// strings and unix milliseconds as produced by JSON and BSON decoders.
func Time(fields map[string]any, key string) (time.Time, bool) {
	switch v := fields[key].(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case int64:
		return time.UnixMilli(v).UTC(), true
	case int:
		return time.UnixMilli(int64(v)).UTC(), true
	case float64:
		return time.UnixMilli(int64(v)).UTC(), true
	default:
		return time.Time{}, false
	}
}

// Clone returns a shallow copy of fields.
func Clone(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
