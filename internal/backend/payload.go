package backend

// Payload accessors tolerant of the integer widths a wire decoder may
// hand us. A missing key or mismatched type reports ok=false; callers
// treat required-field misses as a malformed payload and drop the event.

// String returns the string value at key.
func String(m map[string]any, key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

// Int64 returns the integer value at key, converting from the numeric
// types decoders commonly produce.
func Int64(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// Bool returns the boolean value at key.
func Bool(m map[string]any, key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

// Map returns the nested map value at key.
func Map(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

// Slice returns the list value at key.
func Slice(m map[string]any, key string) ([]any, bool) {
	v, ok := m[key].([]any)
	return v, ok
}
