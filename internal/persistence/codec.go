package persistence

import (
	"bytes"
	"encoding/gob"
	"time"
)

// EncodeVariables serializes process variables using encoding/gob.
// Callers must ensure that non-basic value types are registered with
// gob.Register. Empty maps encode to nil.
func EncodeVariables(vars map[string]any) ([]byte, error) {
	if len(vars) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vars); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeVariables is the inverse of EncodeVariables. Empty input decodes to
// a nil map.
func DecodeVariables(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var vars map[string]any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vars); err != nil {
		return nil, err
	}
	if len(vars) == 0 {
		return nil, nil
	}
	return vars, nil
}

// Timestamps are stored as Unix nanoseconds, with 0 for the zero time.

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
