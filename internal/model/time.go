package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// isoLayout matches the ISO strings the browser client wrote (Date.toISOString).
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Time is a timestamp stored as an ISO-8601 string. Decoding is lenient:
// empty strings and null give the zero time, numbers are unix milliseconds.
type Time struct {
	time.Time
}

func Now() Time { return Time{time.Now().UTC()} }

func At(t time.Time) Time { return Time{t.UTC()} }

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(isoLayout))
}

func (t *Time) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		t.Time = time.Time{}
		return nil
	}
	if b[0] != '"' {
		var ms int64
		if err := json.Unmarshal(b, &ms); err != nil {
			return fmt.Errorf("model.Time: %w", err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("model.Time: %w", err)
	}
	t.Time = parsed.UTC()
	return nil
}
