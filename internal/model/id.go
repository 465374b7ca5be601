package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque remote record id. json-server style backends hand out either
// numbers (1, 2, ...) or strings ("a1f3", uuid); both decode into ID and numeric
// ids are written back as numbers.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("model.ID: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// IDs is a participant/admin/readBy list.
type IDs []ID

func (s IDs) Contains(id ID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Without returns a copy of s with every occurrence of id removed.
func (s IDs) Without(id ID) IDs {
	out := make(IDs, 0, len(s))
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// With returns a copy of s with id appended when it is not already present.
func (s IDs) With(id ID) IDs {
	out := make(IDs, len(s), len(s)+1)
	copy(out, s)
	if !s.Contains(id) {
		out = append(out, id)
	}
	return out
}
