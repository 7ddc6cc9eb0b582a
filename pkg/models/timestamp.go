package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// timestampLayouts lists the accepted encodings, most specific first.
// Datetimes without a zone are wall-clock times in time.Local; bare dates
// are midnight UTC.
var timestampLayouts = []struct {
	layout string
	local  bool
}{
	{time.RFC3339Nano, false},
	{time.RFC3339, false},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02", false},
}

// Timestamp is an optional point in time. The zero value means "not set".
// Decoding never fails: null, empty, and unparsable values all decode to the
// zero value so a malformed date simply drops out of calendar buckets.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp parses s with the accepted layouts. ok is false when s is
// empty or matches none of them.
func ParseTimestamp(s string) (Timestamp, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, false
	}
	for _, l := range timestampLayouts {
		loc := time.UTC
		if l.local {
			loc = time.Local
		}
		if t, err := time.ParseInLocation(l.layout, s, loc); err == nil {
			return Timestamp{Time: t}, true
		}
	}
	return Timestamp{}, false
}

// MustTimestamp parses s and panics if it is not a valid timestamp. Intended
// for fixtures and tests.
func MustTimestamp(s string) Timestamp {
	ts, ok := ParseTimestamp(s)
	if !ok {
		panic("models: invalid timestamp " + s)
	}
	return ts
}

// String returns the RFC 3339 form, or "" when unset.
func (ts Timestamp) String() string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(time.RFC3339)
}

// MarshalYAML implements yaml.Marshaler.
func (ts Timestamp) MarshalYAML() (interface{}, error) {
	if ts.IsZero() {
		return nil, nil
	}
	return ts.String(), nil
}

// UnmarshalYAML implements yaml.v3 Unmarshaler.
func (ts *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	parsed, _ := ParseTimestamp(value.Value)
	*ts = parsed
	return nil
}

// IsZero reports whether the timestamp is unset. It also lets the
// ",omitempty" yaml tag skip unset values.
func (ts Timestamp) IsZero() bool {
	return ts.Time.IsZero()
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*ts = Timestamp{}
		return nil
	}
	parsed, _ := ParseTimestamp(s)
	*ts = parsed
	return nil
}

// Hours is an amount of time in hours. Upstream APIs send it either as a
// number or as a numeric string; anything non-numeric decodes to 0.
type Hours float64

// ToHours coerces v to Hours. Non-numeric and non-finite values give 0.
func ToHours(v interface{}) Hours {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Hours(f)
}

// Float returns h as a float64, mapping NaN and infinities to 0.
func (h Hours) Float() float64 {
	f := float64(h)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// UnmarshalYAML implements yaml.v3 Unmarshaler.
func (h *Hours) UnmarshalYAML(value *yaml.Node) error {
	*h = ToHours(value.Value)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *Hours) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		*h = 0
		return nil
	}
	*h = ToHours(raw)
	return nil
}
