// Package jsontime handles the datetime format exchanged with the other
// platform services: a zone-less local datetime such as 2018-09-12T10:30:00.
package jsontime

import (
	"bytes"
	"fmt"
	"time"
)

// Layout is the zone-less datetime layout written on the wire.
const Layout = "2006-01-02T15:04:05"

var layouts = []string{time.RFC3339Nano, Layout, "2006-01-02T15:04:05.999999999", "2006-01-02"}

// Parse accepts RFC 3339, a zone-less datetime, or a bare date. Zone-less values are read as UTC.
func Parse(s string) (time.Time, error) {
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised datetime %q", s)
}

// Format renders t in UTC using Layout.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Time is a time.Time that (un)marshals with Parse and Format.
type Time struct {
	time.Time
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + Format(t.Time) + `"`), nil
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("datetime must be a JSON string, got %s", b)
	}
	parsed, err := Parse(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
