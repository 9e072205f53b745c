package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Timestamp is a UTC instant kept at microsecond precision. It serialises
// as epoch seconds so values survive every backend unchanged.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Microsecond)}
}

func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// TimestampFromEpoch converts fractional epoch seconds.
func TimestampFromEpoch(seconds float64) Timestamp {
	micros := int64(math.Round(seconds * 1e6))
	return Timestamp{Time: time.UnixMicro(micros).UTC()}
}

func (t Timestamp) Epoch() float64 {
	return float64(t.UnixMicro()) / 1e6
}

func (t Timestamp) Equal(other Timestamp) bool {
	return t.Time.Equal(other.Time)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(t.Epoch(), 'f', -1, 64)), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}

	seconds, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	*t = TimestampFromEpoch(seconds)
	return nil
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds, plain
// dates and numeric epoch strings.
func ParseTimestamp(s string) (Timestamp, error) {
	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		return TimestampFromEpoch(seconds), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", time.DateOnly} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return NewTimestamp(parsed), nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}
