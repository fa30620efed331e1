// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts are tried in order when decoding. The backend emits
// RFC 3339 for timezone-aware columns but naive ISO-8601 for others.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp wraps time.Time with tolerant JSON decoding.
// Naive timestamps are interpreted as UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON accepts RFC 3339 and naive ISO-8601 strings, or null.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

// MarshalJSON encodes as RFC 3339, or null for the zero time.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}
