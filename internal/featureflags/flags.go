// Package featureflags provides runtime switches for notification delivery.
package featureflags

import (
	"time"
)

// Well-known feature flag keys.
const (
	// FlagDisablePushSending builds and logs notifications without handing them to the gateway.
	FlagDisablePushSending = "disable_push_sending"

	// FlagBackgroundSummary enables the unread summary sent when the app moves to background.
	FlagBackgroundSummary = "background_summary"

	// FlagReadStateBadgeSync enables silent badge updates after a read-state change.
	FlagReadStateBadgeSync = "read_state_badge_sync"
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// FlagList represents a list of feature flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate represents a single flag update request.
type FlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// FlagUpdateRequest represents a request to update feature flags.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	case int64:
		return v != 0
	default:
		return defaultValue
	}
}

// StringValue returns the flag value as a string.
// Returns the default value if the flag is nil or not a string.
func (f *Flag) StringValue(defaultValue string) string {
	if f == nil {
		return defaultValue
	}
	if v, ok := f.Value.(string); ok {
		return v
	}
	return defaultValue
}

// IntValue returns the flag value as an integer.
// Returns the default value if the flag is nil or not a number.
func (f *Flag) IntValue(defaultValue int) int {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

// DefaultFlags returns the default feature flags for the application.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	return map[string]*Flag{
		FlagDisablePushSending: {
			Key:       FlagDisablePushSending,
			Value:     false,
			UpdatedAt: now,
		},
		FlagBackgroundSummary: {
			Key:       FlagBackgroundSummary,
			Value:     true,
			UpdatedAt: now,
		},
		FlagReadStateBadgeSync: {
			Key:       FlagReadStateBadgeSync,
			Value:     true,
			UpdatedAt: now,
		},
	}
}

// IsKnown reports whether key is one of the well-known flags.
func IsKnown(key string) bool {
	_, ok := DefaultFlags()[key]
	return ok
}
