package models

import (
	"time"

	"github.com/turtacn/quotagate/pkg/constants"
)

// QuotaPolicy is the limit and window length that govern one action category.
type QuotaPolicy struct {
	Action        constants.ActionCategory `json:"action"`
	Limit         int64                    `json:"limit"`
	WindowSeconds int64                    `json:"window_seconds"`
	// Overridden is true when the limit came from the test-mode override.
	Overridden bool `json:"overridden,omitempty"`
}

// Window returns the policy window as a duration.
func (p QuotaPolicy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// IdentityKey is a resolved caller signal. Network values are already salted digests.
type IdentityKey struct {
	Type  constants.KeyType `json:"key_type"`
	Value string            `json:"key_value"`
}

// NewIdentityKey creates an identity key of the given type.
func NewIdentityKey(keyType constants.KeyType, value string) IdentityKey {
	return IdentityKey{Type: keyType, Value: value}
}

// IsZero reports whether the key carries no value.
func (k IdentityKey) IsZero() bool {
	return k.Value == ""
}

// CounterKey is the composite key of a usage counter row.
type CounterKey struct {
	KeyType     constants.KeyType
	KeyValue    string
	Action      constants.ActionCategory
	WindowStart time.Time
}

// NewCounterKey builds the counter key for an identity, action and window.
func NewCounterKey(id IdentityKey, action constants.ActionCategory, windowStart time.Time) CounterKey {
	return CounterKey{
		KeyType:     id.Type,
		KeyValue:    id.Value,
		Action:      action,
		WindowStart: windowStart.UTC(),
	}
}

// UsageCounter is the persisted count of admitted attempts for one key, action and window.
type UsageCounter struct {
	KeyType     constants.KeyType        `json:"key_type"`
	KeyValue    string                   `json:"key_value"`
	Action      constants.ActionCategory `json:"action_type"`
	WindowStart time.Time                `json:"window_start"`
	Count       int64                    `json:"count"`
	// Limit is the limit in force when the row was last written. Audit only.
	Limit     int64     `json:"limit"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the composite key of the counter.
func (c *UsageCounter) Key() CounterKey {
	return CounterKey{
		KeyType:     c.KeyType,
		KeyValue:    c.KeyValue,
		Action:      c.Action,
		WindowStart: c.WindowStart.UTC(),
	}
}

// Window is a fixed window [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Verdict is the outcome of a single admission check.
type Verdict struct {
	Allowed     bool      `json:"allowed"`
	Remaining   int64     `json:"remaining"`
	ResetTime   time.Time `json:"reset_time"`
	Limit       int64     `json:"limit"`
	WindowStart time.Time `json:"window_start"`
}

// Deny returns a denial for the given window. Remaining is always zero.
func Deny(limit int64, w Window) *Verdict {
	return &Verdict{
		Allowed:     false,
		Remaining:   0,
		ResetTime:   w.End,
		Limit:       limit,
		WindowStart: w.Start,
	}
}

// RetryAfter returns the time left until the verdict's window resets, never negative.
func (v *Verdict) RetryAfter(now time.Time) time.Duration {
	d := v.ResetTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

//Personal.AI order the ending
