package models

import (
	"time"

	"github.com/turtacn/quotagate/pkg/constants"
)

// DenialEvent records a denied admission for the audit stream.
// KeyValue is the resolved identity key, never a raw address.
type DenialEvent struct {
	EventID     string                   `json:"event_id"`
	RequestID   string                   `json:"request_id,omitempty"`
	KeyType     constants.KeyType        `json:"key_type"`
	KeyValue    string                   `json:"key_value"`
	Action      constants.ActionCategory `json:"action"`
	Outcome     constants.Outcome        `json:"outcome"`
	WindowStart time.Time                `json:"window_start"`
	ResetTime   time.Time                `json:"reset_time"`
	Limit       int64                    `json:"limit"`
	Timestamp   time.Time                `json:"timestamp"`
}

//Personal.AI order the ending
