// Package dto provides data transfer objects for the application layer.
package dto

import (
	"time"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/pkg/constants"
)

// AdmissionCheckRequest is the body of POST /api/v1/admission/check.
// The network signal is taken from the transport, never from the body.
type AdmissionCheckRequest struct {
	Action   string `json:"action" validate:"required,action"`
	DeviceID string `json:"device_id,omitempty" validate:"omitempty,max=256"`
}

// SignalResult 单个身份信号的检查结果
type SignalResult struct {
	KeyType   constants.KeyType `json:"key_type"`
	Allowed   bool              `json:"allowed"`
	Remaining int64             `json:"remaining"`
	Limit     int64             `json:"limit"`
	ResetTime time.Time         `json:"reset_time"`
}

// AdmissionResult is the combined outcome of checking every signal of one request.
type AdmissionResult struct {
	Action    constants.ActionCategory `json:"action"`
	Allowed   bool                     `json:"allowed"`
	DeniedBy  constants.KeyType        `json:"denied_by,omitempty"`
	Remaining int64                    `json:"remaining"`
	Limit     int64                    `json:"limit"`
	ResetTime time.Time                `json:"reset_time"`
	Signals   []SignalResult           `json:"signals"`
}

// NewSignalResult converts an engine verdict.
func NewSignalResult(keyType constants.KeyType, v *models.Verdict) SignalResult {
	return SignalResult{
		KeyType:   keyType,
		Allowed:   v.Allowed,
		Remaining: v.Remaining,
		Limit:     v.Limit,
		ResetTime: v.ResetTime,
	}
}

// RetryAfterSeconds is the whole number of seconds until the reset, rounded up, never negative.
func (r *AdmissionResult) RetryAfterSeconds(now time.Time) int64 {
	d := r.ResetTime.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// PolicyResponse 策略表中的一项
type PolicyResponse struct {
	Action        constants.ActionCategory `json:"action"`
	Limit         int64                    `json:"limit"`
	WindowSeconds int64                    `json:"window_seconds"`
	Overridden    bool                     `json:"overridden"`
}

// NewPolicyResponses converts the registry table.
func NewPolicyResponses(policies []models.QuotaPolicy) []PolicyResponse {
	out := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, PolicyResponse{
			Action:        p.Action,
			Limit:         p.Limit,
			WindowSeconds: p.WindowSeconds,
			Overridden:    p.Overridden,
		})
	}
	return out
}

// UsageResponse reports the stored counter for one key, action and window.
type UsageResponse struct {
	KeyType     constants.KeyType        `json:"key_type"`
	KeyValue    string                   `json:"key_value"`
	Action      constants.ActionCategory `json:"action"`
	WindowStart time.Time                `json:"window_start"`
	WindowEnd   time.Time                `json:"window_end"`
	Count       int64                    `json:"count"`
	Limit       int64                    `json:"limit"`
	Remaining   int64                    `json:"remaining"`
}

//Personal.AI order the ending
