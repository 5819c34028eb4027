// Package service holds the admission domain: identity key resolution, quota
// policies, window arithmetic and the check-and-increment decision engine.
package service

import (
	"time"

	"github.com/turtacn/quotagate/pkg/constants"
)

// Metrics defines the interface for collecting admission metrics.
// This abstraction keeps the domain independent of the monitoring implementation (e.g., Prometheus).
// Metrics 定义了收集准入指标的接口。
type Metrics interface {
	// RecordDecision records the outcome of one admission check.
	// RecordDecision 记录一次准入检查的结果。
	RecordDecision(action constants.ActionCategory, keyType constants.KeyType, outcome constants.Outcome, duration time.Duration)

	// RecordStoreError records a counter store failure by kind (read, write, silent_write).
	// RecordStoreError 记录计数存储的失败。
	RecordStoreError(kind string)
}

type noopMetrics struct{}

// NewNoopMetrics returns a Metrics implementation that discards everything.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordDecision(constants.ActionCategory, constants.KeyType, constants.Outcome, time.Duration) {
}
func (noopMetrics) RecordStoreError(string) {}

//Personal.AI order the ending
