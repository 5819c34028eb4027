// Package constants defines system-wide constants for the quotagate admission service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Identity Key Types
// ================================================================================

// KeyType identifies which caller signal an identity key was derived from.
// Different key types for the same caller are tracked as independent quotas.
type KeyType string

const (
	// KeyTypeNetwork is a salted digest of the client-nearest network address
	KeyTypeNetwork KeyType = "network"

	// KeyTypeDevice is an opaque, client-supplied device token
	KeyTypeDevice KeyType = "device"

	// KeyTypeSession is an opaque session identifier
	KeyTypeSession KeyType = "session"
)

// Valid reports whether k is a known key type.
func (k KeyType) Valid() bool {
	switch k {
	case KeyTypeNetwork, KeyTypeDevice, KeyTypeSession:
		return true
	}
	return false
}

// ================================================================================
// Action Categories
// ================================================================================

// ActionCategory names a class of gated operation. Each category has its own quota policy.
type ActionCategory string

const (
	// ActionAIGrounded is a grounded (search-augmented) AI inference call
	ActionAIGrounded ActionCategory = "ai_grounded"

	// ActionAIQuery is a plain AI inference call
	ActionAIQuery ActionCategory = "ai_query"

	// ActionImageUpload is an image upload to object storage
	ActionImageUpload ActionCategory = "image_upload"

	// ActionDocumentWrite is a persisted document write
	ActionDocumentWrite ActionCategory = "document_write"

	// ActionFlyerRender is a server-side flyer render
	ActionFlyerRender ActionCategory = "flyer_render"
)

// KnownActions lists the action categories used by the bundled HTTP routes.
// The policy registry is validated against this list at startup.
var KnownActions = []ActionCategory{
	ActionAIGrounded,
	ActionAIQuery,
	ActionImageUpload,
	ActionDocumentWrite,
	ActionFlyerRender,
}

// ================================================================================
// Window & Identity Defaults
// ================================================================================

const (
	// DefaultWindowSeconds is one day
	DefaultWindowSeconds int64 = 86400

	// LoopbackPlaceholder stands in for the caller address when none is available
	LoopbackPlaceholder = "127.0.0.1"

	// DefaultStoreTimeout bounds a single counter store round-trip
	DefaultStoreTimeout = 2 * time.Second

	// TransientRetryAfter is the retry hint sent with store and cancellation denials
	TransientRetryAfter = time.Second

	// DefaultCounterRetention is how long counter rows are kept before `prune` removes them
	DefaultCounterRetention = 30 * 24 * time.Hour
)

// ================================================================================
// Store Drivers
// ================================================================================

// StoreDriver selects the counter store backend.
type StoreDriver string

const (
	StoreDriverPostgres     StoreDriver = "postgres"
	StoreDriverGormPostgres StoreDriver = "gorm-postgres"
	StoreDriverSQLite       StoreDriver = "sqlite"
	StoreDriverRedis        StoreDriver = "redis"
	StoreDriverMemory       StoreDriver = "memory"
)

// ================================================================================
// HTTP Headers
// ================================================================================

const (
	HeaderForwardedFor       = "X-Forwarded-For"
	HeaderDeviceID           = "X-Device-ID"
	HeaderRequestID          = "X-Request-ID"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// ================================================================================
// Decision Outcomes
// ================================================================================

// Outcome labels a decision for metrics and logs.
type Outcome string

const (
	OutcomeAllowed       Outcome = "allowed"
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	OutcomeUnknownAction Outcome = "unknown_action"
	OutcomeStoreRead     Outcome = "store_read_error"
	OutcomeStoreWrite    Outcome = "store_write_error"
	OutcomeSilentWrite   Outcome = "silent_write_failure"
	OutcomeCancelled     Outcome = "cancelled"
)

// ================================================================================
// Error Codes
// ================================================================================

// ErrorCode is a machine-readable error code carried by GateError values.
type ErrorCode string

const (
	ErrCodeInvalidRequest         ErrorCode = "invalid_request"
	ErrCodeUnknownAction          ErrorCode = "unknown_action"
	ErrCodeQuotaExceeded          ErrorCode = "quota_exceeded"
	ErrCodeStoreRead              ErrorCode = "store_read_error"
	ErrCodeStoreWrite             ErrorCode = "store_write_error"
	ErrCodeSilentWrite            ErrorCode = "silent_write_failure"
	ErrCodeServerError            ErrorCode = "server_error"
	ErrCodeTemporarilyUnavailable ErrorCode = "temporarily_unavailable"
	ErrCodeInvalidConfig          ErrorCode = "invalid_config"
	ErrCodeNotFound               ErrorCode = "not_found"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type used for values stored on a context.Context.
type ContextKey string

const (
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyTraceID   ContextKey = "trace_id"
	ContextKeyVerdict   ContextKey = "admission_verdict"
)

// ================================================================================
// Service Identity
// ================================================================================

const (
	ServiceName = "quotagate"
	EnvPrefix   = "QUOTAGATE"
)

//Personal.AI order the ending
