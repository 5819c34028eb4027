package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/repository"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
	"github.com/turtacn/quotagate/pkg/utils"
)

// AdmissionEngine decides whether one identity key may perform an action.
type AdmissionEngine interface {
	// Check runs the read, decide and conditional increment protocol for a single key.
	//
	// The returned verdict is never nil. A quota denial returns a verdict with
	// Allowed=false and a nil error. Every other failure (unknown action, store
	// read or write error, silent write, cancellation) returns Allowed=false
	// together with a GateError describing the cause.
	Check(ctx context.Context, key models.IdentityKey, action constants.ActionCategory) (*models.Verdict, error)
}

// EngineOption customizes an admission engine.
type EngineOption func(*admissionEngine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *admissionEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStoreTimeout bounds each store round-trip. Zero disables the bound.
func WithStoreTimeout(d time.Duration) EngineOption {
	return func(e *admissionEngine) { e.storeTimeout = d }
}

// WithTracer sets the tracer used for check spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *admissionEngine) {
		if t != nil {
			e.tracer = t
		}
	}
}

type admissionEngine struct {
	store        repository.CounterRepository
	policies     PolicyRegistry
	metrics      Metrics
	log          logger.Logger
	tracer       trace.Tracer
	now          func() time.Time
	storeTimeout time.Duration
}

// NewAdmissionEngine creates an admission engine over an open counter store.
//
// Parameters:
//   - store: the shared counter store; its lifecycle belongs to the caller
//   - policies: the policy registry built at startup
//   - metrics: decision metrics sink, may be nil
//   - log: logger, may be nil
//
// Returns:
//   - AdmissionEngine: safe for concurrent use
func NewAdmissionEngine(
	store repository.CounterRepository,
	policies PolicyRegistry,
	metrics Metrics,
	log logger.Logger,
	opts ...EngineOption,
) AdmissionEngine {
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	e := &admissionEngine{
		store:        store,
		policies:     policies,
		metrics:      metrics,
		log:          log.WithComponent("admission_engine"),
		tracer:       otel.Tracer("quotagate/admission"),
		now:          time.Now,
		storeTimeout: constants.DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *admissionEngine) Check(ctx context.Context, key models.IdentityKey, action constants.ActionCategory) (*models.Verdict, error) {
	started := e.now()
	ctx, span := e.tracer.Start(ctx, "admission.check", trace.WithAttributes(
		attribute.String("quota.action", string(action)),
		attribute.String("quota.key_type", string(key.Type)),
	))
	defer span.End()

	verdict, outcome, err := e.check(ctx, key, action, started)

	e.metrics.RecordDecision(action, key.Type, outcome, e.now().Sub(started))
	span.SetAttributes(
		attribute.Bool("quota.allowed", verdict.Allowed),
		attribute.Int64("quota.remaining", verdict.Remaining),
		attribute.String("quota.outcome", string(outcome)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome))
	}
	return verdict, err
}

func (e *admissionEngine) check(
	ctx context.Context,
	key models.IdentityKey,
	action constants.ActionCategory,
	now time.Time,
) (*models.Verdict, constants.Outcome, error) {
	// 1. Resolve policy
	policy, err := e.policies.PolicyFor(action)
	if err != nil {
		e.log.Error(ctx, "admission denied: no policy for action", err,
			logger.String("key_type", string(key.Type)),
			logger.String("action", string(action)),
		)
		return &models.Verdict{Allowed: false, ResetTime: now.UTC()}, constants.OutcomeUnknownAction, err
	}

	// 2. Compute window
	window := WindowFor(now, policy.WindowSeconds)
	counterKey := models.NewCounterKey(key, action, window.Start)
	log := e.log.WithFields(
		logger.String("key_type", string(key.Type)),
		logger.String("key", utils.MaskString(key.Value, 4)),
		logger.String("action", string(action)),
		logger.Time("window_start", window.Start),
		logger.Int64("limit", policy.Limit),
	)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return e.cancelled(ctx, log, policy.Limit, window, ctxErr)
	}

	// 3. Read current count
	row, err := e.find(ctx, counterKey)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return e.cancelled(ctx, log, policy.Limit, window, ctxErr)
		}
		e.metrics.RecordStoreError("read")
		log.Error(ctx, "admission denied: counter store read failed", err)
		return models.Deny(policy.Limit, window), constants.OutcomeStoreRead, errors.ErrStoreRead(err)
	}
	var count int64
	if row != nil {
		count = row.Count
	}

	// 4. Decide
	if count >= policy.Limit {
		log.Info(ctx, "admission denied: quota exhausted", logger.Int64("count", count))
		return models.Deny(policy.Limit, window), constants.OutcomeQuotaExceeded, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return e.cancelled(ctx, log, policy.Limit, window, ctxErr)
	}

	// 5. Atomic upsert-increment
	written, err := e.increment(ctx, counterKey, policy.Limit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return e.cancelled(ctx, log, policy.Limit, window, ctxErr)
		}
		e.metrics.RecordStoreError("write")
		log.Error(ctx, "admission denied: counter store write failed", err)
		return models.Deny(policy.Limit, window), constants.OutcomeStoreWrite, errors.ErrStoreWrite(err)
	}

	// 6. Write verification
	if written == nil {
		silent := errors.ErrSilentWrite()
		e.metrics.RecordStoreError("silent_write")
		log.Error(ctx, "admission denied: counter upsert returned no row", silent)
		return models.Deny(policy.Limit, window), constants.OutcomeSilentWrite, silent
	}

	// 7. Allowed
	remaining := policy.Limit - written.Count
	if remaining < 0 {
		remaining = 0
	}
	log.Debug(ctx, "admission allowed", logger.Int64("count", written.Count), logger.Int64("remaining", remaining))
	return &models.Verdict{
		Allowed:     true,
		Remaining:   remaining,
		ResetTime:   window.End,
		Limit:       policy.Limit,
		WindowStart: window.Start,
	}, constants.OutcomeAllowed, nil
}

func (e *admissionEngine) cancelled(
	ctx context.Context,
	log logger.Logger,
	limit int64,
	window models.Window,
	cause error,
) (*models.Verdict, constants.Outcome, error) {
	log.Warn(ctx, "admission denied: check cancelled", logger.Err(cause))
	return models.Deny(limit, window), constants.OutcomeCancelled, errors.ErrCheckCancelled(cause)
}

func (e *admissionEngine) find(ctx context.Context, key models.CounterKey) (*models.UsageCounter, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.store.Find(ctx, key)
}

func (e *admissionEngine) increment(ctx context.Context, key models.CounterKey, limit int64) (*models.UsageCounter, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.store.Increment(ctx, key, limit)
}

func (e *admissionEngine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.storeTimeout)
}

//Personal.AI order the ending
