// Package service holds the application services that sit between the
// transports (HTTP, CLI) and the admission domain.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/turtacn/quotagate/internal/application/dto"
	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/repository"
	domainservice "github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
)

// AdmissionAppService defines the application-level admission operations.
type AdmissionAppService interface {
	// Admit checks each signal in order and stops at the first denial, so keys
	// after a denying key never consume quota. A quota denial returns a result
	// with Allowed=false and a nil error; infrastructure denials also return the error.
	Admit(ctx context.Context, action constants.ActionCategory, signals []models.IdentityKey) (*dto.AdmissionResult, error)

	// Policies returns the effective policy table.
	Policies() []dto.PolicyResponse

	// Usage reads the counter for key and action in the current window without consuming quota.
	Usage(ctx context.Context, key models.IdentityKey, action constants.ActionCategory) (*dto.UsageResponse, error)

	// Prune deletes counter rows whose window started before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// AuditFailureRecorder counts denial events that could not be published.
type AuditFailureRecorder interface {
	RecordAuditFailure()
}

// AppOption configures the admission application service.
type AppOption func(*admissionAppServiceImpl)

// WithAppClock overrides the clock used by Usage and event timestamps.
func WithAppClock(now func() time.Time) AppOption {
	return func(s *admissionAppServiceImpl) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAuditFailureRecorder reports synchronous publish failures.
func WithAuditFailureRecorder(r AuditFailureRecorder) AppOption {
	return func(s *admissionAppServiceImpl) {
		s.auditFailures = r
	}
}

type admissionAppServiceImpl struct {
	engine        domainservice.AdmissionEngine
	policies      domainservice.PolicyRegistry
	store         repository.CounterStore
	publisher     domainservice.DenialPublisher
	auditFailures AuditFailureRecorder
	log           logger.Logger
	now           func() time.Time
}

// NewAdmissionAppService creates a new AdmissionAppService.
// A nil publisher disables denial auditing.
func NewAdmissionAppService(
	engine domainservice.AdmissionEngine,
	policies domainservice.PolicyRegistry,
	store repository.CounterStore,
	publisher domainservice.DenialPublisher,
	log logger.Logger,
	opts ...AppOption,
) AdmissionAppService {
	if publisher == nil {
		publisher = domainservice.NewNoopDenialPublisher()
	}
	s := &admissionAppServiceImpl{
		engine:    engine,
		policies:  policies,
		store:     store,
		publisher: publisher,
		log:       log.WithComponent("admission_app_service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit implements the multi-signal composition.
func (s *admissionAppServiceImpl) Admit(ctx context.Context, action constants.ActionCategory, signals []models.IdentityKey) (*dto.AdmissionResult, error) {
	if len(signals) == 0 {
		return nil, errors.ErrInvalidRequest("at least one identity signal is required")
	}

	result := &dto.AdmissionResult{
		Action:  action,
		Allowed: true,
		Signals: make([]dto.SignalResult, 0, len(signals)),
	}

	var tightest *models.Verdict
	for _, key := range signals {
		if key.IsZero() {
			continue
		}

		verdict, err := s.engine.Check(ctx, key, action)
		result.Signals = append(result.Signals, dto.NewSignalResult(key.Type, verdict))

		if !verdict.Allowed {
			result.Allowed = false
			result.DeniedBy = key.Type
			result.Remaining = 0
			result.Limit = verdict.Limit
			result.ResetTime = verdict.ResetTime
			s.publishDenial(ctx, key, action, verdict, err)
			return result, err
		}

		if tightest == nil || verdict.Remaining < tightest.Remaining {
			tightest = verdict
		}
	}

	if tightest == nil {
		return nil, errors.ErrInvalidRequest("at least one identity signal is required")
	}
	result.Remaining = tightest.Remaining
	result.Limit = tightest.Limit
	result.ResetTime = tightest.ResetTime
	return result, nil
}

func (s *admissionAppServiceImpl) publishDenial(
	ctx context.Context,
	key models.IdentityKey,
	action constants.ActionCategory,
	verdict *models.Verdict,
	cause error,
) {
	outcome := constants.OutcomeQuotaExceeded
	if cause != nil {
		outcome = constants.Outcome(errors.CodeOf(cause))
	}
	requestID, _ := ctx.Value(constants.ContextKeyRequestID).(string)

	event := models.DenialEvent{
		EventID:     uuid.NewString(),
		RequestID:   requestID,
		KeyType:     key.Type,
		KeyValue:    key.Value,
		Action:      action,
		Outcome:     outcome,
		WindowStart: verdict.WindowStart,
		ResetTime:   verdict.ResetTime,
		Limit:       verdict.Limit,
		Timestamp:   s.now().UTC(),
	}

	// The caller's deadline must not drop the event.
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.log.Error(ctx, "failed to publish denial event", err,
			logger.String("event_id", event.EventID),
			logger.String("key_type", string(key.Type)),
			logger.String("action", string(action)),
		)
		if s.auditFailures != nil {
			s.auditFailures.RecordAuditFailure()
		}
	}
}

// Policies returns the effective policy table.
func (s *admissionAppServiceImpl) Policies() []dto.PolicyResponse {
	return dto.NewPolicyResponses(s.policies.Policies())
}

// Usage reads the current window's counter.
func (s *admissionAppServiceImpl) Usage(ctx context.Context, key models.IdentityKey, action constants.ActionCategory) (*dto.UsageResponse, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	policy, err := s.policies.PolicyFor(action)
	if err != nil {
		return nil, err
	}

	window := domainservice.WindowFor(s.now(), policy.WindowSeconds)
	row, err := s.store.Find(ctx, models.NewCounterKey(key, action, window.Start))
	if err != nil {
		return nil, errors.ErrStoreRead(err)
	}

	var count int64
	if row != nil {
		count = row.Count
	}
	remaining := policy.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &dto.UsageResponse{
		KeyType:     key.Type,
		KeyValue:    key.Value,
		Action:      action,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Count:       count,
		Limit:       policy.Limit,
		Remaining:   remaining,
	}, nil
}

// Prune deletes stale counter rows.
func (s *admissionAppServiceImpl) Prune(ctx context.Context, before time.Time) (int64, error) {
	deleted, err := s.store.DeleteBefore(ctx, before.UTC())
	if err != nil {
		return 0, errors.ErrStoreWrite(err)
	}
	s.log.Info(ctx, "pruned counter rows", logger.Time("before", before.UTC()), logger.Int64("deleted", deleted))
	return deleted, nil
}

func validateKey(key models.IdentityKey) error {
	if !key.Type.Valid() {
		return errors.ErrInvalidRequest("unknown key type").WithMetadata("key_type", string(key.Type))
	}
	if key.Value == "" {
		return errors.ErrInvalidRequest("key value is required")
	}
	return nil
}

//Personal.AI order the ending
