package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/repository/mocks"
	domainservice "github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
)

// Mock implementations for dependencies
type MockAdmissionEngine struct {
	mock.Mock
}

func (m *MockAdmissionEngine) Check(ctx context.Context, key models.IdentityKey, action constants.ActionCategory) (*models.Verdict, error) {
	args := m.Called(ctx, key, action)
	return args.Get(0).(*models.Verdict), args.Error(1)
}

type MockDenialPublisher struct {
	mock.Mock
}

func (m *MockDenialPublisher) Publish(ctx context.Context, event models.DenialEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type countingRecorder struct{ n int }

func (c *countingRecorder) RecordAuditFailure() { c.n++ }

var (
	fixedNow    = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	windowStart = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	resetTime   = windowStart.Add(24 * time.Hour)
	networkKey  = models.NewIdentityKey(constants.KeyTypeNetwork, "net-digest")
	deviceKey   = models.NewIdentityKey(constants.KeyTypeDevice, "device-b")
)

func allowed(remaining int64) *models.Verdict {
	return &models.Verdict{Allowed: true, Remaining: remaining, ResetTime: resetTime, Limit: 5, WindowStart: windowStart}
}

func denied() *models.Verdict {
	return models.Deny(5, models.Window{Start: windowStart, End: resetTime})
}

func newRegistry(t *testing.T) domainservice.PolicyRegistry {
	t.Helper()
	reg, err := domainservice.NewPolicyRegistry([]models.QuotaPolicy{
		{Action: constants.ActionAIGrounded, Limit: 5, WindowSeconds: 86400},
		{Action: constants.ActionAIQuery, Limit: 20, WindowSeconds: 86400},
	}, domainservice.TestOverride{})
	require.NoError(t, err)
	return reg
}

func newTestService(t *testing.T, engine *MockAdmissionEngine, store *mocks.MockCounterStore, pub *MockDenialPublisher, opts ...AppOption) AdmissionAppService {
	t.Helper()
	opts = append([]AppOption{WithAppClock(func() time.Time { return fixedNow })}, opts...)
	return NewAdmissionAppService(engine, newRegistry(t), store, pub, logger.NewNullLogger(), opts...)
}

func TestAdmit_AllSignalsAllowed(t *testing.T) {
	engine := new(MockAdmissionEngine)
	pub := new(MockDenialPublisher)
	engine.On("Check", mock.Anything, networkKey, constants.ActionAIGrounded).Return(allowed(3), nil).Once()
	engine.On("Check", mock.Anything, deviceKey, constants.ActionAIGrounded).Return(allowed(1), nil).Once()

	svc := newTestService(t, engine, nil, pub)
	result, err := svc.Admit(context.Background(), constants.ActionAIGrounded, []models.IdentityKey{networkKey, deviceKey})

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Empty(t, result.DeniedBy)
	assert.Equal(t, int64(1), result.Remaining, "the tightest signal is reported")
	assert.Equal(t, resetTime, result.ResetTime)
	assert.Len(t, result.Signals, 2)
	engine.AssertExpectations(t)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestAdmit_FirstDenialShortCircuits(t *testing.T) {
	engine := new(MockAdmissionEngine)
	pub := new(MockDenialPublisher)
	engine.On("Check", mock.Anything, networkKey, constants.ActionAIGrounded).Return(denied(), nil).Once()
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.DenialEvent) bool {
		return e.KeyType == constants.KeyTypeNetwork &&
			e.Outcome == constants.OutcomeQuotaExceeded &&
			e.EventID != "" &&
			e.RequestID == "req-1" &&
			e.ResetTime.Equal(resetTime)
	})).Return(nil).Once()

	svc := newTestService(t, engine, nil, pub)
	ctx := context.WithValue(context.Background(), constants.ContextKeyRequestID, "req-1")
	result, err := svc.Admit(ctx, constants.ActionAIGrounded, []models.IdentityKey{networkKey, deviceKey})

	require.NoError(t, err, "a quota denial is not an error")
	assert.False(t, result.Allowed)
	assert.Equal(t, constants.KeyTypeNetwork, result.DeniedBy)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, resetTime, result.ResetTime)
	assert.Len(t, result.Signals, 1)
	engine.AssertNotCalled(t, "Check", mock.Anything, deviceKey, mock.Anything)
	pub.AssertExpectations(t)
}

func TestAdmit_DeviceDenialAfterNetworkAllowed(t *testing.T) {
	engine := new(MockAdmissionEngine)
	pub := new(MockDenialPublisher)
	engine.On("Check", mock.Anything, networkKey, constants.ActionAIGrounded).Return(allowed(4), nil).Once()
	engine.On("Check", mock.Anything, deviceKey, constants.ActionAIGrounded).Return(denied(), nil).Once()
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	svc := newTestService(t, engine, nil, pub)
	result, err := svc.Admit(context.Background(), constants.ActionAIGrounded, []models.IdentityKey{networkKey, deviceKey})

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, constants.KeyTypeDevice, result.DeniedBy)
	assert.Len(t, result.Signals, 2)
}

func TestAdmit_InfrastructureDenialReturnsError(t *testing.T) {
	engine := new(MockAdmissionEngine)
	pub := new(MockDenialPublisher)
	storeErr := errors.ErrStoreRead(stderrors.New("connection refused"))
	engine.On("Check", mock.Anything, networkKey, constants.ActionAIQuery).Return(denied(), storeErr).Once()
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.DenialEvent) bool {
		return e.Outcome == constants.OutcomeStoreRead
	})).Return(nil).Once()

	svc := newTestService(t, engine, nil, pub)
	result, err := svc.Admit(context.Background(), constants.ActionAIQuery, []models.IdentityKey{networkKey})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, constants.ErrCodeStoreRead))
	require.NotNil(t, result)
	assert.False(t, result.Allowed)
	pub.AssertExpectations(t)
}

func TestAdmit_PublishFailureIsCounted(t *testing.T) {
	engine := new(MockAdmissionEngine)
	pub := new(MockDenialPublisher)
	rec := &countingRecorder{}
	engine.On("Check", mock.Anything, networkKey, constants.ActionAIGrounded).Return(denied(), nil).Once()
	pub.On("Publish", mock.Anything, mock.Anything).Return(stderrors.New("broker down")).Once()

	svc := newTestService(t, engine, nil, pub, WithAuditFailureRecorder(rec))
	result, err := svc.Admit(context.Background(), constants.ActionAIGrounded, []models.IdentityKey{networkKey})

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 1, rec.n)
}

func TestAdmit_SkipsEmptySignals(t *testing.T) {
	engine := new(MockAdmissionEngine)
	engine.On("Check", mock.Anything, networkKey, constants.ActionAIGrounded).Return(allowed(4), nil).Once()

	svc := newTestService(t, engine, nil, new(MockDenialPublisher))
	result, err := svc.Admit(context.Background(), constants.ActionAIGrounded, []models.IdentityKey{networkKey, {}})

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Len(t, result.Signals, 1)
}

func TestAdmit_NoSignals(t *testing.T) {
	svc := newTestService(t, new(MockAdmissionEngine), nil, new(MockDenialPublisher))

	_, err := svc.Admit(context.Background(), constants.ActionAIGrounded, nil)
	assert.True(t, errors.HasCode(err, constants.ErrCodeInvalidRequest))

	_, err = svc.Admit(context.Background(), constants.ActionAIGrounded, []models.IdentityKey{{}})
	assert.True(t, errors.HasCode(err, constants.ErrCodeInvalidRequest))
}

func TestPolicies(t *testing.T) {
	svc := newTestService(t, new(MockAdmissionEngine), nil, nil)

	policies := svc.Policies()
	require.Len(t, policies, 2)
	assert.Equal(t, constants.ActionAIGrounded, policies[0].Action)
	assert.Equal(t, int64(5), policies[0].Limit)
}

func TestUsage(t *testing.T) {
	store := new(mocks.MockCounterStore)
	key := models.NewCounterKey(networkKey, constants.ActionAIGrounded, windowStart)
	store.On("Find", mock.Anything, key).Return(&models.UsageCounter{Count: 3}, nil).Once()

	svc := newTestService(t, new(MockAdmissionEngine), store, nil)
	usage, err := svc.Usage(context.Background(), networkKey, constants.ActionAIGrounded)

	require.NoError(t, err)
	assert.Equal(t, int64(3), usage.Count)
	assert.Equal(t, int64(2), usage.Remaining)
	assert.Equal(t, windowStart, usage.WindowStart)
	assert.Equal(t, resetTime, usage.WindowEnd)
	store.AssertExpectations(t)
}

func TestUsage_MissingRowIsZero(t *testing.T) {
	store := new(mocks.MockCounterStore)
	store.On("Find", mock.Anything, mock.Anything).Return(nil, nil).Once()

	svc := newTestService(t, new(MockAdmissionEngine), store, nil)
	usage, err := svc.Usage(context.Background(), deviceKey, constants.ActionAIQuery)

	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.Count)
	assert.Equal(t, int64(20), usage.Remaining)
}

func TestUsage_Errors(t *testing.T) {
	store := new(mocks.MockCounterStore)
	store.On("Find", mock.Anything, mock.Anything).Return(nil, stderrors.New("boom")).Once()
	svc := newTestService(t, new(MockAdmissionEngine), store, nil)

	_, err := svc.Usage(context.Background(), networkKey, "not_registered")
	assert.True(t, errors.HasCode(err, constants.ErrCodeUnknownAction))

	_, err = svc.Usage(context.Background(), models.IdentityKey{Type: "bogus", Value: "x"}, constants.ActionAIQuery)
	assert.True(t, errors.HasCode(err, constants.ErrCodeInvalidRequest))

	_, err = svc.Usage(context.Background(), networkKey, constants.ActionAIQuery)
	assert.True(t, errors.HasCode(err, constants.ErrCodeStoreRead))
}

func TestPrune(t *testing.T) {
	store := new(mocks.MockCounterStore)
	cutoff := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	store.On("DeleteBefore", mock.Anything, cutoff).Return(int64(7), nil).Once()
	store.On("DeleteBefore", mock.Anything, mock.Anything).Return(int64(0), stderrors.New("locked")).Once()

	svc := newTestService(t, new(MockAdmissionEngine), store, nil)

	n, err := svc.Prune(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = svc.Prune(context.Background(), cutoff.Add(time.Hour))
	assert.True(t, errors.HasCode(err, constants.ErrCodeStoreWrite))
}

//Personal.AI order the ending
