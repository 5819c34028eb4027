package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/quotagate/internal/application/dto"
	appservice "github.com/turtacn/quotagate/internal/application/service"
	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/repository"
	"github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/internal/infrastructure/ratelimit"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/logger"
)

func setupAdmissionRouter(t *testing.T, override service.TestOverride) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNullLogger()
	store := ratelimit.NewMemoryCounterStore()

	registry, err := service.NewPolicyRegistry([]models.QuotaPolicy{
		{Action: constants.ActionAIGrounded, Limit: 2, WindowSeconds: constants.DefaultWindowSeconds},
		{Action: constants.ActionAIQuery, Limit: 20, WindowSeconds: constants.DefaultWindowSeconds},
	}, override)
	require.NoError(t, err)

	engine := service.NewAdmissionEngine(store, registry, nil, log)
	app := appservice.NewAdmissionAppService(engine, registry, store, nil, log)
	h := NewAdmissionHandler(app, service.NewKeyResolver(service.KeyResolverConfig{Salt: "s"}), log)

	router := gin.New()
	router.POST("/api/v1/admission/check", h.Check)
	router.GET("/api/v1/policies", h.Policies)
	return router
}

func postCheck(router http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admission/check", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:4000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type checkResponse struct {
	Success bool                 `json:"success"`
	Data    *dto.AdmissionResult `json:"data"`
	Error   *dto.ErrorDTO        `json:"error"`
}

func decodeCheck(t *testing.T, w *httptest.ResponseRecorder) checkResponse {
	t.Helper()
	var resp checkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAdmissionHandler_Check(t *testing.T) {
	router := setupAdmissionRouter(t, service.TestOverride{})

	w := postCheck(router, `{"action":"ai_grounded"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeCheck(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.True(t, resp.Data.Allowed)
	assert.Equal(t, int64(1), resp.Data.Remaining)
	assert.Len(t, resp.Data.Signals, 1)

	postCheck(router, `{"action":"ai_grounded"}`, nil)

	w = postCheck(router, `{"action":"ai_grounded"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	resp = decodeCheck(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(constants.ErrCodeQuotaExceeded), resp.Error.Code)
	require.NotNil(t, resp.Data)
	assert.Equal(t, constants.KeyTypeNetwork, resp.Data.DeniedBy)
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRetryAfter))
}

func TestAdmissionHandler_DeviceFromBodyOrHeader(t *testing.T) {
	router := setupAdmissionRouter(t, service.TestOverride{})

	w := postCheck(router, `{"action":"ai_grounded","device_id":"dev-1"}`, map[string]string{constants.HeaderForwardedFor: "203.0.113.1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeCheck(t, w).Data.Signals, 2)

	w = postCheck(router, `{"action":"ai_grounded"}`, map[string]string{
		constants.HeaderForwardedFor: "203.0.113.2",
		constants.HeaderDeviceID:     "dev-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postCheck(router, `{"action":"ai_grounded","device_id":"dev-1"}`, map[string]string{constants.HeaderForwardedFor: "203.0.113.3"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, constants.KeyTypeDevice, decodeCheck(t, w).Data.DeniedBy)
}

func TestAdmissionHandler_BadRequests(t *testing.T) {
	router := setupAdmissionRouter(t, service.TestOverride{})

	cases := map[string]string{
		"not json":         `not-json`,
		"missing action":   `{}`,
		"malformed action": `{"action":"AI Grounded!"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := postCheck(router, body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(constants.ErrCodeInvalidRequest), decodeCheck(t, w).Error.Code)
		})
	}
}

func TestAdmissionHandler_UnknownActionIsDenied(t *testing.T) {
	router := setupAdmissionRouter(t, service.TestOverride{})

	w := postCheck(router, `{"action":"flyer_render"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, string(constants.ErrCodeUnknownAction), decodeCheck(t, w).Error.Code)
}

func TestAdmissionHandler_Policies(t *testing.T) {
	router := setupAdmissionRouter(t, service.TestOverride{Enabled: true, Action: constants.ActionAIQuery, Limit: 3})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/policies", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []dto.PolicyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)

	byAction := map[constants.ActionCategory]dto.PolicyResponse{}
	for _, p := range resp.Data {
		byAction[p.Action] = p
	}
	assert.Equal(t, int64(3), byAction[constants.ActionAIQuery].Limit)
	assert.True(t, byAction[constants.ActionAIQuery].Overridden)
	assert.False(t, byAction[constants.ActionAIGrounded].Overridden)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := NewHealthHandler(map[string]repository.HealthChecker{
		"counter_store": pingFunc(func(context.Context) error { return nil }),
	}, logger.NewNullLogger())
	failing := NewHealthHandler(map[string]repository.HealthChecker{
		"counter_store": pingFunc(func(context.Context) error { return nil }),
		"vault":         pingFunc(func(context.Context) error { return stderrors.New("sealed") }),
	}, logger.NewNullLogger())

	router := gin.New()
	router.GET("/live", healthy.LivenessCheck)
	router.GET("/ready", healthy.ReadinessCheck)
	router.GET("/ready-failing", failing.ReadinessCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"counter_store":"ok"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready-failing", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"vault":"error"`)
	assert.NotContains(t, w.Body.String(), "sealed")
}

//Personal.AI order the ending
