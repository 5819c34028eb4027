package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appservice "github.com/turtacn/quotagate/internal/application/service"
	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/repository"
	"github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/internal/infrastructure/monitoring"
	"github.com/turtacn/quotagate/internal/infrastructure/ratelimit"
	"github.com/turtacn/quotagate/internal/interfaces/http/handlers"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/logger"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	return newTestRouterWithLogger(t, logger.NewNullLogger())
}

func newTestRouterWithLogger(t *testing.T, log logger.Logger) *Router {
	t.Helper()
	cfg := &config.Config{
		Server:     config.ServerConfig{Host: "127.0.0.1", Port: 0, Mode: gin.TestMode},
		Monitoring: config.MonitoringConfig{MetricsEnabled: true, MetricsPath: "/metrics"},
	}

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	tracing, err := monitoring.NewTracingManager(&config.TracingConfig{ServiceName: constants.ServiceName}, log)
	require.NoError(t, err)

	store := ratelimit.NewMemoryCounterStore()
	registry, err := service.NewPolicyRegistry([]models.QuotaPolicy{
		{Action: constants.ActionAIQuery, Limit: 20, WindowSeconds: constants.DefaultWindowSeconds},
	}, service.TestOverride{})
	require.NoError(t, err)
	engine := service.NewAdmissionEngine(store, registry, metrics, log)
	app := appservice.NewAdmissionAppService(engine, registry, store, nil, log)

	r := NewRouter(cfg, log, reg, tracing, metrics,
		handlers.NewHealthHandler(map[string]repository.HealthChecker{"counter_store": store}, log),
		handlers.NewAdmissionHandler(app, service.NewKeyResolver(service.KeyResolverConfig{Salt: "s"}), log),
	)
	r.SetupRoutes()
	return r
}

func serve(r *Router, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRequestID))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/policies", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ai_query"`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_MetricsExposeDecisions(t *testing.T) {
	r := newTestRouter(t)

	check := httptest.NewRequest(http.MethodPost, "/api/v1/admission/check", strings.NewReader(`{"action":"ai_query"}`))
	check.Header.Set("Content-Type", "application/json")
	w := serve(r, check)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quotagate_admission_decisions_total")
	assert.Contains(t, w.Body.String(), "quotagate_http_requests_total")
}

func TestRouter_CORSExposesQuotaHeaders(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/policies", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := serve(r, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), constants.HeaderRetryAfter)
}

func TestRouter_RecoveredPanicCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := newTestRouterWithLogger(t, monitoring.NewLoggerFromZap(zap.New(core)))
	r.Engine().GET("/boom", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(constants.HeaderRequestID, "req-42")
	w := serve(r, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(constants.HeaderRequestID))
	assert.Contains(t, w.Body.String(), `"request_id":"req-42"`)

	entries := logs.FilterMessage("Panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}

//Personal.AI order the ending
