package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/turtacn/quotagate/internal/application/dto"
	appservice "github.com/turtacn/quotagate/internal/application/service"
	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
)

// ResolveSignals builds the ordered identity keys for a request: the network key
// first, then the device key when a device token is present.
func ResolveSignals(resolver service.KeyResolver, r *http.Request, deviceID string) []models.IdentityKey {
	forwarded := strings.Join(r.Header.Values(constants.HeaderForwardedFor), ",")
	signals := []models.IdentityKey{resolver.ResolveNetwork(forwarded, r.RemoteAddr)}
	if device, ok := resolver.ResolveDevice(deviceID); ok {
		signals = append(signals, device)
	}
	return signals
}

// SetQuotaHeaders writes the X-RateLimit-* headers, and Retry-After when denied.
// A transient infrastructure denial points the caller at a short retry instead
// of the window end.
func SetQuotaHeaders(c *gin.Context, result *dto.AdmissionResult, err error, now time.Time) {
	if result == nil {
		return
	}
	reset := result.ResetTime
	retryAfter := result.RetryAfterSeconds(now)
	if !result.Allowed && errors.IsTransient(err) {
		reset = now.Add(constants.TransientRetryAfter)
		retryAfter = int64(constants.TransientRetryAfter / time.Second)
	}
	c.Header(constants.HeaderRateLimitLimit, strconv.FormatInt(result.Limit, 10))
	c.Header(constants.HeaderRateLimitRemaining, strconv.FormatInt(result.Remaining, 10))
	c.Header(constants.HeaderRateLimitReset, strconv.FormatInt(reset.Unix(), 10))
	if !result.Allowed {
		c.Header(constants.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
	}
}

// Rejection returns the error to show the caller for a denied result.
// Infrastructure failures keep their own code; a quota denial carries the reset hint.
func Rejection(result *dto.AdmissionResult, err error) error {
	if err != nil {
		return err
	}
	return errors.ErrQuotaExceeded(result.Action, result.Limit, result.ResetTime)
}

// RequireQuota gates a route on the admission check for action. The device
// token is read from the X-Device-ID header.
func RequireQuota(app appservice.AdmissionAppService, resolver service.KeyResolver, action constants.ActionCategory, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		signals := ResolveSignals(resolver, c.Request, c.GetHeader(constants.HeaderDeviceID))
		result, err := app.Admit(c.Request.Context(), action, signals)
		if result == nil {
			dto.SendError(c, err)
			c.Abort()
			return
		}

		SetQuotaHeaders(c, result, err, time.Now())
		if !result.Allowed {
			log.Warn(c.Request.Context(), "request rejected by quota",
				logger.String("action", string(action)),
				logger.String("denied_by", string(result.DeniedBy)),
				logger.String("code", string(errors.CodeOf(Rejection(result, err)))),
			)
			dto.SendError(c, Rejection(result, err))
			c.Abort()
			return
		}

		c.Set(string(constants.ContextKeyVerdict), result)
		c.Next()
	}
}

//Personal.AI order the ending
