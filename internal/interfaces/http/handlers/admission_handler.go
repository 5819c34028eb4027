package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/turtacn/quotagate/internal/application/dto"
	appservice "github.com/turtacn/quotagate/internal/application/service"
	"github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/internal/interfaces/http/middleware"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
	"github.com/turtacn/quotagate/pkg/utils"
)

// AdmissionHandler serves the admission check and policy endpoints.
type AdmissionHandler struct {
	app      appservice.AdmissionAppService
	resolver service.KeyResolver
	log      logger.Logger
}

// NewAdmissionHandler creates a new AdmissionHandler.
func NewAdmissionHandler(app appservice.AdmissionAppService, resolver service.KeyResolver, log logger.Logger) *AdmissionHandler {
	return &AdmissionHandler{
		app:      app,
		resolver: resolver,
		log:      log.WithComponent("admission_handler"),
	}
}

// Check godoc
// @Summary      Admission check
// @Description  Consumes one unit of quota for the caller's network and device signals.
// @Tags         admission
// @Accept       json
// @Produce      json
// @Param        request body dto.AdmissionCheckRequest true "Action to check"
// @Success      200  {object}  dto.APIResponse
// @Failure      400  {object}  dto.APIResponse
// @Failure      429  {object}  dto.APIResponse
// @Router       /api/v1/admission/check [post]
func (h *AdmissionHandler) Check(c *gin.Context) {
	var req dto.AdmissionCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, errors.ErrInvalidRequest("request body must be JSON with an action field"))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		dto.SendError(c, err)
		return
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = c.GetHeader(constants.HeaderDeviceID)
	}

	action := constants.ActionCategory(req.Action)
	signals := middleware.ResolveSignals(h.resolver, c.Request, deviceID)
	result, err := h.app.Admit(c.Request.Context(), action, signals)
	if result == nil {
		dto.SendError(c, err)
		return
	}

	middleware.SetQuotaHeaders(c, result, err, time.Now())
	if result.Allowed {
		dto.SendSuccess(c, http.StatusOK, result)
		return
	}

	rejection := middleware.Rejection(result, err)
	h.log.Info(c.Request.Context(), "admission check denied",
		logger.String("action", req.Action),
		logger.String("denied_by", string(result.DeniedBy)),
		logger.String("code", string(errors.CodeOf(rejection))),
	)
	resp := dto.ErrorResponse(rejection, c.GetString(string(constants.ContextKeyRequestID)))
	resp.Data = result
	c.JSON(dto.StatusFor(rejection), resp)
}

// Policies godoc
// @Summary      Effective policy table
// @Tags         admission
// @Produce      json
// @Success      200  {object}  dto.APIResponse
// @Router       /api/v1/policies [get]
func (h *AdmissionHandler) Policies(c *gin.Context) {
	dto.SendSuccess(c, http.StatusOK, h.app.Policies())
}

//Personal.AI order the ending
