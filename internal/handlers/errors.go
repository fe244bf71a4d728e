package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hcadmin/internal/messages"
	"hcadmin/internal/middleware"
	"hcadmin/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var reasonStatus = map[string]int{
	service.ReasonUserNotFound:      http.StatusNotFound,
	service.ReasonOtpNotFound:       http.StatusNotFound,
	service.ReasonTokenNotFound:     http.StatusUnauthorized,
	service.ReasonGrantNotFound:     http.StatusNotFound,
	service.ReasonNotFound:          http.StatusNotFound,
	service.ReasonContactMismatch:   http.StatusBadRequest,
	service.ReasonEmailMismatch:     http.StatusBadRequest,
	service.ReasonCodeMismatch:      http.StatusBadRequest,
	service.ReasonConfirmMismatch:   http.StatusBadRequest,
	service.ReasonMismatch:          http.StatusBadRequest,
	service.ReasonExpired:           http.StatusGone,
	service.ReasonAlreadyConsumed:   http.StatusConflict,
	service.ReasonRevoked:           http.StatusUnauthorized,
	service.ReasonSessionInactive:   http.StatusUnauthorized,
	service.ReasonDeliveryFailed:    http.StatusBadGateway,
	service.ReasonPolicyViolation:   http.StatusUnprocessableEntity,
	service.ReasonTooManyRequests:   http.StatusTooManyRequests,
	service.ReasonInvalidInput:      http.StatusBadRequest,
	service.ReasonFileTooLarge:      http.StatusRequestEntityTooLarge,
	service.ReasonUnsupportedMedia:  http.StatusUnsupportedMediaType,
	service.ReasonInvalidCredential: http.StatusUnauthorized,
	service.ReasonUserInactive:      http.StatusForbidden,
	service.ReasonUnauthenticated:   http.StatusUnauthorized,
	service.ReasonForbidden:         http.StatusForbidden,
	service.ReasonConflict:          http.StatusConflict,
}

// respondError renders err through the message catalog. Unclassified errors
// are logged and reported as internal_error without detail.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	reason := service.Classify(err)
	status, ok := reasonStatus[reason]
	if !ok {
		status = http.StatusInternalServerError
		h.log.Error().
			Err(err).
			Str("route", c.FullPath()).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("request failed")
	}

	message := h.catalog.Text(c.Request.Context(), reason)
	var policyErr *service.PolicyError
	if errors.As(err, &policyErr) && policyErr.Message != "" {
		message = policyErr.Message
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: reason, Message: message})
}

// respondIdentityError hides whether the user or the contact detail was
// wrong during the public reset flow.
func (h HandlerSet) respondIdentityError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrMismatch) {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Error:   messages.CodeResetIdentity,
			Message: h.catalog.Text(c.Request.Context(), messages.CodeResetIdentity),
		})
		return
	}
	h.respondError(c, err)
}

func (h HandlerSet) respondBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:   service.ReasonInvalidInput,
		Message: err.Error(),
	})
}
