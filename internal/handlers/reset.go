package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hcadmin/internal/middleware"
	"hcadmin/internal/models"
	"hcadmin/internal/service"
)

type resetIdentityRequest struct {
	Username       string `json:"username" binding:"required"`
	Channel        string `json:"channel" binding:"required,oneof=sms email"`
	ContactOrEmail string `json:"contactOrEmail" binding:"required"`
}

type otpDispatchResponse struct {
	Hint      string    `json:"hint"`
	Channel   string    `json:"channel"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message,omitempty"`
}

func (h HandlerSet) ValidateResetUser(c *gin.Context) {
	var req resetIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	hint, err := h.reset.ValidateUserForReset(c.Request.Context(), req.Username, models.OtpChannel(req.Channel), req.ContactOrEmail)
	if err != nil {
		h.respondIdentityError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hint": hint, "channel": req.Channel})
}

func (h HandlerSet) RequestResetOtp(c *gin.Context) {
	var req resetIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	dispatch, err := h.reset.RequestOtp(c.Request.Context(), req.Username, models.OtpChannel(req.Channel), req.ContactOrEmail)
	if err != nil {
		if errors.Is(err, service.ErrDeliveryFailed) {
			c.AbortWithStatusJSON(http.StatusBadGateway, otpDispatchResponse{
				Hint:      dispatch.Hint,
				Channel:   string(dispatch.Channel),
				ExpiresAt: dispatch.ExpiresAt,
				Message:   h.catalog.Text(c.Request.Context(), service.ReasonDeliveryFailed),
			})
			return
		}
		h.respondIdentityError(c, err)
		return
	}

	c.JSON(http.StatusOK, otpDispatchResponse{
		Hint:      dispatch.Hint,
		Channel:   string(dispatch.Channel),
		ExpiresAt: dispatch.ExpiresAt,
	})
}

type verifyOtpRequest struct {
	Username string `json:"username" binding:"required"`
	Channel  string `json:"channel" binding:"required,oneof=sms email"`
	Code     string `json:"code" binding:"required"`
}

func (h HandlerSet) VerifyResetOtp(c *gin.Context) {
	var req verifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	ticket, err := h.reset.VerifyOtp(c.Request.Context(), req.Username, models.OtpChannel(req.Channel), req.Code)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrOtpNotFound) {
			// a known user with no code must look like an unknown one
			err = service.ErrCodeMismatch
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resetToken": ticket.Token,
		"expiresAt":  ticket.ExpiresAt,
	})
}

type completeResetRequest struct {
	ResetToken      string `json:"resetToken" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (h HandlerSet) CompleteReset(c *gin.Context) {
	var req completeResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	if err := h.reset.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword, req.ConfirmPassword); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	if err := h.reset.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
