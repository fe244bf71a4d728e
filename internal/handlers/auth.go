package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hcadmin/internal/middleware"
	"hcadmin/internal/models"
	"hcadmin/internal/service"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	BranchID string `json:"branchId"`
}

type authResponse struct {
	AccessToken     string       `json:"accessToken"`
	AccessExpiresAt time.Time    `json:"accessExpiresAt"`
	RefreshToken    string       `json:"refreshToken"`
	SessionID       string       `json:"sessionId"`
	User            userResponse `json:"user"`
}

type userResponse struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email,omitempty"`
	ContactNo string  `json:"contactNo,omitempty"`
	Role      string  `json:"role"`
	Status    string  `json:"status"`
	BranchID  string  `json:"branchId,omitempty"`
	AvatarID  *string `json:"avatarId,omitempty"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		ContactNo: user.ContactNo,
		Role:      string(user.Role),
		Status:    string(user.Status),
		BranchID:  user.BranchID,
		AvatarID:  user.AvatarID,
	}
}

func clientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
		BranchID: req.BranchID,
		Client:   clientInfo(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	sendAuthResponse(c, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, clientInfo(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	sendAuthResponse(c, result)
}

func sendAuthResponse(c *gin.Context, result service.AuthResult) {
	c.JSON(http.StatusOK, authResponse{
		AccessToken:     result.AccessToken,
		AccessExpiresAt: result.AccessExpiresAt,
		RefreshToken:    result.RefreshToken,
		SessionID:       result.Session.ID,
		User:            newUserResponse(result.User),
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), claims.SessionID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) LogoutAll(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	count, err := h.auth.LogoutEverywhere(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionsEnded": count})
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": newUserResponse(user),
	})
}
