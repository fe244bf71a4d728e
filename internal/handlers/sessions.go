package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hcadmin/internal/middleware"
	"hcadmin/internal/models"
	"hcadmin/internal/service"
)

type sessionResponse struct {
	ID             string     `json:"id"`
	BranchID       string     `json:"branchId,omitempty"`
	IPAddress      string     `json:"ipAddress"`
	Browser        string     `json:"browser"`
	OS             string     `json:"os"`
	DeviceType     string     `json:"deviceType"`
	Status         string     `json:"status"`
	LoginAt        time.Time  `json:"loginAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	LogoutAt       *time.Time `json:"logoutAt,omitempty"`
	LogoutReason   string     `json:"logoutReason,omitempty"`
	Current        bool       `json:"current"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}
	claims, _ := middleware.CurrentClaims(c)

	sessions, err := h.sessions.ListSessions(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			ID:             session.ID,
			BranchID:       session.BranchID,
			IPAddress:      session.IPAddress,
			Browser:        session.Browser,
			OS:             session.OS,
			DeviceType:     session.DeviceType,
			Status:         string(session.Status),
			LoginAt:        session.LoginAt,
			LastActivityAt: session.LastActivityAt,
			LogoutAt:       session.LogoutAt,
			LogoutReason:   session.LogoutReason,
			Current:        session.ID == claims.SessionID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": resp,
	})
}

// RevokeSession ends one of the caller's other sessions.
func (h HandlerSet) RevokeSession(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}
	claims, _ := middleware.CurrentClaims(c)

	sessionID := c.Param("sessionId")
	if sessionID == claims.SessionID {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Error:   "cannot_revoke_current_session",
			Message: "Use logout to end the current session.",
		})
		return
	}

	session, err := h.sessions.ValidateSession(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if session.UserID != user.ID {
		h.respondError(c, service.ErrSessionNotFound)
		return
	}

	if err := h.sessions.InvalidateSession(c.Request.Context(), sessionID, models.SessionStatusRevoked, models.ReasonLogout); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
