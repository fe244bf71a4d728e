package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hcadmin/internal/models"
	"hcadmin/internal/service"
)

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	limit := 50
	offset := 0

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, newUserResponse(user))
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
	})
}

type createUserRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	ContactNo string `json:"contactNo"`
	Email     string `json:"email" binding:"omitempty,email"`
	Role      string `json:"role" binding:"omitempty,oneof=staff admin superadmin"`
	BranchID  string `json:"branchId"`
}

func (h HandlerSet) AdminCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	user, err := h.auth.CreateUser(c.Request.Context(), service.CreateUserInput{
		Username:  req.Username,
		Password:  req.Password,
		ContactNo: req.ContactNo,
		Email:     req.Email,
		Role:      models.UserRole(req.Role),
		BranchID:  req.BranchID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": newUserResponse(user)})
}

type userStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive"`
}

func (h HandlerSet) AdminSetUserStatus(c *gin.Context) {
	var req userStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	if err := h.auth.SetUserStatus(c.Request.Context(), c.Param("userId"), models.UserStatus(req.Status)); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminRevokeSessions(c *gin.Context) {
	count, err := h.sessions.InvalidateAllUserSessions(c.Request.Context(), c.Param("userId"), models.ReasonAdminRevoke)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionsEnded": count})
}

type messageRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h HandlerSet) AdminSetMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	code := c.Param("code")
	if err := h.catalog.Set(c.Request.Context(), code, req.Text); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": code, "text": req.Text})
}
