package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hcadmin/internal/media/sniffer"
	"hcadmin/internal/middleware"
	"hcadmin/internal/models"
	"hcadmin/internal/service"
)

type attachmentResponse struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName,omitempty"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Checksum    string    `json:"checksum"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h HandlerSet) newAttachmentResponse(a models.Attachment) attachmentResponse {
	return attachmentResponse{
		ID:          a.ID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		Checksum:    fmt.Sprintf("%x", a.Checksum),
		URL:         h.uploads.PublicURL(a),
		CreatedAt:   a.CreatedAt,
	}
}

func (h HandlerSet) UploadAttachment(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.respondBindError(c, err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.respondBindError(c, err)
		return
	}
	defer file.Close()

	result, err := h.uploads.Upload(c.Request.Context(), service.UploadInput{
		UserID:       user.ID,
		Purpose:      c.PostForm("purpose"),
		FileName:     fileHeader.Filename,
		DeclaredType: sniffer.DeclaredMimeType(fileHeader.Header),
		Body:         file,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"attachment": h.newAttachmentResponse(result.Attachment),
	})
}

func (h HandlerSet) ListAttachments(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	items, err := h.uploads.List(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]attachmentResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, h.newAttachmentResponse(item))
	}
	c.JSON(http.StatusOK, gin.H{"items": resp})
}
