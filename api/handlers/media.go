package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type UploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// CreateUpload выдаёт presigned PUT URL для загрузки медиа поста
func (h *Handler) CreateUpload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	upload, err := h.Media.PresignUpload(c.Request.Context(), userID, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, upload)
}

func (h *Handler) DownloadURL(c *gin.Context) {
	url, err := h.Media.PresignDownload(c.Request.Context(), c.Query("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
