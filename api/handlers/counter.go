package handlers

import (
	"net/http"
	"strconv"

	"creaverse/services"

	"github.com/gin-gonic/gin"
)

// GetCounters возвращает счетчики непрочитанного для текущего пользователя
func (h *Handler) GetCounters(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	counters, err := h.Counters.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"counters": counters,
	})
}

// ListNotifications - ?type=like&unread=true&limit=20
func (h *Handler) ListNotifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var q services.NotificationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query"})
		return
	}
	notifications, err := h.Notifications.List(c.Request.Context(), userID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

type MarkNotificationsRequest struct {
	IDs []int64 `json:"ids"`
}

// MarkNotificationsRead - пустой список ids помечает все уведомления
func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req MarkNotificationsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	updated, err := h.Notifications.MarkRead(c.Request.Context(), userID, req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.Rewards.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
