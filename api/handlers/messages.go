package handlers

import (
	"net/http"
	"strconv"
	"time"

	"creaverse/api/middleware"
	"creaverse/services"

	"github.com/gin-gonic/gin"
)

type StartConversationRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type SendMessageRequest struct {
	Content  string `json:"content"`
	ClientID string `json:"client_id"`
}

// ListConversations - список диалогов текущего пользователя
func (h *Handler) ListConversations(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversations, err := h.Conversations.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// StartConversation находит или создаёт диалог с user_id
func (h *Handler) StartConversation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	conv, created, err := h.Conversations.FindOrCreate(c.Request.Context(), userID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conv)
}

func (h *Handler) GetConversation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}
	detail, err := h.Conversations.GetDetail(c.Request.Context(), userID, convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) ListMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	start := time.Now()
	messages, err := h.Messages.ListThread(c.Request.Context(), userID, convID, limit)
	middleware.RecordMessageOperation("list", h.ServiceName, time.Since(start), err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage - отправка сообщения в диалог
func (h *Handler) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	start := time.Now()
	msg, err := h.Messages.Send(c.Request.Context(), services.SendInput{
		ConversationID: convID,
		SenderID:       userID,
		Content:        req.Content,
		ClientID:       req.ClientID,
	})
	middleware.RecordMessageOperation("send", h.ServiceName, time.Since(start), err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkConversationRead помечает входящие сообщения прочитанными
func (h *Handler) MarkConversationRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}

	start := time.Now()
	updated, err := h.Messages.MarkRead(c.Request.Context(), userID, convID)
	middleware.RecordMessageOperation("read", h.ServiceName, time.Since(start), err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

type PresenceRequest struct {
	Online bool `json:"online"`
}

func (h *Handler) SetPresence(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	set := h.Presence.SetOffline
	if req.Online {
		set = h.Presence.SetOnline
	}
	p, err := set(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPresence(c *gin.Context) {
	targetID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	p, err := h.Presence.Get(c.Request.Context(), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
