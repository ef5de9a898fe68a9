package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"creaverse/api/middleware"
	"creaverse/services"

	"github.com/gin-gonic/gin"
)

// Deps are the services the HTTP layer talks to.
type Deps struct {
	Profiles      *services.ProfileService
	Follows       *services.FollowService
	Conversations *services.ConversationService
	Messages      *services.MessageService
	Presence      *services.PresenceService
	Posts         *services.PostService
	Categories    *services.CategoryService
	Notifications *services.NotificationService
	Governance    *services.GovernanceService
	Rewards       *services.RewardService
	Media         *services.MediaService
	Counters      *services.CounterService
	WS            *services.WSConnManager
	ServiceName   string
}

type Handler struct {
	Deps
}

func New(deps Deps) *Handler {
	if deps.ServiceName == "" {
		deps.ServiceName = "creaverse"
	}
	return &Handler{Deps: deps}
}

// currentUser пишет 401, если пользователь не аутентифицирован
func currentUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return userID, true
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrSelfConversation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrAlreadyExists),
		errors.Is(err, services.ErrAlreadyVoted),
		errors.Is(err, services.ErrVotingClosed),
		errors.Is(err, services.ErrVotingOpen):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps service errors to a status and a JSON error body.
// Internal errors are logged and never echoed to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
