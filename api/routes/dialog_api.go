package routes

import (
	"creaverse/api/handlers"
	"creaverse/api/middleware"
	"creaverse/services"

	"github.com/gin-gonic/gin"
)

// MessagingApi регистрирует диалоги, presence и websocket; все требуют сессию
func MessagingApi(router *gin.Engine, h *handlers.Handler, tokens *services.TokenService, limiter *middleware.UserRateLimiter) *gin.RouterGroup {
	auth := middleware.AuthMiddleware(tokens)

	router.GET("/ws", auth, h.WSHandler)

	messagingEndpoints := router.Group("/api/v1/")
	messagingEndpoints.Use(auth)
	{
		messagingEndpoints.GET("conversations", h.ListConversations)
		messagingEndpoints.POST("conversations", h.StartConversation)
		messagingEndpoints.GET("conversations/:id", h.GetConversation)
		messagingEndpoints.GET("conversations/:id/messages", h.ListMessages)
		messagingEndpoints.POST("conversations/:id/messages", middleware.RateLimitMiddleware(limiter), h.SendMessage)
		messagingEndpoints.POST("conversations/:id/read", h.MarkConversationRead)
		messagingEndpoints.PUT("presence", h.SetPresence)
	}
	return messagingEndpoints
}
