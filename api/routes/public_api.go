package routes

import (
	"creaverse/api/handlers"
	"creaverse/api/middleware"
	"creaverse/services"

	"github.com/gin-gonic/gin"
)

func PublicApi(router *gin.Engine, h *handlers.Handler, tokens *services.TokenService) *gin.RouterGroup {
	publicEndpoints := router.Group("/api/v1/")
	publicEndpoints.Use(middleware.OptionalAuthMiddleware(tokens))
	{
		publicEndpoints.POST("auth/register", h.Register)
		publicEndpoints.POST("auth/login", h.Login)
		publicEndpoints.GET("auth/me", h.Me)

		publicEndpoints.GET("profiles", h.SearchProfiles)
		publicEndpoints.GET("profiles/:username", h.GetProfile)
		publicEndpoints.GET("profiles/:username/posts", h.GetProfilePosts)
		publicEndpoints.GET("profiles/:username/feed/:post_id", h.BrowseProfileFeed)
		publicEndpoints.GET("follows/:user_id/followers", h.Followers)
		publicEndpoints.GET("follows/:user_id/following", h.Following)

		publicEndpoints.GET("posts/:id", h.GetPost)
		publicEndpoints.GET("posts/:id/comments", h.ListComments)
		publicEndpoints.GET("categories", h.ListCategories)

		publicEndpoints.GET("proposals", h.ListProposals)
		publicEndpoints.GET("proposals/:id", h.GetProposal)
		publicEndpoints.GET("leaderboard", h.GetLeaderboard)
		publicEndpoints.GET("presence/:user_id", h.GetPresence)
	}

	privateEndpoints := router.Group("/api/v1/")
	privateEndpoints.Use(middleware.AuthMiddleware(tokens))
	{
		privateEndpoints.PATCH("profiles/me", h.UpdateMe)
		privateEndpoints.GET("me/counters", h.GetCounters)

		// Подписки
		privateEndpoints.POST("follows/:user_id", h.Follow)
		privateEndpoints.DELETE("follows/:user_id", h.Unfollow)

		// Посты и лента
		privateEndpoints.GET("feed", h.GetFeed)
		privateEndpoints.POST("feed/rebuild", h.RebuildFeed)
		privateEndpoints.GET("feed/stats", h.GetQueueStats)
		privateEndpoints.POST("posts", h.CreatePost)
		privateEndpoints.DELETE("posts/:id", h.DeletePost)
		privateEndpoints.POST("posts/:id/like", h.LikePost)
		privateEndpoints.DELETE("posts/:id/like", h.UnlikePost)
		privateEndpoints.POST("posts/:id/comments", h.AddComment)
		privateEndpoints.POST("posts/:id/share", h.SharePost)
		privateEndpoints.POST("posts/:id/reviews", h.ReviewPost)
		privateEndpoints.POST("media/uploads", h.CreateUpload)
		privateEndpoints.GET("media/download", h.DownloadURL)

		privateEndpoints.GET("notifications", h.ListNotifications)
		privateEndpoints.POST("notifications/read", h.MarkNotificationsRead)

		privateEndpoints.POST("proposals", h.CreateProposal)
		privateEndpoints.POST("proposals/:id/votes", h.CastVote)
		privateEndpoints.POST("proposals/:id/finalize", h.FinalizeProposal)
	}
	return publicEndpoints
}
