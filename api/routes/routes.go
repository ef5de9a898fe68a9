package routes

import (
	"creaverse/api/handlers"
	"creaverse/api/middleware"
	"creaverse/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter собирает gin engine со всеми маршрутами и /metrics
func NewRouter(h *handlers.Handler, tokens *services.TokenService, limiter *middleware.UserRateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware(h.ServiceName))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	PublicApi(router, h, tokens)
	MessagingApi(router, h, tokens, limiter)
	return router
}
