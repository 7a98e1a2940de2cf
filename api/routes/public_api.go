package routes

import (
	"feelings/api/handlers"
	"feelings/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func PublicApi(router *gin.Engine) *gin.RouterGroup {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	publicEndpoints := router.Group("/api/v1/")
	{
		feelings := publicEndpoints.Group("feelings")
		feelings.GET("", handlers.ListFeelings)
		feelings.GET("/:id", handlers.GetFeeling)

		mutations := feelings.Group("")
		mutations.Use(middleware.IdentityMiddleware())
		{
			mutations.POST("", handlers.CreateFeeling)
			mutations.POST("/:id/like", handlers.ToggleLike)
			mutations.POST("/:id/comment", handlers.AddComment)
		}

		publicEndpoints.GET("ws/feed", middleware.OptionalIdentityMiddleware(), handlers.WSFeedHandler)

		// Operational endpoints
		publicEndpoints.POST("admin/feed/rebuild", handlers.RebuildFeedCache)
		publicEndpoints.GET("admin/queue/stats", handlers.GetQueueStats)
	}
	return publicEndpoints
}
