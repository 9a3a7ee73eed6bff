package api

import (
	"net/http"

	accountDelivery "pixeltrace/internal/account/delivery"
	accountUsecase "pixeltrace/internal/account/usecase"
	trackDelivery "pixeltrace/internal/track/delivery"
	trackUsecase "pixeltrace/internal/track/usecase"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUc accountUsecase.AuthUsecase, recorder trackUsecase.Recorder, resolver trackUsecase.Resolver) {
	authHandler := accountDelivery.NewAuthHandler(authUc)
	pixelHandler := trackDelivery.NewPixelHandler(recorder)
	trackHandler := trackDelivery.NewTrackHandler(resolver)

	// Pixel endpoint lives outside /api; mail clients fetch it directly.
	r.GET("/t/:trackId", pixelHandler.Serve)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/google", authHandler.SignIn)
			auth.GET("/me", accountDelivery.AuthMiddleware(authUc), authHandler.Me)
		}

		// Item routes: reads and deletes serve both anonymous and
		// authenticated callers, so auth is optional there.
		items := api.Group("/items")
		{
			items.GET("", accountDelivery.OptionalAuthMiddleware(authUc), trackHandler.GetItems)
			items.DELETE("", accountDelivery.OptionalAuthMiddleware(authUc), trackHandler.DeleteItems)
			items.POST("/link", accountDelivery.AuthMiddleware(authUc), trackHandler.LinkItems)
			items.POST("/conflict-check", accountDelivery.OptionalAuthMiddleware(authUc), trackHandler.ConflictCheck)
		}
	}
}
