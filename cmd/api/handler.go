package api

import (
	accountUsecase "pixeltrace/internal/account/usecase"
	trackUsecase "pixeltrace/internal/track/usecase"
	"pixeltrace/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase accountUsecase.AuthUsecase
	recorder    trackUsecase.Recorder
	resolver    trackUsecase.Resolver
	config      *config.Config
}

func NewHandler(authUc accountUsecase.AuthUsecase, recorder trackUsecase.Recorder, resolver trackUsecase.Resolver, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase: authUc,
		recorder:    recorder,
		resolver:    resolver,
		config:      cfg,
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Setup routes
	SetupRoutes(r, h.authUsecase, h.recorder, h.resolver)

	return r.Run(addr)
}
