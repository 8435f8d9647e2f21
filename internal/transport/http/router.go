package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pufmi/connect4/internal/transport/http/middleware"
)

func NewRouter(games GameService, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(allowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	gameHandler := NewGameHandler(games)

	api := router.Group("/api/games")
	{
		api.POST("", gameHandler.StartGame)
		api.GET("", gameHandler.ListGames)
		api.GET("/:id", gameHandler.GetGame)
		api.POST("/:id/moves", gameHandler.MakeMove)
	}

	return router
}
