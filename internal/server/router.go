package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dialecticlabs/dialectic-backend/internal/handlers"
	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/middleware"
)

// NewRouter wires the assembly API. Everything under /api is
// JWT-protected; /healthz is open for probes.
func NewRouter(assembly *handlers.AssemblyHandler, jwtSecret string, allowedOrigins []string, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.Auth(jwtSecret, log))
	{
		asm := api.Group("/assembly")
		asm.POST("/seed", assembly.Seed)
		asm.POST("/planner", assembly.Planner)
		asm.POST("/turn", assembly.Turn)
		asm.GET("/continuation/:rootId", assembly.Continuation)
	}
	return r
}
