package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/coauthor/internal/middleware"
)

type RouterDeps struct {
	Articles       *ArticleHandler
	Versions       *VersionHandler
	Collaborators  *CollaboratorHandler
	JWTSecret      []byte
	WriteRateLimit time.Duration
	// Metrics is served without authentication when set.
	Metrics http.Handler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	if deps.Metrics != nil {
		api.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	write := middleware.RateLimit(deps.WriteRateLimit)

	authGroup.GET("/articles", deps.Articles.List)
	authGroup.POST("/articles", write, deps.Articles.Create)
	authGroup.GET("/articles/:id", deps.Articles.Get)
	authGroup.PUT("/articles/:id", write, deps.Articles.Update)
	authGroup.GET("/articles/:id/attribution", deps.Articles.Attribution)

	authGroup.GET("/articles/:id/versions", deps.Versions.List)
	authGroup.GET("/articles/:id/versions/:version", deps.Versions.Get)
	authGroup.POST("/articles/:id/restore/:version", write, deps.Versions.Restore)

	authGroup.GET("/articles/:id/collaborators", deps.Collaborators.List)
	authGroup.POST("/articles/:id/collaborate", write, deps.Collaborators.Add)
	authGroup.DELETE("/articles/:id/collaborators/:userId", write, deps.Collaborators.Remove)

	authGroup.POST("/compose", deps.Articles.Compose)
}
