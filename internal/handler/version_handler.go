package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/coauthor/internal/pkg/response"
	"github.com/xxxsen/coauthor/internal/service"
)

type VersionHandler struct {
	articles *service.ArticleService
}

func NewVersionHandler(articles *service.ArticleService) *VersionHandler {
	return &VersionHandler{articles: articles}
}

func (h *VersionHandler) List(c *gin.Context) {
	articleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	versions, err := h.articles.ListVersions(c.Request.Context(), articleID, getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, versions)
}

func (h *VersionHandler) Get(c *gin.Context) {
	articleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	versionNumber, ok := parseVersionParam(c, "version")
	if !ok {
		return
	}
	version, err := h.articles.GetVersion(c.Request.Context(), articleID, getUserID(c), versionNumber)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, version)
}

func (h *VersionHandler) Restore(c *gin.Context) {
	articleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	versionNumber, ok := parseVersionParam(c, "version")
	if !ok {
		return
	}
	version, err := h.articles.RestoreVersion(c.Request.Context(), articleID, getUserID(c), versionNumber)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, version)
}
