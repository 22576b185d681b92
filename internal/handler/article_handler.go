package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/coauthor/internal/pkg/response"
	"github.com/xxxsen/coauthor/internal/service"
)

type ArticleHandler struct {
	articles *service.ArticleService
}

func NewArticleHandler(articles *service.ArticleService) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

type createArticleRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPublic bool   `json:"is_public"`
}

type saveArticleRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	IsPublic      *bool  `json:"is_public"`
	ClientVersion int    `json:"client_version"`
}

func (h *ArticleHandler) Create(c *gin.Context) {
	var req createArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		invalidRequest(c, "title required")
		return
	}
	article, err := h.articles.Create(c.Request.Context(), getUserID(c), service.CreateInput{
		Title:    req.Title,
		Content:  req.Content,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, article)
}

func (h *ArticleHandler) List(c *gin.Context) {
	publicOnly := false
	if value := c.Query("public_only"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			invalidRequest(c, "invalid public_only")
			return
		}
		publicOnly = parsed
	}
	articles, err := h.articles.List(c.Request.Context(), getUserID(c), publicOnly)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, articles)
}

func (h *ArticleHandler) Get(c *gin.Context) {
	articleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	article, err := h.articles.Get(c.Request.Context(), articleID, getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, article)
}

// Update saves a new version. client_version is the version the edit was
// based on; a stale value yields 409 and nothing is written.
func (h *ArticleHandler) Update(c *gin.Context) {
	articleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req saveArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	if req.ClientVersion <= 0 {
		invalidRequest(c, "client_version required")
		return
	}
	article, version, err := h.articles.Save(c.Request.Context(), articleID, getUserID(c), service.SaveInput{
		ClientVersion: req.ClientVersion,
		Title:         req.Title,
		Content:       req.Content,
		IsPublic:      req.IsPublic,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"article": article, "version": version})
}

func (h *ArticleHandler) Attribution(c *gin.Context) {
	articleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	versionNumber := 0
	if value := c.Query("version"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			invalidRequest(c, "invalid version")
			return
		}
		versionNumber = parsed
	}
	segments, err := h.articles.Attribution(c.Request.Context(), articleID, getUserID(c), versionNumber)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, segments)
}

type composeRequest struct {
	Content string `json:"content"`
	Text    string `json:"text"`
	Mode    string `json:"mode"`
}

func (h *ArticleHandler) Compose(c *gin.Context) {
	var req composeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	content, err := h.articles.Compose(c.Request.Context(), getUserID(c), service.ComposeInput{
		Content: req.Content,
		Text:    req.Text,
		Mode:    service.ComposeMode(strings.ToLower(strings.TrimSpace(req.Mode))),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"content": content})
}
