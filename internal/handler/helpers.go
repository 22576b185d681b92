package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coauthor/internal/middleware"
	"github.com/xxxsen/coauthor/internal/pkg/errcode"
	appErr "github.com/xxxsen/coauthor/internal/pkg/errors"
	"github.com/xxxsen/coauthor/internal/pkg/response"
)

func getUserID(c *gin.Context) int64 {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(int64)
	return userID
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ErrorStatus(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid "+name)
		return 0, false
	}
	return id, true
}

func parseVersionParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n <= 0 {
		response.ErrorStatus(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid version")
		return 0, false
	}
	return n, true
}

func invalidRequest(c *gin.Context, msg string) {
	response.ErrorStatus(c, http.StatusBadRequest, errcode.ErrInvalid, msg)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code, msg := classify(err)
	fields := []zap.Field{
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int64("user_id", getUserID(c)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status == http.StatusInternalServerError {
		logutil.GetLogger(c.Request.Context()).Error("request failed", fields...)
	} else {
		logutil.GetLogger(c.Request.Context()).Info("request rejected", fields...)
	}
	response.ErrorStatus(c, status, code, msg)
}

func classify(err error) (int, int, string) {
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		return http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized"
	case errors.Is(err, appErr.ErrForbidden):
		return http.StatusForbidden, errcode.ErrForbidden, "forbidden"
	case errors.Is(err, appErr.ErrNotFound):
		return http.StatusNotFound, errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrInvalid):
		return http.StatusBadRequest, errcode.ErrInvalid, err.Error()
	case errors.Is(err, appErr.ErrVersionConflict):
		return http.StatusConflict, errcode.ErrVersionConflict, "article was modified by someone else, reload and retry"
	case errors.Is(err, appErr.ErrAlreadyExists):
		return http.StatusConflict, errcode.ErrAlreadyExists, "already exists"
	case errors.Is(err, appErr.ErrTooMany):
		return http.StatusTooManyRequests, errcode.ErrTooMany, "too many requests"
	default:
		return http.StatusInternalServerError, errcode.ErrInternal, "internal error"
	}
}
