package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/replconsole/internal/pkg/errcode"
	appErr "github.com/xxxsen/replconsole/internal/pkg/errors"
	"github.com/xxxsen/replconsole/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case errors.Is(err, appErr.ErrNotReady):
		response.Error(c, errcode.ErrNotReady, "session not ready")
	case errors.Is(err, appErr.ErrStartup):
		response.Error(c, errcode.ErrStartup, "session startup failed")
	case errors.Is(err, appErr.ErrQueueFull):
		response.Error(c, errcode.ErrQueueFull, "submission queue full")
	case errors.Is(err, appErr.ErrSessionGone):
		response.Error(c, errcode.ErrSessionGone, "session closed")
	case errors.Is(err, appErr.ErrNoTranscript):
		response.Error(c, errcode.ErrNoTranscript, "transcript disabled")
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(c, errcode.ErrTimeout, "submission timeout")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, appErr.ErrInvalid
	}
	return v, nil
}
