package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	appErr "github.com/xxxsen/replconsole/internal/pkg/errors"
	"github.com/xxxsen/replconsole/internal/pkg/response"
	"github.com/xxxsen/replconsole/internal/service"
)

type ConsoleHandler struct {
	console       *service.ConsoleService
	submitTimeout time.Duration
}

func NewConsoleHandler(console *service.ConsoleService, submitTimeout time.Duration) *ConsoleHandler {
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	return &ConsoleHandler{console: console, submitTimeout: submitTimeout}
}

type submitRequest struct {
	Text *string `json:"text"`
}

func (h *ConsoleHandler) Open(c *gin.Context) {
	view, err := h.console.Open(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *ConsoleHandler) Get(c *gin.Context) {
	view, err := h.console.Get(c.Param("id"), true)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *ConsoleHandler) Output(c *gin.Context) {
	since, err := queryInt(c, "since", 0)
	if err != nil {
		handleError(c, err)
		return
	}
	id := c.Param("id")
	records, last, err := h.console.Output(id, uint64(since))
	if err != nil {
		handleError(c, err)
		return
	}
	view, err := h.console.Get(id, false)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"records":  records,
		"last_seq": last,
		"state":    view.State,
		"ready":    view.Ready,
		"error":    view.Error,
	})
}

// Submit forwards the text as one form submission and waits for its exchange.
// Empty text is a valid submission.
func (h *ConsoleHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.submitTimeout)
	defer cancel()
	x, err := h.console.Submit(ctx, c.Param("id"), *req.Text)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, x)
}

func (h *ConsoleHandler) Close(c *gin.Context) {
	if err := h.console.Close(c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ConsoleHandler) Transcript(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		handleError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		handleError(c, err)
		return
	}
	entries, err := h.console.Transcript(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"entries": entries})
}
