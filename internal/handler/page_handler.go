package handler

import (
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PageHandler serves the console page and its assets.
type PageHandler struct {
	index  []byte
	assets http.FileSystem
}

func NewPageHandler(static fs.FS) (*PageHandler, error) {
	index, err := fs.ReadFile(static, "index.html")
	if err != nil {
		return nil, fmt.Errorf("read index page: %w", err)
	}
	return &PageHandler{index: index, assets: http.FS(static)}, nil
}

func (h *PageHandler) Index(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", h.index)
}
