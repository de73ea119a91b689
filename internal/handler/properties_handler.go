package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/replconsole/internal/config"
	"github.com/xxxsen/replconsole/internal/pkg/response"
)

type PropertiesHandler struct {
	properties config.Properties
	evaluator  string
}

func NewPropertiesHandler(properties config.Properties, evaluatorName string) *PropertiesHandler {
	return &PropertiesHandler{properties: properties, evaluator: evaluatorName}
}

func (h *PropertiesHandler) Get(c *gin.Context) {
	response.Success(c, gin.H{
		"properties": h.properties,
		"evaluator":  h.evaluator,
	})
}
