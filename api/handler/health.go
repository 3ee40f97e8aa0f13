package handler

import (
	"net/http"

	"github.com/fyerfyer/doc-qa-extractor/api/model"
	"github.com/fyerfyer/doc-qa-extractor/internal/llm"
	"github.com/fyerfyer/doc-qa-extractor/internal/report"
	"github.com/fyerfyer/doc-qa-extractor/internal/services"
	"github.com/gin-gonic/gin"
)

// HealthHandler 健康检查
type HealthHandler struct {
	pipeline *services.Pipeline
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(pipeline *services.Pipeline) *HealthHandler {
	return &HealthHandler{pipeline: pipeline}
}

// Health 返回服务状态与OCR引擎是否可用
// GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	formats := report.Formats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.HealthResponse{
		Status:       "ok",
		OCRAvailable: h.pipeline.OCRAvailable(),
		Providers:    llm.Providers(),
		Formats:      names,
	}))
}
