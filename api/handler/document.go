package handler

import (
	"net/http"

	"github.com/fyerfyer/doc-qa-extractor/api/middleware"
	"github.com/fyerfyer/doc-qa-extractor/api/model"
	"github.com/fyerfyer/doc-qa-extractor/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DocumentHandler 处理文档上传请求
type DocumentHandler struct {
	pipeline *services.Pipeline // 处理流程
	logger   *logrus.Logger     // 日志记录器
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(pipeline *services.Pipeline) *DocumentHandler {
	return &DocumentHandler{
		pipeline: pipeline,
		logger:   middleware.GetLogger(),
	}
}

// UploadDocument 上传文档并提取问题
// POST /api/documents
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	// 绑定请求参数
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Invalid document upload request")

		middleware.HandleError(c, middleware.NewValidationError("未提供文件", err.Error()))
		return
	}

	// 打开上传的文件
	filename := req.File.Filename
	file, err := req.File.Open()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to open uploaded file")

		middleware.HandleError(c, middleware.NewInternalError("无法打开上传的文件"))
		return
	}
	defer file.Close()

	run, err := h.pipeline.ExtractQuestions(c.Request.Context(), filename, file, progressLogger(h.logger, c))
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	h.logger.WithFields(logrus.Fields{
		middleware.FieldRunID: run.ID,
		"filename":            filename,
		"questions":           len(run.Questions),
	}).Info("Document processed")

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewRunResponse(run)))
}

// progressLogger 将处理进度写入调试日志
func progressLogger(logger *logrus.Logger, c *gin.Context) services.ProgressObserver {
	traceID := c.GetString(middleware.TraceIDKey)
	return services.ProgressFunc(func(stage services.Stage, current, total int) {
		percent := 0
		if total > 0 {
			percent = current * 100 / total
		}
		logger.WithFields(logrus.Fields{
			middleware.FieldTraceID: traceID,
			"stage":                 stage,
			"current":               current,
			"total":                 total,
			"percent":               percent,
		}).Debug("Progress")
	})
}
