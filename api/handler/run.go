package handler

import (
	"net/http"

	"github.com/fyerfyer/doc-qa-extractor/api/middleware"
	"github.com/fyerfyer/doc-qa-extractor/api/model"
	"github.com/fyerfyer/doc-qa-extractor/internal/report"
	"github.com/fyerfyer/doc-qa-extractor/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RunHandler 处理Run相关的API请求
type RunHandler struct {
	pipeline *services.Pipeline // 处理流程
	logger   *logrus.Logger     // 日志记录器
}

// NewRunHandler 创建Run处理器
func NewRunHandler(pipeline *services.Pipeline) *RunHandler {
	return &RunHandler{
		pipeline: pipeline,
		logger:   middleware.GetLogger(),
	}
}

// GetRun 获取Run状态
// GET /api/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的ID"))
		return
	}

	run, err := h.pipeline.GetRun(req.ID)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewRunResponse(run)))
}

// GenerateAnswers 为提取到的问题获取回答并生成结果文档
// POST /api/runs/:id/answers
func (h *RunHandler) GenerateAnswers(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的ID"))
		return
	}

	run, err := h.pipeline.GenerateAnswers(c.Request.Context(), req.ID, progressLogger(h.logger, c))
	if err != nil {
		h.logger.WithError(err).WithField(middleware.FieldRunID, req.ID).Warn("Answer generation failed")
		middleware.HandleError(c, toAppError(err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewRunResponse(run)))
}

// Download 下载结果文档
// GET /api/runs/:id/download?format=docx
func (h *RunHandler) Download(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的ID"))
		return
	}
	var query model.DownloadRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("不支持的结果文档格式", err.Error()))
		return
	}

	data, format, err := h.pipeline.Assemble(req.ID, report.Format(query.Format))
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	assembler, err := report.New(format)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	h.logger.WithFields(logrus.Fields{
		middleware.FieldRunID: req.ID,
		"format":              format,
		"size":                len(data),
	}).Info("Result document downloaded")

	c.Header("Content-Disposition", `attachment; filename="`+report.FileName(format)+`"`)
	c.Data(http.StatusOK, assembler.ContentType(), data)
}

// DeleteRun 丢弃Run及其结果文档
// DELETE /api/runs/:id
func (h *RunHandler) DeleteRun(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的ID"))
		return
	}

	if err := h.pipeline.DeleteRun(req.ID); err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.RunDeleteResponse{
		Success: true,
		RunID:   req.ID,
	}))
}
