package handler

import (
	"context"
	"errors"

	"github.com/fyerfyer/doc-qa-extractor/api/middleware"
	"github.com/fyerfyer/doc-qa-extractor/internal/credential"
	"github.com/fyerfyer/doc-qa-extractor/internal/document"
	"github.com/fyerfyer/doc-qa-extractor/internal/models"
	"github.com/fyerfyer/doc-qa-extractor/internal/report"
	"github.com/fyerfyer/doc-qa-extractor/internal/services"
)

// toAppError 将服务层错误转换为应用错误
func toAppError(err error) middleware.AppError {
	switch {
	case errors.Is(err, models.ErrRunNotFound):
		return middleware.NewNotFoundError("未找到处理记录或已过期")
	case errors.Is(err, document.ErrUnsupportedFormat):
		return middleware.NewValidationError("不支持的文件类型，仅支持 .pdf 和 .docx", err.Error())
	case errors.Is(err, report.ErrUnknownFormat):
		return middleware.NewValidationError("不支持的结果文档格式", err.Error())
	case errors.Is(err, credential.ErrInvalidCredential):
		return middleware.NewUnauthorizedError("API密钥缺失或格式不正确")
	case errors.Is(err, services.ErrNoQuestions):
		return middleware.NewBusinessError("文档中没有可回答的问题")
	case errors.Is(err, services.ErrRunNotReady):
		return middleware.NewConflictError("尚未生成回答", err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		return middleware.NewConflictError("当前状态不允许该操作", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return middleware.NewInternalError("请求已取消或超时", err.Error())
	default:
		return middleware.NewInternalError("处理失败", err.Error())
	}
}
