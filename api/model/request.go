package model

import (
	"mime/multipart"
)

// DocumentUploadRequest 文档上传请求
type DocumentUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"` // 文件对象，仅支持.pdf与.docx
}

// RunRequest 指定Run的请求
type RunRequest struct {
	ID string `uri:"id" binding:"required"` // Run ID
}

// DownloadRequest 下载结果文档请求
type DownloadRequest struct {
	Format string `form:"format" binding:"omitempty,oneof=docx pdf xlsx html md"` // 结果文档格式，默认docx
}

// APIKeyRequest 设置会话API密钥请求
type APIKeyRequest struct {
	APIKey string `json:"api_key" binding:"required,apikey"` // 以sk-或org-开头的密钥
}
