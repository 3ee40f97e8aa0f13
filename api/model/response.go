package model

import (
	"time"

	"github.com/fyerfyer/doc-qa-extractor/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// NoQuestionsMessage 文档中没有找到问题时的提示
const NoQuestionsMessage = "No questions found in the document."

// RunResponse Run状态响应
type RunResponse struct {
	RunID         string                `json:"run_id"`               // Run ID
	FileName      string                `json:"filename"`             // 上传的文件名
	Format        string                `json:"format"`               // 文档格式
	State         string                `json:"state"`                // 当前状态
	Method        string                `json:"method,omitempty"`     // 文本提取方式
	Questions     []string              `json:"questions"`            // 提取到的问题
	Results       []models.AnswerResult `json:"results,omitempty"`    // 问答结果
	FailedAnswers int                   `json:"failed_answers"`       // 使用兜底文本的回答数
	Notices       []string              `json:"notices,omitempty"`    // 提示信息
	Message       string                `json:"message,omitempty"`    // 附加说明
	ErrorKind     string                `json:"error_kind,omitempty"` // 错误分类
	Error         string                `json:"error,omitempty"`      // 错误信息
	DownloadReady bool                  `json:"download_ready"`       // 结果文档是否可下载
	CreatedAt     string                `json:"created_at"`           // 创建时间
	UpdatedAt     string                `json:"updated_at"`           // 更新时间
}

// NewRunResponse 将Run转换为响应
func NewRunResponse(run *models.Run) RunResponse {
	resp := RunResponse{
		RunID:         run.ID,
		FileName:      run.FileName,
		Format:        run.Format,
		State:         string(run.State),
		Method:        run.Method,
		Questions:     run.Questions,
		Results:       run.Results,
		FailedAnswers: run.FailedAnswers(),
		Notices:       run.Notices,
		ErrorKind:     string(run.ErrorKind),
		Error:         run.Error,
		DownloadReady: run.State == models.StateDone,
		CreatedAt:     run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     run.UpdatedAt.Format(time.RFC3339),
	}
	if resp.Questions == nil {
		resp.Questions = []string{}
	}
	if run.NoQuestions() {
		resp.Message = NoQuestionsMessage
	}
	return resp
}

// RunDeleteResponse Run删除响应
type RunDeleteResponse struct {
	Success bool   `json:"success"` // 是否成功
	RunID   string `json:"run_id"`  // Run ID
}

// CredentialResponse API密钥状态，不包含密钥本身
type CredentialResponse struct {
	Configured bool   `json:"configured"`       // 是否存在密钥
	Valid      bool   `json:"valid"`            // 格式是否正确
	Source     string `json:"source"`           // 来源：env、session、config、none
	Masked     string `json:"masked,omitempty"` // 隐藏中间部分的密钥
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status       string   `json:"status"`        // 服务状态
	OCRAvailable bool     `json:"ocr_available"` // OCR引擎是否可用
	Providers    []string `json:"providers"`     // 支持的大模型提供商
	Formats      []string `json:"formats"`       // 支持的结果文档格式
}
