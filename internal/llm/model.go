package llm

import "time"

// MessageRole 消息角色类型
type MessageRole string

const (
	// RoleSystem 系统角色
	RoleSystem MessageRole = "system"
	// RoleUser 用户角色
	RoleUser MessageRole = "user"
	// RoleAssistant 助手角色
	RoleAssistant MessageRole = "assistant"
	// RoleTool 工具角色
	RoleTool MessageRole = "tool"
)

// Message 对话消息结构
type Message struct {
	Role    MessageRole `json:"role"`           // 角色
	Content string      `json:"content"`        // 内容
	Name    string      `json:"name,omitempty"` // 可选名称标识
}

// tongyiRequest 通义千问请求结构
type tongyiRequest struct {
	Model      string           `json:"model"`
	Input      tongyiInput      `json:"input"`
	Parameters tongyiParameters `json:"parameters"`
}

type tongyiInput struct {
	Messages []Message `json:"messages"`
}

// tongyiParameters 只包含回答问题时需要的参数
type tongyiParameters struct {
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	ResultFormat string  `json:"result_format"` // 固定为message
}

// tongyiResponse 通义千问响应结构
type tongyiResponse struct {
	Code    string `json:"code"`    // 错误码(如果有)
	Message string `json:"message"` // 错误消息(如果有)
	Output  struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Response 统一的响应结构
type Response struct {
	Text       string    // 生成的文本
	Messages   []Message // 助手回复
	TokenCount int       // 使用的token数
	ModelName  string    // 使用的模型名称
	FinishTime time.Time // 完成时间
}

// Model 常用模型名称
const (
	ModelQwenTurbo  = "qwen-turbo"   // 通义千问-Turbo模型（较快，基础能力）
	ModelQwenPlus   = "qwen-plus"    // 通义千问-Plus模型（平衡速度和性能）
	ModelQwenMax    = "qwen-max"     // 通义千问-Max模型（高级能力，速度较慢）
	ModelQwenLong   = "qwen-long"    // 通义千问-Long模型（支持长上下文）
	ModelQwenVLPlus = "qwen-vl-plus" // 通义千问VL-Plus模型（支持图像）
	ModelDeepSeek   = "deepseek"     // DeepSeek模型

	ModelGPT4        = "gpt-4"            // OpenAI GPT-4
	ModelGPT4o       = "gpt-4o"           // OpenAI GPT-4o
	ModelGPT4oMini   = "gpt-4o-mini"      // OpenAI GPT-4o mini
	ModelGeminiFlash = "gemini-1.5-flash" // Google Gemini 1.5 Flash
)
