package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient OpenAI chat/completions客户端
type OpenAIClient struct {
	client      *openai.Client // OpenAI API客户端
	model       string         // 使用的模型
	maxTokens   int            // 默认最大生成Token数
	temperature float32        // 默认采样温度
}

// NewOpenAIClient 创建OpenAI客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	// 检查必要配置
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = ModelGPT4
	}

	// 创建OpenAI客户端配置
	clientConfig := openai.DefaultConfig(cfg.APIKey)

	// 如果指定了自定义端点，则使用它
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.model
}

// Chat 发送对话请求，只尝试一次
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	maxTokens, temperature := applyChatOptions(options).resolve(c.maxTokens, c.temperature)

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, openAIError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, NewLLMError(ErrCodeContentFilter, ErrMsgContentFilter)
	}

	reply := Message{Role: RoleAssistant, Content: choice.Message.Content}
	return &Response{
		Text:       reply.Content,
		Messages:   []Message{reply},
		TokenCount: resp.Usage.TotalTokens,
		ModelName:  c.model,
		FinishTime: time.Now(),
	}, nil
}

// openAIError 将go-openai返回的错误转换为LLMError
func openAIError(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewLLMError(codeForStatus(apiErr.HTTPStatusCode),
			fmt.Sprintf("API error: %s (%s)", apiErr.Message, apiErr.Type))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewLLMError(codeForStatus(reqErr.HTTPStatusCode),
			fmt.Sprintf("API error (status %d): %v", reqErr.HTTPStatusCode, reqErr.Err))
	}

	if ctx.Err() != nil {
		return NewLLMError(ErrCodeTimeout, ctx.Err().Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewLLMError(ErrCodeTimeout, err.Error())
		}
		return NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
	}

	return NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
