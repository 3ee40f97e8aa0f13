package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// 通义千问API端点
const defaultTongyiEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

// TongyiClient 通义千问客户端，只发送对话请求
type TongyiClient struct {
	apiKey      string
	endpoint    string
	model       string
	httpClient  *http.Client
	maxTokens   int
	temperature float32
}

// NewTongyiClient 创建通义千问客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultTongyiEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = ModelQwenTurbo
	}

	return &TongyiClient{
		apiKey:      cfg.APIKey,
		endpoint:    endpoint,
		model:       model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Chat 发送一次对话请求
func (c *TongyiClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	maxTokens, temperature := applyChatOptions(options).resolve(c.maxTokens, c.temperature)
	body, err := json.Marshal(tongyiRequest{
		Model: c.model,
		Input: tongyiInput{Messages: messages},
		Parameters: tongyiParameters{
			MaxTokens:    maxTokens,
			Temperature:  temperature,
			ResultFormat: "message",
		},
	})
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
		}
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}

	var out tongyiResponse
	jsonErr := json.Unmarshal(data, &out)

	if resp.StatusCode != http.StatusOK {
		if jsonErr == nil && out.Message != "" {
			return nil, NewLLMError(codeForStatus(resp.StatusCode),
				fmt.Sprintf("API error: %s (%s)", out.Message, out.Code))
		}
		return nil, NewLLMError(codeForStatus(resp.StatusCode),
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(data)))
	}
	if jsonErr != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", jsonErr))
	}
	if out.Code != "" {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("API error: %s (%s)", out.Message, out.Code))
	}
	if len(out.Output.Choices) == 0 {
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	reply := out.Output.Choices[0].Message
	return &Response{
		Text:       reply.Content,
		Messages:   []Message{reply},
		TokenCount: out.Usage.TotalTokens,
		ModelName:  c.model,
		FinishTime: time.Now(),
	}, nil
}

func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
