package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient Google Gemini客户端
type GeminiClient struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewGeminiClient 创建Gemini客户端
func NewGeminiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.BaseURL))
	}

	cl, err := genai.NewClient(context.Background(), clientOpts...)
	if err != nil {
		return nil, WrapError(err, ErrCodeInvalidRequest)
	}

	model := cfg.Model
	if model == "" {
		model = ModelGeminiFlash
	}

	return &GeminiClient{
		client:      cl,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

// Name 返回模型名称
func (c *GeminiClient) Name() string {
	return c.model
}

// Close 关闭底层连接
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Chat 进行对话
// system消息作为SystemInstruction，其余消息按顺序作为对话历史，最后一条user消息为本次输入
func (c *GeminiClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	m := c.client.GenerativeModel(c.model)
	maxTokens, temperature := applyChatOptions(options).resolve(c.maxTokens, c.temperature)
	if maxTokens > 0 {
		m.SetMaxOutputTokens(int32(maxTokens))
	}
	if temperature > 0 {
		m.SetTemperature(temperature)
	}

	var (
		system  []string
		history []*genai.Content
	)
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(system, "\n"))},
		}
	}
	if len(history) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "no user message")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	last := history[len(history)-1]
	session := m.StartChat()
	session.History = history[:len(history)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
		}
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("gemini generate: %v", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	result := &Response{
		Text:       b.String(),
		Messages:   []Message{{Role: RoleAssistant, Content: b.String()}},
		ModelName:  c.model,
		FinishTime: time.Now(),
	}
	if resp.UsageMetadata != nil {
		result.TokenCount = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

func init() {
	RegisterClient("gemini", NewGeminiClient)
}
