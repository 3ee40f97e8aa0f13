package llm

import (
	"context"
	"strings"
)

// DefaultAnswerSystemPrompt 回答问题时使用的系统提示词
const DefaultAnswerSystemPrompt = "You are a domain expert providing factual, concise answers. " +
	"Never mention AI, LLMs, or language models in your responses. " +
	"Never say 'As an AI' or similar phrases. " +
	"Respond in a natural, human-like manner with factual information only."

// DefaultAnswerMaxTokens 单个回答的最大Token数
const DefaultAnswerMaxTokens = 150

// FallbackAnswer 获取回答失败时使用的固定文本
const FallbackAnswer = "Unable to generate an answer at this time."

// Answerer 为单个问题获取回答
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// AnswerConfig 回答配置
type AnswerConfig struct {
	SystemPrompt string   // 系统提示词
	MaxTokens    int      // 最大生成Token数
	Temperature  *float32 // 采样温度，为空时使用客户端默认值
}

// AnswerOption 回答配置选项
type AnswerOption func(*AnswerConfig)

// WithSystemPrompt 设置系统提示词
func WithSystemPrompt(prompt string) AnswerOption {
	return func(c *AnswerConfig) {
		c.SystemPrompt = prompt
	}
}

// WithAnswerMaxTokens 设置最大Token数
func WithAnswerMaxTokens(tokens int) AnswerOption {
	return func(c *AnswerConfig) {
		if tokens > 0 {
			c.MaxTokens = tokens
		}
	}
}

// WithAnswerTemperature 设置采样温度
func WithAnswerTemperature(temp float32) AnswerOption {
	return func(c *AnswerConfig) {
		c.Temperature = &temp
	}
}

// QuestionAnswerer 基于大模型客户端的问题回答器
type QuestionAnswerer struct {
	Client Client
	config AnswerConfig
}

// NewQuestionAnswerer 创建问题回答器
func NewQuestionAnswerer(client Client, opts ...AnswerOption) *QuestionAnswerer {
	cfg := AnswerConfig{
		SystemPrompt: DefaultAnswerSystemPrompt,
		MaxTokens:    DefaultAnswerMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &QuestionAnswerer{Client: client, config: cfg}
}

// Answer 获取问题的回答
// 回答去除首尾空白，空回答视为失败
func (a *QuestionAnswerer) Answer(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	messages := []Message{
		{Role: RoleSystem, Content: a.config.SystemPrompt},
		{Role: RoleUser, Content: question},
	}

	opts := []ChatOption{WithChatMaxTokens(a.config.MaxTokens)}
	if a.config.Temperature != nil {
		opts = append(opts, WithChatTemperature(*a.config.Temperature))
	}

	resp, err := a.Client.Chat(ctx, messages, opts...)
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return "", NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}
	return answer, nil
}
