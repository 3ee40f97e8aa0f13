package llm

import (
	"context"
	"sort"
	"time"
)

// Client 大模型客户端接口
// 负责处理与大语言模型的交互
type Client interface {
	// Chat 发送一组消息并返回模型的回复
	Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error)

	// Name 返回模型名称
	Name() string
}

// Config 大模型客户端配置
type Config struct {
	APIKey      string        // API密钥
	BaseURL     string        // API基础URL
	Model       string        // 模型名称
	Timeout     time.Duration // 请求超时时间
	MaxTokens   int           // 最大生成Token数
	Temperature float32       // 采样温度(0.0-2.0)，0表示使用服务端默认值
}

// DefaultConfig 返回默认配置
// BaseURL与Model为空时由各个客户端使用自己的默认值
// 客户端不做重试，每次调用只发送一次请求
func DefaultConfig() *Config {
	return &Config{
		Timeout:   60 * time.Second,
		MaxTokens: DefaultAnswerMaxTokens,
	}
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithAPIKey 设置API密钥
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL 设置API基础URL
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel 设置模型名称
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxTokens 设置最大生成Token数
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithTemperature 设置采样温度
func WithTemperature(temp float32) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// NewConfig 创建一个新的配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ChatOption 聊天请求的选项
type ChatOption func(*ChatOptions)

// ChatOptions 聊天请求的选项集合，未设置的项使用客户端配置
type ChatOptions struct {
	MaxTokens   *int     // 最大生成Token数
	Temperature *float32 // 采样温度
}

// WithChatMaxTokens 设置聊天请求的最大Token数
func WithChatMaxTokens(tokens int) ChatOption {
	return func(o *ChatOptions) {
		o.MaxTokens = &tokens
	}
}

// WithChatTemperature 设置聊天请求的采样温度
func WithChatTemperature(temp float32) ChatOption {
	return func(o *ChatOptions) {
		o.Temperature = &temp
	}
}

// resolve 合并请求选项与客户端配置
func (o *ChatOptions) resolve(maxTokens int, temperature float32) (int, float32) {
	if o.MaxTokens != nil {
		maxTokens = *o.MaxTokens
	}
	if o.Temperature != nil {
		temperature = *o.Temperature
	}
	return maxTokens, temperature
}

// applyChatOptions 应用聊天选项
func applyChatOptions(options []ChatOption) *ChatOptions {
	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}

// Factory 大模型客户端工厂函数类型
type Factory func(opts ...Option) (Client, error)

// 全局注册的大模型客户端工厂函数
var clientFactories = make(map[string]Factory)

// RegisterClient 注册大模型客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// Providers 返回已注册的客户端名称
func Providers() []string {
	names := make([]string, 0, len(clientFactories))
	for name := range clientFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient 根据名称创建大模型客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewLLMError(
			ErrCodeInvalidRequest,
			"llm client type not registered: "+name)
	}
	return factory(opts...)
}
