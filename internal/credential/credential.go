package credential

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// EnvVar 读取API密钥的环境变量
const EnvVar = "OPENAI_API_KEY"

// MinKeyLength API密钥最小长度
const MinKeyLength = 20

// Tag 注册到validator的校验标签
const Tag = "apikey"

// ErrInvalidCredential API密钥缺失或格式不正确
var ErrInvalidCredential = errors.New("invalid or missing API key")

var keyPrefixes = []string{"sk-", "org-"}

// Source 密钥来源
type Source string

const (
	SourceNone    Source = "none"
	SourceEnv     Source = "env"
	SourceSession Source = "session"
	SourceConfig  Source = "config"
)

// Valid 检查密钥格式：非空，长度不小于20，以sk-或org-开头
func Valid(key string) bool {
	if key == "" || len(key) < MinKeyLength {
		return false
	}
	for _, p := range keyPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// validateAPIKey validator的apikey校验函数
func validateAPIKey(fl validator.FieldLevel) bool {
	return Valid(fl.Field().String())
}

// RegisterValidation 在validator上注册apikey标签
func RegisterValidation(v *validator.Validate) error {
	return v.RegisterValidation(Tag, validateAPIKey)
}

var (
	defaultValidate *validator.Validate
	validateOnce    sync.Once
)

// Validator 返回注册了apikey标签的validator实例
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		defaultValidate = validator.New()
		_ = RegisterValidation(defaultValidate)
	})
	return defaultValidate
}

// Validate 校验密钥，不合法时返回ErrInvalidCredential
func Validate(key string) error {
	if err := Validator().Var(key, "required,"+Tag); err != nil {
		return ErrInvalidCredential
	}
	return nil
}

// SessionStore 会话级别的密钥存储
type SessionStore interface {
	APIKey() (string, error)
}

// Resolver 按优先级解析密钥：环境变量 -> 会话 -> 配置文件
// 格式不合法的来源会被跳过。环境变量与配置文件的值在创建时确定
type Resolver struct {
	env     string
	config  string
	session SessionStore
}

// NewResolver 创建解析器，env为空时读取OPENAI_API_KEY
func NewResolver(configKey string, session SessionStore) *Resolver {
	return &Resolver{
		env:     os.Getenv(EnvVar),
		config:  configKey,
		session: session,
	}
}

// NewResolverWithEnv 使用给定的环境变量值创建解析器
func NewResolverWithEnv(envKey, configKey string, session SessionStore) *Resolver {
	return &Resolver{
		env:     envKey,
		config:  configKey,
		session: session,
	}
}

type candidate struct {
	key    string
	source Source
}

// candidates 按优先级返回所有非空密钥
func (r *Resolver) candidates() []candidate {
	var out []candidate
	if r.env != "" {
		out = append(out, candidate{r.env, SourceEnv})
	}
	if r.session != nil {
		if key, err := r.session.APIKey(); err == nil && key != "" {
			out = append(out, candidate{key, SourceSession})
		}
	}
	if r.config != "" {
		out = append(out, candidate{r.config, SourceConfig})
	}
	return out
}

// Resolve 返回第一个格式合法的密钥及其来源
// 所有来源都不合法时返回优先级最高的非空值，调用方可以用Valid区分
func (r *Resolver) Resolve() (string, Source) {
	candidates := r.candidates()
	for _, c := range candidates {
		if Valid(c.key) {
			return c.key, c.source
		}
	}
	if len(candidates) > 0 {
		return candidates[0].key, candidates[0].source
	}
	return "", SourceNone
}

// ResolveValid 返回第一个合法密钥，没有时返回ErrInvalidCredential
func (r *Resolver) ResolveValid() (string, Source, error) {
	key, source := r.Resolve()
	if err := Validate(key); err != nil {
		return "", source, err
	}
	return key, source, nil
}

// Mask 隐藏密钥中间部分，用于日志和状态展示
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
