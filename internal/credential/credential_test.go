package credential

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSession struct {
	key string
	err error
}

func (s staticSession) APIKey() (string, error) { return s.key, s.err }

func TestValid(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"", false},
		{"sk-short", false},
		{"sk-" + strings.Repeat("a", 16), false}, // 19个字符
		{"sk-" + strings.Repeat("a", 17), true},  // 20个字符
		{"org-" + strings.Repeat("b", 16), true},
		{"pk-" + strings.Repeat("c", 30), false},
		{"SK-" + strings.Repeat("d", 30), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, Valid(tt.key), "key %q", tt.key)
		if tt.valid {
			assert.NoError(t, Validate(tt.key))
		} else {
			assert.ErrorIs(t, Validate(tt.key), ErrInvalidCredential)
		}
	}
}

func TestValidatorTag(t *testing.T) {
	type request struct {
		APIKey string `validate:"required,apikey"`
	}

	v := validator.New()
	require.NoError(t, RegisterValidation(v))

	assert.NoError(t, v.Struct(request{APIKey: "sk-abcdefghijklmnopqrstuvwxyz"}))
	assert.Error(t, v.Struct(request{APIKey: "not-a-key"}))
	assert.Error(t, v.Struct(request{}))
}

func TestResolverPriority(t *testing.T) {
	envKey := "sk-env-0000000000000000"
	sessionKey := "sk-session-000000000000"
	configKey := "sk-config-0000000000000"

	key, src := NewResolverWithEnv(envKey, configKey, staticSession{key: sessionKey}).Resolve()
	assert.Equal(t, envKey, key)
	assert.Equal(t, SourceEnv, src)

	key, src = NewResolverWithEnv("", configKey, staticSession{key: sessionKey}).Resolve()
	assert.Equal(t, sessionKey, key)
	assert.Equal(t, SourceSession, src)

	key, src = NewResolverWithEnv("", configKey, staticSession{}).Resolve()
	assert.Equal(t, configKey, key)
	assert.Equal(t, SourceConfig, src)

	key, src = NewResolverWithEnv("", configKey, staticSession{err: errors.New("cache down")}).Resolve()
	assert.Equal(t, configKey, key)
	assert.Equal(t, SourceConfig, src)

	key, src = NewResolverWithEnv("", "", nil).Resolve()
	assert.Empty(t, key)
	assert.Equal(t, SourceNone, src)
}

func TestResolverReadsEnvironment(t *testing.T) {
	t.Setenv(EnvVar, "sk-from-environment-000")

	key, src := NewResolver("", nil).Resolve()
	assert.Equal(t, "sk-from-environment-000", key)
	assert.Equal(t, SourceEnv, src)
}

func TestResolveValid(t *testing.T) {
	// 不合法的环境变量被跳过，使用会话中的密钥
	r := NewResolverWithEnv("placeholder", "", staticSession{key: "sk-session-000000000000"})
	key, src, err := r.ResolveValid()
	require.NoError(t, err)
	assert.Equal(t, "sk-session-000000000000", key)
	assert.Equal(t, SourceSession, src)

	// 环境变量与会话都不合法时回退到配置文件
	r = NewResolverWithEnv("invalid", "sk-config-0000000000000", staticSession{key: "sk-short"})
	key, src, err = r.ResolveValid()
	require.NoError(t, err)
	assert.Equal(t, "sk-config-0000000000000", key)
	assert.Equal(t, SourceConfig, src)

	r = NewResolverWithEnv("", "sk-config-0000000000000", nil)
	key, src, err = r.ResolveValid()
	require.NoError(t, err)
	assert.Equal(t, "sk-config-0000000000000", key)
	assert.Equal(t, SourceConfig, src)
}

func TestResolveNoValidKey(t *testing.T) {
	// 全部不合法时报告优先级最高的来源
	r := NewResolverWithEnv("placeholder", "also-invalid", staticSession{})
	key, src := r.Resolve()
	assert.Equal(t, "placeholder", key)
	assert.Equal(t, SourceEnv, src)

	_, src, err := r.ResolveValid()
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, SourceEnv, src)

	_, src, err = NewResolverWithEnv("", "", nil).ResolveValid()
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, SourceNone, src)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "sk-a*************wxyz", Mask("sk-abcdefghijklmnwxyz"))
	assert.Equal(t, "****", Mask("abcd"))
}
