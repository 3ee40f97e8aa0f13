package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	LLM     LLMConfig     `mapstructure:"llm"`
	OCR     OCRConfig     `mapstructure:"ocr"`
	Extract ExtractConfig `mapstructure:"extract"`
	Answers AnswersConfig `mapstructure:"answers"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host          string `mapstructure:"host"`           // 服务器主机
	Port          int    `mapstructure:"port"`           // 服务器端口
	Mode          string `mapstructure:"mode"`           // gin运行模式：debug、release、test
	MaxUploadMB   int    `mapstructure:"max_upload_mb"`  // 上传文件大小上限
	EnableCORS    bool   `mapstructure:"enable_cors"`    // 是否允许跨域
	ShutdownGrace int    `mapstructure:"shutdown_grace"` // 优雅退出等待时间（秒）
}

// StorageConfig 存储配置
// 上传文件的临时副本始终保存在本地的scratch_path，结果文档按type保存
type StorageConfig struct {
	Type        string `mapstructure:"type"`         // 结果文档存储类型：local 或 minio
	Path        string `mapstructure:"path"`         // 本地结果文档存储路径
	ScratchPath string `mapstructure:"scratch_path"` // 上传文件临时目录
	Bucket      string `mapstructure:"bucket"`       // MinIO桶名称
	Prefix      string `mapstructure:"prefix"`       // MinIO对象名前缀
	Endpoint    string `mapstructure:"endpoint"`     // MinIO端点
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	UseSSL      bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`      // 提供商：openai, tongyi, gemini
	Model        string        `mapstructure:"model"`         // 模型名称
	APIKey       string        `mapstructure:"api_key"`       // API密钥，优先级最低
	Endpoint     string        `mapstructure:"endpoint"`      // API端点
	MaxTokens    int           `mapstructure:"max_tokens"`    // 单个回答最大token数量
	Temperature  float32       `mapstructure:"temperature"`   // 采样温度
	Timeout      time.Duration `mapstructure:"timeout"`       // 单次请求超时
	SystemPrompt string        `mapstructure:"system_prompt"` // 为空时使用内置提示词
}

// OCRConfig 扫描件识别配置
type OCRConfig struct {
	Tesseract   string   `mapstructure:"tesseract"`    // tesseract路径，为空时自动查找
	Pdftoppm    string   `mapstructure:"pdftoppm"`     // pdftoppm路径
	Language    string   `mapstructure:"language"`     // 识别语言
	TessdataDir string   `mapstructure:"tessdata_dir"` // tessdata目录
	DPI         int      `mapstructure:"dpi"`          // 渲染分辨率
	MaxPages    int      `mapstructure:"max_pages"`    // 最大识别页数，0表示不限制
	SearchPaths []string `mapstructure:"search_paths"` // 额外的查找路径
	TempDir     string   `mapstructure:"temp_dir"`     // 页面图片临时目录，为空时使用系统临时目录
}

// ExtractConfig 文本提取配置
type ExtractConfig struct {
	MinTextLength int `mapstructure:"min_text_length"` // 结构化提取少于该长度时使用OCR
}

// AnswersConfig 获取回答配置
type AnswersConfig struct {
	Concurrency int           `mapstructure:"concurrency"` // 同时获取回答的数量，默认逐个获取
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`   // 回答缓存有效期，0表示不缓存
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string        `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Prefix   string        `mapstructure:"prefix"`   // 键前缀
	Address  string        `mapstructure:"address"`  // Redis地址
	Password string        `mapstructure:"password"` // Redis密码
	DB       int           `mapstructure:"db"`       // Redis数据库
	TTL      time.Duration `mapstructure:"ttl"`      // Run与会话数据的有效期
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别
	File       string `mapstructure:"file"`         // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧日志文件数量
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧日志保留天数
	Compress   bool   `mapstructure:"compress"`     // 是否压缩旧日志
}

// Load 从文件和环境变量加载配置
// 配置文件不存在时使用默认值；同目录或当前目录下的.env会先被加载
func Load(configPath string) (*Config, error) {
	var config Config

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml" // 默认在当前目录寻找config.yaml
	}

	loadDotEnv()

	// 初始化viper
	v := viper.New()
	setDefaults(v)

	// 支持环境变量覆盖，例如 LLM_PROVIDER、SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置配置文件路径和类型
	v.SetConfigFile(configPath)

	// 尝试读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			logrus.WithField("path", configPath).Warn("Config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		logrus.WithField("path", v.ConfigFileUsed()).Info("Using config file")
	}

	// 解析配置到结构体
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	processEnvironmentVariables(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// loadDotEnv 加载.env文件，已存在的环境变量不会被覆盖
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Warn("Failed to load .env file")
	}
}

var envPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// expandEnv 将 ${VAR} 形式的值替换为环境变量
func expandEnv(value string) string {
	m := envPattern.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	return os.Getenv(m[1])
}

// processEnvironmentVariables 处理配置项中的环境变量引用
func processEnvironmentVariables(cfg *Config) {
	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.LLM.Endpoint = expandEnv(cfg.LLM.Endpoint)
	cfg.Storage.AccessKey = expandEnv(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnv(cfg.Storage.SecretKey)
	cfg.Cache.Password = expandEnv(cfg.Cache.Password)
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "local", "minio":
	default:
		return fmt.Errorf("invalid storage.type %q: must be local or minio", c.Storage.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache.type %q: must be memory or redis", c.Cache.Type)
	}
	if c.Answers.Concurrency < 1 {
		return fmt.Errorf("answers.concurrency must be at least 1, got %d", c.Answers.Concurrency)
	}
	if c.Extract.MinTextLength < 1 {
		return fmt.Errorf("extract.min_text_length must be positive, got %d", c.Extract.MinTextLength)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.enable_cors", false)
	v.SetDefault("server.shutdown_grace", 10)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./data/artifacts")
	v.SetDefault("storage.scratch_path", "./data/uploads")
	v.SetDefault("storage.bucket", "docqa")
	v.SetDefault("storage.prefix", "artifacts")
	v.SetDefault("storage.use_ssl", false)

	// LLM默认配置
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.max_tokens", 150)
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.system_prompt", "")

	// OCR默认配置
	v.SetDefault("ocr.tesseract", "")
	v.SetDefault("ocr.pdftoppm", "pdftoppm")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max_pages", 0)
	v.SetDefault("ocr.temp_dir", "")

	// 文本提取默认配置
	v.SetDefault("extract.min_text_length", 50)

	// 获取回答默认配置
	v.SetDefault("answers.concurrency", 1)
	v.SetDefault("answers.cache_ttl", "24h")

	// 缓存默认配置
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.prefix", "docqa")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "2h")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}
