package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/doc-qa-extractor/api"
	"github.com/fyerfyer/doc-qa-extractor/api/middleware"
	qaconfig "github.com/fyerfyer/doc-qa-extractor/config"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 命令行选项
type options struct {
	ConfigFile   string        // 配置文件路径
	Mode         string        // gin运行模式
	Port         int           // 服务端口
	LogLevel     string        // 日志级别
	Input        string        // 单次处理的输入文档，为空时启动HTTP服务
	Answer       bool          // 单次处理时是否获取回答
	Output       string        // 结果文档输出路径
	Format       string        // 结果文档格式
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时
}

func main() {
	opts := parseFlags()

	cfg, err := qaconfig.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, opts)

	// 单次处理模式下标准输出留给结果
	var out io.Writer = os.Stdout
	if opts.Input != "" {
		out = os.Stderr
	}
	logger := setupLogger(cfg.Log, out)

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer app.Close()

	if opts.Input != "" {
		if err := runOnce(context.Background(), app, opts); err != nil {
			logger.WithError(err).Error("Processing failed")
			os.Exit(1)
		}
		return
	}

	serve(cfg, opts, app, logger)
}

// parseFlags 解析命令行参数
func parseFlags() options {
	var opts options

	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.StringVar(&opts.Mode, "mode", "", "Run mode (debug/release), overrides server.mode")
	flag.IntVar(&opts.Port, "port", 0, "Server port, overrides server.port")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug/info/warn/error), overrides log.level")
	flag.DurationVar(&opts.ReadTimeout, "read-timeout", 60*time.Second, "Read timeout")
	flag.DurationVar(&opts.WriteTimeout, "write-timeout", 10*time.Minute, "Write timeout")

	// 单次处理
	flag.StringVar(&opts.Input, "input", "", "Process a single document and exit")
	flag.BoolVar(&opts.Answer, "answer", false, "Acquire answers for the extracted questions")
	flag.StringVar(&opts.Output, "output", "", "Output path for the answer document")
	flag.StringVar(&opts.Format, "format", "docx", "Output format (docx/pdf/xlsx/html/md)")

	flag.Parse()
	return opts
}

// applyFlags 用命令行上明确设置的参数覆盖配置
func applyFlags(cfg *qaconfig.Config, opts options) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Server.Mode = opts.Mode
		case "port":
			cfg.Server.Port = opts.Port
		case "log-level":
			cfg.Log.Level = opts.LogLevel
		}
	})
}

// setupLogger 设置日志系统
// 配置了日志文件时按大小滚动写入文件
func setupLogger(cfg qaconfig.LogConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File != "" {
		logger.SetOutput(io.MultiWriter(out, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}))
	} else {
		logger.SetOutput(out)
	}

	middleware.SetLogger(logger)
	return logger
}

// serve 启动HTTP服务并等待退出信号
func serve(cfg *qaconfig.Config, opts options, app *application, logger *logrus.Logger) {
	gin.SetMode(cfg.Server.Mode)
	if err := api.RegisterValidators(); err != nil {
		logger.WithError(err).Fatal("Failed to register validators")
	}

	r := api.SetupRouter(app.Handlers(), api.RouterConfig{
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		EnableCORS:     cfg.Server.EnableCORS,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":          srv.Addr,
			"ocr_available": app.Pipeline.OCRAvailable(),
			"provider":      cfg.LLM.Provider,
		}).Info("Server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
