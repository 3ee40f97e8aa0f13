package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fyerfyer/doc-qa-extractor/api"
	"github.com/fyerfyer/doc-qa-extractor/api/handler"
	qaconfig "github.com/fyerfyer/doc-qa-extractor/config"
	"github.com/fyerfyer/doc-qa-extractor/internal/cache"
	"github.com/fyerfyer/doc-qa-extractor/internal/credential"
	"github.com/fyerfyer/doc-qa-extractor/internal/document"
	"github.com/fyerfyer/doc-qa-extractor/internal/llm"
	"github.com/fyerfyer/doc-qa-extractor/internal/services"
	"github.com/fyerfyer/doc-qa-extractor/pkg/storage"
	"github.com/sirupsen/logrus"
)

// application 组装好的应用组件
type application struct {
	Cache     cache.Cache
	Session   *services.SessionStore
	Resolver  *credential.Resolver
	Pipeline  *services.Pipeline
	answerers *answererPool
	logger    *logrus.Logger
}

// newApp 根据配置创建全部组件
func newApp(cfg *qaconfig.Config, logger *logrus.Logger) (*application, error) {
	c, err := setupCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	scratch, err := storage.NewLocalStorage(storage.LocalConfig{Path: cfg.Storage.ScratchPath})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scratch storage: %w", err)
	}

	artifacts, err := setupStorage(cfg.Storage, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact storage: %w", err)
	}

	ocr := document.NewDefaultOCR(document.OCRConfig{
		Tesseract:   cfg.OCR.Tesseract,
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Language:    cfg.OCR.Language,
		TessdataDir: cfg.OCR.TessdataDir,
		DPI:         cfg.OCR.DPI,
		MaxPages:    cfg.OCR.MaxPages,
		SearchPaths: cfg.OCR.SearchPaths,
	}, cfg.OCR.TempDir, logger)
	if !ocr.Available() {
		logger.Warn("OCR tools not found (tesseract or pdftoppm), scanned PDFs cannot be processed")
	}

	extractor := document.NewExtractor(
		document.WithMinTextLength(cfg.Extract.MinTextLength),
		document.WithOCR(ocr),
		document.WithExtractorLogger(logger),
	)

	session := services.NewSessionStore(c, cfg.Cache.TTL)
	resolver := credential.NewResolver(cfg.LLM.APIKey, session)
	answerers := newAnswererPool(cfg.LLM, logger)

	pipelineOpts := []services.PipelineOption{
		services.WithPipelineLogger(logger),
		services.WithConcurrency(cfg.Answers.Concurrency),
	}
	if cfg.Answers.CacheTTL > 0 {
		pipelineOpts = append(pipelineOpts, services.WithAnswerCache(c, cfg.Answers.CacheTTL))
	}

	pipeline := services.NewPipeline(
		scratch,
		artifacts,
		extractor,
		resolver,
		answerers.Get,
		services.NewRunStore(c, cfg.Cache.TTL),
		pipelineOpts...,
	)

	_, source := resolver.Resolve()
	logger.WithFields(logrus.Fields{
		"storage":           cfg.Storage.Type,
		"cache":             cfg.Cache.Type,
		"provider":          cfg.LLM.Provider,
		"credential_source": source,
		"concurrency":       cfg.Answers.Concurrency,
	}).Info("Application initialized")

	return &application{
		Cache:     c,
		Session:   session,
		Resolver:  resolver,
		Pipeline:  pipeline,
		answerers: answerers,
		logger:    logger,
	}, nil
}

// Handlers 创建HTTP处理器
func (a *application) Handlers() api.Handlers {
	return api.Handlers{
		Document: handler.NewDocumentHandler(a.Pipeline),
		Run:      handler.NewRunHandler(a.Pipeline),
		Session:  handler.NewSessionHandler(a.Session, a.Resolver),
		Health:   handler.NewHealthHandler(a.Pipeline),
	}
}

// Close 释放大模型客户端与缓存连接
func (a *application) Close() {
	if err := a.answerers.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close LLM client")
	}
	if closer, ok := a.Cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close cache")
		}
	}
}

// setupCache 设置缓存服务
func setupCache(cfg qaconfig.CacheConfig) (cache.Cache, error) {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cfg.Type
	cacheConfig.Prefix = cfg.Prefix
	cacheConfig.DefaultTTL = cfg.TTL

	// 如果配置了Redis，添加Redis配置
	if cfg.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Address
		cacheConfig.RedisPassword = cfg.Password
		cacheConfig.RedisDB = cfg.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupStorage 设置结果文档存储
func setupStorage(cfg qaconfig.StorageConfig, llmCfg qaconfig.LLMConfig) (storage.Storage, error) {
	return storage.New(storage.Config{
		Type:  cfg.Type,
		Local: storage.LocalConfig{Path: cfg.Path},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Timeout:   llmCfg.Timeout,
		},
	})
}

// answererPool 按密钥复用大模型客户端
// 密钥变化时关闭旧客户端并创建新客户端
type answererPool struct {
	mu        sync.Mutex
	newClient func(apiKey string) (llm.Client, error)
	opts      []llm.AnswerOption
	logger    *logrus.Logger

	key      string
	client   llm.Client
	answerer llm.Answerer
}

// newAnswererPool 根据LLM配置创建客户端池
func newAnswererPool(cfg qaconfig.LLMConfig, logger *logrus.Logger) *answererPool {
	newClient := func(apiKey string) (llm.Client, error) {
		opts := []llm.Option{
			llm.WithAPIKey(apiKey),
			llm.WithModel(cfg.Model),
			llm.WithTimeout(cfg.Timeout),
			llm.WithMaxTokens(cfg.MaxTokens),
		}
		if cfg.Endpoint != "" {
			opts = append(opts, llm.WithBaseURL(cfg.Endpoint))
		}
		if cfg.Temperature > 0 {
			opts = append(opts, llm.WithTemperature(cfg.Temperature))
		}
		return llm.NewClient(cfg.Provider, opts...)
	}

	answerOpts := []llm.AnswerOption{llm.WithAnswerMaxTokens(cfg.MaxTokens)}
	if cfg.SystemPrompt != "" {
		answerOpts = append(answerOpts, llm.WithSystemPrompt(cfg.SystemPrompt))
	}
	if cfg.Temperature > 0 {
		answerOpts = append(answerOpts, llm.WithAnswerTemperature(cfg.Temperature))
	}

	return &answererPool{
		newClient: newClient,
		opts:      answerOpts,
		logger:    logger,
	}
}

// Get 返回使用apiKey的回答器
func (p *answererPool) Get(apiKey string) (llm.Answerer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.answerer != nil && p.key == apiKey {
		return p.answerer, nil
	}

	client, err := p.newClient(apiKey)
	if err != nil {
		return nil, err
	}

	if err := p.closeClient(); err != nil {
		p.logger.WithError(err).Warn("Failed to close previous LLM client")
	}

	p.key = apiKey
	p.client = client
	p.answerer = llm.NewQuestionAnswerer(client, p.opts...)
	p.logger.WithField("api_key", credential.Mask(apiKey)).Debug("LLM client created")
	return p.answerer, nil
}

// Close 关闭当前客户端
func (p *answererPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.closeClient()
	p.key, p.client, p.answerer = "", nil, nil
	return err
}

func (p *answererPool) closeClient() error {
	if closer, ok := p.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
