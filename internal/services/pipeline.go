package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fyerfyer/doc-qa-extractor/internal/cache"
	"github.com/fyerfyer/doc-qa-extractor/internal/credential"
	"github.com/fyerfyer/doc-qa-extractor/internal/document"
	"github.com/fyerfyer/doc-qa-extractor/internal/llm"
	"github.com/fyerfyer/doc-qa-extractor/internal/models"
	"github.com/fyerfyer/doc-qa-extractor/internal/report"
	"github.com/fyerfyer/doc-qa-extractor/pkg/storage"
)

var (
	// ErrNoQuestions 没有可回答的问题
	ErrNoQuestions = errors.New("no questions found in document")
	// ErrRunNotReady 结果文档尚未生成
	ErrRunNotReady = errors.New("answers have not been generated for this run")
)

// Stage 进度所属的阶段
type Stage string

const (
	StageExtract Stage = "extract"
	StageAnswer  Stage = "answer"
)

// ProgressObserver 进度观察者，在处理线程中同步调用
type ProgressObserver interface {
	OnProgress(stage Stage, current, total int)
}

// ProgressFunc 函数形式的进度观察者
type ProgressFunc func(stage Stage, current, total int)

// OnProgress 实现ProgressObserver
func (f ProgressFunc) OnProgress(stage Stage, current, total int) {
	f(stage, current, total)
}

// AnswererFactory 使用API密钥创建回答器
type AnswererFactory func(apiKey string) (llm.Answerer, error)

// Pipeline 文档问题提取与回答流程
// 负责协调格式检查、文本提取、问题切分、获取回答和生成结果文档
type Pipeline struct {
	scratch     *storage.LocalStorage // 上传文件的临时副本
	artifacts   storage.Storage       // 结果文档存储
	extractor   *document.Extractor   // 文本提取器
	resolver    *credential.Resolver  // API密钥解析
	newAnswerer AnswererFactory       // 回答器工厂
	runs        *RunStore             // 当前Run
	answerCache cache.Cache           // 问题回答缓存，为空时不缓存
	answerTTL   time.Duration         // 回答缓存有效期
	concurrency int                   // 同时获取回答的数量
	logger      *logrus.Logger        // 日志记录器
}

// PipelineOption 流程配置选项
type PipelineOption func(*Pipeline)

// NewPipeline 创建处理流程
func NewPipeline(
	scratch *storage.LocalStorage,
	artifacts storage.Storage,
	extractor *document.Extractor,
	resolver *credential.Resolver,
	newAnswerer AnswererFactory,
	runs *RunStore,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		scratch:     scratch,
		artifacts:   artifacts,
		extractor:   extractor,
		resolver:    resolver,
		newAnswerer: newAnswerer,
		runs:        runs,
		concurrency: 1,
		logger:      logrus.New(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// WithPipelineLogger 设置日志记录器
func WithPipelineLogger(logger *logrus.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithConcurrency 设置同时获取回答的数量，默认逐个获取
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithAnswerCache 设置问题回答缓存
func WithAnswerCache(c cache.Cache, ttl time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.answerCache = c
		p.answerTTL = ttl
	}
}

// OCRAvailable OCR引擎是否可用
func (p *Pipeline) OCRAvailable() bool {
	return p.extractor.OCRAvailable()
}

// ExtractQuestions 检查格式、提取文本并切分问题
// 不支持的格式在申请任何临时资源之前返回，且不影响当前Run；上传文件的临时副本在所有退出路径上都会被删除
func (p *Pipeline) ExtractQuestions(ctx context.Context, fileName string, r io.Reader, observer ProgressObserver) (*models.Run, error) {
	run := models.NewRun(uuid.New().String(), fileName)
	log := p.logger.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"filename": fileName,
	})

	format := document.DetectFormat(fileName)
	run.Format = string(format)
	if format == document.Unsupported {
		// 被拒绝的上传不进入存储，当前Run保持不变
		err := fmt.Errorf("%w: %s", document.ErrUnsupportedFormat, fileName)
		log.Warn("Rejected unsupported document")
		run.Fail(models.ErrorKindUnsupportedFormat, err)
		return run, err
	}
	if err := run.Transition(models.StateFormatChecked); err != nil {
		return run, err
	}

	info, err := p.scratch.Save(r, fileName)
	if err != nil {
		log.WithError(err).Error("Failed to store uploaded document")
		run.Fail(models.ErrorKindStorage, err)
		return run, fmt.Errorf("failed to store upload: %w", err)
	}
	defer func() {
		if err := p.scratch.Delete(info.ID); err != nil {
			log.WithError(err).Warn("Failed to remove uploaded document")
		}
	}()

	// 新文档已经保存，替换之前的Run
	p.discardCurrent()

	path, err := p.scratch.LocalPath(info.ID)
	if err != nil {
		run.Fail(models.ErrorKindStorage, err)
		p.saveRun(run)
		return run, fmt.Errorf("failed to locate upload: %w", err)
	}

	log.WithField("format", format).Info("Extracting document text")

	doc := document.Document{Name: fileName, Path: path, Format: format}
	result, err := p.extractor.Extract(ctx, doc, func(index, total int) {
		notify(observer, StageExtract, index, total)
	})
	if err != nil {
		kind := models.ErrorKindExtractionFailed
		if ctx.Err() != nil {
			kind = models.ErrorKindCancelled
		}
		log.WithError(err).Error("Text extraction aborted")
		run.Fail(kind, err)
		p.saveRun(run)
		return run, err
	}

	run.Method = string(result.Method)
	run.AddNotice(result.Notices...)
	if result.Err != nil {
		kind := models.ErrorKindExtractionFailed
		if errors.Is(result.Err, document.ErrOCRUnavailable) {
			kind = models.ErrorKindOCRUnavailable
		}
		run.RecordError(kind, result.Err)
	}
	if err := run.Transition(models.StateTextExtracted); err != nil {
		return run, err
	}

	run.Questions = document.Segment(result.Text)
	if err := run.Transition(models.StateQuestionsExtracted); err != nil {
		return run, err
	}

	log.WithFields(logrus.Fields{
		"method":    run.Method,
		"questions": len(run.Questions),
	}).Info("Questions extracted")

	if err := p.runs.Save(run); err != nil {
		return run, err
	}
	return run, nil
}

// GenerateAnswers 为Run中的每个问题获取回答并生成结果文档
// 需要有效的API密钥，密钥无效时返回credential.ErrInvalidCredential且Run保持不变
func (p *Pipeline) GenerateAnswers(ctx context.Context, runID string, observer ProgressObserver) (*models.Run, error) {
	run, err := p.runs.Get(runID)
	if err != nil {
		return nil, err
	}
	if run.State != models.StateQuestionsExtracted {
		return run, fmt.Errorf("%w: run is %s", models.ErrInvalidTransition, run.State)
	}
	if len(run.Questions) == 0 {
		return run, ErrNoQuestions
	}

	key, source, err := p.resolver.ResolveValid()
	if err != nil {
		p.logger.WithField("source", source).Warn("No valid API key for answer generation")
		return run, err
	}
	answerer, err := p.newAnswerer(key)
	if err != nil {
		return run, fmt.Errorf("failed to create answer client: %w", err)
	}

	log := p.logger.WithFields(logrus.Fields{
		"run_id":    run.ID,
		"questions": len(run.Questions),
		"source":    source,
	})
	log.Info("Generating answers")

	results, err := p.answerAll(ctx, answerer, run.Questions, observer)
	if err != nil {
		log.WithError(err).Error("Answer generation aborted")
		run.Fail(models.ErrorKindCancelled, err)
		p.saveRun(run)
		return run, err
	}

	run.Results = results
	if err := run.Transition(models.StateAnswersAcquired); err != nil {
		return run, err
	}

	data, err := p.render(run, report.FormatDOCX)
	if err != nil {
		log.WithError(err).Error("Failed to assemble result document")
		run.Fail(models.ErrorKindAssembly, err)
		p.saveRun(run)
		return run, err
	}
	if err := run.Transition(models.StateAssembled); err != nil {
		return run, err
	}

	info, err := p.artifacts.Save(bytes.NewReader(data), report.FileName(report.FormatDOCX))
	if err != nil {
		log.WithError(err).Error("Failed to store result document")
		run.Fail(models.ErrorKindStorage, err)
		p.saveRun(run)
		return run, fmt.Errorf("failed to store result document: %w", err)
	}
	run.ArtifactID = info.ID

	if err := run.Transition(models.StateDone); err != nil {
		return run, err
	}

	log.WithFields(logrus.Fields{
		"failed":      run.FailedAnswers(),
		"artifact_id": run.ArtifactID,
	}).Info("Answers generated")

	if err := p.runs.Save(run); err != nil {
		return run, err
	}
	return run, nil
}

// answerAll 获取所有回答，结果按问题顺序排列
// 单个问题失败时使用兜底文本，只有上下文取消会返回error
func (p *Pipeline) answerAll(ctx context.Context, answerer llm.Answerer, questions []string, observer ProgressObserver) ([]models.AnswerResult, error) {
	results := make([]models.AnswerResult, len(questions))
	total := len(questions)

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, q := range questions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.answerOne(gctx, answerer, i, q)

			mu.Lock()
			done++
			notify(observer, StageAnswer, done, total)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// answerOne 获取单个问题的回答，只请求一次
func (p *Pipeline) answerOne(ctx context.Context, answerer llm.Answerer, index int, question string) models.AnswerResult {
	result := models.AnswerResult{Index: index + 1, Question: question}

	key := cache.GenerateCacheKey("answer", cache.HashKey(question))
	if p.answerCache != nil {
		if cached, found, err := p.answerCache.Get(key); err == nil && found {
			result.Answer = cached
			return result
		}
	}

	answer, err := answerer.Answer(ctx, question)
	if err != nil {
		p.logger.WithError(err).WithField("index", index+1).Warn("Failed to get answer, using fallback")
		result.Answer = llm.FallbackAnswer
		result.Failed = true
		return result
	}

	result.Answer = answer
	if p.answerCache != nil {
		if err := p.answerCache.Set(key, answer, p.answerTTL); err != nil {
			p.logger.WithError(err).Warn("Failed to cache answer")
		}
	}
	return result
}

// Assemble 按指定格式渲染Run的问答结果
// docx优先返回已保存的结果文档
func (p *Pipeline) Assemble(runID string, format report.Format) ([]byte, report.Format, error) {
	if format == "" {
		format = report.FormatDOCX
	}

	run, err := p.runs.Get(runID)
	if err != nil {
		return nil, format, err
	}
	if run.State != models.StateDone {
		return nil, format, ErrRunNotReady
	}

	if format == report.FormatDOCX && run.ArtifactID != "" {
		data, err := p.readArtifact(run.ArtifactID)
		if err == nil {
			return data, format, nil
		}
		p.logger.WithError(err).WithField("artifact_id", run.ArtifactID).Warn("Stored result document unavailable, rendering again")
	}

	data, err := p.render(run, format)
	if err != nil {
		return nil, format, err
	}
	return data, format, nil
}

// GetRun 获取Run
func (p *Pipeline) GetRun(runID string) (*models.Run, error) {
	return p.runs.Get(runID)
}

// CurrentRun 获取当前Run
func (p *Pipeline) CurrentRun() (*models.Run, error) {
	return p.runs.Current()
}

// DeleteRun 丢弃Run及其结果文档
func (p *Pipeline) DeleteRun(runID string) error {
	run, err := p.runs.Get(runID)
	if err != nil {
		return err
	}

	if run.ArtifactID != "" {
		if err := p.artifacts.Delete(run.ArtifactID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to delete result document: %w", err)
		}
	}

	p.logger.WithField("run_id", runID).Info("Run discarded")
	return p.runs.Delete(runID)
}

// discardCurrent 新的上传替换当前Run
func (p *Pipeline) discardCurrent() {
	current, err := p.runs.Current()
	if err != nil {
		if !isNotFound(err) {
			p.logger.WithError(err).Warn("Failed to load current run")
		}
		return
	}
	if err := p.DeleteRun(current.ID); err != nil && !isNotFound(err) {
		p.logger.WithError(err).WithField("run_id", current.ID).Warn("Failed to discard previous run")
	}
}

func (p *Pipeline) render(run *models.Run, format report.Format) ([]byte, error) {
	assembler, err := report.New(format)
	if err != nil {
		return nil, err
	}
	data, err := assembler.Assemble(run.Results)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble %s document: %w", format, err)
	}
	return data, nil
}

func (p *Pipeline) readArtifact(id string) ([]byte, error) {
	rc, err := p.artifacts.Get(id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// saveRun 保存失败状态的Run，保存失败只记录日志
func (p *Pipeline) saveRun(run *models.Run) {
	if err := p.runs.Save(run); err != nil {
		p.logger.WithError(err).WithField("run_id", run.ID).Error("Failed to save run")
	}
}

func notify(observer ProgressObserver, stage Stage, current, total int) {
	if observer != nil {
		observer.OnProgress(stage, current, total)
	}
}
