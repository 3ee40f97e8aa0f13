package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sirupsen/logrus"
)

// Runner 外部命令执行接口，测试中可以替换
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner 使用os/exec执行外部命令
type ExecRunner struct {
	Logger *logrus.Logger
}

// Run 执行命令并返回标准输出与标准错误
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if r.Logger != nil {
		fields := logrus.Fields{
			"cmd":         name,
			"args":        strings.Join(args, " "),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err != nil {
			fields["error"] = err.Error()
			fields["stderr"] = truncate(errb.String(), 8<<10)
			r.Logger.WithFields(fields).Error("External command failed")
		} else {
			r.Logger.WithFields(fields).Debug("External command finished")
		}
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// Engine OCR引擎接口
type Engine interface {
	// Available 引擎是否可用
	Available() bool
	// Recognize 识别单张图片中的文字
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Rasterizer 将PDF页面渲染为图片
type Rasterizer interface {
	// Rasterize 渲染所有页面到outDir，按页码顺序返回图片路径
	Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error)
}

// availability 依赖外部程序的组件实现该接口
type availability interface {
	Available() bool
}

// OCRConfig OCR配置
type OCRConfig struct {
	Tesseract   string   // tesseract可执行文件名或绝对路径，为空时自动查找
	Pdftoppm    string   // pdftoppm可执行文件名或绝对路径
	Language    string   // 识别语言，默认eng
	TessdataDir string   // 可选的tessdata目录
	DPI         int      // 渲染分辨率，默认300
	MaxPages    int      // 最大处理页数，0表示不限制
	SearchPaths []string // 额外的tesseract查找路径
}

// DefaultOCRConfig 返回默认OCR配置
func DefaultOCRConfig() OCRConfig {
	return OCRConfig{
		Pdftoppm: "pdftoppm",
		Language: "eng",
		DPI:      300,
	}
}

// TesseractEngine 基于tesseract命令行的OCR引擎
type TesseractEngine struct {
	cfg    OCRConfig
	runner Runner

	once sync.Once
	path string // 查找到的tesseract路径，为空表示不可用
}

// NewTesseractEngine 创建tesseract引擎
func NewTesseractEngine(cfg OCRConfig, runner Runner) *TesseractEngine {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &TesseractEngine{cfg: cfg, runner: runner}
}

// Available 检查tesseract是否可用，结果在进程内缓存
func (e *TesseractEngine) Available() bool {
	return e.binary() != ""
}

// Path 返回查找到的tesseract路径
func (e *TesseractEngine) Path() string {
	return e.binary()
}

func (e *TesseractEngine) binary() string {
	e.once.Do(func() {
		candidates := make([]string, 0, len(e.cfg.SearchPaths)+2)
		candidates = append(candidates, e.cfg.SearchPaths...)
		candidates = append(candidates, conventionalTesseractPaths()...)
		e.path = discoverBinary(e.cfg.Tesseract, "tesseract", candidates)
	})
	return e.path
}

// Recognize 识别单张图片
// tesseract <img> stdout -l <lang>
func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	bin := e.binary()
	if bin == "" {
		return "", ErrOCRUnavailable
	}

	args := []string{imagePath, "stdout", "-l", e.cfg.Language}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, bin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}

// conventionalTesseractPaths 各平台的常见安装位置
func conventionalTesseractPaths() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\Program Files\Tesseract-OCR\tesseract.exe`,
			`C:\Program Files (x86)\Tesseract-OCR\tesseract.exe`,
		}
	case "darwin":
		return []string{"/opt/homebrew/bin/tesseract", "/usr/local/bin/tesseract"}
	default:
		return []string{"/usr/bin/tesseract", "/usr/local/bin/tesseract"}
	}
}

// discoverBinary 按 显式配置 -> PATH -> 常见路径 的顺序查找可执行文件
func discoverBinary(configured, name string, candidates []string) string {
	if configured != "" {
		if p, err := exec.LookPath(configured); err == nil {
			return p
		}
		return ""
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// PdftoppmRasterizer 使用poppler的pdftoppm渲染页面
type PdftoppmRasterizer struct {
	cfg    OCRConfig
	runner Runner
}

// NewPdftoppmRasterizer 创建pdftoppm渲染器
func NewPdftoppmRasterizer(cfg OCRConfig, runner Runner) *PdftoppmRasterizer {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &PdftoppmRasterizer{cfg: cfg, runner: runner}
}

// Available 检查pdftoppm是否能找到
func (r *PdftoppmRasterizer) Available() bool {
	return discoverBinary(r.cfg.Pdftoppm, "pdftoppm", nil) != ""
}

// Rasterize 渲染PDF页面
// pdftoppm -r 300 -png [-l N] <in.pdf> <outDir/page>
func (r *PdftoppmRasterizer) Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	pageCount, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: counting PDF pages: %v", ErrExtractionFailed, err)
	}
	if pageCount == 0 {
		return nil, nil
	}

	args := []string{"-r", strconv.Itoa(r.cfg.DPI), "-png"}
	if r.cfg.MaxPages > 0 && pageCount > r.cfg.MaxPages {
		args = append(args, "-l", strconv.Itoa(r.cfg.MaxPages))
	}

	prefix := filepath.Join(outDir, "page")
	args = append(args, pdfPath, prefix)

	if _, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w (%s)", err, strings.TrimSpace(string(errb)))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sortByPageNumber(matches, prefix)

	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	return matches, nil
}

// sortByPageNumber pdftoppm按总页数补零，这里按数字排序避免位数不同时乱序
func sortByPageNumber(paths []string, prefix string) {
	pageNumber := func(p string) int {
		s := strings.TrimSuffix(strings.TrimPrefix(p, prefix+"-"), ".png")
		n, _ := strconv.Atoi(s)
		return n
	}
	sort.Slice(paths, func(i, j int) bool {
		return pageNumber(paths[i]) < pageNumber(paths[j])
	})
}

// OCR 扫描件文字识别接口
type OCR interface {
	// Available OCR是否可用
	Available() bool
	// Recognize 识别整个PDF文档
	Recognize(ctx context.Context, pdfPath string, onPage PageFunc) (string, error)
}

// OCRExtractor 渲染+识别的OCR提取器
type OCRExtractor struct {
	engine     Engine
	rasterizer Rasterizer
	tempDir    string
	logger     *logrus.Logger

	once      sync.Once
	available bool
}

// NewOCRExtractor 创建OCR提取器
func NewOCRExtractor(engine Engine, rasterizer Rasterizer, tempDir string, logger *logrus.Logger) *OCRExtractor {
	if logger == nil {
		logger = logrus.New()
	}
	return &OCRExtractor{
		engine:     engine,
		rasterizer: rasterizer,
		tempDir:    tempDir,
		logger:     logger,
	}
}

// NewDefaultOCR 使用tesseract与pdftoppm创建OCR提取器
func NewDefaultOCR(cfg OCRConfig, tempDir string, logger *logrus.Logger) *OCRExtractor {
	runner := ExecRunner{Logger: logger}
	return NewOCRExtractor(
		NewTesseractEngine(cfg, runner),
		NewPdftoppmRasterizer(cfg, runner),
		tempDir,
		logger,
	)
}

// Available 识别引擎与渲染工具都能找到时OCR才可用，结果在进程内缓存
func (o *OCRExtractor) Available() bool {
	o.once.Do(func() {
		if o.engine == nil || !o.engine.Available() {
			return
		}
		if r, ok := o.rasterizer.(availability); ok && !r.Available() {
			o.logger.Warn("pdftoppm not found, scanned PDFs cannot be rendered")
			return
		}
		o.available = true
	})
	return o.available
}

// Recognize 渲染并识别PDF全部页面
// 在渲染之前检查引擎，不可用时直接返回ErrOCRUnavailable
func (o *OCRExtractor) Recognize(ctx context.Context, pdfPath string, onPage PageFunc) (string, error) {
	if !o.Available() {
		return "", ErrOCRUnavailable
	}

	tmpDir, err := os.MkdirTemp(o.tempDir, "docqa-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			o.logger.WithError(err).WithField("dir", tmpDir).Warn("Failed to remove OCR temp dir")
		}
	}()

	images, err := o.rasterizer.Rasterize(ctx, pdfPath, tmpDir)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		pageText, err := o.engine.Recognize(ctx, img)
		if err != nil {
			return "", fmt.Errorf("ocr page %d: %w", i+1, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")

		onPage.notify(i+1, len(images))
	}

	return text.String(), nil
}
