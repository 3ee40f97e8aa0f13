package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Method 文本提取方式
type Method string

const (
	// MethodStructured 从文档文本层直接读取
	MethodStructured Method = "structured"
	// MethodOCR 光学字符识别
	MethodOCR Method = "ocr"
)

// DefaultMinTextLength 结构化提取结果少于该长度时视为扫描件
const DefaultMinTextLength = 50

const (
	NoticeScanned    = "PDF appears to be scanned. Using OCR..."
	NoticeSelectable = "PDF has selectable text. Extracting directly..."
	NoticeDOCX       = "Processing DOCX file..."
	NoticeNoOCR      = "Tesseract OCR is not installed or could not be found. Scanned PDFs cannot be processed; install tesseract and poppler-utils (pdftoppm) and add them to PATH."
)

// ExtractionResult 文本提取结果
// 提取失败不会中断流程，错误记录在Err中，Text为空
type ExtractionResult struct {
	Text    string
	Method  Method
	Notices []string
	Err     error
}

// ExtractorOption 提取器配置选项
type ExtractorOption func(*Extractor)

// WithMinTextLength 设置触发OCR的最小文本长度
func WithMinTextLength(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.minTextLength = n
		}
	}
}

// WithOCR 设置OCR提取器
func WithOCR(ocr OCR) ExtractorOption {
	return func(e *Extractor) {
		e.ocr = ocr
	}
}

// WithParserFactory 替换结构化解析器的创建方式
func WithParserFactory(factory func(Format) (Parser, error)) ExtractorOption {
	return func(e *Extractor) {
		e.parserFactory = factory
	}
}

// WithExtractorLogger 设置日志记录器
func WithExtractorLogger(logger *logrus.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// Extractor 根据文档格式选择提取策略
type Extractor struct {
	parserFactory func(Format) (Parser, error)
	ocr           OCR
	minTextLength int
	logger        *logrus.Logger
}

// NewExtractor 创建提取器
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		parserFactory: ParserFactory,
		minTextLength: DefaultMinTextLength,
		logger:        logrus.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OCRAvailable OCR引擎是否可用
func (e *Extractor) OCRAvailable() bool {
	return e.ocr != nil && e.ocr.Available()
}

// Extract 提取文档文本
// pdf先尝试结构化提取，去除首尾空白后不足minTextLength个字符时对整个文档进行OCR；
// docx只做结构化提取。只有不支持的格式和上下文取消会返回error
func (e *Extractor) Extract(ctx context.Context, doc Document, onPage PageFunc) (*ExtractionResult, error) {
	switch doc.Format {
	case PDF:
		return e.extractPDF(ctx, doc, onPage)
	case DOCX:
		return e.extractDOCX(ctx, doc, onPage)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func (e *Extractor) extractDOCX(ctx context.Context, doc Document, onPage PageFunc) (*ExtractionResult, error) {
	result := &ExtractionResult{
		Method:  MethodStructured,
		Notices: []string{NoticeDOCX},
	}

	parser, err := e.parserFactory(DOCX)
	if err != nil {
		return nil, err
	}

	text, err := parser.Parse(ctx, doc.Path, onPage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.WithError(err).WithField("file", doc.Name).Warn("DOCX extraction failed")
		result.Err = wrapExtraction(err)
		return result, nil
	}

	result.Text = text
	return result, nil
}

func (e *Extractor) extractPDF(ctx context.Context, doc Document, onPage PageFunc) (*ExtractionResult, error) {
	result := &ExtractionResult{Method: MethodStructured}

	parser, err := e.parserFactory(PDF)
	if err != nil {
		return nil, err
	}

	text, err := parser.Parse(ctx, doc.Path, onPage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// 文本层读取失败按空结果处理，继续尝试OCR
		e.logger.WithError(err).WithField("file", doc.Name).Warn("Structured PDF extraction failed, falling back to OCR")
		text = ""
	}

	// 按字符而不是字节计数
	if utf8.RuneCountInString(strings.TrimSpace(text)) >= e.minTextLength {
		result.Text = text
		result.Notices = append(result.Notices, NoticeSelectable)
		return result, nil
	}

	result.Method = MethodOCR
	result.Notices = append(result.Notices, NoticeScanned)

	if !e.OCRAvailable() {
		e.logger.WithField("file", doc.Name).Warn("OCR engine not available for scanned PDF")
		result.Notices = append(result.Notices, NoticeNoOCR)
		result.Err = ErrOCRUnavailable
		return result, nil
	}

	e.logger.WithField("file", doc.Name).Info("Running OCR over scanned PDF")

	ocrText, err := e.ocr.Recognize(ctx, doc.Path, onPage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.WithError(err).WithField("file", doc.Name).Error("OCR failed")
		if errors.Is(err, ErrOCRUnavailable) {
			result.Notices = append(result.Notices, NoticeNoOCR)
			result.Err = err
		} else {
			result.Err = wrapExtraction(err)
		}
		return result, nil
	}

	result.Text = ocrText
	return result, nil
}

func wrapExtraction(err error) error {
	if errors.Is(err, ErrExtractionFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
}
