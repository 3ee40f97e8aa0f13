package report

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fyerfyer/doc-qa-extractor/internal/models"
)

// Format 结果文档格式
type Format string

const (
	FormatDOCX     Format = "docx"
	FormatPDF      Format = "pdf"
	FormatXLSX     Format = "xlsx"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
)

// ErrUnknownFormat 未注册的结果文档格式
var ErrUnknownFormat = errors.New("unsupported output format")

// Title 结果文档的标题
const Title = "Questions & Answers from Document"

// DownloadBaseName 下载文件名（不含扩展名）
const DownloadBaseName = "Document_QA"

// Assembler 将问答结果渲染为文档
// 每个问答都会输出，顺序与输入一致
type Assembler interface {
	Assemble(results []models.AnswerResult) ([]byte, error)
	// ContentType 文档的MIME类型
	ContentType() string
}

// Factory 创建Assembler的工厂函数
type Factory func() Assembler

var registry = make(map[Format]Factory)

// Register 注册结果文档格式
func Register(format Format, factory Factory) {
	registry[format] = factory
}

// New 根据格式创建Assembler
func New(format Format) (Assembler, error) {
	factory, ok := registry[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return factory(), nil
}

// Formats 返回已注册的格式
func Formats() []Format {
	formats := make([]Format, 0, len(registry))
	for f := range registry {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// FileName 下载文件名，例如 Document_QA.docx
func FileName(format Format) string {
	return DownloadBaseName + "." + string(format)
}

// QuestionHeading 问题小标题，序号从1开始
func QuestionHeading(n int, question string) string {
	return fmt.Sprintf("Question %d: %s", n, question)
}
