package document

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Format 表示上传文档的格式
type Format string

const (
	// PDF 文档类型
	PDF Format = "pdf"
	// DOCX Word文档类型
	DOCX Format = "docx"
	// Unsupported 不支持的类型
	Unsupported Format = "unsupported"
)

var (
	// ErrUnsupportedFormat 不支持的文档格式
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrExtractionFailed 文档解析失败（文档本身损坏或无法解析）
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrOCRUnavailable 未找到OCR引擎（环境配置问题）
	ErrOCRUnavailable = errors.New("ocr engine not available")
)

// PageFunc 逐页进度回调，index从1开始
type PageFunc func(index, total int)

// Parser 结构化文本解析器接口
// 从文档内部的文本层提取纯文本
type Parser interface {
	// Parse 解析文档，返回文本内容
	Parse(ctx context.Context, filePath string, onPage PageFunc) (string, error)
}

// Document 上传的文档
type Document struct {
	Name   string // 原始文件名
	Path   string // 临时文件路径
	Format Format // 文档格式
}

// DetectFormat 根据文件名扩展名判断文档格式
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return PDF
	case ".docx":
		return DOCX
	default:
		return Unsupported
	}
}

// ParserFactory 根据文档格式创建对应的结构化解析器
func ParserFactory(format Format) (Parser, error) {
	switch format {
	case PDF:
		return NewPDFParser(), nil
	case DOCX:
		return NewDOCXParser(), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// notify 安全地调用进度回调
func (f PageFunc) notify(index, total int) {
	if f != nil {
		f(index, total)
	}
}
