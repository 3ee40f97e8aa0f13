package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser PDF文档解析器
// 逐页读取PDF文本层
type PDFParser struct{}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{}
}

// Parse 解析PDF文件并提取其文本内容
// 空白页不产生任何输出，每个非空页之后追加一个换行符
func (p *PDFParser) Parse(ctx context.Context, filePath string, onPage PageFunc) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = "", fmt.Errorf("%w: malformed PDF: %v", ErrExtractionFailed, r)
		}
	}()

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: opening PDF: %v", ErrExtractionFailed, err)
	}
	defer f.Close()

	total := reader.NumPage()

	var text strings.Builder
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return text.String(), err
		}

		pageText := readPageText(reader, i)
		if pageText != "" {
			text.WriteString(pageText)
			text.WriteString("\n")
		}

		onPage.notify(i, total)
	}

	return text.String(), nil
}

// readPageText 读取单页文本，失败的页按空页处理
func readPageText(reader *pdf.Reader, index int) (text string) {
	// ledongthuc/pdf 在遇到损坏的内容流时可能panic
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := reader.Page(index)
	if page.V.IsNull() {
		return ""
	}

	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}
