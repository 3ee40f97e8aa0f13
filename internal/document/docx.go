package document

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCXParser Word文档解析器
// 按文档顺序输出每个段落，一段一行，不区分段落样式
type DOCXParser struct{}

// NewDOCXParser 创建新的DOCX解析器
func NewDOCXParser() Parser {
	return &DOCXParser{}
}

// Parse 解析DOCX文件并提取段落文本
func (p *DOCXParser) Parse(ctx context.Context, filePath string, onPage PageFunc) (string, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: opening DOCX: %v", ErrExtractionFailed, err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("%w: word/document.xml not found in DOCX", ErrExtractionFailed)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("%w: opening document.xml: %v", ErrExtractionFailed, err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(ctx, rc)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for i, para := range paragraphs {
		text.WriteString(para)
		text.WriteString("\n")
		onPage.notify(i+1, len(paragraphs))
	}

	return text.String(), nil
}

// readParagraphs 以流的方式读取document.xml中body下的顶层段落
// 表格与文本框中的段落不属于正文段落，不参与输出
func readParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		stack      []string // 元素路径
		inPara     bool     // 是否处于顶层段落中
		nestedP    int      // 顶层段落内部嵌套的段落数量
		inText     bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parsing document.xml: %v", ErrExtractionFailed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, name)

			switch {
			case name == "p" && parent == "body":
				inPara = true
				nestedP = 0
				current.Reset()
			case name == "p" && inPara:
				nestedP++
			case !inPara || nestedP > 0:
				// 不在正文段落中
			case name == "t":
				inText = true
			case name == "tab":
				current.WriteString("\t")
			case name == "br" || name == "cr":
				current.WriteString("\n")
			}
		case xml.EndElement:
			name := t.Name.Local
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

			switch {
			case name == "p" && inPara && nestedP > 0:
				nestedP--
			case name == "p" && inPara:
				inPara = false
				paragraphs = append(paragraphs, current.String())
			case name == "t":
				inText = false
			}
		case xml.CharData:
			if inText && inPara && nestedP == 0 {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}
