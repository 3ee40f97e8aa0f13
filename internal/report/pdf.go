package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/fyerfyer/doc-qa-extractor/internal/models"
)

// PDFAssembler 使用gofpdf生成PDF文档
type PDFAssembler struct{}

// ContentType 返回MIME类型
func (PDFAssembler) ContentType() string { return "application/pdf" }

// Assemble 生成PDF内容
// 内置字体只支持cp1252，无法表示的字符会被替换
func (PDFAssembler) Assemble(results []models.AnswerResult) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(Title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 9, tr(Title), "", "L", false)
	pdf.Ln(4)

	for i, r := range results {
		pdf.SetFont("Arial", "B", 12)
		pdf.MultiCell(0, 7, tr(QuestionHeading(i+1, r.Question)), "", "L", false)
		pdf.Ln(1)

		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 6, tr(r.Answer), "", "L", false)
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func init() {
	Register(FormatPDF, func() Assembler { return PDFAssembler{} })
}
