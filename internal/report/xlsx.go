package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fyerfyer/doc-qa-extractor/internal/models"
)

const xlsxSheet = "Q&A"

// XLSXAssembler 生成Excel表格，每个问答一行
type XLSXAssembler struct{}

// ContentType 返回MIME类型
func (XLSXAssembler) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Assemble 生成xlsx内容
func (XLSXAssembler) Assemble(results []models.AnswerResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, err
	}

	headers := []string{"#", "Question", "Answer", "Fallback"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(xlsxSheet, cell, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(xlsxSheet, "A1", "D1", headerStyle); err != nil {
		return nil, err
	}

	for i, r := range results {
		row := i + 2
		values := []any{i + 1, r.Question, r.Answer, r.Failed}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(xlsxSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	if len(results) > 0 {
		last := fmt.Sprintf("C%d", len(results)+1)
		if err := f.SetCellStyle(xlsxSheet, "B2", last, wrapStyle); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(xlsxSheet, "A", "A", 6)
	_ = f.SetColWidth(xlsxSheet, "B", "B", 60)
	_ = f.SetColWidth(xlsxSheet, "C", "C", 80)
	_ = f.SetColWidth(xlsxSheet, "D", "D", 10)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func init() {
	Register(FormatXLSX, func() Assembler { return XLSXAssembler{} })
}
