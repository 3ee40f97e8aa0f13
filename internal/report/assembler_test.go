package report

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fyerfyer/doc-qa-extractor/internal/document"
	"github.com/fyerfyer/doc-qa-extractor/internal/llm"
	"github.com/fyerfyer/doc-qa-extractor/internal/models"
)

func sampleResults() []models.AnswerResult {
	return []models.AnswerResult{
		{Index: 1, Question: "What is the capital of France?", Answer: "Paris is the capital of France."},
		{Index: 2, Question: "Who wrote Hamlet & Macbeth?", Answer: llm.FallbackAnswer, Failed: true},
		{Index: 3, Question: "How many legs does a spider have?", Answer: "A spider has eight legs."},
	}
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []Format{FormatDOCX, FormatHTML, FormatMarkdown, FormatPDF, FormatXLSX}, Formats())

	for _, f := range Formats() {
		a, err := New(f)
		require.NoError(t, err)
		assert.NotEmpty(t, a.ContentType())
	}

	_, err := New("odt")
	assert.Error(t, err)

	assert.Equal(t, "Document_QA.docx", FileName(FormatDOCX))
}

func TestDOCXAssembler(t *testing.T) {
	data, err := DOCXAssembler{}.Assemble(sampleResults())
	require.NoError(t, err)

	// 使用文档解析器读取生成的文件，段落顺序与内容应一一对应
	path := writeTemp(t, "out.docx", data)
	text, err := document.NewDOCXParser().Parse(context.Background(), path, nil)
	require.NoError(t, err)

	expected := strings.Join([]string{
		Title,
		"Question 1: What is the capital of France?",
		"Paris is the capital of France.",
		"Question 2: Who wrote Hamlet & Macbeth?",
		llm.FallbackAnswer,
		"Question 3: How many legs does a spider have?",
		"A spider has eight legs.",
	}, "\n") + "\n"
	assert.Equal(t, expected, text)

	// 检查样式与包结构
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := map[string]*zip.File{}
	for _, f := range zr.File {
		names[f.Name] = f
	}
	for _, part := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml", "word/styles.xml", "word/_rels/document.xml.rels"} {
		assert.Contains(t, names, part)
	}

	rc, err := names["word/document.xml"].Open()
	require.NoError(t, err)
	xmlBytes, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)

	xmlText := string(xmlBytes)
	assert.Equal(t, 1, strings.Count(xmlText, `w:val="Heading1"`))
	assert.Equal(t, 3, strings.Count(xmlText, `w:val="Heading2"`))
	assert.Contains(t, xmlText, "Hamlet &amp; Macbeth")
}

func TestDOCXAssemblerEmpty(t *testing.T) {
	data, err := DOCXAssembler{}.Assemble(nil)
	require.NoError(t, err)

	path := writeTemp(t, "empty.docx", data)
	text, err := document.NewDOCXParser().Parse(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, Title+"\n", text)
}

func TestDOCXAssemblerMultilineAnswer(t *testing.T) {
	data, err := DOCXAssembler{}.Assemble([]models.AnswerResult{
		{Index: 1, Question: "Which steps are needed?", Answer: "First step.\nSecond step."},
	})
	require.NoError(t, err)

	path := writeTemp(t, "multi.docx", data)
	text, err := document.NewDOCXParser().Parse(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Contains(t, text, "First step.\nSecond step.\n")
}

func TestMarkdownAssembler(t *testing.T) {
	data, err := MarkdownAssembler{}.Assemble(sampleResults()[:1])
	require.NoError(t, err)

	assert.Equal(t, "# Questions & Answers from Document\n\n"+
		"## Question 1: What is the capital of France?\n\n"+
		"Paris is the capital of France.\n\n", string(data))
}

func TestMarkdownAssemblerEscapes(t *testing.T) {
	data, err := MarkdownAssembler{}.Assemble([]models.AnswerResult{
		{Question: "What does *this* do?", Answer: "It prints # signs"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `What does \*this\* do?`)
	assert.Contains(t, string(data), `prints \# signs`)
}

func TestHTMLAssembler(t *testing.T) {
	data, err := HTMLAssembler{}.Assemble(sampleResults())
	require.NoError(t, err)

	html := string(data)
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Questions &amp; Answers from Document</h1>")
	assert.Contains(t, html, "Question 1: What is the capital of France?</h2>")
	assert.Contains(t, html, "<p>A spider has eight legs.</p>")
	assert.Less(t, strings.Index(html, "Question 1:"), strings.Index(html, "Question 3:"))
}

func TestPDFAssembler(t *testing.T) {
	data, err := PDFAssembler{}.Assemble(sampleResults())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	path := writeTemp(t, "out.pdf", data)
	text, err := document.NewPDFParser().Parse(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Contains(t, text, "Question 1")
	assert.Contains(t, text, "spider")
}

func TestXLSXAssembler(t *testing.T) {
	data, err := XLSXAssembler{}.Assemble(sampleResults())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"#", "Question", "Answer", "Fallback"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "What is the capital of France?", rows[1][1])
	assert.Equal(t, llm.FallbackAnswer, rows[2][2])
	assert.Equal(t, "TRUE", rows[2][3])
}
