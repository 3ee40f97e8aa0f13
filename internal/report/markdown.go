package report

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/fyerfyer/doc-qa-extractor/internal/models"
)

// markdownEscaper 转义会被解释为markdown语法的字符
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"#", `\#`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"|", `\|`,
)

// MarkdownAssembler 生成markdown文档
type MarkdownAssembler struct{}

// ContentType 返回MIME类型
func (MarkdownAssembler) ContentType() string { return "text/markdown; charset=utf-8" }

// Assemble 生成markdown内容
func (MarkdownAssembler) Assemble(results []models.AnswerResult) ([]byte, error) {
	return []byte(renderMarkdown(results)), nil
}

func renderMarkdown(results []models.AnswerResult) string {
	var b strings.Builder
	b.WriteString("# " + Title + "\n\n")
	for i, r := range results {
		b.WriteString("## " + markdownEscaper.Replace(QuestionHeading(i+1, singleLine(r.Question))) + "\n\n")
		b.WriteString(markdownEscaper.Replace(r.Answer) + "\n\n")
	}
	return b.String()
}

// singleLine 标题中不能有换行
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTMLAssembler 通过markdown渲染生成完整的HTML页面
type HTMLAssembler struct{}

// ContentType 返回MIME类型
func (HTMLAssembler) ContentType() string { return "text/html; charset=utf-8" }

// Assemble 生成HTML内容
func (HTMLAssembler) Assemble(results []models.AnswerResult) ([]byte, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(renderMarkdown(results)))

	renderer := html.NewRenderer(html.RendererOptions{
		Title: Title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(doc, renderer), nil
}

func init() {
	Register(FormatMarkdown, func() Assembler { return MarkdownAssembler{} })
	Register(FormatHTML, func() Assembler { return HTMLAssembler{} })
}
