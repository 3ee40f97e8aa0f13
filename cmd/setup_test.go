package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	qaconfig "github.com/fyerfyer/doc-qa-extractor/config"
	"github.com/fyerfyer/doc-qa-extractor/internal/credential"
	"github.com/fyerfyer/doc-qa-extractor/internal/llm"
)

// closingClient 记录是否被关闭的客户端
type closingClient struct {
	*llm.MockClient
	closed bool
}

func (c *closingClient) Close() error {
	c.closed = true
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestAnswererPoolReusesClient(t *testing.T) {
	var clients []*closingClient
	pool := newAnswererPool(qaconfig.LLMConfig{MaxTokens: 100}, quietLogger())
	pool.newClient = func(apiKey string) (llm.Client, error) {
		c := &closingClient{MockClient: llm.NewMockClient(t)}
		clients = append(clients, c)
		return c, nil
	}

	a1, err := pool.Get("sk-first-0123456789abcdef")
	require.NoError(t, err)
	a2, err := pool.Get("sk-first-0123456789abcdef")
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	require.Len(t, clients, 1)

	// 密钥变化时替换客户端
	_, err = pool.Get("sk-second-0123456789abcdef")
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.True(t, clients[0].closed)
	assert.False(t, clients[1].closed)

	require.NoError(t, pool.Close())
	assert.True(t, clients[1].closed)
}

func TestAnswererPoolUsesConfiguredPrompt(t *testing.T) {
	client := llm.NewMockClient(t)
	client.EXPECT().
		Chat(mock.Anything, mock.MatchedBy(func(messages []llm.Message) bool {
			return len(messages) == 2 && messages[0].Content == "Answer in one sentence."
		}), mock.Anything).
		Return(&llm.Response{Text: "  Paris.  "}, nil).
		Once()

	pool := newAnswererPool(qaconfig.LLMConfig{
		SystemPrompt: "Answer in one sentence.",
		MaxTokens:    100,
	}, quietLogger())
	pool.newClient = func(string) (llm.Client, error) { return client, nil }

	answerer, err := pool.Get("sk-test-0123456789abcdef")
	require.NoError(t, err)

	answer, err := answerer.Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)
}

func TestAnswererPoolUnknownProvider(t *testing.T) {
	pool := newAnswererPool(qaconfig.LLMConfig{Provider: "unknown"}, quietLogger())

	_, err := pool.Get("sk-test-0123456789abcdef")
	assert.Error(t, err)
}

// writeDocx 在临时目录写入只包含正文段落的docx
func writeDocx(t *testing.T, paragraphs ...string) string {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "survey.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

// newTestApp 使用临时目录创建应用
func newTestApp(t *testing.T, envKey string) *application {
	t.Helper()
	t.Setenv(credential.EnvVar, envKey)

	cfg, err := qaconfig.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Storage.Path = filepath.Join(t.TempDir(), "artifacts")
	cfg.Storage.ScratchPath = filepath.Join(t.TempDir(), "uploads")
	cfg.OCR.Tesseract = filepath.Join(t.TempDir(), "no-tesseract")
	cfg.OCR.SearchPaths = nil

	app, err := newApp(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestProcessExtractOnly(t *testing.T) {
	app := newTestApp(t, "")
	input := writeDocx(t,
		"Customer survey.",
		"How long have you used the product?",
		"Would you recommend it to a friend?",
	)

	var out bytes.Buffer
	err := process(context.Background(), app.Pipeline, options{Input: input, Format: "docx"}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Extracted 2 questions (structured):")
	assert.Contains(t, out.String(), "1. How long have you used the product?")
	assert.Contains(t, out.String(), "2. Would you recommend it to a friend?")
	assert.Contains(t, out.String(), "[extract] 100%")
}

func TestProcessNoQuestions(t *testing.T) {
	app := newTestApp(t, "")
	input := writeDocx(t, "Nothing to ask here.")

	var out bytes.Buffer
	err := process(context.Background(), app.Pipeline, options{Input: input, Answer: true}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "No questions found in the document.")
}

func TestProcessWithAnswers(t *testing.T) {
	app := newTestApp(t, "sk-test-0123456789abcdef")

	client := llm.NewMockClient(t)
	client.EXPECT().
		Chat(mock.Anything, mock.Anything, mock.Anything).
		Return(&llm.Response{Text: "About two years."}, nil)
	app.answerers.newClient = func(string) (llm.Client, error) { return client, nil }

	input := writeDocx(t, "How long have you used the product?")
	output := filepath.Join(t.TempDir(), "answers.md")

	var out bytes.Buffer
	err := process(context.Background(), app.Pipeline, options{
		Input:  input,
		Answer: true,
		Output: output,
		Format: "md",
	}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Q1: How long have you used the product?")
	assert.Contains(t, out.String(), "A: About two years.")
	assert.Contains(t, out.String(), "[answer] 100% (1/1)")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "About two years.")
}

func TestProcessMissingInput(t *testing.T) {
	app := newTestApp(t, "")

	err := process(context.Background(), app.Pipeline, options{Input: filepath.Join(t.TempDir(), "missing.pdf")}, &bytes.Buffer{})
	assert.Error(t, err)
}
