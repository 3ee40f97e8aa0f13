package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Available() bool {
	return m.Called().Bool(0)
}

func (m *mockEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	args := m.Called(ctx, imagePath)
	return args.String(0), args.Error(1)
}

type mockRasterizer struct {
	mock.Mock
	dirs []string
}

func (m *mockRasterizer) Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	m.dirs = append(m.dirs, outDir)
	args := m.Called(ctx, pdfPath, outDir)
	images, _ := args.Get(0).([]string)
	return images, args.Error(1)
}

// fakeRunner 模拟pdftoppm，在输出前缀处生成指定数量的图片
type fakeRunner struct {
	pages int
	calls [][]string
	err   error
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.err != nil {
		return nil, []byte("boom"), r.err
	}
	prefix := args[len(args)-1]
	for i := 1; i <= r.pages; i++ {
		if err := os.WriteFile(prefix+"-"+strconv.Itoa(i)+".png", []byte("png"), 0o644); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func TestOCRExtractorUnavailableSkipsRasterization(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Available").Return(false)
	rasterizer := new(mockRasterizer)

	ocr := NewOCRExtractor(engine, rasterizer, t.TempDir(), nil)
	_, err := ocr.Recognize(context.Background(), "scan.pdf", nil)

	assert.ErrorIs(t, err, ErrOCRUnavailable)
	rasterizer.AssertNotCalled(t, "Rasterize", mock.Anything, mock.Anything, mock.Anything)
}

func TestOCRExtractorConcatenatesPagesInOrder(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Available").Return(true)
	engine.On("Recognize", mock.Anything, "p1.png").Return("Page one text", nil).Once()
	engine.On("Recognize", mock.Anything, "p2.png").Return("Page two text", nil).Once()

	rasterizer := new(mockRasterizer)
	rasterizer.On("Rasterize", mock.Anything, "scan.pdf", mock.Anything).Return([]string{"p1.png", "p2.png"}, nil)

	tmp := t.TempDir()
	ocr := NewOCRExtractor(engine, rasterizer, tmp, nil)

	var progress []int
	text, err := ocr.Recognize(context.Background(), "scan.pdf", func(index, total int) {
		assert.Equal(t, 2, total)
		progress = append(progress, index)
	})
	require.NoError(t, err)

	assert.Equal(t, "Page one text\nPage two text\n", text)
	assert.Equal(t, []int{1, 2}, progress)
	engine.AssertExpectations(t)

	// 临时目录在返回前已被删除
	require.Len(t, rasterizer.dirs, 1)
	_, statErr := os.Stat(rasterizer.dirs[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestOCRExtractorPageFailure(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Available").Return(true)
	engine.On("Recognize", mock.Anything, "p1.png").Return("", errors.New("bad image"))

	rasterizer := new(mockRasterizer)
	rasterizer.On("Rasterize", mock.Anything, mock.Anything, mock.Anything).Return([]string{"p1.png"}, nil)

	ocr := NewOCRExtractor(engine, rasterizer, t.TempDir(), nil)
	_, err := ocr.Recognize(context.Background(), "scan.pdf", nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ocr page 1")
}

func TestPdftoppmRasterizer(t *testing.T) {
	pdfPath := createTempPDF(t, "", "", "")
	runner := &fakeRunner{pages: 3}

	cfg := DefaultOCRConfig()
	cfg.DPI = 150
	r := NewPdftoppmRasterizer(cfg, runner)

	outDir := t.TempDir()
	images, err := r.Rasterize(context.Background(), pdfPath, outDir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(outDir, "page-1.png"),
		filepath.Join(outDir, "page-2.png"),
		filepath.Join(outDir, "page-3.png"),
	}, images)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"pdftoppm", "-r", "150", "-png", pdfPath, filepath.Join(outDir, "page")}, runner.calls[0])
}

func TestPdftoppmRasterizerMaxPages(t *testing.T) {
	pdfPath := createTempPDF(t, "", "", "")
	runner := &fakeRunner{pages: 2}

	cfg := DefaultOCRConfig()
	cfg.MaxPages = 2
	r := NewPdftoppmRasterizer(cfg, runner)

	images, err := r.Rasterize(context.Background(), pdfPath, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, images, 2)
	assert.Contains(t, runner.calls[0], "-l")
}

func TestPdftoppmRasterizerCommandFailure(t *testing.T) {
	pdfPath := createTempPDF(t, "")
	runner := &fakeRunner{err: errors.New("exit status 1")}

	_, err := NewPdftoppmRasterizer(DefaultOCRConfig(), runner).Rasterize(context.Background(), pdfPath, t.TempDir())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pdftoppm")
}

func TestSortByPageNumber(t *testing.T) {
	paths := []string{"/t/page-10.png", "/t/page-2.png", "/t/page-1.png"}
	sortByPageNumber(paths, "/t/page")
	assert.Equal(t, []string{"/t/page-1.png", "/t/page-2.png", "/t/page-10.png"}, paths)
}

func TestTesseractEngineConfiguredMissingBinary(t *testing.T) {
	cfg := DefaultOCRConfig()
	cfg.Tesseract = filepath.Join(t.TempDir(), "no-such-tesseract")

	engine := NewTesseractEngine(cfg, &fakeRunner{})
	assert.False(t, engine.Available())

	_, err := engine.Recognize(context.Background(), "img.png")
	assert.ErrorIs(t, err, ErrOCRUnavailable)
}

func TestPdftoppmRasterizerConfiguredMissingBinary(t *testing.T) {
	cfg := DefaultOCRConfig()
	cfg.Pdftoppm = filepath.Join(t.TempDir(), "no-such-pdftoppm")

	assert.False(t, NewPdftoppmRasterizer(cfg, &fakeRunner{}).Available())
}

func TestOCRExtractorRequiresRasterizer(t *testing.T) {
	engine := &mockEngine{}
	engine.On("Available").Return(true)

	cfg := DefaultOCRConfig()
	cfg.Pdftoppm = filepath.Join(t.TempDir(), "no-such-pdftoppm")
	rasterizer := NewPdftoppmRasterizer(cfg, &fakeRunner{pages: 1})

	ocr := NewOCRExtractor(engine, rasterizer, t.TempDir(), nil)
	assert.False(t, ocr.Available())

	// 缺少渲染工具时按OCR不可用处理，不会调用识别引擎
	_, err := ocr.Recognize(context.Background(), "scan.pdf", nil)
	assert.ErrorIs(t, err, ErrOCRUnavailable)
	engine.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything)
}

func TestTesseractEngineDoesNotModifySearchPaths(t *testing.T) {
	// 预留容量的切片，append时会写入底层数组
	paths := make([]string, 1, 8)
	paths[0] = filepath.Join(t.TempDir(), "tesseract")
	backing := paths[:cap(paths)]

	cfg := DefaultOCRConfig()
	cfg.SearchPaths = paths
	engine := NewTesseractEngine(cfg, &fakeRunner{})
	engine.Available()

	for _, p := range backing[1:] {
		assert.Empty(t, p)
	}
	assert.Len(t, cfg.SearchPaths, 1)
}
