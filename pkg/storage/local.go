package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalStorage 本地文件存储实现
type LocalStorage struct {
	basePath string // 基础存储路径

	mu    sync.RWMutex
	index map[string]string // id -> 相对路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: absPath,
		index:    make(map[string]string),
	}, nil
}

// BasePath 返回存储根目录
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// Save 保存文件到本地存储
// 写入失败时会删除已创建的文件
func (s *LocalStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	ext := filepath.Ext(filename)

	now := time.Now()
	datePath := filepath.Join(fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	dirPath := filepath.Join(s.basePath, datePath)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}

	relPath := filepath.Join(datePath, id+ext)
	filePath := filepath.Join(s.basePath, relPath)

	file, err := os.Create(filePath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filePath)
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	s.mu.Lock()
	s.index[id] = relPath
	s.mu.Unlock()

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     size,
		MimeType: getMimeType(filename),
		Path:     relPath,
	}, nil
}

// LocalPath 返回文件在磁盘上的绝对路径
func (s *LocalStorage) LocalPath(id string) (string, error) {
	return s.findFilePathByID(id)
}

// Get 获取文件内容
func (s *LocalStorage) Get(id string) (io.ReadCloser, error) {
	filePath, err := s.findFilePathByID(id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(id string) error {
	filePath, err := s.findFilePathByID(id)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.mu.Lock()
	delete(s.index, id)
	s.mu.Unlock()
	return nil
}

// List 列出所有文件
func (s *LocalStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		fileName := filepath.Base(path)
		files = append(files, FileInfo{
			ID:       idFromName(fileName),
			Name:     fileName,
			Size:     info.Size(),
			MimeType: getMimeType(fileName),
			Path:     relPath,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(id string) (bool, error) {
	_, err := s.findFilePathByID(id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// findFilePathByID 根据ID查找文件路径
// 先查内存索引，索引中没有时（例如进程重启后）遍历目录
func (s *LocalStorage) findFilePathByID(id string) (string, error) {
	s.mu.RLock()
	relPath, ok := s.index[id]
	s.mu.RUnlock()

	if ok {
		filePath := filepath.Join(s.basePath, relPath)
		if _, err := os.Stat(filePath); err == nil {
			return filePath, nil
		}
		s.mu.Lock()
		delete(s.index, id)
		s.mu.Unlock()
		return "", ErrNotFound
	}

	var filePath string
	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && idFromName(path) == id {
			filePath = path
			return io.EOF // 中断遍历
		}
		return nil
	})
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("error searching for file: %w", err)
	}
	if filePath == "" {
		return "", ErrNotFound
	}
	return filePath, nil
}
