package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
	prefix     string        // 对象名前缀
	timeout    time.Duration // 单次操作超时

	mu    sync.RWMutex
	index map[string]string // id -> 对象名
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string        // MinIO服务端点
	AccessKey string        // 访问密钥ID
	SecretKey string        // 秘密访问密钥
	UseSSL    bool          // 是否使用SSL
	Bucket    string        // 存储桶名称
	Prefix    string        // 对象名前缀，例如 artifacts
	Timeout   time.Duration // 单次操作超时
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		timeout:    timeout,
		index:      make(map[string]string),
	}, nil
}

func (s *MinioStorage) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Save 以流的方式上传文件到MinIO
func (s *MinioStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()

	now := time.Now()
	datePath := fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day())
	objectName := path.Join(s.prefix, datePath, id+filepath.Ext(filename))
	contentType := getMimeType(filename)

	ctx, cancel := s.opContext()
	defer cancel()

	info, err := s.client.PutObject(ctx, s.bucketName, objectName, reader, -1,
		minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: map[string]string{"filename": filename},
		})
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %w", err)
	}

	s.mu.Lock()
	s.index[id] = objectName
	s.mu.Unlock()

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     info.Size,
		MimeType: contentType,
		Path:     objectName,
	}, nil
}

// Get 获取MinIO中的文件
func (s *MinioStorage) Get(id string) (io.ReadCloser, error) {
	objectName, err := s.objectName(id)
	if err != nil {
		return nil, err
	}

	// GetObject返回的对象在读取时才真正发起请求，这里不设置超时
	obj, err := s.client.GetObject(context.Background(), s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// Delete 从MinIO中删除文件
func (s *MinioStorage) Delete(id string) error {
	objectName, err := s.objectName(id)
	if err != nil {
		return err
	}

	ctx, cancel := s.opContext()
	defer cancel()

	if err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	s.mu.Lock()
	delete(s.index, id)
	s.mu.Unlock()
	return nil
}

// List 列出前缀下的所有文件
func (s *MinioStorage) List() ([]FileInfo, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	opts := minio.ListObjectsOptions{Recursive: true}
	if s.prefix != "" {
		opts.Prefix = s.prefix + "/"
	}

	var files []FileInfo
	for object := range s.client.ListObjects(ctx, s.bucketName, opts) {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}

		fileName := path.Base(object.Key)
		files = append(files, FileInfo{
			ID:       idFromName(fileName),
			Name:     fileName,
			Size:     object.Size,
			MimeType: getMimeType(fileName),
			Path:     object.Key,
		})
	}
	return files, nil
}

// Exists 检查MinIO中是否存在指定ID的文件
func (s *MinioStorage) Exists(id string) (bool, error) {
	_, err := s.objectName(id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// objectName 根据ID查找对象名，索引未命中时列举存储桶
func (s *MinioStorage) objectName(id string) (string, error) {
	s.mu.RLock()
	name, ok := s.index[id]
	s.mu.RUnlock()
	if ok {
		return name, nil
	}

	files, err := s.List()
	if err != nil {
		return "", err
	}
	for _, file := range files {
		if file.ID == id {
			s.mu.Lock()
			s.index[id] = file.Path
			s.mu.Unlock()
			return file.Path, nil
		}
	}
	return "", ErrNotFound
}
