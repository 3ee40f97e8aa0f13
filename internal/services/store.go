package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyerfyer/doc-qa-extractor/internal/cache"
	"github.com/fyerfyer/doc-qa-extractor/internal/credential"
	"github.com/fyerfyer/doc-qa-extractor/internal/models"
)

const (
	runKeyPrefix     = "run"
	currentRunKey    = "run:current"
	sessionAPIKeyKey = "session:api_key"
)

// RunStore 当前处理流程的状态存储
// Run只保存在缓存中，过期后自动丢弃
type RunStore struct {
	cache cache.Cache
	ttl   time.Duration
	mu    sync.Mutex // 保证读-改-写的原子性
}

// NewRunStore 创建Run存储，ttl为0时使用缓存默认过期时间
func NewRunStore(c cache.Cache, ttl time.Duration) *RunStore {
	return &RunStore{cache: c, ttl: ttl}
}

func runKey(id string) string {
	return cache.GenerateCacheKey(runKeyPrefix, id)
}

// Save 保存Run并将其设为当前Run
func (s *RunStore) Save(run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := cache.SetJSON(s.cache, runKey(run.ID), run, s.ttl); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if err := s.cache.Set(currentRunKey, run.ID, s.ttl); err != nil {
		return fmt.Errorf("failed to save current run id: %w", err)
	}
	return nil
}

// Get 获取Run
func (s *RunStore) Get(id string) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *RunStore) get(id string) (*models.Run, error) {
	var run models.Run
	found, err := cache.GetJSON(s.cache, runKey(id), &run)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrRunNotFound
	}
	return &run, nil
}

// Current 获取当前Run
func (s *RunStore) Current() (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, found, err := s.cache.Get(currentRunKey)
	if err != nil {
		return nil, err
	}
	if !found || id == "" {
		return nil, models.ErrRunNotFound
	}
	return s.get(id)
}

// Delete 删除Run，删除的是当前Run时同时清除当前标记
func (s *RunStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(id); err != nil {
		return err
	}
	if err := s.cache.Delete(runKey(id)); err != nil {
		return err
	}

	current, found, err := s.cache.Get(currentRunKey)
	if err == nil && found && current == id {
		return s.cache.Delete(currentRunKey)
	}
	return nil
}

// SessionStore 会话级别的API密钥
// 由操作者显式设置，进程内共享
type SessionStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewSessionStore 创建会话存储
func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: c, ttl: ttl}
}

// SetAPIKey 校验并保存API密钥
func (s *SessionStore) SetAPIKey(key string) error {
	if err := credential.Validate(key); err != nil {
		return err
	}
	return s.cache.Set(sessionAPIKeyKey, key, s.ttl)
}

// APIKey 返回会话中的API密钥，未设置时返回空字符串
func (s *SessionStore) APIKey() (string, error) {
	key, found, err := s.cache.Get(sessionAPIKeyKey)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return key, nil
}

// ClearAPIKey 清除会话中的API密钥
func (s *SessionStore) ClearAPIKey() error {
	return s.cache.Delete(sessionAPIKeyKey)
}

var _ credential.SessionStore = (*SessionStore)(nil)

// isNotFound Run不存在
func isNotFound(err error) bool {
	return errors.Is(err, models.ErrRunNotFound)
}
