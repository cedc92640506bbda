// Package testutil содержит реализации портов для модульных тестов.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/weni-ai/catalog-sync/internal/utils"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// NopLogger - логгер-заглушка для тестов.
type NopLogger struct{}

func NewNopLogger() interfaces.LoggerPort { return &NopLogger{} }

func (l *NopLogger) Debug(msg string, args ...interface{}) {}
func (l *NopLogger) Info(msg string, args ...interface{})  {}
func (l *NopLogger) Warn(msg string, args ...interface{})  {}
func (l *NopLogger) Error(msg string, args ...interface{}) {}
func (l *NopLogger) Fatal(msg string, args ...interface{}) {}

func (l *NopLogger) DebugWithContext(ctx context.Context, msg string, args ...interface{}) {}
func (l *NopLogger) InfoWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (l *NopLogger) WarnWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (l *NopLogger) ErrorWithContext(ctx context.Context, msg string, args ...interface{}) {}

func (l *NopLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort { return l }
func (l *NopLogger) WithField(key string, value interface{}) interfaces.LoggerPort  { return l }
func (l *NopLogger) WithApp(appID string) interfaces.LoggerPort                     { return l }
func (l *NopLogger) Sync() error                                                    { return nil }

// FakeCache - потокобезопасная реализация CachePort в памяти.
// TTL не истекают сами по себе; тесты управляют состоянием напрямую.
type FakeCache struct {
	mu     sync.Mutex
	values map[string][]byte
	sets   map[string]map[string]struct{}
	locks  map[string]struct{}

	// FailSetRemove заставляет следующий SetRemove вернуть ошибку
	FailSetRemove error
	// FailExtendLock заставляет следующий ExtendLock вернуть ошибку
	FailExtendLock error
}

func NewFakeCache() *FakeCache {
	return &FakeCache{
		values: make(map[string][]byte),
		sets:   make(map[string]map[string]struct{}),
		locks:  make(map[string]struct{}),
	}
}

func (c *FakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return nil, utils.ErrCacheMiss
	}
	return v, nil
}

func (c *FakeCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *FakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *FakeCache) SetAdd(ctx context.Context, key string, members ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[key]
	if !ok {
		set = make(map[string]struct{})
		c.sets[key] = set
	}
	var added int64
	for _, m := range members {
		if _, exists := set[m]; !exists {
			set[m] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (c *FakeCache) SetMembers(ctx context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := make([]string, 0, len(c.sets[key]))
	for m := range c.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (c *FakeCache) SetRemove(ctx context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSetRemove != nil {
		err := c.FailSetRemove
		c.FailSetRemove = nil
		return err
	}
	for _, m := range members {
		delete(c.sets[key], m)
	}
	return nil
}

func (c *FakeCache) SetCard(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.sets[key])), nil
}

func (c *FakeCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (c *FakeCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.locks[key]; ok {
		return true, nil
	}
	if _, ok := c.values[key]; ok {
		return true, nil
	}
	_, ok := c.sets[key]
	return ok, nil
}

func (c *FakeCache) Lock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.locks[key]; held {
		return false, nil
	}
	c.locks[key] = struct{}{}
	return true, nil
}

func (c *FakeCache) ExtendLock(ctx context.Context, key string, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailExtendLock != nil {
		err := c.FailExtendLock
		c.FailExtendLock = nil
		return err
	}
	if _, held := c.locks[key]; !held {
		return utils.ErrCacheMiss
	}
	return nil
}

func (c *FakeCache) Unlock(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, key)
	return nil
}

func (c *FakeCache) Close() error { return nil }
