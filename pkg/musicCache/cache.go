// Package musiccache remembers small per-track facts (such as the media
// title of a downloaded track) across restarts.
package musiccache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/redis"
)

const (
	kvFormat    = "%s => %s"
	kvSeparator = " => "
)

// Index 只追加的键值索引，已存在的键不会被覆盖
type Index interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
}

// FileIndex 基于 "key => value" 列表文件的索引
type FileIndex struct {
	path  string
	cache sync.Map
	mu    sync.Mutex
}

// OpenFile 加载索引文件，不存在时创建
func OpenFile(path string) (*FileIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	idx := &FileIndex{path: path}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return idx, nil
	case err != nil:
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), kvSeparator)
		if !ok || key == "" {
			continue
		}
		// 与写入一致，先出现的值优先
		idx.cache.LoadOrStore(key, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return idx, nil
}

func (f *FileIndex) Get(_ context.Context, key string) (string, bool) {
	v, ok := f.cache.Load(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (f *FileIndex) Set(_ context.Context, key, value string) error {
	key, value = flatten(key), flatten(value)
	if strings.Contains(key, kvSeparator) {
		return fmt.Errorf("invalid key %q", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, loaded := f.cache.LoadOrStore(key, value); loaded {
		return nil
	}

	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		f.cache.Delete(key)
		return fmt.Errorf("open index: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, kvFormat+"\n", key, value); err != nil {
		f.cache.Delete(key)
		return fmt.Errorf("append index: %w", err)
	}
	return nil
}

// 列表文件按行存储
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RedisIndex 基于 Redis 哈希的索引，适合多个实例共享
type RedisIndex struct {
	client *redis.Client
	key    string
}

// NewRedisIndex 创建 Redis 索引，key 为哈希名
func NewRedisIndex(client *redis.Client, key string) *RedisIndex {
	return &RedisIndex{client: client, key: key}
}

func (r *RedisIndex) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.HGet(ctx, r.key, key)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (r *RedisIndex) Set(ctx context.Context, key, value string) error {
	_, err := r.client.HSetNX(ctx, r.key, key, value)
	return err
}
