package suggest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cache 译文建议缓存
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// CacheKey 由模型、目标语言和原文计算缓存键
func CacheKey(model, lang, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + lang + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// FileCache 是基于文件系统的缓存实现
type FileCache struct {
	dir   string
	mutex sync.RWMutex
}

// cacheEntry 表示缓存条目
type cacheEntry struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFileCache 创建基于文件的缓存
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

// Get 从缓存中获取值
func (c *FileCache) Get(key string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	data, err := os.ReadFile(filepath.Join(c.dir, key+".json"))
	if err != nil {
		return "", false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}
	return entry.Value, true
}

// Set 将值存储到缓存中
func (c *FileCache) Set(key, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("创建缓存目录失败: %w", err)
	}
	data, err := json.Marshal(cacheEntry{Value: value, CreatedAt: time.Now()})
	if err != nil {
		return err
	}
	tmp := filepath.Join(c.dir, key+".json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入缓存文件失败: %w", err)
	}
	return os.Rename(tmp, filepath.Join(c.dir, key+".json"))
}

// MemoryCache 是基于内存的缓存实现
type MemoryCache struct {
	data  map[string]string
	mutex sync.RWMutex
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]string)}
}

// Get 从缓存中获取值
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// Set 将值存储到缓存中
func (c *MemoryCache) Set(key, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data[key] = value
	return nil
}
