package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const jsonStoreVersion = "1.0.0"

// jsonFile 磁盘上的文件格式
type jsonFile struct {
	Version     string                        `json:"version"`
	LastUpdated time.Time                     `json:"lastUpdated"`
	Languages   map[string]map[string]*Record `json:"languages"`
}

// JSONStore 基于单个 JSON 文件的存储
type JSONStore struct {
	path  string
	data  *jsonFile
	mutex sync.RWMutex
	now   func() time.Time
}

// OpenJSON 打开或创建 JSON 存储
func OpenJSON(path string) (*JSONStore, error) {
	s := &JSONStore{path: path, now: time.Now}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	return s, nil
}

func (s *JSONStore) load() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.data = &jsonFile{Version: jsonStoreVersion, Languages: make(map[string]map[string]*Record)}
		return nil
	}
	if err != nil {
		return err
	}

	var f jsonFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("corrupt store file %s: %w", s.path, err)
	}
	if f.Languages == nil {
		f.Languages = make(map[string]map[string]*Record)
	}
	for lang, recs := range f.Languages {
		for id, r := range recs {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("%s/%s: %w", lang, id, err)
			}
		}
	}
	s.data = &f
	return nil
}

// saveUnsafe 写入临时文件后重命名，调用方持有写锁
func (s *JSONStore) saveUnsafe() error {
	s.data.LastUpdated = s.now()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}

// Find 实现 Store
func (s *JSONStore) Find(lang, nodeID string) (*Record, error) {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if r, ok := s.data.Languages[lang][nodeID]; ok {
		return r.Clone(), nil
	}
	return nil, nil
}

// List 实现 Store，按 nodeId 排序
func (s *JSONStore) List(lang string) ([]*Record, error) {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]*Record, 0, len(s.data.Languages[lang]))
	for _, r := range s.data.Languages[lang] {
		out = append(out, r.Clone())
	}
	sortRecords(out)
	return out, nil
}

// Languages 实现 Store
func (s *JSONStore) Languages() ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]string, 0, len(s.data.Languages))
	for lang, recs := range s.data.Languages {
		if len(recs) > 0 {
			out = append(out, lang)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Save 实现 Store
func (s *JSONStore) Save(lang string, in Intent) (*Record, error) {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing := s.data.Languages[lang][in.NodeID]
	rec, err := in.apply(existing, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.putUnsafe(lang, rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Put 实现 Store，原样写入（保留版本号）
func (s *JSONStore) Put(lang string, rec *Record) error {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.putUnsafe(lang, rec.Clone())
}

func (s *JSONStore) putUnsafe(lang string, rec *Record) error {
	recs, ok := s.data.Languages[lang]
	if !ok {
		recs = make(map[string]*Record)
		s.data.Languages[lang] = recs
	}
	prev, had := recs[rec.NodeID]
	recs[rec.NodeID] = rec
	if err := s.saveUnsafe(); err != nil {
		// 写盘失败时回滚内存状态
		if had {
			recs[rec.NodeID] = prev
		} else {
			delete(recs, rec.NodeID)
		}
		return err
	}
	return nil
}

// Delete 实现 Store
func (s *JSONStore) Delete(lang, nodeID string) error {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	recs := s.data.Languages[lang]
	prev, ok := recs[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, lang, nodeID)
	}
	delete(recs, nodeID)
	if err := s.saveUnsafe(); err != nil {
		recs[nodeID] = prev
		return err
	}
	return nil
}

// Close 实现 Store
func (s *JSONStore) Close() error {
	return nil
}
