package store

import (
	"fmt"
	"sort"
)

// Store 按语言组织的译文存储
//
// Find 在记录不存在时返回 (nil, nil)。
type Store interface {
	Find(lang, nodeID string) (*Record, error)
	List(lang string) ([]*Record, error)
	Languages() ([]string, error)
	Save(lang string, in Intent) (*Record, error)
	Put(lang string, rec *Record) error
	Delete(lang, nodeID string) error
	Close() error
}

// Open 按后端名称打开存储
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "json":
		return OpenJSON(path)
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// Snapshot 所有语言的全部记录
type Snapshot map[string][]*Record

// TakeSnapshot 读取存储中的全部记录
func TakeSnapshot(s Store) (Snapshot, error) {
	langs, err := s.Languages()
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot, len(langs))
	for _, lang := range langs {
		recs, err := s.List(lang)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", lang, err)
		}
		snap[lang] = recs
	}
	return snap, nil
}

// Validate 校验快照中的每一条记录
func (s Snapshot) Validate() error {
	for lang, recs := range s {
		if _, err := NormalizeLanguage(lang); err != nil {
			return err
		}
		for _, r := range recs {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("%s: %w", lang, err)
			}
		}
	}
	return nil
}

// Restore 先校验全部记录，全部有效后才写入
func (s Snapshot) Restore(dst Store) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	n := 0
	for lang, recs := range s {
		for _, r := range recs {
			if err := dst.Put(lang, r); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func sortRecords(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].NodeID < recs[j].NodeID
	})
}
