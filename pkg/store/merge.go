package store

import (
	"fmt"
	"strings"
)

// MergeStrategy 导入记录与已有记录冲突时的处理方式
type MergeStrategy string

const (
	// MergeOverwrite 用导入的记录覆盖
	MergeOverwrite MergeStrategy = "overwrite"
	// MergeSkip 保留已有记录
	MergeSkip MergeStrategy = "skip"
	// MergeUpdate 只在译文不同时更新译文，并标记为待复查
	MergeUpdate MergeStrategy = "merge"
)

// ParseMergeStrategy 解析合并策略，空字符串视为 merge
func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch MergeStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MergeUpdate:
		return MergeUpdate, nil
	case MergeOverwrite:
		return MergeOverwrite, nil
	case MergeSkip:
		return MergeSkip, nil
	default:
		return "", fmt.Errorf("unknown merge strategy %q", s)
	}
}

// MergeResult 合并统计
type MergeResult struct {
	Added     int
	Updated   int
	Unchanged int
}

// Merge 把导入的记录合并进存储
//
// 新记录版本从 1 开始；被更新的记录版本在已有版本上加一。
func Merge(s Store, lang string, imported []*Record, strategy MergeStrategy) (MergeResult, error) {
	var res MergeResult
	for _, rec := range imported {
		if err := rec.Validate(); err != nil {
			return res, err
		}
	}

	for _, rec := range imported {
		existing, err := s.Find(lang, rec.NodeID)
		if err != nil {
			return res, err
		}

		var in *Intent
		switch {
		case existing == nil:
			in = &Intent{
				NodeID:         rec.NodeID,
				OriginalText:   rec.OriginalText,
				TranslatedText: rec.TranslatedText,
				PageURL:        rec.PageURL,
				Status:         rec.Status,
			}
		case strategy == MergeOverwrite:
			in = &Intent{
				NodeID:         rec.NodeID,
				OriginalText:   rec.OriginalText,
				TranslatedText: rec.TranslatedText,
				PageURL:        rec.PageURL,
				Status:         rec.Status,
			}
		case strategy == MergeUpdate && rec.TranslatedText != existing.TranslatedText:
			in = &Intent{
				NodeID:         rec.NodeID,
				TranslatedText: rec.TranslatedText,
				Status:         StatusNeedsReview,
			}
		}

		if in == nil {
			res.Unchanged++
			continue
		}
		if _, err := s.Save(lang, *in); err != nil {
			return res, fmt.Errorf("failed to merge %s: %w", rec.NodeID, err)
		}
		if existing == nil {
			res.Added++
		} else {
			res.Updated++
		}
	}
	return res, nil
}
