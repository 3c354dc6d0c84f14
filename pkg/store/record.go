package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Status 译文审核状态
type Status string

const (
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusNeedsReview Status = "needs_review"
)

// ParseStatus 解析状态，空串视为 pending
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusPending, nil
	case StatusPending, StatusApproved, StatusNeedsReview:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, s)
	}
}

// 预定义错误
var (
	ErrInvalidRecord   = errors.New("invalid translation record")
	ErrInvalidLanguage = errors.New("invalid language tag")
	ErrNotFound        = errors.New("translation not found")
)

// Record 一条译文记录
type Record struct {
	NodeID         string    `json:"nodeId"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	Status         Status    `json:"status"`
	PageURL        string    `json:"pageUrl"`
	LastModified   time.Time `json:"lastModified"`
	Version        int       `json:"version"`
}

// Validate 在存储边界校验记录
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.NodeID) == "" {
		return fmt.Errorf("%w: missing nodeId", ErrInvalidRecord)
	}
	if _, err := ParseStatus(string(r.Status)); err != nil || r.Status == "" {
		return fmt.Errorf("%w: node %s has status %q", ErrInvalidRecord, r.NodeID, r.Status)
	}
	if r.Version < 1 {
		return fmt.Errorf("%w: node %s has version %d", ErrInvalidRecord, r.NodeID, r.Version)
	}
	if r.LastModified.IsZero() {
		return fmt.Errorf("%w: node %s has no lastModified", ErrInvalidRecord, r.NodeID)
	}
	return nil
}

// Clone 返回副本
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// Intent 核心产生的创建/更新意图
type Intent struct {
	NodeID         string
	OriginalText   string
	TranslatedText string
	PageURL        string
	Status         Status
}

// apply 把意图合并到记录上：新记录版本为 1，已有记录版本加一
func (in Intent) apply(existing *Record, now time.Time) (*Record, error) {
	if strings.TrimSpace(in.NodeID) == "" {
		return nil, fmt.Errorf("%w: missing nodeId", ErrInvalidRecord)
	}
	status, err := ParseStatus(string(in.Status))
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return &Record{
			NodeID:         in.NodeID,
			OriginalText:   in.OriginalText,
			TranslatedText: in.TranslatedText,
			Status:         status,
			PageURL:        in.PageURL,
			LastModified:   now,
			Version:        1,
		}, nil
	}

	rec := existing.Clone()
	if in.OriginalText != "" {
		rec.OriginalText = in.OriginalText
	}
	if in.PageURL != "" {
		rec.PageURL = in.PageURL
	}
	rec.TranslatedText = in.TranslatedText
	rec.Status = status
	rec.LastModified = now
	rec.Version++
	return rec, nil
}

// NormalizeLanguage 校验并规范化语言标签
func NormalizeLanguage(lang string) (string, error) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLanguage)
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidLanguage, lang, err)
	}
	return tag.String(), nil
}
