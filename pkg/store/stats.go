package store

import (
	"math"
	"strings"
)

// Stats 一个语言的翻译进度
type Stats struct {
	Total        int `json:"total"`
	Translated   int `json:"translated"`
	Untranslated int `json:"untranslated"`
	Pending      int `json:"pending"`
	Approved     int `json:"approved"`
	NeedsReview  int `json:"needsReview"`
	Progress     int `json:"progress"` // 百分比
}

// ComputeStats 统计记录，total 为页面上的可翻译节点数
func ComputeStats(recs []*Record, total int) Stats {
	st := Stats{Total: total, Translated: len(recs)}
	for _, r := range recs {
		switch r.Status {
		case StatusPending:
			st.Pending++
		case StatusApproved:
			st.Approved++
		case StatusNeedsReview:
			st.NeedsReview++
		}
	}
	st.Untranslated = max(total-st.Translated, 0)
	if total > 0 {
		st.Progress = int(math.Round(float64(st.Translated) / float64(total) * 100))
	}
	return st
}

// Filter 返回原文、译文、节点标识或页面地址包含 query 的记录（不区分大小写）
func Filter(recs []*Record, query string) []*Record {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return recs
	}
	var out []*Record
	for _, r := range recs {
		for _, field := range []string{r.OriginalText, r.TranslatedText, r.NodeID, r.PageURL} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
