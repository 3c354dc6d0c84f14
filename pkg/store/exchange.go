package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// CSVHeader 导出 CSV 的固定列
var CSVHeader = []string{"Node ID", "Original Text", "Translated Text", "Status", "Page URL", "Last Modified", "Version"}

// ExportJSON 导出为 JSON 数组
func ExportJSON(w io.Writer, recs []*Record) error {
	if recs == nil {
		recs = []*Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// ImportJSON 读取 JSON 数组并校验每条记录
func ImportJSON(r io.Reader) ([]*Record, error) {
	var recs []*Record
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return recs, nil
}

// ExportCSV 导出为 CSV，时间使用 RFC 3339
func ExportCSV(w io.Writer, recs []*Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.NodeID,
			r.OriginalText,
			r.TranslatedText,
			string(r.Status),
			r.PageURL,
			r.LastModified.UTC().Format(time.RFC3339Nano),
			strconv.Itoa(r.Version),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV 读取 ExportCSV 产生的文件
func ImportCSV(r io.Reader) ([]*Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) != CSVHeader[i] {
			return nil, fmt.Errorf("%w: unexpected CSV column %q", ErrInvalidRecord, h)
		}
	}

	var recs []*Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, row[5])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad timestamp %q", ErrInvalidRecord, line, row[5])
		}
		version, err := strconv.Atoi(row[6])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad version %q", ErrInvalidRecord, line, row[6])
		}
		rec := &Record{
			NodeID:         row[0],
			OriginalText:   row[1],
			TranslatedText: row[2],
			Status:         Status(row[3]),
			PageURL:        row[4],
			LastModified:   ts,
			Version:        version,
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Glossary 预定义译文：原文 -> 译文
type Glossary struct {
	SourceLang   string            `toml:"source_lang"`
	TargetLang   string            `toml:"target_lang"`
	Translations map[string]string `toml:"translations"`
}

// LoadGlossary 读取 TOML 词汇表
func LoadGlossary(path string) (*Glossary, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file: %w", err)
	}
	g := &Glossary{}
	if err := toml.Unmarshal(content, g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal glossary: %w", err)
	}
	if g.TargetLang == "" {
		return nil, fmt.Errorf("glossary file is missing target_lang")
	}
	if _, err := NormalizeLanguage(g.TargetLang); err != nil {
		return nil, err
	}
	return g, nil
}
