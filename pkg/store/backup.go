package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Backup 备份文件内容
type Backup struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Languages Snapshot  `json:"languages"`
}

// BackupInfo 备份文件概要
type BackupInfo struct {
	Path      string
	ID        string
	CreatedAt time.Time
	Records   int
}

// WriteBackup 把存储中的全部记录写入 dir 下的新备份文件，返回文件路径
func WriteBackup(s Store, dir string) (string, error) {
	snap, err := TakeSnapshot(s)
	if err != nil {
		return "", err
	}
	b := Backup{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Languages: snap,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	name := fmt.Sprintf("backup-%s-%s.json", b.CreatedAt.Format("20060102T150405Z"), b.ID[:8])
	path := filepath.Join(dir, name)

	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return path, nil
}

// ReadBackup 读取并校验备份文件
func ReadBackup(path string) (*Backup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	var b Backup
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("corrupt backup %s: %w", path, err)
	}
	if b.Languages == nil {
		return nil, fmt.Errorf("corrupt backup %s: no languages", path)
	}
	if err := b.Languages.Validate(); err != nil {
		return nil, fmt.Errorf("corrupt backup %s: %w", path, err)
	}
	return &b, nil
}

// RestoreBackup 校验通过后把备份写回存储，返回写入的记录数
func RestoreBackup(s Store, path string) (int, error) {
	b, err := ReadBackup(path)
	if err != nil {
		return 0, err
	}
	return b.Languages.Restore(s)
}

// ListBackups 列出 dir 下的备份，最新的在前；损坏的文件被跳过
func ListBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []BackupInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "backup-") || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		b, err := ReadBackup(path)
		if err != nil {
			continue
		}
		count := 0
		for _, recs := range b.Languages {
			count += len(recs)
		}
		out = append(out, BackupInfo{Path: path, ID: b.ID, CreatedAt: b.CreatedAt, Records: count})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// PruneBackups 只保留最新的 keep 个备份，返回删除的文件
func PruneBackups(dir string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, nil
	}
	infos, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}
	if len(infos) <= keep {
		return nil, nil
	}

	var removed []string
	for _, info := range infos[keep:] {
		if err := os.Remove(info.Path); err != nil {
			return removed, fmt.Errorf("failed to remove backup %s: %w", info.Path, err)
		}
		removed = append(removed, info.Path)
	}
	return removed, nil
}
