package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS translations (
	lang            TEXT    NOT NULL,
	node_id         TEXT    NOT NULL,
	original_text   TEXT    NOT NULL DEFAULT '',
	translated_text TEXT    NOT NULL DEFAULT '',
	status          TEXT    NOT NULL,
	page_url        TEXT    NOT NULL DEFAULT '',
	last_modified   INTEGER NOT NULL,
	version         INTEGER NOT NULL,
	PRIMARY KEY (lang, node_id)
);`

// SQLiteStore 基于 SQLite 的存储
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite 打开或创建 SQLite 存储
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{`PRAGMA journal_mode=WAL`, `PRAGMA busy_timeout=5000`} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure sqlite: %w", err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const selectColumns = `node_id, original_text, translated_text, status, page_url, last_modified, version`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		r      Record
		status string
		nanos  int64
	)
	if err := row.Scan(&r.NodeID, &r.OriginalText, &r.TranslatedText, &status, &r.PageURL, &nanos, &r.Version); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	r.LastModified = time.Unix(0, nanos).UTC()
	return &r, nil
}

// Find 实现 Store
func (s *SQLiteStore) Find(lang, nodeID string) (*Record, error) {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM translations WHERE lang = ? AND node_id = ?`, lang, nodeID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query translation: %w", err)
	}
	return rec, nil
}

// List 实现 Store
func (s *SQLiteStore) List(lang string) ([]*Record, error) {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT `+selectColumns+` FROM translations WHERE lang = ? ORDER BY node_id`, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations: %w", err)
	}
	defer rows.Close()

	out := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Languages 实现 Store
func (s *SQLiteStore) Languages() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT lang FROM translations ORDER BY lang`)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, err
		}
		out = append(out, lang)
	}
	return out, rows.Err()
}

// Save 实现 Store，读取与写入在同一个事务中完成
func (s *SQLiteStore) Save(lang string, in Intent) (*Record, error) {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanRecord(tx.QueryRow(`SELECT `+selectColumns+` FROM translations WHERE lang = ? AND node_id = ?`, lang, in.NodeID))
	if errors.Is(err, sql.ErrNoRows) {
		existing = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query translation: %w", err)
	}

	rec, err := in.apply(existing, s.now())
	if err != nil {
		return nil, err
	}
	if err := upsert(tx, lang, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit translation: %w", err)
	}
	return rec, nil
}

// Put 实现 Store
func (s *SQLiteStore) Put(lang string, rec *Record) error {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return upsert(s.db, lang, rec)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsert(db execer, lang string, rec *Record) error {
	_, err := db.Exec(`INSERT INTO translations (lang, `+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (lang, node_id) DO UPDATE SET
			original_text = excluded.original_text,
			translated_text = excluded.translated_text,
			status = excluded.status,
			page_url = excluded.page_url,
			last_modified = excluded.last_modified,
			version = excluded.version`,
		lang, rec.NodeID, rec.OriginalText, rec.TranslatedText, string(rec.Status), rec.PageURL,
		rec.LastModified.UnixNano(), rec.Version)
	if err != nil {
		return fmt.Errorf("failed to write translation: %w", err)
	}
	return nil
}

// Delete 实现 Store
func (s *SQLiteStore) Delete(lang, nodeID string) error {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM translations WHERE lang = ? AND node_id = ?`, lang, nodeID)
	if err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, lang, nodeID)
	}
	return nil
}

// Close 实现 Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
