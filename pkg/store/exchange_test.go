package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []*Record {
	ts := time.Date(2024, 3, 9, 8, 30, 0, 0, time.UTC)
	return []*Record{
		{
			NodeID: "id-hero", OriginalText: `Say "hi", friend`, TranslatedText: "Dis « salut »",
			Status: StatusApproved, PageURL: "https://example.com/", LastModified: ts, Version: 3,
		},
		{
			NodeID: "p-0-Line-one", OriginalText: "Line one\nline two", TranslatedText: "",
			Status: StatusPending, PageURL: "https://example.com/a,b", LastModified: ts, Version: 1,
		},
	}
}

func TestCSVExportFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleRecords()))

	lines := strings.SplitN(buf.String(), "\n", 2)
	assert.Equal(t, "Node ID,Original Text,Translated Text,Status,Page URL,Last Modified,Version", lines[0])
	assert.Contains(t, buf.String(), `"Say ""hi"", friend"`, "embedded quotes are doubled")
	assert.Contains(t, buf.String(), `"https://example.com/a,b"`)
}

func TestCSVImport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleRecords()))

	recs, err := ImportCSV(&buf)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, `Say "hi", friend`, recs[0].OriginalText)
	assert.Equal(t, "Line one\nline two", recs[1].OriginalText)
	assert.Equal(t, 3, recs[0].Version)

	t.Run("bad header", func(t *testing.T) {
		_, err := ImportCSV(strings.NewReader("a,b,c,d,e,f,g\n"))
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("bad status", func(t *testing.T) {
		in := strings.Join(CSVHeader, ",") + "\nid-a,x,y,done,,2024-01-01T00:00:00Z,1\n"
		_, err := ImportCSV(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
}

func TestJSONImport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, sampleRecords()))
	assert.Contains(t, buf.String(), `"nodeId": "id-hero"`)

	recs, err := ImportJSON(&buf)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	t.Run("missing fields rejected", func(t *testing.T) {
		_, err := ImportJSON(strings.NewReader(`[{"nodeId":"id-a","translatedText":"x"}]`))
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("not an array", func(t *testing.T) {
		_, err := ImportJSON(strings.NewReader(`{"nodeId":"id-a"}`))
		assert.Error(t, err)
	})

	t.Run("empty export is an array", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, ExportJSON(&out, nil))
		assert.Equal(t, "[]\n", out.String())
	})
}

func TestLoadGlossary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glossary.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
source_lang = "en"
target_lang = "fr"

[translations]
"Add to cart" = "Ajouter au panier"
"Checkout" = "Paiement"
`), 0o644))

	g, err := LoadGlossary(path)
	require.NoError(t, err)
	assert.Equal(t, "fr", g.TargetLang)
	assert.Equal(t, "Ajouter au panier", g.Translations["Add to cart"])

	t.Run("missing target", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.toml")
		require.NoError(t, os.WriteFile(bad, []byte(`source_lang = "en"`), 0o644))
		_, err := LoadGlossary(bad)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadGlossary(filepath.Join(dir, "nope.toml"))
		assert.Error(t, err)
	})
}

func TestBackupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src, err := OpenJSON(filepath.Join(dir, "src.json"))
	require.NoError(t, err)
	for _, r := range sampleRecords() {
		require.NoError(t, src.Put("fr", r))
	}
	_, err = src.Save("de", Intent{NodeID: "id-hero", TranslatedText: "Hallo"})
	require.NoError(t, err)

	backupDir := filepath.Join(dir, "backups")
	path, err := WriteBackup(src, backupDir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "backup-"))

	infos, err := ListBackups(backupDir)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 3, infos[0].Records)

	dst, err := OpenSQLite(filepath.Join(dir, "dst.db"))
	require.NoError(t, err)
	defer dst.Close()

	n, err := RestoreBackup(dst, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rec, err := dst.Find("fr", "id-hero")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 3, rec.Version)
}

func TestRestoreCorruptBackupFailsClosed(t *testing.T) {
	dir := t.TempDir()
	dst, err := OpenJSON(filepath.Join(dir, "dst.json"))
	require.NoError(t, err)

	corrupt := filepath.Join(dir, "backup-corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"id":"x","languages":{"fr":[
		{"nodeId":"id-a","status":"approved","version":1,"lastModified":"2024-01-01T00:00:00Z"},
		{"nodeId":"","status":"approved","version":1,"lastModified":"2024-01-01T00:00:00Z"}
	]}}`), 0o644))

	_, err = RestoreBackup(dst, corrupt)
	require.Error(t, err)

	recs, err := dst.List("fr")
	require.NoError(t, err)
	assert.Empty(t, recs, "nothing is written when any record is invalid")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup-garbage.json"), []byte("{"), 0o644))
	infos, err := ListBackups(dir)
	require.NoError(t, err)
	assert.Empty(t, infos)
}
