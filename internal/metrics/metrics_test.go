package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
)

func dump(t *testing.T, m *Metrics) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "textfile", "overlay.prom")
	require.NoError(t, m.WriteTextfile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestHooks(t *testing.T) {
	m := New()

	var chained int
	hooks := m.Hooks(overlay.Hooks{OnPatch: func(bool) { chained++ }})

	hooks.OnExtract(12, 30*time.Millisecond)
	hooks.OnExtract(14, 10*time.Millisecond)
	hooks.OnPatch(true)
	hooks.OnPatch(true)
	hooks.OnPatch(false)
	hooks.OnRefresh(nil)

	out := dump(t, m)
	assert.Contains(t, out, "overlay_extractions_total 2")
	assert.Contains(t, out, "overlay_descriptors 14")
	assert.Contains(t, out, `overlay_patches_total{result="applied"} 2`)
	assert.Contains(t, out, `overlay_patches_total{result="skipped"} 1`)
	assert.Contains(t, out, "overlay_refreshes_total 1")
	assert.Contains(t, out, "overlay_extract_duration_seconds_count 2")
	assert.Equal(t, 3, chained)
}

func TestObserveSuggestion(t *testing.T) {
	m := New()
	m.ObserveSuggestion(nil)
	m.ObserveSuggestion(errors.New("boom"))
	m.ObserveSuggestion(nil)

	out := dump(t, m)
	assert.Contains(t, out, `overlay_suggestions_total{result="ok"} 2`)
	assert.Contains(t, out, `overlay_suggestions_total{result="error"} 1`)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.StoreRecords.WithLabelValues("fr", "approved").Set(3)

	out := dump(t, m)
	assert.Contains(t, out, `overlay_store_records{lang="fr",status="approved"} 3`)
	assert.Contains(t, out, "# HELP overlay_extractions_total")
}
