package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Store.KeepBackups)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "no-translate", cfg.Extract.OptOutClass)
	assert.Equal(t, "data-original-text", cfg.Extract.MarkerAttr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 60*time.Second, cfg.OpenAI.Timeout)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
default_lang: fr
store:
  backend: sqlite
  path: /tmp/overlay.db
extract:
  opt_out_class: skip-me
  extra_deny_tags: [nav, footer]
  viewport_width: 800
watch:
  debounce: 1s
hover:
  show_delay: 250ms
log:
  debug: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "fr", cfg.DefaultLang)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, 250*time.Millisecond, cfg.Hover.ShowDelay)

	opts := cfg.ExtractorOptions()
	assert.Equal(t, "skip-me", opts.OptOutClass)
	assert.Contains(t, opts.DenyTags, "footer")
	assert.Contains(t, opts.DenyTags, "script")

	eng := cfg.EngineOptions()
	assert.Equal(t, time.Second, eng.QuietPeriod)
	assert.True(t, cfg.LoggerOptions().Debug)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("OVERLAY_STORE_BACKEND", "sqlite")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "sk-test", cfg.OpenAI.Key)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "store:\n  backend: redis\n"},
		{"bad language", "default_lang: \"not a language!\"\n"},
		{"zero debounce", "watch:\n  debounce: 0s\n"},
		{"negative hover", "hover:\n  hide_delay: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
