package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nerdneilsfield/go-overlay-translator/internal/logger"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/store"
)

// StoreConfig 译文存储配置
type StoreConfig struct {
	Backend     string `mapstructure:"backend"` // json | sqlite
	Path        string `mapstructure:"path"`
	BackupDir   string `mapstructure:"backup_dir"`
	KeepBackups int    `mapstructure:"keep_backups"` // 保留的备份数量，0 表示不清理
}

// ExtractConfig 文本提取配置
type ExtractConfig struct {
	OptOutClass    string   `mapstructure:"opt_out_class"`
	OptOutAttr     string   `mapstructure:"opt_out_attr"`
	WidgetID       string   `mapstructure:"widget_id"`
	WidgetClass    string   `mapstructure:"widget_class"`
	MarkerAttr     string   `mapstructure:"marker_attr"`
	ExtraDenyTags  []string `mapstructure:"extra_deny_tags"`
	DetectLanguage bool     `mapstructure:"detect_language"`
	ViewportWidth  float64  `mapstructure:"viewport_width"`
}

// WatchConfig 变更监听配置
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// HoverConfig 悬停延迟配置
type HoverConfig struct {
	ShowDelay time.Duration `mapstructure:"show_delay"`
	HideDelay time.Duration `mapstructure:"hide_delay"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Debug      bool   `mapstructure:"debug"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// OpenAIConfig 译文建议所用的模型配置
type OpenAIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Key     string        `mapstructure:"key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetricsConfig 指标输出配置
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // node_exporter textfile 路径，为空时不输出
}

// RenderConfig 无头浏览器渲染配置
type RenderConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Remote  string        `mapstructure:"remote"` // 已运行的浏览器的 DevTools 地址
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config 全局配置
type Config struct {
	DefaultLang string        `mapstructure:"default_lang"`
	PageURL     string        `mapstructure:"page_url"`
	Store       StoreConfig   `mapstructure:"store"`
	Extract     ExtractConfig `mapstructure:"extract"`
	Watch       WatchConfig   `mapstructure:"watch"`
	Hover       HoverConfig   `mapstructure:"hover"`
	Log         LogConfig     `mapstructure:"log"`
	OpenAI      OpenAIConfig  `mapstructure:"openai"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
	Render      RenderConfig  `mapstructure:"render"`
}

// LoadConfig 加载配置
//
// configPath 为空时在家目录和当前目录查找 .overlay.yaml；找不到文件时使用默认值。
// 环境变量 OVERLAY_<SECTION>_<KEY> 覆盖文件中的值。
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".overlay")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("OVERLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("openai.key", "OVERLAY_OPENAI_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	dataDir := ".overlay"
	if home != "" {
		dataDir = home + string(os.PathSeparator) + ".overlay"
	}

	v.SetDefault("default_lang", "")
	v.SetDefault("page_url", "")

	v.SetDefault("store.backend", "json")
	v.SetDefault("store.path", dataDir+string(os.PathSeparator)+"translations.json")
	v.SetDefault("store.backup_dir", dataDir+string(os.PathSeparator)+"backups")
	v.SetDefault("store.keep_backups", 5)

	defaults := overlay.DefaultExtractorOptions()
	v.SetDefault("extract.opt_out_class", defaults.OptOutClass)
	v.SetDefault("extract.opt_out_attr", defaults.OptOutAttr)
	v.SetDefault("extract.widget_id", defaults.WidgetID)
	v.SetDefault("extract.widget_class", defaults.WidgetClass)
	v.SetDefault("extract.marker_attr", defaults.MarkerAttr)
	v.SetDefault("extract.extra_deny_tags", []string{})
	v.SetDefault("extract.detect_language", false)
	v.SetDefault("extract.viewport_width", dom.DefaultLayout().ViewportWidth)

	v.SetDefault("watch.debounce", overlay.DefaultQuietPeriod)
	v.SetDefault("hover.show_delay", 300*time.Millisecond)
	v.SetDefault("hover.hide_delay", 100*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.debug", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 5)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 60*time.Second)

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("render.enabled", false)
	v.SetDefault("render.remote", "")
	v.SetDefault("render.timeout", 30*time.Second)
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("store.backend must be json or sqlite, got %q", c.Store.Backend)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path must be specified")
	}
	if c.DefaultLang != "" {
		if _, err := store.NormalizeLanguage(c.DefaultLang); err != nil {
			return fmt.Errorf("default_lang: %w", err)
		}
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive")
	}
	if c.Hover.ShowDelay < 0 || c.Hover.HideDelay < 0 {
		return fmt.Errorf("hover delays must not be negative")
	}
	if c.Extract.MarkerAttr == "" {
		return fmt.Errorf("extract.marker_attr must be specified")
	}
	if c.Store.KeepBackups < 0 {
		return fmt.Errorf("store.keep_backups must not be negative")
	}
	return nil
}

// ExtractorOptions 转换为提取器选项
func (c *Config) ExtractorOptions() overlay.ExtractorOptions {
	opts := overlay.DefaultExtractorOptions()
	opts.OptOutClass = c.Extract.OptOutClass
	opts.OptOutAttr = c.Extract.OptOutAttr
	opts.WidgetID = c.Extract.WidgetID
	opts.WidgetClass = c.Extract.WidgetClass
	opts.MarkerAttr = c.Extract.MarkerAttr
	opts.DenyTags = append(opts.DenyTags, c.Extract.ExtraDenyTags...)
	opts.DetectLanguage = c.Extract.DetectLanguage
	if c.Extract.ViewportWidth > 0 {
		layout := dom.DefaultLayout()
		layout.ViewportWidth = c.Extract.ViewportWidth
		opts.Layout = layout
	}
	return opts
}

// EngineOptions 转换为引擎选项
func (c *Config) EngineOptions() overlay.Options {
	opts := overlay.DefaultOptions()
	opts.Extractor = c.ExtractorOptions()
	opts.QuietPeriod = c.Watch.Debounce
	return opts
}

// LoggerOptions 转换为日志选项
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Log.Level,
		Debug:      c.Log.Debug,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}
