package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-overlay-translator/internal/config"
	"github.com/nerdneilsfield/go-overlay-translator/internal/logger"
	"github.com/nerdneilsfield/go-overlay-translator/internal/metrics"
	"github.com/nerdneilsfield/go-overlay-translator/internal/source"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/store"
)

var (
	// 全局标志
	cfgFile    string
	debugMode  bool
	langFlag   string
	pageURL    string
	renderPage bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "overlay",
		Short: "网页译文叠加层：提取可翻译文本、预览并管理译文",
		Long: `overlay 从渲染后的 HTML 页面中提取可翻译的文本节点，为每个节点生成稳定的标识，
在页面上预览译文，并按语言保存译文记录。

页面可以是本地文件、HTTP 地址，或者通过无头 Chrome 渲染（--render）。`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认 $HOME/.overlay.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "启用调试日志")
	rootCmd.PersistentFlags().StringVarP(&langFlag, "lang", "l", "", "目标语言 (默认取配置中的 default_lang)")
	rootCmd.PersistentFlags().StringVar(&pageURL, "page-url", "", "覆盖记录中的页面地址")
	rootCmd.PersistentFlags().BoolVar(&renderPage, "render", false, "使用无头 Chrome 渲染远程页面")

	rootCmd.AddCommand(
		newScanCommand(),
		newApplyCommand(),
		newSetCommand(),
		newReviewCommand(),
		newWatchCommand(),
		newSuggestCommand(),
		newListCommand(),
		newSearchCommand(),
		newExportCommand(),
		newImportCommand(),
		newBackupCommand(),
		newRestoreCommand(),
		newBackupsCommand(),
		newVersionCommand(version, commit, buildDate),
	)
	return rootCmd
}

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "overlay %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}

// runtime 一次命令执行所需的依赖
type runtime struct {
	cfg     *config.Config
	log     *zap.Logger
	store   store.Store
	metrics *metrics.Metrics
}

func newRuntime() (*runtime, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Log.Debug = true
	}

	log, err := logger.New(cfg.LoggerOptions())
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	log.Debug("store opened",
		zap.String("backend", cfg.Store.Backend),
		zap.String("path", cfg.Store.Path))

	return &runtime{cfg: cfg, log: log, store: st, metrics: metrics.New()}, nil
}

// Close 输出指标并关闭存储
func (r *runtime) Close() {
	if r.cfg.Metrics.Textfile != "" {
		r.recordStoreMetrics()
		if err := r.metrics.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
			r.log.Warn("failed to write metrics", zap.Error(err))
		}
	}
	if err := r.store.Close(); err != nil {
		r.log.Warn("failed to close store", zap.Error(err))
	}
	_ = r.log.Sync()
}

func (r *runtime) recordStoreMetrics() {
	snap, err := store.TakeSnapshot(r.store)
	if err != nil {
		r.log.Debug("failed to snapshot store for metrics", zap.Error(err))
		return
	}
	r.metrics.StoreRecords.Reset()
	for lang, recs := range snap {
		st := store.ComputeStats(recs, len(recs))
		r.metrics.StoreRecords.WithLabelValues(lang, string(store.StatusPending)).Set(float64(st.Pending))
		r.metrics.StoreRecords.WithLabelValues(lang, string(store.StatusApproved)).Set(float64(st.Approved))
		r.metrics.StoreRecords.WithLabelValues(lang, string(store.StatusNeedsReview)).Set(float64(st.NeedsReview))
	}
}

// lang 返回规范化后的目标语言
func (r *runtime) lang() (string, error) {
	lang := langFlag
	if lang == "" {
		lang = r.cfg.DefaultLang
	}
	if lang == "" {
		return "", fmt.Errorf("target language required: pass --lang or set default_lang")
	}
	return store.NormalizeLanguage(lang)
}

// openPage 加载页面并创建已初始化的引擎
func (r *runtime) openPage(ctx context.Context, src string, hooks overlay.Hooks, watch bool) (*overlay.Engine, error) {
	opts := r.cfg.EngineOptions()
	opts.Watch = watch
	opts.Logger = r.log
	opts.Hooks = r.metrics.Hooks(hooks)

	url := pageURL
	if url == "" {
		url = r.cfg.PageURL
	}

	if (renderPage || r.cfg.Render.Enabled) && source.IsRemote(src) {
		renderer := source.NewRenderer(r.cfg.Render.Remote, r.cfg.Render.Timeout, r.log.Named("render"))
		doc, layout, err := renderer.Render(ctx, src)
		if err != nil {
			return nil, err
		}
		opts.Extractor.Layout = layout
		return r.startEngine(overlay.New(doc, r.store, opts))
	}

	doc, err := source.NewLoader(r.cfg.Render.Timeout, r.log.Named("source")).Load(ctx, src, url)
	if err != nil {
		return nil, err
	}
	return r.startEngine(overlay.New(doc, r.store, opts))
}

func (r *runtime) startEngine(e *overlay.Engine) (*overlay.Engine, error) {
	if err := e.Init(); err != nil {
		return nil, err
	}
	return e, nil
}
