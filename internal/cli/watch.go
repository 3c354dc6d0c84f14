package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nerdneilsfield/go-overlay-translator/internal/source"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
)

func newWatchCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "watch <page-file>",
		Short: "监听页面文件，变化时重新叠加译文",
		Long: `监听本地页面文件。文件变化后重新载入页面、重新提取节点，
并把目标语言的译文重新叠加后写入输出文件。按 Ctrl+C 退出。

示例:
  overlay watch site/index.html --lang fr -o site/index.fr.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if source.IsRemote(args[0]) {
				return fmt.Errorf("watch needs a local file, got %s", args[0])
			}
			if output == "" {
				return fmt.Errorf("--output is required")
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			lang, err := rt.lang()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			refreshes := make(chan []overlay.Descriptor, 1)
			hooks := overlay.Hooks{
				OnRefresh: func(ds []overlay.Descriptor) {
					// 只保留最新一次
					select {
					case <-refreshes:
					default:
					}
					refreshes <- ds
				},
			}

			e, err := rt.openPage(ctx, args[0], hooks, true)
			if err != nil {
				return err
			}
			defer e.Destroy()

			w := &overlayWriter{rt: rt, engine: e, lang: lang, output: output}
			if err := w.write(); err != nil {
				return err
			}
			success(cmd).Printfln("watching %s, writing %s", args[0], output)

			var reloaded atomic.Bool
			fw := source.NewFileWatcher(args[0], e.Document(), rt.log.Named("file"))
			fw.OnReload = func(err error) {
				if err == nil {
					reloaded.Store(true)
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return fw.Run(gctx) })
			g.Go(func() error {
				signature := nodeSignature(e.Descriptors())
				for {
					select {
					case <-gctx.Done():
						return nil
					case ds := <-refreshes:
						next := nodeSignature(ds)
						// 预览本身也会触发刷新，节点集合不变时不再重写
						if next == signature && !reloaded.Swap(false) {
							continue
						}
						signature = next
						if err := w.write(); err != nil {
							rt.log.Error("failed to write overlay", zap.Error(err))
						}
					}
				}
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件")
	return cmd
}

// overlayWriter 应用译文并写出页面
type overlayWriter struct {
	rt     *runtime
	engine *overlay.Engine
	lang   string
	output string
}

func (w *overlayWriter) write() error {
	n, err := w.engine.ApplyLanguage(w.lang)
	if err != nil {
		return err
	}
	if err := writeOutput(nil, w.output, w.engine.Document().Render); err != nil {
		return err
	}
	if path := w.rt.cfg.Metrics.Textfile; path != "" {
		if err := w.rt.metrics.WriteTextfile(path); err != nil {
			w.rt.log.Warn("failed to write metrics", zap.Error(err))
		}
	}
	w.rt.log.Info("overlay written",
		zap.String("output", w.output),
		zap.Int("applied", n),
		zap.Int("nodes", len(w.engine.Descriptors())))
	return nil
}

// nodeSignature 节点标识集合的摘要
func nodeSignature(ds []overlay.Descriptor) string {
	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = d.NodeID
	}
	sort.Strings(ids)
	return strings.Join(ids, "\x00")
}

