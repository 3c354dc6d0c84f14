package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-overlay-translator/internal/suggest"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/store"
)

// success 状态信息写到 stderr，stdout 留给页面和表格
func success(cmd *cobra.Command) *pterm.PrefixPrinter {
	return pterm.Success.WithWriter(cmd.ErrOrStderr())
}

func warning(cmd *cobra.Command) *pterm.PrefixPrinter {
	return pterm.Warning.WithWriter(cmd.ErrOrStderr())
}

func newScanCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan <page>",
		Short: "列出页面中的可翻译节点",
		Long: `提取页面中的可翻译文本节点并输出其稳定标识。
指定 --lang 时附带该语言下的译文状态。

示例:
  overlay scan index.html
  overlay scan https://example.com --render --lang fr
  overlay scan index.html --json > nodes.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			e, err := rt.openPage(cmd.Context(), args[0], overlay.Hooks{}, false)
			if err != nil {
				return err
			}
			defer e.Destroy()

			ds := e.Descriptors()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ds)
			}

			var recs map[string]*store.Record
			if langFlag != "" || rt.cfg.DefaultLang != "" {
				lang, err := rt.lang()
				if err != nil {
					return err
				}
				list, err := rt.store.List(lang)
				if err != nil {
					return err
				}
				recs = recordIndex(list)
			}

			printTitle(out, "%s", e.Document().URL())
			renderDescriptors(out, ds, recs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出节点")
	return cmd
}

func newApplyCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "apply <page>",
		Short: "把已保存的译文叠加到页面并输出 HTML",
		Long: `把目标语言下的全部已保存译文预览到页面上，输出修改后的 HTML。

示例:
  overlay apply index.html --lang fr -o index.fr.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			lang, err := rt.lang()
			if err != nil {
				return err
			}
			e, err := rt.openPage(cmd.Context(), args[0], overlay.Hooks{}, false)
			if err != nil {
				return err
			}
			defer e.Destroy()

			n, err := e.ApplyLanguage(lang)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd.OutOrStdout(), output, e.Document().Render); err != nil {
				return err
			}
			success(cmd).Printfln("applied %d of %d translations (%s)", n, len(e.Descriptors()), lang)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件 (默认 stdout)")
	return cmd
}

func newSetCommand() *cobra.Command {
	var (
		status string
		output string
	)

	cmd := &cobra.Command{
		Use:   "set <page> <node-id> <text>",
		Short: "保存一个节点的译文",
		Long: `保存节点译文：先写入存储，成功后在页面上预览。

示例:
  overlay set index.html id-hero "Bienvenue" --lang fr --status approved`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.ParseStatus(status)
			if err != nil {
				return err
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
			e, err := rt.openPage(cmd.Context(), args[0], overlay.Hooks{}, false)
			if err != nil {
				return err
			}
			defer e.Destroy()

			rec, err := e.Save(lang, args[1], args[2], st)
			if err != nil {
				return err
			}
			if output != "" {
				if err := writeOutput(cmd.OutOrStdout(), output, e.Document().Render); err != nil {
					return err
				}
			}
			success(cmd).Printfln("saved %s (%s, version %d)", rec.NodeID, rec.Status, rec.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(store.StatusPending), "译文状态: pending | approved | needs_review")
	cmd.Flags().StringVarP(&output, "output", "o", "", "同时输出预览后的页面")
	return cmd
}

func newSuggestCommand() *cobra.Command {
	var (
		save        bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "suggest <page>",
		Short: "为尚未翻译的节点生成译文草稿",
		Long: `通过 OpenAI 兼容接口为目标语言下尚无译文的节点生成草稿。
指定 --save 时草稿以 needs_review 状态保存。

示例:
  OPENAI_API_KEY=... overlay suggest index.html --lang de --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			lang, err := rt.lang()
			if err != nil {
				return err
			}

			s, err := suggest.New(suggest.Options{
				BaseURL:     rt.cfg.OpenAI.BaseURL,
				Key:         rt.cfg.OpenAI.Key,
				Model:       rt.cfg.OpenAI.Model,
				Timeout:     rt.cfg.OpenAI.Timeout,
				Concurrency: concurrency,
				Cache:       suggest.NewFileCache(filepath.Join(filepath.Dir(rt.cfg.Store.Path), "suggestions")),
				Logger:      rt.log.Named("suggest"),
			})
			if err != nil {
				return err
			}

			e, err := rt.openPage(cmd.Context(), args[0], overlay.Hooks{}, false)
			if err != nil {
				return err
			}
			defer e.Destroy()

			pending, err := e.Pending(lang)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				success(cmd).Printfln("every node already has a %s translation", lang)
				return nil
			}

			results, err := s.SuggestAll(cmd.Context(), pending, lang)
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				rt.metrics.ObserveSuggestion(r.Err)
				if r.Err != nil {
					failed++
					rt.log.Warn("suggestion failed", zap.String("node", r.NodeID), zap.Error(r.Err))
				}
			}

			if save {
				if err := saveSuggestions(cmd, e, lang, results); err != nil {
					return err
				}
			}

			renderSuggestions(cmd.OutOrStdout(), pending, results)
			if failed > 0 {
				warning(cmd).Printfln("%d of %d suggestions failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "以 needs_review 状态保存草稿")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "并发请求数")
	return cmd
}

func saveSuggestions(cmd *cobra.Command, e *overlay.Engine, lang string, results []suggest.Suggestion) error {
	bar, err := pterm.DefaultProgressbar.
		WithTotal(len(results)).
		WithTitle("保存草稿").
		WithWriter(cmd.ErrOrStderr()).
		Start()
	if err != nil {
		return err
	}
	defer bar.Stop()

	for _, r := range results {
		bar.Increment()
		if r.Err != nil {
			continue
		}
		if _, err := e.Save(lang, r.NodeID, r.Text, store.StatusNeedsReview); err != nil {
			return fmt.Errorf("failed to save suggestion for %s: %w", r.NodeID, err)
		}
	}
	return nil
}

func renderSuggestions(w io.Writer, pending []overlay.Descriptor, results []suggest.Suggestion) {
	originals := make(map[string]string, len(pending))
	for _, d := range pending {
		originals[d.NodeID] = d.OriginalText
	}
	t := newTable(w, table.Row{"Node ID", "Original", "Suggestion"})
	for _, r := range results {
		suggestion := r.Text
		if r.Err != nil {
			suggestion = "error: " + r.Err.Error()
		}
		t.AppendRow(table.Row{
			truncate(r.NodeID, textColumnWidth),
			truncate(originals[r.NodeID], textColumnWidth),
			truncate(suggestion, textColumnWidth),
		})
	}
	t.Render()
}
