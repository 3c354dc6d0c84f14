package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/store"
)

func newListCommand() *cobra.Command {
	var (
		page   string
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出某个语言的译文记录和翻译进度",
		Long: `列出目标语言下保存的译文记录。
指定 --page 时以页面中的节点数作为总数计算进度。

示例:
  overlay list --lang fr
  overlay list --lang fr --status needs_review
  overlay list --lang fr --page index.html`,
		Args: cobra.NoArgs,
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
			recs, err := rt.store.List(lang)
			if err != nil {
				return err
			}

			total := len(recs)
			if page != "" {
				e, err := rt.openPage(cmd.Context(), page, overlay.Hooks{}, false)
				if err != nil {
					return err
				}
				total = len(e.Descriptors())
				e.Destroy()
			}

			shown := recs
			if status != "" {
				want, err := store.ParseStatus(status)
				if err != nil {
					return err
				}
				shown = shown[:0:0]
				for _, r := range recs {
					if r.Status == want {
						shown = append(shown, r)
					}
				}
			}

			out := cmd.OutOrStdout()
			printTitle(out, "Translations (%s)", lang)
			renderRecords(out, shown)
			renderStats(out, lang, store.ComputeStats(recs, total))
			return nil
		},
	}

	cmd.Flags().StringVar(&page, "page", "", "按页面节点数计算进度")
	cmd.Flags().StringVar(&status, "status", "", "只显示该状态的记录")
	return cmd
}

func newSearchCommand() *cobra.Command {
	var (
		exact bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "在原文和译文中搜索",
		Long: `在目标语言的记录中按原文、译文和节点标识搜索。
默认使用模糊匹配并按相似度排序，--exact 只做子串匹配。

示例:
  overlay search "shipping" --lang fr
  overlay search "livr" --lang fr --exact`,
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
			recs, err := rt.store.List(lang)
			if err != nil {
				return err
			}

			var found []*store.Record
			if exact {
				found = store.Filter(recs, args[0])
			} else {
				found = fuzzyFind(args[0], recs)
			}
			if limit > 0 && len(found) > limit {
				found = found[:limit]
			}

			out := cmd.OutOrStdout()
			printTitle(out, "%d matches for %q (%s)", len(found), args[0], lang)
			renderRecords(out, found)
			return nil
		},
	}

	cmd.Flags().BoolVar(&exact, "exact", false, "只做大小写无关的子串匹配")
	cmd.Flags().IntVar(&limit, "limit", 20, "最多显示的条数，0 表示不限")
	return cmd
}

// fuzzyFind 按原文和译文中较好的一项排序
func fuzzyFind(query string, recs []*store.Record) []*store.Record {
	targets := make([]string, 0, len(recs)*2)
	for _, r := range recs {
		targets = append(targets, r.OriginalText, r.TranslatedText)
	}

	best := make(map[int]int)
	for _, rank := range fuzzy.RankFindNormalizedFold(query, targets) {
		i := rank.OriginalIndex / 2
		if d, ok := best[i]; !ok || rank.Distance < d {
			best[i] = rank.Distance
		}
	}

	idx := make([]int, 0, len(best))
	for i := range best {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool {
		if best[idx[a]] != best[idx[b]] {
			return best[idx[a]] < best[idx[b]]
		}
		return recs[idx[a]].NodeID < recs[idx[b]].NodeID
	})

	out := make([]*store.Record, len(idx))
	for k, i := range idx {
		out[k] = recs[i]
	}
	return out
}

func newExportCommand() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出某个语言的译文记录",
		Long: `把目标语言的全部记录导出为 JSON 或 CSV。

示例:
  overlay export --lang fr -o fr.json
  overlay export --lang fr --format csv -o fr.csv`,
		Args: cobra.NoArgs,
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
			recs, err := rt.store.List(lang)
			if err != nil {
				return err
			}

			format = exchangeFormat(format, output)
			var write func(io.Writer) error
			switch format {
			case "json":
				write = func(w io.Writer) error { return store.ExportJSON(w, recs) }
			case "csv":
				write = func(w io.Writer) error { return store.ExportCSV(w, recs) }
			default:
				return fmt.Errorf("unsupported export format %q", format)
			}
			if err := writeOutput(cmd.OutOrStdout(), output, write); err != nil {
				return err
			}
			if output != "" && output != "-" {
				success(cmd).Printfln("exported %d %s records to %s", len(recs), lang, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "json | csv (默认按输出文件扩展名，否则 json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件 (默认 stdout)")
	return cmd
}

func newImportCommand() *cobra.Command {
	var (
		format   string
		strategy string
		page     string
		status   string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "导入译文记录或词汇表",
		Long: `导入 JSON / CSV 记录，按 --strategy 与已有记录合并:
  merge      译文不同时更新并标记为 needs_review (默认)
  overwrite  覆盖已有记录
  skip       保留已有记录

TOML 词汇表按原文匹配页面节点，需要 --page。

示例:
  overlay import fr.csv --lang fr --strategy overwrite
  overlay import glossary.toml --page index.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			format = exchangeFormat(format, args[0])
			if format == "toml" {
				return importGlossary(cmd, rt, args[0], page, status)
			}

			lang, err := rt.lang()
			if err != nil {
				return err
			}
			ms, err := store.ParseMergeStrategy(strategy)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var recs []*store.Record
			switch format {
			case "json":
				recs, err = store.ImportJSON(f)
			case "csv":
				recs, err = store.ImportCSV(f)
			default:
				return fmt.Errorf("unsupported import format %q", format)
			}
			if err != nil {
				return err
			}

			res, err := store.Merge(rt.store, lang, recs, ms)
			if err != nil {
				return err
			}
			success(cmd).Printfln("imported %s: %d added, %d updated, %d unchanged",
				lang, res.Added, res.Updated, res.Unchanged)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "json | csv | toml (默认按文件扩展名)")
	cmd.Flags().StringVar(&strategy, "strategy", string(store.MergeUpdate), "merge | overwrite | skip")
	cmd.Flags().StringVar(&page, "page", "", "词汇表对应的页面")
	cmd.Flags().StringVar(&status, "status", string(store.StatusNeedsReview), "词汇表译文的状态")
	return cmd
}

func importGlossary(cmd *cobra.Command, rt *runtime, path, page, status string) error {
	if page == "" {
		return fmt.Errorf("--page is required to import a glossary")
	}
	st, err := store.ParseStatus(status)
	if err != nil {
		return err
	}
	g, err := store.LoadGlossary(path)
	if err != nil {
		return err
	}
	lang, err := store.NormalizeLanguage(g.TargetLang)
	if err != nil {
		return err
	}

	e, err := rt.openPage(cmd.Context(), page, overlay.Hooks{}, false)
	if err != nil {
		return err
	}
	defer e.Destroy()

	n, err := e.ImportGlossary(lang, g.Translations, st)
	if err != nil {
		return err
	}
	success(cmd).Printfln("glossary matched %d of %d entries on %s (%s)", n, len(g.Translations), page, lang)
	return nil
}

// exchangeFormat 未指定格式时按扩展名推断
func exchangeFormat(format, path string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}
