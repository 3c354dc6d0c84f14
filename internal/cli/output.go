package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/store"
)

// 表格中文本列的最大显示宽度
const textColumnWidth = 48

var titleColor = color.New(color.FgCyan, color.Bold)

// printTitle 输出带颜色的标题
func printTitle(w io.Writer, format string, args ...interface{}) {
	titleColor.Fprintf(w, format+"\n", args...)
}

// truncate 按显示宽度截断，中日韩字符占两列
func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "…")
}

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Color.Header = text.Colors{text.FgCyan}
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(header)
	return t
}

// renderDescriptors 输出节点表格；recs 非空时附带译文状态
func renderDescriptors(w io.Writer, ds []overlay.Descriptor, recs map[string]*store.Record) {
	t := newTable(w, table.Row{"#", "Node ID", "Tag", "Visible", "Text", "Status"})
	for i, d := range ds {
		status := "-"
		if r, ok := recs[d.NodeID]; ok && strings.TrimSpace(r.TranslatedText) != "" {
			status = string(r.Status)
		}
		t.AppendRow(table.Row{
			i + 1,
			truncate(d.NodeID, textColumnWidth),
			d.TagName,
			d.Visible,
			truncate(d.OriginalText, textColumnWidth),
			status,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d nodes", len(ds)), ""})
	t.Render()
}

// renderRecords 输出译文记录表格
func renderRecords(w io.Writer, recs []*store.Record) {
	t := newTable(w, table.Row{"Node ID", "Original", "Translated", "Status", "Version", "Modified"})
	for _, r := range recs {
		t.AppendRow(table.Row{
			truncate(r.NodeID, textColumnWidth),
			truncate(r.OriginalText, textColumnWidth),
			truncate(r.TranslatedText, textColumnWidth),
			r.Status,
			r.Version,
			r.LastModified.Local().Format("2006-01-02 15:04"),
		})
	}
	t.Render()
}

// renderStats 输出翻译进度
func renderStats(w io.Writer, lang string, st store.Stats) {
	t := newTable(w, table.Row{"Language", "Total", "Translated", "Untranslated", "Pending", "Approved", "Needs Review", "Progress"})
	t.AppendRow(table.Row{lang, st.Total, st.Translated, st.Untranslated, st.Pending, st.Approved, st.NeedsReview, fmt.Sprintf("%d%%", st.Progress)})
	t.Render()
}

// recordIndex 按节点标识索引记录
func recordIndex(recs []*store.Record) map[string]*store.Record {
	idx := make(map[string]*store.Record, len(recs))
	for _, r := range recs {
		idx[r.NodeID] = r
	}
	return idx
}

// writeOutput 写入文件；path 为空或 "-" 时写到 w
func writeOutput(w io.Writer, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(w)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
