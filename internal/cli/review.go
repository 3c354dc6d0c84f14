package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/store"
)

func newReviewCommand() *cobra.Command {
	var (
		status string
		output string
	)

	cmd := &cobra.Command{
		Use:   "review <page>",
		Short: "逐个查看页面节点并保存译文",
		Long: `交互式审阅页面节点，每行一条指令:
  show <node-id|序号>  选中节点，hover.show_delay 之后显示节点卡片
  hide                 离开节点，hover.hide_delay 之后隐藏卡片
  save <译文>          保存当前节点的译文并预览
  revert               还原当前节点的预览
  list                 列出全部节点
  quit                 退出

示例:
  overlay review index.html --lang fr -o index.fr.html`,
		Args: cobra.ExactArgs(1),
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

			r := &reviewer{
				engine: e,
				store:  rt.store,
				lang:   lang,
				status: st,
				out:    &lockedWriter{w: cmd.OutOrStdout()},
			}
			tracker := overlay.NewHoverTracker(rt.cfg.Hover.ShowDelay, rt.cfg.Hover.HideDelay, r.showCard, r.hideCard)
			err = r.run(cmd.InOrStdin(), tracker)
			tracker.Close()
			if err != nil {
				return err
			}

			if output != "" {
				return writeOutput(cmd.OutOrStdout(), output, e.Document().Render)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(store.StatusPending), "保存时使用的状态")
	cmd.Flags().StringVarP(&output, "output", "o", "", "退出时输出预览后的页面")
	return cmd
}

// reviewer 一次审阅会话
type reviewer struct {
	engine  *overlay.Engine
	store   store.Store
	lang    string
	status  store.Status
	out     io.Writer
	current *overlay.Descriptor
}

func (r *reviewer) run(in io.Reader, tracker *overlay.HoverTracker) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		verb, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch verb {
		case "show":
			d, err := r.resolve(arg)
			if err != nil {
				r.printf("error: %v\n", err)
				continue
			}
			r.current = &d
			tracker.Enter(d)
		case "hide":
			tracker.Leave()
		case "save":
			if r.current == nil {
				r.printf("error: no node selected\n")
				continue
			}
			rec, err := r.engine.Save(r.lang, r.current.NodeID, arg, r.status)
			if err != nil {
				r.printf("error: %v\n", err)
				continue
			}
			r.printf("saved %s (%s, version %d)\n", rec.NodeID, rec.Status, rec.Version)
		case "revert":
			if r.current == nil {
				r.printf("error: no node selected\n")
				continue
			}
			if err := r.engine.Revert(r.current.NodeID); err != nil {
				r.printf("error: %v\n", err)
			}
		case "list":
			var buf bytes.Buffer
			renderDescriptors(&buf, r.engine.Descriptors(), nil)
			_, _ = r.out.Write(buf.Bytes())
		case "quit", "exit":
			return nil
		default:
			r.printf("unknown command %q\n", verb)
		}
	}
	return scanner.Err()
}

// resolve 按序号（从 1 开始）或节点标识查找
func (r *reviewer) resolve(arg string) (overlay.Descriptor, error) {
	if i, err := strconv.Atoi(arg); err == nil {
		ds := r.engine.Descriptors()
		if i < 1 || i > len(ds) {
			return overlay.Descriptor{}, fmt.Errorf("no node #%d", i)
		}
		return ds[i-1], nil
	}
	return r.engine.Lookup(arg)
}

// showCard 在定时器协程上执行
func (r *reviewer) showCard(d overlay.Descriptor) {
	var buf bytes.Buffer
	printTitle(&buf, "%s <%s>", d.NodeID, d.TagName)
	fmt.Fprintf(&buf, "  original:    %s\n", truncate(d.OriginalText, 72))
	rec, err := r.store.Find(r.lang, d.NodeID)
	switch {
	case err != nil:
		fmt.Fprintf(&buf, "  translation: error: %v\n", err)
	case rec == nil || strings.TrimSpace(rec.TranslatedText) == "":
		fmt.Fprintf(&buf, "  translation: -\n")
	default:
		fmt.Fprintf(&buf, "  translation: %s (%s, version %d)\n", truncate(rec.TranslatedText, 72), rec.Status, rec.Version)
	}
	_, _ = r.out.Write(buf.Bytes())
}

func (r *reviewer) hideCard() {
	r.printf("(card hidden)\n")
}

func (r *reviewer) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// lockedWriter 定时器回调与主循环共用同一个输出
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
