package source

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
)

// measureScript 在浏览器中按结构路径测量元素的布局盒
const measureScript = `(paths) => paths.map((p) => {
	let el = null;
	try {
		el = document.evaluate(p, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	} catch (e) {
		return null;
	}
	if (!el || !el.getBoundingClientRect) return null;
	const b = el.getBoundingClientRect();
	return {path: p, x: b.x, y: b.y, width: b.width, height: b.height};
}).filter(Boolean)`

// measuredRect 浏览器返回的单个测量结果
type measuredRect struct {
	Path   string  `json:"path"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Renderer 用无头 Chrome 渲染页面，取得渲染后的节点树和真实布局盒
type Renderer struct {
	Remote  string // 为空时启动本地浏览器
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewRenderer 创建渲染器
func NewRenderer(remote string, timeout time.Duration, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Renderer{Remote: remote, Timeout: timeout, Logger: logger}
}

// Render 渲染页面，返回文档和以结构路径索引的布局
func (r *Renderer) Render(ctx context.Context, pageURL string) (*dom.Document, dom.Layout, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	browser, cleanup, err := r.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	page, err := browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tab: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)
	if err := page.Navigate(pageURL); err != nil {
		return nil, nil, fmt.Errorf("failed to navigate %s: %w", pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		r.Logger.Warn("wait load failed", zap.String("url", pageURL), zap.Error(err))
	}

	res, err := page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rendered DOM: %w", err)
	}
	doc, err := dom.ParseString("<!DOCTYPE html>"+res.Value.Str(), pageURL)
	if err != nil {
		return nil, nil, err
	}

	var paths []string
	doc.View(func(root *html.Node) { paths = elementPaths(root) })

	measured, err := page.Eval(measureScript, paths)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to measure elements: %w", err)
	}
	var rects []measuredRect
	if err := measured.Value.Unmarshal(&rects); err != nil {
		return nil, nil, fmt.Errorf("failed to decode measurements: %w", err)
	}

	r.Logger.Debug("page rendered",
		zap.String("url", pageURL),
		zap.Int("elements", len(paths)),
		zap.Int("measured", len(rects)))
	return doc, newRectLayout(rects), nil
}

func (r *Renderer) connect(ctx context.Context) (*rod.Browser, func(), error) {
	controlURL := r.Remote
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().Headless(true).Context(ctx)
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, fmt.Errorf("failed to connect browser: %w", err)
	}

	cleanup := func() {
		if l != nil {
			_ = b.Close()
			l.Kill()
		}
	}
	return b, cleanup, nil
}

// elementPaths 文档中全部元素的结构路径
func elementPaths(root *html.Node) []string {
	seen := make(map[string]struct{})
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if dom.IsElement(n) {
			if p := overlay.DerivePath(n); p != "" {
				if _, dup := seen[p]; !dup {
					seen[p] = struct{}{}
					out = append(out, p)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func newRectLayout(rects []measuredRect) dom.RectLayout {
	m := make(map[string]dom.Rect, len(rects))
	for _, r := range rects {
		m[r.Path] = dom.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
	}
	return dom.RectLayout{
		Rects:    m,
		PathOf:   overlay.DerivePath,
		Fallback: dom.DefaultLayout(),
	}
}
