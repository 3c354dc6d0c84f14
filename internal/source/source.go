package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
)

// ErrUnsupportedContent 响应不是 HTML
var ErrUnsupportedContent = errors.New("unsupported content type")

// maxPageSize 单个页面的最大字节数
const maxPageSize = 32 << 20

// Loader 从文件或 HTTP 地址加载页面
type Loader struct {
	Client *http.Client
	Logger *zap.Logger
}

// NewLoader 创建加载器
func NewLoader(timeout time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{Client: &http.Client{Timeout: timeout}, Logger: logger}
}

// IsRemote 判断来源是否为 HTTP 地址
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Load 加载页面，pageURL 为空时使用来源地址
func (l *Loader) Load(ctx context.Context, src, pageURL string) (*dom.Document, error) {
	if IsRemote(src) {
		return l.Fetch(ctx, src, pageURL)
	}
	return LoadFile(src, pageURL)
}

// LoadFile 解析本地 HTML 文件
func LoadFile(path, pageURL string) (*dom.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()

	if pageURL == "" {
		pageURL = FileURL(path)
	}
	return dom.Parse(f, pageURL)
}

// FileURL 返回文件的 file:// 地址
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// Fetch 通过 HTTP 获取页面
func (l *Loader) Fetch(ctx context.Context, pageAddr, pageURL string) (*dom.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", pageAddr, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, ct)
	}

	if pageURL == "" {
		pageURL = resp.Request.URL.String()
	}
	doc, err := dom.Parse(io.LimitReader(resp.Body, maxPageSize), pageURL)
	if err != nil {
		return nil, err
	}
	l.Logger.Debug("page fetched",
		zap.String("url", pageURL),
		zap.Duration("elapsed", time.Since(start)))
	return doc, nil
}
