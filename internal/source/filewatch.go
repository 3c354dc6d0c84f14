package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
)

// FileWatcher 页面文件变化时把新内容载入同一个文档
//
// 替换根节点会产生一条变更记录，后续由文档的观察者处理。
type FileWatcher struct {
	path   string
	doc    *dom.Document
	logger *zap.Logger

	// OnReload 每次重新载入后调用，可为 nil
	OnReload func(err error)
}

// NewFileWatcher 创建文件监听器
func NewFileWatcher(path string, doc *dom.Document, logger *zap.Logger) *FileWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileWatcher{path: path, doc: doc, logger: logger}
}

// Run 监听直到 ctx 结束
//
// 监听所在目录而不是文件本身，编辑器的"写临时文件再改名"也能被捕获。
func (w *FileWatcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	w.logger.Info("watching page file", zap.String("path", abs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			err := w.Reload()
			if err != nil {
				w.logger.Warn("failed to reload page file", zap.String("path", abs), zap.Error(err))
			}
			if w.OnReload != nil {
				w.OnReload(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// Reload 重新解析文件并替换文档的根节点
func (w *FileWatcher) Reload() error {
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", w.path, err)
	}
	w.doc.Update(func(tx *dom.Tx) { tx.ReplaceRoot(root) })
	w.logger.Debug("page file reloaded", zap.String("path", w.path))
	return nil
}
