package overlay

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
)

const quiet = 40 * time.Millisecond

func newParagraph(text string) *html.Node {
	p := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
	p.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return p
}

func appendParagraphs(doc *dom.Document, parent *html.Node, count int) {
	for i := 0; i < count; i++ {
		doc.Update(func(tx *dom.Tx) { tx.AppendChild(parent, newParagraph("Added paragraph")) })
	}
}

func TestWatcherDebounce(t *testing.T) {
	doc := parseDoc(t, `<body><div id="list"></div></body>`)
	list := elementByID(t, doc, "list")

	var calls atomic.Int32
	w := NewWatcher(func() { calls.Add(1) }, WatcherOptions{QuietPeriod: quiet})
	require.NoError(t, w.Start(doc, nil))
	defer w.Stop()

	appendParagraphs(doc, list, 50)

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * quiet)
	assert.Equal(t, int32(1), calls.Load(), "a burst triggers exactly one call")

	t.Run("later burst fires again", func(t *testing.T) {
		appendParagraphs(doc, list, 5)
		assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	})
}

func TestWatcherStopCancelsPending(t *testing.T) {
	doc := parseDoc(t, `<body><div id="list"></div></body>`)
	list := elementByID(t, doc, "list")

	var calls atomic.Int32
	w := NewWatcher(func() { calls.Add(1) }, WatcherOptions{QuietPeriod: quiet})
	require.NoError(t, w.Start(doc, nil))

	appendParagraphs(doc, list, 3)
	w.Stop()
	w.Stop()
	assert.False(t, w.Running())

	time.Sleep(3 * quiet)
	assert.Equal(t, int32(0), calls.Load())

	appendParagraphs(doc, list, 3)
	time.Sleep(3 * quiet)
	assert.Equal(t, int32(0), calls.Load(), "no callbacks after stop")
}

func TestWatcherRestart(t *testing.T) {
	doc := parseDoc(t, `<body><div id="list"></div></body>`)
	list := elementByID(t, doc, "list")

	var calls atomic.Int32
	w := NewWatcher(func() { calls.Add(1) }, WatcherOptions{QuietPeriod: quiet})
	require.NoError(t, w.Start(doc, nil))
	assert.ErrorIs(t, w.Start(doc, nil), ErrWatcherRunning)

	w.Stop()
	require.NoError(t, w.Start(doc, nil))
	defer w.Stop()

	appendParagraphs(doc, list, 1)
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatcherFiltering(t *testing.T) {
	doc := parseDoc(t, `<body>
		<div id="list"><div id="translation-widget"><div id="inner"></div></div></div>
		<div id="outside"></div>
	</body>`)
	list := elementByID(t, doc, "list")
	outside := elementByID(t, doc, "outside")
	inner := elementByID(t, doc, "inner")

	ex := NewExtractor(DefaultExtractorOptions(), nil)
	var calls atomic.Int32
	w := NewWatcher(func() { calls.Add(1) }, WatcherOptions{QuietPeriod: quiet, Ignore: ex.Excluded})
	require.NoError(t, w.Start(doc, list))
	defer w.Stop()

	t.Run("widget subtree ignored", func(t *testing.T) {
		appendParagraphs(doc, inner, 5)
		time.Sleep(3 * quiet)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("outside target ignored", func(t *testing.T) {
		appendParagraphs(doc, outside, 5)
		time.Sleep(3 * quiet)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("attribute changes ignored", func(t *testing.T) {
		doc.Update(func(tx *dom.Tx) { tx.SetAttr(list, "data-state", "busy") })
		time.Sleep(3 * quiet)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("text change inside target fires", func(t *testing.T) {
		appendParagraphs(doc, list, 1)
		assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

		var run *html.Node
		doc.View(func(*html.Node) { run = list.LastChild.FirstChild })
		doc.Update(func(tx *dom.Tx) { tx.SetData(run, "Changed paragraph") })
		assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	})
}

func TestWatcherConcurrentUpdates(t *testing.T) {
	doc := parseDoc(t, `<body><div id="list"><p class="note">Some note text</p></div></body>`)
	list := elementByID(t, doc, "list")

	var note, run *html.Node
	doc.View(func(*html.Node) {
		note = list.FirstChild
		run = note.FirstChild
	})

	ex := NewExtractor(DefaultExtractorOptions(), nil)
	var calls atomic.Int32
	w := NewWatcher(func() { calls.Add(1) }, WatcherOptions{QuietPeriod: quiet, Ignore: ex.Excluded})
	require.NoError(t, w.Start(doc, list))
	defer w.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			doc.Update(func(tx *dom.Tx) { tx.SetData(run, fmt.Sprintf("Some note text %d", i)) })
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			doc.Update(func(tx *dom.Tx) {
				tx.RemoveAttr(note, "class")
				tx.SetAttr(note, "class", "note")
			})
		}
	}()
	wg.Wait()

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
}
