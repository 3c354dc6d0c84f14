package overlay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Shop title</title><style>.x { color: red }</style></head>
<body>
  <h1 id="hero">Welcome to our store</h1>
  <div class="card">Outer card text<p>Nested paragraph text</p></div>
  <p>Free shipping on all orders</p>
  <p>Free shipping on all orders</p>
  <span class="tag">Sale</span>
  <span class="tag">Sale</span>
  <p>12345</p>
  <script>var message = "Do not translate me";</script>
  <pre>Preformatted words here</pre>
  <code>inline code words</code>
  <section class="no-translate">
    <div><div><div><p>Deeply opted out text</p></div></div></div>
  </section>
  <div data-no-translate><ul><li>Attribute opt out item</li></ul></div>
  <div translate="no"><p>Brand name stays</p></div>
  <div id="translation-widget"><button>Widget save button</button></div>
  <aside class="translator-widget"><label>Widget language label</label></aside>
  <p style="display:none">Hidden paragraph text</p>
  <article><p>Article body text</p></article>
  <table><tr><td>Cell content here</td><th>Header content</th></tr></table>
</body>
</html>`

func texts(ds []Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.OriginalText)
	}
	return out
}

func TestExtractTextNodes(t *testing.T) {
	doc := parseDoc(t, samplePage)
	ex := NewExtractor(DefaultExtractorOptions(), nil)

	ds := ex.Extract(doc)
	got := texts(ds)

	assert.Equal(t, []string{
		"Welcome to our store",
		"Outer card text",
		"Nested paragraph text",
		"Free shipping on all orders",
		"Sale",
		"Hidden paragraph text",
		"Article body text",
		"Cell content here",
		"Header content",
	}, got)

	for _, excluded := range []string{
		"Shop title", "Do not translate me", "Preformatted words here", "inline code words",
		"Deeply opted out text", "Attribute opt out item", "Brand name stays", "Widget save button", "Widget language label", "12345",
	} {
		assert.NotContains(t, got, excluded)
	}

	t.Run("descriptor metadata", func(t *testing.T) {
		hero := ds[0]
		assert.Equal(t, "id-hero", hero.NodeID)
		assert.Equal(t, "h1", hero.TagName)
		assert.Equal(t, `//*[@id="hero"]`, hero.Path)
		assert.Equal(t, "https://example.com/page", hero.PageURL)
		assert.True(t, hero.Visible)
		assert.False(t, hero.Rect.Empty())

		card := ds[1]
		assert.Equal(t, "class-card-Outer-card-text", card.NodeID)
		assert.Equal(t, "div", card.TagName)
	})

	t.Run("hidden elements are reported invisible", func(t *testing.T) {
		for _, d := range ds {
			if d.OriginalText == "Hidden paragraph text" {
				assert.False(t, d.Visible)
				return
			}
		}
		t.Fatal("hidden paragraph not extracted")
	})
}

func TestExtractDedup(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<body>")
	for i := 0; i < 20; i++ {
		sb.WriteString("<p>Repeated boilerplate</p><li>  Repeated boilerplate  </li>")
	}
	sb.WriteString("<p>Unique line</p></body>")

	doc := parseDoc(t, sb.String())
	ds := NewExtractor(DefaultExtractorOptions(), nil).Extract(doc)

	seen := map[string]bool{}
	for _, d := range ds {
		require.False(t, seen[d.OriginalText], "duplicate text %q", d.OriginalText)
		seen[d.OriginalText] = true
	}
	assert.Len(t, ds, 2)
	assert.Equal(t, "p", ds[0].TagName, "first occurrence wins")
}

func TestExtractTransitiveOptOut(t *testing.T) {
	inner := "<p>Very deep text</p>"
	for i := 0; i < 40; i++ {
		inner = "<div><span>" + inner + "</span></div>"
	}
	doc := parseDoc(t, `<body><div class="wrapper no-translate">`+inner+`</div><p>Visible text</p></body>`)

	ds := NewExtractor(DefaultExtractorOptions(), nil).Extract(doc)
	assert.Equal(t, []string{"Visible text"}, texts(ds))

	t.Run("subtree root inside opt-out", func(t *testing.T) {
		var deep *html.Node
		doc.View(func(root *html.Node) {
			ps := findAll(root, "p")
			deep = ps[0]
		})
		assert.Empty(t, NewExtractor(DefaultExtractorOptions(), nil).ExtractFrom(doc, deep))
	})
}

func TestExtractStableAcrossPasses(t *testing.T) {
	doc := parseDoc(t, samplePage)
	ex := NewExtractor(DefaultExtractorOptions(), nil)

	first := ex.Extract(doc)
	second := ex.Extract(doc)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].NodeID, second[i].NodeID)
		assert.Same(t, first[i].Element, second[i].Element)
	}
}

func TestExtractKeepsIdentityWhilePreviewed(t *testing.T) {
	doc := parseDoc(t, `<body><p>Free shipping <span>today</span> only</p></body>`)
	ex := NewExtractor(DefaultExtractorOptions(), nil)
	patcher := NewPatcher(doc, "", nil)

	before := ex.Extract(doc)
	require.Len(t, before, 2)
	require.Equal(t, "Free shipping  only", before[0].OriginalText)

	require.True(t, patcher.Apply(before[0].Element, "Livraison gratuite", before[0].OriginalText))

	after := ex.Extract(doc)
	require.Len(t, after, 2)
	assert.Equal(t, before[0].NodeID, after[0].NodeID)
	assert.Equal(t, before[0].OriginalText, after[0].OriginalText)
}

func TestExtractDetachedRoot(t *testing.T) {
	doc := parseDoc(t, `<body><div id="box"><p>Some text here</p></div></body>`)
	var box *html.Node
	doc.View(func(root *html.Node) { box = dom.FindByID(root, "box") })

	doc.Update(func(tx *dom.Tx) { tx.RemoveChild(box.Parent, box) })
	assert.Empty(t, NewExtractor(DefaultExtractorOptions(), nil).ExtractFrom(doc, box))
}

func TestExtractDetectLanguage(t *testing.T) {
	doc := parseDoc(t, `<body>
		<p>Welcome to our store, where you will find the best products for your home and garden.</p>
		<p>Willkommen in unserem Geschäft, hier finden Sie die besten Produkte für Haus und Garten.</p>
		<span>Sale now on</span>
	</body>`)
	opts := DefaultExtractorOptions()
	opts.DetectLanguage = true

	ds := NewExtractor(opts, nil).Extract(doc)
	require.Len(t, ds, 3)
	assert.Equal(t, "eng", ds[0].Lang)
	assert.Equal(t, "deu", ds[1].Lang)
	assert.Empty(t, ds[2].Lang, "short text is not detected")

	t.Run("disabled by default", func(t *testing.T) {
		ds := NewExtractor(DefaultExtractorOptions(), nil).Extract(doc)
		require.Len(t, ds, 3)
		assert.Empty(t, ds[0].Lang)
	})
}
