package overlay

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
)

func parseDoc(t *testing.T, s string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(s, "https://example.com/page")
	require.NoError(t, err)
	return doc
}

// findAll 文档顺序查找所有匹配标签的元素
func findAll(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if dom.TagName(n) == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func TestDeriveNodeIDWithID(t *testing.T) {
	doc := parseDoc(t, `<p id="greeting" class="lead">Hello</p>`)
	doc.View(func(root *html.Node) {
		p := dom.FindByID(root, "greeting")
		for _, text := range []string{"Hello", "", "Completely different text"} {
			assert.Equal(t, "id-greeting", DeriveNodeID(p, text))
		}
	})
}

func TestDeriveNodeIDWithClasses(t *testing.T) {
	doc := parseDoc(t, `<div><span class="tag hot">Sale</span><span class="tag hot">Sale</span></div>`)
	doc.View(func(root *html.Node) {
		spans := findAll(root, "span")
		require.Len(t, spans, 2)

		assert.Equal(t, "class-tag-hot-Sale", DeriveNodeID(spans[0], "Sale"))
		// 相同 class 与文本的元素会冲突
		assert.Equal(t, DeriveNodeID(spans[0], "Sale"), DeriveNodeID(spans[1], "Sale"))

		assert.Equal(t, "class-tag-hot-Big-summer-sale-now", DeriveNodeID(spans[0], "Big summer  sale now on today"))
	})

	t.Run("unicode spaces collapse", func(t *testing.T) {
		doc := parseDoc(t, `<span class="price">Only&nbsp;10&nbsp;left</span>`)
		doc.View(func(root *html.Node) {
			span := findAll(root, "span")[0]
			assert.Equal(t, "class-price-Only-10-left", DeriveNodeID(span, dom.DirectText(span)))
			assert.Equal(t, "class-price-a-b-c", DeriveNodeID(span, "a\u2003b\u3000\u00a0c"))
		})
	})
}

func TestDeriveNodeIDFallback(t *testing.T) {
	doc := parseDoc(t, `<section><h2>Title</h2><p>Hello, world! Ça va?</p></section>`)
	pattern := regexp.MustCompile(`^[a-z0-9]+-\d+-[A-Za-z0-9-]*$`)

	doc.View(func(root *html.Node) {
		p := findAll(root, "p")[0]
		id := DeriveNodeID(p, "Hello, world! Ça va?")
		assert.Equal(t, "p-1-Hello--world---a-va-", id)
		assert.Regexp(t, pattern, id)

		for i := 0; i < 3; i++ {
			assert.Equal(t, id, DeriveNodeID(p, "Hello, world! Ça va?"), "deterministic")
		}

		long := "abcdefghijklmnopqrstuvwxyz0123456789"
		assert.Equal(t, "p-1-abcdefghijklmnopqrstuvwxyz0123", DeriveNodeID(p, long))
	})

	assert.Equal(t, "", DeriveNodeID(nil, "x"))
}

func TestDerivePath(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<div><p>one</p><p>two</p></div>
		<div><span>three</span></div>
		<section><p id="x">four</p></section>
	</body></html>`)

	doc.View(func(root *html.Node) {
		ps := findAll(root, "p")
		spans := findAll(root, "span")

		assert.Equal(t, "/html/body/div[1]/p[1]", DerivePath(ps[0]))
		assert.Equal(t, "/html/body/div[1]/p[2]", DerivePath(ps[1]))
		assert.Equal(t, "/html/body/div[2]/span", DerivePath(spans[0]))
		assert.Equal(t, `//*[@id="x"]`, DerivePath(ps[2]))

		t.Run("ResolvePath round trip", func(t *testing.T) {
			for _, n := range append(ps, spans...) {
				assert.Same(t, n, ResolvePath(root, DerivePath(n)))
			}
		})

		t.Run("ResolvePath misses", func(t *testing.T) {
			assert.Nil(t, ResolvePath(root, "/html/body/div[3]/p"))
			assert.Nil(t, ResolvePath(root, `//*[@id="missing"]`))
			assert.Nil(t, ResolvePath(root, "html/body"))
			assert.Nil(t, ResolvePath(root, "/html/body/div[x]"))
			assert.Nil(t, ResolvePath(root, ""))
		})
	})
}
