package cleaner

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanRemovesScriptsStylesAndAds(t *testing.T) {
	raw := `<html><body>
		<script>evil()</script>
		<style>.x{color:red}</style>
		<div class="ad-banner">buy now</div>
		<p id="advertisement-1">sponsored</p>
		<p>Ocean-view rooms from $199.</p>
	</body></html>`

	out, err := Clean(raw, "https://example.com/", 0)
	require.NoError(t, err)
	assert.NotContains(t, out, "evil()")
	assert.NotContains(t, out, "color:red")
	assert.NotContains(t, out, "buy now")
	assert.NotContains(t, out, "sponsored")
	assert.Contains(t, out, "Ocean-view rooms from $199.")
}

func TestCleanRetainsChromeAtDepthZero(t *testing.T) {
	raw := `<html><body><header><h1>Welcome</h1></header><p>body text</p></body></html>`
	out, err := Clean(raw, "https://example.com/", 0)
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome")
}

func TestCleanStripsChromeAtDeeperDepth(t *testing.T) {
	raw := `<html><body><header><h1>Welcome</h1></header><p>body text</p></body></html>`
	out, err := Clean(raw, "https://example.com/rooms", 1)
	require.NoError(t, err)
	assert.NotContains(t, out, "Welcome")
	assert.Contains(t, out, "body text")
}

func TestCleanStripsInlineStyles(t *testing.T) {
	raw := `<html><body><p style="color:red">hello</p></body></html>`
	out, err := Clean(raw, "https://example.com/", 0)
	require.NoError(t, err)
	assert.NotContains(t, out, "style=")
}

func TestCleanAbsolutizesHrefAndSrc(t *testing.T) {
	raw := `<html><body><a href="/rooms">Rooms</a><img src="pic.jpg"></body></html>`
	out, err := Clean(raw, "https://example.com/sub/", 0)
	require.NoError(t, err)
	assert.Contains(t, out, `href="https://example.com/rooms"`)
	assert.Contains(t, out, `src="https://example.com/sub/pic.jpg"`)
}

func TestCleanRemovesStructurallyEmptyElements(t *testing.T) {
	raw := `<html><body><div>   </div><span></span><p>Keep me</p></body></html>`
	out, err := Clean(raw, "https://example.com/", 0)
	require.NoError(t, err)
	assert.NotContains(t, out, "<div>")
	assert.NotContains(t, out, "<span>")
	assert.Contains(t, out, "Keep me")
}

func TestCleanCollapsesInterTagWhitespace(t *testing.T) {
	raw := "<html><body><p>a</p>   \n  <p>b</p></body></html>"
	out, err := Clean(raw, "https://example.com/", 0)
	require.NoError(t, err)
	assert.NotContains(t, out, "</p>   ")
}

func TestResolveURLIsIdempotentUnderReresolution(t *testing.T) {
	base, err := url.Parse("https://example.com/a/b/")
	require.NoError(t, err)

	once, err := ResolveURL(base, "../c")
	require.NoError(t, err)

	resolvedBase, err := url.Parse(once)
	require.NoError(t, err)
	twice, err := ResolveURL(resolvedBase, once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}
