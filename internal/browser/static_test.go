package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><head><title> Поиск </title><script>var x = 1;</script></head>
<body>
  <form>
    <input type="text" id="q" class="search-input">
    <input type="hidden" name="csrf">
    <button type="submit">Найти</button>
    <button disabled>Отмена</button>
  </form>
  <div style="display: none"><a href="/x">secret</a></div>
  <p>Результаты</p>
</body></html>`

func TestSplitSelector(t *testing.T) {
	tests := []struct {
		in, css, text string
	}{
		{`button[type="submit"]`, `button[type="submit"]`, ""},
		{`button:has-text("Найти")`, "button", "Найти"},
		{`:has-text('Search')`, "*", "Search"},
	}
	for _, tt := range tests {
		css, text := SplitSelector(tt.in)
		assert.Equal(t, tt.css, css, tt.in)
		assert.Equal(t, tt.text, text, tt.in)
	}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://hh.ru", NormalizeURL(" hh.ru "))
	assert.Equal(t, "http://example.com", NormalizeURL("http://example.com"))
	assert.Equal(t, "about:blank", NormalizeURL("about:blank"))
	assert.Equal(t, "", NormalizeURL(""))
}

func TestStaticPage_QueryAll(t *testing.T) {
	ctx := context.Background()
	page, err := NewStaticPageFromString("https://example.com", fixture)
	require.NoError(t, err)

	inputs, err := page.QueryAll(ctx, "input")
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "q", inputs[0].Info().ID)
	assert.True(t, inputs[0].Info().Interactable())
	assert.False(t, inputs[1].Info().Visible)

	buttons, err := page.QueryAll(ctx, `button:has-text("найти")`)
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	assert.Equal(t, "Найти", buttons[0].Info().Text)

	disabled, err := page.QueryAll(ctx, "button[disabled]")
	require.NoError(t, err)
	require.Len(t, disabled, 1)
	assert.False(t, disabled[0].Info().Interactable())

	links, err := page.QueryAll(ctx, "a")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.False(t, links[0].Info().Visible)

	assert.True(t, page.WaitVisible(ctx, "p", 0))
	assert.False(t, page.WaitVisible(ctx, "a", 0))
}

func TestStaticPage_KeysAreStable(t *testing.T) {
	ctx := context.Background()
	page, err := NewStaticPageFromString("", fixture)
	require.NoError(t, err)

	byTag, err := page.QueryAll(ctx, "#q")
	require.NoError(t, err)
	byClass, err := page.QueryAll(ctx, `input[class*="search"]`)
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	require.Len(t, byClass, 1)
	assert.Equal(t, byTag[0].Key(), byClass[0].Key())
}

func TestStaticPage_InfoAndText(t *testing.T) {
	ctx := context.Background()
	page, err := NewStaticPageFromString("https://example.com/search", fixture)
	require.NoError(t, err)

	info, err := page.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/search", info.URL)
	assert.Equal(t, "Поиск", info.Title)
	assert.Positive(t, info.ContentLength)

	text, err := page.Text(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, "Результаты")
	assert.NotContains(t, text, "var x")

	assert.ErrorIs(t, page.Navigate(ctx, "https://example.com"), ErrStaticPage)
	_, _, err = page.Viewport(ctx)
	assert.ErrorIs(t, err, ErrStaticPage)
}
