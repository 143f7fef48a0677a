package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

const defaultSearch = "https://yandex.ru"

func TestExtractURL(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        string
		source      string
	}{
		{"explicit url", "перейти на https://example.com/page", "https://example.com/page", URLExplicit},
		{"explicit url trailing punctuation", "Open https://example.com/page.", "https://example.com/page", URLExplicit},
		{"known bare domain", "hh.ru", "https://hh.ru", URLDomain},
		{"bare domain with path", "visit www.example.org/docs", "https://www.example.org/docs", URLDomain},
		{"keyword", "открыть ютуб", "https://www.youtube.com", URLKeyword},
		{"keyword headhunter", "зайти на HeadHunter", "https://hh.ru", URLKeyword},
		{"default", "открыть поисковик", defaultSearch, URLDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source := ExtractURL(tt.description, DefaultSites(), defaultSearch)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.source, source)
		})
	}
}

func TestExtractURL_AlwaysResolvesWithDefault(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		desc := rapid.String().Draw(t, "description")
		got, _ := ExtractURL(desc, DefaultSites(), defaultSearch)
		if got == "" {
			t.Fatalf("no url for %q", desc)
		}
		if !strings.HasPrefix(got, "http://") && !strings.HasPrefix(got, "https://") {
			t.Fatalf("url %q for %q has no scheme", got, desc)
		}
	})
}

func TestExtractTypeTarget(t *testing.T) {
	tests := []struct {
		description string
		site        string
		query       string
	}{
		{"ввести в поиск example.com запрос python", "example.com", "запрос python"},
		{"ввести в поиск https://example.com: golang", "example.com", "golang"},
		{"ввести в поиск hh.ru", "hh.ru", ""},
		{`найти "рецепт борща"`, "", "рецепт борща"},
		{"ввести в поиск 'котики'", "", "котики"},
		{"search for go generics", "", "go generics"},
		{"python developer", "", "python developer"},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			site, query := ExtractTypeTarget(tt.description)
			assert.Equal(t, tt.site, site)
			assert.Equal(t, tt.query, query)
		})
	}
}

func TestClassifyAction(t *testing.T) {
	tests := map[string]string{
		"Ввести запрос в поле поиска":    ActionType,
		"type hello into the search box": ActionType,
		"Нажать кнопку Найти":            ActionClick,
		"click the first result":         ActionClick,
		"Пролистать страницу вниз":       ActionScroll,
		"scroll down":                    ActionScroll,
		"Сохранить результаты":           ActionRead,
		"extract the article text":       ActionRead,
		"подумать о жизни":               ActionUnknown,
		"Search for golang":              ActionType,
		"Enter 'x' in the box":           ActionType,
		"Ввод запроса":                   ActionType,
		"press enter to submit":          ActionClick,
		"hit enter":                      ActionClick,
		"center the map":                 ActionUnknown,
		"an express delivery page":       ActionUnknown,
	}
	for desc, want := range tests {
		assert.Equal(t, want, ClassifyAction(desc), desc)
	}
}
