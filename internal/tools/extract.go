package tools

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// URL sources reported by ExtractURL.
const (
	URLExplicit = "explicit"
	URLDomain   = "domain"
	URLKeyword  = "keyword"
	URLDefault  = "default"
)

var (
	explicitURLPattern = regexp.MustCompile(`https?://[^\s]+`)
	bareDomainPattern  = regexp.MustCompile(`(?i)\b(?:www\.)?[a-z0-9](?:[a-z0-9-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}(?:/[^\s]*)?`)
	typeDomainPattern  = regexp.MustCompile(`(?i)((?:https?://)?(?:www\.)?[a-z0-9.-]+\.[a-z]{2,})`)
	schemePattern      = regexp.MustCompile(`(?i)^https?://`)
	commandPrefix      = regexp.MustCompile(`(?i)^(ввести в поиск|ввести|найти|поиск|search for|search|type|enter)[:\-\s]*`)
	whitespace         = regexp.MustCompile(`\s+`)

	queryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ввести в поиск ['"«]?([^'"«»]+)['"»]?`),
		regexp.MustCompile(`(?i)найти ['"«]?([^'"«»]+)['"»]?`),
		regexp.MustCompile(`(?i)поиск ['"«]?([^'"«»]+)['"»]?`),
		regexp.MustCompile(`(?i)search for ['"]?([^'"]+)['"]?`),
		regexp.MustCompile(`(?i)(?:type|enter) ['"]?([^'"]+)['"]?`),
	}
)

const trailingPunct = `.,;:!?)]}"'»`

// ExtractURL infers a navigation target from a subtask description. Layers
// are tried in order: an explicit URL, a bare domain, a site keyword, and
// finally defaultURL. The second result names the layer that matched.
func ExtractURL(description string, sites Sites, defaultURL string) (string, string) {
	if m := explicitURLPattern.FindString(description); m != "" {
		if u := strings.TrimRight(m, trailingPunct); !strings.HasSuffix(u, "://") {
			return u, URLExplicit
		}
	}
	if m := bareDomainPattern.FindString(description); m != "" {
		domain := strings.TrimRight(m, trailingPunct)
		if p, ok := sites.ForHost(domain); ok && !strings.Contains(domain, "/") {
			return p.Home, URLDomain
		}
		return "https://" + domain, URLDomain
	}
	if p, ok := sites.Match(description); ok {
		return p.Home, URLKeyword
	}
	return defaultURL, URLDefault
}

// ExtractTypeTarget splits a typing instruction into an optional site and
// the text to type. A domain token anywhere in the description becomes the
// site and the rest, minus leading command words, the query. Without a
// domain, quoted or prefixed phrases are tried before falling back to the
// whole description.
func ExtractTypeTarget(description string) (site, query string) {
	desc := strings.TrimSpace(description)

	if m := typeDomainPattern.FindString(desc); m != "" {
		site = schemePattern.ReplaceAllString(m, "")
		rest := regexp.MustCompile(`(?i)`+regexp.QuoteMeta(m)).ReplaceAllString(desc, " ")
		rest = collapse(rest)
		rest = commandPrefix.ReplaceAllString(rest, "")
		return site, collapse(strings.Trim(rest, `"'«»`))
	}

	for _, p := range queryPatterns {
		if m := p.FindStringSubmatch(desc); m != nil {
			text := strings.TrimSpace(m[1])
			if strings.HasPrefix(strings.ToLower(text), "в поиск ") {
				text = text[len("в поиск "):]
			}
			return "", collapse(text)
		}
	}
	return "", collapse(desc)
}

// ClassifyAction assigns an interaction description to an action bucket.
// Buckets are checked in the order type, click, scroll, read. Keywords match
// at the start of a word, so stems like "ввод" also match "ввода".
func ClassifyAction(description string) string {
	desc := strings.ToLower(description)
	for _, b := range actionBuckets {
		text := desc
		for _, u := range b.unless {
			text = strings.ReplaceAll(text, u, " ")
		}
		for _, w := range b.words {
			if containsWordStart(text, w) {
				return b.kind
			}
		}
	}
	return ActionUnknown
}

var actionBuckets = []struct {
	kind   string
	words  []string
	unless []string
}{
	{
		kind:   ActionType,
		words:  []string{"ввести", "набрать", "написать", "ввод", "type ", "fill in", "enter ", "input ", "search for"},
		unless: []string{"press enter", "hit enter"},
	},
	{kind: ActionClick, words: []string{"нажать", "кликнуть", "выбрать", "открыть", "click", "press", "select", "open", "tap", "hit "}},
	{kind: ActionScroll, words: []string{"пролистать", "скроллить", "прокрутить", "scroll"}},
	{kind: ActionRead, words: []string{"прочитать", "извлечь", "сохранить", "read", "extract", "save"}},
}

// containsWordStart reports whether w occurs in s where it is not preceded
// by a letter or digit.
func containsWordStart(s, w string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], w)
		if i < 0 {
			return false
		}
		at := from + i
		if at == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:at])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		from = at + len(w)
	}
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
