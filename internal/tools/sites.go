package tools

import (
	"net/url"
	"strings"
)

// SiteProfile describes how to reach and search one well-known site.
type SiteProfile struct {
	Name string
	// Domain is matched as a host suffix.
	Domain   string
	Keywords []string
	Home     string
	// SearchURL contains a {query} placeholder.
	SearchURL       string
	ResultsSelector string
	InputSelectors  []string
	// DirectSearch opens SearchURL instead of typing into the site's form.
	DirectSearch bool
}

// SearchFor returns the profile's search URL for query.
func (p SiteProfile) SearchFor(query string) string {
	if p.SearchURL == "" {
		return p.Home
	}
	return strings.ReplaceAll(p.SearchURL, "{query}", url.QueryEscape(query))
}

// DefaultSites is the built-in profile table.
func DefaultSites() Sites {
	return Sites{
		{
			Name:            "hh",
			Domain:          "hh.ru",
			Keywords:        []string{"hh.ru", "headhunter"},
			Home:            "https://hh.ru",
			SearchURL:       "https://hh.ru/search/vacancy?text={query}",
			ResultsSelector: `a[href*="/vacancy/"]`,
			InputSelectors:  []string{`input[data-qa="search-input"]`},
			DirectSearch:    true,
		},
		{
			Name:            "yandex",
			Domain:          "yandex.ru",
			Keywords:        []string{"yandex", "яндекс"},
			Home:            "https://yandex.ru",
			SearchURL:       "https://yandex.ru/search/?text={query}",
			ResultsSelector: `li.serp-item, #search-result`,
			InputSelectors:  []string{`input.search3__input`, `input[name="text"]`},
		},
		{
			Name:            "youtube",
			Domain:          "youtube.com",
			Keywords:        []string{"youtube", "ютуб"},
			Home:            "https://www.youtube.com",
			SearchURL:       "https://www.youtube.com/results?search_query={query}",
			ResultsSelector: `ytd-video-renderer`,
			InputSelectors:  []string{`input[name="search_query"]`, `input#search`},
		},
		{
			Name:            "google",
			Domain:          "google.com",
			Keywords:        []string{"google", "гугл"},
			Home:            "https://www.google.com",
			SearchURL:       "https://www.google.com/search?q={query}",
			ResultsSelector: `#search`,
			InputSelectors:  []string{`textarea[name="q"]`, `input[name="q"]`},
		},
	}
}

// Sites is an ordered profile table; earlier entries win.
type Sites []SiteProfile

// Get returns the profile called name.
func (s Sites) Get(name string) (SiteProfile, bool) {
	for _, p := range s {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return SiteProfile{}, false
}

// Match returns the first profile with a keyword contained in text.
func (s Sites) Match(text string) (SiteProfile, bool) {
	text = strings.ToLower(text)
	for _, p := range s {
		for _, kw := range p.Keywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				return p, true
			}
		}
	}
	return SiteProfile{}, false
}

// ForHost returns the profile whose domain is host or a parent of it. host
// may carry a scheme and path.
func (s Sites) ForHost(host string) (SiteProfile, bool) {
	host = hostOf(host)
	for _, p := range s {
		d := strings.ToLower(p.Domain)
		if d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
			return p, true
		}
	}
	return SiteProfile{}, false
}

// With returns a copy of s where each extra profile replaces the profile of
// the same name, or is appended when the name is new.
func (s Sites) With(extra ...SiteProfile) Sites {
	out := append(Sites(nil), s...)
	for _, p := range extra {
		replaced := false
		for i := range out {
			if out[i].Name == p.Name {
				out[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out
}

// ResultsSelector joins every profile's results indicator into one CSS
// selector list.
func (s Sites) ResultsSelector() string {
	var parts []string
	for _, p := range s {
		if p.ResultsSelector != "" {
			parts = append(parts, p.ResultsSelector)
		}
	}
	return strings.Join(parts, ", ")
}

func hostOf(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
