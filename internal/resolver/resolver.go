package resolver

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sort"
	"strings"

	"github.com/rahul/webpilot/internal/browser"
	"github.com/rahul/webpilot/internal/schemas"
	"go.uber.org/zap"
)

const (
	LayerKeyword  = "keyword"
	LayerFreeText = "free_text"
	LayerVision   = "vision"

	keywordConfidence  = 0.7
	freeTextConfidence = 0.5

	maxAlternatives = 2
	previewRunes    = 100
)

type keywordRule struct {
	keyword   string
	selectors []string
}

// keywordRules is scanned in order; every rule whose keyword appears in the
// description contributes its selectors.
var keywordRules = []keywordRule{
	{"поиск", []string{`input[type="text"]`, `input[name="q"]`, `input[name="text"]`, `input[type="search"]`}},
	{"search", []string{`input[type="search"]`, `input[name="q"]`, `input[type="text"]`, `button:has-text("Search")`}},
	{"найти", []string{`input[type="text"]`, `button:has-text("Найти")`, `button:has-text("Search")`}},
	{"find", []string{`input[type="text"]`, `button:has-text("Find")`}},

	{"кнопка", []string{`button`, `input[type="button"]`, `input[type="submit"]`, `a.button`}},
	{"button", []string{`button`, `input[type="button"]`, `input[type="submit"]`, `a.button`}},
	{"отправить", []string{`button[type="submit"]`, `input[type="submit"]`, `button:has-text("Отправить")`}},
	{"submit", []string{`button[type="submit"]`, `input[type="submit"]`, `button:has-text("Submit")`}},
	{"далее", []string{`button:has-text("Далее")`, `button:has-text("Next")`, `a:has-text("Продолжить")`}},
	{"next", []string{`button:has-text("Next")`, `a:has-text("Next")`, `a:has-text("Continue")`}},

	{"ссылка", []string{`a[href]`}},
	{"link", []string{`a[href]`}},
	{"подробнее", []string{`a:has-text("Подробнее")`, `a:has-text("More")`}},
	{"more", []string{`a:has-text("More")`, `button:has-text("More")`}},

	{"форма", []string{`form`, `div.form`, `section.form`}},
	{"form", []string{`form`, `div.form`, `section.form`}},
	{"логин", []string{`input[name="login"]`, `input[name="username"]`, `#username`, `#login`}},
	{"login", []string{`input[name="login"]`, `input[name="username"]`, `#username`, `#login`}},
	{"пароль", []string{`input[type="password"]`, `input[name="password"]`, `#password`}},
	{"password", []string{`input[type="password"]`, `input[name="password"]`, `#password`}},
}

// freeTextSelectors are the generic interactive tags scanned by the free-text layer.
var freeTextSelectors = []string{`button`, `input`, `a`, `div[role="button"]`}

// Resolver maps semantic element descriptions onto page elements. It holds no
// page state, so a single Resolver may serve any number of pages.
type Resolver struct {
	logger *zap.Logger
}

// New returns a Resolver.
func New(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.Named("resolver")}
}

type candidate struct {
	key     string
	element schemas.ResolvedElement
}

// Resolve finds the best interactive element for description. Layers run in
// strict precedence; the first one yielding a visible, interactable
// candidate wins.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page, description string) schemas.Resolution {
	desc := strings.ToLower(strings.TrimSpace(description))

	if found := r.keywordLayer(ctx, page, desc); len(found) > 0 {
		return r.finish(description, LayerKeyword, found)
	}
	if found := r.freeTextLayer(ctx, page, desc); len(found) > 0 {
		return r.finish(description, LayerFreeText, found)
	}

	shot, err := page.Capture(ctx)
	if err != nil {
		r.logger.Debug("Vision layer skipped", zap.String("description", description), zap.Error(err))
		return notFound(description)
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		r.logger.Debug("Screenshot decode failed", zap.Error(err))
		return notFound(description)
	}
	res := ResolveImage(img, description)
	if res.Found {
		r.logger.Debug("Element resolved from screenshot",
			zap.String("description", description),
			zap.Int("x", res.Element.Center.X),
			zap.Int("y", res.Element.Center.Y))
	}
	return res
}

func (r *Resolver) keywordLayer(ctx context.Context, page browser.Page, desc string) []candidate {
	var found []candidate
	for _, rule := range keywordRules {
		if !strings.Contains(desc, rule.keyword) {
			continue
		}
		for _, sel := range rule.selectors {
			found = append(found, r.collect(ctx, page, sel, keywordConfidence, nil)...)
		}
	}
	return found
}

func (r *Resolver) freeTextLayer(ctx context.Context, page browser.Page, desc string) []candidate {
	words := strings.Fields(desc)
	if len(words) > 3 {
		words = words[:3]
	}
	if len(words) == 0 {
		return nil
	}
	match := func(info browser.ElementInfo) bool {
		text := strings.ToLower(info.Text)
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}

	var found []candidate
	for _, sel := range freeTextSelectors {
		found = append(found, r.collect(ctx, page, sel, freeTextConfidence, match)...)
	}
	return found
}

func (r *Resolver) collect(ctx context.Context, page browser.Page, selector string, confidence float64, keep func(browser.ElementInfo) bool) []candidate {
	elements, err := page.QueryAll(ctx, selector)
	if err != nil {
		r.logger.Debug("Selector query failed", zap.String("selector", selector), zap.Error(err))
		return nil
	}
	var out []candidate
	for _, el := range elements {
		info := el.Info()
		if !info.Interactable() {
			continue
		}
		if keep != nil && !keep(info) {
			continue
		}
		out = append(out, candidate{key: el.Key(), element: Describe(info, confidence, selector)})
	}
	return out
}

func (r *Resolver) finish(description, layer string, found []candidate) schemas.Resolution {
	ranked := rank(found)
	r.logger.Debug("Element resolved",
		zap.String("description", description),
		zap.String("layer", layer),
		zap.Int("candidates", len(ranked)),
		zap.String("source", ranked[0].Source))
	return pick(layer, ranked)
}

// rank drops repeated elements, keeping the first sighting, then orders by
// confidence. Equal confidences keep encounter order.
func rank(found []candidate) []schemas.ResolvedElement {
	seen := make(map[string]bool, len(found))
	ranked := make([]schemas.ResolvedElement, 0, len(found))
	for _, c := range found {
		if seen[c.key] {
			continue
		}
		seen[c.key] = true
		ranked = append(ranked, c.element)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

func pick(layer string, ranked []schemas.ResolvedElement) schemas.Resolution {
	top := ranked[0]
	alternatives := ranked[1:]
	if len(alternatives) > maxAlternatives {
		alternatives = alternatives[:maxAlternatives]
	}
	return schemas.Resolution{
		Found:        true,
		Element:      &top,
		Alternatives: append([]schemas.ResolvedElement{}, alternatives...),
		Layer:        layer,
	}
}

func notFound(description string) schemas.Resolution {
	return schemas.Resolution{
		Alternatives: []schemas.ResolvedElement{},
		Message:      fmt.Sprintf("no element matches description %q", description),
	}
}

// Describe converts an element snapshot into a ResolvedElement.
func Describe(info browser.ElementInfo, confidence float64, source string) schemas.ResolvedElement {
	cx, cy := info.Center()
	text := info.Text
	if r := []rune(text); len(r) > previewRunes {
		text = string(r[:previewRunes])
	}
	return schemas.ResolvedElement{
		Tag:         info.Tag,
		TextPreview: text,
		Attributes: schemas.ElementAttributes{
			ID:    info.ID,
			Class: info.Class,
			Type:  info.Type,
		},
		Center:       schemas.Point{X: int(cx), Y: int(cy)},
		Size:         schemas.Size{Width: int(info.Width), Height: int(info.Height)},
		Visible:      info.Visible,
		Interactable: info.Interactable(),
		Confidence:   confidence,
		Source:       source,
	}
}

// FirstVisible returns the first visible, enabled element matched by the
// ordered selector list along with the selector that matched.
func FirstVisible(ctx context.Context, page browser.Page, selectors []string) (browser.Element, string, bool) {
	for _, sel := range selectors {
		elements, err := page.QueryAll(ctx, sel)
		if err != nil {
			continue
		}
		for _, el := range elements {
			if el.Info().Interactable() {
				return el, sel, true
			}
		}
	}
	return nil, "", false
}
