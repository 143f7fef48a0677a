package resolver

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/rahul/webpilot/internal/schemas"
)

const (
	buttonConfidence = 0.7
	inputConfidence  = 0.6

	// edgeThreshold is the minimum |dx|+|dy| of the central-difference
	// gradient for a pixel to count as an edge.
	edgeThreshold = 100
	// inkThreshold separates field borders from a light background.
	inkThreshold = 200
)

var (
	buttonWords = []string{"кнопка", "button"}
	inputWords  = []string{"поле", "input", "ввод"}
)

// box is a bounding rectangle in image pixels.
type box struct {
	x, y, w, h int
}

func (b box) center() (int, int) { return b.x + b.w/2, b.y + b.h/2 }

func (b box) contains(o box) bool {
	return o != b && o.x >= b.x && o.y >= b.y && o.x+o.w <= b.x+b.w && o.y+o.h <= b.y+b.h
}

// ResolveImage locates button-like or field-like rectangles in a screenshot.
// It is a geometric heuristic only: the description chooses which shape to
// look for, but no text is read from the image.
func ResolveImage(img image.Image, description string) schemas.Resolution {
	desc := strings.ToLower(description)
	gray := toGray(img)

	var ranked []schemas.ResolvedElement
	switch {
	case containsAny(desc, buttonWords):
		ranked = detectButtons(gray)
	case containsAny(desc, inputWords):
		ranked = detectInputs(gray)
	default:
		ranked = append(detectButtons(gray), detectInputs(gray)...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Confidence > ranked[j].Confidence
		})
	}

	if len(ranked) == 0 {
		return schemas.Resolution{
			Alternatives: []schemas.ResolvedElement{},
			Message:      fmt.Sprintf("no button or field shapes found for %q", description),
		}
	}
	return pick(LayerVision, ranked)
}

// detectButtons finds closed edge outlines of button proportions and orders
// them by Manhattan distance to the bottom-centre anchor.
func detectButtons(g *image.Gray) []schemas.ResolvedElement {
	bounds := g.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	edges := edgeMap(g)

	var buttons []box
	for _, b := range components(edges, width, height) {
		if b.w <= 50 || b.w >= 500 || b.h <= 20 || b.h >= 100 {
			continue
		}
		aspect := float64(b.w) / float64(b.h)
		if aspect <= 1.5 || aspect >= 6 {
			continue
		}
		buttons = append(buttons, b)
	}
	buttons = outermost(buttons)

	ax, ay := width/2, height*3/4
	sort.SliceStable(buttons, func(i, j int) bool {
		return manhattan(buttons[i], ax, ay) < manhattan(buttons[j], ax, ay)
	})
	return toElements(buttons, "button", buttonConfidence, "vision:edges")
}

// detectInputs finds wide, short dark outlines and orders them topmost first.
func detectInputs(g *image.Gray) []schemas.ResolvedElement {
	bounds := g.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	ink := closeMask(threshold(g), width, height)

	var fields []box
	for _, b := range components(ink, width, height) {
		if b.w > 2*b.h && b.w > 100 && b.w < 800 && b.h > 20 && b.h < 60 {
			fields = append(fields, b)
		}
	}
	fields = outermost(fields)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].y < fields[j].y })
	return toElements(fields, "input", inputConfidence, "vision:threshold")
}

func toElements(boxes []box, tag string, confidence float64, source string) []schemas.ResolvedElement {
	out := make([]schemas.ResolvedElement, 0, len(boxes))
	for _, b := range boxes {
		cx, cy := b.center()
		out = append(out, schemas.ResolvedElement{
			Tag:          tag,
			Center:       schemas.Point{X: cx, Y: cy},
			Size:         schemas.Size{Width: b.w, Height: b.h},
			Visible:      true,
			Interactable: true,
			Confidence:   confidence,
			Source:       source,
		})
	}
	return out
}

func manhattan(b box, x, y int) int {
	cx, cy := b.center()
	return abs(cx-x) + abs(cy-y)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return g
}

func edgeMap(g *image.Gray) []bool {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	at := func(x, y int) int {
		x = clamp(x, 0, w-1)
		y = clamp(y, 0, h-1)
		return int(g.Pix[y*g.Stride+x])
	}
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := at(x+1, y) - at(x-1, y)
			dy := at(x, y+1) - at(x, y-1)
			mask[y*w+x] = abs(dx)+abs(dy) >= edgeThreshold
		}
	}
	return mask
}

func threshold(g *image.Gray) []bool {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			mask[y*w+x] = v <= inkThreshold
		}
	}
	return mask
}

// closeMask applies a 3x3 morphological close (dilate, then erode).
func closeMask(mask []bool, w, h int) []bool {
	return morph(morph(mask, w, h, true), w, h, false)
}

func morph(mask []bool, w, h int, dilate bool) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := !dilate
			for ny := y - 1; ny <= y+1; ny++ {
				for nx := x - 1; nx <= x+1; nx++ {
					in := false
					if nx >= 0 && ny >= 0 && nx < w && ny < h {
						in = mask[ny*w+nx]
					} else if !dilate {
						// Out-of-image pixels do not erode the border.
						in = true
					}
					if dilate && in {
						v = true
					}
					if !dilate && !in {
						v = false
					}
				}
			}
			out[y*w+x] = v
		}
	}
	return out
}

// components returns the bounding box of every 8-connected region of set pixels.
func components(mask []bool, w, h int) []box {
	seen := make([]bool, len(mask))
	var boxes []box
	var stack []int
	for start, on := range mask {
		if !on || seen[start] {
			continue
		}
		minX, minY, maxX, maxY := w, h, -1, -1
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := p%w, p/w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
			for ny := y - 1; ny <= y+1; ny++ {
				for nx := x - 1; nx <= x+1; nx++ {
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					q := ny*w + nx
					if mask[q] && !seen[q] {
						seen[q] = true
						stack = append(stack, q)
					}
				}
			}
		}
		boxes = append(boxes, box{x: minX, y: minY, w: maxX - minX + 1, h: maxY - minY + 1})
	}
	return boxes
}

// outermost drops boxes nested inside another box, such as a focus ring
// drawn inside a button outline.
func outermost(boxes []box) []box {
	out := make([]box, 0, len(boxes))
	for i, b := range boxes {
		nested := false
		for j, o := range boxes {
			if i != j && o.contains(b) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, b)
		}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
