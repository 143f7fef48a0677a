package resolver

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canvas(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// outline draws a 2px dark rectangle border.
func outline(img *image.Gray, x, y, w, h int) {
	dark := color.Gray{Y: 40}
	for i := x; i < x+w; i++ {
		for t := 0; t < 2; t++ {
			img.SetGray(i, y+t, dark)
			img.SetGray(i, y+h-1-t, dark)
		}
	}
	for j := y; j < y+h; j++ {
		for t := 0; t < 2; t++ {
			img.SetGray(x+t, j, dark)
			img.SetGray(x+w-1-t, j, dark)
		}
	}
}

func TestResolveImage_ButtonsRankedByAnchorDistance(t *testing.T) {
	img := canvas(800, 600)
	outline(img, 100, 100, 120, 40)
	outline(img, 340, 430, 120, 40)

	res := ResolveImage(img, "кнопка отправить")

	require.True(t, res.Found)
	assert.Equal(t, LayerVision, res.Layer)
	assert.Equal(t, "button", res.Element.Tag)
	assert.Equal(t, 0.7, res.Element.Confidence)
	assert.InDelta(t, 400, res.Element.Center.X, 2)
	assert.InDelta(t, 450, res.Element.Center.Y, 2)
	require.Len(t, res.Alternatives, 1)
	assert.InDelta(t, 160, res.Alternatives[0].Center.X, 2)
}

func TestResolveImage_InputsTopmostFirst(t *testing.T) {
	img := canvas(800, 600)
	outline(img, 50, 300, 300, 36)
	outline(img, 50, 80, 300, 36)

	res := ResolveImage(img, "поле ввода")

	require.True(t, res.Found)
	assert.Equal(t, "input", res.Element.Tag)
	assert.Equal(t, 0.6, res.Element.Confidence)
	assert.Equal(t, 98, res.Element.Center.Y)
	assert.Equal(t, 300, res.Element.Size.Width)
	require.Len(t, res.Alternatives, 1)
	assert.Equal(t, 318, res.Alternatives[0].Center.Y)
}

func TestResolveImage_RejectsOutOfRangeShapes(t *testing.T) {
	img := canvas(800, 600)
	outline(img, 10, 10, 30, 30)   // too small
	outline(img, 100, 200, 600, 40) // too wide for a button
	outline(img, 100, 300, 40, 200) // too tall for either

	res := ResolveImage(img, "button")

	assert.False(t, res.Found)
	assert.NotEmpty(t, res.Message)
	assert.Empty(t, res.Alternatives)
}

func TestResolveImage_UnqualifiedDescriptionPrefersButtons(t *testing.T) {
	img := canvas(800, 600)
	outline(img, 50, 50, 300, 36)
	outline(img, 340, 430, 120, 40)

	res := ResolveImage(img, "что-нибудь")

	require.True(t, res.Found)
	assert.Equal(t, "button", res.Element.Tag)
	for _, alt := range res.Alternatives {
		assert.LessOrEqual(t, alt.Confidence, res.Element.Confidence)
	}
}

func TestOutermost(t *testing.T) {
	outer := box{x: 0, y: 0, w: 100, h: 40}
	inner := box{x: 10, y: 5, w: 60, h: 20}
	other := box{x: 200, y: 0, w: 80, h: 30}

	assert.Equal(t, []box{outer, other}, outermost([]box{outer, inner, other}))
}
