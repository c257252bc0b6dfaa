package colormap

import (
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			lut, err := New(name, 32)
			require.NoError(t, err)
			assert.Equal(t, 32, lut.Steps())
			assert.Equal(t, name, lut.Name())
		})
	}

	_, err := New("viridis", 32)
	assert.ErrorIs(t, err, ErrUnknownMap)
}

func TestNew_DefaultSteps(t *testing.T) {
	lut, err := New("cooltowarm", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSteps, lut.Steps())
}

func TestLut_Ends(t *testing.T) {
	lut, err := New("cooltowarm", 32)
	require.NoError(t, err)

	start, _ := colorful.Hex("#3c4ec2")
	end, _ := colorful.Hex("#b40426")

	assert.True(t, lut.Color(0).AlmostEqualRgb(start))
	assert.True(t, lut.Color(1).AlmostEqualRgb(end))
	assert.True(t, lut.Color(-5).AlmostEqualRgb(start), "below range clamps")
	assert.True(t, lut.Color(5).AlmostEqualRgb(end), "above range clamps")
	assert.True(t, lut.Color(math.NaN()).AlmostEqualRgb(start))
}

func TestLut_Midpoint(t *testing.T) {
	lut, err := New("grayscale", 10)
	require.NoError(t, err)

	mid, _ := colorful.Hex("#7f7f80")
	assert.True(t, lut.Color(0.5).AlmostEqualRgb(mid))
}

func TestLut_WithRange(t *testing.T) {
	lut, err := New("grayscale", 10)
	require.NoError(t, err)

	wide := lut.WithRange(-2, 2)
	lo, hi := wide.Range()
	assert.Equal(t, -2.0, lo)
	assert.Equal(t, 2.0, hi)

	assert.True(t, wide.Color(0).AlmostEqualRgb(lut.Color(0.5)))
	lo, hi = lut.Range()
	assert.Equal(t, 0.0, lo, "receiver keeps its range")
	assert.Equal(t, 1.0, hi)

	flat := lut.WithRange(1, 1)
	assert.True(t, flat.Color(7).AlmostEqualRgb(lut.Color(0)))
}

func TestFade(t *testing.T) {
	white := colorful.Color{R: 1, G: 1, B: 1}

	assert.Equal(t, white, Fade(white, 0))
	assert.True(t, Fade(white, 1).AlmostEqualRgb(Black))

	half := Fade(white, 0.5)
	assert.InDelta(t, 0.5, half.R, 1e-9)
}
