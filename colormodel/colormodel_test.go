package colormodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexRGBRoundTrip(t *testing.T) {
	cases := []string{"#80C0FF", "#000000", "#FFFFFF", "#FF0000", "#00FF00", "#123456"}
	for _, hex := range cases {
		rgb := HexToRGB(hex)
		back := RGBToHex(rgb)
		assert.Equal(t, hex, back)
	}
}

func withinChannel(a, b RGB, tol int) bool {
	d := func(x, y uint8) int {
		v := int(x) - int(y)
		if v < 0 {
			v = -v
		}
		return v
	}
	return d(a.R, b.R) <= tol && d(a.G, b.G) <= tol && d(a.B, b.B) <= tol
}

func TestHSLHexRoundTripLaw(t *testing.T) {
	// S4 / invariant 4: hsl_to_hex(hex_to_hsl(p.color0)) equals p.color0
	// modulo +/-1 per RGB channel.
	cases := []string{"#80C0FF", "#123456", "#ABCDEF", "#010203", "#FEDCBA"}
	for _, hex := range cases {
		hsl := HexToHSL(hex)
		back := HSLToHex(hsl)

		orig := HexToRGB(hex)
		got := HexToRGB(back)
		assert.True(t, withinChannel(orig, got, 1), "round trip %s -> %s exceeded 1 LSB tolerance", hex, back)
	}
}

func TestCircularHueMeanWrap(t *testing.T) {
	// 359 and 1 degrees average to 0, not 180.
	mean := CircularHueMean([]float64{359, 1})
	assert.InDelta(t, 0, mean, 1.0)
}

func TestCircularHueMeanEmpty(t *testing.T) {
	assert.Equal(t, 0.0, CircularHueMean(nil))
}

func TestCircularHueMeanSimple(t *testing.T) {
	mean := CircularHueMean([]float64{10, 20, 30})
	assert.InDelta(t, 20, mean, 0.01)
}

func TestColorTemperatureWarm(t *testing.T) {
	// Pure red/orange: strongly warm.
	temp := ColorTemperature([]string{"#FF0000", "#FF8000"})
	assert.Greater(t, temp, 0.5)
}

func TestColorTemperatureCool(t *testing.T) {
	// Pure cyan/blue: strongly cool.
	temp := ColorTemperature([]string{"#00FFFF", "#0080FF"})
	assert.Less(t, temp, -0.5)
}

func TestColorTemperatureMonotonic(t *testing.T) {
	mostlyWarm := ColorTemperature([]string{"#FF0000", "#FF0000", "#00FFFF"})
	lessWarm := ColorTemperature([]string{"#FF0000", "#00FFFF", "#00FFFF"})
	assert.Greater(t, mostlyWarm, lessWarm)
}

func TestColorTemperatureBounds(t *testing.T) {
	temp := ColorTemperature([]string{"#FF0000"})
	assert.LessOrEqual(t, temp, 1.0)
	assert.GreaterOrEqual(t, temp, -1.0)
	assert.Equal(t, 0.0, ColorTemperature(nil))
}

func TestPerceptualDistanceIdentity(t *testing.T) {
	assert.Equal(t, 0.0, PerceptualDistance("#123456", "#123456"))
}

func TestPerceptualDistanceWrapAware(t *testing.T) {
	// Hue 1 and hue 359, same S/L: distance should be small (wrap-aware),
	// not large as a naive |1-359| subtraction would produce.
	a := HSLToHex(HSL{H: 1, S: 0.8, L: 0.5})
	b := HSLToHex(HSL{H: 359, S: 0.8, L: 0.5})
	d := PerceptualDistance(a, b)
	assert.Less(t, d, 0.1)
}

func TestColorsEquivalent(t *testing.T) {
	assert.True(t, ColorsEquivalent("#123456", "#123456", 0.01))
	assert.False(t, ColorsEquivalent("#000000", "#FFFFFF", 0.01))
}

func TestNoNaNOrInfOutputs(t *testing.T) {
	hsl := HexToHSL("not-a-color")
	assert.False(t, math.IsNaN(hsl.H))
	assert.False(t, math.IsInf(hsl.S, 0))
	assert.GreaterOrEqual(t, hsl.S, 0.0)
	assert.GreaterOrEqual(t, hsl.L, 0.0)
}
