// Package colormodel implements the Color Model: pure, deterministic
// conversions between hex, RGB, and HSL color representations, plus the
// small set of aggregate functions (circular hue mean, color temperature,
// perceptual distance) the Weight Engine and Theming Engine build on.
//
// Grounded on jmylchreest-tinct's internal/colour package for HSL idiom
// and role-based color handling, generalized here to the fixed operation
// set spec.md §4.2 names.
package colormodel

import (
	"fmt"
	"math"
	"strings"
)

// RGB is an 8-bit-per-channel color.
type RGB struct {
	R, G, B uint8
}

// HSL is a color in hue/saturation/lightness space. Hue is in [0, 360),
// saturation and lightness are in [0, 1].
type HSL struct {
	H, S, L float64
}

// HexToRGB parses a "#RRGGBB" string into an RGB value. Malformed input
// clamps to black rather than erroring, since callers on the hot path
// (spec.md §7) must never propagate a Malformed error from color math.
func HexToRGB(hex string) RGB {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return RGB{}
	}
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return RGB{}
	}
	return RGB{R: uint8(clampInt(r, 0, 255)), G: uint8(clampInt(g, 0, 255)), B: uint8(clampInt(b, 0, 255))}
}

// RGBToHex renders an RGB value as an uppercase "#RRGGBB" string.
func RGBToHex(c RGB) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// RGBToHSL converts RGB to HSL.
func RGBToHSL(c RGB) HSL {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l := (max + min) / 2

	if max == min {
		return HSL{H: 0, S: 0, L: clamp01(l)}
	}

	d := max - min
	var s float64
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}

	var h float64
	switch max {
	case r:
		h = (g-b)/d + boolF(g < b, 6)
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h *= 60

	return HSL{H: normalizeHue(h), S: clamp01(s), L: clamp01(l)}
}

func boolF(b bool, v float64) float64 {
	if b {
		return v
	}
	return 0
}

// HSLToRGB converts HSL back to RGB.
func HSLToRGB(c HSL) RGB {
	h := normalizeHue(c.H) / 360
	s := clamp01(c.S)
	l := clamp01(c.L)

	if s == 0 {
		v := uint8(math.Round(l * 255))
		return RGB{R: v, G: v, B: v}
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	r := hueToChannel(p, q, h+1.0/3)
	g := hueToChannel(p, q, h)
	b := hueToChannel(p, q, h-1.0/3)

	return RGB{
		R: uint8(math.Round(r * 255)),
		G: uint8(math.Round(g * 255)),
		B: uint8(math.Round(b * 255)),
	}
}

func hueToChannel(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

// HexToHSL converts a hex color directly to HSL.
func HexToHSL(hex string) HSL {
	return RGBToHSL(HexToRGB(hex))
}

// HSLToHex converts HSL directly to a hex color string.
func HSLToHex(c HSL) string {
	return RGBToHex(HSLToRGB(c))
}

// CircularHueMean averages a set of hues on the unit circle, correctly
// wrapping 359°+1° to 0° rather than averaging the raw numbers (which
// would yield 180°). Returns 0 for an empty input.
func CircularHueMean(hues []float64) float64 {
	if len(hues) == 0 {
		return 0
	}
	var sx, sy float64
	for _, h := range hues {
		rad := h * math.Pi / 180
		sx += math.Cos(rad)
		sy += math.Sin(rad)
	}
	mean := math.Atan2(sy, sx) * 180 / math.Pi
	return normalizeHue(mean)
}

// warmLoHi/warmHiLo and coolLo/coolHi bound the warm (red/orange/yellow)
// and cool (cyan/blue) hue bands used by ColorTemperature.
const (
	warmLoHi = 60.0
	warmHiLo = 300.0
	coolLo   = 180.0
	coolHi   = 240.0
)

// ColorTemperature blends the warm-hue mass (0-60° and 300-360°) against
// the cool-hue mass (180-240°) across hexColors, returning a value in
// [-1, 1] that increases monotonically with warm-hue mass, per spec.md
// §4.2. Colors outside both bands (greens, violets) contribute neutrally.
func ColorTemperature(hexColors []string) float64 {
	if len(hexColors) == 0 {
		return 0
	}
	var warm, cool, total float64
	for _, hex := range hexColors {
		hsl := HexToHSL(hex)
		weight := hsl.S // desaturated colors barely register as warm or cool
		total += weight
		switch {
		case hsl.H <= warmLoHi || hsl.H >= warmHiLo:
			warm += weight
		case hsl.H >= coolLo && hsl.H <= coolHi:
			cool += weight
		}
	}
	if total == 0 {
		return 0
	}
	return clampRange((warm-cool)/total, -1, 1)
}

// PerceptualDistance computes an HSL-space distance between two hex
// colors, wrap-aware on hue, for preview ranking only — spec.md §4.2
// explicitly excludes this from persistence.
func PerceptualDistance(a, b string) float64 {
	ha := HexToHSL(a)
	hb := HexToHSL(b)

	dh := math.Abs(ha.H - hb.H)
	if dh > 180 {
		dh = 360 - dh
	}
	dh /= 180 // normalize to [0,1]

	ds := ha.S - hb.S
	dl := ha.L - hb.L

	return math.Sqrt(dh*dh + ds*ds + dl*dl)
}

// ColorsEquivalent reports whether a and b are within tol of each other in
// HSL space, used by the Theming Engine to skip a reload when a re-render
// produced effectively the same colors (spec.md §4.7).
func ColorsEquivalent(a, b string, tol float64) bool {
	return PerceptualDistance(a, b) <= tol
}

func normalizeHue(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		// A tiny negative input rounds up to exactly 360 above.
		h -= 360
	}
	return h
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
