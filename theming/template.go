package theming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dixieflatline76/smartselect/colormodel"
)

// commentRe and variableRe are compiled once at package scope (class
// scope), matching spec.md §4.7's "recompile regexes at class scope
// only" — never inside the per-render hot path.
var (
	commentRe  = regexp.MustCompile(`\{#.*?#\}`)
	variableRe = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)
)

// PaletteVars is the flattened variable namespace the template language
// resolves against. BuildPaletteVars fills it with the non-empty
// color0..color15 slots and the background, foreground, and cursor
// aliases; it has no alpha variable and carries no other palette fields
// (such as the average hue), so those names render unchanged.
type PaletteVars map[string]string

// Render strips comments and substitutes every {{ name | filters }}
// expression in src against vars, per spec.md §4.7's template language.
func Render(src string, vars PaletteVars) string {
	stripped := commentRe.ReplaceAllString(src, "")
	return variableRe.ReplaceAllStringFunc(stripped, func(match string) string {
		groups := variableRe.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		return resolveExpr(groups[1], vars)
	})
}

// resolveExpr evaluates "name | filter1:arg | filter2:arg2" against vars.
func resolveExpr(expr string, vars PaletteVars) string {
	parts := strings.Split(expr, "|")
	name := strings.TrimSpace(parts[0])
	value, ok := vars[name]
	if !ok {
		return "{{ " + expr + " }}" // unknown name: leave untouched
	}

	for _, stage := range parts[1:] {
		value = applyFilter(strings.TrimSpace(stage), value, vars)
	}
	return value
}

// applyFilter applies one "filter" or "filter:arg" stage to a color
// string, per spec.md §4.7's filter table. Unknown filters pass the
// color through unchanged.
func applyFilter(stage, color string, vars PaletteVars) string {
	name, arg, hasArg := cutFilter(stage)

	switch name {
	case "strip":
		return strings.TrimPrefix(color, "#")
	case "darken":
		return shiftLightness(color, -parseFraction(arg))
	case "lighten":
		return shiftLightness(color, parseFraction(arg))
	case "saturate":
		return shiftSaturation(color, parseFraction(arg))
	case "desaturate":
		return shiftSaturation(color, -parseFraction(arg))
	case "blend":
		return blendFilter(color, arg)
	case "alpha":
		if !hasArg {
			return color
		}
		return color + normalizeAlpha(arg)
	default:
		return color
	}
}

// cutFilter splits "name:arg" into ("name", "arg", true) or ("name", "",
// false) when there is no argument.
func cutFilter(stage string) (name, arg string, hasArg bool) {
	idx := strings.Index(stage, ":")
	if idx < 0 {
		return stage, "", false
	}
	return stage[:idx], stage[idx+1:], true
}

func parseFraction(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func shiftLightness(hex string, delta float64) string {
	hsl := colormodel.HexToHSL(hex)
	hsl.L = clamp01(hsl.L + delta)
	return colormodel.HSLToHex(hsl)
}

func shiftSaturation(hex string, delta float64) string {
	hsl := colormodel.HexToHSL(hex)
	hsl.S = clamp01(hsl.S + delta)
	return colormodel.HSLToHex(hsl)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// blendFilter implements "blend:#HEX:w" — mix color with the given hex
// at weight w (0 = all color, 1 = all the blend target).
func blendFilter(color, arg string) string {
	fields := strings.Split(arg, ":")
	if len(fields) != 2 {
		return color
	}
	target := fields[0]
	w := parseFraction(fields[1])
	w = clamp01(w)

	a := colormodel.HexToRGB(color)
	b := colormodel.HexToRGB(target)
	mix := colormodel.RGB{
		R: mixChannel(a.R, b.R, w),
		G: mixChannel(a.G, b.G, w),
		B: mixChannel(a.B, b.B, w),
	}
	return colormodel.RGBToHex(mix)
}

func mixChannel(a, b uint8, w float64) uint8 {
	v := float64(a)*(1-w) + float64(b)*w
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}

// normalizeAlpha renders a "aa" filter argument (an integer 0-255 or a
// pair of hex digits) as two lowercase hex digits.
func normalizeAlpha(arg string) string {
	if len(arg) == 2 {
		if _, err := strconv.ParseUint(arg, 16, 8); err == nil {
			return strings.ToLower(arg)
		}
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		n = 255
	}
	if n < 0 {
		n = 0
	}
	if n > 255 {
		n = 255
	}
	return fmt.Sprintf("%02x", n)
}

// BuildPaletteVars flattens a PaletteRecord-shaped color set into the
// PaletteVars namespace the template language resolves against.
func BuildPaletteVars(colors [16]string, background, foreground, cursor string) PaletteVars {
	vars := make(PaletteVars, 20)
	for i, c := range colors {
		if c != "" {
			vars[fmt.Sprintf("color%d", i)] = c
		}
	}
	if background == "" {
		background = colors[0]
	}
	if foreground == "" && len(colors) > 7 {
		foreground = colors[7]
	}
	if cursor == "" {
		cursor = foreground
	}
	vars["background"] = background
	vars["foreground"] = foreground
	vars["cursor"] = cursor
	return vars
}
