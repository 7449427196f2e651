package theming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderStripsComments(t *testing.T) {
	out := Render("a{# this is a comment #}b", PaletteVars{})
	assert.Equal(t, "ab", out)
}

func TestRenderSimpleVariable(t *testing.T) {
	out := Render("bg={{ background }}", PaletteVars{"background": "#112233"})
	assert.Equal(t, "bg=#112233", out)
}

func TestRenderUnknownNamePassesThrough(t *testing.T) {
	out := Render("{{ nope }}", PaletteVars{})
	assert.Contains(t, out, "nope")
}

func TestRenderStripFilter(t *testing.T) {
	out := Render("{{ color0 | strip }}", PaletteVars{"color0": "#AABBCC"})
	assert.Equal(t, "AABBCC", out)
}

func TestRenderAlphaFilter(t *testing.T) {
	out := Render("{{ color0 | alpha:80 }}", PaletteVars{"color0": "#AABBCC"})
	assert.Equal(t, "#AABBCC80", out)
}

func TestRenderDarkenFilter(t *testing.T) {
	out := Render("{{ color0 | darken:0.9 }}", PaletteVars{"color0": "#FFFFFF"})
	assert.NotEqual(t, "#FFFFFF", out)
}

func TestRenderChainedFilters(t *testing.T) {
	out := Render("{{ color0 | darken:0.1 | strip }}", PaletteVars{"color0": "#808080"})
	assert.NotContains(t, out, "#")
	assert.Len(t, out, 6)
}

func TestRenderBlendFilter(t *testing.T) {
	out := Render("{{ color0 | blend:#FFFFFF:0.5 }}", PaletteVars{"color0": "#000000"})
	assert.Equal(t, "#808080", out)
}

func TestRenderUnknownFilterPassesThrough(t *testing.T) {
	out := Render("{{ color0 | not_a_real_filter }}", PaletteVars{"color0": "#123456"})
	assert.Equal(t, "#123456", out)
}

func TestRenderMultipleVariablesInOneTemplate(t *testing.T) {
	out := Render("bg={{background}} fg={{foreground}}", PaletteVars{"background": "#000000", "foreground": "#ffffff"})
	assert.Equal(t, "bg=#000000 fg=#ffffff", out)
}

func TestBuildPaletteVarsDefaultsBackgroundToColor0(t *testing.T) {
	var colors [16]string
	colors[0] = "#111111"
	vars := BuildPaletteVars(colors, "", "", "")
	assert.Equal(t, "#111111", vars["background"])
}

func TestBuildPaletteVarsExplicitOverrides(t *testing.T) {
	var colors [16]string
	colors[0] = "#111111"
	vars := BuildPaletteVars(colors, "#222222", "#333333", "#444444")
	assert.Equal(t, "#222222", vars["background"])
	assert.Equal(t, "#333333", vars["foreground"])
	assert.Equal(t, "#444444", vars["cursor"])
}
