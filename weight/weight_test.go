package weight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dixieflatline76/smartselect/catalog"
)

func TestWeightNeverShownIsFullRecency(t *testing.T) {
	now := time.Now()
	img := catalog.ImageRecord{}
	w := Weight(img, nil, now, DefaultConfig(), nil, ColorContext{})
	// Recency is 1.0; a never-shown image also carries the new-image boost.
	assert.InDelta(t, 1.0*DefaultConfig().NewImageBoost, w, 1e-9)
}

func TestWeightRecentlyShownIsSuppressed(t *testing.T) {
	now := time.Now()
	img := catalog.ImageRecord{LastShownAt: now.Unix()}
	w := Weight(img, nil, now, DefaultConfig(), nil, ColorContext{})
	assert.Less(t, w, 0.1)
}

func TestWeightRecoversAfterCooldown(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	img := catalog.ImageRecord{LastShownAt: now.Add(-30 * 24 * time.Hour).Unix()}
	w := Weight(img, nil, now, cfg, nil, ColorContext{})
	assert.Greater(t, w, 0.9)
}

func TestWeightStepDecay(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.Decay = DecayStep
	cfg.CooldownDays = 1

	beforeCooldown := catalog.ImageRecord{LastShownAt: now.Add(-1 * time.Hour).Unix(), TimesShown: 1}
	assert.Equal(t, 0.0, Weight(beforeCooldown, nil, now, cfg, nil, ColorContext{}))

	afterCooldown := catalog.ImageRecord{LastShownAt: now.Add(-25 * time.Hour).Unix(), TimesShown: 1}
	assert.Equal(t, 1.0, Weight(afterCooldown, nil, now, cfg, nil, ColorContext{}))
}

func TestWeightLinearDecay(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.Decay = DecayLinear
	cfg.CooldownDays = 10
	img := catalog.ImageRecord{LastShownAt: now.Add(-5 * 24 * time.Hour).Unix(), TimesShown: 1}
	w := Weight(img, nil, now, cfg, nil, ColorContext{})
	assert.InDelta(t, 0.5, w, 0.01)
}

func TestWeightFavoriteBoost(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	plain := catalog.ImageRecord{}
	fav := catalog.ImageRecord{IsFavorite: true}
	wPlain := Weight(plain, nil, now, cfg, nil, ColorContext{})
	wFav := Weight(fav, nil, now, cfg, nil, ColorContext{})
	assert.InDelta(t, wPlain*cfg.FavoriteBoost, wFav, 1e-9)
}

func TestWeightNewImageBoost(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	seen := catalog.ImageRecord{TimesShown: 1}
	unseen := catalog.ImageRecord{TimesShown: 0}
	wSeen := Weight(seen, nil, now, cfg, nil, ColorContext{})
	wUnseen := Weight(unseen, nil, now, cfg, nil, ColorContext{})
	assert.InDelta(t, wSeen*cfg.NewImageBoost, wUnseen, 1e-9)
}

func TestWeightSourceBalanceNilSourceIsNeutral(t *testing.T) {
	now := time.Now()
	w := Weight(catalog.ImageRecord{}, nil, now, DefaultConfig(), nil, ColorContext{})
	// Source factor is 1.0; the never-shown record carries the new-image boost.
	assert.InDelta(t, 1.0*DefaultConfig().NewImageBoost, w, 1e-9)
}

func TestWeightSourceBalanceSuppressesRecentSource(t *testing.T) {
	now := time.Now()
	src := &catalog.SourceRecord{LastShownAt: now.Unix()}
	w := Weight(catalog.ImageRecord{}, src, now, DefaultConfig(), nil, ColorContext{})
	assert.Less(t, w, 0.1)
}

func TestWeightColorConstraintsDisabledIsNeutral(t *testing.T) {
	now := time.Now()
	palette := &catalog.PaletteRecord{AvgHue: 0, AvgSaturation: 1}
	w := Weight(catalog.ImageRecord{}, nil, now, DefaultConfig(), palette, ColorContext{Enabled: false})
	// Color factor is 1.0; the never-shown record carries the new-image boost.
	assert.InDelta(t, 1.0*DefaultConfig().NewImageBoost, w, 1e-9)
}

func TestWeightColorConstraintsFavorMatchingHue(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cc := ColorContext{Enabled: true, TargetHue: 200, TargetSaturationRange: [2]float64{0, 1}, ToleranceWeight: 1}

	matching := &catalog.PaletteRecord{AvgHue: 200, AvgSaturation: 0.5}
	opposite := &catalog.PaletteRecord{AvgHue: 20, AvgSaturation: 0.5}

	wMatch := Weight(catalog.ImageRecord{}, nil, now, cfg, matching, cc)
	wOpp := Weight(catalog.ImageRecord{}, nil, now, cfg, opposite, cc)
	assert.Greater(t, wMatch, wOpp)
}

func TestHueDistanceWrapsCorrectly(t *testing.T) {
	assert.InDelta(t, 2.0, hueDistance(359, 1), 1e-9)
	assert.InDelta(t, 180.0, hueDistance(0, 180), 1e-9)
}

func TestWeightNeverNegative(t *testing.T) {
	now := time.Now()
	img := catalog.ImageRecord{LastShownAt: now.Unix()}
	w := Weight(img, nil, now, DefaultConfig(), nil, ColorContext{})
	assert.GreaterOrEqual(t, w, 0.0)
}
