// Package weight implements the Weight Engine: a pure function mapping
// an image, its source, and the current time to a non-negative scalar
// used by the Selector's weighted sampling.
//
// Grounded on LionsFate-test-frame/weighter's separation of weighting
// logic from storage (weighter/types.go's cacheProfile/weightList model
// of per-item weights independent of the cache), generalized here to a
// stateless multi-factor function per spec.md §4.5.
package weight

import (
	"math"
	"time"

	"github.com/dixieflatline76/smartselect/catalog"
)

// DecayShape selects the recency/source-balance falloff curve.
type DecayShape string

const (
	DecayStep        DecayShape = "step"
	DecayLinear      DecayShape = "linear"
	DecayExponential DecayShape = "exponential"
)

// Config holds the tunable knobs of the weight function, per spec.md
// §4.5's factor table.
type Config struct {
	CooldownDays       float64
	Decay              DecayShape
	SourceCooldownDays float64
	SourceDecay        DecayShape
	FavoriteBoost      float64
	NewImageBoost      float64
}

// DefaultConfig returns sane defaults matching the teacher's own
// defaulting style (zero-value config upgraded at construction time,
// e.g. config.App.getWorkerCount defaulting workerCount<=0 to 4).
func DefaultConfig() Config {
	return Config{
		CooldownDays:       7,
		Decay:              DecayExponential,
		SourceCooldownDays: 1,
		SourceDecay:        DecayExponential,
		FavoriteBoost:      2.0,
		NewImageBoost:      1.5,
	}
}

// expK is chosen so that decayCurve(1.0) ~= 1 - e^-1 ~= 0.63 (spec.md
// §4.5's exponential factor description).
const expK = 1.0

// decayCurve maps elapsed/cooldown "progress" to a recency factor in
// [0, 1] per the chosen DecayShape.
func decayCurve(progress float64, shape DecayShape) float64 {
	switch shape {
	case DecayStep:
		if progress < 1 {
			return 0
		}
		return 1
	case DecayLinear:
		return clamp01(progress)
	default: // DecayExponential
		if progress < 0 {
			progress = 0
		}
		return 1 - math.Exp(-expK*progress)
	}
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

// ColorContext optionally biases the weight toward a target palette;
// zero value disables the color-constraints factor (spec.md §4.5's
// "1.0 unless caller supplied a ColorContext").
type ColorContext struct {
	Enabled         bool
	TargetHue       float64
	TargetSaturationRange [2]float64
	ToleranceWeight float64 // how strongly to penalize distance, 0..1
}

// Weight computes the non-negative product-of-factors weight for a
// single candidate, per spec.md §4.5.
func Weight(img catalog.ImageRecord, src *catalog.SourceRecord, now time.Time, cfg Config, palette *catalog.PaletteRecord, cc ColorContext) float64 {
	w := recencyFactor(img.LastShownAt, now, cfg.CooldownDays, cfg.Decay)
	w *= sourceBalanceFactor(src, now, cfg.SourceCooldownDays, cfg.SourceDecay)
	w *= favoriteFactor(img.IsFavorite, cfg.FavoriteBoost)
	w *= newImageFactor(img.TimesShown, cfg.NewImageBoost)
	w *= colorConstraintFactor(palette, cc)
	if w < 0 {
		return 0
	}
	return w
}

// recencyFactor implements the Recency row of spec.md §4.5's table.
func recencyFactor(lastShownAt int64, now time.Time, cooldownDays float64, shape DecayShape) float64 {
	if lastShownAt == 0 {
		return 1.0
	}
	if cooldownDays <= 0 {
		cooldownDays = 1
	}
	elapsed := now.Unix() - lastShownAt
	progress := float64(elapsed) / (cooldownDays * 86400)
	return decayCurve(progress, shape)
}

// sourceBalanceFactor implements the Source balance row.
func sourceBalanceFactor(src *catalog.SourceRecord, now time.Time, cooldownDays float64, shape DecayShape) float64 {
	if src == nil || src.LastShownAt == 0 {
		return 1.0
	}
	if cooldownDays <= 0 {
		cooldownDays = 1
	}
	elapsed := now.Unix() - src.LastShownAt
	progress := float64(elapsed) / (cooldownDays * 86400)
	return decayCurve(progress, shape)
}

// favoriteFactor implements the Favorite boost row.
func favoriteFactor(isFavorite bool, boost float64) float64 {
	if isFavorite {
		if boost <= 0 {
			return 1.0
		}
		return boost
	}
	return 1.0
}

// newImageFactor implements the New-image boost row.
func newImageFactor(timesShown int, boost float64) float64 {
	if timesShown == 0 {
		if boost <= 0 {
			return 1.0
		}
		return boost
	}
	return 1.0
}

// colorConstraintFactor implements the Color constraints row: 1.0 when
// cc is disabled or no palette is available, otherwise a soft boost for
// palettes close to the target hue/saturation band.
func colorConstraintFactor(palette *catalog.PaletteRecord, cc ColorContext) float64 {
	if !cc.Enabled || palette == nil {
		return 1.0
	}
	hueDist := hueDistance(palette.AvgHue, cc.TargetHue)
	hueScore := 1 - (hueDist / 180.0) // 1.0 at exact match, 0.0 at opposite hue

	satScore := 1.0
	lo, hi := cc.TargetSaturationRange[0], cc.TargetSaturationRange[1]
	if hi > lo {
		if palette.AvgSaturation < lo {
			satScore = 1 - clamp01(lo-palette.AvgSaturation)
		} else if palette.AvgSaturation > hi {
			satScore = 1 - clamp01(palette.AvgSaturation-hi)
		}
	}

	tolerance := clamp01(cc.ToleranceWeight)
	score := (hueScore + satScore) / 2
	// Blend between "no effect" (1.0) and the full score, by tolerance.
	return 1.0*(1-tolerance) + score*tolerance
}

// hueDistance returns the shortest angular distance between two hues in
// [0, 180], matching colormodel's wrap-aware treatment of the hue circle.
func hueDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
