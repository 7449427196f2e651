// Package selector implements the Selector: the orchestrator that turns
// catalog queries and weight.Weight into a concrete pick, records
// display history, and drives palette backfill and full catalog
// rebuilds.
//
// Grounded on the teacher's wallpaperPlugin orchestration style
// (pkg/wallpaper/wallpaper.go: a struct holding a store handle, RNG-driven
// selection via randomizedIndexes/math/rand, a mutex guarding shared
// mutable state) generalized to weighted sampling without replacement,
// and on pkg/wallpaper/store.go's ImageStore.Sync full-revalidation
// pattern for RebuildIndex.
package selector

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/dixieflatline76/smartselect/catalog"
	"github.com/dixieflatline76/smartselect/colormodel"
	"github.com/dixieflatline76/smartselect/indexer"
	"github.com/dixieflatline76/smartselect/palette"
	"github.com/dixieflatline76/smartselect/util/log"
	"github.com/dixieflatline76/smartselect/weight"

	"golang.org/x/sync/errgroup"
)

// Constraints narrows the candidate pool for a selection or preview
// request, mirroring catalog.ImageFilter but expressed in Selector terms
// (spec.md §4.6 step 1).
type Constraints struct {
	SourceIDs          []string
	FavoritesOnly      bool
	MinAspect          *float64
	MaxAspect          *float64
	ExcludeShownWithin *int64
}

func (c Constraints) toFilter() catalog.ImageFilter {
	return catalog.ImageFilter{
		SourceIDs:          c.SourceIDs,
		FavoritesOnly:      c.FavoritesOnly,
		MinAspect:          c.MinAspect,
		MaxAspect:          c.MaxAspect,
		ExcludeShownWithin: c.ExcludeShownWithin,
	}
}

// SelectionConfig bundles the weight.Config with an optional color bias,
// immutable for the lifetime of a Selector (spec.md §4.6: "immutable
// SelectionConfig").
type SelectionConfig struct {
	Weight weight.Config
	Color  weight.ColorContext
}

// DefaultSelectionConfig mirrors weight.DefaultConfig with color
// constraints disabled.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{Weight: weight.DefaultConfig()}
}

// Selector is the orchestrator described in spec.md §4.6. It holds a
// shared Catalog Store handle, an immutable SelectionConfig, and an
// optional Palette Extractor — extraction is best-effort and may be nil.
type Selector struct {
	store     *catalog.Store
	extractor *palette.Extractor
	cfg       SelectionConfig
	rng       *rand.Rand

	// extractMu serializes palette-on-show extraction in RecordShown.
	extractMu sync.Mutex
}

// New creates a Selector. extractor may be nil to disable palette-on-show.
func New(store *catalog.Store, extractor *palette.Extractor, cfg SelectionConfig) *Selector {
	return &Selector{
		store:     store,
		extractor: extractor,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// candidate pairs a catalog row with its computed weight for sampling.
type candidate struct {
	image  catalog.ImageRecord
	weight float64
}

// SelectImages implements spec.md §4.6's select_images: filter, weigh,
// and weighted-sample count items without replacement.
func (s *Selector) SelectImages(ctx context.Context, count int, constraints Constraints) ([]string, error) {
	images, err := s.store.QueryImages(ctx, constraints.toFilter())
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		log.Infof("selector: no candidates match constraints, returning empty selection")
		return []string{}, nil
	}

	now := time.Now()
	sources := make(map[string]*catalog.SourceRecord)
	candidates := make([]candidate, 0, len(images))
	for _, img := range images {
		src := s.lookupSource(ctx, img.SourceID, sources)
		var pal *catalog.PaletteRecord
		if s.cfg.Color.Enabled {
			pal, _ = s.store.GetPalette(ctx, img.Filepath)
		}
		w := weight.Weight(img, src, now, s.cfg.Weight, pal, s.cfg.Color)
		candidates = append(candidates, candidate{image: img, weight: w})
	}

	if n := count; n > len(candidates) {
		n = len(candidates)
		count = n
	}

	picked := weightedSampleWithoutReplacement(candidates, count, s.rng)
	out := make([]string, len(picked))
	for i, c := range picked {
		out[i] = c.image.Filepath
	}
	return out, nil
}

// lookupSource fetches the SourceRecord for a non-empty source id,
// memoizing within seen for the duration of a single SelectImages call
// only — spec.md §3 forbids caching entity rows across public calls, but
// within one call, images sharing a source would otherwise repeat the
// same lookup.
func (s *Selector) lookupSource(ctx context.Context, sourceID string, seen map[string]*catalog.SourceRecord) *catalog.SourceRecord {
	if sourceID == "" {
		return nil
	}
	if rec, ok := seen[sourceID]; ok {
		return rec
	}
	rec, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		rec = nil
	}
	seen[sourceID] = rec
	return rec
}

// weightedSampleWithoutReplacement draws n items from candidates by a
// repeated linear cumulative-weight scan (not a binary search), removing
// each pick before the next draw. When every remaining weight is zero, it falls back to a
// uniform draw (spec.md §4.5's documented fallback). A floating-point
// edge case where accumulated rounding causes the scan to overshoot the
// running total defaults to picking the last remaining candidate — the
// documented fallback in spec.md §4.6 step 4, covered by tests.
func weightedSampleWithoutReplacement(candidates []candidate, n int, rng *rand.Rand) []candidate {
	pool := make([]candidate, len(candidates))
	copy(pool, candidates)

	out := make([]candidate, 0, n)
	for len(out) < n && len(pool) > 0 {
		total := 0.0
		for _, c := range pool {
			total += c.weight
		}

		var idx int
		if total <= 0 {
			log.Infof("selector: all %d remaining candidates have zero weight, falling back to uniform sampling", len(pool))
			idx = rng.Intn(len(pool))
		} else {
			target := rng.Float64() * total
			idx = locateBucket(pool, target)
		}

		out = append(out, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return out
}

// locateBucket performs the cumulative-weight scan described in spec.md
// §4.6 step 4: walk candidates accumulating weight until it exceeds
// target. Floating-point rounding can leave the accumulator just short
// of target after the last candidate; the documented fallback is to
// return the final index rather than panic or wrap.
func locateBucket(pool []candidate, target float64) int {
	running := 0.0
	for i, c := range pool {
		running += c.weight
		if running > target {
			return i
		}
	}
	return len(pool) - 1
}

// RecordShown implements spec.md §4.6's record_shown: durable history
// first, palette extraction second and best-effort, per the two-phase
// contract that keeps a crash between phases safe.
func (s *Selector) RecordShown(ctx context.Context, filepath string, suppliedPalette *catalog.PaletteRecord) error {
	if err := s.store.RecordImageShown(ctx, filepath); err != nil {
		return err
	}

	if suppliedPalette != nil {
		rec := *suppliedPalette
		rec.Filepath = filepath
		if err := s.store.UpsertPalette(ctx, rec); err != nil {
			log.Warnf("selector: failed to upsert supplied palette for %s: %v", filepath, err)
		}
		return nil
	}

	if s.extractor == nil || !s.extractor.Available() {
		return nil
	}
	s.extractMu.Lock()
	defer s.extractMu.Unlock()
	rec := s.extractor.Extract(ctx, filepath)
	if rec == nil {
		log.Infof("selector: palette extraction skipped or failed for %s", filepath)
		return nil
	}
	if err := s.store.UpsertPalette(ctx, *rec); err != nil {
		log.Warnf("selector: failed to upsert extracted palette for %s: %v", filepath, err)
	}
	return nil
}

// ExtractAllPalettes batch-backfills palettes for images that have none,
// per spec.md §4.6's extract_all_palettes. Per-image failures are logged
// and do not stop the batch. progress may be nil.
func (s *Selector) ExtractAllPalettes(ctx context.Context, progress func(done, total int)) (int, error) {
	if s.extractor == nil {
		return 0, nil
	}
	paths, err := s.store.ImagesWithoutPalette(ctx, 0)
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	var done, extracted int
	var mu sync.Mutex

	for _, p := range paths {
		p := p
		g.Go(func() error {
			rec := s.extractor.Extract(gctx, p)
			mu.Lock()
			done++
			d := done
			if rec != nil {
				extracted++
			}
			mu.Unlock()
			if progress != nil {
				progress(d, len(paths))
			}
			if rec == nil {
				log.Infof("selector: batch palette extraction failed for %s, continuing", p)
				return nil
			}
			if err := s.store.UpsertPalette(gctx, *rec); err != nil {
				log.Warnf("selector: batch upsert palette failed for %s: %v", p, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return extracted, nil
}

// RebuildIndex implements spec.md §4.8: a full revalidation that walks
// folders fresh and atomically swaps the catalog, so readers never see an
// empty catalog mid-rebuild unless the input itself is empty.
func (s *Selector) RebuildIndex(ctx context.Context, folders []string, resolver indexer.SourceResolver, sourceTypes map[string]string, progress func(done, total int)) (int, error) {
	paths := indexer.DiscoverFiles(folders)
	records := make([]catalog.ImageRecord, 0, len(paths))

	existing := make(map[string]catalog.ImageRecord, len(paths))
	for _, p := range paths {
		if rec, err := s.store.GetImage(ctx, p); err == nil && rec != nil {
			existing[p] = *rec
		}
	}

	for i, p := range paths {
		rec, err := indexer.BuildRecord(p, resolver)
		if err != nil {
			log.Warnf("selector: rebuild failed to stat %s: %v", p, err)
			continue
		}
		if prev, ok := existing[p]; ok {
			rec.IsFavorite = prev.IsFavorite
			rec.TimesShown = prev.TimesShown
			rec.LastShownAt = prev.LastShownAt
		}
		records = append(records, rec)
		if progress != nil {
			progress(i+1, len(paths))
		}
	}

	if err := s.store.ReplaceAllImages(ctx, records, sourceTypes); err != nil {
		return 0, err
	}
	return len(records), nil
}

// GetTimeBasedTemperature implements spec.md §4.6's piecewise
// local-hour-to-temperature curve: cool at night, warm in late afternoon.
func GetTimeBasedTemperature(now time.Time) float64 {
	hour := float64(now.Hour()) + float64(now.Minute())/60.0
	switch {
	case hour >= 0 && hour < 6:
		return -0.8 // deep night: cool
	case hour >= 6 && hour < 10:
		return lerp(-0.8, 0.2, (hour-6)/4) // dawn warming up
	case hour >= 10 && hour < 16:
		return lerp(0.2, 0.3, (hour-10)/6) // midday: mild warm
	case hour >= 16 && hour < 19:
		return lerp(0.3, 0.9, (hour-16)/3) // late afternoon: peak warm
	case hour >= 19 && hour < 22:
		return lerp(0.9, -0.3, (hour-19)/3) // dusk cooling
	default:
		return lerp(-0.3, -0.8, (hour-22)/2) // late evening into night
	}
}

func lerp(a, b, t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return a + (b-a)*t
}

// PreviewCandidate is one ranked result of GetColorAwarePreviewCandidates.
type PreviewCandidate struct {
	Filepath string
	Score    float64 // perceptual distance to target; lower is closer
}

// GetColorAwarePreviewCandidates implements spec.md §4.6's
// get_color_aware_preview_candidates: rank candidates by perceptual
// distance to a target palette (or the current wallpaper's palette) and
// return the top-N closest matches with scores.
func (s *Selector) GetColorAwarePreviewCandidates(ctx context.Context, count int, targetHex string, currentWallpaper string) ([]PreviewCandidate, error) {
	target := targetHex
	if target == "" && currentWallpaper != "" {
		pal, err := s.store.GetPalette(ctx, currentWallpaper)
		if err == nil && pal != nil {
			target = pal.Color0()
		}
	}
	if target == "" {
		return nil, nil
	}

	images, err := s.store.QueryImages(ctx, catalog.ImageFilter{})
	if err != nil {
		return nil, err
	}

	var scored []PreviewCandidate
	for _, img := range images {
		pal, err := s.store.GetPalette(ctx, img.Filepath)
		if err != nil || pal == nil {
			continue
		}
		scored = append(scored, PreviewCandidate{
			Filepath: img.Filepath,
			Score:    colormodel.PerceptualDistance(target, pal.Color0()),
		})
	}

	sortByScoreAscending(scored)
	if count < len(scored) {
		scored = scored[:count]
	}
	return scored, nil
}

func sortByScoreAscending(items []PreviewCandidate) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Score < items[j-1].Score; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
