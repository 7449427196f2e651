package catalog

// ImageRecord is the durable, per-file metadata row the Indexer maintains
// and the Selector weighs. Filepath is the primary key.
type ImageRecord struct {
	Filepath     string
	Filename     string
	SourceID     string // empty means no source
	Width        int    // 0 if unreadable
	Height       int    // 0 if unreadable
	AspectRatio  float64
	FileMtime    int64 // wall-clock seconds, may go backwards
	IsFavorite   bool
	TimesShown   int
	LastShownAt  int64 // 0 means never shown
	HasDimension bool  // true when Width/Height/AspectRatio were read successfully
}

// SourceRecord groups images by logical origin (folder or provider tag).
type SourceRecord struct {
	SourceID    string
	SourceType  string
	LastShownAt int64 // 0 means never shown
	TimesShown  int
}

// PaletteRecord is the one-to-one dominant-color summary of an ImageRecord.
type PaletteRecord struct {
	Filepath         string
	Colors           [16]string // color0..color15, "" when unset; Colors[0] required
	AvgHue           float64    // 0-360, circular
	AvgSaturation    float64    // 0-1
	AvgLightness     float64    // 0-1
	ColorTemperature float64    // -1 (cool) .. +1 (warm)
	ExtractedAt      int64      // 0 means unknown
}

// Color0 returns the required primary color slot.
func (p PaletteRecord) Color0() string {
	return p.Colors[0]
}

// DisplayEvent is an append-only record of a wallpaper-change display,
// used for analytics; the hot path relies on the denormalized counters on
// ImageRecord/SourceRecord instead of scanning this log.
type DisplayEvent struct {
	ID       int64
	Filepath string
	ShownAt  int64
	SourceID string // empty if the image had no source
}

// ImageFilter enumerates every predicate query_images supports. A zero
// value matches every image. Unrecognized combinations never silently
// drop a predicate: every non-zero field is applied as an AND.
type ImageFilter struct {
	SourceIDs           []string // nil means no source restriction; a non-nil empty slice matches nothing
	FavoritesOnly       bool
	MinAspect           *float64
	MaxAspect           *float64
	ExcludeShownWithin  *int64 // seconds; images last shown more recently than this are excluded
	Limit               *int
}

// Statistics is an aggregate snapshot of the catalog's counters, bundling
// the five individual stats operations spec.md §4.1 names into one
// round-trip for callers (the host rotator's admin surface) that want all
// of them at once.
type Statistics struct {
	ImageCount           int
	SourceCount          int
	ImagesWithPaletteCnt int
	SumTimesShown        int
	ShownImageCount      int
}
