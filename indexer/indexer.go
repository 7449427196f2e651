// Package indexer implements the Indexer: it walks wallpaper folders,
// discovers supported image files, reads their dimensions, and upserts
// catalog entries — never failing the whole folder over a single bad
// file.
//
// Grounded on adewale-olsen's internal/indexer/indexer.go (worker-pool
// folder walk, progress callback, per-file error tolerance) and the
// teacher's pkg/wallpaper/file_manager.go (filepath.Walk + path/extension
// handling).
package indexer

import (
	"context"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dixieflatline76/smartselect/catalog"
	"github.com/dixieflatline76/smartselect/util"
	"github.com/dixieflatline76/smartselect/util/log"
)

// SupportedExtensions lists the file extensions the Indexer discovers,
// matching spec.md §4.4's minimum set.
var SupportedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".bmp": true, ".gif": true, ".tif": true, ".tiff": true,
}

// ProgressCallback reports (done, total) as the walk proceeds; total is
// an estimate that may grow mid-scan (spec.md §4.4).
type ProgressCallback func(done, total int)

// SourceResolver maps a discovered file's directory to a source_id, or
// returns ("", false) when no source matches.
type SourceResolver func(dirPath string) (sourceID, sourceType string, ok bool)

// Indexer discovers wallpaper files under a set of root folders and
// upserts catalog.ImageRecord rows for each, skipping files whose mtime
// matches the existing record's; file size is not compared.
type Indexer struct {
	store    *catalog.Store
	resolver SourceResolver
	workers  int
}

// New creates an Indexer backed by store. resolver may be nil, in which
// case every file gets an empty source_id.
func New(store *catalog.Store, resolver SourceResolver) *Indexer {
	return &Indexer{store: store, resolver: resolver, workers: 4}
}

// SetWorkerCount overrides the number of concurrent dimension-probing
// workers (default 4).
func (idx *Indexer) SetWorkerCount(n int) {
	if n > 0 {
		idx.workers = n
	}
}

// discovered is one file found during the walk, before its dimensions
// have been probed.
type discovered struct {
	path    string
	size    int64
	mtime   int64
	dirPath string
}

// Walk discovers supported files under folders and upserts them into the
// catalog. It returns the count of files successfully indexed (created,
// refreshed, or found unchanged); per-file errors are logged and skipped, never fatal for the
// folder (spec.md §4.4).
func (idx *Indexer) Walk(ctx context.Context, folders []string, progress ProgressCallback) (int, error) {
	var files []discovered
	total := 0

	for _, folder := range folders {
		err := filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				log.Warnf("indexer: walk error at %s: %v", path, err)
				return nil
			}
			if info.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if !SupportedExtensions[ext] {
				return nil
			}
			files = append(files, discovered{
				path:    path,
				size:    info.Size(),
				mtime:   info.ModTime().Unix(),
				dirPath: filepath.Dir(path),
			})
			total++
			if progress != nil {
				progress(0, total)
			}
			return nil
		})
		if err != nil {
			log.Warnf("indexer: failed to walk folder %s: %v", folder, err)
		}
	}

	return idx.indexFiles(ctx, files, progress)
}

// indexFiles probes dimensions and upserts each discovered file, using a
// bounded worker pool, matching the teacher's worker-pool style
// (downloadWaitGroup in pkg/wallpaper/wallpaper.go) and
// adewale-olsen's concurrent indexer.Engine.
func (idx *Indexer) indexFiles(ctx context.Context, files []discovered, progress ProgressCallback) (int, error) {
	type job = discovered
	jobs := make(chan job)
	var wg sync.WaitGroup
	done := util.NewSafeInt()
	indexed := util.NewSafeInt()

	worker := func() {
		defer wg.Done()
		for f := range jobs {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if idx.indexOne(ctx, f) {
				indexed.Increment()
			}
			d := done.Increment()
			if progress != nil {
				progress(d, len(files))
			}
		}
	}

	for i := 0; i < idx.workers; i++ {
		wg.Add(1)
		go worker()
	}
	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	wg.Wait()

	return indexed.Value(), ctx.Err()
}

// indexOne stats, probes, and upserts a single discovered file. It
// returns false (and logs) on any per-file error, never propagating it.
func (idx *Indexer) indexOne(ctx context.Context, f discovered) bool {
	existing, err := idx.store.GetImage(ctx, f.path)
	if err != nil {
		log.Warnf("indexer: lookup failed for %s: %v", f.path, err)
		return false
	}
	if existing != nil && existing.FileMtime == f.mtime {
		return true // unchanged; skip probing dimensions again
	}

	rec := catalog.ImageRecord{
		Filepath:  f.path,
		Filename:  filepath.Base(f.path),
		FileMtime: f.mtime,
	}
	if existing != nil {
		rec.IsFavorite = existing.IsFavorite
		rec.TimesShown = existing.TimesShown
		rec.LastShownAt = existing.LastShownAt
	}

	if idx.resolver != nil {
		if sourceID, sourceType, ok := idx.resolver(f.dirPath); ok {
			rec.SourceID = sourceID
			if err := idx.store.UpsertSource(ctx, sourceID, sourceType); err != nil {
				log.Warnf("indexer: upsert source %s failed: %v", sourceID, err)
			}
		}
	}

	width, height, err := probeDimensions(f.path)
	if err != nil {
		log.Warnf("indexer: failed to read dimensions for %s: %v", f.path, err)
	} else if height > 0 {
		rec.Width = width
		rec.Height = height
		rec.AspectRatio = float64(width) / float64(height)
		rec.HasDimension = true
	}

	if err := idx.store.UpsertImage(ctx, rec); err != nil {
		log.Warnf("indexer: upsert failed for %s: %v", f.path, err)
		return false
	}
	return true
}

// probeDimensions decodes path and returns its pixel bounds, using the
// teacher's own decode path (disintegration/imaging, which the teacher's
// smartImageProcessor uses for every image it loads) instead of a second,
// unrelated decoding entry point.
func probeDimensions(path string) (width, height int, err error) {
	img, err := imaging.Open(path)
	if err != nil {
		return 0, 0, err
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}

// DiscoverFiles walks folders and returns every supported-extension file
// path found, without touching the catalog — used by the Rebuild
// Coordinator to build a full fresh record set for an atomic swap.
func DiscoverFiles(folders []string) []string {
	var out []string
	for _, folder := range folders {
		filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
			if err != nil || info == nil || info.IsDir() {
				return nil
			}
			if SupportedExtensions[strings.ToLower(filepath.Ext(path))] {
				out = append(out, path)
			}
			return nil
		})
	}
	return out
}

// BuildRecord stats and probes a single file into a fresh ImageRecord
// (history fields zeroed), for use by the Rebuild Coordinator which
// replaces the whole catalog rather than refreshing existing rows.
func BuildRecord(path string, resolver SourceResolver) (catalog.ImageRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return catalog.ImageRecord{}, err
	}
	rec := catalog.ImageRecord{
		Filepath:  path,
		Filename:  filepath.Base(path),
		FileMtime: info.ModTime().Unix(),
	}
	if resolver != nil {
		if sourceID, _, ok := resolver(filepath.Dir(path)); ok {
			rec.SourceID = sourceID
		}
	}
	if width, height, err := probeDimensions(path); err == nil && height > 0 {
		rec.Width = width
		rec.Height = height
		rec.AspectRatio = float64(width) / float64(height)
		rec.HasDimension = true
	}
	return rec, nil
}
