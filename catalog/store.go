// Package catalog implements the Catalog Store: a durable,
// concurrency-safe key-value-plus-index over images, sources, palettes,
// and the display-event log, backed by an embedded SQLite file.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dixieflatline76/smartselect/util/log"
)

// busyRetryBudget bounds how long a writer waits on lock contention before
// surfacing KindBusy, per spec.md §4.1's "cross-process writers rely on
// the store's own busy-retry with an exponential backoff up to ~1 s".
const busyRetryBudget = time.Second

// writeMu is the process-wide single-writer mutex shared by every Store.
var writeMu sync.Mutex

// Store is the durable Catalog Store. A single *Store is safe to share
// across goroutines: reads use the pool's own connections concurrently;
// writes are serialized by writeMu to avoid busy-timeout bounces within
// one process (spec.md §4.1, §5).
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the catalog store file at path and
// applies the schema. WAL journaling and synchronous=NORMAL trade a small
// durability window for write latency, matching the pack's SQLite-backed
// caches (e.g. hazyhaar-GoClode's core.Engine, abs3ntdev-wallhaven_dl's
// WallpaperCache).
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)",
		path, busyRetryBudget.Milliseconds(),
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ioErr("open catalog store", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, ioErr("ping catalog store", err)
	}
	// A single SQLite writer handles writes; cap open connections so we
	// don't fan writes across connections modernc.org/sqlite would
	// serialize internally anyway.
	db.SetMaxOpenConns(8)

	s := &Store{db: db}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &Error{Kind: KindIntegrity, Message: "apply schema", Cause: err}
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withWriteTx runs fn inside a transaction while holding writeMu, retrying
// once on a SQLITE_BUSY after the driver's own busy_timeout is exhausted,
// per spec.md §4.1's "retried once then surfaced" policy for transient
// errors.
func (s *Store) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	writeMu.Lock()
	defer writeMu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isBusy(err) {
			return err
		}
		log.Warnf("catalog: write busy, retrying (attempt %d)", attempt+1)
	}
	return busy("write transaction exhausted retry budget", lastErr)
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if isBusy(err) {
			return err
		}
		return ioErr("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		if isBusy(err) {
			return err
		}
		return ioErr("commit transaction", err)
	}
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}

// UpsertImage inserts or replaces the image at img.Filepath. When a row
// already exists, its times_shown, last_shown_at, and is_favorite are
// always kept and the values in img are ignored; they are used only for a
// new row. SetFavorite and RecordImageShown are the paths that change
// those fields on an existing row.
func (s *Store) UpsertImage(ctx context.Context, img ImageRecord) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if img.SourceID != "" {
			if err := upsertSourceStub(tx, img.SourceID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO images (filepath, filename, source_id, width, height, aspect_ratio, file_mtime, is_favorite, times_shown, last_shown_at)
			VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, NULLIF(?, 0))
			ON CONFLICT(filepath) DO UPDATE SET
				filename = excluded.filename,
				source_id = excluded.source_id,
				width = excluded.width,
				height = excluded.height,
				aspect_ratio = excluded.aspect_ratio,
				file_mtime = excluded.file_mtime
		`, img.Filepath, img.Filename, img.SourceID, nullInt(img.Width, img.HasDimension), nullInt(img.Height, img.HasDimension), nullFloat(img.AspectRatio, img.HasDimension), img.FileMtime, boolToInt(img.IsFavorite), img.TimesShown, img.LastShownAt)
		if err != nil {
			return integrity("upsert image", err)
		}
		return nil
	})
}

func nullInt(v int, ok bool) interface{} {
	if !ok {
		return nil
	}
	return v
}

func nullFloat(v float64, ok bool) interface{} {
	if !ok {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// upsertSourceStub ensures a sources row exists, without touching its
// counters, so a FK from images can always be satisfied.
func upsertSourceStub(tx *sql.Tx, sourceID string) error {
	_, err := tx.Exec(`INSERT INTO sources (source_id, source_type) VALUES (?, '') ON CONFLICT(source_id) DO NOTHING`, sourceID)
	if err != nil {
		return integrity("upsert source stub", err)
	}
	return nil
}

// UpsertSource inserts or updates a source's type, without touching its
// display counters, matching the Indexer's "upsert when first image from
// that source is seen" lifecycle (spec.md §3).
func (s *Store) UpsertSource(ctx context.Context, sourceID, sourceType string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sources (source_id, source_type) VALUES (?, ?)
			ON CONFLICT(source_id) DO UPDATE SET source_type = excluded.source_type
		`, sourceID, sourceType)
		if err != nil {
			return integrity("upsert source", err)
		}
		return nil
	})
}

// GetSource returns the source row for sourceID, or (nil, nil) if it does
// not exist, mirroring GetImage's optional-return contract. Used by the
// Weight Engine's source-balance factor.
func (s *Store) GetSource(ctx context.Context, sourceID string) (*SourceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT source_id, source_type, COALESCE(last_shown_at, 0), times_shown
		FROM sources WHERE source_id = ?
	`, sourceID)

	var rec SourceRecord
	if err := row.Scan(&rec.SourceID, &rec.SourceType, &rec.LastShownAt, &rec.TimesShown); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, ioErr("get source", err)
	}
	return &rec, nil
}

// GetMostRecentlyShownImage returns the filepath of the image with the
// most recent last_shown_at, or ("", nil) if nothing has ever been shown.
// Used by the apply-theme CLI's "current" shorthand, since the host
// rotator does not hand the current wallpaper path to us directly.
func (s *Store) GetMostRecentlyShownImage(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT filepath FROM images
		WHERE last_shown_at IS NOT NULL
		ORDER BY last_shown_at DESC LIMIT 1
	`)
	var fp string
	if err := row.Scan(&fp); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", ioErr("get most recently shown image", err)
	}
	return fp, nil
}

// GetImage returns the image at filepath, or (nil, nil) if it does not
// exist — matching spec.md §4.1's "ImageRecord?" optional-return contract.
func (s *Store) GetImage(ctx context.Context, filepath string) (*ImageRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT filepath, filename, COALESCE(source_id, ''), width, height, aspect_ratio, file_mtime, is_favorite, times_shown, COALESCE(last_shown_at, 0)
		FROM images WHERE filepath = ?
	`, filepath)
	img, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr("get image", err)
	}
	return img, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanImage(row rowScanner) (*ImageRecord, error) {
	var img ImageRecord
	var width, height sql.NullInt64
	var aspect sql.NullFloat64
	var favorite int
	if err := row.Scan(&img.Filepath, &img.Filename, &img.SourceID, &width, &height, &aspect, &img.FileMtime, &favorite, &img.TimesShown, &img.LastShownAt); err != nil {
		return nil, err
	}
	img.IsFavorite = favorite != 0
	if width.Valid && height.Valid {
		img.Width = int(width.Int64)
		img.Height = int(height.Int64)
		img.AspectRatio = aspect.Float64
		img.HasDimension = true
	}
	return &img, nil
}

// QueryImages returns images matching filter. Unrecognized field
// combinations are never silently dropped: every non-zero predicate is
// ANDed in; a filter that can never match (e.g. an empty SourceIDs set
// passed as non-nil) returns an empty result, not an error.
func (s *Store) QueryImages(ctx context.Context, filter ImageFilter) ([]ImageRecord, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT filepath, filename, COALESCE(source_id, ''), width, height, aspect_ratio, file_mtime, is_favorite, times_shown, COALESCE(last_shown_at, 0)
		FROM images WHERE 1=1
	`)
	var args []interface{}

	if filter.SourceIDs != nil {
		if len(filter.SourceIDs) == 0 {
			return []ImageRecord{}, nil
		}
		placeholders := make([]string, len(filter.SourceIDs))
		for i, id := range filter.SourceIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query.WriteString(" AND source_id IN (" + strings.Join(placeholders, ",") + ")")
	}
	if filter.FavoritesOnly {
		query.WriteString(" AND is_favorite = 1")
	}
	if filter.MinAspect != nil {
		query.WriteString(" AND aspect_ratio >= ?")
		args = append(args, *filter.MinAspect)
	}
	if filter.MaxAspect != nil {
		query.WriteString(" AND aspect_ratio <= ?")
		args = append(args, *filter.MaxAspect)
	}
	if filter.ExcludeShownWithin != nil {
		query.WriteString(" AND (last_shown_at IS NULL OR last_shown_at <= ?)")
		args = append(args, time.Now().Unix()-*filter.ExcludeShownWithin)
	}
	query.WriteString(" ORDER BY filepath")
	if filter.Limit != nil {
		query.WriteString(" LIMIT ?")
		args = append(args, *filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, ioErr("query images", err)
	}
	defer rows.Close()

	var out []ImageRecord
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, ioErr("scan image row", err)
		}
		out = append(out, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("iterate image rows", err)
	}
	return out, nil
}

// SetFavorite flips the favorite flag for an image, independent of any
// other upsert — a distinct mutation path since upsert_image otherwise
// preserves is_favorite (SPEC_FULL.md supplemented feature).
func (s *Store) SetFavorite(ctx context.Context, filepath string, favorite bool) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE images SET is_favorite = ? WHERE filepath = ?`, boolToInt(favorite), filepath)
		if err != nil {
			return integrity("set favorite", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return notFound("image not found: " + filepath)
		}
		return nil
	})
}

// RecordImageShown atomically increments the image's times_shown, sets
// last_shown_at=now, appends a DisplayEvent, and bumps the parent
// SourceRecord's counters — all in one transaction (spec.md §4.1).
func (s *Store) RecordImageShown(ctx context.Context, path string) error {
	now := time.Now().Unix()
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var sourceID sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT source_id FROM images WHERE filepath = ?`, path).Scan(&sourceID)
		if err == sql.ErrNoRows {
			return notFound("image not found: " + path)
		}
		if err != nil {
			return ioErr("lookup image for record_shown", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE images SET times_shown = times_shown + 1, last_shown_at = ? WHERE filepath = ?
		`, now, path); err != nil {
			return integrity("increment image counters", err)
		}

		if sourceID.Valid && sourceID.String != "" {
			if _, err := tx.ExecContext(ctx, `
				UPDATE sources SET times_shown = times_shown + 1, last_shown_at = ? WHERE source_id = ?
			`, now, sourceID.String); err != nil {
				return integrity("increment source counters", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO display_events (filepath, shown_at, source_id) VALUES (?, ?, NULLIF(?, ''))
		`, path, now, sourceID.String); err != nil {
			return integrity("append display event", err)
		}
		return nil
	})
}

// UpsertPalette inserts or replaces the palette for rec.Filepath. The
// parent image must already exist (FK enforced).
func (s *Store) UpsertPalette(ctx context.Context, rec PaletteRecord) error {
	if rec.Colors[0] == "" {
		return &Error{Kind: KindIntegrity, Message: "palette missing required color0"}
	}
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		cols := make([]interface{}, 0, 21)
		cols = append(cols, rec.Filepath)
		for _, c := range rec.Colors {
			if c == "" {
				cols = append(cols, nil)
			} else {
				cols = append(cols, c)
			}
		}
		cols = append(cols, rec.AvgHue, rec.AvgSaturation, rec.AvgLightness, rec.ColorTemperature, nullInt64(rec.ExtractedAt))

		_, err := tx.ExecContext(ctx, `
			INSERT INTO palettes (filepath, color0, color1, color2, color3, color4, color5, color6, color7, color8, color9, color10, color11, color12, color13, color14, color15, avg_hue, avg_saturation, avg_lightness, color_temperature, extracted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(filepath) DO UPDATE SET
				color0 = excluded.color0, color1 = excluded.color1, color2 = excluded.color2, color3 = excluded.color3,
				color4 = excluded.color4, color5 = excluded.color5, color6 = excluded.color6, color7 = excluded.color7,
				color8 = excluded.color8, color9 = excluded.color9, color10 = excluded.color10, color11 = excluded.color11,
				color12 = excluded.color12, color13 = excluded.color13, color14 = excluded.color14, color15 = excluded.color15,
				avg_hue = excluded.avg_hue, avg_saturation = excluded.avg_saturation, avg_lightness = excluded.avg_lightness,
				color_temperature = excluded.color_temperature, extracted_at = excluded.extracted_at
		`, cols...)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY") {
				return notFound("parent image not found for palette: " + rec.Filepath)
			}
			return integrity("upsert palette", err)
		}
		return nil
	})
}

func nullInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

// GetPalette returns the palette for filepath, or (nil, nil) if absent.
func (s *Store) GetPalette(ctx context.Context, filepath string) (*PaletteRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT filepath, color0, color1, color2, color3, color4, color5, color6, color7, color8, color9, color10, color11, color12, color13, color14, color15, avg_hue, avg_saturation, avg_lightness, color_temperature, COALESCE(extracted_at, 0)
		FROM palettes WHERE filepath = ?
	`, filepath)
	rec, err := scanPalette(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr("get palette", err)
	}
	return rec, nil
}

func scanPalette(row rowScanner) (*PaletteRecord, error) {
	var rec PaletteRecord
	colors := make([]sql.NullString, 16)
	dest := []interface{}{&rec.Filepath}
	for i := range colors {
		dest = append(dest, &colors[i])
	}
	dest = append(dest, &rec.AvgHue, &rec.AvgSaturation, &rec.AvgLightness, &rec.ColorTemperature, &rec.ExtractedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for i, c := range colors {
		if c.Valid {
			rec.Colors[i] = c.String
		}
	}
	return &rec, nil
}

// ImagesWithoutPalette returns up to limit filepaths that have no palette
// row yet, backing extract_all_palettes's batch backfill (SPEC_FULL.md).
func (s *Store) ImagesWithoutPalette(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as "no limit"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT images.filepath FROM images
		LEFT JOIN palettes ON palettes.filepath = images.filepath
		WHERE palettes.filepath IS NULL
		ORDER BY images.filepath
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, ioErr("query images without palette", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, ioErr("scan filepath", err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// GetStatistics returns the aggregate counters in one round trip.
func (s *Store) GetStatistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&stats.ImageCount)
	if err != nil {
		return stats, ioErr("count images", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&stats.SourceCount); err != nil {
		return stats, ioErr("count sources", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM palettes`).Scan(&stats.ImagesWithPaletteCnt); err != nil {
		return stats, ioErr("count images with palettes", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(times_shown), 0) FROM images`).Scan(&stats.SumTimesShown); err != nil {
		return stats, ioErr("sum times shown", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE times_shown > 0`).Scan(&stats.ShownImageCount); err != nil {
		return stats, ioErr("count shown images", err)
	}
	return stats, nil
}

// ClearHistory zeroes times_shown, nulls last_shown_at, and truncates the
// display-event log, atomically (spec.md §4.1, invariant 3).
func (s *Store) ClearHistory(ctx context.Context) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE images SET times_shown = 0, last_shown_at = NULL`); err != nil {
			return integrity("clear image history", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sources SET times_shown = 0, last_shown_at = NULL`); err != nil {
			return integrity("clear source history", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM display_events`); err != nil {
			return integrity("truncate display events", err)
		}
		return nil
	})
}

// DeleteAllImages removes every image, cascading palettes via the FK and
// clearing the display-event log (events have no FK, so they're deleted
// explicitly).
func (s *Store) DeleteAllImages(ctx context.Context) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM images`); err != nil {
			return integrity("delete all images", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM display_events`); err != nil {
			return integrity("delete display events", err)
		}
		return nil
	})
}

// ReplaceAllImages performs the rebuild coordinator's atomic swap
// (spec.md §4.8): delete_all_images then upsert every record in images,
// all within one transaction so readers never observe a partial state.
// sourceTypes maps each distinct source_id encountered to its type.
func (s *Store) ReplaceAllImages(ctx context.Context, images []ImageRecord, sourceTypes map[string]string) error {
	runID := uuid.NewString()
	log.Infof("catalog: rebuild run %s replacing catalog with %d images", runID, len(images))
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM images`); err != nil {
			return integrity("rebuild: delete all images", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM display_events`); err != nil {
			return integrity("rebuild: delete display events", err)
		}
		for id, typ := range sourceTypes {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sources (source_id, source_type) VALUES (?, ?)
				ON CONFLICT(source_id) DO UPDATE SET source_type = excluded.source_type
			`, id, typ); err != nil {
				return integrity("rebuild: upsert source", err)
			}
		}
		for _, img := range images {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO images (filepath, filename, source_id, width, height, aspect_ratio, file_mtime, is_favorite, times_shown, last_shown_at)
				VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, NULLIF(?, 0))
			`, img.Filepath, img.Filename, img.SourceID, nullInt(img.Width, img.HasDimension), nullInt(img.Height, img.HasDimension), nullFloat(img.AspectRatio, img.HasDimension), img.FileMtime, boolToInt(img.IsFavorite), img.TimesShown, img.LastShownAt)
			if err != nil {
				return integrity("rebuild: insert image", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Warnf("catalog: rebuild run %s failed: %v", runID, err)
	} else {
		log.Infof("catalog: rebuild run %s committed", runID)
	}
	return err
}
