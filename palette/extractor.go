// Package palette implements the Palette Extractor: it shells out to an
// external color-analysis tool (wallust-shaped) on an image path and
// parses the tool's own cache output into a normalized palette record,
// degrading to nil on any failure rather than erroring.
//
// Grounded on the teacher's os/exec dispatch style (pkg/wallpaper's OS
// abstraction, wallpaper/linux.go's exec.Command + error wrapping) and
// adewale-olsen's indexer (external-tool-then-cache-scan pattern).
package palette

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dixieflatline76/smartselect/catalog"
	"github.com/dixieflatline76/smartselect/colormodel"
	"github.com/dixieflatline76/smartselect/util/log"
)

// DefaultTimeout bounds how long the external tool may run, per spec.md
// §4.3.
const DefaultTimeout = 30 * time.Second

// cacheFreshnessWindow bounds how old a cache match can be relative to
// t0, per spec.md §4.3 step 4 and §5's "5-second freshness window".
const cacheFreshnessWindow = 5 * time.Second

// Config configures the Extractor.
type Config struct {
	// ToolName is the executable looked up on PATH (default "wallust").
	ToolName string
	// CacheDir is the directory the tool writes its palette cache files
	// into (e.g. "~/.cache/wallust"). Expanded with config.ExpandUser by
	// the caller before being set here.
	CacheDir string
	// PaletteTypeTag is matched against cache file names (e.g. "dark16").
	PaletteTypeTag string
	// Timeout bounds the subprocess run; defaults to DefaultTimeout.
	Timeout time.Duration
}

// Extractor invokes the external color tool and normalizes its output.
// It is stateless and safe for concurrent use provided the external tool
// itself tolerates concurrent invocation; callers that need serialized
// palette-on-show behavior (the Selector) provide their own lock.
type Extractor struct {
	cfg Config

	// available caches whether ToolName was found on PATH, invalidated
	// by InvalidateAvailability. 0 = unknown, 1 = available, 2 = absent.
	available int32
}

const (
	availUnknown int32 = iota
	availYes
	availNo
)

// New creates an Extractor from cfg, defaulting ToolName/Timeout.
func New(cfg Config) *Extractor {
	if cfg.ToolName == "" {
		cfg.ToolName = "wallust"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Extractor{cfg: cfg}
}

// Available reports whether the external tool is on PATH, caching the
// result per-process until InvalidateAvailability is called (spec.md §9:
// "per-process availability cached inside the Palette Extractor with an
// invalidation on explicit request").
func (e *Extractor) Available() bool {
	switch atomic.LoadInt32(&e.available) {
	case availYes:
		return true
	case availNo:
		return false
	}
	_, err := exec.LookPath(e.cfg.ToolName)
	if err != nil {
		atomic.StoreInt32(&e.available, availNo)
		log.Infof("palette: tool %q not found on PATH", e.cfg.ToolName)
		return false
	}
	atomic.StoreInt32(&e.available, availYes)
	return true
}

// InvalidateAvailability forces the next Available call to re-probe PATH.
func (e *Extractor) InvalidateAvailability() {
	atomic.StoreInt32(&e.available, availUnknown)
}

// Extract runs the external tool against imagePath and returns a
// normalized PaletteRecord, or nil if the tool is not on PATH or
// extraction failed for any other documented reason — a missing or
// misbehaving tool disables palette features entirely rather than
// degrading to a synthesized substitute.
func (e *Extractor) Extract(ctx context.Context, imagePath string) *catalog.PaletteRecord {
	if !e.Available() {
		return nil
	}

	t0 := time.Now()

	timeout := e.cfg.Timeout
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.cfg.ToolName, imagePath)
	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			log.Warnf("palette: tool timed out after %s for %s", timeout, imagePath)
		} else {
			log.Warnf("palette: tool crashed for %s: %v", imagePath, err)
		}
		return nil
	}

	path, err := e.findCacheFile(t0)
	if err != nil {
		log.Debugf("palette: no matching cache file for %s within freshness window: %v", imagePath, err)
		return nil
	}

	rec, err := e.parseCacheFile(path)
	if err != nil {
		log.Warnf("palette: malformed cache file %s: %v", path, err)
		return nil
	}
	rec.Filepath = imagePath
	rec.ExtractedAt = time.Now().Unix()
	return rec
}

// findCacheFile scans CacheDir for the most recently modified file whose
// name contains PaletteTypeTag and whose mtime is >= t0-1s, within a 5s
// age window from now, per spec.md §4.3 step 4.
func (e *Extractor) findCacheFile(t0 time.Time) (string, error) {
	entries, err := os.ReadDir(e.cfg.CacheDir)
	if err != nil {
		return "", fmt.Errorf("cache dir absent: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	cutoff := t0.Add(-1 * time.Second)
	ageLimit := time.Now().Add(-cacheFreshnessWindow)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if e.cfg.PaletteTypeTag != "" && !strings.Contains(entry.Name(), e.cfg.PaletteTypeTag) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}
		if info.ModTime().Before(ageLimit) {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(e.cfg.CacheDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no matching cache file within freshness window")
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	return candidates[0].path, nil
}

// parseCacheFile loads and normalizes a palette cache file. The tool's
// cache file may take either of two top-level shapes: a flat object
// mapping color0..color15 to a color value, or an indexed list (or a
// numerically-keyed object) of color values ordered by slot position.
func (e *Extractor) parseCacheFile(path string) (*catalog.PaletteRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var top interface{}
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("unmarshal cache file: %w", err)
	}

	var slots [16]string
	switch v := top.(type) {
	case []interface{}:
		for i, item := range v {
			if i >= 16 {
				break
			}
			if hex, ok := flattenColor(item); ok {
				slots[i] = strings.ToUpper(hex)
			}
		}
	case map[string]interface{}:
		found := 0
		for i := 0; i < 16; i++ {
			if hex, ok := flattenColor(v["color"+strconv.Itoa(i)]); ok {
				slots[i] = strings.ToUpper(hex)
				found++
			}
		}
		if found == 0 {
			// Indexed shape keyed by position ("0".."15") rather than the
			// flat "colorN" naming.
			for i := 0; i < 16; i++ {
				if hex, ok := flattenColor(v[strconv.Itoa(i)]); ok {
					slots[i] = strings.ToUpper(hex)
				}
			}
		}
	default:
		return nil, fmt.Errorf("unrecognized cache file shape")
	}

	if slots[0] == "" {
		return nil, fmt.Errorf("missing required color0")
	}

	hues := make([]float64, 0, 16)
	var satSum, lightSum float64
	hexColors := make([]string, 0, 16)
	for _, c := range slots {
		if c == "" {
			continue
		}
		hsl := colormodel.HexToHSL(c)
		hues = append(hues, hsl.H)
		satSum += hsl.S
		lightSum += hsl.L
		hexColors = append(hexColors, c)
	}
	if len(hexColors) < 2 {
		return nil, fmt.Errorf("insufficient colors extracted")
	}

	var rec catalog.PaletteRecord
	rec.Colors = slots
	rec.AvgHue = colormodel.CircularHueMean(hues)
	rec.AvgSaturation = satSum / float64(len(hexColors))
	rec.AvgLightness = lightSum / float64(len(hexColors))
	rec.ColorTemperature = colormodel.ColorTemperature(hexColors)

	return &rec, nil
}

// flattenColor normalizes either a "#RRGGBB" string or an [r,g,b] triple
// (as float64s, the way encoding/json decodes JSON numbers) into a hex
// string.
func flattenColor(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return "", false
		}
		if !strings.HasPrefix(val, "#") {
			val = "#" + val
		}
		return val, true
	case []interface{}:
		if len(val) != 3 {
			return "", false
		}
		r, ok1 := val[0].(float64)
		g, ok2 := val[1].(float64)
		b, ok3 := val[2].(float64)
		if !ok1 || !ok2 || !ok3 {
			return "", false
		}
		return colormodel.RGBToHex(colormodel.RGB{R: uint8(r), G: uint8(g), B: uint8(b)}), true
	case map[string]interface{}:
		r, ok1 := val["r"].(float64)
		g, ok2 := val["g"].(float64)
		b, ok3 := val["b"].(float64)
		if !ok1 || !ok2 || !ok3 {
			return "", false
		}
		return colormodel.RGBToHex(colormodel.RGB{R: uint8(r), G: uint8(g), B: uint8(b)}), true
	default:
		return "", false
	}
}
