package theming

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dixieflatline76/smartselect/catalog"
	"github.com/dixieflatline76/smartselect/colormodel"
	"github.com/dixieflatline76/smartselect/util/log"
)

// DefaultReloadTimeout bounds how long a reload command may run, per
// spec.md §4.7 step 3's "default 10 s".
const DefaultReloadTimeout = 10 * time.Second

// debounceDuration is the trailing-debounce window for automatic
// applies, per spec.md §4.7's "100 ms trailing debounce guarded by a
// mutex", grounded on the teacher's scheduleSaveLocked/saveTimer pattern.
const debounceDuration = 100 * time.Millisecond

// sourceCacheEntry mtime-validates a template's source content, matching
// heimdall-cli's TemplateCache (read-through cache invalidated on mtime
// change rather than on every render).
type sourceCacheEntry struct {
	modTime time.Time
	content string
}

// Engine renders templates from the current wallpaper's palette and
// invokes reload commands, per spec.md §4.7.
type Engine struct {
	store *catalog.Store
	cfg   ThemingConfig

	reloadTimeout time.Duration

	mu            sync.Mutex
	sourceCache   map[string]sourceCacheEntry
	lastColors    map[string]string // template name -> last rendered color0, for the equivalence check
	lastWallpaper string            // most recently applied wallpaper path, for watcher-triggered re-applies

	debounceMu sync.Mutex
	timer      *time.Timer

	watcher *fsnotify.Watcher
}

// New creates an Engine backed by store and cfg (the loaded theming.json
// template list).
func New(store *catalog.Store, cfg ThemingConfig) *Engine {
	return &Engine{
		store:         store,
		cfg:           cfg,
		reloadTimeout: DefaultReloadTimeout,
		sourceCache:   make(map[string]sourceCacheEntry),
		lastColors:    make(map[string]string),
	}
}

// SetReloadTimeout overrides the per-command reload timeout.
func (e *Engine) SetReloadTimeout(d time.Duration) {
	if d > 0 {
		e.reloadTimeout = d
	}
}

// Apply implements spec.md §4.7's rendering protocol synchronously: look
// up the palette, render every template, write atomically, and invoke
// reload commands for templates whose content changed.
func (e *Engine) Apply(ctx context.Context, wallpaperPath string) error {
	e.mu.Lock()
	e.lastWallpaper = wallpaperPath
	e.mu.Unlock()

	pal, err := e.store.GetPalette(ctx, wallpaperPath)
	if err != nil {
		log.Warnf("theming: failed to look up palette for %s: %v", wallpaperPath, err)
		return nil
	}
	if pal == nil {
		log.Infof("theming: no palette for %s yet, skipping theme apply", wallpaperPath)
		return nil
	}

	vars := BuildPaletteVars(pal.Colors, "", "", "")

	for _, tmpl := range e.cfg.Templates {
		if err := e.applyOne(ctx, tmpl, vars); err != nil {
			log.Warnf("theming: template %q failed: %v", tmpl.Name, err)
		}
	}
	return nil
}

// ApplyDebounced collapses bursts of automatic wallpaper-change triggers
// into a single Apply 100ms after the last call, per spec.md §4.7's
// debouncing rule. CLI one-shot callers should use Apply directly to
// bypass debouncing.
func (e *Engine) ApplyDebounced(ctx context.Context, wallpaperPath string) {
	e.debounceMu.Lock()
	defer e.debounceMu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(debounceDuration, func() {
		if err := e.Apply(ctx, wallpaperPath); err != nil {
			log.Warnf("theming: debounced apply failed: %v", err)
		}
	})
}

// Cleanup cancels any pending debounce timer and stops the template
// watcher, if one was started. Idempotent under repeated calls, per
// spec.md §4.7's cleanup contract.
func (e *Engine) Cleanup() {
	e.debounceMu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.debounceMu.Unlock()

	e.mu.Lock()
	w := e.watcher
	e.watcher = nil
	e.mu.Unlock()
	if w != nil {
		w.Close()
	}
}

// Watch starts an fsnotify watcher on every template source's directory and
// triggers a debounced re-apply against the most recently applied wallpaper
// whenever a source file is written or created, so edits to a template take
// effect without waiting for the next wallpaper change. It runs until ctx is
// cancelled or Cleanup is called. Grounded on the teacher's
// pkg/wallpaper/config.go hot-reload use of fsnotify for config files,
// generalized here to template sources.
func (e *Engine) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}

	dirs := make(map[string]bool)
	for _, tmpl := range e.cfg.Templates {
		dirs[filepath.Dir(tmpl.SourcePath)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			log.Warnf("theming: failed to watch template directory %s: %v", dir, err)
		}
	}

	e.mu.Lock()
	e.watcher = watcher
	e.mu.Unlock()

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				e.mu.Lock()
				wallpaper := e.lastWallpaper
				e.mu.Unlock()
				if wallpaper == "" {
					continue
				}
				log.Infof("theming: template source %s changed, re-applying", event.Name)
				e.ApplyDebounced(ctx, wallpaper)
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("theming: template watcher error: %v", watchErr)
			}
		}
	}()
	return nil
}

// applyOne renders and atomically writes a single template, invoking its
// reload command only if the rendered color content actually changed.
func (e *Engine) applyOne(ctx context.Context, tmpl TemplateDescriptor, vars PaletteVars) error {
	src, err := e.readSourceCached(tmpl.SourcePath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	rendered := Render(src, vars)

	changed := e.contentChanged(tmpl.Name, vars)
	if err := atomicWrite(tmpl.DestPath, []byte(rendered)); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}
	e.recordRenderedColor(tmpl.Name, vars)

	if !changed {
		return nil
	}
	if tmpl.ReloadCommand == "" {
		return nil
	}
	return e.invokeReload(ctx, tmpl.ReloadCommand)
}

// readSourceCached reads a template source file, reusing the cached
// content when the file's mtime is unchanged (spec.md §4.7 step 2a).
func (e *Engine) readSourceCached(path string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if entry, ok := e.sourceCache[path]; ok && entry.modTime.Equal(info.ModTime()) {
		return entry.content, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	e.sourceCache[path] = sourceCacheEntry{modTime: info.ModTime(), content: string(data)}
	return string(data), nil
}

// contentChanged compares the primary color against the previous
// successful render for this template (spec.md §4.7 step 2d), using
// colormodel.ColorsEquivalent with a small tolerance. It does not record
// the current color — callers must call recordRenderedColor once the
// render has actually been written, so a failed write doesn't poison the
// "previous successful render" comparison for the next attempt.
func (e *Engine) contentChanged(name string, vars PaletteVars) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.lastColors[name]
	if !ok {
		return true
	}
	return !colormodel.ColorsEquivalent(prev, vars["color0"], 0.01)
}

// recordRenderedColor records the color just written to tmpl.DestPath as
// the new "previous successful render" baseline, to be called only after
// atomicWrite has succeeded.
func (e *Engine) recordRenderedColor(name string, vars PaletteVars) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastColors[name] = vars["color0"]
}

// atomicWrite implements spec.md §4.7 step 2c: create a sibling temp
// file on the same filesystem, write+fsync, then rename; on any failure
// remove the temp file and leave the destination untouched. Grounded on
// the teacher's saveCacheInternalOriginalLocked (temp file + os.Rename)
// generalized to fsync before rename.
func atomicWrite(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".theming-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// invokeReload runs the configured reload command via sh -c with a bounded
// timeout, per spec.md §4.7 step 3. Commands are trusted (sourced from
// config); no whitelist is applied.
func (e *Engine) invokeReload(ctx context.Context, command string) error {
	runCtx, cancel := context.WithTimeout(ctx, e.reloadTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("reload command timed out after %s", e.reloadTimeout)
		}
		return fmt.Errorf("reload command failed: %w", err)
	}
	return nil
}
