package theming

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dixieflatline76/smartselect/catalog"
)

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApplySkipsWithoutPalette(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertImage(ctx, catalog.ImageRecord{Filepath: "/a.jpg", Filename: "a.jpg"}))
	e := New(s, ThemingConfig{})

	err := e.Apply(ctx, "/a.jpg")
	assert.NoError(t, err)
}

func TestApplyRendersAndWritesAtomically(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertImage(ctx, catalog.ImageRecord{Filepath: "/a.jpg", Filename: "a.jpg"}))
	rec := catalog.PaletteRecord{Filepath: "/a.jpg"}
	rec.Colors[0] = "#112233"
	require.NoError(t, s.UpsertPalette(ctx, rec))

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.tmpl")
	destPath := filepath.Join(dir, "out", "dest.conf")
	require.NoError(t, os.WriteFile(srcPath, []byte("color={{ color0 }}"), 0o644))

	e := New(s, ThemingConfig{Templates: []TemplateDescriptor{
		{Name: "t1", SourcePath: srcPath, DestPath: destPath},
	}})

	require.NoError(t, e.Apply(ctx, "/a.jpg"))

	content, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, "color=#112233", string(content))
}

func TestApplyInvokesReloadOnChange(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertImage(ctx, catalog.ImageRecord{Filepath: "/a.jpg", Filename: "a.jpg"}))
	rec := catalog.PaletteRecord{Filepath: "/a.jpg"}
	rec.Colors[0] = "#112233"
	require.NoError(t, s.UpsertPalette(ctx, rec))

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.tmpl")
	destPath := filepath.Join(dir, "dest.conf")
	require.NoError(t, os.WriteFile(srcPath, []byte("{{ color0 }}"), 0o644))
	marker := filepath.Join(dir, "reloaded")

	e := New(s, ThemingConfig{Templates: []TemplateDescriptor{
		{Name: "t1", SourcePath: srcPath, DestPath: destPath, ReloadCommand: "touch " + marker},
	}})

	require.NoError(t, e.Apply(ctx, "/a.jpg"))
	_, err := os.Stat(marker)
	assert.NoError(t, err, "first apply always counts as changed and should trigger reload")
}

func TestApplySkipsReloadWhenColorUnchanged(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertImage(ctx, catalog.ImageRecord{Filepath: "/a.jpg", Filename: "a.jpg"}))
	rec := catalog.PaletteRecord{Filepath: "/a.jpg"}
	rec.Colors[0] = "#112233"
	require.NoError(t, s.UpsertPalette(ctx, rec))

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.tmpl")
	destPath := filepath.Join(dir, "dest.conf")
	require.NoError(t, os.WriteFile(srcPath, []byte("{{ color0 }}"), 0o644))
	marker := filepath.Join(dir, "reloaded")

	e := New(s, ThemingConfig{Templates: []TemplateDescriptor{
		{Name: "t1", SourcePath: srcPath, DestPath: destPath, ReloadCommand: "sh -c 'echo 1 >> " + marker + "'"},
	}})

	require.NoError(t, e.Apply(ctx, "/a.jpg"))
	require.NoError(t, e.Apply(ctx, "/a.jpg"))

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(data), "second identical apply must not re-invoke reload")
}

func TestApplyOneBadTemplateDoesNotAbortOthers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertImage(ctx, catalog.ImageRecord{Filepath: "/a.jpg", Filename: "a.jpg"}))
	rec := catalog.PaletteRecord{Filepath: "/a.jpg"}
	rec.Colors[0] = "#112233"
	require.NoError(t, s.UpsertPalette(ctx, rec))

	dir := t.TempDir()
	goodSrc := filepath.Join(dir, "good.tmpl")
	goodDest := filepath.Join(dir, "good.conf")
	require.NoError(t, os.WriteFile(goodSrc, []byte("{{ color0 }}"), 0o644))

	e := New(s, ThemingConfig{Templates: []TemplateDescriptor{
		{Name: "bad", SourcePath: filepath.Join(dir, "does-not-exist.tmpl"), DestPath: filepath.Join(dir, "bad.conf")},
		{Name: "good", SourcePath: goodSrc, DestPath: goodDest},
	}})

	require.NoError(t, e.Apply(ctx, "/a.jpg"))

	content, err := os.ReadFile(goodDest)
	require.NoError(t, err)
	assert.Equal(t, "#112233", string(content))
}

func TestApplyDebouncedCollapsesBursts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertImage(ctx, catalog.ImageRecord{Filepath: "/a.jpg", Filename: "a.jpg"}))
	rec := catalog.PaletteRecord{Filepath: "/a.jpg"}
	rec.Colors[0] = "#112233"
	require.NoError(t, s.UpsertPalette(ctx, rec))

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.tmpl")
	destPath := filepath.Join(dir, "dest.conf")
	require.NoError(t, os.WriteFile(srcPath, []byte("{{ color0 }}"), 0o644))

	e := New(s, ThemingConfig{Templates: []TemplateDescriptor{
		{Name: "t1", SourcePath: srcPath, DestPath: destPath},
	}})

	for i := 0; i < 5; i++ {
		e.ApplyDebounced(ctx, "/a.jpg")
	}

	time.Sleep(250 * time.Millisecond)
	_, err := os.Stat(destPath)
	assert.NoError(t, err)
}

func TestCleanupCancelsPendingTimer(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	e := New(s, ThemingConfig{})

	e.ApplyDebounced(ctx, "/a.jpg")
	e.Cleanup()
	e.Cleanup() // idempotent
}

func TestWatchReappliesOnSourceChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := openTestStore(t)
	require.NoError(t, s.UpsertImage(ctx, catalog.ImageRecord{Filepath: "/a.jpg", Filename: "a.jpg"}))
	rec := catalog.PaletteRecord{Filepath: "/a.jpg"}
	rec.Colors[0] = "#112233"
	require.NoError(t, s.UpsertPalette(ctx, rec))

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.tmpl")
	destPath := filepath.Join(dir, "dest.conf")
	require.NoError(t, os.WriteFile(srcPath, []byte("{{ color0 }}"), 0o644))

	e := New(s, ThemingConfig{Templates: []TemplateDescriptor{
		{Name: "t1", SourcePath: srcPath, DestPath: destPath},
	}})
	defer e.Cleanup()

	require.NoError(t, e.Apply(ctx, "/a.jpg"))
	require.NoError(t, e.Watch(ctx))

	// Touching the source after the watcher starts should trigger a
	// debounced re-apply even without another explicit Apply call.
	require.NoError(t, os.WriteFile(srcPath, []byte("changed-{{ color0 }}"), 0o644))

	require.Eventually(t, func() bool {
		content, err := os.ReadFile(destPath)
		return err == nil && string(content) == "changed-#112233"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAtomicWriteLeavesDestinationUntouchedOnFailure(t *testing.T) {
	dir := t.TempDir()
	// The destination is an existing directory, so the final rename fails
	// after the temp file has been written and synced; the destination
	// must survive unchanged and no temp file may be left behind.
	dest := filepath.Join(dir, "dest.conf")
	require.NoError(t, os.Mkdir(dest, 0o755))
	original := filepath.Join(dest, "original")
	require.NoError(t, os.WriteFile(original, []byte("original"), 0o644))

	err := atomicWrite(dest, []byte("new"))
	assert.Error(t, err)

	content, readErr := os.ReadFile(original)
	require.NoError(t, readErr)
	assert.Equal(t, "original", string(content))

	leftovers, globErr := filepath.Glob(filepath.Join(dir, ".theming-*.tmp"))
	require.NoError(t, globErr)
	assert.Empty(t, leftovers)
}
