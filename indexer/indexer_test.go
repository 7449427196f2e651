package indexer

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dixieflatline76/smartselect/catalog"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWalkIndexesSupportedFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 16, 9)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	s := openTestStore(t)
	idx := New(s, nil)

	var lastDone, lastTotal int
	count, err := idx.Walk(ctx, []string{dir}, func(done, total int) {
		lastDone, lastTotal = done, total
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, lastTotal)
	assert.LessOrEqual(t, lastDone, lastTotal)

	got, err := s.GetImage(ctx, filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 16, got.Width)
	assert.Equal(t, 9, got.Height)
	assert.True(t, got.HasDimension)
}

func TestWalkSkipsUnchangedFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 4, 4)

	s := openTestStore(t)
	idx := New(s, nil)

	_, err := idx.Walk(ctx, []string{dir}, nil)
	require.NoError(t, err)
	require.NoError(t, s.RecordImageShown(ctx, path))

	_, err = idx.Walk(ctx, []string{dir}, nil)
	require.NoError(t, err)

	got, err := s.GetImage(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TimesShown, "re-walking an unchanged file must preserve history")
}

func TestWalkToleratesCorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not a real png"), 0o644))
	writePNG(t, filepath.Join(dir, "good.png"), 8, 8)

	s := openTestStore(t)
	idx := New(s, nil)

	count, err := idx.Walk(ctx, []string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "a corrupt image still gets a catalog row, just without dimensions")

	bad, err := s.GetImage(ctx, filepath.Join(dir, "bad.png"))
	require.NoError(t, err)
	require.NotNil(t, bad)
	assert.False(t, bad.HasDimension)
}

func TestWalkResolvesSourceID(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 4, 4)

	s := openTestStore(t)
	resolver := func(dirPath string) (string, string, bool) {
		return "favorites", "local", true
	}
	idx := New(s, resolver)

	_, err := idx.Walk(ctx, []string{dir}, nil)
	require.NoError(t, err)

	got, err := s.GetImage(ctx, filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "favorites", got.SourceID)
}

func TestWalkNonexistentFolderIsNotFatal(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	idx := New(s, nil)
	count, err := idx.Walk(ctx, []string{filepath.Join(t.TempDir(), "ghost")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644))

	files := DiscoverFiles([]string{dir})
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "a.png"), files[0])
}

func TestBuildRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 10, 5)

	rec, err := BuildRecord(path, func(string) (string, string, bool) { return "src", "local", true })
	require.NoError(t, err)
	assert.Equal(t, "src", rec.SourceID)
	assert.Equal(t, 10, rec.Width)
	assert.Equal(t, 5, rec.Height)
	assert.Equal(t, 0, rec.TimesShown)
}
