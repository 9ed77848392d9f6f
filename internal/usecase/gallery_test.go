package usecase

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/internal/domain"
)

func TestGallery_List(t *testing.T) {
	f := newFixture(t, 2)
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		writeImage(t, f.imageDir, name, red)
	}

	listing, err := f.gallery.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c.png", "d.png", "a.png", "b.png"}, listing.Images)
	assert.Equal(t, []string{"a.png", "b.png"}, listing.OriginalImages)
}

func TestGallery_ListEmpty(t *testing.T) {
	f := newFixture(t, 50)
	listing, err := f.gallery.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, listing.Images)
	assert.NotNil(t, listing.OriginalImages)
	assert.Empty(t, listing.Images)
}

func TestGallery_Upload(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	writeImage(t, f.imageDir, "a.png", red)

	name, err := f.gallery.Upload(ctx, "../../z photo.png", bytes.NewReader(pngBytes(t, blue)))
	require.NoError(t, err)
	assert.Equal(t, "z_photo.png", name)
	assert.FileExists(t, filepath.Join(f.imageDir, "z_photo.png"))

	_, err = f.gallery.Upload(ctx, "", bytes.NewReader(nil))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.gallery.Upload(ctx, "notes.txt", strings.NewReader("hi"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.gallery.Upload(ctx, "a.png", bytes.NewReader(pngBytes(t, green)))
	assert.ErrorIs(t, err, domain.ErrProtectedResource)

	_, err = f.gallery.Upload(ctx, "big.png", bytes.NewReader(make([]byte, 1<<20+1)))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NoFileExists(t, filepath.Join(f.imageDir, "big.png"))

	entries, err := os.ReadDir(f.imageDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".upload-"), "temp file %s left behind", e.Name())
	}
}

func TestGallery_UploadCannotOverwriteDisplacedOriginal(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	writeImage(t, f.imageDir, "b.png", red)
	writeImage(t, f.imageDir, "c.png", green)
	_, err := f.gallery.Precompute(ctx, false, nil)
	require.NoError(t, err)

	// a.png sorts first and pushes c.png out of the first two positions.
	writeImage(t, f.imageDir, "a.png", blue)
	protected, err := f.catalog.IsProtected(ctx, "c.png")
	require.NoError(t, err)
	require.False(t, protected)

	before, err := os.ReadFile(filepath.Join(f.imageDir, "c.png"))
	require.NoError(t, err)

	err = f.gallery.Delete(ctx, "c.png")
	assert.ErrorIs(t, err, domain.ErrProtectedResource)

	_, err = f.gallery.Upload(ctx, "c.png", bytes.NewReader(pngBytes(t, blue)))
	assert.ErrorIs(t, err, domain.ErrProtectedResource)

	after, err := os.ReadFile(filepath.Join(f.imageDir, "c.png"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGallery_DeleteProtectedLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	writeImage(t, f.imageDir, "a.png", red)
	writeImage(t, f.imageDir, "b.png", blue)
	require.NoError(t, f.store.Save(ctx, domain.PartitionUser, partitionOf("b.png", make(domain.FeatureVector, testDim))))

	err := f.gallery.Delete(ctx, "a.png")
	assert.ErrorIs(t, err, domain.ErrProtectedResource)
	assert.FileExists(t, filepath.Join(f.imageDir, "a.png"))

	merged, err := f.features.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.png"}, merged.Filenames)
}

func TestGallery_DeleteNameInOriginalPartition(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	writeImage(t, f.imageDir, "a.png", red)
	require.NoError(t, f.store.Save(ctx, domain.PartitionOriginal, partitionOf("a.png", make(domain.FeatureVector, testDim))))

	err := f.gallery.Delete(ctx, "a.png")
	assert.ErrorIs(t, err, domain.ErrProtectedResource)
	assert.FileExists(t, filepath.Join(f.imageDir, "a.png"))
}

func TestGallery_Delete(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	writeImage(t, f.imageDir, "a.png", red)
	writeImage(t, f.imageDir, "b.png", blue)
	writeImage(t, f.imageDir, "c.png", green)

	for range mustRegenerate(t, f) {
	}

	require.NoError(t, f.gallery.Delete(ctx, "b.png"))
	assert.NoFileExists(t, filepath.Join(f.imageDir, "b.png"))

	merged, err := f.features.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.png"}, merged.Filenames)

	err = f.gallery.Delete(ctx, "b.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func mustRegenerate(t *testing.T, f *fixture) func(func(domain.ProgressEvent) bool) {
	t.Helper()
	seq, err := f.gallery.Regenerate(context.Background())
	require.NoError(t, err)
	return seq
}

func TestGallery_RegenerateRejectsEmptyCatalog(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.gallery.Regenerate(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "missing directory")

	require.NoError(t, os.MkdirAll(f.imageDir, 0755))
	_, err = f.gallery.Regenerate(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "empty directory")
}

func TestGallery_RegenerateOnlyOriginals(t *testing.T) {
	f := newFixture(t, 5)
	writeImage(t, f.imageDir, "a.png", red)

	events := collect(mustRegenerate(t, f))
	require.Len(t, events, 1)
	assert.Equal(t, domain.ProgressEvent{Complete: true, OriginalCount: 1}, events[0])
}

func TestGallery_Search(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.gallery.Search(ctx, "q.png", bytes.NewReader(pngBytes(t, red)))
	assert.ErrorIs(t, err, domain.ErrNoFeaturesAvailable)

	writeImage(t, f.imageDir, "A.png", red)
	writeImage(t, f.imageDir, "B.png", blue)
	events := collect(mustRegenerate(t, f))
	require.Equal(t, 2, events[len(events)-1].Count)

	results, err := f.gallery.Search(ctx, "q.png", bytes.NewReader(pngBytes(t, red)))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A.png", results[0].Filename)
	assert.Equal(t, "/images/A.png", results[0].ImageURL)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Equal(t, "B.png", results[1].Filename)
	assert.InDelta(t, 0.0, results[1].Similarity, 1e-6)

	_, err = f.gallery.Search(ctx, "", bytes.NewReader(nil))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.gallery.Search(ctx, "q.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.gallery.Search(ctx, "q.png", strings.NewReader("not an image"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGallery_ImagePathAndThumbnail(t *testing.T) {
	f := newFixture(t, 0)
	writeImage(t, f.imageDir, "a.png", red)

	path, err := f.gallery.ImagePath("a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.imageDir, "a.png"), path)

	_, err = f.gallery.ImagePath("missing.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.gallery.ImagePath("../")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	data, err := f.gallery.Thumbnail("a.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte{0xFF, 0xD8}), "thumbnail is a JPEG")

	_, err = f.gallery.Thumbnail("missing.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGallery_Precompute(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	writeImage(t, f.imageDir, "a.png", red)
	writeGarbage(t, f.imageDir, "b.png")
	writeImage(t, f.imageDir, "c.png", blue)
	writeImage(t, f.imageDir, "d.png", green)

	var calls int
	result, err := f.gallery.Precompute(ctx, false, func(string, int, int) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Written)
	assert.Equal(t, []string{"b.png"}, result.Failed)

	original, err := f.store.Load(ctx, domain.PartitionOriginal)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "c.png"}, original.Filenames)

	_, err = f.gallery.Precompute(ctx, false, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.gallery.Precompute(ctx, true, nil)
	require.NoError(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"photo.png", "photo.png"},
		{"My Photo.png", "My_Photo.png"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\x\pic.jpg`, "pic.jpg"},
		{".hidden.png", "hidden.png"},
		{"a;rm -rf.png", "arm_-rf.png"},
		{"café.png", "cafe.png"},
		{"naïve photo.jpg", "naive_photo.jpg"},
		{"日本.png", "png"},
		{"ｐｈｏｔｏ.png", "photo.png"},
		{"..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}
}
