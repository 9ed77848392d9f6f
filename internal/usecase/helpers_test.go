package usecase

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gallery/internal/adapter/extractor"
	"gallery/internal/adapter/fs"
	"gallery/internal/adapter/retriever"
	"gallery/internal/adapter/store"
	"gallery/internal/adapter/thumbnail"
	"gallery/internal/logging"
)

const testDim = 8

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
)

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeImage(t *testing.T, dir, name string, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), pngBytes(t, c), 0644))
}

func writeGarbage(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("not an image"), 0644))
}

type fixture struct {
	imageDir string
	store    *store.NPYStore
	features *FeatureStore
	catalog  *Catalog
	gallery  *GalleryService
}

func newFixture(t *testing.T, originalCount int) *fixture {
	t.Helper()
	root := t.TempDir()
	imageDir := filepath.Join(root, "images")

	st, err := store.NewNPYStore(filepath.Join(root, "features"))
	require.NoError(t, err)

	log := logging.Discard()
	ex := extractor.NewMockExtractor(testDim)
	walker := fs.NewWalker(nil)
	features := NewFeatureStore(st, ex, imageDir, log)
	catalog := NewCatalog(walker, st, imageDir, originalCount, ProtectPositional)
	gallery := NewGalleryService(
		catalog,
		features,
		walker,
		ex,
		retriever.NewCosineRanker(6),
		thumbnail.New(200, 75, nil),
		GalleryOptions{UploadDir: filepath.Join(root, "uploads"), MaxUploadBytes: 1 << 20},
		log,
	)
	return &fixture{
		imageDir: imageDir,
		store:    st,
		features: features,
		catalog:  catalog,
		gallery:  gallery,
	}
}
