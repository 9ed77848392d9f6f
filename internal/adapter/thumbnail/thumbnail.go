package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"

	"golang.org/x/image/draw"

	"gallery/internal/adapter/cache"
	"gallery/internal/adapter/extractor"
)

const (
	DefaultSize    = 200
	DefaultQuality = 75
)

// Thumbnailer renders JPEG previews that fit inside a size x size box.
type Thumbnailer struct {
	size    int
	quality int
	cache   *cache.ThumbCache
}

// New creates a thumbnailer. A nil cache disables caching.
func New(size, quality int, c *cache.ThumbCache) *Thumbnailer {
	if size <= 0 {
		size = DefaultSize
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Thumbnailer{size: size, quality: quality, cache: c}
}

// File returns the thumbnail of the image at path. name identifies the
// image in the cache.
func (t *Thumbnailer) File(name, path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if t.cache != nil {
		if data, ok := t.cache.Get(name, info.ModTime(), info.Size()); ok {
			return data, nil
		}
	}

	img, err := extractor.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	data, err := t.Encode(img)
	if err != nil {
		return nil, err
	}

	if t.cache != nil {
		t.cache.Put(name, info.ModTime(), info.Size(), data)
	}
	return data, nil
}

// Forget drops cached thumbnails of name.
func (t *Thumbnailer) Forget(name string) {
	if t.cache != nil {
		t.cache.InvalidateName(name)
	}
}

// Encode scales img down to fit and encodes it as JPEG.
func (t *Thumbnailer) Encode(img image.Image) ([]byte, error) {
	src := img.Bounds()
	if src.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	w, h := Fit(src.Dx(), src.Dy(), t.size)

	// JPEG has no alpha; transparent areas become white.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit returns the dimensions of a w x h image scaled to fit inside a box of
// the given size, keeping the aspect ratio. Smaller images are not enlarged.
func Fit(w, h, box int) (int, int) {
	if w <= box && h <= box {
		return w, h
	}
	scale := math.Min(float64(box)/float64(w), float64(box)/float64(h))
	fw := max(1, int(math.Round(float64(w)*scale)))
	fh := max(1, int(math.Round(float64(h)*scale)))
	return min(fw, box), min(fh, box)
}
