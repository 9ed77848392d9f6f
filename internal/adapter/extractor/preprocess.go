package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sync/atomic"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"gallery/internal/domain"
)

// InputSize is the side length ResNet-50 expects.
const InputSize = 224

// caffeMean is the per-channel mean subtracted by ResNet-50's
// preprocess_input, in BGR order.
var caffeMean = [3]float32{103.939, 116.779, 123.68}

// DefaultMaxPixels is the largest width*height decoded by default, the same
// decompression bomb threshold Pillow uses.
const DefaultMaxPixels = 89_478_485

// ErrImageTooLarge is returned for images above the pixel limit.
var ErrImageTooLarge = fmt.Errorf("%w: image exceeds pixel limit", domain.ErrInvalidInput)

var maxPixels atomic.Int64

func init() {
	maxPixels.Store(DefaultMaxPixels)
}

// SetMaxPixels sets the pixel limit applied by Decode. 0 disables it.
func SetMaxPixels(n int64) {
	maxPixels.Store(n)
}

// MaxPixels returns the current pixel limit.
func MaxPixels() int64 {
	return maxPixels.Load()
}

// Tensor is a normalized image in height-width-channel layout with channels
// in BGR order.
type Tensor struct {
	Height int
	Width  int
	Data   []float32
}

// At returns channel c of pixel (y, x).
func (t *Tensor) At(y, x, c int) float32 {
	return t.Data[(y*t.Width+x)*3+c]
}

// Nested returns the tensor as [height][width][3] for JSON encoding.
func (t *Tensor) Nested() [][][3]float32 {
	out := make([][][3]float32, t.Height)
	for y := range out {
		row := make([][3]float32, t.Width)
		for x := range row {
			i := (y*t.Width + x) * 3
			row[x] = [3]float32{t.Data[i], t.Data[i+1], t.Data[i+2]}
		}
		out[y] = row
	}
	return out
}

// Preprocess resizes img to 224x224, drops alpha, converts RGB to BGR and
// subtracts the ImageNet channel means.
func Preprocess(img image.Image) (*Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}

	dst := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), dropAlpha(img), img.Bounds(), draw.Src, nil)

	t := &Tensor{Height: InputSize, Width: InputSize, Data: make([]float32, InputSize*InputSize*3)}
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			p := dst.PixOffset(x, y)
			r, g, b := float32(dst.Pix[p]), float32(dst.Pix[p+1]), float32(dst.Pix[p+2])
			i := (y*InputSize + x) * 3
			t.Data[i] = b - caffeMean[0]
			t.Data[i+1] = g - caffeMean[1]
			t.Data[i+2] = r - caffeMean[2]
		}
	}
	return t, nil
}

// dropAlpha returns img with every pixel made opaque while keeping its
// straight (non-premultiplied) color, so transparent areas keep their RGB
// instead of turning black.
func dropAlpha(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	if src, ok := img.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := out.PixOffset(b.Min.X, y)
			row := out.Pix[i : i+b.Dx()*4]
			copy(row, src.Pix[src.PixOffset(b.Min.X, y):])
			for i := 3; i < len(row); i += 4 {
				row[i] = 0xff
			}
		}
		return out
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// Decode decodes a JPEG, PNG, GIF or BMP image. The header is checked
// against the pixel limit before any pixel buffer is allocated.
func Decode(r io.Reader) (image.Image, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if limit := MaxPixels(); limit > 0 && int64(cfg.Width)*int64(cfg.Height) > limit {
		return nil, fmt.Errorf("%w: %dx%d > %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, limit)
	}

	img, _, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DecodeFile opens and decodes the image at path.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
