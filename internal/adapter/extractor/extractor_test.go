package extractor

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/config"
	"gallery/internal/domain"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func halves(w, h int, left, right color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, left)
			} else {
				img.Set(x, y, right)
			}
		}
	}
	return img
}

func TestPreprocess_ResizesAndNormalizes(t *testing.T) {
	tensor, err := Preprocess(solid(31, 57, color.RGBA{R: 200, G: 100, B: 50, A: 255}))
	require.NoError(t, err)

	assert.Equal(t, InputSize, tensor.Height)
	assert.Equal(t, InputSize, tensor.Width)
	require.Len(t, tensor.Data, InputSize*InputSize*3)

	assert.InDelta(t, 50-103.939, tensor.At(0, 0, 0), 1.5, "channel 0 is blue")
	assert.InDelta(t, 100-116.779, tensor.At(100, 100, 1), 1.5)
	assert.InDelta(t, 200-123.68, tensor.At(223, 223, 2), 1.5, "channel 2 is red")
}

func TestPreprocess_EmptyImage(t *testing.T) {
	_, err := Preprocess(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("definitely not an image")))
	assert.Error(t, err)
}

func TestDecode_PNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(4, 4, color.White)))
	img, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
}

// pngDeclaring encodes a 1x1 PNG and rewrites its IHDR to claim w x h.
func pngDeclaring(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(1, 1, color.White)))
	data := buf.Bytes()

	// 8-byte signature, then IHDR: length(4) type(4) data(13) crc(4).
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecode_RejectsPixelBomb(t *testing.T) {
	_, err := Decode(bytes.NewReader(pngDeclaring(t, 40000, 40000)))
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDecode_ConfigurableLimit(t *testing.T) {
	t.Cleanup(func() { SetMaxPixels(DefaultMaxPixels) })

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(4, 4, color.White)))
	data := buf.Bytes()

	SetMaxPixels(15)
	_, err := Decode(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	SetMaxPixels(16)
	img, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	cfg := config.DefaultConfig()
	cfg.Extractor.MaxPixels = 0
	_, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(0), MaxPixels())
}

func TestPreprocess_TransparentPixelsKeepColor(t *testing.T) {
	seeThrough := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(seeThrough.Pix); i += 4 {
		copy(seeThrough.Pix[i:], []byte{200, 100, 50, 0})
	}
	tensor, err := Preprocess(seeThrough)
	require.NoError(t, err)

	assert.InDelta(t, 50-103.939, tensor.At(10, 10, 0), 1.5)
	assert.InDelta(t, 100-116.779, tensor.At(10, 10, 1), 1.5)
	assert.InDelta(t, 200-123.68, tensor.At(10, 10, 2), 1.5)

	// Paletted images go through the generic path.
	pal := image.NewPaletted(image.Rect(0, 0, 8, 8), color.Palette{color.NRGBA{R: 200, G: 100, B: 50, A: 0}})
	tensor, err = Preprocess(pal)
	require.NoError(t, err)
	assert.InDelta(t, 200-123.68, tensor.At(0, 0, 2), 1.5)
}

func TestGridExtractor(t *testing.T) {
	ex := NewGridExtractor()
	ctx := context.Background()

	a, err := ex.Extract(ctx, halves(64, 64, color.Black, color.White))
	require.NoError(t, err)
	assert.Len(t, a, 2048)
	assert.Equal(t, 2048, ex.Dimension())

	again, err := ex.Extract(ctx, halves(64, 64, color.Black, color.White))
	require.NoError(t, err)
	assert.Equal(t, a, again, "extraction must be deterministic")

	b, err := ex.Extract(ctx, halves(64, 64, color.White, color.Black))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGridExtractor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGridExtractor().Extract(ctx, solid(8, 8, color.White))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteExtractor(t *testing.T) {
	var gotPath string
	var gotShape [3]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			Instances [][][][]float32 `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotShape = [3]int{len(req.Instances), len(req.Instances[0]), len(req.Instances[0][0][0])}
		json.NewEncoder(w).Encode(map[string]any{"predictions": [][]float32{{1, 2, 3, 4}}})
	}))
	defer srv.Close()

	ex, err := NewRemoteExtractor(srv.URL+"/", "resnet50", 4, time.Second)
	require.NoError(t, err)

	vec, err := ex.Extract(context.Background(), solid(10, 10, color.White))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, []float32(vec))
	assert.Equal(t, "/v1/models/resnet50:predict", gotPath)
	assert.Equal(t, [3]int{1, InputSize, 3}, gotShape)
}

func TestRemoteExtractor_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models/broken:predict" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"predictions": [][]float32{{1, 2}}})
	}))
	defer srv.Close()

	ex, err := NewRemoteExtractor(srv.URL, "broken", 2, time.Second)
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), solid(4, 4, color.White))
	assert.Error(t, err)

	ex, err = NewRemoteExtractor(srv.URL, "resnet50", 2048, time.Second)
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), solid(4, 4, color.White))
	assert.ErrorContains(t, err, "dimension mismatch")

	_, err = NewRemoteExtractor("", "resnet50", 2048, time.Second)
	assert.Error(t, err)
}

func TestMockExtractor(t *testing.T) {
	ex := NewMockExtractor(6)
	vec, err := ex.Extract(context.Background(), solid(3, 3, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	require.Len(t, vec, 6)
	assert.InDelta(t, 1.0, vec[0], 1e-6)
	assert.InDelta(t, 0.0, vec[1], 1e-6)
	assert.InDelta(t, 4.0, vec[3], 1e-6)
}

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig()
	ex, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "grid-16x16", ex.ModelName())

	cfg.Extractor.Dimension = 512
	_, err = New(cfg)
	assert.Error(t, err, "grid extractor has a fixed dimension")

	cfg.Extractor.Provider = "mock"
	ex, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 512, ex.Dimension())
}
