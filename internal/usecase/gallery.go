package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"gallery/internal/adapter/extractor"
	"gallery/internal/adapter/thumbnail"
	"gallery/internal/domain"
	"gallery/internal/logging"
	"gallery/internal/port"
)

// GalleryService implements every user-facing gallery operation.
type GalleryService struct {
	catalog   *Catalog
	features  *FeatureStore
	lister    port.ImageLister
	extractor port.Extractor
	ranker    port.Ranker
	thumbs    *thumbnail.Thumbnailer
	uploadDir string
	maxUpload int64
	log       *logging.Logger
}

// GalleryOptions holds the service's non-collaborator settings.
type GalleryOptions struct {
	// UploadDir stages search queries before extraction.
	UploadDir string
	// MaxUploadBytes caps uploads and search queries. 0 means no cap.
	MaxUploadBytes int64
}

// NewGalleryService wires the gallery operations together.
func NewGalleryService(
	catalog *Catalog,
	features *FeatureStore,
	lister port.ImageLister,
	extractor port.Extractor,
	ranker port.Ranker,
	thumbs *thumbnail.Thumbnailer,
	opts GalleryOptions,
	log *logging.Logger,
) *GalleryService {
	if log == nil {
		log = logging.Discard()
	}
	if thumbs == nil {
		thumbs = thumbnail.New(thumbnail.DefaultSize, thumbnail.DefaultQuality, nil)
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	return &GalleryService{
		catalog:   catalog,
		features:  features,
		lister:    lister,
		extractor: extractor,
		ranker:    ranker,
		thumbs:    thumbs,
		uploadDir: opts.UploadDir,
		maxUpload: opts.MaxUploadBytes,
		log:       log,
	}
}

// List returns new images first, then the originals.
func (g *GalleryService) List(ctx context.Context) (*domain.ImageListing, error) {
	fresh, originals, err := g.catalog.Split(ctx)
	if err != nil {
		return nil, err
	}
	images := make([]string, 0, len(fresh)+len(originals))
	images = append(images, fresh...)
	images = append(images, originals...)
	if originals == nil {
		originals = []string{}
	}
	return &domain.ImageListing{Images: images, OriginalImages: originals}, nil
}

// Upload stores r in the image directory under the sanitized name and
// returns that name.
func (g *GalleryService) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: no file selected", domain.ErrInvalidInput)
	}
	safe := SanitizeFilename(name)
	if !g.lister.Allowed(safe) {
		return "", fmt.Errorf("%w: invalid file type", domain.ErrInvalidInput)
	}

	protected, err := g.isProtected(ctx, safe)
	if err != nil {
		return "", err
	}
	if protected {
		return "", fmt.Errorf("%w: %s", domain.ErrProtectedResource, safe)
	}

	dir := g.catalog.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	tmp, err := g.stage(dir, r)
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp, filepath.Join(dir, safe)); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	g.thumbs.Forget(safe)

	g.log.InfoContext(ctx, "image uploaded", "filename", safe)
	return safe, nil
}

// stage copies r into a temporary file in dir, enforcing the size cap.
func (g *GalleryService) stage(dir string, r io.Reader) (string, error) {
	f, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()

	src := r
	if g.maxUpload > 0 {
		src = io.LimitReader(r, g.maxUpload+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if g.maxUpload > 0 && n > g.maxUpload {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, g.maxUpload)
	}
	return tmp, nil
}

// Delete removes a user image and its features.
func (g *GalleryService) Delete(ctx context.Context, name string) (err error) {
	safe := SanitizeFilename(name)
	defer func() { g.log.LogDelete(ctx, safe, err) }()

	if safe == "" {
		return fmt.Errorf("%w: invalid file name %q", domain.ErrInvalidInput, name)
	}

	protected, err := g.isProtected(ctx, safe)
	if err != nil {
		return err
	}
	if protected {
		return fmt.Errorf("%w: %s", domain.ErrProtectedResource, safe)
	}

	path := filepath.Join(g.catalog.Dir(), safe)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, safe)
		}
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	g.thumbs.Forget(safe)

	return g.features.Remove(ctx, safe)
}

// isProtected reports whether name is an original, either by catalog
// position or by having a vector in the Original partition.
func (g *GalleryService) isProtected(ctx context.Context, name string) (bool, error) {
	protected, err := g.catalog.IsProtected(ctx, name)
	if err != nil || protected {
		return protected, err
	}
	original, _, err := g.features.Load(ctx)
	if err != nil {
		return false, err
	}
	return original.Contains(name), nil
}

// Regenerate rebuilds the User partition from every non-original image.
// Errors that make a run pointless are returned before streaming starts.
func (g *GalleryService) Regenerate(ctx context.Context) (iter.Seq[domain.ProgressEvent], error) {
	info, err := os.Stat(g.catalog.Dir())
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: image directory not found", domain.ErrInvalidInput)
	}
	fresh, originals, err := g.catalog.Split(ctx)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 && len(originals) == 0 {
		return nil, fmt.Errorf("%w: no images found in directory", domain.ErrInvalidInput)
	}
	return g.features.Regenerate(ctx, fresh, len(originals)), nil
}

// CheckFeatures reports whether any stored features exist.
func (g *GalleryService) CheckFeatures(ctx context.Context) (bool, error) {
	return g.features.Exists(ctx)
}

// Search ranks stored images by similarity to the uploaded query image.
func (g *GalleryService) Search(ctx context.Context, name string, r io.Reader) (matches []domain.Match, err error) {
	var stored int
	defer func() { g.log.LogSearch(ctx, len(matches), stored, err) }()

	merged, err := g.features.Merge(ctx)
	if err != nil {
		return nil, err
	}
	stored = merged.Len()

	if name == "" {
		return nil, fmt.Errorf("%w: no file selected", domain.ErrInvalidInput)
	}
	if !g.lister.Allowed(SanitizeFilename(name)) {
		return nil, fmt.Errorf("%w: invalid file type", domain.ErrInvalidInput)
	}

	if err := os.MkdirAll(g.uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	tmp, err := g.stage(g.uploadDir, r)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	query, err := g.ExtractQuery(ctx, tmp)
	if err != nil {
		return nil, err
	}
	return g.ranker.Rank(query, merged)
}

// ExtractQuery computes the features of an image outside the catalog.
func (g *GalleryService) ExtractQuery(ctx context.Context, path string) (domain.FeatureVector, error) {
	img, err := extractor.DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	vec, err := g.extractor.Extract(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailure, err)
	}
	return vec, nil
}

// ImagePath resolves name to a file in the image directory.
func (g *GalleryService) ImagePath(name string) (string, error) {
	safe := SanitizeFilename(name)
	if safe == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	path := filepath.Join(g.catalog.Dir(), safe)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, safe)
	}
	return path, nil
}

// Thumbnail returns the JPEG preview of name.
func (g *GalleryService) Thumbnail(name string) ([]byte, error) {
	path, err := g.ImagePath(name)
	if err != nil {
		return nil, err
	}
	data, err := g.thumbs.File(filepath.Base(path), path)
	if err != nil {
		return nil, fmt.Errorf("failed to render thumbnail: %w", err)
	}
	return data, nil
}

// SanitizeFilename reduces name to a safe ASCII base name: letters are
// decomposed and stripped of accents, directory components are dropped,
// whitespace becomes underscores, and only ASCII letters, digits, dot, dash
// and underscore are kept. Leading and trailing dots and underscores are
// trimmed. The result may be empty.
func SanitizeFilename(name string) string {
	var ascii strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < utf8.RuneSelf {
			ascii.WriteRune(r)
		}
	}
	name = strings.ReplaceAll(ascii.String(), "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}
