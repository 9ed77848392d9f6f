package usecase

import (
	"context"
	"fmt"
	"slices"

	"gallery/internal/domain"
	"gallery/internal/port"
)

const (
	// ProtectPositional protects the first N sorted images.
	ProtectPositional = "positional"
	// ProtectPinned protects the images named in the Original partition.
	ProtectPinned = "pinned"
)

// Catalog answers which images exist and which of them are originals.
// The listing is recomputed on every call.
type Catalog struct {
	lister        port.ImageLister
	store         port.PartitionStore
	dir           string
	originalCount int
	mode          string
}

// NewCatalog creates a catalog over dir. store is consulted only in pinned mode.
func NewCatalog(lister port.ImageLister, store port.PartitionStore, dir string, originalCount int, mode string) *Catalog {
	if mode == "" {
		mode = ProtectPositional
	}
	return &Catalog{
		lister:        lister,
		store:         store,
		dir:           dir,
		originalCount: originalCount,
		mode:          mode,
	}
}

// Dir returns the image directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// ListImages returns every allowed image name, sorted.
func (c *Catalog) ListImages() ([]string, error) {
	names, err := c.lister.List(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return names, nil
}

// OriginalImages returns the protected subset of the listing, sorted.
func (c *Catalog) OriginalImages(ctx context.Context) ([]string, error) {
	all, err := c.ListImages()
	if err != nil {
		return nil, err
	}
	return c.originals(ctx, all)
}

// NewImages returns the listing minus the originals, sorted.
func (c *Catalog) NewImages(ctx context.Context) ([]string, error) {
	all, err := c.ListImages()
	if err != nil {
		return nil, err
	}
	originals, err := c.originals(ctx, all)
	if err != nil {
		return nil, err
	}
	return subtract(all, originals), nil
}

// Split returns the new images and the originals from one directory listing.
func (c *Catalog) Split(ctx context.Context) (fresh, originals []string, err error) {
	all, err := c.ListImages()
	if err != nil {
		return nil, nil, err
	}
	originals, err = c.originals(ctx, all)
	if err != nil {
		return nil, nil, err
	}
	return subtract(all, originals), originals, nil
}

// IsProtected reports whether name may not be deleted or overwritten.
func (c *Catalog) IsProtected(ctx context.Context, name string) (bool, error) {
	if c.mode == ProtectPinned {
		pinned, err := c.pinned(ctx)
		if err != nil {
			return false, err
		}
		return pinned.Contains(name), nil
	}
	originals, err := c.OriginalImages(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(originals, name), nil
}

// SeedImages returns the first N images of the listing regardless of mode.
// The offline precompute step uses it to decide what the originals are.
func (c *Catalog) SeedImages() ([]string, error) {
	all, err := c.ListImages()
	if err != nil {
		return nil, err
	}
	return firstN(all, c.originalCount), nil
}

func (c *Catalog) originals(ctx context.Context, all []string) ([]string, error) {
	if c.mode != ProtectPinned {
		return firstN(all, c.originalCount), nil
	}
	pinned, err := c.pinned(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range all {
		if pinned.Contains(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

func (c *Catalog) pinned(ctx context.Context) (*domain.Partition, error) {
	if c.store == nil {
		return domain.NewPartition(), nil
	}
	p, err := c.store.Load(ctx, domain.PartitionOriginal)
	if err != nil {
		return nil, fmt.Errorf("failed to load original features: %w", err)
	}
	return p, nil
}

func firstN(names []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if n > len(names) {
		n = len(names)
	}
	return slices.Clone(names[:n])
}

func subtract(all, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, name := range remove {
		drop[name] = struct{}{}
	}
	out := make([]string, 0, len(all)-len(remove))
	for _, name := range all {
		if _, ok := drop[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
