package cli

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"gallery/config"
	"gallery/internal/adapter/cache"
	"gallery/internal/adapter/extractor"
	"gallery/internal/adapter/fs"
	"gallery/internal/adapter/retriever"
	"gallery/internal/adapter/store"
	"gallery/internal/adapter/thumbnail"
	"gallery/internal/logging"
	"gallery/internal/port"
	"gallery/internal/usecase"
)

// app holds the wired components shared by every command.
type app struct {
	store    port.PartitionStore
	features *usecase.FeatureStore
	catalog  *usecase.Catalog
	gallery  *usecase.GalleryService
}

func openApp(cfg *config.Config, log *logging.Logger, topK int) (*app, error) {
	st, err := store.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature store: %w", err)
	}

	ex, err := extractor.New(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	if topK <= 0 {
		topK = cfg.Search.TopK
	}

	walker := fs.NewWalker(cfg.Catalog.Patterns)
	features := usecase.NewFeatureStore(st, ex, cfg.Catalog.ImageDir, log)
	catalog := usecase.NewCatalog(walker, st, cfg.Catalog.ImageDir, cfg.Catalog.OriginalCount, cfg.Catalog.ProtectedMode)
	thumbs := thumbnail.New(
		cfg.Thumbnail.Size,
		cfg.Thumbnail.Quality,
		cache.NewThumbCache(cfg.Thumbnail.CacheSize, cfg.Thumbnail.CacheTTL),
	)
	gallery := usecase.NewGalleryService(
		catalog,
		features,
		walker,
		ex,
		retriever.NewCosineRanker(topK),
		thumbs,
		usecase.GalleryOptions{
			UploadDir:      cfg.Server.UploadDir,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		},
		log,
	)

	log.Debug("components initialized",
		"store", cfg.Store.Backend,
		"extractor", ex.ModelName(),
		"dimension", ex.Dimension(),
		"image_dir", cfg.Catalog.ImageDir,
	)

	return &app{
		store:    st,
		features: features,
		catalog:  catalog,
		gallery:  gallery,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
