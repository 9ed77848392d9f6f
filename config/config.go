package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the gallery service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Store     StoreConfig     `yaml:"store"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Search    SearchConfig    `yaml:"search"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	StaticDir      string `yaml:"static_dir"`
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// CatalogConfig describes the image directory and which images are protected.
type CatalogConfig struct {
	ImageDir      string   `yaml:"image_dir"`
	Patterns      []string `yaml:"patterns"`       // doublestar patterns, matched against lower-cased names
	OriginalCount int      `yaml:"original_count"` // first N sorted images are protected
	ProtectedMode string   `yaml:"protected_mode"` // "positional" or "pinned"
}

// StoreConfig selects where feature partitions are persisted.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "npy", "bolt", "sqlite", "memory"
	Dir     string `yaml:"dir"`     // directory for npy files and database files
}

// ExtractorConfig holds feature extractor configuration.
type ExtractorConfig struct {
	Provider  string        `yaml:"provider"` // "grid", "remote", "mock"
	Model     string        `yaml:"model"`
	Endpoint  string        `yaml:"endpoint"` // TF-Serving REST base URL for "remote"
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxPixels int64         `yaml:"max_pixels"` // decode limit on width*height, 0 disables
}

// SearchConfig holds ranking configuration.
type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

// ThumbnailConfig holds thumbnail rendering and caching configuration.
type ThumbnailConfig struct {
	Size      int           `yaml:"size"`
	Quality   int           `yaml:"quality"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":5000",
			StaticDir:      "templates",
			UploadDir:      "uploads",
			MaxUploadBytes: 16 * 1024 * 1024,
		},
		Catalog: CatalogConfig{
			ImageDir:      "images",
			Patterns:      []string{"*.{jpg,jpeg,png,gif,bmp}"},
			OriginalCount: 50,
			ProtectedMode: "positional",
		},
		Store: StoreConfig{
			Backend: "npy",
			Dir:     ".",
		},
		Extractor: ExtractorConfig{
			Provider:  "grid",
			Model:     "resnet50",
			Endpoint:  "http://localhost:8501",
			Dimension: 2048,
			Timeout:   60 * time.Second,
			MaxPixels: 89_478_485,
		},
		Search: SearchConfig{
			TopK: 6,
		},
		Thumbnail: ThumbnailConfig{
			Size:      200,
			Quality:   75,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for gallery.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "gallery.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".gallery", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if dir := os.Getenv("UPLOAD_FOLDER"); dir != "" {
		c.Server.UploadDir = dir
	}
	if dir := os.Getenv("GALLERY_IMAGE_DIR"); dir != "" {
		c.Catalog.ImageDir = dir
	}
}

// Resolve makes relative directories absolute against root.
func (c *Config) Resolve(root string) {
	for _, p := range []*string{&c.Server.StaticDir, &c.Server.UploadDir, &c.Catalog.ImageDir, &c.Store.Dir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}

// Validate checks for unusable values.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "npy", "bolt", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	switch c.Extractor.Provider {
	case "grid", "remote", "mock":
	default:
		return fmt.Errorf("unsupported extractor provider: %s", c.Extractor.Provider)
	}
	switch c.Catalog.ProtectedMode {
	case "positional", "pinned":
	default:
		return fmt.Errorf("unsupported protected mode: %s", c.Catalog.ProtectedMode)
	}
	if c.Catalog.OriginalCount < 0 {
		return fmt.Errorf("original_count must not be negative, got %d", c.Catalog.OriginalCount)
	}
	if c.Extractor.Dimension <= 0 {
		return fmt.Errorf("extractor dimension must be positive, got %d", c.Extractor.Dimension)
	}
	if c.Extractor.MaxPixels < 0 {
		return fmt.Errorf("max_pixels must not be negative, got %d", c.Extractor.MaxPixels)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Thumbnail.Size <= 0 {
		return fmt.Errorf("thumbnail size must be positive, got %d", c.Thumbnail.Size)
	}
	if c.Thumbnail.Quality < 1 || c.Thumbnail.Quality > 100 {
		return fmt.Errorf("thumbnail quality must be in [1,100], got %d", c.Thumbnail.Quality)
	}
	return nil
}

// BoltPath returns the path to the bbolt feature database.
func (c *Config) BoltPath() string {
	return filepath.Join(c.Store.Dir, "features.db")
}

// SQLitePath returns the path to the sqlite feature database.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.Store.Dir, "features.sqlite")
}
