package store

import (
	"fmt"
	"os"

	"gallery/config"
	"gallery/internal/adapter/memstore"
	"gallery/internal/logging"
	"gallery/internal/port"
)

// Open creates the partition store selected by cfg.Store.Backend.
func Open(cfg *config.Config, log *logging.Logger) (port.PartitionStore, error) {
	switch cfg.Store.Backend {
	case "", "npy":
		return NewNPYStore(cfg.Store.Dir)
	case "bolt":
		if err := ensureDir(cfg.Store.Dir); err != nil {
			return nil, err
		}
		st, err := NewBoltStore(cfg.BoltPath())
		if err != nil {
			return nil, err
		}
		result, err := st.CheckMigration(cfg)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.SetFingerprint(ComputeExtractorHash(cfg))
		if result.NeedsRebuild {
			log.Warn("stored features need regeneration", "reason", result.Reason)
		}
		if result.NeedsMigration {
			if err := st.Migrate(cfg); err != nil {
				st.Close()
				return nil, fmt.Errorf("migration failed: %w", err)
			}
		}
		return st, nil
	case "memory":
		return memstore.NewMemoryStore(), nil
	case "sqlite":
		if err := ensureDir(cfg.Store.Dir); err != nil {
			return nil, err
		}
		return NewSQLiteStore(cfg.SQLitePath())
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create feature directory: %w", err)
	}
	return nil
}
