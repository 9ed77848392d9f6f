package port

import (
	"context"

	"gallery/internal/domain"
)

// PartitionStore persists one feature partition at a time.
type PartitionStore interface {
	// Load returns the stored partition. A partition that was never saved,
	// or was deleted, loads as an empty partition without error.
	Load(ctx context.Context, kind domain.PartitionKind) (*domain.Partition, error)

	// Save replaces the stored partition with p.
	Save(ctx context.Context, kind domain.PartitionKind, p *domain.Partition) error

	// Delete removes the stored partition. Deleting an absent partition is not an error.
	Delete(ctx context.Context, kind domain.PartitionKind) error

	Close() error
}
