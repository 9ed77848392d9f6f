package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"gallery/internal/domain"
)

var (
	bucketMeta     = []byte("meta")
	bucketOriginal = []byte("original")
	bucketUser     = []byte("user")
)

// BoltStore keeps each partition in its own bucket. Keys are big-endian
// positions so a cursor walk returns entries in stored order.
type BoltStore struct {
	db          *bbolt.DB
	fingerprint string
}

type storedEntry struct {
	Filename string    `json:"f"`
	Vector   []float32 `json:"v"`
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketMeta, err)
	}

	return &BoltStore{db: db}, nil
}

// SetFingerprint sets the extractor fingerprint recorded with every Save.
func (s *BoltStore) SetFingerprint(hash string) {
	s.fingerprint = hash
}

func partitionBucket(kind domain.PartitionKind) ([]byte, error) {
	switch kind {
	case domain.PartitionOriginal:
		return bucketOriginal, nil
	case domain.PartitionUser:
		return bucketUser, nil
	default:
		return nil, fmt.Errorf("unknown partition %q", kind)
	}
}

func positionKey(i int) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(i))
	return key
}

func (s *BoltStore) Load(ctx context.Context, kind domain.PartitionKind) (*domain.Partition, error) {
	name, err := partitionBucket(kind)
	if err != nil {
		return nil, err
	}

	p := domain.NewPartition()
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entry storedEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt entry %x: %w", k, err)
			}
			p.Append(entry.Filename, entry.Vector)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("partition %s: %w", kind, err)
	}
	return p, nil
}

// Save replaces the partition bucket in a single transaction.
func (s *BoltStore) Save(ctx context.Context, kind domain.PartitionKind, p *domain.Partition) error {
	name, err := partitionBucket(kind)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}
		for i, filename := range p.Filenames {
			data, err := json.Marshal(storedEntry{Filename: filename, Vector: p.Vectors[i]})
			if err != nil {
				return err
			}
			if err := b.Put(positionKey(i), data); err != nil {
				return err
			}
		}
		if s.fingerprint != "" {
			return tx.Bucket(bucketMeta).Put(keyExtractorHash, []byte(s.fingerprint))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	return nil
}

func (s *BoltStore) Delete(ctx context.Context, kind domain.PartitionKind) error {
	name, err := partitionBucket(kind)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
