package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"gallery/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS features (
	partition TEXT NOT NULL,
	position  INTEGER NOT NULL,
	filename  TEXT NOT NULL,
	embedding BLOB NOT NULL,
	PRIMARY KEY (partition, position),
	UNIQUE (partition, filename)
)`

// SQLiteStore keeps both partitions in one table of a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at path and ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, kind domain.PartitionKind) (*domain.Partition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, embedding FROM features WHERE partition = ? ORDER BY position`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	defer rows.Close()

	p := domain.NewPartition()
	for rows.Next() {
		var name string
		var blob []byte
		if err := rows.Scan(&name, &blob); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
		}
		vec, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrStorageIO, name, err)
		}
		p.Append(name, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("partition %s: %w", kind, err)
	}
	return p, nil
}

func (s *SQLiteStore) Save(ctx context.Context, kind domain.PartitionKind, p *domain.Partition) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.replace(ctx, kind, p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	return nil
}

func (s *SQLiteStore) replace(ctx context.Context, kind domain.PartitionKind, p *domain.Partition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM features WHERE partition = ?`, string(kind)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO features(partition, position, filename, embedding) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, name := range p.Filenames {
		if _, err := stmt.ExecContext(ctx, string(kind), i, name, encodeEmbedding(p.Vectors[i])); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Delete(ctx context.Context, kind domain.PartitionKind) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM features WHERE partition = ?`, string(kind)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeEmbedding stores a vector as little-endian IEEE 754 float32 values
// without a length prefix.
func encodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeEmbedding(b []byte) (domain.FeatureVector, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make(domain.FeatureVector, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
