package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gallery/internal/domain"
)

// FilePair names the two .npy files that hold one partition.
type FilePair struct {
	Vectors   string
	Filenames string
}

var defaultFilePairs = map[domain.PartitionKind]FilePair{
	domain.PartitionOriginal: {Vectors: "original_features.npy", Filenames: "original_filenames.npy"},
	domain.PartitionUser:     {Vectors: "features.npy", Filenames: "filenames.npy"},
}

// NPYStore keeps each partition as a pair of NumPy files in one directory,
// readable by np.load.
type NPYStore struct {
	dir   string
	pairs map[domain.PartitionKind]FilePair
}

// NewNPYStore creates a file-backed store rooted at dir.
func NewNPYStore(dir string) (*NPYStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create feature directory: %w", err)
	}
	return &NPYStore{dir: dir, pairs: defaultFilePairs}, nil
}

// Paths returns the absolute vectors and filenames paths for kind.
func (s *NPYStore) Paths(kind domain.PartitionKind) (string, string) {
	pair := s.pairs[kind]
	return filepath.Join(s.dir, pair.Vectors), filepath.Join(s.dir, pair.Filenames)
}

// Load reads a partition. Both files must exist; if either is missing the
// partition is treated as absent.
func (s *NPYStore) Load(ctx context.Context, kind domain.PartitionKind) (*domain.Partition, error) {
	if _, ok := s.pairs[kind]; !ok {
		return nil, fmt.Errorf("unknown partition %q", kind)
	}
	vecPath, namePath := s.Paths(kind)
	if !exists(vecPath) || !exists(namePath) {
		return domain.NewPartition(), nil
	}

	var rows [][]float32
	if err := readFile(vecPath, func(r io.Reader) (err error) {
		rows, err = ReadMatrix(r)
		return err
	}); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrStorageIO, vecPath, err)
	}

	var names []string
	if err := readFile(namePath, func(r io.Reader) (err error) {
		names, err = ReadStrings(r)
		return err
	}); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrStorageIO, namePath, err)
	}

	p := &domain.Partition{Filenames: names, Vectors: make([]domain.FeatureVector, len(rows))}
	for i, row := range rows {
		p.Vectors[i] = row
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("partition %s: %w", kind, err)
	}
	return p, nil
}

// Save writes both files of a partition. Each file is replaced atomically;
// the pair as a whole is not.
func (s *NPYStore) Save(ctx context.Context, kind domain.PartitionKind, p *domain.Partition) error {
	if _, ok := s.pairs[kind]; !ok {
		return fmt.Errorf("unknown partition %q", kind)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	vecPath, namePath := s.Paths(kind)

	rows := make([][]float32, len(p.Vectors))
	for i, v := range p.Vectors {
		rows[i] = v
	}
	if err := writeFileAtomic(vecPath, func(w io.Writer) error {
		return WriteMatrix(w, rows, p.Dimension())
	}); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrStorageIO, vecPath, err)
	}
	if err := writeFileAtomic(namePath, func(w io.Writer) error {
		return WriteStrings(w, p.Filenames)
	}); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrStorageIO, namePath, err)
	}
	return nil
}

// Delete removes both files of a partition.
func (s *NPYStore) Delete(ctx context.Context, kind domain.PartitionKind) error {
	if _, ok := s.pairs[kind]; !ok {
		return fmt.Errorf("unknown partition %q", kind)
	}
	vecPath, namePath := s.Paths(kind)
	for _, path := range []string{vecPath, namePath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
		}
	}
	return nil
}

func (s *NPYStore) Close() error {
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path.
func writeFileAtomic(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
