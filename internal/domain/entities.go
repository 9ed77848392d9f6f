package domain

import (
	"encoding/json"
	"fmt"
)

// FeatureVector is the embedding of one image.
type FeatureVector []float32

// PartitionKind names one half of the feature store.
type PartitionKind string

const (
	// PartitionOriginal holds features precomputed for the images shipped at
	// deployment time. It is never mutated at runtime.
	PartitionOriginal PartitionKind = "original"
	// PartitionUser holds features generated for images added later.
	PartitionUser PartitionKind = "user"
)

// Partitions lists every partition in merge order.
var Partitions = []PartitionKind{PartitionOriginal, PartitionUser}

// Partition is a pair of parallel sequences: Filenames[i] is the image whose
// embedding is Vectors[i].
type Partition struct {
	Filenames []string
	Vectors   []FeatureVector
}

// NewPartition returns an empty partition.
func NewPartition() *Partition {
	return &Partition{}
}

// Len returns the number of entries.
func (p *Partition) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Filenames)
}

// Empty reports whether the partition has no entries.
func (p *Partition) Empty() bool {
	return p.Len() == 0
}

// Dimension returns the vector length, or 0 for an empty partition.
func (p *Partition) Dimension() int {
	if p.Empty() || len(p.Vectors) == 0 {
		return 0
	}
	return len(p.Vectors[0])
}

// IndexOf returns the position of filename, or -1.
func (p *Partition) IndexOf(filename string) int {
	if p == nil {
		return -1
	}
	for i, name := range p.Filenames {
		if name == filename {
			return i
		}
	}
	return -1
}

// Contains reports whether filename has an entry.
func (p *Partition) Contains(filename string) bool {
	return p.IndexOf(filename) >= 0
}

// Append adds an entry at the end.
func (p *Partition) Append(filename string, vector FeatureVector) {
	p.Filenames = append(p.Filenames, filename)
	p.Vectors = append(p.Vectors, vector)
}

// RemoveAt deletes the entry at index i from both sequences.
func (p *Partition) RemoveAt(i int) {
	p.Filenames = append(p.Filenames[:i:i], p.Filenames[i+1:]...)
	p.Vectors = append(p.Vectors[:i:i], p.Vectors[i+1:]...)
}

// Concat returns a new partition holding p's entries followed by other's.
func (p *Partition) Concat(other *Partition) *Partition {
	merged := &Partition{
		Filenames: make([]string, 0, p.Len()+other.Len()),
		Vectors:   make([]FeatureVector, 0, p.Len()+other.Len()),
	}
	for _, src := range []*Partition{p, other} {
		if src == nil {
			continue
		}
		merged.Filenames = append(merged.Filenames, src.Filenames...)
		merged.Vectors = append(merged.Vectors, src.Vectors...)
	}
	return merged
}

// Validate checks the parallel-sequence invariants.
func (p *Partition) Validate() error {
	if len(p.Filenames) != len(p.Vectors) {
		return fmt.Errorf("%w: %d filenames but %d vectors", ErrStorageIO, len(p.Filenames), len(p.Vectors))
	}
	seen := make(map[string]struct{}, len(p.Filenames))
	for _, name := range p.Filenames {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate filename %q", ErrStorageIO, name)
		}
		seen[name] = struct{}{}
	}
	dim := p.Dimension()
	for i, v := range p.Vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrStorageIO, i, len(v), dim)
		}
	}
	return nil
}

// Match is one ranked search result.
type Match struct {
	Filename   string  `json:"filename"`
	Similarity float64 `json:"similarity"`
	ImageURL   string  `json:"image_url"`
}

// ProgressEvent is one record of a feature regeneration stream. Every record
// except the last carries Current/Total/Progress; the last one has either
// Complete or Error set.
type ProgressEvent struct {
	Progress      int    `json:"progress,omitempty"`
	Current       int    `json:"current,omitempty"`
	Total         int    `json:"total,omitempty"`
	Complete      bool   `json:"complete,omitempty"`
	Count         int    `json:"count,omitempty"`
	OriginalCount int    `json:"original_count,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Terminal reports whether e ends the stream.
func (e ProgressEvent) Terminal() bool {
	return e.Complete || e.Error != ""
}

// MarshalJSON writes only the fields of e's kind, so a zero Count on the
// completion record is still sent.
func (e ProgressEvent) MarshalJSON() ([]byte, error) {
	switch {
	case e.Error != "":
		return json.Marshal(struct {
			Error string `json:"error"`
		}{e.Error})
	case e.Complete:
		return json.Marshal(struct {
			Complete      bool `json:"complete"`
			Count         int  `json:"count"`
			OriginalCount int  `json:"original_count"`
		}{true, e.Count, e.OriginalCount})
	default:
		return json.Marshal(struct {
			Progress int `json:"progress"`
			Current  int `json:"current"`
			Total    int `json:"total"`
		}{e.Progress, e.Current, e.Total})
	}
}

// ImageListing is the catalog as presented to clients: new images first,
// then the protected originals.
type ImageListing struct {
	Images         []string `json:"images"`
	OriginalImages []string `json:"original_images"`
}
