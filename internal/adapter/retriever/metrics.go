package retriever

import "gallery/internal/domain"

// Filenames returns the names of matches in rank order.
func Filenames(matches []domain.Match) []string {
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Filename
	}
	return names
}

// RecallAtK is the fraction of relevant names present in retrieved.
func RecallAtK(retrieved, relevant []string) float64 {
	if len(relevant) == 0 {
		return 0
	}
	relevantSet := make(map[string]bool)
	for _, r := range relevant {
		relevantSet[r] = true
	}
	hits := 0
	for _, r := range retrieved {
		if relevantSet[r] {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

// ReciprocalRank is 1/rank of relevant in retrieved, or 0 if absent.
func ReciprocalRank(retrieved []string, relevant string) float64 {
	for i, r := range retrieved {
		if r == relevant {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}
