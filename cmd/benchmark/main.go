package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gallery/config"
	"gallery/internal/adapter/extractor"
	"gallery/internal/adapter/retriever"
	"gallery/internal/adapter/store"
	"gallery/internal/logging"
	"gallery/internal/usecase"
)

// Self-retrieval benchmark: every stored image is used as a query against
// the merged feature store and should rank itself first.
func main() {
	dir := flag.String("dir", ".", "gallery root directory")
	topK := flag.Int("k", retriever.DefaultTopK, "number of results per query")
	limit := flag.Int("n", 0, "maximum number of queries (0 = all stored images)")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	cfg.Resolve(*dir)

	log := logging.New(os.Stderr, "warn", cfg.Logging.Format)
	st, err := store.Open(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening feature store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ex, err := extractor.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating extractor: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	features := usecase.NewFeatureStore(st, ex, cfg.Catalog.ImageDir, log)
	merged, err := features.Merge(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No stored features: %v\n", err)
		os.Exit(1)
	}
	ranker := retriever.NewCosineRanker(*topK)

	fmt.Println("SELF-RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Stored images: %d\n", merged.Len())
	fmt.Printf("Extractor:     %s (%s)\n", ex.ModelName(), cfg.Extractor.Provider)
	fmt.Printf("Dimension:     %d\n", merged.Dimension())
	fmt.Printf("Backend:       %s\n", cfg.Store.Backend)
	fmt.Println()

	queries := merged.Filenames
	if *limit > 0 && *limit < len(queries) {
		queries = queries[:*limit]
	}

	var (
		sumRR, sumRecall, sumTop1 float64
		extractTime, rankTime     time.Duration
		evaluated                 int
		misses                    []string
	)
	for _, name := range queries {
		start := time.Now()
		vec, err := features.ExtractFile(ctx, name)
		if err != nil {
			fmt.Printf("  skip %s: %v\n", name, err)
			continue
		}
		extractTime += time.Since(start)

		start = time.Now()
		matches, err := ranker.Rank(vec, merged)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		rankTime += time.Since(start)

		names := retriever.Filenames(matches)
		rr := retriever.ReciprocalRank(names, name)
		sumRR += rr
		sumRecall += retriever.RecallAtK(names, []string{name})
		sumTop1 += matches[0].Similarity
		if rr < 1 {
			misses = append(misses, name)
		}
		evaluated++
	}

	if evaluated == 0 {
		fmt.Println("No image could be evaluated.")
		os.Exit(1)
	}

	n := float64(evaluated)
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS (%d queries, k=%d):\n", evaluated, *topK)
	fmt.Printf("  MRR:                %.3f\n", sumRR/n)
	fmt.Printf("  Recall@%d:           %.3f\n", *topK, sumRecall/n)
	fmt.Printf("  Avg top-1 score:    %.3f\n", sumTop1/n)
	fmt.Printf("  Avg extract time:   %s\n", (extractTime / time.Duration(evaluated)).Round(time.Microsecond))
	fmt.Printf("  Avg rank time:      %s\n", (rankTime / time.Duration(evaluated)).Round(time.Microsecond))

	if len(misses) > 0 {
		fmt.Printf("\nNot ranked first (%d):\n", len(misses))
		for _, name := range misses {
			fmt.Printf("  - %s\n", name)
		}
		fmt.Println("\n  Status: CHECK - duplicate images or stale features, try 'gallery features'")
	} else {
		fmt.Println("\n  Status: GOOD - every image retrieves itself first")
	}
}
