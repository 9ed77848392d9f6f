package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Find the stored images most similar to an image",
	Long: `Extract features from the given image and rank every stored image by
cosine similarity to it.

Examples:
  gallery search query.jpg
  gallery search query.jpg --top-k 10 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open query image: %w", err)
	}
	defer f.Close()

	a, err := openApp(GetConfig(), GetLogger(), searchTopK)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.gallery.Search(cmd.Context(), filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), path)
	for i, r := range results {
		fmt.Printf("  [%d] %-40s %.4f\n", i+1, r.Filename, r.Similarity)
	}
	return nil
}
