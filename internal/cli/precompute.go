package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var precomputeForce bool

var precomputeCmd = &cobra.Command{
	Use:   "precompute",
	Short: "Build features for the original images",
	Long: `Extract features for the first N images of the image directory (the
originals, N = catalog.original_count) and store them as the original
features. Run once before deployment. Existing original features are kept
unless --force is given.

Examples:
  gallery precompute
  gallery precompute --force`,
	Args: cobra.NoArgs,
	RunE: runPrecompute,
}

func init() {
	rootCmd.AddCommand(precomputeCmd)
	precomputeCmd.Flags().BoolVarP(&precomputeForce, "force", "f", false, "overwrite existing original features")
}

func runPrecompute(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := openApp(cfg, GetLogger(), 0)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Scanning %s...\n", cfg.Catalog.ImageDir)

	var bar *progressbar.ProgressBar
	progress := func(name string, done, total int) {
		if bar == nil {
			bar = newProgressBar(total, "[cyan]Precomputing[reset]")
		}
		bar.Describe(fmt.Sprintf("[cyan]Precomputing[reset] %s", name))
		bar.Set(done)
	}

	result, err := a.gallery.Precompute(cmd.Context(), precomputeForce, progress)
	if err != nil {
		return fmt.Errorf("precompute failed: %w", err)
	}

	fmt.Printf("\nOriginal features written:\n")
	fmt.Printf("  Images:  %d\n", result.Total)
	fmt.Printf("  Written: %d\n", result.Written)
	if len(result.Failed) > 0 {
		fmt.Printf("\nSkipped:\n")
		for _, name := range result.Failed {
			fmt.Printf("  - %s\n", name)
		}
	}
	fmt.Printf("\nFeatures stored in: %s (%s backend)\n", cfg.Store.Dir, cfg.Store.Backend)
	return nil
}
