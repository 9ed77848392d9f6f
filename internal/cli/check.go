package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report the state of the image catalog and stored features",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := openApp(cfg, GetLogger(), 0)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	fresh, originals, err := a.catalog.Split(ctx)
	if err != nil {
		return err
	}
	original, user, err := a.features.Load(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Image directory: %s\n", cfg.Catalog.ImageDir)
	fmt.Printf("  Original images: %d\n", len(originals))
	fmt.Printf("  New images:      %d\n", len(fresh))
	fmt.Printf("\nStored features (%s backend):\n", cfg.Store.Backend)
	fmt.Printf("  Original: %d\n", original.Len())
	fmt.Printf("  User:     %d\n", user.Len())

	switch {
	case original.Empty() && user.Empty():
		fmt.Println("\nNo features found. Run 'gallery precompute' or 'gallery features' first.")
	case user.Len() < len(fresh):
		fmt.Printf("\n%d new images have no features. Run 'gallery features' to update.\n", len(fresh)-user.Len())
	}
	return nil
}
