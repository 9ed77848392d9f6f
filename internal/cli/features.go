package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Regenerate features for uploaded images",
	Long: `Extract features for every image that is not one of the originals and
replace the stored user features with the result. Images that cannot be
decoded are skipped.

Examples:
  gallery features
  gallery features --dir /srv/gallery`,
	Args: cobra.NoArgs,
	RunE: runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}

func runFeatures(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetLogger(), 0)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.gallery.Regenerate(cmd.Context())
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	start := time.Now()
	for ev := range events {
		switch {
		case ev.Error != "":
			if bar != nil {
				bar.Finish()
			}
			return errors.New(ev.Error)
		case ev.Complete:
			if bar != nil {
				bar.Finish()
			}
			fmt.Printf("\nFeature generation complete:\n")
			fmt.Printf("  New images:      %d\n", ev.Count)
			fmt.Printf("  Original images: %d\n", ev.OriginalCount)
			fmt.Printf("  Elapsed:         %s\n", formatDuration(time.Since(start)))
		default:
			if bar == nil {
				bar = newProgressBar(ev.Total, "[cyan]Extracting[reset]")
			}
			bar.Set(ev.Current)
			if ev.Current > 0 {
				rate := float64(ev.Current) / time.Since(start).Seconds()
				if rate > 0 {
					eta := time.Duration(float64(ev.Total-ev.Current)/rate) * time.Second
					bar.Describe(fmt.Sprintf("[cyan]Extracting[reset] ETA: %s", formatDuration(eta)))
				}
			}
		}
	}
	return nil
}
