package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gallery/config"
	"gallery/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Image gallery with feature extraction and similarity search",
	Long: `Gallery serves an image collection over HTTP, extracts feature vectors from
the images and finds visually similar ones by cosine similarity.

Example usage:
  gallery serve                    # Start the web server on :5000
  gallery precompute               # Build features for the original images
  gallery features                 # Regenerate features for uploaded images
  gallery search query.jpg         # Find the most similar images`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg.ApplyEnv()
		cfg.Resolve(rootDir)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger = logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./gallery.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

func GetLogger() *logging.Logger {
	if logger == nil {
		return logging.Discard()
	}
	return logger
}
