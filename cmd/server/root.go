package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iliyamo/image-tattoo/internal/config"
	"github.com/iliyamo/image-tattoo/internal/logging"
	"github.com/iliyamo/image-tattoo/internal/metadata"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "image-tattoo",
	Short: "Embed and read metadata watermarks on images",
	Long: `image-tattoo stores uploaded images together with a tattooed copy that
carries a text token (for example a patient identifier) in a metadata slot.

Configuration is read from the environment, an optional .env file and the
YAML file named by CONFIG_FILE.`,
	SilenceUsage: true,
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logging.CreateLogger(cfg.LogLevel))
	return cfg, nil
}

func newCodec(cfg config.Config) (metadata.Codec, error) {
	return metadata.NewCodec(cfg.MetadataCodec, cfg.ExifToolPath, cfg.ExifToolTimeout)
}
