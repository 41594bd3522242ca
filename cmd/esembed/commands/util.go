package commands

import (
	"context"

	"github.com/marmos91/esembed/pkg/bundle"
	"github.com/marmos91/esembed/pkg/config"
)

// getConfigSource describes where the configuration was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// s3Options returns the S3 section of the config file when one is
// available, so archive commands reach the same object store as "run".
func s3Options() bundle.S3Options {
	cfg, err := config.Load(cfgFile, func(c *config.Config) {
		// Bundles are irrelevant here but required by validation.
		if c.Bundles.Runtime == "" {
			c.Bundles.Runtime = "-"
		}
		if c.Bundles.App == "" {
			c.Bundles.App = "-"
		}
	})
	if err != nil {
		return bundle.S3Options{}
	}
	return cfg.Bundles.S3.S3Options()
}

// openSource resolves a local path or s3:// URI.
func openSource(ctx context.Context, uri string) (bundle.Source, error) {
	return bundle.ParseSource(ctx, uri, s3Options())
}
