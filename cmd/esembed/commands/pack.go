package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/esembed/internal/logger"
	"github.com/marmos91/esembed/pkg/bundle"
)

var packCompression string

var packCmd = &cobra.Command{
	Use:   "pack <dir> <bundle>",
	Short: "Pack a directory into a bundle",
	Long: `Encode a directory tree as a bundle archive. The destination may be a
local path or an s3:// URI, in which case the bundle is uploaded.

Examples:
  esembed pack ./elasticsearch-8.15.0 bundles/elasticsearch.lz4
  esembed pack ./jdk s3://artifacts/jdk-21.zst --compression zstd`,
	Args: cobra.ExactArgs(2),
	RunE: runPack,
}

func init() {
	packCmd.Flags().StringVarP(&packCompression, "compression", "c", "lz4", "compression: lz4, zstd, gzip, none")
}

func runPack(cmd *cobra.Command, args []string) error {
	codec, err := bundle.ParseCompression(packCompression)
	if err != nil {
		return err
	}
	dir, dest := args[0], args[1]
	if info, err := os.Stat(dir); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	local := dest
	if bundle.IsS3URI(dest) {
		tmp, err := os.CreateTemp("", "esembed-pack-*"+codec.Ext())
		if err != nil {
			return err
		}
		_ = tmp.Close()
		local = tmp.Name()
		defer func() { _ = os.Remove(local) }()
	} else if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	entries, n, err := bundle.PackDir(dir, local, codec)
	if err != nil {
		return fmt.Errorf("pack %s: %w", dir, err)
	}
	logger.Debug("bundle packed", logger.KeyPath, local, logger.KeyEntries, entries, logger.KeyBytes, n)

	if bundle.IsS3URI(dest) {
		if err := upload(cmd, local, dest); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Packed %d entries (%s, %s) into %s\n",
		entries, humanize.IBytes(uint64(n)), codec, dest)
	return nil
}

func upload(cmd *cobra.Command, path, dest string) error {
	bucket, key, err := bundle.ParseS3URI(dest)
	if err != nil {
		return err
	}
	client, err := bundle.NewS3Client(cmd.Context(), s3Options())
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return bundle.Upload(cmd.Context(), client, bucket, key, f)
}
