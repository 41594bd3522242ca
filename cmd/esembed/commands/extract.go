package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/esembed/pkg/archive"
	"github.com/marmos91/esembed/pkg/bundle"
)

var extractVerbose bool

var extractCmd = &cobra.Command{
	Use:   "extract <bundle> <dir>",
	Short: "Extract a bundle into a directory",
	Long: `Decompress and extract a bundle archive. The compression codec is detected
from the stream; the bundle may be a local path or an s3:// URI.

Examples:
  esembed extract bundles/elasticsearch.lz4 /tmp/es
  esembed extract s3://artifacts/jdk-21.lz4 /tmp/jdk -v`,
	Args: cobra.ExactArgs(2),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVarP(&extractVerbose, "verbose", "v", false, "print each extracted entry")
}

func runExtract(cmd *cobra.Command, args []string) error {
	src, err := openSource(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var opts bundle.Options
	if extractVerbose {
		opts.Progress = func(e archive.Entry) { _, _ = fmt.Fprintln(out, e.Name) }
	}

	st, err := bundle.Extract(cmd.Context(), src, args[1], opts)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Extracted %d entries (%s) to %s in %s\n",
		st.Entries, humanize.IBytes(uint64(st.Bytes)), args[1], st.Duration.Round(time.Millisecond))
	return nil
}
