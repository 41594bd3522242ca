package commands

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/esembed/internal/cli/output"
	"github.com/marmos91/esembed/pkg/archive"
	"github.com/marmos91/esembed/pkg/bundle"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:   "list <bundle>",
	Short: "List the entries of a bundle",
	Long: `List the entries of a bundle archive without extracting it.

Examples:
  esembed list bundles/elasticsearch.lz4
  esembed list bundles/jdk.lz4 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "output", "o", "table", "output format: table, json, yaml")
}

// entryList renders archive entries.
type entryList struct {
	Codec   string      `json:"codec" yaml:"codec"`
	Entries []entryView `json:"entries" yaml:"entries"`
}

type entryView struct {
	Name string `json:"name" yaml:"name"`
	Size int64  `json:"size" yaml:"size"`
	Dir  bool   `json:"dir,omitempty" yaml:"dir,omitempty"`
}

func (l entryList) Headers() []string { return []string{"Name", "Size", "Bytes"} }

func (l entryList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		size := humanize.IBytes(uint64(e.Size))
		if e.Dir {
			size = "-"
		}
		rows = append(rows, []string{e.Name, size, strconv.FormatInt(e.Size, 10)})
	}
	return rows
}

func newEntryList(entries []archive.Entry, codec bundle.Compression) entryList {
	l := entryList{Codec: codec.String(), Entries: make([]entryView, 0, len(entries))}
	for _, e := range entries {
		l.Entries = append(l.Entries, entryView{Name: e.Name, Size: e.Size, Dir: e.IsDir()})
	}
	return l
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listFormat)
	if err != nil {
		return err
	}
	src, err := openSource(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	entries, codec, err := bundle.List(cmd.Context(), src)
	if err != nil {
		return err
	}
	return output.Print(cmd.OutOrStdout(), format, newEntryList(entries, codec))
}
