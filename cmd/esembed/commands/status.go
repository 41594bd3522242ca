package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/esembed/internal/cli/output"
	"github.com/marmos91/esembed/pkg/config"
	"github.com/marmos91/esembed/pkg/orchestrator"
)

var (
	statusURL    string
	statusFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running esembed instance",
	Long: `Query the status API of a running "esembed run" process.

Examples:
  esembed status
  esembed status --url http://127.0.0.1:9600 -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "status API URL (default: http://127.0.0.1:<status.port>)")
	statusCmd.Flags().StringVarP(&statusFormat, "output", "o", "table", "output format: table, json, yaml")
}

// remoteStatus is the /status payload.
type remoteStatus struct {
	orchestrator.Status `yaml:",inline"`

	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

func (s remoteStatus) Headers() []string { return []string{"Field", "Value"} }

func (s remoteStatus) Rows() [][]string {
	plugins := make([]string, 0, len(s.Plugins))
	for _, p := range s.Plugins {
		plugins = append(plugins, p.Name)
	}
	rows := [][]string{
		{"Instance", s.ID},
		{"State", s.State.String()},
		{"URL", s.BaseURL},
		{"Transport port", strconv.Itoa(s.TransportPort)},
		{"Cluster", s.ClusterName},
		{"Node", s.NodeName},
		{"Work dir", s.WorkDir},
		{"PID", strconv.Itoa(s.PID)},
		{"Plugins", strings.Join(plugins, ", ")},
	}
	if s.Version != "" {
		rows = append(rows, []string{"Version", s.Version})
	}
	if s.Error != "" {
		rows = append(rows, []string{"Error", s.Error})
	}
	return rows
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusFormat)
	if err != nil {
		return err
	}

	base := statusURL
	if base == "" {
		base = "http://127.0.0.1:" + strconv.Itoa(config.DefaultStatusPort)
	}

	st, err := fetchStatus(cmd, strings.TrimSuffix(base, "/")+"/status")
	if err != nil {
		return err
	}
	return output.Print(cmd.OutOrStdout(), format, st)
}

func fetchStatus(cmd *cobra.Command, url string) (remoteStatus, error) {
	var body struct {
		Status string       `json:"status"`
		Data   remoteStatus `json:"data"`
		Error  string       `json:"error"`
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return remoteStatus{}, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return remoteStatus{}, fmt.Errorf("is esembed running? %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return remoteStatus{}, fmt.Errorf("decode %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return remoteStatus{}, fmt.Errorf("%s: %s", resp.Status, body.Error)
	}
	return body.Data, nil
}
