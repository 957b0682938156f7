package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/spatialbridge/internal/feature/barcode"
	"github.com/Iron-Ham/spatialbridge/internal/feature/foundobjects"
	"github.com/Iron-Ham/spatialbridge/internal/feature/imu"
	"github.com/Iron-Ham/spatialbridge/internal/monitor"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "List result codes and the native status values they come from",
	Args:  cobra.NoArgs,
	RunE:  runCodes,
}

var codesJSON bool

func init() {
	rootCmd.AddCommand(codesCmd)
	codesCmd.Flags().BoolVar(&codesJSON, "json", false, "print as JSON")
}

// codeInfo describes one result code.
type codeInfo struct {
	Code    string `json:"code"`
	Value   int    `json:"value"`
	Status  string `json:"native_status"`
	Feature string `json:"feature,omitempty"`
	Error   bool   `json:"error"`
}

var featureTables = []struct {
	name  string
	table result.Table
}{
	{foundobjects.Name, foundobjects.Table},
	{barcode.Name, barcode.Table},
	{imu.Name, imu.Table},
}

func describeCodes() []codeInfo {
	infos := make([]codeInfo, 0, len(result.All()))
	for _, c := range result.All() {
		info := codeInfo{Code: c.String(), Value: int(c), Error: c.IsError()}
		if status, ok := result.Base().Native(c); ok {
			info.Status = fmt.Sprintf("%#x", uint32(status))
		} else {
			for _, ft := range featureTables {
				if status, ok := ft.table.Native(c); ok {
					info.Status = fmt.Sprintf("%#x", uint32(status))
					info.Feature = ft.name
					break
				}
			}
		}
		infos = append(infos, info)
	}
	return infos
}

func runCodes(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	infos := describeCodes()
	if codesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	return writeCodes(out, infos)
}

func writeCodes(w io.Writer, infos []codeInfo) error {
	for _, info := range infos {
		name := monitor.CodeStyle(!info.Error, info.Code == result.Pending.String()).
			Width(32).Render(info.Code)
		scope := "generic"
		if info.Feature != "" {
			scope = info.Feature
		}
		if _, err := fmt.Fprintf(w, "%s %s %s\n", name, monitor.Value.Width(12).Render(info.Status), monitor.Muted.Render(scope)); err != nil {
			return err
		}
	}
	return nil
}
