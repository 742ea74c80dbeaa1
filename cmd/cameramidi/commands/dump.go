package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bryanchriswhite/cameramidi/internal/recorder"
	"github.com/spf13/cobra"
)

var dumpFormat string

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print a statistics recording",
	Long: `Decode a recording written with record.dir set and print one line per
frame. A recording cut short by a crash is printed up to its last complete
frame.`,
	Example: `  # One JSON object per frame
  cameramidi dump ~/cameramidi/20261019_101500_1b4e28ba.cammidi

  # Sequence number and control values only
  cameramidi dump --format values recording.cammidi`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "json", "output format (json or values)")
}

func runDump(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	entries, err := recorder.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}

	switch dumpFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		for _, e := range entries {
			if err := encoder.Encode(e); err != nil {
				return err
			}
		}
	case "values":
		for _, e := range entries {
			parts := make([]string, len(e.Record.Values))
			for i, v := range e.Record.Values {
				parts[i] = fmt.Sprintf("%s=%d", v.ID, v.Value)
			}
			fmt.Printf("%6d %s %s\n", e.Record.Seq,
				e.Time.Format("15:04:05.000"), strings.Join(parts, " "))
		}
	default:
		return fmt.Errorf("unsupported format: %s (use 'json' or 'values')", dumpFormat)
	}
	return nil
}
