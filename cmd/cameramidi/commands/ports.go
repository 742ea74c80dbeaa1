package commands

import (
	"fmt"

	"github.com/bryanchriswhite/cameramidi/internal/output/midiport"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI output ports",
	Long: `List the MIDI output ports visible to the system. The run command opens
the first port whose name contains midi.port_name, or the first port when it
is empty. With no ports a virtual port is created instead.`,
	Args: cobra.NoArgs,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := midiport.List()
	if err != nil {
		return fmt.Errorf("failed to list MIDI ports: %w", err)
	}

	if len(ports) == 0 {
		fmt.Println("No MIDI output ports found; run will open a virtual port.")
		return nil
	}

	fmt.Printf("📋 MIDI output ports (%d):\n\n", len(ports))
	for i, name := range ports {
		fmt.Printf("  %d. %s\n", i, name)
	}
	return nil
}
