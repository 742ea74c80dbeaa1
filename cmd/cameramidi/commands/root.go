package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/cameramidi/internal/config"
	"github.com/bryanchriswhite/cameramidi/internal/control"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "cameramidi",
		Short: "cameramidi - turn a camera into a MIDI controller",
		Long: `cameramidi reads frames from a camera, computes per-channel colour
statistics in BGR and HSV, and sends them as MIDI control change messages.

Features:
  • OpenCV, GStreamer and X11 screen capture backends
  • Mean, median, min and max per channel, scaled to 0-127
  • Configurable control numbers, compatible with the original patch layout
  • Real or virtual MIDI output, optional ZeroMQ bridge
  • Preview window, MJPEG stream and monitor API
  • Per-frame statistics recorder`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/cameramidi/config.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("quiet", false, "do not print per-frame diagnostics")
	flags.String("variant", "", "statistics to emit (full or minimal)")
	flags.String("cc", "", "comma separated control numbers in emission order, per channel b,g,r,h,s,v: "+
		"6 means for minimal; 24 (mean,median,min,max) or 18 (mean,min,max) for full. "+
		"Lists written for the legacy mean-block layout map to different statistics")
	flags.String("backend", "", "capture backend (opencv, gstreamer, gst-launch, x11, pattern)")
	flags.String("display", "", "preview backend (opencv, x11, none)")
	flags.Int("port", 0, "serve the monitor API on this port")
	flags.Int("device-index", 0, "camera device index")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig opens the configuration and layers the command line on top.
// Only flags given explicitly override the file.
func loadConfig(cmd *cobra.Command) (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	v := configMgr.GetViper()
	flags := cmd.Flags()

	bindings := map[string]string{
		"log-level":    "log_level",
		"variant":      "pipeline.variant",
		"backend":      "capture.backend",
		"display":      "display.backend",
		"device-index": "capture.device_index",
		"port":         "server.port",
	}
	for flag, key := range bindings {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}

	if flags.Changed("port") {
		v.Set("server.enabled", true)
	}
	if quiet, _ := flags.GetBool("quiet"); quiet {
		v.Set("pipeline.print", false)
	}
	if flags.Changed("cc") {
		list, _ := flags.GetString("cc")
		numbers, err := control.ParseList(list)
		if err != nil {
			return nil, fmt.Errorf("invalid --cc: %w", err)
		}
		v.Set("midi.control_numbers", numbers)
	}

	return configMgr, nil
}

// initLogging applies the configured log level to the global logger
func initLogging(cfg *config.Config) {
	logger.Init(cfg.LogLevel, true)
}
