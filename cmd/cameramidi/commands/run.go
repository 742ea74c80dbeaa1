package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/api"
	"github.com/bryanchriswhite/cameramidi/internal/capture"
	"github.com/bryanchriswhite/cameramidi/internal/capture/gstreamer"
	capopencv "github.com/bryanchriswhite/cameramidi/internal/capture/opencv"
	"github.com/bryanchriswhite/cameramidi/internal/colorspace"
	csopencv "github.com/bryanchriswhite/cameramidi/internal/colorspace/opencv"
	"github.com/bryanchriswhite/cameramidi/internal/config"
	"github.com/bryanchriswhite/cameramidi/internal/display"
	dispopencv "github.com/bryanchriswhite/cameramidi/internal/display/opencv"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/bryanchriswhite/cameramidi/internal/output"
	"github.com/bryanchriswhite/cameramidi/internal/output/midiport"
	"github.com/bryanchriswhite/cameramidi/internal/output/zmq"
	"github.com/bryanchriswhite/cameramidi/internal/overlay"
	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
	"github.com/bryanchriswhite/cameramidi/internal/recorder"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture frames and send control messages",
	Long: `Open the camera and the MIDI output, then process frames until
interrupted. Each frame is split into B, G, R and H, S, V planes; the
configured statistics are scaled to 0-127 and sent as control changes.`,
	Example: `  # Run with the defaults (OpenCV camera 0, all 24 statistics)
  cameramidi run

  # Means only, on custom control numbers
  cameramidi run --variant minimal --cc 20,21,22,23,24,25

  # Second camera through GStreamer, no window, monitor on port 9090
  cameramidi run --backend gstreamer --device-index 1 --display none --port 9090

  # Quiet, with a synthetic source
  cameramidi run --backend pattern --quiet`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg, err := configMgr.Get()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	initLogging(cfg)

	settings, err := cfg.Settings()
	if err != nil {
		return err
	}

	session := uuid.NewString()
	log := logger.WithSession("run", session)
	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("variant", settings.Variant.String()).
		Msg("Starting cameramidi")

	capturer := capture.NewRouter(buildCapturers(cfg)...)
	if err := capturer.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer capturer.Stop()

	out, port := buildOutput(cfg)
	if err := out.Start(); err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	defer out.Stop()
	log.Info().
		Str("output", out.Name()).
		Bool("virtual", port.Virtual()).
		Msg("MIDI output open")

	opts := []pipeline.Option{pipeline.WithDiagnostics(os.Stdout)}

	if cfg.Display.Backend == display.BackendOpenCV {
		// HighGUI calls from Start, Show and Stop share this thread
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	if sink := buildDisplay(cfg); sink != nil {
		if err := sink.Start(); err != nil {
			log.Warn().Err(err).Str("display", sink.Name()).Msg("Preview unavailable, continuing without it")
		} else {
			defer sink.Stop()
			opts = append(opts, pipeline.WithDisplay(sink))
		}
	}

	if cfg.Record.Dir != "" {
		rec, err := recorder.Create(cfg.Record.Dir, session, settings.Variant.String())
		if err != nil {
			return err
		}
		defer rec.Close()
		opts = append(opts, pipeline.WithObserver(rec))
		log.Info().Str("path", rec.Path()).Msg("Recording statistics")
	}

	var (
		hub    *api.Hub
		stream *display.MJPEGStream
	)
	if cfg.Server.Enabled {
		ov := overlay.NewDefaultManager()
		if len(cfg.Overlay.Widgets) > 0 {
			ov.Clear()
			ov.LoadFromConfig(cfg.Overlay.Widgets)
		}
		ov.SetEnabled(cfg.Overlay.Enabled)

		stream = display.NewMJPEGStream(display.StreamConfig{
			Width:   cfg.Stream.Width,
			Height:  cfg.Stream.Height,
			FPS:     cfg.Stream.FPS,
			Quality: cfg.Stream.Quality,
		}, ov)
		if err := stream.Start(); err != nil {
			return fmt.Errorf("failed to start preview stream: %w", err)
		}
		defer stream.Stop()

		hub = api.NewHub()
		opts = append(opts, pipeline.WithObserver(stream), pipeline.WithObserver(hub))
	}

	p, err := pipeline.New(settings, capturer, buildConverter(cfg), out, opts...)
	if err != nil {
		return err
	}

	if cfg.Server.Enabled {
		server := api.NewServer(p, cfg, hub, api.WithStream(stream), api.WithSession(session))
		if err := server.Start(cfg.Server.Port); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		}()
		log.Info().
			Str("viewer", fmt.Sprintf("http://localhost:%d/", cfg.Server.Port)).
			Str("api", fmt.Sprintf("http://localhost:%d/api", cfg.Server.Port)).
			Msg("Monitor server running")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		return err
	}

	c := p.Counters()
	log.Info().
		Uint64("frames", c.Frames).
		Uint64("unavailable", c.Unavailable).
		Uint64("messages", c.Messages).
		Uint64("send_errors", c.SendErrors).
		Msg("Shutting down gracefully")
	return nil
}

// buildCapturers returns the capture backends in fallback order
func buildCapturers(cfg *config.Config) []capture.Capturer {
	gstOpts := gstreamer.Options{
		DeviceIndex: cfg.Capture.DeviceIndex,
		Width:       cfg.Capture.Width,
		Height:      cfg.Capture.Height,
	}

	var out []capture.Capturer
	for _, name := range capture.Order(cfg.Capture.Backend) {
		switch name {
		case capture.BackendOpenCV:
			out = append(out, capopencv.New(cfg.Capture.DeviceIndex, cfg.Capture.Zoom))
		case capture.BackendGStreamer:
			out = append(out, gstreamer.NewPipeline(gstOpts))
		case capture.BackendGstLaunch:
			out = append(out, gstreamer.NewLaunch(gstOpts))
		case capture.BackendX11:
			out = append(out, capture.NewX11Capturer(cfg.Capture.Region, cfg.Capture.FollowFocus))
		case capture.BackendPattern:
			w, h := cfg.Capture.Width, cfg.Capture.Height
			if w <= 0 || h <= 0 {
				w, h = 640, 480
			}
			out = append(out, capture.NewPattern(w, h))
		}
	}
	return out
}

func buildConverter(cfg *config.Config) colorspace.Converter {
	if cfg.Pipeline.Converter == colorspace.ConverterReference {
		return colorspace.Reference{}
	}
	return csopencv.New()
}

// buildOutput returns the MIDI port, fanned out to the ZeroMQ bridge when
// configured, along with the port itself
func buildOutput(cfg *config.Config) (output.Output, *midiport.Output) {
	port := midiport.New(midiport.Config{
		PortName:    cfg.MIDI.PortName,
		VirtualName: cfg.MIDI.VirtualPortName,
	})
	if cfg.Publish.Endpoint == "" {
		return port, port
	}
	return output.NewFanout(port, zmq.NewPublisher(cfg.Publish.Endpoint)), port
}

func buildDisplay(cfg *config.Config) display.Sink {
	switch cfg.Display.Backend {
	case display.BackendOpenCV:
		return dispopencv.New()
	case display.BackendX11:
		return display.NewX11Window(cfg.Display.Width, cfg.Display.Height)
	default:
		return nil
	}
}
