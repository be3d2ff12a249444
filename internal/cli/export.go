package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/Carmen-Shannon/oxy-capture/engine/renderer"
	"github.com/Carmen-Shannon/oxy-capture/engine/sink"
	"github.com/Carmen-Shannon/oxy-capture/internal/config"
)

// deviceFactory creates the device for an export along with any renderer options it needs.
// Tests replace it with an in-memory device.
var deviceFactory = func(kind common.BackendKind, logger *log.Logger) (gpu.Device, []renderer.RendererBuilderOption, error) {
	device, err := gpu.NewDevice(kind, gpu.WithLogger(logger))
	return device, nil, err
}

type exportOptions struct {
	configPath string
	backend    string
	outDir     string
	start      int
	end        int
}

func newExportCmd() *cobra.Command {
	opts := exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a frame range to OpenEXR files",
		Long: `Render the calibration scene for every frame in the range and write one OpenEXR file per frame.

Settings come from the TOML file given with --config, then OXY_* environment variables, then flags.`,
		Example: `  oxy-capture export --config shot.toml
  oxy-capture export --start 1 --end 48 --backend gl --out ./frames`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(opts.configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("backend") {
				cfg.Backend = opts.backend
			}
			if flags.Changed("out") {
				cfg.Output.Dir = opts.outDir
			}
			if flags.Changed("start") {
				cfg.Start = opts.start
			}
			if flags.Changed("end") {
				cfg.End = opts.end
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runExport(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "GPU backend: mapped (webgpu) or immediate (gl)")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory")
	cmd.Flags().IntVar(&opts.start, "start", 0, "first frame")
	cmd.Flags().IntVar(&opts.end, "end", 0, "last frame")

	return cmd
}

func runExport(ctx context.Context, cfg config.Config) error {
	logger := loggerFromContext(ctx)

	kind, _ := cfg.BackendKind()
	format, _ := cfg.PixelFormat()
	pixelType, _ := cfg.EXRPixelType()

	out, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return err
	}

	device, rendererOptions, err := deviceFactory(kind, logger)
	if err != nil {
		out.Close()
		return err
	}
	defer device.Release()
	logger.Info("device ready", "name", device.Name(), "backend", kind)

	scene := newCalibrationScene()
	options := []engine.EngineBuilderOption{
		engine.WithDevice(device),
		engine.WithResolution(cfg.Width, cfg.Height),
		engine.WithFormat(format),
		engine.WithPixelType(pixelType),
		engine.WithRenderTimeout(cfg.RenderTimeout.Duration),
		engine.WithProfiling(cfg.Profile),
		engine.WithSink(out),
		engine.WithRendererOptions(rendererOptions...),
		engine.WithLogger(logger),
	}
	for key, l := range scene.layers() {
		options = append(options, engine.WithLayer(key, l))
	}
	e, err := engine.NewEngine(options...)
	if err != nil {
		return err
	}
	defer e.Close()
	e.SetUpdateCallback(scene.Update)

	logger.Info("exporting", "frames", fmt.Sprintf("%d..%d", cfg.Start, cfg.End), "size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), "format", format, "dir", cfg.Output.Dir)
	stats, err := e.Export(ctx, cfg.Start, cfg.End)
	if err != nil {
		return fmt.Errorf("export stopped after %d frames: %w", stats.Frames, err)
	}
	logger.Infof("Exported %d frames, %.1f MB (%s)", stats.Frames, float64(stats.Bytes)/(1<<20), stats.Elapsed.Round(time.Millisecond))
	return nil
}

// buildSink combines the file sink with the optional preview and object sinks.
func buildSink(ctx context.Context, cfg config.Config, logger *log.Logger) (sink.Sink, error) {
	files, err := sink.NewFileSink(cfg.Output.Dir, sink.WithFilePattern(cfg.Output.Pattern), sink.WithFileLogger(logger))
	if err != nil {
		return nil, err
	}
	sinks := []sink.Sink{files}

	if cfg.Output.Preview {
		preview, err := sink.NewPreviewSink(cfg.Output.PreviewDir,
			sink.WithPreviewWidth(cfg.Output.PreviewWidth),
			sink.WithPreviewPattern(cfg.Output.Pattern),
			sink.WithPreviewLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, preview)
	}

	if cfg.MinIO.Enabled {
		client, err := cfg.MinIO.NewClient()
		if err != nil {
			return nil, err
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		objects, err := sink.NewMinIOSink(bucketCtx, client, cfg.MinIO.Bucket,
			sink.WithPrefix(cfg.MinIO.Prefix),
			sink.WithRegion(cfg.MinIO.Region),
			sink.WithObjectPattern(cfg.Output.Pattern),
			sink.WithMinIOLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, objects)
	}
	return sink.Multi(sinks...), nil
}
