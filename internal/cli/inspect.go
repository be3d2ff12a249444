package cli

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-capture/engine/exr"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.exr>",
		Short: "Print the header and channel ranges of an OpenEXR file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			img, err := exr.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			logger.Debug("decoded", "path", args[0], "bytes", len(data))
			return printImage(cmd.OutOrStdout(), img)
		},
	}
}

// printImage writes a human-readable summary of img to w.
func printImage(w io.Writer, img *exr.Image) error {
	h := img.Header
	dw := h.DataWindow
	fmt.Fprintf(w, "size:        %dx%d\n", img.Width, img.Height)
	fmt.Fprintf(w, "dataWindow:  (%d,%d)-(%d,%d)\n", dw.XMin, dw.YMin, dw.XMax, dw.YMax)
	fmt.Fprintf(w, "compression: %d\n", h.Compression)
	fmt.Fprintf(w, "lineOrder:   %d\n", h.LineOrder)

	names := make([]string, 0, len(h.Channels))
	types := make(map[string]exr.PixelType, len(h.Channels))
	for _, ch := range h.Channels {
		names = append(names, ch.Name)
		types[ch.Name] = ch.PixelType
	}
	sort.Strings(names)
	for _, name := range names {
		lo, hi := channelRange(img.Samples[name])
		fmt.Fprintf(w, "channel %-4s %-5s min=%g max=%g\n", name, types[name], lo, hi)
	}
	return nil
}

func channelRange(samples []float32) (float32, float32) {
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range samples {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
