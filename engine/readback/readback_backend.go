package readback

import (
	"context"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
)

// readbackBackend is the per-device-kind readback strategy selected by NewService.
// The region passed in has already been validated against the target.
type readbackBackend interface {
	// ReadPixels reads region of target, suspending cooperatively where the device requires it.
	ReadPixels(ctx context.Context, target gpu.Handle, region common.Region) (*common.PixelBuffer, error)

	// ReadPixelsSync reads region of target without a context.
	ReadPixelsSync(target gpu.Handle, region common.Region) (*common.PixelBuffer, error)
}
