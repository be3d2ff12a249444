package target

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameTarget_Defaults(t *testing.T) {
	d := gputest.NewDevice(common.BackendKindImmediate)

	ft, err := NewFrameTarget(d, 8, 6)
	require.NoError(t, err)
	defer ft.Destroy()

	assert.Equal(t, 8, ft.Width())
	assert.Equal(t, 6, ft.Height())
	assert.Equal(t, common.PixelFormatRGBA16Float, ft.Format())

	rt := ft.RenderTarget()
	require.NotNil(t, rt)
	assert.True(t, rt.HasDepth())
	assert.Equal(t, common.PixelFormatRGBA16Float, rt.Format())
}

func TestNewFrameTarget_CapabilityError(t *testing.T) {
	d := gputest.NewDevice(common.BackendKindImmediate)
	d.Unsupported[common.PixelFormatRGBA32Float] = true

	_, err := NewFrameTarget(d, 4, 4, WithFormat(common.PixelFormatRGBA32Float))
	require.ErrorIs(t, err, common.ErrCapability)
	assert.Contains(t, err.Error(), "EXT_color_buffer_float")
	assert.Zero(t, d.Stats().LiveTargets)
}

func TestNewFrameTarget_InvalidArguments(t *testing.T) {
	d := gputest.NewDevice(common.BackendKindMapped)

	_, err := NewFrameTarget(d, 0, 4)
	assert.ErrorIs(t, err, common.ErrPrecondition)

	_, err = NewFrameTarget(d, 4, 4, WithFormat(common.PixelFormatRGBA8Unorm))
	assert.ErrorIs(t, err, common.ErrPrecondition)
}

func TestResize(t *testing.T) {
	d := gputest.NewDevice(common.BackendKindMapped)
	ft, err := NewFrameTarget(d, 4, 4, WithFormat(common.PixelFormatRGBA32Float))
	require.NoError(t, err)
	defer ft.Destroy()

	before := ft.RenderTarget()
	require.NoError(t, ft.Resize(4, 4))
	assert.Same(t, before, ft.RenderTarget(), "same size must not reallocate")

	require.NoError(t, ft.Resize(10, 2))
	assert.NotSame(t, before, ft.RenderTarget())
	assert.Equal(t, 10, ft.Width())
	assert.Equal(t, 2, ft.Height())
	assert.Equal(t, common.PixelFormatRGBA32Float, ft.RenderTarget().Format())
	assert.True(t, before.(*gputest.Surface).Released())
	assert.Equal(t, 1, d.Stats().LiveTargets)

	assert.ErrorIs(t, ft.Resize(-1, 2), common.ErrPrecondition)
}

func TestReadPixelsFlipped(t *testing.T) {
	for _, kind := range []common.BackendKind{common.BackendKindMapped, common.BackendKindImmediate} {
		t.Run(kind.String(), func(t *testing.T) {
			d := gputest.NewDevice(kind)
			ft, err := NewFrameTarget(d, 2, 3, WithFormat(common.PixelFormatRGBA32Float))
			require.NoError(t, err)
			defer ft.Destroy()

			ft.RenderTarget().(*gputest.Surface).Color().Fill(func(x, y int) [4]float32 {
				return [4]float32{float32(y), 0, 0, 1}
			})

			raw, err := ft.ReadPixels(context.Background(), nil)
			require.NoError(t, err)
			flipped, err := ft.ReadPixelsFlipped(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, float32(0), raw.Float32[0], "raw row 0 is the bottom row")
			assert.Equal(t, float32(2), flipped.Float32[0], "flipped row 0 is the top row")
		})
	}
}

func TestReadPixelsSync(t *testing.T) {
	mapped := gputest.NewDevice(common.BackendKindMapped)
	ft, err := NewFrameTarget(mapped, 2, 2)
	require.NoError(t, err)
	_, err = ft.ReadPixelsSync()
	assert.ErrorIs(t, err, common.ErrUnsupported)
	_, err = ft.ReadPixelsFlippedSync()
	assert.ErrorIs(t, err, common.ErrUnsupported)
	assert.Zero(t, mapped.Stats().Copies)
	ft.Destroy()

	immediate := gputest.NewDevice(common.BackendKindImmediate)
	ft, err = NewFrameTarget(immediate, 2, 2)
	require.NoError(t, err)
	pb, err := ft.ReadPixelsFlippedSync()
	require.NoError(t, err)
	assert.Equal(t, 16, pb.Len())
	ft.Destroy()
}

func TestDestroy(t *testing.T) {
	d := gputest.NewDevice(common.BackendKindImmediate)
	ft, err := NewFrameTarget(d, 2, 2)
	require.NoError(t, err)

	ft.Destroy()
	ft.Destroy()
	assert.Nil(t, ft.RenderTarget())
	assert.Zero(t, d.Stats().LiveTargets)

	_, err = ft.ReadPixels(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrPrecondition)
	_, err = ft.ReadPixelsSync()
	assert.ErrorIs(t, err, common.ErrPrecondition)
	assert.ErrorIs(t, ft.Resize(4, 4), common.ErrPrecondition)
}
