package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesPerPixel(t *testing.T) {
	for f, want := range map[PixelFormat]int{
		PixelFormatRGBA8Unorm:  4,
		PixelFormatRGBA16Float: 8,
		PixelFormatRGBA32Float: 16,
	} {
		got, err := f.BytesPerPixel()
		require.NoError(t, err, f.String())
		assert.Equal(t, want, got, f.String())
	}

	_, err := PixelFormatUnknown.BytesPerPixel()
	assert.ErrorIs(t, err, ErrPrecondition)
	_, err = PixelFormat(42).BytesPerPixel()
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestParsePixelFormat(t *testing.T) {
	f, err := ParsePixelFormat("rgba16float")
	require.NoError(t, err)
	assert.Equal(t, PixelFormatRGBA16Float, f)

	_, err = ParsePixelFormat("bgra8")
	assert.Error(t, err)
}

func TestResolveRegion(t *testing.T) {
	r, err := ResolveRegion(nil, 8, 4)
	require.NoError(t, err)
	assert.Equal(t, Region{Width: 8, Height: 4}, r)

	r, err = ResolveRegion(&Region{X: 6, Y: 3, Width: 2, Height: 1}, 8, 4)
	require.NoError(t, err)
	assert.Equal(t, Region{X: 6, Y: 3, Width: 2, Height: 1}, r)

	for _, bad := range []Region{
		{Width: 0, Height: 1},
		{X: -1, Width: 1, Height: 1},
		{X: 7, Width: 2, Height: 1},
		{Y: 4, Width: 1, Height: 1},
	} {
		_, err := ResolveRegion(&bad, 8, 4)
		assert.ErrorIs(t, err, ErrPrecondition, bad.String())
	}
}

func TestNewPixelBuffer(t *testing.T) {
	pb, err := NewPixelBuffer(3, 2, PixelFormatRGBA8Unorm)
	require.NoError(t, err)
	assert.Len(t, pb.Uint8, 24)
	assert.Nil(t, pb.Float32)
	assert.Equal(t, 12, pb.RowStride())

	pb, err = NewPixelBuffer(3, 2, PixelFormatRGBA32Float)
	require.NoError(t, err)
	assert.Len(t, pb.Float32, 24)
	assert.Equal(t, 24, pb.Len())

	_, err = NewPixelBuffer(0, 2, PixelFormatRGBA32Float)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, 256, AlignUp(1, 256))
	assert.Equal(t, 256, AlignUp(256, 256))
	assert.Equal(t, 512, AlignUp(257, 256))
	assert.Equal(t, 7, AlignUp(7, 1))
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce[int]())
}

func TestBytesToSlice(t *testing.T) {
	in := []float32{1.5, -2, 0.25}
	out := BytesToSlice[float32](SliceToBytes(in))
	assert.Equal(t, in, out)

	assert.Nil(t, BytesToSlice[float32]([]byte{1, 2, 3}))
}
