package pixel

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlipVertical_ReversesRows(t *testing.T) {
	// 2x3, one channel
	in := []uint8{
		1, 2,
		3, 4,
		5, 6,
	}
	out, err := FlipVertical(in, 2, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint8{5, 6, 3, 4, 1, 2}, out)
	assert.Equal(t, []uint8{1, 2, 3, 4, 5, 6}, in, "input must not be modified")
}

func TestFlipVertical_Idempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, size := range [][2]int{{1, 1}, {3, 1}, {1, 4}, {7, 5}, {16, 9}} {
		w, h := size[0], size[1]

		bytes := make([]uint8, w*h*4)
		floats := make([]float32, w*h*4)
		for i := range bytes {
			bytes[i] = uint8(rng.Intn(256))
			floats[i] = rng.Float32()*100 - 50
		}

		once, err := FlipVertical(bytes, w, h, 4)
		require.NoError(t, err)
		twice, err := FlipVertical(once, w, h, 4)
		require.NoError(t, err)
		assert.Equal(t, bytes, twice)

		fonce, err := FlipVertical(floats, w, h, 4)
		require.NoError(t, err)
		ftwice, err := FlipVertical(fonce, w, h, 4)
		require.NoError(t, err)
		assert.Equal(t, floats, ftwice)
	}
}

func TestFlipVertical_RejectsMismatchedLength(t *testing.T) {
	_, err := FlipVertical(make([]float32, 10), 2, 2, 4)
	assert.ErrorIs(t, err, common.ErrPrecondition)

	_, err = FlipVertical(make([]uint8, 0), 0, 2, 4)
	assert.ErrorIs(t, err, common.ErrPrecondition)
}

func TestFlipBuffer_KeepsMetadata(t *testing.T) {
	pb, err := common.NewPixelBuffer(1, 2, common.PixelFormatRGBA32Float)
	require.NoError(t, err)
	copy(pb.Float32, []float32{1, 1, 1, 1, 2, 2, 2, 2})

	out, err := FlipBuffer(pb)
	require.NoError(t, err)
	assert.Equal(t, common.PixelFormatRGBA32Float, out.Format)
	assert.Equal(t, 1, out.Width)
	assert.Equal(t, 2, out.Height)
	assert.Nil(t, out.Uint8)
	assert.Equal(t, []float32{2, 2, 2, 2, 1, 1, 1, 1}, out.Float32)

	_, err = FlipBuffer(nil)
	assert.ErrorIs(t, err, common.ErrPrecondition)
}
