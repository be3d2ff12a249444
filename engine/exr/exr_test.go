package exr

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradient returns width*height RGBA samples whose values identify their position.
func gradient(width, height int) []float32 {
	s := make([]float32, 0, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			s = append(s, float32(x), float32(y), float32(x+y)/4, 1)
		}
	}
	return s
}

func TestEncode_HeaderRoundTrip(t *testing.T) {
	for _, pt := range []PixelType{PixelTypeHalf, PixelTypeFloat} {
		t.Run(pt.String(), func(t *testing.T) {
			data, err := Encode(gradient(5, 3), 5, 3, WithPixelType(pt))
			require.NoError(t, err)

			assert.Equal(t, []byte{0x76, 0x2f, 0x31, 0x01}, data[:4])
			assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[4:8]))

			h, err := ReadHeader(data)
			require.NoError(t, err)

			want := Box2i{XMin: 0, YMin: 0, XMax: 4, YMax: 2}
			assert.Equal(t, want, h.DataWindow)
			assert.Equal(t, want, h.DisplayWindow)
			assert.Equal(t, uint8(CompressionNone), h.Compression)
			assert.Equal(t, uint8(LineOrderIncreasingY), h.LineOrder)
			assert.Equal(t, float32(1), h.PixelAspectRatio)
			assert.Equal(t, [2]float32{0, 0}, h.ScreenWindowCenter)
			assert.Equal(t, float32(1), h.ScreenWindowWidth)

			require.Len(t, h.Channels, 4)
			names := make([]string, 0, 4)
			for _, ch := range h.Channels {
				names = append(names, ch.Name)
				assert.Equal(t, pt, ch.PixelType)
				assert.Equal(t, int32(1), ch.XSampling)
				assert.Equal(t, int32(1), ch.YSampling)
			}
			assert.Equal(t, []string{"A", "B", "G", "R"}, names)

			assert.Equal(t, "chlist", h.Attributes["channels"])
			assert.Equal(t, "box2i", h.Attributes["dataWindow"])
			assert.Equal(t, "v2f", h.Attributes["screenWindowCenter"])
		})
	}
}

func TestEncode_OffsetTablePointsAtScanlines(t *testing.T) {
	const width, height = 3, 4
	data, err := Encode(gradient(width, height), width, height)
	require.NoError(t, err)

	h, err := ReadHeader(data)
	require.NoError(t, err)

	rowBytes := width * 4 * 2
	for y := 0; y < height; y++ {
		off := binary.LittleEndian.Uint64(data[h.size+8*y:])
		assert.Zero(t, off>>32, "high word of offset %d", y)

		rec := data[off:]
		assert.Equal(t, int32(y), int32(binary.LittleEndian.Uint32(rec[0:4])), "scanline index at offset %d", y)
		assert.Equal(t, uint32(rowBytes), binary.LittleEndian.Uint32(rec[4:8]))

		// Channel order is A, B, G, R; G holds the row number.
		g := rec[8+2*width*2:]
		for x := 0; x < width; x++ {
			assert.Equal(t, FloatToHalf(float32(y)), binary.LittleEndian.Uint16(g[2*x:]))
		}
	}
	last := binary.LittleEndian.Uint64(data[h.size+8*(height-1):])
	assert.Equal(t, len(data), int(last)+8+rowBytes)
}

func TestEncode_DecodeRecoversSamples(t *testing.T) {
	const width, height = 4, 2
	src := gradient(width, height)

	for _, pt := range []PixelType{PixelTypeHalf, PixelTypeFloat} {
		data, err := Encode(src, width, height, WithPixelType(pt))
		require.NoError(t, err)

		img, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, width, img.Width)
		assert.Equal(t, height, img.Height)

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				assert.Equal(t, src[i*4+0], img.Samples["R"][i])
				assert.Equal(t, src[i*4+1], img.Samples["G"][i])
				assert.Equal(t, src[i*4+2], img.Samples["B"][i])
				assert.Equal(t, src[i*4+3], img.Samples["A"][i])
			}
		}
	}
}

func TestEncode_SolidRedScanlines(t *testing.T) {
	const size = 4
	red := make([]float32, 0, size*size*4)
	for i := 0; i < size*size; i++ {
		red = append(red, 1, 0, 0, 1)
	}
	data, err := Encode(red, size, size)
	require.NoError(t, err)

	img, err := Decode(data)
	require.NoError(t, err)

	for y, off := range img.Offsets {
		rec := data[off:]
		require.Equal(t, int32(y), int32(binary.LittleEndian.Uint32(rec)))
		payload := rec[8:]
		want := map[int]uint16{0: 0x3c00, 1: 0x0000, 2: 0x0000, 3: 0x3c00} // A, B, G, R
		for ch, bits := range want {
			for x := 0; x < size; x++ {
				assert.Equal(t, bits, binary.LittleEndian.Uint16(payload[(ch*size+x)*2:]), "row %d channel %d", y, ch)
			}
		}
	}
}

func TestEncode_CustomChannelOrder(t *testing.T) {
	// Input interleaved as R, B; stored as B, R.
	data, err := Encode([]float32{0.5, 2}, 1, 1, WithChannelNames("R", "B"), WithPixelType(PixelTypeFloat))
	require.NoError(t, err)

	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, img.Samples["R"])
	assert.Equal(t, []float32{2}, img.Samples["B"])
	assert.Equal(t, "B", img.Header.Channels[0].Name)
}

func TestEncode_InvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		width   int
		height  int
		opts    []EncodeOption
	}{
		{"zero width", nil, 0, 1, nil},
		{"negative height", nil, 1, -2, nil},
		{"empty channel list", []float32{}, 1, 1, []EncodeOption{WithChannelNames()}},
		{"duplicate channel", []float32{1, 1}, 1, 1, []EncodeOption{WithChannelNames("R", "R")}},
		{"sample count mismatch", []float32{1, 2, 3}, 1, 1, nil},
		{"uint pixel type", []float32{1, 2, 3, 4}, 1, 1, []EncodeOption{WithPixelType(PixelTypeUint)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.samples, tt.width, tt.height, tt.opts...)
			assert.ErrorIs(t, err, common.ErrCodec)
			assert.Nil(t, data)
		})
	}
}

func TestReadHeader_RejectsGarbage(t *testing.T) {
	_, err := ReadHeader([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformed)

	data, err := Encode(gradient(2, 2), 2, 2)
	require.NoError(t, err)
	_, err = Decode(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrMalformed)
}

// patchDataWindowYMax rewrites the yMax field of the dataWindow attribute in place.
func patchDataWindowYMax(t *testing.T, data []byte, yMax int32) {
	t.Helper()
	name := []byte("dataWindow\x00box2i\x00")
	i := bytes.Index(data, name)
	require.GreaterOrEqual(t, i, 0)
	value := i + len(name) + 4
	binary.LittleEndian.PutUint32(data[value+12:], uint32(yMax))
}

func TestDecode_RejectsDataWindowLargerThanFile(t *testing.T) {
	data, err := Encode(gradient(2, 2), 2, 2)
	require.NoError(t, err)

	for _, yMax := range []int32{2, 11999, 1<<31 - 2} {
		patched := append([]byte(nil), data...)
		patchDataWindowYMax(t, patched, yMax)

		h, err := ReadHeader(patched)
		require.NoError(t, err)
		require.Equal(t, int(yMax)+1, h.DataWindow.Height())

		_, err = Decode(patched)
		assert.ErrorIs(t, err, ErrMalformed, "yMax %d", yMax)
	}
}

func TestDecode_RejectsRepeatedScanline(t *testing.T) {
	const width, height = 2, 3
	data, err := Encode(gradient(width, height), width, height)
	require.NoError(t, err)
	h, err := ReadHeader(data)
	require.NoError(t, err)

	// Point the last table entry at the first scanline, leaving row 2 unreferenced.
	copy(data[h.size+8*(height-1):], data[h.size:h.size+8])

	_, err = Decode(data)
	require.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "more than once")
}
