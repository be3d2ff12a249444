// Package exr writes and reads single-part, uncompressed, scanline OpenEXR images.
//
// The encoder takes linear float samples in top-left-origin, row-major order and produces the
// complete file in memory; it performs no I/O. Channels are stored alphabetically, each as one
// contiguous run per scanline, as the OpenEXR scanline layout requires.
package exr

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/Carmen-Shannon/oxy-capture/common"
)

// Magic is the four-byte OpenEXR file identifier, read as a little-endian int32.
const Magic = 20000630

// Version is the file version word: version 2, single part, scanline, no deep data, short names.
const Version = 2

// PixelType is the on-disk sample type of a channel.
type PixelType int32

const (
	// PixelTypeUint stores 32-bit unsigned integers. Never produced by Encode.
	PixelTypeUint PixelType = 0

	// PixelTypeHalf stores IEEE-754 binary16 samples. This is the default.
	PixelTypeHalf PixelType = 1

	// PixelTypeFloat stores IEEE-754 binary32 samples.
	PixelTypeFloat PixelType = 2
)

// Size returns the number of bytes one sample of this type occupies.
func (t PixelType) Size() int {
	if t == PixelTypeHalf {
		return 2
	}
	return 4
}

// String returns the pixel type name used in logs.
func (t PixelType) String() string {
	switch t {
	case PixelTypeUint:
		return "uint"
	case PixelTypeHalf:
		return "half"
	case PixelTypeFloat:
		return "float"
	default:
		return fmt.Sprintf("PixelType(%d)", int32(t))
	}
}

// Compression and line order values written by Encode.
const (
	CompressionNone      = 0
	LineOrderIncreasingY = 0
)

// DefaultChannelNames is the channel layout assumed when no names are given.
var DefaultChannelNames = []string{"R", "G", "B", "A"}

// encoder holds the resolved options of a single Encode call.
type encoder struct {
	pixelType    PixelType
	channelNames []string
}

// channelSlot pairs a channel name with its position in the interleaved input.
type channelSlot struct {
	name   string
	source int
}

// Encode produces a complete OpenEXR file from interleaved linear samples.
//
// Samples are row-major with a top-left origin; pixel (x, y) channel c lives at
// (y*width+x)*len(channels)+c, where channels is the option-provided name list
// (R, G, B, A by default). All arguments are checked before the output is allocated,
// so a failed call never yields a partial file.
//
// Parameters:
//   - samples: the interleaved linear samples
//   - width: the image width in pixels
//   - height: the image height in pixels
//   - options: encoder options such as WithPixelType and WithChannelNames
//
// Returns:
//   - []byte: the encoded file
//   - error: an ErrCodec-wrapped error for invalid arguments
func Encode(samples []float32, width, height int, options ...EncodeOption) ([]byte, error) {
	e := &encoder{
		pixelType:    PixelTypeHalf,
		channelNames: DefaultChannelNames,
	}
	for _, opt := range options {
		opt(e)
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", common.ErrCodec, width, height)
	}
	if len(e.channelNames) == 0 {
		return nil, fmt.Errorf("%w: empty channel list", common.ErrCodec)
	}
	if e.pixelType != PixelTypeHalf && e.pixelType != PixelTypeFloat {
		return nil, fmt.Errorf("%w: unsupported pixel type %s", common.ErrCodec, e.pixelType)
	}

	slots := make([]channelSlot, len(e.channelNames))
	seen := make(map[string]bool, len(e.channelNames))
	for i, name := range e.channelNames {
		if name == "" {
			return nil, fmt.Errorf("%w: empty channel name at index %d", common.ErrCodec, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate channel %q", common.ErrCodec, name)
		}
		seen[name] = true
		slots[i] = channelSlot{name: name, source: i}
	}
	sort.Slice(slots, func(a, b int) bool { return slots[a].name < slots[b].name })

	channels := len(slots)
	if want := width * height * channels; len(samples) != want {
		return nil, fmt.Errorf("%w: got %d samples, want %d for %dx%d with %d channels",
			common.ErrCodec, len(samples), want, width, height, channels)
	}

	header := e.header(slots, width, height)
	rowBytes := width * channels * e.pixelType.Size()
	recordBytes := 8 + rowBytes
	tableStart := len(header)
	dataStart := tableStart + 8*height

	out := make([]byte, 0, dataStart+height*recordBytes)
	out = append(out, header...)
	for y := 0; y < height; y++ {
		out = binary.LittleEndian.AppendUint64(out, uint64(dataStart+y*recordBytes))
	}

	for y := 0; y < height; y++ {
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(y)))
		out = binary.LittleEndian.AppendUint32(out, uint32(rowBytes))
		row := samples[y*width*channels : (y+1)*width*channels]
		for _, slot := range slots {
			for x := 0; x < width; x++ {
				v := row[x*channels+slot.source]
				if e.pixelType == PixelTypeHalf {
					out = binary.LittleEndian.AppendUint16(out, FloatToHalf(v))
				} else {
					out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
				}
			}
		}
	}

	return out, nil
}

// header serializes the magic, version and attribute list, including the terminating null byte.
func (e *encoder) header(slots []channelSlot, width, height int) []byte {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, Magic)
	b = binary.LittleEndian.AppendUint32(b, Version)

	var chlist []byte
	for _, slot := range slots {
		chlist = append(chlist, slot.name...)
		chlist = append(chlist, 0)
		chlist = binary.LittleEndian.AppendUint32(chlist, uint32(e.pixelType))
		chlist = append(chlist, 0, 0, 0, 0) // pLinear + reserved
		chlist = binary.LittleEndian.AppendUint32(chlist, 1)
		chlist = binary.LittleEndian.AppendUint32(chlist, 1)
	}
	chlist = append(chlist, 0)

	window := boxBytes(Box2i{XMax: int32(width - 1), YMax: int32(height - 1)})

	b = appendAttribute(b, "channels", "chlist", chlist)
	b = appendAttribute(b, "compression", "compression", []byte{CompressionNone})
	b = appendAttribute(b, "dataWindow", "box2i", window)
	b = appendAttribute(b, "displayWindow", "box2i", window)
	b = appendAttribute(b, "lineOrder", "lineOrder", []byte{LineOrderIncreasingY})
	b = appendAttribute(b, "pixelAspectRatio", "float", floatBytes(1))
	b = appendAttribute(b, "screenWindowCenter", "v2f", append(floatBytes(0), floatBytes(0)...))
	b = appendAttribute(b, "screenWindowWidth", "float", floatBytes(1))
	return append(b, 0)
}

// appendAttribute writes one {name, type, size, value} header attribute.
func appendAttribute(b []byte, name, typeName string, value []byte) []byte {
	b = append(b, name...)
	b = append(b, 0)
	b = append(b, typeName...)
	b = append(b, 0)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(value)))
	return append(b, value...)
}

func boxBytes(box Box2i) []byte {
	var b []byte
	for _, v := range []int32{box.XMin, box.YMin, box.XMax, box.YMax} {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	return b
}

func floatBytes(f float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(f))
}
