package exr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrMalformed is returned when a file does not follow the single-part scanline layout.
var ErrMalformed = errors.New("malformed OpenEXR data")

// Box2i is an inclusive integer rectangle, as stored by the box2i attribute type.
type Box2i struct {
	XMin, YMin, XMax, YMax int32
}

// Width returns the number of columns covered by the box.
func (b Box2i) Width() int {
	return int(b.XMax-b.XMin) + 1
}

// Height returns the number of rows covered by the box.
func (b Box2i) Height() int {
	return int(b.YMax-b.YMin) + 1
}

// Channel describes one entry of the chlist attribute.
type Channel struct {
	Name      string
	PixelType PixelType
	Linear    bool
	XSampling int32
	YSampling int32
}

// Header is the decoded attribute list of a single-part scanline file.
type Header struct {
	Version            uint32
	Channels           []Channel
	Compression        uint8
	DataWindow         Box2i
	DisplayWindow      Box2i
	LineOrder          uint8
	PixelAspectRatio   float32
	ScreenWindowCenter [2]float32
	ScreenWindowWidth  float32

	// Attributes maps every attribute name to its type name, including unknown ones.
	Attributes map[string]string

	// size is the number of bytes from the start of the file to the offset table.
	size int
}

// Image is a decoded file: the header plus one sample slice per channel in top-left-origin, row-major order.
type Image struct {
	Header  *Header
	Width   int
	Height  int
	Offsets []uint64
	Samples map[string][]float32
}

// ReadHeader parses the magic, version and attribute list at the start of data.
//
// Parameters:
//   - data: the file contents
//
// Returns:
//   - *Header: the decoded header
//   - error: an ErrMalformed-wrapped error if the data is not a single-part scanline file
func ReadHeader(data []byte) (*Header, error) {
	r := &byteReader{data: data}
	magic, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrMalformed, magic)
	}
	version, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if version&0xff != Version || version&^0xff != 0 {
		return nil, fmt.Errorf("%w: unsupported version word %#x", ErrMalformed, version)
	}

	h := &Header{Version: version, Attributes: make(map[string]string)}
	for {
		name, err := r.cstring()
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typeName, err := r.cstring()
		if err != nil {
			return nil, err
		}
		size, err := r.uint32()
		if err != nil {
			return nil, err
		}
		value, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		h.Attributes[name] = typeName
		if err := h.setAttribute(name, value); err != nil {
			return nil, err
		}
	}
	for _, required := range []string{"channels", "compression", "dataWindow", "displayWindow", "lineOrder"} {
		if _, ok := h.Attributes[required]; !ok {
			return nil, fmt.Errorf("%w: missing %s attribute", ErrMalformed, required)
		}
	}
	h.size = r.pos
	return h, nil
}

// setAttribute decodes the attributes this package understands; others are only recorded by name.
func (h *Header) setAttribute(name string, value []byte) error {
	v := &byteReader{data: value}
	switch name {
	case "channels":
		for {
			chName, err := v.cstring()
			if err != nil {
				return err
			}
			if chName == "" {
				break
			}
			fields, err := v.bytes(16)
			if err != nil {
				return err
			}
			h.Channels = append(h.Channels, Channel{
				Name:      chName,
				PixelType: PixelType(int32(binary.LittleEndian.Uint32(fields[0:4]))),
				Linear:    fields[4] != 0,
				XSampling: int32(binary.LittleEndian.Uint32(fields[8:12])),
				YSampling: int32(binary.LittleEndian.Uint32(fields[12:16])),
			})
		}
	case "compression":
		if len(value) != 1 {
			return fmt.Errorf("%w: compression size %d", ErrMalformed, len(value))
		}
		h.Compression = value[0]
	case "lineOrder":
		if len(value) != 1 {
			return fmt.Errorf("%w: lineOrder size %d", ErrMalformed, len(value))
		}
		h.LineOrder = value[0]
	case "dataWindow", "displayWindow":
		if len(value) != 16 {
			return fmt.Errorf("%w: %s size %d", ErrMalformed, name, len(value))
		}
		box := Box2i{
			XMin: int32(binary.LittleEndian.Uint32(value[0:4])),
			YMin: int32(binary.LittleEndian.Uint32(value[4:8])),
			XMax: int32(binary.LittleEndian.Uint32(value[8:12])),
			YMax: int32(binary.LittleEndian.Uint32(value[12:16])),
		}
		if name == "dataWindow" {
			h.DataWindow = box
		} else {
			h.DisplayWindow = box
		}
	case "pixelAspectRatio", "screenWindowWidth":
		if len(value) != 4 {
			return fmt.Errorf("%w: %s size %d", ErrMalformed, name, len(value))
		}
		f := math.Float32frombits(binary.LittleEndian.Uint32(value))
		if name == "pixelAspectRatio" {
			h.PixelAspectRatio = f
		} else {
			h.ScreenWindowWidth = f
		}
	case "screenWindowCenter":
		if len(value) != 8 {
			return fmt.Errorf("%w: screenWindowCenter size %d", ErrMalformed, len(value))
		}
		h.ScreenWindowCenter[0] = math.Float32frombits(binary.LittleEndian.Uint32(value[0:4]))
		h.ScreenWindowCenter[1] = math.Float32frombits(binary.LittleEndian.Uint32(value[4:8]))
	}
	return nil
}

// Decode reads an uncompressed single-part scanline file, following the offset table to each scanline.
//
// Parameters:
//   - data: the file contents
//
// Returns:
//   - *Image: the decoded header and per-channel samples
//   - error: an ErrMalformed-wrapped error for unsupported or inconsistent files
func Decode(data []byte) (*Image, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Compression != CompressionNone {
		return nil, fmt.Errorf("%w: compression %d is not supported", ErrMalformed, h.Compression)
	}
	width, height := h.DataWindow.Width(), h.DataWindow.Height()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty data window", ErrMalformed)
	}

	channels := append([]Channel(nil), h.Channels...)
	sort.Slice(channels, func(a, b int) bool { return channels[a].Name < channels[b].Name })
	var rowBytes int64
	for _, ch := range channels {
		if ch.PixelType != PixelTypeHalf && ch.PixelType != PixelTypeFloat {
			return nil, fmt.Errorf("%w: channel %q has pixel type %s", ErrMalformed, ch.Name, ch.PixelType)
		}
		rowBytes += int64(width) * int64(ch.PixelType.Size())
	}

	// Every scanline needs an 8-byte table entry and an 8-byte record header plus its payload.
	tableEnd := int64(h.size) + 8*int64(height)
	if tableEnd > int64(len(data)) || rowBytes > int64(len(data)) ||
		(int64(len(data))-tableEnd)/(8+rowBytes) < int64(height) {
		return nil, fmt.Errorf("%w: data window %dx%d does not fit in %d bytes", ErrMalformed, width, height, len(data))
	}

	img := &Image{
		Header:  h,
		Width:   width,
		Height:  height,
		Offsets: make([]uint64, height),
		Samples: make(map[string][]float32, len(channels)),
	}
	for _, ch := range channels {
		img.Samples[ch.Name] = make([]float32, width*height)
	}

	table := &byteReader{data: data, pos: h.size}
	for i := range img.Offsets {
		off, err := table.uint64()
		if err != nil {
			return nil, err
		}
		img.Offsets[i] = off
	}

	covered := make([]bool, height)
	for i, off := range img.Offsets {
		if off > uint64(len(data)) {
			return nil, fmt.Errorf("%w: offset %d of scanline %d past end of file", ErrMalformed, off, i)
		}
		rec := &byteReader{data: data, pos: int(off)}
		y, err := rec.uint32()
		if err != nil {
			return nil, err
		}
		row := int(int32(y)) - int(h.DataWindow.YMin)
		if row < 0 || row >= height {
			return nil, fmt.Errorf("%w: scanline %d out of data window", ErrMalformed, int32(y))
		}
		if covered[row] {
			return nil, fmt.Errorf("%w: scanline %d appears more than once", ErrMalformed, int32(y))
		}
		covered[row] = true
		size, err := rec.uint32()
		if err != nil {
			return nil, err
		}
		if int64(size) != rowBytes {
			return nil, fmt.Errorf("%w: scanline %d holds %d bytes, want %d", ErrMalformed, row, size, rowBytes)
		}
		payload, err := rec.bytes(int(size))
		if err != nil {
			return nil, err
		}
		p := 0
		for _, ch := range channels {
			dst := img.Samples[ch.Name][row*width : (row+1)*width]
			for x := range dst {
				if ch.PixelType == PixelTypeHalf {
					dst[x] = HalfToFloat(binary.LittleEndian.Uint16(payload[p:]))
					p += 2
				} else {
					dst[x] = math.Float32frombits(binary.LittleEndian.Uint32(payload[p:]))
					p += 4
				}
			}
		}
	}
	return img, nil
}

// byteReader is a bounds-checked little-endian cursor over a byte slice.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w: truncated at byte %d", ErrMalformed, r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// cstring reads a null-terminated string; an immediate null yields "".
func (r *byteReader) cstring() (string, error) {
	for i := r.pos; i < len(r.data); i++ {
		if r.data[i] == 0 {
			s := string(r.data[r.pos:i])
			r.pos = i + 1
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unterminated string at byte %d", ErrMalformed, r.pos)
}
