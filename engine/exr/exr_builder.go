package exr

// EncodeOption is a functional option applied to an encoder during Encode.
type EncodeOption func(*encoder)

// WithPixelType sets the sample width written for every channel.
// When not specified, samples are written as PixelTypeHalf.
//
// Parameters:
//   - t: PixelTypeHalf or PixelTypeFloat
//
// Returns:
//   - EncodeOption: a function that applies the pixel type option to an encoder
func WithPixelType(t PixelType) EncodeOption {
	return func(e *encoder) {
		e.pixelType = t
	}
}

// WithChannelNames sets the names of the interleaved input channels, in input order.
// When not specified, the input is treated as R, G, B, A. The file always stores channels
// sorted by name regardless of the input order.
//
// Parameters:
//   - names: the channel names in the order they are interleaved in the samples
//
// Returns:
//   - EncodeOption: a function that applies the channel names option to an encoder
func WithChannelNames(names ...string) EncodeOption {
	return func(e *encoder) {
		e.channelNames = append([]string(nil), names...)
	}
}
