package transcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/m1k1o/go-preview/pkg/source"
)

// ErrEncodeError means a frame could not be encoded for delivery.
var ErrEncodeError = errors.New("encode error")

// Config is the fixed encoding configuration, quality is not negotiated
// per client.
type Config struct {
	// Quality of the produced JPEG images, 1-100.
	Quality int
}

// Encoder turns raw frames into delivery-ready JPEG images. Encoding is
// stateless and a pure function of the input frame, so one encoder can
// be shared by pull and push based delivery without synchronization.
type Encoder struct {
	config Config
}

func NewEncoder(config Config) *Encoder {
	return &Encoder{config: config}
}

// Encode returns a complete JPEG image for the given frame. Already
// encoded frames are decoded and re-encoded at the configured quality,
// which also validates payloads received from untrusted feeds.
func (e *Encoder) Encode(frame *source.Frame) ([]byte, error) {
	var img image.Image

	switch frame.Format {
	case source.FormatRGB24:
		size := frame.Width * frame.Height * 3
		if frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) != size {
			return nil, fmt.Errorf("%w: raw frame size mismatch, have %d want %d", source.ErrDecodeError, len(frame.Data), size)
		}
		img = &rgbImage{data: frame.Data, width: frame.Width, height: frame.Height}
	case source.FormatJPEG:
		decoded, err := jpeg.Decode(bytes.NewReader(frame.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", source.ErrDecodeError, err)
		}
		img = decoded
	default:
		return nil, fmt.Errorf("%w: unknown frame format %d", source.ErrDecodeError, frame.Format)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.config.Quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeError, err)
	}

	return buf.Bytes(), nil
}

// rgbImage exposes packed RGB24 pixel data as an image without copying.
type rgbImage struct {
	data   []byte
	width  int
	height int
}

func (i *rgbImage) ColorModel() color.Model {
	return color.RGBAModel
}

func (i *rgbImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

func (i *rgbImage) At(x, y int) color.Color {
	off := (y*i.width + x) * 3
	return color.RGBA{R: i.data[off], G: i.data[off+1], B: i.data[off+2], A: 0xff}
}
