package rimage

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	"github.com/pkg/errors"
)

// Format is the pixel layout of a raw sensor buffer.
type Format string

// The buffer layouts a depth camera can deliver.
const (
	FormatMJPG     = Format("mjpg")
	FormatNV12     = Format("nv12")
	FormatYUY2     = Format("yuy2")
	FormatBGRA32   = Format("bgra32")
	FormatDepth16  = Format("depth16")
	FormatIR16     = Format("ir16")
	FormatCustom8  = Format("custom8")
	FormatCustom16 = Format("custom16")
)

// ParseFormat returns the format with the given (case insensitive) name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(name))
	switch f {
	case FormatMJPG, FormatNV12, FormatYUY2, FormatBGRA32, FormatDepth16, FormatIR16, FormatCustom8, FormatCustom16:
		return f, nil
	default:
		return "", errors.Errorf("unknown image format %q", name)
	}
}

// Is16Bit reports whether every pixel is one little-endian uint16.
func (f Format) Is16Bit() bool {
	return f == FormatDepth16 || f == FormatIR16 || f == FormatCustom16
}

func (f Format) bytesPerPixel() int {
	switch f {
	case FormatBGRA32:
		return 4
	case FormatYUY2, FormatDepth16, FormatIR16, FormatCustom16:
		return 2
	case FormatNV12, FormatCustom8:
		return 1
	default:
		return 0
	}
}

// Frame is one raw image buffer as delivered by a device or recording.
type Frame struct {
	Format Format
	Width  int
	Height int
	// Stride is the number of bytes per row. Zero means tightly packed.
	Stride int
	Data   []byte
	// TimestampUsec is the device timestamp in microseconds.
	TimestampUsec uint64
}

func (f *Frame) stride() int {
	if f.Stride > 0 {
		return f.Stride
	}
	return f.Width * f.Format.bytesPerPixel()
}

func (f *Frame) checkSize(rows int) error {
	if f.Width <= 0 || f.Height <= 0 {
		return errors.Errorf("invalid %s frame size %dx%d", f.Format, f.Width, f.Height)
	}
	stride := f.stride()
	if stride < f.Width*f.Format.bytesPerPixel() {
		return errors.Errorf("%s frame stride %d too small for width %d", f.Format, stride, f.Width)
	}
	if need := stride * rows; len(f.Data) < need {
		return errors.Errorf("%s frame %dx%d needs %d bytes, got %d", f.Format, f.Width, f.Height, need, len(f.Data))
	}
	return nil
}

// DecodeImage converts a raw frame into a standard image.
func DecodeImage(f *Frame) (image.Image, error) {
	if f == nil {
		return nil, errors.New("no frame to decode")
	}
	switch f.Format {
	case FormatMJPG:
		img, err := jpeg.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, errors.Wrap(err, "cannot decode mjpg frame")
		}
		return img, nil
	case FormatNV12:
		return decodeNV12(f)
	case FormatYUY2:
		return decodeYUY2(f)
	case FormatBGRA32:
		return decodeBGRA32(f)
	case FormatDepth16, FormatIR16, FormatCustom16:
		dm, err := DecodeDepth(f)
		if err != nil {
			return nil, err
		}
		return dm.ToGray16(), nil
	case FormatCustom8:
		return decodeGray8(f)
	default:
		return nil, errors.Errorf("cannot decode frame with format %q", f.Format)
	}
}

// DecodeDepth converts a 16-bit frame into a depth map.
func DecodeDepth(f *Frame) (*DepthMap, error) {
	if f == nil {
		return nil, errors.New("no frame to decode")
	}
	if !f.Format.Is16Bit() {
		return nil, errors.Errorf("cannot read depth from a %s frame", f.Format)
	}
	if err := f.checkSize(f.Height); err != nil {
		return nil, err
	}
	stride := f.stride()
	dm := NewEmptyDepthMap(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		row := f.Data[y*stride:]
		for x := 0; x < f.Width; x++ {
			dm.data[y*f.Width+x] = Depth(binary.LittleEndian.Uint16(row[2*x:]))
		}
	}
	return dm, nil
}

func decodeNV12(f *Frame) (image.Image, error) {
	if f.Width%2 != 0 {
		return nil, errors.Errorf("nv12 frame width must be even, got %d", f.Width)
	}
	chromaRows := (f.Height + 1) / 2
	if err := f.checkSize(f.Height + chromaRows); err != nil {
		return nil, err
	}
	stride := f.stride()
	img := image.NewYCbCr(image.Rect(0, 0, f.Width, f.Height), image.YCbCrSubsampleRatio420)
	for y := 0; y < f.Height; y++ {
		copy(img.Y[y*img.YStride:y*img.YStride+f.Width], f.Data[y*stride:])
	}
	uv := f.Data[f.Height*stride:]
	chromaCols := (f.Width + 1) / 2
	for y := 0; y < chromaRows; y++ {
		row := uv[y*stride:]
		for x := 0; x < chromaCols; x++ {
			img.Cb[y*img.CStride+x] = row[2*x]
			img.Cr[y*img.CStride+x] = row[2*x+1]
		}
	}
	return img, nil
}

func decodeYUY2(f *Frame) (image.Image, error) {
	if f.Width%2 != 0 {
		return nil, errors.Errorf("yuy2 frame width must be even, got %d", f.Width)
	}
	if err := f.checkSize(f.Height); err != nil {
		return nil, err
	}
	stride := f.stride()
	img := image.NewYCbCr(image.Rect(0, 0, f.Width, f.Height), image.YCbCrSubsampleRatio422)
	for y := 0; y < f.Height; y++ {
		row := f.Data[y*stride:]
		for x := 0; x < f.Width/2; x++ {
			px := row[4*x : 4*x+4]
			img.Y[y*img.YStride+2*x] = px[0]
			img.Cb[y*img.CStride+x] = px[1]
			img.Y[y*img.YStride+2*x+1] = px[2]
			img.Cr[y*img.CStride+x] = px[3]
		}
	}
	return img, nil
}

func decodeBGRA32(f *Frame) (image.Image, error) {
	if err := f.checkSize(f.Height); err != nil {
		return nil, err
	}
	stride := f.stride()
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := f.Data[y*stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < f.Width; x++ {
			dst[4*x+0] = src[4*x+2]
			dst[4*x+1] = src[4*x+1]
			dst[4*x+2] = src[4*x+0]
			// the sensor leaves alpha unset
			dst[4*x+3] = 0xff
		}
	}
	return img, nil
}

func decodeGray8(f *Frame) (image.Image, error) {
	if err := f.checkSize(f.Height); err != nil {
		return nil, err
	}
	stride := f.stride()
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+f.Width], f.Data[y*stride:])
	}
	return img, nil
}

// EncodeDepthFrame packs a depth map into a tightly packed little-endian 16-bit frame.
func EncodeDepthFrame(dm *DepthMap, format Format, timestampUsec uint64) *Frame {
	data := make([]byte, 2*dm.Len())
	for i, d := range dm.data {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(d))
	}
	return &Frame{
		Format:        format,
		Width:         dm.width,
		Height:        dm.height,
		Stride:        2 * dm.width,
		Data:          data,
		TimestampUsec: timestampUsec,
	}
}

// EncodeBGRAFrame packs any image into a tightly packed BGRA32 frame.
func EncodeBGRAFrame(img image.Image, timestampUsec uint64) *Frame {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := make([]byte, 4*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			i := 4 * (y*width + x)
			data[i+0], data[i+1], data[i+2], data[i+3] = c.B, c.G, c.R, c.A
		}
	}
	return &Frame{
		Format:        FormatBGRA32,
		Width:         width,
		Height:        height,
		Stride:        4 * width,
		Data:          data,
		TimestampUsec: timestampUsec,
	}
}
