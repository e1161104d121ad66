package rimage

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"go.viam.com/test"
)

func TestDecodeDepthStride(t *testing.T) {
	// 2x2 depth frame with 2 padding bytes per row
	frame := &Frame{
		Format: FormatDepth16,
		Width:  2,
		Height: 2,
		Stride: 6,
		Data: []byte{
			0xe8, 0x03, 0x00, 0x00, 0xaa, 0xaa,
			0xd0, 0x07, 0x01, 0x00, 0xaa, 0xaa,
		},
	}
	dm, err := DecodeDepth(frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 2)
	test.That(t, dm.Height(), test.ShouldEqual, 2)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, Depth(1000))
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, Depth(0))
	test.That(t, dm.GetDepth(0, 1), test.ShouldEqual, Depth(2000))
	test.That(t, dm.GetDepth(1, 1), test.ShouldEqual, Depth(1))

	frame.Data = frame.Data[:8]
	_, err = DecodeDepth(frame)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "needs 12 bytes")

	_, err = DecodeDepth(&Frame{Format: FormatBGRA32, Width: 1, Height: 1, Data: make([]byte, 4)})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEncodeDepthFrameRoundTrip(t *testing.T) {
	dm := NewEmptyDepthMap(3, 2)
	dm.Set(0, 0, 1)
	dm.Set(2, 1, MaxDepth)
	frame := EncodeDepthFrame(dm, FormatIR16, 77)
	test.That(t, frame.TimestampUsec, test.ShouldEqual, uint64(77))

	back, err := DecodeDepth(frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Data(), test.ShouldResemble, dm.Data())

	img, err := DecodeImage(frame)
	test.That(t, err, test.ShouldBeNil)
	gray, ok := img.(*image.Gray16)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, gray.Gray16At(2, 1).Y, test.ShouldEqual, uint16(65535))
}

func TestDecodeBGRA32(t *testing.T) {
	frame := &Frame{
		Format: FormatBGRA32,
		Width:  2,
		Height: 1,
		Data:   []byte{10, 20, 30, 0, 1, 2, 3, 0},
	}
	img, err := DecodeImage(frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 2, 1))
	test.That(t, img.(*image.NRGBA).NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{R: 30, G: 20, B: 10, A: 255})
	test.That(t, img.(*image.NRGBA).NRGBAAt(1, 0), test.ShouldResemble, color.NRGBA{R: 3, G: 2, B: 1, A: 255})
}

func TestDecodeNV12(t *testing.T) {
	frame := &Frame{
		Format: FormatNV12,
		Width:  2,
		Height: 2,
		Data: []byte{
			16, 32,
			48, 64,
			100, 200,
		},
	}
	img, err := DecodeImage(frame)
	test.That(t, err, test.ShouldBeNil)
	ycbcr, ok := img.(*image.YCbCr)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ycbcr.SubsampleRatio, test.ShouldEqual, image.YCbCrSubsampleRatio420)
	test.That(t, ycbcr.YCbCrAt(1, 1), test.ShouldResemble, color.YCbCr{Y: 64, Cb: 100, Cr: 200})
	test.That(t, ycbcr.YCbCrAt(0, 0), test.ShouldResemble, color.YCbCr{Y: 16, Cb: 100, Cr: 200})

	frame.Data = frame.Data[:4]
	_, err = DecodeImage(frame)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecodeYUY2(t *testing.T) {
	frame := &Frame{
		Format: FormatYUY2,
		Width:  2,
		Height: 1,
		Data:   []byte{50, 90, 60, 140},
	}
	img, err := DecodeImage(frame)
	test.That(t, err, test.ShouldBeNil)
	ycbcr := img.(*image.YCbCr)
	test.That(t, ycbcr.YCbCrAt(0, 0), test.ShouldResemble, color.YCbCr{Y: 50, Cb: 90, Cr: 140})
	test.That(t, ycbcr.YCbCrAt(1, 0), test.ShouldResemble, color.YCbCr{Y: 60, Cb: 90, Cr: 140})

	frame.Width = 3
	_, err = DecodeImage(frame)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecodeCustom8AndMJPG(t *testing.T) {
	img, err := DecodeImage(&Frame{Format: FormatCustom8, Width: 2, Height: 1, Data: []byte{7, 9}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.(*image.Gray).GrayAt(1, 0).Y, test.ShouldEqual, uint8(9))

	src := image.NewGray(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	test.That(t, jpeg.Encode(&buf, src, nil), test.ShouldBeNil)
	img, err = DecodeImage(&Frame{Format: FormatMJPG, Width: 8, Height: 8, Data: buf.Bytes()})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 8)

	_, err = DecodeImage(&Frame{Format: FormatMJPG, Data: []byte("nope")})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = DecodeImage(&Frame{Format: Format("p010"), Width: 1, Height: 1})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = DecodeImage(nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("BGRA32")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f, test.ShouldEqual, FormatBGRA32)
	test.That(t, FormatCustom16.Is16Bit(), test.ShouldBeTrue)
	test.That(t, FormatNV12.Is16Bit(), test.ShouldBeFalse)
	_, err = ParseFormat("rgb24")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEncodeBGRAFrameRoundTrip(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	img.Set(2, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	frame := EncodeBGRAFrame(img, 42)
	test.That(t, frame.Format, test.ShouldEqual, FormatBGRA32)
	test.That(t, frame.TimestampUsec, test.ShouldEqual, uint64(42))
	test.That(t, frame.Data[:4], test.ShouldResemble, []byte{50, 100, 200, 255})

	back, err := DecodeImage(frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Bounds(), test.ShouldResemble, img.Bounds())
	test.That(t, back.At(2, 1), test.ShouldResemble, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
}
