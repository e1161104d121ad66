package rimage

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/kdlab/kdextract/utils"
)

// DefaultJPEGQuality is the quality used for color and preview images.
const DefaultJPEGQuality = 95

// WriteOptions tune how WriteImageFile encodes an image.
type WriteOptions struct {
	// JPEGQuality is 1..100; zero uses DefaultJPEGQuality.
	JPEGQuality int
	// MaxWidth downscales wider images, keeping the aspect ratio. Zero keeps the size.
	MaxWidth int
}

// WriteImageFile encodes img into path. The encoder is chosen by the file extension.
func WriteImageFile(path string, img image.Image, opts WriteOptions) error {
	mimeType, err := utils.MimeTypeFromPath(path)
	if err != nil {
		return err
	}
	if !utils.IsImageMimeType(mimeType) {
		return errors.Errorf("%q is not an image file", path)
	}
	quality := opts.JPEGQuality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}
	img = Downscale(img, opts.MaxWidth)
	if mimeType == utils.MimeTypePPM {
		return utils.WriteFileAtomic(path, func(w io.Writer) error {
			if err := ppm.Encode(w, toRGBA(img)); err != nil {
				return errors.Wrapf(err, "cannot encode %q", path)
			}
			return nil
		})
	}
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return errors.Wrapf(err, "cannot pick an encoder for %q", path)
	}

	return utils.WriteFileAtomic(path, func(w io.Writer) error {
		if err := imaging.Encode(w, img, format, imaging.JPEGQuality(quality)); err != nil {
			return errors.Wrapf(err, "cannot encode %q", path)
		}
		return nil
	})
}

// Downscale resizes img to maxWidth, keeping the aspect ratio. Images that already fit are returned as is.
func Downscale(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	if maxWidth <= 0 || bounds.Dx() <= maxWidth {
		return img
	}
	height := bounds.Dy() * maxWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}
	var dst draw.Image
	switch img.(type) {
	case *image.Gray:
		dst = image.NewGray(image.Rect(0, 0, maxWidth, height))
	case *image.Gray16:
		dst = image.NewGray16(image.Rect(0, 0, maxWidth, height))
	default:
		dst = image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// toRGBA returns img as 8-bit RGBA, the only model the ppm encoder accepts.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// ReadImageFile decodes the image at path.
func ReadImageFile(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image %q", path)
	}
	return img, nil
}

// ReadDepthFile reads a 16-bit raw matrix image back into a depth map.
func ReadDepthFile(path string) (*DepthMap, error) {
	img, err := ReadImageFile(path)
	if err != nil {
		return nil, err
	}
	dm, err := ConvertImageToDepthMap(img)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read depth from %q", path)
	}
	return dm, nil
}
