package utils

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// MimeTypeJPEG is regular jpgs.
	MimeTypeJPEG = "image/jpeg"

	// MimeTypePNG is regular pngs.
	MimeTypePNG = "image/png"

	// MimeTypePPM is for uncompressed binary color images.
	MimeTypePPM = "image/x-portable-pixmap"

	// MimeTypeTIFF is for lossless 16-bit raw matrices.
	MimeTypeTIFF = "image/tiff"

	// MimeTypePLY is for ascii .ply point cloud files.
	MimeTypePLY = "pointcloud/ply"
)

var extensionMimeTypes = map[string]string{
	".jpg":  MimeTypeJPEG,
	".jpeg": MimeTypeJPEG,
	".png":  MimeTypePNG,
	".ppm":  MimeTypePPM,
	".tif":  MimeTypeTIFF,
	".tiff": MimeTypeTIFF,
	".ply":  MimeTypePLY,
}

// MimeTypeFromExtension returns the mime type for a file extension or bare format name
// ("jpg", ".png", "tif").
func MimeTypeFromExtension(ext string) (string, error) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	mimeType, ok := extensionMimeTypes[ext]
	if !ok {
		return "", errors.Errorf("unsupported file extension %q", ext)
	}
	return mimeType, nil
}

// MimeTypeFromPath returns the mime type implied by a file's extension.
func MimeTypeFromPath(path string) (string, error) {
	return MimeTypeFromExtension(filepath.Ext(path))
}

// IsImageMimeType reports whether the mime type is one kdextract can write images as.
func IsImageMimeType(mimeType string) bool {
	switch mimeType {
	case MimeTypeJPEG, MimeTypePNG, MimeTypePPM, MimeTypeTIFF:
		return true
	default:
		return false
	}
}
