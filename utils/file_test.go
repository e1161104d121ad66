package utils

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello\n")
		return err
	})
	test.That(t, err, test.ShouldBeNil)
	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, "hello\n")
	info, err := os.Stat(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Mode().Perm(), test.ShouldEqual, OutputFileMode)

	err = WriteFileAtomic(path, func(w io.Writer) error {
		if _, err := io.WriteString(w, "partial"); err != nil {
			return err
		}
		return errors.New("disk on fire")
	})
	test.That(t, err, test.ShouldBeError, errors.New("disk on fire"))

	// the previous content survives and no temporary files are left behind
	data, err = os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, "hello\n")
	entries, err := os.ReadDir(dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, entries, test.ShouldHaveLength, 1)
}

func TestSafeJoinDir(t *testing.T) {
	p, err := SafeJoinDir("/data/out", "depth")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, filepath.Join("/data/out", "depth"))

	_, err = SafeJoinDir("/data/out", "../escape")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMimeTypeFromExtension(t *testing.T) {
	for ext, expected := range map[string]string{
		"jpg":  MimeTypeJPEG,
		".JPEG": MimeTypeJPEG,
		"png":  MimeTypePNG,
		"PPM":  MimeTypePPM,
		".tif": MimeTypeTIFF,
		"ply":  MimeTypePLY,
	} {
		mimeType, err := MimeTypeFromExtension(ext)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, mimeType, test.ShouldEqual, expected)
	}
	_, err := MimeTypeFromExtension("bmp")
	test.That(t, err, test.ShouldNotBeNil)

	mimeType, err := MimeTypeFromPath("/a/b/00000000000000001234.png")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, IsImageMimeType(mimeType), test.ShouldBeTrue)
	test.That(t, IsImageMimeType(MimeTypePLY), test.ShouldBeFalse)
}
