package rimage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestWriteImageFileRaw16RoundTrip(t *testing.T) {
	dir := t.TempDir()
	dm := NewEmptyDepthMap(5, 3)
	for i := range dm.Data() {
		dm.Data()[i] = Depth(i * 4000)
	}

	for _, name := range []string{"raw.png", "raw.tif"} {
		path := filepath.Join(dir, name)
		test.That(t, WriteImageFile(path, dm.ToGray16(), WriteOptions{}), test.ShouldBeNil)
		back, err := ReadDepthFile(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.Data(), test.ShouldResemble, dm.Data())
	}
}

func TestWriteImageFileDownscale(t *testing.T) {
	dir := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	path := filepath.Join(dir, "color.jpg")
	test.That(t, WriteImageFile(path, src, WriteOptions{JPEGQuality: 80, MaxWidth: 40}), test.ShouldBeNil)

	img, err := ReadImageFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 40)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 20)

	test.That(t, WriteImageFile(filepath.Join(dir, "cloud.ply"), src, WriteOptions{}), test.ShouldNotBeNil)
	test.That(t, WriteImageFile(filepath.Join(dir, "color.bmp"), src, WriteOptions{}), test.ShouldNotBeNil)
}

func TestWriteImageFilePPM(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	src.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	gray := image.NewGray(image.Rect(0, 0, 3, 2))
	gray.SetGray(2, 0, color.Gray{Y: 77})

	dir := t.TempDir()
	for name, img := range map[string]image.Image{"color.ppm": src, "preview.ppm": gray} {
		path := filepath.Join(dir, name)
		test.That(t, WriteImageFile(path, img, WriteOptions{}), test.ShouldBeNil)
		back, err := ReadImageFile(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.Bounds(), test.ShouldResemble, img.Bounds())
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				test.That(t, color.RGBAModel.Convert(back.At(x, y)), test.ShouldResemble, color.RGBAModel.Convert(img.At(x, y)))
			}
		}
	}
}

func TestReadImageFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadImageFile(filepath.Join(dir, "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)

	garbage := filepath.Join(dir, "garbage.png")
	test.That(t, os.WriteFile(garbage, []byte("not a png"), 0o600), test.ShouldBeNil)
	_, err = ReadDepthFile(garbage)
	test.That(t, err, test.ShouldNotBeNil)

	// 8-bit images cannot carry depth
	gray := filepath.Join(dir, "gray.png")
	test.That(t, WriteImageFile(gray, image.NewGray(image.Rect(0, 0, 2, 2)), WriteOptions{}), test.ShouldBeNil)
	_, err = ReadDepthFile(gray)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "16-bit")
}
