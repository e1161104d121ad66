package extract

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/invopop/jsonschema"
	"go.viam.com/test"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/rimage"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("config"), test.ShouldBeNil)
	test.That(t, cfg.DepthMaxMM, test.ShouldEqual, 3860)
	test.That(t, cfg.IRMax, test.ShouldEqual, 1000)

	d, err := cfg.Duration()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, 15*time.Second)

	err = cfg.ValidateOnline("config")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "output_dir")

	dev := cfg.DeviceConfig()
	test.That(t, dev.Count, test.ShouldEqual, 1)
	test.That(t, dev.ColorFormat, test.ShouldEqual, rimage.FormatBGRA32)
	test.That(t, dev.SubordinateDelayUsec, test.ShouldEqual, 160)

	sync := cfg.SyncConfig()
	test.That(t, sync.SubordinateDelay, test.ShouldEqual, capture.MinSubordinateDelay)
	test.That(t, sync.SubordinateDepthDelay, test.ShouldEqual, 80*time.Microsecond)
	test.That(t, sync.CompareSubordinateDepth, test.ShouldBeTrue)
}

func TestReadConfig(t *testing.T) {
	path := writeConfigFile(t, `{"output_dir": "/data/out", "raw_format": "tif", "devices": 3, "recording_duration": "2m"}`)
	cfg, err := ReadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.OutputDir, test.ShouldEqual, "/data/out")
	test.That(t, cfg.RawFormat, test.ShouldEqual, "tif")
	test.That(t, cfg.Devices, test.ShouldEqual, 3)
	// unset fields keep their defaults
	test.That(t, cfg.ImageFormat, test.ShouldEqual, "jpg")
	test.That(t, cfg.ValidateOnline(path), test.ShouldBeNil)

	_, err = ReadConfig(writeConfigFile(t, `{"output_directory": "/data/out"}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "output_directory")

	cfg, err = ReadConfig(writeConfigFile(t, `{
		// previews for the web viewer
		image_format: "ppm",
		"parallelism": 4, // one per disk
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ImageFormat, test.ShouldEqual, "ppm")
	test.That(t, cfg.Parallelism, test.ShouldEqual, 4)
	test.That(t, cfg.RawFormat, test.ShouldEqual, "png")

	_, err = ReadConfig(writeConfigFile(t, `{`))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ReadConfig(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConfigSchema(t *testing.T) {
	schema := ConfigSchema()
	test.That(t, schema.Type, test.ShouldEqual, "object")
	test.That(t, schema.Required, test.ShouldBeEmpty)

	prop, ok := schema.Properties.Get("image_format")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, prop.(*jsonschema.Schema).Enum, test.ShouldResemble, []interface{}{"jpg", "png", "ppm"})
	prop, ok = schema.Properties.Get("jpeg_quality")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, prop.(*jsonschema.Schema).Maximum, test.ShouldEqual, 100)
	_, ok = schema.Properties.Get("OutputDir")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(cfg *Config)
		errMsg string
	}{
		{"image format", func(cfg *Config) { cfg.ImageFormat = "tif" }, "image_format"},
		{"unknown image format", func(cfg *Config) { cfg.ImageFormat = "bmp" }, "image_format"},
		{"raw format", func(cfg *Config) { cfg.RawFormat = "jpg" }, "raw_format"},
		{"jpeg quality", func(cfg *Config) { cfg.JPEGQuality = 101 }, "jpeg_quality"},
		{"depth max", func(cfg *Config) { cfg.DepthMaxMM = 0 }, "depth_max_mm"},
		{"ir max", func(cfg *Config) { cfg.IRMax = -1 }, "ir_max"},
		{"colormap", func(cfg *Config) { cfg.Colormap = "jet" }, "colormap"},
		{"preview width", func(cfg *Config) { cfg.PreviewMaxWidth = -1 }, "preview_max_width"},
		{"parallelism", func(cfg *Config) { cfg.Parallelism = 0 }, "parallelism"},
		{"duration", func(cfg *Config) { cfg.RecordingDuration = "forever" }, "recording_duration"},
		{"negative duration", func(cfg *Config) { cfg.RecordingDuration = "-1s" }, "recording_duration"},
		{"devices", func(cfg *Config) { cfg.Devices = 0 }, "devices"},
		{"exposure", func(cfg *Config) { cfg.ColorExposureUsec = -5 }, "color_exposure_usec"},
		{"powerline", func(cfg *Config) { cfg.PowerlineHz = 55 }, "powerline_hz"},
		{"subordinate delay", func(cfg *Config) { cfg.SubordinateDelayUsec = 100 }, "subordinate_delay_usec"},
		{"color format", func(cfg *Config) { cfg.ColorFormat = "rgb24" }, "rgb24"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := cfg.Validate("config.json")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
		})
	}
}
