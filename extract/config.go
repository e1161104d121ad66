package extract

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	goutils "go.viam.com/utils"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/rimage"
	"github.com/kdlab/kdextract/utils"
)

// Config controls what an extraction writes and how live devices are driven.
type Config struct {
	OutputDir       string  `json:"output_dir" jsonschema:"description=directory each device's tree is written under"`
	ImageFormat     string  `json:"image_format" jsonschema:"enum=jpg,enum=png,enum=ppm"`
	JPEGQuality     int     `json:"jpeg_quality" jsonschema:"minimum=1,maximum=100"`
	RawFormat       string  `json:"raw_format" jsonschema:"enum=png,enum=tif"`
	DepthMaxMM      float64 `json:"depth_max_mm" jsonschema:"description=depth shown at full scale in previews"`
	IRMax           float64 `json:"ir_max" jsonschema:"description=ir value shown at full scale in previews"`
	Colormap        string  `json:"colormap" jsonschema:"enum=gray,enum=hcl"`
	PreviewMaxWidth int     `json:"preview_max_width" jsonschema:"minimum=0"`
	PointClouds     bool    `json:"point_clouds" jsonschema:"default=true"`
	RegisterDepth   bool    `json:"register_depth" jsonschema:"default=true"`
	Parallelism     int     `json:"parallelism" jsonschema:"minimum=1"`

	RecordingDuration    string `json:"recording_duration" jsonschema:"description=capture length such as 15s or 2m"`
	Devices              int    `json:"devices" jsonschema:"minimum=1"`
	ColorExposureUsec    int    `json:"color_exposure_usec" jsonschema:"minimum=0"`
	PowerlineHz          int    `json:"powerline_hz" jsonschema:"enum=50,enum=60"`
	SubordinateDelayUsec int    `json:"subordinate_delay_usec" jsonschema:"minimum=160"`
	DepthMode            string `json:"depth_mode"`
	ColorResolution      string `json:"color_resolution"`
	ColorFormat          string `json:"color_format" jsonschema:"description=mjpg nv12 yuy2 or bgra32"`
	FPS                  int    `json:"fps" jsonschema:"enum=5,enum=15,enum=30"`
}

// DefaultConfig returns the configuration used when no file or flag says otherwise.
func DefaultConfig() Config {
	return Config{
		ImageFormat:          "jpg",
		JPEGQuality:          rimage.DefaultJPEGQuality,
		RawFormat:            "png",
		DepthMaxMM:           rimage.DefaultDepthPreviewMax,
		IRMax:                rimage.DefaultIRPreviewMax,
		Colormap:             rimage.ColormapGray,
		PointClouds:          true,
		RegisterDepth:        true,
		Parallelism:          1,
		RecordingDuration:    "15s",
		Devices:              1,
		ColorExposureUsec:    8000,
		PowerlineHz:          60,
		SubordinateDelayUsec: int(capture.MinSubordinateDelay / time.Microsecond),
		DepthMode:            "NFOV_UNBINNED",
		ColorResolution:      "720P",
		ColorFormat:          string(rimage.FormatBGRA32),
		FPS:                  30,
	}
}

// ConfigSchema describes the config file as a JSON schema.
func ConfigSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true, RequiredFromJSONSchemaTags: true}
	return r.Reflect(&Config{})
}

// ReadConfig reads a JSON5 config file on top of the defaults and validates it. Comments and
// trailing commas are allowed, unknown fields are not.
func ReadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "cannot open config")
	}

	var doc interface{}
	if err := json5.Unmarshal(data, &doc); err != nil {
		return cfg, errors.Wrapf(err, "cannot parse config %q", path)
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return cfg, errors.Wrapf(err, "cannot parse config %q", path)
	}
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "cannot parse config %q", path)
	}
	if err := cfg.Validate(path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if mimeType, err := utils.MimeTypeFromExtension(cfg.ImageFormat); err != nil ||
		(mimeType != utils.MimeTypeJPEG && mimeType != utils.MimeTypePNG && mimeType != utils.MimeTypePPM) {
		return goutils.NewConfigValidationError(path, errors.Errorf("image_format must be jpg, png or ppm, got %q", cfg.ImageFormat))
	}
	if cfg.RawFormat != "png" && cfg.RawFormat != "tif" {
		return goutils.NewConfigValidationError(path, errors.Errorf("raw_format must be png or tif, got %q", cfg.RawFormat))
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return goutils.NewConfigValidationError(path, errors.Errorf("jpeg_quality must be between 1 and 100, got %d", cfg.JPEGQuality))
	}
	if cfg.DepthMaxMM <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("depth_max_mm must be positive"))
	}
	if cfg.IRMax <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("ir_max must be positive"))
	}
	if cfg.Colormap != rimage.ColormapGray && cfg.Colormap != rimage.ColormapHCL {
		return goutils.NewConfigValidationError(path, errors.Errorf("colormap must be %s or %s, got %q",
			rimage.ColormapGray, rimage.ColormapHCL, cfg.Colormap))
	}
	if cfg.PreviewMaxWidth < 0 {
		return goutils.NewConfigValidationError(path, errors.New("preview_max_width cannot be negative"))
	}
	if cfg.Parallelism < 1 {
		return goutils.NewConfigValidationError(path, errors.New("parallelism must be at least 1"))
	}
	if _, err := cfg.Duration(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if cfg.Devices < 1 {
		return goutils.NewConfigValidationError(path, errors.New("devices must be at least 1"))
	}
	if cfg.ColorExposureUsec < 0 {
		return goutils.NewConfigValidationError(path, errors.New("color_exposure_usec cannot be negative"))
	}
	if cfg.PowerlineHz != 50 && cfg.PowerlineHz != 60 {
		return goutils.NewConfigValidationError(path, errors.Errorf("powerline_hz must be 50 or 60, got %d", cfg.PowerlineHz))
	}
	if cfg.SubordinateDelayUsec < int(capture.MinSubordinateDelay/time.Microsecond) {
		return goutils.NewConfigValidationError(path, errors.Errorf("subordinate_delay_usec must be at least %d",
			capture.MinSubordinateDelay/time.Microsecond))
	}
	if _, err := rimage.ParseFormat(cfg.ColorFormat); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// ValidateOnline additionally checks what live capture needs.
func (cfg *Config) ValidateOnline(path string) error {
	if err := cfg.Validate(path); err != nil {
		return err
	}
	if cfg.OutputDir == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "output_dir")
	}
	return nil
}

// Duration is the parsed recording duration.
func (cfg *Config) Duration() (time.Duration, error) {
	d, err := time.ParseDuration(cfg.RecordingDuration)
	if err != nil {
		return 0, errors.Wrap(err, "invalid recording_duration")
	}
	if d <= 0 {
		return 0, errors.Errorf("recording_duration must be positive, got %s", d)
	}
	return d, nil
}

// DeviceConfig is the live device part of the config.
func (cfg *Config) DeviceConfig() capture.DeviceConfig {
	format, _ := rimage.ParseFormat(cfg.ColorFormat)
	return capture.DeviceConfig{
		Count:                cfg.Devices,
		ColorExposureUsec:    cfg.ColorExposureUsec,
		PowerlineHz:          cfg.PowerlineHz,
		SubordinateDelayUsec: cfg.SubordinateDelayUsec,
		DepthMode:            cfg.DepthMode,
		ColorResolution:      cfg.ColorResolution,
		ColorFormat:          format,
		FPS:                  cfg.FPS,
	}
}

// SyncConfig is how captures of several live devices are matched. Subordinates are compared by
// depth timestamp; their depth fires half the minimum spacing after their color.
func (cfg *Config) SyncConfig() capture.SyncConfig {
	return capture.SyncConfig{
		SubordinateDelay:        time.Duration(cfg.SubordinateDelayUsec) * time.Microsecond,
		CompareSubordinateDepth: true,
		SubordinateDepthDelay:   capture.MinSubordinateDelay / 2,
	}
}

// WriteOptions returns the options previews and color images are written with.
func (cfg *Config) WriteOptions() rimage.WriteOptions {
	return rimage.WriteOptions{JPEGQuality: cfg.JPEGQuality, MaxWidth: cfg.PreviewMaxWidth}
}
