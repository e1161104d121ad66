package transform

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/kdlab/kdextract/utils"
)

// Calibration describes a depth camera paired with a color camera.
type Calibration struct {
	Depth        *CameraModel `json:"depth"`
	Color        *CameraModel `json:"color"`
	DepthToColor *Extrinsics  `json:"depth_to_color"`
	// Registered is set when depth and IR frames are already sampled in the color camera's geometry.
	Registered      bool   `json:"registered,omitempty"`
	DepthMode       string `json:"depth_mode,omitempty"`
	ColorResolution string `json:"color_resolution,omitempty"`
}

// CheckValid checks every camera model and the extrinsics.
func (c *Calibration) CheckValid() error {
	if c == nil {
		return errors.New("calibration does not exist")
	}
	if err := c.Color.CheckValid(); err != nil {
		return errors.Wrap(err, "color camera")
	}
	if c.Registered {
		return nil
	}
	if err := c.Depth.CheckValid(); err != nil {
		return errors.Wrap(err, "depth camera")
	}
	if err := c.DepthToColor.CheckValid(); err != nil {
		return errors.Wrap(err, "depth to color")
	}
	return nil
}

// AsRegistered returns the calibration of frames that were already registered into the color camera.
func (c *Calibration) AsRegistered() *Calibration {
	return &Calibration{
		Depth:           c.Color,
		Color:           c.Color,
		DepthToColor:    IdentityExtrinsics(),
		Registered:      true,
		DepthMode:       c.DepthMode,
		ColorResolution: c.ColorResolution,
	}
}

// NewCalibrationFromJSONFile takes in a file path to a JSON and turns it into a Calibration.
func NewCalibrationFromJSONFile(jsonPath string) (*Calibration, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer goutils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	cal := &Calibration{}
	if err := json.Unmarshal(byteValue, cal); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err := cal.CheckValid(); err != nil {
		return nil, errors.Wrapf(err, "invalid calibration in %q", jsonPath)
	}
	return cal, nil
}

// WriteJSONFile writes the calibration to path.
func (c *Calibration) WriteJSONFile(path string) error {
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return errors.Wrap(err, "cannot encode calibration")
	}
	return utils.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}
