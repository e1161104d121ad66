package extract

import (
	"encoding/json"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/utils"
)

type imuVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type imuRecord struct {
	AccSample         imuVector `json:"acc_sample"`
	AccTimestampUsec  uint64    `json:"acc_timestamp_usec"`
	GyroSample        imuVector `json:"gyro_sample"`
	GyroTimestampUsec uint64    `json:"gyro_timestamp_usec"`
	Temperature       float64   `json:"temperature"`
}

type imuEntry struct {
	Data imuRecord `json:"data"`
}

type imuDocument struct {
	Data []imuEntry `json:"data"`
}

// IMUWriter collects inertial samples and writes them as one JSON document.
type IMUWriter struct {
	entries []imuEntry
}

// Add appends a sample.
func (w *IMUWriter) Add(s capture.IMUSample) {
	w.entries = append(w.entries, imuEntry{Data: imuRecord{
		AccSample:         imuVector{X: s.Acc.X, Y: s.Acc.Y, Z: s.Acc.Z},
		AccTimestampUsec:  s.AccTimestampUsec,
		GyroSample:        imuVector{X: s.Gyro.X, Y: s.Gyro.Y, Z: s.Gyro.Z},
		GyroTimestampUsec: s.GyroTimestampUsec,
		Temperature:       s.Temperature,
	}})
}

// Len is the number of samples added.
func (w *IMUWriter) Len() int {
	return len(w.entries)
}

// WriteTo writes the document indented with four spaces.
func (w *IMUWriter) WriteTo(out io.Writer) (int64, error) {
	doc := imuDocument{Data: w.entries}
	if doc.Data == nil {
		doc.Data = []imuEntry{}
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	n, err := out.Write(data)
	return int64(n), err
}

// WriteFile writes the document to path.
func (w *IMUWriter) WriteFile(path string) error {
	if err := utils.WriteFileAtomic(path, func(out io.Writer) error {
		_, err := w.WriteTo(out)
		return err
	}); err != nil {
		return errors.Wrap(err, "cannot write imu samples")
	}
	return nil
}

// ReadIMUFile reads samples written by IMUWriter.
func ReadIMUFile(path string) ([]capture.IMUSample, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc imuDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "cannot parse %q", path)
	}
	samples := make([]capture.IMUSample, 0, len(doc.Data))
	for _, e := range doc.Data {
		r := e.Data
		samples = append(samples, capture.IMUSample{
			Acc:               r3.Vector{X: r.AccSample.X, Y: r.AccSample.Y, Z: r.AccSample.Z},
			AccTimestampUsec:  r.AccTimestampUsec,
			Gyro:              r3.Vector{X: r.GyroSample.X, Y: r.GyroSample.Y, Z: r.GyroSample.Z},
			GyroTimestampUsec: r.GyroTimestampUsec,
			Temperature:       r.Temperature,
		})
	}
	return samples, nil
}
