package k4a

import (
	"github.com/kdlab/kdextract/capture"
)

// Extension is the file extension of Azure Kinect recordings.
const Extension = ".mkv"

func init() {
	capture.Register(DriverName, capture.Registration{
		Extensions:   []string{Extension},
		OpenPlayback: openPlayback,
		OpenDevices:  openDevices,
	})
}
