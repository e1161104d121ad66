// Package cli contains the kdextract command line.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// Flags.
const (
	generalFlagConfig  = "config"
	generalFlagDebug   = "debug"
	generalFlagQuiet   = "quiet"
	generalFlagLogFile = "log-file"

	extractFlagImageFormat     = "image-format"
	extractFlagJPEGQuality     = "jpeg-quality"
	extractFlagRawFormat       = "raw-format"
	extractFlagDepthMax        = "depth-max"
	extractFlagIRMax           = "ir-max"
	extractFlagColormap        = "colormap"
	extractFlagPreviewMaxWidth = "preview-max-width"
	extractFlagNoPointClouds   = "no-point-clouds"
	extractFlagNoRegister      = "no-register"
	extractFlagParallel        = "parallel"

	onlineFlagDriver           = "driver"
	onlineFlagOutput           = "output"
	onlineFlagDuration         = "duration"
	onlineFlagDevices          = "devices"
	onlineFlagExposure         = "exposure-usec"
	onlineFlagPowerline        = "powerline-hz"
	onlineFlagSubordinateDelay = "subordinate-delay-usec"
	onlineFlagDepthMode        = "depth-mode"
	onlineFlagColorResolution  = "color-resolution"
	onlineFlagColorFormat      = "color-format"
	onlineFlagFPS              = "fps"
)

var extractFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  extractFlagImageFormat,
		Usage: "extension of color images and previews: jpg, png or ppm",
	},
	&cli.IntFlag{
		Name:  extractFlagJPEGQuality,
		Usage: "jpeg quality between 1 and 100",
	},
	&cli.StringFlag{
		Name:  extractFlagRawFormat,
		Usage: "encoding of 16-bit raw depth and ir matrices: png or tif",
	},
	&cli.Float64Flag{
		Name:  extractFlagDepthMax,
		Usage: "depth in millimeters shown at full scale in previews",
	},
	&cli.Float64Flag{
		Name:  extractFlagIRMax,
		Usage: "ir value shown at full scale in previews",
	},
	&cli.StringFlag{
		Name:  extractFlagColormap,
		Usage: "depth preview colormap: gray or hcl",
	},
	&cli.IntFlag{
		Name:  extractFlagPreviewMaxWidth,
		Usage: "downscale previews wider than this many pixels",
	},
	&cli.BoolFlag{
		Name:  extractFlagNoPointClouds,
		Usage: "do not write point clouds",
	},
	&cli.BoolFlag{
		Name:  extractFlagNoRegister,
		Usage: "keep depth and ir in the depth camera's geometry",
	},
}

var onlineFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  onlineFlagDriver,
		Value: "k4a",
		Usage: "device driver",
	},
	&cli.PathFlag{
		Name:    onlineFlagOutput,
		Aliases: []string{"o"},
		Usage:   "directory each device's tree is written under",
	},
	&cli.DurationFlag{
		Name:  onlineFlagDuration,
		Usage: "how long to capture",
	},
	&cli.IntFlag{
		Name:  onlineFlagDevices,
		Usage: "number of devices; the one driving the sync cable is the master",
	},
	&cli.IntFlag{
		Name:  onlineFlagExposure,
		Usage: "manual color exposure in microseconds",
	},
	&cli.IntFlag{
		Name:  onlineFlagPowerline,
		Usage: "powerline frequency: 50 or 60",
	},
	&cli.IntFlag{
		Name:  onlineFlagSubordinateDelay,
		Usage: "delay between consecutive devices in microseconds",
	},
	&cli.StringFlag{
		Name:  onlineFlagDepthMode,
		Usage: "depth mode, such as NFOV_UNBINNED or WFOV_2X2BINNED",
	},
	&cli.StringFlag{
		Name:  onlineFlagColorResolution,
		Usage: "color resolution, such as 720P or 1080P",
	},
	&cli.StringFlag{
		Name:  onlineFlagColorFormat,
		Usage: "color format: mjpg, nv12, yuy2 or bgra32",
	},
	&cli.IntFlag{
		Name:  onlineFlagFPS,
		Usage: "frames per second: 5, 15 or 30",
	},
}

var app = &cli.App{
	Name:            "kdextract",
	Usage:           "extract images, point clouds and timestamps from depth camera recordings",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    generalFlagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.BoolFlag{
			Name:    generalFlagQuiet,
			Aliases: []string{"q"},
			Usage:   "do not draw progress",
		},
		&cli.PathFlag{
			Name:  generalFlagLogFile,
			Usage: "also append logs to `FILE`, rotated as it grows",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "playback",
			Usage:     "extract a recording or re-extract an extracted tree next to itself",
			ArgsUsage: "<recording>",
			Flags:     extractFlags,
			Action:    PlaybackAction,
		},
		{
			Name:      "batch",
			Usage:     "extract every recording listed in one or more files",
			ArgsUsage: "<file-list>...",
			Flags: append([]cli.Flag{
				&cli.IntFlag{
					Name:  extractFlagParallel,
					Usage: "number of recordings extracted at once",
				},
			}, extractFlags...),
			Action: BatchAction,
		},
		{
			Name:   "online",
			Usage:  "capture from live devices for a fixed duration",
			Flags:  append(append([]cli.Flag{}, onlineFlags...), extractFlags...),
			Action: OnlineAction,
		},
		{
			Name:      "verify",
			Usage:     "check that point cloud files are well formed",
			ArgsUsage: "<file.ply|directory>...",
			Action:    VerifyAction,
		},
		{
			Name:   "config-schema",
			Usage:  "print the JSON schema of --config files",
			Action: ConfigSchemaAction,
		},
		{
			Name:   "drivers",
			Usage:  "list the device drivers this build supports",
			Action: DriversAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
