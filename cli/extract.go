package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/extract"
)

func overrideString(c *cli.Context, flag string, dst *string) {
	if c.IsSet(flag) {
		*dst = c.String(flag)
	}
}

func overrideInt(c *cli.Context, flag string, dst *int) {
	if c.IsSet(flag) {
		*dst = c.Int(flag)
	}
}

func overrideFloat(c *cli.Context, flag string, dst *float64) {
	if c.IsSet(flag) {
		*dst = c.Float64(flag)
	}
}

// loadConfig reads --config, if any, and applies the command's flags on top.
func loadConfig(c *cli.Context) (extract.Config, error) {
	cfg := extract.DefaultConfig()
	source := "flags"
	if path := c.String(generalFlagConfig); path != "" {
		var err error
		if cfg, err = extract.ReadConfig(path); err != nil {
			return cfg, err
		}
		source = path
	}

	overrideString(c, extractFlagImageFormat, &cfg.ImageFormat)
	overrideInt(c, extractFlagJPEGQuality, &cfg.JPEGQuality)
	overrideString(c, extractFlagRawFormat, &cfg.RawFormat)
	overrideFloat(c, extractFlagDepthMax, &cfg.DepthMaxMM)
	overrideFloat(c, extractFlagIRMax, &cfg.IRMax)
	overrideString(c, extractFlagColormap, &cfg.Colormap)
	overrideInt(c, extractFlagPreviewMaxWidth, &cfg.PreviewMaxWidth)
	overrideInt(c, extractFlagParallel, &cfg.Parallelism)
	if c.Bool(extractFlagNoPointClouds) {
		cfg.PointClouds = false
	}
	if c.Bool(extractFlagNoRegister) {
		cfg.RegisterDepth = false
	}

	overrideString(c, onlineFlagOutput, &cfg.OutputDir)
	if c.IsSet(onlineFlagDuration) {
		cfg.RecordingDuration = c.Duration(onlineFlagDuration).String()
	}
	overrideInt(c, onlineFlagDevices, &cfg.Devices)
	overrideInt(c, onlineFlagExposure, &cfg.ColorExposureUsec)
	overrideInt(c, onlineFlagPowerline, &cfg.PowerlineHz)
	overrideInt(c, onlineFlagSubordinateDelay, &cfg.SubordinateDelayUsec)
	overrideString(c, onlineFlagDepthMode, &cfg.DepthMode)
	overrideString(c, onlineFlagColorResolution, &cfg.ColorResolution)
	overrideString(c, onlineFlagColorFormat, &cfg.ColorFormat)
	overrideInt(c, onlineFlagFPS, &cfg.FPS)

	return cfg, cfg.Validate(source)
}

// PlaybackAction extracts one recording.
func PlaybackAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one recording")
	}
	path := c.Args().First()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(c)
	defer closeLog()
	p := extract.NewPipeline(cfg, logger)
	p.ShowProgress = showProgress(c)

	pm := NewProgressManager(c.App.Writer, []*Step{
		{ID: path, Message: "Extracting " + path, CompletedMsg: "Extracted " + path},
	}, WithProgressOutput(showProgress(c)))
	defer pm.Stop()
	if err := pm.Start(path); err != nil {
		return err
	}
	if err := p.RunRecording(c.Context, path); err != nil {
		goutils.UncheckedError(pm.Fail(path, err))
		return err
	}
	goutils.UncheckedError(pm.Complete(path))
	printSummary(c.App.Writer, p.Stats())
	return nil
}

// BatchAction extracts every recording of one or more file lists.
func BatchAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("expected at least one file list")
	}
	var paths []string
	for _, list := range c.Args().Slice() {
		listed, err := capture.ReadFileList(list)
		if err != nil {
			return err
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		warningf(c.App.ErrWriter, "no recordings listed in %s", strings.Join(c.Args().Slice(), ", "))
		return nil
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, closeLog := newLogger(c)
	defer closeLog()
	p := extract.NewPipeline(cfg, logger)
	steps := []*Step{{
		ID:           "batch",
		Message:      fmt.Sprintf("Extracting %d recordings", len(paths)),
		CompletedMsg: fmt.Sprintf("Extracted %d recordings", len(paths)),
	}}
	for _, path := range paths {
		steps = append(steps, &Step{ID: path, Message: filepath.Base(path), IndentLevel: 1})
	}
	// spinners only make sense for one recording at a time
	pm := NewProgressManager(c.App.Writer, steps,
		WithProgressOutput(showProgress(c) && cfg.Parallelism == 1))
	defer pm.Stop()
	p.RecordingStarted = func(path string) {
		goutils.UncheckedError(pm.Start(path))
	}
	p.RecordingDone = func(path string, err error) {
		if err != nil {
			goutils.UncheckedError(pm.Fail(path, err))
			return
		}
		goutils.UncheckedError(pm.Complete(path))
	}

	if err := pm.Start("batch"); err != nil {
		return err
	}
	err = p.RunBatch(c.Context, paths)
	if err != nil {
		goutils.UncheckedError(pm.Fail("batch", err))
	} else {
		goutils.UncheckedError(pm.Complete("batch"))
	}
	printSummary(c.App.Writer, p.Stats())
	return err
}

// OnlineAction captures from live devices.
func OnlineAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	driver := c.String(onlineFlagDriver)
	logger, closeLog := newLogger(c)
	defer closeLog()
	p := extract.NewPipeline(cfg, logger)
	p.ShowProgress = showProgress(c)

	pm := NewProgressManager(c.App.Writer, []*Step{{
		ID:           "online",
		Message:      fmt.Sprintf("Capturing %s from %d %s devices", cfg.RecordingDuration, cfg.Devices, driver),
		CompletedMsg: "Captured to " + cfg.OutputDir,
	}}, WithProgressOutput(showProgress(c)))
	defer pm.Stop()
	if err := pm.Start("online"); err != nil {
		return err
	}
	if err := p.RunOnline(c.Context, driver, nil); err != nil {
		goutils.UncheckedError(pm.Fail("online", err))
		return err
	}
	goutils.UncheckedError(pm.Complete("online"))
	printSummary(c.App.Writer, p.Stats())
	return nil
}

// DriversAction lists registered drivers.
func DriversAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Driver", "Recordings", "Live devices"})
	for _, name := range capture.Drivers() {
		reg, _ := capture.Lookup(name)
		t.AppendRow(table.Row{name, strings.Join(reg.Extensions, " "), reg.OpenDevices != nil})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// ConfigSchemaAction prints the JSON schema of config files.
func ConfigSchemaAction(c *cli.Context) error {
	schema, err := json.MarshalIndent(extract.ConfigSchema(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot encode config schema")
	}
	printf(c.App.Writer, "%s", schema)
	return nil
}

// printSummary prints the totals of a run as a table.
func printSummary(out io.Writer, stats *extract.Stats) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Sessions", "Frames", "Skipped", "Points", "IMU samples", "Written", "Failed", "Frame interval", "Elapsed"})
	t.AppendRow(table.Row{
		stats.Sessions.Load(),
		stats.Frames.Load(),
		stats.Skipped.Load(),
		stats.Points.Load(),
		stats.IMUSamples.Load(),
		units.HumanSize(float64(stats.BytesWritten.Load())),
		stats.Failed.Load(),
		frameInterval(stats),
		stats.Elapsed().Round(time.Millisecond),
	})
	printf(out, "%s", t.Render())
}

// frameInterval renders the mean device frame interval with its spread, or "-" without one.
func frameInterval(stats *extract.Stats) string {
	summary, ok := stats.FrameIntervals()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%s ±%s (p95 %s)",
		summary.Mean.Round(time.Microsecond),
		summary.StdDev.Round(time.Microsecond),
		summary.P95.Round(time.Microsecond))
}
