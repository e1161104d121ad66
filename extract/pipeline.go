// Package extract turns captures into an output tree of images, point clouds and timestamp logs.
package extract

import (
	"context"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/logging"
	"github.com/kdlab/kdextract/pointcloud"
	"github.com/kdlab/kdextract/rimage"
	"github.com/kdlab/kdextract/rimage/transform"
	"github.com/kdlab/kdextract/utils"
)

// Pipeline extracts sources into output trees.
type Pipeline struct {
	cfg    Config
	logger logging.Logger
	stats  *Stats

	// ShowProgress draws a progress bar for sources that know their length.
	ShowProgress bool
	// RecordingStarted and RecordingDone, when set, are called from batch workers around each recording.
	RecordingStarted func(path string)
	RecordingDone    func(path string, err error)
}

// NewPipeline returns a pipeline writing what cfg asks for.
func NewPipeline(cfg Config, logger logging.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger, stats: NewStats()}
}

// Stats returns the totals of every session run so far.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

type tableKey struct {
	camera        string
	width, height int
}

// deviceSession is the state of one device within a session.
type deviceSession struct {
	index    int
	layout   *Layout
	cal      *transform.Calibration
	register bool

	registration *transform.Registration
	tables       map[tableKey]*transform.DirectionTable
	lastDepthTS  uint64

	depthLog *TimestampLog
	colorLog *TimestampLog
	irLog    *TimestampLog
}

func (d *deviceSession) close() error {
	var err error
	for _, l := range []*TimestampLog{d.depthLog, d.colorLog, d.irLog} {
		if l != nil {
			err = multierr.Combine(err, l.Close())
		}
	}
	return err
}

type session struct {
	p       *Pipeline
	src     capture.Source
	devices []*deviceSession
	logger  logging.Logger

	firstTimestamp uint64
	bar            *pterm.ProgressbarPrinter
	barPercent     int
}

func (p *Pipeline) newSession(ctx context.Context, src capture.Source, layouts []*Layout) (*session, error) {
	if len(layouts) != src.Devices() {
		return nil, errors.Errorf("source %q has %d devices but %d output trees were given",
			src.Name(), src.Devices(), len(layouts))
	}
	s := &session{
		p:      p,
		src:    src,
		logger: p.logger.Sublogger("session").WithFields("session_id", uuid.NewString(), "source", src.Name()),
	}
	if err := s.openDevices(ctx, layouts); err != nil {
		return nil, multierr.Combine(err, s.close())
	}
	return s, nil
}

// openDevices prepares the output tree of every device. Devices opened before a failure stay in
// s.devices so the caller can close them.
func (s *session) openDevices(ctx context.Context, layouts []*Layout) error {
	p := s.p
	for i, layout := range layouts {
		cal, err := s.src.Calibration(ctx, i)
		if err != nil {
			return errors.Wrapf(err, "cannot read calibration of device %d", i)
		}
		if err := cal.CheckValid(); err != nil {
			return errors.Wrapf(err, "invalid calibration of device %d", i)
		}
		if err := layout.Create(); err != nil {
			return err
		}
		dev := &deviceSession{
			index:    i,
			layout:   layout,
			cal:      cal,
			register: p.cfg.RegisterDepth && !cal.Registered,
			tables:   map[tableKey]*transform.DirectionTable{},
		}
		s.devices = append(s.devices, dev)

		written := cal
		if dev.register {
			written = cal.AsRegistered()
		}
		if err := written.WriteJSONFile(layout.Calibration()); err != nil {
			return err
		}
		if dev.depthLog, err = OpenTimestampLog(layout.DepthTimestamps()); err != nil {
			return err
		}
		if dev.colorLog, err = OpenTimestampLog(layout.ColorTimestamps()); err != nil {
			return err
		}
		if dev.irLog, err = OpenTimestampLog(layout.IRTimestamps()); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) close() error {
	var err error
	for _, dev := range s.devices {
		err = multierr.Combine(err, dev.close())
	}
	if s.bar != nil {
		_, stopErr := s.bar.Stop()
		err = multierr.Combine(err, stopErr)
	}
	return err
}

// Run extracts every capture of src. Device i of the source is written to layouts[i].
func (p *Pipeline) Run(ctx context.Context, src capture.Source, layouts []*Layout) (err error) {
	start := time.Now()
	s, err := p.newSession(ctx, src, layouts)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.close())
	}()
	p.stats.Sessions.Inc()
	s.logger.Infow("extracting", "devices", len(layouts), "root", layouts[0].Root)

	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := src.NextCapture(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "cannot read capture from %q", src.Name())
		}
		processed, err := s.processAndClose(ctx, c)
		if err != nil {
			return err
		}
		if processed {
			frames++
		}
	}

	if imuSrc, ok := src.(capture.IMUSource); ok {
		if err := s.writeIMU(ctx, imuSrc); err != nil {
			return err
		}
	}
	s.logger.Infow("extraction concluded", "frames", frames, "seconds", int(time.Since(start).Seconds()))
	return nil
}

func (s *session) processAndClose(ctx context.Context, c *capture.Capture) (processed bool, err error) {
	defer func() {
		err = multierr.Combine(err, c.Close())
	}()
	if c.Device < 0 || c.Device >= len(s.devices) {
		return false, errors.Errorf("capture from unknown device %d", c.Device)
	}
	if !c.Complete() {
		s.p.stats.Skipped.Inc()
		s.logger.Debugw("skipping incomplete capture",
			"device", c.Device, "depth", c.Depth != nil, "color", c.Color != nil, "ir", c.IR != nil)
		return false, nil
	}
	if err := s.process(ctx, s.devices[c.Device], c); err != nil {
		return false, errors.Wrapf(err, "device %d", c.Device)
	}
	s.p.stats.Frames.Inc()
	s.progress(c.Depth.TimestampUsec)
	return true, nil
}

// table returns the direction table of a camera at a resolution, building it on first use.
func (s *session) table(ctx context.Context, dev *deviceSession, camera string, model *transform.CameraModel,
	width, height int,
) (*transform.DirectionTable, error) {
	key := tableKey{camera: camera, width: width, height: height}
	if t, ok := dev.tables[key]; ok {
		return t, nil
	}
	start := time.Now()
	t, err := transform.BuildDirectionTable(ctx, model, width, height)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot build %s direction table", camera)
	}
	s.logger.Debugw("built direction table",
		"device", dev.index, "camera", camera, "width", width, "height", height,
		"valid", t.ValidCount(), "took", time.Since(start))
	dev.tables[key] = t
	return t, nil
}

func (s *session) process(ctx context.Context, dev *deviceSession, c *capture.Capture) error {
	cfg := &s.p.cfg
	stats := s.p.stats
	depthTS, colorTS, irTS := c.Depth.TimestampUsec, c.Color.TimestampUsec, c.IR.TimestampUsec

	depth, err := rimage.DecodeDepth(c.Depth)
	if err != nil {
		return errors.Wrap(err, "cannot decode depth")
	}
	ir, err := rimage.DecodeDepth(c.IR)
	if err != nil {
		return errors.Wrap(err, "cannot decode ir")
	}

	geometry, camera := dev.cal.Depth, "depth"
	if dev.cal.Registered {
		geometry, camera = dev.cal.Color, "color"
	}
	if dev.register {
		if dev.registration == nil ||
			dev.registration.Width() != c.Color.Width || dev.registration.Height() != c.Color.Height {
			depthTable, err := s.table(ctx, dev, "depth", dev.cal.Depth, depth.Width(), depth.Height())
			if err != nil {
				return err
			}
			if dev.registration, err = transform.NewRegistration(dev.cal, depthTable, c.Color.Width, c.Color.Height); err != nil {
				return err
			}
		}
		if depth, ir, err = dev.registration.Register(depth, ir); err != nil {
			return err
		}
		geometry, camera = dev.cal.Color, "color"
	}

	rawOpts := rimage.WriteOptions{JPEGQuality: cfg.JPEGQuality}
	previewOpts := cfg.WriteOptions()

	path := dev.layout.DepthRaw(depthTS)
	if err := rimage.WriteImageFile(path, depth.ToGray16(), rawOpts); err != nil {
		return err
	}
	stats.addFile(path)
	preview, err := rimage.RenderPreview(depth, cfg.Colormap, cfg.DepthMaxMM)
	if err != nil {
		return err
	}
	path = dev.layout.DepthImage(depthTS)
	if err := rimage.WriteImageFile(path, preview, previewOpts); err != nil {
		return err
	}
	stats.addFile(path)

	if cfg.PointClouds {
		table, err := s.table(ctx, dev, camera, geometry, depth.Width(), depth.Height())
		if err != nil {
			return err
		}
		pc, err := pointcloud.Synthesize(depth, table)
		if err != nil {
			return err
		}
		path = dev.layout.PointCloud(depthTS)
		if err := pointcloud.WritePLYFile(path, pc); err != nil {
			return err
		}
		stats.addFile(path)
		stats.Points.Add(int64(pc.Size()))
	}
	if err := dev.depthLog.Append(depthTS); err != nil {
		return err
	}
	if dev.lastDepthTS != 0 && depthTS > dev.lastDepthTS {
		stats.AddFrameInterval(time.Duration(depthTS-dev.lastDepthTS) * time.Microsecond)
	}
	dev.lastDepthTS = depthTS

	path = dev.layout.ColorImage(colorTS)
	if err := writeColor(path, c.Color, rawOpts); err != nil {
		return err
	}
	stats.addFile(path)
	if err := dev.colorLog.Append(colorTS); err != nil {
		return err
	}

	path = dev.layout.IRRaw(irTS)
	if err := rimage.WriteImageFile(path, ir.ToGray16(), rawOpts); err != nil {
		return err
	}
	stats.addFile(path)
	irPreview, err := rimage.ScaleToGray(ir, cfg.IRMax)
	if err != nil {
		return err
	}
	path = dev.layout.IRImage(irTS)
	if err := rimage.WriteImageFile(path, irPreview, previewOpts); err != nil {
		return err
	}
	stats.addFile(path)
	// the ir log carries the color timestamp the ir frame was captured with
	return dev.irLog.Append(colorTS)
}

// writeColor writes MJPG frames to .jpg files as they are and re-encodes everything else.
func writeColor(path string, frame *rimage.Frame, opts rimage.WriteOptions) error {
	mimeType, err := utils.MimeTypeFromPath(path)
	if err != nil {
		return err
	}
	if frame.Format == rimage.FormatMJPG && mimeType == utils.MimeTypeJPEG {
		return utils.WriteFileAtomic(path, func(w io.Writer) error {
			_, err := w.Write(frame.Data)
			return err
		})
	}
	img, err := rimage.DecodeImage(frame)
	if err != nil {
		return errors.Wrap(err, "cannot decode color")
	}
	return rimage.WriteImageFile(path, img, opts)
}

func (s *session) writeIMU(ctx context.Context, src capture.IMUSource) error {
	var w IMUWriter
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		sample, err := src.NextIMUSample(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "cannot read imu sample")
		}
		w.Add(sample)
	}
	path := s.devices[0].layout.IMU()
	if err := w.WriteFile(path); err != nil {
		return err
	}
	s.p.stats.IMUSamples.Add(int64(w.Len()))
	s.p.stats.addFile(path)
	return nil
}

// progress advances the progress bar to where ts lies within the source's length.
func (s *session) progress(ts uint64) {
	if !s.p.ShowProgress {
		return
	}
	lr, ok := s.src.(capture.LengthReporter)
	if !ok || lr.Length() <= 0 {
		return
	}
	if s.bar == nil {
		s.firstTimestamp = ts
		bar, err := pterm.DefaultProgressbar.WithTotal(100).WithTitle(s.src.Name()).Start()
		if err != nil {
			s.logger.Debugw("cannot start progress bar", "error", err)
			s.p.ShowProgress = false
			return
		}
		s.bar = bar
	}
	elapsed := time.Duration(ts-s.firstTimestamp) * time.Microsecond
	percent := int(100 * elapsed / lr.Length())
	if percent > 100 {
		percent = 100
	}
	if percent > s.barPercent {
		s.bar.Add(percent - s.barPercent)
		s.barPercent = percent
	}
}

// RunRecording extracts one recording or tree next to itself.
func (p *Pipeline) RunRecording(ctx context.Context, path string) (err error) {
	src, err := OpenSource(ctx, path, p.logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, src.Close(ctx))
	}()
	layouts := make([]*Layout, src.Devices())
	for i := range layouts {
		root := PlaybackRoot(path)
		if len(layouts) > 1 {
			root = OnlineRoot(root, i)
		}
		layouts[i] = NewLayout(root, p.cfg.ImageFormat, p.cfg.RawFormat)
	}
	if err := p.Run(ctx, src, layouts); err != nil {
		return errors.Wrapf(err, "cannot extract %q", path)
	}
	return nil
}

// RunBatch extracts every recording with up to Parallelism workers. The first failure cancels the
// recordings that have not finished.
func (p *Pipeline) RunBatch(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errors.New("no recordings to extract")
	}
	if p.cfg.Parallelism > 1 {
		p.ShowProgress = false
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallelism)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if p.RecordingStarted != nil {
				p.RecordingStarted(path)
			}
			err := p.RunRecording(ctx, path)
			if err != nil {
				p.stats.Failed.Inc()
			}
			if p.RecordingDone != nil {
				p.RecordingDone(path, err)
			}
			return err
		})
	}
	return g.Wait()
}

// RunOnline captures from the driver's live devices until the recording duration has elapsed.
func (p *Pipeline) RunOnline(ctx context.Context, driver string, clk clock.Clock) (err error) {
	if err := p.cfg.ValidateOnline("online"); err != nil {
		return err
	}
	duration, err := p.cfg.Duration()
	if err != nil {
		return err
	}
	reg, ok := capture.Lookup(driver)
	if !ok || reg.OpenDevices == nil {
		return errors.Errorf("driver %q cannot open live devices", driver)
	}
	devices, err := reg.OpenDevices(ctx, p.cfg.DeviceConfig(), p.logger.Sublogger(driver))
	if err != nil {
		return err
	}
	src, err := capture.NewMultiDeviceSource("online", devices, p.cfg.SyncConfig(), clk, duration, p.logger)
	if err != nil {
		for _, d := range devices {
			goutils.UncheckedError(d.Close(ctx))
		}
		return err
	}
	defer func() {
		err = multierr.Combine(err, src.Close(ctx))
	}()
	layouts := make([]*Layout, len(devices))
	for i := range layouts {
		layouts[i] = NewLayout(OnlineRoot(p.cfg.OutputDir, i), p.cfg.ImageFormat, p.cfg.RawFormat)
	}
	return p.Run(ctx, src, layouts)
}
