package capture

import (
	"context"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/kdlab/kdextract/logging"
	"github.com/kdlab/kdextract/rimage/transform"
)

// MaxTimestampOffset is how far a subordinate frame may be from where the master predicts it.
const MaxTimestampOffset = 100 * time.Microsecond

// MinSubordinateDelay is the minimum spacing between depth cameras so their lasers do not interfere.
const MinSubordinateDelay = 160 * time.Microsecond

// Device is one live camera.
type Device interface {
	// ReadCapture blocks for the device's next capture.
	ReadCapture(ctx context.Context) (*Capture, error)
	Calibration(ctx context.Context) (*transform.Calibration, error)
	Close(ctx context.Context) error
}

// SyncConfig tunes how captures of several devices are matched.
type SyncConfig struct {
	// SubordinateDelay is how long after the master each subordinate fires.
	SubordinateDelay time.Duration
	// CompareSubordinateDepth compares subordinates' depth timestamps rather than color.
	CompareSubordinateDepth bool
	// SubordinateDepthDelay is how far each subordinate's depth lags its own color.
	SubordinateDepthDelay time.Duration
	// MaxOffset defaults to MaxTimestampOffset.
	MaxOffset time.Duration
	// MaxAttempts bounds the number of re-reads per synchronized set; zero is unbounded.
	MaxAttempts int
}

// Synchronizer reads one capture from every device such that all were triggered by the same master pulse.
type Synchronizer struct {
	master Device
	subs   []Device
	cfg    SyncConfig
	logger logging.Logger
}

// NewSynchronizer returns a synchronizer over devices, master first.
func NewSynchronizer(devices []Device, cfg SyncConfig, logger logging.Logger) (*Synchronizer, error) {
	if len(devices) == 0 {
		return nil, errors.New("need at least one device to synchronize")
	}
	if cfg.MaxOffset == 0 {
		cfg.MaxOffset = MaxTimestampOffset
	}
	return &Synchronizer{master: devices[0], subs: devices[1:], cfg: cfg, logger: logger}, nil
}

func subordinateTimestamp(c *Capture, useDepth bool) (uint64, bool) {
	frame := c.Color
	if useDepth {
		frame = c.Depth
	}
	if frame == nil {
		return 0, false
	}
	return frame.TimestampUsec, true
}

func closeAll(captures []*Capture) error {
	var err error
	for _, c := range captures {
		if c != nil {
			err = multierr.Combine(err, c.Close())
		}
	}
	return err
}

// Next returns one capture per device, master first. Captures that fall behind are dropped and
// re-read until every subordinate is within the allowed offset of the master.
func (s *Synchronizer) Next(ctx context.Context) (_ []*Capture, err error) {
	devices := append([]Device{s.master}, s.subs...)
	current := make([]*Capture, len(devices))
	defer func() {
		if err != nil {
			err = multierr.Combine(err, closeAll(current))
		}
	}()
	reread := func(i int) error {
		if current[i] != nil {
			if err := current[i].Close(); err != nil {
				return err
			}
			current[i] = nil
		}
		c, err := devices[i].ReadCapture(ctx)
		if err != nil {
			return errors.Wrapf(err, "cannot read device %d", i)
		}
		c.Device = i
		current[i] = c
		return nil
	}
	for i := range devices {
		if err := reread(i); err != nil {
			return nil, err
		}
	}
	if len(s.subs) == 0 {
		return current, nil
	}

	maxOffset := int64(s.cfg.MaxOffset / time.Microsecond)
	delay := int64(s.cfg.SubordinateDelay / time.Microsecond)
	var depthDelay int64
	if s.cfg.CompareSubordinateDepth {
		depthDelay = int64(s.cfg.SubordinateDepthDelay / time.Microsecond)
	}
	for attempt := 0; s.cfg.MaxAttempts == 0 || attempt < s.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if current[0].Color == nil {
			s.logger.Debug("master capture has no color image, re-reading")
			if err := reread(0); err != nil {
				return nil, err
			}
			continue
		}
		masterTime := int64(current[0].Color.TimestampUsec)
		synced := true
		for i := 1; i < len(devices); i++ {
			subTime, ok := subordinateTimestamp(current[i], s.cfg.CompareSubordinateDepth)
			if !ok {
				s.logger.Debugw("subordinate capture is missing its image, re-reading", "device", i)
				if err := reread(i); err != nil {
					return nil, err
				}
				synced = false
				break
			}
			offset := int64(subTime) - (masterTime + int64(i)*delay + depthDelay)
			if offset < -maxOffset {
				s.logger.Debugw("subordinate is lagging", "device", i, "offset_usec", offset)
				if err := reread(i); err != nil {
					return nil, err
				}
				synced = false
				break
			}
			if offset > maxOffset {
				s.logger.Debugw("master is lagging", "device", i, "offset_usec", offset)
				if err := reread(0); err != nil {
					return nil, err
				}
				synced = false
				break
			}
		}
		if synced {
			return current, nil
		}
	}
	return nil, errors.Errorf("devices did not synchronize after %d attempts", s.cfg.MaxAttempts)
}

// MultiDeviceSource turns synchronized live devices into a Source that runs for a fixed duration.
type MultiDeviceSource struct {
	name     string
	devices  []Device
	sync     *Synchronizer
	clock    clock.Clock
	duration time.Duration
	logger   logging.Logger

	started time.Time
	pending []*Capture
}

// NewMultiDeviceSource wraps devices, master first. A zero duration runs until the context is done.
func NewMultiDeviceSource(
	name string,
	devices []Device,
	cfg SyncConfig,
	clk clock.Clock,
	duration time.Duration,
	logger logging.Logger,
) (*MultiDeviceSource, error) {
	sync, err := NewSynchronizer(devices, cfg, logger)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &MultiDeviceSource{
		name:     name,
		devices:  devices,
		sync:     sync,
		clock:    clk,
		duration: duration,
		logger:   logger,
	}, nil
}

// Name identifies the source in logs.
func (m *MultiDeviceSource) Name() string {
	return m.name
}

// Devices is the number of devices.
func (m *MultiDeviceSource) Devices() int {
	return len(m.devices)
}

// Length is the configured recording duration.
func (m *MultiDeviceSource) Length() time.Duration {
	return m.duration
}

// Calibration returns the calibration of one device.
func (m *MultiDeviceSource) Calibration(ctx context.Context, device int) (*transform.Calibration, error) {
	if device < 0 || device >= len(m.devices) {
		return nil, errors.Errorf("no device %d", device)
	}
	return m.devices[device].Calibration(ctx)
}

// NextCapture returns the captures of each synchronized set in device order, and io.EOF once the
// duration has elapsed.
func (m *MultiDeviceSource) NextCapture(ctx context.Context) (*Capture, error) {
	if len(m.pending) == 0 {
		if m.started.IsZero() {
			m.started = m.clock.Now()
		} else if m.duration > 0 && m.clock.Since(m.started) >= m.duration {
			return nil, io.EOF
		}
		captures, err := m.sync.Next(ctx)
		if err != nil {
			return nil, err
		}
		m.pending = captures
	}
	c := m.pending[0]
	m.pending = m.pending[1:]
	return c, nil
}

// Close releases pending captures and closes every device.
func (m *MultiDeviceSource) Close(ctx context.Context) error {
	err := closeAll(m.pending)
	m.pending = nil
	for _, d := range m.devices {
		err = multierr.Combine(err, d.Close(ctx))
	}
	return err
}
