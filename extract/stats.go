package extract

import (
	"os"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/atomic"
)

// Stats are the running totals of one or more extractions. Workers update them concurrently.
type Stats struct {
	Sessions     atomic.Int64
	Frames       atomic.Int64
	Skipped      atomic.Int64
	Points       atomic.Int64
	IMUSamples   atomic.Int64
	BytesWritten atomic.Int64
	Failed       atomic.Int64

	started time.Time

	mu             sync.Mutex
	frameIntervals stats.Float64Data
}

// NewStats returns zeroed stats whose elapsed time starts now.
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

// Elapsed is the time since the stats were created.
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.started)
}

// addFile adds the size of a written file.
func (s *Stats) addFile(path string) {
	if info, err := os.Stat(path); err == nil {
		s.BytesWritten.Add(info.Size())
	}
}

// AddFrameInterval records the device time between consecutive depth frames of one device.
func (s *Stats) AddFrameInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameIntervals = append(s.frameIntervals, float64(d))
}

// IntervalSummary describes the device time between consecutive depth frames.
type IntervalSummary struct {
	Count  int
	Mean   time.Duration
	StdDev time.Duration
	P95    time.Duration
	Max    time.Duration
}

// FrameIntervals summarizes the recorded frame intervals. ok is false before two frames of one device
// were extracted.
func (s *Stats) FrameIntervals() (summary IntervalSummary, ok bool) {
	s.mu.Lock()
	data := append(stats.Float64Data(nil), s.frameIntervals...)
	s.mu.Unlock()
	if len(data) == 0 {
		return IntervalSummary{}, false
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return IntervalSummary{}, false
	}
	sd, err := stats.StandardDeviation(data)
	if err != nil {
		return IntervalSummary{}, false
	}
	p95, err := stats.Percentile(data, 95)
	if err != nil {
		return IntervalSummary{}, false
	}
	maxInterval, err := stats.Max(data)
	if err != nil {
		return IntervalSummary{}, false
	}
	return IntervalSummary{
		Count:  len(data),
		Mean:   time.Duration(mean),
		StdDev: time.Duration(sd),
		P95:    time.Duration(p95),
		Max:    time.Duration(maxInterval),
	}, true
}
