package capture

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/kdlab/kdextract/logging"
	"github.com/kdlab/kdextract/rimage"
)

// DeviceConfig configures live devices.
type DeviceConfig struct {
	// Count is the number of devices; the first one is the master.
	Count                int
	ColorExposureUsec    int
	PowerlineHz          int
	SubordinateDelayUsec int
	DepthMode            string
	ColorResolution      string
	ColorFormat          rimage.Format
	FPS                  int
}

// Registration is how a device driver plugs into kdextract.
type Registration struct {
	// Extensions lists the recording file extensions the driver can play back, including the dot.
	Extensions []string
	// OpenPlayback opens a recording file.
	OpenPlayback func(ctx context.Context, path string, logger logging.Logger) (Source, error)
	// OpenDevices opens and starts live devices, master first.
	OpenDevices func(ctx context.Context, cfg DeviceConfig, logger logging.Logger) ([]Device, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Registration{}
)

// Register registers a driver. It panics if the driver is registered twice.
func Register(driver string, reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, old := registry[driver]; old {
		panic(errors.Errorf("trying to register two drivers named %q", driver))
	}
	if reg.OpenPlayback == nil && reg.OpenDevices == nil {
		panic(errors.Errorf("cannot register driver %q without constructors", driver))
	}
	registry[driver] = reg
}

// Deregister removes a driver. It is meant for tests.
func Deregister(driver string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, driver)
}

// Lookup returns the registration of a driver.
func Lookup(driver string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[driver]
	return reg, ok
}

// Drivers returns the names of every registered driver in order.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// OpenPlayback opens a recording file with the driver registered for its extension.
func OpenPlayback(ctx context.Context, path string, logger logging.Logger) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, driver := range Drivers() {
		reg, _ := Lookup(driver)
		if reg.OpenPlayback == nil {
			continue
		}
		for _, supported := range reg.Extensions {
			if supported == ext {
				return reg.OpenPlayback(ctx, path, logger.Sublogger(driver))
			}
		}
	}
	return nil, errors.Errorf("no driver can play back %q recordings (%s)", ext, path)
}
