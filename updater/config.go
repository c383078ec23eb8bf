package updater

import (
	"time"

	"github.com/updrift/updrift/settings"
)

const (
	// MinCheckInterval is the floor for the configured poll interval,
	// preventing runaway polling.
	MinCheckInterval = 5 * time.Second

	// maxRetries bounds automatic re-checks after failures until the next
	// external trigger.
	maxRetries = 10

	// maxRelocations bounds consecutive manifest relocations before the
	// immediate re-probe is deferred to the regular interval.
	maxRelocations = 5

	retryDelay        = 30 * time.Second
	initialCheckDelay = 10 * time.Second
	probeDelay        = 50 * time.Millisecond
	notifyDelay       = time.Millisecond
)

// Config mirrors the scheduler-owned settings. Zero LastCheckTime means the
// scheduler never checked; zero CheckInterval means "never check
// automatically".
type Config struct {
	LastCheckTime    time.Time
	CheckInterval    time.Duration
	ManifestLocation string
	Enabled          bool
}

// ClampInterval applies the minimum poll interval floor. The zero (infinite)
// interval is left as is.
func ClampInterval(d time.Duration) time.Duration {
	if d != 0 && d < MinCheckInterval {
		return MinCheckInterval
	}
	return d
}

// loadConfig seeds the scheduler config from the settings store, writing the
// clamped interval back when the stored value is below the floor.
func loadConfig(store *settings.Store) (Config, error) {
	cfg := Config{
		LastCheckTime:    store.LastCheckTime(),
		CheckInterval:    ClampInterval(store.CheckInterval()),
		ManifestLocation: store.ManifestLocation(),
		Enabled:          store.Enabled(),
	}

	if cfg.CheckInterval != store.CheckInterval() {
		if err := store.SetCheckInterval(cfg.CheckInterval); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}
