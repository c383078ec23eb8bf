// Package updater decides when to check for application updates, interprets
// fetched manifests and notifies observers about newer versions.
package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/updrift/updrift/scheduler"
	"github.com/updrift/updrift/settings"
)

const (
	checkJobID   = "update-check"
	notifyJobID  = "update-check-completed"
	listenerName = "update-checker"

	bootstrapManifestName = "updates.json"
)

// Checker is the update scheduler. It owns the decision of when to check,
// guards against overlapping fetches, reacts to live settings changes and
// reports outcomes to a registered observer.
//
// Settings changes and timer callbacks are expected to arrive serially; the
// manifest fetch is the only suspending operation and runs under a
// single-flight guard.
type Checker struct {
	store          *settings.Store
	timers         scheduler.Scheduler
	fetcher        Fetcher
	runningVersion string
	bootstrapPath  string

	mu          sync.Mutex
	config      Config
	checking    bool
	disposed    bool
	retryCount  int
	retryPolicy backoff.BackOff
	relocations int
	fetchCancel context.CancelFunc
	lastResult  Result

	listenerMu sync.Mutex
	listener   func(hasNewVersion bool)
}

// NewChecker seeds the configuration from the settings store, subscribes to
// its change notifications and arms the initial check unless checks are
// disabled.
func NewChecker(store *settings.Store, timers scheduler.Scheduler, fetcher Fetcher, runningVersion string) (*Checker, error) {
	cfg, err := loadConfig(store)
	if err != nil {
		return nil, fmt.Errorf("seed update config: %w", err)
	}

	c := &Checker{
		store:          store,
		timers:         timers,
		fetcher:        fetcher,
		runningVersion: runningVersion,
		bootstrapPath:  defaultBootstrapPath(),
		config:         cfg,
	}
	c.resetRetriesLocked()

	store.OnChange(listenerName, c.onSettingChanged)

	if cfg.Enabled {
		timers.Schedule(initialCheckDelay, checkJobID, c.tick)
	}
	return c, nil
}

// SetOnUpdateListener registers the observer invoked after every completed
// check with whether a newer version is available. Failed checks are never
// reported.
func (c *Checker) SetOnUpdateListener(fn func(hasNewVersion bool)) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listener = fn
}

// CheckNow runs a manual update check and returns true when a newer version
// is available. It returns false immediately when no manifest location is
// configured or another check is in flight. A failed manual check doesn't
// consume retry budget and doesn't reschedule.
func (c *Checker) CheckNow() bool {
	c.timers.Cancel(checkJobID)
	return c.check(false)
}

// NotifyLocationChanged nudges the checker after a caller wrote a new
// manifest location directly into the settings store, bypassing the change
// notification path. It only reacts when the stored value differs from the
// previous one the caller observed.
func (c *Checker) NotifyLocationChanged(previousLocation string) {
	if c.store.ManifestLocation() == previousLocation {
		return
	}
	c.onLocationChanged()
}

// LastResult returns the interpreted outcome of the most recent completed check.
func (c *Checker) LastResult() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// Close disposes the checker: it stops reacting to settings changes, cancels
// pending jobs, aborts an in-flight fetch best-effort and blocks any further
// timer arming. Safe to call multiple times.
func (c *Checker) Close() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	cancel := c.fetchCancel
	c.fetchCancel = nil
	c.mu.Unlock()

	c.store.RemoveOnChange(listenerName)
	c.timers.Cancel(checkJobID, notifyJobID)
	if cancel != nil {
		cancel()
	}
}

// tick is the regular timer callback. A tick that fires before the
// configured interval elapsed is ignored so a stray or duplicate timer can't
// trigger early checks.
func (c *Checker) tick() {
	c.mu.Lock()
	if c.disposed || c.checking {
		c.mu.Unlock()
		return
	}
	cfg := c.config
	c.mu.Unlock()

	if cfg.ManifestLocation == "" {
		c.bootstrap()
		return
	}

	due := cfg.LastCheckTime.IsZero() || cfg.CheckInterval == 0 ||
		!time.Now().Before(cfg.LastCheckTime.Add(cfg.CheckInterval))
	if !due {
		log.Debugf("skipping early tick, next check not due before %s",
			cfg.LastCheckTime.Add(cfg.CheckInterval))
		return
	}

	c.check(true)
}

// probe checks immediately, skipping the stale-tick guard. Used after
// location changes and for failure retries.
func (c *Checker) probe() {
	c.check(true)
}

func (c *Checker) check(auto bool) bool {
	ctx, location, ok := c.beginCheck()
	if !ok {
		return false
	}

	manifest, err := c.fetcher.Fetch(ctx, location)
	return c.finishCheck(auto, location, manifest, err)
}

func (c *Checker) beginCheck() (context.Context, string, bool) {
	c.mu.Lock()
	if c.disposed || c.checking || c.config.ManifestLocation == "" {
		c.mu.Unlock()
		return nil, "", false
	}
	c.checking = true
	c.config.LastCheckTime = time.Now()
	last := c.config.LastCheckTime
	location := c.config.ManifestLocation
	ctx, cancel := context.WithCancel(context.Background())
	c.fetchCancel = cancel
	c.mu.Unlock()

	// record the attempt before the fetch starts (assume-success recording)
	if err := c.store.SetLastCheckTime(last); err != nil {
		log.Warnf("failed to persist last check time: %v", err)
	}

	return ctx, location, true
}

func (c *Checker) finishCheck(auto bool, location string, manifest *Manifest, err error) bool {
	c.mu.Lock()
	c.checking = false
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCancel = nil
	}
	disposed := c.disposed
	c.mu.Unlock()

	// a completion racing dispose is a no-op
	if disposed {
		return false
	}

	if err != nil {
		log.Warnf("update check against %s failed: %v", location, err)
		if auto {
			c.scheduleRetry()
		}
		return false
	}

	return c.handleManifest(manifest, location)
}

func (c *Checker) handleManifest(manifest *Manifest, location string) bool {
	res := Interpret(manifest, location, c.runningVersion)

	c.mu.Lock()
	c.lastResult = res
	c.resetRetriesLocked()
	if res.RedirectLocation == "" {
		c.relocations = 0
	} else {
		c.relocations++
	}
	c.mu.Unlock()

	if res.RedirectLocation != "" {
		log.Infof("update manifest moved from %q to %q", location, res.RedirectLocation)
		// the location change handler arms the probe of the new manifest
		if err := c.store.SetManifestLocation(res.RedirectLocation); err != nil {
			log.Errorf("failed to persist relocated manifest location: %v", err)
		}
		c.notifyObservers(false)
		return false
	}

	if res.SuggestedInterval > 0 {
		c.applyInterval(res.SuggestedInterval)
	}

	hasNew := res.AvailableVersion != ""
	if hasNew {
		log.Infof("new version %s is available (running %s)", res.AvailableVersion, c.runningVersion)
	} else {
		log.Debugf("no newer version than %s is published", c.runningVersion)
	}

	c.notifyObservers(hasNew)
	c.rearm()
	return hasNew
}

// bootstrap reads a manifest shipped next to the binary when no location is
// configured yet. Failures are logged and never retried; the next natural
// tick runs the bootstrap again.
func (c *Checker) bootstrap() {
	c.mu.Lock()
	if c.disposed || c.checking {
		c.mu.Unlock()
		return
	}
	c.checking = true
	ctx, cancel := context.WithCancel(context.Background())
	c.fetchCancel = cancel
	c.mu.Unlock()

	manifest, err := c.fetcher.Fetch(ctx, c.bootstrapPath)

	c.mu.Lock()
	c.checking = false
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCancel = nil
	}
	disposed := c.disposed
	c.mu.Unlock()

	if disposed {
		return
	}
	if err != nil {
		log.Debugf("bootstrap manifest %s unavailable: %v", c.bootstrapPath, err)
		return
	}

	c.handleManifest(manifest, "")
}

func (c *Checker) onSettingChanged(key string) {
	switch key {
	case settings.KeyManifestLocation:
		c.onLocationChanged()
	case settings.KeyCheckInterval:
		c.onIntervalChanged()
	case settings.KeyEnabled:
		c.onEnabledChanged()
	case settings.KeyLastCheckTime:
		last := c.store.LastCheckTime()
		c.mu.Lock()
		if !c.disposed {
			c.config.LastCheckTime = last
		}
		c.mu.Unlock()
	}
}

func (c *Checker) onLocationChanged() {
	location := c.store.ManifestLocation()

	c.mu.Lock()
	if c.disposed || location == c.config.ManifestLocation {
		c.mu.Unlock()
		return
	}
	log.Infof("manifest location changed to %q", location)
	c.config.ManifestLocation = location
	// fresh target deserves a fresh retry budget
	c.resetRetriesLocked()
	enabled := c.config.Enabled
	deferred := c.relocations >= maxRelocations
	c.mu.Unlock()

	if !enabled {
		c.timers.Cancel(checkJobID)
		return
	}

	if deferred {
		log.Warnf("manifest relocated %d times in a row, postponing the probe to the regular interval", maxRelocations)
		c.rearm()
		return
	}

	if location == "" {
		// location cleared, fall back to the bootstrap path
		c.timers.Schedule(probeDelay, checkJobID, c.tick)
		return
	}

	c.timers.Schedule(probeDelay, checkJobID, c.probe)
}

func (c *Checker) onIntervalChanged() {
	stored := c.store.CheckInterval()
	clamped := ClampInterval(stored)
	if clamped != stored {
		// rewrite below-floor values; the change notification re-enters here
		if err := c.store.SetCheckInterval(clamped); err != nil {
			log.Errorf("failed to persist clamped check interval: %v", err)
		}
		return
	}

	c.mu.Lock()
	if c.disposed || clamped == c.config.CheckInterval {
		c.mu.Unlock()
		return
	}
	c.config.CheckInterval = clamped
	enabled := c.config.Enabled
	c.mu.Unlock()

	log.Debugf("check interval changed to %s", clamped)
	if enabled {
		c.rearm()
	}
}

func (c *Checker) onEnabledChanged() {
	enabled := c.store.Enabled()

	c.mu.Lock()
	if c.disposed || enabled == c.config.Enabled {
		c.mu.Unlock()
		return
	}
	c.config.Enabled = enabled
	c.mu.Unlock()

	if !enabled {
		log.Infof("automatic update checks disabled")
		c.timers.Cancel(checkJobID)
		return
	}

	log.Infof("automatic update checks enabled")
	c.timers.Schedule(initialCheckDelay, checkJobID, c.tick)
}

func (c *Checker) scheduleRetry() {
	c.mu.Lock()
	if c.disposed || !c.config.Enabled {
		c.mu.Unlock()
		return
	}
	c.retryCount++
	count := c.retryCount
	next := c.retryPolicy.NextBackOff()
	c.mu.Unlock()

	if count >= maxRetries || next == backoff.Stop {
		log.Warnf("update check failed %d times, waiting for a configuration change or a manual check", count)
		return
	}

	c.timers.Schedule(next, checkJobID, c.probe)
}

func (c *Checker) resetRetriesLocked() {
	c.retryCount = 0
	c.retryPolicy = backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), maxRetries)
}

// rearm schedules the next regular tick. No timer is armed for the infinite
// interval, when checks are disabled or after disposal.
func (c *Checker) rearm() {
	c.mu.Lock()
	disposed, enabled, interval := c.disposed, c.config.Enabled, c.config.CheckInterval
	c.mu.Unlock()

	if disposed || !enabled || interval == 0 {
		c.timers.Cancel(checkJobID)
		return
	}
	c.timers.Schedule(interval, checkJobID, c.tick)
}

func (c *Checker) applyInterval(suggested time.Duration) {
	if err := c.store.SetCheckInterval(ClampInterval(suggested)); err != nil {
		log.Warnf("failed to persist suggested check interval: %v", err)
	}
}

// notifyObservers dispatches through the timer queue so observers are never
// invoked from inside the fetch completion path.
func (c *Checker) notifyObservers(hasNewVersion bool) {
	c.listenerMu.Lock()
	listener := c.listener
	c.listenerMu.Unlock()
	if listener == nil {
		return
	}

	c.timers.Schedule(notifyDelay, notifyJobID, func() {
		listener(hasNewVersion)
	})
}

func defaultBootstrapPath() string {
	exe, err := os.Executable()
	if err != nil {
		return bootstrapManifestName
	}
	return filepath.Join(filepath.Dir(exe), bootstrapManifestName)
}
