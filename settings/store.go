// Package settings persists the update scheduler configuration and notifies
// registered listeners about changes, whether they originate from this
// process or from another actor editing the backing file.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/updrift/updrift/util"
)

// Logical keys passed to change listeners.
const (
	KeyLastCheckTime    = "last-check-time"
	KeyCheckInterval    = "check-interval"
	KeyManifestLocation = "manifest-location"
	KeyEnabled          = "enabled"
)

// document is the JSON shape of the settings file
type document struct {
	LastCheckTime        time.Time `json:"lastCheckTime,omitempty"`
	CheckIntervalSeconds int64     `json:"checkIntervalSeconds,omitempty"`
	ManifestLocation     string    `json:"manifestLocation,omitempty"`
	Enabled              bool      `json:"enabled"`
}

// Store is a file-backed settings bag. Setters persist the document and fire
// change listeners only when the stored value actually changed.
type Store struct {
	path string

	mu        sync.Mutex
	doc       document
	listeners map[string]func(key string)
	watcher   *fsnotify.Watcher
	wg        sync.WaitGroup
}

// Load reads the settings file at path, creating it with defaults if it
// doesn't exist yet.
func Load(path string) (*Store, error) {
	s := &Store{
		path:      path,
		doc:       document{Enabled: true},
		listeners: make(map[string]func(key string)),
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if _, err := util.ReadJson(path, &s.doc); err != nil {
			return nil, fmt.Errorf("read settings %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := util.WriteJson(context.Background(), path, s.doc); err != nil {
			return nil, fmt.Errorf("create settings %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("stat settings %s: %w", path, err)
	}

	return s, nil
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// LastCheckTime returns the time of the last update check attempt, zero if never.
func (s *Store) LastCheckTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.LastCheckTime
}

func (s *Store) SetLastCheckTime(t time.Time) error {
	return s.set(KeyLastCheckTime, func(d *document) bool {
		if d.LastCheckTime.Equal(t) {
			return false
		}
		d.LastCheckTime = t
		return true
	})
}

// CheckInterval returns the configured poll interval, zero meaning "never
// check automatically".
func (s *Store) CheckInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.doc.CheckIntervalSeconds) * time.Second
}

func (s *Store) SetCheckInterval(d time.Duration) error {
	secs := int64(d / time.Second)
	return s.set(KeyCheckInterval, func(doc *document) bool {
		if doc.CheckIntervalSeconds == secs {
			return false
		}
		doc.CheckIntervalSeconds = secs
		return true
	})
}

// ManifestLocation returns the update manifest URL or local path, empty if unset.
func (s *Store) ManifestLocation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.ManifestLocation
}

func (s *Store) SetManifestLocation(location string) error {
	return s.set(KeyManifestLocation, func(d *document) bool {
		if d.ManifestLocation == location {
			return false
		}
		d.ManifestLocation = location
		return true
	})
}

// Enabled reports whether automatic update checks are enabled.
func (s *Store) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Enabled
}

func (s *Store) SetEnabled(enabled bool) error {
	return s.set(KeyEnabled, func(d *document) bool {
		if d.Enabled == enabled {
			return false
		}
		d.Enabled = enabled
		return true
	})
}

// OnChange registers a change listener under the given name, replacing a
// previous listener with the same name. The listener receives the key of
// every changed setting.
func (s *Store) OnChange(name string, fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[name] = fn
}

// RemoveOnChange drops the listener registered under name, no-op if absent.
func (s *Store) RemoveOnChange(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, name)
}

func (s *Store) set(key string, mutate func(*document) bool) error {
	s.mu.Lock()
	if !mutate(&s.doc) {
		s.mu.Unlock()
		return nil
	}
	doc := s.doc
	s.mu.Unlock()

	if err := util.WriteJson(context.Background(), s.path, doc); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}

	s.notify(key)
	return nil
}

// notify runs listeners outside the store lock so they can read the store.
func (s *Store) notify(keys ...string) {
	s.mu.Lock()
	fns := make([]func(key string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		for _, key := range keys {
			fn(key)
		}
	}
}
