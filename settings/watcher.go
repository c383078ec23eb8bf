package settings

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/updrift/updrift/util"
)

// Watch starts observing the backing file for writes by other processes and
// fires change listeners for every key whose value actually changed. Writes
// made through this store don't re-trigger listeners because the reloaded
// document matches the in-memory one.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}

	// watch the parent directory: atomic writers replace the file inode
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch settings dir: %w", err)
	}

	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		_ = watcher.Close()
		return fmt.Errorf("settings watcher already running")
	}
	s.watcher = watcher
	s.mu.Unlock()

	s.wg.Add(1)
	go s.watchLoop(ctx, watcher)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer s.wg.Done()

	base := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("settings watcher error: %v", err)
		}
	}
}

func (s *Store) reload() {
	var doc document
	if _, err := util.ReadJson(s.path, &doc); err != nil {
		log.Warnf("failed to reload settings %s: %v", s.path, err)
		return
	}

	s.mu.Lock()
	old := s.doc
	s.doc = doc
	s.mu.Unlock()

	var changed []string
	if !old.LastCheckTime.Equal(doc.LastCheckTime) {
		changed = append(changed, KeyLastCheckTime)
	}
	if old.CheckIntervalSeconds != doc.CheckIntervalSeconds {
		changed = append(changed, KeyCheckInterval)
	}
	if old.ManifestLocation != doc.ManifestLocation {
		changed = append(changed, KeyManifestLocation)
	}
	if old.Enabled != doc.Enabled {
		changed = append(changed, KeyEnabled)
	}

	if len(changed) == 0 {
		return
	}

	log.Debugf("settings file changed externally: %v", changed)
	s.notify(changed...)
}

// Close stops the file watcher if one is running.
func (s *Store) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}

	err := watcher.Close()
	s.wg.Wait()
	return err
}
