/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
)

// Watcher holds the current configuration and reloads it from disk when
// its backing file changes. Readers always see a fully validated
// configuration: a reload that fails to parse or validate is logged and
// discarded, and the previous configuration remains in effect.
type Watcher struct {
	path    string
	log     *logrus.Entry
	current atomic.Pointer[Config]
	watcher *fsnotify.Watcher
}

// NewWatcher loads path once and returns a Watcher serving it. The
// initial load's error, unlike a later reload's, is returned to the
// caller rather than swallowed, since there is no prior good
// configuration to fall back on.
func NewWatcher(path string, log *logrus.Entry) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, log: log}
	w.current.Store(cfg)
	return w, nil
}

// Current returns the most recently validated configuration.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// StartWatching begins an fsnotify watch on the configuration file's
// directory (fsnotify does not reliably track a single file across
// editors that replace it via rename-on-save) and reloads on every
// event that touches it, until ctx is cancelled.
func (w *Watcher) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return netmonderrors.FailedTo("create configuration file watcher", err)
	}
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return netmonderrors.FailedToWithDetails("watch configuration directory", "config", dir, err)
	}
	w.watcher = watcher

	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = watcher.Close()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				w.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.log.WithError(err).Warn("configuration file watcher error")
			}
		}
	}()
	return nil
}

// reload re-reads and re-validates the configuration file, keeping the
// previously loaded configuration in effect if the new one is invalid.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.WithError(err).Warn("configuration reload failed validation, keeping previous configuration")
		return
	}
	w.current.Store(cfg)
	w.log.Info("configuration reloaded")
}

// Close releases the watcher, if one was started.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
