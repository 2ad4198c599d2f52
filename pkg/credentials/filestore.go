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

package credentials

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
)

// FileStore is the backing credential store: one file per reference under
// a directory, hot-reloaded via fsnotify. Never stores anything beyond
// what's already on disk; it is a read-through cache of that directory.
type FileStore struct {
	dir     string
	log     *logrus.Entry
	mu      sync.RWMutex
	byRef   map[string]Credential
	watcher *fsnotify.Watcher
}

// NewFileStore scans dir and loads every file in it as a credential keyed
// by file name.
func NewFileStore(dir string, log *logrus.Entry) (*FileStore, error) {
	s := &FileStore{
		dir:   dir,
		log:   log,
		byRef: map[string]Credential{},
	}
	if err := s.reloadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) reloadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return netmonderrors.FailedToWithDetails("read credentials directory", "credentials", s.dir, err)
	}

	loaded := map[string]Credential{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		cred, err := s.loadFile(e.Name())
		if err != nil {
			s.log.WithError(err).WithField("reference", e.Name()).Warn("skipping unreadable credential file")
			continue
		}
		loaded[e.Name()] = cred
	}

	s.mu.Lock()
	s.byRef = loaded
	s.mu.Unlock()
	return nil
}

func (s *FileStore) loadFile(name string) (Credential, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Credential{}, err
	}
	return parseCredential(raw), nil
}

// parseCredential accepts either a JSON object ({"username":...,
// "secret":...,"private_key":...}) or a bare string, treated as Secret.
// The bare-string form keeps single-value references (a webhook URL, an
// API token) simple to author and rotate by hand.
func parseCredential(raw []byte) Credential {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var cred struct {
			Username   string `json:"username"`
			Secret     string `json:"secret"`
			PrivateKey string `json:"private_key"`
		}
		if err := json.Unmarshal([]byte(trimmed), &cred); err == nil {
			return Credential{Username: cred.Username, Secret: cred.Secret, PrivateKey: cred.PrivateKey}
		}
	}
	return Credential{Secret: trimmed}
}

// Get implements the backing-store lookup the resolver calls on cache miss.
func (s *FileStore) Get(_ context.Context, reference string) (Credential, error) {
	s.mu.RLock()
	cred, ok := s.byRef[reference]
	s.mu.RUnlock()
	if !ok {
		return Credential{}, ErrNotFound
	}
	if cred.Empty() {
		s.log.WithField("reference", reference).Warn("credential reference resolved to an empty secret")
	}
	return cred, nil
}

// Count reports how many references are currently loaded.
func (s *FileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byRef)
}

// StartWatching begins an fsnotify watch on the store's directory,
// reloading the whole directory on every write, create, remove, or rename
// event until ctx is cancelled.
func (s *FileStore) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return netmonderrors.FailedTo("create credential file watcher", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return netmonderrors.FailedToWithDetails("watch credentials directory", "credentials", s.dir, err)
	}
	s.watcher = watcher

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
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := s.reloadAll(); err != nil {
						s.log.WithError(err).Warn("credential directory reload failed")
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.WithError(err).Warn("credential file watcher error")
			}
		}
	}()
	return nil
}

// Close releases the watcher, if one was started.
func (s *FileStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}
