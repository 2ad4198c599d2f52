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

// Package storage is the embedded metrics engine: a SQLite-backed store
// with a gzip-then-encrypt encoding pipeline, hourly rollups, per-family
// retention sweeps, and background backup/optimize maintenance.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/netmond/pkg/device"
	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
)

// BatchResult reports the outcome of a Store call.
type BatchResult struct {
	Stored int
	Errors int
	Total  int
}

// Querier is the subset of Store that the collection coordinator depends
// on, so it can be swapped for a fake in tests without dragging in SQLite.
type Querier interface {
	Store(ctx context.Context, points []device.Point) (BatchResult, error)
}

// MetricReader is the subset of Store that the alert engine depends on: raw
// point queries for rule evaluation and baseline calculation.
type MetricReader interface {
	Query(ctx context.Context, filter QueryFilter) ([]device.Point, error)
}

// Store is the embedded metrics engine. It is safe for concurrent use.
type Store struct {
	cfg      *Config
	db       *sqlx.DB
	log      *logrus.Entry
	pipeline *encodePipeline

	mu           sync.Mutex
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	rollupSignal chan struct{}
}

// Connect opens (creating if necessary) the embedded SQLite database at
// cfg.DatabasePath, applies migrations, and starts background maintenance.
func Connect(cfg *Config, log *logrus.Entry) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, netmonderrors.FailedTo("validate storage configuration", err)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, netmonderrors.FailedTo("create storage directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000", cfg.DatabasePath)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, netmonderrors.DatabaseError("open embedded database", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	var key []byte
	if cfg.EnableEncryption {
		key, err = loadOrCreateKey(cfg.EncryptionKeyPath)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	pipeline, err := newEncodePipeline(cfg, key)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		cfg:          cfg,
		db:           db,
		log:          log,
		pipeline:     pipeline,
		stopCh:       make(chan struct{}),
		rollupSignal: make(chan struct{}, 1),
	}
	s.startMaintenance()
	return s, nil
}

// Store persists points in batches of cfg.BatchSize, in a single transaction
// per batch. A row-level encode failure is counted as an error and skipped
// without aborting the rest of the batch.
func (s *Store) Store(ctx context.Context, points []device.Point) (BatchResult, error) {
	if len(points) == 0 {
		return BatchResult{}, nil
	}

	var result BatchResult
	for i := 0; i < len(points); i += s.cfg.BatchSize {
		end := i + s.cfg.BatchSize
		if end > len(points) {
			end = len(points)
		}
		stored, errs, err := s.storeBatch(ctx, points[i:end])
		if err != nil {
			return result, err
		}
		result.Stored += stored
		result.Errors += errs
	}
	result.Total = len(points)

	if result.Stored > 0 {
		s.triggerRollup()
	}
	return result, nil
}

// triggerRollup asks the maintenance loop to rebuild the current hour's
// rollup off the write path. The signal channel is buffered to 1 and the
// send is non-blocking, so a burst of batches coalesces into a single
// rebuild rather than queuing one per batch.
func (s *Store) triggerRollup() {
	select {
	case s.rollupSignal <- struct{}{}:
	default:
	}
}

func (s *Store) storeBatch(ctx context.Context, points []device.Point) (int, int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, netmonderrors.DatabaseError("begin storage transaction", err)
	}
	defer tx.Rollback()

	const insertSQL = `
		INSERT INTO metrics (
			device_id, device_name, device_kind, family, metric_name,
			value_type, value_data, unit, timestamp,
			compression_type, encryption_level, metadata_json, retention_policy
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	stored, errs := 0, 0
	for _, p := range points {
		raw, err := serializeValue(p.Value)
		if err != nil {
			s.log.WithError(err).Warn("skipping point with unserializable value")
			errs++
			continue
		}

		level := encryptionLevelFor(p.Family)
		encoded, compressionType, appliedLevel, err := s.pipeline.encode(raw, level)
		if err != nil {
			s.log.WithError(err).Warn("skipping point that failed encoding")
			errs++
			continue
		}

		var metadataJSON string
		if len(p.Metadata) > 0 {
			b, err := json.Marshal(p.Metadata)
			if err == nil {
				metadataJSON = string(b)
			}
		}

		_, err = tx.ExecContext(ctx, insertSQL,
			p.DeviceID, p.DeviceName, string(p.DeviceKind), string(p.Family), p.Name,
			string(p.Value.Type), encoded, p.Unit, p.Timestamp.Unix(),
			string(compressionType), string(appliedLevel), metadataJSON, string(retentionPolicyFor(p.Family)),
		)
		if err != nil {
			s.log.WithError(err).Warn("failed to insert point")
			errs++
			continue
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, netmonderrors.DatabaseError("commit storage transaction", err)
	}
	return stored, errs, nil
}

// Close stops background maintenance and closes the underlying database.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	return s.db.Close()
}
