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

package storage

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jordigilh/netmond/pkg/metrics"
	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
)

// RetentionResult reports how many rows a sweep removed under each policy.
type RetentionResult struct {
	DeletedByPolicy map[RetentionPolicy]int64
	TotalDeleted    int64
}

// ApplyRetention deletes rows older than each non-permanent policy's
// horizon, and prunes hourly rollups that have fallen out of every horizon.
func (s *Store) ApplyRetention(ctx context.Context) (RetentionResult, error) {
	result := RetentionResult{DeletedByPolicy: map[RetentionPolicy]int64{}}
	now := time.Now()
	oldestCutoff := now

	for policy, horizon := range retentionHorizons {
		start := time.Now()
		cutoff := now.Add(-horizon)
		if cutoff.Before(oldestCutoff) {
			oldestCutoff = cutoff
		}

		res, err := s.db.ExecContext(ctx, `DELETE FROM metrics WHERE retention_policy = ? AND timestamp < ?`, string(policy), cutoff.Unix())
		if err != nil {
			return result, netmonderrors.DatabaseError("apply retention policy "+string(policy), err)
		}
		deleted, _ := res.RowsAffected()
		if deleted > 0 {
			result.DeletedByPolicy[policy] = deleted
			result.TotalDeleted += deleted
			metrics.RecordRetentionDeleted(string(policy), int(deleted))

			_, _ = s.db.ExecContext(ctx, `
				INSERT INTO retention_log (retention_policy, metrics_deleted, execution_time_ms)
				VALUES (?, ?, ?)
			`, string(policy), deleted, time.Since(start).Milliseconds())
		}
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM metrics_hourly WHERE hour_timestamp < ?`, oldestCutoff.Unix())
	if err != nil {
		return result, netmonderrors.DatabaseError("prune stale hourly rollups", err)
	}

	return result, nil
}

// Statistics summarizes the store's current contents.
type Statistics struct {
	TotalMetrics    int64
	DatabaseSizeMB  float64
	EncryptedCount  int64
	OldestMetric    *time.Time
	NewestMetric    *time.Time
	MetricsByKind   map[string]int64
	MetricsByFamily map[string]int64
}

// Statistics reports point counts, database size, and breakdown by kind and
// family.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{MetricsByKind: map[string]int64{}, MetricsByFamily: map[string]int64{}}

	if err := s.db.GetContext(ctx, &stats.TotalMetrics, `SELECT COUNT(*) FROM metrics`); err != nil {
		return stats, netmonderrors.DatabaseError("count metrics", err)
	}
	if err := s.db.GetContext(ctx, &stats.EncryptedCount, `SELECT COUNT(*) FROM metrics WHERE encryption_level != 'none'`); err != nil {
		return stats, netmonderrors.DatabaseError("count encrypted metrics", err)
	}

	var oldest, newest *int64
	_ = s.db.GetContext(ctx, &oldest, `SELECT MIN(timestamp) FROM metrics`)
	_ = s.db.GetContext(ctx, &newest, `SELECT MAX(timestamp) FROM metrics`)
	if oldest != nil {
		t := time.Unix(*oldest, 0).UTC()
		stats.OldestMetric = &t
	}
	if newest != nil {
		t := time.Unix(*newest, 0).UTC()
		stats.NewestMetric = &t
	}

	type countRow struct {
		Key   string `db:"k"`
		Count int64  `db:"c"`
	}

	var byKind []countRow
	if err := s.db.SelectContext(ctx, &byKind, `SELECT device_kind AS k, COUNT(*) AS c FROM metrics GROUP BY device_kind`); err == nil {
		for _, r := range byKind {
			stats.MetricsByKind[r.Key] = r.Count
		}
	}

	var byFamily []countRow
	if err := s.db.SelectContext(ctx, &byFamily, `SELECT family AS k, COUNT(*) AS c FROM metrics GROUP BY family`); err == nil {
		for _, r := range byFamily {
			stats.MetricsByFamily[r.Key] = r.Count
		}
	}

	if fi, err := os.Stat(s.cfg.DatabasePath); err == nil {
		stats.DatabaseSizeMB = float64(fi.Size()) / (1024 * 1024)
	}

	return stats, nil
}

// BackupResult reports the outcome of a Backup call.
type BackupResult struct {
	Path       string
	SizeBytes  int64
	Compressed bool
}

// Backup copies the live database file to cfg.BackupDir, gzip-compressing
// it when compression is enabled. SQLite's own backup API isn't exposed
// through database/sql, so this copies the file directly; a write that lands
// mid-copy can leave the backup inconsistent. It runs from the maintenance
// goroutine's backup ticker and from the admin API's backup endpoint.
func (s *Store) Backup(ctx context.Context) (BackupResult, error) {
	if err := os.MkdirAll(s.cfg.BackupDir, 0o755); err != nil {
		return BackupResult{}, netmonderrors.FailedTo("create backup directory", err)
	}

	timestamp := timestampSuffix()
	destPath := filepath.Join(s.cfg.BackupDir, fmt.Sprintf("metrics_backup_%s.db", timestamp))

	if err := s.copyDatabaseFile(destPath); err != nil {
		return BackupResult{}, err
	}

	finalPath := destPath
	if s.cfg.EnableCompression {
		compressedPath := destPath + ".gz"
		if err := gzipFile(destPath, compressedPath); err != nil {
			return BackupResult{}, err
		}
		_ = os.Remove(destPath)
		finalPath = compressedPath
	}

	fi, err := os.Stat(finalPath)
	if err != nil {
		return BackupResult{}, netmonderrors.FailedTo("stat backup file", err)
	}

	return BackupResult{Path: finalPath, SizeBytes: fi.Size(), Compressed: s.cfg.EnableCompression}, nil
}

func (s *Store) copyDatabaseFile(destPath string) error {
	src, err := os.Open(s.cfg.DatabasePath)
	if err != nil {
		return netmonderrors.FailedTo("open database file for backup", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return netmonderrors.FailedTo("create backup file", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return netmonderrors.FailedTo("copy database file", err)
	}
	return nil
}

func gzipFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return netmonderrors.FailedTo("open backup file for compression", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return netmonderrors.FailedTo("create compressed backup file", err)
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		return netmonderrors.FailedTo("write compressed backup", err)
	}
	return gz.Close()
}

// OptimizeResult reports which maintenance operations ran and how long.
type OptimizeResult struct {
	Operations []string
	Duration   time.Duration
}

// Optimize analyzes, reindexes, and vacuums the database to reclaim space
// and refresh the query planner's statistics.
func (s *Store) Optimize(ctx context.Context) (OptimizeResult, error) {
	start := time.Now()
	ops := []string{"ANALYZE", "REINDEX", "PRAGMA optimize", "VACUUM"}

	for _, op := range ops {
		if _, err := s.db.ExecContext(ctx, op); err != nil {
			return OptimizeResult{}, netmonderrors.DatabaseError("run "+op, err)
		}
	}

	return OptimizeResult{Operations: ops, Duration: time.Since(start)}, nil
}

func timestampSuffix() string {
	return time.Now().UTC().Format("20060102_150405")
}

// startMaintenance launches the background retention/rollup/backup loop.
func (s *Store) startMaintenance() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		retentionTicker := time.NewTicker(s.cfg.RetentionSweepPeriod)
		rollupTicker := time.NewTicker(s.cfg.RollupPeriod)
		backupTicker := time.NewTicker(s.cfg.BackupPeriod)
		defer retentionTicker.Stop()
		defer rollupTicker.Stop()
		defer backupTicker.Stop()

		ctx := context.Background()

		for {
			select {
			case <-s.stopCh:
				return
			case <-retentionTicker.C:
				if _, err := s.ApplyRetention(ctx); err != nil {
					s.log.WithError(err).Error("retention sweep failed")
				}
			case <-rollupTicker.C:
				if err := s.rebuildHourlyRollups(ctx); err != nil {
					s.log.WithError(err).Error("hourly rollup failed")
				}
			case <-s.rollupSignal:
				// A write batch landed in the current hour bucket; rebuild
				// it now instead of waiting up to RollupPeriod for the
				// ticker, so AggregatedQuery reflects recent writes.
				if err := s.rebuildHourlyRollups(ctx); err != nil {
					s.log.WithError(err).Error("write-triggered hourly rollup failed")
				}
			case <-backupTicker.C:
				if _, err := s.Backup(ctx); err != nil {
					s.log.WithError(err).Error("database backup failed")
				}
			}
		}
	}()
}
