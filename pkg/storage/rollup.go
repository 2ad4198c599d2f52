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
	"context"
	"time"

	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
)

// rebuildHourlyRollups recomputes the metrics_hourly row for the current
// hour bucket from the raw metrics table, full recompute rather than
// incremental so a missed tick never leaves a stale aggregate behind.
func (s *Store) rebuildHourlyRollups(ctx context.Context) error {
	now := time.Now().UTC()
	hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)
	hourTimestamp := hourStart.Unix()

	type bucket struct {
		DeviceID    string `db:"device_id"`
		Family      string `db:"family"`
		MetricName  string `db:"metric_name"`
		ValueType   string `db:"value_type"`
		ValueData   []byte `db:"value_data"`
		Compression string `db:"compression_type"`
		Encryption  string `db:"encryption_level"`
	}

	var rows []bucket
	err := s.db.SelectContext(ctx, &rows, `
		SELECT device_id, family, metric_name, value_type, value_data, compression_type, encryption_level
		FROM metrics
		WHERE timestamp >= ? AND timestamp < ?
	`, hourTimestamp, hourTimestamp+3600)
	if err != nil {
		return netmonderrors.DatabaseError("select rows for hourly rollup", err)
	}

	type key struct {
		deviceID, family, metricName string
	}
	grouped := map[key][]float64{}

	for _, r := range rows {
		raw, err := s.pipeline.decode(r.ValueData, CompressionType(r.Compression), EncryptionLevel(r.Encryption))
		if err != nil {
			continue
		}
		v, err := deserializeValue(r.ValueType, raw)
		if err != nil {
			continue
		}
		f, err := v.AsFloat64()
		if err != nil {
			continue
		}
		k := key{r.DeviceID, r.Family, r.MetricName}
		grouped[k] = append(grouped[k], f)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return netmonderrors.DatabaseError("begin rollup transaction", err)
	}
	defer tx.Rollback()

	for k, values := range grouped {
		if len(values) == 0 {
			continue
		}
		min, max, sum := values[0], values[0], 0.0
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
		avg := sum / float64(len(values))

		_, err := tx.ExecContext(ctx, `
			INSERT INTO metrics_hourly (device_id, family, metric_name, hour_timestamp, min_value, max_value, avg_value, count_value, sum_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(device_id, family, metric_name, hour_timestamp)
			DO UPDATE SET min_value=excluded.min_value, max_value=excluded.max_value,
				avg_value=excluded.avg_value, count_value=excluded.count_value, sum_value=excluded.sum_value
		`, k.deviceID, k.family, k.metricName, hourTimestamp, min, max, avg, int64(len(values)), sum)
		if err != nil {
			return netmonderrors.DatabaseError("upsert hourly rollup", err)
		}
	}

	return tx.Commit()
}
