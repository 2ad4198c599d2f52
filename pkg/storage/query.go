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
	"fmt"
	"strings"
	"time"

	"github.com/jordigilh/netmond/pkg/device"
	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
)

// QueryFilter selects which stored points to return. Zero-value fields are
// unfiltered; an empty OrderBy defaults to "timestamp" descending.
type QueryFilter struct {
	DeviceIDs   []string
	DeviceKinds []device.Kind
	Families    []device.Family
	MetricNames []string
	Start       time.Time
	End         time.Time
	Limit       int
	OrderBy     string
	Ascending   bool
}

func (f QueryFilter) buildSQL() (string, []interface{}) {
	base := `SELECT device_id, device_name, device_kind, family, metric_name,
		value_type, value_data, unit, timestamp, compression_type,
		encryption_level, metadata_json, retention_policy FROM metrics`

	var clauses []string
	var args []interface{}

	if len(f.DeviceIDs) > 0 {
		clauses = append(clauses, "device_id IN ("+placeholders(len(f.DeviceIDs))+")")
		for _, id := range f.DeviceIDs {
			args = append(args, id)
		}
	}
	if len(f.DeviceKinds) > 0 {
		clauses = append(clauses, "device_kind IN ("+placeholders(len(f.DeviceKinds))+")")
		for _, k := range f.DeviceKinds {
			args = append(args, string(k))
		}
	}
	if len(f.Families) > 0 {
		clauses = append(clauses, "family IN ("+placeholders(len(f.Families))+")")
		for _, fam := range f.Families {
			args = append(args, string(fam))
		}
	}
	if len(f.MetricNames) > 0 {
		clauses = append(clauses, "metric_name IN ("+placeholders(len(f.MetricNames))+")")
		for _, n := range f.MetricNames {
			args = append(args, n)
		}
	}
	if !f.Start.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.Start.Unix())
	}
	if !f.End.IsZero() {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, f.End.Unix())
	}

	if len(clauses) > 0 {
		base += " WHERE " + strings.Join(clauses, " AND ")
	}

	orderBy := f.OrderBy
	if orderBy == "" {
		orderBy = "timestamp"
	}
	direction := "DESC"
	if f.Ascending {
		direction = "ASC"
	}
	base += fmt.Sprintf(" ORDER BY %s %s", orderBy, direction)

	if f.Limit > 0 {
		base += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return base, args
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return strings.Join(ph, ",")
}

// Query returns stored points matching filter, newest first unless
// filter.Ascending is set. Rows that fail to decode are skipped and logged,
// not returned as an error, so one corrupted row cannot fail a whole query.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]device.Point, error) {
	sqlStr, args := filter.buildSQL()

	var rows []metricRow
	if err := s.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, netmonderrors.DatabaseError("query metrics", err)
	}

	points := make([]device.Point, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toPoint(s.pipeline)
		if err != nil {
			s.log.WithError(err).Warn("skipping undecodable stored row")
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

// AggregatedPoint is one hourly rollup bucket.
type AggregatedPoint struct {
	Timestamp time.Time
	Min       float64
	Max       float64
	Avg       float64
	Count     int64
	Sum       float64
}

// AggregatedQuery returns hourly rollups for one device/family/metric since
// a given lookback window.
func (s *Store) AggregatedQuery(ctx context.Context, deviceID string, family device.Family, metricName string, since time.Duration) ([]AggregatedPoint, error) {
	cutoff := time.Now().Add(-since).Unix()

	type hourlyRow struct {
		HourTimestamp int64   `db:"hour_timestamp"`
		MinValue      float64 `db:"min_value"`
		MaxValue      float64 `db:"max_value"`
		AvgValue      float64 `db:"avg_value"`
		CountValue    int64   `db:"count_value"`
		SumValue      float64 `db:"sum_value"`
	}

	var rows []hourlyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT hour_timestamp, min_value, max_value, avg_value, count_value, sum_value
		FROM metrics_hourly
		WHERE device_id = ? AND family = ? AND metric_name = ? AND hour_timestamp >= ?
		ORDER BY hour_timestamp ASC
	`, deviceID, string(family), metricName, cutoff)
	if err != nil {
		return nil, netmonderrors.DatabaseError("query hourly rollups", err)
	}

	out := make([]AggregatedPoint, len(rows))
	for i, r := range rows {
		out[i] = AggregatedPoint{
			Timestamp: time.Unix(r.HourTimestamp, 0).UTC(),
			Min:       r.MinValue,
			Max:       r.MaxValue,
			Avg:       r.AvgValue,
			Count:     r.CountValue,
			Sum:       r.SumValue,
		}
	}
	return out, nil
}
