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
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jordigilh/netmond/pkg/device"
)

// metricRow mirrors the metrics table, the row shape sqlx scans into and
// builds from before/after the encode/decode pipeline is applied.
type metricRow struct {
	ID              int64  `db:"id"`
	DeviceID        string `db:"device_id"`
	DeviceName      string `db:"device_name"`
	DeviceKind      string `db:"device_kind"`
	Family          string `db:"family"`
	MetricName      string `db:"metric_name"`
	ValueType       string `db:"value_type"`
	ValueData       []byte `db:"value_data"`
	Unit            string `db:"unit"`
	Timestamp       int64  `db:"timestamp"`
	CompressionType string `db:"compression_type"`
	EncryptionLevel string `db:"encryption_level"`
	MetadataJSON    string `db:"metadata_json"`
	RetentionPolicy string `db:"retention_policy"`
}

func serializeValue(v device.Value) ([]byte, error) {
	switch v.Type {
	case device.ValueTypeInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case device.ValueTypeFloat:
		return []byte(strconv.FormatFloat(v.Float, 'g', -1, 64)), nil
	case device.ValueTypeBool:
		return []byte(strconv.FormatBool(v.Bool)), nil
	case device.ValueTypeString:
		return []byte(v.Str), nil
	default:
		return v.JSONRaw, nil
	}
}

func deserializeValue(valueType string, raw []byte) (device.Value, error) {
	s := string(raw)
	switch device.ValueType(valueType) {
	case device.ValueTypeInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return device.Value{}, err
		}
		return device.IntValue(n), nil
	case device.ValueTypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return device.Value{}, err
		}
		return device.FloatValue(f), nil
	case device.ValueTypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return device.Value{}, err
		}
		return device.BoolValue(b), nil
	case device.ValueTypeString:
		return device.StringValue(s), nil
	default:
		if !json.Valid(raw) {
			return device.Value{}, fmt.Errorf("stored JSON value is not valid JSON")
		}
		return device.Value{Type: device.ValueTypeJSON, JSONRaw: raw}, nil
	}
}

func (r *metricRow) toPoint(p *encodePipeline) (device.Point, error) {
	raw, err := p.decode(r.ValueData, CompressionType(r.CompressionType), EncryptionLevel(r.EncryptionLevel))
	if err != nil {
		return device.Point{}, err
	}
	value, err := deserializeValue(r.ValueType, raw)
	if err != nil {
		return device.Point{}, err
	}

	var metadata map[string]string
	if r.MetadataJSON != "" {
		_ = json.Unmarshal([]byte(r.MetadataJSON), &metadata)
	}

	return device.Point{
		DeviceID:   r.DeviceID,
		DeviceName: r.DeviceName,
		DeviceKind: device.Kind(r.DeviceKind),
		Family:     device.Family(r.Family),
		Name:       r.MetricName,
		Value:      value,
		Unit:       r.Unit,
		Timestamp:  time.Unix(r.Timestamp, 0).UTC(),
		Metadata:   metadata,
	}, nil
}
