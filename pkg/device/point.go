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

package device

import "time"

// Point is an immutable metric sample. Once handed to the storage engine
// it is never mutated; callers that need a modified copy build a new one.
type Point struct {
	DeviceID   string
	DeviceName string
	DeviceKind Kind
	Family     Family
	Name       string
	Value      Value
	Unit       string
	Timestamp  time.Time
	Metadata   map[string]string
}

// NewPoint constructs a point, defaulting Metadata to a non-nil empty map
// so callers can always index it without a nil check.
func NewPoint(deviceID, deviceName string, kind Kind, family Family, name string, value Value, unit string, ts time.Time) Point {
	return Point{
		DeviceID:   deviceID,
		DeviceName: deviceName,
		DeviceKind: kind,
		Family:     family,
		Name:       name,
		Value:      value,
		Unit:       unit,
		Timestamp:  ts,
		Metadata:   map[string]string{},
	}
}

// WithMetadata returns a copy of p with key=value added to its metadata.
func (p Point) WithMetadata(key, value string) Point {
	m := make(map[string]string, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		m[k] = v
	}
	m[key] = value
	p.Metadata = m
	return p
}

// CollectionErrorPoint builds the synthetic point recorded when a probe
// fails (spec §4.B error policy): failure itself becomes a first-class
// metric rather than an exception swallowed silently.
func CollectionErrorPoint(deviceID, deviceName string, kind Kind, family Family, errKind, errDesc string, ts time.Time) Point {
	return NewPoint(deviceID, deviceName, kind, family, "collection_error", StringValue(errDesc), "", ts).
		WithMetadata("error_kind", errKind)
}
