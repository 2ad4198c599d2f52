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

package alert

import (
	"time"

	"github.com/jordigilh/netmond/pkg/device"
	sharedmath "github.com/jordigilh/netmond/pkg/shared/math"
)

// baselineKey identifies the (device, family, metric) series a baseline
// describes.
func baselineKey(deviceID string, family device.Family, metricName string) string {
	return deviceID + "|" + string(family) + "|" + metricName
}

// Baseline holds the statistical and temporal profile of one metric series,
// rebuilt hourly from the last 7 days of raw points.
type Baseline struct {
	DeviceID   string
	MetricName string

	Mean       float64
	StdDev     float64
	Min        float64
	Max        float64
	P95        float64
	P99        float64

	// HourlyPattern maps hour-of-day (0-23) to the average value observed
	// in that hour.
	HourlyPattern map[int]float64
	// DailyPattern maps day-of-week (time.Weekday) to the average value
	// observed on that day.
	DailyPattern map[int]float64

	SampleCount int
	Confidence  float64
	BuiltAt     time.Time
}

const (
	minPointsForBaseline  = 10
	minNumericForBaseline = 5
)

// buildBaseline computes a Baseline from a time-ordered series of (value,
// timestamp) samples. Returns false if there isn't enough data.
func buildBaseline(deviceID, metricName string, samples []numericSample, now time.Time) (Baseline, bool) {
	if len(samples) < minPointsForBaseline {
		return Baseline{}, false
	}

	values := make([]float64, 0, len(samples))
	hourBuckets := make(map[int][]float64)
	dayBuckets := make(map[int][]float64)
	for _, s := range samples {
		values = append(values, s.value)
		hour := s.timestamp.Hour()
		day := int(s.timestamp.Weekday())
		hourBuckets[hour] = append(hourBuckets[hour], s.value)
		dayBuckets[day] = append(dayBuckets[day], s.value)
	}

	if len(values) < minNumericForBaseline {
		return Baseline{}, false
	}

	hourly := make(map[int]float64, len(hourBuckets))
	for h, vs := range hourBuckets {
		hourly[h] = sharedmath.Mean(vs)
	}
	daily := make(map[int]float64, len(dayBuckets))
	for d, vs := range dayBuckets {
		daily[d] = sharedmath.Mean(vs)
	}

	count := len(values)
	confidence := float64(count) / 100
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Baseline{
		DeviceID:      deviceID,
		MetricName:    metricName,
		Mean:          sharedmath.Mean(values),
		StdDev:        sharedmath.SampleStandardDeviation(values),
		Min:           sharedmath.Min(values),
		Max:           sharedmath.Max(values),
		P95:           sharedmath.Percentile(values, 95),
		P99:           sharedmath.Percentile(values, 99),
		HourlyPattern: hourly,
		DailyPattern:  daily,
		SampleCount:   count,
		Confidence:    confidence,
		BuiltAt:       now,
	}, true
}

type numericSample struct {
	value     float64
	timestamp time.Time
}
