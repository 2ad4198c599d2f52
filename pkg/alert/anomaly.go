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
	"math"
	"time"
)

const defaultSensitivity = 2.0

// predictiveModel flags anomalous values against a Baseline: a plain
// z-score test, sharpened by the hour-of-day and day-of-week profiles when
// they're available. The largest of the three z-scores wins.
type predictiveModel struct {
	sensitivity float64
}

func newPredictiveModel(sensitivity float64) *predictiveModel {
	if sensitivity <= 0 {
		sensitivity = defaultSensitivity
	}
	return &predictiveModel{sensitivity: sensitivity}
}

// isAnomaly reports whether value is anomalous against baseline as of at,
// along with the winning z-score.
func (m *predictiveModel) isAnomaly(value float64, baseline Baseline, at time.Time) (bool, float64) {
	if baseline.StdDev == 0 {
		return false, 0
	}

	z := math.Abs(value-baseline.Mean) / baseline.StdDev
	anomaly := z > m.sensitivity

	if expected, ok := baseline.HourlyPattern[at.Hour()]; ok {
		hourlyZ := math.Abs(value-expected) / (baseline.StdDev + 0.001)
		if hourlyZ > m.sensitivity {
			anomaly = true
		}
		if hourlyZ > z {
			z = hourlyZ
		}
	}

	if expected, ok := baseline.DailyPattern[int(at.Weekday())]; ok {
		dailyZ := math.Abs(value-expected) / (baseline.StdDev + 0.001)
		if dailyZ > m.sensitivity {
			anomaly = true
		}
		if dailyZ > z {
			z = dailyZ
		}
	}

	return anomaly, z
}
