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

package collector

import (
	"context"

	"github.com/jordigilh/netmond/pkg/device"
)

// genericCollector handles any device kind with no specialized behavior:
// connectivity and performance only.
type genericCollector struct {
	base baseCollector
}

func (c *genericCollector) Collect(ctx context.Context) ([]device.Point, error) {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	desc := c.base.desc
	var points []device.Point
	points = append(points, collectConnectivity(ctx, desc)...)
	if desc.FamilyEnabled(device.FamilyPerformance) {
		points = append(points, collectPerformance(ctx, desc, desc.SkipPortScans)...)
	}
	return points, nil
}
