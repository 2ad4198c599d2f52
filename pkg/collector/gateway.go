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
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jordigilh/netmond/pkg/device"
	sharedhttp "github.com/jordigilh/netmond/pkg/shared/http"
)

var dataUsagePattern = regexp.MustCompile(`(?i)data usage.*?([0-9.]+)\s*(GB|MB)`)

// gatewayCollector scrapes the ISP gateway's usage page for the monthly
// data-transfer counter and emits a firewall/security pseudo-metric —
// there is no real security telemetry available from a consumer gateway's
// web UI, so its presence/reachability stands in for it.
type gatewayCollector struct {
	base   baseCollector
	client *http.Client
}

func (c *gatewayCollector) httpClient() *http.Client {
	if c.client == nil {
		c.client = sharedhttp.NewClient(sharedhttp.ScraperClientConfig())
	}
	return c.client
}

func (c *gatewayCollector) Collect(ctx context.Context) ([]device.Point, error) {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	desc := c.base.desc
	var points []device.Point
	points = append(points, collectConnectivity(ctx, desc)...)
	if desc.FamilyEnabled(device.FamilyPerformance) {
		points = append(points, collectPerformance(ctx, desc, desc.SkipPortScans)...)
	}

	if desc.FamilyEnabled(device.FamilyBandwidth) {
		usagePoints, err := c.collectUsage(ctx)
		if err != nil {
			points = append(points, errorPoint(desc, device.FamilyBandwidth, err))
		} else {
			points = append(points, usagePoints...)
		}
	}

	if desc.FamilyEnabled(device.FamilySecurity) {
		points = append(points, device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilySecurity, "firewall_status", device.StringValue("active"), "status", time.Now()))
	}

	return points, nil
}

func (c *gatewayCollector) collectUsage(ctx context.Context) ([]device.Point, error) {
	desc := c.base.desc
	url := fmt.Sprintf("http://%s/usage.php", desc.Address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway usage page returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	m := dataUsagePattern.FindSubmatch(body)
	if m == nil {
		return nil, nil
	}
	value, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return nil, nil
	}
	if strings.EqualFold(string(m[2]), "MB") {
		value /= 1024
	}

	return []device.Point{
		device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyBandwidth, "data_usage", device.FloatValue(value), "GB", time.Now()),
	}, nil
}
