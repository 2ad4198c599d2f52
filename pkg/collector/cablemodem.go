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
	"time"

	"github.com/jordigilh/netmond/pkg/device"
	sharedhttp "github.com/jordigilh/netmond/pkg/shared/http"
)

var (
	downstreamPowerPattern = regexp.MustCompile(`(?i)power level.*?(-?[0-9.]+)\s*dBmV`)
	snrPattern             = regexp.MustCompile(`(?i)SNR.*?([0-9.]+)\s*dB`)
	upstreamPowerPattern   = regexp.MustCompile(`(?i)upstream.*?power.*?([0-9.]+)\s*dBmV`)
)

// cableModemCollector scrapes the fixed HTML status page a DOCSIS modem's
// embedded web server serves, extracting downstream/upstream power and SNR.
type cableModemCollector struct {
	base   baseCollector
	client *http.Client
}

func (c *cableModemCollector) httpClient() *http.Client {
	if c.client == nil {
		c.client = sharedhttp.NewClient(sharedhttp.ScraperClientConfig())
	}
	return c.client
}

func (c *cableModemCollector) Collect(ctx context.Context) ([]device.Point, error) {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	desc := c.base.desc
	var points []device.Point
	points = append(points, collectConnectivity(ctx, desc)...)
	if desc.FamilyEnabled(device.FamilyPerformance) {
		points = append(points, collectPerformance(ctx, desc, desc.SkipPortScans)...)
	}

	if desc.FamilyEnabled(device.FamilyDocsis) {
		docsisPoints, err := c.collectDocsis(ctx)
		if err != nil {
			points = append(points, errorPoint(desc, device.FamilyDocsis, err))
		} else {
			points = append(points, docsisPoints...)
		}
	}

	return points, nil
}

func (c *cableModemCollector) collectDocsis(ctx context.Context) ([]device.Point, error) {
	desc := c.base.desc
	url := fmt.Sprintf("http://%s/cgi-bin/status_cgi", desc.Address)

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
		return nil, fmt.Errorf("modem status page returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var points []device.Point

	// Each field is extracted independently; a failure to match one
	// field drops only that field, not the whole collection (spec §4.B).
	if m := downstreamPowerPattern.FindSubmatch(body); m != nil {
		if v, perr := strconv.ParseFloat(string(m[1]), 64); perr == nil {
			points = append(points, device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyDocsis, "downstream_power", device.FloatValue(v), "dBmV", now).
				WithMetadata("direction", "downstream"))
		}
	}
	if m := snrPattern.FindSubmatch(body); m != nil {
		if v, perr := strconv.ParseFloat(string(m[1]), 64); perr == nil {
			points = append(points, device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyDocsis, "snr", device.FloatValue(v), "dB", now))
		}
	}
	if m := upstreamPowerPattern.FindSubmatch(body); m != nil {
		if v, perr := strconv.ParseFloat(string(m[1]), 64); perr == nil {
			points = append(points, device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyDocsis, "upstream_power", device.FloatValue(v), "dBmV", now).
				WithMetadata("direction", "upstream"))
		}
	}

	return points, nil
}
