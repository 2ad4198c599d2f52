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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jordigilh/netmond/pkg/device"
	sharedhttp "github.com/jordigilh/netmond/pkg/shared/http"
)

type meshStatusResponse struct {
	ConnectedClients []json.RawMessage `json:"connected_devices"`
	MeshStatus       string            `json:"mesh_status"`
	SignalStrength   *float64          `json:"signal_strength"`
	Bandwidth        *struct {
		Utilization float64 `json:"utilization"`
	} `json:"bandwidth"`
}

// meshCollector calls the mesh system's JSON status endpoint. The same
// implementation serves both routers and satellites; satellite instances
// additionally report backhaul RSSI.
type meshCollector struct {
	base      baseCollector
	satellite bool
	client    *http.Client
}

func (c *meshCollector) httpClient() *http.Client {
	if c.client == nil {
		c.client = sharedhttp.NewClient(sharedhttp.StatusAPIClientConfig())
	}
	return c.client
}

func (c *meshCollector) Collect(ctx context.Context) ([]device.Point, error) {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	desc := c.base.desc
	var points []device.Point
	points = append(points, collectConnectivity(ctx, desc)...)
	if desc.FamilyEnabled(device.FamilyPerformance) {
		points = append(points, collectPerformance(ctx, desc, desc.SkipPortScans)...)
	}

	if desc.FamilyEnabled(device.FamilyWifiMesh) {
		meshPoints, err := c.collectMesh(ctx)
		if err != nil {
			points = append(points, errorPoint(desc, device.FamilyWifiMesh, err))
		} else {
			points = append(points, meshPoints...)
		}
	}

	return points, nil
}

func (c *meshCollector) collectMesh(ctx context.Context) ([]device.Point, error) {
	desc := c.base.desc
	url := fmt.Sprintf("http://%s/api/mesh/status", desc.Address)

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
		return nil, fmt.Errorf("mesh status endpoint returned %d", resp.StatusCode)
	}

	var status meshStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}

	now := time.Now()
	var points []device.Point

	points = append(points, device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyWifiMesh, "connected_devices", device.IntValue(int64(len(status.ConnectedClients))), "count", now))

	if status.MeshStatus != "" {
		points = append(points, device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyWifiMesh, "mesh_status", device.StringValue(status.MeshStatus), "status", now))
	}

	if c.satellite && status.SignalStrength != nil {
		points = append(points, device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyWifiMesh, "backhaul_signal", device.FloatValue(*status.SignalStrength), "dBm", now).
			WithMetadata("type", "backhaul"))
	}

	if status.Bandwidth != nil {
		points = append(points, device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyWifiMesh, "bandwidth_utilization", device.FloatValue(status.Bandwidth.Utilization), "percent", now))
	}

	return points, nil
}
