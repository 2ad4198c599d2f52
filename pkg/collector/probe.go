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
	"net"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/jordigilh/netmond/pkg/device"
)

// commonPorts is the fixed small port set the performance probe checks.
var commonPorts = []int{22, 23, 53, 80, 443, 8080}

var pingLatencyPattern = regexp.MustCompile(`time[=<]([0-9.]+)`)

// collectConnectivity pings the device and emits a reachable boolean plus,
// when reachable, a ping_latency point.
func collectConnectivity(ctx context.Context, desc device.Descriptor) []device.Point {
	now := time.Now()
	reachable, latencyMs := ping(ctx, desc.Address)

	points := []device.Point{
		device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyConnectivity, "reachable", device.BoolValue(reachable), "boolean", now),
	}
	if reachable && latencyMs >= 0 {
		points = append(points, device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyLatency, "ping_latency", device.FloatValue(latencyMs), "ms", now))
	}
	return points
}

// ping runs the system ping binary, matching the original monitoring
// agent's approach of shelling out rather than crafting raw ICMP packets
// (which requires elevated privileges this daemon should not need).
func ping(ctx context.Context, address string) (reachable bool, latencyMs float64) {
	cmd := exec.CommandContext(ctx, "ping", "-c", "3", "-W", "3", address)
	out, err := cmd.Output()
	if err != nil {
		return false, -1
	}

	match := pingLatencyPattern.FindSubmatch(out)
	if match == nil {
		return true, -1
	}
	latencyMs, parseErr := strconv.ParseFloat(string(match[1]), 64)
	if parseErr != nil {
		return true, -1
	}
	return true, latencyMs
}

// collectPerformance probes commonPorts and emits an open_ports point.
// When skipScans is set (policy-flagged device), the active scan is
// skipped entirely and no performance point is emitted.
func collectPerformance(ctx context.Context, desc device.Descriptor, skipScans bool) []device.Point {
	if skipScans {
		return nil
	}

	now := time.Now()
	var open []int
	for _, port := range commonPorts {
		if portOpen(ctx, desc.Address, port) {
			open = append(open, port)
		}
	}

	val, err := device.JSONValue(open)
	if err != nil {
		return nil
	}
	point := device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilyPerformance, "open_ports", val, "list", now).
		WithMetadata("port_count", strconv.Itoa(len(open)))
	return []device.Point{point}
}

func portOpen(ctx context.Context, address string, port int) bool {
	dialer := net.Dialer{Timeout: time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
