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
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/jordigilh/netmond/pkg/credentials"
	"github.com/jordigilh/netmond/pkg/device"
)

const sshCommandTimeout = 10 * time.Second

type sshCommand struct {
	name string
	cmd  string
	unit string
}

var linuxServerCommands = []sshCommand{
	{name: "cpu_percent", cmd: `top -bn1 | grep 'Cpu(s)' | awk '{print $2}' | cut -d'%' -f1`, unit: "percent"},
	{name: "memory_percent", cmd: `free | grep Mem | awk '{printf "%.1f", $3/$2 * 100.0}'`, unit: "percent"},
	{name: "disk_percent", cmd: `df -h / | awk 'NR==2{printf "%s", $5}' | cut -d'%' -f1`, unit: "percent"},
	{name: "load_average_1m", cmd: `uptime | awk -F'load average:' '{print $2}' | awk '{print $1}' | cut -d',' -f1`, unit: "load"},
	{name: "container_count", cmd: `docker ps --format 'table {{.Names}}' | wc -l`, unit: "count"},
}

// linuxServerCollector runs a fixed command set over an authenticated SSH
// session. Each command has an independent timeout; one failure does not
// abort the others (spec §4.B).
type linuxServerCollector struct {
	base baseCollector
}

func (c *linuxServerCollector) Collect(ctx context.Context) ([]device.Point, error) {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	desc := c.base.desc
	var points []device.Point
	points = append(points, collectConnectivity(ctx, desc)...)
	if desc.FamilyEnabled(device.FamilyPerformance) {
		points = append(points, collectPerformance(ctx, desc, desc.SkipPortScans)...)
	}

	if desc.FamilyEnabled(device.FamilySystemResources) {
		points = append(points, c.collectSystemResources(ctx)...)
	}

	return points, nil
}

func (c *linuxServerCollector) collectSystemResources(ctx context.Context) []device.Point {
	desc := c.base.desc
	cred, ok := c.base.credential(ctx)
	if !ok {
		return []device.Point{errorPoint(desc, device.FamilySystemResources, fmt.Errorf("no credential configured for ssh session"))}
	}

	client, err := dialSSH(ctx, desc.Address, cred)
	if err != nil {
		return []device.Point{errorPoint(desc, device.FamilySystemResources, err)}
	}
	defer client.Close()

	var points []device.Point
	for _, command := range linuxServerCommands {
		point, err := c.runCommand(client, command)
		if err != nil {
			points = append(points, errorPoint(desc, device.FamilySystemResources, fmt.Errorf("%s: %w", command.name, err)))
			continue
		}
		points = append(points, point)
	}
	return points
}

func (c *linuxServerCollector) runCommand(client *ssh.Client, command sshCommand) (device.Point, error) {
	desc := c.base.desc

	session, err := client.NewSession()
	if err != nil {
		return device.Point{}, err
	}
	defer session.Close()

	done := make(chan struct{})
	var out []byte
	var runErr error
	go func() {
		out, runErr = session.Output(command.cmd)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(sshCommandTimeout):
		_ = session.Close()
		return device.Point{}, fmt.Errorf("command timed out after %s", sshCommandTimeout)
	}
	if runErr != nil {
		return device.Point{}, runErr
	}

	raw := strings.TrimSpace(string(out))
	if command.name == "container_count" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return device.Point{}, err
		}
		count := n - 1 // subtract docker ps's header line
		if count < 0 {
			count = 0
		}
		return device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilySystemResources, command.name, device.IntValue(int64(count)), command.unit, time.Now()), nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return device.Point{}, err
	}
	return device.NewPoint(desc.ID, desc.Name, desc.Kind, device.FamilySystemResources, command.name, device.FloatValue(value), command.unit, time.Now()), nil
}

func dialSSH(ctx context.Context, address string, cred credentials.Credential) (*ssh.Client, error) {
	username := cred.Username
	if username == "" {
		username = "root"
	}

	var authMethods []ssh.AuthMethod
	if cred.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(cred.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("parse ssh private key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}
	if cred.Secret != "" {
		authMethods = append(authMethods, ssh.Password(cred.Secret))
	}
	if len(authMethods) == 0 {
		return nil, fmt.Errorf("credential has neither a private key nor a password")
	}

	config := &ssh.ClientConfig{
		User:            username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // home-network devices rarely publish known_hosts; acceptable for telemetry reads
		Timeout:         10 * time.Second,
	}

	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, "22"))
	if err != nil {
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, net.JoinHostPort(address, "22"), config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}
