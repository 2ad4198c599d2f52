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

// Package collector implements the per-device-kind metric probes: one
// Collector variant per device.Kind, each producing device.Point values
// within a hard per-invocation deadline.
package collector

import (
	"context"
	"time"

	"github.com/jordigilh/netmond/pkg/credentials"
	"github.com/jordigilh/netmond/pkg/device"
)

// InvocationDeadline bounds every Collect call, regardless of device kind.
const InvocationDeadline = 30 * time.Second

// Version identifies the collector implementation generation, recorded on
// every point's collector_version metadata so a rollup can be traced back
// to the probe logic that produced it.
const Version = "1"

// Collector probes a single device and returns the points it gathered.
// Implementations never return a nil error together with a partial point
// list silently dropped; a partial failure is represented as a
// collection_error point alongside whatever did succeed.
type Collector interface {
	Collect(ctx context.Context) ([]device.Point, error)
}

// New builds the Collector appropriate for desc.Kind.
func New(desc device.Descriptor, resolver CredentialResolver) Collector {
	base := baseCollector{desc: desc, resolver: resolver}
	switch desc.Kind {
	case device.KindCableModem:
		return &cableModemCollector{base: base}
	case device.KindMeshRouter:
		return &meshCollector{base: base, satellite: false}
	case device.KindMeshSatellite:
		return &meshCollector{base: base, satellite: true}
	case device.KindGateway:
		return &gatewayCollector{base: base}
	case device.KindLinuxServer:
		return &linuxServerCollector{base: base}
	default:
		return &genericCollector{base: base}
	}
}

// CredentialResolver is the subset of pkg/credentials.Resolver a collector
// needs: looking up the device's optional credential reference.
type CredentialResolver interface {
	Lookup(ctx context.Context, reference string) (credentials.Credential, error)
}

// baseCollector carries the fields every per-kind collector needs.
type baseCollector struct {
	desc     device.Descriptor
	resolver CredentialResolver
}

func (b baseCollector) credential(ctx context.Context) (credentials.Credential, bool) {
	if b.desc.CredentialRef == "" || b.resolver == nil {
		return credentials.Credential{}, false
	}
	cred, err := b.resolver.Lookup(ctx, b.desc.CredentialRef)
	if err != nil {
		return credentials.Credential{}, false
	}
	return cred, true
}

func withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, InvocationDeadline)
}
