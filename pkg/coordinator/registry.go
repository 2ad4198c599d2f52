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

// Package coordinator schedules per-device collection on a global tick,
// runs a bounded worker pool against the due devices, buffers the
// resulting points in memory, and flushes them to storage in batches.
package coordinator

import (
	"fmt"
	"sync"

	"github.com/jordigilh/netmond/pkg/collector"
	"github.com/jordigilh/netmond/pkg/device"
)

// registeredDevice pairs a descriptor with its collector instance.
type registeredDevice struct {
	desc      device.Descriptor
	collector collector.Collector
}

// registry tracks the set of devices under management. Safe for concurrent use.
type registry struct {
	mu      sync.RWMutex
	devices map[string]*registeredDevice
}

func newRegistry() *registry {
	return &registry{devices: make(map[string]*registeredDevice)}
}

func (r *registry) add(desc device.Descriptor, resolver collector.CredentialResolver) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[desc.ID]; exists {
		return fmt.Errorf("device %s is already registered", desc.ID)
	}
	r.devices[desc.ID] = &registeredDevice{desc: desc, collector: collector.New(desc, resolver)}
	return nil
}

func (r *registry) remove(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[deviceID]; !exists {
		return false
	}
	delete(r.devices, deviceID)
	return true
}

func (r *registry) get(deviceID string) (*registeredDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[deviceID]
	return d, ok
}

func (r *registry) list() []device.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]device.Descriptor, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d.desc)
	}
	return out
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
