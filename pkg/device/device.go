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

package device

import "time"

// Descriptor is the static configuration of a monitored device: what it
// is, how to reach it, and which metric families the coordinator should
// poll for it. Descriptors come from configuration, not discovery.
type Descriptor struct {
	ID              string
	Name            string
	Kind            Kind
	Address         string
	CredentialRef   string
	PollInterval    time.Duration
	EnabledFamilies []Family
	SkipPortScans   bool
}

// FamilyEnabled reports whether family is one of d's enabled metric families.
func (d Descriptor) FamilyEnabled(family Family) bool {
	for _, f := range d.EnabledFamilies {
		if f == family {
			return true
		}
	}
	return false
}

// Validate checks the descriptor's invariants: a known kind, a non-empty
// id/name/address, a positive poll interval, and only valid families.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return errDescriptor("id is required")
	}
	if d.Name == "" {
		return errDescriptor("name is required")
	}
	if d.Address == "" {
		return errDescriptor("address is required")
	}
	if !d.Kind.Valid() {
		return errDescriptor("unknown device kind: " + string(d.Kind))
	}
	if d.PollInterval <= 0 {
		return errDescriptor("poll interval must be positive")
	}
	for _, f := range d.EnabledFamilies {
		if !f.Valid() {
			return errDescriptor("unknown metric family: " + string(f))
		}
	}
	return nil
}

type descriptorError string

func (e descriptorError) Error() string { return string(e) }

func errDescriptor(msg string) error { return descriptorError("invalid device descriptor: " + msg) }
