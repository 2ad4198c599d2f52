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

package config

import (
	"time"

	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
	"github.com/jordigilh/netmond/pkg/device"
)

// DeviceConfig is the YAML-facing shape of a monitored device. Durations
// are expressed in whole seconds since that is friendlier to hand-edit
// than Go duration strings for the operators this daemon targets.
type DeviceConfig struct {
	ID              string   `yaml:"id" validate:"required"`
	Name            string   `yaml:"name" validate:"required"`
	Kind            string   `yaml:"kind" validate:"required"`
	Address         string   `yaml:"address" validate:"required"`
	CredentialRef   string   `yaml:"credential_ref"`
	PollIntervalSec int      `yaml:"poll_interval_sec" validate:"gt=0"`
	EnabledFamilies []string `yaml:"enabled_families"`
	SkipPortScans   bool     `yaml:"skip_port_scans"`
}

// ToDescriptor converts a DeviceConfig into the device.Descriptor the
// coordinator and collectors operate on.
func (d DeviceConfig) ToDescriptor() device.Descriptor {
	families := make([]device.Family, 0, len(d.EnabledFamilies))
	for _, f := range d.EnabledFamilies {
		families = append(families, device.Family(f))
	}
	return device.Descriptor{
		ID:              d.ID,
		Name:            d.Name,
		Kind:            device.Kind(d.Kind),
		Address:         d.Address,
		CredentialRef:   d.CredentialRef,
		PollInterval:    time.Duration(d.PollIntervalSec) * time.Second,
		EnabledFamilies: families,
		SkipPortScans:   d.SkipPortScans,
	}
}

// validate checks the tagged fields and confirms the descriptor it would
// produce satisfies device.Descriptor's own invariants.
func (d DeviceConfig) validate() error {
	if err := validate.Struct(d); err != nil {
		return err
	}
	if err := d.ToDescriptor().Validate(); err != nil {
		return netmonderrors.Wrapf(err, "device %q", d.ID)
	}
	return nil
}
