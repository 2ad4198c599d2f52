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

package storage

import (
	"time"

	"github.com/jordigilh/netmond/pkg/device"
)

// RetentionPolicy names a data-retention horizon. PolicyPermanent rows are
// never swept.
type RetentionPolicy string

const (
	PolicyRealtime  RetentionPolicy = "realtime"
	PolicyShort     RetentionPolicy = "short"
	PolicyMedium    RetentionPolicy = "medium"
	PolicyLong      RetentionPolicy = "long"
	PolicyArchive   RetentionPolicy = "archive"
	PolicyPermanent RetentionPolicy = "permanent"
)

// retentionHorizons maps each non-permanent policy to its sweep cutoff age.
var retentionHorizons = map[RetentionPolicy]time.Duration{
	PolicyRealtime: time.Hour,
	PolicyShort:    24 * time.Hour,
	PolicyMedium:   7 * 24 * time.Hour,
	PolicyLong:     30 * 24 * time.Hour,
	PolicyArchive:  365 * 24 * time.Hour,
}

// familyRetention assigns a default retention policy to each metric family.
var familyRetention = map[device.Family]RetentionPolicy{
	device.FamilyConnectivity: PolicyMedium,
	device.FamilyPerformance:  PolicyMedium,
	device.FamilyDocsis:       PolicyLong,
	device.FamilyWifiMesh:         PolicyMedium,
	device.FamilySystemResources:  PolicyLong,
	device.FamilySecurity:         PolicyArchive,
	device.FamilyBandwidth:    PolicyLong,
	device.FamilyLatency:      PolicyMedium,
}

func retentionPolicyFor(family device.Family) RetentionPolicy {
	if p, ok := familyRetention[family]; ok {
		return p
	}
	return PolicyMedium
}

// EncryptionLevel tags how defensively a stored value is protected.
type EncryptionLevel string

const (
	EncryptionNone     EncryptionLevel = "none"
	EncryptionBasic    EncryptionLevel = "basic"
	EncryptionAdvanced EncryptionLevel = "advanced"
	EncryptionSensitive EncryptionLevel = "sensitive"
)

// familyEncryption assigns a default encryption level to each metric family,
// mirroring the policy that security and system-resource data warrants the
// strongest protection while connectivity/performance data needs only basic
// cover.
var familyEncryption = map[device.Family]EncryptionLevel{
	device.FamilySecurity:        EncryptionSensitive,
	device.FamilySystemResources: EncryptionSensitive,
	device.FamilyDocsis:       EncryptionAdvanced,
	device.FamilyBandwidth:    EncryptionAdvanced,
	device.FamilyPerformance:  EncryptionBasic,
	device.FamilyConnectivity: EncryptionBasic,
}

func encryptionLevelFor(family device.Family) EncryptionLevel {
	if l, ok := familyEncryption[family]; ok {
		return l
	}
	return EncryptionNone
}
