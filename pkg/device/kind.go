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

// Package device holds the shared data model: device descriptors, the
// closed device-kind and metric-family enumerations, and the immutable
// metric point. Every other package depends on this one; it depends on
// nothing else in the module.
package device

// Kind is a closed enumeration of supported device kinds. Stable string
// names are persisted on disk and in configuration; never reorder or reuse.
type Kind string

const (
	KindCableModem     Kind = "cable_modem"
	KindMeshRouter     Kind = "mesh_router"
	KindMeshSatellite  Kind = "mesh_satellite"
	KindGateway        Kind = "gateway"
	KindLinuxServer    Kind = "linux_server"
	KindGeneric        Kind = "generic"
)

// Valid reports whether k is one of the closed set of known device kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCableModem, KindMeshRouter, KindMeshSatellite, KindGateway, KindLinuxServer, KindGeneric:
		return true
	}
	return false
}

// Family is a closed enumeration of metric families.
type Family string

const (
	FamilyConnectivity     Family = "connectivity"
	FamilyPerformance      Family = "performance"
	FamilyLatency          Family = "latency"
	FamilyDocsis           Family = "docsis"
	FamilyWifiMesh         Family = "wifi_mesh"
	FamilyBandwidth        Family = "bandwidth"
	FamilySystemResources  Family = "system_resources"
	FamilySecurity         Family = "security"
)

// Valid reports whether f is one of the closed set of known metric families.
func (f Family) Valid() bool {
	switch f {
	case FamilyConnectivity, FamilyPerformance, FamilyLatency, FamilyDocsis,
		FamilyWifiMesh, FamilyBandwidth, FamilySystemResources, FamilySecurity:
		return true
	}
	return false
}

// AllFamilies returns every known metric family, in stable order.
func AllFamilies() []Family {
	return []Family{
		FamilyConnectivity, FamilyPerformance, FamilyLatency, FamilyDocsis,
		FamilyWifiMesh, FamilyBandwidth, FamilySystemResources, FamilySecurity,
	}
}
