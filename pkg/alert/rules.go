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

package alert

import (
	"time"

	"github.com/jordigilh/netmond/pkg/device"
)

// DefaultCollectionErrorRule alerts whenever a device collector records a
// collection_error point (see device.CollectionErrorPoint). It has no
// device or family filter, so it applies across the fleet.
func DefaultCollectionErrorRule() Rule {
	return Rule{
		ID:                          "collection-error",
		Name:                        "Collection Error",
		Description:                 "A device collector failed to complete a poll",
		MetricFilter:                []string{"collection_error"},
		Operator:                    OpNotEquals,
		Threshold:                   "",
		Severity:                    SeverityInfo,
		Enabled:                     true,
		EvaluationWindow:            time.Minute,
		ConsecutiveBreachesRequired: 1,
		CooldownMinutes:             5 * time.Minute,
		AutoResolve:                 true,
		AutoResolveMinutes:          10 * time.Minute,
		NotificationChannels:        []ChannelKind{ChannelInAppStream},
	}
}

// HomeNetworkRuleSet returns the rule set a typical home/SMB deployment
// starts with: connectivity, DOCSIS, system, Wi-Fi mesh, security, and
// bandwidth coverage. Operators are expected to tune device filters to
// their own inventory.
func HomeNetworkRuleSet() []Rule {
	return []Rule{
		{
			ID:                          "device-offline",
			Name:                        "Device Offline",
			Description:                 "Device has become unreachable",
			MetricFilter:                []string{"reachable"},
			FamilyFilter:                []device.Family{device.FamilyConnectivity},
			Operator:                    OpEquals,
			Threshold:                   "false",
			Severity:                    SeverityWarning,
			Enabled:                     true,
			EvaluationWindow:            5 * time.Minute,
			ConsecutiveBreachesRequired: 2,
			CooldownMinutes:             15 * time.Minute,
			AutoResolve:                 true,
			AutoResolveMinutes:          30 * time.Minute,
			NotificationChannels:        []ChannelKind{ChannelInAppStream, ChannelWebhook},
		},
		{
			ID:                          "high-latency",
			Name:                        "High Network Latency",
			Description:                 "Ping latency is elevated",
			MetricFilter:                []string{"ping_latency"},
			FamilyFilter:                []device.Family{device.FamilyLatency},
			Operator:                    OpGreaterThan,
			Threshold:                   "100",
			Severity:                    SeverityWarning,
			Enabled:                     true,
			EvaluationWindow:            3 * time.Minute,
			ConsecutiveBreachesRequired: 3,
			CooldownMinutes:             15 * time.Minute,
			AutoResolve:                 true,
			AutoResolveMinutes:          30 * time.Minute,
			NotificationChannels:        []ChannelKind{ChannelInAppStream},
		},
		{
			ID:                          "docsis-low-snr",
			Name:                        "DOCSIS Low SNR",
			Description:                 "Cable modem signal-to-noise ratio is degraded",
			MetricFilter:                []string{"snr"},
			FamilyFilter:                []device.Family{device.FamilyDocsis},
			Operator:                    OpLessThan,
			Threshold:                   "30",
			Severity:                    SeverityCritical,
			Enabled:                     true,
			EvaluationWindow:            5 * time.Minute,
			ConsecutiveBreachesRequired: 2,
			CooldownMinutes:             15 * time.Minute,
			AutoResolve:                 true,
			AutoResolveMinutes:          30 * time.Minute,
			CorrelationGroup:            "docsis-health",
			NotificationChannels:        []ChannelKind{ChannelInAppStream, ChannelWebhook, ChannelEmail},
		},
		{
			ID:                          "docsis-power-anomaly",
			Name:                        "DOCSIS Power Anomaly",
			Description:                 "Cable modem power levels deviate from baseline",
			FamilyFilter:                []device.Family{device.FamilyDocsis},
			Operator:                    OpAnomalyDetection,
			Severity:                    SeverityWarning,
			Enabled:                     true,
			EvaluationWindow:            10 * time.Minute,
			ConsecutiveBreachesRequired: 1,
			CooldownMinutes:             30 * time.Minute,
			AutoResolve:                 true,
			AutoResolveMinutes:          time.Hour,
			CorrelationGroup:            "docsis-health",
			NotificationChannels:        []ChannelKind{ChannelInAppStream},
		},
		{
			ID:                          "high-cpu",
			Name:                        "High CPU Usage",
			Description:                 "CPU usage has been consistently high",
			MetricFilter:                []string{"cpu_usage"},
			FamilyFilter:                []device.Family{device.FamilySystemResources},
			Operator:                    OpGreaterThan,
			Threshold:                   "85",
			Severity:                    SeverityWarning,
			Enabled:                     true,
			EvaluationWindow:            5 * time.Minute,
			ConsecutiveBreachesRequired: 3,
			CooldownMinutes:             15 * time.Minute,
			AutoResolve:                 true,
			AutoResolveMinutes:          30 * time.Minute,
			CorrelationGroup:            "host-resources",
			NotificationChannels:        []ChannelKind{ChannelInAppStream},
		},
		{
			ID:                          "high-memory",
			Name:                        "High Memory Usage",
			Description:                 "Memory usage is critically high",
			MetricFilter:                []string{"memory_usage"},
			FamilyFilter:                []device.Family{device.FamilySystemResources},
			Operator:                    OpGreaterThan,
			Threshold:                   "90",
			Severity:                    SeverityCritical,
			Enabled:                     true,
			EvaluationWindow:            5 * time.Minute,
			ConsecutiveBreachesRequired: 2,
			CooldownMinutes:             15 * time.Minute,
			AutoResolve:                 true,
			AutoResolveMinutes:          30 * time.Minute,
			CorrelationGroup:            "host-resources",
			NotificationChannels:        []ChannelKind{ChannelInAppStream, ChannelEmail},
		},
		{
			ID:                          "low-disk-space",
			Name:                        "Low Disk Space",
			Description:                 "Disk usage is running low",
			MetricFilter:                []string{"disk_usage"},
			FamilyFilter:                []device.Family{device.FamilySystemResources},
			Operator:                    OpGreaterThan,
			Threshold:                   "85",
			Severity:                    SeverityWarning,
			Enabled:                     true,
			EvaluationWindow:            10 * time.Minute,
			ConsecutiveBreachesRequired: 1,
			CooldownMinutes:             time.Hour,
			AutoResolve:                 true,
			AutoResolveMinutes:          2 * time.Hour,
			CorrelationGroup:            "host-resources",
			NotificationChannels:        []ChannelKind{ChannelInAppStream},
		},
		{
			ID:                          "weak-backhaul",
			Name:                        "Weak Mesh Backhaul",
			Description:                 "Mesh satellite backhaul signal is weak",
			MetricFilter:                []string{"backhaul_signal"},
			FamilyFilter:                []device.Family{device.FamilyWifiMesh},
			Operator:                    OpLessThan,
			Threshold:                   "-70",
			Severity:                    SeverityWarning,
			Enabled:                     true,
			EvaluationWindow:            5 * time.Minute,
			ConsecutiveBreachesRequired: 3,
			CooldownMinutes:             15 * time.Minute,
			AutoResolve:                 true,
			AutoResolveMinutes:          30 * time.Minute,
			NotificationChannels:        []ChannelKind{ChannelInAppStream},
		},
		{
			ID:                          "security-event",
			Name:                        "Security Event Detected",
			Description:                 "A security-relevant event was recorded",
			FamilyFilter:                []device.Family{device.FamilySecurity},
			Operator:                    OpNotEquals,
			Threshold:                   "normal",
			Severity:                    SeverityCritical,
			Enabled:                     true,
			EvaluationWindow:            time.Minute,
			ConsecutiveBreachesRequired: 1,
			CooldownMinutes:             5 * time.Minute,
			AutoResolve:                 false,
			NotificationChannels:        []ChannelKind{ChannelInAppStream, ChannelWebhook, ChannelEmail, ChannelChatWebhook},
		},
		{
			ID:                          "high-bandwidth-usage",
			Name:                        "High Bandwidth Usage",
			Description:                 "Bandwidth usage is unusually high relative to baseline",
			FamilyFilter:                []device.Family{device.FamilyBandwidth},
			Operator:                    OpAnomalyDetection,
			Severity:                    SeverityInfo,
			Enabled:                     true,
			EvaluationWindow:            10 * time.Minute,
			ConsecutiveBreachesRequired: 1,
			CooldownMinutes:             30 * time.Minute,
			AutoResolve:                 true,
			AutoResolveMinutes:          time.Hour,
			NotificationChannels:        []ChannelKind{ChannelInAppStream},
		},
	}
}
