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

// Package alert evaluates rules against stored metrics on a cadence,
// tracks live alert state through Active/Acknowledged/Resolved, detects
// anomalies against rolling baselines, and delivers notifications across
// pluggable channels with per-(device,rule) rate limiting.
package alert

import (
	"time"

	"github.com/jordigilh/netmond/pkg/device"
)

// Severity ranks an alert's urgency.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// Status is a state in the alert lifecycle: Active -> Acknowledged ->
// Resolved, with a direct Active -> Resolved transition also permitted.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Operator is the predicate a rule applies to a metric's latest value.
type Operator string

const (
	OpGreaterThan      Operator = "gt"
	OpLessThan         Operator = "lt"
	OpEquals           Operator = "eq"
	OpNotEquals        Operator = "ne"
	OpContains         Operator = "contains"
	OpRegexMatch       Operator = "regex"
	OpAnomalyDetection Operator = "anomaly"
)

// ChannelKind names a notification delivery mechanism.
type ChannelKind string

const (
	ChannelEmail       ChannelKind = "email"
	ChannelWebhook     ChannelKind = "webhook"
	ChannelInAppStream ChannelKind = "in_app_stream"
	ChannelChatWebhook ChannelKind = "chat_webhook"
)

// Rule is a single alert rule configuration.
type Rule struct {
	ID          string
	Name        string
	Description string

	DeviceFilter []string
	FamilyFilter []device.Family
	MetricFilter []string

	Operator  Operator
	Threshold string // compared numerically, textually, or by regex depending on Operator

	Severity Severity
	Enabled  bool

	EvaluationWindow            time.Duration
	ConsecutiveBreachesRequired int
	CooldownMinutes             time.Duration
	AutoResolve                 bool
	AutoResolveMinutes          time.Duration

	CorrelationGroup string
	DependencyRules  []string

	NotificationChannels []ChannelKind
	MessageTemplate      string

	// SuppressedUntil silences notifications for this rule without
	// disabling evaluation or breach tracking. Operator-set; once it has
	// passed it no longer has any effect, though the field is not cleared.
	SuppressedUntil *time.Time
}

// Suppressed reports whether the rule's operator-initiated silence window
// is still in effect as of now.
func (r Rule) Suppressed(now time.Time) bool {
	return r.SuppressedUntil != nil && now.Before(*r.SuppressedUntil)
}

// NotificationResult records the outcome of one channel delivery attempt.
type NotificationResult struct {
	Success   bool
	Error     string
	Channel   ChannelKind
	Timestamp time.Time
}

// Alert is a single instance of a rule breach.
type Alert struct {
	ID       string
	RuleID   string
	RuleName string

	DeviceID   string
	DeviceName string
	Family     device.Family
	MetricName string

	Severity Severity
	Status   Status
	Message  string

	TriggeredAt    time.Time
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
	LastUpdated    time.Time

	CurrentValue   string
	ThresholdValue string
	BreachCount    int

	CorrelationGroup string
	Metadata         map[string]string

	NotificationHistory []NotificationResult
}

// key identifies the (rule, device) pair an alert, breach counter, or
// cooldown window applies to.
func key(ruleID, deviceID string) string {
	return ruleID + "|" + deviceID
}
