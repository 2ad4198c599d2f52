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

	"github.com/jordigilh/netmond/pkg/alert"
	"github.com/jordigilh/netmond/pkg/device"
)

// RuleConfig is the YAML-facing shape of a single alert rule.
type RuleConfig struct {
	ID          string `yaml:"id" validate:"required"`
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description"`

	DeviceFilter []string `yaml:"device_filter"`
	FamilyFilter []string `yaml:"family_filter"`
	MetricFilter []string `yaml:"metric_filter"`

	Operator  string `yaml:"operator" validate:"required,oneof=gt lt eq ne contains regex anomaly"`
	Threshold string `yaml:"threshold"`

	Severity string `yaml:"severity" validate:"required,oneof=info warning critical emergency"`
	Enabled  bool   `yaml:"enabled"`

	EvaluationWindowSec         int  `yaml:"evaluation_window_sec"`
	ConsecutiveBreachesRequired int  `yaml:"consecutive_breaches_required"`
	CooldownMinutes             int  `yaml:"cooldown_minutes"`
	AutoResolve                 bool `yaml:"auto_resolve"`
	AutoResolveMinutes          int  `yaml:"auto_resolve_minutes"`

	CorrelationGroup string   `yaml:"correlation_group"`
	DependencyRules  []string `yaml:"dependency_rules"`

	NotificationChannels []string `yaml:"notification_channels"`
	MessageTemplate      string   `yaml:"message_template"`
}

// ToRule converts a RuleConfig into the alert.Rule the engine evaluates.
// SuppressedUntil has no YAML representation; it is an operator action
// taken at runtime through alert.Engine.Suppress, not a stored setting.
func (r RuleConfig) ToRule() alert.Rule {
	families := make([]device.Family, 0, len(r.FamilyFilter))
	for _, f := range r.FamilyFilter {
		families = append(families, device.Family(f))
	}
	channels := make([]alert.ChannelKind, 0, len(r.NotificationChannels))
	for _, c := range r.NotificationChannels {
		channels = append(channels, alert.ChannelKind(c))
	}
	return alert.Rule{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,

		DeviceFilter: r.DeviceFilter,
		FamilyFilter: families,
		MetricFilter: r.MetricFilter,

		Operator:  alert.Operator(r.Operator),
		Threshold: r.Threshold,

		Severity: alert.Severity(r.Severity),
		Enabled:  r.Enabled,

		EvaluationWindow:            time.Duration(r.EvaluationWindowSec) * time.Second,
		ConsecutiveBreachesRequired: r.ConsecutiveBreachesRequired,
		CooldownMinutes:             time.Duration(r.CooldownMinutes) * time.Minute,
		AutoResolve:                 r.AutoResolve,
		AutoResolveMinutes:          time.Duration(r.AutoResolveMinutes) * time.Minute,

		CorrelationGroup: r.CorrelationGroup,
		DependencyRules:  r.DependencyRules,

		NotificationChannels: channels,
		MessageTemplate:      r.MessageTemplate,
	}
}

func (r RuleConfig) validate() error {
	return validate.Struct(r)
}
