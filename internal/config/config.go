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

// Package config loads the daemon's typed configuration from YAML, overlays
// NM_* environment variables, validates it, and hot-reloads the device and
// alert-rule registry when their backing file changes.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jordigilh/netmond/pkg/alert"
	"github.com/jordigilh/netmond/pkg/coordinator"
	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
	"github.com/jordigilh/netmond/pkg/storage"
)

// Config is the daemon's top-level configuration. The Storage,
// Coordinator, and Alert sections embed the same Config types those
// packages construct their components from, so a YAML edit there takes
// effect without a translation layer duplicating their fields.
type Config struct {
	LogLevel       string `yaml:"log_level" validate:"required,oneof=trace debug info warn error"`
	HTTPAddr       string `yaml:"http_addr" validate:"required"`
	CredentialsDir string `yaml:"credentials_dir" validate:"required"`
	RedisAddr      string `yaml:"redis_addr"`

	Storage     storage.Config     `yaml:"storage"`
	Coordinator coordinator.Config `yaml:"coordinator"`
	Alert       AlertConfig        `yaml:"alert"`

	Devices []DeviceConfig `yaml:"devices" validate:"dive"`
	Rules   []RuleConfig   `yaml:"rules" validate:"dive"`
}

// AlertConfig wraps pkg/alert.Config with the notification-channel
// settings the engine's channels are constructed from; the engine
// itself has no opinion on SMTP servers or webhook URLs.
type AlertConfig struct {
	alert.Config `yaml:",inline"`

	Email       *EmailChannelConfig   `yaml:"email"`
	Webhook     *WebhookChannelConfig `yaml:"webhook"`
	ChatWebhook string                `yaml:"chat_webhook_url"`
	InAppBuffer int                   `yaml:"in_app_buffer"`
}

// EmailChannelConfig configures the SMTP notification channel.
type EmailChannelConfig struct {
	SMTPServer string   `yaml:"smtp_server"`
	SMTPPort   int      `yaml:"smtp_port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	To         []string `yaml:"to"`
}

// ToAlertConfig converts e into the shape alert.NewEmailChannel expects.
func (e EmailChannelConfig) ToAlertConfig() alert.EmailConfig {
	return alert.EmailConfig{
		SMTPServer: e.SMTPServer,
		SMTPPort:   e.SMTPPort,
		Username:   e.Username,
		Password:   e.Password,
		From:       e.From,
		To:         e.To,
	}
}

// WebhookChannelConfig configures the generic webhook notification channel.
type WebhookChannelConfig struct {
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	AuthToken string            `yaml:"auth_token"`
	Timeout   time.Duration     `yaml:"timeout"`
}

// ToAlertConfig converts w into the shape alert.NewWebhookChannel expects.
func (w WebhookChannelConfig) ToAlertConfig() alert.WebhookConfig {
	return alert.WebhookConfig{
		URL:       w.URL,
		Headers:   w.Headers,
		AuthToken: w.AuthToken,
		Timeout:   w.Timeout,
	}
}

// DefaultConfig returns the configuration used when the operator supplies
// none, mirroring the teacher's DefaultConfig/LoadFromEnv/Validate shape.
// Each section's defaults come from that section's own package so the two
// never drift apart.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		HTTPAddr:       ":8090",
		CredentialsDir: "/var/lib/netmond/credentials",
		Storage:        *storage.DefaultConfig(),
		Coordinator:    coordinator.DefaultConfig(),
		Alert: AlertConfig{
			Config:      alert.DefaultConfig(),
			InAppBuffer: 100,
		},
	}
}

// Load reads path as YAML over DefaultConfig, then applies the NM_*
// environment overlay and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, netmonderrors.FailedToWithDetails("read configuration file", "config", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, netmonderrors.ParseError("configuration", "yaml", err)
	}

	cfg.LoadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv overlays NM_* environment variables onto c. Invalid values
// (an unparsable duration or integer) are ignored, keeping whatever value
// was already set from YAML or defaults.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("NM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("NM_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("NM_CREDENTIALS_DIR"); v != "" {
		c.CredentialsDir = v
	}
	if v := os.Getenv("NM_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	c.Storage.LoadFromEnv()
	if v := os.Getenv("NM_COORDINATOR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Coordinator.Workers = n
		}
	}
	if v := os.Getenv("NM_ALERT_SENSITIVITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Alert.Sensitivity = f
		}
	}
}

var validate = validator.New()

// Validate checks struct tags across the whole configuration tree,
// including every device and rule entry.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return netmonderrors.ValidationError("configuration", err.Error())
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	for i, d := range c.Devices {
		if err := d.validate(); err != nil {
			return netmonderrors.ValidationError("devices["+strconv.Itoa(i)+"]", err.Error())
		}
	}
	for i, r := range c.Rules {
		if err := r.validate(); err != nil {
			return netmonderrors.ValidationError("rules["+strconv.Itoa(i)+"]", err.Error())
		}
	}
	return nil
}
