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
	"os"
	"strconv"
	"time"

	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
)

// Config configures the embedded metrics store.
type Config struct {
	DatabasePath         string        `yaml:"database_path"`
	EncryptionKeyPath    string        `yaml:"encryption_key_path"`
	BatchSize            int           `yaml:"batch_size"`
	CompressionThreshold int64         `yaml:"compression_threshold"`
	EnableEncryption     bool          `yaml:"enable_encryption"`
	EnableCompression    bool          `yaml:"enable_compression"`
	RetentionSweepPeriod time.Duration `yaml:"retention_sweep_period"`
	RollupPeriod         time.Duration `yaml:"rollup_period"`
	BackupPeriod         time.Duration `yaml:"backup_period"`
	BackupDir            string        `yaml:"backup_dir"`
	MaxOpenConns         int           `yaml:"max_open_conns"`
	MaxIdleConns         int           `yaml:"max_idle_conns"`
	ConnMaxLifetime      time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultConfig returns the store configuration used when the operator
// supplies none.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:         "/var/lib/netmond/metrics.db",
		EncryptionKeyPath:    "/var/lib/netmond/.storage_key",
		BatchSize:            1000,
		CompressionThreshold: 1024,
		EnableEncryption:     true,
		EnableCompression:    true,
		RetentionSweepPeriod: time.Hour,
		RollupPeriod:         time.Hour,
		BackupPeriod:         6 * time.Hour,
		BackupDir:            "/var/lib/netmond/backups",
		MaxOpenConns:         1,
		MaxIdleConns:         1,
		ConnMaxLifetime:      5 * time.Minute,
	}
}

// LoadFromEnv overlays NM_STORAGE_* environment variables onto the config,
// leaving any field whose variable is unset or unparsable untouched.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("NM_STORAGE_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("NM_STORAGE_ENCRYPTION_KEY_PATH"); v != "" {
		c.EncryptionKeyPath = v
	}
	if v := os.Getenv("NM_STORAGE_BACKUP_DIR"); v != "" {
		c.BackupDir = v
	}
	if v, err := strconv.Atoi(os.Getenv("NM_STORAGE_BATCH_SIZE")); err == nil {
		c.BatchSize = v
	}
	if v, err := strconv.ParseBool(os.Getenv("NM_STORAGE_ENABLE_ENCRYPTION")); err == nil {
		c.EnableEncryption = v
	}
	if v, err := strconv.ParseBool(os.Getenv("NM_STORAGE_ENABLE_COMPRESSION")); err == nil {
		c.EnableCompression = v
	}
}

// Validate reports the first configuration error found, if any.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return netmonderrors.ConfigurationError("database_path", "database path is required")
	}
	if c.BatchSize <= 0 {
		return netmonderrors.ConfigurationError("batch_size", "batch size must be greater than 0")
	}
	if c.CompressionThreshold < 0 {
		return netmonderrors.ConfigurationError("compression_threshold", "compression threshold must be non-negative")
	}
	if c.MaxOpenConns <= 0 {
		return netmonderrors.ConfigurationError("max_open_conns", "max open connections must be greater than 0")
	}
	if c.MaxIdleConns < 0 {
		return netmonderrors.ConfigurationError("max_idle_conns", "max idle connections must be non-negative")
	}
	return nil
}
