package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Configuration", func() {
	Describe("DefaultConfig", func() {
		It("returns a configuration that passes validation on its own", func() {
			cfg := DefaultConfig()
			Expect(cfg.Validate()).To(Succeed())
		})

		It("fills in the storage, coordinator, and alert sections", func() {
			cfg := DefaultConfig()
			Expect(cfg.Storage.BatchSize).To(Equal(1000))
			Expect(cfg.Coordinator.Workers).To(Equal(10))
			Expect(cfg.Alert.Sensitivity).To(Equal(2.0))
		})
	})

	Describe("LoadFromEnv", func() {
		var cfg *Config
		var unset []string

		BeforeEach(func() {
			cfg = DefaultConfig()
			unset = []string{
				"NM_LOG_LEVEL", "NM_HTTP_ADDR", "NM_CREDENTIALS_DIR", "NM_REDIS_ADDR",
				"NM_STORAGE_DATABASE_PATH", "NM_STORAGE_BACKUP_DIR", "NM_STORAGE_BATCH_SIZE",
				"NM_COORDINATOR_WORKERS", "NM_ALERT_SENSITIVITY",
			}
			for _, k := range unset {
				os.Unsetenv(k)
			}
		})

		AfterEach(func() {
			for _, k := range unset {
				os.Unsetenv(k)
			}
		})

		It("overlays every recognized variable", func() {
			os.Setenv("NM_LOG_LEVEL", "debug")
			os.Setenv("NM_HTTP_ADDR", ":9999")
			os.Setenv("NM_STORAGE_BATCH_SIZE", "500")
			os.Setenv("NM_COORDINATOR_WORKERS", "4")
			os.Setenv("NM_ALERT_SENSITIVITY", "3.5")

			cfg.LoadFromEnv()

			Expect(cfg.LogLevel).To(Equal("debug"))
			Expect(cfg.HTTPAddr).To(Equal(":9999"))
			Expect(cfg.Storage.BatchSize).To(Equal(500))
			Expect(cfg.Coordinator.Workers).To(Equal(4))
			Expect(cfg.Alert.Sensitivity).To(Equal(3.5))
		})

		It("leaves the value untouched when the variable holds garbage", func() {
			os.Setenv("NM_STORAGE_BATCH_SIZE", "not-a-number")
			original := cfg.Storage.BatchSize

			cfg.LoadFromEnv()

			Expect(cfg.Storage.BatchSize).To(Equal(original))
		})

		It("keeps every default when nothing is set", func() {
			original := *cfg
			cfg.LoadFromEnv()
			Expect(*cfg).To(Equal(original))
		})
	})

	Describe("Validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = DefaultConfig()
		})

		It("rejects an unknown log level", func() {
			cfg.LogLevel = "verbose"
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
		})

		It("rejects a device with an empty id", func() {
			cfg.Devices = []DeviceConfig{{
				Name: "router", Kind: "mesh_router", Address: "192.168.1.1", PollIntervalSec: 30,
			}}
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("devices[0]"))
		})

		It("rejects a rule with an unknown operator", func() {
			cfg.Rules = []RuleConfig{{
				ID: "r1", Name: "latency spike", Operator: "explode", Severity: "warning",
			}}
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("rules[0]"))
		})

		It("accepts a fully populated device and rule", func() {
			cfg.Devices = []DeviceConfig{{
				ID: "modem-1", Name: "cable modem", Kind: "cable_modem",
				Address: "192.168.100.1", PollIntervalSec: 30,
				EnabledFamilies: []string{"docsis", "connectivity"},
			}}
			cfg.Rules = []RuleConfig{{
				ID: "r1", Name: "docsis snr low", Operator: "lt", Threshold: "30",
				Severity: "warning", Enabled: true,
			}}
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Describe("Load", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("loads YAML over the defaults and validates the result", func() {
			path := filepath.Join(dir, "netmond.yaml")
			Expect(os.WriteFile(path, []byte(`
log_level: debug
http_addr: ":8080"
credentials_dir: /etc/netmond/credentials
storage:
  database_path: /var/lib/netmond/metrics.db
  batch_size: 2000
  backup_dir: /var/lib/netmond/backups
devices:
  - id: modem-1
    name: cable modem
    kind: cable_modem
    address: 192.168.100.1
    poll_interval_sec: 30
    enabled_families: [docsis]
`), 0o600)).To(Succeed())

			cfg, err := Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.LogLevel).To(Equal("debug"))
			Expect(cfg.Storage.BatchSize).To(Equal(2000))
			Expect(cfg.Devices).To(HaveLen(1))
			Expect(cfg.Devices[0].ToDescriptor().PollInterval).To(Equal(30 * time.Second))
		})

		It("returns an error when the file does not exist", func() {
			_, err := Load(filepath.Join(dir, "missing.yaml"))
			Expect(err).To(HaveOccurred())
		})

		It("returns an error when the YAML is malformed", func() {
			path := filepath.Join(dir, "bad.yaml")
			Expect(os.WriteFile(path, []byte("not: [valid"), 0o600)).To(Succeed())
			_, err := Load(path)
			Expect(err).To(HaveOccurred())
		})

		It("returns an error when the loaded configuration fails validation", func() {
			path := filepath.Join(dir, "invalid.yaml")
			Expect(os.WriteFile(path, []byte("log_level: shout\n"), 0o600)).To(Succeed())
			_, err := Load(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
