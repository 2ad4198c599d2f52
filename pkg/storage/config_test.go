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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	Describe("DefaultConfig", func() {
		It("returns sensible defaults", func() {
			cfg := DefaultConfig()
			Expect(cfg.BatchSize).To(Equal(1000))
			Expect(cfg.EnableEncryption).To(BeTrue())
			Expect(cfg.EnableCompression).To(BeTrue())
			Expect(cfg.Validate()).NotTo(HaveOccurred())
		})
	})

	Describe("LoadFromEnv", func() {
		AfterEach(func() {
			os.Unsetenv("NM_STORAGE_DATABASE_PATH")
			os.Unsetenv("NM_STORAGE_BATCH_SIZE")
		})

		It("overlays set variables", func() {
			os.Setenv("NM_STORAGE_DATABASE_PATH", "/tmp/custom.db")
			os.Setenv("NM_STORAGE_BATCH_SIZE", "50")

			cfg := DefaultConfig()
			cfg.LoadFromEnv()

			Expect(cfg.DatabasePath).To(Equal("/tmp/custom.db"))
			Expect(cfg.BatchSize).To(Equal(50))
		})

		It("leaves defaults untouched when unset", func() {
			cfg := DefaultConfig()
			original := *cfg
			cfg.LoadFromEnv()
			Expect(*cfg).To(Equal(original))
		})
	})

	Describe("Validate", func() {
		It("rejects an empty database path", func() {
			cfg := DefaultConfig()
			cfg.DatabasePath = ""
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("rejects a non-positive batch size", func() {
			cfg := DefaultConfig()
			cfg.BatchSize = 0
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("rejects a negative max idle connections", func() {
			cfg := DefaultConfig()
			cfg.MaxIdleConns = -1
			Expect(cfg.Validate()).To(HaveOccurred())
		})
	})
})
