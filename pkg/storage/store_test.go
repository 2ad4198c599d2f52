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
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/netmond/pkg/device"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func newTestStore(dir string) *Store {
	cfg := DefaultConfig()
	cfg.DatabasePath = filepath.Join(dir, "metrics.db")
	cfg.EncryptionKeyPath = filepath.Join(dir, ".key")
	cfg.BackupDir = filepath.Join(dir, "backups")
	cfg.RetentionSweepPeriod = time.Hour
	cfg.RollupPeriod = time.Hour
	cfg.BackupPeriod = time.Hour

	s, err := Connect(cfg, testLogger())
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Store", func() {
	var (
		dir   string
		store *Store
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		store = newTestStore(dir)
	})

	AfterEach(func() {
		Expect(store.Close()).NotTo(HaveOccurred())
	})

	Describe("Store and Query", func() {
		It("round-trips points of every value type", func() {
			now := time.Now().UTC().Truncate(time.Second)
			jsonVal, err := device.JSONValue(map[string]int{"a": 1})
			Expect(err).NotTo(HaveOccurred())

			points := []device.Point{
				device.NewPoint("d1", "Device 1", device.KindCableModem, device.FamilyDocsis, "snr", device.FloatValue(38.1), "dB", now),
				device.NewPoint("d1", "Device 1", device.KindCableModem, device.FamilyConnectivity, "reachable", device.BoolValue(true), "", now),
				device.NewPoint("d2", "Device 2", device.KindGateway, device.FamilySecurity, "firewall_status", device.StringValue("enabled"), "", now),
				device.NewPoint("d2", "Device 2", device.KindGateway, device.FamilyPerformance, "open_ports", jsonVal, "", now),
			}

			result, err := store.Store(context.Background(), points)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Stored).To(Equal(4))
			Expect(result.Errors).To(Equal(0))

			got, err := store.Query(context.Background(), QueryFilter{DeviceIDs: []string{"d1"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
		})

		It("filters by family and respects a limit", func() {
			now := time.Now().UTC()
			var points []device.Point
			for i := 0; i < 5; i++ {
				points = append(points, device.NewPoint("d1", "Device 1", device.KindGeneric, device.FamilyConnectivity, "reachable", device.BoolValue(true), "", now.Add(time.Duration(i)*time.Second)))
			}
			_, err := store.Store(context.Background(), points)
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Query(context.Background(), QueryFilter{Families: []device.Family{device.FamilyConnectivity}, Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
		})

		It("encrypts sensitive families and still decodes them on query", func() {
			now := time.Now().UTC()
			p := device.NewPoint("d1", "Device 1", device.KindLinuxServer, device.FamilySystemResources, "cpu_percent", device.FloatValue(72.5), "%", now)
			_, err := store.Store(context.Background(), []device.Point{p})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Query(context.Background(), QueryFilter{DeviceIDs: []string{"d1"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			f, err := got[0].Value.AsFloat64()
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(BeNumerically("~", 72.5, 0.001))
		})
	})

	Describe("ApplyRetention", func() {
		It("deletes points older than their family's policy horizon", func() {
			old := time.Now().Add(-2 * time.Hour)
			p := device.NewPoint("d1", "Device 1", device.KindGeneric, device.FamilyConnectivity, "reachable", device.BoolValue(true), "", old)
			_, err := store.Store(context.Background(), []device.Point{p})
			Expect(err).NotTo(HaveOccurred())

			// Connectivity defaults to medium-term retention (7 days), so an
			// artificially short horizon is forced to exercise the sweep.
			retentionHorizons[PolicyMedium] = time.Minute
			defer func() { retentionHorizons[PolicyMedium] = 7 * 24 * time.Hour }()

			result, err := store.ApplyRetention(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.TotalDeleted).To(BeNumerically(">=", 1))
		})
	})

	Describe("Statistics", func() {
		It("reports total counts and breakdowns", func() {
			now := time.Now().UTC()
			p := device.NewPoint("d1", "Device 1", device.KindGeneric, device.FamilyConnectivity, "reachable", device.BoolValue(true), "", now)
			_, err := store.Store(context.Background(), []device.Point{p})
			Expect(err).NotTo(HaveOccurred())

			stats, err := store.Statistics(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalMetrics).To(Equal(int64(1)))
			Expect(stats.MetricsByKind["generic"]).To(Equal(int64(1)))
		})
	})

	Describe("Backup", func() {
		It("creates a backup file", func() {
			result, err := store.Backup(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Path).NotTo(BeEmpty())
			Expect(result.SizeBytes).To(BeNumerically(">", 0))
		})
	})

	Describe("Optimize", func() {
		It("runs all maintenance operations without error", func() {
			result, err := store.Optimize(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Operations).To(ContainElement("VACUUM"))
		})
	})
})
