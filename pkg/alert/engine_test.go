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
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/netmond/pkg/device"
	"github.com/jordigilh/netmond/pkg/storage"
)

type fakeMetricReader struct {
	mu     sync.Mutex
	points []device.Point
	err    error
	calls  int
}

func (f *fakeMetricReader) Query(ctx context.Context, filter storage.QueryFilter) ([]device.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	var out []device.Point
	for _, p := range f.points {
		if len(filter.DeviceIDs) > 0 && !containsStr(filter.DeviceIDs, p.DeviceID) {
			continue
		}
		if len(filter.Families) > 0 && !containsFamily(filter.Families, p.Family) {
			continue
		}
		if len(filter.MetricNames) > 0 && !containsStr(filter.MetricNames, p.Name) {
			continue
		}
		if !filter.Start.IsZero() && p.Timestamp.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && p.Timestamp.After(filter.End) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsFamily(haystack []device.Family, needle device.Family) bool {
	for _, f := range haystack {
		if f == needle {
			return true
		}
	}
	return false
}

type fakeChannel struct {
	mu   sync.Mutex
	kind ChannelKind
	sent []Alert
}

func (c *fakeChannel) Kind() ChannelKind { return c.kind }

func (c *fakeChannel) Send(ctx context.Context, a Alert) NotificationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, a)
	return result(c.kind, nil)
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func testEngineLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func reachablePoint(deviceID string, reachable bool, at time.Time) device.Point {
	return device.NewPoint(deviceID, "Gateway", device.KindGateway, device.FamilyConnectivity,
		"reachable", device.BoolValue(reachable), "", at)
}

func latencyPoint(deviceID string, ms float64, at time.Time) device.Point {
	return device.NewPoint(deviceID, "Gateway", device.KindGateway, device.FamilyLatency,
		"ping_latency", device.FloatValue(ms), "ms", at)
}

var _ = Describe("Engine", func() {
	var (
		reader *fakeMetricReader
		engine *Engine
		now    time.Time
	)

	BeforeEach(func() {
		now = time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
		reader = &fakeMetricReader{}
		cfg := DefaultConfig()
		engine = New(cfg, reader, nil, testEngineLogger())
	})

	Describe("rule evaluation and breach tracking", func() {
		It("requires the configured number of consecutive breaches before alerting", func() {
			rule := Rule{
				ID: "offline", Name: "Offline", Enabled: true,
				MetricFilter: []string{"reachable"}, Operator: OpEquals, Threshold: "false",
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 2, CooldownMinutes: 5 * time.Minute,
			}
			engine.AddRule(rule)
			reader.points = []device.Point{reachablePoint("modem-1", false, now)}

			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())
			Expect(engine.GetActiveAlerts(nil)).To(BeEmpty())

			Expect(engine.evaluateRule(context.Background(), rule, now.Add(time.Minute))).To(Succeed())
			active := engine.GetActiveAlerts(nil)
			Expect(active).To(HaveLen(1))
			Expect(active[0].DeviceID).To(Equal("modem-1"))
			Expect(active[0].Status).To(Equal(StatusActive))
		})

		It("does not re-trigger an already-active alert within the cooldown window", func() {
			rule := Rule{
				ID: "offline", Name: "Offline", Enabled: true,
				MetricFilter: []string{"reachable"}, Operator: OpEquals, Threshold: "false",
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: 10 * time.Minute,
			}
			engine.AddRule(rule)
			reader.points = []device.Point{reachablePoint("modem-1", false, now)}
			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())
			Expect(engine.GetActiveAlerts(nil)).To(HaveLen(1))
			firstID := engine.GetActiveAlerts(nil)[0].ID
			Expect(engine.GetActiveAlerts(nil)[0].BreachCount).To(Equal(1))

			reader.points = []device.Point{reachablePoint("modem-1", false, now.Add(time.Minute))}
			Expect(engine.evaluateRule(context.Background(), rule, now.Add(time.Minute))).To(Succeed())

			active := engine.GetActiveAlerts(nil)
			Expect(active).To(HaveLen(1))
			Expect(active[0].ID).To(Equal(firstID))
			Expect(active[0].BreachCount).To(Equal(2))

			reader.points = []device.Point{reachablePoint("modem-1", false, now.Add(2 * time.Minute))}
			Expect(engine.evaluateRule(context.Background(), rule, now.Add(2*time.Minute))).To(Succeed())
			active = engine.GetActiveAlerts(nil)
			Expect(active).To(HaveLen(1))
			Expect(active[0].BreachCount).To(Equal(3))
		})

		It("resets the breach counter once the metric returns to normal", func() {
			rule := Rule{
				ID: "latency", Name: "Latency", Enabled: true,
				MetricFilter: []string{"ping_latency"}, Operator: OpGreaterThan, Threshold: "100",
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 2, CooldownMinutes: 5 * time.Minute,
			}
			engine.AddRule(rule)

			reader.points = []device.Point{latencyPoint("modem-1", 150, now)}
			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())

			reader.points = []device.Point{latencyPoint("modem-1", 10, now.Add(time.Minute))}
			Expect(engine.evaluateRule(context.Background(), rule, now.Add(time.Minute))).To(Succeed())

			reader.points = []device.Point{latencyPoint("modem-1", 150, now.Add(2 * time.Minute))}
			Expect(engine.evaluateRule(context.Background(), rule, now.Add(2*time.Minute))).To(Succeed())

			Expect(engine.GetActiveAlerts(nil)).To(BeEmpty())
		})

		It("auto-resolves an alert once AutoResolveMinutes elapses without a repeat breach", func() {
			rule := Rule{
				ID: "latency", Name: "Latency", Enabled: true,
				MetricFilter: []string{"ping_latency"}, Operator: OpGreaterThan, Threshold: "100",
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: time.Minute,
				AutoResolve: true, AutoResolveMinutes: 5 * time.Minute,
			}
			engine.AddRule(rule)
			reader.points = []device.Point{latencyPoint("modem-1", 150, now)}
			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())
			Expect(engine.GetActiveAlerts(nil)).To(HaveLen(1))

			engine.checkAutoResolution(now.Add(10 * time.Minute))
			Expect(engine.GetActiveAlerts(nil)).To(BeEmpty())
			Expect(engine.GetHistory(24, 0)[0].Status).To(Equal(StatusResolved))
		})
	})

	Describe("anomaly detection", func() {
		It("alerts when a value falls far outside the stored baseline", func() {
			rule := Rule{
				ID: "power", Name: "Power Anomaly", Enabled: true,
				FamilyFilter: []device.Family{device.FamilyDocsis}, Operator: OpAnomalyDetection,
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: 5 * time.Minute,
			}
			engine.AddRule(rule)

			engine.mu.Lock()
			engine.baselines[baselineKey("modem-1", device.FamilyDocsis, "tx_power")] = Baseline{
				DeviceID: "modem-1", MetricName: "tx_power",
				Mean: 40, StdDev: 2, SampleCount: 50, Confidence: 0.5, BuiltAt: now,
			}
			engine.mu.Unlock()

			point := device.NewPoint("modem-1", "Modem", device.KindCableModem, device.FamilyDocsis,
				"tx_power", device.FloatValue(60), "dBmV", now)
			reader.points = []device.Point{point}

			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())
			Expect(engine.GetActiveAlerts(nil)).To(HaveLen(1))
		})

		It("does not alert when no baseline has been built yet", func() {
			rule := Rule{
				ID: "power", Name: "Power Anomaly", Enabled: true,
				FamilyFilter: []device.Family{device.FamilyDocsis}, Operator: OpAnomalyDetection,
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: 5 * time.Minute,
			}
			engine.AddRule(rule)

			point := device.NewPoint("modem-1", "Modem", device.KindCableModem, device.FamilyDocsis,
				"tx_power", device.FloatValue(60), "dBmV", now)
			reader.points = []device.Point{point}

			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())
			Expect(engine.GetActiveAlerts(nil)).To(BeEmpty())
		})
	})

	Describe("notification dispatch", func() {
		It("delivers to every channel a rule names, once when the alert is raised", func() {
			ch := &fakeChannel{kind: ChannelWebhook}
			engine.AddChannel(ch)

			rule := Rule{
				ID: "offline", Name: "Offline", Enabled: true,
				MetricFilter: []string{"reachable"}, Operator: OpEquals, Threshold: "false",
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: 5 * time.Minute,
				NotificationChannels: []ChannelKind{ChannelWebhook},
			}
			engine.AddRule(rule)
			reader.points = []device.Point{reachablePoint("modem-1", false, now)}
			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())

			Eventually(ch.sentCount).Should(Equal(1))
		})

		It("does not notify a suppressed rule", func() {
			ch := &fakeChannel{kind: ChannelWebhook}
			engine.AddChannel(ch)

			until := now.Add(time.Hour)
			rule := Rule{
				ID: "offline", Name: "Offline", Enabled: true,
				MetricFilter: []string{"reachable"}, Operator: OpEquals, Threshold: "false",
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: 5 * time.Minute,
				NotificationChannels: []ChannelKind{ChannelWebhook},
				SuppressedUntil:      &until,
			}
			engine.AddRule(rule)
			reader.points = []device.Point{reachablePoint("modem-1", false, now)}
			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())

			Consistently(ch.sentCount).Should(Equal(0))
		})
	})

	Describe("Acknowledge", func() {
		It("transitions an active alert to acknowledged", func() {
			rule := Rule{
				ID: "offline", Name: "Offline", Enabled: true,
				MetricFilter: []string{"reachable"}, Operator: OpEquals, Threshold: "false",
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: 5 * time.Minute,
			}
			engine.AddRule(rule)
			reader.points = []device.Point{reachablePoint("modem-1", false, now)}
			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())

			id := engine.GetActiveAlerts(nil)[0].ID
			Expect(engine.Acknowledge(id, "alice")).To(BeTrue())

			active := engine.GetActiveAlerts(nil)
			Expect(active[0].Status).To(Equal(StatusAcknowledged))
			Expect(active[0].Metadata["acknowledged_by"]).To(Equal("alice"))
		})

		It("returns false for an unknown alert id", func() {
			Expect(engine.Acknowledge("nonexistent", "alice")).To(BeFalse())
		})
	})

	Describe("GetActiveAlerts severity filter", func() {
		It("returns only alerts matching the requested severity", func() {
			warn := Rule{
				ID: "warn-rule", Name: "Warn", Enabled: true,
				MetricFilter: []string{"reachable"}, Operator: OpEquals, Threshold: "false",
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: time.Minute,
			}
			crit := Rule{
				ID: "crit-rule", Name: "Crit", Enabled: true,
				MetricFilter: []string{"reachable"}, Operator: OpEquals, Threshold: "false",
				Severity: SeverityCritical, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: time.Minute,
			}
			engine.AddRule(warn)
			engine.AddRule(crit)
			reader.points = []device.Point{reachablePoint("modem-1", false, now)}
			Expect(engine.evaluateRule(context.Background(), warn, now)).To(Succeed())
			Expect(engine.evaluateRule(context.Background(), crit, now)).To(Succeed())

			sev := SeverityCritical
			filtered := engine.GetActiveAlerts(&sev)
			Expect(filtered).To(HaveLen(1))
			Expect(filtered[0].RuleID).To(Equal("crit-rule"))
		})
	})

	Describe("Stats", func() {
		It("reflects rule, alert, and history counts", func() {
			rule := Rule{
				ID: "offline", Name: "Offline", Enabled: true,
				MetricFilter: []string{"reachable"}, Operator: OpEquals, Threshold: "false",
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: 5 * time.Minute,
			}
			engine.AddRule(rule)
			reader.points = []device.Point{reachablePoint("modem-1", false, now)}
			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())

			stats := engine.Stats()
			Expect(stats.Rules).To(Equal(1))
			Expect(stats.ActiveAlerts).To(Equal(1))
			Expect(stats.HistoryLength).To(Equal(1))
		})
	})

	Describe("Start and Stop", func() {
		It("stops cleanly within the drain timeout", func() {
			cfg := DefaultConfig()
			cfg.EvaluationTick = 5 * time.Millisecond
			cfg.BaselineInterval = time.Hour
			cfg.StopTimeout = time.Second
			e := New(cfg, reader, nil, testEngineLogger())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			e.Start(ctx)

			Expect(e.Stop(context.Background())).To(Succeed())
		})
	})

	Describe("Suppress", func() {
		It("silences notifications for a rule without disabling evaluation", func() {
			rule := Rule{ID: "offline", Name: "Offline", Enabled: true}
			engine.AddRule(rule)

			Expect(engine.Suppress("offline", now.Add(time.Hour))).To(BeTrue())
			Expect(engine.rules["offline"].Suppressed(now)).To(BeTrue())
		})

		It("returns false for an unknown rule", func() {
			Expect(engine.Suppress("nonexistent", now.Add(time.Hour))).To(BeFalse())
		})
	})

	Describe("RemoveRule", func() {
		It("drops the rule and its breach counters", func() {
			rule := Rule{
				ID: "offline", Name: "Offline", Enabled: true,
				MetricFilter: []string{"reachable"}, Operator: OpEquals, Threshold: "false",
				Severity: SeverityWarning, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 2, CooldownMinutes: 5 * time.Minute,
			}
			engine.AddRule(rule)
			reader.points = []device.Point{reachablePoint("modem-1", false, now)}
			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())

			engine.RemoveRule("offline")
			Expect(engine.Stats().Rules).To(Equal(0))

			engine.mu.RLock()
			_, tracked := engine.breachCounters[key("offline", "modem-1")]
			engine.mu.RUnlock()
			Expect(tracked).To(BeFalse())
		})
	})

	Describe("CorrelatedAlerts", func() {
		It("groups alerts from rules sharing a correlation group", func() {
			rule := Rule{
				ID: "docsis-snr", Name: "Low SNR", Enabled: true,
				MetricFilter: []string{"reachable"}, Operator: OpEquals, Threshold: "false",
				Severity: SeverityCritical, EvaluationWindow: time.Minute,
				ConsecutiveBreachesRequired: 1, CooldownMinutes: time.Minute,
				CorrelationGroup: "docsis-health",
			}
			engine.AddRule(rule)
			reader.points = []device.Point{reachablePoint("modem-1", false, now)}
			Expect(engine.evaluateRule(context.Background(), rule, now)).To(Succeed())

			Expect(engine.CorrelatedAlerts("docsis-health")).To(HaveLen(1))
			Expect(engine.CorrelatedAlerts("unrelated-group")).To(BeEmpty())
		})
	})
})
