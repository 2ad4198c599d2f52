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
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/netmond/pkg/device"
	"github.com/jordigilh/netmond/pkg/metrics"
	"github.com/jordigilh/netmond/pkg/shared/logging"
	"github.com/jordigilh/netmond/pkg/storage"
)

// Config configures the engine's evaluation and baseline cadence.
type Config struct {
	EvaluationTick   time.Duration `yaml:"evaluation_tick"`
	BaselineInterval time.Duration `yaml:"baseline_interval"`
	StopTimeout      time.Duration `yaml:"stop_timeout"`
	Sensitivity      float64       `yaml:"sensitivity"`
	MaxHistory       int           `yaml:"max_history" validate:"gte=0"`
}

// DefaultConfig returns the engine configuration used when the operator
// supplies none.
func DefaultConfig() Config {
	return Config{
		EvaluationTick:   30 * time.Second,
		BaselineInterval: time.Hour,
		StopTimeout:      10 * time.Second,
		Sensitivity:      defaultSensitivity,
		MaxHistory:       1000,
	}
}

// Engine owns rules, live alerts, baselines, and notification delivery.
// Rules and live-alert state are guarded by mu: the evaluation loop and the
// exported methods (AddRule, RemoveRule, Suppress, Acknowledge, ...) all
// take it before reading or mutating them.
type Engine struct {
	cfg   Config
	store storage.MetricReader
	log   *logrus.Entry

	predictive  *predictiveModel
	rateLimiter *rateLimiter
	channels    map[ChannelKind]Channel

	mu           sync.RWMutex
	rules        map[string]*Rule
	activeAlerts map[string]*Alert // keyed by key(ruleID, deviceID)
	// history shares pointers with activeAlerts while an alert is live, so
	// acknowledging or resolving it is visible through either lookup.
	history          []*Alert
	breachCounters   map[string]int // keyed by key(ruleID, deviceID)
	lastEvaluated    map[string]time.Time
	baselines        map[string]Baseline // keyed by baselineKey
	correlationIndex map[string][]string // correlation group -> alert ids

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds an Engine backed by store for rule evaluation and baseline
// computation. redisClient may be nil, in which case rate limiting falls
// back to an in-memory window.
func New(cfg Config, store storage.MetricReader, redisClient *redis.Client, log *logrus.Entry) *Engine {
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = defaultSensitivity
	}
	return &Engine{
		cfg:              cfg,
		store:            store,
		log:              log,
		predictive:       newPredictiveModel(cfg.Sensitivity),
		rateLimiter:      newRateLimiter(redisClient, log),
		channels:         make(map[ChannelKind]Channel),
		rules:            make(map[string]*Rule),
		activeAlerts:     make(map[string]*Alert),
		breachCounters:   make(map[string]int),
		lastEvaluated:    make(map[string]time.Time),
		baselines:        make(map[string]Baseline),
		correlationIndex: make(map[string][]string),
		stopCh:           make(chan struct{}),
	}
}

// AddChannel registers a notification channel, replacing any previously
// registered channel of the same kind.
func (e *Engine) AddChannel(c Channel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels[c.Kind()] = c
}

// AddRule adds or replaces an alert rule.
func (e *Engine) AddRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[r.ID] = &r
	e.log.WithFields(logging.AlertFields("add_rule", r.ID, "").ToLogrus()).Info("added alert rule")
}

// RemoveRule drops a rule and its breach-tracking state. Live alerts it
// already raised are left untouched.
func (e *Engine) RemoveRule(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, ruleID)
	for k := range e.breachCounters {
		if strings.HasPrefix(k, ruleID+"|") {
			delete(e.breachCounters, k)
		}
	}
}

// Suppress silences notifications (not evaluation) for ruleID until until.
func (e *Engine) Suppress(ruleID string, until time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[ruleID]
	if !ok {
		return false
	}
	r.SuppressedUntil = &until
	return true
}

// Start launches the evaluation and baseline loops in the background.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(2)
	go e.evaluationLoop(ctx)
	go e.baselineLoop(ctx)
}

// Stop signals both loops to exit and waits up to cfg.StopTimeout.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, e.cfg.StopTimeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-timeoutCtx.Done():
		e.log.Warn("alert engine stop timed out waiting for loops to exit")
		return timeoutCtx.Err()
	}
}

func (e *Engine) evaluationLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.EvaluationTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case now := <-ticker.C:
			e.runEvaluationPass(ctx, now)
		}
	}
}

func (e *Engine) runEvaluationPass(ctx context.Context, now time.Time) {
	for _, rule := range e.dueRules(now) {
		if err := e.evaluateRule(ctx, rule, now); err != nil {
			e.log.WithError(err).WithField("rule_id", rule.ID).Error("failed to evaluate rule")
			metrics.RecordAlertEvaluation("error")
			continue
		}
		metrics.RecordAlertEvaluation("success")
		e.mu.Lock()
		e.lastEvaluated[rule.ID] = now
		e.mu.Unlock()
	}
	e.checkAutoResolution(now)
	metrics.SetAlertsActive(e.activeCount())
}

func (e *Engine) dueRules(now time.Time) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var due []Rule
	for id, r := range e.rules {
		if !r.Enabled {
			continue
		}
		last, seen := e.lastEvaluated[id]
		if seen && now.Sub(last) < r.EvaluationWindow {
			continue
		}
		due = append(due, *r)
	}
	return due
}

func (e *Engine) activeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.activeAlerts)
}

func (e *Engine) evaluateRule(ctx context.Context, rule Rule, now time.Time) error {
	filter := storage.QueryFilter{
		DeviceIDs:   rule.DeviceFilter,
		Families:    rule.FamilyFilter,
		MetricNames: rule.MetricFilter,
		Start:       now.Add(-rule.EvaluationWindow),
		End:         now,
		Limit:       1000,
	}

	points, err := e.store.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("query metrics for rule %s: %w", rule.ID, err)
	}

	latestByDevice := make(map[string]device.Point)
	for _, p := range points {
		existing, ok := latestByDevice[p.DeviceID]
		if !ok || p.Timestamp.After(existing.Timestamp) {
			latestByDevice[p.DeviceID] = p
		}
	}

	for deviceID, latest := range latestByDevice {
		breach, err := e.evaluateCondition(rule, latest)
		if err != nil {
			e.log.WithError(err).WithFields(logging.AlertFields("evaluate_condition", rule.ID, deviceID).ToLogrus()).
				Warn("rule condition evaluation failed, treating as non-breaching")
			breach = false
		}

		if breach {
			e.handleBreach(rule, latest, now)
		} else {
			e.handleNormal(rule, deviceID, now)
		}
	}
	return nil
}

func (e *Engine) evaluateCondition(rule Rule, p device.Point) (bool, error) {
	switch rule.Operator {
	case OpGreaterThan, OpLessThan:
		value, err := p.Value.AsFloat64()
		if err != nil {
			return false, err
		}
		threshold, err := strconv.ParseFloat(rule.Threshold, 64)
		if err != nil {
			return false, fmt.Errorf("rule threshold %q is not numeric: %w", rule.Threshold, err)
		}
		if rule.Operator == OpGreaterThan {
			return value > threshold, nil
		}
		return value < threshold, nil

	case OpEquals:
		return p.Value.String() == rule.Threshold, nil

	case OpNotEquals:
		return p.Value.String() != rule.Threshold, nil

	case OpContains:
		return strings.Contains(p.Value.String(), rule.Threshold), nil

	case OpRegexMatch:
		re, err := regexp.Compile(rule.Threshold)
		if err != nil {
			return false, fmt.Errorf("rule regex %q invalid: %w", rule.Threshold, err)
		}
		return re.MatchString(p.Value.String()), nil

	case OpAnomalyDetection:
		return e.evaluateAnomaly(p)

	default:
		return false, fmt.Errorf("unknown operator %q", rule.Operator)
	}
}

func (e *Engine) evaluateAnomaly(p device.Point) (bool, error) {
	value, err := p.Value.AsFloat64()
	if err != nil {
		return false, err
	}

	e.mu.RLock()
	baseline, ok := e.baselines[baselineKey(p.DeviceID, p.Family, p.Name)]
	e.mu.RUnlock()
	if !ok {
		return false, nil
	}

	isAnomaly, _ := e.predictive.isAnomaly(value, baseline, p.Timestamp)
	if isAnomaly {
		metrics.RecordAnomalyDetected(string(p.Family))
	}
	return isAnomaly, nil
}

func (e *Engine) handleBreach(rule Rule, p device.Point, now time.Time) {
	k := key(rule.ID, p.DeviceID)

	e.mu.Lock()
	e.breachCounters[k]++
	breachCount := e.breachCounters[k]
	e.mu.Unlock()

	if breachCount < rule.ConsecutiveBreachesRequired {
		return
	}

	e.mu.Lock()
	existing, exists := e.activeAlerts[k]
	if exists {
		// Cooldown only withholds renotification (there is none to send on
		// this path regardless); the breach count and current value on the
		// active alert stay live for as long as the device keeps breaching.
		existing.BreachCount = breachCount
		existing.CurrentValue = p.Value.String()
		existing.LastUpdated = now
		e.mu.Unlock()
		return
	}

	alertVal := e.newAlert(rule, p, breachCount, now)
	alert := &alertVal
	e.activeAlerts[k] = alert
	e.history = append(e.history, alert)
	if len(e.history) > e.cfg.MaxHistory {
		e.history = e.history[len(e.history)-e.cfg.MaxHistory:]
	}
	if rule.CorrelationGroup != "" {
		e.correlationIndex[rule.CorrelationGroup] = append(e.correlationIndex[rule.CorrelationGroup], alert.ID)
	}
	e.mu.Unlock()

	e.log.WithFields(logging.AlertFields("trigger", rule.ID, p.DeviceID).ToLogrus()).
		WithField("alert_id", alert.ID).Info("alert triggered")

	if !rule.Suppressed(now) {
		go e.sendNotifications(rule, *alert)
	}
}

func (e *Engine) handleNormal(rule Rule, deviceID string, now time.Time) {
	k := key(rule.ID, deviceID)

	e.mu.Lock()
	e.breachCounters[k] = 0

	alert, exists := e.activeAlerts[k]
	if !exists || !rule.AutoResolve {
		e.mu.Unlock()
		return
	}
	shouldResolve := now.Sub(alert.TriggeredAt) >= rule.AutoResolveMinutes
	e.mu.Unlock()

	if shouldResolve {
		e.resolveAlert(k, now, "auto-resolved: condition returned to normal")
	}
}

func (e *Engine) newAlert(rule Rule, p device.Point, breachCount int, now time.Time) Alert {
	message := fmt.Sprintf("%s on %s is %s (threshold: %s)", p.Name, p.DeviceName, p.Value.String(), rule.Threshold)
	if rule.MessageTemplate != "" {
		message = renderTemplate(rule.MessageTemplate, p, rule)
	}

	metadata := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		metadata[k] = v
	}

	return Alert{
		ID:               uuid.NewString(),
		RuleID:           rule.ID,
		RuleName:         rule.Name,
		DeviceID:         p.DeviceID,
		DeviceName:       p.DeviceName,
		Family:           p.Family,
		MetricName:       p.Name,
		Severity:         rule.Severity,
		Status:           StatusActive,
		Message:          message,
		TriggeredAt:      now,
		LastUpdated:      now,
		CurrentValue:     p.Value.String(),
		ThresholdValue:   rule.Threshold,
		BreachCount:      breachCount,
		CorrelationGroup: rule.CorrelationGroup,
		Metadata:         metadata,
	}
}

func renderTemplate(tmpl string, p device.Point, rule Rule) string {
	r := strings.NewReplacer(
		"{device_name}", p.DeviceName,
		"{metric_name}", p.Name,
		"{current_value}", p.Value.String(),
		"{threshold_value}", rule.Threshold,
	)
	return r.Replace(tmpl)
}

func (e *Engine) sendNotifications(rule Rule, alert Alert) {
	var wg sync.WaitGroup
	results := make([]NotificationResult, len(rule.NotificationChannels))

	for i, kind := range rule.NotificationChannels {
		e.mu.RLock()
		channel, ok := e.channels[kind]
		e.mu.RUnlock()
		if !ok {
			results[i] = NotificationResult{Channel: kind, Success: false, Error: "channel not configured", Timestamp: time.Now()}
			continue
		}

		rlKey := alert.DeviceID + "|" + rule.ID
		if !e.rateLimiter.allow(context.Background(), string(kind)+"|"+rlKey, 10, 5*time.Minute) {
			metrics.RecordNotificationRateLimited(string(kind))
			results[i] = NotificationResult{Channel: kind, Success: false, Error: "rate limit exceeded", Timestamp: time.Now()}
			continue
		}

		wg.Add(1)
		go func(i int, c Channel) {
			defer wg.Done()
			res := c.Send(context.Background(), alert)
			outcome := "success"
			if !res.Success {
				outcome = "error"
			}
			metrics.RecordNotificationAttempt(string(c.Kind()), outcome)
			results[i] = res
		}(i, channel)
	}
	wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if live, ok := e.activeAlerts[key(rule.ID, alert.DeviceID)]; ok {
		live.NotificationHistory = append(live.NotificationHistory, results...)
	}
}

func (e *Engine) checkAutoResolution(now time.Time) {
	e.mu.RLock()
	var toResolve []string
	for k, a := range e.activeAlerts {
		rule, ok := e.rules[a.RuleID]
		if !ok || !rule.AutoResolve {
			continue
		}
		if now.Sub(a.TriggeredAt) >= rule.AutoResolveMinutes {
			toResolve = append(toResolve, k)
		}
	}
	e.mu.RUnlock()

	for _, k := range toResolve {
		e.resolveAlert(k, now, "auto-resolved: timeout reached")
	}
}

func (e *Engine) resolveAlert(k string, resolvedAt time.Time, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.activeAlerts[k]
	if !ok {
		return
	}
	alert.Status = StatusResolved
	alert.ResolvedAt = &resolvedAt
	alert.LastUpdated = resolvedAt
	if alert.Metadata == nil {
		alert.Metadata = make(map[string]string)
	}
	alert.Metadata["resolution_reason"] = reason
	delete(e.activeAlerts, k)

	e.log.WithFields(logging.AlertFields("resolve", alert.RuleID, alert.DeviceID).ToLogrus()).
		WithField("alert_id", alert.ID).Info(reason)
}

// Acknowledge transitions an active alert to Acknowledged. Returns false if
// no active alert has the given id.
func (e *Engine) Acknowledge(alertID, by string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, a := range e.activeAlerts {
		if a.ID != alertID {
			continue
		}
		now := time.Now()
		a.Status = StatusAcknowledged
		a.AcknowledgedAt = &now
		a.LastUpdated = now
		if a.Metadata == nil {
			a.Metadata = make(map[string]string)
		}
		a.Metadata["acknowledged_by"] = by
		return true
	}
	return false
}

// GetActiveAlerts returns live alerts, newest first, optionally filtered by
// severity.
func (e *Engine) GetActiveAlerts(severity *Severity) []Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Alert, 0, len(e.activeAlerts))
	for _, a := range e.activeAlerts {
		if severity != nil && a.Severity != *severity {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out
}

// GetHistory returns alerts triggered within the last `hoursBack` hours,
// newest first, capped at limit.
func (e *Engine) GetHistory(hoursBack int, limit int) []Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(hoursBack) * time.Hour)
	var out []Alert
	for _, a := range e.history {
		if a.TriggeredAt.After(cutoff) || a.TriggeredAt.Equal(cutoff) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CorrelatedAlerts returns the alert ids the engine has indexed under group.
func (e *Engine) CorrelatedAlerts(group string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.correlationIndex[group]...)
}

func (e *Engine) baselineLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.BaselineInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.updateBaselines(ctx)
		}
	}
}

func (e *Engine) updateBaselines(ctx context.Context) {
	now := time.Now()
	points, err := e.store.Query(ctx, storage.QueryFilter{
		Start: now.Add(-7 * 24 * time.Hour),
		End:   now,
		Limit: 10000,
	})
	if err != nil {
		e.log.WithError(err).Error("failed to query metrics for baseline update")
		return
	}

	type group struct {
		deviceID, metricName string
		family               device.Family
		samples              []numericSample
	}
	groups := make(map[string]*group)
	for _, p := range points {
		value, err := p.Value.AsFloat64()
		if err != nil {
			continue
		}
		k := baselineKey(p.DeviceID, p.Family, p.Name)
		g, ok := groups[k]
		if !ok {
			g = &group{deviceID: p.DeviceID, metricName: p.Name, family: p.Family}
			groups[k] = g
		}
		g.samples = append(g.samples, numericSample{value: value, timestamp: p.Timestamp})
	}

	built := make(map[string]Baseline, len(groups))
	for k, g := range groups {
		baseline, ok := buildBaseline(g.deviceID, g.metricName, g.samples, now)
		if !ok {
			continue
		}
		built[k] = baseline
	}

	e.mu.Lock()
	e.baselines = built
	e.mu.Unlock()

	e.log.WithField("count", len(built)).Info("rebuilt alert baselines")
}

// Stats summarizes the engine's current runtime state, mirroring the
// original implementation's collection-stats snapshot.
type Stats struct {
	Rules         int
	ActiveAlerts  int
	HistoryLength int
	Baselines     int
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Rules:         len(e.rules),
		ActiveAlerts:  len(e.activeAlerts),
		HistoryLength: len(e.history),
		Baselines:     len(e.baselines),
	}
}
