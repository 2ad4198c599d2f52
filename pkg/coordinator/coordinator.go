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

package coordinator

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jordigilh/netmond/pkg/collector"
	"github.com/jordigilh/netmond/pkg/device"
	"github.com/jordigilh/netmond/pkg/metrics"
	"github.com/jordigilh/netmond/pkg/storage"
)

// Config configures the coordinator's tick, worker pool, and flush policy.
type Config struct {
	TickInterval   time.Duration `yaml:"tick_interval"`
	Workers        int           `yaml:"workers" validate:"gt=0"`
	BufferCapacity int           `yaml:"buffer_capacity" validate:"gt=0"`
	FlushBatchSize int           `yaml:"flush_batch_size" validate:"gt=0"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
}

// DefaultConfig returns the coordinator configuration used when the
// operator supplies none.
func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		Workers:        10,
		BufferCapacity: 50000,
		FlushBatchSize: 1000,
		FlushInterval:  30 * time.Second,
		DrainTimeout:   10 * time.Second,
	}
}

// Coordinator owns the device registry, the due-collection schedule, a
// bounded worker pool, an in-memory buffer, and periodic flushes to
// storage.
type Coordinator struct {
	cfg      Config
	store    storage.Querier
	log      *logrus.Entry
	resolver collector.CredentialResolver

	registry *registry
	schedule *schedule
	buffer   *ringBuffer

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	collectionsInFlight int64
}

// New builds a Coordinator. Start must be called before it does any work.
func New(cfg Config, store storage.Querier, resolver collector.CredentialResolver, log *logrus.Entry) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		store:    store,
		log:      log,
		resolver: resolver,
		registry: newRegistry(),
		schedule: newSchedule(),
		buffer:   newRingBuffer(cfg.BufferCapacity),
		stopCh:   make(chan struct{}),
	}
}

// AddDevice registers a device for collection, scheduling its first poll
// immediately.
func (c *Coordinator) AddDevice(desc device.Descriptor) error {
	if err := c.registry.add(desc, c.resolver); err != nil {
		return err
	}
	c.schedule.upsert(desc.ID, time.Now())
	return nil
}

// RemoveDevice unregisters a device and drops its schedule entry.
func (c *Coordinator) RemoveDevice(deviceID string) bool {
	c.schedule.remove(deviceID)
	return c.registry.remove(deviceID)
}

// Devices lists every registered device descriptor.
func (c *Coordinator) Devices() []device.Descriptor {
	return c.registry.list()
}

// Start launches the tick loop, worker pool, and flush timer in the
// background. It returns immediately.
func (c *Coordinator) Start(ctx context.Context) {
	sem := make(chan struct{}, c.cfg.Workers)

	c.wg.Add(2)
	go c.tickLoop(ctx, sem)
	go c.flushLoop(ctx)
}

// Stop signals the coordinator to stop ticking and waits up to
// cfg.DrainTimeout for in-flight collections to finish and the buffer to
// flush, then performs one final flush regardless.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	drainCtx, cancel := context.WithTimeout(ctx, c.cfg.DrainTimeout)
	defer cancel()

	select {
	case <-done:
	case <-drainCtx.Done():
		c.log.Warn("coordinator drain timed out, flushing remaining buffer")
	}

	return c.flush(context.Background())
}

func (c *Coordinator) tickLoop(ctx context.Context, sem chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			for _, deviceID := range c.schedule.dueAsOf(now) {
				c.dispatch(ctx, deviceID, sem)
			}
		}
	}
}

func (c *Coordinator) dispatch(ctx context.Context, deviceID string, sem chan struct{}) {
	d, ok := c.registry.get(deviceID)
	if !ok {
		return
	}

	select {
	case sem <- struct{}{}:
	default:
		// Worker pool saturated: reschedule immediately rather than block
		// the tick loop, and try again on the next tick.
		c.schedule.upsert(deviceID, time.Now().Add(c.cfg.TickInterval))
		return
	}

	c.wg.Add(1)
	atomic.AddInt64(&c.collectionsInFlight, 1)
	go func() {
		defer c.wg.Done()
		defer func() { <-sem }()
		defer atomic.AddInt64(&c.collectionsInFlight, -1)

		c.collectOne(ctx, d)
		c.schedule.upsert(deviceID, time.Now().Add(d.desc.PollInterval))
	}()
}

func (c *Coordinator) collectOne(ctx context.Context, d *registeredDevice) {
	timer := metrics.NewTimer()
	points, err := d.collector.Collect(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
		c.log.WithError(err).WithField("device_id", d.desc.ID).Warn("collection failed")
	}
	elapsed := timer.Elapsed()
	timer.RecordCollection(string(d.desc.Kind), outcome)

	if len(points) == 0 {
		return
	}
	durationMs := strconv.FormatInt(elapsed.Milliseconds(), 10)
	for i, p := range points {
		metrics.RecordPoints(string(d.desc.Kind), string(p.Family), 1)
		points[i] = p.WithMetadata("collector_version", collector.Version).
			WithMetadata("collection_duration_ms", durationMs)
	}
	c.buffer.add(points)
}

func (c *Coordinator) flushLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := c.flush(ctx); err != nil {
				c.log.WithError(err).Error("periodic buffer flush failed")
			}
		default:
			if c.buffer.len() >= c.cfg.FlushBatchSize {
				if err := c.flush(ctx); err != nil {
					c.log.WithError(err).Error("size-triggered buffer flush failed")
				}
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func (c *Coordinator) flush(ctx context.Context) error {
	points := c.buffer.drain()
	if len(points) == 0 {
		return nil
	}

	timer := metrics.NewTimer()
	result, err := c.store.Store(ctx, points)
	if err != nil {
		timer.RecordStoreBatch("error", len(points))
		// Keep the drained points for the next flush attempt instead of
		// discarding them; add() re-applies the buffer's own capacity/drop
		// policy, so a sustained outage still degrades to lossy buffering
		// rather than growing without bound.
		c.buffer.add(points)
		return err
	}
	timer.RecordStoreBatch("success", result.Total)
	return nil
}

// Stats summarizes the coordinator's current runtime state.
type Stats struct {
	RegisteredDevices   int
	BufferedPoints      int
	DroppedPoints       int64
	CollectionsInFlight int64
}

// Stats reports the coordinator's current runtime state.
func (c *Coordinator) Stats() Stats {
	return Stats{
		RegisteredDevices:   c.registry.count(),
		BufferedPoints:      c.buffer.len(),
		DroppedPoints:       c.buffer.droppedCount(),
		CollectionsInFlight: atomic.LoadInt64(&c.collectionsInFlight),
	}
}
