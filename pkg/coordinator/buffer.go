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
	"sync"

	"github.com/jordigilh/netmond/pkg/device"
)

// ringBuffer holds points collected since the last flush to storage. Once
// it reaches its high-water mark, the oldest points are dropped to make
// room for new ones rather than blocking collection — a storage outage
// degrades to lossy buffering instead of back-pressuring the whole pipeline.
type ringBuffer struct {
	mu       sync.Mutex
	points   []device.Point
	capacity int
	dropped  int64
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{capacity: capacity}
}

// add appends points, evicting the oldest entries if capacity is exceeded.
func (b *ringBuffer) add(points []device.Point) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.points = append(b.points, points...)
	if overflow := len(b.points) - b.capacity; overflow > 0 {
		b.points = b.points[overflow:]
		b.dropped += int64(overflow)
	}
}

// drain removes and returns every buffered point.
func (b *ringBuffer) drain() []device.Point {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.points
	b.points = nil
	return out
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.points)
}

func (b *ringBuffer) droppedCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
