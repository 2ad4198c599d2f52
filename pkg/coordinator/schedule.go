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
	"container/heap"
	"sync"
	"time"
)

// dueItem is one entry in the due-queue: a device and the time its next
// collection is owed.
type dueItem struct {
	deviceID string
	nextDue  time.Time
	index    int
}

// dueQueue is a min-heap over nextDue, so the soonest-due device is always
// at the front.
type dueQueue []*dueItem

func (q dueQueue) Len() int            { return len(q) }
func (q dueQueue) Less(i, j int) bool  { return q[i].nextDue.Before(q[j].nextDue) }
func (q dueQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *dueQueue) Push(x interface{}) {
	item := x.(*dueItem)
	item.index = len(*q)
	*q = append(*q, item)
}
func (q *dueQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// schedule tracks the next-due time for every registered device and hands
// out the devices that are due as of a given tick.
type schedule struct {
	mu    sync.Mutex
	queue dueQueue
	byID  map[string]*dueItem
}

func newSchedule() *schedule {
	return &schedule{byID: make(map[string]*dueItem)}
}

// upsert schedules deviceID for its next collection. If it is already
// scheduled, its due time is updated in place.
func (s *schedule) upsert(deviceID string, nextDue time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, exists := s.byID[deviceID]; exists {
		item.nextDue = nextDue
		heap.Fix(&s.queue, item.index)
		return
	}

	item := &dueItem{deviceID: deviceID, nextDue: nextDue}
	s.byID[deviceID] = item
	heap.Push(&s.queue, item)
}

// remove drops deviceID from the schedule entirely.
func (s *schedule) remove(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.byID[deviceID]
	if !exists {
		return
	}
	heap.Remove(&s.queue, item.index)
	delete(s.byID, deviceID)
}

// dueAsOf pops and returns every device whose nextDue is at or before now,
// leaving the rest scheduled.
func (s *schedule) dueAsOf(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []string
	for s.queue.Len() > 0 && !s.queue[0].nextDue.After(now) {
		item := heap.Pop(&s.queue).(*dueItem)
		delete(s.byID, item.deviceID)
		due = append(due, item.deviceID)
	}
	return due
}
