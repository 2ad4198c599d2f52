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
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// rateLimiter enforces "no more than maxPerPeriod notifications per key in
// a rolling period" using a Redis sorted set (score = event time) when a
// client is available, falling back to an in-memory window on Redis
// errors or when no client is configured at all.
type rateLimiter struct {
	redis *redis.Client
	log   *logrus.Entry

	mu     sync.Mutex
	memory map[string][]time.Time
}

func newRateLimiter(client *redis.Client, log *logrus.Entry) *rateLimiter {
	return &rateLimiter{redis: client, log: log, memory: make(map[string][]time.Time)}
}

// allow reports whether an event for key is permitted without exceeding
// maxPerPeriod events per rolling period, recording the event if so.
func (r *rateLimiter) allow(ctx context.Context, key string, maxPerPeriod int, period time.Duration) bool {
	if r.redis != nil {
		allowed, err := r.allowRedis(ctx, key, maxPerPeriod, period)
		if err == nil {
			return allowed
		}
		r.log.WithError(err).Warn("rate limiter redis unavailable, falling back to in-memory window")
	}
	return r.allowMemory(key, maxPerPeriod, period)
}

func (r *rateLimiter) allowRedis(ctx context.Context, key string, maxPerPeriod int, period time.Duration) (bool, error) {
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-period).UnixNano(), 10)

	if err := r.redis.ZRemRangeByScore(ctx, key, "0", cutoff).Err(); err != nil {
		return false, err
	}
	count, err := r.redis.ZCard(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count >= int64(maxPerPeriod) {
		return false, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	if err := r.redis.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member}).Err(); err != nil {
		return false, err
	}
	r.redis.Expire(ctx, key, period)
	return true, nil
}

func (r *rateLimiter) allowMemory(key string, maxPerPeriod int, period time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-period)

	kept := r.memory[key][:0]
	for _, t := range r.memory[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= maxPerPeriod {
		r.memory[key] = kept
		return false
	}

	r.memory[key] = append(kept, now)
	return true
}
