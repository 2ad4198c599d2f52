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
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

var _ = Describe("rateLimiter", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("in-memory fallback", func() {
		It("allows up to the configured maximum within the period", func() {
			rl := newRateLimiter(nil, testEngineLogger())
			for i := 0; i < 3; i++ {
				Expect(rl.allow(ctx, "device-1|rule-1", 3, time.Minute)).To(BeTrue())
			}
			Expect(rl.allow(ctx, "device-1|rule-1", 3, time.Minute)).To(BeFalse())
		})

		It("tracks separate keys independently", func() {
			rl := newRateLimiter(nil, testEngineLogger())
			Expect(rl.allow(ctx, "device-1|rule-1", 1, time.Minute)).To(BeTrue())
			Expect(rl.allow(ctx, "device-1|rule-1", 1, time.Minute)).To(BeFalse())
			Expect(rl.allow(ctx, "device-2|rule-1", 1, time.Minute)).To(BeTrue())
		})
	})

	Describe("redis-backed", func() {
		var (
			server *miniredis.Miniredis
			client *redis.Client
		)

		BeforeEach(func() {
			var err error
			server, err = miniredis.Run()
			Expect(err).NotTo(HaveOccurred())
			client = redis.NewClient(&redis.Options{Addr: server.Addr()})
		})

		AfterEach(func() {
			client.Close()
			server.Close()
		})

		It("allows up to the configured maximum within the period", func() {
			rl := newRateLimiter(client, testEngineLogger())
			for i := 0; i < 3; i++ {
				Expect(rl.allow(ctx, "device-1|rule-1", 3, time.Minute)).To(BeTrue())
			}
			Expect(rl.allow(ctx, "device-1|rule-1", 3, time.Minute)).To(BeFalse())
		})

		It("falls back to the in-memory window once the redis client errors", func() {
			unreachable := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
			defer unreachable.Close()
			rl := newRateLimiter(unreachable, testEngineLogger())

			Expect(rl.allow(ctx, "device-1|rule-1", 2, time.Minute)).To(BeTrue())
			Expect(rl.allow(ctx, "device-1|rule-1", 2, time.Minute)).To(BeTrue())
			Expect(rl.allow(ctx, "device-1|rule-1", 2, time.Minute)).To(BeFalse())
		})

		It("expires old entries so the window rolls forward", func() {
			rl := newRateLimiter(client, testEngineLogger())
			Expect(rl.allow(ctx, "device-1|rule-1", 1, 50*time.Millisecond)).To(BeTrue())
			Expect(rl.allow(ctx, "device-1|rule-1", 1, 50*time.Millisecond)).To(BeFalse())

			time.Sleep(60 * time.Millisecond)
			Expect(rl.allow(ctx, "device-1|rule-1", 1, 50*time.Millisecond)).To(BeTrue())
		})
	})
})
