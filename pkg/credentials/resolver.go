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

package credentials

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

// cacheTTL is how long a resolved credential is trusted before the next
// lookup re-queries the backing store.
const cacheTTL = 5 * time.Minute

// Store is the backing-store contract a Resolver queries on cache miss.
type Store interface {
	Get(ctx context.Context, reference string) (Credential, error)
}

type cacheEntry struct {
	cred      Credential
	expiresAt time.Time
}

// Resolver answers Lookup(reference) against a cached, coalesced,
// circuit-broken view of a backing Store. It never persists anything
// beyond what the store already holds.
type Resolver struct {
	store   Store
	log     *logrus.Entry
	mu      sync.RWMutex
	cache   map[string]cacheEntry
	group   singleflight.Group
	breaker *gobreaker.CircuitBreaker
}

// NewResolver wraps store with a cache, a singleflight coalescer, and a
// circuit breaker that trips after repeated backing-store failures so a
// down store doesn't get hammered on every cache miss.
func NewResolver(store Store, log *logrus.Entry) *Resolver {
	r := &Resolver{
		store: store,
		log:   log,
		cache: map[string]cacheEntry{},
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "credential-store",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// ErrNotFound means the store answered and simply has no such
		// reference; it must never count toward tripping the breaker the
		// way a real unreachable-store failure does.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})
	return r
}

// Lookup resolves reference, serving from cache when fresh. Returns
// ErrNotFound when the store has no such reference, ErrUnavailable when
// the store could not be reached (including while the breaker is open).
func (r *Resolver) Lookup(ctx context.Context, reference string) (Credential, error) {
	if cred, ok := r.cachedValue(reference); ok {
		return cred, nil
	}

	result, err, _ := r.group.Do(reference, func() (interface{}, error) {
		cred, err := r.fetch(ctx, reference)
		if err != nil {
			return Credential{}, err
		}
		r.mu.Lock()
		r.cache[reference] = cacheEntry{cred: cred, expiresAt: time.Now().Add(cacheTTL)}
		r.mu.Unlock()
		return cred, nil
	})
	if err != nil {
		return Credential{}, err
	}
	return result.(Credential), nil
}

func (r *Resolver) cachedValue(reference string) (Credential, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[reference]
	if !ok || time.Now().After(entry.expiresAt) {
		return Credential{}, false
	}
	return entry.cred, true
}

func (r *Resolver) fetch(ctx context.Context, reference string) (Credential, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		cred, err := r.store.Get(ctx, reference)
		if err != nil {
			return Credential{}, err
		}
		return cred, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credential{}, ErrNotFound
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.log.WithField("reference", reference).Warn("credential store circuit open, reporting unavailable")
			return Credential{}, ErrUnavailable
		}
		return Credential{}, ErrUnavailable
	}
	return result.(Credential), nil
}

// ValidateRefs checks that every reference in refs resolves, returning an
// error naming the first unresolvable one, so a caller can reject a
// configuration that references a credential the store doesn't have.
func (r *Resolver) ValidateRefs(ctx context.Context, refs []string) error {
	for _, ref := range refs {
		if _, err := r.Lookup(ctx, ref); err != nil {
			return errUnresolvedRef(ref, err)
		}
	}
	return nil
}

type unresolvedRefError struct {
	reference string
	cause     error
}

func (e *unresolvedRefError) Error() string {
	return "unresolved credential reference " + e.reference + ": " + e.cause.Error()
}

func (e *unresolvedRefError) Unwrap() error { return e.cause }

func errUnresolvedRef(reference string, cause error) error {
	return &unresolvedRefError{reference: reference, cause: cause}
}
