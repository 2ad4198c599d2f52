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

// Package credentials resolves opaque credential references (collector
// device auth, notification channel webhooks) to their secret values,
// backed by a hot-reloadable file store with a short in-memory cache.
package credentials

import "errors"

// ErrNotFound indicates the reference is permanently unknown; callers
// should treat this as a configuration error, not retry.
var ErrNotFound = errors.New("credential reference not found")

// ErrUnavailable indicates the backing store could not be reached; callers
// should treat this as transient and retry on the next collection cycle.
var ErrUnavailable = errors.New("credential store unavailable")

// Credential is the opaque record resolved for a reference. Collectors use
// Username/Secret (basic auth, API tokens) or PrivateKey (SSH). Which
// fields are populated depends on what the backing store holds; resolvers
// never validate that a field a caller needs is actually present.
type Credential struct {
	Username   string
	Secret     string
	PrivateKey string
}

// Empty reports whether c carries no material at all, the signal for the
// "reference resolved but secret is empty" case logged by the resolver.
func (c Credential) Empty() bool {
	return c.Username == "" && c.Secret == "" && c.PrivateKey == ""
}
