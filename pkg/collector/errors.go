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

package collector

import (
	"context"
	"errors"
	"time"

	"github.com/jordigilh/netmond/pkg/device"
	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
)

// classify buckets a collection failure for the collection_error point's
// error_kind metadata field.
func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case netmonderrors.IsRetryable(err):
		return "transient"
	default:
		return "error"
	}
}

// errorPoint builds the synthetic collection_error point spec.md §4.B
// requires on any collection failure.
func errorPoint(desc device.Descriptor, family device.Family, err error) device.Point {
	return device.CollectionErrorPoint(desc.ID, desc.Name, desc.Kind, family, classify(err), err.Error(), time.Now())
}
