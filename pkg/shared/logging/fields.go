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

// Package logging provides a chainable structured-field builder on top of
// logrus, so every component logs the same vocabulary (component, operation,
// resource, duration, ...) instead of ad-hoc key names.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Fields is a chainable structured-field builder.
type Fields map[string]interface{}

// NewFields returns an empty builder.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(op string) Fields {
	f["operation"] = op
	return f
}

func (f Fields) Resource(resourceType, name string) Fields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	f["request_id"] = id
	return f
}

func (f Fields) TraceID(id string) Fields {
	f["trace_id"] = id
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ToLogrus converts to logrus.Fields for use with logrus.WithFields.
func (f Fields) ToLogrus() logrus.Fields {
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DatabaseFields builds the standard vocabulary for a storage-engine log line.
func DatabaseFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields builds the standard vocabulary for an HTTP request/response log line.
func HTTPFields(method, url string, statusCode int) Fields {
	return NewFields().Component("http").Method(method).URL(url).StatusCode(statusCode)
}

// DeviceFields builds the standard vocabulary for a device-collection log line.
func DeviceFields(operation, deviceID string) Fields {
	return NewFields().Component("device").Operation(operation).Resource("device", deviceID)
}

// CollectorFields builds the standard vocabulary for a collector-kind log line.
func CollectorFields(deviceKind, deviceID string) Fields {
	return NewFields().Component("collector").Custom("device_kind", deviceKind).Resource("device", deviceID)
}

// AlertFields builds the standard vocabulary for an alert-engine log line.
func AlertFields(operation, ruleID, deviceID string) Fields {
	return NewFields().Component("alert").Operation(operation).Custom("rule_id", ruleID).Resource("device", deviceID)
}

// StorageFields builds the standard vocabulary for a retention/rollup/backup log line.
func StorageFields(operation string) Fields {
	return NewFields().Component("storage").Operation(operation)
}

// PerformanceFields builds the standard vocabulary for a timed operation's outcome.
func PerformanceFields(operation string, duration time.Duration, success bool) Fields {
	return NewFields().Component("performance").Operation(operation).Duration(duration).Custom("success", success)
}

// SecurityFields builds the standard vocabulary for an authn/authz log line.
func SecurityFields(operation, subject string) Fields {
	return NewFields().Component("security").Operation(operation).Custom("subject", subject)
}

// MetricsFields builds the standard vocabulary for a recorded metric point.
func MetricsFields(operation, metricName string, value interface{}) Fields {
	return NewFields().Component("metrics").Operation(operation).Custom("metric_name", metricName).Custom("value", value)
}
