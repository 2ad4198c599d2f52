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

package device

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueType tags the scalar kind carried by a Value, persisted alongside
// the encoded bytes so storage can decode without guessing.
type ValueType string

const (
	ValueTypeInt    ValueType = "int"
	ValueTypeFloat  ValueType = "float"
	ValueTypeBool   ValueType = "bool"
	ValueTypeString ValueType = "string"
	ValueTypeJSON   ValueType = "json"
)

// Value is a tagged scalar: exactly one field is meaningful, selected by Type.
type Value struct {
	Type    ValueType
	Int     int64
	Float   float64
	Bool    bool
	Str     string
	JSONRaw []byte
}

func IntValue(v int64) Value    { return Value{Type: ValueTypeInt, Int: v} }
func FloatValue(v float64) Value { return Value{Type: ValueTypeFloat, Float: v} }
func BoolValue(v bool) Value    { return Value{Type: ValueTypeBool, Bool: v} }
func StringValue(v string) Value { return Value{Type: ValueTypeString, Str: v} }

// JSONValue marshals v and tags the result as a JSON blob.
func JSONValue(v interface{}) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("marshal json value: %w", err)
	}
	return Value{Type: ValueTypeJSON, JSONRaw: raw}, nil
}

// AsFloat64 parses the value as a number for predicate evaluation. Booleans
// convert to 0/1; strings are parsed if numeric; JSON blobs are not
// convertible and return an error.
func (v Value) AsFloat64() (float64, error) {
	switch v.Type {
	case ValueTypeInt:
		return float64(v.Int), nil
	case ValueTypeFloat:
		return v.Float, nil
	case ValueTypeBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case ValueTypeString:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric: %w", v.Str, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value of type %s is not numeric", v.Type)
	}
}

// String renders the value for logging, substring matching, and templating.
func (v Value) String() string {
	switch v.Type {
	case ValueTypeInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueTypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueTypeBool:
		return strconv.FormatBool(v.Bool)
	case ValueTypeString:
		return v.Str
	case ValueTypeJSON:
		return string(v.JSONRaw)
	default:
		return ""
	}
}
