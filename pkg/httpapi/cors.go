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

package httpapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/cors"
)

// CORSOptions configures the admin API's cross-origin policy.
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// CORSFromEnvironment builds CORSOptions from NM_CORS_* environment
// variables, defaulting to a permissive development policy when unset.
func CORSFromEnvironment() CORSOptions {
	opts := CORSOptions{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}

	if v := os.Getenv("NM_CORS_ALLOWED_ORIGINS"); v != "" {
		opts.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("NM_CORS_ALLOWED_METHODS"); v != "" {
		opts.AllowedMethods = strings.Split(v, ",")
	}
	if v := os.Getenv("NM_CORS_ALLOWED_HEADERS"); v != "" {
		opts.AllowedHeaders = strings.Split(v, ",")
	}
	if v := os.Getenv("NM_CORS_EXPOSED_HEADERS"); v != "" {
		opts.ExposedHeaders = strings.Split(v, ",")
	}
	if v := os.Getenv("NM_CORS_ALLOW_CREDENTIALS"); v != "" {
		opts.AllowCredentials = v == "true"
	}
	if v := os.Getenv("NM_CORS_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxAge = n
		}
	}

	return opts
}

// IsProduction reports whether the configured origin list is a safe,
// explicit whitelist rather than a wildcard (or an empty, likely
// misconfigured, list).
func (o CORSOptions) IsProduction() bool {
	if len(o.AllowedOrigins) == 0 {
		return false
	}
	for _, origin := range o.AllowedOrigins {
		if origin == "*" {
			return false
		}
	}
	return true
}

// CORSMiddleware builds the go-chi/cors handler for these options.
func CORSMiddleware(opts CORSOptions) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   opts.AllowedMethods,
		AllowedHeaders:   opts.AllowedHeaders,
		ExposedHeaders:   opts.ExposedHeaders,
		AllowCredentials: opts.AllowCredentials,
		MaxAge:           opts.MaxAge,
	})
}
