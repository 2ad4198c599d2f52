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

// Package http builds pre-configured *http.Client instances so every
// caller (scraping collectors, the webhook notification channel) gets
// consistent timeouts and connection-pool limits instead of reaching for
// http.DefaultClient.
package http

import (
	"crypto/tls"
	"net/http"
	"time"
)

// ClientConfig controls timeouts and connection pooling for a constructed client.
type ClientConfig struct {
	Timeout                 time.Duration
	MaxRetries              int
	DisableSSLVerification  bool
	MaxIdleConns            int
	IdleConnTimeout         time.Duration
	TLSHandshakeTimeout     time.Duration
	ResponseHeaderTimeout   time.Duration
}

// DefaultClientConfig returns the baseline configuration used unless a
// caller needs something tighter or looser.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:               30 * time.Second,
		MaxRetries:            3,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
}

// NewClient builds an *http.Client from config.
func NewClient(config ClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
	}
	if config.DisableSSLVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed vendor firmware UIs
	}
	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
}

// NewClientWithTimeout builds a client with default pooling but a caller-chosen timeout.
func NewClientWithTimeout(timeout time.Duration) *http.Client {
	config := DefaultClientConfig()
	config.Timeout = timeout
	return NewClient(config)
}

// NewDefaultClient builds a client with every default.
func NewDefaultClient() *http.Client {
	return NewClient(DefaultClientConfig())
}

// ScraperClientConfig tunes timeouts for the HTML-scraping collectors
// (cable modem, gateway), which talk to embedded vendor web servers that
// are often slow and sometimes present self-signed certificates.
func ScraperClientConfig() ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = 10 * time.Second
	config.MaxRetries = 1
	config.DisableSSLVerification = true
	return config
}

// StatusAPIClientConfig tunes timeouts for JSON status-endpoint collectors
// (mesh router/satellite), which are local-network and fast.
func StatusAPIClientConfig() ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = 5 * time.Second
	config.MaxRetries = 1
	return config
}

// WebhookClientConfig tunes timeouts for outbound notification delivery
// (webhook, chat webhook channels), where the response-header race matters
// more than total duration.
func WebhookClientConfig(timeout time.Duration) ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = timeout
	config.ResponseHeaderTimeout = timeout / 2
	return config
}
