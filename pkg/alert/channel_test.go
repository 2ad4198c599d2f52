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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WebhookChannel", func() {
	It("POSTs the alert as JSON and reports success on a 2xx response", func() {
		var received map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ch := NewWebhookChannel(WebhookConfig{URL: server.URL})
		result := ch.Send(context.Background(), Alert{ID: "a1", RuleName: "Offline"})

		Expect(result.Success).To(BeTrue())
		Expect(received).To(HaveKey("alert"))
	})

	It("reports failure on a non-2xx response", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		ch := NewWebhookChannel(WebhookConfig{URL: server.URL})
		result := ch.Send(context.Background(), Alert{ID: "a1"})

		Expect(result.Success).To(BeFalse())
		Expect(result.Error).To(ContainSubstring("500"))
	})

	It("fails fast when no URL is configured", func() {
		ch := NewWebhookChannel(WebhookConfig{})
		result := ch.Send(context.Background(), Alert{ID: "a1"})
		Expect(result.Success).To(BeFalse())
	})

	It("attaches the bearer token and custom headers", func() {
		var gotAuth, gotCustom string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotCustom = r.Header.Get("X-Custom")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ch := NewWebhookChannel(WebhookConfig{
			URL:       server.URL,
			AuthToken: "secret-token",
			Headers:   map[string]string{"X-Custom": "value"},
		})
		ch.Send(context.Background(), Alert{ID: "a1"})

		Expect(gotAuth).To(Equal("Bearer secret-token"))
		Expect(gotCustom).To(Equal("value"))
	})
})

var _ = Describe("InAppStreamChannel", func() {
	It("retains up to its capacity, evicting the oldest first", func() {
		ch := NewInAppStreamChannel(2)
		ch.Send(context.Background(), Alert{ID: "a1"})
		ch.Send(context.Background(), Alert{ID: "a2"})
		ch.Send(context.Background(), Alert{ID: "a3"})

		recent := ch.Recent(10)
		Expect(recent).To(HaveLen(2))
		Expect(recent[0].ID).To(Equal("a2"))
		Expect(recent[1].ID).To(Equal("a3"))
	})

	It("limits Recent to the requested count", func() {
		ch := NewInAppStreamChannel(10)
		for i := 0; i < 5; i++ {
			ch.Send(context.Background(), Alert{ID: "a", TriggeredAt: time.Now()})
		}
		Expect(ch.Recent(2)).To(HaveLen(2))
	})
})

var _ = Describe("ChatWebhookChannel", func() {
	It("fails fast when no webhook URL is configured", func() {
		ch := NewChatWebhookChannel("")
		result := ch.Send(context.Background(), Alert{ID: "a1"})
		Expect(result.Success).To(BeFalse())
	})
})
