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

// Command netmond is the network-monitoring daemon: it loads its
// configuration, wires the credential resolver, coordinator, storage
// engine, and alert engine together, and serves the admin API until
// told to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/netmond/internal/config"
	"github.com/jordigilh/netmond/pkg/alert"
	"github.com/jordigilh/netmond/pkg/coordinator"
	"github.com/jordigilh/netmond/pkg/credentials"
	"github.com/jordigilh/netmond/pkg/httpapi"
	"github.com/jordigilh/netmond/pkg/storage"
)

func main() {
	configPath := flag.String("config", "/etc/netmond/netmond.yaml", "path to the configuration file")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, log); err != nil {
		log.WithError(err).Fatal("netmond exited with an error")
	}
}

func run(ctx context.Context, configPath string, log *logrus.Logger) error {
	watcher, err := config.NewWatcher(configPath, log.WithField("component", "config"))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := watcher.StartWatching(ctx); err != nil {
		return fmt.Errorf("watch configuration: %w", err)
	}
	defer watcher.Close()

	cfg := watcher.Current()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	credStore, err := credentials.NewFileStore(cfg.CredentialsDir, log.WithField("component", "credentials"))
	if err != nil {
		return fmt.Errorf("open credentials store: %w", err)
	}
	if err := credStore.StartWatching(ctx); err != nil {
		return fmt.Errorf("watch credentials directory: %w", err)
	}
	defer credStore.Close()
	resolver := credentials.NewResolver(credStore, log.WithField("component", "credentials"))

	store, err := storage.Connect(&cfg.Storage, log.WithField("component", "storage"))
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	defer store.Close()

	coord := coordinator.New(cfg.Coordinator, store, resolver, log.WithField("component", "coordinator"))
	for _, d := range cfg.Devices {
		if err := coord.AddDevice(d.ToDescriptor()); err != nil {
			log.WithError(err).WithField("device_id", d.ID).Warn("skipping device with an invalid descriptor")
		}
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	engine := alert.New(cfg.Alert.Config, store, redisClient, log.WithField("component", "alert"))
	wireChannels(engine, cfg.Alert)
	for _, r := range cfg.Rules {
		engine.AddRule(r.ToRule())
	}

	coord.Start(ctx)
	engine.Start(ctx)

	mux := httpapi.NewRouter(store, engine, log.WithField("component", "httpapi"), httpapi.CORSFromEnvironment())
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("serving admin API")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("admin API server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("admin API server did not shut down cleanly")
	}
	if err := engine.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("alert engine did not stop cleanly")
	}
	if err := coord.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("coordinator did not stop cleanly")
	}
	return nil
}

// wireChannels registers the notification channels the operator configured.
// The in-app stream channel is always available since the admin API
// surfaces alert history regardless of any external channel configuration.
func wireChannels(engine *alert.Engine, cfg config.AlertConfig) {
	inAppBuffer := cfg.InAppBuffer
	if inAppBuffer <= 0 {
		inAppBuffer = 100
	}
	engine.AddChannel(alert.NewInAppStreamChannel(inAppBuffer))

	if cfg.Email != nil {
		engine.AddChannel(alert.NewEmailChannel(cfg.Email.ToAlertConfig()))
	}
	if cfg.Webhook != nil {
		engine.AddChannel(alert.NewWebhookChannel(cfg.Webhook.ToAlertConfig()))
	}
	if cfg.ChatWebhook != "" {
		engine.AddChannel(alert.NewChatWebhookChannel(cfg.ChatWebhook))
	}
}
