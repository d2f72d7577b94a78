package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olsontechllc/netbox-pdns/internal/config"
	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/olsontechllc/netbox-pdns/internal/gate"
	"github.com/olsontechllc/netbox-pdns/internal/ingest/mqtt"
	"github.com/olsontechllc/netbox-pdns/internal/ingest/webhook"
	"github.com/olsontechllc/netbox-pdns/internal/reconcile"
	"github.com/olsontechllc/netbox-pdns/internal/replicaclient"
	"github.com/olsontechllc/netbox-pdns/internal/scheduler"
	"github.com/olsontechllc/netbox-pdns/internal/sourceclient"
	"github.com/olsontechllc/netbox-pdns/internal/status"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	startTime := time.Now()
	appState := status.New(startTime)
	appState.SetMessageBusEnabled(cfg.MQTTEnabled)

	src := sourceclient.New(cfg.NBURL, cfg.NBToken, nil)
	rep := replicaclient.New(cfg.PDNSURL, cfg.PDNSToken, cfg.PDNSServerID, logger)

	selfFQDN, err := src.GetNameserverFQDN(context.Background(), cfg.NBNSID)
	if err != nil {
		log.Fatalf("could not resolve configured nameserver identity: %v", err)
	}

	g := gate.New(logger)
	srcAdapter := reconcile.SourceClientAdapter{Client: src}
	repAdapter := reconcile.ReplicaClientAdapter{Client: rep}

	reconciler := reconcile.New(srcAdapter, repAdapter, cfg.NBNSID, selfFQDN, nil, logger)
	orchestrator := reconcile.NewOrchestrator(srcAdapter, repAdapter, reconciler, g, cfg.NBNSID, logger)

	var bus *mqtt.Bus
	if cfg.MQTTEnabled {
		bus = mqtt.New(mqtt.Config{
			BrokerURL:          cfg.MQTTBrokerURL,
			ClientID:           cfg.MQTTClientID,
			Username:           cfg.MQTTUsername,
			Password:           cfg.MQTTPassword,
			TopicPrefix:        cfg.MQTTTopicPrefix,
			QoS:                byte(cfg.MQTTQoS),
			KeepAlive:          cfg.MQTTKeepalive,
			ReconnectDelay:     time.Duration(cfg.MQTTReconnectDelay) * time.Second,
			Logger:             logger,
			OnConnectionChange: appState.SetMessageBusConnected,
			Handler: func(zoneName string) {
				if err := orchestrator.ReconcileZone(context.Background(), zoneName, domain.SourceMessageBus); err != nil {
					logger.Error("message-bus-triggered reconcile failed", "zone", zoneName, "error", err)
				}
			},
		})
	}

	sched, err := scheduler.New(cfg.SyncCrontab, func(ctx context.Context) error {
		_, err := orchestrator.FullSync(ctx, domain.SourceSchedule)
		return err
	}, logger)
	if err != nil {
		log.Fatalf("invalid scheduler configuration: %v", err)
	}

	handler := webhook.New(webhook.Config{
		APIKey:        cfg.APIKey,
		WebhookSecret: cfg.WebhookSecret,
		State:         appState,
		MQTTStatus: func() webhook.MQTTStatus {
			if bus == nil {
				return webhook.MQTTStatus{Enabled: false}
			}
			return webhook.MQTTStatus{Enabled: true, Connected: bus.Connected()}
		},
		SchedulerStatus: func() webhook.SchedulerStatus {
			return webhook.SchedulerStatus{Running: sched.Running(), JobsCount: sched.JobsCount()}
		},
		ReconcileZone: func(zoneName string, source domain.IntentSource) error {
			return orchestrator.ReconcileZone(context.Background(), zoneName, source)
		},
		FullSync: func(source domain.IntentSource) error {
			_, err := orchestrator.FullSync(context.Background(), source)
			return err
		},
		Logger: logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{Addr: ":8000", Handler: mux}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()

	go func() {
		appState.SetInitialSyncStarted()
		_, err := orchestrator.FullSync(context.Background(), domain.SourceManual)
		if err != nil {
			appState.SetInitialSyncError(err)
			logger.Error("initial full sync failed", "error", err)
			return
		}
		appState.SetInitialSyncCompleted()
		logger.Info("initial full sync completed")
	}()

	sched.Start()
	if bus != nil {
		bus.Start()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	if bus != nil {
		bus.Stop()
	}
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
