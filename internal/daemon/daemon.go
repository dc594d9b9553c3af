// Package daemon assembles the long-running hushd service: event ingest,
// the notification pipeline, the REST API and the telemetry endpoint.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/hush-home/hushd/internal/api"
	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/mqtt"
	"github.com/hush-home/hushd/internal/notification"
	"github.com/hush-home/hushd/internal/observability"
	"github.com/hush-home/hushd/internal/telemetry"
)

// Run starts the daemon and blocks until a shutdown signal arrives. All
// subsystems share one quit channel; closing it begins an orderly shutdown.
func Run(settings *conf.Settings) error {
	if err := datastore.InitializeLogger(""); err != nil {
		log.Printf("⚠️  Failed to initialize datastore log file: %v", err)
	}
	notification.InitializeFileLogger(settings.Debug)

	// Sentry is opt-in; a broken DSN should not keep the daemon down.
	if err := telemetry.Init(settings); err != nil {
		log.Printf("⚠️  Error reporting disabled: %v", err)
	}

	if info, err := host.Info(); err == nil {
		fmt.Printf("System details: %s %s %s\n", info.OS, info.Platform, info.PlatformVersion)
	}
	fmt.Printf("Starting hushd %s. Quiet hours enabled: %v, retention: %d days\n",
		settings.Version,
		settings.Notification.QuietHours.Enabled,
		settings.Notification.RetentionDays)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	store := datastore.New(settings)
	if store == nil {
		return errors.Newf("no database backend enabled, enable sqlite or mysql output").
			Component("daemon").
			Category(errors.CategoryConfiguration).
			Build()
	}
	store.SetMetrics(metrics.Datastore)
	if err := store.Open(); err != nil {
		return err
	}
	defer closeDataStore(store)

	// One sweep at startup clears history accumulated while the daemon was
	// down; after that the store sweeps on every insert.
	if removed, err := store.PruneExpired(); err != nil {
		log.Printf("⚠️  Startup retention sweep failed: %v", err)
	} else if removed > 0 {
		log.Printf("Startup retention sweep removed %d expired notifications", removed)
	}

	if err := notification.Initialize(settings, store, metrics.Notification); err != nil {
		return fmt.Errorf("error initializing notification service: %w", err)
	}

	// quitChan signals all subsystems to stop.
	quitChan := make(chan struct{})
	var wg sync.WaitGroup

	var server *api.Server
	if settings.WebServer.Enabled {
		server, err = api.NewServer(settings, store, metrics)
		if err != nil {
			return fmt.Errorf("error initializing API server: %w", err)
		}
		server.Start(&wg, quitChan)
	}

	consumer := startEventConsumer(&wg, settings, metrics, quitChan)
	if server != nil && consumer != nil {
		server.Controller().SetMQTTConnectedFunc(consumer.Client().IsConnected)
	}

	startTelemetryEndpoint(&wg, settings, metrics, quitChan)
	monitorShutdownSignals(quitChan)

	<-quitChan

	// Wait for the servers to drain, then stop the pipeline so in-flight
	// deliveries finish before the store closes.
	wg.Wait()
	if service := notification.GetService(); service != nil {
		service.Stop()
	}
	telemetry.Shutdown()

	return nil
}

// startEventConsumer subscribes the MQTT ingest to the pipeline when it is
// enabled. A broker that is down at startup is retried in the background.
// The returned consumer is nil when the ingest is disabled or misconfigured.
func startEventConsumer(wg *sync.WaitGroup, settings *conf.Settings, m *observability.Metrics, quitChan <-chan struct{}) *mqtt.Consumer {
	if !settings.Ingest.MQTT.Enabled {
		return nil
	}

	sink := func(ctx context.Context, event notification.Event) error {
		service := notification.GetService()
		if service == nil {
			return notification.ErrNotConfigured
		}
		_, _, err := service.ProcessEvent(ctx, event)
		return err
	}

	consumer, err := mqtt.NewConsumer(settings, sink, m.MQTT)
	if err != nil {
		log.Printf("⚠️  MQTT ingest disabled: %v", err)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := consumer.Start(ctx); err != nil {
		cancel()
		log.Printf("⚠️  MQTT ingest disabled: %v", err)
		return nil
	}

	wg.Go(func() {
		<-quitChan
		cancel()
		consumer.Stop()
	})

	return consumer
}

// startTelemetryEndpoint starts the Prometheus scrape listener when
// telemetry is enabled in the settings.
func startTelemetryEndpoint(wg *sync.WaitGroup, settings *conf.Settings, m *observability.Metrics, quitChan <-chan struct{}) {
	if !settings.Telemetry.Enabled {
		return
	}

	endpoint, err := observability.NewEndpoint(settings, m)
	if err != nil {
		log.Printf("⚠️  Error initializing telemetry endpoint: %v", err)
		return
	}
	endpoint.Start(wg, quitChan)
}

// monitorShutdownSignals listens for SIGINT and SIGTERM and triggers the
// application shutdown process.
func monitorShutdownSignals(quitChan chan struct{}) {
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		<-sigChan

		log.Println("Received shutdown signal, stopping")
		close(quitChan)
	}()
}

// closeDataStore attempts to close the database connection and logs the result.
func closeDataStore(store datastore.Interface) {
	if err := store.Close(); err != nil {
		log.Printf("Failed to close database: %v", err)
	} else {
		log.Println("Successfully closed database")
	}
}
