package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mkulagin/groundstation/internal/sensor/climate"
	"github.com/mkulagin/groundstation/internal/sensor/geiger"
	"github.com/mkulagin/groundstation/internal/sensor/gps"
	"github.com/mkulagin/groundstation/internal/station"
	"github.com/mkulagin/groundstation/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	aggregator, cleanup := createAggregator(config, store, logger)
	defer cleanup()

	if config.Poll.Enabled {
		scheduler := cron.New()
		if _, err = scheduler.AddFunc(config.Poll.Schedule, func() {
			if _, _, err := aggregator.SampleAndStore(ctx); err != nil {
				logger.Error("scheduled cycle failed", slog.String("error", err.Error()))
			}
		}); err != nil {
			return fmt.Errorf("scheduling poller: %w", err)
		}

		logger.Info("background poller enabled", slog.String("schedule", config.Poll.Schedule))
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:    config.Server.ListenAddr,
		Handler: newMux(aggregator, store, logger),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", config.Server.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err = <-serveErr:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func createAggregator(config *Config, store *storage.Store, logger *slog.Logger) (*station.Aggregator, func()) {
	position := gps.New(gps.Config{Address: config.GPS.Address}, gps.WithLogger(logger))

	// A probe that cannot be opened is a transport failure, but it must not
	// take the station down: the climate fields simply stay absent while the
	// condition is reported.
	cleanup := func() {}
	var probe climate.Probe
	bme, err := climate.NewBME280(config.Climate.I2CBus, config.Climate.Address)
	if err != nil {
		logger.Error("climate probe unavailable", slog.String("error", err.Error()))
		probe = climate.ProbeFunc(func() (float64, float64, error) {
			return 0, 0, err
		})
	} else {
		probe = bme
		cleanup = func() {
			if err := bme.Close(); err != nil {
				logger.Warn("closing climate probe", slog.String("error", err.Error()))
			}
		}
	}

	climateSource := climate.New(probe, climate.Config{
		Retries:    config.Climate.Retries,
		RetryDelay: time.Duration(config.Climate.RetryDelay),
	}, climate.WithLogger(logger))

	radiation := geiger.New(geiger.Config{
		Port:        config.Geiger.Port,
		Baud:        config.Geiger.Baud,
		ReadTimeout: time.Duration(config.Geiger.ReadTimeout),
	}, geiger.WithLogger(logger))

	aggregator := station.New(position, climateSource, radiation, store,
		station.WithLogger(logger),
		station.WithPositionTimeout(time.Duration(config.GPS.Timeout)),
		station.WithRadiationTimeout(time.Duration(config.Geiger.ReadTimeout)),
	)

	return aggregator, cleanup
}

func createStorage(config *StorageConfig) (*storage.Store, error) {
	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory %s: %w", dir, err)
		}
	}

	return storage.New(config.Path), nil
}
