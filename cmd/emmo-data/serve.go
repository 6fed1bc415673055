package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	commoncfg "emmo-data/internal/common/config"
	"emmo-data/internal/common/database"
	"emmo-data/internal/common/mqtt"
	commonredis "emmo-data/internal/common/redis"
	"emmo-data/internal/config"
	httpapi "emmo-data/internal/http"
	"emmo-data/internal/metrics"
	"emmo-data/internal/notify"
	"emmo-data/internal/objectstore"
	"emmo-data/internal/repository"
	"emmo-data/internal/service"
	"emmo-data/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openDB(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	// Redis: dashboard cache + event stream
	var (
		cache       store.KV
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient = commonredis.NewRedisClient(&cfg.Redis.RedisConfig)
		defer redisClient.Close()
		if err := commonredis.Ping(cmd.Context(), redisClient); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache = store.NewRedisKV(redisClient)
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	sinks := notify.NewMulti()
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT.MQTTConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to mqtt: %w", err)
		}
		defer client.Disconnect(250)
		sinks.Add("mqtt", notify.NewMQTTNotifier(client, cfg.MQTT.Topic, cfg.MQTT.QoS))
		log.Info("MQTT connected", zap.String("broker", cfg.MQTT.Broker))
	}
	if cfg.Webhook.URL != "" {
		sinks.Add("webhook", notify.NewWebhookNotifier(cfg.Webhook.URL))
	}
	if cfg.EventStream.Enabled {
		sinks.Add("stream", notify.NewStreamNotifier(redisClient, cfg.EventStream.Name))
	}
	var notifier notify.Notifier
	if sinks.Len() > 0 {
		notifier = sinks
	}

	var objects objectstore.Store
	if cfg.Storage.Enabled {
		s, err := objectstore.NewMinIOStore(objectstore.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Secure:    cfg.Storage.Secure,
		})
		if err != nil {
			return fmt.Errorf("failed to create object store: %w", err)
		}
		if err := s.EnsureBucket(cmd.Context()); err != nil {
			return fmt.Errorf("failed to prepare bucket: %w", err)
		}
		objects = s
		log.Info("Document storage enabled",
			zap.String("endpoint", cfg.Storage.Endpoint),
			zap.String("bucket", cfg.Storage.Bucket),
		)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Repositories
	drivesRepo := repository.NewSQLDrivesRepository(db)
	partsRepo := repository.NewSQLPartsRepository(db)
	inspectionsRepo := repository.NewSQLInspectionsRepository(db)
	recordsRepo := repository.NewSQLMaintenanceRecordsRepository(db, log)
	documentsRepo := repository.NewSQLDocumentsRepository(db)
	dashboardRepo := repository.NewSQLDashboardRepository(db)

	// Services
	driveSvc := service.NewDriveService(drivesRepo, partsRepo, log)
	partSvc := service.NewPartService(partsRepo, log)
	inspectionSvc := service.NewInspectionService(inspectionsRepo, drivesRepo, log)
	maintenanceSvc := service.NewMaintenanceService(recordsRepo, drivesRepo, partsRepo, notifier, m, log)
	dashboardSvc := service.NewDashboardService(dashboardRepo, recordsRepo, cache, cfg.Dashboard.CacheTTL, log)
	importSvc := service.NewImportService(drivesRepo, partsRepo, m, log)
	exportSvc := service.NewExportService(recordsRepo, drivesRepo, partsRepo, log)
	documentSvc := service.NewDocumentService(documentsRepo, recordsRepo, objects, cfg.HTTP.UploadMaxBytes, log)

	router := httpapi.NewRouter(m, log)
	router.RegisterRoutes(httpapi.Handlers{
		Drives:      httpapi.NewDrivesHandler(driveSvc, importSvc, cfg.HTTP.UploadMaxBytes, log),
		Parts:       httpapi.NewPartsHandler(partSvc, importSvc, cfg.HTTP.UploadMaxBytes, log),
		Inspections: httpapi.NewInspectionsHandler(inspectionSvc, log),
		Maintenance: httpapi.NewMaintenanceHandler(maintenanceSvc, exportSvc, documentSvc, cfg.HTTP.UploadMaxBytes, log),
		Dashboard:   httpapi.NewDashboardHandler(dashboardSvc, log),
	})

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("db_driver", db.DriverName()),
			zap.Int("event_sinks", sinks.Len()),
		)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server stopped", zap.Error(err))
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

// openDB connects to the configured database and applies pending migrations.
// An unreachable Postgres falls back to the local SQLite file.
func openDB(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sqlx.DB, error) {
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		if cfg.Database.Driver != commoncfg.DriverPostgres {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Warn("Postgres unavailable, falling back to sqlite",
			zap.String("path", cfg.Database.Path),
			zap.Error(err),
		)
		db, err = database.NewSQLiteDB(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite fallback: %w", err)
		}
	}

	applied, err := repository.Migrate(ctx, db)
	if err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if applied > 0 {
		log.Info("Database migrated", zap.Int("applied", applied), zap.String("driver", db.DriverName()))
	}
	return db, nil
}
