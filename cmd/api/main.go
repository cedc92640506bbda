package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/weni-ai/catalog-sync/config"
	_ "github.com/weni-ai/catalog-sync/docs"
	"github.com/weni-ai/catalog-sync/internal/adapters/cache"
	"github.com/weni-ai/catalog-sync/internal/adapters/logger"
	"github.com/weni-ai/catalog-sync/internal/adapters/messaging"
	postgres "github.com/weni-ai/catalog-sync/internal/adapters/storage"
	"github.com/weni-ai/catalog-sync/internal/api"
	"github.com/weni-ai/catalog-sync/internal/api/handlers"
	"github.com/weni-ai/catalog-sync/internal/clients/catalogapi"
	"github.com/weni-ai/catalog-sync/internal/clients/resilient"
	"github.com/weni-ai/catalog-sync/internal/clients/source"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/domain/pipeline"
	"github.com/weni-ai/catalog-sync/internal/domain/queue"
	"github.com/weni-ai/catalog-sync/internal/domain/services"
	"github.com/weni-ai/catalog-sync/internal/domain/uploader"
	"github.com/weni-ai/catalog-sync/internal/security"
	"github.com/weni-ai/catalog-sync/internal/utils"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// метрики для Prometheus
var (
	httpDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_durations_seconds",
		Help:    "Длительность HTTP запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	requestsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Общее количество HTTP запросов",
	}, []string{"path", "method", "status"})
)

// @title Catalog Sync API
// @version 1.0
// @description Сервис синхронизации каталогов продуктов
// @BasePath /
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	postgresCon, err := utils.GenerateConnectionString(
		cfg.Postgres.Host,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
		cfg.Postgres.Port,
		cfg.Postgres.PoolSize,
		cfg.Postgres.Timeout,
	)
	if err != nil {
		fmt.Printf("Ошибка инициализации строки подключения базы: %v\n", err)
		os.Exit(1)
	}

	db, err := postgres.NewPostgresStorage(ctx, postgresCon)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer db.Close()
	log.Info("Хранилище инициализировано")

	cacheClient, err := cache.NewRedisCache(
		ctx,
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации кэша", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer cacheClient.Close()
	log.Info("Кэш инициализирован")

	messagingClient, err := messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.Kafka.GroupID, log)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer messagingClient.Close()
	log.Info("Система обмена сообщениями инициализирована")

	privateKey, err := os.ReadFile(cfg.Security.JWTPrivateKeyPath)
	if err != nil {
		log.Fatal("Ошибка чтения приватного ключа JWT", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	publicKey, err := os.ReadFile(cfg.Security.JWTPublicKeyPath)
	if err != nil {
		log.Fatal("Ошибка чтения публичного ключа JWT", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	jwtManager, err := security.NewJWTManager(privateKey, publicKey, cfg.Security.JWTExpiration, cfg.Security.JWTIssuer)
	if err != nil {
		log.Fatal("Ошибка инициализации JWT", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	// Клиент платформы каталогов со своим лимитом исходящих запросов
	catalogHTTP := resilient.NewClient(cfg.CatalogAPI.Timeout, cfg.CatalogAPI.RatePerSec, log)
	catalogRetrier := resilient.NewRetrier(cfg.CatalogAPI.MaxRetries, cfg.CatalogAPI.RetryBase, log)
	catalogClient := catalogapi.NewClient(cfg.CatalogAPI.BaseURL, cfg.CatalogAPI.AccessToken, catalogHTTP, catalogRetrier, log)

	// Клиент источника создается на каждое приложение, но HTTP-транспорт
	// и лимитер общие
	sourceHTTP := resilient.NewClient(cfg.Source.Timeout, cfg.Source.RatePerSec, log)
	sourceRetrier := resilient.NewRetrier(cfg.Source.MaxRetries, cfg.Source.RetryBase, log)
	sourceFactory := func(creds models.Credentials) services.SourceGateway {
		return source.NewClient(creds, sourceHTTP, sourceRetrier, log)
	}

	webhookQueue := queue.NewWebhookQueue(cacheClient, log)
	productPipeline := pipeline.NewPipeline(cfg.Sync.Workers, log)
	recordUploader := uploader.NewUploader(catalogClient.Items, catalogClient.Feeds, cfg.Sync.ChunkSize, log)
	recordUploader.SetFeedTimeout(cfg.Sync.FeedTimeout)
	scheduler := services.NewScheduler(messagingClient, log)

	syncService := services.NewSyncService(db, webhookQueue, productPipeline, recordUploader, catalogClient.Catalogs, sourceFactory, scheduler, log)
	syncService.SetBatchSize(cfg.Sync.BatchSize)
	syncService.SetPageSize(cfg.Source.PageSize)
	catalogService := services.NewCatalogService(db, catalogClient.Catalogs, scheduler, log)
	log.Info("Сервисы инициализированы")

	webhookHandler := handlers.NewWebhookHandler(syncService, log)
	catalogHandler := handlers.NewCatalogHandler(catalogService, syncService, scheduler, log)

	router := api.SetupRouter(webhookHandler, catalogHandler, log, cfg.Security.CORSAllowOrigins, jwtManager)
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatal("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
		}

		log.Info("HTTP сервер остановлен")

		if err := messagingClient.Close(); err != nil {
			log.Error("Ошибка при закрытии Kafka",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		if err := cacheClient.Close(); err != nil {
			log.Error("Ошибка при закрытии Redis",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		if err := db.Close(); err != nil {
			log.Error("Ошибка при закрытии БД",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		close(done)
	}()

	<-done
	log.Info("Сервер корректно завершил работу")
}
