package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weni-ai/catalog-sync/config"
	"github.com/weni-ai/catalog-sync/internal/adapters/cache"
	"github.com/weni-ai/catalog-sync/internal/adapters/logger"
	"github.com/weni-ai/catalog-sync/internal/adapters/messaging"
	postgres "github.com/weni-ai/catalog-sync/internal/adapters/storage"
	"github.com/weni-ai/catalog-sync/internal/clients/catalogapi"
	"github.com/weni-ai/catalog-sync/internal/clients/resilient"
	"github.com/weni-ai/catalog-sync/internal/clients/source"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/domain/pipeline"
	"github.com/weni-ai/catalog-sync/internal/domain/queue"
	"github.com/weni-ai/catalog-sync/internal/domain/services"
	"github.com/weni-ai/catalog-sync/internal/domain/uploader"
	"github.com/weni-ai/catalog-sync/internal/utils"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// Метрики для Prometheus
var (
	tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_sync_tasks_processed_total",
		Help: "Общее количество обработанных задач синхронизации",
	}, []string{"mode", "status"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_sync_task_duration_seconds",
		Help:    "Длительность запусков синхронизации",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
	}, []string{"mode"})
)

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
	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	// HTTP сервер для метрик, если они включены
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})

			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("Запуск HTTP сервера для метрик",
				interfaces.LogField{Key: "addr", Value: addr})

			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("Ошибка запуска HTTP сервера для метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	connectionStr, err := utils.GenerateConnectionString(
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
		log.Fatal("Ошибка генерации строки подключения к PostgreSQL",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	db, err := postgres.NewPostgresStorage(ctx, connectionStr)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища",
			interfaces.LogField{Key: "error", Value: err.Error()})
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
		log.Fatal("Ошибка инициализации кэша",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer cacheClient.Close()
	log.Info("Кэш инициализирован")

	messagingClient, err := messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.Kafka.GroupID, log)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer messagingClient.Close()
	log.Info("Система обмена сообщениями инициализирована")

	catalogHTTP := resilient.NewClient(cfg.CatalogAPI.Timeout, cfg.CatalogAPI.RatePerSec, log)
	catalogRetrier := resilient.NewRetrier(cfg.CatalogAPI.MaxRetries, cfg.CatalogAPI.RetryBase, log)
	catalogClient := catalogapi.NewClient(cfg.CatalogAPI.BaseURL, cfg.CatalogAPI.AccessToken, catalogHTTP, catalogRetrier, log)

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
	log.Info("Сервис синхронизации инициализирован")

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	subscribeToSyncTasks(ctx, messagingClient, syncService, log, &wg)

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
		cancel()
		wg.Wait()
		close(done)
	}()

	log.Info("Воркер запущен и готов к обработке задач")
	<-done
	log.Info("Воркер корректно завершил работу")
}

// Подписка на задачи синхронизации
func subscribeToSyncTasks(ctx context.Context, messagingClient interfaces.MessagingPort,
	syncService *services.SyncService,
	logger interfaces.LoggerPort, wg *sync.WaitGroup) {

	taskHandler := func(ctx context.Context, msg *interfaces.Message) error {
		startTime := time.Now()

		var task services.SyncTask
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			logger.ErrorWithContext(ctx, "Ошибка декодирования задачи синхронизации",
				interfaces.LogField{Key: "error", Value: err.Error()})
			tasksProcessed.WithLabelValues("unknown", "error").Inc()
			// неразборчивое сообщение нет смысла перечитывать
			return nil
		}

		logger.InfoWithContext(ctx, "Получена задача синхронизации",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.LogField{Key: "app_id", Value: task.AppID},
			interfaces.LogField{Key: "mode", Value: task.Mode},
		)

		// Даем окно коалесценции: подряд идущие вебхуки одного
		// приложения сливаются в один запуск
		if wait := time.Until(task.NotBefore); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var err error
		switch task.Mode {
		case models.SyncModeIncremental:
			err = syncService.RunIncremental(ctx, task.AppID)
		case models.SyncModeFull:
			err = syncService.RunFull(ctx, task.AppID, task.Sellers)
		default:
			logger.WarnWithContext(ctx, "Неизвестный режим синхронизации",
				interfaces.LogField{Key: "mode", Value: task.Mode})
			tasksProcessed.WithLabelValues(task.Mode, "unknown").Inc()
			return nil
		}

		if err != nil {
			logger.ErrorWithContext(ctx, "Ошибка запуска синхронизации",
				interfaces.LogField{Key: "app_id", Value: task.AppID},
				interfaces.LogField{Key: "mode", Value: task.Mode},
				interfaces.LogField{Key: "error", Value: err.Error()})
			tasksProcessed.WithLabelValues(task.Mode, "error").Inc()
			return err
		}

		duration := time.Since(startTime).Seconds()
		taskDuration.WithLabelValues(task.Mode).Observe(duration)
		tasksProcessed.WithLabelValues(task.Mode, "success").Inc()

		logger.InfoWithContext(ctx, "Задача синхронизации обработана",
			interfaces.LogField{Key: "app_id", Value: task.AppID},
			interfaces.LogField{Key: "mode", Value: task.Mode},
			interfaces.LogField{Key: "duration", Value: duration},
		)

		return nil
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		unsubscribe, err := messagingClient.Subscribe(ctx, messaging.SyncTasksTopic, taskHandler)
		if err != nil {
			logger.Error("Ошибка подписки на задачи синхронизации",
				interfaces.LogField{Key: "error", Value: err.Error()})
			return
		}
		defer unsubscribe()

		<-ctx.Done()
	}()
}
