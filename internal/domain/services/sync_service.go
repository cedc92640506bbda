package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	postgres "github.com/weni-ai/catalog-sync/internal/adapters/storage"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/domain/pipeline"
	"github.com/weni-ai/catalog-sync/internal/domain/queue"
	"github.com/weni-ai/catalog-sync/internal/domain/rules"
	"github.com/weni-ai/catalog-sync/internal/utils"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// DefaultBatchSize - размер партии SKU, выбираемой из очереди за проход
const DefaultBatchSize = 500

// DefaultPageSize - размер страницы при полном обходе каталога источника
const DefaultPageSize = 1000

// SourceGateway - операции источника, нужные оркестратору
type SourceGateway interface {
	pipeline.SourceClient
	ListSKUIDs(ctx context.Context, page, pageSize int) ([]string, error)
	ListActiveSellers(ctx context.Context) ([]string, error)
}

// SourceFactory создает клиента источника по учетным данным приложения
type SourceFactory func(creds models.Credentials) SourceGateway

// CatalogGateway - операции платформы каталогов над самими каталогами
type CatalogGateway interface {
	Create(ctx context.Context, businessID, name string) (string, error)
	Enable(ctx context.Context, wabaID, externalCatalogID string) error
	Disable(ctx context.Context, wabaID, externalCatalogID string) error
	Delete(ctx context.Context, externalCatalogID string) error
}

// RecordUploader доставляет записи продуктов на платформу каталогов
type RecordUploader interface {
	UploadIncremental(ctx context.Context, externalCatalogID string, records []*models.ProductRecord) error
	UploadFeed(ctx context.Context, externalCatalogID, feedName string, records []*models.ProductRecord) error
}

// SyncService - оркестратор синхронизации каталога: принимает вебхуки,
// выбирает накопленные SKU из очереди или полный листинг источника,
// прогоняет их через конвейер и передает загрузчику. Все зависимости
// приходят через конструктор.
type SyncService struct {
	storage   postgres.CatalogStoragePort
	queue     *queue.WebhookQueue
	pipeline  *pipeline.Pipeline
	uploader  RecordUploader
	catalogs  CatalogGateway
	source    SourceFactory
	scheduler *Scheduler
	logger    interfaces.LoggerPort

	batchSize int
	pageSize  int
}

// NewSyncService создает оркестратор синхронизации
func NewSyncService(
	storage postgres.CatalogStoragePort,
	q *queue.WebhookQueue,
	p *pipeline.Pipeline,
	u RecordUploader,
	catalogs CatalogGateway,
	source SourceFactory,
	scheduler *Scheduler,
	logger interfaces.LoggerPort,
) *SyncService {
	return &SyncService{
		storage:   storage,
		queue:     q,
		pipeline:  p,
		uploader:  u,
		catalogs:  catalogs,
		source:    source,
		scheduler: scheduler,
		logger:    logger,
		batchSize: DefaultBatchSize,
		pageSize:  DefaultPageSize,
	}
}

// SetBatchSize задает размер партии выборки из очереди
func (s *SyncService) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// SetPageSize задает размер страницы полного обхода источника
func (s *SyncService) SetPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

// HandleProductWebhook обрабатывает вебхук изменения продукта.
// Обработчик отвечает быстро: SKU попадает в множество ожидающих, а
// запуск планируется только если он еще не идет. Сам вебхук не несет
// доверенных данных - актуальное состояние всегда перечитывается
// у источника.
func (s *SyncService) HandleProductWebhook(ctx context.Context, appID, skuID string) error {
	app, err := s.storage.GetApp(ctx, appID)
	if err != nil {
		return err
	}

	if !app.Config.CatalogSyncEnabled {
		return utils.ErrSyncDisabled
	}
	if !app.Config.InitialSyncCompleted {
		return utils.ErrInitialSyncPending
	}

	if err := s.queue.EnqueueSKU(ctx, appID, skuID); err != nil {
		return fmt.Errorf("failed to enqueue webhook: %w", err)
	}

	locked, err := s.queue.IsRunLocked(ctx, appID)
	if err != nil {
		return fmt.Errorf("failed to probe run lock: %w", err)
	}
	if locked {
		// текущий запуск подхватит SKU на следующем проходе
		return nil
	}

	if err := s.scheduler.Schedule(ctx, appID, models.SyncModeIncremental, nil); err != nil {
		return fmt.Errorf("failed to schedule run: %w", err)
	}
	return nil
}

// RunIncremental выбирает накопленные SKU партиями и синхронизирует их.
// Если лок запуска уже удерживается, выход без работы: это не ошибка,
// текущий запуск доделает свое.
func (s *SyncService) RunIncremental(ctx context.Context, appID string) error {
	acquired, err := s.queue.AcquireRunLock(ctx, appID)
	if err != nil {
		return err
	}
	if !acquired {
		s.logger.InfoWithContext(ctx, "запуск уже идет, пропуск",
			interfaces.LogField{Key: "app_id", Value: appID},
		)
		return nil
	}
	defer func() {
		if err := s.queue.ReleaseRunLock(ctx, appID); err != nil {
			s.logger.WarnWithContext(ctx, "не удалось снять лок запуска",
				interfaces.LogField{Key: "app_id", Value: appID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}()

	app, err := s.storage.GetApp(ctx, appID)
	if err != nil {
		return err
	}
	catalog, err := s.storage.GetActiveCatalogByApp(ctx, appID)
	if err != nil {
		return err
	}

	client := s.source(app.Credentials)
	sellers, err := client.ListActiveSellers(ctx)
	if err != nil {
		return s.failRun(ctx, appID, models.SyncModeIncremental, time.Now().UTC(), nil, err)
	}
	chain := rules.NewChain(app.Config.Rules, s.logger)

	startedAt := time.Now().UTC()
	var total, valid, invalid int

	for {
		// лок продлевается внутри DequeueBatch перед каждой партией
		batch, err := s.queue.DequeueBatch(ctx, appID, s.batchSize)
		if err != nil {
			return s.failRun(ctx, appID, models.SyncModeIncremental, startedAt, &runTotals{total, valid, invalid}, err)
		}
		if len(batch) == 0 {
			break
		}

		records, progress := s.pipeline.Run(ctx, batch, sellers, app, client, chain)
		total += len(batch) * len(sellers)
		valid += progress.Valid()
		invalid += progress.Invalid()

		if err := s.uploader.UploadIncremental(ctx, catalog.ExternalCatalogID, records); err != nil {
			return s.failRun(ctx, appID, models.SyncModeIncremental, startedAt, &runTotals{total, valid, invalid}, err)
		}
	}

	return s.recordRun(ctx, &models.SyncRunRecord{
		AppID:      appID,
		Mode:       models.SyncModeIncremental,
		Total:      total,
		Valid:      valid,
		Invalid:    invalid,
		Status:     models.SyncRunSucceeded,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	})
}

// RunFull выполняет полную синхронизацию: множество ожидающих
// обходится, листинг SKU запрашивается у источника целиком, результат
// выгружается фидом. По успеху каталог помечается активным, приложение -
// прошедшим первоначальную синхронизацию, наружу публикуется событие.
// sellerIDs ограничивает обход перечисленными продавцами; пустой срез
// означает всех активных.
func (s *SyncService) RunFull(ctx context.Context, appID string, sellerIDs []string) error {
	acquired, err := s.queue.AcquireRunLock(ctx, appID)
	if err != nil {
		return err
	}
	if !acquired {
		s.logger.InfoWithContext(ctx, "запуск уже идет, пропуск",
			interfaces.LogField{Key: "app_id", Value: appID},
		)
		return nil
	}
	defer func() {
		if err := s.queue.ReleaseRunLock(ctx, appID); err != nil {
			s.logger.WarnWithContext(ctx, "не удалось снять лок запуска",
				interfaces.LogField{Key: "app_id", Value: appID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}()

	app, err := s.storage.GetApp(ctx, appID)
	if err != nil {
		return err
	}
	catalog, err := s.storage.GetActiveCatalogByApp(ctx, appID)
	if err != nil {
		if !errors.Is(err, utils.ErrCatalogNotFound) {
			return err
		}
		// первоначальная синхронизация: каталог создан, но еще не активен
		catalogs, listErr := s.storage.ListCatalogsByApp(ctx, appID)
		if listErr != nil {
			return listErr
		}
		if len(catalogs) == 0 {
			return utils.ErrCatalogNotFound
		}
		catalog = catalogs[len(catalogs)-1]
	}

	client := s.source(app.Credentials)
	startedAt := time.Now().UTC()

	sellers := sellerIDs
	if len(sellers) == 0 {
		sellers, err = client.ListActiveSellers(ctx)
		if err != nil {
			return s.failRun(ctx, appID, models.SyncModeFull, startedAt, nil, err)
		}
	}

	skuIDs, err := s.listAllSKUs(ctx, appID, client)
	if err != nil {
		return s.failRun(ctx, appID, models.SyncModeFull, startedAt, nil, err)
	}

	chain := rules.NewChain(app.Config.Rules, s.logger)
	records, progress := s.pipeline.Run(ctx, skuIDs, sellers, app, client, chain)
	totals := &runTotals{len(skuIDs) * len(sellers), progress.Valid(), progress.Invalid()}

	// запуск без единой валидной записи - успешный no-op
	if len(records) > 0 {
		feedName := fmt.Sprintf("catalog %s %s", catalog.Name, startedAt.Format("2006-01-02"))
		if err := s.uploader.UploadFeed(ctx, catalog.ExternalCatalogID, feedName, records); err != nil {
			return s.failRun(ctx, appID, models.SyncModeFull, startedAt, totals, err)
		}
	}

	// активация только после успеха всей партии
	if err := s.activateCatalog(ctx, app, catalog); err != nil {
		return s.failRun(ctx, appID, models.SyncModeFull, startedAt, totals, err)
	}

	return s.recordRun(ctx, &models.SyncRunRecord{
		AppID:      appID,
		Mode:       models.SyncModeFull,
		Total:      totals.total,
		Valid:      totals.valid,
		Invalid:    totals.invalid,
		Status:     models.SyncRunSucceeded,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	})
}

// listAllSKUs постранично обходит листинг SKU источника.
// Повторы на уровне страницы выполняет клиент источника.
func (s *SyncService) listAllSKUs(ctx context.Context, appID string, client SourceGateway) ([]string, error) {
	var all []string
	for page := 1; ; page++ {
		ids, err := client.ListSKUIDs(ctx, page, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list skus page %d: %w", page, err)
		}
		if len(ids) == 0 {
			break
		}
		all = append(all, ids...)

		if err := s.queue.ExtendRunLock(ctx, appID); err != nil {
			return nil, fmt.Errorf("failed to extend run lock: %w", err)
		}
	}
	return all, nil
}

// activateCatalog помечает каталог активным локально и публикует событие
// для нижестоящего потребителя. Отказ публикации логируется, но не
// откатывает активацию: уведомление с точки зрения подсистемы
// "выстрелил и забыл".
func (s *SyncService) activateCatalog(ctx context.Context, app *models.App, catalog *models.Catalog) error {
	if err := s.storage.SetCatalogActive(ctx, catalog.ID, true); err != nil {
		return err
	}
	if !app.Config.InitialSyncCompleted {
		if err := s.storage.SetInitialSyncCompleted(ctx, app.ID); err != nil {
			return err
		}
	}

	if err := s.scheduler.NotifyCatalogActivated(ctx, app.ID, catalog.ExternalCatalogID); err != nil {
		s.logger.WarnWithContext(ctx, "не удалось опубликовать событие активации",
			interfaces.LogField{Key: "app_id", Value: app.ID},
			interfaces.LogField{Key: "catalog_id", Value: catalog.ExternalCatalogID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
	return nil
}

type runTotals struct {
	total   int
	valid   int
	invalid int
}

func (s *SyncService) failRun(ctx context.Context, appID, mode string, startedAt time.Time, totals *runTotals, cause error) error {
	record := &models.SyncRunRecord{
		AppID:      appID,
		Mode:       mode,
		Status:     models.SyncRunFailed,
		Error:      cause.Error(),
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	if totals != nil {
		record.Total = totals.total
		record.Valid = totals.valid
		record.Invalid = totals.invalid
	}
	if err := s.recordRun(ctx, record); err != nil {
		s.logger.ErrorWithContext(ctx, "не удалось сохранить запись о запуске",
			interfaces.LogField{Key: "app_id", Value: appID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
	return cause
}

func (s *SyncService) recordRun(ctx context.Context, record *models.SyncRunRecord) error {
	record.ID = uuid.New().String()
	if err := s.storage.SaveSyncRun(ctx, record); err != nil {
		return err
	}

	if record.Status == models.SyncRunSucceeded {
		if err := s.scheduler.NotifySyncCompleted(ctx, record.AppID); err != nil {
			s.logger.WarnWithContext(ctx, "не удалось опубликовать событие завершения синхронизации",
				interfaces.LogField{Key: "app_id", Value: record.AppID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}
	return nil
}

// ListSyncRuns возвращает последние запуски синхронизации приложения
func (s *SyncService) ListSyncRuns(ctx context.Context, appID string, limit int) ([]*models.SyncRunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.storage.ListSyncRuns(ctx, appID, limit)
}
