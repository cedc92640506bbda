package services

import (
	"context"
	"fmt"

	postgres "github.com/weni-ai/catalog-sync/internal/adapters/storage"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// CatalogService управляет жизненным циклом каталогов: создание на
// удаленной платформе, включение и отключение, удаление при снятии
// интеграции.
type CatalogService struct {
	storage   postgres.CatalogStoragePort
	catalogs  CatalogGateway
	scheduler *Scheduler
	logger    interfaces.LoggerPort
}

// NewCatalogService создает сервис управления каталогами
func NewCatalogService(storage postgres.CatalogStoragePort, catalogs CatalogGateway, scheduler *Scheduler, logger interfaces.LoggerPort) *CatalogService {
	return &CatalogService{
		storage:   storage,
		catalogs:  catalogs,
		scheduler: scheduler,
		logger:    logger,
	}
}

// CreateCatalog создает каталог на удаленной платформе, сохраняет
// локальную запись и планирует первоначальную полную синхронизацию.
// Каталог создается неактивным: активация происходит только после
// успешной выгрузки всей партии.
func (s *CatalogService) CreateCatalog(ctx context.Context, appID, name string) (*models.Catalog, error) {
	app, err := s.storage.GetApp(ctx, appID)
	if err != nil {
		return nil, err
	}

	externalID, err := s.catalogs.Create(ctx, app.Config.BusinessID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote catalog: %w", err)
	}

	catalog := &models.Catalog{
		ExternalCatalogID: externalID,
		AppID:             appID,
		StoreReference:    app.Credentials.Domain,
		Name:              name,
		Active:            false,
	}

	txCtx, err := s.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := s.storage.SaveCatalog(txCtx, catalog); err != nil {
		s.storage.RollbackTx(txCtx)
		return nil, fmt.Errorf("failed to save catalog: %w", err)
	}
	if err := s.storage.CommitTx(txCtx); err != nil {
		s.storage.RollbackTx(txCtx)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := s.scheduler.NotifyCatalogCreated(ctx, appID, externalID); err != nil {
		s.logger.WarnWithContext(ctx, "не удалось опубликовать событие создания каталога",
			interfaces.LogField{Key: "app_id", Value: appID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}

	if err := s.scheduler.Schedule(ctx, appID, models.SyncModeFull, nil); err != nil {
		s.logger.ErrorWithContext(ctx, "не удалось запланировать первоначальную синхронизацию",
			interfaces.LogField{Key: "app_id", Value: appID},
			interfaces.LogField{Key: "catalog_id", Value: catalog.ID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}

	return catalog, nil
}

// GetCatalog возвращает каталог по ID
func (s *CatalogService) GetCatalog(ctx context.Context, catalogID string) (*models.Catalog, error) {
	return s.storage.GetCatalog(ctx, catalogID)
}

// ListCatalogs возвращает каталоги приложения
func (s *CatalogService) ListCatalogs(ctx context.Context, appID string) ([]*models.Catalog, error) {
	return s.storage.ListCatalogsByApp(ctx, appID)
}

// EnableCatalog подключает каталог к каналу сообщений приложения
func (s *CatalogService) EnableCatalog(ctx context.Context, catalogID, wabaID string) error {
	catalog, err := s.storage.GetCatalog(ctx, catalogID)
	if err != nil {
		return err
	}

	if err := s.catalogs.Enable(ctx, wabaID, catalog.ExternalCatalogID); err != nil {
		return fmt.Errorf("failed to enable remote catalog: %w", err)
	}
	if err := s.storage.SetCatalogActive(ctx, catalogID, true); err != nil {
		return err
	}

	if err := s.scheduler.NotifyCatalogActivated(ctx, catalog.AppID, catalog.ExternalCatalogID); err != nil {
		s.logger.WarnWithContext(ctx, "не удалось опубликовать событие активации",
			interfaces.LogField{Key: "app_id", Value: catalog.AppID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
	return nil
}

// DisableCatalog отключает каталог от канала сообщений
func (s *CatalogService) DisableCatalog(ctx context.Context, catalogID, wabaID string) error {
	catalog, err := s.storage.GetCatalog(ctx, catalogID)
	if err != nil {
		return err
	}

	if err := s.catalogs.Disable(ctx, wabaID, catalog.ExternalCatalogID); err != nil {
		return fmt.Errorf("failed to disable remote catalog: %w", err)
	}
	return s.storage.SetCatalogActive(ctx, catalogID, false)
}

// DeleteCatalog удаляет каталог на удаленной платформе и локально.
// Вызывается при снятии интеграции.
func (s *CatalogService) DeleteCatalog(ctx context.Context, catalogID string) error {
	catalog, err := s.storage.GetCatalog(ctx, catalogID)
	if err != nil {
		return err
	}

	if err := s.catalogs.Delete(ctx, catalog.ExternalCatalogID); err != nil {
		return fmt.Errorf("failed to delete remote catalog: %w", err)
	}
	return s.storage.DeleteCatalog(ctx, catalogID)
}
