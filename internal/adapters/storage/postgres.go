package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gocache "github.com/patrickmn/go-cache"

	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/utils"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
	"github.com/weni-ai/catalog-sync/pkg/tx"
)

// CatalogStorageInterface определяет интерфейс взаимодействия с хранилищем PostgreSQL
type CatalogStorageInterface interface {
	// App методы. Записи приложений создает внешний реестр,
	// здесь они только читаются и помечаются.
	GetApp(ctx context.Context, appID string) (*models.App, error)
	SetInitialSyncCompleted(ctx context.Context, appID string) error

	// Catalog методы
	SaveCatalog(ctx context.Context, catalog *models.Catalog) error
	GetCatalog(ctx context.Context, catalogID string) (*models.Catalog, error)
	GetActiveCatalogByApp(ctx context.Context, appID string) (*models.Catalog, error)
	ListCatalogsByApp(ctx context.Context, appID string) ([]*models.Catalog, error)
	SetCatalogActive(ctx context.Context, catalogID string, active bool) error
	DeleteCatalog(ctx context.Context, catalogID string) error

	// SyncRun методы
	SaveSyncRun(ctx context.Context, record *models.SyncRunRecord) error
	ListSyncRuns(ctx context.Context, appID string, limit int) ([]*models.SyncRunRecord, error)
}

type CatalogStoragePort interface {
	CatalogStorageInterface
	interfaces.StoragePort
}

const appCacheTTL = 5 * time.Minute

// CatalogStorage реализация интерфейса Repository для PostgreSQL
type CatalogStorage struct {
	pool *pgxpool.Pool
	// apps меняются редко и читаются на каждый вебхук,
	// поэтому записи мемоизируются в памяти процесса
	appCache *gocache.Cache
}

// NewPostgresStorage создает новый экземпляр CatalogStorage
func NewPostgresStorage(ctx context.Context, connectionString string) (*CatalogStorage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &CatalogStorage{
		pool:     pool,
		appCache: gocache.New(appCacheTTL, 2*appCacheTTL),
	}, nil
}

func NewPostgresStorageWithPool(ctx context.Context, pool *pgxpool.Pool) (*CatalogStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &CatalogStorage{
		pool:     pool,
		appCache: gocache.New(appCacheTTL, 2*appCacheTTL),
	}, nil
}

// Close закрывает соединение с БД
func (r *CatalogStorage) Close() error {
	r.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// getExecutor возвращает исполнителя запросов (транзакцию или пул)
func (r *CatalogStorage) getExecutor(ctx context.Context) executor {
	if txn := r.getTx(ctx); txn != nil {
		return txn
	}
	return r.pool
}

// getTx получает транзакцию из контекста
func (r *CatalogStorage) getTx(ctx context.Context) pgx.Tx {
	txFromCtx, ok := ctx.Value(tx.GetKey()).(pgx.Tx)
	if !ok {
		return nil
	}
	return txFromCtx
}

// BeginTx начинает новую транзакцию
func (r *CatalogStorage) BeginTx(ctx context.Context) (context.Context, error) {
	txn, err := r.pool.Begin(ctx)
	if err != nil {
		return ctx, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return context.WithValue(ctx, tx.GetKey(), txn), nil
}

// CommitTx фиксирует транзакцию
func (r *CatalogStorage) CommitTx(ctx context.Context) error {
	txn := r.getTx(ctx)
	if txn == nil {
		return errors.New("no transaction in context")
	}
	return txn.Commit(ctx)
}

// RollbackTx откатывает транзакцию
func (r *CatalogStorage) RollbackTx(ctx context.Context) error {
	txn := r.getTx(ctx)
	if txn == nil {
		return errors.New("no transaction in context")
	}
	return txn.Rollback(ctx)
}

// GetApp получает приложение по ID
func (r *CatalogStorage) GetApp(ctx context.Context, appID string) (*models.App, error) {
	if cached, ok := r.appCache.Get(appID); ok {
		return cached.(*models.App), nil
	}

	query := `
		SELECT id, platform, app_key, app_token, domain, config, created_at
		FROM catalog.apps
		WHERE id = $1
	`

	var app models.App
	row := r.getExecutor(ctx).QueryRow(ctx, query, appID)
	err := row.Scan(&app.ID, &app.Platform, &app.Credentials.AppKey, &app.Credentials.AppToken,
		&app.Credentials.Domain, &app.Config, &app.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrAppNotFound
		}
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	r.appCache.Set(appID, &app, gocache.DefaultExpiration)
	return &app, nil
}

// SetInitialSyncCompleted помечает приложение как прошедшее первоначальную
// синхронизацию. Сбрасывает мемоизированную запись.
func (r *CatalogStorage) SetInitialSyncCompleted(ctx context.Context, appID string) error {
	query := `
		UPDATE catalog.apps
		SET config = jsonb_set(config, '{initial_sync_completed}', 'true')
		WHERE id = $1
	`

	tag, err := r.getExecutor(ctx).Exec(ctx, query, appID)
	if err != nil {
		return fmt.Errorf("failed to mark initial sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrAppNotFound
	}

	r.appCache.Delete(appID)
	return nil
}

// SaveCatalog сохраняет каталог
func (r *CatalogStorage) SaveCatalog(ctx context.Context, catalog *models.Catalog) error {
	if catalog.ID == "" {
		catalog.ID = uuid.New().String()
	}

	query := `
		INSERT INTO catalog.catalogs (id, external_catalog_id, app_id, store_reference, name, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET
			external_catalog_id = $2,
			store_reference = $4,
			name = $5,
			active = $6,
			updated_at = $8
	`

	now := time.Now().UTC()
	if catalog.CreatedAt.IsZero() {
		catalog.CreatedAt = now
	}
	catalog.UpdatedAt = now

	_, err := r.getExecutor(ctx).Exec(ctx, query, catalog.ID, catalog.ExternalCatalogID, catalog.AppID,
		catalog.StoreReference, catalog.Name, catalog.Active, catalog.CreatedAt, catalog.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	return nil
}

// GetCatalog получает каталог по ID
func (r *CatalogStorage) GetCatalog(ctx context.Context, catalogID string) (*models.Catalog, error) {
	query := `
		SELECT id, external_catalog_id, app_id, store_reference, name, active, created_at, updated_at
		FROM catalog.catalogs
		WHERE id = $1
	`

	var catalog models.Catalog
	row := r.getExecutor(ctx).QueryRow(ctx, query, catalogID)
	err := row.Scan(&catalog.ID, &catalog.ExternalCatalogID, &catalog.AppID, &catalog.StoreReference,
		&catalog.Name, &catalog.Active, &catalog.CreatedAt, &catalog.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrCatalogNotFound
		}
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}
	return &catalog, nil
}

// GetActiveCatalogByApp получает активный каталог приложения.
// У приложения не бывает двух активных каталогов одновременно.
func (r *CatalogStorage) GetActiveCatalogByApp(ctx context.Context, appID string) (*models.Catalog, error) {
	query := `
		SELECT id, external_catalog_id, app_id, store_reference, name, active, created_at, updated_at
		FROM catalog.catalogs
		WHERE app_id = $1 AND active = true
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var catalog models.Catalog
	row := r.getExecutor(ctx).QueryRow(ctx, query, appID)
	err := row.Scan(&catalog.ID, &catalog.ExternalCatalogID, &catalog.AppID, &catalog.StoreReference,
		&catalog.Name, &catalog.Active, &catalog.CreatedAt, &catalog.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrCatalogNotFound
		}
		return nil, fmt.Errorf("failed to get active catalog: %w", err)
	}
	return &catalog, nil
}

// ListCatalogsByApp возвращает все каталоги приложения
func (r *CatalogStorage) ListCatalogsByApp(ctx context.Context, appID string) ([]*models.Catalog, error) {
	query := `
		SELECT id, external_catalog_id, app_id, store_reference, name, active, created_at, updated_at
		FROM catalog.catalogs
		WHERE app_id = $1
		ORDER BY created_at
	`

	rows, err := r.getExecutor(ctx).Query(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalogs: %w", err)
	}
	defer rows.Close()

	var catalogs []*models.Catalog
	for rows.Next() {
		var catalog models.Catalog
		err := rows.Scan(&catalog.ID, &catalog.ExternalCatalogID, &catalog.AppID, &catalog.StoreReference,
			&catalog.Name, &catalog.Active, &catalog.CreatedAt, &catalog.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		catalogs = append(catalogs, &catalog)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error while iterating catalog rows: %w", rows.Err())
	}

	return catalogs, nil
}

// SetCatalogActive переключает признак активности каталога
func (r *CatalogStorage) SetCatalogActive(ctx context.Context, catalogID string, active bool) error {
	query := `
		UPDATE catalog.catalogs
		SET active = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.getExecutor(ctx).Exec(ctx, query, catalogID, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update catalog: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrCatalogNotFound
	}
	return nil
}

// DeleteCatalog удаляет каталог из хранилища
func (r *CatalogStorage) DeleteCatalog(ctx context.Context, catalogID string) error {
	query := `
		DELETE FROM catalog.catalogs
		WHERE id = $1
	`

	tag, err := r.getExecutor(ctx).Exec(ctx, query, catalogID)
	if err != nil {
		return fmt.Errorf("failed to delete catalog: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrCatalogNotFound
	}
	return nil
}

// SaveSyncRun сохраняет запись о запуске синхронизации
func (r *CatalogStorage) SaveSyncRun(ctx context.Context, record *models.SyncRunRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	query := `
		INSERT INTO catalog.sync_runs (id, app_id, mode, total, valid, invalid, status, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.getExecutor(ctx).Exec(ctx, query, record.ID, record.AppID, record.Mode,
		record.Total, record.Valid, record.Invalid, record.Status, record.Error,
		record.StartedAt, record.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to save sync run: %w", err)
	}
	return nil
}

// ListSyncRuns возвращает последние запуски синхронизации приложения
func (r *CatalogStorage) ListSyncRuns(ctx context.Context, appID string, limit int) ([]*models.SyncRunRecord, error) {
	query := `
		SELECT id, app_id, mode, total, valid, invalid, status, error, started_at, finished_at
		FROM catalog.sync_runs
		WHERE app_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.getExecutor(ctx).Query(ctx, query, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var records []*models.SyncRunRecord
	for rows.Next() {
		var record models.SyncRunRecord
		err := rows.Scan(&record.ID, &record.AppID, &record.Mode, &record.Total, &record.Valid,
			&record.Invalid, &record.Status, &record.Error, &record.StartedAt, &record.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run row: %w", err)
		}
		records = append(records, &record)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error while iterating sync run rows: %w", rows.Err())
	}

	return records, nil
}
