package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weni-ai/catalog-sync/internal/adapters/messaging"
	"github.com/weni-ai/catalog-sync/internal/clients/source"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/domain/pipeline"
	"github.com/weni-ai/catalog-sync/internal/domain/queue"
	"github.com/weni-ai/catalog-sync/internal/testutil"
	"github.com/weni-ai/catalog-sync/internal/utils"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// fakeStorage - хранилище в памяти для тестов оркестратора
type fakeStorage struct {
	mu       sync.Mutex
	apps     map[string]*models.App
	catalogs map[string]*models.Catalog
	runs     []*models.SyncRunRecord
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		apps:     make(map[string]*models.App),
		catalogs: make(map[string]*models.Catalog),
	}
}

func (f *fakeStorage) GetApp(ctx context.Context, appID string) (*models.App, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[appID]
	if !ok {
		return nil, utils.ErrAppNotFound
	}
	return app, nil
}

func (f *fakeStorage) SetInitialSyncCompleted(ctx context.Context, appID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[appID]
	if !ok {
		return utils.ErrAppNotFound
	}
	app.Config.InitialSyncCompleted = true
	return nil
}

func (f *fakeStorage) SaveCatalog(ctx context.Context, catalog *models.Catalog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if catalog.ID == "" {
		catalog.ID = "cat-" + catalog.ExternalCatalogID
	}
	f.catalogs[catalog.ID] = catalog
	return nil
}

func (f *fakeStorage) GetCatalog(ctx context.Context, catalogID string) (*models.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	catalog, ok := f.catalogs[catalogID]
	if !ok {
		return nil, utils.ErrCatalogNotFound
	}
	return catalog, nil
}

func (f *fakeStorage) GetActiveCatalogByApp(ctx context.Context, appID string) (*models.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, catalog := range f.catalogs {
		if catalog.AppID == appID && catalog.Active {
			return catalog, nil
		}
	}
	return nil, utils.ErrCatalogNotFound
}

func (f *fakeStorage) ListCatalogsByApp(ctx context.Context, appID string) ([]*models.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.Catalog
	for _, catalog := range f.catalogs {
		if catalog.AppID == appID {
			result = append(result, catalog)
		}
	}
	return result, nil
}

func (f *fakeStorage) SetCatalogActive(ctx context.Context, catalogID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	catalog, ok := f.catalogs[catalogID]
	if !ok {
		return utils.ErrCatalogNotFound
	}
	catalog.Active = active
	return nil
}

func (f *fakeStorage) DeleteCatalog(ctx context.Context, catalogID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.catalogs, catalogID)
	return nil
}

func (f *fakeStorage) SaveSyncRun(ctx context.Context, record *models.SyncRunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, record)
	return nil
}

func (f *fakeStorage) ListSyncRuns(ctx context.Context, appID string, limit int) ([]*models.SyncRunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.SyncRunRecord
	for _, run := range f.runs {
		if run.AppID == appID {
			result = append(result, run)
		}
	}
	return result, nil
}

func (f *fakeStorage) BeginTx(ctx context.Context) (context.Context, error) { return ctx, nil }
func (f *fakeStorage) CommitTx(ctx context.Context) error                   { return nil }
func (f *fakeStorage) RollbackTx(ctx context.Context) error                 { return nil }
func (f *fakeStorage) Close() error                                         { return nil }

// fakeMessaging собирает опубликованные сообщения
type fakeMessaging struct {
	mu        sync.Mutex
	published map[string][][]byte // topic -> payloads
}

func newFakeMessaging() *fakeMessaging {
	return &fakeMessaging{published: make(map[string][][]byte)}
}

func (f *fakeMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return f.PublishWithKey(ctx, topic, "", message)
}

func (f *fakeMessaging) PublishWithKey(ctx context.Context, topic string, key string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], message)
	return nil
}

func (f *fakeMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	return func() error { return nil }, nil
}

func (f *fakeMessaging) Close() error { return nil }

func (f *fakeMessaging) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[topic])
}

// fakeGateway реализует SourceGateway поверх статических данных
type fakeGateway struct {
	skus    []string
	sellers []string
}

func (f *fakeGateway) ListSKUIDs(ctx context.Context, page, pageSize int) ([]string, error) {
	start := (page - 1) * pageSize
	if start >= len(f.skus) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(f.skus) {
		end = len(f.skus)
	}
	return f.skus[start:end], nil
}

func (f *fakeGateway) ListActiveSellers(ctx context.Context) ([]string, error) {
	return f.sellers, nil
}

func (f *fakeGateway) GetSKUDetail(ctx context.Context, skuID string) (*source.SKUDetail, error) {
	return &source.SKUDetail{
		Name:      "Produto " + skuID,
		BrandName: "Acme",
		ImageURL:  "https://img.example.com/" + skuID + ".jpg",
		DetailURL: "/p/" + skuID,
	}, nil
}

func (f *fakeGateway) SimulateCart(ctx context.Context, skuID, sellerID string) (*source.CartSimulation, error) {
	return &source.CartSimulation{Available: true, PriceCents: 1000, ListPriceCents: 1200, Currency: "BRL"}, nil
}

// fakeUploader собирает выгруженные записи
type fakeUploader struct {
	mu          sync.Mutex
	incremental [][]*models.ProductRecord
	feeds       [][]*models.ProductRecord
}

func (f *fakeUploader) UploadIncremental(ctx context.Context, externalCatalogID string, records []*models.ProductRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incremental = append(f.incremental, records)
	return nil
}

func (f *fakeUploader) UploadFeed(ctx context.Context, externalCatalogID, feedName string, records []*models.ProductRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds = append(f.feeds, records)
	return nil
}

type fakeCatalogGateway struct{}

func (f *fakeCatalogGateway) Create(ctx context.Context, businessID, name string) (string, error) {
	return "ext-1", nil
}
func (f *fakeCatalogGateway) Enable(ctx context.Context, wabaID, externalCatalogID string) error {
	return nil
}
func (f *fakeCatalogGateway) Disable(ctx context.Context, wabaID, externalCatalogID string) error {
	return nil
}
func (f *fakeCatalogGateway) Delete(ctx context.Context, externalCatalogID string) error {
	return nil
}

type serviceEnv struct {
	service   *SyncService
	storage   *fakeStorage
	queue     *queue.WebhookQueue
	messaging *fakeMessaging
	uploader  *fakeUploader
	gateway   *fakeGateway
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	logger := testutil.NewNopLogger()
	storage := newFakeStorage()
	q := queue.NewWebhookQueue(testutil.NewFakeCache(), logger)
	m := newFakeMessaging()
	u := &fakeUploader{}
	gateway := &fakeGateway{sellers: []string{"1"}}

	service := NewSyncService(
		storage,
		q,
		pipeline.NewPipeline(4, logger),
		u,
		&fakeCatalogGateway{},
		func(creds models.Credentials) SourceGateway { return gateway },
		NewScheduler(m, logger),
		logger,
	)

	return &serviceEnv{service: service, storage: storage, queue: q, messaging: m, uploader: u, gateway: gateway}
}

func testEnvApp(synced bool) *models.App {
	return &models.App{
		ID:       "app-x",
		Platform: "vtex",
		Credentials: models.Credentials{
			AppKey: "key", AppToken: "token", Domain: "https://store.example.com",
		},
		Config: models.AppConfig{
			Rules:                []string{"currency_format", "seller_namespace"},
			CatalogSyncEnabled:   true,
			InitialSyncCompleted: synced,
			StoreDomain:          "https://store.example.com",
			BusinessID:           "biz-1",
		},
	}
}

func TestWebhookRejectedBeforeInitialSync(t *testing.T) {
	env := newServiceEnv(t)
	env.storage.apps["app-x"] = testEnvApp(false)

	err := env.service.HandleProductWebhook(context.Background(), "app-x", "15")
	assert.ErrorIs(t, err, utils.ErrInitialSyncPending)
}

func TestWebhookUnknownApp(t *testing.T) {
	env := newServiceEnv(t)

	err := env.service.HandleProductWebhook(context.Background(), "nope", "15")
	assert.ErrorIs(t, err, utils.ErrAppNotFound)
}

func TestWebhookEnqueuesAndSchedules(t *testing.T) {
	env := newServiceEnv(t)
	env.storage.apps["app-x"] = testEnvApp(true)
	ctx := context.Background()

	require.NoError(t, env.service.HandleProductWebhook(ctx, "app-x", "15"))

	count, err := env.queue.PendingCount(ctx, "app-x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, env.messaging.count(messaging.SyncTasksTopic))

	var task SyncTask
	require.NoError(t, json.Unmarshal(env.messaging.published[messaging.SyncTasksTopic][0], &task))
	assert.Equal(t, "app-x", task.AppID)
	assert.Equal(t, models.SyncModeIncremental, task.Mode)
}

func TestWebhookSkipsSchedulingWhenRunLocked(t *testing.T) {
	env := newServiceEnv(t)
	env.storage.apps["app-x"] = testEnvApp(true)
	ctx := context.Background()

	acquired, err := env.queue.AcquireRunLock(ctx, "app-x")
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, env.service.HandleProductWebhook(ctx, "app-x", "15"))

	// SKU в очереди, но новый запуск не планируется - текущий подхватит
	count, err := env.queue.PendingCount(ctx, "app-x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 0, env.messaging.count(messaging.SyncTasksTopic))
}

func TestRunIncrementalDrainsQueue(t *testing.T) {
	env := newServiceEnv(t)
	env.storage.apps["app-x"] = testEnvApp(true)
	env.storage.catalogs["cat-1"] = &models.Catalog{
		ID: "cat-1", ExternalCatalogID: "ext-1", AppID: "app-x", Active: true,
	}
	ctx := context.Background()

	for _, sku := range []string{"1", "2", "3"} {
		require.NoError(t, env.queue.EnqueueSKU(ctx, "app-x", sku))
	}

	require.NoError(t, env.service.RunIncremental(ctx, "app-x"))

	count, err := env.queue.PendingCount(ctx, "app-x")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.Len(t, env.uploader.incremental, 1)
	assert.Len(t, env.uploader.incremental[0], 3)

	// лок снят после завершения
	locked, err := env.queue.IsRunLocked(ctx, "app-x")
	require.NoError(t, err)
	assert.False(t, locked)

	require.Len(t, env.storage.runs, 1)
	assert.Equal(t, models.SyncRunSucceeded, env.storage.runs[0].Status)
	assert.Equal(t, 3, env.storage.runs[0].Valid)
}

func TestRunIncrementalNoOpWhenLocked(t *testing.T) {
	env := newServiceEnv(t)
	env.storage.apps["app-x"] = testEnvApp(true)
	ctx := context.Background()

	acquired, err := env.queue.AcquireRunLock(ctx, "app-x")
	require.NoError(t, err)
	require.True(t, acquired)

	// второй триггер наблюдает лок и выходит без работы
	require.NoError(t, env.service.RunIncremental(ctx, "app-x"))
	assert.Empty(t, env.uploader.incremental)
	assert.Empty(t, env.storage.runs)
}

func TestRunIncrementalEmptyQueueIsSuccess(t *testing.T) {
	env := newServiceEnv(t)
	env.storage.apps["app-x"] = testEnvApp(true)
	env.storage.catalogs["cat-1"] = &models.Catalog{
		ID: "cat-1", ExternalCatalogID: "ext-1", AppID: "app-x", Active: true,
	}

	require.NoError(t, env.service.RunIncremental(context.Background(), "app-x"))

	require.Len(t, env.storage.runs, 1)
	assert.Equal(t, models.SyncRunSucceeded, env.storage.runs[0].Status)
	assert.Equal(t, 0, env.storage.runs[0].Total)
}

func TestRunFullActivatesCatalog(t *testing.T) {
	env := newServiceEnv(t)
	env.storage.apps["app-x"] = testEnvApp(false)
	env.storage.catalogs["cat-1"] = &models.Catalog{
		ID: "cat-1", ExternalCatalogID: "ext-1", AppID: "app-x", Active: false,
	}
	env.gateway.skus = []string{"1", "2"}
	ctx := context.Background()

	require.NoError(t, env.service.RunFull(ctx, "app-x", nil))

	require.Len(t, env.uploader.feeds, 1)
	assert.Len(t, env.uploader.feeds[0], 2)

	// каталог активирован, первоначальная синхронизация завершена
	assert.True(t, env.storage.catalogs["cat-1"].Active)
	assert.True(t, env.storage.apps["app-x"].Config.InitialSyncCompleted)

	// опубликованы событие активации и событие завершения запуска
	require.Equal(t, 2, env.messaging.count(messaging.CatalogEventsTopic))
	var activated CatalogEvent
	require.NoError(t, json.Unmarshal(env.messaging.published[messaging.CatalogEventsTopic][0], &activated))
	assert.Equal(t, messaging.CatalogActivatedEvent, activated.Event)
	assert.Equal(t, "ext-1", activated.ExternalCatalogID)

	require.Len(t, env.storage.runs, 1)
	assert.Equal(t, models.SyncModeFull, env.storage.runs[0].Mode)
	assert.Equal(t, models.SyncRunSucceeded, env.storage.runs[0].Status)
}

func TestRunFullZeroProductsIsSuccessfulNoOp(t *testing.T) {
	env := newServiceEnv(t)
	env.storage.apps["app-x"] = testEnvApp(false)
	env.storage.catalogs["cat-1"] = &models.Catalog{
		ID: "cat-1", ExternalCatalogID: "ext-1", AppID: "app-x", Active: false,
	}
	env.gateway.skus = nil

	require.NoError(t, env.service.RunFull(context.Background(), "app-x", nil))

	assert.Empty(t, env.uploader.feeds)
	assert.True(t, env.storage.catalogs["cat-1"].Active)
	require.Len(t, env.storage.runs, 1)
	assert.Equal(t, models.SyncRunSucceeded, env.storage.runs[0].Status)
}
