package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weni-ai/catalog-sync/internal/adapters/messaging"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/testutil"
	"github.com/weni-ai/catalog-sync/internal/utils"
)

func newCatalogEnv(t *testing.T) (*CatalogService, *fakeStorage, *fakeMessaging) {
	t.Helper()
	logger := testutil.NewNopLogger()
	storage := newFakeStorage()
	m := newFakeMessaging()
	service := NewCatalogService(storage, &fakeCatalogGateway{}, NewScheduler(m, logger), logger)
	return service, storage, m
}

func TestCreateCatalogSchedulesInitialSync(t *testing.T) {
	service, storage, m := newCatalogEnv(t)
	storage.apps["app-x"] = testEnvApp(false)

	catalog, err := service.CreateCatalog(context.Background(), "app-x", "loja principal")
	require.NoError(t, err)

	assert.Equal(t, "ext-1", catalog.ExternalCatalogID)
	assert.False(t, catalog.Active)
	assert.Equal(t, 1, m.count(messaging.SyncTasksTopic))
	assert.Equal(t, 1, m.count(messaging.CatalogEventsTopic))
}

func TestCreateCatalogUnknownApp(t *testing.T) {
	service, _, _ := newCatalogEnv(t)

	_, err := service.CreateCatalog(context.Background(), "nope", "loja")
	assert.ErrorIs(t, err, utils.ErrAppNotFound)
}

func TestEnableCatalogPublishesEvent(t *testing.T) {
	service, storage, m := newCatalogEnv(t)
	storage.catalogs["cat-1"] = &models.Catalog{
		ID: "cat-1", ExternalCatalogID: "ext-1", AppID: "app-x", Active: false,
	}

	require.NoError(t, service.EnableCatalog(context.Background(), "cat-1", "waba-1"))

	assert.True(t, storage.catalogs["cat-1"].Active)
	assert.Equal(t, 1, m.count(messaging.CatalogEventsTopic))
}

func TestDisableCatalog(t *testing.T) {
	service, storage, _ := newCatalogEnv(t)
	storage.catalogs["cat-1"] = &models.Catalog{
		ID: "cat-1", ExternalCatalogID: "ext-1", AppID: "app-x", Active: true,
	}

	require.NoError(t, service.DisableCatalog(context.Background(), "cat-1", "waba-1"))
	assert.False(t, storage.catalogs["cat-1"].Active)
}

func TestDeleteCatalogRemovesLocalRecord(t *testing.T) {
	service, storage, _ := newCatalogEnv(t)
	storage.catalogs["cat-1"] = &models.Catalog{
		ID: "cat-1", ExternalCatalogID: "ext-1", AppID: "app-x",
	}

	require.NoError(t, service.DeleteCatalog(context.Background(), "cat-1"))

	_, err := storage.GetCatalog(context.Background(), "cat-1")
	assert.ErrorIs(t, err, utils.ErrCatalogNotFound)
}
