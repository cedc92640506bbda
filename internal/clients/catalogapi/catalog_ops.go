package catalogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// CatalogOps выполняет операции над каталогами бизнес-аккаунта
type CatalogOps struct {
	*ops
}

type createCatalogRequest struct {
	Name     string `json:"name"`
	Vertical string `json:"vertical"`
}

type createCatalogResponse struct {
	ID string `json:"id"`
}

// Create создает каталог в бизнес-аккаунте и возвращает его внешний ID
func (c *CatalogOps) Create(ctx context.Context, businessID, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/owned_product_catalogs", c.baseURL, businessID)

	body, err := json.Marshal(createCatalogRequest{Name: name, Vertical: "commerce"})
	if err != nil {
		return "", fmt.Errorf("failed to marshal catalog request: %w", err)
	}

	var payload createCatalogResponse
	err = c.retrier.Do(ctx, "create_catalog", func(ctx context.Context) error {
		resp, err := c.client.Request(ctx, http.MethodPost, endpoint, nil, body, c.headers())
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Body, &payload)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create catalog: %w", err)
	}
	return payload.ID, nil
}

// Enable подключает каталог к каналу сообщений.
// Только после успешного вызова каталог считается активным.
func (c *CatalogOps) Enable(ctx context.Context, wabaID, externalCatalogID string) error {
	endpoint := fmt.Sprintf("%s/%s/product_catalogs", c.baseURL, wabaID)

	body, err := json.Marshal(map[string]string{"catalog_id": externalCatalogID})
	if err != nil {
		return fmt.Errorf("failed to marshal enable request: %w", err)
	}

	err = c.retrier.Do(ctx, "enable_catalog", func(ctx context.Context) error {
		_, err := c.client.Request(ctx, http.MethodPost, endpoint, nil, body, c.headers())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to enable catalog %s: %w", externalCatalogID, err)
	}
	return nil
}

// Disable отключает каталог от канала сообщений
func (c *CatalogOps) Disable(ctx context.Context, wabaID, externalCatalogID string) error {
	endpoint := fmt.Sprintf("%s/%s/product_catalogs/%s", c.baseURL, wabaID, externalCatalogID)

	err := c.retrier.Do(ctx, "disable_catalog", func(ctx context.Context) error {
		_, err := c.client.Request(ctx, http.MethodDelete, endpoint, nil, nil, c.headers())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to disable catalog %s: %w", externalCatalogID, err)
	}
	return nil
}

// Delete удаляет каталог на удаленной платформе
func (c *CatalogOps) Delete(ctx context.Context, externalCatalogID string) error {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, externalCatalogID)

	err := c.retrier.Do(ctx, "delete_catalog", func(ctx context.Context) error {
		_, err := c.client.Request(ctx, http.MethodDelete, endpoint, nil, nil, c.headers())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete catalog %s: %w", externalCatalogID, err)
	}
	return nil
}
