package catalogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/weni-ai/catalog-sync/internal/domain/models"
)

// MaxItemsPerBatch задокументированный потолок позиций в одном
// пакетном вызове платформы каталогов
const MaxItemsPerBatch = 5000

// ItemOps выполняет пакетные операции над позициями каталога
type ItemOps struct {
	*ops
}

type batchRequest struct {
	AllowUpsert bool        `json:"allow_upsert"`
	Requests    []batchItem `json:"requests"`
}

type batchItem struct {
	Method string                `json:"method"`
	Data   *models.ProductRecord `json:"data"`
}

type batchResponse struct {
	Handles []string `json:"handles"`
}

// BatchUpdate отправляет один пакет обновлений позиций.
// len(records) не должен превышать MaxItemsPerBatch, за нарезку
// отвечает вызывающая сторона.
func (c *ItemOps) BatchUpdate(ctx context.Context, externalCatalogID string, records []*models.ProductRecord) error {
	if len(records) > MaxItemsPerBatch {
		return fmt.Errorf("batch of %d items exceeds limit of %d", len(records), MaxItemsPerBatch)
	}

	endpoint := fmt.Sprintf("%s/%s/items_batch", c.baseURL, externalCatalogID)

	requests := make([]batchItem, 0, len(records))
	for _, record := range records {
		requests = append(requests, batchItem{Method: "UPDATE", Data: record})
	}

	body, err := json.Marshal(batchRequest{AllowUpsert: true, Requests: requests})
	if err != nil {
		return fmt.Errorf("failed to marshal batch request: %w", err)
	}

	var payload batchResponse
	err = c.retrier.Do(ctx, "batch_update_items", func(ctx context.Context) error {
		resp, err := c.client.Request(ctx, http.MethodPost, endpoint, nil, body, c.headers())
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Body, &payload)
	})
	if err != nil {
		return fmt.Errorf("failed to update items batch: %w", err)
	}
	return nil
}
