package catalogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

// FeedOps выполняет операции над фидами полной выгрузки каталога
type FeedOps struct {
	*ops
}

// FeedUploadStatus представляет состояние обработки загрузки фида
type FeedUploadStatus struct {
	ID        string `json:"id"`
	EndTime   string `json:"end_time"`
	NumErrors int    `json:"num_deleted_items"`
}

// Finished сообщает, завершила ли платформа обработку загрузки
func (s *FeedUploadStatus) Finished() bool {
	return s.EndTime != ""
}

type createFeedResponse struct {
	ID string `json:"id"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

type uploadsListResponse struct {
	Data []FeedUploadStatus `json:"data"`
}

// Create создает ресурс фида в каталоге и возвращает его ID
func (c *FeedOps) Create(ctx context.Context, externalCatalogID, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/product_feeds", c.baseURL, externalCatalogID)

	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", fmt.Errorf("failed to marshal feed request: %w", err)
	}

	var payload createFeedResponse
	err = c.retrier.Do(ctx, "create_feed", func(ctx context.Context) error {
		resp, err := c.client.Request(ctx, http.MethodPost, endpoint, nil, body, c.headers())
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Body, &payload)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create feed: %w", err)
	}
	return payload.ID, nil
}

// Upload загружает табличное содержимое фида и возвращает ID загрузки
func (c *FeedOps) Upload(ctx context.Context, feedID string, contents []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/uploads", c.baseURL, feedID)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "products.csv")
	if err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(contents); err != nil {
		return "", fmt.Errorf("failed to write feed contents: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	headers := c.headers()
	headers["Content-Type"] = writer.FormDataContentType()

	var payload uploadResponse
	err = c.retrier.Do(ctx, "upload_feed", func(ctx context.Context) error {
		resp, err := c.client.Request(ctx, http.MethodPost, endpoint, nil, buf.Bytes(), headers)
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Body, &payload)
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload feed %s: %w", feedID, err)
	}
	return payload.ID, nil
}

// GetUploadStatus возвращает состояние последней загрузки фида
func (c *FeedOps) GetUploadStatus(ctx context.Context, feedID string) (*FeedUploadStatus, error) {
	endpoint := fmt.Sprintf("%s/%s/uploads", c.baseURL, feedID)

	var payload uploadsListResponse
	err := c.retrier.Do(ctx, "get_feed_status", func(ctx context.Context) error {
		resp, err := c.client.Request(ctx, http.MethodGet, endpoint, nil, nil, c.headers())
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Body, &payload)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get feed status %s: %w", feedID, err)
	}

	if len(payload.Data) == 0 {
		return &FeedUploadStatus{}, nil
	}
	return &payload.Data[0], nil
}
