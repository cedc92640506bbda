package uploader

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/weni-ai/catalog-sync/internal/clients/catalogapi"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// Параметры опроса статуса фида: опрос с нарастающим интервалом
// 5s -> 10s -> 20s с потолком, общий предел по настенным часам
const (
	feedPollInitialInterval = 5 * time.Second
	feedPollMaxInterval     = 20 * time.Second
	DefaultFeedTimeout      = 15 * time.Minute
)

// ItemUploader - пакетное обновление позиций каталога
type ItemUploader interface {
	BatchUpdate(ctx context.Context, externalCatalogID string, records []*models.ProductRecord) error
}

// FeedUploader - операции полной выгрузки через фид
type FeedUploader interface {
	Create(ctx context.Context, externalCatalogID, name string) (string, error)
	Upload(ctx context.Context, feedID string, contents []byte) (string, error)
	GetUploadStatus(ctx context.Context, feedID string) (*catalogapi.FeedUploadStatus, error)
}

// Uploader доставляет записи продуктов на платформу каталогов:
// инкрементально пакетами ограниченного размера либо полной выгрузкой
// через фид с подтверждением обработки.
type Uploader struct {
	items       ItemUploader
	feeds       FeedUploader
	chunkSize   int
	feedTimeout time.Duration
	pollInitial time.Duration
	pollCeiling time.Duration
	logger      interfaces.LoggerPort
}

// NewUploader создает загрузчик. chunkSize <= 0 означает потолок платформы.
func NewUploader(items ItemUploader, feeds FeedUploader, chunkSize int, logger interfaces.LoggerPort) *Uploader {
	if chunkSize <= 0 || chunkSize > catalogapi.MaxItemsPerBatch {
		chunkSize = catalogapi.MaxItemsPerBatch
	}
	return &Uploader{
		items:       items,
		feeds:       feeds,
		chunkSize:   chunkSize,
		feedTimeout: DefaultFeedTimeout,
		pollInitial: feedPollInitialInterval,
		pollCeiling: feedPollMaxInterval,
		logger:      logger,
	}
}

// SetFeedTimeout задает предел ожидания подтверждения фида
func (u *Uploader) SetFeedTimeout(d time.Duration) {
	if d > 0 {
		u.feedTimeout = d
	}
}

// UploadIncremental отправляет записи пакетами, не превышающими потолок
// позиций на вызов. Ошибка одного пакета не отменяет уже отправленные
// и не мешает отправке остальных; возвращается сводная ошибка с числом
// упавших пакетов.
func (u *Uploader) UploadIncremental(ctx context.Context, externalCatalogID string, records []*models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	var failed int
	var firstErr error
	for start := 0; start < len(records); start += u.chunkSize {
		end := start + u.chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		if err := u.items.BatchUpdate(ctx, externalCatalogID, chunk); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			u.logger.ErrorWithContext(ctx, "пакет обновления не доставлен",
				interfaces.LogField{Key: "catalog_id", Value: externalCatalogID},
				interfaces.LogField{Key: "chunk_start", Value: start},
				interfaces.LogField{Key: "chunk_size", Value: len(chunk)},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d chunks failed: %w",
			failed, (len(records)+u.chunkSize-1)/u.chunkSize, firstErr)
	}
	return nil
}

// UploadFeed сериализует записи в табличный формат платформы, создает фид,
// загружает содержимое и дожидается завершения обработки. По истечении
// предела ожидания возвращается описательная ошибка, бесконечных
// повторов нет.
func (u *Uploader) UploadFeed(ctx context.Context, externalCatalogID, feedName string, records []*models.ProductRecord) error {
	contents, err := serializeCSV(records)
	if err != nil {
		return fmt.Errorf("failed to serialize feed: %w", err)
	}

	feedID, err := u.feeds.Create(ctx, externalCatalogID, feedName)
	if err != nil {
		return fmt.Errorf("failed to create feed: %w", err)
	}

	uploadID, err := u.feeds.Upload(ctx, feedID, contents)
	if err != nil {
		return fmt.Errorf("failed to upload feed: %w", err)
	}

	u.logger.InfoWithContext(ctx, "фид загружен, ожидание обработки",
		interfaces.LogField{Key: "catalog_id", Value: externalCatalogID},
		interfaces.LogField{Key: "feed_id", Value: feedID},
		interfaces.LogField{Key: "upload_id", Value: uploadID},
		interfaces.LogField{Key: "records", Value: len(records)},
	)

	return u.waitForFeed(ctx, feedID)
}

func (u *Uploader) waitForFeed(ctx context.Context, feedID string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = u.pollInitial
	bo.MaxInterval = u.pollCeiling
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = u.feedTimeout

	poll := func() error {
		status, err := u.feeds.GetUploadStatus(ctx, feedID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !status.Finished() {
			return fmt.Errorf("feed %s still processing", feedID)
		}
		return nil
	}

	if err := backoff.Retry(poll, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("feed %s not confirmed within %s: %w", feedID, u.feedTimeout, err)
	}
	return nil
}

var feedHeader = []string{
	"id", "title", "description", "availability", "status", "condition",
	"price", "sale_price", "link", "image_link", "brand",
}

// serializeCSV переводит записи в табличный формат фида
func serializeCSV(records []*models.ProductRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(feedHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			r.ID, r.Title, r.Description, r.Availability, r.Status, r.Condition,
			r.ListPrice, r.Price, r.Link, r.ImageLink, r.Brand,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
