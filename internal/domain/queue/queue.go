package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// Сроки действия ключей очереди
const (
	// PendingTTL - время жизни множества ожидающих SKU; защищает от
	// накопления мусора, если приложение перестало синхронизироваться
	PendingTTL = 2 * time.Hour
	// LockTTL - время жизни лока запуска; выбрано с запасом над временем
	// обработки одной партии, продлевается перед каждой партией
	LockTTL = 5 * time.Minute
)

func pendingKey(appID string) string {
	return "catalog:pending:" + appID
}

func lockKey(appID string) string {
	return "catalog:lock:" + appID
}

// WebhookQueue коалесцирует вебхуки изменения продуктов в множество
// ожидающих SKU на приложение и выдает их партиями под локом запуска.
// Состояние живет в разделяемом хранилище - несколько процессов видят
// одну очередь.
type WebhookQueue struct {
	cache  interfaces.CachePort
	logger interfaces.LoggerPort
}

// NewWebhookQueue создает очередь поверх разделяемого хранилища
func NewWebhookQueue(cache interfaces.CachePort, logger interfaces.LoggerPort) *WebhookQueue {
	return &WebhookQueue{cache: cache, logger: logger}
}

// EnqueueSKU идемпотентно добавляет SKU в множество ожидающих.
// Повторное добавление того же SKU до выборки не создает дубликата.
// Тело вебхука не сохраняется: оркестратор всегда перечитывает
// актуальное состояние у источника.
func (q *WebhookQueue) EnqueueSKU(ctx context.Context, appID, skuID string) error {
	key := pendingKey(appID)

	if _, err := q.cache.SetAdd(ctx, key, skuID); err != nil {
		return fmt.Errorf("failed to enqueue sku: %w", err)
	}
	if err := q.cache.Expire(ctx, key, PendingTTL); err != nil {
		return fmt.Errorf("failed to refresh pending ttl: %w", err)
	}
	return nil
}

// DequeueBatch выбирает до maxBatchSize ожидающих SKU и удаляет ровно их.
// Выборка устроена как чтение с последующим удалением по разности, а не
// разрушающая очистка: SKU, добавленный конкурентно во время выборки,
// не теряется. Перед возвратом продлевается лок запуска.
// Пустой срез означает, что ожидающих нет.
func (q *WebhookQueue) DequeueBatch(ctx context.Context, appID string, maxBatchSize int) ([]string, error) {
	key := pendingKey(appID)

	members, err := q.cache.SetMembers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending set: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	selected := members
	if len(selected) > maxBatchSize {
		selected = selected[:maxBatchSize]
	}

	if err := q.cache.SetRemove(ctx, key, selected...); err != nil {
		return nil, fmt.Errorf("failed to remove selected skus: %w", err)
	}

	if err := q.ExtendRunLock(ctx, appID); err != nil {
		// лок не продлен - возвращаем выбранные SKU в множество,
		// доставка как минимум однократная
		if _, addErr := q.cache.SetAdd(ctx, key, selected...); addErr != nil {
			q.logger.ErrorWithContext(ctx, "не удалось вернуть SKU в очередь",
				interfaces.LogField{Key: "app_id", Value: appID},
				interfaces.LogField{Key: "count", Value: len(selected)},
				interfaces.LogField{Key: "error", Value: addErr.Error()},
			)
		}
		return nil, fmt.Errorf("failed to extend run lock: %w", err)
	}

	return selected, nil
}

// IsRunLocked сообщает, идет ли сейчас запуск синхронизации приложения.
// Используется обработчиком вебхуков, чтобы решить, планировать ли новый
// запуск или довериться текущему.
func (q *WebhookQueue) IsRunLocked(ctx context.Context, appID string) (bool, error) {
	locked, err := q.cache.Exists(ctx, lockKey(appID))
	if err != nil {
		return false, fmt.Errorf("failed to probe run lock: %w", err)
	}
	return locked, nil
}

// AcquireRunLock пытается захватить лок запуска.
// Возвращает false, если лок уже удерживается другим запуском.
func (q *WebhookQueue) AcquireRunLock(ctx context.Context, appID string) (bool, error) {
	acquired, err := q.cache.Lock(ctx, lockKey(appID), LockTTL)
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return acquired, nil
}

// ExtendRunLock продлевает удерживаемый лок запуска.
// Вызывается перед обработкой каждой партии, а не только при старте.
func (q *WebhookQueue) ExtendRunLock(ctx context.Context, appID string) error {
	return q.cache.ExtendLock(ctx, lockKey(appID), LockTTL)
}

// ReleaseRunLock освобождает лок запуска.
// При падении процесса лок снимается сам по истечении TTL.
func (q *WebhookQueue) ReleaseRunLock(ctx context.Context, appID string) error {
	return q.cache.Unlock(ctx, lockKey(appID))
}

// PendingCount возвращает число SKU, ожидающих синхронизации
func (q *WebhookQueue) PendingCount(ctx context.Context, appID string) (int64, error) {
	return q.cache.SetCard(ctx, pendingKey(appID))
}
