package interfaces

import (
	"context"
	"time"
)

// CachePort определяет интерфейс для работы с разделяемым низколатентным хранилищем.
// Реализация может использовать Redis, Memcached или любую другую систему кэширования.
// Помимо обычных операций ключ-значение порт предоставляет атомарные операции
// над множествами (набор SKU, ожидающих синхронизации) и распределенные
// блокировки (лок запуска синхронизации). Все разделяемое между процессами
// состояние изменяется только через эти атомарные операции,
// наивные get-then-set последовательности здесь недопустимы.
type CachePort interface {
	// Get получает значение по ключу.
	// Возвращает ErrCacheMiss, если значение не найдено.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение с указанным сроком действия.
	// Если expiration равно 0, срок действия не устанавливается.
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete удаляет значение по ключу.
	Delete(ctx context.Context, key string) error

	// Операции над множествами

	// SetAdd атомарно добавляет элементы в множество (SADD).
	// Возвращает количество реально добавленных элементов (дубликаты не считаются).
	SetAdd(ctx context.Context, key string, members ...string) (int64, error)

	// SetMembers возвращает все элементы множества.
	// Для отсутствующего ключа возвращает пустой срез без ошибки.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// SetRemove атомарно удаляет ровно перечисленные элементы из множества (SREM).
	// Элементы, добавленные конкурентно во время выборки, не затрагиваются.
	SetRemove(ctx context.Context, key string, members ...string) error

	// SetCard возвращает мощность множества.
	SetCard(ctx context.Context, key string) (int64, error)

	// Expire устанавливает срок действия существующего ключа.
	Expire(ctx context.Context, key string, expiration time.Duration) error

	// Exists проверяет существование ключа.
	Exists(ctx context.Context, key string) (bool, error)

	// Распределенные блокировки

	// Lock пытается получить блокировку с указанным ключом (SETNX).
	// Возвращает true, если блокировка получена успешно.
	Lock(ctx context.Context, key string, expiration time.Duration) (bool, error)

	// ExtendLock продлевает срок действия удерживаемой блокировки.
	// Возвращает ошибку, если блокировка уже не существует.
	ExtendLock(ctx context.Context, key string, expiration time.Duration) error

	// Unlock освобождает блокировку.
	Unlock(ctx context.Context, key string) error

	// Close закрывает соединение с хранилищем.
	Close() error
}
