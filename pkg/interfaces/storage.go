package interfaces

import (
	"context"
)

// StoragePort определяет интерфейс для работы с постоянным хранилищем данных.
// Реализация может использовать любую реляционную базу (PostgreSQL, MySQL и т.д.)
type StoragePort interface {
	// BeginTx начинает новую транзакцию; возвращает контекст с транзакцией внутри
	BeginTx(ctx context.Context) (context.Context, error)

	// CommitTx фиксирует транзакцию
	CommitTx(ctx context.Context) error

	// RollbackTx откатывает транзакцию
	RollbackTx(ctx context.Context) error

	// Close закрывает соединение с хранилищем
	Close() error
}
