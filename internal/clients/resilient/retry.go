package resilient

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

const (
	// DefaultMaxAttempts - число попыток по умолчанию, включая первую
	DefaultMaxAttempts = 8
	// DefaultBaseInterval - стартовая задержка экспоненциального отступа
	DefaultBaseInterval = 1 * time.Second
	// logAttemptThreshold - с какой попытки начинаем логировать повторы
	logAttemptThreshold = 3
)

// Retrier оборачивает операцию повторами с экспоненциальным отступом.
// Повторяются только переходные сбои (таймаут, 429, 5xx), прочие 4xx
// пробрасываются сразу без повторов. Это разделение - инвариант клиента,
// его нельзя ослаблять.
type Retrier struct {
	maxAttempts  int
	baseInterval time.Duration
	logger       interfaces.LoggerPort
}

// NewRetrier создает декоратор повторов.
// maxAttempts <= 0 и baseInterval <= 0 заменяются значениями по умолчанию.
func NewRetrier(maxAttempts int, baseInterval time.Duration, logger interfaces.LoggerPort) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseInterval <= 0 {
		baseInterval = DefaultBaseInterval
	}
	return &Retrier{
		maxAttempts:  maxAttempts,
		baseInterval: baseInterval,
		logger:       logger,
	}
}

// Do выполняет op, повторяя переходные ошибки до maxAttempts попыток.
// По исчерпании попыток возвращает ErrRetryExhausted, оборачивающую
// последнюю ошибку.
func (r *Retrier) Do(ctx context.Context, opName string, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.baseInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = r.baseInterval * 64
	bo.MaxElapsedTime = 0 // ограничиваем числом попыток, не временем

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		if attempt >= logAttemptThreshold {
			r.logger.WarnWithContext(ctx, "Повтор операции после переходной ошибки",
				interfaces.LogField{Key: "operation", Value: opName},
				interfaces.LogField{Key: "attempt", Value: attempt},
				interfaces.LogField{Key: "max_attempts", Value: r.maxAttempts},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
		return err
	}

	err := backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.maxAttempts-1)), ctx))
	if err == nil {
		return nil
	}
	if !IsRetryable(err) {
		// фатальная ошибка клиента или отмена контекста - без обертки
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrRetryExhausted, opName, err)
}
