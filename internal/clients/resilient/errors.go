package resilient

import (
	"errors"
	"fmt"
)

// ErrRetryExhausted - терминальная ошибка декоратора повторов: все попытки
// исчерпаны, последняя ошибка доступна через errors.Unwrap.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// TransportError - сетевая ошибка или таймаут при выполнении запроса.
// Повторяемая.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError - ответ удаленной стороны с кодом вне 2xx.
// Несет статус и тело ответа для диагностики.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, truncateBody(e.Body))
}

// RateLimitedError - HTTP 429, повторяемая с экспоненциальной задержкой.
type RateLimitedError struct {
	APIError
}

// ServerError - HTTP 5xx, повторяемая.
type ServerError struct {
	APIError
}

// ClientError - прочие 4xx: ошибка вызывающей стороны, повтор бессмыслен.
type ClientError struct {
	APIError
}

// IsRetryable сообщает, имеет ли смысл повторять операцию.
// Повторяются только сетевые сбои, 429 и 5xx; остальные 4xx фатальны.
func IsRetryable(err error) bool {
	var (
		transport *TransportError
		limited   *RateLimitedError
		server    *ServerError
	)
	return errors.As(err, &transport) || errors.As(err, &limited) || errors.As(err, &server)
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
