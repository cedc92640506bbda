package resilient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/weni-ai/catalog-sync/pkg/interfaces"
	"golang.org/x/time/rate"
)

// заголовки, значения которых не попадают в логи
var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"x-vtex-api-appkey":   {},
	"x-vtex-api-apptoken": {},
	"x-app-key":           {},
	"x-app-token":         {},
}

// Response - разобранный ответ удаленной стороны.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Client выполняет подписанные HTTP-вызовы к внешним платформам.
// Исходящий поток запросов ограничен token-bucket лимитером: каталоги
// источника могут содержать сотни тысяч SKU, и без ограничения клиент
// упирается в лимиты самой платформы.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     interfaces.LoggerPort
}

// NewClient создает клиент с таймаутом запроса и ограничением rps.
// rps <= 0 отключает ограничение.
func NewClient(timeout time.Duration, rps float64, logger interfaces.LoggerPort) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// Request выполняет запрос и возвращает ответ либо типизированную ошибку.
// Не-2xx коды превращаются в RateLimitedError / ServerError / ClientError,
// сетевые сбои - в TransportError. Контекст запроса и ответа логируется,
// секретные заголовки вырезаются.
func (c *Client) Request(ctx context.Context, method, rawURL string, params url.Values, body []byte, headers map[string]string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Method: method, URL: rawURL, Err: err}
	}

	fullURL := rawURL
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		fullURL = rawURL + sep + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, &TransportError{Method: method, URL: fullURL, Err: err}
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithContext(ctx, "Ошибка выполнения HTTP-запроса",
			interfaces.LogField{Key: "method", Value: method},
			interfaces.LogField{Key: "url", Value: fullURL},
			interfaces.LogField{Key: "headers", Value: scrubHeaders(headers)},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return nil, &TransportError{Method: method, URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: fullURL, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			Headers:    resp.Header,
		}, nil
	}

	apiErr := APIError{
		Method:     method,
		URL:        fullURL,
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}

	c.logger.WarnWithContext(ctx, "Удаленная платформа ответила ошибкой",
		interfaces.LogField{Key: "method", Value: method},
		interfaces.LogField{Key: "url", Value: fullURL},
		interfaces.LogField{Key: "status", Value: resp.StatusCode},
		interfaces.LogField{Key: "headers", Value: scrubHeaders(headers)},
		interfaces.LogField{Key: "body", Value: truncateBody(respBody)},
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitedError{APIError: apiErr}
	case resp.StatusCode >= 500:
		return nil, &ServerError{APIError: apiErr}
	default:
		return nil, &ClientError{APIError: apiErr}
	}
}

// scrubHeaders возвращает копию заголовков с замазанными секретами.
func scrubHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	scrubbed := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, secret := sensitiveHeaders[strings.ToLower(k)]; secret {
			scrubbed[k] = "***"
			continue
		}
		scrubbed[k] = v
	}
	return scrubbed
}
