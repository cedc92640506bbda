package catalogapi

import (
	"github.com/weni-ai/catalog-sync/internal/clients/resilient"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

const defaultBaseURL = "https://graph.facebook.com/v21.0"

// Client объединяет именованные под-клиенты платформы каталогов.
// Под-клиенты выбираются по возможности, а не наследуются: операции
// над каталогами, над позициями и над фидами независимы друг от друга.
type Client struct {
	Catalogs *CatalogOps
	Items    *ItemOps
	Feeds    *FeedOps
}

// NewClient создает клиента платформы каталогов.
// accessToken - системный токен доступа к бизнес-аккаунту.
func NewClient(baseURL, accessToken string, httpClient *resilient.Client, retrier *resilient.Retrier, logger interfaces.LoggerPort) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := &ops{
		baseURL:     baseURL,
		accessToken: accessToken,
		client:      httpClient,
		retrier:     retrier,
		logger:      logger,
	}
	return &Client{
		Catalogs: &CatalogOps{ops: base},
		Items:    &ItemOps{ops: base},
		Feeds:    &FeedOps{ops: base},
	}
}

// ops хранит общее состояние под-клиентов
type ops struct {
	baseURL     string
	accessToken string
	client      *resilient.Client
	retrier     *resilient.Retrier
	logger      interfaces.LoggerPort
}

func (o *ops) headers() map[string]string {
	return map[string]string{
		"Accept":        "application/json",
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + o.accessToken,
	}
}
