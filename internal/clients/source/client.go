package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/weni-ai/catalog-sync/internal/clients/resilient"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// Seller представляет продавца на платформе-источнике
type Seller struct {
	ID       string `json:"SellerId"`
	Name     string `json:"Name"`
	IsActive bool   `json:"IsActive"`
}

// SKUDetail представляет статические данные SKU из каталога источника
type SKUDetail struct {
	ID              int               `json:"Id"`
	ProductID       int               `json:"ProductId"`
	Name            string            `json:"NameComplete"`
	ProductName     string            `json:"ProductName"`
	Description     string            `json:"ProductDescription"`
	BrandName       string            `json:"BrandName"`
	IsActive        bool              `json:"IsActive"`
	ImageURL        string            `json:"ImageUrl"`
	DetailURL       string            `json:"DetailUrl"`
	CategoryNames   map[string]string `json:"ProductCategories"`
	ReleaseDate     string            `json:"ReleaseDate"`
	MeasurementUnit string            `json:"MeasurementUnit"`
}

// CartSimulation представляет результат симуляции корзины для пары
// (SKU, продавец): доступность и цена в минорных единицах валюты
type CartSimulation struct {
	Available bool
	// PriceCents и ListPriceCents в сотых долях валюты
	PriceCents     int64
	ListPriceCents int64
	Currency       string
}

type simulationRequest struct {
	Items []simulationItem `json:"items"`
}

type simulationItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Seller   string `json:"seller"`
}

type simulationResponse struct {
	Items []struct {
		ID           string `json:"id"`
		Availability string `json:"availability"`
		SellingPrice int64  `json:"sellingPrice"`
		ListPrice    int64  `json:"listPrice"`
	} `json:"items"`
	StorePreferencesData struct {
		CurrencyCode string `json:"currencyCode"`
	} `json:"storePreferencesData"`
}

// Client выполняет вызовы к REST API коммерческой платформы-источника
// от имени одного приложения. Все запросы подписываются учетными
// данными приложения и проходят через повторитель.
type Client struct {
	creds   models.Credentials
	client  *resilient.Client
	retrier *resilient.Retrier
	logger  interfaces.LoggerPort
}

// NewClient создает клиента источника для приложения
func NewClient(creds models.Credentials, client *resilient.Client, retrier *resilient.Retrier, logger interfaces.LoggerPort) *Client {
	return &Client{
		creds:   creds,
		client:  client,
		retrier: retrier,
		logger:  logger,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Accept":              "application/json",
		"Content-Type":        "application/json",
		"X-VTEX-API-AppKey":   c.creds.AppKey,
		"X-VTEX-API-AppToken": c.creds.AppToken,
	}
}

// ListSKUIDs возвращает страницу идентификаторов SKU каталога источника.
// Пустая страница означает конец каталога.
func (c *Client) ListSKUIDs(ctx context.Context, page, pageSize int) ([]string, error) {
	endpoint := c.creds.Domain + "/api/catalog_system/pvt/sku/stockkeepingunitids"
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("pagesize", strconv.Itoa(pageSize))

	var ids []int
	err := c.retrier.Do(ctx, "list_sku_ids", func(ctx context.Context) error {
		resp, err := c.client.Request(ctx, http.MethodGet, endpoint, params, nil, c.headers())
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Body, &ids)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sku ids: %w", err)
	}

	result := make([]string, 0, len(ids))
	for _, id := range ids {
		result = append(result, strconv.Itoa(id))
	}
	return result, nil
}

// GetSKUDetail возвращает статические данные SKU
func (c *Client) GetSKUDetail(ctx context.Context, skuID string) (*SKUDetail, error) {
	endpoint := c.creds.Domain + "/api/catalog_system/pvt/sku/stockkeepingunitbyid/" + skuID

	var detail SKUDetail
	err := c.retrier.Do(ctx, "get_sku_detail", func(ctx context.Context) error {
		resp, err := c.client.Request(ctx, http.MethodGet, endpoint, nil, nil, c.headers())
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Body, &detail)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get sku detail %s: %w", skuID, err)
	}
	return &detail, nil
}

// SimulateCart выполняет симуляцию корзины для пары (SKU, продавец).
// Отсутствие позиции в ответе трактуется как недоступность.
func (c *Client) SimulateCart(ctx context.Context, skuID, sellerID string) (*CartSimulation, error) {
	endpoint := c.creds.Domain + "/api/checkout/pub/orderForms/simulation"

	body, err := json.Marshal(simulationRequest{
		Items: []simulationItem{{ID: skuID, Quantity: 1, Seller: sellerID}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal simulation request: %w", err)
	}

	var payload simulationResponse
	err = c.retrier.Do(ctx, "simulate_cart", func(ctx context.Context) error {
		resp, err := c.client.Request(ctx, http.MethodPost, endpoint, nil, body, c.headers())
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Body, &payload)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to simulate cart for sku %s seller %s: %w", skuID, sellerID, err)
	}

	sim := &CartSimulation{Currency: payload.StorePreferencesData.CurrencyCode}
	if len(payload.Items) == 0 {
		return sim, nil
	}

	item := payload.Items[0]
	sim.Available = item.Availability == "available"
	sim.PriceCents = item.SellingPrice
	sim.ListPriceCents = item.ListPrice
	if sim.ListPriceCents == 0 {
		sim.ListPriceCents = sim.PriceCents
	}
	return sim, nil
}

// ListActiveSellers возвращает идентификаторы активных продавцов магазина
func (c *Client) ListActiveSellers(ctx context.Context) ([]string, error) {
	endpoint := c.creds.Domain + "/api/catalog_system/pvt/seller/list"

	var sellers []Seller
	err := c.retrier.Do(ctx, "list_sellers", func(ctx context.Context) error {
		resp, err := c.client.Request(ctx, http.MethodGet, endpoint, nil, nil, c.headers())
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Body, &sellers)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sellers: %w", err)
	}

	var active []string
	for _, s := range sellers {
		if s.IsActive {
			active = append(active, s.ID)
		}
	}

	c.logger.DebugWithContext(ctx, "получен список продавцов",
		interfaces.LogField{Key: "total", Value: len(sellers)},
		interfaces.LogField{Key: "active", Value: len(active)},
	)
	return active, nil
}

// DefaultTimeout таймаут одного запроса к источнику
const DefaultTimeout = 30 * time.Second
