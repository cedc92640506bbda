package models

import "time"

// Catalog представляет каталог продуктов на платформе назначения.
// Каталог принадлежит ровно одному приложению (приложение может владеть
// несколькими каталогами за время жизни). ExternalCatalogID уникален в
// пределах бизнес-аккаунта на удаленной платформе.
type Catalog struct {
	ID                string `json:"id"`
	ExternalCatalogID string `json:"external_catalog_id"`
	AppID             string `json:"app_id"`
	StoreReference    string `json:"store_reference"` // ссылка на магазин-источник
	Name              string `json:"name"`
	// Active становится true только после успешного вызова включения
	// каталога на удаленной платформе
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Режимы запуска синхронизации
const (
	SyncModeIncremental = "incremental"
	SyncModeFull        = "full"
)

// Статусы запуска синхронизации
const (
	SyncRunSucceeded = "succeeded"
	SyncRunFailed    = "failed"
)

// SyncRunRecord представляет запись в истории запусков синхронизации
type SyncRunRecord struct {
	ID         string    `json:"id"`
	AppID      string    `json:"app_id"`
	Mode       string    `json:"mode"` // "incremental" или "full"
	Total      int       `json:"total"`
	Valid      int       `json:"valid"`
	Invalid    int       `json:"invalid"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
