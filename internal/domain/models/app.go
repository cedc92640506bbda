package models

import (
	"encoding/json"
	"time"
)

// Credentials представляет учетные данные приложения для доступа к
// коммерческой платформе-источнику. Принадлежат ровно одному приложению,
// неизменяемы: ротация выполняется заменой записи целиком.
type Credentials struct {
	AppKey   string `json:"app_key"`
	AppToken string `json:"app_token"`
	Domain   string `json:"domain"` // базовый URL магазина, например https://store.myshop.com
}

// AppConfig хранит настройки синхронизации каталога для приложения.
// Заполняется реестром приложений, здесь только читается.
type AppConfig struct {
	// Rules - имена правил преобразования продуктов в порядке применения
	Rules []string `json:"rules"`
	// InitialSyncCompleted - завершена ли первоначальная полная синхронизация;
	// до этого входящие вебхуки отклоняются
	InitialSyncCompleted bool `json:"initial_sync_completed"`
	// CatalogSyncEnabled - включена ли синхронизация каталога для приложения
	CatalogSyncEnabled bool `json:"catalog_sync_enabled"`
	// ExcludedCategories - категории источника, продукты которых не выгружаются
	ExcludedCategories []string `json:"excluded_categories"`
	// StoreDomain - домен витрины для построения ссылок на продукты
	StoreDomain string `json:"store_domain"`
	// BusinessID - идентификатор бизнес-аккаунта на платформе каталогов
	BusinessID string `json:"business_id"`
}

// App представляет зарегистрированное приложение интеграции.
// Регистрация и аутентификация приложений принадлежат внешнему реестру,
// здесь приложение существует как запись с учетными данными и настройками.
type App struct {
	ID          string      `json:"id"`
	Platform    string      `json:"platform"` // платформа-источник, например "vtex"
	Credentials Credentials `json:"credentials"`
	Config      AppConfig   `json:"config"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ConfigJSON сериализует настройки для сохранения в jsonb-колонку.
func (a *App) ConfigJSON() (json.RawMessage, error) {
	return json.Marshal(a.Config)
}
