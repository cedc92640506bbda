package models

// Значения доступности продукта на платформе каталогов
const (
	AvailabilityInStock    = "in stock"
	AvailabilityOutOfStock = "out of stock"
)

// Статусы продукта в каталоге
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// ProductRecord - каноническое представление продукта, передаваемое между
// стадиями конвейера. Живет только в памяти одного запуска: создается
// конвейером для пары (SKU, продавец) и сразу потребляется загрузчиком.
type ProductRecord struct {
	ID           string `json:"id"` // после правила namespace: "{sku}#{seller}"
	Title        string `json:"title"`
	Description  string `json:"description"`
	Availability string `json:"availability"`
	Status       string `json:"status"`
	Condition    string `json:"condition"`
	// Price и ListPrice - строки в формате платформы каталогов,
	// заполняются правилом форматирования валюты из *Amount
	Price     string `json:"price"`
	ListPrice string `json:"list_price"`
	Link      string `json:"link"`
	ImageLink string `json:"image_link"`
	Brand     string `json:"brand"`
	// Суммы в минорных единицах валюты (центах) до форматирования
	PriceAmount     int64 `json:"-"`
	ListPriceAmount int64 `json:"-"`
	// ExtraDetails - атрибуты источника (категории и т.п.), используются правилами
	ExtraDetails map[string]string `json:"extra_details,omitempty"`
}

// Validate проверяет обязательные поля записи.
// Запись отклоняется, если какое-либо обязательное поле пусто, либо если она
// заявлена доступной при цене <= 0.
func (p *ProductRecord) Validate() bool {
	if p.ID == "" || p.Title == "" || p.Availability == "" || p.Status == "" ||
		p.Condition == "" || p.Link == "" || p.ImageLink == "" || p.Brand == "" {
		return false
	}
	if p.Availability == AvailabilityInStock && p.PriceAmount <= 0 {
		return false
	}
	return true
}
