package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// Context передает правилам настройки приложения и контекст пары
// (SKU, продавец), из которой собрана запись
type Context struct {
	AppID    string
	SellerID string
	SKUID    string
	Currency string
	Config   *models.AppConfig
}

// Rule - именованное преобразование записи продукта.
// Apply возвращает false, если продукт должен быть исключен из выгрузки.
type Rule interface {
	Name() string
	Apply(product *models.ProductRecord, rctx *Context) bool
}

// реестр правил, имя -> реализация; заполняется при инициализации пакета
var registry = map[string]Rule{}

func register(r Rule) {
	registry[r.Name()] = r
}

func init() {
	register(&currencyFormatRule{})
	register(&excludeCategoriesRule{})
	register(&sellerNamespaceRule{})
}

// Chain - упорядоченная цепочка правил, разрешенная из настроек приложения
type Chain struct {
	rules  []Rule
	logger interfaces.LoggerPort
}

// NewChain разрешает имена правил из настроек приложения через реестр.
// Неизвестные имена пропускаются с предупреждением, порядок сохраняется.
func NewChain(names []string, logger interfaces.LoggerPort) *Chain {
	chain := &Chain{logger: logger}
	for _, name := range names {
		rule, ok := registry[name]
		if !ok {
			logger.Warn("неизвестное правило пропущено",
				interfaces.LogField{Key: "rule", Value: name},
			)
			continue
		}
		chain.rules = append(chain.rules, rule)
	}
	return chain
}

// Apply прогоняет запись через правила в настроенном порядке.
// Первый отказ прерывает цепочку, последующие правила не выполняются.
func (c *Chain) Apply(product *models.ProductRecord, rctx *Context) bool {
	for _, rule := range c.rules {
		if !rule.Apply(product, rctx) {
			return false
		}
	}
	return true
}

// currencyFormatRule переводит суммы в минорных единицах в строку
// формата платформы каталогов: "12.34 BRL"
type currencyFormatRule struct{}

func (r *currencyFormatRule) Name() string { return "currency_format" }

func (r *currencyFormatRule) Apply(product *models.ProductRecord, rctx *Context) bool {
	currency := rctx.Currency
	if currency == "" {
		currency = "BRL"
	}

	product.Price = formatAmount(product.PriceAmount, currency)
	product.ListPrice = formatAmount(product.ListPriceAmount, currency)
	return true
}

func formatAmount(cents int64, currency string) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2) + " " + currency
}

// excludeCategoriesRule исключает продукты из категорий, перечисленных
// в настройках приложения. Сопоставление по именам категорий источника
// без учета регистра.
type excludeCategoriesRule struct{}

func (r *excludeCategoriesRule) Name() string { return "exclude_categories" }

func (r *excludeCategoriesRule) Apply(product *models.ProductRecord, rctx *Context) bool {
	if rctx.Config == nil || len(rctx.Config.ExcludedCategories) == 0 {
		return true
	}

	categories := product.ExtraDetails["categories"]
	if categories == "" {
		return true
	}

	for _, excluded := range rctx.Config.ExcludedCategories {
		for _, category := range strings.Split(categories, ";") {
			if strings.EqualFold(strings.TrimSpace(category), excluded) {
				return false
			}
		}
	}
	return true
}

// sellerNamespaceRule переписывает идентификатор записи в "{sku}#{seller}",
// чтобы один SKU у разных продавцов давал различимые позиции каталога
type sellerNamespaceRule struct{}

func (r *sellerNamespaceRule) Name() string { return "seller_namespace" }

func (r *sellerNamespaceRule) Apply(product *models.ProductRecord, rctx *Context) bool {
	if rctx.SellerID == "" {
		return true
	}
	product.ID = rctx.SKUID + "#" + rctx.SellerID
	return true
}
