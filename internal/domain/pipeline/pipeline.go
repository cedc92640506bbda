package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/weni-ai/catalog-sync/internal/clients/source"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/domain/rules"
	"github.com/weni-ai/catalog-sync/internal/utils"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// DefaultWorkers - размер пула обработчиков. Каталоги источника достигают
// сотен тысяч SKU; безграничная конкурентность исчерпала бы локальные
// ресурсы или уперлась бы в лимиты самой платформы.
const DefaultWorkers = 100

// Пределы длины текстовых полей записи
const (
	maxTitleLength       = 200
	maxDescriptionLength = 9999
)

var productsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_sync_products_processed_total",
	Help: "Число обработанных пар (SKU, продавец) по результату",
}, []string{"result"})

// SourceClient - операции источника, нужные конвейеру
type SourceClient interface {
	GetSKUDetail(ctx context.Context, skuID string) (*source.SKUDetail, error)
	SimulateCart(ctx context.Context, skuID, sellerID string) (*source.CartSimulation, error)
}

// Pipeline собирает канонические записи продуктов из сырых данных
// источника: для каждого SKU и каждого активного продавца выполняется
// симуляция корзины и запрашивается статика SKU, результат проходит
// валидацию и цепочку правил.
type Pipeline struct {
	workers int
	logger  interfaces.LoggerPort
}

// NewPipeline создает конвейер с указанным числом обработчиков.
// При workers <= 0 используется DefaultWorkers.
func NewPipeline(workers int, logger interfaces.LoggerPort) *Pipeline {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{workers: workers, logger: logger}
}

// Run обрабатывает перечисленные SKU для перечисленных продавцов.
// Отказ одной пары (SKU, продавец) пропускается и считается невалидным,
// партию он не прерывает. Возвращает выжившие записи и счетчик прогресса.
func (p *Pipeline) Run(ctx context.Context, skuIDs, sellerIDs []string, app *models.App, client SourceClient, chain *rules.Chain) ([]*models.ProductRecord, *models.Progress) {
	progress := models.NewProgress(len(skuIDs) * len(sellerIDs))

	work := make(chan string)
	var records []*models.ProductRecord
	var aggregateMu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for skuID := range work {
				for _, sellerID := range sellerIDs {
					record := p.processPair(ctx, skuID, sellerID, app, client, chain)
					if record == nil {
						progress.AddInvalid()
						productsProcessed.WithLabelValues("invalid").Inc()
						continue
					}
					aggregateMu.Lock()
					records = append(records, record)
					aggregateMu.Unlock()
					progress.AddValid()
					productsProcessed.WithLabelValues("valid").Inc()
				}
			}
		}()
	}

feed:
	for _, skuID := range skuIDs {
		select {
		case <-ctx.Done():
			break feed
		case work <- skuID:
		}
	}
	close(work)
	wg.Wait()
	progress.Finish()

	p.logger.InfoWithContext(ctx, "конвейер завершил партию",
		interfaces.LogField{Key: "app_id", Value: app.ID},
		interfaces.LogField{Key: "skus", Value: len(skuIDs)},
		interfaces.LogField{Key: "valid", Value: progress.Valid()},
		interfaces.LogField{Key: "invalid", Value: progress.Invalid()},
	)

	return records, progress
}

// processPair строит запись для пары (SKU, продавец).
// nil означает, что пара пропущена: ошибка источника, непройденная
// валидация или отказ правила.
func (p *Pipeline) processPair(ctx context.Context, skuID, sellerID string, app *models.App, client SourceClient, chain *rules.Chain) *models.ProductRecord {
	sim, err := client.SimulateCart(ctx, skuID, sellerID)
	if err != nil {
		p.logger.WarnWithContext(ctx, "симуляция корзины не удалась",
			interfaces.LogField{Key: "sku", Value: skuID},
			interfaces.LogField{Key: "seller", Value: sellerID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return nil
	}

	detail, err := client.GetSKUDetail(ctx, skuID)
	if err != nil {
		p.logger.WarnWithContext(ctx, "не удалось получить данные SKU",
			interfaces.LogField{Key: "sku", Value: skuID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return nil
	}

	record := mapRecord(skuID, detail, sim, app)
	if !record.Validate() {
		return nil
	}

	rctx := &rules.Context{
		AppID:    app.ID,
		SellerID: sellerID,
		SKUID:    skuID,
		Currency: sim.Currency,
		Config:   &app.Config,
	}
	if !chain.Apply(record, rctx) {
		return nil
	}
	return record
}

// mapRecord сводит данные симуляции и статику SKU в каноническую запись
func mapRecord(skuID string, detail *source.SKUDetail, sim *source.CartSimulation, app *models.App) *models.ProductRecord {
	title := detail.Name
	if title == "" {
		title = detail.ProductName
	}
	description := detail.Description
	if description == "" {
		description = title
	}

	// доступность требует и наличия, и положительной цены
	availability := models.AvailabilityOutOfStock
	status := models.StatusArchived
	if sim.Available && sim.PriceCents > 0 {
		availability = models.AvailabilityInStock
		status = models.StatusActive
	}

	record := &models.ProductRecord{
		ID:              skuID,
		Title:           utils.CleanText(title, maxTitleLength),
		Description:     utils.CleanText(description, maxDescriptionLength),
		Availability:    availability,
		Status:          status,
		Condition:       "new",
		Link:            productLink(app, detail),
		ImageLink:       detail.ImageURL,
		Brand:           detail.BrandName,
		PriceAmount:     sim.PriceCents,
		ListPriceAmount: sim.ListPriceCents,
	}

	if len(detail.CategoryNames) > 0 {
		names := make([]string, 0, len(detail.CategoryNames))
		for _, name := range detail.CategoryNames {
			names = append(names, name)
		}
		record.ExtraDetails = map[string]string{"categories": strings.Join(names, ";")}
	}

	return record
}

func productLink(app *models.App, detail *source.SKUDetail) string {
	domain := app.Config.StoreDomain
	if domain == "" {
		domain = app.Credentials.Domain
	}
	return strings.TrimSuffix(domain, "/") + detail.DetailURL
}
