package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/weni-ai/catalog-sync/internal/api/handlers"
	"github.com/weni-ai/catalog-sync/internal/api/middleware"
	"github.com/weni-ai/catalog-sync/internal/security"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// SetupRouter настраивает маршрутизатор
func SetupRouter(
	webhookHandler *handlers.WebhookHandler,
	catalogHandler *handlers.CatalogHandler,
	logger interfaces.LoggerPort,
	corsAllowedOrigins []string,
	jwtManager *security.JWTManager,
) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.CORS(corsAllowedOrigins))

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Вебхуки источника: без JWT, аутентификация по принадлежности
	// app_id зарегистрированному приложению
	r.Post("/{platform}/{app_id}/products-update", webhookHandler.ProductsUpdate)

	// Операторские эндпоинты
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.JWTAuth(jwtManager, logger))

		r.Route("/catalogs", func(r chi.Router) {
			r.With(middleware.RequirePermission(jwtManager, "catalog:create")).Post("/", catalogHandler.CreateCatalog)

			r.Route("/{id}", func(r chi.Router) {
				r.With(middleware.RequirePermission(jwtManager, "catalog:read")).Get("/", catalogHandler.GetCatalog)
				r.With(middleware.RequirePermission(jwtManager, "catalog:update")).Post("/enable", catalogHandler.EnableCatalog)
				r.With(middleware.RequirePermission(jwtManager, "catalog:update")).Post("/disable", catalogHandler.DisableCatalog)
				r.With(middleware.RequirePermission(jwtManager, "catalog:delete")).Delete("/", catalogHandler.DeleteCatalog)
			})
		})

		r.Route("/apps/{app_id}", func(r chi.Router) {
			r.With(middleware.RequirePermission(jwtManager, "catalog:read")).Get("/catalogs", catalogHandler.ListCatalogs)
			r.With(middleware.RequirePermission(jwtManager, "catalog:read")).Get("/sync-runs", catalogHandler.ListSyncRuns)
			r.With(middleware.RequirePermission(jwtManager, "catalog:sync")).Post("/resync", catalogHandler.Resync)
		})
	})

	return r
}
