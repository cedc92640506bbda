package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/utils"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// CatalogManager - операции жизненного цикла каталогов
type CatalogManager interface {
	CreateCatalog(ctx context.Context, appID, name string) (*models.Catalog, error)
	GetCatalog(ctx context.Context, catalogID string) (*models.Catalog, error)
	ListCatalogs(ctx context.Context, appID string) ([]*models.Catalog, error)
	EnableCatalog(ctx context.Context, catalogID, wabaID string) error
	DisableCatalog(ctx context.Context, catalogID, wabaID string) error
	DeleteCatalog(ctx context.Context, catalogID string) error
}

// SyncRunReader - доступ к истории запусков синхронизации
type SyncRunReader interface {
	ListSyncRuns(ctx context.Context, appID string, limit int) ([]*models.SyncRunRecord, error)
}

// SyncTrigger планирует запуски синхронизации по запросу оператора
type SyncTrigger interface {
	Schedule(ctx context.Context, appID, mode string, sellers []string) error
}

// CatalogHandler - операторские эндпоинты управления каталогами
type CatalogHandler struct {
	catalogs CatalogManager
	runs     SyncRunReader
	trigger  SyncTrigger
	validate *validator.Validate
	logger   interfaces.LoggerPort
}

// NewCatalogHandler создает обработчик операторских эндпоинтов
func NewCatalogHandler(catalogs CatalogManager, runs SyncRunReader, trigger SyncTrigger, logger interfaces.LoggerPort) *CatalogHandler {
	return &CatalogHandler{
		catalogs: catalogs,
		runs:     runs,
		trigger:  trigger,
		validate: validator.New(),
		logger:   logger,
	}
}

type createCatalogRequest struct {
	AppID string `json:"app_id" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

type connectCatalogRequest struct {
	WabaID string `json:"waba_id" validate:"required"`
}

type resyncRequest struct {
	Sellers []string `json:"sellers,omitempty"`
}

// CreateCatalog обрабатывает POST /api/v1/catalogs
func (h *CatalogHandler) CreateCatalog(w http.ResponseWriter, r *http.Request) {
	var req createCatalogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "Некорректное тело запроса")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.badRequest(w, r, "app_id и name обязательны")
		return
	}

	catalog, err := h.catalogs.CreateCatalog(r.Context(), req.AppID, req.Name)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка создания каталога")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response{Success: true, Data: catalog})
}

// GetCatalog обрабатывает GET /api/v1/catalogs/{id}
func (h *CatalogHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.catalogs.GetCatalog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения каталога")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: catalog})
}

// ListCatalogs обрабатывает GET /api/v1/apps/{app_id}/catalogs
func (h *CatalogHandler) ListCatalogs(w http.ResponseWriter, r *http.Request) {
	catalogs, err := h.catalogs.ListCatalogs(r.Context(), chi.URLParam(r, "app_id"))
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения каталогов")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: catalogs})
}

// EnableCatalog обрабатывает POST /api/v1/catalogs/{id}/enable
func (h *CatalogHandler) EnableCatalog(w http.ResponseWriter, r *http.Request) {
	var req connectCatalogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "Некорректное тело запроса")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.badRequest(w, r, "waba_id обязателен")
		return
	}

	if err := h.catalogs.EnableCatalog(r.Context(), chi.URLParam(r, "id"), req.WabaID); err != nil {
		h.serviceError(w, r, err, "Ошибка включения каталога")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true})
}

// DisableCatalog обрабатывает POST /api/v1/catalogs/{id}/disable
func (h *CatalogHandler) DisableCatalog(w http.ResponseWriter, r *http.Request) {
	var req connectCatalogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "Некорректное тело запроса")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.badRequest(w, r, "waba_id обязателен")
		return
	}

	if err := h.catalogs.DisableCatalog(r.Context(), chi.URLParam(r, "id"), req.WabaID); err != nil {
		h.serviceError(w, r, err, "Ошибка отключения каталога")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true})
}

// DeleteCatalog обрабатывает DELETE /api/v1/catalogs/{id}
func (h *CatalogHandler) DeleteCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.catalogs.DeleteCatalog(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.serviceError(w, r, err, "Ошибка удаления каталога")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true})
}

// Resync обрабатывает POST /api/v1/apps/{app_id}/resync:
// операторский запрос полной пересинхронизации, опционально
// ограниченной перечисленными продавцами
func (h *CatalogHandler) Resync(w http.ResponseWriter, r *http.Request) {
	var req resyncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, r, "Некорректное тело запроса")
			return
		}
	}

	appID := chi.URLParam(r, "app_id")
	if err := h.trigger.Schedule(r.Context(), appID, models.SyncModeFull, req.Sellers); err != nil {
		h.serviceError(w, r, err, "Ошибка планирования синхронизации")
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response{Success: true})
}

// ListSyncRuns обрабатывает GET /api/v1/apps/{app_id}/sync-runs
func (h *CatalogHandler) ListSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.runs.ListSyncRuns(r.Context(), chi.URLParam(r, "app_id"), limit)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения истории запусков")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: runs})
}

func (h *CatalogHandler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorResponse{
		Error:   "bad_request",
		Code:    http.StatusBadRequest,
		Message: message,
	})
}

func (h *CatalogHandler) serviceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, utils.ErrAppNotFound), errors.Is(err, utils.ErrCatalogNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{
			Error:   "not_found",
			Code:    http.StatusNotFound,
			Message: err.Error(),
		})
	default:
		h.logger.ErrorWithContext(r.Context(), message,
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: message,
		})
	}
}
