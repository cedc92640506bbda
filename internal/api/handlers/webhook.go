package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/weni-ai/catalog-sync/internal/utils"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// WebhookService - операции оркестратора, нужные обработчику вебхуков
type WebhookService interface {
	HandleProductWebhook(ctx context.Context, appID, skuID string) error
}

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// productWebhookPayload - тело вебхука изменения продукта.
// Доверенным считается только идентификатор SKU, остальное
// перечитывается у источника.
type productWebhookPayload struct {
	IDSKU string `json:"IdSku" validate:"required"`
}

// WebhookHandler принимает вебхуки изменения продуктов от источника
type WebhookHandler struct {
	service  WebhookService
	validate *validator.Validate
	logger   interfaces.LoggerPort
}

// NewWebhookHandler создает обработчик вебхуков
func NewWebhookHandler(service WebhookService, logger interfaces.LoggerPort) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// ProductsUpdate обрабатывает POST /{platform}/{app_id}/products-update.
// Отвечает быстро: SKU попадает в очередь, синхронизация идет в фоне.
func (h *WebhookHandler) ProductsUpdate(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "app_id")

	var payload productWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Некорректное тело вебхука",
		})
		return
	}
	if err := h.validate.Struct(&payload); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Идентификатор SKU не указан",
		})
		return
	}

	err := h.service.HandleProductWebhook(r.Context(), appID, payload.IDSKU)
	switch {
	case err == nil:
		render.Status(r, http.StatusOK)
		render.JSON(w, r, response{Success: true})

	case errors.Is(err, utils.ErrAppNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{
			Error:   "not_found",
			Code:    http.StatusNotFound,
			Message: "Приложение не найдено",
		})

	case errors.Is(err, utils.ErrInitialSyncPending):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Initial sync not completed",
		})

	case errors.Is(err, utils.ErrSyncDisabled):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Синхронизация каталога выключена для приложения",
		})

	default:
		h.logger.ErrorWithContext(r.Context(), "Ошибка обработки вебхука",
			interfaces.LogField{Key: "app_id", Value: appID},
			interfaces.LogField{Key: "sku", Value: payload.IDSKU},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка обработки вебхука",
		})
	}
}
