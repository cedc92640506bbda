package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weni-ai/catalog-sync/internal/testutil"
	"github.com/weni-ai/catalog-sync/internal/utils"
)

type stubWebhookService struct {
	err   error
	calls []string // "{appID}:{skuID}"
}

func (s *stubWebhookService) HandleProductWebhook(ctx context.Context, appID, skuID string) error {
	s.calls = append(s.calls, appID+":"+skuID)
	return s.err
}

func newWebhookRequest(t *testing.T, appID, body string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/vtex/"+appID+"/products-update", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("platform", "vtex")
	rctx.URLParams.Add("app_id", appID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	return httptest.NewRecorder(), req
}

func TestWebhookAccepted(t *testing.T) {
	service := &stubWebhookService{}
	h := NewWebhookHandler(service, testutil.NewNopLogger())

	w, req := newWebhookRequest(t, "app-x", `{"IdSku":"15"}`)
	h.ProductsUpdate(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, service.calls, 1)
	assert.Equal(t, "app-x:15", service.calls[0])
}

func TestWebhookMalformedBody(t *testing.T) {
	service := &stubWebhookService{}
	h := NewWebhookHandler(service, testutil.NewNopLogger())

	w, req := newWebhookRequest(t, "app-x", `{not json`)
	h.ProductsUpdate(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, service.calls)
}

func TestWebhookMissingSKU(t *testing.T) {
	service := &stubWebhookService{}
	h := NewWebhookHandler(service, testutil.NewNopLogger())

	w, req := newWebhookRequest(t, "app-x", `{}`)
	h.ProductsUpdate(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, service.calls)
}

func TestWebhookUnknownApp(t *testing.T) {
	service := &stubWebhookService{err: utils.ErrAppNotFound}
	h := NewWebhookHandler(service, testutil.NewNopLogger())

	w, req := newWebhookRequest(t, "nope", `{"IdSku":"15"}`)
	h.ProductsUpdate(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookInitialSyncPending(t *testing.T) {
	service := &stubWebhookService{err: utils.ErrInitialSyncPending}
	h := NewWebhookHandler(service, testutil.NewNopLogger())

	w, req := newWebhookRequest(t, "app-x", `{"IdSku":"15"}`)
	h.ProductsUpdate(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Initial sync not completed")
}
