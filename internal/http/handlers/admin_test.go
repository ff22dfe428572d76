package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"server/internal/entitlement"
	"server/internal/middleware"
)

func patchVisibility(t *testing.T, app *App, email, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/artists/"+id+"/visibility",
		bytes.NewReader([]byte(`{"hidden":true}`)))
	if email != "" {
		req = req.WithContext(middleware.ContextWithUser(req.Context(), "user-1", email))
	}
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rec := httptest.NewRecorder()
	app.AdminArtistVisibility(rec, req)
	return rec
}

func TestAdminVisibilityRequiresAllowlist(t *testing.T) {
	app := newTestApp(&stubSQL{}, &stubPipeline{}, &stubLedger{check: entitlement.CheckResult{}}, &stubCheckout{})
	app.Config.AdminEmails = []string{"owner@example.com"}

	rec := patchVisibility(t, app, "intruder@example.com", "0e6f7a3c-5f4f-4e7b-9a31-1d2f3a4b5c6d")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin: status = %d", rec.Code)
	}

	rec = patchVisibility(t, app, "", "0e6f7a3c-5f4f-4e7b-9a31-1d2f3a4b5c6d")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous: status = %d", rec.Code)
	}
}

func TestAdminVisibilityUpdates(t *testing.T) {
	sql := &stubSQL{}
	app := newTestApp(sql, &stubPipeline{}, &stubLedger{}, &stubCheckout{})
	app.Config.AdminEmails = []string{"owner@example.com"}

	rec := patchVisibility(t, app, "Owner@Example.com", "0e6f7a3c-5f4f-4e7b-9a31-1d2f3a4b5c6d")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if len(sql.execQueries) != 1 {
		t.Fatalf("exec queries = %v", sql.execQueries)
	}
	if decodeBody(t, rec)["hidden"] != true {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = patchVisibility(t, app, "owner@example.com", "not-a-uuid")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: status = %d", rec.Code)
	}
}
