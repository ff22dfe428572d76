package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

const testDesignID = "82d3c6de-54a1-4a6f-8f5e-1c9f0b7a2d41"

func designScanFor(owner string) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = testDesignID
		*(dest[1].(*string)) = owner
		*(dest[2].(*string)) = "a fox, traditional tattoo style"
		*(dest[3].(*[]string)) = []string{"Traditional"}
		*(dest[4].(*[]string)) = []string{"forearm"}
		*(dest[5].(*string)) = "gemini"
		*(dest[6].(*string)) = "gemini/test"
		*(dest[7].(*string)) = "aW1n"
		*(dest[8].(*string)) = "image/png"
		*(dest[9].(*time.Time)) = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		return nil
	}
}

func getDesign(t *testing.T, app *App, id, email string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/generated/"+id+"?email="+email, nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rec := httptest.NewRecorder()
	app.GeneratedGet(rec, req)
	return rec
}

func TestGeneratedGetWithVariants(t *testing.T) {
	sql := &stubSQL{
		designScan: designScanFor("email_buyer@example.com"),
		variantRows: [][]any{
			{"Realism", "cmVhbA==", "image/png"},
			{"Watercolor", "d2F0ZXI=", "image/png"},
		},
	}
	app := newTestApp(sql, &stubPipeline{}, &stubLedger{}, &stubCheckout{})

	rec := getDesign(t, app, testDesignID, "buyer@example.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	design, ok := body["design"].(map[string]any)
	if !ok || design["id"] != testDesignID || design["image"] != "aW1n" {
		t.Fatalf("design = %v", body["design"])
	}
	variants, ok := body["variants"].([]any)
	if !ok || len(variants) != 2 {
		t.Fatalf("variants = %v", body["variants"])
	}
	first, ok := variants[0].(map[string]any)
	if !ok || first["style"] != "Realism" || first["image"] != "cmVhbA==" {
		t.Fatalf("first variant = %v", variants[0])
	}
}

func TestGeneratedGetHidesOtherOwners(t *testing.T) {
	sql := &stubSQL{designScan: designScanFor("email_someone-else@example.com")}
	app := newTestApp(sql, &stubPipeline{}, &stubLedger{}, &stubCheckout{})

	rec := getDesign(t, app, testDesignID, "buyer@example.com")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGeneratedGetMissing(t *testing.T) {
	app := newTestApp(&stubSQL{}, &stubPipeline{}, &stubLedger{}, &stubCheckout{})

	rec := getDesign(t, app, testDesignID, "buyer@example.com")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no row: status = %d", rec.Code)
	}

	rec = getDesign(t, app, "not-a-uuid", "buyer@example.com")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: status = %d", rec.Code)
	}
}
