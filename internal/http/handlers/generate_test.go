package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"server/internal/entitlement"
	"server/internal/infra"
	"server/internal/payments"
	"server/internal/providers/image"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return errors.New("no row")
	}
	return r.scan(dest...)
}

// stubSQL records executed statements and answers inserts with fixed ids.
type stubSQL struct {
	execQueries []string
	rowQueries  []string
	execErr     error

	designScan  func(dest ...any) error
	variantRows [][]any
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execQueries = append(s.execQueries, query)
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if strings.Contains(query, "design_style_variants") {
		return &stubRows{rows: s.variantRows}, nil
	}
	return nil, fmt.Errorf("unsupported query: %s", query)
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.rowQueries = append(s.rowQueries, query)
	if strings.Contains(query, "insert into generated_designs") {
		return stubRow{scan: func(dest ...any) error {
			if ptr, ok := dest[0].(*string); ok {
				*ptr = "design-1"
				return nil
			}
			return fmt.Errorf("unsupported scan target")
		}}
	}
	if strings.Contains(query, "from generated_designs") && strings.Contains(query, "where id") {
		if s.designScan == nil {
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		}
		return stubRow{scan: s.designScan}
	}
	return stubRow{scan: func(dest ...any) error {
		return fmt.Errorf("unsupported query: %s", query)
	}}
}

// stubRows serves canned row tuples; only the methods the handlers touch are
// implemented.
type stubRows struct {
	pgx.Rows
	rows [][]any
	idx  int
}

func (r *stubRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(row) != len(dest) {
		return fmt.Errorf("scan arity: %d values into %d targets", len(row), len(dest))
	}
	for i, v := range row {
		ptr, ok := dest[i].(*string)
		if !ok {
			return fmt.Errorf("unsupported scan target at %d", i)
		}
		*ptr = v.(string)
	}
	return nil
}

func (r *stubRows) Close() {}

func (r *stubRows) Err() error { return nil }

type stubPipeline struct {
	outcome *image.Outcome
	err     error
	calls   int
	lastReq image.DesignRequest
}

func (s *stubPipeline) Generate(ctx context.Context, req image.DesignRequest) (*image.Outcome, error) {
	s.calls++
	s.lastReq = req
	return s.outcome, s.err
}

type stubLedger struct {
	check      entitlement.CheckResult
	checkErr   error
	consumeErr error
	consumed   []string
	recorded   []string
	usage      *entitlement.Usage
}

func (s *stubLedger) RecordPayment(ctx context.Context, identityKey, userID, email, paymentIntentID string, amountCents int, currency string) error {
	s.recorded = append(s.recorded, identityKey+":"+paymentIntentID)
	return nil
}

func (s *stubLedger) Check(ctx context.Context, identityKey string) (entitlement.CheckResult, error) {
	return s.check, s.checkErr
}

func (s *stubLedger) Consume(ctx context.Context, identityKey string) error {
	s.consumed = append(s.consumed, identityKey)
	return s.consumeErr
}

func (s *stubLedger) CurrentUsage(ctx context.Context, identityKey string) (*entitlement.Usage, error) {
	return s.usage, nil
}

type stubCheckout struct {
	url          string
	verification *payments.Verification
	verifyErr    error
}

func (s *stubCheckout) Configured() bool { return true }

func (s *stubCheckout) CreateSession(ctx context.Context, userID, email string) (string, error) {
	return s.url, nil
}

func (s *stubCheckout) VerifySession(ctx context.Context, sessionID, userID, email string) (*payments.Verification, error) {
	return s.verification, s.verifyErr
}

func newTestApp(sql *stubSQL, pipeline *stubPipeline, ledger *stubLedger, checkout *stubCheckout) *App {
	return &App{
		SQL:      sql,
		Logger:   zerolog.Nop(),
		Config:   &infra.Config{JWTSecret: "secret", GenerationLimit: 1},
		Pipeline: pipeline,
		Ledger:   ledger,
		Checkout: checkout,
	}
}

func successOutcome() *image.Outcome {
	return &image.Outcome{
		Image:    &image.Image{Base64: "aW1n", MIME: "image/png", Model: "gemini/test"},
		Provider: "gemini",
		Prompt:   "a fox, traditional american tattoo style",
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestGenerateTattooSuccess(t *testing.T) {
	sql := &stubSQL{}
	pipeline := &stubPipeline{outcome: successOutcome()}
	ledger := &stubLedger{check: entitlement.CheckResult{Allowed: true}}
	app := newTestApp(sql, pipeline, ledger, &stubCheckout{})

	rec := postJSON(t, app.GenerateTattoo, map[string]any{
		"styles":        []string{"Traditional"},
		"subjectMatter": "a fox",
		"userEmail":     "buyer@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["image"] != "aW1n" || body["model"] != "gemini/test" {
		t.Fatalf("unexpected body: %v", body)
	}
	if len(ledger.consumed) != 1 || ledger.consumed[0] != "email_buyer@example.com" {
		t.Fatalf("consumed = %v", ledger.consumed)
	}
	if len(sql.rowQueries) != 1 || !strings.Contains(sql.rowQueries[0], "generated_designs") {
		t.Fatalf("design not persisted: %v", sql.rowQueries)
	}
}

func TestGenerateTattooValidation(t *testing.T) {
	pipeline := &stubPipeline{outcome: successOutcome()}
	ledger := &stubLedger{check: entitlement.CheckResult{Allowed: true}}
	app := newTestApp(&stubSQL{}, pipeline, ledger, &stubCheckout{})

	rec := postJSON(t, app.GenerateTattoo, map[string]any{
		"styles":    []string{},
		"userEmail": "buyer@example.com",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty styles: status = %d", rec.Code)
	}
	rec = postJSON(t, app.GenerateTattoo, map[string]any{
		"styles":    []string{"Traditional"},
		"userEmail": "buyer@example.com",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing subject and reference: status = %d", rec.Code)
	}
	if pipeline.calls != 0 {
		t.Fatalf("pipeline must not run for invalid requests, ran %d times", pipeline.calls)
	}
	if len(ledger.consumed) != 0 {
		t.Fatal("no credit may be consumed for invalid requests")
	}
}

func TestGenerateTattooMissingIdentity(t *testing.T) {
	app := newTestApp(&stubSQL{}, &stubPipeline{outcome: successOutcome()}, &stubLedger{}, &stubCheckout{})
	rec := postJSON(t, app.GenerateTattoo, map[string]any{
		"styles":        []string{"Traditional"},
		"subjectMatter": "a fox",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerateTattooEntitlementDenied(t *testing.T) {
	pipeline := &stubPipeline{outcome: successOutcome()}
	ledger := &stubLedger{check: entitlement.CheckResult{Reason: entitlement.ReasonNoPayment}}
	app := newTestApp(&stubSQL{}, pipeline, ledger, &stubCheckout{})

	rec := postJSON(t, app.GenerateTattoo, map[string]any{
		"styles":        []string{"Traditional"},
		"subjectMatter": "a fox",
		"userEmail":     "buyer@example.com",
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["message"] != entitlement.ReasonNoPayment {
		t.Fatalf("reason = %v", body["message"])
	}
	if pipeline.calls != 0 {
		t.Fatal("pipeline must not run for denied entitlements")
	}
}

func TestGenerateTattooDegraded(t *testing.T) {
	outcome := &image.Outcome{
		Prompt:            "a fox, traditional american tattoo style",
		SetupInstructions: "Set REPLICATE_API_TOKEN to enable image generation.",
	}
	ledger := &stubLedger{check: entitlement.CheckResult{Allowed: true}}
	app := newTestApp(&stubSQL{}, &stubPipeline{outcome: outcome}, ledger, &stubCheckout{})

	rec := postJSON(t, app.GenerateTattoo, map[string]any{
		"styles":        []string{"Traditional"},
		"subjectMatter": "a fox",
		"userEmail":     "buyer@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["imageGenerationAvailable"] != false {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["needsSetup"] != true || body["setupInstructions"] == "" {
		t.Fatalf("setup guidance missing: %v", body)
	}
	if body["prompt"] == "" {
		t.Fatal("degraded response must still carry the prompt")
	}
	if len(ledger.consumed) != 0 {
		t.Fatal("no credit may be consumed when no image was produced")
	}
}

func TestGenerateTattooConsumeRace(t *testing.T) {
	ledger := &stubLedger{
		check:      entitlement.CheckResult{Allowed: true},
		consumeErr: entitlement.ErrLimitReached,
	}
	app := newTestApp(&stubSQL{}, &stubPipeline{outcome: successOutcome()}, ledger, &stubCheckout{})

	rec := postJSON(t, app.GenerateTattoo, map[string]any{
		"styles":        []string{"Traditional"},
		"subjectMatter": "a fox",
		"userEmail":     "buyer@example.com",
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("a lost consume race must refuse, status = %d", rec.Code)
	}
}

func TestGenerateTattooSizeAllMeansUnspecified(t *testing.T) {
	pipeline := &stubPipeline{outcome: successOutcome()}
	ledger := &stubLedger{check: entitlement.CheckResult{Allowed: true}}
	app := newTestApp(&stubSQL{}, pipeline, ledger, &stubCheckout{})

	rec := postJSON(t, app.GenerateTattoo, map[string]any{
		"styles":         []string{"Traditional"},
		"subjectMatter":  "a fox",
		"sizePreference": "all",
		"userEmail":      "buyer@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if pipeline.lastReq.SizePreference != image.SizeUnspecified {
		t.Fatalf("size = %q, want unspecified", pipeline.lastReq.SizePreference)
	}
}

func TestGenerateTattooAllStylesResponse(t *testing.T) {
	outcome := successOutcome()
	outcome.AllStyles = true
	outcome.StyleImages = []image.StyleImage{
		{Style: "realism", Base64: "cmVhbA==", MIME: "image/png"},
		{Style: "fine line", Base64: "Z2Vv", MIME: "image/png"},
	}
	ledger := &stubLedger{check: entitlement.CheckResult{Allowed: true}}
	app := newTestApp(&stubSQL{}, &stubPipeline{outcome: outcome}, ledger, &stubCheckout{})

	rec := postJSON(t, app.GenerateTattoo, map[string]any{
		"styles":            []string{"Traditional"},
		"subjectMatter":     "a fox",
		"generateAllStyles": true,
		"userEmail":         "buyer@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["allStyles"] != true {
		t.Fatalf("allStyles missing: %v", body)
	}
	images, ok := body["images"].([]any)
	if !ok || len(images) != 2 {
		t.Fatalf("images = %v", body["images"])
	}
	// Style labels are rendered for display, not echoed raw.
	first, ok := images[0].(map[string]any)
	if !ok || first["style"] != "Realism" {
		t.Fatalf("first style label = %v", images[0])
	}
	second, ok := images[1].(map[string]any)
	if !ok || second["style"] != "Fine Line" {
		t.Fatalf("second style label = %v", images[1])
	}
}
