package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/entitlement"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/payments"
	"server/internal/providers/image"
)

// DesignGenerator runs the provider fallback pipeline.
type DesignGenerator interface {
	Generate(ctx context.Context, req image.DesignRequest) (*image.Outcome, error)
}

// EntitlementLedger tracks payment-gated generation credits.
type EntitlementLedger interface {
	RecordPayment(ctx context.Context, identityKey, userID, email, paymentIntentID string, amountCents int, currency string) error
	Check(ctx context.Context, identityKey string) (entitlement.CheckResult, error)
	Consume(ctx context.Context, identityKey string) error
	CurrentUsage(ctx context.Context, identityKey string) (*entitlement.Usage, error)
}

// CheckoutService fronts the Stripe checkout surface.
type CheckoutService interface {
	Configured() bool
	CreateSession(ctx context.Context, userID, email string) (string, error)
	VerifySession(ctx context.Context, sessionID, userID, email string) (*payments.Verification, error)
}

// App carries the wired dependencies for all HTTP handlers.
type App struct {
	SQL      infra.SQLExecutor
	Logger   zerolog.Logger
	Config   *infra.Config
	Pipeline DesignGenerator
	Ledger   EntitlementLedger
	Checkout CheckoutService
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error":   errCode,
		"message": message,
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) currentUserEmail(r *http.Request) string {
	return middleware.UserEmailFromContext(r.Context())
}

// identity resolves the entitlement key for a request: the authenticated
// user when present, otherwise the email supplied in the payload.
func (a *App) identity(r *http.Request, bodyEmail string) (key, userID, email string, err error) {
	userID = a.currentUserID(r)
	email = a.currentUserEmail(r)
	if email == "" {
		email = bodyEmail
	}
	key, err = entitlement.IdentityKey(userID, email)
	return key, userID, email, err
}
