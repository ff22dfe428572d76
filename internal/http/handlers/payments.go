package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/payments"
)

type checkoutSessionRequest struct {
	UserEmail string `json:"userEmail"`
}

// PaymentsCheckoutSession opens a Stripe checkout session for the buy-in.
func (a *App) PaymentsCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if !a.Checkout.Configured() {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "payments are not configured")
		return
	}
	var req checkoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	_, userID, email, err := a.identity(r, req.UserEmail)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "a user identity or email is required")
		return
	}
	url, err := a.Checkout.CreateSession(r.Context(), userID, email)
	if err != nil {
		a.Logger.Error().Err(err).Msg("create checkout session failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create checkout session")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"url": url})
}

type recordPaymentRequest struct {
	SessionID string `json:"sessionId"`
	UserEmail string `json:"userEmail"`
}

// PaymentsRecord verifies a settled checkout session and arms the
// entitlement for the paying identity.
func (a *App) PaymentsRecord(w http.ResponseWriter, r *http.Request) {
	if !a.Checkout.Configured() {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "payments are not configured")
		return
	}
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.SessionID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "sessionId required")
		return
	}
	identityKey, userID, email, err := a.identity(r, req.UserEmail)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "a user identity or email is required")
		return
	}

	verification, err := a.Checkout.VerifySession(r.Context(), req.SessionID, userID, email)
	if err != nil {
		a.respondVerifyError(w, err)
		return
	}
	if err := a.Ledger.RecordPayment(r.Context(), identityKey, userID, email,
		verification.PaymentIntentID, int(verification.AmountCents), verification.Currency); err != nil {
		a.Logger.Error().Err(err).Msg("record payment failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record payment")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true})
}

type verifyEmailRequest struct {
	SessionID string `json:"sessionId"`
	Email     string `json:"email"`
}

// PaymentsVerifyEmail confirms a checkout session settled for the given
// email, without touching the ledger. The match ignores case.
func (a *App) PaymentsVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if !a.Checkout.Configured() {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "payments are not configured")
		return
	}
	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.SessionID == "" || req.Email == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "sessionId and email required")
		return
	}
	if _, err := a.Checkout.VerifySession(r.Context(), req.SessionID, "", req.Email); err != nil {
		a.respondVerifyError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"verified": true})
}

// UsageGet reports the caller's entitlement state for account surfaces. An
// identity that never paid gets a zeroed row rather than an error.
func (a *App) UsageGet(w http.ResponseWriter, r *http.Request) {
	identityKey, _, _, err := a.identity(r, r.URL.Query().Get("email"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "a user identity or email is required")
		return
	}
	usage, err := a.Ledger.CurrentUsage(r.Context(), identityKey)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load entitlement usage failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load usage")
		return
	}
	if usage == nil {
		a.json(w, http.StatusOK, map[string]any{
			"hasPaid":         false,
			"generationCount": 0,
			"generationLimit": a.Config.GenerationLimit,
			"remaining":       0,
		})
		return
	}
	remaining := usage.GenerationLimit - usage.GenerationCount
	if remaining < 0 {
		remaining = 0
	}
	a.json(w, http.StatusOK, map[string]any{
		"hasPaid":         true,
		"generationCount": usage.GenerationCount,
		"generationLimit": usage.GenerationLimit,
		"remaining":       remaining,
		"updatedAt":       usage.UpdatedAt,
	})
}

func (a *App) respondVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payments.ErrNotPaid):
		a.error(w, http.StatusPaymentRequired, "payment_required", "Payment not verified")
	case errors.Is(err, payments.ErrWrongRecipient):
		a.error(w, http.StatusForbidden, "forbidden", "payment belongs to a different identity")
	default:
		a.Logger.Error().Err(err).Msg("verify checkout session failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to verify payment")
	}
}
