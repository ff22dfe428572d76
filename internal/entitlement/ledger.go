package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/sqlinline"
)

// ErrLimitReached is returned by Consume when the entitlement has no
// generations left. A repeated payment re-arms the counter.
var ErrLimitReached = errors.New("generation limit reached")

// Denial reasons surfaced to the client when a generation is refused.
const (
	ReasonNoPayment    = "No payment record found"
	ReasonNotVerified  = "Payment not verified"
	ReasonLimitReached = "Generation limit reached"
)

// CheckResult reports whether the identity may generate and, if not, why.
type CheckResult struct {
	Allowed bool
	Reason  string
}

// Usage is the current ledger row for an identity.
type Usage struct {
	IdentityKey     string
	UserID          string
	Email           string
	PaymentIntentID string
	GenerationCount int
	GenerationLimit int
	UpdatedAt       time.Time
}

// IdentityKey derives the ledger key for a requester. An authenticated user
// ID takes precedence; otherwise the key is the normalized email. The email
// form is prefixed so the two namespaces cannot collide.
func IdentityKey(userID, email string) (string, error) {
	if userID = strings.TrimSpace(userID); userID != "" {
		return userID, nil
	}
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		return "email_" + email, nil
	}
	return "", fmt.Errorf("identity requires a user id or email")
}

// Ledger tracks payment-gated generation entitlements. Each verified payment
// arms exactly GenerationLimit generations for one identity.
type Ledger struct {
	sql    infra.SQLExecutor
	limit  int
	logger zerolog.Logger
}

func NewLedger(sql infra.SQLExecutor, limit int, logger zerolog.Logger) *Ledger {
	if limit < 1 {
		limit = 1
	}
	return &Ledger{sql: sql, limit: limit, logger: logger}
}

// RecordPayment upserts the entitlement row for a verified payment. An
// existing row is re-armed: its counter resets and the new payment reference
// replaces the old one.
func (l *Ledger) RecordPayment(ctx context.Context, identityKey, userID, email, paymentIntentID string, amountCents int, currency string) error {
	if identityKey == "" {
		return fmt.Errorf("identity key is required")
	}
	if paymentIntentID == "" {
		return fmt.Errorf("payment intent id is required")
	}
	_, err := l.sql.Exec(ctx, sqlinline.QUpsertEntitlement,
		identityKey, userID, strings.ToLower(strings.TrimSpace(email)),
		paymentIntentID, amountCents, currency, l.limit)
	if err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	l.logger.Info().Str("identity", identityKey).Str("payment_intent", paymentIntentID).Msg("entitlement armed")
	return nil
}

// Check reports whether the identity may generate right now. It never
// mutates the ledger; Consume performs the actual claim.
func (l *Ledger) Check(ctx context.Context, identityKey string) (CheckResult, error) {
	var verified bool
	var count, limit int
	err := l.sql.QueryRow(ctx, sqlinline.QSelectEntitlement, identityKey).Scan(&verified, &count, &limit)
	if infra.IsNoRows(err) {
		return CheckResult{Reason: ReasonNoPayment}, nil
	}
	if err != nil {
		return CheckResult{}, fmt.Errorf("check entitlement: %w", err)
	}
	if !verified {
		return CheckResult{Reason: ReasonNotVerified}, nil
	}
	if count >= limit {
		return CheckResult{Reason: ReasonLimitReached}, nil
	}
	return CheckResult{Allowed: true}, nil
}

// Consume claims one generation. The increment and the limit check are a
// single conditional update, so concurrent requests cannot both claim the
// last remaining generation.
func (l *Ledger) Consume(ctx context.Context, identityKey string) error {
	tag, err := l.sql.Exec(ctx, sqlinline.QConsumeGeneration, identityKey)
	if err != nil {
		return fmt.Errorf("consume generation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLimitReached
	}
	return nil
}

// CurrentUsage returns the ledger row for an identity, for account surfaces.
func (l *Ledger) CurrentUsage(ctx context.Context, identityKey string) (*Usage, error) {
	var u Usage
	err := l.sql.QueryRow(ctx, sqlinline.QSelectEntitlementUsage, identityKey).Scan(
		&u.IdentityKey, &u.UserID, &u.Email, &u.PaymentIntentID,
		&u.GenerationCount, &u.GenerationLimit, &u.UpdatedAt)
	if infra.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load entitlement usage: %w", err)
	}
	return &u, nil
}
