package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

// Buy-in product sold through checkout. One verified purchase arms one
// design generation.
const (
	BuyInProductName = "Tattoo Discovery Buy In"
	BuyInAmountCents = 10000
	BuyInCurrency    = "eur"
)

var (
	// ErrNotPaid means the checkout session exists but has not settled.
	ErrNotPaid = errors.New("payment not completed")
	// ErrWrongRecipient means the session settled for a different identity
	// than the one claiming it.
	ErrWrongRecipient = errors.New("payment does not belong to this identity")
)

// sessionAPI is the slice of the Stripe client this package depends on;
// tests substitute a stub.
type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Verification is the settled-payment summary handed to the entitlement
// ledger.
type Verification struct {
	SessionID       string
	PaymentIntentID string
	UserID          string
	Email           string
	AmountCents     int64
	Currency        string
}

// Checkout creates and verifies Stripe checkout sessions for the buy-in.
type Checkout struct {
	api     sessionAPI
	baseURL string
	logger  zerolog.Logger
}

// CheckoutOptions configures the Stripe checkout service.
type CheckoutOptions struct {
	SecretKey string
	BaseURL   string
	Logger    zerolog.Logger
	// API overrides the Stripe session client; tests inject a stub here.
	API sessionAPI
}

func NewCheckout(opts CheckoutOptions) *Checkout {
	api := opts.API
	if api == nil && opts.SecretKey != "" {
		backend := stripe.GetBackend(stripe.APIBackend)
		api = &session.Client{B: backend, Key: opts.SecretKey}
	}
	return &Checkout{
		api:     api,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  opts.Logger,
	}
}

// Configured reports whether a Stripe key (or a test stub) is wired in.
func (c *Checkout) Configured() bool { return c.api != nil }

// CreateSession opens a checkout session for the buy-in. Identity metadata
// rides on the session so verification can match the payer later.
func (c *Checkout) CreateSession(ctx context.Context, userID, email string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("stripe is not configured")
	}
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(BuyInCurrency),
				UnitAmount: stripe.Int64(BuyInAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(BuyInProductName),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(c.baseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(c.baseURL + "/payment/cancelled"),
	}
	if userID != "" {
		params.AddMetadata("userId", userID)
	}
	if email != "" {
		params.AddMetadata("userEmail", email)
		params.CustomerEmail = stripe.String(email)
	}

	s, err := c.api.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	c.logger.Info().Str("session_id", s.ID).Msg("checkout session created")
	return s.URL, nil
}

// VerifySession retrieves a checkout session and confirms it settled for the
// claiming identity. The user id match is exact; the email match ignores
// case.
func (c *Checkout) VerifySession(ctx context.Context, sessionID, userID, email string) (*Verification, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("stripe is not configured")
	}
	params := &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}}
	params.AddExpand("payment_intent")

	s, err := c.api.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, ErrNotPaid
	}
	if !sessionBelongsTo(s, userID, email) {
		return nil, ErrWrongRecipient
	}

	v := &Verification{
		SessionID:   s.ID,
		UserID:      s.Metadata["userId"],
		Email:       sessionEmail(s),
		AmountCents: s.AmountTotal,
		Currency:    string(s.Currency),
	}
	if s.PaymentIntent != nil {
		v.PaymentIntentID = s.PaymentIntent.ID
	}
	if v.PaymentIntentID == "" {
		// A paid session always carries an intent; treat its absence as a
		// session that has not actually settled.
		return nil, ErrNotPaid
	}
	return v, nil
}

func sessionBelongsTo(s *stripe.CheckoutSession, userID, email string) bool {
	if userID != "" && s.Metadata["userId"] == userID {
		return true
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	if strings.ToLower(strings.TrimSpace(s.Metadata["userEmail"])) == email {
		return true
	}
	return strings.ToLower(strings.TrimSpace(sessionEmail(s))) == email
}

func sessionEmail(s *stripe.CheckoutSession) string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		return s.CustomerDetails.Email
	}
	return s.Metadata["userEmail"]
}
