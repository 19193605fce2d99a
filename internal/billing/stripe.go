// Package billing provides the Stripe payment bridge: checkout creation,
// checkout verification and cross-device Pro recognition by email.
package billing

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/price"
	"github.com/stripe/stripe-go/v79/subscription"
)

// Checkout is a newly created processor-hosted checkout.
type Checkout struct {
	ID  string // opaque checkout session id, bound to the browser session
	URL string // hosted payment page to redirect to
}

// CheckoutResult is the verified state of a completed (or abandoned) checkout.
type CheckoutResult struct {
	Paid       bool   // payment_status == "paid"
	OneTime    bool   // mode was "payment" (one-time purchase, not subscription)
	Email      string // checkout email, lowercased; may be empty
	CustomerID string // processor customer id; may be empty
}

// Service defines the interface for payment operations.
type Service interface {
	// CreateCheckout creates a checkout session for the configured price.
	// The mode adapts to the price: recurring prices become subscriptions,
	// one-time prices become payments. A non-empty email prefills checkout.
	CreateCheckout(email, successURL, cancelURL string) (*Checkout, error)

	// VerifyCheckout retrieves a checkout session and reports its payment
	// state. It never grants anything itself; callers decide.
	VerifyCheckout(id string) (*CheckoutResult, error)

	// MarkLifetime sets the lifetime_pro metadata flag on a customer so a
	// one-time purchase is recognized on future sign-ins.
	MarkLifetime(customerID string) error

	// EmailHasPro reports whether the processor knows this email as Pro:
	// a lifetime_pro-flagged customer or any active subscription. Processor
	// errors fail closed to false.
	EmailHasPro(email string) bool
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	priceID string
	logger  *slog.Logger
}

// NewStripeService creates a new Stripe payment bridge.
//
// The secretKey authenticates Stripe API calls; priceID is the single
// configured product price whose recurrence decides the checkout mode.
func NewStripeService(secretKey, priceID string, logger *slog.Logger) Service {
	stripe.Key = secretKey

	return &stripeService{
		priceID: priceID,
		logger:  logger,
	}
}

func (s *stripeService) CreateCheckout(email, successURL, cancelURL string) (*Checkout, error) {
	p, err := price.Get(s.priceID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe get price: %w", err)
	}

	mode := stripe.CheckoutSessionModePayment
	if p.Recurring != nil {
		mode = stripe.CheckoutSessionModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(successURL),
		CancelURL:           stripe.String(cancelURL),
		AllowPromotionCodes: stripe.Bool(true),
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}

	return &Checkout{ID: sess.ID, URL: sess.URL}, nil
}

func (s *stripeService) VerifyCheckout(id string) (*CheckoutResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("customer")
	params.AddExpand("customer_details")
	params.AddExpand("line_items")

	sess, err := checkoutsession.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe retrieve checkout session: %w", err)
	}

	result := &CheckoutResult{
		Paid:    sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		OneTime: sess.Mode == stripe.CheckoutSessionModePayment,
	}
	if sess.Customer != nil {
		result.CustomerID = sess.Customer.ID
	}
	if sess.CustomerDetails != nil {
		result.Email = strings.ToLower(sess.CustomerDetails.Email)
	}

	return result, nil
}

func (s *stripeService) MarkLifetime(customerID string) error {
	params := &stripe.CustomerParams{}
	params.AddMetadata("lifetime_pro", "true")

	if _, err := customer.Update(customerID, params); err != nil {
		return fmt.Errorf("stripe update customer: %w", err)
	}
	return nil
}

func (s *stripeService) EmailHasPro(email string) bool {
	if email == "" {
		return false
	}

	searchParams := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query: fmt.Sprintf("email:'%s'", email),
			Limit: stripe.Int64(1),
		},
	}
	iter := customer.Search(searchParams)
	if !iter.Next() {
		if err := iter.Err(); err != nil {
			// Fail closed toward the free tier.
			s.logger.Warn("stripe customer search failed", "error", err)
		}
		return false
	}
	cust := iter.Customer()

	// Lifetime flag from a one-time checkout
	if strings.EqualFold(cust.Metadata["lifetime_pro"], "true") {
		return true
	}

	// Any active subscription
	listParams := &stripe.SubscriptionListParams{
		Customer: stripe.String(cust.ID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	listParams.Limit = stripe.Int64(1)

	subs := subscription.List(listParams)
	if subs.Next() {
		return true
	}
	if err := subs.Err(); err != nil {
		s.logger.Warn("stripe subscription list failed", "error", err)
	}
	return false
}
