package service

import (
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeService adapts Stripe Checkout to the PaymentGateway contract. The
// checkout session ID doubles as the payment reference stored on bookings.
type StripeService struct {
	SuccessURL string
	CancelURL  string
}

func NewStripeService(successURL, cancelURL string) *StripeService {
	return &StripeService{SuccessURL: successURL, CancelURL: cancelURL}
}

// AuthorizeOrCharge creates a checkout session for the amount and returns
// its ID as the payment reference.
func (s *StripeService) AuthorizeOrCharge(amountCents int64, currency, description, customerEmail string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
					UnitAmount: stripe.Int64(amountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.SuccessURL),
		CancelURL:  stripe.String(s.CancelURL),
	}
	if customerEmail != "" {
		params.CustomerEmail = stripe.String(customerEmail)
	}

	sess, err := session.New(params)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// Refund refunds amountCents of the payment behind the checkout session.
func (s *StripeService) Refund(sessionID string, amountCents int64) error {
	sess, err := session.Get(sessionID, nil)
	if err != nil {
		return err
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return fmt.Errorf("no payment intent found for session %s", sessionID)
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
	}
	if amountCents > 0 {
		params.Amount = stripe.Int64(amountCents)
	}
	_, err = refund.New(params)
	return err
}

// VerifyWebhook checks the Stripe signature and parses the event payload.
func VerifyWebhook(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, secret)
}
