package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"

	"parkgrid/internal/service"
)

// StripeWebhookHandler receives payment confirmations from Stripe and feeds
// them into the booking lifecycle.
type StripeWebhookHandler struct {
	WebhookSecret string
	Bookings      *service.BookingService
	Logger        *logrus.Logger
}

func NewStripeWebhookHandler(webhookSecret string, bookings *service.BookingService, logger *logrus.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &StripeWebhookHandler{WebhookSecret: webhookSecret, Bookings: bookings, Logger: logger}
}

func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.Logger.WithError(err).Error("error reading webhook body")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := service.VerifyWebhook(payload, sigHeader, h.WebhookSecret)
	if err != nil {
		h.Logger.WithError(err).Warn("webhook signature verification failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil || sess.ID == "" {
			h.Logger.WithError(err).Warn("invalid checkout.session payload")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, err := h.Bookings.ConfirmPayment(sess.ID); err != nil {
			h.Logger.WithFields(logrus.Fields{"session": sess.ID, "error": err}).Error("failed to confirm payment")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil || sess.ID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, err := h.Bookings.FailPayment(sess.ID); err != nil {
			h.Logger.WithFields(logrus.Fields{"session": sess.ID, "error": err}).Warn("failed to record payment failure")
		}

	default:
		h.Logger.WithField("type", event.Type).Debug("unhandled stripe event type")
	}

	w.WriteHeader(http.StatusOK)
}
