package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"parkgrid/internal/db"
)

// RedisPublisher fans events out to external subscribers over Redis PUB/SUB.
// At-most-once delivery is acceptable for these events.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", topic, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.client.Publish(ctx, topic, payload).Err()
}

// NotifyService sends user-facing booking confirmations by email and SMS.
// Sends run in goroutines and only log on failure: a notification problem
// must never roll back an otherwise successful booking.
type NotifyService struct {
	logger *logrus.Logger
}

func NewNotifyService(logger *logrus.Logger) *NotifyService {
	if logger == nil {
		logger = logrus.New()
	}
	return &NotifyService{logger: logger}
}

func (n *NotifyService) NotifyBookingStatus(b *db.Booking) {
	if b.UserEmail != "" {
		subject, plain, html := bookingEmail(b)
		go func(to, name string) {
			if err := SendEmailWithSendGrid(to, name, subject, plain, html); err != nil {
				n.logger.WithFields(logrus.Fields{"booking": b.Code, "error": err}).Warn("booking email failed")
			}
		}(b.UserEmail, b.UserName)
	}
	if b.UserPhone != "" {
		msg := bookingSMS(b)
		go func(to string) {
			if err := SendSMS(to, msg); err != nil {
				n.logger.WithFields(logrus.Fields{"booking": b.Code, "error": err}).Warn("booking SMS failed")
			}
		}(b.UserPhone)
	}
}

func bookingEmail(b *db.Booking) (subject, plain, html string) {
	subject = fmt.Sprintf("Your ParkGrid booking is %s - Code: %s", b.Status, b.Code)
	plain = fmt.Sprintf(
		"Hello %s,\n\nYour ParkGrid booking is %s.\n\n"+
			"Booking Details:\n"+
			"Booking Code: %s\n"+
			"Vehicle: %s (Plate: %s)\n"+
			"Check-in: %s\n"+
			"Check-out: %s\n"+
			"Total: %.2f EUR\n\n"+
			"Thank you for choosing ParkGrid.",
		b.UserName, b.Status, b.Code, b.VehicleModel, b.VehiclePlate,
		b.StartTime.Format("02 Jan 2006 15:04 MST"),
		b.EndTime.Format("02 Jan 2006 15:04 MST"),
		float64(b.TotalCents)/100,
	)
	html = "<p>" + plain + "</p>"
	return subject, plain, html
}

func bookingSMS(b *db.Booking) string {
	return fmt.Sprintf("ParkGrid: booking %s is %s!\nCheck-in: %s.\nMore details in your email.",
		b.Code, b.Status, b.StartTime.Format("02/01 15:04"))
}
