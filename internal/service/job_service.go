package service

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"parkgrid/internal/db"
)

// JobService runs the periodic lifecycle sweeps. Both sweeps go through the
// booking lifecycle rather than writing statuses directly so capacity and
// slots are released consistently.
type JobService struct {
	bookings   BookingStore
	lifecycle  *BookingService
	pendingTTL time.Duration
	logger     *logrus.Logger
}

func NewJobService(bookings BookingStore, lifecycle *BookingService, pendingTTL time.Duration, logger *logrus.Logger) *JobService {
	if logger == nil {
		logger = logrus.New()
	}
	if pendingTTL <= 0 {
		pendingTTL = 30 * time.Minute
	}
	return &JobService{
		bookings:   bookings,
		lifecycle:  lifecycle,
		pendingTTL: pendingTTL,
		logger:     logger,
	}
}

// CompleteFinishedBookings marks active bookings past their end time as
// completed.
func (s *JobService) CompleteFinishedBookings() error {
	codes, err := s.bookings.ListActivePastEnd(s.lifecycle.now())
	if err != nil {
		return fmt.Errorf("failed to list active bookings past end time: %w", err)
	}
	if len(codes) == 0 {
		return nil
	}

	s.logger.WithField("count", len(codes)).Info("marking finished bookings as completed")
	for _, code := range codes {
		if _, err := s.lifecycle.Transition(code, db.BookingCompleted, "system", "end time reached"); err != nil {
			s.logger.WithFields(logrus.Fields{"code": code, "error": err}).Warn("failed to complete booking")
		}
	}
	return nil
}

// ExpireStalePendingBookings cancels pending bookings whose payment never
// completed within the configured TTL, restoring the capacity they held.
func (s *JobService) ExpireStalePendingBookings() error {
	cutoff := s.lifecycle.now().Add(-s.pendingTTL)
	codes, err := s.bookings.ListPendingCreatedBefore(cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale pending bookings: %w", err)
	}
	if len(codes) == 0 {
		return nil
	}

	s.logger.WithField("count", len(codes)).Info("expiring stale pending bookings")
	for _, code := range codes {
		if _, err := s.lifecycle.Transition(code, db.BookingCancelled, "system", "payment not completed in time"); err != nil {
			s.logger.WithFields(logrus.Fields{"code": code, "error": err}).Warn("failed to expire booking")
		}
	}
	return nil
}
