package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"parkgrid/internal/db"
	"parkgrid/internal/entities"
	"parkgrid/internal/errors"
	"parkgrid/internal/pricing"
)

// DefaultMaxExtensionHours caps a single extension request.
const DefaultMaxExtensionHours = 12

// BookingStore is the persistence collaborator for bookings. Update is a
// compare-and-set on the booking's prior status: a caller that lost a
// concurrent transition race gets ConcurrentModification instead of silently
// overwriting the winner's state.
type BookingStore interface {
	Create(b *db.Booking) error
	GetByCode(code string) (*db.Booking, error)
	GetByPaymentRef(ref string) (*db.Booking, error)
	Update(b *db.Booking, prev db.BookingStatus) error
	List(filter db.BookingFilter) ([]db.Booking, error)
	ListActivePastEnd(now time.Time) ([]string, error)
	ListPendingCreatedBefore(cutoff time.Time) ([]string, error)
}

// PaymentGateway is the payment collaborator. The core never retries or
// interprets gateway failures beyond surfacing them as PaymentFailed.
type PaymentGateway interface {
	AuthorizeOrCharge(amountCents int64, currency, description, customerEmail string) (ref string, err error)
	Refund(ref string, amountCents int64) error
}

// Publisher is the notification collaborator: fire-and-forget, at-most-once.
type Publisher interface {
	Publish(topic string, event interface{}) error
}

// Notifier sends user-facing confirmations (email/SMS). Best effort.
type Notifier interface {
	NotifyBookingStatus(b *db.Booking)
}

var allowedTransitions = map[db.BookingStatus][]db.BookingStatus{
	db.BookingPending:   {db.BookingConfirmed, db.BookingCancelled},
	db.BookingConfirmed: {db.BookingActive, db.BookingCancelled},
	db.BookingActive:    {db.BookingCompleted, db.BookingCancelled},
	db.BookingCompleted: {},
	db.BookingCancelled: {},
}

func canTransition(from, to db.BookingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validStatus(s db.BookingStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// bookingLocks serializes lifecycle mutations per booking code so a
// transition's fetch, side effects (refund) and persist run as one critical
// section. Cross-process races are caught by the store's status CAS.
type bookingLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newBookingLocks() *bookingLocks {
	return &bookingLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *bookingLocks) get(code string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[code]
	if !ok {
		m = &sync.Mutex{}
		l.locks[code] = m
	}
	return m
}

// BookingService drives the booking lifecycle: it ties the capacity ledger,
// slot registry, pricing engine and refund policy together and enforces the
// transition table. Bookings are mutated only through its methods.
type BookingService struct {
	facilities *FacilityService
	bookings   BookingStore
	engine     pricing.Engine
	refunds    pricing.RefundPolicy
	gateway    PaymentGateway
	pub        Publisher
	notifier   Notifier
	logger     *logrus.Logger
	locks      *bookingLocks

	maxExtensionHours int
	currency          string
	now               func() time.Time
}

func NewBookingService(
	facilities *FacilityService,
	bookings BookingStore,
	engine pricing.Engine,
	refunds pricing.RefundPolicy,
	gateway PaymentGateway,
	pub Publisher,
	notifier Notifier,
	logger *logrus.Logger,
) *BookingService {
	if logger == nil {
		logger = logrus.New()
	}
	return &BookingService{
		facilities:        facilities,
		bookings:          bookings,
		engine:            engine,
		refunds:           refunds,
		gateway:           gateway,
		pub:               pub,
		notifier:          notifier,
		logger:            logger,
		locks:             newBookingLocks(),
		maxExtensionHours: DefaultMaxExtensionHours,
		currency:          "eur",
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SetMaxExtensionHours overrides the extension cap (env-configured in main).
func (s *BookingService) SetMaxExtensionHours(h int) {
	if h > 0 {
		s.maxExtensionHours = h
	}
}

// CheckAvailability reports whether the facility can currently take a
// booking for the requested vehicle category.
func (s *BookingService) CheckAvailability(req entities.AvailabilityRequest) (*entities.AvailabilityResponse, error) {
	fac, err := s.facilities.Get(req.FacilityID)
	if err != nil {
		return nil, err
	}
	c, err := s.facilities.Counters(req.FacilityID)
	if err != nil {
		return nil, err
	}

	resp := &entities.AvailabilityResponse{
		FacilityID:      req.FacilityID,
		Available:       c.Available > 0,
		AvailableSpaces: c.Available,
		OccupancyRate:   c.OccupancyRate,
	}
	if req.VehicleType != "" && !fac.SupportsVehicleType(req.VehicleType) {
		resp.Available = false
		resp.Message = fmt.Sprintf("vehicle type %q not supported at this facility", req.VehicleType)
	} else if c.Available <= 0 {
		resp.Message = "facility is full"
	}
	return resp, nil
}

// Quote previews the price of a prospective booking without reserving.
func (s *BookingService) Quote(req entities.BookingRequest) (*entities.QuoteResponse, error) {
	fac, err := s.facilities.Get(req.FacilityID)
	if err != nil {
		return nil, err
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, errors.New(errors.KindInvalidInterval, "end_time must be after start_time")
	}
	q := s.engine.PriceInterval(fac.HourlyRateCents, req.StartTime, req.EndTime, fac.Services, req.ServiceCodes)
	return &entities.QuoteResponse{
		Hours:           q.Hours,
		BasePriceCents:  q.BasePriceCents,
		ServiceFeeCents: q.ServiceFeeCents,
		TaxCents:        q.TaxCents,
		TotalCents:      q.TotalCents,
	}, nil
}

// Create runs the reservation workflow: capacity precheck, optional slot
// claim, validation, pricing, atomic counter claim and persistence. Any
// failure after the slot claim rolls the slot back so no partial allocation
// survives an error return.
func (s *BookingService) Create(req *entities.BookingRequest) (*db.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fac, err := s.facilities.Get(req.FacilityID)
	if err != nil {
		return nil, err
	}

	c, err := s.facilities.Counters(req.FacilityID)
	if err != nil {
		return nil, err
	}
	if c.Available <= 0 {
		return nil, errors.New(errors.KindNoCapacity, "facility %s has no available spaces", req.FacilityID)
	}

	slotBound := false
	if req.SlotCode != "" {
		if err := s.facilities.ReserveSlot(req.FacilityID, req.SlotCode); err != nil {
			return nil, err
		}
		slotBound = true
	}
	releaseSlot := func() {
		if slotBound {
			if err := s.facilities.ReleaseSlot(req.FacilityID, req.SlotCode); err != nil {
				s.logger.WithFields(logrus.Fields{"facility_id": req.FacilityID, "slot": req.SlotCode, "error": err}).Error("slot rollback failed")
			}
		}
	}

	if !fac.SupportsVehicleType(req.VehicleType) {
		releaseSlot()
		return nil, errors.New(errors.KindUnsupportedVehicleType, "vehicle type %q not supported at facility %s", req.VehicleType, req.FacilityID)
	}

	now := s.now()
	if req.StartTime.Before(now) {
		releaseSlot()
		return nil, errors.New(errors.KindInvalidInterval, "start_time cannot be in the past")
	}
	if !req.EndTime.After(req.StartTime) {
		releaseSlot()
		return nil, errors.New(errors.KindInvalidInterval, "end_time must be after start_time")
	}

	quote := s.engine.PriceInterval(fac.HourlyRateCents, req.StartTime, req.EndTime, fac.Services, req.ServiceCodes)

	counters, err := s.facilities.ReserveOne(req.FacilityID)
	if err != nil {
		releaseSlot()
		return nil, err
	}
	releaseCapacity := func() {
		if _, err := s.facilities.ReleaseOne(req.FacilityID); err != nil {
			s.logger.WithFields(logrus.Fields{"facility_id": req.FacilityID, "error": err}).Error("capacity rollback failed")
		}
	}

	id := uuid.NewString()
	booking := &db.Booking{
		ID:              id,
		Code:            strings.ToUpper(id[:8]),
		FacilityID:      fac.ID,
		FacilityOwnerID: fac.OwnerID,
		UserID:          req.UserID,
		UserName:        req.UserName,
		UserEmail:       req.UserEmail,
		UserPhone:       req.UserPhone,
		VehicleType:     req.VehicleType,
		VehiclePlate:    req.VehiclePlate,
		VehicleModel:    req.VehicleModel,
		SlotCode:        req.SlotCode,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		HourlyRateCents: fac.HourlyRateCents,
		BasePriceCents:  quote.BasePriceCents,
		ServiceFeeCents: quote.ServiceFeeCents,
		TaxCents:        quote.TaxCents,
		TotalCents:      quote.TotalCents,
		Services:        quote.Services,
		Status:          db.BookingPending,
		PaymentStatus:   db.PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if req.SimulatePayment {
		booking.Status = db.BookingConfirmed
		booking.PaymentStatus = db.PaymentCompleted
	} else if s.gateway != nil {
		ref, err := s.gateway.AuthorizeOrCharge(booking.TotalCents, s.currency, "ParkGrid booking "+booking.Code, booking.UserEmail)
		if err != nil {
			releaseCapacity()
			releaseSlot()
			return nil, errors.New(errors.KindPaymentFailed, "payment authorization failed: %v", err)
		}
		booking.PaymentRef = ref
	}

	if err := s.bookings.Create(booking); err != nil {
		releaseCapacity()
		releaseSlot()
		return nil, fmt.Errorf("failed to persist booking: %w", err)
	}

	s.facilities.PublishCapacity(counters)
	s.publishStatus(booking, "")
	s.notify(booking)

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"code":        booking.Code,
		"facility_id": booking.FacilityID,
		"slot":        booking.SlotCode,
		"total_cents": booking.TotalCents,
	}).Info("booking created")

	return booking, nil
}

// GetByCode returns a booking, optionally verifying the requester's email
// the way the public lookup endpoint does.
func (s *BookingService) GetByCode(code, email string) (*db.Booking, error) {
	b, err := s.bookings.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if email != "" && b.UserEmail != email {
		return nil, errors.New(errors.KindNotFound, "booking %s not found", code)
	}
	return b, nil
}

// List returns bookings for the admin surface.
func (s *BookingService) List(filter db.BookingFilter) ([]db.Booking, error) {
	return s.bookings.List(filter)
}

// Transition moves a booking to newStatus, enforcing the transition table.
// Cancellation computes the refund, refunds the captured payment and records
// the cancellation block; both cancellation and completion release the
// capacity (and slot) the booking consumed. Transitions for one booking are
// serialized, so two concurrent cancels cannot both pass the table check and
// refund twice.
func (s *BookingService) Transition(code string, newStatus db.BookingStatus, actor, reason string) (*db.Booking, error) {
	if !validStatus(newStatus) {
		return nil, errors.New(errors.KindInvalidRequest, "unknown booking status %q", newStatus)
	}

	mu := s.locks.get(code)
	mu.Lock()
	defer mu.Unlock()

	b, err := s.bookings.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if !canTransition(b.Status, newStatus) {
		return nil, errors.New(errors.KindInvalidTransition, "cannot transition booking from %s to %s", b.Status, newStatus)
	}

	now := s.now()
	previous := b.Status

	switch newStatus {
	case db.BookingCancelled:
		eligible, refundCents := s.refunds.Evaluate(b.Status, b.StartTime, now, b.TotalCents)
		if refundCents > 0 && b.PaymentStatus == db.PaymentCompleted && b.PaymentRef != "" && s.gateway != nil {
			if err := s.gateway.Refund(b.PaymentRef, refundCents); err != nil {
				return nil, errors.New(errors.KindPaymentFailed, "refund failed: %v", err)
			}
			b.PaymentStatus = db.PaymentRefunded
		}
		b.Cancellation = &db.CancellationRecord{
			Reason:         reason,
			Actor:          actor,
			CancelledAt:    now,
			RefundEligible: eligible,
			RefundCents:    refundCents,
		}
	case db.BookingCompleted:
		exit := now
		b.ExitTime = &exit
		b.VerifiedBy = actor
	}

	b.Status = newStatus
	b.UpdatedAt = now
	if err := s.bookings.Update(b, previous); err != nil {
		if errors.Is(err, errors.KindConcurrentModification) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to persist booking transition: %w", err)
	}

	if newStatus == db.BookingCancelled || newStatus == db.BookingCompleted {
		s.releaseAllocation(b)
	}

	s.publishStatus(b, actor)
	s.notify(b)

	s.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"code":       b.Code,
		"from":       previous,
		"to":         newStatus,
		"actor":      actor,
	}).Info("booking transitioned")

	return b, nil
}

// Extend lengthens a confirmed or active booking by whole hours, pricing the
// increment at the rate captured when the booking was created. Service fees
// already charged stay untouched; the extension is history on the booking,
// not a status of its own.
func (s *BookingService) Extend(code string, additionalHours int, actor string) (*db.Booking, error) {
	if additionalHours <= 0 {
		return nil, errors.New(errors.KindInvalidRequest, "additional_hours must be a positive integer")
	}
	if additionalHours > s.maxExtensionHours {
		return nil, errors.New(errors.KindInvalidRequest, "additional_hours exceeds the maximum of %d", s.maxExtensionHours)
	}

	mu := s.locks.get(code)
	mu.Lock()
	defer mu.Unlock()

	b, err := s.bookings.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if b.Status != db.BookingConfirmed && b.Status != db.BookingActive {
		return nil, errors.New(errors.KindInvalidTransition, "cannot extend a booking in status %s", b.Status)
	}

	base, tax, total := s.engine.PriceExtension(b.HourlyRateCents, additionalHours)
	now := s.now()

	b.EndTime = b.EndTime.Add(time.Duration(additionalHours) * time.Hour)
	b.BasePriceCents += base
	b.TaxCents += tax
	b.TotalCents += total
	b.Extensions = append(b.Extensions, db.ExtensionRecord{
		AdditionalHours: additionalHours,
		AddedBaseCents:  base,
		AddedTaxCents:   tax,
		AddedTotalCents: total,
		ExtendedAt:      now,
	})
	b.UpdatedAt = now

	if err := s.bookings.Update(b, b.Status); err != nil {
		return nil, fmt.Errorf("failed to persist booking extension: %w", err)
	}

	s.publishStatus(b, actor)
	s.logger.WithFields(logrus.Fields{
		"booking_id":       b.ID,
		"code":             b.Code,
		"additional_hours": additionalHours,
		"added_cents":      total,
	}).Info("booking extended")

	return b, nil
}

// ConfirmPayment marks the booking paid after gateway confirmation (webhook)
// and moves it from pending to confirmed.
func (s *BookingService) ConfirmPayment(paymentRef string) (*db.Booking, error) {
	b, err := s.bookings.GetByPaymentRef(paymentRef)
	if err != nil {
		return nil, err
	}
	b.PaymentStatus = db.PaymentCompleted
	b.UpdatedAt = s.now()
	if err := s.bookings.Update(b, b.Status); err != nil {
		return nil, fmt.Errorf("failed to persist payment confirmation: %w", err)
	}
	if b.Status == db.BookingPending {
		return s.Transition(b.Code, db.BookingConfirmed, "payment-gateway", "payment completed")
	}
	return b, nil
}

// FailPayment marks the booking's payment failed without touching the
// lifecycle; the stale-pending sweep reclaims its capacity later.
func (s *BookingService) FailPayment(paymentRef string) (*db.Booking, error) {
	b, err := s.bookings.GetByPaymentRef(paymentRef)
	if err != nil {
		return nil, err
	}
	b.PaymentStatus = db.PaymentFailed
	b.UpdatedAt = s.now()
	if err := s.bookings.Update(b, b.Status); err != nil {
		return nil, fmt.Errorf("failed to persist payment failure: %w", err)
	}
	return b, nil
}

func (s *BookingService) releaseAllocation(b *db.Booking) {
	if b.SlotCode != "" {
		if err := s.facilities.ReleaseSlot(b.FacilityID, b.SlotCode); err != nil {
			s.logger.WithFields(logrus.Fields{"facility_id": b.FacilityID, "slot": b.SlotCode, "error": err}).Error("slot release failed")
		}
	}
	c, err := s.facilities.ReleaseOne(b.FacilityID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"facility_id": b.FacilityID, "error": err}).Error("capacity release failed")
		return
	}
	s.facilities.PublishCapacity(c)
}

func (s *BookingService) publishStatus(b *db.Booking, actor string) {
	if s.pub == nil {
		return
	}
	event := entities.BookingStatusEvent{
		BookingID:  b.ID,
		Code:       b.Code,
		FacilityID: b.FacilityID,
		Status:     b.Status,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.pub.Publish(entities.TopicBookingStatus, event); err != nil {
		s.logger.WithFields(logrus.Fields{"booking_id": b.ID, "error": err}).Warn("booking event publish failed")
	}
}

func (s *BookingService) notify(b *db.Booking) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyBookingStatus(b)
}
