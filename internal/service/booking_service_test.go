package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgrid/internal/db"
	"parkgrid/internal/entities"
	"parkgrid/internal/errors"
	"parkgrid/internal/pricing"
)

// ---- fakes ----

type fakeBookingStore struct {
	mu       sync.Mutex
	byCode   map[string]*db.Booking
	failNext bool
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{byCode: map[string]*db.Booking{}}
}

func (f *fakeBookingStore) Create(b *db.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return fmt.Errorf("storage unavailable")
	}
	clone := *b
	f.byCode[b.Code] = &clone
	return nil
}

func (f *fakeBookingStore) GetByCode(code string) (*db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byCode[code]
	if !ok {
		return nil, errors.New(errors.KindNotFound, "booking not found")
	}
	clone := *b
	return &clone, nil
}

func (f *fakeBookingStore) GetByPaymentRef(ref string) (*db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.byCode {
		if b.PaymentRef == ref {
			clone := *b
			return &clone, nil
		}
	}
	return nil, errors.New(errors.KindNotFound, "booking not found")
}

func (f *fakeBookingStore) Update(b *db.Booking, prev db.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.byCode[b.Code]
	if !ok {
		return errors.New(errors.KindNotFound, "booking not found")
	}
	if current.Status != prev {
		return errors.New(errors.KindConcurrentModification, "booking %s is no longer in status %s", b.Code, prev)
	}
	clone := *b
	f.byCode[b.Code] = &clone
	return nil
}

func (f *fakeBookingStore) List(filter db.BookingFilter) ([]db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Booking
	for _, b := range f.byCode {
		if filter.Status != "" && string(b.Status) != filter.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBookingStore) ListActivePastEnd(now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var codes []string
	for _, b := range f.byCode {
		if b.Status == db.BookingActive && b.EndTime.Before(now) {
			codes = append(codes, b.Code)
		}
	}
	return codes, nil
}

func (f *fakeBookingStore) ListPendingCreatedBefore(cutoff time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var codes []string
	for _, b := range f.byCode {
		if b.Status == db.BookingPending && b.CreatedAt.Before(cutoff) {
			codes = append(codes, b.Code)
		}
	}
	return codes, nil
}

type fakeGateway struct {
	mu          sync.Mutex
	charges     []int64
	refunds     map[string]int64
	refundCalls int
	chargeErr   error
	refundErr   error
	nextRefSeq  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{refunds: map[string]int64{}}
}

func (g *fakeGateway) AuthorizeOrCharge(amountCents int64, currency, description, customerEmail string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return "", g.chargeErr
	}
	g.charges = append(g.charges, amountCents)
	g.nextRefSeq++
	return fmt.Sprintf("sess_%d", g.nextRefSeq), nil
}

func (g *fakeGateway) Refund(ref string, amountCents int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refundCalls++
	g.refunds[ref] = amountCents
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *fakePublisher) Publish(topic string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *fakePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

// ---- fixture ----

type fixture struct {
	facilities *FacilityService
	bookings   *fakeBookingStore
	gateway    *fakeGateway
	pub        *fakePublisher
	svc        *BookingService
	now        time.Time
}

func newFixture(t *testing.T, available int) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	override := int64(5000)
	fac := db.Facility{
		ID:              "fac-1",
		OwnerID:         "owner-1",
		Name:            "Central Garage",
		TotalSpaces:     available,
		AvailableSpaces: available,
		HourlyRateCents: 4000,
		VehicleTypes:    []string{"car", "motorcycle"},
		Services: []db.ServiceOffering{
			{Code: "wash", Name: "Car wash", PriceCents: 6000, OverrideCents: &override, Available: true},
			{Code: "valet", Name: "Valet", PriceCents: 8000, Available: false},
		},
		Slots: []db.Slot{
			{Code: "L1-R1-C1", VehicleType: "car", Status: db.SlotAvailable},
			{Code: "L1-R1-C2", VehicleType: "car", Status: db.SlotAvailable},
		},
	}

	pub := &fakePublisher{}
	facilities := NewFacilityService(nil, pub, logger)
	facilities.LoadFacilities([]db.Facility{fac})

	bookings := newFakeBookingStore()
	gateway := newFakeGateway()

	svc := NewBookingService(
		facilities, bookings,
		pricing.NewEngine(pricing.DefaultTaxRateBasisPoints),
		pricing.DefaultRefundPolicy(),
		gateway, pub, nil, logger,
	)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &fixture{
		facilities: facilities,
		bookings:   bookings,
		gateway:    gateway,
		pub:        pub,
		svc:        svc,
		now:        now,
	}
}

func (fx *fixture) request() *entities.BookingRequest {
	return &entities.BookingRequest{
		FacilityID:   "fac-1",
		UserID:       "user-1",
		UserName:     "Dana",
		UserEmail:    "dana@example.com",
		VehicleType:  "car",
		VehiclePlate: "AB123CD",
		StartTime:    fx.now.Add(48 * time.Hour),
		EndTime:      fx.now.Add(48*time.Hour + 150*time.Minute), // 2.5h
	}
}

func (fx *fixture) counters(t *testing.T) (available, reserved int) {
	t.Helper()
	c, err := fx.facilities.Counters("fac-1")
	require.NoError(t, err)
	return c.Available, c.Reserved
}

func (fx *fixture) slotStatus(t *testing.T, code string) db.SlotStatus {
	t.Helper()
	slots, err := fx.facilities.Slots("fac-1")
	require.NoError(t, err)
	for _, s := range slots {
		if s.Code == code {
			return s.Status
		}
	}
	t.Fatalf("slot %s not found", code)
	return ""
}

// ---- tests ----

func TestCreateBooking(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.ServiceCodes = []string{"wash", "valet"}

	b, err := fx.svc.Create(req)
	require.NoError(t, err)

	assert.Equal(t, db.BookingPending, b.Status)
	assert.Equal(t, db.PaymentPending, b.PaymentStatus)
	assert.NotEmpty(t, b.PaymentRef)
	assert.Equal(t, int64(12000), b.BasePriceCents)
	assert.Equal(t, int64(5000), b.ServiceFeeCents)
	assert.Equal(t, int64(3060), b.TaxCents)
	assert.Equal(t, int64(20060), b.TotalCents)
	assert.Equal(t, int64(4000), b.HourlyRateCents)
	assert.Equal(t, "owner-1", b.FacilityOwnerID)
	require.Len(t, b.Services, 1)
	assert.Equal(t, "wash", b.Services[0].Code)

	available, reserved := fx.counters(t)
	assert.Equal(t, 4, available)
	assert.Equal(t, 1, reserved)

	assert.Equal(t, 1, fx.pub.count(entities.TopicCapacityChanged))
	assert.Equal(t, 1, fx.pub.count(entities.TopicBookingStatus))
	assert.Equal(t, []int64{20060}, fx.gateway.charges)
}

func TestCreateBooking_SimulatePayment(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.SimulatePayment = true

	b, err := fx.svc.Create(req)
	require.NoError(t, err)
	assert.Equal(t, db.BookingConfirmed, b.Status)
	assert.Equal(t, db.PaymentCompleted, b.PaymentStatus)
	assert.Empty(t, fx.gateway.charges)
}

func TestCreateBooking_WithSlot(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.SlotCode = "L1-R1-C1"

	b, err := fx.svc.Create(req)
	require.NoError(t, err)
	assert.Equal(t, "L1-R1-C1", b.SlotCode)
	assert.Equal(t, db.SlotReserved, fx.slotStatus(t, "L1-R1-C1"))
}

func TestCreateBooking_NoCapacity(t *testing.T) {
	fx := newFixture(t, 0)

	_, err := fx.svc.Create(fx.request())
	require.Error(t, err)
	assert.Equal(t, errors.KindNoCapacity, errors.KindOf(err))
}

func TestCreateBooking_SlotTaken(t *testing.T) {
	fx := newFixture(t, 5)
	first := fx.request()
	first.SlotCode = "L1-R1-C1"
	_, err := fx.svc.Create(first)
	require.NoError(t, err)

	second := fx.request()
	second.SlotCode = "L1-R1-C1"
	_, err = fx.svc.Create(second)
	require.Error(t, err)
	assert.Equal(t, errors.KindSlotNotAvailable, errors.KindOf(err))

	// The loser must not have consumed aggregate capacity.
	available, reserved := fx.counters(t)
	assert.Equal(t, 4, available)
	assert.Equal(t, 1, reserved)
}

func TestCreateBooking_UnsupportedVehicleReleasesSlot(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.SlotCode = "L1-R1-C1"
	req.VehicleType = "truck"

	_, err := fx.svc.Create(req)
	require.Error(t, err)
	assert.Equal(t, errors.KindUnsupportedVehicleType, errors.KindOf(err))
	assert.Equal(t, db.SlotAvailable, fx.slotStatus(t, "L1-R1-C1"))
}

func TestCreateBooking_InvalidInterval(t *testing.T) {
	fx := newFixture(t, 5)

	req := fx.request()
	req.StartTime = fx.now.Add(-time.Hour)
	_, err := fx.svc.Create(req)
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidInterval, errors.KindOf(err))

	req = fx.request()
	req.EndTime = req.StartTime
	_, err = fx.svc.Create(req)
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidInterval, errors.KindOf(err))
}

func TestCreateBooking_PaymentFailureRollsBack(t *testing.T) {
	fx := newFixture(t, 5)
	fx.gateway.chargeErr = fmt.Errorf("card declined")

	req := fx.request()
	req.SlotCode = "L1-R1-C1"
	_, err := fx.svc.Create(req)
	require.Error(t, err)
	assert.Equal(t, errors.KindPaymentFailed, errors.KindOf(err))

	available, reserved := fx.counters(t)
	assert.Equal(t, 5, available)
	assert.Equal(t, 0, reserved)
	assert.Equal(t, db.SlotAvailable, fx.slotStatus(t, "L1-R1-C1"))
}

func TestCreateBooking_PersistFailureRollsBack(t *testing.T) {
	fx := newFixture(t, 5)
	fx.bookings.failNext = true

	req := fx.request()
	req.SlotCode = "L1-R1-C2"
	_, err := fx.svc.Create(req)
	require.Error(t, err)

	available, reserved := fx.counters(t)
	assert.Equal(t, 5, available)
	assert.Equal(t, 0, reserved)
	assert.Equal(t, db.SlotAvailable, fx.slotStatus(t, "L1-R1-C2"))
}

func TestConcurrentCreate_LastSpaceSingleWinner(t *testing.T) {
	fx := newFixture(t, 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := fx.request()
			req.UserID = fmt.Sprintf("user-%d", i)
			req.SimulatePayment = true
			_, err := fx.svc.Create(req)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, noCapacity int
	for err := range results {
		if err == nil {
			wins++
		} else if errors.Is(err, errors.KindNoCapacity) {
			noCapacity++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, noCapacity)

	available, reserved := fx.counters(t)
	assert.Equal(t, 0, available)
	assert.Equal(t, 1, reserved)
}

func TestTransition_Lifecycle(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.SimulatePayment = true
	b, err := fx.svc.Create(req)
	require.NoError(t, err)

	b, err = fx.svc.Transition(b.Code, db.BookingActive, "gate", "")
	require.NoError(t, err)
	assert.Equal(t, db.BookingActive, b.Status)

	b, err = fx.svc.Transition(b.Code, db.BookingCompleted, "attendant-7", "")
	require.NoError(t, err)
	assert.Equal(t, db.BookingCompleted, b.Status)
	require.NotNil(t, b.ExitTime)
	assert.Equal(t, "attendant-7", b.VerifiedBy)

	// Completion frees the space for the next booking.
	available, reserved := fx.counters(t)
	assert.Equal(t, 5, available)
	assert.Equal(t, 0, reserved)
}

func TestComplete_ReleasesCapacityAndSlot(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.SlotCode = "L1-R1-C1"
	req.SimulatePayment = true
	b, err := fx.svc.Create(req)
	require.NoError(t, err)
	_, err = fx.svc.Transition(b.Code, db.BookingActive, "gate", "")
	require.NoError(t, err)

	_, err = fx.svc.Transition(b.Code, db.BookingCompleted, "attendant-7", "")
	require.NoError(t, err)

	available, reserved := fx.counters(t)
	assert.Equal(t, 5, available)
	assert.Equal(t, 0, reserved)
	assert.Equal(t, db.SlotAvailable, fx.slotStatus(t, "L1-R1-C1"))
}

func TestConcurrentCancel_RefundsOnce(t *testing.T) {
	fx := newFixture(t, 5)
	b, err := fx.svc.Create(fx.request())
	require.NoError(t, err)
	_, err = fx.svc.ConfirmPayment(b.PaymentRef)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Transition(b.Code, db.BookingCancelled, "user-1", "duplicate request")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		kind := errors.KindOf(err)
		assert.Contains(t, []errors.Kind{errors.KindInvalidTransition, errors.KindConcurrentModification}, kind)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, fx.gateway.refundCalls)

	got, err := fx.svc.GetByCode(b.Code, "")
	require.NoError(t, err)
	assert.Equal(t, db.BookingCancelled, got.Status)
	assert.Equal(t, db.PaymentRefunded, got.PaymentStatus)

	available, reserved := fx.counters(t)
	assert.Equal(t, 5, available)
	assert.Equal(t, 0, reserved)
}

func TestTransition_IllegalFromCompleted(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.SimulatePayment = true
	b, err := fx.svc.Create(req)
	require.NoError(t, err)

	_, err = fx.svc.Transition(b.Code, db.BookingActive, "gate", "")
	require.NoError(t, err)
	_, err = fx.svc.Transition(b.Code, db.BookingCompleted, "gate", "")
	require.NoError(t, err)

	for _, next := range []db.BookingStatus{db.BookingPending, db.BookingConfirmed, db.BookingActive, db.BookingCancelled} {
		_, err := fx.svc.Transition(b.Code, next, "admin", "")
		require.Error(t, err)
		assert.Equal(t, errors.KindInvalidTransition, errors.KindOf(err))
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	b, err := fx.svc.Create(req)
	require.NoError(t, err)

	_, err = fx.svc.Transition(b.Code, "extended", "admin", "")
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))
}

func TestCancel_RestoresCapacityAndSlot(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.SlotCode = "L1-R1-C1"
	req.SimulatePayment = true
	b, err := fx.svc.Create(req)
	require.NoError(t, err)

	b, err = fx.svc.Transition(b.Code, db.BookingCancelled, "user-1", "change of plans")
	require.NoError(t, err)
	assert.Equal(t, db.BookingCancelled, b.Status)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, "change of plans", b.Cancellation.Reason)
	assert.True(t, b.Cancellation.RefundEligible)
	assert.Equal(t, b.TotalCents, b.Cancellation.RefundCents)

	available, reserved := fx.counters(t)
	assert.Equal(t, 5, available)
	assert.Equal(t, 0, reserved)
	assert.Equal(t, db.SlotAvailable, fx.slotStatus(t, "L1-R1-C1"))
}

func TestCancel_NearStartGetsPartialRefund(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.StartTime = fx.now.Add(13 * time.Hour)
	req.EndTime = req.StartTime.Add(2 * time.Hour)
	req.SimulatePayment = true
	b, err := fx.svc.Create(req)
	require.NoError(t, err)

	b, err = fx.svc.Transition(b.Code, db.BookingCancelled, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, b.TotalCents/2, b.Cancellation.RefundCents)
}

func TestExtend(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.SimulatePayment = true
	b, err := fx.svc.Create(req)
	require.NoError(t, err)

	originalEnd := b.EndTime
	originalTotal := b.TotalCents

	b, err = fx.svc.Extend(b.Code, 2, "user-1")
	require.NoError(t, err)

	assert.Equal(t, originalEnd.Add(2*time.Hour), b.EndTime)
	// 2h at the captured 4000c rate plus 18% tax on the increment.
	assert.Equal(t, originalTotal+9440, b.TotalCents)
	require.Len(t, b.Extensions, 1)
	assert.Equal(t, 2, b.Extensions[0].AdditionalHours)
	assert.Equal(t, int64(8000), b.Extensions[0].AddedBaseCents)
	assert.Equal(t, int64(1440), b.Extensions[0].AddedTaxCents)

	// Service fees are preserved unchanged across extensions.
	assert.Equal(t, int64(0), b.ServiceFeeCents)
}

func TestExtend_Validation(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	b, err := fx.svc.Create(req)
	require.NoError(t, err)

	// Pending bookings cannot be extended.
	_, err = fx.svc.Extend(b.Code, 2, "user-1")
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidTransition, errors.KindOf(err))

	req2 := fx.request()
	req2.SimulatePayment = true
	b2, err := fx.svc.Create(req2)
	require.NoError(t, err)

	_, err = fx.svc.Extend(b2.Code, 0, "user-1")
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))

	_, err = fx.svc.Extend(b2.Code, 13, "user-1")
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))
}

func TestExtendThenCancel_RefundsExtendedTotal(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.SimulatePayment = true
	b, err := fx.svc.Create(req)
	require.NoError(t, err)

	b, err = fx.svc.Extend(b.Code, 3, "user-1")
	require.NoError(t, err)
	// 3h booking plus 3h extension, both at 4000c/h with 18% tax.
	require.Equal(t, int64(28320), b.TotalCents)

	b, err = fx.svc.Transition(b.Code, db.BookingCancelled, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(28320), b.Cancellation.RefundCents)
}

func TestCancel_RefundsThroughGateway(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	b, err := fx.svc.Create(req)
	require.NoError(t, err)

	// Simulate webhook payment confirmation, then cancel.
	b, err = fx.svc.ConfirmPayment(b.PaymentRef)
	require.NoError(t, err)
	assert.Equal(t, db.BookingConfirmed, b.Status)
	assert.Equal(t, db.PaymentCompleted, b.PaymentStatus)

	b, err = fx.svc.Transition(b.Code, db.BookingCancelled, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, db.PaymentRefunded, b.PaymentStatus)
	assert.Equal(t, b.Cancellation.RefundCents, fx.gateway.refunds[b.PaymentRef])
}

func TestCancel_RefundFailureLeavesBookingUntouched(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	b, err := fx.svc.Create(req)
	require.NoError(t, err)
	_, err = fx.svc.ConfirmPayment(b.PaymentRef)
	require.NoError(t, err)

	fx.gateway.refundErr = fmt.Errorf("gateway down")
	_, err = fx.svc.Transition(b.Code, db.BookingCancelled, "user-1", "")
	require.Error(t, err)
	assert.Equal(t, errors.KindPaymentFailed, errors.KindOf(err))

	got, err := fx.svc.GetByCode(b.Code, "")
	require.NoError(t, err)
	assert.Equal(t, db.BookingConfirmed, got.Status)

	// Capacity is still held by the not-cancelled booking.
	available, reserved := fx.counters(t)
	assert.Equal(t, 4, available)
	assert.Equal(t, 1, reserved)
}

func TestGetByCode_EmailCheck(t *testing.T) {
	fx := newFixture(t, 5)
	b, err := fx.svc.Create(fx.request())
	require.NoError(t, err)

	_, err = fx.svc.GetByCode(b.Code, "dana@example.com")
	require.NoError(t, err)

	_, err = fx.svc.GetByCode(b.Code, "other@example.com")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestCheckAvailability(t *testing.T) {
	fx := newFixture(t, 1)

	resp, err := fx.svc.CheckAvailability(entities.AvailabilityRequest{FacilityID: "fac-1", VehicleType: "car"})
	require.NoError(t, err)
	assert.True(t, resp.Available)
	assert.Equal(t, 1, resp.AvailableSpaces)

	resp, err = fx.svc.CheckAvailability(entities.AvailabilityRequest{FacilityID: "fac-1", VehicleType: "truck"})
	require.NoError(t, err)
	assert.False(t, resp.Available)

	req := fx.request()
	req.SimulatePayment = true
	_, err = fx.svc.Create(req)
	require.NoError(t, err)

	resp, err = fx.svc.CheckAvailability(entities.AvailabilityRequest{FacilityID: "fac-1", VehicleType: "car"})
	require.NoError(t, err)
	assert.False(t, resp.Available)
	assert.Equal(t, "facility is full", resp.Message)
}

func TestQuote(t *testing.T) {
	fx := newFixture(t, 5)
	req := fx.request()
	req.ServiceCodes = []string{"wash"}

	q, err := fx.svc.Quote(*req)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Hours)
	assert.Equal(t, int64(20060), q.TotalCents)

	// Quoting never consumes capacity.
	available, _ := fx.counters(t)
	assert.Equal(t, 5, available)
}

func TestJobService_Sweeps(t *testing.T) {
	fx := newFixture(t, 5)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	jobs := NewJobService(fx.bookings, fx.svc, 30*time.Minute, logger)

	// An active booking past its end time gets completed.
	req := fx.request()
	req.SimulatePayment = true
	active, err := fx.svc.Create(req)
	require.NoError(t, err)
	_, err = fx.svc.Transition(active.Code, db.BookingActive, "gate", "")
	require.NoError(t, err)

	fx.svc.now = func() time.Time { return active.EndTime.Add(time.Hour) }
	require.NoError(t, jobs.CompleteFinishedBookings())
	got, err := fx.svc.GetByCode(active.Code, "")
	require.NoError(t, err)
	assert.Equal(t, db.BookingCompleted, got.Status)
	assert.Equal(t, "system", got.VerifiedBy)

	// A stale pending booking gets cancelled and releases its capacity.
	fx.svc.now = func() time.Time { return fx.now }
	stale, err := fx.svc.Create(fx.request())
	require.NoError(t, err)

	availableBefore, _ := fx.counters(t)
	fx.svc.now = func() time.Time { return fx.now.Add(2 * time.Hour) }
	require.NoError(t, jobs.ExpireStalePendingBookings())

	got, err = fx.svc.GetByCode(stale.Code, "")
	require.NoError(t, err)
	assert.Equal(t, db.BookingCancelled, got.Status)

	availableAfter, _ := fx.counters(t)
	assert.Equal(t, availableBefore+1, availableAfter)
}
