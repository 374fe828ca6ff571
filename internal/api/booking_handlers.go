package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"parkgrid/internal/db"
	"parkgrid/internal/entities"
	"parkgrid/internal/errors"
	"parkgrid/internal/service"
)

type BookingHandler struct {
	Bookings   *service.BookingService
	Facilities *service.FacilityService
}

func NewBookingHandler(bookings *service.BookingService, facilities *service.FacilityService) *BookingHandler {
	return &BookingHandler{Bookings: bookings, Facilities: facilities}
}

func (h *BookingHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Facilities.List())
}

func (h *BookingHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	facilityID := mux.Vars(r)["id"]
	slots, err := h.Facilities.Slots(facilityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req entities.AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.KindInvalidRequest, "invalid request body"))
		return
	}
	resp, err := h.Bookings.CheckAvailability(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req entities.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.KindInvalidRequest, "invalid request body"))
		return
	}
	resp, err := h.Bookings.Quote(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req entities.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.KindInvalidRequest, "invalid request body"))
		return
	}
	booking, err := h.Bookings.Create(&req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entities.NewBookingResponse(booking))
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	email := r.URL.Query().Get("email")
	booking, err := h.Bookings.GetByCode(code, email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewBookingResponse(booking))
}

func (h *BookingHandler) ExtendBooking(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var req entities.ExtendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.KindInvalidRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = "user"
	}
	booking, err := h.Bookings.Extend(code, req.AdditionalHours, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewBookingResponse(booking))
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var req entities.CancelRequest
	// Body is optional for cancellation.
	json.NewDecoder(r.Body).Decode(&req)
	actor := req.Actor
	if actor == "" {
		actor = "user"
	}
	booking, err := h.Bookings.Transition(code, db.BookingCancelled, actor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewBookingResponse(booking))
}
