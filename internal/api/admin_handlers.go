package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"parkgrid/internal/db"
	"parkgrid/internal/entities"
	"parkgrid/internal/errors"
	"parkgrid/internal/service"
)

type AdminHandler struct {
	Bookings   *service.BookingService
	Facilities *service.FacilityService
}

func NewAdminHandler(bookings *service.BookingService, facilities *service.FacilityService) *AdminHandler {
	return &AdminHandler{Bookings: bookings, Facilities: facilities}
}

func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	bookings, err := h.Bookings.List(db.BookingFilter{
		FacilityID: q.Get("facility_id"),
		UserID:     q.Get("user_id"),
		Status:     q.Get("status"),
		Date:       q.Get("date"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	list := entities.BookingsList{Total: len(bookings)}
	for i := range bookings {
		list.Bookings = append(list.Bookings, *entities.NewBookingResponse(&bookings[i]))
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) TransitionBooking(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var req entities.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.KindInvalidRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	booking, err := h.Bookings.Transition(code, db.BookingStatus(req.Status), req.Actor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewBookingResponse(booking))
}

func (h *AdminHandler) UpdateCapacity(w http.ResponseWriter, r *http.Request) {
	facilityID := mux.Vars(r)["id"]
	var req UpdateCapacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.KindInvalidRequest, "invalid request body"))
		return
	}
	counters, err := h.Facilities.UpdateCapacity(facilityID, req.TotalSpaces)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

func (h *AdminHandler) GenerateLayout(w http.ResponseWriter, r *http.Request) {
	facilityID := mux.Vars(r)["id"]
	var req GenerateLayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.KindInvalidRequest, "invalid request body"))
		return
	}
	slots, err := h.Facilities.GenerateLayout(facilityID, req.Levels, req.Rows, req.Cols, req.VehicleType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated": len(slots),
		"slots":     slots,
	})
}

func (h *AdminHandler) SetSlotStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req SetSlotStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.KindInvalidRequest, "invalid request body"))
		return
	}
	if err := h.Facilities.SetSlotStatus(vars["id"], vars["code"], db.SlotStatus(req.Status)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "slot status updated"})
}
