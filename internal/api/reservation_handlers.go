package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"parkspot/internal/apperr"
	"parkspot/internal/auth"
	"parkspot/internal/db"
	"parkspot/internal/entities"
	"parkspot/internal/service"
)

type ReservationHandler struct {
	Service    *service.ReservationService
	Facilities *service.FacilityService
}

func NewReservationHandler(svc *service.ReservationService, facilities *service.FacilityService) *ReservationHandler {
	return &ReservationHandler{Service: svc, Facilities: facilities}
}

func (h *ReservationHandler) CreateOnDemand(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	var req CreateOnDemandReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !h.maySpotBeUsed(w, r, req.ParkingSpotID) {
		return
	}

	res, err := h.Service.CreateOnDemand(r.Context(), claims.UserID, req.ParkingSpotID, req.StartTime)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *ReservationHandler) CreateScheduled(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	var req CreateScheduledReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !h.maySpotBeUsed(w, r, req.ParkingSpotID) {
		return
	}

	res, err := h.Service.CreateScheduled(r.Context(), claims.UserID, req.ParkingSpotID, req.StartTime, req.EndTime)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *ReservationHandler) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid reservation ID", http.StatusBadRequest)
		return
	}
	var req UpdateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !h.mayActOnReservation(w, r, id) {
		return
	}

	res, err := h.Service.Update(r.Context(), id, service.UpdateReservationParams{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid reservation ID", http.StatusBadRequest)
		return
	}
	if !h.mayActOnReservation(w, r, id) {
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Reservation deleted"})
}

// Checkout ends the spot's current occupancy. Regular users may only check
// out their own occupancy; admins and the facility's manager may check out
// any occupant.
func (h *ReservationHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	active, err := h.Service.ActiveReservationForSpot(r.Context(), req.ParkingSpotID)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	if active == nil {
		http.Error(w, "No active reservation on this spot", http.StatusNotFound)
		return
	}
	if active.UserID != claims.UserID && !claims.IsAdmin() && !h.overseesSpot(r, claims, req.ParkingSpotID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	res, err := h.Service.Checkout(r.Context(), req.ParkingSpotID)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetByCode looks a reservation up by its code, with the same ownership rules
// as the other per-reservation operations.
func (h *ReservationHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	code := mux.Vars(r)["code"]

	res, err := h.Service.GetByCode(r.Context(), code)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	if res.UserID != claims.UserID && !claims.IsAdmin() && !h.overseesSpot(r, claims, res.ParkingSpotID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListActive returns the caller's active and pending reservations.
func (h *ReservationHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	list, err := h.Service.ListActiveAndPending(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListForDate returns the day's reservations scoped by role: admins see all,
// managers their facility, everyone else their own.
func (h *ReservationHandler) ListForDate(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	date, ok := parseDateParam(w, r)
	if !ok {
		return
	}

	var list *entities.ReservationsList
	var err error
	switch {
	case claims.IsAdmin():
		list, err = h.Service.ListForDate(r.Context(), date)
	case claims.Role == db.RoleManager && claims.FacilityID != nil:
		list, err = h.Service.ListForDateByFacility(r.Context(), *claims.FacilityID, date)
	default:
		list, err = h.Service.ListForDateByUser(r.Context(), claims.UserID, date)
	}
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// AvailableSpots reports each spot's free slots within the work window for
// the requested date, omitting fully booked spots.
func (h *ReservationHandler) AvailableSpots(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	facilityID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid facility ID", http.StatusBadRequest)
		return
	}
	if claims.Role == db.RoleManager && !claims.ManagesFacility(facilityID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	date, ok := parseDateParam(w, r)
	if !ok {
		return
	}

	report, err := h.Service.AvailableSpots(r.Context(), facilityID, date)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": report})
}

// mayActOnReservation enforces the ownership rules on a stored reservation:
// owner, facility manager or admin.
func (h *ReservationHandler) mayActOnReservation(w http.ResponseWriter, r *http.Request, id int64) bool {
	claims := auth.FromContext(r.Context())
	res, err := h.Service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return false
	}
	if res.UserID == claims.UserID || claims.IsAdmin() || h.overseesSpot(r, claims, res.ParkingSpotID) {
		return true
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
	return false
}

// maySpotBeUsed rejects managers booking outside their own facility.
func (h *ReservationHandler) maySpotBeUsed(w http.ResponseWriter, r *http.Request, spotID int64) bool {
	claims := auth.FromContext(r.Context())
	if claims.Role != db.RoleManager {
		return true
	}
	if h.overseesSpot(r, claims, spotID) {
		return true
	}
	http.Error(w, "You do not have permission to create reservations for this facility", http.StatusForbidden)
	return false
}

func (h *ReservationHandler) overseesSpot(r *http.Request, claims *auth.Claims, spotID int64) bool {
	spot, err := h.Facilities.GetSpot(r.Context(), spotID)
	if err != nil {
		return false
	}
	return claims.ManagesFacility(spot.FacilityID)
}

func parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now(), true
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return time.Time{}, false
	}
	return date, true
}
