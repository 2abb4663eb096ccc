package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"parkspot/internal/apperr"
	"parkspot/internal/service"
)

// FacilityHandler exposes the admin-only inventory CRUD.
type FacilityHandler struct {
	Service *service.FacilityService
}

func NewFacilityHandler(svc *service.FacilityService) *FacilityHandler {
	return &FacilityHandler{Service: svc}
}

func (h *FacilityHandler) CreateFacility(w http.ResponseWriter, r *http.Request) {
	var req CreateFacilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	facility, err := h.Service.CreateFacility(r.Context(), req.Name, req.ParkingSpotCount, req.ManagerID)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, facility)
}

func (h *FacilityHandler) UpdateFacility(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid facility ID", http.StatusBadRequest)
		return
	}
	var req UpdateFacilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	facility, err := h.Service.UpdateFacility(r.Context(), id, req.Name, req.ParkingSpotCount, req.ManagerID)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, facility)
}

func (h *FacilityHandler) DeleteFacility(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid facility ID", http.StatusBadRequest)
		return
	}

	existed, err := h.Service.DeleteFacility(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	if !existed {
		http.Error(w, "Facility not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Facility deleted"})
}

func (h *FacilityHandler) GetFacility(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid facility ID", http.StatusBadRequest)
		return
	}

	facility, err := h.Service.GetFacility(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, facility)
}

func (h *FacilityHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.Service.ListFacilities(r.Context())
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, facilities)
}

func (h *FacilityHandler) CreateSpot(w http.ResponseWriter, r *http.Request) {
	var req CreateSpotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	spot, err := h.Service.CreateSpot(r.Context(), req.FacilityID, req.SpotNumber)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, spot)
}

func (h *FacilityHandler) ListSpots(w http.ResponseWriter, r *http.Request) {
	facilityID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid facility ID", http.StatusBadRequest)
		return
	}

	spots, err := h.Service.ListSpots(r.Context(), facilityID)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, spots)
}

func (h *FacilityHandler) UpdateSpot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid spot ID", http.StatusBadRequest)
		return
	}
	var req UpdateSpotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	spot, err := h.Service.UpdateSpotNumber(r.Context(), id, req.SpotNumber)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, spot)
}

func (h *FacilityHandler) DeleteSpot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid spot ID", http.StatusBadRequest)
		return
	}

	existed, err := h.Service.DeleteSpot(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), apperr.StatusFor(err))
		return
	}
	if !existed {
		http.Error(w, "Parking spot not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Parking spot deleted"})
}
