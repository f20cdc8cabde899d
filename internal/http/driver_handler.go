package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mark-4989/restaurant-service-go/internal/driver"
	"github.com/mark-4989/restaurant-service-go/internal/geo"
)

func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	availableOnly, err := queryBool(r, "available")
	if err != nil {
		writeError(w, http.StatusBadRequest, "available must be a boolean")
		return
	}
	includeInactive, err := queryBool(r, "includeInactive")
	if err != nil {
		writeError(w, http.StatusBadRequest, "includeInactive must be a boolean")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	drivers, err := h.drivers.List(ctx, driver.Filter{AvailableOnly: availableOnly, IncludeInactive: includeInactive})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

func (h *Handler) GetDriver(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	d, err := h.drivers.Get(ctx, chi.URLParam(r, "driverId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type driverRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Vehicle string `json:"vehicle"`
}

func (req driverRequest) toDriver() driver.Driver {
	return driver.Driver{Name: req.Name, Phone: req.Phone, Vehicle: req.Vehicle}
}

func (h *Handler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	d, err := h.drivers.Create(ctx, req.toDriver())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) UpdateDriver(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	d, err := h.drivers.Update(ctx, chi.URLParam(r, "driverId"), req.toDriver())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) DeactivateDriver(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.drivers.Deactivate(ctx, chi.URLParam(r, "driverId")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetDriverAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Available == nil {
		writeError(w, http.StatusBadRequest, "available is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	d, err := h.drivers.SetAvailability(ctx, chi.URLParam(r, "driverId"), *req.Available)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// UpdateDriverLocation is the REST fallback for drivers that cannot hold a
// socket open; it takes the same path as the driver:location event.
func (h *Handler) UpdateDriverLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	d, err := h.dispatch.UpdateLocation(ctx, chi.URLParam(r, "driverId"), geo.Point{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
