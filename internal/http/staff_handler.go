package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mark-4989/restaurant-service-go/internal/staff"
)

func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	includeInactive, err := queryBool(r, "includeInactive")
	if err != nil {
		writeError(w, http.StatusBadRequest, "includeInactive must be a boolean")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	members, err := h.staff.List(ctx, staff.Filter{
		Role:            staff.Role(r.URL.Query().Get("role")),
		IncludeInactive: includeInactive,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) GetStaff(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	m, err := h.staff.Get(ctx, chi.URLParam(r, "staffId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type staffRequest struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Phone string     `json:"phone"`
	Role  staff.Role `json:"role"`
}

func (req staffRequest) toMember() staff.Member {
	return staff.Member{Name: req.Name, Email: req.Email, Phone: req.Phone, Role: req.Role}
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	m, err := h.staff.Create(ctx, req.toMember())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	m, err := h.staff.Update(ctx, chi.URLParam(r, "staffId"), req.toMember())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) DeactivateStaff(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.staff.Deactivate(ctx, chi.URLParam(r, "staffId")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type shiftResponse struct {
	staff.Shift
	Hours float64 `json:"hours"`
}

func newShiftResponse(s staff.Shift, now time.Time) shiftResponse {
	return shiftResponse{Shift: s, Hours: s.Hours(now)}
}

func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	s, err := h.staff.ClockIn(ctx, chi.URLParam(r, "staffId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newShiftResponse(s, h.staff.Now()))
}

func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	s, err := h.staff.ClockOut(ctx, chi.URLParam(r, "staffId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShiftResponse(s, h.staff.Now()))
}

func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	shifts, err := h.staff.Shifts(ctx, chi.URLParam(r, "staffId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := h.staff.Now()
	out := make([]shiftResponse, 0, len(shifts))
	for _, s := range shifts {
		out = append(out, newShiftResponse(s, now))
	}
	writeJSON(w, http.StatusOK, out)
}
