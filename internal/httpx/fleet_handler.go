package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/buildora/storefront/internal/fleet"
)

type FleetHandler struct {
	Fleet *fleet.Repo
}

type registerVehicleReq struct {
	ID         string `json:"id,omitempty"` // generated when empty
	Name       string `json:"name"`
	Model      string `json:"model"`
	CapacityKg int    `json:"capacity_kg"`
}

func (h *FleetHandler) Register(r *chi.Mux) {
	r.Get("/fleet/drones", h.list(fleet.KindDrone))
	r.Post("/fleet/drones", h.register(fleet.KindDrone))
	r.Get("/fleet/trucks", h.list(fleet.KindTruck))
	r.Post("/fleet/trucks", h.register(fleet.KindTruck))
}

func (h *FleetHandler) list(kind fleet.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		vs, err := h.Fleet.List(ctx, kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, vs)
	}
}

func (h *FleetHandler) register(kind fleet.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerVehicleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		err := h.Fleet.Register(ctx, fleet.Vehicle{
			ID:         req.ID,
			Kind:       kind,
			Name:       req.Name,
			Model:      req.Model,
			CapacityKg: req.CapacityKg,
		})
		switch {
		case errors.Is(err, fleet.ErrVehicleExists):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
		}
	}
}
