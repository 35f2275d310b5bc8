package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buildora/storefront/internal/estimator"
)

type EstimateHandler struct{}

type estimateReq struct {
	Kind string `json:"kind"` // concrete_slab | brick_wall | paint

	LengthM    float64 `json:"length_m,omitempty"`
	WidthM     float64 `json:"width_m,omitempty"`
	ThicknessM float64 `json:"thickness_m,omitempty"`
	AreaSqm    float64 `json:"area_sqm,omitempty"`
	Coats      int     `json:"coats,omitempty"`
}

func (h *EstimateHandler) Register(r *chi.Mux) {
	r.Post("/estimate", h.estimate)
}

func (h *EstimateHandler) estimate(w http.ResponseWriter, r *http.Request) {
	var req estimateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	switch req.Kind {
	case "concrete_slab":
		writeJSON(w, http.StatusOK, estimator.ConcreteSlab(req.LengthM, req.WidthM, req.ThicknessM))
	case "brick_wall":
		writeJSON(w, http.StatusOK, map[string]int{"bricks": estimator.BrickWall(req.AreaSqm)})
	case "paint":
		coats := req.Coats
		if coats == 0 {
			coats = 1
		}
		writeJSON(w, http.StatusOK, map[string]float64{"litres": estimator.PaintLitres(req.AreaSqm, coats)})
	default:
		writeError(w, http.StatusBadRequest, "unknown estimate kind")
	}
}
