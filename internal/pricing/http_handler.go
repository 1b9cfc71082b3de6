package pricing

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rpattn/retailops/internal/domain"
)

// Handler exposes price quotes over HTTP.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with the pricing routes.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the pricing endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/prices/quote", h.quote)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SerialNumber        string   `json:"serialNumber"`
		ItemCode            string   `json:"itemCode"`
		Group               string   `json:"group"`
		Family              string   `json:"family"`
		MaterialDescription string   `json:"materialDescription"`
		PatternCode         string   `json:"patternCode"`
		DiscountID          string   `json:"discountId"`
		DiscountAmount      *float64 `json:"discountAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	req := QuoteRequest{
		Context: domain.PriceContext{
			SerialNumber:        body.SerialNumber,
			ItemCode:            body.ItemCode,
			Group:               body.Group,
			Family:              body.Family,
			MaterialDescription: body.MaterialDescription,
			PatternCode:         body.PatternCode,
		},
		DiscountAmount: body.DiscountAmount,
	}
	if body.DiscountID != "" {
		id, err := uuid.Parse(body.DiscountID)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid discount id: %v", err), http.StatusBadRequest)
			return
		}
		req.DiscountID = &id
	}

	quote, err := h.service.Quote(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(quote)
}
