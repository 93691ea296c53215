package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tamrhq/supplycart/internal/domain/cart"
)

type cartLineResponse struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	AddedAt   time.Time `json:"added_at"`
}

type cartTotalsResponse struct {
	Total           float64 `json:"total"`
	TotalProducts   int     `json:"total_products"`
	TotalDiscount   float64 `json:"total_discount"`
	TotalAfterTaxes float64 `json:"total_after_taxes"`
	TotalCountryTax float64 `json:"total_country_tax"`
}

type supplierRequirementResponse struct {
	SupplierID     string  `json:"supplier_id"`
	SupplierName   string  `json:"supplier_name"`
	CurrentTotal   float64 `json:"current_total"`
	MinOrderAmount float64 `json:"min_order_amount"`
	ResidualAmount float64 `json:"residual_amount"`
	Completed      bool    `json:"completed"`
}

type cartResponse struct {
	Lines                []cartLineResponse            `json:"lines"`
	Totals               cartTotalsResponse            `json:"totals"`
	SupplierRequirements []supplierRequirementResponse `json:"supplier_requirements"`
}

// GetCart returns the cart lines, aggregated totals, and per-supplier
// minimum-order progress.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	c, err := h.carts.Get(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	totals, err := h.carts.Totals(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	reqs, err := h.carts.SupplierRequirements(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := cartResponse{
		Lines: make([]cartLineResponse, 0, len(c.Lines)),
		Totals: cartTotalsResponse{
			Total:           totals.Total.InexactFloat64(),
			TotalProducts:   totals.TotalProducts,
			TotalDiscount:   totals.TotalDiscount.InexactFloat64(),
			TotalAfterTaxes: totals.TotalAfterTaxes.InexactFloat64(),
			TotalCountryTax: totals.TotalCountryTax.InexactFloat64(),
		},
		SupplierRequirements: make([]supplierRequirementResponse, 0, len(reqs)),
	}
	for _, l := range c.Qualifying() {
		resp.Lines = append(resp.Lines, toLineResponse(l))
	}
	for _, sr := range reqs {
		resp.SupplierRequirements = append(resp.SupplierRequirements, supplierRequirementResponse{
			SupplierID:     sr.SupplierID,
			SupplierName:   sr.SupplierName,
			CurrentTotal:   sr.CurrentTotal.InexactFloat64(),
			MinOrderAmount: sr.MinOrderAmount.InexactFloat64(),
			ResidualAmount: sr.ResidualAmount.InexactFloat64(),
			Completed:      sr.Completed,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type addLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// AddCartLine inserts a product into the cart or increments an existing line.
func (h *Handler) AddCartLine(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "product_id is required")
		return
	}

	line, err := h.carts.AddLine(r.Context(), id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLineResponse(*line))
}

// RemoveCartLine deletes one line. Removing an absent line returns 204 too.
func (h *Handler) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.carts.RemoveLine(r.Context(), id.UserID, r.PathValue("productID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCart empties the cart. Clearing an empty cart returns 204 too.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.carts.Clear(r.Context(), id.UserID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toLineResponse(l cart.Line) cartLineResponse {
	return cartLineResponse{
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		Price:     l.PriceSnapshot.InexactFloat64(),
		AddedAt:   l.AddedAt,
	}
}
