package handler

import (
	"net/http"

	"github.com/tamrhq/supplycart/internal/domain/product"
)

type productResponse struct {
	ID                  string  `json:"id"`
	SupplierID          string  `json:"supplier_id"`
	Name                string  `json:"name"`
	Description         string  `json:"description,omitempty"`
	BasePrice           float64 `json:"base_price"`
	PriceBeforeDiscount float64 `json:"price_before_discount"`
	TotalDiscount       float64 `json:"total_discount"`
	PriceAfterDiscount  float64 `json:"price_after_discount"`
	TotalTaxes          float64 `json:"total_taxes"`
	PriceAfterTaxes     float64 `json:"price_after_taxes"`
	StockQty            int     `json:"stock_qty"`
	StockTier           string  `json:"stock_tier"`
	UnitType            string  `json:"unit_type"`
}

// ListProducts returns the published, active catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("productID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:                  p.ID,
		SupplierID:          p.SupplierID,
		Name:                p.Name,
		Description:         p.Description,
		BasePrice:           p.BasePrice.InexactFloat64(),
		PriceBeforeDiscount: p.Prices.PriceBeforeDiscount.InexactFloat64(),
		TotalDiscount:       p.Prices.TotalDiscount.InexactFloat64(),
		PriceAfterDiscount:  p.Prices.PriceAfterDiscount.InexactFloat64(),
		TotalTaxes:          p.Prices.TotalTaxes.InexactFloat64(),
		PriceAfterTaxes:     p.Prices.PriceAfterTaxes.InexactFloat64(),
		StockQty:            p.StockQty,
		StockTier:           string(p.Tier()),
		UnitType:            p.UnitType,
	}
}
