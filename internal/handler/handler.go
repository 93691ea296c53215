// Package handler exposes the cart, checkout, order, and catalog operations
// as a JSON HTTP API and maps domain errors onto the HTTP error taxonomy.
package handler

import (
	"net/http"

	"github.com/tamrhq/supplycart/internal/domain/cart"
	"github.com/tamrhq/supplycart/internal/domain/order"
	"github.com/tamrhq/supplycart/internal/domain/product"
)

// Handler serves the API surface, delegating business logic to the domain
// services.
type Handler struct {
	products product.Repository
	carts    *cart.Service
	checkout *order.CheckoutService
	payments *order.PaymentService
	reorders *order.ReorderService
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	carts *cart.Service,
	checkout *order.CheckoutService,
	payments *order.PaymentService,
	reorders *order.ReorderService,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		checkout: checkout,
		payments: payments,
		reorders: reorders,
	}
}

// Routes registers every API endpoint on the mux. All routes assume the
// security middleware has already resolved the caller identity.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart", h.AddCartLine)
	mux.HandleFunc("DELETE /api/cart/{productID}", h.RemoveCartLine)
	mux.HandleFunc("PUT /api/cart/clear", h.ClearCart)
	mux.HandleFunc("POST /api/cart/checkout", h.Checkout)
	mux.HandleFunc("POST /api/orders/{orderID}/reorder", h.Reorder)
	mux.HandleFunc("POST /api/payments/callback", h.PaymentCallback)
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{productID}", h.GetProduct)
}
