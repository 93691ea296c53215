package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tamrhq/supplycart/internal/domain/order"
)

type checkoutRequest struct {
	ShippingAddressID string `json:"shipping_address_id"`
	PaymentMethod     string `json:"payment_method"`
	ShippingMethod    string `json:"shipping_method"`
	OrderType         string `json:"order_type"`
	Notes             string `json:"notes"`
}

type orderItemResponse struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	SupplierID    string              `json:"supplier_id"`
	Status        string              `json:"status"`
	OrderType     string              `json:"order_type"`
	Total         float64             `json:"total"`
	TotalDiscount float64             `json:"total_discount"`
	TotalProducts int                 `json:"total_products"`
	PaymentStatus string              `json:"payment_status"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Checkout converts the caller's cart into an order with a pending payment.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.ShippingAddressID == "" {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "shipping_address_id is required")
		return
	}
	if req.PaymentMethod == "" {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "payment_method is required")
		return
	}

	orderType := order.TypeIndividual
	switch req.OrderType {
	case "", string(order.TypeIndividual):
	case string(order.TypeOrganization):
		orderType = order.TypeOrganization
	default:
		writeErrorMessage(w, http.StatusUnprocessableEntity, "order_type must be individual or organization")
		return
	}

	result, err := h.checkout.Checkout(r.Context(), order.CheckoutRequest{
		UserID:            id.UserID,
		ShippingAddressID: req.ShippingAddressID,
		PaymentMethod:     req.PaymentMethod,
		ShippingMethod:    req.ShippingMethod,
		OrderType:         orderType,
		Notes:             req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	items := make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		items[i] = orderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price.InexactFloat64(),
		}
	}

	writeJSON(w, http.StatusCreated, orderResponse{
		ID:            result.Order.ID,
		SupplierID:    result.Order.SupplierID,
		Status:        string(result.Order.Status),
		OrderType:     string(result.Order.Type),
		Total:         result.Order.Total.InexactFloat64(),
		TotalDiscount: result.Order.TotalDiscount.InexactFloat64(),
		TotalProducts: result.Order.TotalProducts,
		PaymentStatus: string(result.Detail.PaymentStatus),
		Items:         items,
		CreatedAt:     result.Order.CreatedAt,
	})
}

type reorderResponse struct {
	AddedCount        int                    `json:"added_count"`
	SucceededProducts []cartLineResponse     `json:"succeeded_products"`
	Errors            []reorderErrorResponse `json:"errors"`
}

type reorderErrorResponse struct {
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

// Reorder re-adds a historical order's lines to the cart, reporting per-line
// outcomes without failing the whole request.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.reorders.Reorder(r.Context(), id.UserID, r.PathValue("orderID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := reorderResponse{
		AddedCount:        result.AddedCount,
		SucceededProducts: make([]cartLineResponse, 0, len(result.Succeeded)),
		Errors:            make([]reorderErrorResponse, 0, len(result.Errors)),
	}
	for _, l := range result.Succeeded {
		resp.SucceededProducts = append(resp.SucceededProducts, toLineResponse(l))
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, reorderErrorResponse{
			ProductID: e.ProductID,
			Reason:    string(e.Reason),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type paymentCallbackRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// PaymentCallback applies the gateway's payment result to the order. The
// gateway retries on non-2xx, so settled callbacks must answer 204 exactly
// once per transition.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req paymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.OrderID == "" {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "order_id is required")
		return
	}

	err := h.payments.HandleCallback(r.Context(), req.OrderID, order.PaymentResult(req.Status))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
