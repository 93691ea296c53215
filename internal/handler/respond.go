package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tamrhq/supplycart/internal/domain/cart"
	"github.com/tamrhq/supplycart/internal/domain/order"
	"github.com/tamrhq/supplycart/internal/domain/product"
)

// errorResponse is the JSON error body. Details carries structured fields
// for errors that name a supplier or product.
type errorResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps a domain error onto the HTTP taxonomy: 422 for
// malformed input, 400 for business-rule rejections, 403/404 for
// authorization and lookup failures, 500 otherwise.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ipErr *cart.InvalidProductError
		moErr *order.MinOrderError
		trErr *order.InvalidTransitionError
	)
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrUnknownPaymentResult):
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error())

	case errors.As(err, &ipErr):
		// An unknown product ID is malformed input; a known product that
		// fails the stock policy is a business rejection.
		status := http.StatusBadRequest
		if ipErr.Reason == cart.ReasonNotFound {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorResponse{
			Code:    status,
			Message: ipErr.Error(),
			Details: map[string]any{
				"product_id": ipErr.ProductID,
				"reason":     string(ipErr.Reason),
			},
		})

	case errors.As(err, &moErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: moErr.Error(),
			Details: map[string]any{
				"supplier_id":      moErr.SupplierID,
				"supplier_name":    moErr.SupplierName,
				"min_order_amount": moErr.MinOrderAmount.InexactFloat64(),
				"current_total":    moErr.CurrentTotal.InexactFloat64(),
			},
		})

	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, cart.ErrSupplierConflict),
		errors.Is(err, order.ErrOrganizationNotAllowed),
		errors.As(err, &trErr):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, order.ErrNotOwner):
		writeErrorMessage(w, http.StatusForbidden, err.Error())

	case errors.Is(err, order.ErrNotFound), errors.Is(err, product.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())

	default:
		zctx.From(r.Context()).Error("internal error", zap.Error(err))
		writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
