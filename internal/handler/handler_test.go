package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamrhq/supplycart/internal/domain/auth"
	"github.com/tamrhq/supplycart/internal/domain/cart"
	"github.com/tamrhq/supplycart/internal/domain/order"
	"github.com/tamrhq/supplycart/internal/domain/product"
	"github.com/tamrhq/supplycart/internal/domain/settings"
	"github.com/tamrhq/supplycart/internal/domain/supplier"
	"github.com/tamrhq/supplycart/internal/events"
)

// --- In-memory repositories ---

type memCartRepo struct {
	lines map[string][]cart.Line
}

func (m *memCartRepo) Get(_ context.Context, userID string) (*cart.Cart, error) {
	return &cart.Cart{UserID: userID, Lines: append([]cart.Line(nil), m.lines[userID]...)}, nil
}

func (m *memCartRepo) AddLine(_ context.Context, userID string, line cart.Line) (*cart.Line, error) {
	for i, l := range m.lines[userID] {
		if l.ProductID == line.ProductID {
			m.lines[userID][i].Quantity += line.Quantity
			m.lines[userID][i].PriceSnapshot = line.PriceSnapshot
			stored := m.lines[userID][i]
			return &stored, nil
		}
	}
	m.lines[userID] = append(m.lines[userID], line)
	stored := line
	return &stored, nil
}

func (m *memCartRepo) RemoveLine(_ context.Context, userID, productID string) error {
	kept := m.lines[userID][:0]
	for _, l := range m.lines[userID] {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	m.lines[userID] = kept
	return nil
}

func (m *memCartRepo) Clear(_ context.Context, userID string) error {
	delete(m.lines, userID)
	return nil
}

type memProductRepo struct {
	byID map[string]product.Product
}

func (m *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *memProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		if p.Status == product.StatusPublished && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProductRepo) Upsert(_ context.Context, p *product.Product) error {
	m.byID[p.ID] = *p
	return nil
}

type memSupplierRepo struct {
	byID map[string]supplier.Supplier
}

func (m *memSupplierRepo) GetByID(_ context.Context, id string) (*supplier.Supplier, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, supplier.ErrNotFound
	}
	return &s, nil
}

func (m *memSupplierRepo) Upsert(_ context.Context, s *supplier.Supplier) error {
	m.byID[s.ID] = *s
	return nil
}

type memSettingsRepo struct {
	minimums map[string]decimal.Decimal
}

func (m *memSettingsRepo) GetDecimal(_ context.Context, supplierID string, _ settings.Key) (decimal.Decimal, bool, error) {
	v, ok := m.minimums[supplierID]
	return v, ok, nil
}

func (m *memSettingsRepo) SetDecimal(_ context.Context, supplierID string, _ settings.Key, v decimal.Decimal) error {
	m.minimums[supplierID] = v
	return nil
}

type memOrderRepo struct {
	carts      *memCartRepo
	ordersByID map[string]*order.Order
	itemsByID  map[string][]order.Item
	settled    []order.Settlement
}

func (m *memOrderRepo) Create(_ context.Context, ord *order.Order, _ *order.Detail, items []order.Item, _ *order.Payment) error {
	if len((&cart.Cart{Lines: m.carts.lines[ord.UserID]}).Qualifying()) == 0 {
		return order.ErrEmptyCart
	}
	delete(m.carts.lines, ord.UserID)
	m.ordersByID[ord.ID] = ord
	m.itemsByID[ord.ID] = items
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	ord, ok := m.ordersByID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return ord, nil
}

func (m *memOrderRepo) ItemsByOrder(_ context.Context, orderID string) ([]order.Item, error) {
	return m.itemsByID[orderID], nil
}

func (m *memOrderRepo) SettlePayment(_ context.Context, s order.Settlement) error {
	ord, ok := m.ordersByID[s.OrderID]
	if !ok {
		return order.ErrNotFound
	}
	if ord.Status != s.PrevStatus {
		return &order.InvalidTransitionError{From: ord.Status, To: s.OrderStatus}
	}
	ord.Status = s.OrderStatus
	m.settled = append(m.settled, s)
	return nil
}

type approveAll struct{}

func (approveAll) IsApprovedMember(context.Context, string) (bool, error) { return true, nil }

// --- Fixture ---

type serverFixture struct {
	mux      *http.ServeMux
	carts    *memCartRepo
	products *memProductRepo
	orders   *memOrderRepo
	settings *memSettingsRepo
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedProduct(id, supplierID, price string, stock int) product.Product {
	p := product.Product{
		ID:         id,
		SupplierID: supplierID,
		Name:       "Product " + id,
		BasePrice:  dec(price),
		StockQty:   stock,
		Status:     product.StatusPublished,
		Active:     true,
		UnitType:   "unit",
	}
	if err := p.Reprice(nil); err != nil {
		panic(err)
	}
	return p
}

func newServer(products ...product.Product) *serverFixture {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	carts := &memCartRepo{lines: make(map[string][]cart.Line)}
	prodRepo := &memProductRepo{byID: byID}
	supRepo := &memSupplierRepo{byID: map[string]supplier.Supplier{
		"s1": {ID: "s1", Name: "Al Noor Foods", Active: true},
	}}
	setRepo := &memSettingsRepo{minimums: make(map[string]decimal.Decimal)}
	orders := &memOrderRepo{
		carts:      carts,
		ordersByID: make(map[string]*order.Order),
		itemsByID:  make(map[string][]order.Item),
	}

	store := settings.NewStore(setRepo)
	cartSvc := cart.NewService(carts, prodRepo, supRepo, store)
	checkoutSvc := order.NewCheckoutService(carts, prodRepo, supRepo, store, orders, approveAll{}, events.Noop{})
	paymentSvc := order.NewPaymentService(orders, events.Noop{})
	reorderSvc := order.NewReorderService(orders, cartSvc)

	h := NewHandler(prodRepo, cartSvc, checkoutSvc, paymentSvc, reorderSvc)
	mux := http.NewServeMux()
	h.Routes(mux)

	return &serverFixture{mux: mux, carts: carts, products: prodRepo, orders: orders, settings: setRepo}
}

func (f *serverFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req = req.WithContext(context.WithValue(req.Context(), identityKey{}, &auth.Identity{
		UserID: "u1",
		Role:   auth.RoleBuyer,
	}))
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

// --- Tests ---

func TestAddCartLine(t *testing.T) {
	f := newServer(seedProduct("p1", "s1", "50.00", 10))

	w := f.do(t, http.MethodPost, "/api/cart", `{"product_id":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	var line cartLineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &line))
	assert.Equal(t, "p1", line.ProductID)
	assert.Equal(t, 2, line.Quantity)
	assert.InDelta(t, 50.00, line.Price, 0.001)
}

func TestAddCartLine_ValidationErrors(t *testing.T) {
	f := newServer(seedProduct("p1", "s1", "50.00", 10))

	w := f.do(t, http.MethodPost, "/api/cart", `{"quantity":2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/api/cart", `{"product_id":"p1","quantity":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/api/cart", `{"product_id":"missing","quantity":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAddCartLine_OutOfStockIsBusinessError(t *testing.T) {
	f := newServer(seedProduct("p1", "s1", "50.00", 0))

	w := f.do(t, http.MethodPost, "/api/cart", `{"product_id":"p1","quantity":1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "out_of_stock", resp.Details["reason"])
}

func TestGetCart_TotalsAndRequirements(t *testing.T) {
	f := newServer(seedProduct("p1", "s1", "50.00", 10))
	f.settings.minimums["s1"] = dec("120.00")
	f.do(t, http.MethodPost, "/api/cart", `{"product_id":"p1","quantity":2}`)

	w := f.do(t, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp cartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Lines, 1)
	assert.InDelta(t, 100.00, resp.Totals.Total, 0.001)
	assert.Equal(t, 1, resp.Totals.TotalProducts)

	require.Len(t, resp.SupplierRequirements, 1)
	sr := resp.SupplierRequirements[0]
	assert.Equal(t, "Al Noor Foods", sr.SupplierName)
	assert.InDelta(t, 20.00, sr.ResidualAmount, 0.001)
	assert.False(t, sr.Completed)
}

func TestRemoveAndClearAreIdempotent(t *testing.T) {
	f := newServer(seedProduct("p1", "s1", "50.00", 10))

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/cart/p1", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPut, "/api/cart/clear", "").Code)
}

func TestCheckout_CreatesOrder(t *testing.T) {
	f := newServer(seedProduct("p1", "s1", "50.00", 10))
	f.settings.minimums["s1"] = dec("100.00")
	f.do(t, http.MethodPost, "/api/cart", `{"product_id":"p1","quantity":2}`)

	w := f.do(t, http.MethodPost, "/api/cart/checkout",
		`{"shipping_address_id":"addr-1","payment_method":"card","shipping_method":"standard"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 100.00, resp.Total, 0.001)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "pending", resp.PaymentStatus)
	require.Len(t, resp.Items, 1)

	// Cart was consumed.
	var c cartResponse
	w = f.do(t, http.MethodGet, "/api/cart", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Empty(t, c.Lines)
}

func TestCheckout_EmptyCartIsBadRequest(t *testing.T) {
	f := newServer()

	w := f.do(t, http.MethodPost, "/api/cart/checkout",
		`{"shipping_address_id":"addr-1","payment_method":"card"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout_MinOrderDetails(t *testing.T) {
	f := newServer(seedProduct("p1", "s1", "50.00", 10))
	f.settings.minimums["s1"] = dec("100.00")
	f.do(t, http.MethodPost, "/api/cart", `{"product_id":"p1","quantity":1}`)

	w := f.do(t, http.MethodPost, "/api/cart/checkout",
		`{"shipping_address_id":"addr-1","payment_method":"card"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Al Noor Foods", resp.Details["supplier_name"])
	assert.InDelta(t, 100.00, resp.Details["min_order_amount"].(float64), 0.001)
}

func TestPaymentCallback_PaidSettlesOrder(t *testing.T) {
	f := newServer(seedProduct("p1", "s1", "50.00", 10))
	f.do(t, http.MethodPost, "/api/cart", `{"product_id":"p1","quantity":1}`)

	w := f.do(t, http.MethodPost, "/api/cart/checkout",
		`{"shipping_address_id":"addr-1","payment_method":"card"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = f.do(t, http.MethodPost, "/api/payments/callback",
		`{"order_id":"`+created.ID+`","status":"paid"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	require.Len(t, f.orders.settled, 1)
	assert.True(t, f.orders.settled[0].DecrementStock)

	// Replayed callback hits an already-paid order: invalid transition.
	w = f.do(t, http.MethodPost, "/api/payments/callback",
		`{"order_id":"`+created.ID+`","status":"paid"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReorder_PartialSuccessResponse(t *testing.T) {
	f := newServer(
		seedProduct("p1", "s1", "10.00", 10),
		seedProduct("p2", "s1", "20.00", 10),
	)
	f.orders.ordersByID["o1"] = &order.Order{ID: "o1", UserID: "u1", SupplierID: "s1", Status: order.StatusDelivered}
	f.orders.itemsByID["o1"] = []order.Item{
		{ProductID: "p1", Quantity: 2, Price: dec("10.00")},
		{ProductID: "p2", Quantity: 1, Price: dec("20.00")},
	}
	// p2 went out of stock since then.
	gone := f.products.byID["p2"]
	gone.StockQty = 0
	f.products.byID["p2"] = gone

	w := f.do(t, http.MethodPost, "/api/orders/o1/reorder", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp reorderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.AddedCount)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "p2", resp.Errors[0].ProductID)
	assert.Equal(t, "out_of_stock", resp.Errors[0].Reason)
}

func TestReorder_ForeignOrderIsForbidden(t *testing.T) {
	f := newServer()
	f.orders.ordersByID["o1"] = &order.Order{ID: "o1", UserID: "someone-else"}

	w := f.do(t, http.MethodPost, "/api/orders/o1/reorder", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProducts_CatalogEndpoints(t *testing.T) {
	f := newServer(seedProduct("p1", "s1", "50.00", 10))

	w := f.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []productResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.InDelta(t, 50.00, list[0].PriceAfterDiscount, 0.001)

	w = f.do(t, http.MethodGet, "/api/products/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	repo := &stubAPIKeys{hash: HashAPIKey("secret-key", []byte("pepper"))}
	protected := APIKeyAuth(repo, []byte("pepper"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		require.NotNil(t, id)
		assert.Equal(t, "u1", id.UserID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("api_key", "wrong-key")
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("api_key", "secret-key")
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

type stubAPIKeys struct {
	hash string
}

func (s *stubAPIKeys) FindByHash(_ context.Context, hash string) (*auth.Identity, error) {
	if hash != s.hash {
		return nil, auth.ErrKeyNotFound
	}
	return &auth.Identity{UserID: "u1", Role: auth.RoleBuyer}, nil
}
