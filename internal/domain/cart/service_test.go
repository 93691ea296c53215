package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamrhq/supplycart/internal/domain/product"
	"github.com/tamrhq/supplycart/internal/domain/settings"
	"github.com/tamrhq/supplycart/internal/domain/supplier"
)

// --- Mock implementations ---

type mockCartRepo struct {
	mu    sync.Mutex
	lines map[string][]Line // userID -> lines
	onGet func()            // called before each Get, for interleaving tests
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{lines: make(map[string][]Line)}
}

func (m *mockCartRepo) Get(_ context.Context, userID string) (*Cart, error) {
	if m.onGet != nil {
		m.onGet()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &Cart{UserID: userID, Lines: append([]Line(nil), m.lines[userID]...)}, nil
}

func (m *mockCartRepo) AddLine(_ context.Context, userID string, line Line) (*Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

// seedLine places a raw line directly, bypassing the service guards.
func (m *mockCartRepo) seedLine(userID string, line Line) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.lines[userID] {
		if l.ProductID == line.ProductID {
			m.lines[userID][i] = line
			return
		}
	}
	m.lines[userID] = append(m.lines[userID], line)
}

func (m *mockCartRepo) RemoveLine(_ context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.lines[userID][:0]
	for _, l := range m.lines[userID] {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	m.lines[userID] = kept
	return nil
}

func (m *mockCartRepo) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, userID)
	return nil
}

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) Upsert(_ context.Context, p *product.Product) error {
	m.byID[p.ID] = *p
	return nil
}

type mockSupplierRepo struct {
	byID map[string]supplier.Supplier
}

func (m *mockSupplierRepo) GetByID(_ context.Context, id string) (*supplier.Supplier, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, supplier.ErrNotFound
	}
	return &s, nil
}

func (m *mockSupplierRepo) Upsert(_ context.Context, s *supplier.Supplier) error {
	m.byID[s.ID] = *s
	return nil
}

type mockSettingsRepo struct {
	minimums map[string]decimal.Decimal
}

func (m *mockSettingsRepo) GetDecimal(_ context.Context, supplierID string, _ settings.Key) (decimal.Decimal, bool, error) {
	v, ok := m.minimums[supplierID]
	return v, ok, nil
}

func (m *mockSettingsRepo) SetDecimal(_ context.Context, supplierID string, _ settings.Key, v decimal.Decimal) error {
	m.minimums[supplierID] = v
	return nil
}

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testProduct(id, supplierID, price string, stock int) product.Product {
	p := product.Product{
		ID:           id,
		SupplierID:   supplierID,
		Name:         "Product " + id,
		BasePrice:    dec(price),
		DiscountRate: decimal.Zero,
		StockQty:     stock,
		Status:       product.StatusPublished,
		Active:       true,
		UnitType:     "unit",
	}
	if err := p.Reprice(nil); err != nil {
		panic(err)
	}
	return p
}

type fixture struct {
	svc      *Service
	carts    *mockCartRepo
	products *mockProductRepo
	settings *mockSettingsRepo
}

func newFixture(products ...product.Product) *fixture {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	carts := newMockCartRepo()
	prodRepo := &mockProductRepo{byID: byID}
	supRepo := &mockSupplierRepo{byID: map[string]supplier.Supplier{
		"s1": {ID: "s1", Name: "Al Noor Foods", Active: true},
		"s2": {ID: "s2", Name: "Wadi Fresh", Active: true},
	}}
	setRepo := &mockSettingsRepo{minimums: make(map[string]decimal.Decimal)}
	return &fixture{
		svc:      NewService(carts, prodRepo, supRepo, settings.NewStore(setRepo)),
		carts:    carts,
		products: prodRepo,
		settings: setRepo,
	}
}

// --- Tests ---

func TestAddLine_InsertsAndSnapshotsPrice(t *testing.T) {
	f := newFixture(testProduct("p1", "s1", "50.00", 10))

	line, err := f.svc.AddLine(context.Background(), "u1", "p1", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, line.Quantity)
	assert.True(t, dec("50.00").Equal(line.PriceSnapshot))
}

func TestAddLine_RepeatAddSumsQuantity(t *testing.T) {
	f := newFixture(testProduct("p1", "s1", "50.00", 10))

	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 2)
	require.NoError(t, err)
	line, err := f.svc.AddLine(context.Background(), "u1", "p1", 3)
	require.NoError(t, err)

	assert.Equal(t, 5, line.Quantity)

	c, err := f.svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 5, c.Lines[0].Quantity)
}

func TestAddLine_RejectsQuantityBelowOne(t *testing.T) {
	f := newFixture(testProduct("p1", "s1", "50.00", 10))

	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddLine_InvalidProductReasons(t *testing.T) {
	draft := testProduct("draft", "s1", "10.00", 5)
	draft.Status = product.StatusDraft
	inactive := testProduct("inactive", "s1", "10.00", 5)
	inactive.Active = false
	empty := testProduct("empty", "s1", "10.00", 0)
	low := testProduct("low", "s1", "10.00", 2)

	f := newFixture(draft, inactive, empty, low)

	cases := []struct {
		productID string
		qty       int
		reason    FailReason
	}{
		{"missing", 1, ReasonNotFound},
		{"draft", 1, ReasonUnpublished},
		{"inactive", 1, ReasonInactive},
		{"empty", 1, ReasonOutOfStock},
		{"low", 3, ReasonInsufficientStock},
	}
	for _, tc := range cases {
		_, err := f.svc.AddLine(context.Background(), "u1", tc.productID, tc.qty)

		var ipErr *InvalidProductError
		require.ErrorAs(t, err, &ipErr, "product %s", tc.productID)
		assert.Equal(t, tc.reason, ipErr.Reason, "product %s", tc.productID)
	}
}

func TestAddLine_SummedQuantityCheckedAgainstStock(t *testing.T) {
	f := newFixture(testProduct("p1", "s1", "10.00", 5))

	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 3)
	require.NoError(t, err)

	_, err = f.svc.AddLine(context.Background(), "u1", "p1", 3)
	var ipErr *InvalidProductError
	require.ErrorAs(t, err, &ipErr)
	assert.Equal(t, ReasonInsufficientStock, ipErr.Reason)
}

func TestAddLine_ConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	f := newFixture(testProduct("p1", "s1", "50.00", 10))

	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	// Hold both calls at the cart read so each observes quantity 1 before
	// either write happens.
	var gate sync.WaitGroup
	gate.Add(2)
	f.carts.onGet = func() {
		gate.Done()
		gate.Wait()
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.svc.AddLine(context.Background(), "u1", "p1", 1)
			errs <- err
		}()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	f.carts.onGet = nil

	c, err := f.svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
}

func TestAddLine_SupplierConflictLeavesCartUnchanged(t *testing.T) {
	f := newFixture(
		testProduct("p1", "s1", "50.00", 10),
		testProduct("p2", "s2", "20.00", 10),
	)

	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	_, err = f.svc.AddLine(context.Background(), "u1", "p2", 1)
	require.ErrorIs(t, err, ErrSupplierConflict)

	c, err := f.svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "p1", c.Lines[0].ProductID)
}

func TestRemoveLineAndClear_Idempotent(t *testing.T) {
	f := newFixture(testProduct("p1", "s1", "50.00", 10))

	require.NoError(t, f.svc.RemoveLine(context.Background(), "u1", "absent"))
	require.NoError(t, f.svc.Clear(context.Background(), "u1"))

	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveLine(context.Background(), "u1", "p1"))
	require.NoError(t, f.svc.RemoveLine(context.Background(), "u1", "p1"))

	c, err := f.svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestTotals_AdditiveAndOrderIndependent(t *testing.T) {
	products := []product.Product{
		testProduct("p1", "s1", "12.34", 50),
		testProduct("p2", "s1", "0.99", 50),
		testProduct("p3", "s1", "7.50", 50),
	}

	// Insert in two different orders; totals must match.
	var results []*Totals
	for _, order := range [][]string{{"p1", "p2", "p3"}, {"p3", "p1", "p2"}} {
		f := newFixture(products...)
		for _, id := range order {
			_, err := f.svc.AddLine(context.Background(), "u1", id, 2)
			require.NoError(t, err)
		}
		tot, err := f.svc.Totals(context.Background(), "u1")
		require.NoError(t, err)
		results = append(results, tot)
	}

	// 2*(12.34 + 0.99 + 7.50) = 41.66
	assert.True(t, dec("41.66").Equal(results[0].Total))
	assert.True(t, results[0].Total.Equal(results[1].Total))
	assert.Equal(t, 3, results[0].TotalProducts)
	assert.Equal(t, 3, results[1].TotalProducts)
}

func TestTotals_DiscountAndTaxAggregates(t *testing.T) {
	p := testProduct("p1", "s1", "100.00", 10)
	p.DiscountRate = dec("0.10")
	require.NoError(t, p.Reprice(nil))
	// priceAfterDiscount = 90.00, no taxes configured in this fixture.

	f := newFixture(p)
	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 3)
	require.NoError(t, err)

	tot, err := f.svc.Totals(context.Background(), "u1")
	require.NoError(t, err)

	assert.True(t, dec("270.00").Equal(tot.Total))
	assert.True(t, dec("30.00").Equal(tot.TotalDiscount), "3 * (100 - 90)")
	assert.True(t, dec("270.00").Equal(tot.TotalAfterTaxes))
	assert.Equal(t, 1, tot.TotalProducts)
}

func TestTotals_ZeroQuantityLineIgnored(t *testing.T) {
	f := newFixture(testProduct("p1", "s1", "50.00", 10))

	// A zero-quantity line is tolerated in storage but must not contribute.
	f.carts.seedLine("u1", Line{ProductID: "p1", Quantity: 0, PriceSnapshot: dec("50.00")})

	tot, err := f.svc.Totals(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(tot.Total))
	assert.Equal(t, 0, tot.TotalProducts)
}

func TestTotals_UsesLivePriceNotSnapshot(t *testing.T) {
	f := newFixture(testProduct("p1", "s1", "50.00", 10))

	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 2)
	require.NoError(t, err)

	// Price changes after the line was added.
	updated := testProduct("p1", "s1", "60.00", 10)
	require.NoError(t, f.products.Upsert(context.Background(), &updated))

	tot, err := f.svc.Totals(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, dec("120.00").Equal(tot.Total))
}

func TestTotals_SkipsVanishedAndInactiveProducts(t *testing.T) {
	inactive := testProduct("gone", "s1", "10.00", 5)
	inactive.Active = false

	f := newFixture(testProduct("p1", "s1", "50.00", 10), inactive)

	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	// Line whose product later became inactive.
	f.carts.seedLine("u1", Line{ProductID: "gone", Quantity: 2, PriceSnapshot: dec("10.00")})

	tot, err := f.svc.Totals(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, dec("50.00").Equal(tot.Total))
	assert.Equal(t, 1, tot.TotalProducts)
}

func TestSupplierRequirements_Boundaries(t *testing.T) {
	f := newFixture(testProduct("p1", "s1", "50.00", 10))
	f.settings.minimums["s1"] = dec("100.00")

	// 1 x 50.00 -> under the minimum.
	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	reqs, err := f.svc.SupplierRequirements(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Al Noor Foods", reqs[0].SupplierName)
	assert.False(t, reqs[0].Completed)
	assert.True(t, dec("50.00").Equal(reqs[0].ResidualAmount))

	// 2 x 50.00 == minimum -> completed, residual zero.
	_, err = f.svc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	reqs, err = f.svc.SupplierRequirements(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Completed)
	assert.True(t, decimal.Zero.Equal(reqs[0].ResidualAmount))
}

func TestSupplierRequirements_DefaultMinimumIsZero(t *testing.T) {
	f := newFixture(testProduct("p1", "s1", "5.00", 10))

	_, err := f.svc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	reqs, err := f.svc.SupplierRequirements(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Completed)
	assert.True(t, decimal.Zero.Equal(reqs[0].MinOrderAmount))
}
