package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"barcaixa/internal/domain"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func testEngine() *Engine {
	return NewEngine(Config{AnchorMarker: "GELINHO"})
}

func product(id, name string, packagePrice string, unitsPerPackage int) domain.Product {
	price, _ := decimal.NewFromString(packagePrice)
	p := domain.Product{
		ID:              id,
		Name:            name,
		Category:        "Bebidas",
		MeasureUnit:     domain.UnitBox,
		PackagePrice:    price,
		UnitsPerPackage: unitsPerPackage,
	}
	p.UnitCost = p.DeriveUnitCost()
	return p
}

func purchase(productID string, qty int, totalCost string) domain.Purchase {
	cost, _ := decimal.NewFromString(totalCost)
	return domain.Purchase{
		ID:               "pur-" + productID,
		EventID:          "ev1",
		Date:             "2025-06-01",
		ProductID:        productID,
		QuantityPackages: qty,
		TotalCost:        cost,
	}
}

func TestAnchorStockInferredFromResidualRevenue(t *testing.T) {
	// Anchor: 240 units purchased, unit cost 10, sell price 20.
	// One ordinary product accounts for 300 of the 800 recorded revenue,
	// leaving a 500 residual: floor(500/20) = 25 sold, 215 left.
	anchor := product("p1", "GELINHO Morango", "100", 10)
	beer := product("p2", "Cerveja Lata", "60", 12) // unit cost 5, sell 10

	purchases := []domain.Purchase{
		purchase("p1", 24, "2400"),
		purchase("p2", 10, "600"),
	}
	// Beer counted at 90 of 120: 30 sold at 10 = 300 revenue.
	checks := []domain.InventoryCheck{
		{ProductID: "p2", EventID: "ev1", CurrentStock: 90},
	}

	rows, err := testEngine().Evaluate(
		[]domain.Product{anchor, beer}, purchases, checks, dec(t, "800"), time.Now())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	got := rows[0]
	if !got.Inferred || got.Product.ID != "p1" {
		t.Fatalf("expected inferred anchor row first, got %+v", got)
	}
	if got.TotalPurchasedUnits != 240 {
		t.Fatalf("anchor purchased units = %d, want 240", got.TotalPurchasedUnits)
	}
	if got.EstimatedSalesUnits != 25 {
		t.Fatalf("anchor sold units = %d, want 25", got.EstimatedSalesUnits)
	}
	if got.CurrentStock != 215 {
		t.Fatalf("anchor stock = %d, want 215", got.CurrentStock)
	}
	if !got.EstimatedRevenue.Equal(dec(t, "500")) {
		t.Fatalf("anchor revenue = %s, want 500", got.EstimatedRevenue)
	}

	beerRow := rows[1]
	if beerRow.EstimatedSalesUnits != 30 || !beerRow.EstimatedRevenue.Equal(dec(t, "300")) {
		t.Fatalf("beer row sold=%d revenue=%s, want 30 / 300", beerRow.EstimatedSalesUnits, beerRow.EstimatedRevenue)
	}
}

func TestAnchorStockMayGoNegative(t *testing.T) {
	anchor := product("p1", "Gelinho", "100", 10) // sell price 20
	purchases := []domain.Purchase{purchase("p1", 1, "100")}

	rows, err := testEngine().Evaluate(
		[]domain.Product{anchor}, purchases, nil, dec(t, "1000"), time.Now())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	got := rows[0]
	if got.EstimatedSalesUnits != 50 {
		t.Fatalf("sold units = %d, want 50", got.EstimatedSalesUnits)
	}
	if got.CurrentStock != -40 {
		t.Fatalf("stock = %d, want -40 (never clamped)", got.CurrentStock)
	}
	if got.Status != domain.StockCritical {
		t.Fatalf("status = %s, want Critical", got.Status)
	}
}

func TestAnchorTargetClampedAtZero(t *testing.T) {
	anchor := product("p1", "GELINHO", "100", 10)
	beer := product("p2", "Cerveja", "60", 12)

	purchases := []domain.Purchase{
		purchase("p1", 2, "200"),
		purchase("p2", 10, "600"),
	}
	// Beer alone claims 1200 revenue against 500 recorded.
	checks := []domain.InventoryCheck{
		{ProductID: "p2", EventID: "ev1", CurrentStock: 0},
	}

	rows, err := testEngine().Evaluate(
		[]domain.Product{anchor, beer}, purchases, checks, dec(t, "500"), time.Now())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	got := rows[0]
	if got.EstimatedSalesUnits != 0 {
		t.Fatalf("anchor sold units = %d, want 0 when others overshoot", got.EstimatedSalesUnits)
	}
	if got.CurrentStock != 20 {
		t.Fatalf("anchor stock = %d, want 20", got.CurrentStock)
	}
}

func TestAmbiguousAnchorRejected(t *testing.T) {
	products := []domain.Product{
		product("p1", "Gelinho Uva", "100", 10),
		product("p2", "GELINHO Limao", "100", 10),
	}
	_, err := testEngine().Evaluate(products, nil, nil, decimal.Zero, time.Now())
	if !errors.Is(err, ErrAmbiguousAnchor) {
		t.Fatalf("expected ErrAmbiguousAnchor, got %v", err)
	}
}

func TestEmptyMarkerTreatsAllAsOrdinary(t *testing.T) {
	engine := NewEngine(Config{})
	rows, err := engine.Evaluate(
		[]domain.Product{product("p1", "Gelinho", "100", 10)},
		[]domain.Purchase{purchase("p1", 1, "100")},
		nil, dec(t, "999"), time.Now())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if rows[0].Inferred {
		t.Fatalf("no row should be inferred without a marker")
	}
}

func TestUncountedOrdinaryProductAssumesFullStock(t *testing.T) {
	beer := product("p2", "Cerveja", "60", 12)
	purchases := []domain.Purchase{purchase("p2", 10, "600")}

	rows, err := testEngine().Evaluate(
		[]domain.Product{beer}, purchases, nil, decimal.Zero, time.Now())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	got := rows[0]
	if got.CurrentStock != 120 || got.EstimatedSalesUnits != 0 {
		t.Fatalf("uncounted product stock=%d sold=%d, want 120 / 0", got.CurrentStock, got.EstimatedSalesUnits)
	}
	if !got.EstimatedRevenue.IsZero() {
		t.Fatalf("uncounted product revenue = %s, want 0", got.EstimatedRevenue)
	}
}

func TestCountAbovePurchasedClampsSoldAtZero(t *testing.T) {
	beer := product("p2", "Cerveja", "60", 12)
	purchases := []domain.Purchase{purchase("p2", 1, "60")}
	checks := []domain.InventoryCheck{
		{ProductID: "p2", EventID: "ev1", CurrentStock: 50},
	}

	rows, err := testEngine().Evaluate(
		[]domain.Product{beer}, purchases, checks, decimal.Zero, time.Now())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if rows[0].EstimatedSalesUnits != 0 {
		t.Fatalf("sold units = %d, want 0 when count exceeds purchased", rows[0].EstimatedSalesUnits)
	}
}

func TestStatusThresholds(t *testing.T) {
	beer := product("p2", "Cerveja", "60", 12)
	purchases := []domain.Purchase{purchase("p2", 10, "600")}

	cases := []struct {
		name  string
		stock int64
		want  string
	}{
		{"zero stock is critical", 0, domain.StockCritical},
		{"sold ratio above threshold is low", 20, domain.StockLow}, // 100/120 sold
		{"plenty left is good", 100, domain.StockGood},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checks := []domain.InventoryCheck{
				{ProductID: "p2", EventID: "ev1", CurrentStock: tc.stock},
			}
			rows, err := testEngine().Evaluate(
				[]domain.Product{beer}, purchases, checks, decimal.Zero, time.Now())
			if err != nil {
				t.Fatalf("evaluate failed: %v", err)
			}
			if rows[0].Status != tc.want {
				t.Fatalf("status = %s, want %s", rows[0].Status, tc.want)
			}
		})
	}
}

func TestZeroSellPriceAnchorSellsNothing(t *testing.T) {
	anchor := product("p1", "GELINHO", "0", 10)
	purchases := []domain.Purchase{purchase("p1", 2, "0")}

	rows, err := testEngine().Evaluate(
		[]domain.Product{anchor}, purchases, nil, dec(t, "500"), time.Now())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if rows[0].EstimatedSalesUnits != 0 || rows[0].CurrentStock != 20 {
		t.Fatalf("zero-price anchor sold=%d stock=%d, want 0 / 20", rows[0].EstimatedSalesUnits, rows[0].CurrentStock)
	}
}
