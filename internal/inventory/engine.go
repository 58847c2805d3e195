package inventory

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"barcaixa/internal/domain"
)

// ErrAmbiguousAnchor is returned when more than one product matches the
// anchor marker. The engine never tie-breaks; fix the catalog or the marker.
var ErrAmbiguousAnchor = errors.New("multiple products match the anchor marker")

// Config parameterizes the inference. MarkupMultiplier is the assumed
// sell-price margin over unit cost; LowStockSoldRatio is the sold/purchased
// fraction above which an ordinary product is flagged Low.
type Config struct {
	AnchorMarker      string
	MarkupMultiplier  decimal.Decimal
	LowStockSoldRatio float64
}

// Engine derives per-product inventory rows for one event scope.
//
// Ordinary products use the physical count when one exists and otherwise
// assume untouched stock. The single anchor product is inferred residually:
// whatever revenue the ordinary products cannot account for is attributed
// to it and converted back into units. Total estimated revenue therefore
// reconciles with recorded revenue by construction, with all estimation
// error pushed onto the anchor row.
//
// Status policy: sold-ratio thresholding (Critical at zero stock, Low above
// the configured ratio). The time-based fields AverageDailySales and
// DaysRemaining are informational and never drive the status.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.MarkupMultiplier.Sign() <= 0 {
		cfg.MarkupMultiplier = decimal.NewFromInt(2)
	}
	if cfg.LowStockSoldRatio <= 0 || cfg.LowStockSoldRatio >= 1 {
		cfg.LowStockSoldRatio = 0.8
	}
	return &Engine{cfg: cfg}
}

// Evaluate is pure: it reads the scoped slices and computes rows, anchor
// first. It never mutates its inputs and never caches.
func (e *Engine) Evaluate(
	products []domain.Product,
	purchases []domain.Purchase,
	checks []domain.InventoryCheck,
	totalRevenue decimal.Decimal,
	now time.Time,
) ([]domain.ProductStatus, error) {
	anchor, others, err := e.splitAnchor(products)
	if err != nil {
		return nil, err
	}

	checkByProduct := make(map[string]domain.InventoryCheck, len(checks))
	for _, c := range checks {
		checkByProduct[c.ProductID] = c
	}

	rows := make([]domain.ProductStatus, 0, len(products))
	othersRevenue := decimal.Zero

	for _, product := range others {
		row := e.ordinaryRow(product, purchases, checkByProduct, now)
		othersRevenue = othersRevenue.Add(row.EstimatedRevenue)
		rows = append(rows, row)
	}

	if anchor != nil {
		row := e.anchorRow(*anchor, purchases, totalRevenue, othersRevenue)
		rows = append([]domain.ProductStatus{row}, rows...)
	}

	return rows, nil
}

func (e *Engine) splitAnchor(products []domain.Product) (*domain.Product, []domain.Product, error) {
	marker := strings.ToUpper(strings.TrimSpace(e.cfg.AnchorMarker))
	if marker == "" {
		return nil, products, nil
	}

	var anchor *domain.Product
	others := make([]domain.Product, 0, len(products))
	for i := range products {
		if strings.Contains(strings.ToUpper(products[i].Name), marker) {
			if anchor != nil {
				return nil, nil, ErrAmbiguousAnchor
			}
			anchor = &products[i]
			continue
		}
		others = append(others, products[i])
	}
	return anchor, others, nil
}

func (e *Engine) ordinaryRow(
	product domain.Product,
	purchases []domain.Purchase,
	checkByProduct map[string]domain.InventoryCheck,
	now time.Time,
) domain.ProductStatus {
	purchasedUnits, purchasedCost, firstPurchase := totalPurchased(product, purchases)

	currentStock := purchasedUnits
	if check, ok := checkByProduct[product.ID]; ok {
		currentStock = check.CurrentStock
	}

	soldUnits := purchasedUnits - currentStock
	if soldUnits < 0 {
		soldUnits = 0
	}

	sellPrice := product.DeriveUnitCost().Mul(e.cfg.MarkupMultiplier)
	revenue := decimal.NewFromInt(soldUnits).Mul(sellPrice)

	avgDaily, daysRemaining := salesPace(soldUnits, currentStock, firstPurchase, now)

	status := domain.StockGood
	switch {
	case currentStock == 0:
		status = domain.StockCritical
	case purchasedUnits > 0 && float64(soldUnits)/float64(purchasedUnits) > e.cfg.LowStockSoldRatio:
		status = domain.StockLow
	}

	return domain.ProductStatus{
		Product:             product,
		TotalPurchasedUnits: purchasedUnits,
		TotalPurchasedCost:  purchasedCost,
		CurrentStock:        currentStock,
		EstimatedSalesUnits: soldUnits,
		EstimatedRevenue:    revenue,
		AverageDailySales:   avgDaily,
		DaysRemaining:       daysRemaining,
		Status:              status,
	}
}

func (e *Engine) anchorRow(
	product domain.Product,
	purchases []domain.Purchase,
	totalRevenue decimal.Decimal,
	othersRevenue decimal.Decimal,
) domain.ProductStatus {
	purchasedUnits, purchasedCost, _ := totalPurchased(product, purchases)

	sellPrice := product.DeriveUnitCost().Mul(e.cfg.MarkupMultiplier)

	// Residual target: whatever recorded revenue the other products do not
	// explain. Clamped at zero before the division so the unit count stays
	// non-negative even when the others overshoot.
	target := totalRevenue.Sub(othersRevenue)
	if target.Sign() < 0 {
		target = decimal.Zero
	}

	var soldUnits int64
	if sellPrice.Sign() > 0 {
		soldUnits = target.Div(sellPrice).Floor().IntPart()
	}

	// May go negative: that means the ordinary estimates overstate their
	// share of revenue. Surfaced as-is, never clamped.
	currentStock := purchasedUnits - soldUnits

	status := domain.StockGood
	if currentStock <= 0 {
		status = domain.StockCritical
	}

	return domain.ProductStatus{
		Product:             product,
		TotalPurchasedUnits: purchasedUnits,
		TotalPurchasedCost:  purchasedCost,
		CurrentStock:        currentStock,
		EstimatedSalesUnits: soldUnits,
		EstimatedRevenue:    decimal.NewFromInt(soldUnits).Mul(sellPrice),
		Status:              status,
		Inferred:            true,
	}
}

func totalPurchased(product domain.Product, purchases []domain.Purchase) (int64, decimal.Decimal, time.Time) {
	var units int64
	cost := decimal.Zero
	var first time.Time
	for _, p := range purchases {
		if p.ProductID != product.ID {
			continue
		}
		units += int64(p.QuantityPackages) * int64(product.UnitsPerPackage)
		cost = cost.Add(p.TotalCost)
		if t, err := time.Parse("2006-01-02", p.Date); err == nil {
			if first.IsZero() || t.Before(first) {
				first = t
			}
		}
	}
	return units, cost, first
}

// salesPace derives the informational daily-rate figures from the days
// elapsed since the product's first purchase in scope.
func salesPace(soldUnits int64, currentStock int64, firstPurchase time.Time, now time.Time) (decimal.Decimal, decimal.Decimal) {
	if firstPurchase.IsZero() || soldUnits <= 0 {
		return decimal.Zero, decimal.Zero
	}
	days := int64(now.Sub(firstPurchase).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	avg := decimal.NewFromInt(soldUnits).Div(decimal.NewFromInt(days)).Round(2)
	if avg.Sign() <= 0 {
		return decimal.Zero, decimal.Zero
	}
	remaining := decimal.NewFromInt(currentStock).Div(avg).Round(1)
	return avg, remaining
}
