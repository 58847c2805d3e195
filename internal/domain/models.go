package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MeasureUnit is the closed set of package measurement units a product can
// be bought in. The values match what suppliers print on invoices.
type MeasureUnit string

const (
	UnitBox      MeasureUnit = "Cx"
	UnitPackage  MeasureUnit = "Pct"
	UnitBundle   MeasureUnit = "Fardo"
	UnitKilogram MeasureUnit = "Kg"
	UnitPiece    MeasureUnit = "Un"
)

func (u MeasureUnit) Valid() bool {
	switch u {
	case UnitBox, UnitPackage, UnitBundle, UnitKilogram, UnitPiece:
		return true
	}
	return false
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	EventStatusActive   = "active"
	EventStatusArchived = "archived"
)

type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	MeasureUnit     MeasureUnit     `json:"measure_unit"`
	PackagePrice    decimal.Decimal `json:"package_price"`
	UnitsPerPackage int             `json:"units_per_package"`
	Supplier        string          `json:"supplier"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
}

// DeriveUnitCost recomputes the per-unit cost from the current packaging.
// A zero units-per-package yields a zero cost rather than a division error.
func (p Product) DeriveUnitCost() decimal.Decimal {
	if p.UnitsPerPackage <= 0 {
		return decimal.Zero
	}
	return p.PackagePrice.Div(decimal.NewFromInt(int64(p.UnitsPerPackage)))
}

type Supplier struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type Event struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Date   string `json:"date,omitempty"`
	Status string `json:"status"`
}

type Purchase struct {
	ID               string          `json:"id"`
	EventID          string          `json:"event_id"`
	Date             string          `json:"date"`
	ProductID        string          `json:"product_id"`
	SupplierName     string          `json:"supplier_name"`
	QuantityPackages int             `json:"quantity_packages"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	// UnitCostSnapshot is the product's unit cost at the moment of purchase.
	// It is a historical fact and is never recomputed from the product's
	// current packaging.
	UnitCostSnapshot decimal.Decimal `json:"unit_cost_snapshot"`
}

type SaleRecord struct {
	ID         string          `json:"id"`
	EventID    string          `json:"event_id"`
	Date       string          `json:"date"`
	AmountCash decimal.Decimal `json:"amount_cash"`
	AmountPix  decimal.Decimal `json:"amount_pix"`
	Total      decimal.Decimal `json:"total"`
	Notes      string          `json:"notes,omitempty"`
}

type Expense struct {
	ID          string          `json:"id"`
	EventID     string          `json:"event_id"`
	Date        string          `json:"date"`
	Supplier    string          `json:"supplier,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
}

// InventoryCheck is keyed by (ProductID, EventID); at most one live record
// exists per pair, a newer count replaces the previous one.
type InventoryCheck struct {
	ProductID    string    `json:"product_id"`
	EventID      string    `json:"event_id"`
	CurrentStock int64     `json:"current_stock"`
	LastUpdated  time.Time `json:"last_updated"`
}

type UserAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"-"`
	Role     string `json:"role"`
}

// Actor identifies the authenticated user attached to a request context.
type Actor struct {
	Username string
	Role     string
}

type ProductCreateRequest struct {
	Name            string          `json:"name" validate:"required"`
	Category        string          `json:"category" validate:"required"`
	MeasureUnit     MeasureUnit     `json:"measure_unit" validate:"required"`
	PackagePrice    decimal.Decimal `json:"package_price"`
	UnitsPerPackage int             `json:"units_per_package" validate:"gt=0"`
	Supplier        string          `json:"supplier"`
}

type ProductUpdateRequest struct {
	Name            *string          `json:"name,omitempty"`
	Category        *string          `json:"category,omitempty"`
	MeasureUnit     *MeasureUnit     `json:"measure_unit,omitempty"`
	PackagePrice    *decimal.Decimal `json:"package_price,omitempty"`
	UnitsPerPackage *int             `json:"units_per_package,omitempty"`
	Supplier        *string          `json:"supplier,omitempty"`
}

type SupplierCreateRequest struct {
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact"`
	Notes   string `json:"notes"`
}

type SupplierUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Contact *string `json:"contact,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

type EventCreateRequest struct {
	Name string `json:"name" validate:"required"`
	Date string `json:"date"`
}

type UserCreateRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,min=4"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}

// PurchaseCreateRequest carries no event id: the gateway stamps the
// session's current event before applying the record.
type PurchaseCreateRequest struct {
	Date             string          `json:"date" validate:"required"`
	ProductID        string          `json:"product_id" validate:"required"`
	SupplierName     string          `json:"supplier_name"`
	QuantityPackages int             `json:"quantity_packages" validate:"gt=0"`
	TotalCost        decimal.Decimal `json:"total_cost"`
}

type SaleCreateRequest struct {
	Date       string          `json:"date" validate:"required"`
	AmountCash decimal.Decimal `json:"amount_cash"`
	AmountPix  decimal.Decimal `json:"amount_pix"`
	Notes      string          `json:"notes"`
}

type ExpenseCreateRequest struct {
	Date        string          `json:"date" validate:"required"`
	Supplier    string          `json:"supplier"`
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category" validate:"required"`
}

type InventoryCheckRequest struct {
	ProductID    string `json:"product_id" validate:"required"`
	CurrentStock int64  `json:"current_stock" validate:"gte=0"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Summary is the financial aggregate over the current event scope.
type Summary struct {
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	TotalExpenses  decimal.Decimal `json:"total_expenses"`
	NetResult      decimal.Decimal `json:"net_result"`
}

// Stock status values reported per inventory row.
const (
	StockCritical = "Critical"
	StockLow      = "Low"
	StockGood     = "Good"
)

// ProductStatus is one derived inventory row. For the anchor product the
// stock figure is inferred from residual revenue, not counted, and may be
// negative; Inferred marks that row.
type ProductStatus struct {
	Product             Product         `json:"product"`
	TotalPurchasedUnits int64           `json:"total_purchased_units"`
	TotalPurchasedCost  decimal.Decimal `json:"total_purchased_cost"`
	CurrentStock        int64           `json:"current_stock"`
	EstimatedSalesUnits int64           `json:"estimated_sales_units"`
	EstimatedRevenue    decimal.Decimal `json:"estimated_revenue"`
	AverageDailySales   decimal.Decimal `json:"average_daily_sales"`
	DaysRemaining       decimal.Decimal `json:"days_remaining"`
	Status              string          `json:"status"`
	Inferred            bool            `json:"inferred"`
}

// UnknownProductName is rendered when a transactional record references a
// product that no longer exists.
const UnknownProductName = "Produto removido"
