package store

import (
	"context"
	"errors"

	"barcaixa/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid record")
)

// RemoteStore is the persisted table-store boundary. Every call may fail
// with a transport- or validation-level error; callers treat any such error
// as non-fatal and keep the optimistic local state.
type RemoteStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	InsertProduct(ctx context.Context, p domain.Product) error
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id string) error

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	InsertSupplier(ctx context.Context, s domain.Supplier) error
	UpdateSupplier(ctx context.Context, s domain.Supplier) error
	DeleteSupplier(ctx context.Context, id string) error

	ListEvents(ctx context.Context) ([]domain.Event, error)
	InsertEvent(ctx context.Context, e domain.Event) error
	UpdateEvent(ctx context.Context, e domain.Event) error
	DeleteEvent(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	InsertUser(ctx context.Context, u domain.UserAccount) error
	UpdateUser(ctx context.Context, u domain.UserAccount) error
	DeleteUser(ctx context.Context, id string) error

	ListPurchases(ctx context.Context) ([]domain.Purchase, error)
	InsertPurchase(ctx context.Context, p domain.Purchase) error
	DeletePurchase(ctx context.Context, id string) error

	ListSales(ctx context.Context) ([]domain.SaleRecord, error)
	InsertSale(ctx context.Context, s domain.SaleRecord) error
	DeleteSale(ctx context.Context, id string) error

	ListExpenses(ctx context.Context) ([]domain.Expense, error)
	InsertExpense(ctx context.Context, e domain.Expense) error
	DeleteExpense(ctx context.Context, id string) error

	ListInventoryChecks(ctx context.Context) ([]domain.InventoryCheck, error)
	UpsertInventoryCheck(ctx context.Context, c domain.InventoryCheck) error
	DeleteInventoryCheck(ctx context.Context, productID string, eventID string) error
}
