package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"barcaixa/internal/domain"
	"barcaixa/internal/store"

	"github.com/shopspring/decimal"
)

// Store is an in-memory RemoteStore. It backs dev mode (no DATABASE_URL)
// and the test suites, behaving like the postgres store minus durability.
type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	suppliers map[string]domain.Supplier
	events    map[string]domain.Event
	users     map[string]domain.UserAccount
	purchases map[string]domain.Purchase
	sales     map[string]domain.SaleRecord
	expenses  map[string]domain.Expense
	checks    map[string]domain.InventoryCheck
}

func New() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		suppliers: make(map[string]domain.Supplier),
		events:    make(map[string]domain.Event),
		users:     make(map[string]domain.UserAccount),
		purchases: make(map[string]domain.Purchase),
		sales:     make(map[string]domain.SaleRecord),
		expenses:  make(map[string]domain.Expense),
		checks:    make(map[string]domain.InventoryCheck),
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("memory: bad seed decimal " + s)
	}
	return d
}

// NewSeeded returns a store pre-loaded with the demo catalog and the
// BAR 2025 event data. The admin password comes from SEED_ADMIN_PASSWORD
// and falls back to a dev default with a warning.
func NewSeeded() *Store {
	s := New()

	adminPwd := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPwd == "" {
		adminPwd = "admin123"
		log.Println("[memory-store] WARNING: using default dev admin credentials. Set SEED_ADMIN_PASSWORD to override.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPwd), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	s.users["u1"] = domain.UserAccount{ID: "u1", Name: "Administrador", Username: "admin", Password: string(hash), Role: domain.RoleAdmin}

	s.events["ev1"] = domain.Event{ID: "ev1", Name: "BAR 2025", Date: "2025-01-01", Status: domain.EventStatusActive}

	for _, sup := range []domain.Supplier{
		{ID: "sup1", Name: "LUIS DOCE", Contact: "(11) 99999-9999"},
		{ID: "sup2", Name: "GARATINI"},
		{ID: "sup3", Name: "PLASFER"},
		{ID: "sup4", Name: "MERCADO EXTRA"},
	} {
		s.suppliers[sup.ID] = sup
	}

	for _, p := range []domain.Product{
		{ID: "1", Name: "GELINHO", MeasureUnit: domain.UnitBox, PackagePrice: dec("83.40"), UnitsPerPackage: 240, Supplier: "LUIS DOCE", Category: "Doces"},
		{ID: "2", Name: "HALLS PRETO", MeasureUnit: domain.UnitBox, PackagePrice: dec("26.90"), UnitsPerPackage: 21, Supplier: "LUIS DOCE", Category: "Doces"},
		{ID: "3", Name: "HALLS MORANGO", MeasureUnit: domain.UnitBox, PackagePrice: dec("26.90"), UnitsPerPackage: 21, Supplier: "LUIS DOCE", Category: "Doces"},
		{ID: "4", Name: "TRIDENT VERDE", MeasureUnit: domain.UnitBox, PackagePrice: dec("38.90"), UnitsPerPackage: 21, Supplier: "LUIS DOCE", Category: "Doces"},
		{ID: "5", Name: "TRIDENT PRETO", MeasureUnit: domain.UnitBox, PackagePrice: dec("38.90"), UnitsPerPackage: 21, Supplier: "LUIS DOCE", Category: "Doces"},
		{ID: "6", Name: "MENDORATO", MeasureUnit: domain.UnitPackage, PackagePrice: dec("42.00"), UnitsPerPackage: 60, Supplier: "LUIS DOCE", Category: "Salgados"},
		{ID: "7", Name: "AGUA MINERAL", MeasureUnit: domain.UnitBundle, PackagePrice: dec("1.00"), UnitsPerPackage: 1, Supplier: "GARATINI", Category: "Bebidas"},
		{ID: "8", Name: "COCA COLA", MeasureUnit: domain.UnitBundle, PackagePrice: dec("3.49"), UnitsPerPackage: 1, Supplier: "GARATINI", Category: "Bebidas"},
		{ID: "9", Name: "COCA COLA ZERO", MeasureUnit: domain.UnitBundle, PackagePrice: dec("3.99"), UnitsPerPackage: 1, Supplier: "GARATINI", Category: "Bebidas"},
		{ID: "10", Name: "GUARANA ANTARTICA", MeasureUnit: domain.UnitBundle, PackagePrice: dec("3.49"), UnitsPerPackage: 1, Supplier: "GARATINI", Category: "Bebidas"},
	} {
		p.UnitCost = p.DeriveUnitCost()
		s.products[p.ID] = p
	}

	for _, sale := range []domain.SaleRecord{
		{ID: "s1", EventID: "ev1", Date: "2025-01-08", AmountCash: dec("521.50"), AmountPix: dec("535.00")},
		{ID: "s2", EventID: "ev1", Date: "2025-01-09", AmountCash: dec("522.10"), AmountPix: dec("504.00")},
		{ID: "s3", EventID: "ev1", Date: "2025-01-10", AmountCash: dec("433.20"), AmountPix: dec("444.00")},
		{ID: "s4", EventID: "ev1", Date: "2025-01-11", AmountCash: dec("320.50"), AmountPix: dec("397.50")},
		{ID: "s5", EventID: "ev1", Date: "2025-01-13", AmountCash: dec("696.90"), AmountPix: dec("154.50")},
	} {
		sale.Total = sale.AmountCash.Add(sale.AmountPix)
		s.sales[sale.ID] = sale
	}

	for _, e := range []domain.Expense{
		{ID: "e1", EventID: "ev1", Date: "2025-01-03", Supplier: "PLASFER", Description: "Copos e Guardanapos", Amount: dec("527.00"), Category: "Materiais"},
		{ID: "e2", EventID: "ev1", Date: "2025-01-03", Supplier: "PLASFER", Description: "Sacolas (Extra)", Amount: dec("140.00"), Category: "Materiais"},
		{ID: "e3", EventID: "ev1", Date: "2025-01-05", Supplier: "MERCADO EXTRA", Description: "Produtos Limpeza Geral", Amount: dec("107.88"), Category: "Limpeza"},
	} {
		s.expenses[e.ID] = e
	}

	for _, p := range []domain.Purchase{
		{ID: "p1", EventID: "ev1", Date: "2025-01-07", ProductID: "1", SupplierName: "LUIS DOCE", QuantityPackages: 55, TotalCost: dec("4587.00"), UnitCostSnapshot: dec("0.35")},
		{ID: "p2", EventID: "ev1", Date: "2025-01-07", ProductID: "8", SupplierName: "GARATINI", QuantityPackages: 1080, TotalCost: dec("3769.20"), UnitCostSnapshot: dec("3.49")},
	} {
		s.purchases[p.ID] = p
	}

	return s
}

func sortByID[T any](items []T, id func(T) string) {
	slices.SortFunc(items, func(a, b T) int {
		return strings.Compare(id(a), id(b))
	})
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sortByID(out, func(p domain.Product) string { return p.ID })
	return out, nil
}

func (s *Store) InsertProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" || p.Name == "" {
		return store.ErrValidation
	}
	if _, exists := s.products[p.ID]; exists {
		return store.ErrValidation
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[p.ID]; !exists {
		return store.ErrNotFound
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		out = append(out, sup)
	}
	sortByID(out, func(x domain.Supplier) string { return x.ID })
	return out, nil
}

func (s *Store) InsertSupplier(_ context.Context, sup domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sup.ID == "" || sup.Name == "" {
		return store.ErrValidation
	}
	if _, exists := s.suppliers[sup.ID]; exists {
		return store.ErrValidation
	}
	s.suppliers[sup.ID] = sup
	return nil
}

func (s *Store) UpdateSupplier(_ context.Context, sup domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.suppliers[sup.ID]; !exists {
		return store.ErrNotFound
	}
	s.suppliers[sup.ID] = sup
	return nil
}

func (s *Store) DeleteSupplier(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.suppliers[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.suppliers, id)
	return nil
}

func (s *Store) ListEvents(_ context.Context) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sortByID(out, func(x domain.Event) string { return x.ID })
	return out, nil
}

func (s *Store) InsertEvent(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" || e.Name == "" {
		return store.ErrValidation
	}
	if _, exists := s.events[e.ID]; exists {
		return store.ErrValidation
	}
	s.events[e.ID] = e
	return nil
}

func (s *Store) UpdateEvent(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[e.ID]; !exists {
		return store.ErrNotFound
	}
	s.events[e.ID] = e
	return nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sortByID(out, func(x domain.UserAccount) string { return x.ID })
	return out, nil
}

func (s *Store) InsertUser(_ context.Context, u domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" || u.Username == "" {
		return store.ErrValidation
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return store.ErrValidation
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) UpdateUser(_ context.Context, u domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; !exists {
		return store.ErrNotFound
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) ListPurchases(_ context.Context) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		out = append(out, p)
	}
	sortByID(out, func(x domain.Purchase) string { return x.ID })
	return out, nil
}

func (s *Store) InsertPurchase(_ context.Context, p domain.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" || p.EventID == "" || p.ProductID == "" {
		return store.ErrValidation
	}
	s.purchases[p.ID] = p
	return nil
}

func (s *Store) DeletePurchase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.purchases, id)
	return nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SaleRecord, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, sale)
	}
	sortByID(out, func(x domain.SaleRecord) string { return x.ID })
	return out, nil
}

func (s *Store) InsertSale(_ context.Context, sale domain.SaleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sale.ID == "" || sale.EventID == "" {
		return store.ErrValidation
	}
	s.sales[sale.ID] = sale
	return nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sales, id)
	return nil
}

func (s *Store) ListExpenses(_ context.Context) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e)
	}
	sortByID(out, func(x domain.Expense) string { return x.ID })
	return out, nil
}

func (s *Store) InsertExpense(_ context.Context, e domain.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" || e.EventID == "" {
		return store.ErrValidation
	}
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expenses, id)
	return nil
}

func checkKey(productID string, eventID string) string {
	return productID + "|" + eventID
}

func (s *Store) ListInventoryChecks(_ context.Context) ([]domain.InventoryCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.InventoryCheck, 0, len(s.checks))
	for _, c := range s.checks {
		out = append(out, c)
	}
	sortByID(out, func(x domain.InventoryCheck) string { return checkKey(x.ProductID, x.EventID) })
	return out, nil
}

func (s *Store) UpsertInventoryCheck(_ context.Context, c domain.InventoryCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ProductID == "" || c.EventID == "" {
		return store.ErrValidation
	}
	if c.LastUpdated.IsZero() {
		c.LastUpdated = time.Now().UTC()
	}
	s.checks[checkKey(c.ProductID, c.EventID)] = c
	return nil
}

func (s *Store) DeleteInventoryCheck(_ context.Context, productID string, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checks, checkKey(productID, eventID))
	return nil
}
