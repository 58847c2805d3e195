package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"barcaixa/internal/domain"
	"barcaixa/internal/session"
	"barcaixa/internal/store"
	"barcaixa/internal/sync"
	"barcaixa/internal/xid"
)

// scopedEventID resolves the session's current event or fails the mutation.
func scopedEventID(sess *session.Session) (string, error) {
	id, ok := sess.CurrentEventID()
	if !ok {
		return "", ErrNoEventSelected
	}
	return id, nil
}

func checkDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", store.ErrValidation, date)
	}
	return nil
}

// AddPurchase records a stock purchase against the session's current event.
// The product's unit cost is snapshotted into the record so later packaging
// edits do not rewrite purchase history.
func (s *Service) AddPurchase(ctx context.Context, sess *session.Session, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	eventID, err := scopedEventID(sess)
	if err != nil {
		return domain.Purchase{}, err
	}
	if err := s.checkRequest(req); err != nil {
		return domain.Purchase{}, err
	}
	if err := checkDate(req.Date); err != nil {
		return domain.Purchase{}, err
	}
	if req.TotalCost.Sign() <= 0 {
		return domain.Purchase{}, fmt.Errorf("%w: total cost must be positive", store.ErrValidation)
	}

	s.mu.Lock()
	product, ok := s.products[req.ProductID]
	if !ok {
		s.mu.Unlock()
		return domain.Purchase{}, store.ErrNotFound
	}
	supplierName := strings.TrimSpace(req.SupplierName)
	if supplierName == "" {
		supplierName = product.Supplier
	}
	purchase := domain.Purchase{
		ID:               xid.New("pur"),
		EventID:          eventID,
		Date:             req.Date,
		ProductID:        product.ID,
		SupplierName:     supplierName,
		QuantityPackages: req.QuantityPackages,
		TotalCost:        req.TotalCost,
		UnitCostSnapshot: product.DeriveUnitCost(),
	}
	s.purchases[purchase.ID] = purchase
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityPurchase, sync.ActionInsert, purchase.ID, purchase)
	return purchase, nil
}

func (s *Service) DeletePurchase(ctx context.Context, sess *session.Session, id string) error {
	eventID, err := scopedEventID(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	purchase, ok := s.purchases[id]
	if !ok || purchase.EventID != eventID {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.purchases, id)
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityPurchase, sync.ActionDelete, id, nil)
	return nil
}

// AddSale records a daily revenue entry. The total is always recomputed as
// cash + pix; clients never supply it.
func (s *Service) AddSale(ctx context.Context, sess *session.Session, req domain.SaleCreateRequest) (domain.SaleRecord, error) {
	eventID, err := scopedEventID(sess)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	if err := s.checkRequest(req); err != nil {
		return domain.SaleRecord{}, err
	}
	if err := checkDate(req.Date); err != nil {
		return domain.SaleRecord{}, err
	}
	if req.AmountCash.Sign() < 0 || req.AmountPix.Sign() < 0 {
		return domain.SaleRecord{}, fmt.Errorf("%w: sale amounts must not be negative", store.ErrValidation)
	}
	total := req.AmountCash.Add(req.AmountPix)
	if total.Sign() <= 0 {
		return domain.SaleRecord{}, fmt.Errorf("%w: sale must have a positive total", store.ErrValidation)
	}

	sale := domain.SaleRecord{
		ID:         xid.New("sale"),
		EventID:    eventID,
		Date:       req.Date,
		AmountCash: req.AmountCash,
		AmountPix:  req.AmountPix,
		Total:      total,
		Notes:      strings.TrimSpace(req.Notes),
	}

	s.mu.Lock()
	s.sales[sale.ID] = sale
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntitySale, sync.ActionInsert, sale.ID, sale)
	return sale, nil
}

func (s *Service) DeleteSale(ctx context.Context, sess *session.Session, id string) error {
	eventID, err := scopedEventID(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	sale, ok := s.sales[id]
	if !ok || sale.EventID != eventID {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.sales, id)
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntitySale, sync.ActionDelete, id, nil)
	return nil
}

func (s *Service) AddExpense(ctx context.Context, sess *session.Session, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	eventID, err := scopedEventID(sess)
	if err != nil {
		return domain.Expense{}, err
	}
	if err := s.checkRequest(req); err != nil {
		return domain.Expense{}, err
	}
	if err := checkDate(req.Date); err != nil {
		return domain.Expense{}, err
	}
	if req.Amount.Sign() <= 0 {
		return domain.Expense{}, fmt.Errorf("%w: expense amount must be positive", store.ErrValidation)
	}

	expense := domain.Expense{
		ID:          xid.New("exp"),
		EventID:     eventID,
		Date:        req.Date,
		Supplier:    strings.TrimSpace(req.Supplier),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Category:    strings.TrimSpace(req.Category),
	}

	s.mu.Lock()
	s.expenses[expense.ID] = expense
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityExpense, sync.ActionInsert, expense.ID, expense)
	return expense, nil
}

func (s *Service) DeleteExpense(ctx context.Context, sess *session.Session, id string) error {
	eventID, err := scopedEventID(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	expense, ok := s.expenses[id]
	if !ok || expense.EventID != eventID {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityExpense, sync.ActionDelete, id, nil)
	return nil
}

// RecordInventoryCheck upserts the physical count for (product, current
// event). A newer count replaces the previous one for the same pair.
func (s *Service) RecordInventoryCheck(ctx context.Context, sess *session.Session, req domain.InventoryCheckRequest) (domain.InventoryCheck, error) {
	eventID, err := scopedEventID(sess)
	if err != nil {
		return domain.InventoryCheck{}, err
	}
	if err := s.checkRequest(req); err != nil {
		return domain.InventoryCheck{}, err
	}

	s.mu.Lock()
	if _, ok := s.products[req.ProductID]; !ok {
		s.mu.Unlock()
		return domain.InventoryCheck{}, store.ErrNotFound
	}
	check := domain.InventoryCheck{
		ProductID:    req.ProductID,
		EventID:      eventID,
		CurrentStock: req.CurrentStock,
		LastUpdated:  time.Now().UTC(),
	}
	s.checks[sync.CheckKey(check.ProductID, check.EventID)] = check
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityInventoryCheck, sync.ActionUpsert, sync.CheckKey(check.ProductID, check.EventID), check)
	return check, nil
}

func (s *Service) DeleteInventoryCheck(ctx context.Context, sess *session.Session, productID string) error {
	eventID, err := scopedEventID(sess)
	if err != nil {
		return err
	}

	key := sync.CheckKey(productID, eventID)
	s.mu.Lock()
	if _, ok := s.checks[key]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.checks, key)
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityInventoryCheck, sync.ActionDelete, key, nil)
	return nil
}

// --- Scoped views ---
//
// All views return copies filtered to the session's current event; outside
// the event-selected state they are empty, never an error.

// PurchaseRow joins a purchase with its product's display name for listing.
// A purchase whose product was deleted keeps its row under a placeholder.
type PurchaseRow struct {
	domain.Purchase
	ProductName string `json:"product_name"`
}

func (s *Service) ScopedPurchases(sess *session.Session) []PurchaseRow {
	eventID, ok := sess.CurrentEventID()
	if !ok {
		return []PurchaseRow{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]PurchaseRow, 0)
	for _, p := range s.purchases {
		if p.EventID != eventID {
			continue
		}
		name := domain.UnknownProductName
		if product, ok := s.products[p.ProductID]; ok {
			name = product.Name
		}
		rows = append(rows, PurchaseRow{Purchase: p, ProductName: name})
	}
	slices.SortFunc(rows, func(a, b PurchaseRow) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return rows
}

func (s *Service) scopedPurchaseRecords(eventID string) []domain.Purchase {
	out := make([]domain.Purchase, 0)
	for _, p := range s.purchases {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Purchase) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *Service) ScopedSales(sess *session.Session) []domain.SaleRecord {
	eventID, ok := sess.CurrentEventID()
	if !ok {
		return []domain.SaleRecord{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SaleRecord, 0)
	for _, sale := range s.sales {
		if sale.EventID == eventID {
			out = append(out, sale)
		}
	}
	slices.SortFunc(out, func(a, b domain.SaleRecord) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Service) ScopedExpenses(sess *session.Session) []domain.Expense {
	eventID, ok := sess.CurrentEventID()
	if !ok {
		return []domain.Expense{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Expense, 0)
	for _, e := range s.expenses {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b domain.Expense) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Service) ScopedInventoryChecks(sess *session.Session) []domain.InventoryCheck {
	eventID, ok := sess.CurrentEventID()
	if !ok {
		return []domain.InventoryCheck{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.InventoryCheck, 0)
	for _, c := range s.checks {
		if c.EventID == eventID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.InventoryCheck) int { return strings.Compare(a.ProductID, b.ProductID) })
	return out
}
