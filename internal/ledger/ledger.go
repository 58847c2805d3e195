package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	stdsync "sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"barcaixa/internal/domain"
	"barcaixa/internal/inventory"
	"barcaixa/internal/session"
	"barcaixa/internal/store"
	"barcaixa/internal/sync"
	"barcaixa/internal/xid"
)

var (
	// ErrNoEventSelected rejects a scoped mutation issued outside the
	// event-selected session state. No record is ever written without an
	// owning event.
	ErrNoEventSelected = errors.New("no event selected")
	ErrForbidden       = errors.New("admin role required")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the entity store and the single mutation gateway. Every write
// applies to the local collections first (optimistic, source of truth for
// the running session) and is then handed to the outbox for best-effort
// remote delivery. Remote failures never roll local state back.
type Service struct {
	mu        stdsync.RWMutex
	products  map[string]domain.Product
	suppliers map[string]domain.Supplier
	events    map[string]domain.Event
	users     map[string]domain.UserAccount
	purchases map[string]domain.Purchase
	sales     map[string]domain.SaleRecord
	expenses  map[string]domain.Expense
	checks    map[string]domain.InventoryCheck

	remote   store.RemoteStore
	outbox   *sync.Outbox
	sessions *session.Manager
	engine   *inventory.Engine
	validate *validator.Validate
	log      *zap.SugaredLogger
}

func New(remote store.RemoteStore, outbox *sync.Outbox, sessions *session.Manager, engine *inventory.Engine, log *zap.SugaredLogger) *Service {
	return &Service{
		products:  make(map[string]domain.Product),
		suppliers: make(map[string]domain.Supplier),
		events:    make(map[string]domain.Event),
		users:     make(map[string]domain.UserAccount),
		purchases: make(map[string]domain.Purchase),
		sales:     make(map[string]domain.SaleRecord),
		expenses:  make(map[string]domain.Expense),
		checks:    make(map[string]domain.InventoryCheck),
		remote:    remote,
		outbox:    outbox,
		sessions:  sessions,
		engine:    engine,
		validate:  validator.New(),
		log:       log,
	}
}

func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// PendingSync reports how many local mutations still await remote delivery.
func (s *Service) PendingSync() int {
	return s.outbox.PendingCount()
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *Service) checkRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return nil
}

// enqueue hands an already-applied local mutation to the outbox. Marshal
// failures are programming errors and are logged, not surfaced.
func (s *Service) enqueue(ctx context.Context, entity string, action sync.Action, key string, record any) {
	op, err := sync.NewOp(entity, action, key, record)
	if err != nil {
		s.log.Errorw("outbox op build failed", "entity", entity, "action", action, "err", err)
		return
	}
	s.outbox.Enqueue(ctx, op)
}

func sortedValues[T any](m map[string]T, id func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return strings.Compare(id(a), id(b)) })
	return out
}

// --- Products ---

func (s *Service) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.products, func(p domain.Product) string { return p.ID })
}

func (s *Service) ProductByID(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := s.checkRequest(req); err != nil {
		return domain.Product{}, err
	}
	if !req.MeasureUnit.Valid() {
		return domain.Product{}, fmt.Errorf("%w: unknown measure unit %q", store.ErrValidation, req.MeasureUnit)
	}
	if req.PackagePrice.Sign() < 0 {
		return domain.Product{}, fmt.Errorf("%w: package price must not be negative", store.ErrValidation)
	}

	product := domain.Product{
		ID:              xid.New("prod"),
		Name:            strings.TrimSpace(req.Name),
		Category:        strings.TrimSpace(req.Category),
		MeasureUnit:     req.MeasureUnit,
		PackagePrice:    req.PackagePrice,
		UnitsPerPackage: req.UnitsPerPackage,
		Supplier:        strings.TrimSpace(req.Supplier),
	}
	product.UnitCost = product.DeriveUnitCost()

	s.mu.Lock()
	s.products[product.ID] = product
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityProduct, sync.ActionInsert, product.ID, product)
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	existing, ok := s.products[id]
	if !ok {
		s.mu.Unlock()
		return domain.Product{}, store.ErrNotFound
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			s.mu.Unlock()
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.MeasureUnit != nil {
		if !req.MeasureUnit.Valid() {
			s.mu.Unlock()
			return domain.Product{}, fmt.Errorf("%w: unknown measure unit %q", store.ErrValidation, *req.MeasureUnit)
		}
		updated.MeasureUnit = *req.MeasureUnit
	}
	if req.PackagePrice != nil {
		if req.PackagePrice.Sign() < 0 {
			s.mu.Unlock()
			return domain.Product{}, fmt.Errorf("%w: package price must not be negative", store.ErrValidation)
		}
		updated.PackagePrice = *req.PackagePrice
	}
	if req.UnitsPerPackage != nil {
		if *req.UnitsPerPackage <= 0 {
			s.mu.Unlock()
			return domain.Product{}, fmt.Errorf("%w: units per package must be positive", store.ErrValidation)
		}
		updated.UnitsPerPackage = *req.UnitsPerPackage
	}
	if req.Supplier != nil {
		updated.Supplier = strings.TrimSpace(*req.Supplier)
	}
	// The derived unit cost follows the current packaging. Purchase
	// snapshots taken earlier are untouched.
	updated.UnitCost = updated.DeriveUnitCost()
	s.products[id] = updated
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityProduct, sync.ActionUpdate, id, updated)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.products[id]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.products, id)
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityProduct, sync.ActionDelete, id, nil)
	return nil
}

// --- Suppliers ---

func (s *Service) Suppliers() []domain.Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.suppliers, func(x domain.Supplier) string { return x.ID })
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Supplier{}, err
	}
	if err := s.checkRequest(req); err != nil {
		return domain.Supplier{}, err
	}

	supplier := domain.Supplier{
		ID:      xid.New("sup"),
		Name:    strings.TrimSpace(req.Name),
		Contact: strings.TrimSpace(req.Contact),
		Notes:   strings.TrimSpace(req.Notes),
	}

	s.mu.Lock()
	s.suppliers[supplier.ID] = supplier
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntitySupplier, sync.ActionInsert, supplier.ID, supplier)
	return supplier, nil
}

// UpdateSupplier applies the change and, when the name changed, rewrites
// the preferred-supplier reference of every product that pointed at the old
// name. The reference is denormalized, so the rename must propagate here;
// each touched product is also pushed remotely to keep the remote store
// consistent.
func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.SupplierUpdateRequest) (domain.Supplier, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Supplier{}, err
	}

	s.mu.Lock()
	existing, ok := s.suppliers[id]
	if !ok {
		s.mu.Unlock()
		return domain.Supplier{}, store.ErrNotFound
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			s.mu.Unlock()
			return domain.Supplier{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.Contact != nil {
		updated.Contact = strings.TrimSpace(*req.Contact)
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}
	s.suppliers[id] = updated

	var touched []domain.Product
	if updated.Name != existing.Name {
		for pid, product := range s.products {
			if product.Supplier == existing.Name {
				product.Supplier = updated.Name
				s.products[pid] = product
				touched = append(touched, product)
			}
		}
	}
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntitySupplier, sync.ActionUpdate, id, updated)
	for _, product := range touched {
		s.enqueue(ctx, sync.EntityProduct, sync.ActionUpdate, product.ID, product)
	}
	if len(touched) > 0 {
		s.log.Infow("supplier rename propagated", "supplier", id, "old", existing.Name, "new", updated.Name, "products", len(touched))
	}
	return updated, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.suppliers[id]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.suppliers, id)
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntitySupplier, sync.ActionDelete, id, nil)
	return nil
}

// --- Events ---

func (s *Service) Events() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.events, func(x domain.Event) string { return x.ID })
}

func (s *Service) EventByID(id string) (domain.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	return e, ok
}

func (s *Service) CreateEvent(ctx context.Context, req domain.EventCreateRequest) (domain.Event, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Event{}, err
	}
	if err := s.checkRequest(req); err != nil {
		return domain.Event{}, err
	}

	event := domain.Event{
		ID:     xid.New("ev"),
		Name:   strings.TrimSpace(req.Name),
		Date:   strings.TrimSpace(req.Date),
		Status: domain.EventStatusActive,
	}

	s.mu.Lock()
	s.events[event.ID] = event
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityEvent, sync.ActionInsert, event.ID, event)
	return event, nil
}

func (s *Service) ArchiveEvent(ctx context.Context, id string) (domain.Event, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Event{}, err
	}

	s.mu.Lock()
	event, ok := s.events[id]
	if !ok {
		s.mu.Unlock()
		return domain.Event{}, store.ErrNotFound
	}
	event.Status = domain.EventStatusArchived
	s.events[id] = event
	s.mu.Unlock()

	s.enqueue(ctx, sync.EntityEvent, sync.ActionUpdate, id, event)
	return event, nil
}

// DeleteEvent removes the event and cascades over every scoped collection:
// no purchase, sale, expense or inventory check may keep referencing a dead
// event. Sessions currently scoped to it are detached.
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.events[id]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.events, id)

	var purchaseIDs, saleIDs, expenseIDs []string
	var checkKeys [][2]string
	for pid, p := range s.purchases {
		if p.EventID == id {
			delete(s.purchases, pid)
			purchaseIDs = append(purchaseIDs, pid)
		}
	}
	for sid, sale := range s.sales {
		if sale.EventID == id {
			delete(s.sales, sid)
			saleIDs = append(saleIDs, sid)
		}
	}
	for eid, e := range s.expenses {
		if e.EventID == id {
			delete(s.expenses, eid)
			expenseIDs = append(expenseIDs, eid)
		}
	}
	for key, c := range s.checks {
		if c.EventID == id {
			delete(s.checks, key)
			checkKeys = append(checkKeys, [2]string{c.ProductID, c.EventID})
		}
	}
	s.mu.Unlock()

	for _, pid := range purchaseIDs {
		s.enqueue(ctx, sync.EntityPurchase, sync.ActionDelete, pid, nil)
	}
	for _, sid := range saleIDs {
		s.enqueue(ctx, sync.EntitySale, sync.ActionDelete, sid, nil)
	}
	for _, eid := range expenseIDs {
		s.enqueue(ctx, sync.EntityExpense, sync.ActionDelete, eid, nil)
	}
	for _, key := range checkKeys {
		s.enqueue(ctx, sync.EntityInventoryCheck, sync.ActionDelete, sync.CheckKey(key[0], key[1]), nil)
	}
	s.enqueue(ctx, sync.EntityEvent, sync.ActionDelete, id, nil)

	s.sessions.DetachEvent(id)
	s.log.Infow("event deleted with cascade", "event", id,
		"purchases", len(purchaseIDs), "sales", len(saleIDs), "expenses", len(expenseIDs), "checks", len(checkKeys))
	return nil
}

// SelectEvent scopes the session to an existing, non-archived event.
func (s *Service) SelectEvent(sess *session.Session, id string) (domain.Event, error) {
	event, ok := s.EventByID(id)
	if !ok {
		return domain.Event{}, store.ErrNotFound
	}
	if event.Status == domain.EventStatusArchived {
		return domain.Event{}, fmt.Errorf("%w: event %q is archived", store.ErrValidation, event.Name)
	}
	if err := sess.SelectEvent(event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}
