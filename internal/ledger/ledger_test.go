package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"barcaixa/internal/domain"
	"barcaixa/internal/inventory"
	"barcaixa/internal/session"
	"barcaixa/internal/store"
	"barcaixa/internal/store/memory"
	"barcaixa/internal/sync"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	remote := memory.New()
	log := zap.NewNop().Sugar()
	outbox := sync.New(remote, sync.NoopJournal{}, log, time.Hour, 3)
	sessions := session.NewManager(log)
	engine := inventory.NewEngine(inventory.Config{AnchorMarker: "GELINHO"})
	svc := New(remote, outbox, sessions, engine, log)
	if err := svc.SeedAdmin(context.Background(), "admin123"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return svc, remote
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func loginAdmin(t *testing.T, svc *Service) *session.Session {
	t.Helper()
	sess, err := svc.Sessions().Login(context.Background(), svc, "admin", "admin123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return sess
}

func scopedSession(t *testing.T, svc *Service) *session.Session {
	t.Helper()
	sess := loginAdmin(t, svc)
	event, err := svc.CreateEvent(adminCtx(), domain.EventCreateRequest{Name: "Festa Junina", Date: "2025-06-20"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := svc.SelectEvent(sess, event.ID); err != nil {
		t.Fatalf("select event: %v", err)
	}
	return sess
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func createBeer(t *testing.T, svc *Service) domain.Product {
	t.Helper()
	p, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:            "Cerveja Lata",
		Category:        "Bebidas",
		MeasureUnit:     domain.UnitBox,
		PackagePrice:    mustDec(t, "60"),
		UnitsPerPackage: 12,
		Supplier:        "Distribuidora Sul",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func TestScopedMutationRequiresEvent(t *testing.T) {
	svc, _ := newTestService(t)
	sess := loginAdmin(t, svc)
	createBeer(t, svc)

	_, err := svc.AddSale(context.Background(), sess, domain.SaleCreateRequest{
		Date:       "2025-06-20",
		AmountCash: mustDec(t, "100"),
	})
	if !errors.Is(err, ErrNoEventSelected) {
		t.Fatalf("expected ErrNoEventSelected, got %v", err)
	}
	if got := len(svc.ScopedSales(sess)); got != 0 {
		t.Fatalf("expected no sales recorded, got %d", got)
	}
}

func TestArchivedEventCannotBeSelected(t *testing.T) {
	svc, _ := newTestService(t)
	sess := loginAdmin(t, svc)

	event, err := svc.CreateEvent(adminCtx(), domain.EventCreateRequest{Name: "BAR 2024"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := svc.ArchiveEvent(adminCtx(), event.ID); err != nil {
		t.Fatalf("archive event: %v", err)
	}

	if _, err := svc.SelectEvent(sess, event.ID); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for archived event, got %v", err)
	}
	if sess.State() != session.StateAuthenticated {
		t.Fatalf("failed selection must not scope the session")
	}
}

func TestSaleTotalIsAlwaysRecomputed(t *testing.T) {
	svc, _ := newTestService(t)
	sess := scopedSession(t, svc)

	sale, err := svc.AddSale(context.Background(), sess, domain.SaleCreateRequest{
		Date:       "2025-06-20",
		AmountCash: mustDec(t, "150.50"),
		AmountPix:  mustDec(t, "49.50"),
	})
	if err != nil {
		t.Fatalf("add sale: %v", err)
	}
	if !sale.Total.Equal(mustDec(t, "200")) {
		t.Fatalf("total = %s, want 200", sale.Total)
	}

	_, err = svc.AddSale(context.Background(), sess, domain.SaleCreateRequest{
		Date:       "2025-06-20",
		AmountCash: mustDec(t, "-1"),
		AmountPix:  mustDec(t, "10"),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for negative cash, got %v", err)
	}
}

func TestSummaryIdentityAndEmptyScope(t *testing.T) {
	svc, _ := newTestService(t)
	sess := loginAdmin(t, svc)

	empty := svc.Summary(sess)
	if !empty.TotalRevenue.IsZero() || !empty.NetResult.IsZero() {
		t.Fatalf("unscoped summary must be all zero, got %+v", empty)
	}

	event, err := svc.CreateEvent(adminCtx(), domain.EventCreateRequest{Name: "BAR 2025"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := svc.SelectEvent(sess, event.ID); err != nil {
		t.Fatalf("select event: %v", err)
	}
	beer := createBeer(t, svc)

	ctx := context.Background()
	if _, err := svc.AddSale(ctx, sess, domain.SaleCreateRequest{Date: "2025-06-20", AmountCash: mustDec(t, "800")}); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	if _, err := svc.AddPurchase(ctx, sess, domain.PurchaseCreateRequest{
		Date: "2025-06-19", ProductID: beer.ID, QuantityPackages: 10, TotalCost: mustDec(t, "600"),
	}); err != nil {
		t.Fatalf("add purchase: %v", err)
	}
	if _, err := svc.AddExpense(ctx, sess, domain.ExpenseCreateRequest{
		Date: "2025-06-20", Description: "Gelo", Amount: mustDec(t, "50"), Category: "Insumos",
	}); err != nil {
		t.Fatalf("add expense: %v", err)
	}

	got := svc.Summary(sess)
	want := got.TotalRevenue.Sub(got.TotalPurchases).Sub(got.TotalExpenses)
	if !got.NetResult.Equal(want) {
		t.Fatalf("net = %s, want revenue-purchases-expenses = %s", got.NetResult, want)
	}
	if !got.NetResult.Equal(mustDec(t, "150")) {
		t.Fatalf("net = %s, want 150", got.NetResult)
	}
}

func TestEventSwitchChangesScope(t *testing.T) {
	svc, _ := newTestService(t)
	sess := loginAdmin(t, svc)
	ctx := context.Background()

	first, _ := svc.CreateEvent(adminCtx(), domain.EventCreateRequest{Name: "Evento A"})
	second, _ := svc.CreateEvent(adminCtx(), domain.EventCreateRequest{Name: "Evento B"})

	if _, err := svc.SelectEvent(sess, first.ID); err != nil {
		t.Fatalf("select first: %v", err)
	}
	if _, err := svc.AddSale(ctx, sess, domain.SaleCreateRequest{Date: "2025-06-20", AmountPix: mustDec(t, "300")}); err != nil {
		t.Fatalf("add sale: %v", err)
	}

	if _, err := svc.SelectEvent(sess, second.ID); err != nil {
		t.Fatalf("select second: %v", err)
	}
	if got := len(svc.ScopedSales(sess)); got != 0 {
		t.Fatalf("second event should see no sales, got %d", got)
	}
	if !svc.Summary(sess).TotalRevenue.IsZero() {
		t.Fatalf("second event revenue should be zero")
	}

	if _, err := svc.SelectEvent(sess, first.ID); err != nil {
		t.Fatalf("reselect first: %v", err)
	}
	if got := len(svc.ScopedSales(sess)); got != 1 {
		t.Fatalf("first event should see 1 sale, got %d", got)
	}
}

func TestDeleteEventCascadesAndDetachesSessions(t *testing.T) {
	svc, remote := newTestService(t)
	sess := scopedSession(t, svc)
	ctx := context.Background()
	beer := createBeer(t, svc)

	if _, err := svc.AddSale(ctx, sess, domain.SaleCreateRequest{Date: "2025-06-20", AmountCash: mustDec(t, "100")}); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	if _, err := svc.AddPurchase(ctx, sess, domain.PurchaseCreateRequest{
		Date: "2025-06-19", ProductID: beer.ID, QuantityPackages: 2, TotalCost: mustDec(t, "120"),
	}); err != nil {
		t.Fatalf("add purchase: %v", err)
	}
	if _, err := svc.RecordInventoryCheck(ctx, sess, domain.InventoryCheckRequest{ProductID: beer.ID, CurrentStock: 10}); err != nil {
		t.Fatalf("record check: %v", err)
	}

	eventID, _ := sess.CurrentEventID()
	if err := svc.DeleteEvent(adminCtx(), eventID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	if sess.State() != session.StateAuthenticated {
		t.Fatalf("session should be detached from the deleted event")
	}
	if len(svc.ScopedSales(sess)) != 0 || len(svc.ScopedPurchases(sess)) != 0 || len(svc.ScopedInventoryChecks(sess)) != 0 {
		t.Fatalf("scoped records must be gone after event delete")
	}

	// Remote must converge to the same emptiness once the outbox drains.
	svc.outbox.Flush(ctx)
	sales, _ := remote.ListSales(ctx)
	purchases, _ := remote.ListPurchases(ctx)
	checks, _ := remote.ListInventoryChecks(ctx)
	events, _ := remote.ListEvents(ctx)
	if len(sales)+len(purchases)+len(checks)+len(events) != 0 {
		t.Fatalf("remote still holds cascaded records: sales=%d purchases=%d checks=%d events=%d",
			len(sales), len(purchases), len(checks), len(events))
	}
}

func TestSupplierRenamePropagatesExactMatches(t *testing.T) {
	svc, remote := newTestService(t)
	loginAdmin(t, svc)
	ctx := context.Background()

	sup, err := svc.CreateSupplier(adminCtx(), domain.SupplierCreateRequest{Name: "Distribuidora Sul"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	matching := createBeer(t, svc) // supplier "Distribuidora Sul"
	other, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name: "Refrigerante", Category: "Bebidas", MeasureUnit: domain.UnitPackage,
		PackagePrice: mustDec(t, "30"), UnitsPerPackage: 6, Supplier: "Distribuidora Sul Ltda",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	newName := "Distribuidora Norte"
	if _, err := svc.UpdateSupplier(adminCtx(), sup.ID, domain.SupplierUpdateRequest{Name: &newName}); err != nil {
		t.Fatalf("update supplier: %v", err)
	}

	got, _ := svc.ProductByID(matching.ID)
	if got.Supplier != newName {
		t.Fatalf("matching product supplier = %q, want %q", got.Supplier, newName)
	}
	untouched, _ := svc.ProductByID(other.ID)
	if untouched.Supplier != "Distribuidora Sul Ltda" {
		t.Fatalf("near-match supplier must not be rewritten, got %q", untouched.Supplier)
	}

	svc.outbox.Flush(ctx)
	remoteProducts, _ := remote.ListProducts(ctx)
	for _, p := range remoteProducts {
		if p.ID == matching.ID && p.Supplier != newName {
			t.Fatalf("rename did not reach the remote store")
		}
	}
}

func TestPurchaseSnapshotSurvivesProductEdit(t *testing.T) {
	svc, _ := newTestService(t)
	sess := scopedSession(t, svc)
	ctx := context.Background()
	beer := createBeer(t, svc) // unit cost 5

	p, err := svc.AddPurchase(ctx, sess, domain.PurchaseCreateRequest{
		Date: "2025-06-19", ProductID: beer.ID, QuantityPackages: 1, TotalCost: mustDec(t, "60"),
	})
	if err != nil {
		t.Fatalf("add purchase: %v", err)
	}
	if !p.UnitCostSnapshot.Equal(mustDec(t, "5")) {
		t.Fatalf("snapshot = %s, want 5", p.UnitCostSnapshot)
	}

	newPrice := mustDec(t, "120")
	if _, err := svc.UpdateProduct(adminCtx(), beer.ID, domain.ProductUpdateRequest{PackagePrice: &newPrice}); err != nil {
		t.Fatalf("update product: %v", err)
	}

	rows := svc.ScopedPurchases(sess)
	if len(rows) != 1 || !rows[0].UnitCostSnapshot.Equal(mustDec(t, "5")) {
		t.Fatalf("purchase snapshot must not follow product edits, got %+v", rows)
	}

	updated, _ := svc.ProductByID(beer.ID)
	if !updated.UnitCost.Equal(mustDec(t, "10")) {
		t.Fatalf("product unit cost = %s, want 10 after edit", updated.UnitCost)
	}
}

func TestDeletedProductKeepsPurchaseRowWithPlaceholder(t *testing.T) {
	svc, _ := newTestService(t)
	sess := scopedSession(t, svc)
	ctx := context.Background()
	beer := createBeer(t, svc)

	if _, err := svc.AddPurchase(ctx, sess, domain.PurchaseCreateRequest{
		Date: "2025-06-19", ProductID: beer.ID, QuantityPackages: 1, TotalCost: mustDec(t, "60"),
	}); err != nil {
		t.Fatalf("add purchase: %v", err)
	}
	if err := svc.DeleteProduct(adminCtx(), beer.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	rows := svc.ScopedPurchases(sess)
	if len(rows) != 1 {
		t.Fatalf("purchase row must survive product deletion")
	}
	if rows[0].ProductName != domain.UnknownProductName {
		t.Fatalf("product name = %q, want placeholder", rows[0].ProductName)
	}

	summary := svc.Summary(sess)
	if !summary.TotalPurchases.Equal(mustDec(t, "60")) {
		t.Fatalf("orphan purchase must still count in totals, got %s", summary.TotalPurchases)
	}
}

func TestInventoryCheckUpsertReplacesCount(t *testing.T) {
	svc, _ := newTestService(t)
	sess := scopedSession(t, svc)
	ctx := context.Background()
	beer := createBeer(t, svc)

	if _, err := svc.RecordInventoryCheck(ctx, sess, domain.InventoryCheckRequest{ProductID: beer.ID, CurrentStock: 50}); err != nil {
		t.Fatalf("first check: %v", err)
	}
	if _, err := svc.RecordInventoryCheck(ctx, sess, domain.InventoryCheckRequest{ProductID: beer.ID, CurrentStock: 30}); err != nil {
		t.Fatalf("second check: %v", err)
	}

	checks := svc.ScopedInventoryChecks(sess)
	if len(checks) != 1 {
		t.Fatalf("expected a single check per product+event, got %d", len(checks))
	}
	if checks[0].CurrentStock != 30 {
		t.Fatalf("stock = %d, want the newer count 30", checks[0].CurrentStock)
	}
}

func TestNonAdminCannotManageCatalog(t *testing.T) {
	svc, _ := newTestService(t)
	loginAdmin(t, svc)

	if _, err := svc.CreateUser(adminCtx(), domain.UserCreateRequest{
		Name: "Operador", Username: "operador", Password: "segredo1", Role: domain.RoleUser,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	userCtx := WithActor(context.Background(), domain.Actor{Username: "operador", Role: domain.RoleUser})
	_, err := svc.CreateProduct(userCtx, domain.ProductCreateRequest{
		Name: "Agua", Category: "Bebidas", MeasureUnit: domain.UnitPackage,
		PackagePrice: mustDec(t, "12"), UnitsPerPackage: 6,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestLegacyPlaintextCredentialUpgradedOnLogin(t *testing.T) {
	svc, remote := newTestService(t)
	ctx := context.Background()

	legacy := domain.UserAccount{
		ID: "usr-legacy", Name: "Antigo", Username: "antigo", Password: "senha123", Role: domain.RoleUser,
	}
	if err := remote.InsertUser(ctx, legacy); err != nil {
		t.Fatalf("insert legacy user: %v", err)
	}

	if _, err := svc.Sessions().Login(ctx, svc, "antigo", "senha123"); err != nil {
		t.Fatalf("legacy login: %v", err)
	}

	for _, u := range svc.Users() {
		if u.Username == "antigo" && u.Password == "senha123" {
			t.Fatalf("plaintext credential must be upgraded after login")
		}
	}

	// Same password still works against the upgraded hash.
	if _, err := svc.Sessions().Login(ctx, svc, "antigo", "senha123"); err != nil {
		t.Fatalf("login after upgrade: %v", err)
	}
}

func TestInventoryRowsUseScopedRevenue(t *testing.T) {
	svc, _ := newTestService(t)
	sess := scopedSession(t, svc)
	ctx := context.Background()

	anchor, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name: "Gelinho Morango", Category: "Sobremesa", MeasureUnit: domain.UnitPackage,
		PackagePrice: mustDec(t, "100"), UnitsPerPackage: 10,
	})
	if err != nil {
		t.Fatalf("create anchor: %v", err)
	}
	if _, err := svc.AddPurchase(ctx, sess, domain.PurchaseCreateRequest{
		Date: "2025-06-19", ProductID: anchor.ID, QuantityPackages: 24, TotalCost: mustDec(t, "2400"),
	}); err != nil {
		t.Fatalf("add purchase: %v", err)
	}
	if _, err := svc.AddSale(ctx, sess, domain.SaleCreateRequest{Date: "2025-06-20", AmountCash: mustDec(t, "800")}); err != nil {
		t.Fatalf("add sale: %v", err)
	}

	rows, err := svc.InventoryRows(sess)
	if err != nil {
		t.Fatalf("inventory rows: %v", err)
	}
	if len(rows) != 1 || !rows[0].Inferred {
		t.Fatalf("expected one inferred anchor row, got %+v", rows)
	}
	// sell price 20, target 800: 40 sold of 240.
	if rows[0].EstimatedSalesUnits != 40 || rows[0].CurrentStock != 200 {
		t.Fatalf("anchor sold=%d stock=%d, want 40 / 200", rows[0].EstimatedSalesUnits, rows[0].CurrentStock)
	}
}
