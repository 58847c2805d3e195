package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"barcaixa/internal/domain"
	"barcaixa/internal/store"
)

// Store implements store.RemoteStore on PostgreSQL. The schema is external
// (see schema.sql at the repository root).
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, measure_unit, package_price, units_per_package, supplier, unit_cost
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.MeasureUnit, &p.PackagePrice, &p.UnitsPerPackage, &p.Supplier, &p.UnitCost); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) InsertProduct(ctx context.Context, p domain.Product) error {
	if p.ID == "" || p.Name == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, measure_unit, package_price, units_per_package, supplier, unit_cost, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
	`, p.ID, p.Name, p.Category, p.MeasureUnit, p.PackagePrice, p.UnitsPerPackage, p.Supplier, p.UnitCost)
	if isUniqueViolation(err) {
		return store.ErrValidation
	}
	return err
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, measure_unit = $4, package_price = $5, units_per_package = $6, supplier = $7, unit_cost = $8, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, p.Category, p.MeasureUnit, p.PackagePrice, p.UnitsPerPackage, p.Supplier, p.UnitCost)
	return affectedOrNotFound(res, err)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	return affectedOrNotFound(res, err)
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(contact, ''), COALESCE(notes, '')
		FROM suppliers
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Contact, &sup.Notes); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *Store) InsertSupplier(ctx context.Context, sup domain.Supplier) error {
	if sup.ID == "" || sup.Name == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact, notes)
		VALUES ($1,$2,$3,$4)
	`, sup.ID, sup.Name, sup.Contact, sup.Notes)
	if isUniqueViolation(err) {
		return store.ErrValidation
	}
	return err
}

func (s *Store) UpdateSupplier(ctx context.Context, sup domain.Supplier) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers SET name = $2, contact = $3, notes = $4 WHERE id = $1
	`, sup.ID, sup.Name, sup.Contact, sup.Notes)
	return affectedOrNotFound(res, err)
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	return affectedOrNotFound(res, err)
}

func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(event_date, ''), status
		FROM events
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.Event, 0, 16)
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Date, &e.Status); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) InsertEvent(ctx context.Context, e domain.Event) error {
	if e.ID == "" || e.Name == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, name, event_date, status)
		VALUES ($1,$2,$3,$4)
	`, e.ID, e.Name, e.Date, e.Status)
	if isUniqueViolation(err) {
		return store.ErrValidation
	}
	return err
}

func (s *Store) UpdateEvent(ctx context.Context, e domain.Event) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET name = $2, event_date = $3, status = $4 WHERE id = $1
	`, e.ID, e.Name, e.Date, e.Status)
	return affectedOrNotFound(res, err)
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	return affectedOrNotFound(res, err)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, username, password, role
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.Password, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) InsertUser(ctx context.Context, u domain.UserAccount) error {
	if u.ID == "" || u.Username == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, username, password, role)
		VALUES ($1,$2,$3,$4,$5)
	`, u.ID, u.Name, u.Username, u.Password, u.Role)
	if isUniqueViolation(err) {
		return store.ErrValidation
	}
	return err
}

func (s *Store) UpdateUser(ctx context.Context, u domain.UserAccount) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = $2, username = $3, password = $4, role = $5 WHERE id = $1
	`, u.ID, u.Name, u.Username, u.Password, u.Role)
	return affectedOrNotFound(res, err)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return affectedOrNotFound(res, err)
}

func (s *Store) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, purchase_date, product_id, supplier_name, quantity_packages, total_cost, unit_cost_snapshot
		FROM purchases
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 128)
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.EventID, &p.Date, &p.ProductID, &p.SupplierName, &p.QuantityPackages, &p.TotalCost, &p.UnitCostSnapshot); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (s *Store) InsertPurchase(ctx context.Context, p domain.Purchase) error {
	if p.ID == "" || p.EventID == "" || p.ProductID == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, event_id, purchase_date, product_id, supplier_name, quantity_packages, total_cost, unit_cost_snapshot)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, p.ID, p.EventID, p.Date, p.ProductID, p.SupplierName, p.QuantityPackages, p.TotalCost, p.UnitCostSnapshot)
	return err
}

func (s *Store) DeletePurchase(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	return err
}

func (s *Store) ListSales(ctx context.Context) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, sale_date, amount_cash, amount_pix, total, COALESCE(notes, '')
		FROM sales
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleRecord, 0, 64)
	for rows.Next() {
		var sale domain.SaleRecord
		if err := rows.Scan(&sale.ID, &sale.EventID, &sale.Date, &sale.AmountCash, &sale.AmountPix, &sale.Total, &sale.Notes); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) InsertSale(ctx context.Context, sale domain.SaleRecord) error {
	if sale.ID == "" || sale.EventID == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, event_id, sale_date, amount_cash, amount_pix, total, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sale.ID, sale.EventID, sale.Date, sale.AmountCash, sale.AmountPix, sale.Total, sale.Notes)
	return err
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	return err
}

func (s *Store) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, expense_date, COALESCE(supplier, ''), description, amount, category
		FROM expenses
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.EventID, &e.Date, &e.Supplier, &e.Description, &e.Amount, &e.Category); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) InsertExpense(ctx context.Context, e domain.Expense) error {
	if e.ID == "" || e.EventID == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, event_id, expense_date, supplier, description, amount, category)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.EventID, e.Date, e.Supplier, e.Description, e.Amount, e.Category)
	return err
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	return err
}

func (s *Store) ListInventoryChecks(ctx context.Context) ([]domain.InventoryCheck, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, event_id, current_stock, last_updated
		FROM inventory_checks
		ORDER BY product_id, event_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checks := make([]domain.InventoryCheck, 0, 64)
	for rows.Next() {
		var c domain.InventoryCheck
		if err := rows.Scan(&c.ProductID, &c.EventID, &c.CurrentStock, &c.LastUpdated); err != nil {
			return nil, err
		}
		c.LastUpdated = c.LastUpdated.UTC()
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (s *Store) UpsertInventoryCheck(ctx context.Context, c domain.InventoryCheck) error {
	if c.ProductID == "" || c.EventID == "" {
		return store.ErrValidation
	}
	if c.LastUpdated.IsZero() {
		c.LastUpdated = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_checks (product_id, event_id, current_stock, last_updated)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (product_id, event_id)
		DO UPDATE SET current_stock = EXCLUDED.current_stock, last_updated = EXCLUDED.last_updated
	`, c.ProductID, c.EventID, c.CurrentStock, c.LastUpdated)
	return err
}

func (s *Store) DeleteInventoryCheck(ctx context.Context, productID string, eventID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM inventory_checks WHERE product_id = $1 AND event_id = $2
	`, productID, eventID)
	return err
}

func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
