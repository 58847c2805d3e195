package ledger

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"barcaixa/internal/domain"
	"barcaixa/internal/sync"
	"barcaixa/internal/xid"
)

// Load pulls every collection from the remote store into local state.
// Remote wins: whatever is loaded replaces the local copy wholesale. Each
// collection loads independently; a failing read is logged and that
// collection keeps its previous local content, leaving the session in a
// degraded but usable state.
//
// When the user list loads successfully and is empty, a default admin is
// seeded so the system is never unreachable on first boot.
func (s *Service) Load(ctx context.Context, seedPassword string) {
	if users, err := s.remote.ListUsers(ctx); err != nil {
		s.log.Errorw("load users failed", "err", err)
	} else {
		s.mu.Lock()
		s.users = make(map[string]domain.UserAccount, len(users))
		for _, u := range users {
			s.users[u.ID] = u
		}
		empty := len(users) == 0
		s.mu.Unlock()
		if empty {
			if err := s.SeedAdmin(ctx, seedPassword); err != nil {
				s.log.Errorw("admin seed failed, retrigger via the admin seed endpoint", "err", err)
			}
		}
	}

	if events, err := s.remote.ListEvents(ctx); err != nil {
		s.log.Errorw("load events failed", "err", err)
	} else {
		s.mu.Lock()
		s.events = make(map[string]domain.Event, len(events))
		for _, e := range events {
			s.events[e.ID] = e
		}
		s.mu.Unlock()
	}

	if products, err := s.remote.ListProducts(ctx); err != nil {
		s.log.Errorw("load products failed", "err", err)
	} else {
		s.mu.Lock()
		s.products = make(map[string]domain.Product, len(products))
		for _, p := range products {
			s.products[p.ID] = p
		}
		s.mu.Unlock()
	}

	if suppliers, err := s.remote.ListSuppliers(ctx); err != nil {
		s.log.Errorw("load suppliers failed", "err", err)
	} else {
		s.mu.Lock()
		s.suppliers = make(map[string]domain.Supplier, len(suppliers))
		for _, sp := range suppliers {
			s.suppliers[sp.ID] = sp
		}
		s.mu.Unlock()
	}

	if sales, err := s.remote.ListSales(ctx); err != nil {
		s.log.Errorw("load sales failed", "err", err)
	} else {
		s.mu.Lock()
		s.sales = make(map[string]domain.SaleRecord, len(sales))
		for _, sale := range sales {
			s.sales[sale.ID] = sale
		}
		s.mu.Unlock()
	}

	if expenses, err := s.remote.ListExpenses(ctx); err != nil {
		s.log.Errorw("load expenses failed", "err", err)
	} else {
		s.mu.Lock()
		s.expenses = make(map[string]domain.Expense, len(expenses))
		for _, e := range expenses {
			s.expenses[e.ID] = e
		}
		s.mu.Unlock()
	}

	if purchases, err := s.remote.ListPurchases(ctx); err != nil {
		s.log.Errorw("load purchases failed", "err", err)
	} else {
		s.mu.Lock()
		s.purchases = make(map[string]domain.Purchase, len(purchases))
		for _, p := range purchases {
			s.purchases[p.ID] = p
		}
		s.mu.Unlock()
	}

	if checks, err := s.remote.ListInventoryChecks(ctx); err != nil {
		s.log.Errorw("load inventory checks failed", "err", err)
	} else {
		s.mu.Lock()
		s.checks = make(map[string]domain.InventoryCheck, len(checks))
		for _, c := range checks {
			s.checks[sync.CheckKey(c.ProductID, c.EventID)] = c
		}
		s.mu.Unlock()
	}

	s.mu.RLock()
	s.log.Infow("remote state loaded",
		"users", len(s.users), "events", len(s.events), "products", len(s.products),
		"suppliers", len(s.suppliers), "sales", len(s.sales), "expenses", len(s.expenses),
		"purchases", len(s.purchases), "checks", len(s.checks))
	s.mu.RUnlock()
}

// SeedAdmin writes the default admin account. It is applied locally first,
// then pushed to the remote store directly (not through the outbox): the
// seed is a one-time bootstrap step, so a remote failure is surfaced to the
// caller for an explicit retrigger instead of being retried in background.
func (s *Service) SeedAdmin(ctx context.Context, password string) error {
	if password == "" {
		password = "admin123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	admin := domain.UserAccount{
		ID:       xid.New("usr"),
		Name:     "Administrador",
		Username: "admin",
		Password: string(hash),
		Role:     domain.RoleAdmin,
	}

	s.mu.Lock()
	for _, u := range s.users {
		if u.Username == admin.Username {
			s.mu.Unlock()
			s.log.Infow("admin account already present, seed skipped")
			return nil
		}
	}
	s.users[admin.ID] = admin
	s.mu.Unlock()

	s.log.Infow("default admin seeded", "username", admin.Username)
	if err := s.remote.InsertUser(ctx, admin); err != nil {
		return fmt.Errorf("push seeded admin: %w", err)
	}
	return nil
}
