package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"barcaixa/internal/domain"
	"barcaixa/internal/session"
)

// Summary aggregates the financials of the session's current event. An
// unscoped or empty scope yields all-zero figures.
//
// net = revenue - purchases - expenses, always, even when negative.
func (s *Service) Summary(sess *session.Session) domain.Summary {
	summary := domain.Summary{
		TotalRevenue:   decimal.Zero,
		TotalPurchases: decimal.Zero,
		TotalExpenses:  decimal.Zero,
		NetResult:      decimal.Zero,
	}

	eventID, ok := sess.CurrentEventID()
	if !ok {
		return summary
	}

	s.mu.RLock()
	for _, sale := range s.sales {
		if sale.EventID == eventID {
			summary.TotalRevenue = summary.TotalRevenue.Add(sale.Total)
		}
	}
	for _, p := range s.purchases {
		if p.EventID == eventID {
			summary.TotalPurchases = summary.TotalPurchases.Add(p.TotalCost)
		}
	}
	for _, e := range s.expenses {
		if e.EventID == eventID {
			summary.TotalExpenses = summary.TotalExpenses.Add(e.Amount)
		}
	}
	s.mu.RUnlock()

	summary.NetResult = summary.TotalRevenue.Sub(summary.TotalPurchases).Sub(summary.TotalExpenses)
	return summary
}

// InventoryRows runs the inference engine over the current scope: catalog,
// scoped purchases, scoped counts and recorded revenue. Always recomputed
// from live state, never cached.
func (s *Service) InventoryRows(sess *session.Session) ([]domain.ProductStatus, error) {
	eventID, ok := sess.CurrentEventID()
	if !ok {
		return []domain.ProductStatus{}, nil
	}

	summary := s.Summary(sess)

	s.mu.RLock()
	products := sortedValues(s.products, func(p domain.Product) string { return p.ID })
	purchases := s.scopedPurchaseRecords(eventID)
	checks := make([]domain.InventoryCheck, 0)
	for _, c := range s.checks {
		if c.EventID == eventID {
			checks = append(checks, c)
		}
	}
	s.mu.RUnlock()

	return s.engine.Evaluate(products, purchases, checks, summary.TotalRevenue, time.Now())
}
