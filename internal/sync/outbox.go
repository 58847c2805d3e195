package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"barcaixa/internal/domain"
	"barcaixa/internal/store"
	"barcaixa/internal/xid"
)

type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionUpsert Action = "upsert"
)

const (
	EntityProduct        = "product"
	EntitySupplier       = "supplier"
	EntityEvent          = "event"
	EntityUser           = "user"
	EntityPurchase       = "purchase"
	EntitySale           = "sale"
	EntityExpense        = "expense"
	EntityInventoryCheck = "inventory_check"
)

// Op is one remote mutation awaiting delivery. Seq preserves issuance order
// across journal round-trips; Key is the record id (product_id|event_id for
// inventory checks).
type Op struct {
	ID       string          `json:"id"`
	Seq      int64           `json:"seq"`
	Entity   string          `json:"entity"`
	Action   Action          `json:"action"`
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Attempts int             `json:"attempts"`
}

func sortOps(ops []Op) {
	slices.SortFunc(ops, func(a, b Op) int {
		return int(a.Seq - b.Seq)
	})
}

// Outbox forwards local mutations to the remote store in issuance order.
// Delivery is best-effort: a failed op is retried a bounded number of times
// and then dropped with an error log. Local state is never rolled back.
type Outbox struct {
	remote     store.RemoteStore
	journal    Journal
	log        *zap.SugaredLogger
	interval   time.Duration
	maxRetries int

	mu    stdsync.Mutex
	queue []Op
	seq   int64
	wake  chan struct{}
}

func New(remote store.RemoteStore, journal Journal, log *zap.SugaredLogger, interval time.Duration, maxRetries int) *Outbox {
	if journal == nil {
		journal = NoopJournal{}
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if maxRetries < 1 {
		maxRetries = 5
	}
	return &Outbox{
		remote:     remote,
		journal:    journal,
		log:        log,
		interval:   interval,
		maxRetries: maxRetries,
		wake:       make(chan struct{}, 1),
	}
}

// NewOp builds an op for the given record. Delete ops carry no payload.
func NewOp(entity string, action Action, key string, record any) (Op, error) {
	op := Op{ID: xid.New("op"), Entity: entity, Action: action, Key: key}
	if record != nil {
		payload, err := json.Marshal(record)
		if err != nil {
			return Op{}, err
		}
		op.Payload = payload
	}
	return op, nil
}

// Enqueue appends the op to the delivery queue and journals it. Callers do
// not wait for delivery.
func (o *Outbox) Enqueue(ctx context.Context, op Op) {
	o.mu.Lock()
	o.seq++
	op.Seq = o.seq
	o.queue = append(o.queue, op)
	o.mu.Unlock()

	if err := o.journal.Append(ctx, op); err != nil {
		o.log.Warnw("journal append failed", "op", op.ID, "entity", op.Entity, "err", err)
	}

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Restore re-enqueues journaled ops left over from a previous run.
func (o *Outbox) Restore(ctx context.Context) error {
	pending, err := o.journal.Pending(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, op := range pending {
		o.seq++
		op.Seq = o.seq
		op.Attempts = 0
		o.queue = append(o.queue, op)
	}
	if len(pending) > 0 {
		o.log.Infow("restored unsynced ops from journal", "count", len(pending))
	}
	return nil
}

// Run drains the queue until ctx is done.
func (o *Outbox) Run(ctx context.Context) {
	for {
		o.Flush(ctx)
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
		case <-time.After(o.interval):
		}
	}
}

// Flush attempts delivery of every queued op once, in order. Failed ops are
// requeued until their retry budget is spent.
func (o *Outbox) Flush(ctx context.Context) {
	o.mu.Lock()
	batch := o.queue
	o.queue = nil
	o.mu.Unlock()

	for _, op := range batch {
		if err := o.apply(ctx, op); err != nil {
			op.Attempts++
			if op.Attempts >= o.maxRetries {
				o.log.Errorw("remote sync gave up, local state kept",
					"op", op.ID, "entity", op.Entity, "action", op.Action, "key", op.Key, "err", err)
				if jerr := o.journal.Remove(ctx, op.ID); jerr != nil {
					o.log.Warnw("journal remove failed", "op", op.ID, "err", jerr)
				}
				continue
			}
			o.log.Warnw("remote sync failed, will retry",
				"op", op.ID, "entity", op.Entity, "attempt", op.Attempts, "err", err)
			o.mu.Lock()
			o.queue = append(o.queue, op)
			o.mu.Unlock()
			continue
		}
		if err := o.journal.Remove(ctx, op.ID); err != nil {
			o.log.Warnw("journal remove failed", "op", op.ID, "err", err)
		}
	}
}

// PendingCount reports queued, undelivered ops.
func (o *Outbox) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *Outbox) apply(ctx context.Context, op Op) error {
	switch op.Entity {
	case EntityProduct:
		var p domain.Product
		switch op.Action {
		case ActionInsert:
			if err := json.Unmarshal(op.Payload, &p); err != nil {
				return err
			}
			return o.remote.InsertProduct(ctx, p)
		case ActionUpdate:
			if err := json.Unmarshal(op.Payload, &p); err != nil {
				return err
			}
			return o.remote.UpdateProduct(ctx, p)
		case ActionDelete:
			return o.remote.DeleteProduct(ctx, op.Key)
		}
	case EntitySupplier:
		var s domain.Supplier
		switch op.Action {
		case ActionInsert:
			if err := json.Unmarshal(op.Payload, &s); err != nil {
				return err
			}
			return o.remote.InsertSupplier(ctx, s)
		case ActionUpdate:
			if err := json.Unmarshal(op.Payload, &s); err != nil {
				return err
			}
			return o.remote.UpdateSupplier(ctx, s)
		case ActionDelete:
			return o.remote.DeleteSupplier(ctx, op.Key)
		}
	case EntityEvent:
		var e domain.Event
		switch op.Action {
		case ActionInsert:
			if err := json.Unmarshal(op.Payload, &e); err != nil {
				return err
			}
			return o.remote.InsertEvent(ctx, e)
		case ActionUpdate:
			if err := json.Unmarshal(op.Payload, &e); err != nil {
				return err
			}
			return o.remote.UpdateEvent(ctx, e)
		case ActionDelete:
			return o.remote.DeleteEvent(ctx, op.Key)
		}
	case EntityUser:
		var u userPayload
		switch op.Action {
		case ActionInsert:
			if err := json.Unmarshal(op.Payload, &u); err != nil {
				return err
			}
			return o.remote.InsertUser(ctx, u.Account())
		case ActionUpdate:
			if err := json.Unmarshal(op.Payload, &u); err != nil {
				return err
			}
			return o.remote.UpdateUser(ctx, u.Account())
		case ActionDelete:
			return o.remote.DeleteUser(ctx, op.Key)
		}
	case EntityPurchase:
		var p domain.Purchase
		switch op.Action {
		case ActionInsert:
			if err := json.Unmarshal(op.Payload, &p); err != nil {
				return err
			}
			return o.remote.InsertPurchase(ctx, p)
		case ActionDelete:
			return o.remote.DeletePurchase(ctx, op.Key)
		}
	case EntitySale:
		var s domain.SaleRecord
		switch op.Action {
		case ActionInsert:
			if err := json.Unmarshal(op.Payload, &s); err != nil {
				return err
			}
			return o.remote.InsertSale(ctx, s)
		case ActionDelete:
			return o.remote.DeleteSale(ctx, op.Key)
		}
	case EntityExpense:
		var e domain.Expense
		switch op.Action {
		case ActionInsert:
			if err := json.Unmarshal(op.Payload, &e); err != nil {
				return err
			}
			return o.remote.InsertExpense(ctx, e)
		case ActionDelete:
			return o.remote.DeleteExpense(ctx, op.Key)
		}
	case EntityInventoryCheck:
		switch op.Action {
		case ActionUpsert:
			var c domain.InventoryCheck
			if err := json.Unmarshal(op.Payload, &c); err != nil {
				return err
			}
			return o.remote.UpsertInventoryCheck(ctx, c)
		case ActionDelete:
			productID, eventID, ok := strings.Cut(op.Key, "|")
			if !ok {
				return fmt.Errorf("malformed inventory check key %q", op.Key)
			}
			return o.remote.DeleteInventoryCheck(ctx, productID, eventID)
		}
	}
	return fmt.Errorf("unsupported op %s/%s", op.Entity, op.Action)
}

// CheckKey builds the composite outbox key for an inventory check.
func CheckKey(productID string, eventID string) string {
	return productID + "|" + eventID
}

// userPayload exists because domain.UserAccount hides the credential from
// JSON; the outbox must carry it to the remote store.
type userPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (u userPayload) Account() domain.UserAccount {
	return domain.UserAccount{ID: u.ID, Name: u.Name, Username: u.Username, Password: u.Password, Role: u.Role}
}

// UserOp wraps a user account for enqueueing, keeping the credential.
func UserOp(action Action, u domain.UserAccount) (Op, error) {
	return NewOp(EntityUser, action, u.ID, userPayload{
		ID: u.ID, Name: u.Name, Username: u.Username, Password: u.Password, Role: u.Role,
	})
}
