package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	lotdomain "github.com/spsweb/erp-core/internal/lot/domain"
	seqdomain "github.com/spsweb/erp-core/internal/sequence/domain"
	seqrepo "github.com/spsweb/erp-core/internal/sequence/repository"
	"github.com/spsweb/erp-core/internal/stock/domain"
)

// MemoryLedgerRepository keeps the ledger in process memory. Used by tests;
// it reproduces the database semantics: a per-key lock serializes balance
// mutations, and everything staged inside ApplyLocked commits atomically or
// not at all.
type MemoryLedgerRepository struct {
	mu        sync.Mutex
	locks     map[domain.BalanceKey]*sync.Mutex
	balances  map[domain.BalanceKey]domain.StockBalance
	movements []domain.StockMovement
	history   []domain.MovementHistory
	lots      map[string][]*lotdomain.Lot // company/branch/product -> lots
	sequences *seqrepo.MemorySequenceRepository
}

func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{
		locks:     make(map[domain.BalanceKey]*sync.Mutex),
		balances:  make(map[domain.BalanceKey]domain.StockBalance),
		lots:      make(map[string][]*lotdomain.Lot),
		sequences: seqrepo.NewMemorySequenceRepository(),
	}
}

func (r *MemoryLedgerRepository) keyLock(key domain.BalanceKey) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

func lotKey(company, branch, product string) string {
	return company + "/" + branch + "/" + product
}

type memoryLedgerTx struct {
	repo    *MemoryLedgerRepository
	key     domain.BalanceKey
	balance domain.StockBalance

	stagedBalance   *domain.StockBalance
	stagedMovements []domain.StockMovement
	stagedHistory   []domain.MovementHistory
	stagedLots      []lotdomain.Lot
}

func (t *memoryLedgerTx) Balance() *domain.StockBalance {
	return &t.balance
}

func (t *memoryLedgerTx) UpdateBalance(b *domain.StockBalance) error {
	staged := *b
	t.stagedBalance = &staged
	return nil
}

func (t *memoryLedgerTx) InsertMovement(m *domain.StockMovement) error {
	t.stagedMovements = append(t.stagedMovements, *m)
	return nil
}

func (t *memoryLedgerTx) InsertHistory(h *domain.MovementHistory) error {
	t.stagedHistory = append(t.stagedHistory, *h)
	return nil
}

func (t *memoryLedgerTx) NextSequence(scope seqdomain.Scope) (int64, error) {
	return t.repo.sequences.Next(context.Background(), t.key.Company, t.key.Branch, scope)
}

func (t *memoryLedgerTx) ActiveLots(product string) ([]*lotdomain.Lot, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	stored := t.repo.lots[lotKey(t.key.Company, t.key.Branch, product)]
	out := make([]*lotdomain.Lot, 0, len(stored))
	for _, l := range stored {
		if l.Active {
			copied := *l
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (t *memoryLedgerTx) SaveLot(l *lotdomain.Lot) error {
	t.stagedLots = append(t.stagedLots, *l)
	return nil
}

func (t *memoryLedgerTx) commit() {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	if t.stagedBalance != nil {
		t.repo.balances[t.key] = *t.stagedBalance
	}
	t.repo.movements = append(t.repo.movements, t.stagedMovements...)
	t.repo.history = append(t.repo.history, t.stagedHistory...)
	for i := range t.stagedLots {
		staged := t.stagedLots[i]
		key := lotKey(staged.Company, staged.Branch, staged.Product)
		replaced := false
		for _, existing := range t.repo.lots[key] {
			if existing.Number == staged.Number {
				*existing = staged
				replaced = true
				break
			}
		}
		if !replaced {
			copied := staged
			t.repo.lots[key] = append(t.repo.lots[key], &copied)
		}
	}
}

func (r *MemoryLedgerRepository) ApplyLocked(ctx context.Context, key domain.BalanceKey, fn func(tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := r.keyLock(key)
	l.Lock()
	defer l.Unlock()

	r.mu.Lock()
	balance, ok := r.balances[key]
	r.mu.Unlock()
	if !ok {
		balance = domain.StockBalance{
			Company:     key.Company,
			Branch:      key.Branch,
			Warehouse:   key.Warehouse,
			Item:        key.Item,
			Quantity:    decimal.Zero,
			AvgUnitCost: decimal.Zero,
		}
	}

	tx := &memoryLedgerTx{repo: r, key: key, balance: balance}
	if err := fn(tx); err != nil {
		// Discard staged writes: nothing partial ever lands.
		return err
	}
	tx.commit()
	return nil
}

func (r *MemoryLedgerRepository) Balance(ctx context.Context, key domain.BalanceKey) (*domain.StockBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	balance, ok := r.balances[key]
	if !ok {
		balance = domain.StockBalance{
			Company:     key.Company,
			Branch:      key.Branch,
			Warehouse:   key.Warehouse,
			Item:        key.Item,
			Quantity:    decimal.Zero,
			AvgUnitCost: decimal.Zero,
		}
	}
	return &balance, nil
}

func (r *MemoryLedgerRepository) Movements(ctx context.Context, key domain.BalanceKey, limit, offset int) ([]domain.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []domain.StockMovement
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if m.Company == key.Company && m.Branch == key.Branch &&
			m.Warehouse == key.Warehouse && m.Item == key.Item {
			matched = append(matched, m)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// HistoryCount returns the number of recorded history rows
func (r *MemoryLedgerRepository) HistoryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// Lots returns a copy of the lots stored for a product
func (r *MemoryLedgerRepository) Lots(company, branch, product string) []lotdomain.Lot {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.lots[lotKey(company, branch, product)]
	out := make([]lotdomain.Lot, 0, len(stored))
	for _, l := range stored {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
