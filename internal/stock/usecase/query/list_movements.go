package query

import (
	"context"

	"github.com/spsweb/erp-core/internal/stock/domain"
)

// ListMovementsQuery represents a movement history read, newest first
type ListMovementsQuery struct {
	Company   string
	Branch    string
	Warehouse string
	Item      string
	Limit     int
	Offset    int
}

// ListMovementsHandler lists the movement audit trail for one key
type ListMovementsHandler struct {
	ledger domain.LedgerRepository
}

func NewListMovementsHandler(ledger domain.LedgerRepository) *ListMovementsHandler {
	return &ListMovementsHandler{ledger: ledger}
}

func (h *ListMovementsHandler) Handle(ctx context.Context, q ListMovementsQuery) ([]domain.StockMovement, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	return h.ledger.Movements(ctx, domain.BalanceKey{
		Company:   q.Company,
		Branch:    q.Branch,
		Warehouse: q.Warehouse,
		Item:      q.Item,
	}, limit, q.Offset)
}
