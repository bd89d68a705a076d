package query

import (
	"context"

	"github.com/spsweb/erp-core/internal/stock/domain"
)

// GetBalanceQuery represents a balance read for one warehouse/item pair
type GetBalanceQuery struct {
	Company   string
	Branch    string
	Warehouse string
	Item      string
}

// GetBalanceHandler reads the current stock balance
type GetBalanceHandler struct {
	ledger domain.LedgerRepository
}

func NewGetBalanceHandler(ledger domain.LedgerRepository) *GetBalanceHandler {
	return &GetBalanceHandler{ledger: ledger}
}

func (h *GetBalanceHandler) Handle(ctx context.Context, q GetBalanceQuery) (*domain.StockBalance, error) {
	return h.ledger.Balance(ctx, domain.BalanceKey{
		Company:   q.Company,
		Branch:    q.Branch,
		Warehouse: q.Warehouse,
		Item:      q.Item,
	})
}
