package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	lotdomain "github.com/spsweb/erp-core/internal/lot/domain"
	"github.com/spsweb/erp-core/internal/params"
	paramsdomain "github.com/spsweb/erp-core/internal/params/domain"
	seqdomain "github.com/spsweb/erp-core/internal/sequence/domain"
	"github.com/spsweb/erp-core/internal/stock/domain"
	"github.com/spsweb/erp-core/pkg/database"
	"github.com/spsweb/erp-core/pkg/logger"
	"github.com/spsweb/erp-core/pkg/metrics"
)

// ApplyMovementCommand represents one stock movement to apply
type ApplyMovementCommand struct {
	Company   string
	Branch    string
	Warehouse string
	Item      string
	Direction domain.Direction
	Quantity  decimal.Decimal
	// UnitCost is required on inbound movements; an outbound without it
	// records the pre-movement average cost.
	UnitCost  *decimal.Decimal
	Actor     string
	Reference string
}

// ApplyMovementHandler validates and applies a single stock movement against
// the ledger: balance mutation, weighted-average costing, audit trail and
// optional lot allocation, all inside one locked transaction.
type ApplyMovementHandler struct {
	ledger domain.LedgerRepository
	params *params.Service
	now    func() time.Time
}

func NewApplyMovementHandler(ledger domain.LedgerRepository, params *params.Service) *ApplyMovementHandler {
	return &ApplyMovementHandler{ledger: ledger, params: params, now: time.Now}
}

// Handle applies the movement. A transient transaction conflict is retried
// once before surfacing as ErrMovementConflict.
func (h *ApplyMovementHandler) Handle(ctx context.Context, cmd ApplyMovementCommand) (*domain.StockMovement, error) {
	movement, err := h.apply(ctx, cmd)
	if err != nil && database.IsRetryable(err) {
		logger.Warn(ctx).
			Err(err).
			Str("item", cmd.Item).
			Msg("Movement transaction conflict, retrying once")
		movement, err = h.apply(ctx, cmd)
		if err != nil && database.IsRetryable(err) {
			err = fmt.Errorf("%w: %v", domain.ErrMovementConflict, err)
		}
	}

	result := "applied"
	if err != nil {
		result = "failed"
	}
	metrics.MovementsTotal.WithLabelValues(string(cmd.Direction), result).Inc()
	return movement, err
}

func (h *ApplyMovementHandler) apply(ctx context.Context, cmd ApplyMovementCommand) (*domain.StockMovement, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, domain.ErrInvalidQuantity
	}
	if cmd.Direction != domain.DirectionIn && cmd.Direction != domain.DirectionOut {
		return nil, domain.ErrInvalidDirection
	}
	// A zero-valued receipt would silently dilute the weighted average, so
	// inbound movements must state their cost.
	if cmd.Direction == domain.DirectionIn && cmd.UnitCost == nil {
		return nil, domain.ErrUnitCostRequired
	}

	stockControl, err := h.params.GetBool(ctx, cmd.Company, cmd.Branch, paramsdomain.KeyStockControlEnabled)
	if err != nil {
		return nil, err
	}
	allowNegative, err := h.params.GetBool(ctx, cmd.Company, cmd.Branch, paramsdomain.KeyAllowNegativeStock)
	if err != nil {
		return nil, err
	}
	lotTracking, err := h.params.GetBool(ctx, cmd.Company, cmd.Branch, paramsdomain.KeyLotTrackingEnabled)
	if err != nil {
		return nil, err
	}

	key := domain.BalanceKey{
		Company:   cmd.Company,
		Branch:    cmd.Branch,
		Warehouse: cmd.Warehouse,
		Item:      cmd.Item,
	}

	var movement *domain.StockMovement
	err = h.ledger.ApplyLocked(ctx, key, func(tx domain.LedgerTx) error {
		balance := tx.Balance()

		unitCost := decimal.Zero
		if cmd.UnitCost != nil {
			unitCost = *cmd.UnitCost
		} else if cmd.Direction == domain.DirectionOut {
			// Outbound with no caller cost is valued at the current
			// average, captured before any mutation.
			unitCost = balance.AvgUnitCost
		}
		if unitCost.IsNegative() {
			return fmt.Errorf("unit cost must not be negative")
		}

		if stockControl {
			switch cmd.Direction {
			case domain.DirectionOut:
				if !allowNegative && balance.Quantity.LessThan(cmd.Quantity) {
					return domain.ErrInsufficientStock
				}
				balance.Quantity = balance.Quantity.Sub(cmd.Quantity)
				// avg_unit_cost never changes on the way out.
			case domain.DirectionIn:
				balance.AvgUnitCost = domain.WeightedAverage(*balance, cmd.Quantity, unitCost)
				balance.Quantity = balance.Quantity.Add(cmd.Quantity)
			}
			if err := tx.UpdateBalance(balance); err != nil {
				return err
			}
		}
		// With stock control off the balance is untouched and the movement
		// is recorded as a ledger no-op. Deliberate policy branch.

		movement = &domain.StockMovement{
			ID:         uuid.NewString(),
			Company:    cmd.Company,
			Branch:     cmd.Branch,
			Warehouse:  cmd.Warehouse,
			Item:       cmd.Item,
			Direction:  cmd.Direction,
			Quantity:   cmd.Quantity,
			UnitCost:   unitCost,
			TotalCost:  cmd.Quantity.Mul(unitCost).Round(2),
			Actor:      cmd.Actor,
			Reference:  cmd.Reference,
			OccurredAt: h.now(),
		}

		if stockControl && lotTracking {
			if err := h.trackLots(tx, cmd, movement, unitCost, allowNegative); err != nil {
				return err
			}
		}

		if err := tx.InsertMovement(movement); err != nil {
			return err
		}
		return tx.InsertHistory(&domain.MovementHistory{
			MovementID: movement.ID,
			Company:    movement.Company,
			Branch:     movement.Branch,
			Warehouse:  movement.Warehouse,
			Item:       movement.Item,
			Direction:  movement.Direction,
			Quantity:   movement.Quantity,
			UnitCost:   movement.UnitCost,
			Actor:      movement.Actor,
			Reference:  movement.Reference,
			OccurredAt: movement.OccurredAt,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Str("movement_id", movement.ID).
		Str("item", cmd.Item).
		Str("warehouse", cmd.Warehouse).
		Str("direction", string(cmd.Direction)).
		Str("quantity", cmd.Quantity.String()).
		Msg("Stock movement applied")
	return movement, nil
}

func (h *ApplyMovementHandler) trackLots(tx domain.LedgerTx, cmd ApplyMovementCommand, movement *domain.StockMovement, unitCost decimal.Decimal, allowNegative bool) error {
	switch cmd.Direction {
	case domain.DirectionIn:
		number, err := tx.NextSequence(seqdomain.Scope{Type: seqdomain.ScopeLot, Qualifier: cmd.Item})
		if err != nil {
			return err
		}
		movement.LotNumber = &number
		return tx.SaveLot(&lotdomain.Lot{
			Company:  cmd.Company,
			Branch:   cmd.Branch,
			Product:  cmd.Item,
			Number:   number,
			UnitCost: unitCost,
			Balance:  cmd.Quantity,
			Active:   true,
		})
	case domain.DirectionOut:
		lots, err := tx.ActiveLots(cmd.Item)
		if err != nil {
			return err
		}
		touched, err := lotdomain.Consume(lots, cmd.Quantity, allowNegative)
		if err != nil {
			return err
		}
		for _, l := range touched {
			if err := tx.SaveLot(l); err != nil {
				return err
			}
		}
	}
	return nil
}
