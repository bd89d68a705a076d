package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spsweb/erp-core/internal/stock/domain"
)

var tracer = otel.Tracer("stock-ledger")

// LedgerRepositoryWithTracing wraps a LedgerRepository with tracing
type LedgerRepositoryWithTracing struct {
	inner domain.LedgerRepository
}

func NewLedgerRepositoryWithTracing(inner domain.LedgerRepository) *LedgerRepositoryWithTracing {
	return &LedgerRepositoryWithTracing{inner: inner}
}

func keyAttributes(key domain.BalanceKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("stock.company", key.Company),
		attribute.String("stock.branch", key.Branch),
		attribute.String("stock.warehouse", key.Warehouse),
		attribute.String("stock.item", key.Item),
	}
}

// ApplyLocked with tracing
func (r *LedgerRepositoryWithTracing) ApplyLocked(ctx context.Context, key domain.BalanceKey, fn func(tx domain.LedgerTx) error) error {
	ctx, span := tracer.Start(ctx, "ledger.ApplyLocked",
		trace.WithAttributes(keyAttributes(key)...),
	)
	defer span.End()

	err := r.inner.ApplyLocked(ctx, key, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Balance with tracing
func (r *LedgerRepositoryWithTracing) Balance(ctx context.Context, key domain.BalanceKey) (*domain.StockBalance, error) {
	ctx, span := tracer.Start(ctx, "ledger.Balance",
		trace.WithAttributes(keyAttributes(key)...),
	)
	defer span.End()

	balance, err := r.inner.Balance(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("stock.quantity", balance.Quantity.String()),
		attribute.String("stock.avg_unit_cost", balance.AvgUnitCost.String()),
	)
	return balance, nil
}

// Movements with tracing
func (r *LedgerRepositoryWithTracing) Movements(ctx context.Context, key domain.BalanceKey, limit, offset int) ([]domain.StockMovement, error) {
	ctx, span := tracer.Start(ctx, "ledger.Movements",
		trace.WithAttributes(
			append(keyAttributes(key),
				attribute.Int("query.limit", limit),
				attribute.Int("query.offset", offset),
			)...,
		),
	)
	defer span.End()

	movements, err := r.inner.Movements(ctx, key, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(movements)))
	return movements, nil
}
