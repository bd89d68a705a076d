package kafka

import (
	"time"

	"github.com/spsweb/erp-core/internal/stock/domain"
)

// Topics
const (
	TopicMovementApplied = "stock.movement.applied"
)

// Event types
const (
	EventTypeMovementApplied = "stock.movement.applied"
)

// MovementAppliedEvent is emitted after a stock movement commits
type MovementAppliedEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	Slug       string    `json:"slug"`
	MovementID string    `json:"movement_id"`
	Company    string    `json:"company"`
	Branch     string    `json:"branch"`
	Warehouse  string    `json:"warehouse"`
	Item       string    `json:"item"`
	Direction  string    `json:"direction"`
	Quantity   string    `json:"quantity"`
	UnitCost   string    `json:"unit_cost"`
	TotalCost  string    `json:"total_cost"`
	Actor      string    `json:"actor,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	LotNumber  *int64    `json:"lot_number,omitempty"`
}

// NewMovementAppliedEvent builds the event payload for a committed movement
func NewMovementAppliedEvent(slug string, m *domain.StockMovement) MovementAppliedEvent {
	return MovementAppliedEvent{
		Slug:       slug,
		MovementID: m.ID,
		Company:    m.Company,
		Branch:     m.Branch,
		Warehouse:  m.Warehouse,
		Item:       m.Item,
		Direction:  string(m.Direction),
		Quantity:   m.Quantity.String(),
		UnitCost:   m.UnitCost.String(),
		TotalCost:  m.TotalCost.String(),
		Actor:      m.Actor,
		Reference:  m.Reference,
		LotNumber:  m.LotNumber,
	}
}
