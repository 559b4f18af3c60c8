package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryEvent is one row of the append-only per-day ledger. Balances are
// never stored; they are aggregated from events on demand so a recompute is
// idempotent and auditable.
type InventoryEvent struct {
	ID           string    `gorm:"size:36;primary_key" json:"id"` // uuid
	DayId        int       `gorm:"index:idx_inv_event_day_ing_loc,priority:1;not null" json:"day_id"`
	IngredientId int       `gorm:"index:idx_inv_event_day_ing_loc,priority:2;not null" json:"ingredient_id"`
	Location     Location  `gorm:"size:10;index:idx_inv_event_day_ing_loc,priority:3;not null" json:"location"`
	Kind         EventKind `gorm:"size:20;not null" json:"kind"`

	// ToLocation is set for transfers only; the aggregation subtracts Qty at
	// Location and adds it at ToLocation.
	ToLocation Location `gorm:"size:10" json:"to_location,omitempty"`

	// Qty is non-negative for every kind except Adjustment, which carries
	// its sign.
	Qty      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`

	Reason SpoilageReason `gorm:"size:20" json:"reason,omitempty"`
	Note   string         `gorm:"size:500" json:"note,omitempty"`

	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// GetDayEvents loads the full ledger of one day in append order.
func GetDayEvents(tx *gorm.DB, ctx context.Context, dayId int) ([]InventoryEvent, error) {
	var events []InventoryEvent
	err := tx.WithContext(ctx).
		Where("day_id = ?", dayId).
		Order("created_at, id").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteClosingSnapshots removes a day's closing-snapshot rows; an edit of a
// closed day replaces them wholesale before recomputing.
func DeleteClosingSnapshots(tx *gorm.DB, dayId int) error {
	return tx.Where("day_id = ? AND kind = ?", dayId, EventKindClosingSnapshot).
		Delete(&InventoryEvent{}).Error
}

// ExpectedClosing aggregates one (ingredient, location) pair:
// opening + deliveries + transfers_in - transfers_out - spoilage + adjustments.
func ExpectedClosing(events []InventoryEvent, ingredientId int, location Location) decimal.Decimal {
	total := decimal.Zero
	for _, event := range events {
		if event.IngredientId != ingredientId {
			continue
		}
		switch event.Kind {
		case EventKindOpeningSnapshot, EventKindDelivery:
			if event.Location == location {
				total = total.Add(event.Qty)
			}
		case EventKindTransfer:
			if event.Location == location {
				total = total.Sub(event.Qty)
			}
			if event.ToLocation == location {
				total = total.Add(event.Qty)
			}
		case EventKindSpoilage:
			if event.Location == location {
				total = total.Sub(event.Qty)
			}
		case EventKindAdjustment:
			if event.Location == location {
				total = total.Add(event.Qty)
			}
		}
	}
	return total
}

// ActualClosing returns the last closing-snapshot value for the pair.
func ActualClosing(events []InventoryEvent, ingredientId int, location Location) (decimal.Decimal, bool) {
	value := decimal.Zero
	found := false
	for _, event := range events {
		if event.Kind == EventKindClosingSnapshot &&
			event.IngredientId == ingredientId &&
			event.Location == location {
			value = event.Qty
			found = true
		}
	}
	return value, found
}

// OpeningQty returns the opening-snapshot value for the pair.
func OpeningQty(events []InventoryEvent, ingredientId int, location Location) (decimal.Decimal, bool) {
	for _, event := range events {
		if event.Kind == EventKindOpeningSnapshot &&
			event.IngredientId == ingredientId &&
			event.Location == location {
			return event.Qty, true
		}
	}
	return decimal.Zero, false
}

// HasOpeningSnapshot reports whether the day has any opening rows at all.
func HasOpeningSnapshot(events []InventoryEvent) bool {
	for _, event := range events {
		if event.Kind == EventKindOpeningSnapshot {
			return true
		}
	}
	return false
}

// UsageByIngredient computes day-level usage per ingredient, summed over both
// locations (transfers cancel out): usage = expectedClosing - actualClosing.
// Usage may be negative; it is never rejected here, only scored later.
func UsageByIngredient(events []InventoryEvent) map[int]decimal.Decimal {
	ingredientIds := make(map[int]struct{})
	for _, event := range events {
		ingredientIds[event.IngredientId] = struct{}{}
	}

	usage := make(map[int]decimal.Decimal, len(ingredientIds))
	for ingredientId := range ingredientIds {
		total := decimal.Zero
		counted := false
		for _, location := range AllLocations {
			expected := ExpectedClosing(events, ingredientId, location)
			actual, ok := ActualClosing(events, ingredientId, location)
			if !ok {
				continue
			}
			counted = true
			total = total.Add(expected.Sub(actual))
		}
		if counted {
			usage[ingredientId] = total
		}
	}
	return usage
}

// CurrentBalance is the running balance for a pair considering every event so
// far, closing snapshots excluded. Used for transfer/spoilage stock checks.
func CurrentBalance(events []InventoryEvent, ingredientId int, location Location) decimal.Decimal {
	return ExpectedClosing(events, ingredientId, location)
}
