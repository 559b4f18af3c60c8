package models

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/outlet_backend/utils"
)

// Batch is one delivered stock lot. RemainingQty only ever decreases; a lot
// is exhausted, never deleted, so expiry history stays auditable.
type Batch struct {
	ID              string          `gorm:"size:36;primary_key" json:"id"` // uuid
	IngredientId    int             `gorm:"index:idx_batch_ing_loc,priority:1;not null" json:"ingredient_id"`
	DeliveryEventId string          `gorm:"size:36;index" json:"delivery_event_id"`
	InitialQty      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"initial_qty"`
	RemainingQty    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"remaining_qty"`
	Location        Location        `gorm:"size:10;index:idx_batch_ing_loc,priority:2;not null" json:"location"`
	ExpiryDate      *time.Time      `json:"expiry_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BatchConsumption records how much of a batch one day's recompute (or a
// mid-day event) drew, so an edit can revert and re-apply the usage-implied
// draw-down idempotently.
type BatchConsumption struct {
	ID            int             `gorm:"primary_key" json:"id"`
	DayId         int             `gorm:"index;not null" json:"day_id"`
	BatchId       string          `gorm:"size:36;index;not null" json:"batch_id"`
	Qty           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	SourceEventId string          `gorm:"size:36;index" json:"source_event_id"` // empty for usage draw-down
	IsUsage       *bool           `gorm:"not null;default:false" json:"is_usage"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type BatchAllocation struct {
	BatchId string
	Qty     decimal.Decimal
}

// GetOpenBatches loads the not-yet-exhausted batches for a pair.
func GetOpenBatches(tx *gorm.DB, ctx context.Context, ingredientId int, location Location) ([]*Batch, error) {
	var batches []*Batch
	err := tx.WithContext(ctx).
		Where("ingredient_id = ? AND location = ? AND remaining_qty > 0", ingredientId, location).
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// SortBatchesFIFO orders lots for consumption: expiry ascending with open
// (nil) expiries last, then creation time, then id for determinism.
func SortBatchesFIFO(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		bi, bj := batches[i], batches[j]
		switch {
		case bi.ExpiryDate == nil && bj.ExpiryDate != nil:
			return false
		case bi.ExpiryDate != nil && bj.ExpiryDate == nil:
			return true
		case bi.ExpiryDate != nil && bj.ExpiryDate != nil && !bi.ExpiryDate.Equal(*bj.ExpiryDate):
			return bi.ExpiryDate.Before(*bj.ExpiryDate)
		}
		if !bi.CreatedAt.Equal(bj.CreatedAt) {
			return bi.CreatedAt.Before(bj.CreatedAt)
		}
		return bi.ID < bj.ID
	})
}

// PlanConsumption draws qty across batches in FIFO order, partial amounts as
// needed. When qty exceeds the total remaining, the shortfall is assigned to
// the last batch (override policy: its remaining may go negative) and is also
// returned so the caller can gate on it. Batches are sorted in place.
func PlanConsumption(batches []*Batch, qty decimal.Decimal) ([]BatchAllocation, decimal.Decimal) {
	SortBatchesFIFO(batches)

	allocations := make([]BatchAllocation, 0, len(batches))
	left := qty
	for _, batch := range batches {
		if !left.IsPositive() {
			break
		}
		draw := decimal.Min(batch.RemainingQty, left)
		if !draw.IsPositive() {
			continue
		}
		allocations = append(allocations, BatchAllocation{BatchId: batch.ID, Qty: draw})
		left = left.Sub(draw)
	}

	if left.IsPositive() && len(allocations) > 0 {
		last := &allocations[len(allocations)-1]
		last.Qty = last.Qty.Add(left)
	}
	return allocations, left
}

// ApplyAllocations decrements remaining quantities and records the draws.
func ApplyAllocations(tx *gorm.DB, dayId int, sourceEventId string, isUsage bool, allocations []BatchAllocation) error {
	for _, allocation := range allocations {
		err := tx.Model(&Batch{}).
			Where("id = ?", allocation.BatchId).
			Update("remaining_qty", gorm.Expr("remaining_qty - ?", allocation.Qty)).Error
		if err != nil {
			return err
		}
		consumption := BatchConsumption{
			DayId:         dayId,
			BatchId:       allocation.BatchId,
			Qty:           allocation.Qty,
			SourceEventId: sourceEventId,
			IsUsage:       &isUsage,
		}
		if err := tx.Create(&consumption).Error; err != nil {
			return err
		}
	}
	return nil
}

// RevertUsageConsumptions adds a day's usage draws back onto their batches
// and deletes the consumption rows. Event-sourced draws (transfers, spoilage)
// are left alone.
func RevertUsageConsumptions(tx *gorm.DB, dayId int) error {
	var consumptions []BatchConsumption
	err := tx.Where("day_id = ? AND is_usage = 1", dayId).Find(&consumptions).Error
	if err != nil {
		return err
	}
	for _, consumption := range consumptions {
		err := tx.Model(&Batch{}).
			Where("id = ?", consumption.BatchId).
			Update("remaining_qty", gorm.Expr("remaining_qty + ?", consumption.Qty)).Error
		if err != nil {
			return err
		}
	}
	return tx.Where("day_id = ? AND is_usage = 1", dayId).Delete(&BatchConsumption{}).Error
}

// BatchExpiryLevel classifies a lot against today. daysToExpiry is negative
// once expired; a nil expiry yields None.
func BatchExpiryLevel(expiryDate *time.Time, today time.Time) (ExpiryLevel, int) {
	if expiryDate == nil {
		return ExpiryLevelNone, 0
	}
	daysToExpiry := utils.DaysBetween(today, *expiryDate)
	switch {
	case daysToExpiry < 0:
		return ExpiryLevelExpired, daysToExpiry
	case daysToExpiry < 3:
		return ExpiryLevelCritical, daysToExpiry
	case daysToExpiry < 7:
		return ExpiryLevelWarning, daysToExpiry
	}
	return ExpiryLevelNone, daysToExpiry
}

func BatchAgeDays(batch *Batch, today time.Time) int {
	return utils.DaysBetween(batch.CreatedAt, today)
}
