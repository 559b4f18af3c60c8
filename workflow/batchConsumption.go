package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
	"bitbucket.org/mmdatafocus/outlet_backend/models"
	"bitbucket.org/mmdatafocus/outlet_backend/utils"
)

// FIFO lot bookkeeping layered on delivery events. Consumption is planned
// over the sorted open lots and applied under the same day lock as the
// triggering ledger write, so remaining quantities are never double-allocated.

// CreateBatchForDelivery creates exactly one batch per delivery event.
func CreateBatchForDelivery(tx *gorm.DB, event *models.InventoryEvent, expiryDate *time.Time) (*models.Batch, error) {
	batch := models.Batch{
		ID:              uuid.NewString(),
		IngredientId:    event.IngredientId,
		DeliveryEventId: event.ID,
		InitialQty:      event.Qty,
		RemainingQty:    event.Qty,
		Location:        event.Location,
		ExpiryDate:      expiryDate,
	}
	if err := tx.Create(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// ConsumeFIFO draws qty from the open lots of (ingredient, location) in FIFO
// order and records the draw against the source event. The shortfall (if the
// request exceeded total remaining) is returned for the caller's override
// gate; planning already assigned it to the last drawn lot.
func ConsumeFIFO(tx *gorm.DB, logger *logrus.Logger, ctx context.Context, dayId int, sourceEventId string, ingredientId int, location models.Location, qty decimal.Decimal) ([]models.BatchAllocation, decimal.Decimal, error) {
	batches, err := models.GetOpenBatches(tx, ctx, ingredientId, location)
	if err != nil {
		config.LogError(logger, "batchConsumption.go", "ConsumeFIFO", "GetOpenBatches", ingredientId, err)
		return nil, decimal.Zero, err
	}

	allocations, shortfall := models.PlanConsumption(batches, qty)
	if err := models.ApplyAllocations(tx, dayId, sourceEventId, false, allocations); err != nil {
		config.LogError(logger, "batchConsumption.go", "ConsumeFIFO", "ApplyAllocations", allocations, err)
		return nil, decimal.Zero, err
	}
	return allocations, shortfall, nil
}

// ApplyUsageDrawDown consumes each ingredient's positive derived usage from
// the open lots: kitchen first, then storage. Prior usage draws for the day
// are reverted first so a close-edit-close sequence stays idempotent.
// Negative usage never draws.
func ApplyUsageDrawDown(tx *gorm.DB, logger *logrus.Logger, ctx context.Context, dayId int, usage map[int]decimal.Decimal) error {
	if err := models.RevertUsageConsumptions(tx, dayId); err != nil {
		config.LogError(logger, "batchConsumption.go", "ApplyUsageDrawDown", "RevertUsageConsumptions", dayId, err)
		return err
	}

	ingredientIds := make([]int, 0, len(usage))
	for ingredientId := range usage {
		ingredientIds = append(ingredientIds, ingredientId)
	}
	sort.Ints(ingredientIds)

	for _, ingredientId := range ingredientIds {
		left := usage[ingredientId]
		if !left.IsPositive() {
			continue
		}

		for _, location := range []models.Location{models.LocationKitchen, models.LocationStorage} {
			if !left.IsPositive() {
				break
			}
			batches, err := models.GetOpenBatches(tx, ctx, ingredientId, location)
			if err != nil {
				config.LogError(logger, "batchConsumption.go", "ApplyUsageDrawDown", "GetOpenBatches", ingredientId, err)
				return err
			}
			if len(batches) == 0 {
				continue
			}

			totalRemaining := decimal.Zero
			for _, batch := range batches {
				totalRemaining = totalRemaining.Add(batch.RemainingQty)
			}

			draw := decimal.Min(left, totalRemaining)
			if location == models.LocationStorage {
				// Last location in the order: the whole remainder lands
				// here, overshooting the final lot if the day used more
				// than the lots held.
				draw = left
			}

			allocations, _ := models.PlanConsumption(batches, draw)
			if err := models.ApplyAllocations(tx, dayId, "", true, allocations); err != nil {
				config.LogError(logger, "batchConsumption.go", "ApplyUsageDrawDown", "ApplyAllocations", allocations, err)
				return err
			}
			left = left.Sub(draw)
		}
	}
	return nil
}

// ExpiryAlert is a batch-derived, transient view; nothing is persisted.
type ExpiryAlert struct {
	BatchId      string             `json:"batch_id"`
	IngredientId int                `json:"ingredient_id"`
	Location     models.Location    `json:"location"`
	RemainingQty decimal.Decimal    `json:"remaining_qty"`
	ExpiryDate   *time.Time         `json:"expiry_date"`
	Level        models.ExpiryLevel `json:"level"`
	DaysToExpiry int                `json:"days_to_expiry"`
	AgeDays      int                `json:"age_days"`
}

// GetExpiryAlerts lists open lots already expired or expiring within
// daysAhead, most urgent first.
func GetExpiryAlerts(ctx context.Context, daysAhead int) ([]ExpiryAlert, error) {
	db := config.GetDB()
	today := utils.NormalizeDate(time.Now())

	var batches []*models.Batch
	err := db.WithContext(ctx).
		Where("remaining_qty > 0 AND expiry_date IS NOT NULL").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}

	alerts := make([]ExpiryAlert, 0, len(batches))
	for _, batch := range batches {
		level, daysToExpiry := models.BatchExpiryLevel(batch.ExpiryDate, today)
		if daysToExpiry > daysAhead {
			continue
		}
		alerts = append(alerts, ExpiryAlert{
			BatchId:      batch.ID,
			IngredientId: batch.IngredientId,
			Location:     batch.Location,
			RemainingQty: batch.RemainingQty,
			ExpiryDate:   batch.ExpiryDate,
			Level:        level,
			DaysToExpiry: daysToExpiry,
			AgeDays:      models.BatchAgeDays(batch, today),
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].DaysToExpiry != alerts[j].DaysToExpiry {
			return alerts[i].DaysToExpiry < alerts[j].DaysToExpiry
		}
		return alerts[i].BatchId < alerts[j].BatchId
	})
	return alerts, nil
}
