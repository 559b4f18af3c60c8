package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
	"bitbucket.org/mmdatafocus/outlet_backend/models"
	"bitbucket.org/mmdatafocus/outlet_backend/utils"
)

// Mid-day ledger writers. Every writer acquires the day lock, runs inside one
// transaction against the currently open day, and appends exactly one event
// row; balances stay derived.

// requireOpenDay loads the open day inside the caller's transaction.
func requireOpenDay(tx *gorm.DB, ctx context.Context) (*models.BusinessDay, error) {
	day, err := models.GetOpenBusinessDay(tx, ctx)
	if err != nil {
		return nil, err
	}
	if day == nil {
		return nil, models.ErrInvalidStateTransition
	}
	return day, nil
}

// lockOpenDay locates the open day and takes its lock before any transaction
// starts. The ordering matters: a transaction's consistent snapshot is pinned
// at its first read, so the lock must be held before that read or a writer
// blocked on the lock would still see pre-lock balances and lot quantities.
// Callers re-read the day inside the transaction and check it is still the
// locked date.
func lockOpenDay(ctx context.Context) (time.Time, func(), error) {
	db := config.GetDB()
	day, err := models.GetOpenBusinessDay(db, ctx)
	if err != nil {
		return time.Time{}, nil, err
	}
	if day == nil {
		return time.Time{}, nil, models.ErrInvalidStateTransition
	}
	release, err := AcquireDayLock(ctx, day.Date)
	if err != nil {
		return time.Time{}, nil, err
	}
	return day.Date, release, nil
}

// checkQty enforces the shared quantity rules: non-negative (unless the kind
// allows a sign) and whole numbers for count-type ingredients.
func checkQty(ingredient *models.Ingredient, qty decimal.Decimal, allowNegative bool) error {
	if !allowNegative && qty.IsNegative() {
		return models.ErrNegativeQuantity
	}
	if ingredient.UnitType == models.UnitTypeCount && !utils.IsWholeNumber(qty) {
		return models.ErrNonIntegerCount
	}
	return nil
}

type DeliveryInput struct {
	IngredientId int             `json:"ingredient_id" validate:"required"`
	Location     models.Location `json:"location" validate:"required"`
	Qty          decimal.Decimal `json:"qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	Note         string          `json:"note"`
}

// RecordDelivery appends a delivery event and opens exactly one stock lot for
// it.
func RecordDelivery(ctx context.Context, input *DeliveryInput) (*models.InventoryEvent, error) {
	logger := config.GetLogger()
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Location.Valid() {
		return nil, fmt.Errorf("invalid location %q", input.Location)
	}
	if !input.Qty.IsPositive() {
		return nil, models.ErrNonPositiveQuantity
	}
	if input.UnitCost.IsNegative() {
		return nil, models.ErrNegativeQuantity
	}

	ingredient, err := utils.FetchModel[models.Ingredient](ctx, input.IngredientId)
	if err != nil {
		return nil, err
	}
	if err := checkQty(ingredient, input.Qty, false); err != nil {
		return nil, err
	}

	lockedDate, release, err := lockOpenDay(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var event *models.InventoryEvent
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		day, err := requireOpenDay(tx, ctx)
		if err != nil {
			return err
		}
		if !day.Date.Equal(lockedDate) {
			return models.ErrInvalidStateTransition
		}

		event = &models.InventoryEvent{
			ID:            uuid.NewString(),
			DayId:         day.ID,
			IngredientId:  input.IngredientId,
			Location:      input.Location,
			Kind:          models.EventKindDelivery,
			Qty:           input.Qty,
			UnitCost:      input.UnitCost,
			Note:          input.Note,
			CorrelationId: utils.CorrelationIdFromContextOrNew(ctx),
		}
		if err := tx.Create(event).Error; err != nil {
			config.LogError(logger, "eventWorkflow.go", "RecordDelivery", "create event", input, err)
			return err
		}

		if _, err := CreateBatchForDelivery(tx, event, input.ExpiryDate); err != nil {
			config.LogError(logger, "eventWorkflow.go", "RecordDelivery", "create batch", event.ID, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

type TransferInput struct {
	IngredientId int             `json:"ingredient_id" validate:"required"`
	FromLocation models.Location `json:"from_location" validate:"required"`
	ToLocation   models.Location `json:"to_location" validate:"required"`
	Qty          decimal.Decimal `json:"qty"`
	Note         string          `json:"note"`
	Override     bool            `json:"override"`
}

// RecordTransfer moves stock between the two locations. Moving more than the
// source balance is an error unless Override is set, in which case the event
// is written anyway and the finding comes back as a warning.
func RecordTransfer(ctx context.Context, input *TransferInput) (*models.InventoryEvent, []models.Warning, error) {
	logger := config.GetLogger()
	if err := utils.ValidateStruct(input); err != nil {
		return nil, nil, err
	}
	if !input.FromLocation.Valid() || !input.ToLocation.Valid() {
		return nil, nil, fmt.Errorf("invalid location %q -> %q", input.FromLocation, input.ToLocation)
	}
	if input.FromLocation == input.ToLocation {
		return nil, nil, fmt.Errorf("transfer source and destination are both %q", input.FromLocation)
	}
	if !input.Qty.IsPositive() {
		return nil, nil, models.ErrNonPositiveQuantity
	}

	ingredient, err := utils.FetchModel[models.Ingredient](ctx, input.IngredientId)
	if err != nil {
		return nil, nil, err
	}
	if err := checkQty(ingredient, input.Qty, false); err != nil {
		return nil, nil, err
	}

	lockedDate, release, err := lockOpenDay(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	db := config.GetDB()
	var event *models.InventoryEvent
	var warnings []models.Warning
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		day, err := requireOpenDay(tx, ctx)
		if err != nil {
			return err
		}
		if !day.Date.Equal(lockedDate) {
			return models.ErrInvalidStateTransition
		}

		events, err := models.GetDayEvents(tx, ctx, day.ID)
		if err != nil {
			config.LogError(logger, "eventWorkflow.go", "RecordTransfer", "GetDayEvents", day.ID, err)
			return err
		}
		balance := models.CurrentBalance(events, input.IngredientId, input.FromLocation)
		if input.Qty.GreaterThan(balance) {
			if !input.Override {
				return models.ErrInsufficientStock
			}
			warnings = append(warnings, models.Warning{
				Code: models.WarningInsufficientStock,
				Message: fmt.Sprintf("transferring %s with only %s at %s",
					input.Qty, balance, input.FromLocation),
			})
		}

		event = &models.InventoryEvent{
			ID:            uuid.NewString(),
			DayId:         day.ID,
			IngredientId:  input.IngredientId,
			Location:      input.FromLocation,
			ToLocation:    input.ToLocation,
			Kind:          models.EventKindTransfer,
			Qty:           input.Qty,
			Note:          input.Note,
			CorrelationId: utils.CorrelationIdFromContextOrNew(ctx),
		}
		if err := tx.Create(event).Error; err != nil {
			config.LogError(logger, "eventWorkflow.go", "RecordTransfer", "create event", input, err)
			return err
		}

		// The moved quantity keeps its lot identity: each source draw becomes
		// a lot at the destination with the original expiry.
		allocations, _, err := ConsumeFIFO(tx, logger, ctx, day.ID, event.ID,
			input.IngredientId, input.FromLocation, input.Qty)
		if err != nil {
			return err
		}
		for _, allocation := range allocations {
			var source models.Batch
			if err := tx.Where("id = ?", allocation.BatchId).First(&source).Error; err != nil {
				config.LogError(logger, "eventWorkflow.go", "RecordTransfer", "load source batch", allocation.BatchId, err)
				return err
			}
			moved := models.Batch{
				ID:              uuid.NewString(),
				IngredientId:    input.IngredientId,
				DeliveryEventId: source.DeliveryEventId,
				InitialQty:      allocation.Qty,
				RemainingQty:    allocation.Qty,
				Location:        input.ToLocation,
				ExpiryDate:      source.ExpiryDate,
			}
			if err := tx.Create(&moved).Error; err != nil {
				config.LogError(logger, "eventWorkflow.go", "RecordTransfer", "create destination batch", moved, err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return event, warnings, nil
}

// allocationCost totals the drawn quantities valued at their lots' delivery
// unit costs.
func allocationCost(tx *gorm.DB, allocations []models.BatchAllocation) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, allocation := range allocations {
		var batch models.Batch
		if err := tx.Where("id = ?", allocation.BatchId).First(&batch).Error; err != nil {
			return decimal.Zero, err
		}
		if batch.DeliveryEventId == "" {
			continue
		}
		var delivery models.InventoryEvent
		if err := tx.Where("id = ?", batch.DeliveryEventId).First(&delivery).Error; err != nil {
			continue
		}
		total = total.Add(allocation.Qty.Mul(delivery.UnitCost))
	}
	return total, nil
}

type SpoilageInput struct {
	IngredientId int                   `json:"ingredient_id" validate:"required"`
	Location     models.Location       `json:"location" validate:"required"`
	Qty          decimal.Decimal       `json:"qty"`
	Reason       models.SpoilageReason `json:"reason" validate:"required"`
	Note         string                `json:"note"`
	Override     bool                  `json:"override"`
}

// RecordSpoilage writes stock off. Reason "other" requires a note; spoiling
// more than the balance is override-gated like transfers.
func RecordSpoilage(ctx context.Context, input *SpoilageInput) (*models.InventoryEvent, []models.Warning, error) {
	logger := config.GetLogger()
	if err := utils.ValidateStruct(input); err != nil {
		return nil, nil, err
	}
	if !input.Location.Valid() {
		return nil, nil, fmt.Errorf("invalid location %q", input.Location)
	}
	if !input.Reason.Valid() {
		return nil, nil, fmt.Errorf("invalid spoilage reason %q", input.Reason)
	}
	if input.Reason == models.SpoilageReasonOther && input.Note == "" {
		return nil, nil, models.ErrSpoilageNoteRequired
	}
	if !input.Qty.IsPositive() {
		return nil, nil, models.ErrNonPositiveQuantity
	}

	ingredient, err := utils.FetchModel[models.Ingredient](ctx, input.IngredientId)
	if err != nil {
		return nil, nil, err
	}
	if err := checkQty(ingredient, input.Qty, false); err != nil {
		return nil, nil, err
	}

	lockedDate, release, err := lockOpenDay(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	db := config.GetDB()
	var event *models.InventoryEvent
	var warnings []models.Warning
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		day, err := requireOpenDay(tx, ctx)
		if err != nil {
			return err
		}
		if !day.Date.Equal(lockedDate) {
			return models.ErrInvalidStateTransition
		}

		events, err := models.GetDayEvents(tx, ctx, day.ID)
		if err != nil {
			config.LogError(logger, "eventWorkflow.go", "RecordSpoilage", "GetDayEvents", day.ID, err)
			return err
		}
		balance := models.CurrentBalance(events, input.IngredientId, input.Location)
		if input.Qty.GreaterThan(balance) {
			if !input.Override {
				return models.ErrInsufficientStock
			}
			warnings = append(warnings, models.Warning{
				Code: models.WarningInsufficientStock,
				Message: fmt.Sprintf("spoiling %s with only %s at %s",
					input.Qty, balance, input.Location),
			})
		}

		// Spoilage cost is valued at the weighted unit cost of the lots it
		// draws from.
		event = &models.InventoryEvent{
			ID:            uuid.NewString(),
			DayId:         day.ID,
			IngredientId:  input.IngredientId,
			Location:      input.Location,
			Kind:          models.EventKindSpoilage,
			Qty:           input.Qty,
			Reason:        input.Reason,
			Note:          input.Note,
			CorrelationId: utils.CorrelationIdFromContextOrNew(ctx),
		}
		if err := tx.Create(event).Error; err != nil {
			config.LogError(logger, "eventWorkflow.go", "RecordSpoilage", "create event", input, err)
			return err
		}

		allocations, _, err := ConsumeFIFO(tx, logger, ctx, day.ID, event.ID,
			input.IngredientId, input.Location, input.Qty)
		if err != nil {
			return err
		}

		cost, err := allocationCost(tx, allocations)
		if err != nil {
			config.LogError(logger, "eventWorkflow.go", "RecordSpoilage", "allocationCost", allocations, err)
			return err
		}
		if cost.IsPositive() && input.Qty.IsPositive() {
			event.UnitCost = cost.Div(input.Qty)
			if err := tx.Model(event).Update("unit_cost", event.UnitCost).Error; err != nil {
				config.LogError(logger, "eventWorkflow.go", "RecordSpoilage", "update unit cost", event.ID, err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return event, warnings, nil
}

type AdjustmentInput struct {
	IngredientId int             `json:"ingredient_id" validate:"required"`
	Location     models.Location `json:"location" validate:"required"`
	Qty          decimal.Decimal `json:"qty"` // signed
	Note         string          `json:"note" validate:"required"`
}

// RecordAdjustment appends a signed manual correction. It does not touch the
// lots; only the ledger balance moves.
func RecordAdjustment(ctx context.Context, input *AdjustmentInput) (*models.InventoryEvent, error) {
	logger := config.GetLogger()
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Location.Valid() {
		return nil, fmt.Errorf("invalid location %q", input.Location)
	}
	if input.Qty.IsZero() {
		return nil, fmt.Errorf("adjustment quantity must not be zero")
	}

	ingredient, err := utils.FetchModel[models.Ingredient](ctx, input.IngredientId)
	if err != nil {
		return nil, err
	}
	if err := checkQty(ingredient, input.Qty, true); err != nil {
		return nil, err
	}

	lockedDate, release, err := lockOpenDay(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var event *models.InventoryEvent
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		day, err := requireOpenDay(tx, ctx)
		if err != nil {
			return err
		}
		if !day.Date.Equal(lockedDate) {
			return models.ErrInvalidStateTransition
		}

		event = &models.InventoryEvent{
			ID:            uuid.NewString(),
			DayId:         day.ID,
			IngredientId:  input.IngredientId,
			Location:      input.Location,
			Kind:          models.EventKindAdjustment,
			Qty:           input.Qty,
			Note:          input.Note,
			CorrelationId: utils.CorrelationIdFromContextOrNew(ctx),
		}
		if err := tx.Create(event).Error; err != nil {
			config.LogError(logger, "eventWorkflow.go", "RecordAdjustment", "create event", input, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}
