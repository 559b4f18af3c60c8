package workflow

import (
	"context"
	"fmt"
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

// Day lifecycle: Open -> Closed, with closed days editable and reopenable.
// Each transition runs under the day lock inside one transaction.

// CountInput is one counted (ingredient, location) quantity for an opening or
// closing snapshot.
type CountInput struct {
	IngredientId int             `json:"ingredient_id" validate:"required"`
	Location     models.Location `json:"location" validate:"required"`
	Qty          decimal.Decimal `json:"qty"`
}

type countKey struct {
	IngredientId int
	Location     models.Location
}

// resolveCounts validates raw counts against the active catalog and checks
// that every active ingredient is counted at both locations. Duplicate counts
// for a pair keep the last value.
func resolveCounts(stage models.EventKind, counts []CountInput, ingredients []models.Ingredient) (map[countKey]decimal.Decimal, error) {
	byId := make(map[int]models.Ingredient, len(ingredients))
	for _, ingredient := range ingredients {
		byId[ingredient.ID] = ingredient
	}

	resolved := make(map[countKey]decimal.Decimal, len(counts))
	for _, count := range counts {
		if !count.Location.Valid() {
			return nil, fmt.Errorf("invalid location %q", count.Location)
		}
		ingredient, ok := byId[count.IngredientId]
		if !ok {
			return nil, fmt.Errorf("ingredient %d is not active", count.IngredientId)
		}
		if count.Qty.IsNegative() {
			return nil, models.ErrNegativeQuantity
		}
		if ingredient.UnitType == models.UnitTypeCount && !utils.IsWholeNumber(count.Qty) {
			return nil, models.ErrNonIntegerCount
		}
		resolved[countKey{count.IngredientId, count.Location}] = count.Qty
	}

	var missing []int
	for _, ingredient := range ingredients {
		for _, location := range models.AllLocations {
			if _, ok := resolved[countKey{ingredient.ID, location}]; !ok {
				missing = append(missing, ingredient.ID)
				break
			}
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return nil, &models.MissingCountError{Stage: stage, IngredientIds: missing}
	}
	return resolved, nil
}

// snapshotEvents materializes resolved counts as snapshot rows in a stable
// order.
func snapshotEvents(dayId int, kind models.EventKind, resolved map[countKey]decimal.Decimal, correlationId string) []models.InventoryEvent {
	keys := make([]countKey, 0, len(resolved))
	for key := range resolved {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].IngredientId != keys[j].IngredientId {
			return keys[i].IngredientId < keys[j].IngredientId
		}
		return keys[i].Location < keys[j].Location
	})

	events := make([]models.InventoryEvent, 0, len(keys))
	for _, key := range keys {
		events = append(events, models.InventoryEvent{
			ID:            uuid.NewString(),
			DayId:         dayId,
			IngredientId:  key.IngredientId,
			Location:      key.Location,
			Kind:          kind,
			Qty:           resolved[key],
			CorrelationId: correlationId,
		})
	}
	return events
}

type OpenDayInput struct {
	Date          time.Time    `json:"date" validate:"required"`
	OpeningCounts []CountInput `json:"opening_counts" validate:"required,dive"`
	Notes         string       `json:"notes"`
}

// OpenDay starts a business day with a complete opening count. Any other open
// day, or an existing day on the same date, blocks it.
func OpenDay(ctx context.Context, input *OpenDayInput) (*models.BusinessDay, []models.Warning, error) {
	logger := config.GetLogger()
	if err := utils.ValidateStruct(input); err != nil {
		return nil, nil, err
	}
	date := utils.NormalizeDate(input.Date)

	ingredients, err := models.GetActiveIngredients(ctx)
	if err != nil {
		config.LogError(logger, "dayWorkflow.go", "OpenDay", "GetActiveIngredients", date, err)
		return nil, nil, err
	}
	resolved, err := resolveCounts(models.EventKindOpeningSnapshot, input.OpeningCounts, ingredients)
	if err != nil {
		return nil, nil, err
	}

	release, err := AcquireDayLock(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	db := config.GetDB()
	var day *models.BusinessDay
	var warnings []models.Warning
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := models.GetOpenBusinessDay(tx, ctx)
		if err != nil {
			return err
		}
		if open != nil {
			return models.ErrDuplicateOpenDay
		}
		if _, err := models.GetBusinessDayByDate(tx, ctx, date); err == nil {
			return models.ErrDuplicateOpenDay
		} else if err != models.ErrDayNotFound {
			return err
		}

		latest, err := models.GetLatestDayBefore(tx, ctx, date)
		if err != nil {
			return err
		}
		if latest != nil && utils.DaysBetween(latest.Date, date) > 1 {
			warnings = append(warnings, models.Warning{
				Code: models.WarningPreviousDayNotClosed,
				Message: fmt.Sprintf("no closed day between %s and %s",
					latest.Date.Format("2006-01-02"), date.Format("2006-01-02")),
			})
		}

		day = &models.BusinessDay{
			Date:      date,
			Status:    models.DayStatusOpen,
			OpenToken: utils.NewTrue(),
			OpenedAt:  time.Now().UTC(),
			Notes:     input.Notes,
		}
		if err := tx.Create(day).Error; err != nil {
			config.LogError(logger, "dayWorkflow.go", "OpenDay", "create day", date, err)
			return err
		}

		events := snapshotEvents(day.ID, models.EventKindOpeningSnapshot, resolved,
			utils.CorrelationIdFromContextOrNew(ctx))
		if len(events) > 0 {
			if err := tx.Create(&events).Error; err != nil {
				config.LogError(logger, "dayWorkflow.go", "OpenDay", "create opening snapshots", day.ID, err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return day, warnings, nil
}

// DayCloseResult is what a close or edit hands back: the day plus everything
// the recompute derived from its ledger.
type DayCloseResult struct {
	Day         *models.BusinessDay       `json:"day"`
	Sales       []models.DerivedSale      `json:"sales"`
	Alerts      []models.DiscrepancyAlert `json:"alerts"`
	TotalIncome decimal.Decimal           `json:"total_income"`
	Warnings    []models.Warning          `json:"warnings"`
}

type CloseDayInput struct {
	Date          time.Time    `json:"date" validate:"required"`
	ClosingCounts []CountInput `json:"closing_counts" validate:"required,dive"`
	Notes         string       `json:"notes"`
	Override      bool         `json:"override"`
}

// CloseDay records the complete closing count, derives sales and discrepancy
// alerts, and moves the day to Closed. A count above the expected closing is
// blocked unless Override is set.
func CloseDay(ctx context.Context, input *CloseDayInput) (*DayCloseResult, error) {
	logger := config.GetLogger()
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	date := utils.NormalizeDate(input.Date)

	ingredients, err := models.GetActiveIngredients(ctx)
	if err != nil {
		config.LogError(logger, "dayWorkflow.go", "CloseDay", "GetActiveIngredients", date, err)
		return nil, err
	}
	resolved, err := resolveCounts(models.EventKindClosingSnapshot, input.ClosingCounts, ingredients)
	if err != nil {
		return nil, err
	}

	release, err := AcquireDayLock(ctx, date)
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var result *DayCloseResult
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		day, err := models.GetBusinessDayByDate(tx, ctx, date)
		if err != nil {
			return err
		}
		if day.Status != models.DayStatusOpen {
			return models.ErrInvalidStateTransition
		}

		warnings, err := writeClosingSnapshots(tx, logger, ctx, day, resolved, input.Override)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":     models.DayStatusClosed,
			"open_token": nil,
			"closed_at":  now,
		}
		if input.Notes != "" {
			updates["notes"] = input.Notes
		}
		if err := tx.Model(day).Updates(updates).Error; err != nil {
			config.LogError(logger, "dayWorkflow.go", "CloseDay", "update day", day.ID, err)
			return err
		}
		day.Status = models.DayStatusClosed
		day.OpenToken = nil
		day.ClosedAt = &now

		computation, err := RecomputeDay(tx, logger, ctx, day)
		if err != nil {
			return err
		}
		day.TotalIncome = computation.TotalIncome

		result = &DayCloseResult{
			Day:         day,
			Sales:       computation.Sales,
			Alerts:      computation.Alerts,
			TotalIncome: computation.TotalIncome,
			Warnings:    append(warnings, computation.Warnings...),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// writeClosingSnapshots appends the closing rows, gating counts that exceed
// the expected closing behind the override flag.
func writeClosingSnapshots(tx *gorm.DB, logger *logrus.Logger, ctx context.Context, day *models.BusinessDay, resolved map[countKey]decimal.Decimal, override bool) ([]models.Warning, error) {
	events, err := models.GetDayEvents(tx, ctx, day.ID)
	if err != nil {
		config.LogError(logger, "dayWorkflow.go", "writeClosingSnapshots", "GetDayEvents", day.ID, err)
		return nil, err
	}

	var warnings []models.Warning
	for key, qty := range resolved {
		expected := models.ExpectedClosing(events, key.IngredientId, key.Location)
		if qty.GreaterThan(expected) {
			if !override {
				return nil, models.ErrClosingExceedsExpected
			}
			warnings = append(warnings, models.Warning{
				Code: models.WarningClosingExceedsExpected,
				Message: fmt.Sprintf("ingredient %d at %s counted %s, expected at most %s",
					key.IngredientId, key.Location, qty, expected),
			})
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Message < warnings[j].Message })

	rows := snapshotEvents(day.ID, models.EventKindClosingSnapshot, resolved,
		utils.CorrelationIdFromContextOrNew(ctx))
	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			config.LogError(logger, "dayWorkflow.go", "writeClosingSnapshots", "create closing snapshots", day.ID, err)
			return nil, err
		}
	}
	return warnings, nil
}

// PreviewCloseDay runs the close derivation against hypothetical closing
// counts without writing anything: no snapshot rows, no lot draw-down, no
// status change. Catalog reads go through the redis-cached primary recipe
// map since no transaction is involved.
func PreviewCloseDay(ctx context.Context, input *CloseDayInput) (*DayCloseResult, error) {
	logger := config.GetLogger()
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	date := utils.NormalizeDate(input.Date)

	ingredients, err := models.GetActiveIngredients(ctx)
	if err != nil {
		config.LogError(logger, "dayWorkflow.go", "PreviewCloseDay", "GetActiveIngredients", date, err)
		return nil, err
	}
	resolved, err := resolveCounts(models.EventKindClosingSnapshot, input.ClosingCounts, ingredients)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	day, err := models.GetBusinessDayByDate(db, ctx, date)
	if err != nil {
		return nil, err
	}
	stored, err := models.GetDayEvents(db, ctx, day.ID)
	if err != nil {
		config.LogError(logger, "dayWorkflow.go", "PreviewCloseDay", "GetDayEvents", day.ID, err)
		return nil, err
	}

	// The hypothetical counts stand in for any stored closing snapshots.
	events := make([]models.InventoryEvent, 0, len(stored)+len(resolved))
	for _, event := range stored {
		if event.Kind != models.EventKindClosingSnapshot {
			events = append(events, event)
		}
	}
	events = append(events, snapshotEvents(day.ID, models.EventKindClosingSnapshot, resolved, "")...)

	var warnings []models.Warning
	for key, qty := range resolved {
		expected := models.ExpectedClosing(stored, key.IngredientId, key.Location)
		if qty.GreaterThan(expected) {
			warnings = append(warnings, models.Warning{
				Code: models.WarningClosingExceedsExpected,
				Message: fmt.Sprintf("ingredient %d at %s counted %s, expected at most %s",
					key.IngredientId, key.Location, qty, expected),
			})
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Message < warnings[j].Message })

	usage := models.UsageByIngredient(events)
	for ingredientId, qty := range usage {
		if qty.IsNegative() {
			warnings = append(warnings, models.Warning{
				Code: models.WarningNegativeUsage,
				Message: fmt.Sprintf("ingredient %d would close %s above its expected quantity",
					ingredientId, qty.Neg()),
			})
		}
	}

	variants, err := models.GetActiveVariants(ctx)
	if err != nil {
		config.LogError(logger, "dayWorkflow.go", "PreviewCloseDay", "GetActiveVariants", day.ID, err)
		return nil, err
	}
	primaries, err := models.GetPrimaryRecipeMap(ctx)
	if err != nil {
		config.LogError(logger, "dayWorkflow.go", "PreviewCloseDay", "GetPrimaryRecipeMap", day.ID, err)
		return nil, err
	}
	recipes, err := models.GetAllRecipes(ctx)
	if err != nil {
		config.LogError(logger, "dayWorkflow.go", "PreviewCloseDay", "GetAllRecipes", day.ID, err)
		return nil, err
	}

	sales, skipped := BuildDerivedSales(day.ID, usage, variants, primaries)
	if len(skipped) > 0 {
		logger.WithFields(logrus.Fields{
			"day_id":      day.ID,
			"variant_ids": skipped,
		}).Warn("variants without a primary ingredient skipped in sales derivation")
	}

	return &DayCloseResult{
		Day:         day,
		Sales:       sales,
		Alerts:      ScoreDiscrepancies(day.ID, usage, sales, recipes),
		TotalIncome: models.TotalIncome(sales),
		Warnings:    warnings,
	}, nil
}

type EditClosedDayInput struct {
	Date          time.Time    `json:"date" validate:"required"`
	ClosingCounts []CountInput `json:"closing_counts" validate:"required,dive"`
	Override      bool         `json:"override"`
}

// EditClosedDay replaces a closed day's closing count wholesale and recomputes
// every derived row. The day stays Closed.
func EditClosedDay(ctx context.Context, input *EditClosedDayInput) (*DayCloseResult, error) {
	logger := config.GetLogger()
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	date := utils.NormalizeDate(input.Date)

	ingredients, err := models.GetActiveIngredients(ctx)
	if err != nil {
		config.LogError(logger, "dayWorkflow.go", "EditClosedDay", "GetActiveIngredients", date, err)
		return nil, err
	}
	resolved, err := resolveCounts(models.EventKindClosingSnapshot, input.ClosingCounts, ingredients)
	if err != nil {
		return nil, err
	}

	release, err := AcquireDayLock(ctx, date)
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var result *DayCloseResult
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		day, err := models.GetBusinessDayByDate(tx, ctx, date)
		if err != nil {
			return err
		}
		if day.Status != models.DayStatusClosed {
			return models.ErrInvalidStateTransition
		}

		if err := models.DeleteClosingSnapshots(tx, day.ID); err != nil {
			config.LogError(logger, "dayWorkflow.go", "EditClosedDay", "DeleteClosingSnapshots", day.ID, err)
			return err
		}

		warnings, err := writeClosingSnapshots(tx, logger, ctx, day, resolved, input.Override)
		if err != nil {
			return err
		}

		computation, err := RecomputeDay(tx, logger, ctx, day)
		if err != nil {
			return err
		}
		day.TotalIncome = computation.TotalIncome

		result = &DayCloseResult{
			Day:         day,
			Sales:       computation.Sales,
			Alerts:      computation.Alerts,
			TotalIncome: computation.TotalIncome,
			Warnings:    append(warnings, computation.Warnings...),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type ReopenDayInput struct {
	Date   time.Time `json:"date" validate:"required"`
	Reason string    `json:"reason"`
}

// ReopenDay moves a closed day back to Open for corrections that need new
// ledger events, leaving an audit row. Only one day may be open, so a reopen
// is blocked while any other day is.
func ReopenDay(ctx context.Context, input *ReopenDayInput) (*models.BusinessDay, error) {
	logger := config.GetLogger()
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Reason == "" {
		return nil, models.ErrReopenReasonRequired
	}
	date := utils.NormalizeDate(input.Date)

	release, err := AcquireDayLock(ctx, date)
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var day *models.BusinessDay
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		day, err = models.GetBusinessDayByDate(tx, ctx, date)
		if err != nil {
			return err
		}
		if day.Status != models.DayStatusClosed {
			return models.ErrInvalidStateTransition
		}

		open, err := models.GetOpenBusinessDay(tx, ctx)
		if err != nil {
			return err
		}
		if open != nil {
			return models.ErrDuplicateOpenDay
		}

		updates := map[string]interface{}{
			"status":     models.DayStatusOpen,
			"open_token": true,
			"closed_at":  nil,
		}
		if err := tx.Model(day).Updates(updates).Error; err != nil {
			config.LogError(logger, "dayWorkflow.go", "ReopenDay", "update day", day.ID, err)
			return err
		}
		day.Status = models.DayStatusOpen
		day.OpenToken = utils.NewTrue()
		day.ClosedAt = nil

		if err := models.CreateReopenAudit(tx.WithContext(ctx), day, input.Reason); err != nil {
			config.LogError(logger, "dayWorkflow.go", "ReopenDay", "CreateReopenAudit", day.ID, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return day, nil
}
