package workflow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
	"bitbucket.org/mmdatafocus/outlet_backend/models"
)

// DayComputation is the full derived state of one day after a recompute.
type DayComputation struct {
	Usage       map[int]decimal.Decimal   `json:"usage"`
	Sales       []models.DerivedSale      `json:"sales"`
	Alerts      []models.DiscrepancyAlert `json:"alerts"`
	TotalIncome decimal.Decimal           `json:"total_income"`
	Warnings    []models.Warning          `json:"warnings"`
}

// RecomputeDay rebuilds everything derived from a day's ledger: usage, sales,
// discrepancy alerts, the usage lot draw-down and the day totals. Runs inside
// the caller's transaction and day lock; calling it twice on the same ledger
// is a no-op for the stored state.
func RecomputeDay(tx *gorm.DB, logger *logrus.Logger, ctx context.Context, day *models.BusinessDay) (*DayComputation, error) {
	events, err := models.GetDayEvents(tx, ctx, day.ID)
	if err != nil {
		config.LogError(logger, "recompute.go", "RecomputeDay", "GetDayEvents", day.ID, err)
		return nil, err
	}
	if !models.HasOpeningSnapshot(events) {
		return nil, models.ErrNoOpeningSnapshot
	}

	usage := models.UsageByIngredient(events)

	var warnings []models.Warning
	for ingredientId, qty := range usage {
		if qty.IsNegative() {
			warnings = append(warnings, models.Warning{
				Code: models.WarningNegativeUsage,
				Message: fmt.Sprintf("ingredient %d closed %s above its expected quantity",
					ingredientId, qty.Neg()),
			})
		}
	}

	// Catalog reads go through the transaction, not the redis cache, so a
	// recompute always sees the rows the transaction sees.
	var variants []models.ProductVariant
	if err := tx.WithContext(ctx).Where("is_active = 1").Order("id").Find(&variants).Error; err != nil {
		config.LogError(logger, "recompute.go", "RecomputeDay", "load variants", day.ID, err)
		return nil, err
	}
	var recipes []models.Recipe
	if err := tx.WithContext(ctx).Order("id").Find(&recipes).Error; err != nil {
		config.LogError(logger, "recompute.go", "RecomputeDay", "load recipes", day.ID, err)
		return nil, err
	}

	primaries := make(map[int]models.PrimaryRecipe, len(variants))
	for _, recipe := range recipes {
		if recipe.IsPrimary != nil && *recipe.IsPrimary {
			primaries[recipe.VariantId] = models.PrimaryRecipe{
				IngredientId: recipe.IngredientId,
				Amount:       recipe.Amount,
			}
		}
	}

	sales, skipped := BuildDerivedSales(day.ID, usage, variants, primaries)
	if len(skipped) > 0 {
		logger.WithFields(logrus.Fields{
			"day_id":      day.ID,
			"variant_ids": skipped,
		}).Warn("variants without a primary ingredient skipped in sales derivation")
	}

	alerts := ScoreDiscrepancies(day.ID, usage, sales, recipes)

	if err := models.ReplaceDerivedSales(tx, day.ID, sales); err != nil {
		config.LogError(logger, "recompute.go", "RecomputeDay", "ReplaceDerivedSales", day.ID, err)
		return nil, err
	}
	if err := models.ReplaceDiscrepancyAlerts(tx, day.ID, alerts); err != nil {
		config.LogError(logger, "recompute.go", "RecomputeDay", "ReplaceDiscrepancyAlerts", day.ID, err)
		return nil, err
	}

	if err := ApplyUsageDrawDown(tx, logger, ctx, day.ID, usage); err != nil {
		return nil, err
	}

	income := models.TotalIncome(sales)
	deliveryCost := decimal.Zero
	spoilageCost := decimal.Zero
	for _, event := range events {
		switch event.Kind {
		case models.EventKindDelivery:
			deliveryCost = deliveryCost.Add(event.Qty.Mul(event.UnitCost))
		case models.EventKindSpoilage:
			spoilageCost = spoilageCost.Add(event.Qty.Mul(event.UnitCost))
		}
	}
	if err := models.UpdateDayTotals(tx, day.ID, income, deliveryCost, spoilageCost); err != nil {
		config.LogError(logger, "recompute.go", "RecomputeDay", "UpdateDayTotals", day.ID, err)
		return nil, err
	}

	return &DayComputation{
		Usage:       usage,
		Sales:       sales,
		Alerts:      alerts,
		TotalIncome: income,
		Warnings:    warnings,
	}, nil
}
