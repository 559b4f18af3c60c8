package workflow

import (
	"sort"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/outlet_backend/models"
	"bitbucket.org/mmdatafocus/outlet_backend/utils"
)

var percentHundred = decimal.NewFromInt(100)

// LevelForPercent maps a variance percentage to a severity. Boundary values
// resolve to the higher-severity side.
func LevelForPercent(percent decimal.Decimal) models.AlertLevel {
	switch {
	case percent.GreaterThanOrEqual(decimal.NewFromInt(10)):
		return models.AlertLevelCritical
	case percent.GreaterThanOrEqual(decimal.NewFromInt(5)):
		return models.AlertLevelWarning
	}
	return models.AlertLevelOK
}

// ScoreDiscrepancies compares actual ledger usage against the usage implied
// by the derived sales (qty sold x recipe amount summed over every recipe
// consuming the ingredient). Ingredients whose expected usage is zero are
// excluded from scoring and reported informationally. Pure.
func ScoreDiscrepancies(
	dayId int,
	actualUsage map[int]decimal.Decimal,
	sales []models.DerivedSale,
	recipes []models.Recipe,
) []models.DiscrepancyAlert {

	qtySoldByVariant := make(map[int]decimal.Decimal, len(sales))
	for _, sale := range sales {
		qtySoldByVariant[sale.VariantId] = decimal.NewFromInt(int64(sale.QtySold))
	}

	expected := make(map[int]decimal.Decimal)
	for _, recipe := range recipes {
		qtySold, ok := qtySoldByVariant[recipe.VariantId]
		if !ok {
			continue
		}
		expected[recipe.IngredientId] = expected[recipe.IngredientId].Add(qtySold.Mul(recipe.Amount))
	}

	ingredientIds := make(map[int]struct{}, len(actualUsage)+len(expected))
	for id := range actualUsage {
		ingredientIds[id] = struct{}{}
	}
	for id := range expected {
		ingredientIds[id] = struct{}{}
	}

	alerts := make([]models.DiscrepancyAlert, 0, len(ingredientIds))
	for ingredientId := range ingredientIds {
		expectedUsage := expected[ingredientId]
		actual := actualUsage[ingredientId]

		if expectedUsage.IsZero() {
			alerts = append(alerts, models.DiscrepancyAlert{
				DayId:           dayId,
				IngredientId:    ingredientId,
				ExpectedUsage:   decimal.Zero,
				ActualUsage:     actual,
				Percent:         decimal.Zero,
				Level:           models.AlertLevelOK,
				IsInformational: utils.NewTrue(),
			})
			continue
		}

		percent := actual.Sub(expectedUsage).Abs().
			Div(expectedUsage.Abs()).
			Mul(percentHundred)
		alerts = append(alerts, models.DiscrepancyAlert{
			DayId:           dayId,
			IngredientId:    ingredientId,
			ExpectedUsage:   expectedUsage,
			ActualUsage:     actual,
			Percent:         percent,
			Level:           LevelForPercent(percent),
			IsInformational: utils.NewFalse(),
		})
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].IngredientId < alerts[j].IngredientId })
	return alerts
}
