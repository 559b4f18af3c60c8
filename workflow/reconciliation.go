package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
	"bitbucket.org/mmdatafocus/outlet_backend/models"
	"bitbucket.org/mmdatafocus/outlet_backend/utils"
)

// Reconciliation compares derived sales against the independently recorded
// ones. It is strictly advisory: nothing here ever blocks a day closure.

type ReconciliationLine struct {
	VariantId         int             `json:"variant_id"`
	RecordedQty       int             `json:"recorded_qty"`
	CalculatedQty     int             `json:"calculated_qty"`
	RecordedRevenue   decimal.Decimal `json:"recorded_revenue"`
	CalculatedRevenue decimal.Decimal `json:"calculated_revenue"`
	QtyDifference     int             `json:"qty_difference"`
	RevenueDifference decimal.Decimal `json:"revenue_difference"`
}

// SalesSuggestion proposes the recorded entries that would close the gap when
// the ledger implies more sales than were recorded.
type SalesSuggestion struct {
	VariantId        int             `json:"variant_id"`
	SuggestedQty     int             `json:"suggested_qty"`
	SuggestedRevenue decimal.Decimal `json:"suggested_revenue"`
}

type ReconciliationReport struct {
	DayId              int                  `json:"day_id"`
	Date               time.Time            `json:"date"`
	Lines              []ReconciliationLine `json:"lines"`
	RecordedTotal      decimal.Decimal      `json:"recorded_total"`
	CalculatedTotal    decimal.Decimal      `json:"calculated_total"`
	DiscrepancyPercent decimal.Decimal      `json:"discrepancy_percent"`
	HasNoRecordedSales bool                 `json:"has_no_recorded_sales"`
	Critical           bool                 `json:"critical"`
	Suggestions        []SalesSuggestion    `json:"suggestions"`
}

// BuildReconciliation is the pure comparison over one day's derived and
// non-voided recorded sales.
func BuildReconciliation(day *models.BusinessDay, derived []models.DerivedSale, recorded []models.RecordedSale) *ReconciliationReport {
	report := &ReconciliationReport{
		DayId:              day.ID,
		Date:               day.Date,
		RecordedTotal:      decimal.Zero,
		CalculatedTotal:    decimal.Zero,
		DiscrepancyPercent: decimal.Zero,
	}

	recordedQty := make(map[int]int)
	recordedRevenue := make(map[int]decimal.Decimal)
	for _, sale := range recorded {
		revenue := sale.PriceSnapshot.Mul(decimal.NewFromInt(int64(sale.Qty)))
		recordedQty[sale.VariantId] += sale.Qty
		recordedRevenue[sale.VariantId] = recordedRevenue[sale.VariantId].Add(revenue)
		report.RecordedTotal = report.RecordedTotal.Add(revenue)
	}

	variantIds := make(map[int]struct{}, len(derived)+len(recordedQty))
	calculatedQty := make(map[int]int, len(derived))
	calculatedRevenue := make(map[int]decimal.Decimal, len(derived))
	unitPrice := make(map[int]decimal.Decimal, len(derived))
	for _, sale := range derived {
		variantIds[sale.VariantId] = struct{}{}
		calculatedQty[sale.VariantId] = sale.QtySold
		calculatedRevenue[sale.VariantId] = sale.Revenue
		unitPrice[sale.VariantId] = sale.UnitPrice
		report.CalculatedTotal = report.CalculatedTotal.Add(sale.Revenue)
	}
	for variantId := range recordedQty {
		variantIds[variantId] = struct{}{}
	}

	for variantId := range variantIds {
		line := ReconciliationLine{
			VariantId:         variantId,
			RecordedQty:       recordedQty[variantId],
			CalculatedQty:     calculatedQty[variantId],
			RecordedRevenue:   recordedRevenue[variantId],
			CalculatedRevenue: calculatedRevenue[variantId],
		}
		line.QtyDifference = line.CalculatedQty - line.RecordedQty
		line.RevenueDifference = line.CalculatedRevenue.Sub(line.RecordedRevenue)
		report.Lines = append(report.Lines, line)

		if line.CalculatedQty > line.RecordedQty {
			suggestedQty := line.CalculatedQty - line.RecordedQty
			report.Suggestions = append(report.Suggestions, SalesSuggestion{
				VariantId:        variantId,
				SuggestedQty:     suggestedQty,
				SuggestedRevenue: unitPrice[variantId].Mul(decimal.NewFromInt(int64(suggestedQty))),
			})
		}
	}

	sort.Slice(report.Lines, func(i, j int) bool { return report.Lines[i].VariantId < report.Lines[j].VariantId })
	sort.Slice(report.Suggestions, func(i, j int) bool { return report.Suggestions[i].VariantId < report.Suggestions[j].VariantId })

	report.HasNoRecordedSales = len(recorded) == 0
	if !report.HasNoRecordedSales && report.CalculatedTotal.IsPositive() {
		report.DiscrepancyPercent = report.RecordedTotal.Sub(report.CalculatedTotal).Abs().
			Div(report.CalculatedTotal).
			Mul(percentHundred)
		// Advisory flag only; mirrors the discrepancy analyzer's critical
		// threshold so the two reports read consistently.
		report.Critical = report.DiscrepancyPercent.GreaterThanOrEqual(decimal.NewFromInt(10))
	}
	return report
}

// GetReconciliation builds the advisory report for a date.
func GetReconciliation(ctx context.Context, date time.Time) (*ReconciliationReport, error) {
	logger := config.GetLogger()
	db := config.GetDB()
	date = utils.NormalizeDate(date)

	day, err := models.GetBusinessDayByDate(db, ctx, date)
	if err != nil {
		return nil, err
	}
	derived, err := models.GetDerivedSales(db, ctx, day.ID)
	if err != nil {
		config.LogError(logger, "reconciliation.go", "GetReconciliation", "GetDerivedSales", day.ID, err)
		return nil, err
	}
	recorded, err := models.GetActiveRecordedSales(db, ctx, day.ID)
	if err != nil {
		config.LogError(logger, "reconciliation.go", "GetReconciliation", "GetActiveRecordedSales", day.ID, err)
		return nil, err
	}
	return BuildReconciliation(day, derived, recorded), nil
}
