package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/outlet_backend/models"
)

func testDay() *models.BusinessDay {
	return &models.BusinessDay{
		ID:     1,
		Date:   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Status: models.DayStatusClosed,
	}
}

func TestBuildReconciliation_CriticalPercent(t *testing.T) {
	derived := []models.DerivedSale{
		{DayId: 1, VariantId: 1, QtySold: 21, UnitPrice: dec("100"), Revenue: dec("2100")},
	}
	recorded := []models.RecordedSale{
		{DayId: 1, VariantId: 1, Qty: 10, PriceSnapshot: dec("100")},
		{DayId: 1, VariantId: 1, Qty: 8, PriceSnapshot: dec("100")},
		{DayId: 1, VariantId: 1, Qty: 1, PriceSnapshot: dec("50")},
	}

	report := BuildReconciliation(testDay(), derived, recorded)
	if !report.RecordedTotal.Equal(dec("1850")) {
		t.Fatalf("expected recorded total 1850, got %s", report.RecordedTotal)
	}
	if !report.CalculatedTotal.Equal(dec("2100")) {
		t.Fatalf("expected calculated total 2100, got %s", report.CalculatedTotal)
	}
	// |1850 - 2100| / 2100 = 11.9%
	if !report.DiscrepancyPercent.Round(1).Equal(dec("11.9")) {
		t.Fatalf("expected ~11.9 percent, got %s", report.DiscrepancyPercent)
	}
	if !report.Critical {
		t.Fatal("expected the gap to be flagged critical")
	}
	if report.HasNoRecordedSales {
		t.Fatal("recorded sales exist")
	}

	if len(report.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(report.Lines))
	}
	line := report.Lines[0]
	if line.RecordedQty != 19 || line.CalculatedQty != 21 || line.QtyDifference != 2 {
		t.Fatalf("unexpected line %+v", line)
	}
}

func TestBuildReconciliation_NoRecordedSalesGuard(t *testing.T) {
	derived := []models.DerivedSale{
		{DayId: 1, VariantId: 1, QtySold: 5, UnitPrice: dec("100"), Revenue: dec("500")},
	}

	report := BuildReconciliation(testDay(), derived, nil)
	if !report.HasNoRecordedSales {
		t.Fatal("expected hasNoRecordedSales")
	}
	// No division against an empty recorded side.
	if !report.DiscrepancyPercent.IsZero() {
		t.Fatalf("expected zero percent, got %s", report.DiscrepancyPercent)
	}
	if report.Critical {
		t.Fatal("a day without recorded sales is never critical")
	}
}

func TestBuildReconciliation_Suggestions(t *testing.T) {
	derived := []models.DerivedSale{
		{DayId: 1, VariantId: 1, QtySold: 16, UnitPrice: dec("2500"), Revenue: dec("40000")},
		{DayId: 1, VariantId: 2, QtySold: 3, UnitPrice: dec("1500"), Revenue: dec("4500")},
	}
	recorded := []models.RecordedSale{
		{DayId: 1, VariantId: 1, Qty: 14, PriceSnapshot: dec("2500")},
		{DayId: 1, VariantId: 2, Qty: 5, PriceSnapshot: dec("1500")},
	}

	report := BuildReconciliation(testDay(), derived, recorded)
	// Only variant 1 is under-recorded; over-recording suggests nothing.
	if len(report.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(report.Suggestions))
	}
	suggestion := report.Suggestions[0]
	if suggestion.VariantId != 1 || suggestion.SuggestedQty != 2 {
		t.Fatalf("unexpected suggestion %+v", suggestion)
	}
	if !suggestion.SuggestedRevenue.Equal(dec("5000")) {
		t.Fatalf("expected suggested revenue 5000, got %s", suggestion.SuggestedRevenue)
	}
}

func TestBuildReconciliation_VariantOnlyRecorded(t *testing.T) {
	recorded := []models.RecordedSale{
		{DayId: 1, VariantId: 9, Qty: 2, PriceSnapshot: dec("700")},
	}

	report := BuildReconciliation(testDay(), nil, recorded)
	if len(report.Lines) != 1 {
		t.Fatalf("expected a line for the recorded-only variant, got %d", len(report.Lines))
	}
	line := report.Lines[0]
	if line.VariantId != 9 || line.CalculatedQty != 0 || line.QtyDifference != -2 {
		t.Fatalf("unexpected line %+v", line)
	}
	if !line.RecordedRevenue.Equal(dec("1400")) {
		t.Fatalf("expected recorded revenue 1400, got %s", line.RecordedRevenue)
	}
}
