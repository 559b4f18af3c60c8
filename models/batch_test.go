package models_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/outlet_backend/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSortBatchesFIFO_ExpiryFirstNilLast(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	batches := []*models.Batch{
		{ID: "c", ExpiryDate: nil, CreatedAt: base},
		{ID: "a", ExpiryDate: datePtr(2026, 3, 20), CreatedAt: base.Add(2 * time.Hour)},
		{ID: "b", ExpiryDate: datePtr(2026, 3, 10), CreatedAt: base.Add(3 * time.Hour)},
		{ID: "d", ExpiryDate: nil, CreatedAt: base.Add(-time.Hour)},
	}

	models.SortBatchesFIFO(batches)

	got := []string{batches[0].ID, batches[1].ID, batches[2].ID, batches[3].ID}
	want := []string{"b", "a", "d", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestSortBatchesFIFO_SameExpiryByCreation(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	expiry := datePtr(2026, 3, 15)
	batches := []*models.Batch{
		{ID: "later", ExpiryDate: expiry, CreatedAt: base.Add(time.Hour)},
		{ID: "earlier", ExpiryDate: expiry, CreatedAt: base},
	}
	models.SortBatchesFIFO(batches)
	if batches[0].ID != "earlier" {
		t.Fatalf("expected creation order within the same expiry, got %s first", batches[0].ID)
	}
}

func TestPlanConsumption_PartialDraws(t *testing.T) {
	batches := []*models.Batch{
		{ID: "a", RemainingQty: dec("2"), ExpiryDate: datePtr(2026, 3, 10)},
		{ID: "b", RemainingQty: dec("5"), ExpiryDate: datePtr(2026, 3, 20)},
	}

	allocations, shortfall := models.PlanConsumption(batches, dec("3.5"))
	if !shortfall.IsZero() {
		t.Fatalf("expected no shortfall, got %s", shortfall)
	}
	if len(allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocations))
	}
	if allocations[0].BatchId != "a" || !allocations[0].Qty.Equal(dec("2")) {
		t.Fatalf("unexpected first allocation %+v", allocations[0])
	}
	if allocations[1].BatchId != "b" || !allocations[1].Qty.Equal(dec("1.5")) {
		t.Fatalf("unexpected second allocation %+v", allocations[1])
	}
}

func TestPlanConsumption_ShortfallLandsOnLastBatch(t *testing.T) {
	batches := []*models.Batch{
		{ID: "a", RemainingQty: dec("2")},
		{ID: "b", RemainingQty: dec("1")},
	}

	allocations, shortfall := models.PlanConsumption(batches, dec("5"))
	if !shortfall.Equal(dec("2")) {
		t.Fatalf("expected shortfall 2, got %s", shortfall)
	}
	// The last batch absorbs the overdraw and may go negative.
	last := allocations[len(allocations)-1]
	if last.BatchId != "b" || !last.Qty.Equal(dec("3")) {
		t.Fatalf("unexpected last allocation %+v", last)
	}
}

func TestPlanConsumption_NoBatches(t *testing.T) {
	allocations, shortfall := models.PlanConsumption(nil, dec("4"))
	if len(allocations) != 0 {
		t.Fatalf("expected no allocations, got %v", allocations)
	}
	if !shortfall.Equal(dec("4")) {
		t.Fatalf("expected full shortfall, got %s", shortfall)
	}
}

func TestBatchExpiryLevel(t *testing.T) {
	today := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		expiry *time.Time
		level  models.ExpiryLevel
		days   int
	}{
		{nil, models.ExpiryLevelNone, 0},
		{datePtr(2026, 3, 13), models.ExpiryLevelExpired, -1},
		{datePtr(2026, 3, 14), models.ExpiryLevelCritical, 0},
		{datePtr(2026, 3, 16), models.ExpiryLevelCritical, 2},
		{datePtr(2026, 3, 17), models.ExpiryLevelWarning, 3},
		{datePtr(2026, 3, 20), models.ExpiryLevelWarning, 6},
		{datePtr(2026, 3, 21), models.ExpiryLevelNone, 7},
	}
	for _, c := range cases {
		level, days := models.BatchExpiryLevel(c.expiry, today)
		if level != c.level || days != c.days {
			t.Fatalf("expiry=%v expected (%s,%d), got (%s,%d)", c.expiry, c.level, c.days, level, days)
		}
	}
}
