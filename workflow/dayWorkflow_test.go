package workflow

import (
	"errors"
	"reflect"
	"testing"

	"bitbucket.org/mmdatafocus/outlet_backend/models"
	"bitbucket.org/mmdatafocus/outlet_backend/utils"
)

func testIngredients() []models.Ingredient {
	return []models.Ingredient{
		{ID: 1, Name: "Ground beef", UnitType: models.UnitTypeWeight, IsActive: utils.NewTrue()},
		{ID: 2, Name: "Burger buns", UnitType: models.UnitTypeCount, IsActive: utils.NewTrue()},
	}
}

func fullCounts() []CountInput {
	return []CountInput{
		{IngredientId: 1, Location: models.LocationStorage, Qty: dec("10")},
		{IngredientId: 1, Location: models.LocationKitchen, Qty: dec("2")},
		{IngredientId: 2, Location: models.LocationStorage, Qty: dec("80")},
		{IngredientId: 2, Location: models.LocationKitchen, Qty: dec("20")},
	}
}

func TestResolveCounts_Complete(t *testing.T) {
	resolved, err := resolveCounts(models.EventKindOpeningSnapshot, fullCounts(), testIngredients())
	if err != nil {
		t.Fatalf("resolveCounts: %v", err)
	}
	if len(resolved) != 4 {
		t.Fatalf("expected 4 resolved pairs, got %d", len(resolved))
	}
	if !resolved[countKey{1, models.LocationKitchen}].Equal(dec("2")) {
		t.Fatalf("unexpected resolved value %+v", resolved)
	}
}

func TestResolveCounts_MissingIngredientLocation(t *testing.T) {
	counts := fullCounts()[:3] // buns never counted in the kitchen

	_, err := resolveCounts(models.EventKindClosingSnapshot, counts, testIngredients())
	var missing *models.MissingCountError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingCountError, got %v", err)
	}
	if missing.Stage != models.EventKindClosingSnapshot {
		t.Fatalf("expected closing stage, got %s", missing.Stage)
	}
	if !reflect.DeepEqual(missing.IngredientIds, []int{2}) {
		t.Fatalf("expected ingredient 2 missing, got %v", missing.IngredientIds)
	}
}

func TestResolveCounts_NegativeQty(t *testing.T) {
	counts := fullCounts()
	counts[0].Qty = dec("-1")

	_, err := resolveCounts(models.EventKindOpeningSnapshot, counts, testIngredients())
	if !errors.Is(err, models.ErrNegativeQuantity) {
		t.Fatalf("expected ErrNegativeQuantity, got %v", err)
	}
}

func TestResolveCounts_CountTypeRequiresWholeNumber(t *testing.T) {
	counts := fullCounts()
	counts[2].Qty = dec("80.5") // buns are count-type

	_, err := resolveCounts(models.EventKindOpeningSnapshot, counts, testIngredients())
	if !errors.Is(err, models.ErrNonIntegerCount) {
		t.Fatalf("expected ErrNonIntegerCount, got %v", err)
	}

	// Fractional weight is fine.
	counts = fullCounts()
	counts[0].Qty = dec("10.25")
	if _, err := resolveCounts(models.EventKindOpeningSnapshot, counts, testIngredients()); err != nil {
		t.Fatalf("fractional weight rejected: %v", err)
	}
}

func TestResolveCounts_InactiveIngredientRejected(t *testing.T) {
	counts := append(fullCounts(), CountInput{
		IngredientId: 99, Location: models.LocationStorage, Qty: dec("1"),
	})
	if _, err := resolveCounts(models.EventKindOpeningSnapshot, counts, testIngredients()); err == nil {
		t.Fatal("expected unknown ingredient to be rejected")
	}
}

func TestResolveCounts_DuplicateLastWins(t *testing.T) {
	counts := append(fullCounts(), CountInput{
		IngredientId: 1, Location: models.LocationStorage, Qty: dec("11"),
	})
	resolved, err := resolveCounts(models.EventKindOpeningSnapshot, counts, testIngredients())
	if err != nil {
		t.Fatalf("resolveCounts: %v", err)
	}
	if !resolved[countKey{1, models.LocationStorage}].Equal(dec("11")) {
		t.Fatalf("expected last duplicate to win, got %s", resolved[countKey{1, models.LocationStorage}])
	}
}

func TestSnapshotEvents_StableOrder(t *testing.T) {
	resolved, err := resolveCounts(models.EventKindOpeningSnapshot, fullCounts(), testIngredients())
	if err != nil {
		t.Fatalf("resolveCounts: %v", err)
	}

	events := snapshotEvents(5, models.EventKindOpeningSnapshot, resolved, "corr-1")
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if cur.IngredientId < prev.IngredientId ||
			(cur.IngredientId == prev.IngredientId && cur.Location < prev.Location) {
			t.Fatalf("events out of order at %d: %+v after %+v", i, cur, prev)
		}
	}
	for _, e := range events {
		if e.DayId != 5 || e.Kind != models.EventKindOpeningSnapshot || e.CorrelationId != "corr-1" || e.ID == "" {
			t.Fatalf("malformed snapshot event %+v", e)
		}
	}
}
