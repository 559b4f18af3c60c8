package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/outlet_backend/models"
)

func event(kind models.EventKind, ingredientId int, location models.Location, qty string) models.InventoryEvent {
	return models.InventoryEvent{
		Kind:         kind,
		IngredientId: ingredientId,
		Location:     location,
		Qty:          dec(qty),
	}
}

func TestExpectedClosing_AllKinds(t *testing.T) {
	transfer := event(models.EventKindTransfer, 1, models.LocationStorage, "3")
	transfer.ToLocation = models.LocationKitchen

	events := []models.InventoryEvent{
		event(models.EventKindOpeningSnapshot, 1, models.LocationStorage, "10"),
		event(models.EventKindDelivery, 1, models.LocationStorage, "5"),
		transfer,
		event(models.EventKindSpoilage, 1, models.LocationStorage, "1"),
		event(models.EventKindAdjustment, 1, models.LocationStorage, "-0.5"),
	}

	// 10 + 5 - 3 - 1 - 0.5
	storage := models.ExpectedClosing(events, 1, models.LocationStorage)
	if !storage.Equal(dec("10.5")) {
		t.Fatalf("expected 10.5 at storage, got %s", storage)
	}

	// The transfer lands on the kitchen side.
	kitchen := models.ExpectedClosing(events, 1, models.LocationKitchen)
	if !kitchen.Equal(dec("3")) {
		t.Fatalf("expected 3 at kitchen, got %s", kitchen)
	}
}

func TestExpectedClosing_IgnoresOtherIngredients(t *testing.T) {
	events := []models.InventoryEvent{
		event(models.EventKindOpeningSnapshot, 1, models.LocationStorage, "10"),
		event(models.EventKindOpeningSnapshot, 2, models.LocationStorage, "7"),
	}
	if got := models.ExpectedClosing(events, 1, models.LocationStorage); !got.Equal(dec("10")) {
		t.Fatalf("expected 10, got %s", got)
	}
}

func TestActualClosing_LastSnapshotWins(t *testing.T) {
	events := []models.InventoryEvent{
		event(models.EventKindClosingSnapshot, 1, models.LocationKitchen, "4"),
		event(models.EventKindClosingSnapshot, 1, models.LocationKitchen, "4.5"),
	}
	qty, ok := models.ActualClosing(events, 1, models.LocationKitchen)
	if !ok || !qty.Equal(dec("4.5")) {
		t.Fatalf("expected last snapshot 4.5, got %s (found=%v)", qty, ok)
	}

	_, ok = models.ActualClosing(events, 1, models.LocationStorage)
	if ok {
		t.Fatal("storage has no closing snapshot")
	}
}

func TestUsageByIngredient_SummedAcrossLocations(t *testing.T) {
	transfer := event(models.EventKindTransfer, 1, models.LocationStorage, "3")
	transfer.ToLocation = models.LocationKitchen

	events := []models.InventoryEvent{
		event(models.EventKindOpeningSnapshot, 1, models.LocationStorage, "10"),
		event(models.EventKindOpeningSnapshot, 1, models.LocationKitchen, "2"),
		event(models.EventKindDelivery, 1, models.LocationStorage, "5"),
		transfer,
		event(models.EventKindClosingSnapshot, 1, models.LocationStorage, "12"),
		event(models.EventKindClosingSnapshot, 1, models.LocationKitchen, "2.6"),
	}

	usage := models.UsageByIngredient(events)
	// Storage: expected 12, counted 12. Kitchen: expected 5, counted 2.6.
	// The transfer cancels out of the day total.
	if !usage[1].Equal(dec("2.4")) {
		t.Fatalf("expected usage 2.4, got %s", usage[1])
	}
}

func TestUsageByIngredient_NegativeUsageAllowed(t *testing.T) {
	events := []models.InventoryEvent{
		event(models.EventKindOpeningSnapshot, 1, models.LocationStorage, "10"),
		event(models.EventKindOpeningSnapshot, 1, models.LocationKitchen, "0"),
		event(models.EventKindClosingSnapshot, 1, models.LocationStorage, "11"),
		event(models.EventKindClosingSnapshot, 1, models.LocationKitchen, "0"),
	}

	usage := models.UsageByIngredient(events)
	if !usage[1].Equal(dec("-1")) {
		t.Fatalf("counting above expected must yield negative usage, got %s", usage[1])
	}
}

func TestUsageByIngredient_SkipsUncountedIngredients(t *testing.T) {
	events := []models.InventoryEvent{
		event(models.EventKindOpeningSnapshot, 1, models.LocationStorage, "10"),
		event(models.EventKindOpeningSnapshot, 2, models.LocationStorage, "5"),
		event(models.EventKindClosingSnapshot, 1, models.LocationStorage, "8"),
	}

	usage := models.UsageByIngredient(events)
	if _, ok := usage[2]; ok {
		t.Fatal("ingredient without a closing count must not appear in usage")
	}
	if !usage[1].Equal(dec("2")) {
		t.Fatalf("expected usage 2, got %s", usage[1])
	}
}

func TestHasOpeningSnapshot(t *testing.T) {
	if models.HasOpeningSnapshot([]models.InventoryEvent{
		event(models.EventKindDelivery, 1, models.LocationStorage, "5"),
	}) {
		t.Fatal("delivery alone is not an opening")
	}
	if !models.HasOpeningSnapshot([]models.InventoryEvent{
		event(models.EventKindOpeningSnapshot, 1, models.LocationStorage, "5"),
	}) {
		t.Fatal("opening snapshot not detected")
	}
}
