package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
	"bitbucket.org/mmdatafocus/outlet_backend/models"
	"bitbucket.org/mmdatafocus/outlet_backend/utils"
	"bitbucket.org/mmdatafocus/outlet_backend/workflow"
)

// Full open-record-close-edit cycle against a real database. Requires the DB_*
// env vars to point at a disposable MySQL instance.
func TestDayLifecycleEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires MySQL)")
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		t.Fatal("database not initialized")
	}
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	beef, err := models.CreateIngredient(ctx, &models.NewIngredient{
		Name: "Beef " + suffix, UnitType: models.UnitTypeWeight, UnitLabel: "kg",
	})
	if err != nil {
		t.Fatalf("CreateIngredient: %v", err)
	}
	burger, err := models.CreateProductVariant(ctx, &models.NewProductVariant{
		Name: "Burger " + suffix, Price: decimal.NewFromInt(2500),
	})
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}
	if _, err := models.CreateRecipe(ctx, &models.NewRecipe{
		VariantId: burger.ID, IngredientId: beef.ID,
		Amount: decimal.RequireFromString("0.15"), IsPrimary: true,
	}); err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	// A date no other test run will have used.
	date := time.Now().AddDate(50, 0, int(time.Now().UnixNano()%10000))

	// Only the seeded ingredient is active; deactivate everything else so the
	// count coverage check is scoped to this run.
	ingredients, err := models.GetActiveIngredients(ctx)
	if err != nil {
		t.Fatalf("GetActiveIngredients: %v", err)
	}
	for _, ingredient := range ingredients {
		if ingredient.ID == beef.ID {
			continue
		}
		if _, err := models.ToggleActiveIngredient(ctx, ingredient.ID, false); err != nil {
			t.Fatalf("ToggleActiveIngredient: %v", err)
		}
	}

	day, _, err := workflow.OpenDay(ctx, &workflow.OpenDayInput{
		Date: date,
		OpeningCounts: []workflow.CountInput{
			{IngredientId: beef.ID, Location: models.LocationStorage, Qty: decimal.NewFromInt(10)},
			{IngredientId: beef.ID, Location: models.LocationKitchen, Qty: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("OpenDay: %v", err)
	}

	// A second open is blocked while this one is.
	if _, _, err := workflow.OpenDay(ctx, &workflow.OpenDayInput{
		Date: date.AddDate(0, 0, 1),
		OpeningCounts: []workflow.CountInput{
			{IngredientId: beef.ID, Location: models.LocationStorage, Qty: decimal.NewFromInt(1)},
			{IngredientId: beef.ID, Location: models.LocationKitchen, Qty: decimal.NewFromInt(1)},
		},
	}); !errors.Is(err, models.ErrDuplicateOpenDay) {
		t.Fatalf("expected ErrDuplicateOpenDay, got %v", err)
	}

	expiry := utils.NormalizeDate(date).AddDate(0, 0, 5)
	if _, err := workflow.RecordDelivery(ctx, &workflow.DeliveryInput{
		IngredientId: beef.ID, Location: models.LocationStorage,
		Qty: decimal.NewFromInt(5), UnitCost: decimal.NewFromInt(8000), ExpiryDate: &expiry,
	}); err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}
	if _, _, err := workflow.RecordTransfer(ctx, &workflow.TransferInput{
		IngredientId: beef.ID, FromLocation: models.LocationStorage,
		ToLocation: models.LocationKitchen, Qty: decimal.NewFromInt(3),
	}); err != nil {
		t.Fatalf("RecordTransfer: %v", err)
	}

	// Moving more than the balance needs the override.
	if _, _, err := workflow.RecordTransfer(ctx, &workflow.TransferInput{
		IngredientId: beef.ID, FromLocation: models.LocationKitchen,
		ToLocation: models.LocationStorage, Qty: decimal.NewFromInt(100),
	}); !errors.Is(err, models.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	closing := []workflow.CountInput{
		{IngredientId: beef.ID, Location: models.LocationStorage, Qty: decimal.NewFromInt(12)},
		{IngredientId: beef.ID, Location: models.LocationKitchen, Qty: decimal.RequireFromString("2.6")},
	}

	// A dry-run close derives the same sales without writing anything.
	preview, err := workflow.PreviewCloseDay(ctx, &workflow.CloseDayInput{Date: date, ClosingCounts: closing})
	if err != nil {
		t.Fatalf("PreviewCloseDay: %v", err)
	}
	if len(preview.Sales) != 1 || preview.Sales[0].QtySold != 16 {
		t.Fatalf("expected preview to derive 16 burgers, got %+v", preview.Sales)
	}
	previewedDay, err := models.GetBusinessDayByDate(config.GetDB(), ctx, utils.NormalizeDate(date))
	if err != nil || previewedDay.Status != models.DayStatusOpen {
		t.Fatalf("preview must not close the day: status=%v err=%v", previewedDay.Status, err)
	}

	result, err := workflow.CloseDay(ctx, &workflow.CloseDayInput{Date: date, ClosingCounts: closing})
	if err != nil {
		t.Fatalf("CloseDay: %v", err)
	}

	// Usage 2.4 kg at 0.15 kg per burger derives 16 sold.
	if len(result.Sales) != 1 || result.Sales[0].QtySold != 16 {
		t.Fatalf("expected 16 burgers derived, got %+v", result.Sales)
	}
	if !result.TotalIncome.Equal(decimal.NewFromInt(40000)) {
		t.Fatalf("expected income 40000, got %s", result.TotalIncome)
	}

	// Recorded sales reconcile against the derivation; voided rows drop out.
	if _, err := models.CreateRecordedSale(ctx, &models.NewRecordedSale{
		Date: date, VariantId: burger.ID, Qty: 14,
	}); err != nil {
		t.Fatalf("CreateRecordedSale: %v", err)
	}
	mistake, err := models.CreateRecordedSale(ctx, &models.NewRecordedSale{
		Date: date, VariantId: burger.ID, Qty: 9,
	})
	if err != nil {
		t.Fatalf("CreateRecordedSale: %v", err)
	}
	if _, err := models.VoidRecordedSale(ctx, mistake.ID, "  "); !errors.Is(err, models.ErrVoidReasonRequired) {
		t.Fatalf("expected ErrVoidReasonRequired, got %v", err)
	}
	if _, err := models.VoidRecordedSale(ctx, mistake.ID, "entered twice"); err != nil {
		t.Fatalf("VoidRecordedSale: %v", err)
	}

	report, err := workflow.GetReconciliation(ctx, date)
	if err != nil {
		t.Fatalf("GetReconciliation: %v", err)
	}
	// 14 x 2500 recorded vs 16 x 2500 calculated; the voided 9 never counts.
	if !report.RecordedTotal.Equal(decimal.NewFromInt(35000)) {
		t.Fatalf("expected recorded total 35000, got %s", report.RecordedTotal)
	}
	if report.HasNoRecordedSales {
		t.Fatal("recorded sales exist")
	}
	if len(report.Suggestions) != 1 || report.Suggestions[0].SuggestedQty != 2 {
		t.Fatalf("expected a 2-unit suggestion, got %+v", report.Suggestions)
	}

	// Closing again is a state error; the edit path recomputes identically.
	if _, err := workflow.CloseDay(ctx, &workflow.CloseDayInput{Date: date, ClosingCounts: closing}); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	edited, err := workflow.EditClosedDay(ctx, &workflow.EditClosedDayInput{Date: date, ClosingCounts: closing})
	if err != nil {
		t.Fatalf("EditClosedDay: %v", err)
	}
	if len(edited.Sales) != 1 || edited.Sales[0].QtySold != 16 {
		t.Fatalf("edit with identical counts must re-derive identically, got %+v", edited.Sales)
	}

	// Reopen leaves an audit row and frees the single-open slot check.
	reopened, err := workflow.ReopenDay(ctx, &workflow.ReopenDayInput{Date: date, Reason: "missed delivery"})
	if err != nil {
		t.Fatalf("ReopenDay: %v", err)
	}
	if reopened.Status != models.DayStatusOpen {
		t.Fatalf("expected reopened day to be Open, got %s", reopened.Status)
	}
	audits, err := models.GetReopenAudits(config.GetDB(), ctx, day.ID)
	if err != nil || len(audits) != 1 {
		t.Fatalf("expected 1 reopen audit, got %d (%v)", len(audits), err)
	}

	if _, err := workflow.CloseDay(ctx, &workflow.CloseDayInput{Date: date, ClosingCounts: closing}); err != nil {
		t.Fatalf("re-close after reopen: %v", err)
	}
}
