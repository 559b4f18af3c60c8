package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
	"bitbucket.org/mmdatafocus/outlet_backend/models"
	"bitbucket.org/mmdatafocus/outlet_backend/utils"
	"bitbucket.org/mmdatafocus/outlet_backend/workflow"
)

// Seeds a development database: migrates the schema, creates a small catalog
// and runs one full open-record-close cycle so every derived table has rows.

func main() {
	withDay := flag.Bool("with-day", true, "Also open, record and close a sample business day")
	dateStr := flag.String("date", "", "Date of the sample day (YYYY-MM-DD, default today)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := utils.SetUserNameInContext(
		utils.SetUserIdInContext(context.Background(), 1), "seed-dev")

	beef, err := models.CreateIngredient(ctx, &models.NewIngredient{
		Name: "Ground beef", UnitType: models.UnitTypeWeight, UnitLabel: "kg",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed ingredient: %v\n", err)
		os.Exit(1)
	}
	buns, err := models.CreateIngredient(ctx, &models.NewIngredient{
		Name: "Burger buns", UnitType: models.UnitTypeCount, UnitLabel: "pcs",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed ingredient: %v\n", err)
		os.Exit(1)
	}

	burger, err := models.CreateProductVariant(ctx, &models.NewProductVariant{
		Name: "Classic burger", Price: decimal.NewFromInt(2500),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed variant: %v\n", err)
		os.Exit(1)
	}

	if _, err := models.CreateRecipe(ctx, &models.NewRecipe{
		VariantId: burger.ID, IngredientId: beef.ID,
		Amount: decimal.RequireFromString("0.15"), IsPrimary: true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "seed recipe: %v\n", err)
		os.Exit(1)
	}
	if _, err := models.CreateRecipe(ctx, &models.NewRecipe{
		VariantId: burger.ID, IngredientId: buns.ID,
		Amount: decimal.NewFromInt(1),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "seed recipe: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("catalog seeded: ingredients %d,%d variant %d\n", beef.ID, buns.ID, burger.ID)

	if !*withDay {
		return
	}

	date := time.Now()
	if *dateStr != "" {
		date, err = time.Parse("2006-01-02", *dateStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid date: %v\n", err)
			os.Exit(1)
		}
	}

	day, _, err := workflow.OpenDay(ctx, &workflow.OpenDayInput{
		Date: date,
		OpeningCounts: []workflow.CountInput{
			{IngredientId: beef.ID, Location: models.LocationStorage, Qty: decimal.NewFromInt(10)},
			{IngredientId: beef.ID, Location: models.LocationKitchen, Qty: decimal.NewFromInt(2)},
			{IngredientId: buns.ID, Location: models.LocationStorage, Qty: decimal.NewFromInt(80)},
			{IngredientId: buns.ID, Location: models.LocationKitchen, Qty: decimal.NewFromInt(20)},
		},
		Notes: "seed-dev sample day",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open day: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("day %d opened for %s\n", day.ID, day.Date.Format("2006-01-02"))

	expiry := utils.NormalizeDate(date).AddDate(0, 0, 5)
	if _, err := workflow.RecordDelivery(ctx, &workflow.DeliveryInput{
		IngredientId: beef.ID, Location: models.LocationStorage,
		Qty: decimal.NewFromInt(5), UnitCost: decimal.NewFromInt(8000), ExpiryDate: &expiry,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "record delivery: %v\n", err)
		os.Exit(1)
	}
	if _, _, err := workflow.RecordTransfer(ctx, &workflow.TransferInput{
		IngredientId: beef.ID, FromLocation: models.LocationStorage,
		ToLocation: models.LocationKitchen, Qty: decimal.NewFromInt(3),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "record transfer: %v\n", err)
		os.Exit(1)
	}

	result, err := workflow.CloseDay(ctx, &workflow.CloseDayInput{
		Date: date,
		ClosingCounts: []workflow.CountInput{
			{IngredientId: beef.ID, Location: models.LocationStorage, Qty: decimal.NewFromInt(12)},
			{IngredientId: beef.ID, Location: models.LocationKitchen, Qty: decimal.RequireFromString("2.6")},
			{IngredientId: buns.ID, Location: models.LocationStorage, Qty: decimal.NewFromInt(80)},
			{IngredientId: buns.ID, Location: models.LocationKitchen, Qty: decimal.NewFromInt(4)},
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "close day: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("day closed: %d derived sale rows, total income %s\n",
		len(result.Sales), result.TotalIncome.String())

	if _, err := models.CreateRecordedSale(ctx, &models.NewRecordedSale{
		Date: date, VariantId: burger.ID, Qty: 14,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "record sale: %v\n", err)
		os.Exit(1)
	}
	mistake, err := models.CreateRecordedSale(ctx, &models.NewRecordedSale{
		Date: date, VariantId: burger.ID, Qty: 9,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "record sale: %v\n", err)
		os.Exit(1)
	}
	if _, err := models.VoidRecordedSale(ctx, mistake.ID, "entered twice"); err != nil {
		fmt.Fprintf(os.Stderr, "void sale: %v\n", err)
		os.Exit(1)
	}

	report, err := workflow.GetReconciliation(ctx, date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("reconciliation: recorded %s vs calculated %s (%d suggestion(s))\n",
		report.RecordedTotal.String(), report.CalculatedTotal.String(), len(report.Suggestions))
}
