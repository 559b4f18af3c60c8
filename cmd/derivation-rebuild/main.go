package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
	"bitbucket.org/mmdatafocus/outlet_backend/models"
	"bitbucket.org/mmdatafocus/outlet_backend/utils"
	"bitbucket.org/mmdatafocus/outlet_backend/workflow"
)

// Rebuilds the derived rows (sales, discrepancy alerts, day totals, usage
// draw-down) for closed days whose ledger was touched outside the normal
// close/edit path.

func main() {
	dateStr := flag.String("date", "", "Rebuild one day (YYYY-MM-DD)")
	fromStr := flag.String("from", "", "Rebuild a range start (YYYY-MM-DD), inclusive")
	toStr := flag.String("to", "", "Rebuild a range end (YYYY-MM-DD), inclusive")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing days and continue")
	flag.Parse()

	if strings.TrimSpace(*dateStr) == "" && strings.TrimSpace(*fromStr) == "" {
		fmt.Fprintln(os.Stderr, "--date or --from/--to is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()
	ctx := context.Background()

	var dates []time.Time
	if strings.TrimSpace(*dateStr) != "" {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(*dateStr))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid date: %v\n", err)
			os.Exit(1)
		}
		dates = append(dates, utils.NormalizeDate(d))
	} else {
		from, err := time.Parse("2006-01-02", strings.TrimSpace(*fromStr))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid from date: %v\n", err)
			os.Exit(1)
		}
		to := from
		if strings.TrimSpace(*toStr) != "" {
			to, err = time.Parse("2006-01-02", strings.TrimSpace(*toStr))
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid to date: %v\n", err)
				os.Exit(1)
			}
		}
		for d := utils.NormalizeDate(from); !d.After(utils.NormalizeDate(to)); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	}

	for _, date := range dates {
		day, err := models.GetBusinessDayByDate(db, ctx, date)
		if err == models.ErrDayNotFound {
			fmt.Printf("no day for %s, skipping\n", date.Format("2006-01-02"))
			continue
		} else if err != nil {
			fmt.Fprintf(os.Stderr, "load day %s: %v\n", date.Format("2006-01-02"), err)
			os.Exit(1)
		}
		if day.Status != models.DayStatusClosed {
			fmt.Printf("day %s is %s, skipping\n", date.Format("2006-01-02"), day.Status)
			continue
		}

		fmt.Printf("Rebuilding %s (day %d)\n", date.Format("2006-01-02"), day.ID)
		err = func() error {
			release, err := workflow.AcquireDayLock(ctx, date)
			if err != nil {
				return err
			}
			defer release()
			return db.Transaction(func(tx *gorm.DB) error {
				_, err := workflow.RecomputeDay(tx, logger, ctx, day)
				return err
			})
		}()
		if err != nil {
			if *continueOnError {
				fmt.Fprintf(os.Stderr, "rebuild failed (skipping): %v\n", err)
				continue
			}
			fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("derivation rebuild complete")
}
