package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
	"bitbucket.org/mmdatafocus/outlet_backend/workflow"
)

// Prints the open stock lots that are expired or close to expiry.

func main() {
	daysAhead := flag.Int("days-ahead", 7, "Report lots expiring within this many days")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	alerts, err := workflow.GetExpiryAlerts(context.Background(), *daysAhead)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expiry report: %v\n", err)
		os.Exit(1)
	}
	if len(alerts) == 0 {
		fmt.Printf("no lots expiring within %d days\n", *daysAhead)
		return
	}

	fmt.Printf("%-8s %-36s %-10s %-12s %-10s %s\n",
		"LEVEL", "BATCH", "INGREDIENT", "REMAINING", "LOCATION", "EXPIRES")
	for _, alert := range alerts {
		expires := "-"
		if alert.ExpiryDate != nil {
			expires = fmt.Sprintf("%s (%+dd, age %dd)",
				alert.ExpiryDate.Format("2006-01-02"), alert.DaysToExpiry, alert.AgeDays)
		}
		fmt.Printf("%-8s %-36s %-10d %-12s %-10s %s\n",
			alert.Level, alert.BatchId, alert.IngredientId,
			alert.RemainingQty.String(), alert.Location, expires)
	}
}
