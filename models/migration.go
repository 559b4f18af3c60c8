package models

import (
	"log"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Ingredient{}, &ProductVariant{}, &Recipe{},
		&BusinessDay{},
		&InventoryEvent{},
		&Batch{}, &BatchConsumption{},
		&DerivedSale{}, &DiscrepancyAlert{},
		&RecordedSale{},
		&DayReopenAudit{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
