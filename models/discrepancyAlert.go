package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DiscrepancyAlert scores the gap between the usage implied by derived sales
// and the usage observed on the ledger. Rows are derivable at any time from
// ledger + recipes; they are persisted only for querying and fully replaced
// per recompute.
type DiscrepancyAlert struct {
	ID            int             `gorm:"primary_key" json:"id"`
	DayId         int             `gorm:"index:idx_disc_alert_day_ing,priority:1;not null" json:"day_id"`
	IngredientId  int             `gorm:"index:idx_disc_alert_day_ing,priority:2;not null" json:"ingredient_id"`
	ExpectedUsage decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"expected_usage"`
	ActualUsage   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"actual_usage"`
	Percent       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"percent"`
	Level         AlertLevel      `gorm:"size:10;not null" json:"level"`

	// Informational rows carry expected_usage == 0 and are excluded from
	// severity scoring.
	IsInformational *bool     `gorm:"not null;default:false" json:"is_informational"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func ReplaceDiscrepancyAlerts(tx *gorm.DB, dayId int, alerts []DiscrepancyAlert) error {
	if err := tx.Where("day_id = ?", dayId).Delete(&DiscrepancyAlert{}).Error; err != nil {
		return err
	}
	if len(alerts) == 0 {
		return nil
	}
	return tx.Create(&alerts).Error
}

func GetDiscrepancyAlerts(tx *gorm.DB, ctx context.Context, dayId int) ([]DiscrepancyAlert, error) {
	var alerts []DiscrepancyAlert
	err := tx.WithContext(ctx).
		Where("day_id = ?", dayId).
		Order("ingredient_id").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}
