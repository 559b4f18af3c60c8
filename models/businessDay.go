package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BusinessDay is the accounting unit: one calendar date's open-to-close cycle.
// Totals are derived data and are rebuilt by every recompute.
type BusinessDay struct {
	ID     int       `gorm:"primary_key" json:"id"`
	Date   time.Time `gorm:"uniqueIndex;not null" json:"date"` // UTC midnight
	Status DayStatus `gorm:"size:10;not null" json:"status"`

	// OpenToken is true while the day is Open and NULL once Closed. The
	// unique index makes "at most one open day" hold under concurrent
	// writers, not just in process.
	OpenToken *bool `gorm:"uniqueIndex" json:"-"`

	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at"`
	Notes    string     `gorm:"size:500" json:"notes"`

	TotalIncome       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_income"`
	TotalDeliveryCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_delivery_cost"`
	TotalSpoilageCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_spoilage_cost"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetBusinessDayByDate loads the day for a UTC-midnight date.
func GetBusinessDayByDate(tx *gorm.DB, ctx context.Context, date time.Time) (*BusinessDay, error) {
	var day BusinessDay
	err := tx.WithContext(ctx).Where("date = ?", date).First(&day).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDayNotFound
		}
		return nil, err
	}
	return &day, nil
}

// GetOpenBusinessDay returns the currently open day, or nil when none is open.
func GetOpenBusinessDay(tx *gorm.DB, ctx context.Context) (*BusinessDay, error) {
	var day BusinessDay
	err := tx.WithContext(ctx).Where("status = ?", DayStatusOpen).First(&day).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &day, nil
}

// GetLatestDayBefore returns the most recent day strictly before date, or nil.
func GetLatestDayBefore(tx *gorm.DB, ctx context.Context, date time.Time) (*BusinessDay, error) {
	var day BusinessDay
	err := tx.WithContext(ctx).
		Where("date < ?", date).
		Order("date DESC").
		First(&day).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &day, nil
}

// UpdateDayTotals writes the derived totals computed by a recompute pass.
func UpdateDayTotals(tx *gorm.DB, dayId int, income, deliveryCost, spoilageCost decimal.Decimal) error {
	return tx.Model(&BusinessDay{}).Where("id = ?", dayId).
		Updates(map[string]interface{}{
			"total_income":        income,
			"total_delivery_cost": deliveryCost,
			"total_spoilage_cost": spoilageCost,
		}).Error
}
