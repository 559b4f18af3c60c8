package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DerivedSale is derived data: fully replaced on every close/edit recompute,
// never patched incrementally, so identical ledgers always produce identical
// rows.
type DerivedSale struct {
	ID        int             `gorm:"primary_key" json:"id"`
	DayId     int             `gorm:"index:idx_derived_sale_day_variant,priority:1;not null" json:"day_id"`
	VariantId int             `gorm:"index:idx_derived_sale_day_variant,priority:2;not null" json:"variant_id"`
	QtySold   int             `gorm:"not null" json:"qty_sold"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Revenue   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"revenue"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ReplaceDerivedSales swaps a day's derived rows atomically within the
// caller's transaction.
func ReplaceDerivedSales(tx *gorm.DB, dayId int, sales []DerivedSale) error {
	if err := tx.Where("day_id = ?", dayId).Delete(&DerivedSale{}).Error; err != nil {
		return err
	}
	if len(sales) == 0 {
		return nil
	}
	return tx.Create(&sales).Error
}

func GetDerivedSales(tx *gorm.DB, ctx context.Context, dayId int) ([]DerivedSale, error) {
	var sales []DerivedSale
	err := tx.WithContext(ctx).
		Where("day_id = ?", dayId).
		Order("variant_id").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

func TotalIncome(sales []DerivedSale) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.Revenue)
	}
	return total
}
