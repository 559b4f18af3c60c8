package models

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
	"bitbucket.org/mmdatafocus/outlet_backend/utils"
)

// RecordedSale is the optional direct-sales input maintained by the
// sales-recording collaborator. The derivation engine never writes these; it
// reads only non-voided rows when reconciling.
type RecordedSale struct {
	ID            int             `gorm:"primary_key" json:"id"`
	DayId         int             `gorm:"index;not null" json:"day_id"`
	VariantId     int             `gorm:"index;not null" json:"variant_id"`
	Qty           int             `gorm:"not null" json:"qty"`
	PriceSnapshot decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price_snapshot"`
	RecordedAt    time.Time       `gorm:"not null" json:"recorded_at"`

	IsVoided   *bool      `gorm:"not null;default:false" json:"is_voided"`
	VoidReason string     `gorm:"size:255" json:"void_reason,omitempty"`
	VoidedBy   *int       `json:"voided_by,omitempty"`
	VoidedAt   *time.Time `json:"voided_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRecordedSale struct {
	Date      time.Time `json:"date" validate:"required"`
	VariantId int       `json:"variant_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

// CreateRecordedSale snapshots the variant price at recording time; later
// catalog price changes must not rewrite history.
func CreateRecordedSale(ctx context.Context, input *NewRecordedSale) (*RecordedSale, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	day, err := GetBusinessDayByDate(db, ctx, utils.NormalizeDate(input.Date))
	if err != nil {
		return nil, err
	}
	variant, err := utils.FetchModel[ProductVariant](ctx, input.VariantId)
	if err != nil {
		return nil, err
	}

	sale := RecordedSale{
		DayId:         day.ID,
		VariantId:     variant.ID,
		Qty:           input.Qty,
		PriceSnapshot: variant.Price,
		RecordedAt:    time.Now().UTC(),
		IsVoided:      utils.NewFalse(),
	}
	if err := db.WithContext(ctx).Create(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// VoidRecordedSale marks a sale voided with a mandatory reason and the acting
// user from context. Voided rows stay on record but drop out of
// reconciliation.
func VoidRecordedSale(ctx context.Context, id int, reason string) (*RecordedSale, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrVoidReasonRequired
	}

	sale, err := utils.FetchModel[RecordedSale](ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"is_voided":   true,
		"void_reason": strings.TrimSpace(reason),
		"voided_at":   now,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		updates["voided_by"] = userId
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(sale).Updates(updates).Error; err != nil {
		return nil, err
	}
	return sale, nil
}

// GetActiveRecordedSales lists a day's non-voided sales.
func GetActiveRecordedSales(tx *gorm.DB, ctx context.Context, dayId int) ([]RecordedSale, error) {
	var sales []RecordedSale
	err := tx.WithContext(ctx).
		Where("day_id = ? AND is_voided = 0", dayId).
		Order("id").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}
