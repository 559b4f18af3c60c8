package models

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/outlet_backend/utils"
)

// DayReopenAudit is the audit trail for reopening a closed day. Reopening is
// permitted repeatedly; every occurrence leaves a row.
type DayReopenAudit struct {
	ID        int       `gorm:"primary_key" json:"id"`
	DayId     int       `gorm:"index;not null" json:"day_id"`
	Date      time.Time `gorm:"not null" json:"date"`
	Reason    string    `gorm:"size:500;not null" json:"reason"`
	UserId    int       `gorm:"index" json:"user_id"`
	UserName  string    `gorm:"size:100" json:"user_name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CreateReopenAudit writes the audit entry inside the caller's transaction;
// the acting user comes from the transaction's context.
func CreateReopenAudit(tx *gorm.DB, day *BusinessDay, reason string) error {
	ctx := tx.Statement.Context

	audit := DayReopenAudit{
		DayId:  day.ID,
		Date:   day.Date,
		Reason: reason,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		audit.UserId = userId
	}
	if userName, ok := utils.GetUserNameFromContext(ctx); ok {
		audit.UserName = userName
	}
	return tx.Create(&audit).Error
}

func GetReopenAudits(tx *gorm.DB, ctx context.Context, dayId int) ([]DayReopenAudit, error) {
	var audits []DayReopenAudit
	err := tx.WithContext(ctx).
		Where("day_id = ?", dayId).
		Order("id").
		Find(&audits).Error
	if err != nil {
		return nil, err
	}
	return audits, nil
}
