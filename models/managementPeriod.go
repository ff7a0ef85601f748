package models

import (
	"context"
	"errors"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"gorm.io/gorm"
)

// ManagementPeriod is one accounting year of a condominium. Prior balances
// are pulled into a plan of this period at most once: BalanceApplied is a
// one-shot flag, BalanceAppliedPlanId remembers which plan consumed it so
// regeneration of that same plan stays idempotent.
type ManagementPeriod struct {
	ID                   int          `gorm:"primary_key" json:"id"`
	CondominiumId        string       `gorm:"index;not null;size:36" json:"condominium_id"`
	Name                 string       `gorm:"size:100;not null" json:"name" binding:"required"`
	StartDate            time.Time    `gorm:"not null" json:"start_date"`
	EndDate              time.Time    `gorm:"not null" json:"end_date"`
	Status               PeriodStatus `gorm:"type:enum('Open','Closed');default:'Open';size:10;not null" json:"status"`
	BalanceApplied       *bool        `gorm:"not null;default:false" json:"balance_applied"`
	BalanceAppliedPlanId int          `gorm:"not null;default:0" json:"balance_applied_plan_id"`
	CreatedAt            time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewManagementPeriod struct {
	Name      string    `json:"name" binding:"required"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
}

func (input *NewManagementPeriod) validate(ctx context.Context, condominiumId string, id int) error {
	if !input.EndDate.After(input.StartDate) {
		return errors.New("end date must be after start date")
	}
	if err := utils.ValidateUnique[ManagementPeriod](ctx, condominiumId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateManagementPeriod(ctx context.Context, input *NewManagementPeriod) (*ManagementPeriod, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	if err := input.validate(ctx, condominiumId, 0); err != nil {
		return nil, err
	}

	period := ManagementPeriod{
		CondominiumId:  condominiumId,
		Name:           input.Name,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		Status:         PeriodStatusOpen,
		BalanceApplied: utils.NewFalse(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&period).Error; err != nil {
		return nil, err
	}
	return &period, nil
}

func GetManagementPeriod(ctx context.Context, id int) (*ManagementPeriod, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	return utils.FetchModel[ManagementPeriod](ctx, condominiumId, id)
}

// CloseManagementPeriod marks a period closed. Closed periods feed the
// prior-balance resolver of the following period.
func CloseManagementPeriod(ctx context.Context, id int) (*ManagementPeriod, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	period, err := utils.FetchModel[ManagementPeriod](ctx, condominiumId, id)
	if err != nil {
		return nil, err
	}
	if period.Status == PeriodStatusClosed {
		return nil, errors.New("period is already closed")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(period).Update("status", PeriodStatusClosed).Error; err != nil {
		return nil, err
	}
	return period, nil
}

// MarkPeriodBalanceApplied flips the one-shot applied flag inside the
// caller's transaction. The conditional WHERE makes the flag settable at
// most once even under concurrent generations.
func MarkPeriodBalanceApplied(tx *gorm.DB, periodId int, planId int) error {
	result := tx.Model(&ManagementPeriod{}).
		Where("id = ? AND (balance_applied = 0 OR balance_applied_plan_id = ?)", periodId, planId).
		Updates(map[string]interface{}{
			"balance_applied":         true,
			"balance_applied_plan_id": planId,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("prior balance already applied for this period")
	}
	return nil
}

// latestClosedPeriodBefore returns the most recent closed period ending
// before the given period's start, or nil when none exists.
func latestClosedPeriodBefore(ctx context.Context, condominiumId string, period *ManagementPeriod) (*ManagementPeriod, error) {
	db := config.GetDB()
	var prior ManagementPeriod
	err := db.WithContext(ctx).
		Where("condominium_id = ? AND status = ? AND end_date <= ?", condominiumId, PeriodStatusClosed, period.StartDate).
		Order("end_date DESC").
		First(&prior).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prior, nil
}
