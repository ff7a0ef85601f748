package models

import (
	"context"
	"errors"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
)

// PriorBalance is a manually imported opening balance for one owner in one
// period. Carried-over balances from a closed period are not stored here;
// they are derived from that period's unpaid share residuals.
type PriorBalance struct {
	ID            int                `gorm:"primary_key" json:"id"`
	CondominiumId string             `gorm:"index;not null;size:36" json:"condominium_id"`
	PeriodId      int                `gorm:"index;not null" json:"period_id"`
	OwnerId       int                `gorm:"index;not null" json:"owner_id"`
	Amount        int64              `gorm:"not null;default:0" json:"amount"`
	Origin        PriorBalanceOrigin `gorm:"type:enum('Carryover','Imported');default:'Imported';size:10;not null" json:"origin"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

type NewPriorBalance struct {
	OwnerId int   `json:"owner_id" binding:"required"`
	Amount  int64 `json:"amount" binding:"required"`
}

// ImportPriorBalances replaces the imported opening balances of a period.
// Blocked once the period's balances have been applied to a plan.
func ImportPriorBalances(ctx context.Context, periodId int, entries []NewPriorBalance) ([]*PriorBalance, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	period, err := utils.FetchModel[ManagementPeriod](ctx, condominiumId, periodId)
	if err != nil {
		return nil, errors.New("management period not found")
	}
	if period.BalanceApplied != nil && *period.BalanceApplied {
		return nil, errors.New("prior balance already applied for this period")
	}

	var ownerIds []int
	for _, e := range entries {
		ownerIds = append(ownerIds, e.OwnerId)
	}
	if len(ownerIds) != len(utils.UniqueSlice(ownerIds)) {
		return nil, errors.New("duplicate owner in balance entries")
	}
	if err := utils.ValidateResourcesId[Owner](ctx, condominiumId, ownerIds); err != nil {
		return nil, errors.New("owner not found")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Where("period_id = ? AND origin = ?", periodId, PriorBalanceOriginImported).
		Delete(&PriorBalance{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	var rows []*PriorBalance
	for _, e := range entries {
		row := &PriorBalance{
			CondominiumId: condominiumId,
			PeriodId:      periodId,
			OwnerId:       e.OwnerId,
			Amount:        e.Amount,
			Origin:        PriorBalanceOriginImported,
		}
		if err := tx.Create(row).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// PriorBalanceResolution is the resolver's answer: either the balances to
// apply, or a human-readable reason why none are applicable.
type PriorBalanceResolution struct {
	Applicable bool               `json:"applicable"`
	Reason     string             `json:"reason,omitempty"`
	Origin     PriorBalanceOrigin `json:"origin,omitempty"`
	Balances   map[int]int64      `json:"balances"` // owner id -> signed cents
}

// ResolvePriorBalances determines the per-owner opening balances to carry
// into a plan of the given period. Sources, in order: unpaid residuals of
// the latest closed prior period, else manually imported figures. The
// period-level applied flag makes the balances consumable by at most one
// plan; re-resolving for that same plan stays applicable so regeneration
// does not lose the balance component.
func ResolvePriorBalances(ctx context.Context, condominiumId string, periodId int, planId int) (*PriorBalanceResolution, error) {

	period, err := utils.FetchModel[ManagementPeriod](ctx, condominiumId, periodId)
	if err != nil {
		return nil, errors.New("management period not found")
	}

	if period.BalanceApplied != nil && *period.BalanceApplied && period.BalanceAppliedPlanId != planId {
		return &PriorBalanceResolution{
			Applicable: false,
			Reason:     "prior balance already applied for this period",
			Balances:   map[int]int64{},
		}, nil
	}

	// (a) residuals of the latest closed prior period
	prior, err := latestClosedPeriodBefore(ctx, condominiumId, period)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		balances, err := sumPeriodResiduals(ctx, condominiumId, prior.ID)
		if err != nil {
			return nil, err
		}
		if len(balances) > 0 {
			return &PriorBalanceResolution{
				Applicable: true,
				Origin:     PriorBalanceOriginCarryover,
				Balances:   balances,
			}, nil
		}
	}

	// (b) manually imported opening balances for the current period
	db := config.GetDB()
	var imported []*PriorBalance
	if err := db.WithContext(ctx).
		Where("condominium_id = ? AND period_id = ? AND origin = ?", condominiumId, periodId, PriorBalanceOriginImported).
		Find(&imported).Error; err != nil {
		return nil, err
	}
	balances := make(map[int]int64)
	for _, row := range imported {
		if row.Amount != 0 {
			balances[row.OwnerId] += row.Amount
		}
	}
	return &PriorBalanceResolution{
		Applicable: true,
		Origin:     PriorBalanceOriginImported,
		Balances:   balances,
	}, nil
}

// sumPeriodResiduals aggregates (amount - paid_amount) per owner across all
// installment shares of the plans belonging to the given (closed) period.
// Zero residuals are dropped.
func sumPeriodResiduals(ctx context.Context, condominiumId string, periodId int) (map[int]int64, error) {
	db := config.GetDB()

	type residualRow struct {
		OwnerId  int
		Residual int64
	}
	var rows []residualRow
	err := db.WithContext(ctx).Model(&InstallmentShare{}).
		Select("installment_shares.owner_id AS owner_id, SUM(installment_shares.amount - installment_shares.paid_amount) AS residual").
		Joins("JOIN expense_plans ON expense_plans.id = installment_shares.plan_id").
		Where("expense_plans.condominium_id = ? AND expense_plans.period_id = ?", condominiumId, periodId).
		Group("installment_shares.owner_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	balances := make(map[int]int64, len(rows))
	for _, r := range rows {
		if r.Residual != 0 {
			balances[r.OwnerId] = r.Residual
		}
	}
	return balances, nil
}
