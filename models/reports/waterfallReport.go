package reports

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/models"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
)

// InstallmentPosition is the waterfall's input: one installment's net and
// paid totals for one owner.
type InstallmentPosition struct {
	InstallmentId int       `json:"installment_id"`
	Sequence      int       `json:"sequence"`
	DueDate       time.Time `json:"due_date"`
	Net           int64     `json:"net"`
	Paid          int64     `json:"paid"`
}

// WaterfallRow is one installment's projected position after global credit
// absorption. CoveredByCredit marks debts extinguished by the pool only,
// never ones already settled by payments.
type WaterfallRow struct {
	InstallmentPosition
	Residual        int64 `json:"residual"`
	CreditApplied   int64 `json:"credit_applied"`
	CoveredByCredit bool  `json:"covered_by_credit"`
}

// OwnerWaterfall is the full projection for one owner.
type OwnerWaterfall struct {
	OwnerId         int            `json:"owner_id"`
	Rows            []WaterfallRow `json:"rows"`
	CreditPool      int64          `json:"credit_pool"`
	CreditRemaining int64          `json:"credit_remaining"`
	TotalResidual   int64          `json:"total_residual"`
}

// ComputeWaterfall projects credit absorption over one owner's installments.
// Pure and idempotent: the same positions always produce the same rows.
//
// Phase A pools the absolute values of all negative installment nets. Phase
// B walks the installments in ascending due date (installment id breaks
// ties) and applies the pool to each positive owed residual (net minus
// paid) until it runs dry. Non-positive nets pass through untouched, their
// residual is the net itself.
func ComputeWaterfall(ownerId int, positions []InstallmentPosition) *OwnerWaterfall {

	sorted := make([]InstallmentPosition, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].DueDate.Equal(sorted[j].DueDate) {
			return sorted[i].DueDate.Before(sorted[j].DueDate)
		}
		return sorted[i].InstallmentId < sorted[j].InstallmentId
	})

	var pool int64
	for _, p := range sorted {
		if p.Net < 0 {
			pool += utils.AbsInt64(p.Net)
		}
	}

	result := &OwnerWaterfall{
		OwnerId:    ownerId,
		CreditPool: pool,
	}

	credit := pool
	for _, p := range sorted {
		row := WaterfallRow{InstallmentPosition: p}

		if p.Net <= 0 {
			row.Residual = p.Net
		} else {
			owed := p.Net - p.Paid
			if owed < 0 {
				owed = 0
			}
			if credit >= owed {
				row.CreditApplied = owed
				row.Residual = 0
				row.CoveredByCredit = owed > 0
				credit -= owed
			} else {
				row.CreditApplied = credit
				row.Residual = owed - credit
				credit = 0
			}
		}

		result.TotalResidual += row.Residual
		result.Rows = append(result.Rows, row)
	}
	result.CreditRemaining = credit
	return result
}

// GetOwnerWaterfall aggregates the owner's persisted shares per installment
// and runs the projection. Only issued installments enter the view: drafts
// are not yet owed.
func GetOwnerWaterfall(ctx context.Context, ownerId int) (*OwnerWaterfall, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	if err := utils.ValidateResourceId[models.Owner](ctx, condominiumId, ownerId); err != nil {
		return nil, errors.New("owner not found")
	}

	db := config.GetDB()
	var positions []InstallmentPosition
	err := db.WithContext(ctx).
		Model(&models.InstallmentShare{}).
		Select(`installments.id AS installment_id,
			installments.sequence AS sequence,
			installments.due_date AS due_date,
			SUM(installment_shares.amount) AS net,
			SUM(installment_shares.paid_amount) AS paid`).
		Joins("JOIN installments ON installments.id = installment_shares.installment_id").
		Joins("JOIN expense_plans ON expense_plans.id = installments.plan_id").
		Where("expense_plans.condominium_id = ? AND installment_shares.owner_id = ? AND installments.status = ?",
			condominiumId, ownerId, models.InstallmentStatusIssued).
		Group("installments.id, installments.sequence, installments.due_date").
		Order("installments.due_date, installments.id").
		Scan(&positions).Error
	if err != nil {
		return nil, err
	}

	return ComputeWaterfall(ownerId, positions), nil
}
