package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Installment is one due date of a plan. Total is always the sum of its
// shares and is never set by hand.
type Installment struct {
	ID        int                `gorm:"primary_key" json:"id"`
	PlanId    int                `gorm:"index;not null" json:"plan_id"`
	Sequence  int                `gorm:"not null" json:"sequence"`
	DueDate   time.Time          `gorm:"not null;index" json:"due_date"`
	IssueDate *time.Time         `json:"issue_date"`
	Total     int64              `gorm:"not null;default:0" json:"total"`
	Status    InstallmentStatus  `gorm:"type:enum('Draft','Issued');default:'Draft';size:10;not null" json:"status"`
	Shares    []InstallmentShare `gorm:"foreignKey:InstallmentId" json:"shares"`
	CreatedAt time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// InstallmentShare is one owner's signed amount within one installment for
// one unit. Negative amounts are credits. Snapshot documents how the
// amount was derived.
type InstallmentShare struct {
	ID            int        `gorm:"primary_key" json:"id"`
	InstallmentId int        `gorm:"index;not null" json:"installment_id"`
	PlanId        int        `gorm:"index;not null" json:"plan_id"`
	OwnerId       int        `gorm:"index;not null" json:"owner_id"`
	UnitId        int        `gorm:"index;not null" json:"unit_id"`
	Amount        int64      `gorm:"not null;default:0" json:"amount"`
	PaidAmount    int64      `gorm:"not null;default:0" json:"paid_amount"`
	State         ShareState `gorm:"type:enum('Payable','Credit');default:'Payable';size:10;not null" json:"state"`
	Snapshot      string     `gorm:"type:text" json:"snapshot"`
	PostingRef    string     `gorm:"size:50" json:"posting_ref"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ShareSnapshot is the audit trail embedded in every share.
type ShareSnapshot struct {
	PureShare        int64              `json:"pure_share"`
	BalanceShare     int64              `json:"balance_share"`
	Method           DistributionMethod `json:"method"`
	InstallmentIndex int                `json:"installment_index"`
	ComputedAt       time.Time          `json:"computed_at"`
	Actor            string             `json:"actor"`
}

// GetInstallment returns one installment with its shares. Installments
// carry no condominium column, so the owning plan is re-fetched under the
// tenant scope and cross-tenant ids come back as not found.
func GetInstallment(ctx context.Context, id int) (*Installment, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	installment, err := utils.FetchSingleModel[Installment](ctx, id, "Shares")
	if err != nil {
		return nil, err
	}
	if _, err := utils.FetchModel[ExpensePlan](ctx, condominiumId, installment.PlanId); err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return installment, nil
}

// GetPlanInstallments returns a plan's installments ordered by sequence.
func GetPlanInstallments(ctx context.Context, planId int) ([]*Installment, error) {
	db := config.GetDB()
	var installments []*Installment
	err := db.WithContext(ctx).Preload("Shares").
		Where("plan_id = ?", planId).
		Order("sequence").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

// IssueInstallment posts a draft installment to the ledger: it stamps the
// issue date and a posting reference on every share. This is the minimal
// "issued" posting; no double-entry rows are produced here.
func IssueInstallment(ctx context.Context, installmentId int) (*Installment, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	installment, err := utils.FetchSingleModel[Installment](ctx, installmentId)
	if err != nil {
		return nil, err
	}
	if installment.Status == InstallmentStatusIssued {
		return nil, errors.New("installment is already issued")
	}

	plan, err := utils.FetchModel[ExpensePlan](ctx, condominiumId, installment.PlanId)
	if err != nil {
		return nil, err
	}
	if plan.Status != PlanStatusActive {
		return nil, errors.New("plan is not active")
	}

	now := time.Now().UTC()
	postingRef := fmt.Sprintf("%d/%d-%s", plan.ID, installment.Sequence, uuid.NewString()[:8])

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Installment{}).
			Where("id = ? AND status = ?", installmentId, InstallmentStatusDraft).
			Updates(map[string]interface{}{
				"status":     InstallmentStatusIssued,
				"issue_date": now,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&InstallmentShare{}).
			Where("installment_id = ?", installmentId).
			Update("posting_ref", postingRef).Error; err != nil {
			return err
		}
		return EmitPlanEvent(ctx, tx, condominiumId, plan.ID, PlanEventIssued, map[string]interface{}{
			"installment_id": installmentId,
			"sequence":       installment.Sequence,
			"posting_ref":    postingRef,
		})
	})
	if err != nil {
		return nil, err
	}

	installment.Status = InstallmentStatusIssued
	installment.IssueDate = &now
	return installment, nil
}

// DeleteInstallment removes one installment and its shares. Deletable only
// while no payments exist.
func DeleteInstallment(ctx context.Context, installmentId int) (*Installment, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	installment, err := utils.FetchSingleModel[Installment](ctx, installmentId)
	if err != nil {
		return nil, err
	}
	// installments have no condominium column; scope through the plan
	if _, err := utils.FetchModel[ExpensePlan](ctx, condominiumId, installment.PlanId); err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&InstallmentShare{}).
		Where("installment_id = ? AND paid_amount <> 0", installmentId).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("installment has shares with recorded payments")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("installment_id = ?", installmentId).Delete(&InstallmentShare{}).Error; err != nil {
			return err
		}
		return tx.Delete(installment).Error
	})
	if err != nil {
		return nil, err
	}
	return installment, nil
}

type NewPayment struct {
	ShareId int   `json:"share_id" binding:"required"`
	Amount  int64 `json:"amount" binding:"required"`
}

// RecordPayment adds a received amount to a share. The waterfall derives
// residuals from paid amounts, so nothing else is recomputed here.
func RecordPayment(ctx context.Context, input *NewPayment) (*InstallmentShare, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	if input.Amount <= 0 {
		return nil, errors.New("payment amount must be positive")
	}

	share, err := utils.FetchSingleModel[InstallmentShare](ctx, input.ShareId)
	if err != nil {
		return nil, err
	}
	// shares have no condominium column; scope through the plan
	if _, err := utils.FetchModel[ExpensePlan](ctx, condominiumId, share.PlanId); err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if share.State == ShareStateCredit {
		return nil, errors.New("cannot record a payment on a credit share")
	}

	var installment Installment
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&installment, share.InstallmentId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if installment.Status != InstallmentStatusIssued {
		return nil, errors.New("installment is not issued yet")
	}

	if err := db.WithContext(ctx).Model(share).
		Update("paid_amount", gorm.Expr("paid_amount + ?", input.Amount)).Error; err != nil {
		return nil, err
	}
	share.PaidAmount += input.Amount
	return share, nil
}

// ReplacePlanInstallments deletes a plan's installments and shares and
// writes the freshly generated ones, inside the caller's transaction.
// Installment totals are derived from the shares here, never passed in.
func ReplacePlanInstallments(tx *gorm.DB, planId int, installments []*Installment) error {
	if err := tx.Where("plan_id = ?", planId).Delete(&InstallmentShare{}).Error; err != nil {
		return err
	}
	if err := tx.Where("plan_id = ?", planId).Delete(&Installment{}).Error; err != nil {
		return err
	}
	for _, installment := range installments {
		var total int64
		for i := range installment.Shares {
			total += installment.Shares[i].Amount
		}
		installment.Total = total
		if err := tx.Create(installment).Error; err != nil {
			return err
		}
	}
	return nil
}

// PlanHasPostedShares reports the generation-blocking condition: a share
// with a recorded payment or a posting reference.
func PlanHasPostedShares(ctx context.Context, planId int) (bool, string, error) {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&InstallmentShare{}).
		Where("plan_id = ? AND paid_amount <> 0", planId).Count(&count).Error; err != nil {
		return false, "", err
	}
	if count > 0 {
		return true, "plan has shares with recorded payments", nil
	}
	if err := db.WithContext(ctx).Model(&InstallmentShare{}).
		Where("plan_id = ? AND posting_ref <> ''", planId).Count(&count).Error; err != nil {
		return false, "", err
	}
	if count > 0 {
		return true, "plan has shares already posted to the ledger", nil
	}
	return false, "", nil
}
