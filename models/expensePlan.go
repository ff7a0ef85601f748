package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"gorm.io/gorm"
)

// ExpensePlan bills the chapters it references over N installments.
type ExpensePlan struct {
	ID               int                `gorm:"primary_key" json:"id"`
	CondominiumId    string             `gorm:"index;not null;size:36" json:"condominium_id"`
	PeriodId         int                `gorm:"index;not null" json:"period_id"`
	Name             string             `gorm:"size:100;not null" json:"name" binding:"required"`
	Method           DistributionMethod `gorm:"type:enum('FrontLoaded','SpreadEvenly');default:'SpreadEvenly';size:15;not null" json:"method"`
	InstallmentCount int                `gorm:"not null;default:1" json:"installment_count"`
	DueDay           int                `gorm:"not null;default:1" json:"due_day"`
	Status           PlanStatus         `gorm:"type:enum('Draft','Active','Closed');default:'Draft';size:10;not null" json:"status"`
	Chapters         []PlanChapter      `gorm:"foreignKey:PlanId" json:"chapters"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// PlanChapter links a root ledger account into a plan. OverrideAmount, when
// set, replaces the chapter's nominal amount for this plan; it is also the
// row the budget reallocation service locks and mutates.
type PlanChapter struct {
	ID             int    `gorm:"primary_key" json:"id"`
	PlanId         int    `gorm:"index;not null" json:"plan_id"`
	AccountId      int    `gorm:"index;not null" json:"account_id"`
	OverrideAmount *int64 `json:"override_amount"`
}

type NewExpensePlan struct {
	PeriodId         int                `json:"period_id" binding:"required"`
	Name             string             `json:"name" binding:"required"`
	Method           DistributionMethod `json:"method" binding:"required"`
	InstallmentCount int                `json:"installment_count" binding:"required"`
	DueDay           int                `json:"due_day"`
}

func (input *NewExpensePlan) validate(ctx context.Context, condominiumId string, id int) error {
	if input.InstallmentCount < 1 || input.InstallmentCount > 36 {
		return errors.New("installment count must be between 1 and 36")
	}
	if input.DueDay < 1 || input.DueDay > 28 {
		return errors.New("due day must be between 1 and 28")
	}
	if input.Method != DistributionMethodFrontLoaded && input.Method != DistributionMethodSpreadEvenly {
		return errors.New("invalid distribution method")
	}
	if err := utils.ValidateResourceId[ManagementPeriod](ctx, condominiumId, input.PeriodId); err != nil {
		return errors.New("management period not found")
	}
	if err := utils.ValidateUnique[ExpensePlan](ctx, condominiumId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateExpensePlan(ctx context.Context, input *NewExpensePlan) (*ExpensePlan, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	if input.DueDay == 0 {
		input.DueDay = 1
	}
	if err := input.validate(ctx, condominiumId, 0); err != nil {
		return nil, err
	}

	plan := ExpensePlan{
		CondominiumId:    condominiumId,
		PeriodId:         input.PeriodId,
		Name:             input.Name,
		Method:           input.Method,
		InstallmentCount: input.InstallmentCount,
		DueDay:           input.DueDay,
		Status:           PlanStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func GetExpensePlan(ctx context.Context, id int) (*ExpensePlan, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	return utils.FetchModel[ExpensePlan](ctx, condominiumId, id, "Chapters")
}

// AddPlanChapter links a chapter (root account) into the plan, optionally
// with a partial-amount override. The whole branch of the chapter must be
// free of other active plans.
func AddPlanChapter(ctx context.Context, planId int, accountId int, overrideAmount *int64) (*PlanChapter, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	plan, err := utils.FetchModel[ExpensePlan](ctx, condominiumId, planId)
	if err != nil {
		return nil, err
	}
	if plan.Status == PlanStatusClosed {
		return nil, errors.New("plan is closed")
	}

	account, err := utils.FetchModel[LedgerAccount](ctx, condominiumId, accountId)
	if err != nil {
		return nil, errors.New("account not found")
	}
	if account.ParentAccountId != 0 {
		return nil, errors.New("only a root account can be a plan chapter")
	}
	if overrideAmount != nil && *overrideAmount < 0 {
		return nil, errors.New("override amount cannot be negative")
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&PlanChapter{}).
		Where("plan_id = ? AND account_id = ?", planId, accountId).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("chapter already linked to this plan")
	}

	// An already-active plan claims branches immediately; draft plans are
	// checked again on activation.
	if plan.Status == PlanStatusActive {
		if err := validateChapterBranchFree(ctx, condominiumId, planId, accountId); err != nil {
			return nil, err
		}
	}

	chapter := PlanChapter{
		PlanId:         planId,
		AccountId:      accountId,
		OverrideAmount: overrideAmount,
	}
	if err := db.WithContext(ctx).Create(&chapter).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

// ActivateExpensePlan transitions a draft plan to active, enforcing the
// one-active-plan-per-branch invariant for every chapter it references.
func ActivateExpensePlan(ctx context.Context, planId int) (*ExpensePlan, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	plan, err := utils.FetchModel[ExpensePlan](ctx, condominiumId, planId, "Chapters")
	if err != nil {
		return nil, err
	}
	if plan.Status != PlanStatusDraft {
		return nil, errors.New("only a draft plan can be activated")
	}
	if len(plan.Chapters) == 0 {
		return nil, errors.New("plan has no chapters")
	}

	for _, chapter := range plan.Chapters {
		if err := validateChapterBranchFree(ctx, condominiumId, planId, chapter.AccountId); err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(plan).Update("status", PlanStatusActive).Error; err != nil {
		return nil, err
	}
	return plan, nil
}

// validateChapterBranchFree rejects the chapter when any account of its
// branch (self, ancestors, descendants) is already referenced by another
// active plan. This is the double-billing guard.
func validateChapterBranchFree(ctx context.Context, condominiumId string, planId int, accountId int) error {
	accounts, err := GetChartOfAccounts(ctx, condominiumId)
	if err != nil {
		return err
	}
	arena := BuildAccountArena(accounts)
	branch := arena.BranchIds(accountId)
	if len(branch) == 0 {
		return errors.New("account not found")
	}

	db := config.GetDB()
	var claimed []PlanChapter
	err = db.WithContext(ctx).
		Joins("JOIN expense_plans ON expense_plans.id = plan_chapters.plan_id").
		Where("expense_plans.condominium_id = ? AND expense_plans.status = ? AND expense_plans.id <> ?",
			condominiumId, PlanStatusActive, planId).
		Where("plan_chapters.account_id IN ?", branch).
		Find(&claimed).Error
	if err != nil {
		return err
	}
	if len(claimed) > 0 {
		return fmt.Errorf("chapter branch already claimed by active plan %d", claimed[0].PlanId)
	}
	return nil
}

// DeleteExpensePlan removes the plan together with its installments and
// shares. Hard guard: nothing is deleted once any share carries a payment.
func DeleteExpensePlan(ctx context.Context, planId int) (*ExpensePlan, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	plan, err := utils.FetchModel[ExpensePlan](ctx, condominiumId, planId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&InstallmentShare{}).
		Where("plan_id = ? AND paid_amount <> 0", planId).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("plan has shares with recorded payments")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plan_id = ?", planId).Delete(&InstallmentShare{}).Error; err != nil {
			return err
		}
		if err := tx.Where("plan_id = ?", planId).Delete(&Installment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("plan_id = ?", planId).Delete(&PlanChapter{}).Error; err != nil {
			return err
		}
		return tx.Delete(plan).Error
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// GetActivePlanChapters returns all chapters of active plans of the
// condominium, keyed by plan id, for the coverage analyzer.
func GetActivePlanChapters(ctx context.Context, condominiumId string) (map[int][]*PlanChapter, error) {
	db := config.GetDB()
	var chapters []*PlanChapter
	err := db.WithContext(ctx).
		Joins("JOIN expense_plans ON expense_plans.id = plan_chapters.plan_id").
		Where("expense_plans.condominium_id = ? AND expense_plans.status = ?", condominiumId, PlanStatusActive).
		Order("plan_chapters.plan_id, plan_chapters.account_id").
		Find(&chapters).Error
	if err != nil {
		return nil, err
	}
	byPlan := make(map[int][]*PlanChapter)
	for _, c := range chapters {
		byPlan[c.PlanId] = append(byPlan[c.PlanId], c)
	}
	return byPlan, nil
}
