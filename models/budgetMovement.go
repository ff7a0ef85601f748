package models

import (
	"context"
	"errors"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BudgetMovement is the immutable audit record of one budget reallocation.
// Rows are append-only and never deleted.
type BudgetMovement struct {
	ID                 int       `gorm:"primary_key" json:"id"`
	CondominiumId      string    `gorm:"index;not null;size:36" json:"condominium_id"`
	PlanId             int       `gorm:"index;not null" json:"plan_id"`
	SourceAccountId    int       `gorm:"index;not null" json:"source_account_id"`
	DestAccountId      int       `gorm:"index;not null" json:"dest_account_id"`
	Amount             int64     `gorm:"not null" json:"amount"`
	SourceAmountBefore int64     `gorm:"not null" json:"source_amount_before"`
	DestAmountBefore   int64     `gorm:"not null" json:"dest_amount_before"`
	ActorId            int       `gorm:"not null;default:0" json:"actor_id"`
	ActorName          string    `gorm:"size:100" json:"actor_name"`
	Reason             string    `gorm:"type:text" json:"reason"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewBudgetMovement struct {
	PlanId          int    `json:"plan_id" binding:"required"`
	SourceAccountId int    `json:"source_account_id" binding:"required"`
	DestAccountId   int    `json:"dest_account_id" binding:"required"`
	Amount          int64  `json:"amount" binding:"required"`
	Reason          string `json:"reason"`
}

func (input *NewBudgetMovement) validate() error {
	if input.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if input.SourceAccountId == input.DestAccountId {
		return errors.New("source and destination must differ")
	}
	return nil
}

// MoveBudget transactionally reallocates budget between two chapters of the
// same plan. Both plan-chapter rows are acquired under a FOR UPDATE lock in
// one statement before their current amounts are read, so two concurrent
// moves on the same plan cannot observe a stale available amount.
func MoveBudget(ctx context.Context, input *NewBudgetMovement) (*BudgetMovement, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	if err := input.validate(); err != nil {
		return nil, err
	}

	plan, err := utils.FetchModel[ExpensePlan](ctx, condominiumId, input.PlanId)
	if err != nil {
		return nil, errors.New("plan not found")
	}
	if plan.Status == PlanStatusClosed {
		return nil, errors.New("plan is closed")
	}

	sourceAccount, err := utils.FetchModel[LedgerAccount](ctx, condominiumId, input.SourceAccountId)
	if err != nil {
		return nil, errors.New("source account not found")
	}
	destAccount, err := utils.FetchModel[LedgerAccount](ctx, condominiumId, input.DestAccountId)
	if err != nil {
		return nil, errors.New("destination account not found")
	}

	actorId, _ := utils.GetActorIdFromContext(ctx)
	actorName, _ := utils.GetActorNameFromContext(ctx)
	if actorName == "" {
		actorName = "system"
	}

	var movement *BudgetMovement
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		// Single locking read for both rows; MySQL acquires the row locks
		// in index order, which keeps concurrent opposite moves deadlock-free.
		var locked []PlanChapter
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("plan_id = ? AND account_id IN ?", input.PlanId,
				[]int{input.SourceAccountId, input.DestAccountId}).
			Find(&locked).Error; err != nil {
			return err
		}

		var source, dest *PlanChapter
		for i := range locked {
			switch locked[i].AccountId {
			case input.SourceAccountId:
				source = &locked[i]
			case input.DestAccountId:
				dest = &locked[i]
			}
		}
		if source == nil {
			return errors.New("source account is not part of the plan")
		}

		sourceBefore := utils.DereferencePtr(source.OverrideAmount, sourceAccount.NominalAmount)
		if sourceBefore < input.Amount {
			return errors.New("insufficient available amount on source account")
		}

		destBefore := destAccount.NominalAmount
		if dest != nil {
			destBefore = utils.DereferencePtr(dest.OverrideAmount, destAccount.NominalAmount)
		}

		newSource := sourceBefore - input.Amount
		if err := tx.Model(&PlanChapter{}).Where("id = ?", source.ID).
			Update("override_amount", newSource).Error; err != nil {
			return err
		}

		newDest := destBefore + input.Amount
		if dest != nil {
			if err := tx.Model(&PlanChapter{}).Where("id = ?", dest.ID).
				Update("override_amount", newDest).Error; err != nil {
				return err
			}
		} else {
			// destination newly linked to the plan
			if destAccount.ParentAccountId != 0 {
				return errors.New("only a root account can be a plan chapter")
			}
			link := PlanChapter{
				PlanId:         input.PlanId,
				AccountId:      input.DestAccountId,
				OverrideAmount: &newDest,
			}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}

		movement = &BudgetMovement{
			CondominiumId:      condominiumId,
			PlanId:             input.PlanId,
			SourceAccountId:    input.SourceAccountId,
			DestAccountId:      input.DestAccountId,
			Amount:             input.Amount,
			SourceAmountBefore: sourceBefore,
			DestAmountBefore:   destBefore,
			ActorId:            actorId,
			ActorName:          actorName,
			Reason:             input.Reason,
		}
		if err := tx.Create(movement).Error; err != nil {
			return err
		}

		return EmitPlanEvent(ctx, tx, condominiumId, input.PlanId, PlanEventBudgetMoved, map[string]interface{}{
			"movement_id":       movement.ID,
			"source_account_id": input.SourceAccountId,
			"dest_account_id":   input.DestAccountId,
			"amount":            input.Amount,
		})
	})
	if err != nil {
		return nil, err
	}
	// the move changes the coverage picture
	if err := config.DeleteRedisKey("CoverageReport:" + condominiumId); err != nil {
		return nil, err
	}
	return movement, nil
}

// GetBudgetMovements lists a plan's reallocation audit trail, newest first.
func GetBudgetMovements(ctx context.Context, planId int) ([]*BudgetMovement, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	db := config.GetDB()
	var movements []*BudgetMovement
	err := db.WithContext(ctx).
		Where("condominium_id = ? AND plan_id = ?", condominiumId, planId).
		Order("id DESC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}
