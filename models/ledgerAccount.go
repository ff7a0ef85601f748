package models

import (
	"context"
	"errors"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
)

// LedgerAccount is one node of the chart-of-accounts tree. A node with
// ParentAccountId = 0 is a root ("chapter"). NominalAmount is the budgeted
// amount in integer cents; a parent's effective amount is the sum of its
// children's effective amounts unless a plan override says otherwise.
type LedgerAccount struct {
	ID              int         `gorm:"primary_key" json:"id"`
	CondominiumId   string      `gorm:"index;not null;size:36" json:"condominium_id"`
	ParentAccountId int         `gorm:"index;not null;default:0" json:"parent_account_id"`
	Kind            AccountKind `gorm:"type:enum('Expense','Income');default:'Expense';size:10;not null" json:"kind" binding:"required"`
	Name            string      `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Code            string      `gorm:"size:30" json:"code"`
	NominalAmount   int64       `gorm:"not null;default:0" json:"nominal_amount"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLedgerAccount struct {
	ParentAccountId int         `json:"parent_account_id"`
	Kind            AccountKind `json:"kind" binding:"required"`
	Name            string      `json:"name" binding:"required"`
	Code            string      `json:"code"`
	NominalAmount   int64       `json:"nominal_amount"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewLedgerAccount) validate(ctx context.Context, condominiumId string, id int) error {
	if id > 0 {
		if id == input.ParentAccountId {
			return errors.New("self-parent not allowed")
		}
		if err := utils.ValidateResourceId[LedgerAccount](ctx, condominiumId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[LedgerAccount](ctx, condominiumId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Code != "" {
		if err := utils.ValidateUnique[LedgerAccount](ctx, condominiumId, "code", input.Code, id); err != nil {
			return err
		}
	}
	if input.NominalAmount < 0 {
		return errors.New("nominal amount cannot be negative")
	}
	if input.ParentAccountId > 0 {
		if err := utils.ValidateResourceId[LedgerAccount](ctx, condominiumId, input.ParentAccountId); err != nil {
			return errors.New("parent not found")
		}
	}
	return nil
}

func CreateLedgerAccount(ctx context.Context, input *NewLedgerAccount) (*LedgerAccount, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	if err := input.validate(ctx, condominiumId, 0); err != nil {
		return nil, err
	}

	account := LedgerAccount{
		CondominiumId:   condominiumId,
		ParentAccountId: input.ParentAccountId,
		Kind:            input.Kind,
		Name:            input.Name,
		Code:            input.Code,
		NominalAmount:   input.NominalAmount,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func UpdateLedgerAccount(ctx context.Context, id int, input *NewLedgerAccount) (*LedgerAccount, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	if err := input.validate(ctx, condominiumId, id); err != nil {
		return nil, err
	}

	account, err := utils.FetchModel[LedgerAccount](ctx, condominiumId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"Name":          input.Name,
		"Code":          input.Code,
		"Kind":          input.Kind,
		"NominalAmount": input.NominalAmount,
	}
	if input.ParentAccountId >= 0 {
		updates["ParentAccountId"] = input.ParentAccountId
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&account).Updates(updates).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func DeleteLedgerAccount(ctx context.Context, id int) (*LedgerAccount, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	account, err := utils.FetchModel[LedgerAccount](ctx, condominiumId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&LedgerAccount{}).
		Where("parent_account_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("this account has child account(s)")
	}

	if err := db.WithContext(ctx).Model(&PlanChapter{}).
		Where("account_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("this account is referenced by an expense plan")
	}

	if err := db.WithContext(ctx).Delete(&account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func GetLedgerAccount(ctx context.Context, id int) (*LedgerAccount, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	return utils.FetchModel[LedgerAccount](ctx, condominiumId, id)
}

// GetChartOfAccounts returns all ledger accounts of the condominium in a
// stable order, ready to feed BuildAccountArena.
func GetChartOfAccounts(ctx context.Context, condominiumId string) ([]*LedgerAccount, error) {
	db := config.GetDB()
	var accounts []*LedgerAccount
	err := db.WithContext(ctx).
		Where("condominium_id = ?", condominiumId).
		Order("id").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
