package models

import (
	"context"
	"errors"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
)

// Owner is a billable party. One owner may hold roles on many units.
type Owner struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CondominiumId string    `gorm:"index;not null;size:36" json:"condominium_id"`
	Name          string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Email         string    `gorm:"size:100" json:"email"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOwner struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
}

func CreateOwner(ctx context.Context, input *NewOwner) (*Owner, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	if err := utils.ValidateUnique[Owner](ctx, condominiumId, "name", input.Name, 0); err != nil {
		return nil, err
	}

	owner := Owner{
		CondominiumId: condominiumId,
		Name:          input.Name,
		Email:         input.Email,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&owner).Error; err != nil {
		return nil, err
	}
	return &owner, nil
}

func GetOwner(ctx context.Context, id int) (*Owner, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	return utils.FetchModel[Owner](ctx, condominiumId, id)
}

func GetOwners(ctx context.Context) ([]*Owner, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	return utils.FetchAllModels[Owner](ctx, condominiumId)
}
