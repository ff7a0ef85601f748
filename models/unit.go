package models

import (
	"context"
	"errors"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"github.com/shopspring/decimal"
)

// Unit is one billable unit of the building (apartment, garage, shop).
type Unit struct {
	ID            int        `gorm:"primary_key" json:"id"`
	CondominiumId string     `gorm:"index;not null;size:36" json:"condominium_id"`
	Name          string     `gorm:"size:100;not null" json:"name" binding:"required"`
	Code          string     `gorm:"size:30" json:"code"`
	Roles         []UnitRole `gorm:"foreignKey:UnitId" json:"roles"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// UnitRole says that an owner holds a role on a unit with an individual
// quota. Inactive rows are kept for history but never billed.
type UnitRole struct {
	ID       int             `gorm:"primary_key" json:"id"`
	UnitId   int             `gorm:"index;not null" json:"unit_id"`
	OwnerId  int             `gorm:"index;not null" json:"owner_id"`
	Role     SubjectRole     `gorm:"type:enum('Owner','Tenant','Usufructuary');size:15;not null" json:"role"`
	Quota    decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0" json:"quota"`
	IsActive *bool           `gorm:"not null;default:true" json:"is_active"`
}

type NewUnit struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code"`
}

type NewUnitRole struct {
	UnitId  int             `json:"unit_id" binding:"required"`
	OwnerId int             `json:"owner_id" binding:"required"`
	Role    SubjectRole     `json:"role" binding:"required"`
	Quota   decimal.Decimal `json:"quota"`
}

func CreateUnit(ctx context.Context, input *NewUnit) (*Unit, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	if err := utils.ValidateUnique[Unit](ctx, condominiumId, "name", input.Name, 0); err != nil {
		return nil, err
	}

	unit := Unit{
		CondominiumId: condominiumId,
		Name:          input.Name,
		Code:          input.Code,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&unit).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

func GetUnit(ctx context.Context, id int) (*Unit, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	return utils.FetchModel[Unit](ctx, condominiumId, id, "Roles")
}

// AssignUnitRole registers an owner on a unit with a role and quota.
func AssignUnitRole(ctx context.Context, input *NewUnitRole) (*UnitRole, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	if input.Quota.IsNegative() {
		return nil, errors.New("quota cannot be negative")
	}
	if err := utils.ValidateResourceId[Unit](ctx, condominiumId, input.UnitId); err != nil {
		return nil, errors.New("unit not found")
	}
	if err := utils.ValidateResourceId[Owner](ctx, condominiumId, input.OwnerId); err != nil {
		return nil, errors.New("owner not found")
	}

	role := UnitRole{
		UnitId:   input.UnitId,
		OwnerId:  input.OwnerId,
		Role:     input.Role,
		Quota:    input.Quota,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// DeactivateUnitRole ends a role assignment without losing its history.
func DeactivateUnitRole(ctx context.Context, id int) error {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&UnitRole{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// GetActiveUnitRoles returns all active role rows of the condominium,
// grouped by unit id, for the apportionment engine.
func GetActiveUnitRoles(ctx context.Context, condominiumId string) (map[int][]*UnitRole, error) {
	db := config.GetDB()
	var roles []*UnitRole
	err := db.WithContext(ctx).
		Joins("JOIN units ON units.id = unit_roles.unit_id").
		Where("units.condominium_id = ? AND unit_roles.is_active = 1", condominiumId).
		Order("unit_roles.unit_id, unit_roles.owner_id").
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	byUnit := make(map[int][]*UnitRole)
	for _, r := range roles {
		byUnit[r.UnitId] = append(byUnit[r.UnitId], r)
	}
	return byUnit, nil
}
