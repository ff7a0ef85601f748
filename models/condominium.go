package models

import (
	"context"
	"errors"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/google/uuid"
)

// Condominium is the management grouping: it owns the chart of accounts,
// the units and the management periods.
type Condominium struct {
	ID         string    `gorm:"primary_key;size:36" json:"id"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Address    string    `gorm:"size:255" json:"address"`
	FiscalCode string    `gorm:"size:30" json:"fiscal_code"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCondominium struct {
	Name       string `json:"name" binding:"required"`
	Address    string `json:"address"`
	FiscalCode string `json:"fiscal_code"`
}

func CreateCondominium(ctx context.Context, input *NewCondominium) (*Condominium, error) {
	condominium := Condominium{
		ID:         uuid.NewString(),
		Name:       input.Name,
		Address:    input.Address,
		FiscalCode: input.FiscalCode,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&condominium).Error; err != nil {
		return nil, err
	}
	return &condominium, nil
}

func GetCondominiumById(ctx context.Context, id string) (*Condominium, error) {
	if id == "" {
		return nil, errors.New("condominium id is required")
	}
	db := config.GetDB()
	var condominium Condominium
	if err := db.WithContext(ctx).Where("id = ?", id).First(&condominium).Error; err != nil {
		return nil, err
	}
	return &condominium, nil
}
