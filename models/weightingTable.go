package models

import (
	"context"
	"errors"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"github.com/shopspring/decimal"
)

// WeightingTable is a millesimal table: per-unit quotas plus a split of the
// charge across subject roles. Coefficient is the share of an account's
// amount this table carries, in percent (tables attached to the same
// account usually sum to 100).
type WeightingTable struct {
	ID            int             `gorm:"primary_key" json:"id"`
	CondominiumId string          `gorm:"index;not null;size:36" json:"condominium_id"`
	Name          string          `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Coefficient   decimal.Decimal `gorm:"type:decimal(7,4);not null;default:100" json:"coefficient"`
	Quotas        []TableQuota    `gorm:"foreignKey:TableId" json:"quotas"`
	Splits        []RoleSplit     `gorm:"foreignKey:TableId" json:"splits"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableQuota is one unit's weight ("quota", typically millesimi) in a table.
type TableQuota struct {
	ID      int             `gorm:"primary_key" json:"id"`
	TableId int             `gorm:"index;not null" json:"table_id"`
	UnitId  int             `gorm:"index;not null" json:"unit_id"`
	Quota   decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0" json:"quota"`
}

// RoleSplit divides a table's charge across subject roles; percents of one
// table sum to 100.
type RoleSplit struct {
	ID      int             `gorm:"primary_key" json:"id"`
	TableId int             `gorm:"index;not null" json:"table_id"`
	Role    SubjectRole     `gorm:"type:enum('Owner','Tenant','Usufructuary');size:15;not null" json:"role"`
	Percent decimal.Decimal `gorm:"type:decimal(7,4);not null;default:100" json:"percent"`
}

// AccountTableLink attaches a weighting table to a ledger account.
type AccountTableLink struct {
	ID        int `gorm:"primary_key" json:"id"`
	AccountId int `gorm:"index;not null" json:"account_id"`
	TableId   int `gorm:"index;not null" json:"table_id"`
}

type NewTableQuota struct {
	UnitId int             `json:"unit_id" binding:"required"`
	Quota  decimal.Decimal `json:"quota"`
}

type NewRoleSplit struct {
	Role    SubjectRole     `json:"role" binding:"required"`
	Percent decimal.Decimal `json:"percent"`
}

type NewWeightingTable struct {
	Name        string          `json:"name" binding:"required"`
	Coefficient decimal.Decimal `json:"coefficient"`
	Quotas      []NewTableQuota `json:"quotas"`
	Splits      []NewRoleSplit  `json:"splits"`
}

var hundred = decimal.NewFromInt(100)

func (input *NewWeightingTable) validate(ctx context.Context, condominiumId string, id int) error {
	if input.Coefficient.IsNegative() || input.Coefficient.GreaterThan(hundred) {
		return errors.New("coefficient must be between 0 and 100")
	}
	if err := utils.ValidateUnique[WeightingTable](ctx, condominiumId, "name", input.Name, id); err != nil {
		return err
	}
	var unitIds []int
	for _, q := range input.Quotas {
		if q.Quota.IsNegative() {
			return errors.New("quota cannot be negative")
		}
		unitIds = append(unitIds, q.UnitId)
	}
	if len(unitIds) != len(utils.UniqueSlice(unitIds)) {
		return errors.New("duplicate unit in quotas")
	}
	if err := utils.ValidateResourcesId[Unit](ctx, condominiumId, unitIds); err != nil {
		return errors.New("unit not found")
	}
	if len(input.Splits) > 0 {
		sum := decimal.Zero
		for _, s := range input.Splits {
			if s.Percent.IsNegative() {
				return errors.New("role percent cannot be negative")
			}
			sum = sum.Add(s.Percent)
		}
		if !sum.Equal(hundred) {
			return errors.New("role percents must sum to 100")
		}
	}
	return nil
}

func CreateWeightingTable(ctx context.Context, input *NewWeightingTable) (*WeightingTable, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	if err := input.validate(ctx, condominiumId, 0); err != nil {
		return nil, err
	}

	coefficient := input.Coefficient
	if coefficient.IsZero() {
		coefficient = hundred
	}
	splits := input.Splits
	if len(splits) == 0 {
		// no explicit split: everything on the owner
		splits = []NewRoleSplit{{Role: SubjectRoleOwner, Percent: hundred}}
	}

	table := WeightingTable{
		CondominiumId: condominiumId,
		Name:          input.Name,
		Coefficient:   coefficient,
	}
	for _, q := range input.Quotas {
		table.Quotas = append(table.Quotas, TableQuota{UnitId: q.UnitId, Quota: q.Quota})
	}
	for _, s := range splits {
		table.Splits = append(table.Splits, RoleSplit{Role: s.Role, Percent: s.Percent})
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&table).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

func GetWeightingTable(ctx context.Context, id int) (*WeightingTable, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	return utils.FetchModel[WeightingTable](ctx, condominiumId, id, "Quotas", "Splits")
}

// LinkAccountTable attaches a weighting table to a ledger account.
func LinkAccountTable(ctx context.Context, accountId int, tableId int) (*AccountTableLink, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	if err := utils.ValidateResourceId[LedgerAccount](ctx, condominiumId, accountId); err != nil {
		return nil, errors.New("account not found")
	}
	if err := utils.ValidateResourceId[WeightingTable](ctx, condominiumId, tableId); err != nil {
		return nil, errors.New("weighting table not found")
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&AccountTableLink{}).
		Where("account_id = ? AND table_id = ?", accountId, tableId).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("table already linked to this account")
	}

	link := AccountTableLink{AccountId: accountId, TableId: tableId}
	if err := db.WithContext(ctx).Create(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// GetAccountTables returns, per account id, the weighting tables linked to
// it (quotas and splits preloaded), for all accounts of the condominium.
func GetAccountTables(ctx context.Context, condominiumId string) (map[int][]*WeightingTable, error) {
	db := config.GetDB()

	var links []*AccountTableLink
	if err := db.WithContext(ctx).
		Joins("JOIN ledger_accounts ON ledger_accounts.id = account_table_links.account_id").
		Where("ledger_accounts.condominium_id = ?", condominiumId).
		Order("account_table_links.account_id, account_table_links.table_id").
		Find(&links).Error; err != nil {
		return nil, err
	}

	var tableIds []int
	for _, link := range links {
		tableIds = append(tableIds, link.TableId)
	}
	tables := make(map[int]*WeightingTable)
	if len(tableIds) > 0 {
		var rows []*WeightingTable
		if err := db.WithContext(ctx).Preload("Quotas").Preload("Splits").
			Where("id IN ?", utils.UniqueSlice(tableIds)).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, t := range rows {
			tables[t.ID] = t
		}
	}

	result := make(map[int][]*WeightingTable)
	for _, link := range links {
		if t, ok := tables[link.TableId]; ok {
			result[link.AccountId] = append(result[link.AccountId], t)
		}
	}
	return result, nil
}
