package models

import (
	"log"

	"github.com/AlecsRosa/kondomanager-sub000/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Condominium{}, &ManagementPeriod{},
		&LedgerAccount{}, &WeightingTable{}, &TableQuota{}, &RoleSplit{}, &AccountTableLink{},
		&Unit{}, &UnitRole{}, &Owner{},
		&ExpensePlan{}, &PlanChapter{},
		&Installment{}, &InstallmentShare{},
		&PriorBalance{}, &BudgetMovement{},
		&PlanEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
