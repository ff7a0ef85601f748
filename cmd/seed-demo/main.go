// seed-demo creates a small demo condominium: two owners, two units with a
// 600/400 millesimal table, a one-chapter chart of accounts and a four
// installment expense plan ready for generation.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/models"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = utils.SetActorNameInContext(ctx, "Seed")

	condominium, err := models.CreateCondominium(ctx, &models.NewCondominium{
		Name:    "Demo Condominio Via Roma 1",
		Address: "Via Roma 1, Milano",
	})
	if err != nil {
		fail("create condominium", err)
	}
	ctx = utils.SetCondominiumIdInContext(ctx, condominium.ID)

	period, err := models.CreateManagementPeriod(ctx, &models.NewManagementPeriod{
		Name:      "Esercizio 2026",
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		fail("create period", err)
	}

	ownerA, err := models.CreateOwner(ctx, &models.NewOwner{Name: "Mario Rossi", Email: "mario@example.com"})
	if err != nil {
		fail("create owner A", err)
	}
	ownerB, err := models.CreateOwner(ctx, &models.NewOwner{Name: "Lucia Bianchi", Email: "lucia@example.com"})
	if err != nil {
		fail("create owner B", err)
	}

	unitA, err := models.CreateUnit(ctx, &models.NewUnit{Name: "Interno 1", Code: "A1"})
	if err != nil {
		fail("create unit A", err)
	}
	unitB, err := models.CreateUnit(ctx, &models.NewUnit{Name: "Interno 2", Code: "A2"})
	if err != nil {
		fail("create unit B", err)
	}
	for _, assignment := range []models.NewUnitRole{
		{UnitId: unitA.ID, OwnerId: ownerA.ID, Role: models.SubjectRoleOwner, Quota: decimal.NewFromInt(100)},
		{UnitId: unitB.ID, OwnerId: ownerB.ID, Role: models.SubjectRoleOwner, Quota: decimal.NewFromInt(100)},
	} {
		if _, err := models.AssignUnitRole(ctx, &assignment); err != nil {
			fail("assign unit role", err)
		}
	}

	table, err := models.CreateWeightingTable(ctx, &models.NewWeightingTable{
		Name: "Millesimi proprieta",
		Quotas: []models.NewTableQuota{
			{UnitId: unitA.ID, Quota: decimal.NewFromInt(600)},
			{UnitId: unitB.ID, Quota: decimal.NewFromInt(400)},
		},
	})
	if err != nil {
		fail("create weighting table", err)
	}

	chapter, err := models.CreateLedgerAccount(ctx, &models.NewLedgerAccount{
		Kind:          models.AccountKindExpense,
		Name:          "Spese generali",
		Code:          "100",
		NominalAmount: 100000,
	})
	if err != nil {
		fail("create chapter account", err)
	}
	if _, err := models.LinkAccountTable(ctx, chapter.ID, table.ID); err != nil {
		fail("link account table", err)
	}

	plan, err := models.CreateExpensePlan(ctx, &models.NewExpensePlan{
		PeriodId:         period.ID,
		Name:             "Preventivo ordinario 2026",
		Method:           models.DistributionMethodSpreadEvenly,
		InstallmentCount: 4,
		DueDay:           5,
	})
	if err != nil {
		fail("create plan", err)
	}
	if _, err := models.AddPlanChapter(ctx, plan.ID, chapter.ID, nil); err != nil {
		fail("add plan chapter", err)
	}

	fmt.Printf("seeded condominium %s (period %d, plan %d)\n", condominium.ID, period.ID, plan.ID)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
