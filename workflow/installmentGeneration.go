package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/models"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"github.com/shopspring/decimal"
)

// GenerationResult reports the outcome of a plan generation. A blocked
// generation is a no-op with a human-readable reason, not an error.
type GenerationResult struct {
	Blocked      bool                  `json:"blocked"`
	Reason       string                `json:"reason,omitempty"`
	Installments []*models.Installment `json:"installments,omitempty"`
}

// SplitAcrossInstallments splits an integer cent total evenly across n
// installments: each gets floor(|total|/n), and the first |total| mod n
// installments absorb one extra cent, sign preserved. The parts always sum
// to the total.
func SplitAcrossInstallments(total int64, n int) []int64 {
	parts := make([]int64, n)
	if n <= 0 || total == 0 {
		return parts
	}

	sign := int64(1)
	if total < 0 {
		sign = -1
	}
	abs := utils.AbsInt64(total)
	base := abs / int64(n)
	remainder := abs % int64(n)
	for i := 0; i < n; i++ {
		v := base
		if int64(i) < remainder {
			v++
		}
		parts[i] = sign * v
	}
	return parts
}

// GenerateInstallments recomputes a plan's installments and shares from
// the chart of accounts, the weighting tables and the resolved prior
// balances. Regeneration guard: the plan must not have any paid or posted
// share; when it does, the call is a no-op reporting the blocking reason.
// Otherwise existing installments and shares are deleted and fully
// recomputed inside one transaction.
func GenerateInstallments(ctx context.Context, planId int) (*GenerationResult, error) {

	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}
	logger := config.GetLogger()

	plan, err := utils.FetchModel[models.ExpensePlan](ctx, condominiumId, planId, "Chapters")
	if err != nil {
		return nil, errors.New("plan not found")
	}
	if plan.Status == models.PlanStatusClosed {
		return nil, errors.New("plan is closed")
	}
	if len(plan.Chapters) == 0 {
		return nil, errors.New("plan has no chapters")
	}
	period, err := utils.FetchModel[models.ManagementPeriod](ctx, condominiumId, plan.PeriodId)
	if err != nil {
		return nil, errors.New("management period not found")
	}
	if period.Status != models.PeriodStatusOpen {
		return nil, errors.New("management period is closed")
	}

	blocked, reason, err := models.PlanHasPostedShares(ctx, planId)
	if err != nil {
		return nil, err
	}
	if blocked {
		return &GenerationResult{Blocked: true, Reason: reason}, nil
	}

	// load the computation inputs (read-only during the computation)
	accounts, err := models.GetChartOfAccounts(ctx, condominiumId)
	if err != nil {
		return nil, err
	}
	arena := models.BuildAccountArena(accounts)

	tablesByAccount, err := loadTableSnapshots(ctx, condominiumId)
	if err != nil {
		return nil, err
	}
	occupancy, err := loadOccupancy(ctx, condominiumId)
	if err != nil {
		return nil, err
	}

	chapterIds := make([]int, 0, len(plan.Chapters))
	overrides := make(map[int]int64)
	for _, chapter := range plan.Chapters {
		chapterIds = append(chapterIds, chapter.AccountId)
		if chapter.OverrideAmount != nil {
			overrides[chapter.AccountId] = *chapter.OverrideAmount
		}
	}

	PushDownOverrides(arena, overrides, logger)
	perUnitTotals := ApportionAccounts(arena, chapterIds, overrides, tablesByAccount, occupancy, logger)

	resolution, err := models.ResolvePriorBalances(ctx, condominiumId, plan.PeriodId, planId)
	if err != nil {
		return nil, err
	}
	balances := map[int]int64{}
	if resolution.Applicable {
		balances = resolution.Balances
	} else if logger != nil {
		config.LogWarn(logger, "workflow", "GenerateInstallments", "prior balances not applied: "+resolution.Reason, planId)
	}

	actorName, _ := utils.GetActorNameFromContext(ctx)
	if actorName == "" {
		actorName = "system"
	}

	installments := buildInstallments(plan, period, perUnitTotals, balances, actorName)

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	if err := models.ReplacePlanInstallments(tx, planId, installments); err != nil {
		tx.Rollback()
		return nil, err
	}
	if resolution.Applicable && len(balances) > 0 {
		if err := models.MarkPeriodBalanceApplied(tx, plan.PeriodId, planId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := models.EmitPlanEvent(ctx, tx, condominiumId, planId, models.PlanEventGenerated, map[string]interface{}{
		"installments": len(installments),
	}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &GenerationResult{Installments: installments}, nil
}

// buildInstallments computes the N installments with their shares. Pure:
// all inputs are in memory.
//
// The balance component is applied once per owner, regardless of how many
// units the owner holds: it is attached to the owner's lowest unit id
// (deterministic tie-break) and zeroed for every other unit.
func buildInstallments(
	plan *models.ExpensePlan,
	period *models.ManagementPeriod,
	perUnitTotals map[ShareKey]int64,
	balances map[int]int64,
	actor string,
) []*models.Installment {

	n := plan.InstallmentCount
	now := time.Now().UTC()
	keys := SortedShareKeys(perUnitTotals)

	// split the pure share of every key across the installments
	pureParts := make(map[ShareKey][]int64, len(keys))
	for _, key := range keys {
		pureParts[key] = SplitAcrossInstallments(perUnitTotals[key], n)
	}

	// per owner: the unit that carries the balance component, and the
	// per-installment balance parts
	balanceUnit := make(map[int]int)
	for _, key := range keys {
		if u, ok := balanceUnit[key.OwnerId]; !ok || key.UnitId < u {
			balanceUnit[key.OwnerId] = key.UnitId
		}
	}
	balanceParts := make(map[int][]int64, len(balances))
	for ownerId, balance := range balances {
		if _, ok := balanceUnit[ownerId]; !ok {
			// owner has no billable share to attach the balance to
			continue
		}
		switch plan.Method {
		case models.DistributionMethodFrontLoaded:
			parts := make([]int64, n)
			parts[0] = balance
			balanceParts[ownerId] = parts
		default: // SpreadEvenly
			balanceParts[ownerId] = SplitAcrossInstallments(balance, n)
		}
	}

	installments := make([]*models.Installment, 0, n)
	for i := 1; i <= n; i++ {
		installment := &models.Installment{
			PlanId:   plan.ID,
			Sequence: i,
			DueDate:  installmentDueDate(period.StartDate, plan.DueDay, i),
			Status:   models.InstallmentStatusDraft,
		}

		for _, key := range keys {
			pure := pureParts[key][i-1]
			var balanceShare int64
			if parts, ok := balanceParts[key.OwnerId]; ok && key.UnitId == balanceUnit[key.OwnerId] {
				balanceShare = parts[i-1]
			}
			if pure == 0 && balanceShare == 0 {
				continue
			}
			amount := pure + balanceShare

			state := models.ShareStatePayable
			if amount < 0 {
				state = models.ShareStateCredit
			}
			snapshot, _ := utils.MarshalToJSON(models.ShareSnapshot{
				PureShare:        pure,
				BalanceShare:     balanceShare,
				Method:           plan.Method,
				InstallmentIndex: i,
				ComputedAt:       now,
				Actor:            actor,
			})
			installment.Shares = append(installment.Shares, models.InstallmentShare{
				PlanId:   plan.ID,
				OwnerId:  key.OwnerId,
				UnitId:   key.UnitId,
				Amount:   amount,
				State:    state,
				Snapshot: snapshot,
			})
		}
		installments = append(installments, installment)
	}
	return installments
}

// installmentDueDate places installment i on the due day of the i-th month
// from the period start.
func installmentDueDate(periodStart time.Time, dueDay int, sequence int) time.Time {
	first := time.Date(periodStart.Year(), periodStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	month := first.AddDate(0, sequence-1, 0)
	return time.Date(month.Year(), month.Month(), dueDay, 0, 0, 0, 0, time.UTC)
}

// loadTableSnapshots materializes the engine's table snapshots for all
// accounts of the condominium.
func loadTableSnapshots(ctx context.Context, condominiumId string) (map[int][]TableSnapshot, error) {
	byAccount, err := models.GetAccountTables(ctx, condominiumId)
	if err != nil {
		return nil, err
	}
	snapshots := make(map[int][]TableSnapshot, len(byAccount))
	for accountId, tables := range byAccount {
		for _, table := range tables {
			snapshot := TableSnapshot{
				TableId:     table.ID,
				Coefficient: table.Coefficient,
				Quotas:      make(map[int]decimal.Decimal, len(table.Quotas)),
			}
			for _, q := range table.Quotas {
				snapshot.Quotas[q.UnitId] = q.Quota
			}
			for _, s := range table.Splits {
				snapshot.Splits = append(snapshot.Splits, RoleSplitSnapshot{
					Role:    s.Role,
					Percent: s.Percent,
				})
			}
			snapshots[accountId] = append(snapshots[accountId], snapshot)
		}
	}
	return snapshots, nil
}

// loadOccupancy materializes the active role assignments as the engine's
// occupancy view.
func loadOccupancy(ctx context.Context, condominiumId string) (Occupancy, error) {
	byUnit, err := models.GetActiveUnitRoles(ctx, condominiumId)
	if err != nil {
		return nil, err
	}
	occupancy := make(Occupancy, len(byUnit))
	for unitId, roles := range byUnit {
		byRole := make(map[models.SubjectRole][]RoleHolder)
		for _, r := range roles {
			byRole[r.Role] = append(byRole[r.Role], RoleHolder{
				OwnerId: r.OwnerId,
				Quota:   r.Quota,
			})
		}
		occupancy[unitId] = byRole
	}
	return occupancy, nil
}
