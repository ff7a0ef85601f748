package workflow

import (
	"testing"

	"github.com/AlecsRosa/kondomanager-sub000/models"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. The engine computes on plain
// snapshots; the loaders that fill them from MySQL are exercised end to end
// in an environment that can run the database.

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func singleOwnerOccupancy(pairs map[int]int) Occupancy {
	occupancy := make(Occupancy, len(pairs))
	for unitId, ownerId := range pairs {
		occupancy[unitId] = map[models.SubjectRole][]RoleHolder{
			models.SubjectRoleOwner: {{OwnerId: ownerId, Quota: dec("100")}},
		}
	}
	return occupancy
}

func fullOwnerSplit() []RoleSplitSnapshot {
	return []RoleSplitSnapshot{{Role: models.SubjectRoleOwner, Percent: dec("100")}}
}

func sumShares(shares map[ShareKey]int64) int64 {
	var sum int64
	for _, v := range shares {
		sum += v
	}
	return sum
}

func TestDistributeExact_SumsToTotal(t *testing.T) {
	weights := map[ShareKey]decimal.Decimal{
		{OwnerId: 1, UnitId: 1}: dec("0.333333"),
		{OwnerId: 2, UnitId: 2}: dec("0.333333"),
		{OwnerId: 3, UnitId: 3}: dec("0.333334"),
	}
	for _, total := range []int64{100, 101, 1, 99999, -100, -101, -1} {
		result := DistributeExact(total, weights)
		if got := sumShares(result); got != total {
			t.Fatalf("total %d: shares sum to %d", total, got)
		}
	}
}

func TestDistributeExact_SingleKeyGetsEverything(t *testing.T) {
	weights := map[ShareKey]decimal.Decimal{
		{OwnerId: 7, UnitId: 3}: dec("1"),
	}
	result := DistributeExact(12345, weights)
	if result[ShareKey{OwnerId: 7, UnitId: 3}] != 12345 {
		t.Fatalf("expected 12345, got %v", result)
	}
}

func TestDistributeExact_ResidualCentGoesToLowestKeyOnTie(t *testing.T) {
	// two equal weights, odd total: one residual cent, tie on remainder
	weights := map[ShareKey]decimal.Decimal{
		{OwnerId: 2, UnitId: 1}: dec("0.5"),
		{OwnerId: 1, UnitId: 1}: dec("0.5"),
	}
	result := DistributeExact(101, weights)
	if result[ShareKey{OwnerId: 1, UnitId: 1}] != 51 {
		t.Fatalf("expected owner 1 to absorb the residual cent, got %v", result)
	}
	if result[ShareKey{OwnerId: 2, UnitId: 1}] != 50 {
		t.Fatalf("expected owner 2 to get the floor, got %v", result)
	}
}

func TestDistributeExact_NegativeTotalPreservesSign(t *testing.T) {
	weights := map[ShareKey]decimal.Decimal{
		{OwnerId: 1, UnitId: 1}: dec("0.6"),
		{OwnerId: 2, UnitId: 2}: dec("0.4"),
	}
	result := DistributeExact(-1001, weights)
	if got := sumShares(result); got != -1001 {
		t.Fatalf("shares sum to %d, want -1001", got)
	}
	for key, v := range result {
		if v > 0 {
			t.Fatalf("share %v is positive: %d", key, v)
		}
	}
}

func TestComputeWeights_SkipsZeroQuotaTable(t *testing.T) {
	tables := []TableSnapshot{
		{
			TableId:     1,
			Coefficient: dec("100"),
			Quotas:      map[int]decimal.Decimal{1: dec("0"), 2: dec("0")},
			Splits:      fullOwnerSplit(),
		},
		{
			TableId:     2,
			Coefficient: dec("100"),
			Quotas:      map[int]decimal.Decimal{1: dec("600"), 2: dec("400")},
			Splits:      fullOwnerSplit(),
		},
	}
	occupancy := singleOwnerOccupancy(map[int]int{1: 10, 2: 20})

	weights := ComputeWeights(tables, occupancy, nil)
	if len(weights) != 2 {
		t.Fatalf("expected 2 weighted keys, got %d", len(weights))
	}
	w1 := weights[ShareKey{OwnerId: 10, UnitId: 1}]
	if !w1.Equal(dec("0.6")) {
		t.Fatalf("owner 10 weight = %s, want 0.6", w1)
	}
}

func TestComputeWeights_TenantRoleFallsBackToOwner(t *testing.T) {
	tables := []TableSnapshot{
		{
			TableId:     1,
			Coefficient: dec("100"),
			Quotas:      map[int]decimal.Decimal{1: dec("500"), 2: dec("500")},
			Splits: []RoleSplitSnapshot{
				{Role: models.SubjectRoleTenant, Percent: dec("100")},
			},
		},
	}
	// unit 1 has a tenant, unit 2 only an owner
	occupancy := Occupancy{
		1: {
			models.SubjectRoleOwner:  {{OwnerId: 10, Quota: dec("100")}},
			models.SubjectRoleTenant: {{OwnerId: 11, Quota: dec("100")}},
		},
		2: {
			models.SubjectRoleOwner: {{OwnerId: 20, Quota: dec("100")}},
		},
	}

	weights := ComputeWeights(tables, occupancy, nil)
	if _, ok := weights[ShareKey{OwnerId: 11, UnitId: 1}]; !ok {
		t.Fatalf("tenant of unit 1 should be charged, got %v", weights)
	}
	if _, ok := weights[ShareKey{OwnerId: 20, UnitId: 2}]; !ok {
		t.Fatalf("owner of unit 2 should be charged in place of the missing tenant, got %v", weights)
	}
	if _, ok := weights[ShareKey{OwnerId: 10, UnitId: 1}]; ok {
		t.Fatalf("owner of unit 1 should not be charged when a tenant is registered")
	}
}

func TestComputeWeights_MultipleHoldersSplitByQuota(t *testing.T) {
	tables := []TableSnapshot{
		{
			TableId:     1,
			Coefficient: dec("100"),
			Quotas:      map[int]decimal.Decimal{1: dec("1000")},
			Splits:      fullOwnerSplit(),
		},
	}
	occupancy := Occupancy{
		1: {
			models.SubjectRoleOwner: {
				{OwnerId: 1, Quota: dec("75")},
				{OwnerId: 2, Quota: dec("25")},
			},
		},
	}

	weights := ComputeWeights(tables, occupancy, nil)
	w1 := weights[ShareKey{OwnerId: 1, UnitId: 1}]
	w2 := weights[ShareKey{OwnerId: 2, UnitId: 1}]
	if !w1.Equal(dec("0.75")) || !w2.Equal(dec("0.25")) {
		t.Fatalf("quota split wrong: %s / %s", w1, w2)
	}
}

func buildTestArena(accounts []*models.LedgerAccount) *models.AccountArena {
	return models.BuildAccountArena(accounts)
}

func TestPushDownOverrides_ExactAcrossTwoLevels(t *testing.T) {
	accounts := []*models.LedgerAccount{
		{ID: 1, Kind: models.AccountKindExpense, NominalAmount: 0},
		{ID: 2, ParentAccountId: 1, Kind: models.AccountKindExpense, NominalAmount: 3000},
		{ID: 3, ParentAccountId: 1, Kind: models.AccountKindExpense, NominalAmount: 7000},
		{ID: 4, ParentAccountId: 3, Kind: models.AccountKindExpense, NominalAmount: 2000},
		{ID: 5, ParentAccountId: 3, Kind: models.AccountKindExpense, NominalAmount: 5000},
	}
	arena := buildTestArena(accounts)

	overrides := map[int]int64{1: 10001}
	PushDownOverrides(arena, overrides, nil)

	if overrides[2]+overrides[3] != 10001 {
		t.Fatalf("level 1 leaks: %d + %d != 10001", overrides[2], overrides[3])
	}
	if overrides[4]+overrides[5] != overrides[3] {
		t.Fatalf("level 2 leaks: %d + %d != %d", overrides[4], overrides[5], overrides[3])
	}
	// proportional floors: 10001*3000/10000 = 3000, residual to account 3
	if overrides[2] != 3000 {
		t.Fatalf("account 2 = %d, want 3000", overrides[2])
	}
	if overrides[3] != 7001 {
		t.Fatalf("account 3 = %d, want 7001", overrides[3])
	}
}

func TestPushDownOverrides_NegativeOverride(t *testing.T) {
	accounts := []*models.LedgerAccount{
		{ID: 1, Kind: models.AccountKindExpense},
		{ID: 2, ParentAccountId: 1, Kind: models.AccountKindExpense, NominalAmount: 100},
		{ID: 3, ParentAccountId: 1, Kind: models.AccountKindExpense, NominalAmount: 200},
	}
	arena := buildTestArena(accounts)

	overrides := map[int]int64{1: -301}
	PushDownOverrides(arena, overrides, nil)

	if overrides[2]+overrides[3] != -301 {
		t.Fatalf("negative push-down leaks: %d + %d", overrides[2], overrides[3])
	}
	if overrides[2] > 0 || overrides[3] > 0 {
		t.Fatalf("children lost the sign: %d / %d", overrides[2], overrides[3])
	}
}

func TestPushDownOverrides_ZeroNominalChildrenUntouched(t *testing.T) {
	accounts := []*models.LedgerAccount{
		{ID: 1, Kind: models.AccountKindExpense},
		{ID: 2, ParentAccountId: 1, Kind: models.AccountKindExpense, NominalAmount: 0},
		{ID: 3, ParentAccountId: 1, Kind: models.AccountKindExpense, NominalAmount: 0},
	}
	arena := buildTestArena(accounts)

	overrides := map[int]int64{1: 5000}
	PushDownOverrides(arena, overrides, nil)

	if _, ok := overrides[2]; ok {
		t.Fatalf("children with zero nominal sum must not receive a slice")
	}
}

func TestApportionAccounts_IncomeReducesCharge(t *testing.T) {
	accounts := []*models.LedgerAccount{
		{ID: 1, Kind: models.AccountKindExpense, NominalAmount: 10000},
		{ID: 2, Kind: models.AccountKindIncome, NominalAmount: 2000},
	}
	arena := buildTestArena(accounts)

	table := TableSnapshot{
		TableId:     1,
		Coefficient: dec("100"),
		Quotas:      map[int]decimal.Decimal{1: dec("1000")},
		Splits:      fullOwnerSplit(),
	}
	tables := map[int][]TableSnapshot{1: {table}, 2: {table}}
	occupancy := singleOwnerOccupancy(map[int]int{1: 1})

	totals := ApportionAccounts(arena, []int{1, 2}, map[int]int64{}, tables, occupancy, nil)
	if got := totals[ShareKey{OwnerId: 1, UnitId: 1}]; got != 8000 {
		t.Fatalf("income must reduce the charge: got %d, want 8000", got)
	}
}

func TestApportionAccounts_OverriddenLeafWithoutTablesIsNoop(t *testing.T) {
	accounts := []*models.LedgerAccount{
		{ID: 1, Kind: models.AccountKindExpense, NominalAmount: 10000},
	}
	arena := buildTestArena(accounts)

	totals := ApportionAccounts(arena, []int{1}, map[int]int64{1: 9999}, map[int][]TableSnapshot{}, Occupancy{}, nil)
	if len(totals) != 0 {
		t.Fatalf("expected empty distribution, got %v", totals)
	}
}
