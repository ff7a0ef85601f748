package workflow

import (
	"testing"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/models"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
)

func TestSplitAcrossInstallments_SumsToTotal(t *testing.T) {
	for _, tc := range []struct {
		total int64
		n     int
	}{
		{10000, 4}, {10001, 4}, {10003, 4}, {1, 12}, {-10001, 4}, {-1, 3}, {0, 5},
	} {
		parts := SplitAcrossInstallments(tc.total, tc.n)
		if len(parts) != tc.n {
			t.Fatalf("total %d n %d: got %d parts", tc.total, tc.n, len(parts))
		}
		var sum int64
		base := tc.total / int64(tc.n)
		for _, p := range parts {
			sum += p
			diff := p - base
			if diff < -1 || diff > 1 {
				t.Fatalf("total %d n %d: part %d deviates from base %d by more than one cent", tc.total, tc.n, p, base)
			}
		}
		if sum != tc.total {
			t.Fatalf("total %d n %d: parts sum to %d", tc.total, tc.n, sum)
		}
	}
}

func TestSplitAcrossInstallments_FrontInstallmentsAbsorbRemainder(t *testing.T) {
	parts := SplitAcrossInstallments(103, 4)
	want := []int64{26, 26, 26, 25}
	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("parts = %v, want %v", parts, want)
		}
	}
}

func testPlan(method models.DistributionMethod, n int) *models.ExpensePlan {
	return &models.ExpensePlan{
		ID:               1,
		PeriodId:         1,
		Method:           method,
		InstallmentCount: n,
		DueDay:           5,
	}
}

func testPeriod() *models.ManagementPeriod {
	return &models.ManagementPeriod{
		ID:        1,
		StartDate: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func shareTotal(installments []*models.Installment) int64 {
	var sum int64
	for _, installment := range installments {
		for i := range installment.Shares {
			sum += installment.Shares[i].Amount
		}
	}
	return sum
}

func findShare(installment *models.Installment, ownerId int, unitId int) *models.InstallmentShare {
	for i := range installment.Shares {
		if installment.Shares[i].OwnerId == ownerId && installment.Shares[i].UnitId == unitId {
			return &installment.Shares[i]
		}
	}
	return nil
}

// One chapter of 100,000 cents split 60/40 across two owners, four
// installments spread evenly, owner 1 carries a +400 prior balance.
func TestBuildInstallments_SpreadEvenlyScenario(t *testing.T) {
	perUnit := map[ShareKey]int64{
		{OwnerId: 1, UnitId: 1}: 60000,
		{OwnerId: 2, UnitId: 2}: 40000,
	}
	balances := map[int]int64{1: 400}

	installments := buildInstallments(testPlan(models.DistributionMethodSpreadEvenly, 4), testPeriod(), perUnit, balances, "tester")
	if len(installments) != 4 {
		t.Fatalf("expected 4 installments, got %d", len(installments))
	}
	if got := shareTotal(installments); got != 100400 {
		t.Fatalf("all shares sum to %d, want 100400", got)
	}

	for i, installment := range installments {
		a := findShare(installment, 1, 1)
		if a == nil || a.Amount != 15100 {
			t.Fatalf("installment %d: owner 1 share = %+v, want 15000 pure + 100 balance", i+1, a)
		}
		b := findShare(installment, 2, 2)
		if b == nil || b.Amount != 10000 {
			t.Fatalf("installment %d: owner 2 share = %+v, want 10000", i+1, b)
		}
	}
}

func TestBuildInstallments_FrontLoadedBalanceOnFirstInstallment(t *testing.T) {
	perUnit := map[ShareKey]int64{
		{OwnerId: 1, UnitId: 1}: 40000,
	}
	balances := map[int]int64{1: -900}

	installments := buildInstallments(testPlan(models.DistributionMethodFrontLoaded, 4), testPeriod(), perUnit, balances, "tester")

	first := findShare(installments[0], 1, 1)
	if first == nil || first.Amount != 10000-900 {
		t.Fatalf("first installment share = %+v, want 9100", first)
	}
	for i := 1; i < 4; i++ {
		s := findShare(installments[i], 1, 1)
		if s == nil || s.Amount != 10000 {
			t.Fatalf("installment %d share = %+v, want pure 10000 with no balance", i+1, s)
		}
	}
	if got := shareTotal(installments); got != 40000-900 {
		t.Fatalf("all shares sum to %d, want 39100", got)
	}
}

func TestBuildInstallments_BalanceAttachedToLowestUnitId(t *testing.T) {
	perUnit := map[ShareKey]int64{
		{OwnerId: 1, UnitId: 7}: 20000,
		{OwnerId: 1, UnitId: 3}: 20000,
	}
	balances := map[int]int64{1: 400}

	installments := buildInstallments(testPlan(models.DistributionMethodSpreadEvenly, 4), testPeriod(), perUnit, balances, "tester")

	for i, installment := range installments {
		low := findShare(installment, 1, 3)
		high := findShare(installment, 1, 7)
		if low == nil || low.Amount != 5100 {
			t.Fatalf("installment %d: unit 3 share = %+v, want 5000 pure + 100 balance", i+1, low)
		}
		if high == nil || high.Amount != 5000 {
			t.Fatalf("installment %d: unit 7 share = %+v, want pure 5000 only", i+1, high)
		}
	}
}

func TestBuildInstallments_NegativeShareMarkedCredit(t *testing.T) {
	perUnit := map[ShareKey]int64{
		{OwnerId: 1, UnitId: 1}: 1000,
	}
	balances := map[int]int64{1: -8000}

	installments := buildInstallments(testPlan(models.DistributionMethodFrontLoaded, 2), testPeriod(), perUnit, balances, "tester")

	first := findShare(installments[0], 1, 1)
	if first == nil || first.Amount != 500-8000 {
		t.Fatalf("first share = %+v, want -7500", first)
	}
	if first.State != models.ShareStateCredit {
		t.Fatalf("negative share state = %s, want Credit", first.State)
	}
	second := findShare(installments[1], 1, 1)
	if second.State != models.ShareStatePayable {
		t.Fatalf("positive share state = %s, want Payable", second.State)
	}
}

func TestBuildInstallments_DueDatesFollowPeriodStart(t *testing.T) {
	perUnit := map[ShareKey]int64{{OwnerId: 1, UnitId: 1}: 1200}

	installments := buildInstallments(testPlan(models.DistributionMethodSpreadEvenly, 3), testPeriod(), perUnit, nil, "tester")

	want := []time.Time{
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	for i, installment := range installments {
		if !installment.DueDate.Equal(want[i]) {
			t.Fatalf("installment %d due %s, want %s", i+1, installment.DueDate, want[i])
		}
	}
}

func TestBuildInstallments_SnapshotRecordsComponents(t *testing.T) {
	perUnit := map[ShareKey]int64{{OwnerId: 1, UnitId: 1}: 4000}
	balances := map[int]int64{1: 400}

	installments := buildInstallments(testPlan(models.DistributionMethodSpreadEvenly, 4), testPeriod(), perUnit, balances, "mario")

	share := findShare(installments[2], 1, 1)
	var snapshot models.ShareSnapshot
	if err := utils.UnmarshalFromJSON([]byte(share.Snapshot), &snapshot); err != nil {
		t.Fatalf("snapshot does not parse: %v", err)
	}
	if snapshot.PureShare != 1000 || snapshot.BalanceShare != 100 {
		t.Fatalf("snapshot components = %+v, want pure 1000 balance 100", snapshot)
	}
	if snapshot.InstallmentIndex != 3 || snapshot.Actor != "mario" {
		t.Fatalf("snapshot metadata = %+v", snapshot)
	}
}
