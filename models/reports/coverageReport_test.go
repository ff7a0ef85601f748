package reports

import (
	"testing"

	"github.com/AlecsRosa/kondomanager-sub000/models"
)

func coverageArena() *models.AccountArena {
	return models.BuildAccountArena([]*models.LedgerAccount{
		{ID: 1, Kind: models.AccountKindExpense},
		{ID: 2, ParentAccountId: 1, Kind: models.AccountKindExpense, NominalAmount: 3000},
		{ID: 3, ParentAccountId: 1, Kind: models.AccountKindExpense, NominalAmount: 7000},
		{ID: 4, Kind: models.AccountKindExpense, NominalAmount: 5000},
	})
}

func TestComputeCommitted_LeafChapterCommitsDirectly(t *testing.T) {
	arena := coverageArena()
	committed := ComputeCommitted(arena, []ChapterCommitment{
		{AccountId: 4, Amount: 5000},
	})
	if committed[4] != 5000 {
		t.Fatalf("leaf chapter committed %d, want 5000", committed[4])
	}
}

func TestComputeCommitted_ParentChapterFillsChildrenShortfall(t *testing.T) {
	arena := coverageArena()
	committed := ComputeCommitted(arena, []ChapterCommitment{
		{AccountId: 1, Amount: 10000},
	})
	if committed[2] != 3000 {
		t.Fatalf("child 2 committed %d, want its 3000 shortfall", committed[2])
	}
	if committed[3] != 7000 {
		t.Fatalf("child 3 committed %d, want the 7000 leftover", committed[3])
	}
	if committed[2]+committed[3] != 10000 {
		t.Fatalf("committed leaks: %d + %d != 10000", committed[2], committed[3])
	}
}

func TestComputeCommitted_LeftoverDumpedOnLastChild(t *testing.T) {
	arena := coverageArena()
	committed := ComputeCommitted(arena, []ChapterCommitment{
		{AccountId: 1, Amount: 12000},
	})
	if committed[2] != 3000 {
		t.Fatalf("child 2 committed %d, want 3000 (its full shortfall)", committed[2])
	}
	if committed[3] != 9000 {
		t.Fatalf("last child committed %d, want 9000 (shortfall plus leftover)", committed[3])
	}
}

func TestComputeCommitted_InsufficientAmountStillSumsExactly(t *testing.T) {
	arena := coverageArena()
	committed := ComputeCommitted(arena, []ChapterCommitment{
		{AccountId: 1, Amount: 2000},
	})
	if committed[2]+committed[3] != 2000 {
		t.Fatalf("committed leaks: %d + %d != 2000", committed[2], committed[3])
	}
	if committed[2] != 2000 {
		t.Fatalf("first child should absorb the whole amount: %d", committed[2])
	}
}

func TestComputeCommitted_LeafPassRunsBeforeParentPass(t *testing.T) {
	arena := coverageArena()
	// the leaf chapter fills child 2 first, so the parent's amount skips it
	committed := ComputeCommitted(arena, []ChapterCommitment{
		{AccountId: 1, Amount: 7000},
		{AccountId: 2, Amount: 3000},
	})
	if committed[2] != 3000 {
		t.Fatalf("child 2 committed %d, want 3000 from its own chapter", committed[2])
	}
	if committed[3] != 7000 {
		t.Fatalf("child 3 committed %d, want the parent's full 7000", committed[3])
	}
}

func TestBuildCoverageRows_StatusTolerance(t *testing.T) {
	arena := models.BuildAccountArena([]*models.LedgerAccount{
		{ID: 1, Kind: models.AccountKindExpense, NominalAmount: 1000, Name: "exact"},
		{ID: 2, Kind: models.AccountKindExpense, NominalAmount: 1000, Name: "one under"},
		{ID: 3, Kind: models.AccountKindExpense, NominalAmount: 1000, Name: "two under"},
		{ID: 4, Kind: models.AccountKindExpense, NominalAmount: 1000, Name: "two over"},
	})
	committed := map[int]int64{1: 1000, 2: 999, 3: 998, 4: 1002}

	rows := BuildCoverageRows(arena, committed)
	byAccount := map[int]CoverageRow{}
	for _, row := range rows {
		byAccount[row.AccountId] = row
	}

	if byAccount[1].Status != models.CoverageStatusOk {
		t.Fatalf("exact match status = %s, want Ok", byAccount[1].Status)
	}
	if byAccount[2].Status != models.CoverageStatusOk {
		t.Fatalf("one cent under status = %s, want Ok (within tolerance)", byAccount[2].Status)
	}
	if byAccount[3].Status != models.CoverageStatusDeficit {
		t.Fatalf("two cents under status = %s, want Deficit", byAccount[3].Status)
	}
	if byAccount[4].Status != models.CoverageStatusSurplus {
		t.Fatalf("two cents over status = %s, want Surplus", byAccount[4].Status)
	}
}

func TestBuildCoverageRows_OnlyLeavesReported(t *testing.T) {
	arena := coverageArena()
	rows := BuildCoverageRows(arena, map[int]int64{})
	for _, row := range rows {
		if row.AccountId == 1 {
			t.Fatalf("internal account 1 must not appear in the report")
		}
	}
	if len(rows) != 3 {
		t.Fatalf("expected the 3 leaves, got %d rows", len(rows))
	}
}
