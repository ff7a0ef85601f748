package models

import (
	"testing"
)

func arenaFixture() *AccountArena {
	return BuildAccountArena([]*LedgerAccount{
		{ID: 10, Kind: AccountKindExpense},
		{ID: 11, ParentAccountId: 10, Kind: AccountKindExpense, NominalAmount: 100},
		{ID: 12, ParentAccountId: 10, Kind: AccountKindExpense},
		{ID: 13, ParentAccountId: 12, Kind: AccountKindExpense, NominalAmount: 40},
		{ID: 14, ParentAccountId: 12, Kind: AccountKindExpense, NominalAmount: 60},
		{ID: 20, Kind: AccountKindExpense, NominalAmount: 500},
	})
}

func TestBuildAccountArena_ChildrenInAccountIdOrder(t *testing.T) {
	arena := BuildAccountArena([]*LedgerAccount{
		{ID: 3, ParentAccountId: 1},
		{ID: 1},
		{ID: 2, ParentAccountId: 1},
	})
	i, _ := arena.Lookup(1)
	children := arena.Nodes[i].Children
	if len(children) != 2 || arena.Nodes[children[0]].Id != 2 || arena.Nodes[children[1]].Id != 3 {
		t.Fatalf("children not in id order: %v", children)
	}
}

func TestBranchIds_CoversAncestorsAndDescendants(t *testing.T) {
	arena := arenaFixture()

	branch := arena.BranchIds(12)
	want := []int{10, 12, 13, 14}
	if len(branch) != len(want) {
		t.Fatalf("branch of 12 = %v, want %v", branch, want)
	}
	for i := range want {
		if branch[i] != want[i] {
			t.Fatalf("branch of 12 = %v, want %v", branch, want)
		}
	}
	// sibling account 11 stays out of the branch
	for _, id := range branch {
		if id == 11 {
			t.Fatalf("sibling 11 must not be part of the branch of 12")
		}
	}
}

func TestDescendantIds_SelfAndSubtreeOnly(t *testing.T) {
	arena := arenaFixture()
	ids := arena.DescendantIds(10)
	want := []int{10, 11, 12, 13, 14}
	if len(ids) != len(want) {
		t.Fatalf("descendants of 10 = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("descendants of 10 = %v, want %v", ids, want)
		}
	}
}

func TestEffectiveAmount_OverrideWinsThenChildrenSumThenNominal(t *testing.T) {
	arena := arenaFixture()

	i10, _ := arena.Lookup(10)
	i12, _ := arena.Lookup(12)
	i20, _ := arena.Lookup(20)

	if got := arena.EffectiveAmount(i20, nil); got != 500 {
		t.Fatalf("leaf without override = %d, want nominal 500", got)
	}
	if got := arena.EffectiveAmount(i12, nil); got != 100 {
		t.Fatalf("parent without override = %d, want children sum 100", got)
	}
	if got := arena.EffectiveAmount(i10, nil); got != 200 {
		t.Fatalf("root without override = %d, want recursive sum 200", got)
	}
	if got := arena.EffectiveAmount(i10, map[int]int64{10: 999}); got != 999 {
		t.Fatalf("override must win: got %d", got)
	}
	if got := arena.EffectiveAmount(i10, map[int]int64{12: 1}); got != 101 {
		t.Fatalf("child override must flow into the parent sum: got %d", got)
	}
}
