package models

import "sort"

// AccountArena is a flat, index-based view of one condominium's chart of
// accounts. Parent/child relations are held as indexes into Nodes so the
// push-down recursion and branch conflict checks walk plain slices instead
// of a live object graph.
type ArenaNode struct {
	Id            int
	ParentId      int
	Kind          AccountKind
	Name          string
	NominalAmount int64

	Parent   int // index into Nodes, -1 for roots
	Children []int
}

type AccountArena struct {
	Nodes []ArenaNode

	index map[int]int // account id -> index into Nodes
}

// BuildAccountArena flattens the account rows into an arena. Children are
// kept in ascending account-id order so every traversal is deterministic.
func BuildAccountArena(accounts []*LedgerAccount) *AccountArena {
	arena := &AccountArena{
		Nodes: make([]ArenaNode, 0, len(accounts)),
		index: make(map[int]int, len(accounts)),
	}

	sorted := make([]*LedgerAccount, len(accounts))
	copy(sorted, accounts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, account := range sorted {
		arena.index[account.ID] = len(arena.Nodes)
		arena.Nodes = append(arena.Nodes, ArenaNode{
			Id:            account.ID,
			ParentId:      account.ParentAccountId,
			Kind:          account.Kind,
			Name:          account.Name,
			NominalAmount: account.NominalAmount,
			Parent:        -1,
		})
	}

	for i := range arena.Nodes {
		parentId := arena.Nodes[i].ParentId
		if parentId == 0 {
			continue
		}
		p, ok := arena.index[parentId]
		if !ok {
			// orphan: treat as root, the caller logs it
			continue
		}
		arena.Nodes[i].Parent = p
		arena.Nodes[p].Children = append(arena.Nodes[p].Children, i)
	}
	return arena
}

// Lookup returns the node index for an account id.
func (a *AccountArena) Lookup(id int) (int, bool) {
	i, ok := a.index[id]
	return i, ok
}

// Roots returns the indexes of all chapter nodes.
func (a *AccountArena) Roots() []int {
	var roots []int
	for i := range a.Nodes {
		if a.Nodes[i].Parent == -1 {
			roots = append(roots, i)
		}
	}
	return roots
}

func (a *AccountArena) IsLeaf(i int) bool {
	return len(a.Nodes[i].Children) == 0
}

// BranchIds returns the account ids of the node itself, all its ancestors
// and all its descendants. Used for the "one active plan per branch" guard:
// claiming any account claims its whole branch.
func (a *AccountArena) BranchIds(id int) []int {
	i, ok := a.index[id]
	if !ok {
		return nil
	}
	var ids []int
	// ancestors
	for p := a.Nodes[i].Parent; p != -1; p = a.Nodes[p].Parent {
		ids = append(ids, a.Nodes[p].Id)
	}
	// self + descendants
	stack := []int{i}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, a.Nodes[n].Id)
		stack = append(stack, a.Nodes[n].Children...)
	}
	sort.Ints(ids)
	return ids
}

// DescendantIds returns the account ids of the node and all its descendants.
func (a *AccountArena) DescendantIds(id int) []int {
	i, ok := a.index[id]
	if !ok {
		return nil
	}
	var ids []int
	stack := []int{i}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, a.Nodes[n].Id)
		stack = append(stack, a.Nodes[n].Children...)
	}
	sort.Ints(ids)
	return ids
}

// EffectiveAmount resolves a node's amount: an override wins, otherwise a
// parent is the sum of its children's effective amounts, otherwise the
// nominal. The overrides map is the push-down contract: entries are
// "already resolved effective amounts" and are read-only here.
func (a *AccountArena) EffectiveAmount(i int, overrides map[int]int64) int64 {
	if v, ok := overrides[a.Nodes[i].Id]; ok {
		return v
	}
	if len(a.Nodes[i].Children) == 0 {
		return a.Nodes[i].NominalAmount
	}
	var sum int64
	for _, c := range a.Nodes[i].Children {
		sum += a.EffectiveAmount(c, overrides)
	}
	return sum
}
