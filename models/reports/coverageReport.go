package reports

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/models"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
)

// coverageTolerance is the rounding slack allowed before a leaf account is
// reported as Deficit or Surplus.
const coverageTolerance = int64(1)

// Cached rows are invalidated on budget moves; the short TTL bounds the
// staleness from other chart or plan edits.
const coverageCacheTTL = time.Minute

// CoverageRow is the per-leaf-account budget vs committed comparison.
type CoverageRow struct {
	AccountId int                   `json:"account_id"`
	Name      string                `json:"name"`
	Budget    int64                 `json:"budget"`
	Committed int64                 `json:"committed"`
	Delta     int64                 `json:"delta"`
	Status    models.CoverageStatus `json:"status"`
}

// ChapterCommitment is the analyzer's view of one plan chapter: the account
// it claims and its effective amount (override if set, else the account's
// nominal).
type ChapterCommitment struct {
	AccountId int
	Amount    int64
}

// ComputeCommitted resolves the "really committed" amount per account across
// all active plans, in two passes. Pass 1: a chapter pointing at a leaf
// account commits its amount directly. Pass 2: a chapter pointing at an
// internal account walks the account's children in order and fills each
// child's shortfall (nominal minus already committed) from the chapter's
// amount; whatever is left after the walk is dumped onto the last child so
// the committed cents always sum to the chapter amounts.
func ComputeCommitted(arena *models.AccountArena, chapters []ChapterCommitment) map[int]int64 {

	committed := make(map[int]int64)

	var internal []ChapterCommitment
	for _, chapter := range chapters {
		i, ok := arena.Lookup(chapter.AccountId)
		if !ok {
			continue
		}
		if arena.IsLeaf(i) {
			committed[chapter.AccountId] += chapter.Amount
		} else {
			internal = append(internal, chapter)
		}
	}

	for _, chapter := range internal {
		i, _ := arena.Lookup(chapter.AccountId)
		children := arena.Nodes[i].Children
		remaining := chapter.Amount

		for idx, c := range children {
			child := &arena.Nodes[c]
			if idx == len(children)-1 {
				// leftover to the last child keeps the totals exact
				committed[child.Id] += remaining
				remaining = 0
				break
			}
			shortfall := child.NominalAmount - committed[child.Id]
			if shortfall <= 0 {
				continue
			}
			fill := shortfall
			if fill > remaining {
				fill = remaining
			}
			committed[child.Id] += fill
			remaining -= fill
			if remaining == 0 {
				break
			}
		}
	}

	return committed
}

// BuildCoverageRows compares every leaf account's nominal budget against its
// committed amount, in ascending account-id order.
func BuildCoverageRows(arena *models.AccountArena, committed map[int]int64) []CoverageRow {
	var rows []CoverageRow
	for i := range arena.Nodes {
		if !arena.IsLeaf(i) {
			continue
		}
		node := &arena.Nodes[i]
		c := committed[node.Id]
		delta := c - node.NominalAmount

		status := models.CoverageStatusOk
		switch {
		case delta < -coverageTolerance:
			status = models.CoverageStatusDeficit
		case delta > coverageTolerance:
			status = models.CoverageStatusSurplus
		}
		rows = append(rows, CoverageRow{
			AccountId: node.Id,
			Name:      node.Name,
			Budget:    node.NominalAmount,
			Committed: c,
			Delta:     delta,
			Status:    status,
		})
	}
	return rows
}

// GetCoverageReport loads the chart of accounts and the chapters of all
// active plans and returns the per-leaf coverage rows, cached per
// condominium.
func GetCoverageReport(ctx context.Context) ([]CoverageRow, error) {
	condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
	if !ok || condominiumId == "" {
		return nil, errors.New("condominium id is required")
	}

	var cached []CoverageRow
	exists, err := config.GetRedisObject("CoverageReport:"+condominiumId, &cached)
	if err != nil {
		return nil, err
	}
	if exists {
		return cached, nil
	}

	accounts, err := models.GetChartOfAccounts(ctx, condominiumId)
	if err != nil {
		return nil, err
	}
	arena := models.BuildAccountArena(accounts)

	byPlan, err := models.GetActivePlanChapters(ctx, condominiumId)
	if err != nil {
		return nil, err
	}

	planIds := make([]int, 0, len(byPlan))
	for planId := range byPlan {
		planIds = append(planIds, planId)
	}
	sort.Ints(planIds)

	var chapters []ChapterCommitment
	for _, planId := range planIds {
		for _, chapter := range byPlan[planId] {
			i, ok := arena.Lookup(chapter.AccountId)
			if !ok {
				continue
			}
			chapters = append(chapters, ChapterCommitment{
				AccountId: chapter.AccountId,
				Amount:    utils.DereferencePtr(chapter.OverrideAmount, arena.Nodes[i].NominalAmount),
			})
		}
	}

	rows := BuildCoverageRows(arena, ComputeCommitted(arena, chapters))
	if err := config.SetRedisObject("CoverageReport:"+condominiumId, rows, coverageCacheTTL); err != nil {
		return nil, err
	}
	return rows, nil
}
