package workflow

import (
	"sort"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// The apportionment engine is pure: it operates on plain snapshots of the
// weighting tables and unit occupancy, never on the DB. Loaders live in
// installmentGeneration.go.

// ShareKey identifies one (owner, unit) pair in a distribution.
type ShareKey struct {
	OwnerId int
	UnitId  int
}

// RoleHolder is one owner holding a role on a unit with an individual quota.
type RoleHolder struct {
	OwnerId int
	Quota   decimal.Decimal
}

// Occupancy maps unit id -> role -> active holders.
type Occupancy map[int]map[models.SubjectRole][]RoleHolder

// TableSnapshot is the engine's read-only view of one weighting table.
type TableSnapshot struct {
	TableId     int
	Coefficient decimal.Decimal           // percent, 0-100
	Quotas      map[int]decimal.Decimal   // unit id -> quota
	Splits      []RoleSplitSnapshot
}

type RoleSplitSnapshot struct {
	Role    models.SubjectRole
	Percent decimal.Decimal // 0-100, splits of one table sum to 100
}

var oneHundred = decimal.NewFromInt(100)

// ComputeWeights resolves the (owner, unit) weight map for one account's
// weighting tables. Tables whose quotas sum to zero are skipped with a
// warning; a role split with no registered holder falls back to the unit's
// owners ("charge the owner when no tenant is registered"). The returned
// weights are normalized to sum to 1.
func ComputeWeights(tables []TableSnapshot, occupancy Occupancy, logger *logrus.Logger) map[ShareKey]decimal.Decimal {

	weights := make(map[ShareKey]decimal.Decimal)

	for _, table := range tables {
		quotaSum := decimal.Zero
		for _, q := range table.Quotas {
			quotaSum = quotaSum.Add(q)
		}
		if quotaSum.IsZero() {
			if logger != nil {
				config.LogWarn(logger, "workflow", "ComputeWeights", "weighting table skipped: quotas sum to zero", table.TableId)
			}
			continue
		}

		coefficient := table.Coefficient.Div(oneHundred)

		unitIds := make([]int, 0, len(table.Quotas))
		for unitId := range table.Quotas {
			unitIds = append(unitIds, unitId)
		}
		sort.Ints(unitIds)

		for _, unitId := range unitIds {
			unitWeight := coefficient.Mul(table.Quotas[unitId].Div(quotaSum))
			if unitWeight.IsZero() {
				continue
			}

			for _, split := range table.Splits {
				roleWeight := unitWeight.Mul(split.Percent.Div(oneHundred))
				if roleWeight.IsZero() {
					continue
				}

				holders := occupancy[unitId][split.Role]
				if len(holders) == 0 && split.Role != models.SubjectRoleOwner {
					// no tenant/usufructuary registered: the owner pays
					holders = occupancy[unitId][models.SubjectRoleOwner]
				}
				if len(holders) == 0 {
					if logger != nil {
						config.LogWarn(logger, "workflow", "ComputeWeights", "unit skipped: no holder for role", unitId)
					}
					continue
				}

				distributeRoleWeight(weights, roleWeight, unitId, holders)
			}
		}
	}

	return normalizeWeights(weights)
}

// distributeRoleWeight splits one role's weight across its holders in
// proportion to their individual quotas, defaulting to an even split when
// no quotas are declared.
func distributeRoleWeight(weights map[ShareKey]decimal.Decimal, roleWeight decimal.Decimal, unitId int, holders []RoleHolder) {
	quotaSum := decimal.Zero
	for _, h := range holders {
		quotaSum = quotaSum.Add(h.Quota)
	}
	even := quotaSum.IsZero()
	if even {
		quotaSum = decimal.NewFromInt(int64(len(holders)))
	}

	for _, h := range holders {
		quota := h.Quota
		if even {
			quota = decimal.NewFromInt(1)
		}
		key := ShareKey{OwnerId: h.OwnerId, UnitId: unitId}
		weights[key] = weights[key].Add(roleWeight.Mul(quota.Div(quotaSum)))
	}
}

func normalizeWeights(weights map[ShareKey]decimal.Decimal) map[ShareKey]decimal.Decimal {
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	if total.IsZero() {
		return map[ShareKey]decimal.Decimal{}
	}
	normalized := make(map[ShareKey]decimal.Decimal, len(weights))
	for k, w := range weights {
		normalized[k] = w.Div(total)
	}
	return normalized
}

// DistributeExact distributes an integer cent total across weighted keys
// with zero rounding leakage: floor(total*weight) per key, then the
// residual cents go one-by-one to the keys with the largest fractional
// remainder. Ties break on ascending (owner id, unit id) so the result is
// deterministic. Sign is preserved by distributing the absolute value.
func DistributeExact(total int64, weights map[ShareKey]decimal.Decimal) map[ShareKey]int64 {

	result := make(map[ShareKey]int64, len(weights))
	if total == 0 || len(weights) == 0 {
		return result
	}

	sign := int64(1)
	abs := total
	if abs < 0 {
		sign = -1
		abs = -abs
	}
	absDec := decimal.NewFromInt(abs)

	type keyedShare struct {
		key       ShareKey
		floor     int64
		remainder decimal.Decimal
	}

	shares := make([]keyedShare, 0, len(weights))
	var floorSum int64
	for key, weight := range weights {
		exact := absDec.Mul(weight)
		floor := exact.Floor()
		f := floor.IntPart()
		shares = append(shares, keyedShare{
			key:       key,
			floor:     f,
			remainder: exact.Sub(floor),
		})
		floorSum += f
	}

	// residual cents to the largest fractional remainders first
	sort.Slice(shares, func(i, j int) bool {
		if !shares[i].remainder.Equal(shares[j].remainder) {
			return shares[i].remainder.GreaterThan(shares[j].remainder)
		}
		if shares[i].key.OwnerId != shares[j].key.OwnerId {
			return shares[i].key.OwnerId < shares[j].key.OwnerId
		}
		return shares[i].key.UnitId < shares[j].key.UnitId
	})

	residual := abs - floorSum
	for i := range shares {
		v := shares[i].floor
		if residual > 0 {
			v++
			residual--
		}
		if v != 0 {
			result[shares[i].key] = sign * v
		}
	}
	return result
}

// PushDownOverrides cascades manual override amounts down the account tree
// ("push-down with quadrature"). An override on a node with children is
// redistributed across the children proportionally to their nominal
// amounts, flooring each child's slice and assigning the exact residual to
// the last child in iteration order, so the children always sum to the
// override. The recursion then continues below each child. The overrides
// map is mutated in place; an entry is the node's resolved effective
// amount and is read-only once its distribution step completes.
func PushDownOverrides(arena *models.AccountArena, overrides map[int]int64, logger *logrus.Logger) {
	ids := make([]int, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if i, ok := arena.Lookup(id); ok {
			pushDownNode(arena, i, overrides, logger)
		}
	}
}

func pushDownNode(arena *models.AccountArena, i int, overrides map[int]int64, logger *logrus.Logger) {
	node := &arena.Nodes[i]
	override, ok := overrides[node.Id]
	if !ok {
		return
	}
	if len(node.Children) == 0 {
		// leaf: the override is distributed directly by the engine
		return
	}

	var nominalSum int64
	for _, c := range node.Children {
		nominalSum += arena.Nodes[c].NominalAmount
	}
	if nominalSum == 0 {
		if logger != nil {
			config.LogWarn(logger, "workflow", "pushDownNode", "override not pushed down: children nominals sum to zero", node.Id)
		}
		return
	}

	sign := int64(1)
	abs := override
	if abs < 0 {
		sign = -1
		abs = -abs
	}

	var assigned int64
	for idx, c := range node.Children {
		child := &arena.Nodes[c]
		var slice int64
		if idx == len(node.Children)-1 {
			// exact residual to the last child: quadrature
			slice = abs - assigned
		} else {
			slice = abs * child.NominalAmount / nominalSum
			assigned += slice
		}
		overrides[child.Id] = sign * slice
		pushDownNode(arena, c, overrides, logger)
	}
}

// ApportionAccounts runs the engine over every account of the given
// chapters' branches that carries weighting tables, using the override map
// (after push-down) to resolve each account's amount. Income accounts
// reduce the charge: their amounts enter with a negative sign. Returns the
// per-(owner, unit) totals, summing exactly to the sum of the distributed
// amounts.
func ApportionAccounts(
	arena *models.AccountArena,
	chapterAccountIds []int,
	overrides map[int]int64,
	tablesByAccount map[int][]TableSnapshot,
	occupancy Occupancy,
	logger *logrus.Logger,
) map[ShareKey]int64 {

	totals := make(map[ShareKey]int64)

	for _, chapterId := range chapterAccountIds {
		for _, accountId := range arena.DescendantIds(chapterId) {
			i, ok := arena.Lookup(accountId)
			if !ok {
				continue
			}
			node := arena.Nodes[i]
			tables := tablesByAccount[accountId]
			if len(tables) == 0 {
				if v, has := overrides[accountId]; has && v != 0 && len(node.Children) == 0 && logger != nil {
					// nothing to distribute against: no-op, not an error
					config.LogWarn(logger, "workflow", "ApportionAccounts", "override ignored: account has neither weighting tables nor children", accountId)
				}
				continue
			}
			if len(node.Children) > 0 {
				// internal nodes distribute through their children
				continue
			}

			amount := node.NominalAmount
			if v, ok := overrides[accountId]; ok {
				amount = v
			}
			if amount == 0 {
				continue
			}
			if node.Kind == models.AccountKindIncome {
				amount = -amount
			}

			weights := ComputeWeights(tables, occupancy, logger)
			if len(weights) == 0 {
				if logger != nil {
					config.LogWarn(logger, "workflow", "ApportionAccounts", "account skipped: no distributable weights", accountId)
				}
				continue
			}
			for key, cents := range DistributeExact(amount, weights) {
				totals[key] += cents
			}
		}
	}
	return totals
}

// SortedShareKeys returns the keys in ascending (owner id, unit id) order;
// every consumer of a distribution iterates in this order.
func SortedShareKeys[V any](m map[ShareKey]V) []ShareKey {
	keys := make([]ShareKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].OwnerId != keys[j].OwnerId {
			return keys[i].OwnerId < keys[j].OwnerId
		}
		return keys[i].UnitId < keys[j].UnitId
	})
	return keys
}
