// Package changemaker decomposes an amount into a multiset of
// denomination values using a greedy largest-first walk. Over a
// power-of-two ladder dense down to 1 this is always optimal (fewest
// coins) and always exact: there is never a remainder to carry.
package changemaker

import (
	"sort"

	"github.com/chaumint/mintd/types"
)

// Decompose breaks amount into a largest-first sequence of active
// denominations whose values sum to exactly amount. active need not be
// sorted; it is sorted internally, descending by value. Returns
// types.ErrCannotMakeChange if amount is zero or negative, or if no
// combination of active denominations sums to it exactly (most commonly
// because the ladder does not reach down to 1).
func Decompose(amount uint64, active []types.Denomination) ([]types.Denomination, error) {
	if amount == 0 {
		return nil, types.ErrCannotMakeChange
	}

	sorted := make([]types.Denomination, len(active))
	copy(sorted, active)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	var result []types.Denomination
	remaining := amount
	for _, d := range sorted {
		for remaining >= d.Value && d.Value > 0 {
			result = append(result, d)
			remaining -= d.Value
		}
		if remaining == 0 {
			break
		}
	}

	if remaining != 0 {
		return nil, types.ErrCannotMakeChange
	}
	return result, nil
}
