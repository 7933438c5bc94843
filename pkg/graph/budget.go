package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

const bytesPerMB = 1024 * 1024

// StatsReader reports live graph statistics.
type StatsReader interface {
	Stats(ctx context.Context) (common.Stats, error)
}

// BudgetGuard rejects ingestions that would push the stored byte total past
// a ceiling. The total is read from the store on every check, never cached.
// Check and write are not atomic, so concurrent ingestions may overshoot the
// ceiling by the size of the in-flight documents.
type BudgetGuard struct {
	stats   StatsReader
	ceiling int64
}

func NewBudgetGuard(stats StatsReader, ceilingBytes int64) *BudgetGuard {
	return &BudgetGuard{stats: stats, ceiling: ceilingBytes}
}

// NewBudgetGuardMB creates a guard with a ceiling in mebibytes.
func NewBudgetGuardMB(stats StatsReader, mb float64) *BudgetGuard {
	return NewBudgetGuard(stats, int64(mb*bytesPerMB))
}

func (b *BudgetGuard) Ceiling() int64 {
	return b.ceiling
}

// Check fails with common.ErrBudgetExceeded if current + additional > ceiling.
func (b *BudgetGuard) Check(ctx context.Context, additional int64) error {
	st, err := b.stats.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stored byte total: %w", err)
	}
	if st.TotalBytes+additional > b.ceiling {
		return fmt.Errorf(
			"%w: adding %d bytes to %d would exceed the %.0fMB budget",
			common.ErrBudgetExceeded, additional, st.TotalBytes, float64(b.ceiling)/bytesPerMB,
		)
	}
	return nil
}

// BudgetUsage is the budget view reported by the stats endpoint.
type BudgetUsage struct {
	BudgetMB    float64 `json:"budget_mb"`
	UsedMB      float64 `json:"used_mb"`
	RemainingMB float64 `json:"remaining_mb"`
}

func (b *BudgetGuard) Usage(ctx context.Context) (common.Stats, BudgetUsage, error) {
	st, err := b.stats.Stats(ctx)
	if err != nil {
		return common.Stats{}, BudgetUsage{}, err
	}
	used := float64(st.TotalBytes) / bytesPerMB
	budget := float64(b.ceiling) / bytesPerMB
	return st, BudgetUsage{
		BudgetMB:    budget,
		UsedMB:      used,
		RemainingMB: max(budget-used, 0),
	}, nil
}
