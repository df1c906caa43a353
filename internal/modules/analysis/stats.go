package analysis

import (
	"github.com/aristath/ballast/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// DriftSummary aggregates deviation statistics across the portfolio for
// reporting. Statistics are descriptive only; rebalance decisions use the
// exact fixed-point comparison in NeedsRebalancing.
type DriftSummary struct {
	Strategies        int     `json:"strategies"`
	MeanAbsBps        float64 `json:"mean_abs_bps"`
	StdDevAbsBps      float64 `json:"stddev_abs_bps"`
	MaxAbsBps         uint64  `json:"max_abs_bps"`
	TotalCurrentBps   uint64  `json:"total_current_bps"`
	UnallocatedWeight uint64  `json:"unallocated_weight_bps"`
}

// Summarize computes drift statistics over a set of allocation states
func Summarize(states []domain.AllocationState) DriftSummary {
	summary := DriftSummary{Strategies: len(states)}
	if len(states) == 0 {
		summary.UnallocatedWeight = domain.TotalWeightBps
		return summary
	}

	abs := make([]float64, 0, len(states))
	for _, st := range states {
		abs = append(abs, float64(absDeviation(st.DeviationBps)))
		summary.TotalCurrentBps += st.CurrentWeightBps
	}

	summary.MeanAbsBps = stat.Mean(abs, nil)
	if len(abs) > 1 {
		summary.StdDevAbsBps = stat.StdDev(abs, nil)
	}
	summary.MaxAbsBps = MaxAbsDeviationBps(states)
	if summary.TotalCurrentBps < domain.TotalWeightBps {
		summary.UnallocatedWeight = domain.TotalWeightBps - summary.TotalCurrentBps
	}

	return summary
}
