// Package jobs contains the periodic jobs registered with the scheduler.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"
)

// ReconcileTotalJobName is the scheduler name of the reconcile job.
const ReconcileTotalJobName = "reconcile_total"

// TotalReconciler recomputes the running minted total from the ledger.
type TotalReconciler interface {
	ReconcileTotal() *uint256.Int
}

// SupplyFunc reports the token supply held by the minter.
type SupplyFunc func(ctx context.Context) (*uint256.Int, error)

// ReconcileTotalJob periodically recomputes the minted total from the
// completion records and cross-checks it against the minter's supply.
type ReconcileTotalJob struct {
	reconciler TotalReconciler
	supply     SupplyFunc
	logger     *slog.Logger
}

// NewReconcileTotalJob creates the job. supply may be nil, in which case only
// the in-process total is reconciled.
func NewReconcileTotalJob(reconciler TotalReconciler, supply SupplyFunc, logger *slog.Logger) *ReconcileTotalJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileTotalJob{
		reconciler: reconciler,
		supply:     supply,
		logger:     logger.With("job", ReconcileTotalJobName),
	}
}

// Name implements scheduler.Job.
func (j *ReconcileTotalJob) Name() string {
	return ReconcileTotalJobName
}

// Run implements scheduler.Job. The minter supply may exceed the total when
// the token ledger is shared; a supply below the total means rewards were
// recorded that the minter never issued.
func (j *ReconcileTotalJob) Run(ctx context.Context) error {
	total := j.reconciler.ReconcileTotal()
	if j.supply == nil {
		return nil
	}

	supply, err := j.supply(ctx)
	if err != nil {
		return fmt.Errorf("read minter supply: %w", err)
	}

	if supply.Lt(total) {
		return fmt.Errorf("minter supply %s is below minted total %s", supply.Dec(), total.Dec())
	}
	if !supply.Eq(total) {
		j.logger.Debug("minter supply exceeds minted total",
			"supply", supply.Dec(),
			"total", total.Dec(),
		)
	}
	return nil
}
