package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// SweepInterval is how often the expiry sweep runs. Expiry is also computed
// lazily at read time, so the sweep only keeps stored rows tidy.
const SweepInterval = 15 * time.Minute

type ExpireContactRequestsArgs struct{}

func (ExpireContactRequestsArgs) Kind() string { return "expire_contact_requests" }

// Expirer is the contract the sweeper needs from the contact broker.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

type ExpireContactRequestsWorker struct {
	river.WorkerDefaults[ExpireContactRequestsArgs]
	broker Expirer
	log    *slog.Logger
}

func NewExpireContactRequestsWorker(broker Expirer, log *slog.Logger) *ExpireContactRequestsWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ExpireContactRequestsWorker{broker: broker, log: log}
}

func (w *ExpireContactRequestsWorker) Work(ctx context.Context, _ *river.Job[ExpireContactRequestsArgs]) error {
	n, err := w.broker.ExpireOverdue(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("expired overdue contact requests", "count", n)
	}
	return nil
}

// PeriodicJobs returns the river periodic job definitions for this package.
func PeriodicJobs() []*river.PeriodicJob {
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(SweepInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return ExpireContactRequestsArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}
