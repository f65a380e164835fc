// Package compactor contains the worker-side client loop of an external
// compactor process: it keeps asking a loam server for work, surviving
// connectivity blips with backoff, and hands reserved jobs to the
// compaction runtime.
package compactor

import (
	"context"
	"time"

	"go.loamdb.org/loam/pkg/compaction"
	"go.loamdb.org/loam/pkg/dispatch"
	"go.loamdb.org/loam/pkg/retrycall"
	"go.uber.org/zap"
)

// Poller polls one dispatch queue for reservations.
type Poller struct {
	Client      *dispatch.Client
	Queue       compaction.QueueID
	Worker      string
	MinPriority int64 // lowest priority this compactor accepts

	// IdleWait is the pause after a poll that returned no job.
	IdleWait time.Duration
	// RetryStart, RetryMaxWait and MaxRetries configure the backoff of
	// each poll call. MaxRetries 0 retries forever.
	RetryStart   time.Duration
	RetryMaxWait time.Duration
	MaxRetries   int

	Log *zap.Logger

	// Exec runs a reserved compaction. Nil reservations are never passed.
	Exec func(ctx context.Context, res *compaction.Reservation) error
}

// Run polls for work until the context is canceled or the retry budget of
// a poll call is exhausted.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := p.next(ctx)
		if err != nil {
			return err
		}
		if res == nil {
			if err := p.idle(ctx); err != nil {
				return err
			}
			continue
		}
		p.Log.Info("Reserved compaction",
			zap.String("extent", string(res.Extent)),
			zap.Int64("priority", res.Priority),
			zap.String("ecid", string(res.ExternalID)))
		if p.Exec == nil {
			continue
		}
		if err := p.Exec(ctx, res); err != nil {
			p.Log.Error("Compaction failed",
				zap.String("ecid", string(res.ExternalID)), zap.Error(err))
		}
	}
}

// next performs one poll, retrying transport failures with backoff. Every
// attempt mints a fresh external compaction ID.
func (p *Poller) next(ctx context.Context) (*compaction.Reservation, error) {
	caller := retrycall.Caller[*compaction.Reservation]{
		Start:      p.RetryStart,
		MaxWait:    p.RetryMaxWait,
		MaxRetries: p.MaxRetries,
		Log:        p.Log,
	}
	return caller.Run(ctx, func(ctx context.Context) (*compaction.Reservation, error) {
		return p.Client.Reserve(ctx, &dispatch.ReserveRequest{
			Queue:       p.Queue,
			Worker:      p.Worker,
			MinPriority: p.MinPriority,
			ExternalID:  compaction.NewExternalID(),
		})
	})
}

func (p *Poller) idle(ctx context.Context) error {
	timer := time.NewTimer(p.IdleWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
