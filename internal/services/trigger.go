package services

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"ledger/internal/log"
)

// Trigger runs the generator opportunistically on behalf of request handlers.
// Concurrent calls for the same user share one sweep, and failures are only
// logged.
type Trigger struct {
	gen     *Generator
	timeout time.Duration
	group   singleflight.Group
	logger  *log.Logger
}

func NewTrigger(gen *Generator, timeout time.Duration) *Trigger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Trigger{
		gen:     gen,
		timeout: timeout,
		logger:  log.WithComponent(log.ComponentRecurring),
	}
}

// Fire sweeps userID's templates and waits for the result. The sweep is
// detached from ctx cancellation so a client hanging up does not abort it.
func (t *Trigger) Fire(ctx context.Context, userID string) {
	if t == nil || t.gen == nil {
		return
	}

	ch := t.group.DoChan("user:"+userID, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()
		return t.gen.RunForUser(runCtx, userID)
	})

	select {
	case <-ctx.Done():
	case res := <-ch:
		if res.Err != nil {
			t.logger.WarnContext(ctx, "Opportunistic recurring generation failed",
				log.FieldUserID, userID,
				log.FieldTrigger, "request",
				log.FieldError, res.Err)
			return
		}
		if report, ok := res.Val.(Report); ok && report.Failed > 0 {
			t.logger.WarnContext(ctx, "Opportunistic recurring generation had failures",
				log.FieldUserID, userID,
				log.FieldFailed, report.Failed,
				log.FieldError, report.Err())
		}
	}
}
