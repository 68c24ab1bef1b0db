package ledger

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/metrics"
)

// Backoff bounds the retry loop around a ledger call.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

// DefaultBackoff is what tournament and betting flows use in production.
var DefaultBackoff = Backoff{Attempts: 5, Base: time.Second, Cap: 30 * time.Second}

func (b Backoff) orDefault() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = DefaultBackoff.Attempts
	}
	if b.Base <= 0 {
		b.Base = DefaultBackoff.Base
	}
	if b.Cap <= 0 {
		b.Cap = DefaultBackoff.Cap
	}
	return b
}

// Retry runs fn up to b.Attempts times with exponential backoff between
// failures. It stops early when ctx is done. The terminal error carries the
// ledger_failure kind.
func Retry(ctx context.Context, logger log.Logger, b Backoff, method string, fn func(context.Context) error) error {
	b = b.orDefault()
	delay := b.Base
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			metrics.LedgerCalls.WithLabelValues(method, "ok").Inc()
			return nil
		}
		if attempt >= b.Attempts {
			break
		}
		if ctx.Err() != nil {
			metrics.LedgerCalls.WithLabelValues(method, "error").Inc()
			return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "%s interrupted: %v", method, err)
		}
		metrics.LedgerRetries.Inc()
		logger.Error("ledger call failed, retrying", "method", method, "attempt", attempt, "backoff", delay, "err", err)
		select {
		case <-ctx.Done():
			metrics.LedgerCalls.WithLabelValues(method, "error").Inc()
			return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "%s interrupted: %v", method, err)
		case <-time.After(delay):
		}
		delay *= 2
		if delay > b.Cap {
			delay = b.Cap
		}
	}
	metrics.LedgerCalls.WithLabelValues(method, "error").Inc()
	return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "%s exhausted %d attempts: %v", method, b.Attempts, err)
}
