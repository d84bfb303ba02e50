package pin

import (
	"context"
	"time"
)

const DefaultPollInterval = 1 * time.Second

type PollOptions struct {
	Interval    time.Duration   // time between queries, DefaultPollInterval when zero
	Timeout     time.Duration   // overall deadline, none when zero
	MaxAttempts int             // query budget, unbounded when zero
	Wake        <-chan struct{} // optional: each receive triggers an immediate query
	OnStatus    func(Result)    // optional: called with every snapshot
}

// AwaitConfirmation queries checker at a fixed cadence until txid reaches
// CONFIRMED. It returns early with the last snapshot and an error when a
// query fails, ctx is cancelled, the timeout passes or MaxAttempts queries
// were made without reaching CONFIRMED. Before the first successful query
// the snapshot is UnknownResult().
func AwaitConfirmation(ctx context.Context, checker StatusChecker, txid TxID, opts PollOptions) (Result, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := UnknownResult()
	attempts := 0
	for {
		res, err := checker.CertStatus(ctx, txid)
		attempts++
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, err
		}
		last = res
		if opts.OnStatus != nil {
			opts.OnStatus(res)
		}
		if res.Status.IsTerminal() {
			return res, nil
		}
		if opts.MaxAttempts > 0 && attempts >= opts.MaxAttempts {
			return last, NewErr(NotAvailable, "%s not confirmed after %d queries: %s", txid, attempts, res.Message)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		case <-opts.Wake:
		}
	}
}
