// Package relay pumps generated text from an upstream stream to a client.
package relay

import (
	"context"
	"errors"
	"io"
	"time"
)

// Source yields chunks in upstream order. io.EOF marks a clean end.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Sink receives chunks. Send must deliver the chunk to the transport before returning.
type Sink interface {
	Send(chunk []byte) error
	Close() error
}

// Outcome is the terminal state of a pump.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeUpstreamFailed Outcome = "upstream_failed"
	OutcomeClientGone     Outcome = "client_gone"
	OutcomeCanceled       Outcome = "canceled"
)

// Result summarizes one pump.
type Result struct {
	Outcome  Outcome
	Chunks   int
	Bytes    int64
	Duration time.Duration
	// Err is nil only for OutcomeCompleted.
	Err error
}

// Truncated reports whether the client received a partial body.
func (r Result) Truncated() bool {
	return r.Outcome != OutcomeCompleted
}

// Pump forwards chunks from src to dst one at a time until src is exhausted,
// either side fails or ctx is done. The next chunk is not pulled until the
// previous one was sent. src and dst are closed exactly once before Pump returns.
func Pump(ctx context.Context, src Source, dst Sink) Result {
	start := time.Now()
	res := pump(ctx, src, dst)

	_ = src.Close()
	_ = dst.Close()

	res.Duration = time.Since(start)
	return res
}

func pump(ctx context.Context, src Source, dst Sink) Result {
	var res Result
	for {
		if err := ctx.Err(); err != nil {
			res.Outcome, res.Err = OutcomeCanceled, err
			return res
		}

		chunk, err := src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				res.Outcome = OutcomeCompleted
			case ctx.Err() != nil:
				res.Outcome, res.Err = OutcomeCanceled, ctx.Err()
			default:
				res.Outcome, res.Err = OutcomeUpstreamFailed, err
			}
			return res
		}
		if len(chunk) == 0 {
			continue
		}

		if err := dst.Send(chunk); err != nil {
			res.Outcome, res.Err = OutcomeClientGone, err
			return res
		}
		res.Chunks++
		res.Bytes += int64(len(chunk))
	}
}
