// Package quota defines the per-identifier sliding window quota store and its
// in-process and Redis implementations. SQL-backed stores live in core/store.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adrianaguero/chatgate/internal/core"
)

// ErrStoreUnavailable marks every failure reported by a quota store.
var ErrStoreUnavailable = errors.New("quota store unavailable")

// Store admits or denies one request per call.
//
// TryAcquire is atomic per identifier: concurrent calls never admit more than
// the window limit. A denied call records nothing.
type Store interface {
	TryAcquire(ctx context.Context, identifier string) (core.QuotaDecision, error)
}

// Admin is implemented by stores that can be inspected and reset by operators.
type Admin interface {
	// Inspect reports the current window without consuming a unit.
	Inspect(ctx context.Context, identifier string) (core.QuotaDecision, error)
	Reset(ctx context.Context, identifier string) error
}

// Pinger is implemented by stores with a reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreError wraps a backing store failure.
type StoreError struct {
	Driver string
	Op     string
	Err    error
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("quota %s %s: %v", e.Driver, e.Op, e.Err)
}

// Unwrap exposes both ErrStoreUnavailable and the underlying cause.
func (e *StoreError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return []error{ErrStoreUnavailable, e.Err}
}

// Wrap returns err as a *StoreError unless it already is one.
func Wrap(driver, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Driver: driver, Op: op, Err: err}
}

// Unavailable is a store whose construction failed. Every call fails with Err.
type Unavailable struct {
	Driver string
	Err    error
}

func (u Unavailable) fail(op string) error {
	err := u.Err
	if err == nil {
		err = errors.New("not initialized")
	}
	return Wrap(u.Driver, op, err)
}

func (u Unavailable) TryAcquire(context.Context, string) (core.QuotaDecision, error) {
	return core.QuotaDecision{}, u.fail("acquire")
}

func (u Unavailable) Inspect(context.Context, string) (core.QuotaDecision, error) {
	return core.QuotaDecision{}, u.fail("inspect")
}

func (u Unavailable) Reset(context.Context, string) error {
	return u.fail("reset")
}

func (u Unavailable) Ping(context.Context) error {
	return u.fail("ping")
}

// NormalizeIdentifier trims the identifier and rejects empty values.
func NormalizeIdentifier(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", errors.New("identifier is required")
	}
	return identifier, nil
}

// Decide builds the decision for a window holding count entries after the call.
// oldestMs is the oldest retained entry in Unix milliseconds, or 0 when the window is empty.
func Decide(window core.QuotaWindow, allowed bool, count int, oldestMs int64) core.QuotaDecision {
	remaining := window.Limit - count
	if !allowed || remaining < 0 {
		remaining = 0
	}
	var reset int64
	if oldestMs > 0 {
		reset = oldestMs + window.Duration.Milliseconds()
	}
	return core.QuotaDecision{
		Allowed:   allowed,
		Limit:     window.Limit,
		Remaining: remaining,
		ResetAt:   reset,
	}
}
