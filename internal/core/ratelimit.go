package core

import "time"

// QuotaDecision is the outcome of a single quota check.
//
// ResetAt is expressed in Unix milliseconds. Zero means the reset time is unknown.
type QuotaDecision struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"reset_at"`
}

// QuotaWindow describes a sliding window quota.
type QuotaWindow struct {
	Limit    int
	Duration time.Duration
}

// DefaultQuotaWindow admits five requests per trailing minute.
var DefaultQuotaWindow = QuotaWindow{Limit: 5, Duration: time.Minute}

// Normalize fills unset fields from DefaultQuotaWindow.
func (w QuotaWindow) Normalize() QuotaWindow {
	if w.Limit <= 0 {
		w.Limit = DefaultQuotaWindow.Limit
	}
	if w.Duration <= 0 {
		w.Duration = DefaultQuotaWindow.Duration
	}
	return w
}
