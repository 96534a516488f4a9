package core

import (
	"fmt"
	"time"
)

// QuotaStatus captures the live sliding-window state for one identity
// under a provider quota.
type QuotaStatus struct {
	Provider  string        `json:"provider"`
	Identity  string        `json:"identity"`
	Used      int           `json:"used"`
	Remaining int           `json:"remaining"`
	MaxCalls  int           `json:"max_calls"`
	Window    time.Duration `json:"window"`
	ResetIn   time.Duration `json:"reset_in"`
}

// FormatQuotaStatus renders a one-line human-readable status for a
// quota window.
func FormatQuotaStatus(status QuotaStatus) string {
	if status.MaxCalls > 0 && status.Remaining == 0 {
		return fmt.Sprintf("⚠️ Rate limit reached. Resets in %ds", int(status.ResetIn.Seconds()))
	}
	if status.Remaining <= 2 {
		return fmt.Sprintf("⚡ %d/%d calls remaining", status.Remaining, status.MaxCalls)
	}
	return fmt.Sprintf("✅ %d/%d calls remaining", status.Remaining, status.MaxCalls)
}
