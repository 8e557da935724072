package risk

import "fmt"

// LimitExceededError reports a trade rejected for exceeding a
// configured ceiling (single-trade size, daily volume).
type LimitExceededError struct {
	LimitType string
	Current   float64
	Max       float64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("risk limit exceeded (%s): current $%.2f, max $%.2f", e.LimitType, e.Current, e.Max)
}

// CheckFailedError reports a trade rejected by a named check (cooldown,
// slippage, liquidity, rug detection, or a custom Check).
type CheckFailedError struct {
	CheckName string
	Reason    string
}

func (e *CheckFailedError) Error() string {
	return fmt.Sprintf("risk check %q failed: %s", e.CheckName, e.Reason)
}
