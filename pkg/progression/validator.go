package progression

import (
	"fmt"
	"math"

	"github.com/lumen-arcade/saveguard/pkg/baseline"
)

// Result is the outcome of a validation pass. OK is true iff no issues.
type Result struct {
	OK     bool     `json:"ok"`
	Issues []string `json:"issues,omitempty"`
}

// Validator checks snapshots against configured limits. Pure: it mutates
// neither its inputs nor any state.
type Validator struct {
	limits Limits
}

func NewValidator(limits Limits) *Validator {
	return &Validator{limits: limits}
}

// Validate runs the range check and, when a strictly-earlier baseline
// exists, the velocity check. Both always execute in full; results are
// unioned and no field short-circuits the rest.
func (v *Validator) Validate(current Snapshot, base *baseline.Baseline) Result {
	var issues []string

	issues = append(issues, v.rangeIssues(current)...)
	issues = append(issues, v.velocityIssues(current, base)...)

	return Result{OK: len(issues) == 0, Issues: issues}
}

func (v *Validator) rangeIssues(s Snapshot) []string {
	var issues []string
	check := func(field string, value, max float64) {
		switch {
		case math.IsNaN(value) || math.IsInf(value, 0):
			issues = append(issues, fmt.Sprintf("%s is not a finite number", field))
		case value < 0:
			issues = append(issues, fmt.Sprintf("%s below minimum", field))
		case value > max:
			issues = append(issues, fmt.Sprintf("%s above maximum", field))
		}
	}

	check("balance", s.Balance, v.limits.MaxBalance)
	check("bankBalance", s.BankBalance, v.limits.MaxBankBalance)
	check("totalEarnings", s.TotalEarnings, v.limits.MaxTotalEarnings)
	check("totalSpent", s.TotalSpent, v.limits.MaxTotalSpent)
	check("roundsCompleted", s.RoundsCompleted, v.limits.MaxRounds)
	return issues
}

func (v *Validator) velocityIssues(current Snapshot, base *baseline.Baseline) []string {
	if base == nil || base.LastSaveAt >= current.Timestamp {
		return nil
	}

	// The one-second floor keeps near-simultaneous resubmissions from
	// blowing up the divisor; two submissions within the same second are
	// compared as if exactly one second apart, which is the stricter
	// reading.
	secondsElapsed := math.Max(1, float64(current.Timestamp-base.LastSaveAt)/1000)

	var issues []string
	earningsDelta := current.TotalEarnings - base.LastTotalEarnings
	if earningsDelta > v.limits.MaxEarningsPerSecond*secondsElapsed {
		issues = append(issues, fmt.Sprintf(
			"progression too fast: earnings gained %.2f in %.0fs", earningsDelta, secondsElapsed))
	}

	bankDelta := current.BankBalance - base.LastBankBalance
	if bankDelta > v.limits.MaxBankDeltaPerSecond*secondsElapsed {
		issues = append(issues, fmt.Sprintf(
			"progression too fast: bank grew %.2f in %.0fs", bankDelta, secondsElapsed))
	}
	return issues
}
