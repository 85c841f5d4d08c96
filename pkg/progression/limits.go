// Package progression validates save snapshots against absolute ranges and
// time-normalized velocity relative to the device baseline.
package progression

// Limits bounds the tracked numeric fields and their rates of change.
// Values are tuned per deployment via the YAML limits profile.
type Limits struct {
	MaxBalance       float64 `yaml:"max_balance" json:"max_balance"`
	MaxBankBalance   float64 `yaml:"max_bank_balance" json:"max_bank_balance"`
	MaxTotalEarnings float64 `yaml:"max_total_earnings" json:"max_total_earnings"`
	MaxTotalSpent    float64 `yaml:"max_total_spent" json:"max_total_spent"`
	MaxRounds        float64 `yaml:"max_rounds" json:"max_rounds"`

	MaxEarningsPerSecond  float64 `yaml:"max_earnings_per_second" json:"max_earnings_per_second"`
	MaxBankDeltaPerSecond float64 `yaml:"max_bank_delta_per_second" json:"max_bank_delta_per_second"`
}

// DefaultLimits returns conservative production defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxBalance:            1e15,
		MaxBankBalance:        1e15,
		MaxTotalEarnings:      1e16,
		MaxTotalSpent:         1e16,
		MaxRounds:             1e6,
		MaxEarningsPerSecond:  50_000,
		MaxBankDeltaPerSecond: 50_000,
	}
}

// Snapshot is the fixed set of tracked numeric fields extracted from a save
// payload, plus the submission timestamp in unix milliseconds.
type Snapshot struct {
	Balance         float64
	BankBalance     float64
	TotalEarnings   float64
	TotalSpent      float64
	RoundsCompleted float64
	Timestamp       int64
}
