package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 120, cfg.RateLimitRPM)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ADMIN_SUBJECTS", "reviewer-1, reviewer-2,")
	t.Setenv("RATE_LIMIT_RPM", "30")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"reviewer-1", "reviewer-2"}, cfg.AdminSubjects)
	assert.Equal(t, 30, cfg.RateLimitRPM)
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_idleminer.yaml"), []byte(`
name: Idle Miner
limits:
  max_bank_balance: 1000000
  max_earnings_per_second: 100
rules:
  - name: big-jump
    expr: "save.bankBalance > 500000.0"
`), 0o644))

	p, err := LoadProfile(dir, "IdleMiner")
	require.NoError(t, err)
	assert.Equal(t, "idleminer", p.GameID)
	assert.Equal(t, 1_000_000.0, p.Limits.MaxBankBalance)
	assert.Equal(t, 100.0, p.Limits.MaxEarningsPerSecond)
	assert.Equal(t, 1e15, p.Limits.MaxBalance, "unstated limits keep defaults")
	require.Len(t, p.Rules, 1)
	assert.Equal(t, "big-jump", p.Rules[0].Name)
}

func TestLoadProfile_Missing(t *testing.T) {
	_, err := LoadProfile(t.TempDir(), "nope")
	assert.Error(t, err)
}

func TestLoadAllProfiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_a.yaml"), []byte("name: A\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_b.yaml"), []byte("name: B\n"), 0o644))

	profiles, err := LoadAllProfiles(dir)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Contains(t, profiles, "a")
	assert.Contains(t, profiles, "b")
}
