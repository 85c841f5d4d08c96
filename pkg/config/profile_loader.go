package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lumen-arcade/saveguard/pkg/policy"
	"github.com/lumen-arcade/saveguard/pkg/progression"
)

// LimitsProfile is a per-game tuning file: progression caps plus the
// reviewer rules that apply to that game.
type LimitsProfile struct {
	Name   string             `yaml:"name" json:"name"`
	GameID string             `yaml:"game_id" json:"game_id"`
	Limits progression.Limits `yaml:"limits" json:"limits"`
	Rules  []policy.Rule      `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// LoadProfile loads profile_<gameID>.yaml from the profiles directory.
// Zero-valued limit fields fall back to the defaults, so a profile only
// states what it tunes.
func LoadProfile(profilesDir, gameID string) (*LimitsProfile, error) {
	gameID = strings.ToLower(gameID)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", gameID))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", gameID, err)
	}

	profile := LimitsProfile{Limits: progression.DefaultLimits()}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", gameID, err)
	}
	if profile.GameID == "" {
		profile.GameID = gameID
	}
	applyDefaults(&profile.Limits)
	return &profile, nil
}

// LoadAllProfiles loads every profile_*.yaml in the directory, keyed by
// game id.
func LoadAllProfiles(profilesDir string) (map[string]*LimitsProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}
	profiles := make(map[string]*LimitsProfile, len(matches))
	for _, path := range matches {
		base := strings.TrimSuffix(filepath.Base(path), ".yaml")
		gameID := strings.TrimPrefix(base, "profile_")
		profile, err := LoadProfile(profilesDir, gameID)
		if err != nil {
			return nil, err
		}
		profiles[profile.GameID] = profile
	}
	return profiles, nil
}

func applyDefaults(l *progression.Limits) {
	def := progression.DefaultLimits()
	if l.MaxBalance <= 0 {
		l.MaxBalance = def.MaxBalance
	}
	if l.MaxBankBalance <= 0 {
		l.MaxBankBalance = def.MaxBankBalance
	}
	if l.MaxTotalEarnings <= 0 {
		l.MaxTotalEarnings = def.MaxTotalEarnings
	}
	if l.MaxTotalSpent <= 0 {
		l.MaxTotalSpent = def.MaxTotalSpent
	}
	if l.MaxRounds <= 0 {
		l.MaxRounds = def.MaxRounds
	}
	if l.MaxEarningsPerSecond <= 0 {
		l.MaxEarningsPerSecond = def.MaxEarningsPerSecond
	}
	if l.MaxBankDeltaPerSecond <= 0 {
		l.MaxBankDeltaPerSecond = def.MaxBankDeltaPerSecond
	}
}
