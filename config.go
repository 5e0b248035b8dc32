package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds process-wide server settings loaded from YAML
type Config struct {
	Addr         string      `yaml:"addr"`
	ClientDir    string      `yaml:"client_dir"`
	PublicURL    string      `yaml:"public_url"`
	DatabaseDSN  string      `yaml:"database_dsn"`
	TicketSecret string      `yaml:"ticket_secret"`
	BcryptCost   int         `yaml:"bcrypt_cost"`
	MaxRooms     int         `yaml:"max_rooms"`
	Arena        ArenaConfig `yaml:"arena"`
}

// ArenaConfig holds the simulation tuning shared by every room
type ArenaConfig struct {
	TickRate     int      `yaml:"tick_rate"`
	Width        int      `yaml:"width"`
	Height       int      `yaml:"height"`
	BlockDensity float64  `yaml:"block_density"`
	Layout       []string `yaml:"layout"` // optional fixed map, see ParseGrid

	HazardFuse     float64 `yaml:"hazard_fuse"`
	BlastDuration  float64 `yaml:"blast_duration"`
	ChainDelay     float64 `yaml:"chain_delay"`
	PrePadding     float64 `yaml:"pre_padding"`
	PostPadding    float64 `yaml:"post_padding"`
	KickEnabled    bool    `yaml:"kick_enabled"`
	KickSpeed      float64 `yaml:"kick_speed"` // tiles/s
	HazardCapacity int     `yaml:"hazard_capacity"`
	BlastRange     int     `yaml:"blast_range"`
	AgentSpeed     float64 `yaml:"agent_speed"` // tiles/s

	PickupChance  float64        `yaml:"pickup_chance"`
	PickupWeights map[string]int `yaml:"pickup_weights"`
	CurseSeconds  float64        `yaml:"curse_seconds"`

	CountdownSeconds float64 `yaml:"countdown_seconds"`
	TimeLimit        float64 `yaml:"time_limit"`
	RestartDelay     float64 `yaml:"restart_delay"`
	StuckSeconds     float64 `yaml:"stuck_seconds"`

	Bots       int    `yaml:"bots"`
	Difficulty string `yaml:"difficulty"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		DatabaseDSN: ":memory:",
		BcryptCost:  10,
		MaxRooms:    100,
		Arena:       DefaultArenaConfig(),
	}
}

// DefaultArenaConfig returns the built-in simulation tuning
func DefaultArenaConfig() ArenaConfig {
	return ArenaConfig{
		TickRate:       20,
		Width:          15,
		Height:         13,
		BlockDensity:   0.55,
		HazardFuse:     3.0,
		BlastDuration:  0.5,
		ChainDelay:     0.1,
		PrePadding:     1.0,
		PostPadding:    1.0,
		KickEnabled:    true,
		KickSpeed:      8,
		HazardCapacity: 1,
		BlastRange:     2,
		AgentSpeed:     3,
		PickupChance:   0.3,
		PickupWeights: map[string]int{
			string(PickupHazardUp): 30,
			string(PickupRangeUp):  30,
			string(PickupSpeedUp):  20,
			string(PickupKick):     10,
			string(PickupCurse):    10,
		},
		CurseSeconds:     10,
		CountdownSeconds: 3,
		TimeLimit:        180,
		RestartDelay:     5,
		StuckSeconds:     0.4,
		Bots:             3,
		Difficulty:       string(DifficultyNormal),
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with
func (c Config) Validate() error {
	if c.MaxRooms <= 0 {
		return fmt.Errorf("max_rooms must be positive")
	}
	return c.Arena.Validate()
}

// Validate rejects arena settings the simulation cannot run with
func (a ArenaConfig) Validate() error {
	switch {
	case a.TickRate < 1 || a.TickRate > 120:
		return fmt.Errorf("tick_rate must be in [1, 120], got %d", a.TickRate)
	case len(a.Layout) == 0 && (a.Width < 5 || a.Height < 5):
		return fmt.Errorf("arena must be at least 5x5, got %dx%d", a.Width, a.Height)
	case a.HazardFuse <= 0:
		return fmt.Errorf("hazard_fuse must be positive")
	case a.BlastDuration <= 0:
		return fmt.Errorf("blast_duration must be positive")
	case a.ChainDelay < 0 || a.PrePadding < 0 || a.PostPadding < 0:
		return fmt.Errorf("chain_delay and paddings must not be negative")
	case a.HazardCapacity < 1 || a.BlastRange < 1:
		return fmt.Errorf("hazard_capacity and blast_range must be at least 1")
	case a.AgentSpeed <= 0:
		return fmt.Errorf("agent_speed must be positive")
	case a.PickupChance < 0 || a.PickupChance > 1:
		return fmt.Errorf("pickup_chance must be in [0, 1]")
	case a.TimeLimit <= 0:
		return fmt.Errorf("time_limit must be positive")
	}
	if len(a.Layout) > 0 {
		g, err := ParseGrid(a.Layout)
		if err != nil {
			return err
		}
		if err := g.CheckSpawns(); err != nil {
			return fmt.Errorf("layout: %w", err)
		}
	}
	if _, err := ParseDifficulty(a.Difficulty); err != nil {
		return err
	}
	for name := range a.PickupWeights {
		if !PickupKind(name).Valid() {
			return fmt.Errorf("unknown pickup %q in pickup_weights", name)
		}
	}
	return nil
}

// TickDuration returns the simulation step in seconds
func (a ArenaConfig) TickDuration() float64 {
	return 1.0 / float64(a.TickRate)
}
