package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Arena.TickRate != 20 || cfg.DatabaseDSN != ":memory:" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
addr: ":9000"
max_rooms: 5
arena:
  tick_rate: 30
  hazard_fuse: 2.5
  difficulty: hard
  layout:
    - "#####"
    - "#...#"
    - "#.+.#"
    - "#...#"
    - "#####"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.MaxRooms != 5 {
		t.Errorf("top-level overrides not applied: %+v", cfg)
	}
	if cfg.Arena.TickRate != 30 || cfg.Arena.HazardFuse != 2.5 || cfg.Arena.Difficulty != "hard" {
		t.Errorf("arena overrides not applied: %+v", cfg.Arena)
	}
	if cfg.Arena.BlastRange != 2 {
		t.Error("unset fields should keep their defaults")
	}
	if len(cfg.Arena.Layout) != 5 {
		t.Errorf("expected a 5-row layout, got %d", len(cfg.Arena.Layout))
	}
	if cfg.Arena.TickDuration() != 1.0/30 {
		t.Errorf("unexpected tick duration %f", cfg.Arena.TickDuration())
	}
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"tick rate":    "arena:\n  tick_rate: 0\n",
		"fuse":         "arena:\n  hazard_fuse: -1\n",
		"difficulty":   "arena:\n  difficulty: nightmare\n",
		"pickup":       "arena:\n  pickup_weights:\n    laser: 3\n",
		"layout":       "arena:\n  layout: [\"##\", \"#\"]\n",
		"tiny layout":  "arena:\n  layout: [\"###\", \"#.#\", \"###\"]\n",
		"walled spawn": "arena:\n  layout: [\"#####\", \"#...#\", \"#.#.#\", \"#..+#\", \"#####\"]\n",
		"rooms":        "max_rooms: 0\n",
		"syntax":       "arena: [\n",
	}
	for name, body := range cases {
		if _, err := LoadConfig(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("missing file should fail to read, got %v", err)
	}
}

func TestLoadConfigEvenArenaSpawnsOnGround(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "arena:\n  width: 14\n  height: 12\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g := NewGame("even", cfg.Arena, 9)
	a, err := g.AddPlayer("A")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	b, _ := g.AddPlayer("B")
	for _, agent := range []*Agent{a, b} {
		if !g.grid.IsWalkable(agent.Cell(), nil) {
			t.Errorf("%s spawned on %v which is not open ground", agent.Name, agent.Cell())
		}
	}
}
