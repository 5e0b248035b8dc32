package main

import (
	"errors"
	"fmt"
)

// Phase is the lifecycle stage of a room's match
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown"
	PhaseRunning   Phase = "running"
	PhaseOver      Phase = "over"
)

const (
	minTimeLimit = 30.0
	maxTimeLimit = 600.0
	minSpeed     = 1.0 // tiles/s
)

// Request rejections surfaced to clients as error messages
var (
	ErrRoomFull        = errors.New("room full")
	ErrRoomNotFound    = errors.New("room not found")
	ErrWrongPassword   = errors.New("wrong password")
	ErrTooManyRooms    = errors.New("too many rooms")
	ErrNotHost         = errors.New("not host")
	ErrMatchInProgress = errors.New("match in progress")
	ErrNeedPlayers     = errors.New("need at least two participants")
	ErrNotInRoom       = errors.New("not in a room")
	ErrBadTicket       = errors.New("invalid ticket")
)

// MatchSettings are the per-room values the host may change between matches
type MatchSettings struct {
	TimeLimit  float64    `json:"timeLimit"`
	Speed      float64    `json:"speed"` // tiles/s
	Bots       int        `json:"bots"`
	Difficulty Difficulty `json:"difficulty"`
}

// DefaultSettings derives room settings from arena config
func DefaultSettings(a ArenaConfig) MatchSettings {
	d, err := ParseDifficulty(a.Difficulty)
	if err != nil {
		d = DifficultyNormal
	}
	return MatchSettings{
		TimeLimit:  a.TimeLimit,
		Speed:      a.AgentSpeed,
		Bots:       clampInt(a.Bots, 0, RoomCapacity-1),
		Difficulty: d,
	}
}

// Apply validates an update and returns the merged settings
func (s MatchSettings) Apply(u SettingsUpdate) (MatchSettings, error) {
	out := s
	if u.TimeLimit != nil {
		if *u.TimeLimit < minTimeLimit || *u.TimeLimit > maxTimeLimit {
			return s, fmt.Errorf("timeLimit must be in [%g, %g]", minTimeLimit, maxTimeLimit)
		}
		out.TimeLimit = *u.TimeLimit
	}
	if u.Speed != nil {
		if *u.Speed < minSpeed || *u.Speed > maxAgentSpeed {
			return s, fmt.Errorf("speed must be in [%g, %g]", minSpeed, maxAgentSpeed)
		}
		out.Speed = *u.Speed
	}
	if u.Bots != nil {
		if *u.Bots < 0 || *u.Bots > RoomCapacity-1 {
			return s, fmt.Errorf("bots must be in [0, %d]", RoomCapacity-1)
		}
		out.Bots = *u.Bots
	}
	if u.Difficulty != nil {
		d, err := ParseDifficulty(*u.Difficulty)
		if err != nil {
			return s, err
		}
		out.Difficulty = d
	}
	return out, nil
}

// Outcome is the result of checking whether a match has ended
type Outcome struct {
	Over     bool
	WinnerID string
	Draw     bool
}

// EvaluateOutcome ends the match when at most one agent is alive or the clock
// has run out. No survivors means no winner; a single survivor wins; running
// out of time with two or more alive is a draw.
func EvaluateOutcome(agents []*Agent, timeRemaining float64) Outcome {
	var last *Agent
	alive := 0
	for _, a := range agents {
		if a.Alive {
			alive++
			last = a
		}
	}
	switch {
	case alive == 0:
		return Outcome{Over: true}
	case alive == 1:
		return Outcome{Over: true, WinnerID: last.ID}
	case timeRemaining <= 0:
		return Outcome{Over: true, Draw: true}
	}
	return Outcome{}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
