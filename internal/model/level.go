package model

import "fmt"

// DecisionLevel is the severity tier that controls how much governance a
// proposal must pass through.
type DecisionLevel string

const (
	LevelMicro      DecisionLevel = "MICRO"
	LevelStandard   DecisionLevel = "STANDARD"
	LevelCritical   DecisionLevel = "CRITICAL"
	LevelStructural DecisionLevel = "STRUCTURAL"
)

// Rank orders levels from MICRO (0) to STRUCTURAL (3). Unknown levels rank -1.
func (l DecisionLevel) Rank() int {
	switch l {
	case LevelMicro:
		return 0
	case LevelStandard:
		return 1
	case LevelCritical:
		return 2
	case LevelStructural:
		return 3
	default:
		return -1
	}
}

// IsCritical reports whether l is CRITICAL or STRUCTURAL.
func (l DecisionLevel) IsCritical() bool {
	return l.Rank() >= LevelCritical.Rank()
}

// MaxLevel returns the higher of two levels.
func MaxLevel(a, b DecisionLevel) DecisionLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseLevel converts a string into a DecisionLevel.
func ParseLevel(s string) (DecisionLevel, error) {
	l := DecisionLevel(s)
	if l.Rank() < 0 {
		return "", fmt.Errorf("unknown decision level %q", s)
	}
	return l, nil
}

// AllLevels lists the levels in ascending order.
func AllLevels() []DecisionLevel {
	return []DecisionLevel{LevelMicro, LevelStandard, LevelCritical, LevelStructural}
}

// Steps records which governance stages are mandatory for a level.
type Steps struct {
	Simulation     bool `json:"simulation"`
	Aggressiveness bool `json:"aggressiveness"`
	Summary        bool `json:"summary"`
	Analysis       bool `json:"analysis"`
	Validation     bool `json:"validation"`
	Ledger         bool `json:"ledger"`
}
