package module

import (
	"fmt"
	"strings"
)

// WarningLevel classifies how serious a module's current state is. Values are
// ordered so that a larger level is always worse.
type WarningLevel int

const (
	LevelNone WarningLevel = iota
	LevelNotice
	LevelWarning
	LevelError
	LevelBlocker
	LevelFatal
)

var levelNames = [...]string{"none", "notice", "warning", "error", "blocker", "fatal"}

func (l WarningLevel) String() string {
	if l < LevelNone || l > LevelFatal {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Blocking reports whether the level prevents proceeding.
func (l WarningLevel) Blocking() bool {
	return l >= LevelBlocker
}

// Qualifying reports whether the level may pull the user to another tab.
func (l WarningLevel) Qualifying() bool {
	return l >= LevelError
}

// Worse returns the more severe of two levels.
func (l WarningLevel) Worse(other WarningLevel) WarningLevel {
	if other > l {
		return other
	}
	return l
}

// ParseWarningLevel converts the wire name into a level. Empty means none.
func ParseWarningLevel(raw string) (WarningLevel, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return LevelNone, nil
	}
	for idx, candidate := range levelNames {
		if candidate == name {
			return WarningLevel(idx), nil
		}
	}
	return LevelNone, fmt.Errorf("module: unknown warning level %q", raw)
}

// MarshalText implements encoding.TextMarshaler.
func (l WarningLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *WarningLevel) UnmarshalText(data []byte) error {
	parsed, err := ParseWarningLevel(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Sequence is the workflow answer AskUser returns.
type Sequence string

const (
	SequenceNext   Sequence = "next"
	SequenceBack   Sequence = "back"
	SequenceAbort  Sequence = "abort"
	SequenceCancel Sequence = "cancel"
	SequenceFinish Sequence = "finish"
)

// ParseSequence validates a workflow sequence name. Empty defaults to next.
func ParseSequence(raw string) (Sequence, error) {
	switch seq := Sequence(strings.ToLower(strings.TrimSpace(raw))); seq {
	case "":
		return SequenceNext, nil
	case SequenceNext, SequenceBack, SequenceAbort, SequenceCancel, SequenceFinish:
		return seq, nil
	default:
		return "", fmt.Errorf("module: unknown workflow sequence %q", raw)
	}
}

// Recompute reports whether the answer invalidates the current proposal.
func (s Sequence) Recompute() bool {
	switch s {
	case SequenceCancel, SequenceBack, SequenceAbort, SequenceFinish:
		return false
	default:
		return true
	}
}
