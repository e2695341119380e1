package game

import "fmt"

// Phase is the state of a session's round state machine.
type Phase int

const (
	Lobby Phase = iota
	Betting
	Voting
	Drawing
	Resolution
	Finished
)

// String returns the wire name of the phase
func (p Phase) String() string {
	switch p {
	case Lobby:
		return "lobby"
	case Betting:
		return "betting"
	case Voting:
		return "voting"
	case Drawing:
		return "drawing"
	case Resolution:
		return "resolution"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	switch p {
	case Lobby, Betting, Voting, Drawing, Resolution, Finished:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("invalid phase: %d", int(p))
	}
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{Lobby, Betting, Voting, Drawing, Resolution, Finished} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("invalid phase: %q", text)
}

// readyAdvances reports whether both players pressing ready moves the
// session out of p.
func (p Phase) readyAdvances() bool {
	switch p {
	case Lobby, Betting, Resolution:
		return true
	case Voting, Drawing, Finished:
		return false
	default:
		return false
	}
}
