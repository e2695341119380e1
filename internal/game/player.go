package game

import "slices"

// Role is how an identity participates in a session.
type Role string

const (
	RoleNone   Role = ""
	RolePlayer Role = "player"
	RoleVoter  Role = "voter"
)

// Player is one of the two competitive seats.
type Player struct {
	Name      string
	Seat      int
	Credits   int
	Hand      []Card
	Selection *Card
	Ready     bool

	// ConnID identifies the connection currently attached to the seat.
	// Empty while the player is disconnected.
	ConnID string
}

// HasSelected reports whether the player picked a card this round
func (p *Player) HasSelected() bool {
	return p.Selection != nil
}

func (p *Player) clone() Player {
	c := *p
	c.Hand = slices.Clone(p.Hand)
	if p.Selection != nil {
		sel := *p.Selection
		c.Selection = &sel
	}
	return c
}

// Voter is a spectator whose votes feed the shared deck.
type Voter struct {
	Name   string
	Voted  bool
	ConnID string
}
