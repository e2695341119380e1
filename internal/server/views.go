package server

import (
	"github.com/lox/voterps/internal/game"
	"github.com/lox/voterps/internal/snapshot"
)

func playerViews(s *game.Session) []PlayerView {
	players := s.Players()
	out := make([]PlayerView, 0, len(players))
	for _, p := range players {
		v := PlayerView{
			Name:      p.Name,
			Seat:      p.Seat,
			Credits:   p.Credits,
			Ready:     p.Ready,
			Connected: p.ConnID != "",
			HandSize:  len(p.Hand),
			Picked:    p.HasSelected(),
		}
		// Selections stay private until both players have picked.
		if s.Phase() != game.Drawing {
			v.Selection = p.Selection
		}
		out = append(out, v)
	}
	return out
}

func voterViews(s *game.Session) []VoterView {
	voters := s.Voters()
	out := make([]VoterView, 0, len(voters))
	for _, v := range voters {
		out = append(out, VoterView{Name: v.Name, Voted: v.Voted, Connected: v.ConnID != ""})
	}
	return out
}

func sessionView(s *game.Session) SessionView {
	winner, draw := s.Winner()
	return SessionView{
		Code:       s.Code(),
		Phase:      s.Phase(),
		CurrentBet: s.CurrentBet(),
		Players:    playerViews(s),
		Voters:     voterViews(s),
		Winner:     winner,
		Draw:       draw,
	}
}

// welcomeData is the private state sent to name on join.
func welcomeData(s *game.Session, name string) WelcomeData {
	w := WelcomeData{
		Name:    name,
		Role:    s.Role(name),
		Session: sessionView(s),
	}
	if p, ok := s.Player(name); ok {
		w.Seat = p.Seat
		w.Hand = p.Hand
	}
	return w
}

func handData(p game.Player) ProvideHandData {
	hand := p.Hand
	if hand == nil {
		hand = []game.Card{}
	}
	return ProvideHandData{Hand: hand, Selection: p.Selection}
}

func recordOf(s *game.Session) snapshot.Record {
	winner, _ := s.Winner()
	rec := snapshot.Record{
		Code:   s.Code(),
		Winner: winner,
		Status: snapshot.StatusOngoing,
		Reason: string(s.Reason()),
	}
	if s.Phase() == game.Finished {
		rec.Status = snapshot.StatusFinished
	}
	for _, p := range s.Players() {
		rec.Players = append(rec.Players, p.Name)
		rec.Credits = append(rec.Credits, p.Credits)
	}
	for _, v := range s.Voters() {
		rec.Voters = append(rec.Voters, v.Name)
	}
	return rec
}

func summaryOf(s *game.Session) SessionSummary {
	sum := SessionSummary{
		Code:    s.Code(),
		Phase:   s.Phase(),
		Players: []string{},
		Voters:  len(s.Voters()),
	}
	for _, p := range s.Players() {
		sum.Players = append(sum.Players, p.Name)
	}
	return sum
}
