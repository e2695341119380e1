package server

import (
	"errors"

	"github.com/lox/voterps/internal/game"
)

func (e *Engine) handleJoin(ev JoinEvent) {
	if _, ok := e.dir.Conn(ev.ConnID); !ok {
		return
	}

	s, created, err := e.registry.Open(ev.Code)
	if err != nil {
		e.sendError(ev.ConnID, ErrorCodeInvalidCode, err.Error())
		return
	}
	if created {
		e.logger.Info("Session created", "code", s.Code())
	}
	code := s.Code()

	res, err := s.Join(ev.Name, ev.ConnID)
	if errors.Is(err, game.ErrSessionFull) {
		e.logger.Debug("Session full", "code", code, "name", ev.Name)
		e.direct(ev.ConnID, MessageTypeSessionFull, SessionFullData{Code: code})
		return
	}
	if err != nil {
		e.sendError(ev.ConnID, ErrorCodeUnauthorized, err.Error())
		e.discardIfEmpty(s)
		return
	}

	// A connection speaks for one member at a time. The previous membership
	// is released only once the new one is accepted.
	if b, ok := e.dir.Lookup(ev.ConnID); ok && (b.Code != code || b.Name != ev.Name) {
		e.dir.Unbind(ev.ConnID)
		e.leave(ev.ConnID, b)
		if live, ok := e.registry.Get(code); !ok || live != s {
			return
		}
	}

	if res.PrevConnID != "" && res.PrevConnID != ev.ConnID {
		e.dir.Unbind(res.PrevConnID)
		e.rooms.Unsubscribe(code, res.PrevConnID)
	}
	e.dir.Bind(ev.ConnID, code, ev.Name)
	e.rooms.Subscribe(code, ev.ConnID)

	e.logger.Info("User joined", "code", code, "name", ev.Name, "role", res.Role, "seat", res.Seat, "reattached", res.Reattached)
	e.room(code, MessageTypeUserJoined, UserJoinedData{
		Name:       ev.Name,
		Role:       res.Role,
		Seat:       res.Seat,
		Reattached: res.Reattached,
	}, ev.ConnID)
	e.direct(ev.ConnID, MessageTypeWelcome, welcomeData(s, ev.Name))
}

func (e *Engine) handleReady(m member) {
	s := m.session
	res, err := s.Ready(m.name)
	if err != nil {
		e.ignore(m, "ready", err)
		return
	}

	p, _ := s.Player(m.name)
	e.room(s.Code(), MessageTypePlayerReady, PlayerReadyData{
		Name:       m.name,
		Seat:       p.Seat,
		Ready:      p.Ready,
		Phase:      s.Phase(),
		CurrentBet: s.CurrentBet(),
	})
	if !res.Advanced {
		return
	}

	e.logger.Debug("Phase advanced", "code", s.Code(), "from", res.From, "to", res.To)
	switch {
	case res.Dealt:
		e.announceDeal(s)
	case res.To == game.Finished:
		e.finish(s)
	case res.From == game.Resolution:
		e.provideHands(s)
	}
}

func (e *Engine) handleProposeBet(m member, credits float64) {
	s := m.session
	bet, err := s.ProposeBet(m.name, credits)
	if err != nil {
		e.ignore(m, "propose-bet", err)
		return
	}
	e.room(s.Code(), MessageTypeBetUpdate, BetUpdateData{Name: m.name, CurrentBet: bet})
}

func (e *Engine) handleRetire(m member) {
	if err := m.session.Retire(m.name); err != nil {
		e.ignore(m, "retire", err)
		return
	}
	e.logger.Info("Player retired", "code", m.session.Code(), "name", m.name)
	e.finish(m.session)
}

func (e *Engine) handlePickCard(m member, idx int) {
	s := m.session
	res, err := s.Pick(m.name, idx)
	if err != nil {
		e.ignore(m, "pick-card", err)
		return
	}

	p, _ := s.Player(m.name)
	e.room(s.Code(), MessageTypePlayerPickedCard, PlayerPickedCardData{Name: m.name, Seat: p.Seat})
	if !res.Resolved {
		e.direct(m.connID, MessageTypeProvideHand, handData(p))
		return
	}

	winner, draw := s.Winner()
	e.provideHands(s)
	e.room(s.Code(), MessageTypePlayersFinishedPicking, PlayersFinishedPickingData{
		Phase:      s.Phase(),
		CurrentBet: s.CurrentBet(),
		Players:    playerViews(s),
		Winner:     winner,
		Draw:       draw,
	})
}

func (e *Engine) handleVote(m member, idx int) {
	s := m.session
	res, err := s.Vote(m.name, idx)
	if err != nil {
		e.ignore(m, "vote", err)
		return
	}
	if res.Dealt {
		e.announceDeal(s)
		return
	}
	voted, total := s.VoteProgress()
	e.room(s.Code(), MessageTypeVoterVoted, VoterVotedData{
		Name:   m.name,
		Voted:  voted,
		Total:  total,
		Voters: voterViews(s),
	})
}

func (e *Engine) handleDisconnect(connID string) {
	b, bound := e.dir.Remove(connID)
	e.logger.Debug("Client disconnected", "conn", connID, "total", e.dir.Len())
	if bound {
		e.leave(connID, b)
	}
}

// leave releases the membership b held by connID.
func (e *Engine) leave(connID string, b Binding) {
	e.rooms.Unsubscribe(b.Code, connID)
	s, ok := e.registry.Get(b.Code)
	if !ok {
		return
	}

	res, err := s.Leave(b.Name, connID)
	if err != nil {
		e.logger.Debug("Ignored departure", "code", b.Code, "name", b.Name, "error", err)
		return
	}

	e.logger.Info("User left", "code", b.Code, "name", b.Name, "role", res.Role, "removed", res.Removed)
	e.room(b.Code, MessageTypeUserLeft, UserLeftData{Name: b.Name, Role: res.Role, Removed: res.Removed})
	switch {
	case res.Dealt:
		e.announceDeal(s)
	case res.Retired:
		e.finish(s)
	default:
		e.discardIfEmpty(s)
	}
}

// announceDeal sends each player their fresh hand and tells the room that
// voting closed.
func (e *Engine) announceDeal(s *game.Session) {
	e.provideHands(s)
	e.room(s.Code(), MessageTypeVotersFinishedVoting, VotersFinishedVotingData{
		Phase:    s.Phase(),
		DeckSize: len(s.Deck()),
	})
}

func (e *Engine) provideHands(s *game.Session) {
	for _, p := range s.Players() {
		if p.ConnID != "" {
			e.direct(p.ConnID, MessageTypeProvideHand, handData(p))
		}
	}
}

// finish announces the result, exports the terminal snapshot and tears the
// session down.
func (e *Engine) finish(s *game.Session) {
	code := s.Code()
	winner, _ := s.Winner()
	e.room(code, MessageTypeGameOver, GameOverData{
		Winner:  winner,
		Reason:  string(s.Reason()),
		Players: playerViews(s),
	})

	if !e.exporter.Export(recordOf(s)) {
		e.logger.Error("Snapshot not exported", "code", code)
	}

	for _, id := range e.rooms.DropRoom(code) {
		e.dir.Unbind(id)
	}
	e.registry.Remove(code)
	e.logger.Info("Session finished", "code", code, "winner", winner, "reason", s.Reason())
}

// discardIfEmpty drops a lobby nobody belongs to any more.
func (e *Engine) discardIfEmpty(s *game.Session) {
	if s.Phase() != game.Lobby || len(s.Players()) > 0 || len(s.Voters()) > 0 {
		return
	}
	e.rooms.DropRoom(s.Code())
	e.registry.Remove(s.Code())
	e.logger.Debug("Session discarded", "code", s.Code())
}

// ignore drops an action that is illegal in the current state.
func (e *Engine) ignore(m member, action string, err error) {
	e.logger.Debug("Ignored action", "code", m.session.Code(), "name", m.name, "action", action, "reason", err)
}

func (e *Engine) notJoined(connID string) {
	e.direct(connID, MessageTypeNotJoined, NotJoinedData{Message: "join a session first"})
}

func (e *Engine) sendError(connID, code, message string) {
	e.direct(connID, MessageTypeError, ErrorData{Code: code, Message: message})
}

func (e *Engine) room(code string, t MessageType, data any, except ...string) {
	msg, err := NewMessage(t, data)
	if err != nil {
		e.logger.Error("Failed to create message", "type", t, "error", err)
		return
	}
	e.rooms.Room(code, msg, except...)
}

func (e *Engine) direct(connID string, t MessageType, data any) {
	msg, err := NewMessage(t, data)
	if err != nil {
		e.logger.Error("Failed to create message", "type", t, "error", err)
		return
	}
	e.rooms.Direct(connID, msg)
}
