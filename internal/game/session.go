package game

import (
	"errors"
	"fmt"
	"math"
	rand "math/rand/v2"
	"slices"
)

var (
	ErrNotPlayer       = errors.New("game: not a player in this session")
	ErrNotVoter        = errors.New("game: not a voter in this session")
	ErrWrongPhase      = errors.New("game: action not allowed in current phase")
	ErrAlreadyVoted    = errors.New("game: voter already voted this round")
	ErrAlreadyPicked   = errors.New("game: player already picked a card")
	ErrOutOfRange      = errors.New("game: index out of range")
	ErrSessionFull     = errors.New("game: session full")
	ErrStaleConnection = errors.New("game: connection no longer attached")
	ErrInvalidCode     = errors.New("game: session code required")
	ErrInvalidIdentity = errors.New("game: identity required")
	errMissingOpponent = errors.New("game: both seats must be taken")
)

// Config holds the tunable rules of a session.
type Config struct {
	InitialCredits int
	MaxVoters      int
	MinDeckSize    int
	HandSize       int

	// Disconnect policy. Players keep their seat and voters lose their
	// registration unless configured otherwise.
	RetainPlayersOnDisconnect bool
	RetainVotersOnDisconnect  bool
}

// DefaultConfig returns the standard game rules.
func DefaultConfig() Config {
	return Config{
		InitialCredits:            120,
		MaxVoters:                 20,
		MinDeckSize:               30,
		HandSize:                  3,
		RetainPlayersOnDisconnect: true,
		RetainVotersOnDisconnect:  false,
	}
}

// Validate checks that the rules describe a playable game.
func (c Config) Validate() error {
	if c.InitialCredits < 1 {
		return fmt.Errorf("initial credits must be positive, got %d", c.InitialCredits)
	}
	if c.MaxVoters < 0 {
		return fmt.Errorf("max voters must not be negative, got %d", c.MaxVoters)
	}
	if c.HandSize < 1 {
		return fmt.Errorf("hand size must be positive, got %d", c.HandSize)
	}
	if c.MinDeckSize < 2*c.HandSize {
		return fmt.Errorf("min deck size %d cannot deal %d cards to two players", c.MinDeckSize, c.HandSize)
	}
	return nil
}

// FinishReason records why a session reached Finished.
type FinishReason string

const (
	FinishNone    FinishReason = ""
	FinishCredits FinishReason = "credits"
	FinishRetire  FinishReason = "retire"
)

// Session is the authoritative state of one game instance. It is not safe
// for concurrent use; the owner serializes all calls.
type Session struct {
	code string
	cfg  Config
	rng  *rand.Rand

	phase      Phase
	players    map[string]*Player
	seats      [2]string
	voters     map[string]*Voter
	voterOrder []string
	deck       []Card
	currentBet int
	winner     string
	draw       bool
	reason     FinishReason
}

// NewSession creates an empty session in the lobby.
func NewSession(code string, cfg Config, rng *rand.Rand) *Session {
	return &Session{
		code:    code,
		cfg:     cfg,
		rng:     rng,
		phase:   Lobby,
		players: make(map[string]*Player),
		voters:  make(map[string]*Voter),
	}
}

func (s *Session) Code() string { return s.code }

func (s *Session) Config() Config { return s.cfg }

func (s *Session) Phase() Phase { return s.phase }

// CurrentBet returns the shared bet for the round
func (s *Session) CurrentBet() int { return s.currentBet }

// Deck returns a copy of the undealt cards.
func (s *Session) Deck() []Card { return slices.Clone(s.deck) }

// Reason reports why a finished session ended.
func (s *Session) Reason() FinishReason { return s.reason }

// Winner returns the round or game winner. draw is true when the last
// round was tied; winner is empty until a result exists.
func (s *Session) Winner() (winner string, draw bool) {
	return s.winner, s.draw
}

// Role returns how name participates in the session.
func (s *Session) Role(name string) Role {
	if _, ok := s.players[name]; ok {
		return RolePlayer
	}
	if _, ok := s.voters[name]; ok {
		return RoleVoter
	}
	return RoleNone
}

// Player returns a copy of the named player.
func (s *Session) Player(name string) (Player, bool) {
	p, ok := s.players[name]
	if !ok {
		return Player{}, false
	}
	return p.clone(), true
}

// Players returns copies of the seated players in seat order.
func (s *Session) Players() []Player {
	out := make([]Player, 0, len(s.players))
	for _, p := range s.seated() {
		out = append(out, p.clone())
	}
	return out
}

// Voter returns a copy of the named voter.
func (s *Session) Voter(name string) (Voter, bool) {
	v, ok := s.voters[name]
	if !ok {
		return Voter{}, false
	}
	return *v, true
}

// Voters returns copies of the registered voters in join order.
func (s *Session) Voters() []Voter {
	out := make([]Voter, 0, len(s.voterOrder))
	for _, name := range s.voterOrder {
		out = append(out, *s.voters[name])
	}
	return out
}

// ConnIDs returns every connection currently attached to a member.
func (s *Session) ConnIDs() []string {
	var ids []string
	for _, p := range s.seated() {
		if p.ConnID != "" {
			ids = append(ids, p.ConnID)
		}
	}
	for _, name := range s.voterOrder {
		if id := s.voters[name].ConnID; id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Session) seated() []*Player {
	out := make([]*Player, 0, 2)
	for _, name := range s.seats {
		if name != "" {
			out = append(out, s.players[name])
		}
	}
	return out
}

// JoinResult describes the outcome of a successful join.
type JoinResult struct {
	Role       Role
	Seat       int
	Reattached bool

	// PrevConnID is the connection replaced by a reattach, if any.
	PrevConnID string
}

// Join runs the membership protocol for name arriving on connID.
func (s *Session) Join(name, connID string) (JoinResult, error) {
	if name == "" {
		return JoinResult{}, ErrInvalidIdentity
	}

	if p, ok := s.players[name]; ok {
		prev := p.ConnID
		p.ConnID = connID
		return JoinResult{Role: RolePlayer, Seat: p.Seat, Reattached: true, PrevConnID: prev}, nil
	}

	if len(s.players) < 2 {
		seat := 1
		if s.seats[0] != "" {
			seat = 2
		}
		s.players[name] = &Player{
			Name:    name,
			Seat:    seat,
			Credits: s.cfg.InitialCredits,
			ConnID:  connID,
		}
		s.seats[seat-1] = name
		// A voter taking a freed seat stops being a voter. Seats only free
		// up in the lobby, so no voting round is waiting on it.
		if _, ok := s.voters[name]; ok {
			s.removeVoter(name)
		}
		return JoinResult{Role: RolePlayer, Seat: seat}, nil
	}

	if v, ok := s.voters[name]; ok {
		prev := v.ConnID
		v.ConnID = connID
		return JoinResult{Role: RoleVoter, Reattached: true, PrevConnID: prev}, nil
	}

	if len(s.voters) < s.cfg.MaxVoters {
		s.voters[name] = &Voter{Name: name, ConnID: connID}
		s.voterOrder = append(s.voterOrder, name)
		return JoinResult{Role: RoleVoter}, nil
	}

	return JoinResult{}, ErrSessionFull
}

// ReadyResult describes a readiness toggle and any transition it caused.
type ReadyResult struct {
	Ready    bool
	Advanced bool
	From     Phase
	To       Phase

	// Dealt is set when the advance dealt fresh hands.
	Dealt bool
}

// Ready toggles the readiness of a player and advances the phase once both
// players are ready.
func (s *Session) Ready(name string) (ReadyResult, error) {
	p, ok := s.players[name]
	if !ok {
		return ReadyResult{}, ErrNotPlayer
	}
	if !s.phase.readyAdvances() {
		return ReadyResult{}, ErrWrongPhase
	}

	p.Ready = !p.Ready
	res := ReadyResult{Ready: p.Ready, From: s.phase, To: s.phase}
	if !s.playersReady() {
		return res, nil
	}

	res.Dealt = s.advance()
	res.Advanced = true
	res.To = s.phase
	for _, pl := range s.players {
		pl.Ready = false
	}
	return res, nil
}

func (s *Session) playersReady() bool {
	if len(s.players) < 2 {
		return false
	}
	for _, p := range s.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// advance applies the readiness-driven transition for the current phase.
// It reports whether hands were dealt.
func (s *Session) advance() bool {
	switch s.phase {
	case Lobby:
		s.startBetting()
	case Betting:
		s.phase = Voting
		if s.votersFinished() {
			s.deal()
			return true
		}
	case Resolution:
		switch {
		case s.draw:
			s.clearSelections()
			if s.playersHoldCards() {
				s.phase = Drawing
			} else {
				s.startBetting()
			}
		case s.hasChampion():
			s.phase = Finished
			s.reason = FinishCredits
		default:
			for _, p := range s.players {
				p.Hand = nil
			}
			s.clearSelections()
			s.deck = nil
			s.startBetting()
		}
	case Voting, Drawing, Finished:
	}
	return false
}

func (s *Session) startBetting() {
	s.phase = Betting
	s.winner = ""
	s.draw = false
	s.currentBet = clampBet(float64(s.currentBet), s.betCap())
}

func (s *Session) clearSelections() {
	for _, p := range s.players {
		p.Selection = nil
	}
	s.winner = ""
	s.draw = false
}

func (s *Session) playersHoldCards() bool {
	for _, p := range s.players {
		if len(p.Hand) > 0 {
			return true
		}
	}
	return false
}

// hasChampion reports whether the round winner has reached twice the
// initial credits.
func (s *Session) hasChampion() bool {
	p, ok := s.players[s.winner]
	return ok && p.Credits >= 2*s.cfg.InitialCredits
}

// betCap is the largest bet both seated players can cover.
func (s *Session) betCap() int {
	limit := math.MaxInt
	for _, p := range s.players {
		limit = min(limit, p.Credits)
	}
	if limit == math.MaxInt {
		return 0
	}
	return limit
}

func clampBet(requested float64, limit int) int {
	if math.IsNaN(requested) {
		requested = 1
	}
	bet := math.Min(requested, float64(limit))
	bet = math.Max(bet, 1)
	return int(math.Trunc(bet))
}

// ProposeBet sets the shared bet from a player's proposal and returns the
// clamped value.
func (s *Session) ProposeBet(name string, requested float64) (int, error) {
	p, ok := s.players[name]
	if !ok {
		return 0, ErrNotPlayer
	}
	if s.phase != Betting {
		return 0, ErrWrongPhase
	}

	limit := p.Credits
	for _, other := range s.players {
		if other != p {
			limit = min(limit, other.Credits)
		}
	}
	s.currentBet = clampBet(requested, limit)
	return s.currentBet, nil
}

// VoteResult describes an accepted vote.
type VoteResult struct {
	Card  Card
	Dealt bool
}

// Vote appends the voter's card to the deck. The last outstanding vote
// deals the hands.
func (s *Session) Vote(name string, idx int) (VoteResult, error) {
	v, ok := s.voters[name]
	if !ok {
		return VoteResult{}, ErrNotVoter
	}
	if s.phase != Voting {
		return VoteResult{}, ErrWrongPhase
	}
	if v.Voted {
		return VoteResult{}, ErrAlreadyVoted
	}
	card, ok := CardFromIndex(idx)
	if !ok {
		return VoteResult{}, ErrOutOfRange
	}

	s.deck = append(s.deck, card)
	v.Voted = true

	res := VoteResult{Card: card}
	if s.votersFinished() {
		s.deal()
		res.Dealt = true
	}
	return res, nil
}

func (s *Session) votersFinished() bool {
	for _, v := range s.voters {
		if !v.Voted {
			return false
		}
	}
	return true
}

// VoteProgress returns how many registered voters have voted this round.
func (s *Session) VoteProgress() (voted, total int) {
	for _, v := range s.voters {
		if v.Voted {
			voted++
		}
	}
	return voted, len(s.voters)
}

// deal fills and shuffles the deck, hands each player a fresh hand in seat
// order and opens the drawing phase.
func (s *Session) deal() {
	s.deck = FillDeck(s.deck, s.cfg.MinDeckSize, s.rng)
	Shuffle(s.deck, s.rng)
	for _, p := range s.seated() {
		p.Hand, s.deck = DealN(s.deck, s.cfg.HandSize)
		p.Selection = nil
	}
	for _, v := range s.voters {
		v.Voted = false
	}
	s.phase = Drawing
}

// PickResult describes an accepted card selection.
type PickResult struct {
	Card     Card
	Resolved bool
}

// Pick moves the card at idx from the player's hand into their selection.
// Once both players have selected, the round is resolved.
func (s *Session) Pick(name string, idx int) (PickResult, error) {
	p, ok := s.players[name]
	if !ok {
		return PickResult{}, ErrNotPlayer
	}
	if s.phase != Drawing {
		return PickResult{}, ErrWrongPhase
	}
	if p.HasSelected() {
		return PickResult{}, ErrAlreadyPicked
	}
	if idx < 0 || idx >= len(p.Hand) {
		return PickResult{}, ErrOutOfRange
	}

	card := p.Hand[idx]
	p.Hand = slices.Delete(p.Hand, idx, idx+1)
	p.Selection = &card

	res := PickResult{Card: card}
	if s.playersSelected() {
		if err := s.resolve(); err != nil {
			return res, err
		}
		res.Resolved = true
	}
	return res, nil
}

func (s *Session) playersSelected() bool {
	if len(s.players) < 2 {
		return false
	}
	for _, p := range s.players {
		if !p.HasSelected() {
			return false
		}
	}
	return true
}

// resolve compares the selections in seat order and transfers the bet.
func (s *Session) resolve() error {
	seated := s.seated()
	if len(seated) != 2 {
		return errMissingOpponent
	}
	a, b := seated[0], seated[1]

	switch Compare(*a.Selection, *b.Selection) {
	case 1:
		s.settle(a, b)
	case -1:
		s.settle(b, a)
	default:
		s.winner = ""
		s.draw = true
	}
	s.phase = Resolution
	return nil
}

func (s *Session) settle(winner, loser *Player) {
	winner.Credits += s.currentBet
	loser.Credits -= s.currentBet
	s.winner = winner.Name
	s.draw = false
}

// Retire ends the session at the request of a player. The opponent, if
// any, is declared winner.
func (s *Session) Retire(name string) error {
	if _, ok := s.players[name]; !ok {
		return ErrNotPlayer
	}
	if s.phase == Finished {
		return ErrWrongPhase
	}
	s.forfeit(name)
	return nil
}

func (s *Session) forfeit(name string) {
	s.winner = ""
	s.draw = false
	for _, other := range s.seated() {
		if other.Name != name {
			s.winner = other.Name
		}
	}
	s.phase = Finished
	s.reason = FinishRetire
}

// LeaveResult describes the effect of a member's connection closing.
type LeaveResult struct {
	Role    Role
	Removed bool

	// Dealt is set when the departure completed the voting round.
	Dealt bool

	// Retired is set when a departing player forfeited the session.
	Retired bool
}

// Leave detaches connID from name according to the disconnect policy.
// A connection that was already replaced by a reattach is ignored.
func (s *Session) Leave(name, connID string) (LeaveResult, error) {
	if p, ok := s.players[name]; ok {
		if p.ConnID != connID {
			return LeaveResult{}, ErrStaleConnection
		}
		res := LeaveResult{Role: RolePlayer}
		switch {
		case s.cfg.RetainPlayersOnDisconnect:
			p.ConnID = ""
		case s.phase == Lobby:
			delete(s.players, name)
			s.seats[p.Seat-1] = ""
			res.Removed = true
		case s.phase == Finished:
			p.ConnID = ""
		default:
			p.ConnID = ""
			s.forfeit(name)
			res.Retired = true
		}
		return res, nil
	}

	if v, ok := s.voters[name]; ok {
		if v.ConnID != connID {
			return LeaveResult{}, ErrStaleConnection
		}
		res := LeaveResult{Role: RoleVoter}
		if s.cfg.RetainVotersOnDisconnect {
			v.ConnID = ""
			return res, nil
		}
		s.removeVoter(name)
		res.Removed = true
		if s.phase == Voting && s.votersFinished() {
			s.deal()
			res.Dealt = true
		}
		return res, nil
	}

	return LeaveResult{}, ErrStaleConnection
}

func (s *Session) removeVoter(name string) {
	delete(s.voters, name)
	s.voterOrder = slices.DeleteFunc(s.voterOrder, func(n string) bool { return n == name })
}
