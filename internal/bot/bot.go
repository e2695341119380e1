// Package bot plays voterps over the websocket protocol. Bots take
// whichever role the server assigns and act only on broadcast state.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/lox/voterps/internal/game"
	"github.com/lox/voterps/internal/server"
)

var (
	ErrNotJoined   = errors.New("bot: not joined")
	ErrSessionFull = errors.New("bot: session full")
)

// Result is how a bot's session ended.
type Result struct {
	Winner string
	Reason string
}

// Bot joins one session and plays it until game over.
type Bot struct {
	client   *Client
	strategy Strategy
	logger   *log.Logger

	name     string
	role     game.Role
	phase    game.Phase
	ready    bool
	proposed bool
	picked   bool
	voted    bool
	bet      int
	hand     []game.Card
	credits  map[string]int
}

// New creates a bot speaking over client.
func New(client *Client, strategy Strategy, logger *log.Logger) *Bot {
	return &Bot{
		client:   client,
		strategy: strategy,
		logger:   logger.WithPrefix("bot"),
		credits:  make(map[string]int),
	}
}

// Play joins code with token and handles messages until the session
// finishes, the connection drops or ctx is cancelled.
func (b *Bot) Play(ctx context.Context, code, token string) (Result, error) {
	stop := context.AfterFunc(ctx, func() { _ = b.client.Close() })
	defer stop()

	if err := b.client.Send(server.MessageTypeJoin, server.JoinData{Code: code, Token: token}); err != nil {
		return Result{}, err
	}

	for {
		msg, err := b.client.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			return Result{}, err
		}

		res, done, err := b.handle(msg)
		if err != nil || done {
			return res, err
		}
		if err := b.act(); err != nil {
			return Result{}, err
		}
	}
}

func (b *Bot) handle(msg *server.Message) (Result, bool, error) {
	switch msg.Type {
	case server.MessageTypeWelcome:
		w, err := decode[server.WelcomeData](msg)
		if err != nil {
			return Result{}, false, err
		}
		b.name = w.Name
		b.role = w.Role
		b.hand = w.Hand
		b.bet = w.Session.CurrentBet
		b.setPhase(w.Session.Phase)
		b.trackCredits(w.Session.Players)
		for _, p := range w.Session.Players {
			if p.Name == b.name {
				b.ready = p.Ready
				b.picked = p.Picked
			}
		}
		for _, v := range w.Session.Voters {
			if v.Name == b.name {
				b.voted = v.Voted
			}
		}
		b.logger.Info("Joined session", "code", w.Session.Code, "name", b.name, "role", b.role, "seat", w.Seat)

	case server.MessageTypePlayerReady:
		d, err := decode[server.PlayerReadyData](msg)
		if err != nil {
			return Result{}, false, err
		}
		b.bet = d.CurrentBet
		b.setPhase(d.Phase)
		if d.Name == b.name {
			b.ready = d.Ready
		}

	case server.MessageTypeBetUpdate:
		d, err := decode[server.BetUpdateData](msg)
		if err != nil {
			return Result{}, false, err
		}
		b.bet = d.CurrentBet

	case server.MessageTypeProvideHand:
		d, err := decode[server.ProvideHandData](msg)
		if err != nil {
			return Result{}, false, err
		}
		b.hand = d.Hand
		b.picked = d.Selection != nil

	case server.MessageTypeVotersFinishedVoting:
		d, err := decode[server.VotersFinishedVotingData](msg)
		if err != nil {
			return Result{}, false, err
		}
		b.setPhase(d.Phase)

	case server.MessageTypePlayersFinishedPicking:
		d, err := decode[server.PlayersFinishedPickingData](msg)
		if err != nil {
			return Result{}, false, err
		}
		b.bet = d.CurrentBet
		b.setPhase(d.Phase)
		b.trackCredits(d.Players)
		b.logger.Debug("Round resolved", "name", b.name, "winner", d.Winner, "draw", d.Draw)

	case server.MessageTypeGameOver:
		d, err := decode[server.GameOverData](msg)
		if err != nil {
			return Result{}, false, err
		}
		b.logger.Info("Game over", "name", b.name, "winner", d.Winner, "reason", d.Reason)
		return Result{Winner: d.Winner, Reason: d.Reason}, true, nil

	case server.MessageTypeNotJoined:
		return Result{}, false, ErrNotJoined

	case server.MessageTypeSessionFull:
		return Result{}, false, ErrSessionFull

	case server.MessageTypeError:
		d, err := decode[server.ErrorData](msg)
		if err != nil {
			return Result{}, false, err
		}
		return Result{}, false, fmt.Errorf("bot: server error %s: %s", d.Code, d.Message)
	}
	return Result{}, false, nil
}

// setPhase records a phase change. The server clears readiness on every
// transition.
func (b *Bot) setPhase(p game.Phase) {
	if p == b.phase {
		return
	}
	b.phase = p
	b.ready = false
	switch p {
	case game.Betting:
		b.proposed = false
	case game.Voting:
		b.voted = false
	}
}

func (b *Bot) trackCredits(players []server.PlayerView) {
	for _, p := range players {
		b.credits[p.Name] = p.Credits
	}
}

func (b *Bot) view() View {
	v := View{CurrentBet: b.bet, Hand: b.hand}
	for name, credits := range b.credits {
		if name == b.name {
			v.Credits = credits
		} else {
			v.OpponentCredits = credits
		}
	}
	return v
}

// act sends whatever the current state calls for.
func (b *Bot) act() error {
	switch b.role {
	case game.RolePlayer:
		return b.actPlayer()
	case game.RoleVoter:
		if b.phase == game.Voting && !b.voted {
			b.voted = true
			return b.client.Send(server.MessageTypeVote, server.CardIndexData{CardIndex: ptr(float64(b.strategy.Vote()))})
		}
	}
	return nil
}

func (b *Bot) actPlayer() error {
	switch b.phase {
	case game.Betting:
		if !b.proposed {
			b.proposed = true
			bet := b.strategy.Bet(b.view())
			if err := b.client.Send(server.MessageTypeProposeBet, server.ProposeBetData{Credits: &bet}); err != nil {
				return err
			}
		}
		return b.sendReady()
	case game.Lobby, game.Resolution:
		return b.sendReady()
	case game.Drawing:
		if !b.picked && len(b.hand) > 0 {
			b.picked = true
			return b.client.Send(server.MessageTypePickCard, server.CardIndexData{CardIndex: ptr(float64(b.strategy.Pick(b.view())))})
		}
	}
	return nil
}

func (b *Bot) sendReady() error {
	if b.ready {
		return nil
	}
	b.ready = true
	return b.client.Send(server.MessageTypeReady, nil)
}

func ptr[T any](v T) *T { return &v }
