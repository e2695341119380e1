package server

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/lox/voterps/internal/game"
	"github.com/lox/voterps/internal/snapshot"
)

const defaultInboxSize = 256

// ErrEngineStopped is returned when submitting to an engine that has exited.
var ErrEngineStopped = errors.New("server: engine stopped")

// Event is an input to the engine loop.
type Event interface {
	event()
}

// ConnectEvent registers an accepted connection.
type ConnectEvent struct {
	Conn Sender
}

// JoinEvent carries a verified identity asking to join a session.
type JoinEvent struct {
	ConnID string
	Code   string
	Name   string
}

type ReadyEvent struct {
	ConnID string
}

type ProposeBetEvent struct {
	ConnID  string
	Credits float64
}

type RetireEvent struct {
	ConnID string
}

type PickCardEvent struct {
	ConnID    string
	CardIndex int
}

type VoteEvent struct {
	ConnID    string
	CardIndex int
}

// DisconnectEvent reports that a connection closed.
type DisconnectEvent struct {
	ConnID string
}

type summariesQuery struct {
	reply chan []SessionSummary
}

func (ConnectEvent) event()    {}
func (JoinEvent) event()       {}
func (ReadyEvent) event()      {}
func (ProposeBetEvent) event() {}
func (RetireEvent) event()     {}
func (PickCardEvent) event()   {}
func (VoteEvent) event()       {}
func (DisconnectEvent) event() {}
func (summariesQuery) event()  {}

// Exporter accepts terminal snapshots without blocking.
type Exporter interface {
	Export(rec snapshot.Record) bool
}

// Engine owns every session, connection binding and room. A single
// goroutine runs Run and handles one event at a time, so none of that
// state is locked.
type Engine struct {
	inbox    chan Event
	stopped  chan struct{}
	registry *game.Registry
	dir      *Directory
	rooms    *Broadcaster
	exporter Exporter
	logger   *log.Logger
}

// NewEngine creates an engine over registry. A nil exporter discards
// snapshots.
func NewEngine(registry *game.Registry, exporter Exporter, logger *log.Logger) *Engine {
	if exporter == nil {
		exporter = discardExporter{}
	}
	logger = logger.WithPrefix("engine")
	dir := NewDirectory()
	return &Engine{
		inbox:    make(chan Event, defaultInboxSize),
		stopped:  make(chan struct{}),
		registry: registry,
		dir:      dir,
		rooms:    NewBroadcaster(dir, logger),
		exporter: exporter,
		logger:   logger,
	}
}

type discardExporter struct{}

func (discardExporter) Export(snapshot.Record) bool { return true }

// Run handles events until ctx is cancelled, then closes every connection.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)
	e.logger.Info("Engine started")

	for {
		select {
		case ev := <-e.inbox:
			e.Dispatch(ev)
		case <-ctx.Done():
			for _, conn := range e.dir.Conns() {
				_ = conn.Close()
			}
			e.logger.Info("Engine stopped", "sessions", e.registry.Len())
			return nil
		}
	}
}

// Submit queues ev for the engine goroutine.
func (e *Engine) Submit(ctx context.Context, ev Event) error {
	select {
	case <-e.stopped:
		return ErrEngineStopped
	default:
	}
	select {
	case e.inbox <- ev:
		return nil
	case <-e.stopped:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Summaries lists the live sessions, answered from the engine goroutine.
func (e *Engine) Summaries(ctx context.Context) ([]SessionSummary, error) {
	reply := make(chan []SessionSummary, 1)
	if err := e.Submit(ctx, summariesQuery{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case out := <-reply:
		return out, nil
	case <-e.stopped:
		return nil, ErrEngineStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispatch handles one event to completion. Only the engine goroutine (or
// a test driving the engine directly) may call it.
func (e *Engine) Dispatch(ev Event) {
	switch ev := ev.(type) {
	case ConnectEvent:
		e.dir.Add(ev.Conn)
		e.logger.Debug("Client connected", "conn", ev.Conn.ID(), "total", e.dir.Len())
	case JoinEvent:
		e.handleJoin(ev)
	case ReadyEvent:
		e.withMember(ev.ConnID, e.handleReady)
	case ProposeBetEvent:
		e.withMember(ev.ConnID, func(m member) { e.handleProposeBet(m, ev.Credits) })
	case RetireEvent:
		e.withMember(ev.ConnID, e.handleRetire)
	case PickCardEvent:
		e.withMember(ev.ConnID, func(m member) { e.handlePickCard(m, ev.CardIndex) })
	case VoteEvent:
		e.withMember(ev.ConnID, func(m member) { e.handleVote(m, ev.CardIndex) })
	case DisconnectEvent:
		e.handleDisconnect(ev.ConnID)
	case summariesQuery:
		ev.reply <- e.summaries()
	default:
		e.logger.Warn("Unknown event", "event", ev)
	}
}

// member is a connection resolved to its session and identity.
type member struct {
	connID  string
	name    string
	session *game.Session
}

// withMember resolves connID and runs fn, answering not-joined when the
// connection has no membership.
func (e *Engine) withMember(connID string, fn func(m member)) {
	b, ok := e.dir.Lookup(connID)
	if !ok {
		e.notJoined(connID)
		return
	}
	s, ok := e.registry.Get(b.Code)
	if !ok {
		e.dir.Unbind(connID)
		e.notJoined(connID)
		return
	}
	fn(member{connID: connID, name: b.Name, session: s})
}

func (e *Engine) summaries() []SessionSummary {
	sessions := e.registry.Sessions()
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summaryOf(s))
	}
	return out
}
