package server

import (
	"context"
	"testing"
	"time"

	"github.com/lox/voterps/internal/game"
	"github.com/lox/voterps/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinSeatsPlayersThenVoters(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())

	alice := h.join("c1", "ROOM", "alice")
	welcome := last[WelcomeData](t, alice, MessageTypeWelcome)
	assert.Equal(t, game.RolePlayer, welcome.Role)
	assert.Equal(t, 1, welcome.Seat)
	assert.Equal(t, game.Lobby, welcome.Session.Phase)

	bob := h.join("c2", "ROOM", "bob")
	assert.Equal(t, 2, last[WelcomeData](t, bob, MessageTypeWelcome).Seat)

	joined := last[UserJoinedData](t, alice, MessageTypeUserJoined)
	assert.Equal(t, "bob", joined.Name)
	assert.Equal(t, game.RolePlayer, joined.Role)
	assert.False(t, joined.Reattached)
	assert.NotContains(t, bob.types(), MessageTypeUserJoined, "joiner is not told about itself")

	carol := h.join("c3", "ROOM", "carol")
	w := last[WelcomeData](t, carol, MessageTypeWelcome)
	assert.Equal(t, game.RoleVoter, w.Role)
	require.Len(t, w.Session.Players, 2)
	assert.Equal(t, "alice", w.Session.Players[0].Name)
	assert.Equal(t, 120, w.Session.Players[0].Credits)
	require.Len(t, w.Session.Voters, 1)
	assert.Equal(t, "carol", w.Session.Voters[0].Name)
}

func TestActionBeforeJoinIsNotJoined(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	c := h.connect("c1")

	h.engine.Dispatch(ReadyEvent{ConnID: "c1"})
	h.engine.Dispatch(VoteEvent{ConnID: "c1", CardIndex: 0})

	assert.Equal(t, []MessageType{MessageTypeNotJoined, MessageTypeNotJoined}, c.types())
	assert.Equal(t, 0, h.engine.registry.Len(), "actions never create sessions")
}

func TestSessionFull(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.MaxVoters = 1
	h := newHarness(t, cfg)

	alice := h.join("c1", "ROOM", "alice")
	h.join("c2", "ROOM", "bob")
	h.join("c3", "ROOM", "carol")
	alice.reset()

	dave := h.join("c4", "ROOM", "dave")
	assert.Equal(t, []MessageType{MessageTypeSessionFull}, dave.types())
	assert.Equal(t, "ROOM", last[SessionFullData](t, dave, MessageTypeSessionFull).Code)
	assert.Empty(t, alice.types(), "rejected join is not broadcast")

	_, isVoter := h.session("ROOM").Voter("dave")
	assert.False(t, isVoter)

	h.engine.Dispatch(ReadyEvent{ConnID: "c4"})
	assert.Equal(t, MessageTypeNotJoined, dave.msgs[len(dave.msgs)-1].Type)
}

func TestRoundWithoutVotersDealsImmediately(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	alice := h.join("c1", "ROOM", "alice")
	bob := h.join("c2", "ROOM", "bob")

	h.ready("c1", "c2")
	assert.Equal(t, game.Betting, last[PlayerReadyData](t, alice, MessageTypePlayerReady).Phase)
	assert.Equal(t, 1, h.session("ROOM").CurrentBet())

	h.engine.Dispatch(ProposeBetEvent{ConnID: "c2", Credits: 50.9})
	assert.Equal(t, BetUpdateData{Name: "bob", CurrentBet: 50}, last[BetUpdateData](t, alice, MessageTypeBetUpdate))

	h.resetAll()
	h.ready("c1", "c2")

	assert.Equal(t, game.Drawing, h.session("ROOM").Phase())
	assert.Len(t, last[ProvideHandData](t, alice, MessageTypeProvideHand).Hand, 3)
	assert.Len(t, last[ProvideHandData](t, bob, MessageTypeProvideHand).Hand, 3)
	assert.Equal(t, game.Drawing, last[VotersFinishedVotingData](t, alice, MessageTypeVotersFinishedVoting).Phase)

	h.resetAll()
	h.engine.Dispatch(PickCardEvent{ConnID: "c1", CardIndex: 0})

	picked := last[PlayerPickedCardData](t, bob, MessageTypePlayerPickedCard)
	assert.Equal(t, PlayerPickedCardData{Name: "alice", Seat: 1}, picked)
	assert.Len(t, last[ProvideHandData](t, alice, MessageTypeProvideHand).Hand, 2)
	assert.NotContains(t, bob.types(), MessageTypeProvideHand)

	h.engine.Dispatch(PickCardEvent{ConnID: "c2", CardIndex: 2})

	result := last[PlayersFinishedPickingData](t, alice, MessageTypePlayersFinishedPicking)
	assert.Equal(t, game.Resolution, result.Phase)
	require.Len(t, result.Players, 2)
	assert.Equal(t, 240, result.Players[0].Credits+result.Players[1].Credits)
	for _, p := range result.Players {
		assert.NotNil(t, p.Selection, "selections are revealed after resolution")
	}
	if !result.Draw {
		assert.Contains(t, []string{"alice", "bob"}, result.Winner)
	}
	assert.Len(t, last[ProvideHandData](t, bob, MessageTypeProvideHand).Hand, 2)
}

func TestSelectionsHiddenWhileDrawing(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	h.join("c1", "ROOM", "alice")
	h.join("c2", "ROOM", "bob")
	h.ready("c1", "c2")
	h.ready("c1", "c2")
	h.engine.Dispatch(PickCardEvent{ConnID: "c1", CardIndex: 1})

	carol := h.join("c3", "ROOM", "carol")
	w := last[WelcomeData](t, carol, MessageTypeWelcome)
	require.Len(t, w.Session.Players, 2)
	assert.True(t, w.Session.Players[0].Picked)
	assert.Nil(t, w.Session.Players[0].Selection)
}

func TestLastVoteDeals(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	alice := h.join("c1", "ROOM", "alice")
	h.join("c2", "ROOM", "bob")
	carol := h.join("c3", "ROOM", "carol")
	h.join("c4", "ROOM", "dave")

	h.ready("c1", "c2")
	h.ready("c1", "c2")
	assert.Equal(t, game.Voting, h.session("ROOM").Phase())

	h.resetAll()
	h.engine.Dispatch(VoteEvent{ConnID: "c3", CardIndex: 2})
	progress := last[VoterVotedData](t, alice, MessageTypeVoterVoted)
	assert.Equal(t, 1, progress.Voted)
	assert.Equal(t, 2, progress.Total)

	// A repeat vote is dropped without a broadcast.
	carol.reset()
	h.engine.Dispatch(VoteEvent{ConnID: "c3", CardIndex: 0})
	assert.Empty(t, carol.types())

	// Out of range is dropped too.
	h.engine.Dispatch(VoteEvent{ConnID: "c4", CardIndex: 3})
	assert.Equal(t, game.Voting, h.session("ROOM").Phase())

	h.engine.Dispatch(VoteEvent{ConnID: "c4", CardIndex: 1})
	assert.Equal(t, game.Drawing, h.session("ROOM").Phase())
	assert.Len(t, last[ProvideHandData](t, alice, MessageTypeProvideHand).Hand, 3)
	assert.Contains(t, carol.types(), MessageTypeVotersFinishedVoting)
	assert.NotContains(t, carol.types(), MessageTypeProvideHand, "voters never see hands")
	assert.Len(t, h.session("ROOM").Deck(), 30-6)
}

func TestDepartingLastVoterDeals(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	alice := h.join("c1", "ROOM", "alice")
	h.join("c2", "ROOM", "bob")
	h.join("c3", "ROOM", "carol")
	h.join("c4", "ROOM", "dave")

	h.ready("c1", "c2")
	h.ready("c1", "c2")
	h.engine.Dispatch(VoteEvent{ConnID: "c3", CardIndex: 0})

	h.resetAll()
	h.engine.Dispatch(DisconnectEvent{ConnID: "c4"})

	left := last[UserLeftData](t, alice, MessageTypeUserLeft)
	assert.Equal(t, UserLeftData{Name: "dave", Role: game.RoleVoter, Removed: true}, left)
	assert.Equal(t, game.Drawing, h.session("ROOM").Phase())
	assert.Contains(t, alice.types(), MessageTypeProvideHand)
}

func TestReattachKeepsSeatAndCredits(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	h.join("c1", "ROOM", "alice")
	bob := h.join("c2", "ROOM", "bob")

	h.engine.Dispatch(DisconnectEvent{ConnID: "c1"})
	left := last[UserLeftData](t, bob, MessageTypeUserLeft)
	assert.Equal(t, game.RolePlayer, left.Role)
	assert.False(t, left.Removed)

	w := last[WelcomeData](t, bob, MessageTypeWelcome)
	assert.True(t, w.Session.Players[0].Connected)

	alice := h.join("c9", "ROOM", "alice")
	welcome := last[WelcomeData](t, alice, MessageTypeWelcome)
	assert.Equal(t, 1, welcome.Seat)
	assert.Equal(t, 120, welcome.Session.Players[0].Credits)
	assert.True(t, last[UserJoinedData](t, bob, MessageTypeUserJoined).Reattached)

	p, _ := h.session("ROOM").Player("alice")
	assert.Equal(t, "c9", p.ConnID)
}

func TestStaleConnectionCloseIsIgnored(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	old := h.join("c1", "ROOM", "alice")
	bob := h.join("c2", "ROOM", "bob")

	h.join("c3", "ROOM", "alice")
	bob.reset()
	old.reset()

	// The displaced connection is no longer routed.
	h.engine.Dispatch(ReadyEvent{ConnID: "c1"})
	assert.Equal(t, []MessageType{MessageTypeNotJoined}, old.types())

	h.engine.Dispatch(DisconnectEvent{ConnID: "c1"})
	assert.Empty(t, bob.types())

	p, _ := h.session("ROOM").Player("alice")
	assert.Equal(t, "c3", p.ConnID)
}

func TestIllegalPhaseActionsAreSilent(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	alice := h.join("c1", "ROOM", "alice")
	bob := h.join("c2", "ROOM", "bob")
	carol := h.join("c3", "ROOM", "carol")
	h.resetAll()

	h.engine.Dispatch(ProposeBetEvent{ConnID: "c1", Credits: 10})
	h.engine.Dispatch(PickCardEvent{ConnID: "c1", CardIndex: 0})
	h.engine.Dispatch(VoteEvent{ConnID: "c3", CardIndex: 0})
	h.engine.Dispatch(ReadyEvent{ConnID: "c3"})
	h.engine.Dispatch(VoteEvent{ConnID: "c1", CardIndex: 0})

	assert.Empty(t, alice.types())
	assert.Empty(t, bob.types())
	assert.Empty(t, carol.types())
	assert.Equal(t, game.Lobby, h.session("ROOM").Phase())
	assert.Equal(t, 0, h.session("ROOM").CurrentBet())
}

func TestRetireFinishesAndExports(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	h.join("c1", "ROOM", "alice")
	bob := h.join("c2", "ROOM", "bob")
	carol := h.join("c3", "ROOM", "carol")

	h.engine.Dispatch(RetireEvent{ConnID: "c1"})

	over := last[GameOverData](t, carol, MessageTypeGameOver)
	assert.Equal(t, "bob", over.Winner)
	assert.Equal(t, "retire", over.Reason)

	require.Len(t, h.exporter.records, 1)
	rec := h.exporter.records[0]
	assert.Equal(t, "ROOM", rec.Code)
	assert.Equal(t, []string{"alice", "bob"}, rec.Players)
	assert.Equal(t, []string{"carol"}, rec.Voters)
	assert.Equal(t, "bob", rec.Winner)
	assert.Equal(t, snapshot.StatusFinished, rec.Status)
	assert.Equal(t, "retire", rec.Reason)
	assert.Equal(t, []int{120, 120}, rec.Credits)

	assert.Equal(t, 0, h.engine.registry.Len())

	bob.reset()
	h.engine.Dispatch(ReadyEvent{ConnID: "c2"})
	assert.Equal(t, []MessageType{MessageTypeNotJoined}, bob.types())

	// The same code starts a fresh session.
	h.join("c2", "ROOM", "bob")
	assert.Equal(t, game.Lobby, h.session("ROOM").Phase())
	assert.Equal(t, 1, last[WelcomeData](t, bob, MessageTypeWelcome).Seat)
}

func TestChampionFinishesSession(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.InitialCredits = 2
	cfg.HandSize = 1
	cfg.MinDeckSize = 2
	h := newHarness(t, cfg)
	alice := h.join("c1", "ROOM", "alice")
	h.join("c2", "ROOM", "bob")

	h.ready("c1", "c2") // lobby -> betting
	for round := 0; round < 100; round++ {
		s := h.session("ROOM")
		require.Equal(t, game.Betting, s.Phase())
		h.engine.Dispatch(ProposeBetEvent{ConnID: "c1", Credits: 2})
		h.ready("c1", "c2") // betting -> drawing
		h.engine.Dispatch(PickCardEvent{ConnID: "c1", CardIndex: 0})
		h.engine.Dispatch(PickCardEvent{ConnID: "c2", CardIndex: 0})
		require.Equal(t, game.Resolution, s.Phase())

		_, draw := s.Winner()
		h.ready("c1", "c2")
		if !draw {
			break
		}
	}

	require.Len(t, h.exporter.records, 1)
	rec := h.exporter.records[0]
	assert.Equal(t, "credits", rec.Reason)
	assert.ElementsMatch(t, []int{4, 0}, rec.Credits)

	over := last[GameOverData](t, alice, MessageTypeGameOver)
	assert.Equal(t, rec.Winner, over.Winner)
	assert.Equal(t, 0, h.engine.registry.Len())
}

func TestNonRetainedPlayerLeavingLobbyFreesSeat(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.RetainPlayersOnDisconnect = false
	h := newHarness(t, cfg)
	h.join("c1", "ROOM", "alice")

	h.engine.Dispatch(DisconnectEvent{ConnID: "c1"})
	assert.Equal(t, 0, h.engine.registry.Len(), "empty lobby is discarded")

	h.join("c2", "ROOM", "bob")
	h.join("c3", "ROOM", "carol")
	h.ready("c2", "c3")
	h.engine.Dispatch(DisconnectEvent{ConnID: "c2"})

	require.Len(t, h.exporter.records, 1)
	assert.Equal(t, "carol", h.exporter.records[0].Winner)
	assert.Equal(t, "retire", h.exporter.records[0].Reason)
}

func TestRejoinOtherSessionReleasesPrevious(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	h.join("c1", "ONE", "alice")
	h.join("c2", "ONE", "bob")
	h.join("c3", "ONE", "carol")

	h.join("c3", "TWO", "carol")

	_, still := h.session("ONE").Voter("carol")
	assert.False(t, still)
	assert.Equal(t, game.RolePlayer, h.session("TWO").Role("carol"))
}

func TestSessionFullKeepsPreviousMembership(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.MaxVoters = 1
	h := newHarness(t, cfg)

	alice := h.join("c1", "ONE", "alice")
	h.join("c2", "ONE", "bob")
	vic := h.join("c3", "ONE", "vic")
	h.join("c4", "FULL", "paul")
	h.join("c5", "FULL", "pat")
	h.join("c6", "FULL", "wes")

	h.ready("c1", "c2")
	h.ready("c1", "c2")
	require.Equal(t, game.Voting, h.session("ONE").Phase())

	h.resetAll()
	h.engine.Dispatch(JoinEvent{ConnID: "c3", Code: "FULL", Name: "vic"})

	assert.Equal(t, []MessageType{MessageTypeSessionFull}, vic.types())
	assert.Empty(t, alice.types(), "the previous session is untouched")
	assert.Equal(t, game.Voting, h.session("ONE").Phase())
	_, stillVoter := h.session("ONE").Voter("vic")
	assert.True(t, stillVoter)
	_, inFull := h.session("FULL").Voter("vic")
	assert.False(t, inFull)

	// The connection still speaks for vic in ONE.
	h.engine.Dispatch(VoteEvent{ConnID: "c3", CardIndex: 1})
	assert.Equal(t, game.Drawing, h.session("ONE").Phase())
	assert.Contains(t, alice.types(), MessageTypeVotersFinishedVoting)
}

func TestRejoinUnderNewNameInSameSession(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	alice := h.join("c1", "ROOM", "alice")
	h.join("c2", "ROOM", "bob")
	carol := h.join("c3", "ROOM", "carol")

	h.resetAll()
	h.join("c3", "ROOM", "dave")

	s := h.session("ROOM")
	_, hasCarol := s.Voter("carol")
	assert.False(t, hasCarol)
	assert.Equal(t, game.RoleVoter, s.Role("dave"))
	assert.Equal(t, "dave", last[WelcomeData](t, carol, MessageTypeWelcome).Name)
	assert.Equal(t, "carol", last[UserLeftData](t, alice, MessageTypeUserLeft).Name)

	// c3 is still in the room under its new name.
	alice.reset()
	carol.reset()
	h.ready("c1")
	assert.Contains(t, carol.types(), MessageTypePlayerReady)
}

func TestSummaries(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	h.join("c1", "B", "alice")
	h.join("c2", "A", "bob")
	h.join("c3", "A", "carol")
	h.join("c4", "A", "dave")

	reply := make(chan []SessionSummary, 1)
	h.engine.Dispatch(summariesQuery{reply: reply})
	got := <-reply

	require.Len(t, got, 2)
	assert.Equal(t, SessionSummary{Code: "A", Phase: game.Lobby, Players: []string{"bob", "carol"}, Voters: 1}, got[0])
	assert.Equal(t, "B", got[1].Code)
}

func TestEngineRunAndSubmit(t *testing.T) {
	h := newHarness(t, game.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	c := &fakeConn{id: "c1"}
	require.NoError(t, h.engine.Submit(ctx, ConnectEvent{Conn: c}))
	require.NoError(t, h.engine.Submit(ctx, JoinEvent{ConnID: "c1", Code: "ROOM", Name: "alice"}))

	sums, err := h.engine.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, []string{"alice"}, sums[0].Players)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}

	assert.True(t, c.closed)
	assert.ErrorIs(t, h.engine.Submit(context.Background(), ReadyEvent{ConnID: "c1"}), ErrEngineStopped)
}
