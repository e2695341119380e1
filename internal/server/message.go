package server

import (
	"encoding/json"
	"time"

	"github.com/lox/voterps/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type JoinData struct {
	Code  string `json:"code"`
	Token string `json:"token"`
}

// Numeric fields are pointers so a missing field is told apart from zero.

type ProposeBetData struct {
	Credits *float64 `json:"credits"`
}

// CardIndexData carries a hand index (pick-card) or a vote index. Any JSON
// number is accepted; indices that are not whole numbers are dropped like
// any other out-of-range index.
type CardIndexData struct {
	CardIndex *float64 `json:"cardIndex"`
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type NotJoinedData struct {
	Message string `json:"message"`
}

type SessionFullData struct {
	Code string `json:"code"`
}

// PlayerView is the public state of a seat. Selection is withheld while
// the players are still picking.
type PlayerView struct {
	Name      string     `json:"name"`
	Seat      int        `json:"seat"`
	Credits   int        `json:"credits"`
	Ready     bool       `json:"ready"`
	Connected bool       `json:"connected"`
	HandSize  int        `json:"handSize"`
	Picked    bool       `json:"picked"`
	Selection *game.Card `json:"selection,omitempty"`
}

type VoterView struct {
	Name      string `json:"name"`
	Voted     bool   `json:"voted"`
	Connected bool   `json:"connected"`
}

// SessionView is the public snapshot of a session.
type SessionView struct {
	Code       string       `json:"code"`
	Phase      game.Phase   `json:"phase"`
	CurrentBet int          `json:"currentBet"`
	Players    []PlayerView `json:"players"`
	Voters     []VoterView  `json:"voters"`
	Winner     string       `json:"winner,omitempty"`
	Draw       bool         `json:"draw"`
}

type WelcomeData struct {
	Name    string      `json:"name"`
	Role    game.Role   `json:"role"`
	Seat    int         `json:"seat,omitempty"`
	Hand    []game.Card `json:"hand,omitempty"`
	Session SessionView `json:"session"`
}

type UserJoinedData struct {
	Name       string    `json:"name"`
	Role       game.Role `json:"role"`
	Seat       int       `json:"seat,omitempty"`
	Reattached bool      `json:"reattached"`
}

type UserLeftData struct {
	Name    string    `json:"name"`
	Role    game.Role `json:"role"`
	Removed bool      `json:"removed"`
}

type PlayerReadyData struct {
	Name       string     `json:"name"`
	Seat       int        `json:"seat"`
	Ready      bool       `json:"ready"`
	Phase      game.Phase `json:"phase"`
	CurrentBet int        `json:"currentBet"`
}

type BetUpdateData struct {
	Name       string `json:"name"`
	CurrentBet int    `json:"currentBet"`
}

type ProvideHandData struct {
	Hand      []game.Card `json:"hand"`
	Selection *game.Card  `json:"selection,omitempty"`
}

type PlayerPickedCardData struct {
	Name string `json:"name"`
	Seat int    `json:"seat"`
}

type PlayersFinishedPickingData struct {
	Phase      game.Phase   `json:"phase"`
	CurrentBet int          `json:"currentBet"`
	Players    []PlayerView `json:"players"`
	Winner     string       `json:"winner,omitempty"`
	Draw       bool         `json:"draw"`
}

type VoterVotedData struct {
	Name   string      `json:"name"`
	Voted  int         `json:"voted"`
	Total  int         `json:"total"`
	Voters []VoterView `json:"voters"`
}

type VotersFinishedVotingData struct {
	Phase    game.Phase `json:"phase"`
	DeckSize int        `json:"deckSize"`
}

type GameOverData struct {
	Winner  string       `json:"winner,omitempty"`
	Reason  string       `json:"reason"`
	Players []PlayerView `json:"players"`
}

// SessionSummary is the listing entry served over HTTP.
type SessionSummary struct {
	Code    string     `json:"code"`
	Phase   game.Phase `json:"phase"`
	Players []string   `json:"players"`
	Voters  int        `json:"voters"`
}
