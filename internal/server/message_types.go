package server

// MessageType names a websocket message in either direction.
type MessageType string

const (
	// Client to server messages
	MessageTypeJoin       MessageType = "join"
	MessageTypeReady      MessageType = "ready"
	MessageTypeProposeBet MessageType = "propose-bet"
	MessageTypeRetire     MessageType = "retire"
	MessageTypePickCard   MessageType = "pick-card"
	MessageTypeVote       MessageType = "vote"

	// Server to client messages
	MessageTypeWelcome                MessageType = "welcome"
	MessageTypeUserJoined             MessageType = "user-joined"
	MessageTypeUserLeft               MessageType = "user-left"
	MessageTypePlayerReady            MessageType = "player-ready"
	MessageTypeBetUpdate              MessageType = "bet-update"
	MessageTypeProvideHand            MessageType = "provide-hand"
	MessageTypePlayerPickedCard       MessageType = "player-picked-card"
	MessageTypePlayersFinishedPicking MessageType = "players-finished-picking"
	MessageTypeVoterVoted             MessageType = "voter-voted"
	MessageTypeVotersFinishedVoting   MessageType = "voters-finished-voting"
	MessageTypeGameOver               MessageType = "game-over"
	MessageTypeNotJoined              MessageType = "not-joined"
	MessageTypeSessionFull            MessageType = "session-full"
	MessageTypeError                  MessageType = "error"
)

// Error codes carried by MessageTypeError.
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeUnknownType     = "unknown_message_type"
	ErrorCodeUnauthorized    = "unauthorized"
	ErrorCodeAuthUnavailable = "auth_unavailable"
	ErrorCodeInvalidCode     = "invalid_code"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
