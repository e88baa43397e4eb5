package schemas

import "encoding/json"

// Envelope is the wire frame for every websocket message in both
// directions: a named event plus a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> server events.
const (
	EventCreateGame    = "createGame"
	EventJoinGame      = "joinGame"
	EventBeginGame     = "beginGame"
	EventLeaveGame     = "leaveGame"
	EventTerminateGame = "terminateGame"

	EventChatMessage      = "chatMessage"
	EventQuestionResponse = "questionResponse"
	EventVote             = "vote"
	EventBetResponse      = "betResponse"
	EventReady            = "ready"
	EventMove             = "move"
	EventAim              = "aim"
	EventShoot            = "shoot"
)

// Server -> client events.
const (
	EventConnectionResult = "connectionResult"
	EventGameInfo         = "gameInfo"
	EventGamePlayers      = "gamePlayers"
	EventGameBegin        = "gameBegin"
	EventGameEnd          = "gameEnd"
	EventGameError        = "gameError"

	EventChatNewMessage = "chatNewMessage"

	EventTriviaRound       = "triviaRound"
	EventTriviaPrompts     = "triviaPrompts"
	EventTriviaVoteStart   = "triviaVoteStart"
	EventTriviaVoteResult  = "triviaVoteResult"
	EventTriviaUncontested = "triviaUncontested"
	EventTriviaLeaderboard = "triviaLeaderboard"

	EventDuelReadyState = "duelReadyState"
	EventDuelMap        = "duelMap"
	EventDuelState      = "duelState"
	EventDuelHit        = "duelHit"
	EventDuelWinner     = "duelWinner"

	EventHoldemHand       = "holdemHand"
	EventHoldemHoleCards  = "holdemHoleCards"
	EventHoldemCommunity  = "holdemCommunity"
	EventHoldemBetRequest = "holdemBetRequest"
	EventHoldemBetPlaced  = "holdemBetPlaced"
	EventHoldemShowdown   = "holdemShowdown"
)

func Encode(event string, data any) ([]byte, error) {
	var raw json.RawMessage

	if data != nil {
		body, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = body
	}

	return json.Marshal(Envelope{Event: event, Data: raw})
}

type CreateGameRequest struct {
	GameTypeId string `json:"gameTypeId"`
}

type JoinGameRequest struct {
	JoinCode string `json:"joinCode"`
}

type ConnectionResult struct {
	Success bool         `json:"success"`
	User    *UserProfile `json:"user,omitempty"`
	Message string       `json:"message,omitempty"`
}

// UserProfile is the sanitized view of an account; it never carries
// credentials.
type UserProfile struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

type GameInfo struct {
	GameTypeId string `json:"gameTypeId"`
	JoinCode   string `json:"joinCode"`
	IsHost     bool   `json:"isHost"`
	HasBegun   bool   `json:"hasBegun"`
}

type GamePlayer struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

type GamePlayers struct {
	Players []GamePlayer `json:"players"`
}

type GameEnd struct {
	Message string `json:"message"`
}

type GameError struct {
	Module  string `json:"module,omitempty"`
	Message string `json:"message"`
}

// RoomSummary is the cross-room query result surfaced to the social
// service: enough to render "friends currently playing" without
// exposing room state.
type RoomSummary struct {
	JoinCode  string `json:"joinCode"`
	GameName  string `json:"gameName"`
	HostName  string `json:"hostName"`
	Occupancy int    `json:"occupancy"`
	Capacity  int    `json:"capacity"`
}

type RoomsQueryRequest struct {
	UserIds []string `json:"userIds"`
}

type RoomsQueryResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
