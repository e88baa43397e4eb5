package game

import (
	"encoding/json"

	"github.com/velvetgames/partyhub/schemas"
)

// Sender is the capability to reach one participant's live connection:
// emit named events to it and attach inbound event handlers. The
// concrete implementation lives in the session registry; rooms only
// ever resolve it by identity at call time, so a reconnect that swaps
// the underlying connection never invalidates a room's reference.
type Sender interface {
	Emit(event string, data any)
	On(event string, handler func(data json.RawMessage))
}

// Lookup resolves an identity id to its currently attached connection,
// or nil while the player is disconnected.
type Lookup func(userId string) Sender

// EndFunc is the room's end-of-life callback into the game manager.
type EndFunc func(reason Reason, message string)

// Reason distinguishes why a room ended; clients render these
// differently.
type Reason string

const (
	ReasonEnded      Reason = "ended"
	ReasonTerminated Reason = "terminated"
	ReasonTimeout    Reason = "timeout"
	ReasonCrashed    Reason = "crashed"
)

type Status int

const (
	NotBegun Status = iota
	Begun
	Ended
)

// Config is the static shape of a game type.
type Config struct {
	TypeId          string
	Name            string
	MinPlayers      int
	MaxPlayers      int
	JoinAfterBegin  bool
	LeaveAfterBegin bool
}

// Instance is the closed capability surface the game manager holds for
// a running room, independent of the game-specific player-state type.
type Instance interface {
	Code() string
	TypeId() string
	Name() string
	CreatorId() string
	Status() Status
	HasBegun() bool
	PlayerCount() int
	MinPlayers() int
	Capacity() int
	JoinAfterBegin() bool
	LeaveAfterBegin() bool
	HasPlayer(userId string) bool
	PlayerList() []schemas.GamePlayer
	HostName() string
	AddPlayer(userId, username string) bool
	RemovePlayer(userId string)
	Begin()
	Broadcast(event string, data any)
	SendTo(userId, event string, data any)
	RegisterHandlers(userId string)
	RegisterHandlersForAll()
	End(reason Reason, message string)
}
