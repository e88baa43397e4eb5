package services

import (
	"errors"
	"sync"
	"time"

	"github.com/velvetgames/partyhub/entities"
	"github.com/velvetgames/partyhub/game"
	"github.com/velvetgames/partyhub/games/chatroom"
	"github.com/velvetgames/partyhub/games/duel"
	"github.com/velvetgames/partyhub/games/holdem"
	"github.com/velvetgames/partyhub/games/trivia"
	"github.com/velvetgames/partyhub/pkg/logx"
	"github.com/velvetgames/partyhub/schemas"
	"go.uber.org/zap"
)

var (
	AlreadyInRoom   = errors.New("you are already in a room")
	RoomNotFound    = errors.New("room not found")
	RoomFull        = errors.New("room is full")
	RoomBegun       = errors.New("the game has already begun")
	NotInRoom       = errors.New("you are not in a room")
	NotHost         = errors.New("only the host can do that")
	BelowMinimum    = errors.New("not enough players to begin")
	LeaveForbidden  = errors.New("you cannot leave a game in progress")
	UnknownGameType = errors.New("unknown game type")
)

// GameFactory instantiates one concrete game type.
type GameFactory func(code, creatorId string, lookup game.Lookup, endFunc game.EndFunc) game.Instance

// Publisher pushes room lifecycle events to external services.
type Publisher interface {
	Publish(message string) error
}

// GameManager orchestrates every live room: creation, join-code
// issuance, eligibility checks, begin authorization, join-timeout
// expiry, termination and cross-room queries.
type GameManager struct {
	mutex       sync.Mutex
	rooms       map[string]game.Instance
	memberships map[string]string // identity id -> join code
	joinTimers  map[string]*time.Timer

	registry    *entities.Registry
	publisher   Publisher
	factories   map[string]GameFactory
	joinTimeout time.Duration
}

func NewGameManager(registry *entities.Registry, publisher Publisher, joinTimeout time.Duration) *GameManager {
	manager := &GameManager{
		rooms:       map[string]game.Instance{},
		memberships: map[string]string{},
		joinTimers:  map[string]*time.Timer{},
		registry:    registry,
		publisher:   publisher,
		joinTimeout: joinTimeout,
	}

	manager.factories = map[string]GameFactory{
		chatroom.TypeId: chatroom.New,
		trivia.TypeId:   trivia.New,
		duel.TypeId:     duel.New,
		holdem.TypeId:   holdem.New,
	}

	return manager
}

// lookup is the connection resolver handed to every room. Rooms call
// it at send time, so reconnects transparently swap the target.
func (manager *GameManager) lookup(userId string) game.Sender {
	participant := manager.registry.Find(userId)
	if participant == nil {
		return nil
	}
	return participant
}

// CreateRoom validates the request, issues a unique join code, builds
// the game instance and auto-joins the creator as host. A join timeout
// is scheduled: a room that has not begun by then is destroyed.
func (manager *GameManager) CreateRoom(gameTypeId string, participant *entities.Participant) (game.Instance, error) {
	factory, known := manager.factories[gameTypeId]
	if !known {
		return nil, UnknownGameType
	}

	manager.mutex.Lock()

	if _, occupied := manager.memberships[participant.Id]; occupied {
		manager.mutex.Unlock()
		return nil, AlreadyInRoom
	}

	code := manager.generateCode()

	endFunc := func(reason game.Reason, message string) {
		manager.finishRoom(code, reason, message)
	}

	room := factory(code, participant.Id, manager.lookup, endFunc)

	manager.rooms[code] = room
	manager.memberships[participant.Id] = code
	manager.joinTimers[code] = time.AfterFunc(manager.joinTimeout, func() {
		manager.expireRoom(code)
	})

	manager.mutex.Unlock()

	room.AddPlayer(participant.Id, participant.Username)

	manager.sendRoomInfo(room, participant.Id)
	room.Broadcast(schemas.EventGamePlayers, schemas.GamePlayers{Players: room.PlayerList()})

	manager.publishLifecycle(schemas.RoomCreatedEvent(code, gameTypeId, participant.Id))

	return room, nil
}

// JoinRoom adds the participant to the room behind the join code. When
// the room has already begun and permits late joins, the newcomer's
// handlers attach immediately and they are told the current state.
func (manager *GameManager) JoinRoom(joinCode string, participant *entities.Participant) (game.Instance, error) {
	manager.mutex.Lock()

	if _, occupied := manager.memberships[participant.Id]; occupied {
		manager.mutex.Unlock()
		return nil, AlreadyInRoom
	}

	room, exists := manager.rooms[joinCode]
	if !exists {
		manager.mutex.Unlock()
		return nil, RoomNotFound
	}

	begun := room.HasBegun()

	if begun && !room.JoinAfterBegin() {
		manager.mutex.Unlock()
		return nil, RoomBegun
	}

	if !room.AddPlayer(participant.Id, participant.Username) {
		manager.mutex.Unlock()
		return nil, RoomFull
	}

	manager.memberships[participant.Id] = joinCode
	manager.mutex.Unlock()

	manager.sendRoomInfo(room, participant.Id)
	room.Broadcast(schemas.EventGamePlayers, schemas.GamePlayers{Players: room.PlayerList()})

	if begun {
		room.RegisterHandlers(participant.Id)
	}

	return room, nil
}

// BeginRoom flips the participant's room to begun and starts its round
// loop. Creator-only, and the roster must meet the configured minimum.
func (manager *GameManager) BeginRoom(participant *entities.Participant) error {
	room, err := manager.roomOf(participant.Id)
	if err != nil {
		return err
	}

	if room.CreatorId() != participant.Id {
		return NotHost
	}

	if room.HasBegun() {
		return RoomBegun
	}

	if room.PlayerCount() < room.MinPlayers() {
		return BelowMinimum
	}

	if !manager.claimJoinTimer(room.Code()) {
		// The join timer fired first; the expiry path owns the room now.
		return RoomNotFound
	}

	room.RegisterHandlersForAll()
	room.Begin()

	return nil
}

// LeaveRoom removes the participant and re-broadcasts the roster. An
// emptied room is torn down.
func (manager *GameManager) LeaveRoom(participant *entities.Participant) error {
	room, err := manager.roomOf(participant.Id)
	if err != nil {
		return err
	}

	if room.HasBegun() && !room.LeaveAfterBegin() {
		return LeaveForbidden
	}

	room.RemovePlayer(participant.Id)

	manager.mutex.Lock()
	delete(manager.memberships, participant.Id)
	manager.mutex.Unlock()

	if room.PlayerCount() == 0 {
		room.End(game.ReasonEnded, "Everyone left the room.")
		return nil
	}

	room.Broadcast(schemas.EventGamePlayers, schemas.GamePlayers{Players: room.PlayerList()})

	return nil
}

// TerminateRoom is the creator-only forced teardown.
func (manager *GameManager) TerminateRoom(participant *entities.Participant) error {
	room, err := manager.roomOf(participant.Id)
	if err != nil {
		return err
	}

	if room.CreatorId() != participant.Id {
		return NotHost
	}

	room.End(game.ReasonTerminated, "The host ended the game.")

	return nil
}

// AttemptRejoin is the recovery path for transient disconnects: when
// the identity still belongs to a live room, handlers are re-attached
// to the fresh connection and current room state is re-sent.
func (manager *GameManager) AttemptRejoin(participant *entities.Participant) bool {
	room, err := manager.roomOf(participant.Id)
	if err != nil {
		return false
	}

	if room.HasBegun() {
		room.RegisterHandlers(participant.Id)
	}

	manager.sendRoomInfo(room, participant.Id)
	participant.Emit(schemas.EventGamePlayers, schemas.GamePlayers{Players: room.PlayerList()})

	return true
}

// RoomsContainingAny returns summary info for every live room holding
// at least one of the given identities.
func (manager *GameManager) RoomsContainingAny(userIds []string) []schemas.RoomSummary {
	manager.mutex.Lock()

	codes := map[string]bool{}
	for _, userId := range userIds {
		if code, ok := manager.memberships[userId]; ok {
			codes[code] = true
		}
	}

	rooms := make([]game.Instance, 0, len(codes))
	for code := range codes {
		if room, ok := manager.rooms[code]; ok {
			rooms = append(rooms, room)
		}
	}

	manager.mutex.Unlock()

	summaries := make([]schemas.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, schemas.RoomSummary{
			JoinCode:  room.Code(),
			GameName:  room.Name(),
			HostName:  room.HostName(),
			Occupancy: room.PlayerCount(),
			Capacity:  room.Capacity(),
		})
	}

	return summaries
}

// RoomByCode is a lookup helper for tests and handlers.
func (manager *GameManager) RoomByCode(joinCode string) game.Instance {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.rooms[joinCode]
}

func (manager *GameManager) roomOf(userId string) (game.Instance, error) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	code, ok := manager.memberships[userId]
	if !ok {
		return nil, NotInRoom
	}

	room, ok := manager.rooms[code]
	if !ok {
		return nil, NotInRoom
	}

	return room, nil
}

// expireRoom fires when the join timeout elapses with the room still
// not begun: members get a timeout notice, then the room dies. It must
// claim the timer entry before tearing anything down, so a begin
// landing at the same instant cannot leave a begun room expired.
func (manager *GameManager) expireRoom(code string) {
	if !manager.claimJoinTimer(code) {
		return
	}

	manager.mutex.Lock()
	room, exists := manager.rooms[code]
	manager.mutex.Unlock()

	if !exists || room.HasBegun() {
		return
	}

	room.Broadcast(schemas.EventGameError, schemas.GameError{
		Module:  "room",
		Message: "the room timed out before the game began",
	})
	room.End(game.ReasonTimeout, "The room timed out.")
}

// finishRoom is every room's end-of-life callback: broadcast closure,
// then drop the room, its members and its join code from the registry.
func (manager *GameManager) finishRoom(code string, reason game.Reason, message string) {
	manager.mutex.Lock()
	room, exists := manager.rooms[code]
	manager.mutex.Unlock()

	if !exists {
		return
	}

	room.Broadcast(schemas.EventGameEnd, schemas.GameEnd{Message: message})

	players := room.PlayerList()

	manager.mutex.Lock()
	for _, player := range players {
		if manager.memberships[player.Id] == code {
			delete(manager.memberships, player.Id)
		}
	}
	delete(manager.rooms, code)
	manager.mutex.Unlock()

	manager.claimJoinTimer(code)

	logx.Logger.Info(
		"room closed",
		zap.String("joinCode", code),
		zap.String("gameTypeId", room.TypeId()),
		zap.String("reason", string(reason)),
	)

	manager.publishLifecycle(schemas.RoomEndedEvent(code, room.TypeId(), string(reason)))
}

// claimJoinTimer stops and removes the room's join timer. The entry
// doubles as a one-shot token: begin and expiry both race to claim it
// under the mutex, and only the claimer may proceed, so a room can
// never be both begun and expired.
func (manager *GameManager) claimJoinTimer(code string) bool {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	timer, ok := manager.joinTimers[code]
	if !ok {
		return false
	}

	timer.Stop()
	delete(manager.joinTimers, code)
	return true
}

func (manager *GameManager) sendRoomInfo(room game.Instance, userId string) {
	room.SendTo(userId, schemas.EventGameInfo, schemas.GameInfo{
		GameTypeId: room.TypeId(),
		JoinCode:   room.Code(),
		IsHost:     room.CreatorId() == userId,
		HasBegun:   room.HasBegun(),
	})
}

func (manager *GameManager) publishLifecycle(message string, err error) {
	if err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "could not encode lifecycle event"),
		)
		return
	}

	if manager.publisher == nil {
		return
	}

	if err := manager.publisher.Publish(message); err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "could not publish lifecycle event"),
		)
	}
}
