package game

import (
	"sync"

	"github.com/velvetgames/partyhub/pkg/logx"
	"github.com/velvetgames/partyhub/schemas"
	"go.uber.org/zap"
)

// Entry is one roster slot: the common base (display name) plus the
// game-specific player state.
type Entry[S any] struct {
	Username string
	State    *S
}

// Room is the base every concrete game builds on. All roster and state
// mutation is funneled through a command queue consumed by a single
// goroutine per room, so a room never sees concurrent writes; round
// loops run as separate goroutines and touch state only through Do.
type Room[S any] struct {
	code      string
	creatorId string
	config    Config
	lookup    Lookup
	endFunc   EndFunc
	factory   func() *S

	// Set by the concrete game before the room is exposed.
	beginRound func()
	registrar  func(userId string, sender Sender)

	commands chan func()
	closed   chan struct{}
	endOnce  sync.Once

	// Owned by the actor goroutine.
	status Status
	roster map[string]*Entry[S]
	seats  []string
}

// NewRoom builds a base room. factory must return a fresh state value
// per call; the template is never shared across players.
func NewRoom[S any](code, creatorId string, config Config, lookup Lookup, endFunc EndFunc, factory func() *S) *Room[S] {
	room := &Room[S]{
		code:      code,
		creatorId: creatorId,
		config:    config,
		lookup:    lookup,
		endFunc:   endFunc,
		factory:   factory,
		commands:  make(chan func(), 64),
		closed:    make(chan struct{}),
		roster:    make(map[string]*Entry[S]),
	}

	go room.run()

	return room
}

// SetHooks installs the concrete game's round loop and per-connection
// handler registrar.
func (room *Room[S]) SetHooks(beginRound func(), registrar func(userId string, sender Sender)) {
	room.beginRound = beginRound
	room.registrar = registrar
}

func (room *Room[S]) run() {
	for {
		select {
		case <-room.closed:
			return
		case fn := <-room.commands:
			fn()
		}
	}
}

// Tx exposes actor-side access to room state; it is only valid inside
// the closure passed to Do.
type Tx[S any] struct {
	room *Room[S]
}

func (tx *Tx[S]) Player(userId string) (*Entry[S], bool) {
	entry, ok := tx.room.roster[userId]
	return entry, ok
}

// Seats returns identity ids in join order.
func (tx *Tx[S]) Seats() []string {
	seats := make([]string, len(tx.room.seats))
	copy(seats, tx.room.seats)
	return seats
}

func (tx *Tx[S]) Status() Status {
	return tx.room.status
}

// Broadcast may be used from inside a Do closure; the public
// Room.Broadcast must not.
func (tx *Tx[S]) Broadcast(event string, data any) {
	tx.room.broadcast(event, data)
}

func (tx *Tx[S]) SendTo(userId, event string, data any) {
	tx.room.sendTo(userId, event, data)
}

// Do runs fn on the room's actor goroutine and waits for it. Returns
// false without running fn when the room has already been torn down.
func (room *Room[S]) Do(fn func(tx *Tx[S])) bool {
	done := make(chan struct{})

	wrapped := func() {
		fn(&Tx[S]{room: room})
		close(done)
	}

	select {
	case room.commands <- wrapped:
	case <-room.closed:
		return false
	}

	select {
	case <-done:
		return true
	case <-room.closed:
		return false
	}
}

func (room *Room[S]) Code() string         { return room.code }
func (room *Room[S]) TypeId() string       { return room.config.TypeId }
func (room *Room[S]) Name() string         { return room.config.Name }
func (room *Room[S]) CreatorId() string    { return room.creatorId }
func (room *Room[S]) MinPlayers() int      { return room.config.MinPlayers }
func (room *Room[S]) Capacity() int        { return room.config.MaxPlayers }
func (room *Room[S]) JoinAfterBegin() bool { return room.config.JoinAfterBegin }
func (room *Room[S]) LeaveAfterBegin() bool {
	return room.config.LeaveAfterBegin
}

func (room *Room[S]) Status() Status {
	status := Ended
	room.Do(func(tx *Tx[S]) {
		status = room.status
	})
	return status
}

func (room *Room[S]) HasBegun() bool {
	return room.Status() != NotBegun
}

func (room *Room[S]) PlayerCount() int {
	count := 0
	room.Do(func(tx *Tx[S]) {
		count = len(room.roster)
	})
	return count
}

func (room *Room[S]) HasPlayer(userId string) bool {
	present := false
	room.Do(func(tx *Tx[S]) {
		_, present = room.roster[userId]
	})
	return present
}

// PlayerList returns the roster in seat (join) order.
func (room *Room[S]) PlayerList() []schemas.GamePlayer {
	var players []schemas.GamePlayer
	room.Do(func(tx *Tx[S]) {
		for _, userId := range room.seats {
			players = append(players, schemas.GamePlayer{
				Id:       userId,
				Username: room.roster[userId].Username,
			})
		}
	})
	return players
}

func (room *Room[S]) HostName() string {
	name := ""
	room.Do(func(tx *Tx[S]) {
		if entry, ok := room.roster[room.creatorId]; ok {
			name = entry.Username
		}
	})
	return name
}

// AddPlayer inserts a fresh copy of the default state for the player.
// No-op returning false when the player is already present or the
// roster is at capacity.
func (room *Room[S]) AddPlayer(userId, username string) bool {
	added := false
	room.Do(func(tx *Tx[S]) {
		if _, exists := room.roster[userId]; exists {
			return
		}
		if len(room.roster) >= room.config.MaxPlayers {
			return
		}

		room.roster[userId] = &Entry[S]{Username: username, State: room.factory()}
		room.seats = append(room.seats, userId)
		added = true
	})
	return added
}

// RemovePlayer deletes the roster entry; idempotent.
func (room *Room[S]) RemovePlayer(userId string) {
	room.Do(func(tx *Tx[S]) {
		if _, exists := room.roster[userId]; !exists {
			return
		}

		delete(room.roster, userId)

		for i, seat := range room.seats {
			if seat == userId {
				room.seats = append(room.seats[:i], room.seats[i+1:]...)
				break
			}
		}
	})
}

// Begin flips the room to Begun (irreversible), notifies the roster and
// hands control to the concrete game's round loop.
func (room *Room[S]) Begin() {
	begun := false
	room.Do(func(tx *Tx[S]) {
		if room.status != NotBegun {
			return
		}
		room.status = Begun
		room.broadcast(schemas.EventGameBegin, nil)
		begun = true
	})

	if begun && room.beginRound != nil {
		go room.runRound()
	}
}

// runRound drives the concrete round loop and converts a panic into
// the room's crashed end path instead of letting it cross the room
// boundary.
func (room *Room[S]) runRound() {
	defer func() {
		if recovered := recover(); recovered != nil {
			logx.Logger.Error(
				"room round loop aborted",
				zap.String("joinCode", room.code),
				zap.String("gameTypeId", room.config.TypeId),
				zap.Any("panic", recovered),
			)
			room.Broadcast(schemas.EventGameError, schemas.GameError{
				Module:  room.config.TypeId,
				Message: "internal server error",
			})
			room.End(ReasonCrashed, "The game crashed.")
		}
	}()

	room.beginRound()
}

// Abort is the round loop's bail-out for internal consistency errors
// (deck exhausted, missing roster entry): the defect is logged, the
// roster is told, and the room is torn down as crashed.
func (room *Room[S]) Abort(err error) {
	logx.Logger.Error(
		err.Error(),
		zap.String("desc", "room aborted on internal error"),
		zap.String("joinCode", room.code),
		zap.String("gameTypeId", room.config.TypeId),
	)
	room.Broadcast(schemas.EventGameError, schemas.GameError{
		Module:  room.config.TypeId,
		Message: "internal server error",
	})
	room.End(ReasonCrashed, "The game crashed.")
}

func (room *Room[S]) Broadcast(event string, data any) {
	room.Do(func(tx *Tx[S]) {
		room.broadcast(event, data)
	})
}

func (room *Room[S]) SendTo(userId, event string, data any) {
	room.Do(func(tx *Tx[S]) {
		room.sendTo(userId, event, data)
	})
}

// broadcast sends to every roster member in seat order, silently
// skipping identities with no currently attached connection.
func (room *Room[S]) broadcast(event string, data any) {
	for _, userId := range room.seats {
		room.sendTo(userId, event, data)
	}
}

func (room *Room[S]) sendTo(userId, event string, data any) {
	if _, ok := room.roster[userId]; !ok {
		return
	}

	if sender := room.lookup(userId); sender != nil {
		sender.Emit(event, data)
	}
}

// RegisterHandlers attaches the game's inbound-event listeners to the
// participant's current connection. Listeners bind to the connection
// object, not the identity, so this must be re-invoked on reconnect.
func (room *Room[S]) RegisterHandlers(userId string) {
	if room.registrar == nil {
		return
	}

	if sender := room.lookup(userId); sender != nil {
		room.registrar(userId, sender)
	}
}

func (room *Room[S]) RegisterHandlersForAll() {
	for _, player := range room.PlayerList() {
		room.RegisterHandlers(player.Id)
	}
}

// End runs the end-of-life callback exactly once and stops the actor.
// Later calls and queued commands are discarded.
func (room *Room[S]) End(reason Reason, message string) {
	room.endOnce.Do(func() {
		room.Do(func(tx *Tx[S]) {
			room.status = Ended
		})

		if room.endFunc != nil {
			room.endFunc(reason, message)
		}

		close(room.closed)
	})
}
