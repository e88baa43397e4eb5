package duel

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/velvetgames/partyhub/game"
	"github.com/velvetgames/partyhub/pkg/collision"
	"github.com/velvetgames/partyhub/pkg/waitx"
	"github.com/velvetgames/partyhub/schemas"
)

const TypeId = "duel"

type phase int

const (
	menuPhase phase = iota
	battlePhase
	resultsPhase
)

const (
	playerRadius        = 16.0
	moveSpeed           = 8.0
	shotRange           = 600.0
	shotDamage          = 25
	maxHealth           = 100
	moveInterval        = 30 * time.Millisecond
	shotInterval        = 400 * time.Millisecond
	tickInterval        = 50 * time.Millisecond
	defaultReadyTimeout = 2 * time.Minute
	resultsPause        = 5 * time.Second
	muzzleOffset        = 1.0
)

// State is one player's battle state.
type State struct {
	Ready      bool
	Health     int
	Wins       int
	Eliminated bool
	Position   collision.Vec
	Aim        collision.Vec

	body     *collision.Circle
	lastMove time.Time
	lastShot time.Time
}

type duel struct {
	room  *game.Room[State]
	space *collision.Space

	readyTimeout time.Duration

	// Mutated only inside room.Do closures.
	phase    phase
	winnerId string
}

func New(code, creatorId string, lookup game.Lookup, endFunc game.EndFunc) game.Instance {
	config := game.Config{
		TypeId:          TypeId,
		Name:            "Arena Duel",
		MinPlayers:      2,
		MaxPlayers:      4,
		JoinAfterBegin:  false,
		LeaveAfterBegin: false,
	}

	instance := &duel{space: collision.NewSpace(), readyTimeout: defaultReadyTimeout}
	instance.room = game.NewRoom(code, creatorId, config, lookup, endFunc, func() *State {
		return &State{Health: maxHealth}
	})
	instance.room.SetHooks(instance.beginRound, instance.registerHandlers)

	return instance.room
}

// beginRound loops MENU -> BATTLE -> RESULTS until the room dies. The
// match keeps playing round after round; each leg reports whether the
// room is still alive so the loop exits when the room is torn down
// underneath it.
func (duel *duel) beginRound() {
	for {
		if !duel.runMenu() {
			duel.room.End(game.ReasonTimeout, "Nobody readied up in time.")
			return
		}

		if !duel.runBattle() {
			return
		}

		if !duel.runResults() {
			return
		}
	}
}

// runMenu waits for every player to ready up; false means the ready
// timeout elapsed or the room died first.
func (duel *duel) runMenu() bool {
	alive := duel.room.Do(func(tx *game.Tx[State]) {
		duel.phase = menuPhase
		duel.winnerId = ""

		for _, seat := range tx.Seats() {
			entry, _ := tx.Player(seat)
			entry.State.Ready = false
		}
	})
	if !alive {
		return false
	}

	duel.broadcastReadyState()

	waitx.WaitUntilFunc(func() bool {
		return duel.room.Status() == game.Ended || duel.allReady()
	}, waitx.Options{
		Timeout:          duel.readyTimeout,
		ResolveOnTimeout: true,
	})

	return duel.room.Status() != game.Ended && duel.allReady()
}

func (duel *duel) allReady() bool {
	ready := false
	duel.room.Do(func(tx *game.Tx[State]) {
		ready = true
		for _, seat := range tx.Seats() {
			entry, _ := tx.Player(seat)
			if !entry.State.Ready {
				ready = false
				return
			}
		}
	})
	return ready
}

func (duel *duel) broadcastReadyState() {
	duel.room.Do(func(tx *game.Tx[State]) {
		states := map[string]bool{}
		for _, seat := range tx.Seats() {
			entry, _ := tx.Player(seat)
			states[seat] = entry.State.Ready
		}
		tx.Broadcast(schemas.EventDuelReadyState, states)
	})
}

func (duel *duel) runBattle() bool {
	arena := arenas[rand.Intn(len(arenas))]

	alive := duel.room.Do(func(tx *game.Tx[State]) {
		duel.space.Clear()

		for _, wall := range arena.Walls {
			duel.space.AddPolygon(wall)
		}

		for i, seat := range tx.Seats() {
			entry, _ := tx.Player(seat)
			spawn := arena.Spawns[i%len(arena.Spawns)]

			entry.State.Health = maxHealth
			entry.State.Eliminated = false
			entry.State.Position = spawn
			entry.State.Aim = collision.Vec{X: 1}
			entry.State.body = duel.space.AddCircle(seat, spawn, playerRadius)
		}

		duel.phase = battlePhase
		tx.Broadcast(schemas.EventDuelMap, arena)
	})
	if !alive {
		return false
	}

	// Drive state broadcasts until a single player remains alive. A Do
	// that fails means the room ended mid-battle; stop ticking.
	for {
		waitx.WaitFor(tickInterval)

		over := false
		alive := duel.room.Do(func(tx *game.Tx[State]) {
			tx.Broadcast(schemas.EventDuelState, duel.snapshot(tx))
			over = duel.winnerId != ""
		})

		if !alive {
			return false
		}
		if over {
			return true
		}
	}
}

func (duel *duel) runResults() bool {
	alive := duel.room.Do(func(tx *game.Tx[State]) {
		duel.phase = resultsPhase

		winner, ok := tx.Player(duel.winnerId)
		if !ok {
			return
		}
		winner.State.Wins++

		tx.Broadcast(schemas.EventDuelWinner, map[string]any{
			"winnerId": duel.winnerId,
			"username": winner.Username,
			"wins":     winner.State.Wins,
		})
	})
	if !alive {
		return false
	}

	waitx.WaitFor(resultsPause)
	return true
}

type playerSnapshot struct {
	Id       string        `json:"id"`
	Health   int           `json:"health"`
	Position collision.Vec `json:"position"`
	Aim      collision.Vec `json:"aim"`
}

func (duel *duel) snapshot(tx *game.Tx[State]) []playerSnapshot {
	var snapshots []playerSnapshot
	for _, seat := range tx.Seats() {
		entry, _ := tx.Player(seat)
		snapshots = append(snapshots, playerSnapshot{
			Id:       seat,
			Health:   entry.State.Health,
			Position: entry.State.Position,
			Aim:      entry.State.Aim,
		})
	}
	return snapshots
}

func (duel *duel) registerHandlers(userId string, sender game.Sender) {
	sender.On(schemas.EventReady, func(data json.RawMessage) {
		duel.handleReady(userId)
	})

	sender.On(schemas.EventMove, func(data json.RawMessage) {
		duel.handleMove(userId, sender, data)
	})

	sender.On(schemas.EventAim, func(data json.RawMessage) {
		duel.handleAim(userId, data)
	})

	sender.On(schemas.EventShoot, func(data json.RawMessage) {
		duel.handleShoot(userId, sender)
	})
}

func (duel *duel) handleReady(userId string) {
	changed := false
	duel.room.Do(func(tx *game.Tx[State]) {
		if duel.phase != menuPhase {
			return
		}

		entry, ok := tx.Player(userId)
		if !ok || entry.State.Ready {
			return
		}

		entry.State.Ready = true
		changed = true
	})

	if changed {
		duel.broadcastReadyState()
	}
}

type moveRequest struct {
	Directions []string `json:"directions"`
}

var directionVectors = map[string]collision.Vec{
	"up":    {Y: -1},
	"down":  {Y: 1},
	"left":  {X: -1},
	"right": {X: 1},
}

func (duel *duel) handleMove(userId string, sender game.Sender, data json.RawMessage) {
	var payload moveRequest

	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Directions) == 0 {
		sender.Emit(schemas.EventGameError, schemas.GameError{
			Module:  schemas.EventMove,
			Message: "directions are required",
		})
		return
	}

	direction := collision.Vec{}
	for _, name := range payload.Directions {
		if vec, ok := directionVectors[name]; ok {
			direction = direction.Add(vec)
		}
	}
	direction = direction.Normalize()

	duel.room.Do(func(tx *game.Tx[State]) {
		if duel.phase != battlePhase {
			return
		}

		entry, ok := tx.Player(userId)
		if !ok || entry.State.Eliminated {
			return
		}

		now := time.Now()
		if now.Sub(entry.State.lastMove) < moveInterval {
			return
		}
		entry.State.lastMove = now

		entry.State.body.Center = entry.State.Position.Add(direction.Scale(moveSpeed))
		duel.space.Separate(entry.State.body)
		entry.State.Position = entry.State.body.Center
	})
}

type aimRequest struct {
	Direction collision.Vec `json:"direction"`
}

func (duel *duel) handleAim(userId string, data json.RawMessage) {
	var payload aimRequest

	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	direction := payload.Direction.Normalize()
	if direction.Length() == 0 {
		return
	}

	duel.room.Do(func(tx *game.Tx[State]) {
		if duel.phase != battlePhase {
			return
		}

		entry, ok := tx.Player(userId)
		if !ok || entry.State.Eliminated {
			return
		}

		entry.State.Aim = direction
	})
}

func (duel *duel) handleShoot(userId string, sender game.Sender) {
	duel.room.Do(func(tx *game.Tx[State]) {
		if duel.phase != battlePhase || duel.winnerId != "" {
			return
		}

		shooter, ok := tx.Player(userId)
		if !ok || shooter.State.Eliminated {
			return
		}

		now := time.Now()
		if now.Sub(shooter.State.lastShot) < shotInterval {
			return
		}
		shooter.State.lastShot = now

		// Cast from just outside the shooter's own hitbox so the ray
		// cannot start inside it.
		origin := shooter.State.Position.Add(
			shooter.State.Aim.Scale(playerRadius + muzzleOffset))

		hit, found := duel.space.Raycast(origin, shooter.State.Aim, shotRange, userId)
		if !found || hit.Owner == "" {
			return
		}

		target, ok := tx.Player(hit.Owner)
		if !ok {
			return
		}

		target.State.Health -= shotDamage
		if target.State.Health < 0 {
			target.State.Health = 0
		}

		tx.Broadcast(schemas.EventDuelHit, map[string]any{
			"shooterId": userId,
			"targetId":  hit.Owner,
			"health":    target.State.Health,
		})

		if target.State.Health == 0 && !target.State.Eliminated {
			target.State.Eliminated = true
			duel.space.RemoveCircle(target.State.body)
		}

		duel.resolveWinner(tx)
	})
}

// resolveWinner ends the round the instant exactly one player remains
// alive. Should every player somehow reach zero health in one
// resolution step, the lowest seat index wins; the tie must break
// deterministically rather than by iteration order.
func (duel *duel) resolveWinner(tx *game.Tx[State]) {
	var alive []string
	for _, seat := range tx.Seats() {
		entry, _ := tx.Player(seat)
		if !entry.State.Eliminated {
			alive = append(alive, seat)
		}
	}

	seats := tx.Seats()

	switch len(alive) {
	case 1:
		duel.winnerId = alive[0]
	case 0:
		if len(seats) > 0 {
			duel.winnerId = seats[0]
		}
	}
}
