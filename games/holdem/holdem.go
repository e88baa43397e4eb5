package holdem

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/velvetgames/partyhub/game"
	"github.com/velvetgames/partyhub/pkg/cards"
	"github.com/velvetgames/partyhub/pkg/waitx"
	"github.com/velvetgames/partyhub/schemas"
)

const TypeId = "holdem"

type phase int

const (
	lobbyPhase phase = iota
	bettingPhase
	showdownPhase
)

type street int

const (
	preflop street = iota
	flop
	turn
	river
)

var streetNames = [...]string{"preflop", "flop", "turn", "river"}

const (
	totalHands        = 5
	startingChips     = 1000
	smallBlind        = 10
	bigBlind          = 20
	raiseCap          = 200
	defaultBetTimeout = 30 * time.Second
	handPause         = 6 * time.Second
)

// State is one player's chips and current-hand state.
type State struct {
	Chips     int
	Hole      []cards.Card
	Folded    bool
	StreetBet int
}

type betAction struct {
	action string
	amount int
}

type holdem struct {
	room *game.Room[State]

	betTimeout time.Duration

	// Mutated only inside room.Do closures.
	phase      phase
	deck       *cards.Deck
	community  []cards.Card
	pot        int
	dealerSeat int
	currentAsk string
	pending    *betAction
	wager      int

	betPlaced *waitx.Signal
}

func New(code, creatorId string, lookup game.Lookup, endFunc game.EndFunc) game.Instance {
	config := game.Config{
		TypeId:          TypeId,
		Name:            "Texas Hold'em",
		MinPlayers:      2,
		MaxPlayers:      8,
		JoinAfterBegin:  false,
		LeaveAfterBegin: false,
	}

	instance := &holdem{betPlaced: &waitx.Signal{}, betTimeout: defaultBetTimeout}
	instance.room = game.NewRoom(code, creatorId, config, lookup, endFunc, func() *State {
		return &State{Chips: startingChips}
	})
	instance.room.SetHooks(instance.beginRound, instance.registerHandlers)

	return instance.room
}

func (holdem *holdem) beginRound() {
	for hand := 1; hand <= totalHands; hand++ {
		if err := holdem.setupHand(hand); err != nil {
			holdem.room.Abort(err)
			return
		}

		wonEarly := false

		for current := preflop; current <= river; current++ {
			if err := holdem.dealStreet(current); err != nil {
				holdem.room.Abort(err)
				return
			}

			if winner := holdem.bettingRound(current); winner != "" {
				holdem.awardPotTo(winner)
				wonEarly = true
				break
			}
		}

		if holdem.room.Status() == game.Ended {
			return
		}

		if !wonEarly {
			if err := holdem.showdown(); err != nil {
				holdem.room.Abort(err)
				return
			}
		}

		if hand < totalHands {
			waitx.WaitFor(handPause)
		}
	}

	holdem.room.End(game.ReasonEnded, "That's the last hand, thanks for playing!")
}

// setupHand shuffles a fresh deck, deals two hole cards per player,
// rotates the dealer button and posts the blinds.
func (holdem *holdem) setupHand(hand int) error {
	var dealErr error

	holdem.room.Do(func(tx *game.Tx[State]) {
		holdem.phase = bettingPhase
		holdem.deck = cards.NewDeck()
		holdem.deck.Shuffle()
		holdem.community = nil
		holdem.pot = 0

		seats := tx.Seats()
		holdem.dealerSeat = (hand - 1) % len(seats)

		smallSeat, bigSeat := holdem.blindSeats(len(seats))

		for _, seat := range seats {
			entry, _ := tx.Player(seat)
			entry.State.Folded = false
			entry.State.StreetBet = 0
			entry.State.Hole = nil

			for i := 0; i < 2; i++ {
				card, err := holdem.deck.Draw()
				if err != nil {
					dealErr = fmt.Errorf("dealing hole cards: %w", err)
					return
				}
				entry.State.Hole = append(entry.State.Hole, card)
			}
		}

		holdem.postBlind(tx, seats[smallSeat], smallBlind)
		holdem.postBlind(tx, seats[bigSeat], bigBlind)
		holdem.wager = bigBlind

		tx.Broadcast(schemas.EventHoldemHand, map[string]any{
			"hand":       hand,
			"totalHands": totalHands,
			"dealerId":   seats[holdem.dealerSeat],
			"smallBlind": seats[smallSeat],
			"bigBlind":   seats[bigSeat],
		})

		for _, seat := range seats {
			entry, _ := tx.Player(seat)
			tx.SendTo(seat, schemas.EventHoldemHoleCards, map[string]any{
				"cards": entry.State.Hole,
				"chips": entry.State.Chips,
			})
		}
	})

	return dealErr
}

// blindSeats returns small and big blind seat indexes. Heads-up the
// dealer posts the small blind.
func (holdem *holdem) blindSeats(players int) (int, int) {
	if players == 2 {
		return holdem.dealerSeat, (holdem.dealerSeat + 1) % players
	}
	return (holdem.dealerSeat + 1) % players, (holdem.dealerSeat + 2) % players
}

func (holdem *holdem) postBlind(tx *game.Tx[State], seat string, blind int) {
	entry, ok := tx.Player(seat)
	if !ok {
		return
	}

	if blind > entry.State.Chips {
		blind = entry.State.Chips
	}

	entry.State.Chips -= blind
	entry.State.StreetBet = blind
	holdem.pot += blind
}

func (holdem *holdem) dealStreet(current street) error {
	var dealErr error

	holdem.room.Do(func(tx *game.Tx[State]) {
		count := 0
		switch current {
		case flop:
			count = 3
		case turn, river:
			count = 1
		}

		for i := 0; i < count; i++ {
			card, err := holdem.deck.Draw()
			if err != nil {
				dealErr = fmt.Errorf("dealing %s: %w", streetNames[current], err)
				return
			}
			holdem.community = append(holdem.community, card)
		}

		if current != preflop {
			// Street wagers reset once the next community cards land.
			holdem.wager = 0
			for _, seat := range tx.Seats() {
				entry, _ := tx.Player(seat)
				entry.State.StreetBet = 0
			}
		}

		tx.Broadcast(schemas.EventHoldemCommunity, map[string]any{
			"street": streetNames[current],
			"cards":  holdem.community,
			"pot":    holdem.pot,
		})
	})

	return dealErr
}

// bettingRound loops over active players starting from the small
// blind, asking each for an action until every active player has been
// asked and matched the current wager. Returns the winner's id when
// only one active player remains, ending the hand immediately.
func (holdem *holdem) bettingRound(current street) string {
	var order []string
	needToAct := map[string]bool{}

	alive := holdem.room.Do(func(tx *game.Tx[State]) {
		seats := tx.Seats()
		smallSeat, _ := holdem.blindSeats(len(seats))

		for i := 0; i < len(seats); i++ {
			seat := seats[(smallSeat+i)%len(seats)]
			entry, _ := tx.Player(seat)
			if entry.State.Folded {
				continue
			}
			order = append(order, seat)
			needToAct[seat] = true
		}
	})
	if !alive {
		return ""
	}

	if len(order) <= 1 {
		if len(order) == 1 {
			return order[0]
		}
		return ""
	}

	for position := 0; len(needToAct) > 0; position = (position + 1) % len(order) {
		seat := order[position]

		skip := false
		toCall := 0
		alive := holdem.room.Do(func(tx *game.Tx[State]) {
			entry, ok := tx.Player(seat)
			if !ok || entry.State.Folded || !needToAct[seat] {
				skip = true
				return
			}

			toCall = holdem.wager - entry.State.StreetBet
			holdem.currentAsk = seat
			holdem.pending = nil
			holdem.betPlaced.Clear()

			tx.SendTo(seat, schemas.EventHoldemBetRequest, map[string]any{
				"street":    streetNames[current],
				"toCall":    toCall,
				"raiseCap":  raiseCap,
				"chips":     entry.State.Chips,
				"timeoutMs": holdem.betTimeout.Milliseconds(),
			})
		})
		if !alive {
			return ""
		}

		if skip {
			continue
		}

		// A non-responding player auto-folds after the timeout.
		waitx.WaitUntil(holdem.betPlaced, waitx.Options{
			Timeout:          holdem.betTimeout,
			ResolveOnTimeout: true,
			Reset:            true,
		})

		winner := ""
		alive = holdem.room.Do(func(tx *game.Tx[State]) {
			action := holdem.pending
			holdem.pending = nil
			holdem.currentAsk = ""

			if action == nil {
				action = &betAction{action: "fold"}
			}

			entry, _ := tx.Player(seat)

			switch action.action {
			case "fold":
				entry.State.Folded = true
				delete(needToAct, seat)
			case "check":
				delete(needToAct, seat)
			case "call":
				entry.State.Chips -= toCall
				entry.State.StreetBet += toCall
				holdem.pot += toCall
				delete(needToAct, seat)
			case "raise":
				entry.State.Chips -= action.amount
				entry.State.StreetBet += action.amount
				holdem.pot += action.amount
				holdem.wager = entry.State.StreetBet

				// Everyone else has to match the new wager.
				for _, other := range order {
					if other == seat {
						continue
					}
					if otherEntry, ok := tx.Player(other); ok && !otherEntry.State.Folded {
						needToAct[other] = true
					}
				}
				delete(needToAct, seat)
			}

			tx.Broadcast(schemas.EventHoldemBetPlaced, map[string]any{
				"playerId": seat,
				"action":   action.action,
				"amount":   action.amount,
				"pot":      holdem.pot,
			})

			winner = holdem.soleActive(tx)
		})
		if !alive {
			return ""
		}

		if winner != "" {
			return winner
		}
	}

	return ""
}

// soleActive returns the one unfolded player, or "" while several
// remain.
func (holdem *holdem) soleActive(tx *game.Tx[State]) string {
	active := ""
	for _, seat := range tx.Seats() {
		entry, _ := tx.Player(seat)
		if entry.State.Folded {
			continue
		}
		if active != "" {
			return ""
		}
		active = seat
	}
	return active
}

func (holdem *holdem) awardPotTo(winner string) {
	holdem.room.Do(func(tx *game.Tx[State]) {
		entry, ok := tx.Player(winner)
		if !ok {
			return
		}

		entry.State.Chips += holdem.pot

		tx.Broadcast(schemas.EventHoldemShowdown, map[string]any{
			"winners":  []string{winner},
			"pot":      holdem.pot,
			"uncalled": true,
		})

		holdem.pot = 0
	})
}

// showdown scores every unfolded hand against the community cards and
// splits the pot evenly among the best; the indivisible remainder goes
// to the tied winner with the lowest seat index.
func (holdem *holdem) showdown() error {
	var scoreErr error

	holdem.room.Do(func(tx *game.Tx[State]) {
		holdem.phase = showdownPhase
		defer func() { holdem.phase = bettingPhase }()

		holes := map[string][]cards.Card{}
		for _, seat := range tx.Seats() {
			entry, _ := tx.Player(seat)
			if !entry.State.Folded {
				holes[seat] = entry.State.Hole
			}
		}

		winners, err := cards.Winners(holdem.community, holes)
		if err != nil {
			scoreErr = fmt.Errorf("scoring showdown: %w", err)
			return
		}

		// Order winners by seat so the remainder lands
		// deterministically.
		bySeat := make([]string, 0, len(winners))
		for _, seat := range tx.Seats() {
			for _, winner := range winners {
				if winner == seat {
					bySeat = append(bySeat, seat)
				}
			}
		}

		share := holdem.pot / len(bySeat)
		remainder := holdem.pot % len(bySeat)

		for i, winner := range bySeat {
			entry, _ := tx.Player(winner)
			entry.State.Chips += share
			if i == 0 {
				entry.State.Chips += remainder
			}
		}

		revealed := map[string][]cards.Card{}
		for seat, hole := range holes {
			revealed[seat] = hole
		}

		tx.Broadcast(schemas.EventHoldemShowdown, map[string]any{
			"community": holdem.community,
			"revealed":  revealed,
			"winners":   bySeat,
			"share":     share,
			"pot":       holdem.pot,
		})

		holdem.pot = 0
	})

	return scoreErr
}

func (holdem *holdem) registerHandlers(userId string, sender game.Sender) {
	sender.On(schemas.EventBetResponse, func(data json.RawMessage) {
		holdem.handleBet(userId, sender, data)
	})
}

func (holdem *holdem) handleBet(userId string, sender game.Sender, data json.RawMessage) {
	var payload struct {
		Action string `json:"action"`
		Amount int    `json:"amount"`
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		sender.Emit(schemas.EventGameError, schemas.GameError{
			Module:  schemas.EventBetResponse,
			Message: "malformed bet",
		})
		return
	}

	holdem.room.Do(func(tx *game.Tx[State]) {
		if holdem.phase != bettingPhase || holdem.currentAsk != userId {
			sender.Emit(schemas.EventGameError, schemas.GameError{
				Module:  schemas.EventBetResponse,
				Message: "it is not your turn to act",
			})
			return
		}

		entry, ok := tx.Player(userId)
		if !ok {
			return
		}

		toCall := holdem.wager - entry.State.StreetBet

		switch payload.Action {
		case "fold":
		case "check":
			if toCall != 0 {
				holdem.rejectBet(sender, "cannot check, there is a bet to call")
				return
			}
		case "call":
			if toCall == 0 {
				holdem.rejectBet(sender, "nothing to call, check instead")
				return
			}
			if toCall > entry.State.Chips {
				holdem.rejectBet(sender, "not enough chips to call")
				return
			}
		case "raise":
			if payload.Amount <= toCall {
				holdem.rejectBet(sender, "raise must exceed the call amount")
				return
			}
			if payload.Amount > entry.State.Chips {
				holdem.rejectBet(sender, "not enough chips to raise")
				return
			}
			if payload.Amount-toCall > raiseCap {
				holdem.rejectBet(sender, "raise exceeds the table cap")
				return
			}
		default:
			holdem.rejectBet(sender, "unknown action")
			return
		}

		holdem.pending = &betAction{action: payload.Action, amount: payload.Amount}
		holdem.betPlaced.Set()
	})
}

func (holdem *holdem) rejectBet(sender game.Sender, message string) {
	sender.Emit(schemas.EventGameError, schemas.GameError{
		Module:  schemas.EventBetResponse,
		Message: message,
	})
}
