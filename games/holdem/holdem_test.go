package holdem

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velvetgames/partyhub/game"
	"github.com/velvetgames/partyhub/pkg/cards"
	"github.com/velvetgames/partyhub/pkg/logx"
	"github.com/velvetgames/partyhub/pkg/waitx"
	"github.com/velvetgames/partyhub/schemas"
)

func TestMain(m *testing.M) {
	logx.NewLogger()
	m.Run()
}

type recordedEvent struct {
	Event string
	Data  any
}

type stubSender struct {
	events []recordedEvent
}

func (sender *stubSender) Emit(event string, data any) {
	sender.events = append(sender.events, recordedEvent{Event: event, Data: data})
}

func (sender *stubSender) On(event string, handler func(data json.RawMessage)) {}

func (sender *stubSender) errorCount() int {
	count := 0
	for _, recorded := range sender.events {
		if recorded.Event == schemas.EventGameError {
			count++
		}
	}
	return count
}

func newTestHoldem(t *testing.T, seats ...string) (*holdem, map[string]*stubSender) {
	t.Helper()

	senders := map[string]*stubSender{}
	for _, seat := range seats {
		senders[seat] = &stubSender{}
	}

	lookup := func(userId string) game.Sender {
		if sender, ok := senders[userId]; ok {
			return sender
		}
		return nil
	}

	config := game.Config{
		TypeId:     TypeId,
		Name:       "Texas Hold'em",
		MinPlayers: 2,
		MaxPlayers: 8,
	}

	instance := &holdem{betPlaced: &waitx.Signal{}, betTimeout: defaultBetTimeout}
	instance.room = game.NewRoom("ABCDE", seats[0], config, lookup, nil, func() *State {
		return &State{Chips: startingChips}
	})
	instance.room.SetHooks(instance.beginRound, instance.registerHandlers)

	for _, seat := range seats {
		require.True(t, instance.room.AddPlayer(seat, "name-"+seat))
	}

	return instance, senders
}

func card(rank cards.Rank, suit cards.Suit) cards.Card {
	return cards.Card{Suit: suit, Rank: rank}
}

func TestSilentPlayerIsAutoFolded(t *testing.T) {
	instance, _ := newTestHoldem(t, "a", "b")
	instance.betTimeout = 50 * time.Millisecond

	require.NoError(t, instance.setupHand(1))

	// Heads-up the dealer posts the small blind and acts first; nobody
	// answers the bet request, so seat "a" folds and "b" wins the hand.
	done := make(chan string, 1)
	go func() { done <- instance.bettingRound(preflop) }()

	select {
	case winner := <-done:
		assert.Equal(t, "b", winner)
	case <-time.After(3 * time.Second):
		t.Fatal("betting round never resolved")
	}

	instance.room.Do(func(tx *game.Tx[State]) {
		entryA, _ := tx.Player("a")
		assert.True(t, entryA.State.Folded)
	})
}

func TestBlindSeatsHeadsUpDealerPostsSmall(t *testing.T) {
	instance, _ := newTestHoldem(t, "a", "b")
	instance.dealerSeat = 0

	small, big := instance.blindSeats(2)

	assert.Equal(t, 0, small, "heads-up the dealer posts the small blind")
	assert.Equal(t, 1, big)
}

func TestBlindSeatsThreeHanded(t *testing.T) {
	instance, _ := newTestHoldem(t, "a", "b", "c")
	instance.dealerSeat = 2

	small, big := instance.blindSeats(3)

	assert.Equal(t, 0, small)
	assert.Equal(t, 1, big)
}

func TestSetupHandDealsAndPostsBlinds(t *testing.T) {
	assert := assert.New(t)

	instance, _ := newTestHoldem(t, "a", "b", "c")

	require.NoError(t, instance.setupHand(1))

	instance.room.Do(func(tx *game.Tx[State]) {
		assert.Equal(0, instance.dealerSeat)
		assert.Equal(bigBlind, instance.wager)
		assert.Equal(smallBlind+bigBlind, instance.pot)

		seen := map[cards.Card]bool{}
		for _, seat := range tx.Seats() {
			entry, _ := tx.Player(seat)
			assert.Len(entry.State.Hole, 2, "seat %s hole cards", seat)
			assert.False(entry.State.Folded)
			for _, hole := range entry.State.Hole {
				assert.False(seen[hole], "card %v dealt twice", hole)
				seen[hole] = true
			}
		}

		entryB, _ := tx.Player("b")
		entryC, _ := tx.Player("c")
		assert.Equal(startingChips-smallBlind, entryB.State.Chips)
		assert.Equal(startingChips-bigBlind, entryC.State.Chips)
	})
}

func TestSetupHandRotatesDealer(t *testing.T) {
	instance, _ := newTestHoldem(t, "a", "b", "c")

	require.NoError(t, instance.setupHand(2))

	assert.Equal(t, 1, instance.dealerSeat)
}

func TestShowdownSplitsPotRemainderToLowestSeat(t *testing.T) {
	assert := assert.New(t)

	instance, _ := newTestHoldem(t, "a", "b", "c")

	// The board itself is a royal flush; everyone plays the board and
	// the three-way tie leaves an indivisible chip.
	instance.room.Do(func(tx *game.Tx[State]) {
		instance.community = []cards.Card{
			card(cards.Ace, cards.Spades),
			card(cards.King, cards.Spades),
			card(cards.Queen, cards.Spades),
			card(cards.Jack, cards.Spades),
			card(cards.Ten, cards.Spades),
		}
		instance.pot = 100

		holes := map[string][]cards.Card{
			"a": {card(cards.Two, cards.Hearts), card(cards.Three, cards.Hearts)},
			"b": {card(cards.Four, cards.Clubs), card(cards.Five, cards.Clubs)},
			"c": {card(cards.Six, cards.Diamonds), card(cards.Seven, cards.Diamonds)},
		}
		for seat, hole := range holes {
			entry, _ := tx.Player(seat)
			entry.State.Hole = hole
		}
	})

	require.NoError(t, instance.showdown())

	instance.room.Do(func(tx *game.Tx[State]) {
		entryA, _ := tx.Player("a")
		entryB, _ := tx.Player("b")
		entryC, _ := tx.Player("c")

		assert.Equal(startingChips+34, entryA.State.Chips, "the remainder goes to the earliest seat")
		assert.Equal(startingChips+33, entryB.State.Chips)
		assert.Equal(startingChips+33, entryC.State.Chips)
		assert.Equal(0, instance.pot)
	})
}

func TestShowdownAwardsStrictlyBestHand(t *testing.T) {
	assert := assert.New(t)

	instance, _ := newTestHoldem(t, "a", "b")

	instance.room.Do(func(tx *game.Tx[State]) {
		instance.community = []cards.Card{
			card(cards.Nine, cards.Spades),
			card(cards.Nine, cards.Hearts),
			card(cards.Two, cards.Clubs),
			card(cards.Seven, cards.Diamonds),
			card(cards.King, cards.Spades),
		}
		instance.pot = 80

		entryA, _ := tx.Player("a")
		entryA.State.Hole = []cards.Card{card(cards.Nine, cards.Clubs), card(cards.Nine, cards.Diamonds)}

		entryB, _ := tx.Player("b")
		entryB.State.Hole = []cards.Card{card(cards.King, cards.Hearts), card(cards.King, cards.Clubs)}
	})

	require.NoError(t, instance.showdown())

	instance.room.Do(func(tx *game.Tx[State]) {
		entryA, _ := tx.Player("a")
		entryB, _ := tx.Player("b")

		assert.Equal(startingChips+80, entryA.State.Chips, "quads beat the full house")
		assert.Equal(startingChips, entryB.State.Chips)
	})
}

func TestShowdownSkipsFoldedHands(t *testing.T) {
	assert := assert.New(t)

	instance, _ := newTestHoldem(t, "a", "b")

	instance.room.Do(func(tx *game.Tx[State]) {
		instance.community = []cards.Card{
			card(cards.Nine, cards.Spades),
			card(cards.Nine, cards.Hearts),
			card(cards.Two, cards.Clubs),
			card(cards.Seven, cards.Diamonds),
			card(cards.King, cards.Spades),
		}
		instance.pot = 60

		// The stronger hand folded preflop.
		entryA, _ := tx.Player("a")
		entryA.State.Hole = []cards.Card{card(cards.Nine, cards.Clubs), card(cards.Nine, cards.Diamonds)}
		entryA.State.Folded = true

		entryB, _ := tx.Player("b")
		entryB.State.Hole = []cards.Card{card(cards.Three, cards.Hearts), card(cards.Four, cards.Clubs)}
	})

	require.NoError(t, instance.showdown())

	instance.room.Do(func(tx *game.Tx[State]) {
		entryA, _ := tx.Player("a")
		entryB, _ := tx.Player("b")

		assert.Equal(startingChips, entryA.State.Chips)
		assert.Equal(startingChips+60, entryB.State.Chips)
	})
}

func TestAwardPotToUncontestedWinner(t *testing.T) {
	assert := assert.New(t)

	instance, _ := newTestHoldem(t, "a", "b")

	instance.room.Do(func(tx *game.Tx[State]) {
		instance.pot = 150
	})

	instance.awardPotTo("b")

	instance.room.Do(func(tx *game.Tx[State]) {
		entryB, _ := tx.Player("b")
		assert.Equal(startingChips+150, entryB.State.Chips)
		assert.Equal(0, instance.pot)
	})
}

func TestSoleActiveDetection(t *testing.T) {
	assert := assert.New(t)

	instance, _ := newTestHoldem(t, "a", "b", "c")

	instance.room.Do(func(tx *game.Tx[State]) {
		assert.Empty(instance.soleActive(tx), "several active players")

		entryA, _ := tx.Player("a")
		entryA.State.Folded = true
		entryC, _ := tx.Player("c")
		entryC.State.Folded = true

		assert.Equal("b", instance.soleActive(tx))
	})
}

func TestHandleBetLegality(t *testing.T) {
	assert := assert.New(t)

	instance, senders := newTestHoldem(t, "a", "b")

	instance.room.Do(func(tx *game.Tx[State]) {
		instance.phase = bettingPhase
		instance.currentAsk = "a"
		instance.wager = 50

		entryA, _ := tx.Player("a")
		entryA.State.StreetBet = 20 // 30 to call
	})

	bet := func(userId, action string, amount int) {
		payload, err := json.Marshal(map[string]any{"action": action, "amount": amount})
		require.NoError(t, err)
		instance.handleBet(userId, senders[userId], payload)
	}

	bet("b", "call", 0)
	assert.Equal(1, senders["b"].errorCount(), "acting out of turn is rejected")

	bet("a", "check", 0)
	bet("a", "raise", 20)            // does not exceed the call amount
	bet("a", "raise", raiseCap+40)   // 30 to call + cap excess
	bet("a", "raise", startingChips*2) // more than the remaining stack
	bet("a", "punt", 0)
	assert.Equal(5, senders["a"].errorCount())
	assert.False(instance.betPlaced.IsSet())

	bet("a", "call", 0)
	assert.Equal(5, senders["a"].errorCount(), "a legal call is accepted")
	assert.True(instance.betPlaced.IsSet())

	instance.room.Do(func(tx *game.Tx[State]) {
		require.NotNil(t, instance.pending)
		assert.Equal("call", instance.pending.action)
	})
}

func TestHandleBetCheckWhenNothingToCall(t *testing.T) {
	assert := assert.New(t)

	instance, senders := newTestHoldem(t, "a", "b")

	instance.room.Do(func(tx *game.Tx[State]) {
		instance.phase = bettingPhase
		instance.currentAsk = "a"
		instance.wager = 0
	})

	payload, err := json.Marshal(map[string]any{"action": "call"})
	require.NoError(t, err)
	instance.handleBet("a", senders["a"], payload)
	assert.Equal(1, senders["a"].errorCount(), "calling nothing is rejected")

	payload, err = json.Marshal(map[string]any{"action": "check"})
	require.NoError(t, err)
	instance.handleBet("a", senders["a"], payload)

	assert.Equal(1, senders["a"].errorCount())
	assert.True(instance.betPlaced.IsSet())
}
