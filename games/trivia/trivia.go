package trivia

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/velvetgames/partyhub/game"
	"github.com/velvetgames/partyhub/pkg/waitx"
	"github.com/velvetgames/partyhub/schemas"
)

const TypeId = "trivia"

type phase int

const (
	loadPhase phase = iota
	respondPhase
	votePhase
	resultsPhase
	leaderboardPhase
)

const (
	totalRounds       = 3
	respondTime       = 60 * time.Second
	voteTime          = 20 * time.Second
	leaderboardPause  = 8 * time.Second
	maxResponseLength = 200
	basePoints        = 100
)

// State is one player's score sheet.
type State struct {
	Score int
}

// prompt is one round entry: the text plus the two players assigned to
// answer it and what they wrote.
type prompt struct {
	id        int
	text      string
	authors   [2]string
	responses map[string]string
	votes     map[string]int // voterId -> +1 (first author) / -1 (second)
}

type trivia struct {
	room *game.Room[State]

	// Mutated only inside room.Do closures.
	phase         phase
	round         int
	prompts       []*prompt
	assignments   map[string][]int // playerId -> prompt ids this round
	responseCount *waitx.Counter
	votingPrompt  int
	poolCursor    int
	poolOrder     []int
}

func New(code, creatorId string, lookup game.Lookup, endFunc game.EndFunc) game.Instance {
	config := game.Config{
		TypeId:          TypeId,
		Name:            "Quip Clash",
		MinPlayers:      3,
		MaxPlayers:      8,
		JoinAfterBegin:  false,
		LeaveAfterBegin: false,
	}

	instance := &trivia{
		responseCount: &waitx.Counter{},
		poolOrder:     rand.Perm(len(promptPool)),
	}
	instance.room = game.NewRoom(code, creatorId, config, lookup, endFunc, func() *State {
		return &State{}
	})
	instance.room.SetHooks(instance.beginRound, instance.registerHandlers)

	return instance.room
}

func (trivia *trivia) beginRound() {
	for round := 1; round <= totalRounds; round++ {
		if err := trivia.loadRound(round); err != nil {
			trivia.room.Abort(err)
			return
		}

		trivia.collectResponses()
		trivia.runVotes()
		trivia.showLeaderboard(round == totalRounds)

		if round < totalRounds {
			waitx.WaitFor(leaderboardPause)
		}
	}

	trivia.room.End(game.ReasonEnded, "Thanks for playing!")
}

// nextPromptText draws from the shared pool without replacement,
// reshuffling once exhausted.
func (trivia *trivia) nextPromptText() string {
	if trivia.poolCursor >= len(trivia.poolOrder) {
		trivia.poolOrder = rand.Perm(len(promptPool))
		trivia.poolCursor = 0
	}

	text := promptPool[trivia.poolOrder[trivia.poolCursor]]
	trivia.poolCursor++
	return text
}

// loadRound draws one prompt per player and assigns each player exactly
// two prompts so that every prompt has exactly two distinct authors.
func (trivia *trivia) loadRound(round int) error {
	var loadErr error

	trivia.room.Do(func(tx *game.Tx[State]) {
		trivia.phase = loadPhase
		trivia.round = round
		trivia.responseCount.Reset()

		seats := tx.Seats()

		trivia.prompts = make([]*prompt, len(seats))
		for i := range seats {
			trivia.prompts[i] = &prompt{
				id:        i,
				text:      trivia.nextPromptText(),
				responses: map[string]string{},
				votes:     map[string]int{},
			}
		}

		assignments, err := pairAssignments(len(seats))
		if err != nil {
			loadErr = err
			return
		}

		trivia.assignments = map[string][]int{}
		for i, seat := range seats {
			trivia.assignments[seat] = assignments[i]

			for _, promptId := range assignments[i] {
				slot := 0
				if trivia.prompts[promptId].authors[0] != "" {
					slot = 1
				}
				trivia.prompts[promptId].authors[slot] = seat
			}
		}

		tx.Broadcast(schemas.EventTriviaRound, map[string]any{"round": round})

		type assignedPrompt struct {
			PromptId int    `json:"promptId"`
			Text     string `json:"text"`
		}

		for _, seat := range seats {
			var assigned []assignedPrompt
			for _, promptId := range trivia.assignments[seat] {
				assigned = append(assigned, assignedPrompt{
					PromptId: promptId,
					Text:     trivia.prompts[promptId].text,
				})
			}
			tx.SendTo(seat, schemas.EventTriviaPrompts, map[string]any{
				"round":   round,
				"prompts": assigned,
			})
		}

		trivia.phase = respondPhase
	})

	return loadErr
}

// pairAssignments builds the per-player prompt pairs from a pool
// holding two slots per prompt index: each player takes the first
// available slot, then the first slot not equal to it. A shuffle that
// strands a player with two copies of the same prompt is retried; the
// cyclic pairing is a guaranteed-valid fallback.
func pairAssignments(players int) ([][]int, error) {
	if players < 2 {
		return nil, fmt.Errorf("pairing needs at least 2 players, got %d", players)
	}

	for attempt := 0; attempt < 32; attempt++ {
		slots := make([]int, 0, players*2)
		for i := 0; i < players; i++ {
			slots = append(slots, i, i)
		}
		rand.Shuffle(len(slots), func(i, j int) {
			slots[i], slots[j] = slots[j], slots[i]
		})

		assignments, ok := assignFromSlots(slots, players)
		if ok {
			return assignments, nil
		}
	}

	assignments := make([][]int, players)
	for i := 0; i < players; i++ {
		assignments[i] = []int{i, (i + 1) % players}
	}
	return assignments, nil
}

func assignFromSlots(slots []int, players int) ([][]int, bool) {
	assignments := make([][]int, players)

	for player := 0; player < players; player++ {
		first := slots[0]
		slots = slots[1:]

		second := -1
		for i, slot := range slots {
			if slot != first {
				second = i
				break
			}
		}
		if second < 0 {
			return nil, false
		}

		assignments[player] = []int{first, slots[second]}
		slots = append(slots[:second], slots[second+1:]...)
	}

	return assignments, true
}

// collectResponses waits out the response deadline, preempted as soon
// as all expected responses (two per player) have arrived.
func (trivia *trivia) collectResponses() {
	expected := 0
	trivia.room.Do(func(tx *game.Tx[State]) {
		expected = len(tx.Seats()) * 2
	})

	waitx.WaitUntilFunc(func() bool {
		return trivia.responseCount.Value() >= expected
	}, waitx.Options{
		Timeout:          respondTime,
		ResolveOnTimeout: true,
	})
}

// runVotes presents each contested prompt's two responses anonymized
// to everyone except the authors, tallies the net vote and awards
// round-scaled points.
func (trivia *trivia) runVotes() {
	promptCount := 0
	trivia.room.Do(func(tx *game.Tx[State]) {
		trivia.phase = votePhase
		promptCount = len(trivia.prompts)
	})

	for promptId := 0; promptId < promptCount; promptId++ {
		eligible := 0

		trivia.room.Do(func(tx *game.Tx[State]) {
			current := trivia.prompts[promptId]
			trivia.votingPrompt = promptId

			if len(current.responses) < 2 {
				// Zero or one collected response: reported to all
				// without a vote.
				tx.Broadcast(schemas.EventTriviaUncontested, map[string]any{
					"promptId":  promptId,
					"text":      current.text,
					"responses": current.responses,
				})
				trivia.votingPrompt = -1
				return
			}

			payload := map[string]any{
				"promptId": promptId,
				"text":     current.text,
				"answers": []string{
					current.responses[current.authors[0]],
					current.responses[current.authors[1]],
				},
			}

			for _, seat := range tx.Seats() {
				if seat == current.authors[0] || seat == current.authors[1] {
					continue
				}
				eligible++
				tx.SendTo(seat, schemas.EventTriviaVoteStart, payload)
			}
		})

		if eligible == 0 {
			continue
		}

		voted := func() bool {
			count := 0
			trivia.room.Do(func(tx *game.Tx[State]) {
				count = len(trivia.prompts[promptId].votes)
			})
			return count >= eligible
		}

		waitx.WaitUntilFunc(voted, waitx.Options{
			Timeout:          voteTime,
			ResolveOnTimeout: true,
		})

		trivia.scorePrompt(promptId)
	}

	trivia.room.Do(func(tx *game.Tx[State]) {
		trivia.votingPrompt = -1
	})
}

func (trivia *trivia) scorePrompt(promptId int) {
	trivia.room.Do(func(tx *game.Tx[State]) {
		current := trivia.prompts[promptId]
		trivia.votingPrompt = -1

		net := 0
		for _, vote := range current.votes {
			net += vote
		}

		points := basePoints * trivia.round
		awards := map[string]int{}

		switch {
		case net > 0:
			awards[current.authors[0]] = points
		case net < 0:
			awards[current.authors[1]] = points
		default:
			awards[current.authors[0]] = points / 2
			awards[current.authors[1]] = points / 2
		}

		for seat, amount := range awards {
			if entry, ok := tx.Player(seat); ok {
				entry.State.Score += amount
			}
		}

		tx.Broadcast(schemas.EventTriviaVoteResult, map[string]any{
			"promptId": promptId,
			"text":     current.text,
			"authors":  current.authors,
			"net":      net,
			"awards":   awards,
		})
	})
}

type standing struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

func (trivia *trivia) showLeaderboard(final bool) {
	trivia.room.Do(func(tx *game.Tx[State]) {
		trivia.phase = leaderboardPhase

		var standings []standing
		for _, seat := range tx.Seats() {
			entry, _ := tx.Player(seat)
			standings = append(standings, standing{
				Id:       seat,
				Username: entry.Username,
				Score:    entry.State.Score,
			})
		}

		sort.SliceStable(standings, func(i, j int) bool {
			return standings[i].Score > standings[j].Score
		})

		tx.Broadcast(schemas.EventTriviaLeaderboard, map[string]any{
			"final":     final,
			"standings": standings,
		})
	})
}

func (trivia *trivia) registerHandlers(userId string, sender game.Sender) {
	sender.On(schemas.EventQuestionResponse, func(data json.RawMessage) {
		trivia.handleResponse(userId, sender, data)
	})

	sender.On(schemas.EventVote, func(data json.RawMessage) {
		trivia.handleVote(userId, sender, data)
	})
}

func (trivia *trivia) handleResponse(userId string, sender game.Sender, data json.RawMessage) {
	var payload struct {
		PromptId int    `json:"promptId"`
		Text     string `json:"text"`
	}

	if err := json.Unmarshal(data, &payload); err != nil || payload.Text == "" {
		sender.Emit(schemas.EventGameError, schemas.GameError{
			Module:  schemas.EventQuestionResponse,
			Message: "response text is required",
		})
		return
	}

	if len(payload.Text) > maxResponseLength {
		sender.Emit(schemas.EventGameError, schemas.GameError{
			Module:  schemas.EventQuestionResponse,
			Message: "response is too long",
		})
		return
	}

	trivia.room.Do(func(tx *game.Tx[State]) {
		if trivia.phase != respondPhase {
			sender.Emit(schemas.EventGameError, schemas.GameError{
				Module:  schemas.EventQuestionResponse,
				Message: "responses are not being accepted right now",
			})
			return
		}

		assigned := false
		for _, promptId := range trivia.assignments[userId] {
			if promptId == payload.PromptId {
				assigned = true
				break
			}
		}

		if !assigned || payload.PromptId < 0 || payload.PromptId >= len(trivia.prompts) {
			sender.Emit(schemas.EventGameError, schemas.GameError{
				Module:  schemas.EventQuestionResponse,
				Message: "that prompt is not yours to answer",
			})
			return
		}

		current := trivia.prompts[payload.PromptId]
		if _, already := current.responses[userId]; already {
			return
		}

		current.responses[userId] = payload.Text
		trivia.responseCount.Add(1)
	})
}

func (trivia *trivia) handleVote(userId string, sender game.Sender, data json.RawMessage) {
	var payload struct {
		Vote int `json:"vote"`
	}

	if err := json.Unmarshal(data, &payload); err != nil || (payload.Vote != 1 && payload.Vote != -1) {
		sender.Emit(schemas.EventGameError, schemas.GameError{
			Module:  schemas.EventVote,
			Message: "vote must be +1 or -1",
		})
		return
	}

	trivia.room.Do(func(tx *game.Tx[State]) {
		if trivia.phase != votePhase || trivia.votingPrompt < 0 {
			sender.Emit(schemas.EventGameError, schemas.GameError{
				Module:  schemas.EventVote,
				Message: "there is nothing to vote on right now",
			})
			return
		}

		current := trivia.prompts[trivia.votingPrompt]

		if userId == current.authors[0] || userId == current.authors[1] {
			sender.Emit(schemas.EventGameError, schemas.GameError{
				Module:  schemas.EventVote,
				Message: "authors cannot vote on their own prompt",
			})
			return
		}

		if _, already := current.votes[userId]; already {
			return
		}

		current.votes[userId] = payload.Vote
	})
}
