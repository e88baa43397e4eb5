package cards

import (
	"errors"
	"sort"
)

// Hand categories, lower is better. Rank 0 is the best conceivable
// category (a straight flush, royal included).
const (
	StraightFlush = iota
	FourOfAKind
	FullHouse
	Flush
	Straight
	ThreeOfAKind
	TwoPair
	OnePair
	HighCard
)

var ErrHandSize = errors.New("hand must contain 5 to 7 cards")

// Evaluate scores a 5-7 card set (hole cards plus community cards) as a
// single integer where lower is strictly better. The score packs the
// category into the high bits and up to five kicker ranks below it, so
// comparing two scores reproduces standard poker hand ordering
// including kicker comparison within a category. Equal scores are ties.
func Evaluate(hand []Card) (int, error) {
	if len(hand) < 5 || len(hand) > 7 {
		return 0, ErrHandSize
	}

	best := -1

	combinations(len(hand), 5, func(indexes []int) {
		five := [5]Card{}
		for i, idx := range indexes {
			five[i] = hand[idx]
		}

		score := scoreFive(five[:])

		if best < 0 || score < best {
			best = score
		}
	})

	return best, nil
}

// Winners scores every identity's hole cards against the shared
// community cards and returns all identities achieving the minimum
// score, sorted for determinism. Multi-way ties return every tied id.
func Winners(community []Card, holes map[string][]Card) ([]string, error) {
	best := -1
	var winners []string

	ids := make([]string, 0, len(holes))
	for id := range holes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		hand := make([]Card, 0, len(community)+len(holes[id]))
		hand = append(hand, community...)
		hand = append(hand, holes[id]...)

		score, err := Evaluate(hand)
		if err != nil {
			return nil, err
		}

		switch {
		case best < 0 || score < best:
			best = score
			winners = []string{id}
		case score == best:
			winners = append(winners, id)
		}
	}

	return winners, nil
}

// scoreFive packs category<<20 plus five 4-bit kicker slots. Kickers
// are stored as 14-rank so that a higher rank yields a lower score.
func scoreFive(hand []Card) int {
	counts := map[Rank]int{}
	flush := true

	for i, card := range hand {
		counts[card.Rank]++
		if i > 0 && card.Suit != hand[0].Suit {
			flush = false
		}
	}

	// Distinct ranks ordered by count desc, then rank desc.
	ranks := make([]Rank, 0, len(counts))
	for rank := range counts {
		ranks = append(ranks, rank)
	}
	sort.Slice(ranks, func(i, j int) bool {
		if counts[ranks[i]] != counts[ranks[j]] {
			return counts[ranks[i]] > counts[ranks[j]]
		}
		return ranks[i] > ranks[j]
	})

	straightHigh, straight := straightHighCard(ranks, counts)

	var category int
	var kickers []Rank

	switch {
	case straight && flush:
		category = StraightFlush
		kickers = []Rank{straightHigh}
	case counts[ranks[0]] == 4:
		category = FourOfAKind
		kickers = ranks[:2]
	case counts[ranks[0]] == 3 && counts[ranks[1]] >= 2:
		category = FullHouse
		kickers = ranks[:2]
	case flush:
		category = Flush
		kickers = ranks
	case straight:
		category = Straight
		kickers = []Rank{straightHigh}
	case counts[ranks[0]] == 3:
		category = ThreeOfAKind
		kickers = ranks[:3]
	case counts[ranks[0]] == 2 && counts[ranks[1]] == 2:
		category = TwoPair
		kickers = ranks[:3]
	case counts[ranks[0]] == 2:
		category = OnePair
		kickers = ranks[:4]
	default:
		category = HighCard
		kickers = ranks
	}

	score := category << 20
	shift := 16
	for _, rank := range kickers {
		score |= int(14-rank) << shift
		shift -= 4
	}

	return score
}

// straightHighCard reports whether the five cards form a straight and
// its high card. The wheel (A-2-3-4-5) counts with high card five.
func straightHighCard(ranks []Rank, counts map[Rank]int) (Rank, bool) {
	if len(counts) != 5 {
		return 0, false
	}

	sorted := make([]Rank, len(ranks))
	copy(sorted, ranks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if sorted[4]-sorted[0] == 4 {
		return sorted[4], true
	}

	// Wheel: A,2,3,4,5.
	if sorted[4] == Ace && sorted[3] == Five && sorted[0] == Two && sorted[3]-sorted[0] == 3 {
		return Five, true
	}

	return 0, false
}

// combinations invokes fn with every k-sized index combination of n.
func combinations(n, k int, fn func(indexes []int)) {
	indexes := make([]int, k)
	for i := range indexes {
		indexes[i] = i
	}

	for {
		fn(indexes)

		i := k - 1
		for i >= 0 && indexes[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		indexes[i]++
		for j := i + 1; j < k; j++ {
			indexes[j] = indexes[j-1] + 1
		}
	}
}
