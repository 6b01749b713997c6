package ledger

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/utils"
)

var (
	ErrTooFewEntries   = errors.New("not enough entries")
	ErrUnsupportedSize = errors.New("unsupported bracket size")
)

type Side string

const (
	WinnersSide    Side = "winners"
	LosersSide     Side = "losers"
	ThirdPlaceSide Side = "third_place"
	FinalsSide     Side = "finals"
)

func (s Side) order() int {
	switch s {
	case WinnersSide:
		return 0
	case LosersSide:
		return 1
	case ThirdPlaceSide:
		return 2
	}
	return 3
}

type slotRef struct {
	match int
	slot  int
}

// plannedMatch is a match before it has been numbered. Next references are
// indexes into the plan.
type plannedMatch struct {
	side   Side
	round  int
	order  int
	key    int
	team1  *string
	team2  *string
	result *bracket.Result
	bye    bool

	winnerTo *slotRef
	loserTo  *slotRef
}

type plan struct {
	matches []plannedMatch
}

func (p *plan) add(side Side, round, order, key int) int {
	p.matches = append(p.matches, plannedMatch{side: side, round: round, order: order, key: key})
	return len(p.matches) - 1
}

func (p *plan) seat(ref slotRef, team *string) {
	if ref.slot == 1 {
		p.matches[ref.match].team1 = team
	} else {
		p.matches[ref.match].team2 = team
	}
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// generateRound1Pairs returns zero-based seed pairs so that the top seeds
// can only meet in the latest rounds.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		pairs = append(pairs, [2]int{rounds[i], rounds[i+1]})
	}
	return pairs
}

// Generate lays out every match of a fresh bracket, seeds the entries in the
// given order and numbers the matches so each one precedes its dependents.
func Generate(format bracket.Format, entries []string) ([]Row, error) {
	if len(entries) < 2 {
		return nil, fmt.Errorf("%w: need at least 2, got %d", ErrTooFewEntries, len(entries))
	}

	p := &plan{}
	switch f := format.(type) {
	case bracket.SingleElimination:
		if err := p.singleElimination(entries, f.ThirdPlaceMatch); err != nil {
			return nil, err
		}
	case bracket.DoubleElimination:
		if err := p.doubleElimination(entries); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: format %T", ErrUnsupportedSize, format)
	}
	return p.number(), nil
}

// winnersBracket builds the winners rounds with forward links and seeds
// round 1. It returns the plan indexes per round.
func (p *plan) winnersBracket(entries []string) [][]int {
	size := calcBracketSize(len(entries))
	totalRounds := int(math.Log2(float64(size)))

	rounds := make([][]int, totalRounds)
	for r := 1; r <= totalRounds; r++ {
		count := size >> r
		rounds[r-1] = make([]int, count)
		for i := range count {
			rounds[r-1][i] = p.add(WinnersSide, r, i+1, 2*r-1)
		}
	}
	for r := 0; r < totalRounds-1; r++ {
		for i, idx := range rounds[r] {
			p.matches[idx].winnerTo = &slotRef{match: rounds[r+1][i/2], slot: i%2 + 1}
		}
	}

	for i, pair := range generateRound1Pairs(size) {
		m := &p.matches[rounds[0][i]]
		if pair[0] < len(entries) {
			m.team1 = utils.Ptr(entries[pair[0]])
		}
		if pair[1] < len(entries) {
			m.team2 = utils.Ptr(entries[pair[1]])
		}
	}
	return rounds
}

func (p *plan) singleElimination(entries []string, thirdPlace bool) error {
	rounds := p.winnersBracket(entries)
	totalRounds := len(rounds)

	if thirdPlace {
		if totalRounds < 2 {
			return fmt.Errorf("%w: a third place match needs at least 4 entries", ErrUnsupportedSize)
		}
		if totalRounds == 2 && len(entries) != 4 {
			return fmt.Errorf("%w: a third place match needs both semifinals to be played", ErrUnsupportedSize)
		}
		third := p.add(ThirdPlaceSide, totalRounds, 1, 2*totalRounds-1)
		for i, idx := range rounds[totalRounds-2] {
			p.matches[idx].loserTo = &slotRef{match: third, slot: i + 1}
		}
	}

	p.advanceByes(rounds[0])
	return nil
}

// advanceByes settles round 1 matches with a single participant and moves
// that participant straight into its next slot.
func (p *plan) advanceByes(round1 []int) {
	for _, idx := range round1 {
		m := &p.matches[idx]
		var team *string
		switch {
		case m.team1 != nil && m.team2 == nil:
			team, m.result = m.team1, utils.Ptr(bracket.ResultTeam1)
		case m.team1 == nil && m.team2 != nil:
			team, m.result = m.team2, utils.Ptr(bracket.ResultTeam2)
		default:
			continue
		}
		m.bye = true
		if m.winnerTo != nil {
			p.seat(*m.winnerTo, team)
		}
	}
}

// doubleElimination adds a losers bracket fed by every winners round and a
// grand final between the two bracket champions.
func (p *plan) doubleElimination(entries []string) error {
	n := len(entries)
	if n < 4 || n&(n-1) != 0 {
		return fmt.Errorf("%w: double elimination needs a power of two of at least 4 entries, got %d", ErrUnsupportedSize, n)
	}

	wb := p.winnersBracket(entries)
	totalRounds := len(wb)
	lbRounds := 2 * (totalRounds - 1)

	lb := make([][]int, lbRounds)
	for i := 1; i <= lbRounds; i++ {
		count := n >> ((i + 3) / 2)
		lb[i-1] = make([]int, count)
		for m := range count {
			lb[i-1][m] = p.add(LosersSide, i, m+1, i+2)
		}
	}

	// losers round 1 pairs up the round 1 losers
	for m, idx := range lb[0] {
		p.matches[wb[0][2*m]].loserTo = &slotRef{match: idx, slot: 1}
		p.matches[wb[0][2*m+1]].loserTo = &slotRef{match: idx, slot: 2}
	}
	for j := 1; j <= totalRounds-1; j++ {
		// even losers rounds meet the players dropping from winners round j+1
		even := lb[2*j-1]
		prev := lb[2*j-2]
		drops := wb[j]
		for m, idx := range even {
			p.matches[prev[m]].winnerTo = &slotRef{match: idx, slot: 1}
			from := m
			if j%2 == 0 {
				from = len(drops) - 1 - m
			}
			p.matches[drops[from]].loserTo = &slotRef{match: idx, slot: 2}
		}
		if j == totalRounds-1 {
			break
		}
		// odd losers rounds halve the field
		for m, idx := range lb[2*j] {
			p.matches[even[2*m]].winnerTo = &slotRef{match: idx, slot: 1}
			p.matches[even[2*m+1]].winnerTo = &slotRef{match: idx, slot: 2}
		}
	}

	maxKey := 0
	for _, m := range p.matches {
		maxKey = max(maxKey, m.key)
	}
	final := p.add(FinalsSide, 1, 1, maxKey+1)
	p.matches[wb[totalRounds-1][0]].winnerTo = &slotRef{match: final, slot: 1}
	p.matches[lb[lbRounds-1][0]].winnerTo = &slotRef{match: final, slot: 2}
	return nil
}

// number sorts the plan into play order and turns plan indexes into match
// numbers starting at 1.
func (p *plan) number() []Row {
	order := make([]int, len(p.matches))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ma, mb := p.matches[a], p.matches[b]
		if ma.key != mb.key {
			return ma.key - mb.key
		}
		if ma.side != mb.side {
			return ma.side.order() - mb.side.order()
		}
		if ma.round != mb.round {
			return ma.round - mb.round
		}
		return ma.order - mb.order
	})

	numbers := make([]int, len(p.matches))
	for n, idx := range order {
		numbers[idx] = n + 1
	}

	rows := make([]Row, 0, len(order))
	for _, idx := range order {
		m := p.matches[idx]
		row := Row{
			Match: bracket.Match{
				MatchNumber:     numbers[idx],
				Team1:           m.team1,
				Team2:           m.team2,
				Result:          m.result,
				IsLosersBracket: m.side == LosersSide,
			},
			BracketSide: m.side,
			RoundNumber: m.round,
			MatchOrder:  m.order,
			IsBye:       m.bye,
		}
		if m.winnerTo != nil {
			row.NextMatchWinner = utils.Ptr(numbers[m.winnerTo.match])
			row.WinnerNextSlot = utils.Ptr(m.winnerTo.slot)
		}
		if m.loserTo != nil {
			row.NextMatchLoser = utils.Ptr(numbers[m.loserTo.match])
			row.LoserNextSlot = utils.Ptr(m.loserTo.slot)
		}
		rows = append(rows, row)
	}
	return rows
}
