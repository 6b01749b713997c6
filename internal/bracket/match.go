package bracket

import (
	"errors"
	"fmt"
)

var ErrInvalidResult = errors.New("invalid match result")

type Result string

const (
	ResultTeam1 Result = "team1"
	ResultTeam2 Result = "team2"
)

func (r Result) Valid() bool {
	return r == ResultTeam1 || r == ResultTeam2
}

func ParseResult(s string) (Result, error) {
	r := Result(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidResult, s)
	}
	return r, nil
}

// Match is one node of the bracket as reported by the ledger. MatchNumber is
// assigned by the ledger, is unique within a bracket and doubles as the graph
// node id. A nil team means the slot still depends on an undecided match.
type Match struct {
	MatchNumber int     `db:"match_number" json:"matchNumber"`
	Team1       *string `db:"team_1" json:"team1,omitempty"`
	Team2       *string `db:"team_2" json:"team2,omitempty"`
	Result      *Result `db:"result" json:"result,omitempty"`

	NextMatchWinner *int `db:"next_match_winner" json:"nextMatchWinner,omitempty"`
	NextMatchLoser  *int `db:"next_match_loser" json:"nextMatchLoser,omitempty"`

	IsLosersBracket bool `db:"is_losers_bracket" json:"isLosersBracket"`
}

func (m *Match) Decided() bool {
	return m.Result != nil
}

// Ready reports whether both participants are known.
func (m *Match) Ready() bool {
	return m.Team1 != nil && m.Team2 != nil
}

// Winner returns the team that takes the given result, or nil if that slot is empty.
func (m *Match) Winner(r Result) *string {
	switch r {
	case ResultTeam1:
		return m.Team1
	case ResultTeam2:
		return m.Team2
	}
	return nil
}

func (m *Match) Loser(r Result) *string {
	switch r {
	case ResultTeam1:
		return m.Team2
	case ResultTeam2:
		return m.Team1
	}
	return nil
}

// ResultEntry is a single proposed or submitted result.
type ResultEntry struct {
	MatchNumber int    `json:"matchNumber"`
	Result      Result `json:"result"`
}
