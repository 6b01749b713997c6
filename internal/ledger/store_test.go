package ledger

import (
	"context"
	"database/sql"
	"testing"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/db"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file:"+uuid.NewString()+"?mode=memory&cache=shared&_foreign_keys=on")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	// one connection keeps every query on the same in-memory database
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database.DB), "Failed to apply migrations")
	return database
}

func createBracket(t *testing.T, s *Store, format bracket.Format, entries ...string) string {
	t.Helper()
	b, err := s.CreateBracket(context.Background(), "Test Bracket", format, entries)
	require.NoError(t, err)
	return b.ID.String()
}

func matchByNumber(t *testing.T, s *Store, bracketID string, n int) Row {
	t.Helper()
	rows, err := s.Rows(context.Background(), bracketID)
	require.NoError(t, err)
	for _, r := range rows {
		if r.MatchNumber == n {
			return r
		}
	}
	t.Fatalf("match %d not found", n)
	return Row{}
}

func TestCreateAndGetBracket(t *testing.T) {
	s := NewStore(setupTestDB(t), nil)
	ctx := context.Background()

	created, err := s.CreateBracket(ctx, "Spring Cup", bracket.SingleElimination{ThirdPlaceMatch: true}, []string{"A", "B", "C", "D"})
	require.NoError(t, err)

	fetched, err := s.GetBracket(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "Spring Cup", fetched.Name)
	assert.Equal(t, bracket.BracketStarted, fetched.Status)
	assert.Equal(t, bracket.SingleElimination{ThirdPlaceMatch: true}, fetched.Format())

	list, err := s.ListBrackets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	_, err = s.GetBracket(ctx, uuid.NewString())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateBracketRejectsDuplicateEntrants(t *testing.T) {
	s := NewStore(setupTestDB(t), nil)

	_, err := s.CreateBracket(context.Background(), "Dupes", bracket.SingleElimination{}, []string{"A", "B", "A"})
	assert.ErrorIs(t, err, ErrDuplicateEntrants)
}

func TestGetPage(t *testing.T) {
	s := NewStore(setupTestDB(t), nil)
	id := createBracket(t, s, bracket.DoubleElimination{}, entryNames(8)...)
	ctx := context.Background()

	var after *int
	var pages [][]int
	for {
		page, err := s.GetPage(ctx, id, after, 5)
		require.NoError(t, err)
		var numbers []int
		for _, m := range page {
			numbers = append(numbers, m.MatchNumber)
		}
		pages = append(pages, numbers)
		if len(page) < 5 {
			break
		}
		last := page[len(page)-1].MatchNumber
		after = &last
	}

	assert.Equal(t, [][]int{
		{1, 2, 3, 4, 5},
		{6, 7, 8, 9, 10},
		{11, 12, 13, 14},
	}, pages)

	page, err := s.GetPage(ctx, uuid.NewString(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestSubmitResultsAdvancesParticipants(t *testing.T) {
	s := NewStore(setupTestDB(t), nil)
	id := createBracket(t, s, bracket.SingleElimination{}, "A", "B", "C", "D")
	ctx := context.Background()

	// A vs D and B vs C feed the final
	outcome, err := s.SubmitResults(ctx, id, []bracket.ResultEntry{
		{MatchNumber: 2, Result: bracket.ResultTeam2},
		{MatchNumber: 1, Result: bracket.ResultTeam1},
	})
	require.NoError(t, err)
	assert.Empty(t, outcome.Signals)

	final := matchByNumber(t, s, id, 3)
	assert.Equal(t, "A", *final.Team1)
	assert.Equal(t, "C", *final.Team2)

	outcome, err = s.SubmitResults(ctx, id, []bracket.ResultEntry{{MatchNumber: 3, Result: bracket.ResultTeam2}})
	require.NoError(t, err)
	assert.Equal(t, []bracket.Signal{
		{Kind: bracket.SignalChampionDecided, Subject: "C"},
		{Kind: bracket.SignalFinalized, Subject: id},
	}, outcome.Signals)

	b, err := s.GetBracket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, bracket.BracketCompleted, b.Status)

	_, err = s.SubmitResults(ctx, id, []bracket.ResultEntry{{MatchNumber: 3, Result: bracket.ResultTeam1}})
	assert.ErrorIs(t, err, ErrBracketCompleted)
}

func TestSubmitResultsDecidesDependentsInOneBatch(t *testing.T) {
	s := NewStore(setupTestDB(t), nil)
	id := createBracket(t, s, bracket.SingleElimination{}, "A", "B", "C", "D")

	outcome, err := s.SubmitResults(context.Background(), id, []bracket.ResultEntry{
		{MatchNumber: 3, Result: bracket.ResultTeam1},
		{MatchNumber: 1, Result: bracket.ResultTeam1},
		{MatchNumber: 2, Result: bracket.ResultTeam1},
	})
	require.NoError(t, err)
	assert.Contains(t, outcome.Signals, bracket.Signal{Kind: bracket.SignalChampionDecided, Subject: "A"})
}

func TestSubmitResultsThirdPlace(t *testing.T) {
	s := NewStore(setupTestDB(t), nil)
	id := createBracket(t, s, bracket.SingleElimination{ThirdPlaceMatch: true}, "A", "B", "C", "D")
	ctx := context.Background()

	_, err := s.SubmitResults(ctx, id, []bracket.ResultEntry{
		{MatchNumber: 1, Result: bracket.ResultTeam1},
		{MatchNumber: 2, Result: bracket.ResultTeam1},
	})
	require.NoError(t, err)

	third := matchByNumber(t, s, id, 4)
	assert.Equal(t, ThirdPlaceSide, third.BracketSide)
	assert.Equal(t, "D", *third.Team1)
	assert.Equal(t, "C", *third.Team2)

	outcome, err := s.SubmitResults(ctx, id, []bracket.ResultEntry{{MatchNumber: 4, Result: bracket.ResultTeam1}})
	require.NoError(t, err)
	assert.Empty(t, outcome.Signals, "third place does not crown anyone")
}

func TestSubmitResultsIsAtomic(t *testing.T) {
	testCases := []struct {
		name    string
		entries []bracket.ResultEntry
		err     error
	}{
		{
			name:    "unknown match",
			entries: []bracket.ResultEntry{{MatchNumber: 1, Result: bracket.ResultTeam1}, {MatchNumber: 42, Result: bracket.ResultTeam1}},
			err:     ErrMatchNotFound,
		},
		{
			name:    "match not ready",
			entries: []bracket.ResultEntry{{MatchNumber: 1, Result: bracket.ResultTeam1}, {MatchNumber: 3, Result: bracket.ResultTeam1}},
			err:     ErrMatchNotReady,
		},
		{
			name:    "invalid result",
			entries: []bracket.ResultEntry{{MatchNumber: 1, Result: bracket.ResultTeam1}, {MatchNumber: 2, Result: "draw"}},
			err:     bracket.ErrInvalidResult,
		},
		{
			name:    "duplicate entry",
			entries: []bracket.ResultEntry{{MatchNumber: 1, Result: bracket.ResultTeam1}, {MatchNumber: 1, Result: bracket.ResultTeam2}},
			err:     ErrDuplicateEntry,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(setupTestDB(t), nil)
			id := createBracket(t, s, bracket.SingleElimination{}, "A", "B", "C", "D")

			_, err := s.SubmitResults(context.Background(), id, tc.entries)
			assert.ErrorIs(t, err, tc.err)

			rows, err := s.Rows(context.Background(), id)
			require.NoError(t, err)
			for _, r := range rows {
				assert.Nil(t, r.Result, "match %d must stay undecided", r.MatchNumber)
			}
			assert.Nil(t, rows[2].Team1)
		})
	}
}

func TestSubmitResultsRejectsDecidedMatch(t *testing.T) {
	s := NewStore(setupTestDB(t), nil)
	id := createBracket(t, s, bracket.SingleElimination{}, "A", "B", "C", "D", "E")

	// match 1 is A's bye
	_, err := s.SubmitResults(context.Background(), id, []bracket.ResultEntry{{MatchNumber: 1, Result: bracket.ResultTeam2}})
	assert.ErrorIs(t, err, ErrAlreadyDecided)
}

func TestSubmitResultsUnknownBracket(t *testing.T) {
	s := NewStore(setupTestDB(t), nil)

	_, err := s.SubmitResults(context.Background(), uuid.NewString(), []bracket.ResultEntry{{MatchNumber: 1, Result: bracket.ResultTeam1}})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDoubleEliminationPlaysOut(t *testing.T) {
	s := NewStore(setupTestDB(t), nil)
	id := createBracket(t, s, bracket.DoubleElimination{}, "A", "B", "C", "D")
	ctx := context.Background()

	// A beats D, B beats C, A beats B, D beats C, B beats D, B wins the grand final
	steps := []bracket.ResultEntry{
		{MatchNumber: 1, Result: bracket.ResultTeam1},
		{MatchNumber: 2, Result: bracket.ResultTeam1},
		{MatchNumber: 3, Result: bracket.ResultTeam1},
		{MatchNumber: 4, Result: bracket.ResultTeam1},
		{MatchNumber: 5, Result: bracket.ResultTeam2},
	}
	for _, step := range steps {
		outcome, err := s.SubmitResults(ctx, id, []bracket.ResultEntry{step})
		require.NoError(t, err, "match %d", step.MatchNumber)
		assert.Empty(t, outcome.Signals)
	}

	grandFinal := matchByNumber(t, s, id, 6)
	assert.Equal(t, "A", *grandFinal.Team1)
	assert.Equal(t, "B", *grandFinal.Team2)

	outcome, err := s.SubmitResults(ctx, id, []bracket.ResultEntry{{MatchNumber: 6, Result: bracket.ResultTeam2}})
	require.NoError(t, err)
	assert.Equal(t, []bracket.Signal{
		{Kind: bracket.SignalChampionDecided, Subject: "B"},
		{Kind: bracket.SignalFinalized, Subject: id},
	}, outcome.Signals)
}
