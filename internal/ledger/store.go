// Package ledger is the SQLite backed source of truth for brackets. It serves
// the paginated match feed and applies result batches atomically.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrAlreadyDecided    = errors.New("match already decided")
	ErrMatchNotReady     = errors.New("match is missing a participant")
	ErrBracketCompleted  = errors.New("bracket is already completed")
	ErrDuplicateEntry    = errors.New("match submitted more than once")
	ErrDuplicateEntrants = errors.New("entry names must be unique")
)

// Row is a stored match together with the bookkeeping the feed does not expose.
type Row struct {
	BracketID string `db:"bracket_id"`
	bracket.Match
	BracketSide    Side `db:"bracket_side"`
	RoundNumber    int  `db:"round_number"`
	MatchOrder     int  `db:"match_order"`
	WinnerNextSlot *int `db:"winner_next_slot"`
	LoserNextSlot  *int `db:"loser_next_slot"`
	IsBye          bool `db:"is_bye"`
}

// title reports whether deciding this match crowns the champion.
func (r *Row) title() bool {
	return r.NextMatchWinner == nil && (r.BracketSide == WinnersSide || r.BracketSide == FinalsSide)
}

type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const matchColumns = `bracket_id, match_number, bracket_side, round_number, match_order, team_1, team_2, result,
	next_match_winner, winner_next_slot, next_match_loser, loser_next_slot, is_losers_bracket, is_bye`

func (s *Store) CreateBracket(ctx context.Context, name string, format bracket.Format, entries []string) (*bracket.Bracket, error) {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntrants, e)
		}
		seen[e] = struct{}{}
	}

	rows, err := Generate(format, entries)
	if err != nil {
		return nil, err
	}

	b := &bracket.Bracket{
		ID:         uuid.New(),
		Name:       name,
		FormatName: format.Name(),
		ThirdPlace: bracket.ThirdPlace(format),
		Status:     bracket.BracketStarted,
		CreatedAt:  time.Now().UTC(),
	}
	for i := range rows {
		rows[i].BracketID = b.ID.String()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `INSERT INTO brackets (id, name, format, third_place, status, created_at)
		VALUES (:id, :name, :format, :third_place, :status, :created_at)`, b)
	if err != nil {
		return nil, fmt.Errorf("insert bracket: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, `INSERT INTO matches (`+matchColumns+`)
		VALUES (:bracket_id, :match_number, :bracket_side, :round_number, :match_order, :team_1, :team_2, :result,
		:next_match_winner, :winner_next_slot, :next_match_loser, :loser_next_slot, :is_losers_bracket, :is_bye)`, rows)
	if err != nil {
		return nil, fmt.Errorf("insert matches: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.logger.Info("bracket created", "bracket_id", b.ID, "format", b.FormatName, "entries", len(entries), "matches", len(rows))
	return b, nil
}

func (s *Store) GetBracket(ctx context.Context, id string) (*bracket.Bracket, error) {
	var b bracket.Bracket
	err := s.db.GetContext(ctx, &b, "SELECT id, name, format, third_place, status, created_at FROM brackets WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get bracket %s: %w", id, err)
	}
	return &b, nil
}

func (s *Store) ListBrackets(ctx context.Context) ([]bracket.Bracket, error) {
	var brackets []bracket.Bracket
	err := s.db.SelectContext(ctx, &brackets, "SELECT id, name, format, third_place, status, created_at FROM brackets ORDER BY created_at DESC")
	return brackets, err
}

// GetPage returns up to limit matches numbered after the cursor.
func (s *Store) GetPage(ctx context.Context, bracketID string, after *int, limit int) ([]bracket.Match, error) {
	var rows []Row
	err := s.db.SelectContext(ctx, &rows, `SELECT `+matchColumns+` FROM matches
		WHERE bracket_id = ? AND match_number > ?
		ORDER BY match_number ASC
		LIMIT ?`, bracketID, utils.OrZero(after), limit)
	if err != nil {
		return nil, fmt.Errorf("match page for %s: %w", bracketID, err)
	}

	page := make([]bracket.Match, 0, len(rows))
	for _, r := range rows {
		page = append(page, r.Match)
	}
	return page, nil
}

// Rows returns every stored match of a bracket with its bookkeeping columns.
func (s *Store) Rows(ctx context.Context, bracketID string) ([]Row, error) {
	var rows []Row
	err := s.db.SelectContext(ctx, &rows, `SELECT `+matchColumns+` FROM matches WHERE bracket_id = ? ORDER BY match_number ASC`, bracketID)
	return rows, err
}

// SubmitResults records the whole batch in one transaction. Entries are applied
// in match number order so a batch may decide a match and the one it feeds.
// Any rejected entry rolls the whole batch back.
func (s *Store) SubmitResults(ctx context.Context, bracketID string, entries []bracket.ResultEntry) (*bracket.Outcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var status bracket.BracketStatus
	if err := tx.GetContext(ctx, &status, "SELECT status FROM brackets WHERE id = ?", bracketID); err != nil {
		return nil, fmt.Errorf("get bracket %s: %w", bracketID, err)
	}
	if status == bracket.BracketCompleted {
		return nil, ErrBracketCompleted
	}

	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b bracket.ResultEntry) int { return a.MatchNumber - b.MatchNumber })

	outcome := &bracket.Outcome{}
	for i, e := range sorted {
		if i > 0 && sorted[i-1].MatchNumber == e.MatchNumber {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateEntry, e.MatchNumber)
		}
		champion, err := s.apply(ctx, tx, bracketID, e)
		if err != nil {
			return nil, err
		}
		if champion != nil {
			outcome.Signals = append(outcome.Signals, bracket.Signal{Kind: bracket.SignalChampionDecided, Subject: *champion})
		}
	}

	var undecided int
	if err := tx.GetContext(ctx, &undecided, "SELECT COUNT(*) FROM matches WHERE bracket_id = ? AND result IS NULL", bracketID); err != nil {
		return nil, err
	}
	if undecided == 0 {
		if _, err := tx.ExecContext(ctx, "UPDATE brackets SET status = ? WHERE id = ?", bracket.BracketCompleted, bracketID); err != nil {
			return nil, err
		}
		outcome.Signals = append(outcome.Signals, bracket.Signal{Kind: bracket.SignalFinalized, Subject: bracketID})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.logger.Info("results recorded", "bracket_id", bracketID, "entries", len(entries), "signals", len(outcome.Signals))
	return outcome, nil
}

// apply records one result and seats both participants in their next
// matches. It returns the champion when the match decided the title.
func (s *Store) apply(ctx context.Context, tx *sqlx.Tx, bracketID string, e bracket.ResultEntry) (*string, error) {
	if !e.Result.Valid() {
		return nil, fmt.Errorf("match %d: %w", e.MatchNumber, bracket.ErrInvalidResult)
	}

	var row Row
	err := tx.GetContext(ctx, &row, `SELECT `+matchColumns+` FROM matches WHERE bracket_id = ? AND match_number = ?`, bracketID, e.MatchNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrMatchNotFound, e.MatchNumber)
	}
	if err != nil {
		return nil, err
	}
	if row.Decided() {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyDecided, e.MatchNumber)
	}
	if !row.Ready() {
		return nil, fmt.Errorf("%w: %d", ErrMatchNotReady, e.MatchNumber)
	}

	_, err = tx.ExecContext(ctx, "UPDATE matches SET result = ? WHERE bracket_id = ? AND match_number = ?", e.Result, bracketID, e.MatchNumber)
	if err != nil {
		return nil, fmt.Errorf("record match %d: %w", e.MatchNumber, err)
	}

	winner, loser := row.Winner(e.Result), row.Loser(e.Result)
	if err := seat(ctx, tx, bracketID, row.NextMatchWinner, row.WinnerNextSlot, winner); err != nil {
		return nil, err
	}
	if err := seat(ctx, tx, bracketID, row.NextMatchLoser, row.LoserNextSlot, loser); err != nil {
		return nil, err
	}

	if row.title() {
		return winner, nil
	}
	return nil, nil
}

func seat(ctx context.Context, tx *sqlx.Tx, bracketID string, next, slot *int, team *string) error {
	if next == nil || team == nil {
		return nil
	}

	query := "UPDATE matches SET team_1 = ? WHERE bracket_id = ? AND match_number = ?"
	if utils.OrDefault(slot, 1) == 2 {
		query = "UPDATE matches SET team_2 = ? WHERE bracket_id = ? AND match_number = ?"
	}
	res, err := tx.ExecContext(ctx, query, *team, bracketID, *next)
	if err != nil {
		return fmt.Errorf("advance %s to match %d: %w", *team, *next, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("advance %s: %w: %d", *team, ErrMatchNotFound, *next)
	}
	return nil
}
