package store

import (
	"context"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const matchOrder = `ORDER BY CASE stage
		WHEN 'main' THEN 0 WHEN 'winners' THEN 1 WHEN 'losers' THEN 2 WHEN 'finals' THEN 3 ELSE 4 END,
		round ASC, match_index ASC`

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	// Batches stay well under SQLite's bound parameter limit
	const batchSize = 500
	for start := 0; start < len(matches); start += batchSize {
		end := min(start+batchSize, len(matches))
		_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, stage, round, match_index, player1_id, player2_id, score1, score2, winner_id, meta)
		VALUES (:id, :tournament_id, :stage, :round, :match_index, :player1_id, :player2_id, :score1, :score2, :winner_id, :meta)`, matches[start:end])
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, s.db, "SELECT * FROM matches WHERE id = ?", id)
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, tx, "SELECT * FROM matches WHERE id = ?", id)
}

// GetMatchByRefTx looks a match up by its bracket coordinates.
func (s *TournamentStore) GetMatchByRefTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, ref bracket.MatchRef) (*bracket.Match, error) {
	return getMatch(ctx, tx, "SELECT * FROM matches WHERE tournament_id = ? AND stage = ? AND round = ? AND match_index = ?",
		tournamentID, ref.Stage, ref.Round, ref.MatchIndex)
}

func getMatch(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*bracket.Match, error) {
	var match bracket.Match
	if err := sqlx.GetContext(ctx, q, &match, query, args...); err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	return getMatches(ctx, s.db, tournamentID)
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	return getMatches(ctx, tx, tournamentID)
}

func getMatches(ctx context.Context, q sqlx.QueryerContext, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, q, &matches, "SELECT * FROM matches WHERE tournament_id = ? "+matchOrder, tournamentID)
	return matches, err
}

// UpdateMatchTx writes the mutable fields of a match. Meta is fixed at seeding
// time and is never rewritten here.
func (s *TournamentStore) UpdateMatchTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	res, err := tx.NamedExecContext(ctx, `UPDATE matches
		SET player1_id = :player1_id, player2_id = :player2_id, score1 = :score1, score2 = :score2, winner_id = :winner_id
		WHERE id = :id`, match)
	if err != nil {
		return err
	}
	return checkAffectedRows(res)
}

func (s *TournamentStore) DeleteMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE tournament_id = ?", tournamentID)
	return err
}
