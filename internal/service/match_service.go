package service

import (
	"context"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/snapshot"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type MatchService struct {
	db    *sqlx.DB
	store *store.TournamentStore
	log   *zap.Logger
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, log *zap.Logger) *MatchService {
	return &MatchService{db: db, store: store, log: log}
}

func (s *MatchService) GetMatch(ctx context.Context, tournamentID, matchID uuid.UUID) (*bracket.Match, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, lookupErr(ErrMatchNotFound, "get match", err)
	}
	if match.TournamentID != tournamentID {
		return nil, ErrMatchNotFound
	}
	return match, nil
}

// RecordResult decides a match for winnerID, or clears its result when
// winnerID is nil, and pushes the change through the rest of the bracket.
// Either the whole change is stored or none of it is.
//
// Two calls racing on the same match are not coordinated: the last one to
// commit wins.
func (s *MatchService) RecordResult(ctx context.Context, tournamentID, matchID uuid.UUID, winnerID *uuid.UUID) (*snapshot.Snapshot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin", err)
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, lookupErr(ErrTournamentNotFound, "get tournament", err)
	}
	if tournament.Status != bracket.TournamentLive {
		return nil, ErrNotLive
	}

	match, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, lookupErr(ErrMatchNotFound, "get match", err)
	}
	if match.TournamentID != tournamentID {
		return nil, ErrMatchNotFound
	}
	if match.Walkover() {
		return nil, ErrWalkover
	}

	if winnerID != nil {
		if match.Player1ID == nil || match.Player2ID == nil {
			return nil, ErrMatchNotReady
		}
		slot := match.SlotOf(*winnerID)
		if slot == 0 {
			return nil, ErrWinnerNotInMatch
		}
		match.Decide(slot)
	} else {
		match.ClearDecision()
	}

	if err := s.store.UpdateMatchTx(ctx, tx, match); err != nil {
		return nil, storageErr("update match", err)
	}

	p := &propagator{ctx: ctx, tx: tx, store: s.store, log: s.log, tournamentID: tournamentID}
	if err := p.advance(match); err != nil {
		return nil, err
	}

	snap, err := refreshSnapshot(ctx, tx, s.store, tournament)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit", err)
	}

	fields := []zap.Field{
		zap.String("tournament_id", tournamentID.String()),
		zap.String("match_id", matchID.String()),
		zap.Stringer("match", match.Ref()),
	}
	if winnerID != nil {
		s.log.Info("match decided", append(fields, zap.String("winner_id", winnerID.String()))...)
	} else {
		s.log.Info("match result cleared", fields...)
	}
	return snap, nil
}
