package service

import (
	"context"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/snapshot"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/AdamBeresnev/bracket-engine/internal/topology"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type TournamentService struct {
	db    *sqlx.DB
	store *store.TournamentStore
	log   *zap.Logger
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, log *zap.Logger) *TournamentService {
	return &TournamentService{db: db, store: store, log: log}
}

type ParticipantInput struct {
	Name string
}

type TournamentData struct {
	Tournament   *bracket.Tournament
	Participants []bracket.Participant
	Matches      []bracket.Match
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, lookupErr(ErrTournamentNotFound, "get tournament", err)
	}

	participants, err := s.store.GetParticipants(ctx, id)
	if err != nil {
		return nil, storageErr("get participants", err)
	}

	matches, err := s.store.GetMatches(ctx, id)
	if err != nil {
		return nil, storageErr("get matches", err)
	}

	return &TournamentData{
		Tournament:   tournament,
		Participants: participants,
		Matches:      matches,
	}, nil
}

func (s *TournamentService) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	tournaments, err := s.store.ListTournaments(ctx)
	if err != nil {
		return nil, storageErr("list tournaments", err)
	}
	return tournaments, nil
}

// CreateTournament stores a draft tournament with its roster. Seeds follow
// the order of inputs, starting at 1.
func (s *TournamentService) CreateTournament(ctx context.Context, name string, kind bracket.TournamentType, inputs []ParticipantInput) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, ErrNameRequired
	}
	if !kind.Valid() {
		return uuid.Nil, ErrInvalidType
	}
	if len(inputs) == 0 {
		return uuid.Nil, ErrNoParticipants
	}

	tournamentID := uuid.New()
	participants := make([]bracket.Participant, 0, len(inputs))
	for i, input := range inputs {
		displayName := strings.TrimSpace(input.Name)
		if displayName == "" {
			return uuid.Nil, ErrParticipantName
		}
		participants = append(participants, bracket.Participant{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			DisplayName:  displayName,
			Seed:         i + 1,
		})
	}

	now := time.Now().UTC()
	tournament := bracket.Tournament{
		ID:        tournamentID,
		Name:      name,
		Status:    bracket.TournamentDraft,
		Type:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, storageErr("begin", err)
	}
	defer tx.Rollback()

	if err := s.store.CreateTournament(ctx, tx, &tournament); err != nil {
		return uuid.Nil, storageErr("create tournament", err)
	}
	if err := s.store.CreateParticipants(ctx, tx, participants); err != nil {
		return uuid.Nil, storageErr("create participants", err)
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, storageErr("commit", err)
	}

	s.log.Info("tournament created",
		zap.String("tournament_id", tournamentID.String()),
		zap.String("type", string(kind)),
		zap.Int("participants", len(participants)))
	return tournamentID, nil
}

// Open moves a draft tournament to open.
func (s *TournamentService) Open(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, bracket.TournamentOpen, nil)
}

// Start seeds the bracket and makes the tournament live. Starting a live
// tournament again discards every result and seeds from scratch.
func (s *TournamentService) Start(ctx context.Context, id uuid.UUID) (*snapshot.Snapshot, error) {
	var snap *snapshot.Snapshot
	err := s.transition(ctx, id, bracket.TournamentLive, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		var err error
		snap, err = s.seed(ctx, tx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Complete closes a live tournament once its deciding matches all have a winner.
func (s *TournamentService) Complete(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, bracket.TournamentCompleted, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		matches, err := s.store.GetMatchesTx(ctx, tx, t.ID)
		if err != nil {
			return storageErr("get matches", err)
		}
		if !finished(t.Type, matches) {
			return ErrBracketUnfinished
		}
		return nil
	})
}

// transition checks and applies a status change, running before inside the
// same transaction first.
func (s *TournamentService) transition(ctx context.Context, id uuid.UUID, next bracket.TournamentStatus, before func(*sqlx.Tx, *bracket.Tournament) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, id)
	if err != nil {
		return lookupErr(ErrTournamentNotFound, "get tournament", err)
	}
	if !tournament.CanTransition(next) {
		return ErrInvalidTransition
	}

	if before != nil {
		if err := before(tx, tournament); err != nil {
			return err
		}
	}

	if err := s.store.UpdateTournamentStatusTx(ctx, tx, id, next, time.Now().UTC()); err != nil {
		return storageErr("update tournament status", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}

	s.log.Info("tournament status changed",
		zap.String("tournament_id", id.String()),
		zap.String("from", string(tournament.Status)),
		zap.String("to", string(next)))
	return nil
}

func (s *TournamentService) seed(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament) (*snapshot.Snapshot, error) {
	roster, err := s.store.GetParticipantsTx(ctx, tx, t.ID)
	if err != nil {
		return nil, storageErr("get participants", err)
	}
	if len(roster) == 0 {
		return nil, ErrNoParticipants
	}

	if err := s.store.DeleteMatchesTx(ctx, tx, t.ID); err != nil {
		return nil, storageErr("delete matches", err)
	}

	topo := topology.Build(t.Type, len(roster))
	matches := layoutMatches(t.ID, topo, roster)
	byes := decideByes(matches)

	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, storageErr("create matches", err)
	}

	p := &propagator{ctx: ctx, tx: tx, store: s.store, log: s.log, tournamentID: t.ID}
	for _, m := range byes {
		if err := p.advance(m); err != nil {
			return nil, err
		}
	}

	s.log.Debug("bracket seeded",
		zap.String("tournament_id", t.ID.String()),
		zap.Int("slots", topo.SlotCount),
		zap.Int("matches", len(matches)),
		zap.Int("walkovers", len(byes)))

	return refreshSnapshot(ctx, tx, s.store, t)
}

// finished reports whether every deciding match has a winner: the last round
// of the last stage for brackets, every group match for round robin.
func finished(kind bracket.TournamentType, matches []bracket.Match) bool {
	stages := bracket.Stages(kind)
	last := stages[len(stages)-1]

	lastRound := 0
	for _, m := range matches {
		if m.Stage == last && m.Round > lastRound {
			lastRound = m.Round
		}
	}

	for _, m := range matches {
		if m.Stage != last {
			continue
		}
		if (kind == bracket.RoundRobin || m.Round == lastRound) && m.WinnerID == nil {
			return false
		}
	}
	return true
}

// Snapshot renders the bracket from the current rows. Tournaments that were
// never seeded render as placeholders.
func (s *TournamentService) Snapshot(ctx context.Context, id uuid.UUID) (*snapshot.Snapshot, error) {
	data, err := s.GetTournamentData(ctx, id)
	if err != nil {
		return nil, err
	}
	topo := topology.Build(data.Tournament.Type, len(data.Participants))
	return snapshot.Build(topo, data.Participants, data.Matches), nil
}

// SnapshotJSON returns the stored bracket and its checksum, rendering a
// placeholder when nothing has been stored yet.
func (s *TournamentService) SnapshotJSON(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, "", lookupErr(ErrTournamentNotFound, "get tournament", err)
	}
	if tournament.Snapshot != nil && tournament.SnapshotChecksum != nil {
		return []byte(*tournament.Snapshot), *tournament.SnapshotChecksum, nil
	}

	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return nil, "", err
	}
	body, err := snap.JSON()
	if err != nil {
		return nil, "", storageErr("encode snapshot", err)
	}
	checksum, err := snap.Checksum()
	if err != nil {
		return nil, "", storageErr("encode snapshot", err)
	}
	return body, checksum, nil
}
