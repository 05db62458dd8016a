package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecordResultAdvancesWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.SingleElimination, 4)
	p1, p3 := roster[0].ID, roster[2].ID

	m1 := env.match(t, id, bracket.StageMain, 1, 1)
	snap, err := env.matches.RecordResult(ctx, id, m1.ID, &p1)
	require.NoError(t, err)
	require.NotNil(t, snap)

	m1 = env.match(t, id, bracket.StageMain, 1, 1)
	assert.Equal(t, bracket.MatchDecided, m1.State())
	assert.Equal(t, utils.Ptr(1), m1.Score1)
	assert.Equal(t, utils.Ptr(0), m1.Score2)

	final := env.match(t, id, bracket.StageMain, 2, 1)
	assertPlayers(t, final, &p1, nil)
	assert.Nil(t, final.WinnerID)

	env.decide(t, id, bracket.StageMain, 1, 2, p3)

	final = env.match(t, id, bracket.StageMain, 2, 1)
	assertPlayers(t, final, &p1, &p3)
	assert.Equal(t, bracket.MatchReady, final.State())

	// The returned snapshot reflects the decision
	require.Len(t, snap.Results, 1)
	entry := snap.Results[0][0][0]
	assert.Equal(t, utils.Ptr(1), entry.Score1)
	assert.Equal(t, &p1, entry.Meta.Winner)
}

func TestClearingResultEmptiesFinal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.SingleElimination, 4)
	p1, p3 := roster[0].ID, roster[2].ID

	env.decide(t, id, bracket.StageMain, 1, 1, p1)
	env.decide(t, id, bracket.StageMain, 1, 2, p3)
	env.decide(t, id, bracket.StageMain, 2, 1, p3)

	m1 := env.match(t, id, bracket.StageMain, 1, 1)
	_, err := env.matches.RecordResult(ctx, id, m1.ID, nil)
	require.NoError(t, err)

	m1 = env.match(t, id, bracket.StageMain, 1, 1)
	assert.Equal(t, bracket.MatchReady, m1.State())
	assert.Nil(t, m1.Score1)
	assert.Nil(t, m1.Score2)

	final := env.match(t, id, bracket.StageMain, 2, 1)
	assertPlayers(t, final, nil, &p3)
	assert.Nil(t, final.WinnerID)
	assert.Nil(t, final.Score1)
	assert.Nil(t, final.Score2)
}

func TestChangingResultVoidsDownstream(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.SingleElimination, 8)

	for m := 1; m <= 4; m++ {
		env.decide(t, id, bracket.StageMain, 1, m, roster[2*(m-1)].ID)
	}
	env.decide(t, id, bracket.StageMain, 2, 1, roster[0].ID)
	env.decide(t, id, bracket.StageMain, 2, 2, roster[4].ID)
	env.decide(t, id, bracket.StageMain, 3, 1, roster[0].ID)

	// P2 now wins the opener instead of P1
	m1 := env.match(t, id, bracket.StageMain, 1, 1)
	_, err := env.matches.RecordResult(ctx, id, m1.ID, &roster[1].ID)
	require.NoError(t, err)

	semi := env.match(t, id, bracket.StageMain, 2, 1)
	assertPlayers(t, semi, &roster[1].ID, &roster[2].ID)
	assert.Nil(t, semi.WinnerID)

	final := env.match(t, id, bracket.StageMain, 3, 1)
	assertPlayers(t, final, nil, &roster[4].ID)
	assert.Nil(t, final.WinnerID)

	// The other half is untouched
	other := env.match(t, id, bracket.StageMain, 2, 2)
	assert.Equal(t, roster[4].ID, *other.WinnerID)
}

func TestRecordResultValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.SingleElimination, 4)
	otherID, _ := env.startTournament(t, bracket.SingleElimination, 2)

	m1 := env.match(t, id, bracket.StageMain, 1, 1)
	final := env.match(t, id, bracket.StageMain, 2, 1)
	foreign := env.match(t, otherID, bracket.StageMain, 1, 1)
	stranger := uuid.New()

	tests := []struct {
		name         string
		tournamentID uuid.UUID
		matchID      uuid.UUID
		winner       *uuid.UUID
		wantErr      error
	}{
		{"winner not in match", id, m1.ID, &roster[2].ID, ErrWinnerNotInMatch},
		{"unknown winner", id, m1.ID, &stranger, ErrWinnerNotInMatch},
		{"pending match", id, final.ID, &roster[0].ID, ErrMatchNotReady},
		{"unknown match", id, uuid.New(), &roster[0].ID, ErrMatchNotFound},
		{"match of another tournament", id, foreign.ID, foreign.Player1ID, ErrMatchNotFound},
		{"unknown tournament", uuid.New(), m1.ID, &roster[0].ID, ErrTournamentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.matchesByRef(t, id)

			_, err := env.matches.RecordResult(ctx, tt.tournamentID, tt.matchID, tt.winner)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, before, env.matchesByRef(t, id), "failed call must not mutate")
		})
	}
}

func TestRecordResultRequiresLiveTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.tournaments.CreateTournament(ctx, "Cup", bracket.SingleElimination, entryInputs(2))
	require.NoError(t, err)

	_, err = env.matches.RecordResult(ctx, id, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrNotLive)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSameMatchLastWriteWins(t *testing.T) {
	// Writers on the same match are not coordinated. Whichever commits last
	// decides the match, and the earlier winner is gone from the bracket.
	env := newTestEnv(t)
	id, roster := env.startTournament(t, bracket.SingleElimination, 4)

	env.decide(t, id, bracket.StageMain, 1, 1, roster[0].ID)
	env.decide(t, id, bracket.StageMain, 1, 1, roster[1].ID)

	m1 := env.match(t, id, bracket.StageMain, 1, 1)
	assert.Equal(t, roster[1].ID, *m1.WinnerID)

	final := env.match(t, id, bracket.StageMain, 2, 1)
	assertPlayers(t, final, &roster[1].ID, nil)
}

func TestDoubleEliminationLoserDrops(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.DoubleElimination, 4)
	p1, p2, p3, p4 := roster[0].ID, roster[1].ID, roster[2].ID, roster[3].ID

	env.decide(t, id, bracket.StageWinners, 1, 1, p1)
	env.decide(t, id, bracket.StageWinners, 1, 2, p3)

	assertPlayers(t, env.match(t, id, bracket.StageWinners, 2, 1), &p1, &p3)
	assertPlayers(t, env.match(t, id, bracket.StageLosers, 1, 1), &p2, &p4)

	env.decide(t, id, bracket.StageWinners, 2, 1, p1)
	assertPlayers(t, env.match(t, id, bracket.StageFinals, 1, 1), &p1, nil)
	assertPlayers(t, env.match(t, id, bracket.StageLosers, 2, 1), nil, &p3)

	env.decide(t, id, bracket.StageLosers, 1, 1, p2)
	env.decide(t, id, bracket.StageLosers, 2, 1, p3)
	assertPlayers(t, env.match(t, id, bracket.StageFinals, 1, 1), &p1, &p3)

	require.ErrorIs(t, env.tournaments.Complete(ctx, id), ErrBracketUnfinished)
	env.decide(t, id, bracket.StageFinals, 1, 1, p3)
	require.NoError(t, env.tournaments.Complete(ctx, id))
}

func TestDoubleEliminationCascadeClearsEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.DoubleElimination, 4)
	p1, p2, p3 := roster[0].ID, roster[1].ID, roster[2].ID

	env.decide(t, id, bracket.StageWinners, 1, 1, p1)
	env.decide(t, id, bracket.StageWinners, 1, 2, p3)
	env.decide(t, id, bracket.StageWinners, 2, 1, p1)
	env.decide(t, id, bracket.StageLosers, 1, 1, p2)
	env.decide(t, id, bracket.StageLosers, 2, 1, p3)
	env.decide(t, id, bracket.StageFinals, 1, 1, p1)

	opener := env.match(t, id, bracket.StageWinners, 1, 1)
	_, err := env.matches.RecordResult(ctx, id, opener.ID, nil)
	require.NoError(t, err)

	for ref, m := range env.matchesByRef(t, id) {
		if ref == opener.Ref() || ref == (bracket.MatchRef{Stage: bracket.StageWinners, Round: 1, MatchIndex: 2}) {
			continue
		}
		assert.Nil(t, m.WinnerID, "%s should be undecided", ref)
	}

	assertPlayers(t, env.match(t, id, bracket.StageWinners, 2, 1), nil, &p3)
	assertPlayers(t, env.match(t, id, bracket.StageLosers, 1, 1), nil, &roster[3].ID)
	assertPlayers(t, env.match(t, id, bracket.StageLosers, 2, 1), nil, nil)
	assertPlayers(t, env.match(t, id, bracket.StageFinals, 1, 1), nil, nil)
}

func TestDoubleEliminationWalkoverInLosers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.DoubleElimination, 5)
	p1, p2, p3 := roster[0].ID, roster[1].ID, roster[2].ID

	// P1..P3 get byes, P4 and P5 play
	for m := 1; m <= 3; m++ {
		bye := env.match(t, id, bracket.StageWinners, 1, m)
		assert.Equal(t, roster[m-1].ID, *bye.WinnerID)
	}
	assertPlayers(t, env.match(t, id, bracket.StageWinners, 2, 1), &p1, &p2)
	assertPlayers(t, env.match(t, id, bracket.StageWinners, 2, 2), &p3, nil)

	// Only one match can ever feed the first losers match, so its
	// participant goes through on their own
	env.decide(t, id, bracket.StageWinners, 2, 1, p1)

	walkover := env.match(t, id, bracket.StageLosers, 1, 1)
	assertPlayers(t, walkover, nil, &p2)
	require.NotNil(t, walkover.WinnerID)
	assert.Equal(t, p2, *walkover.WinnerID)
	assert.Equal(t, &p2, env.match(t, id, bracket.StageLosers, 2, 1).Player1ID)

	_, err := env.matches.RecordResult(ctx, id, walkover.ID, nil)
	assert.ErrorIs(t, err, ErrWalkover)

	// Undoing the feeding match takes the walkover back out
	feeder := env.match(t, id, bracket.StageWinners, 2, 1)
	_, err = env.matches.RecordResult(ctx, id, feeder.ID, nil)
	require.NoError(t, err)

	walkover = env.match(t, id, bracket.StageLosers, 1, 1)
	assertPlayers(t, walkover, nil, nil)
	assert.Nil(t, walkover.WinnerID)
	assert.Nil(t, env.match(t, id, bracket.StageLosers, 2, 1).Player1ID)
}

func TestUnreadableLinksFallBackInMainBracket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.SingleElimination, 4)

	m2 := env.match(t, id, bracket.StageMain, 1, 2)
	_, err := env.db.Exec("UPDATE matches SET meta = ? WHERE id = ?", "{broken", m2.ID)
	require.NoError(t, err)

	_, err = env.matches.RecordResult(ctx, id, m2.ID, &roster[3].ID)
	require.NoError(t, err)

	final := env.match(t, id, bracket.StageMain, 2, 1)
	assertPlayers(t, final, nil, &roster[3].ID)
}

func TestUnreadableLinksAreLogged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.SingleElimination, 4)

	core, logs := observer.New(zapcore.WarnLevel)
	matches := NewMatchService(env.db, env.store, zap.New(core))

	m2 := env.match(t, id, bracket.StageMain, 1, 2)
	_, err := env.db.Exec("UPDATE matches SET meta = ? WHERE id = ?", "{broken", m2.ID)
	require.NoError(t, err)

	_, err = matches.RecordResult(ctx, id, m2.ID, &roster[3].ID)
	require.NoError(t, err)

	warnings := logs.FilterMessage("unreadable match links").All()
	require.Len(t, warnings, 1)
	fields := warnings[0].ContextMap()
	assert.Equal(t, id.String(), fields["tournament_id"])
	assert.Equal(t, true, fields["halving_fallback"])
}

func TestRecordResultRollsBackOnStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.SingleElimination, 4)

	before, err := env.store.GetTournament(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, before.Snapshot)

	// Any write to the final fails, after match 1 has already been updated in the transaction
	final := env.match(t, id, bracket.StageMain, 2, 1)
	_, err = env.db.Exec(fmt.Sprintf(
		"CREATE TRIGGER lock_final BEFORE UPDATE ON matches WHEN OLD.id = '%s' BEGIN SELECT RAISE(ABORT, 'final is locked'); END",
		final.ID))
	require.NoError(t, err)

	m1 := env.match(t, id, bracket.StageMain, 1, 1)
	_, err = env.matches.RecordResult(ctx, id, m1.ID, &roster[0].ID)
	require.ErrorIs(t, err, ErrStorage)

	m1 = env.match(t, id, bracket.StageMain, 1, 1)
	assert.Equal(t, bracket.MatchReady, m1.State())
	assert.Nil(t, m1.WinnerID)
	assert.Nil(t, m1.Score1)

	final = env.match(t, id, bracket.StageMain, 2, 1)
	assertPlayers(t, final, nil, nil)

	after, err := env.store.GetTournament(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, *before.Snapshot, *after.Snapshot)
	assert.Equal(t, before.SnapshotChecksum, after.SnapshotChecksum)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestUnreadableLinksStopPropagationOutsideMain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.DoubleElimination, 4)

	opener := env.match(t, id, bracket.StageWinners, 1, 1)
	_, err := env.db.Exec("UPDATE matches SET meta = ? WHERE id = ?", "not json", opener.ID)
	require.NoError(t, err)

	_, err = env.matches.RecordResult(ctx, id, opener.ID, &roster[0].ID)
	require.NoError(t, err)

	opener = env.match(t, id, bracket.StageWinners, 1, 1)
	assert.Equal(t, roster[0].ID, *opener.WinnerID)
	assertPlayers(t, env.match(t, id, bracket.StageWinners, 2, 1), nil, nil)
	assertPlayers(t, env.match(t, id, bracket.StageLosers, 1, 1), nil, nil)
}

func TestCascadeTerminatesOnCyclicLinks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, roster := env.startTournament(t, bracket.SingleElimination, 4)

	// Point the final back at the first semi-final
	final := env.match(t, id, bracket.StageMain, 2, 1)
	_, err := env.db.Exec("UPDATE matches SET meta = ? WHERE id = ?",
		`{"sources":{"slot1":{"stage":"main","round":1,"match_index":1},"slot2":{"stage":"main","round":1,"match_index":2}},`+
			`"next_winner":{"stage":"main","round":1,"match_index":1,"slot":1}}`, final.ID)
	require.NoError(t, err)

	env.decide(t, id, bracket.StageMain, 1, 1, roster[0].ID)
	env.decide(t, id, bracket.StageMain, 1, 2, roster[2].ID)

	m1 := env.match(t, id, bracket.StageMain, 1, 1)
	_, err = env.matches.RecordResult(ctx, id, m1.ID, nil)
	require.NoError(t, err)

	assert.Nil(t, env.match(t, id, bracket.StageMain, 2, 1).WinnerID)
}
