package service

import (
	"context"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/snapshot"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/AdamBeresnev/bracket-engine/internal/topology"
	"github.com/jmoiron/sqlx"
)

// refreshSnapshot re-renders the bracket from the rows visible in tx and
// stores it on the tournament.
func refreshSnapshot(ctx context.Context, tx *sqlx.Tx, st *store.TournamentStore, t *bracket.Tournament) (*snapshot.Snapshot, error) {
	roster, err := st.GetParticipantsTx(ctx, tx, t.ID)
	if err != nil {
		return nil, storageErr("load participants", err)
	}
	matches, err := st.GetMatchesTx(ctx, tx, t.ID)
	if err != nil {
		return nil, storageErr("load matches", err)
	}

	snap := snapshot.Build(topology.Build(t.Type, len(roster)), roster, matches)
	body, err := snap.JSON()
	if err != nil {
		return nil, storageErr("encode snapshot", err)
	}
	checksum, err := snap.Checksum()
	if err != nil {
		return nil, storageErr("encode snapshot", err)
	}

	if err := st.UpdateSnapshotTx(ctx, tx, t.ID, string(body), checksum, time.Now().UTC()); err != nil {
		return nil, storageErr("store snapshot", err)
	}
	return snap, nil
}
