package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentDraft     TournamentStatus = "draft"
	TournamentOpen      TournamentStatus = "open"
	TournamentLive      TournamentStatus = "live"
	TournamentCompleted TournamentStatus = "completed"
)

type TournamentType string

const (
	SingleElimination TournamentType = "single"
	DoubleElimination TournamentType = "double"
	RoundRobin        TournamentType = "round_robin"
)

func (t TournamentType) Valid() bool {
	switch t {
	case SingleElimination, DoubleElimination, RoundRobin:
		return true
	}
	return false
}

type Tournament struct {
	ID     uuid.UUID        `db:"id"`
	Name   string           `db:"name"`
	Status TournamentStatus `db:"status"`
	Type   TournamentType   `db:"tournament_type"`

	// Last rendered bracket and its checksum, refreshed on every match update
	Snapshot         *string `db:"snapshot"`
	SnapshotChecksum *string `db:"snapshot_checksum"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var statusTransitions = map[TournamentStatus][]TournamentStatus{
	TournamentDraft: {TournamentOpen, TournamentLive},
	TournamentOpen:  {TournamentLive},
	TournamentLive:  {TournamentLive, TournamentCompleted},
}

// CanTransition reports whether a tournament may move from its current status to next.
// live -> live is a restart, which re-seeds every match.
func (t *Tournament) CanTransition(next TournamentStatus) bool {
	for _, s := range statusTransitions[t.Status] {
		if s == next {
			return true
		}
	}
	return false
}
