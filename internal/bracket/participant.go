package bracket

import "github.com/google/uuid"

// Participant is one roster entry. Seed is the 1-based registration order.
type Participant struct {
	ID           uuid.UUID `db:"id"`
	TournamentID uuid.UUID `db:"tournament_id"`
	DisplayName  string    `db:"display_name"`
	Seed         int       `db:"seed"`
}
