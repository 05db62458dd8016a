package bracket

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type Stage string

const (
	StageWinners Stage = "winners"
	StageLosers  Stage = "losers"
	StageFinals  Stage = "finals"
	StageMain    Stage = "main"
	StageGroup   Stage = "group"
)

// Stages lists the stages a tournament type renders, in display order.
func Stages(t TournamentType) []Stage {
	switch t {
	case DoubleElimination:
		return []Stage{StageWinners, StageLosers, StageFinals}
	case RoundRobin:
		return []Stage{StageGroup}
	default:
		return []Stage{StageMain}
	}
}

type MatchState string

const (
	MatchPending MatchState = "pending"
	MatchReady   MatchState = "ready"
	MatchDecided MatchState = "decided"
)

// MatchRef addresses a match inside a tournament.
type MatchRef struct {
	Stage      Stage `json:"stage"`
	Round      int   `json:"round"`
	MatchIndex int   `json:"match_index"`
}

func (r MatchRef) String() string {
	return fmt.Sprintf("%s/R%d/M%d", r.Stage, r.Round, r.MatchIndex)
}

// IsOpening reports whether the match takes its players straight from the roster.
func (r MatchRef) IsOpening() bool {
	switch r.Stage {
	case StageMain, StageWinners, StageGroup:
		return r.Round == 1
	}
	return false
}

// SlotRef addresses one of the two player slots of a match.
type SlotRef struct {
	MatchRef
	Slot int `json:"slot"`
}

type Sources struct {
	Slot1 *MatchRef `json:"slot1,omitempty"`
	Slot2 *MatchRef `json:"slot2,omitempty"`
}

func (s Sources) Get(slot int) *MatchRef {
	if slot == 1 {
		return s.Slot1
	}
	return s.Slot2
}

func (s *Sources) Set(slot int, ref MatchRef) {
	if slot == 1 {
		s.Slot1 = &ref
	} else {
		s.Slot2 = &ref
	}
}

// SlotOf returns the slot fed by ref, or 0 if ref feeds neither slot.
func (s Sources) SlotOf(ref MatchRef) int {
	if s.Slot1 != nil && *s.Slot1 == ref {
		return 1
	}
	if s.Slot2 != nil && *s.Slot2 == ref {
		return 2
	}
	return 0
}

func (s Sources) Count() int {
	n := 0
	if s.Slot1 != nil {
		n++
	}
	if s.Slot2 != nil {
		n++
	}
	return n
}

// Meta holds the propagation links of a match. It is persisted as JSON.
type Meta struct {
	Sources    Sources  `json:"sources"`
	NextWinner *SlotRef `json:"next_winner,omitempty"`
	NextLoser  *SlotRef `json:"next_loser,omitempty"`

	invalid bool
}

// Invalid reports whether the stored JSON could not be decoded.
// An invalid meta behaves as if it had no links.
func (m Meta) Invalid() bool {
	return m.invalid
}

func (m Meta) HasLinks() bool {
	return m.NextWinner != nil || m.NextLoser != nil
}

func (m Meta) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan never fails on malformed JSON; it yields an empty meta flagged invalid instead.
func (m *Meta) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Meta{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported meta type %T", src)
	}

	var decoded Meta
	if err := json.Unmarshal(raw, &decoded); err != nil {
		*m = Meta{invalid: true}
		return nil
	}
	*m = decoded
	return nil
}

type Match struct {
	ID           uuid.UUID `db:"id"`
	TournamentID uuid.UUID `db:"tournament_id"`

	Stage      Stage `db:"stage"`
	Round      int   `db:"round"`
	MatchIndex int   `db:"match_index"`

	Player1ID *uuid.UUID `db:"player1_id"`
	Player2ID *uuid.UUID `db:"player2_id"`

	// Binary win indicators: the winner's slot holds 1, the loser's 0
	Score1   *int       `db:"score1"`
	Score2   *int       `db:"score2"`
	WinnerID *uuid.UUID `db:"winner_id"`

	Meta Meta `db:"meta"`
}

func (m *Match) Ref() MatchRef {
	return MatchRef{Stage: m.Stage, Round: m.Round, MatchIndex: m.MatchIndex}
}

func (m *Match) Player(slot int) *uuid.UUID {
	if slot == 1 {
		return m.Player1ID
	}
	return m.Player2ID
}

func (m *Match) SetPlayer(slot int, id *uuid.UUID) {
	if slot == 1 {
		m.Player1ID = id
	} else {
		m.Player2ID = id
	}
}

func (m *Match) State() MatchState {
	switch {
	case m.WinnerID != nil:
		return MatchDecided
	case m.Player1ID != nil && m.Player2ID != nil:
		return MatchReady
	default:
		return MatchPending
	}
}

// Walkover reports whether the match can only ever hold one participant:
// an opening match against a bye, or a later match with a single live source.
// A walkover is decided as soon as its one slot is filled.
func (m *Match) Walkover() bool {
	if m.Ref().IsOpening() {
		return m.Stage != StageGroup && (m.Player1ID == nil) != (m.Player2ID == nil)
	}
	return !m.Meta.Invalid() && m.Meta.Sources.Count() == 1
}

// SlotOf returns the slot holding the participant, or 0.
func (m *Match) SlotOf(id uuid.UUID) int {
	if m.Player1ID != nil && *m.Player1ID == id {
		return 1
	}
	if m.Player2ID != nil && *m.Player2ID == id {
		return 2
	}
	return 0
}

// Decide records the winner in the given slot and sets the binary scores.
func (m *Match) Decide(slot int) {
	winner := *m.Player(slot)
	one, zero := 1, 0
	if slot == 1 {
		m.Score1, m.Score2 = &one, &zero
	} else {
		m.Score1, m.Score2 = &zero, &one
	}
	m.WinnerID = &winner
}

func (m *Match) ClearDecision() {
	m.Score1 = nil
	m.Score2 = nil
	m.WinnerID = nil
}

// LoserID is the participant that is not the winner, or nil while undecided.
func (m *Match) LoserID() *uuid.UUID {
	if m.WinnerID == nil {
		return nil
	}
	switch m.SlotOf(*m.WinnerID) {
	case 1:
		return m.Player2ID
	case 2:
		return m.Player1ID
	}
	return nil
}

// Scores returns the stored scores, falling back to the winner encoding for
// rows that only carry winner_id.
func (m *Match) Scores() (*int, *int) {
	if m.Score1 != nil || m.Score2 != nil || m.WinnerID == nil {
		return m.Score1, m.Score2
	}
	one, zero := 1, 0
	switch m.SlotOf(*m.WinnerID) {
	case 1:
		return &one, &zero
	case 2:
		return &zero, &one
	}
	return nil, nil
}
