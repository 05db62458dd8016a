// Package snapshot renders persisted matches into the nested bracket
// structure served to polling clients.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/topology"
	"github.com/google/uuid"
)

type Snapshot struct {
	Teams [][2]*string `json:"teams"`

	// stage -> round -> match, stages in bracket.Stages order
	Results [][][]Entry `json:"results"`
}

type EntryMeta struct {
	MatchID *uuid.UUID      `json:"match_id"`
	Player1 *uuid.UUID      `json:"player1"`
	Player2 *uuid.UUID      `json:"player2"`
	Winner  *uuid.UUID      `json:"winner"`
	Sources bracket.Sources `json:"sources"`
}

// Entry serializes as [score1, score2, meta].
type Entry struct {
	Score1 *int
	Score2 *int
	Meta   EntryMeta
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{e.Score1, e.Score2, e.Meta})
}

// Build assembles the snapshot from the topology and the stored matches.
// Nodes without a stored row render as empty placeholders, so a tournament
// that has not been seeded yet has the same shape as a live one.
func Build(topo *topology.Topology, roster []bracket.Participant, matches []bracket.Match) *Snapshot {
	names := make(map[uuid.UUID]string, len(roster))
	for _, p := range roster {
		names[p.ID] = p.DisplayName
	}
	name := func(id *uuid.UUID) *string {
		if id == nil {
			return nil
		}
		n, ok := names[*id]
		if !ok {
			n = id.String()
		}
		return &n
	}

	rows := make(map[bracket.MatchRef]*bracket.Match, len(matches))
	for i := range matches {
		rows[matches[i].Ref()] = &matches[i]
	}

	s := &Snapshot{
		Teams:   make([][2]*string, 0),
		Results: make([][][]Entry, 0),
	}

	if len(matches) == 0 {
		s.Teams = placeholderTeams(topo, roster)
	}

	for _, stage := range bracket.Stages(topo.Type) {
		rounds := make([][]Entry, topo.Rounds(stage))
		for r := range rounds {
			rounds[r] = make([]Entry, 0)
		}

		for _, node := range topo.Nodes {
			if node.Ref.Stage != stage {
				continue
			}
			row, ok := rows[node.Ref]
			entry := Entry{Meta: EntryMeta{Sources: node.Meta.Sources}}
			if ok {
				entry = fromMatch(row)
				if len(matches) > 0 && node.Ref.IsOpening() {
					s.Teams = append(s.Teams, [2]*string{name(row.Player1ID), name(row.Player2ID)})
				}
			}
			rounds[node.Ref.Round-1] = append(rounds[node.Ref.Round-1], entry)
		}

		s.Results = append(s.Results, rounds)
	}

	return s
}

func fromMatch(m *bracket.Match) Entry {
	id := m.ID
	score1, score2 := m.Scores()
	return Entry{
		Score1: score1,
		Score2: score2,
		Meta: EntryMeta{
			MatchID: &id,
			Player1: m.Player1ID,
			Player2: m.Player2ID,
			Winner:  m.WinnerID,
			Sources: m.Meta.Sources,
		},
	}
}

func placeholderTeams(topo *topology.Topology, roster []bracket.Participant) [][2]*string {
	teams := make([][2]*string, 0, len(topo.Pairs))
	for _, pair := range topo.Pairs {
		var team [2]*string
		for side, idx := range pair {
			if idx != topology.Bye && idx < len(roster) {
				n := roster[idx].DisplayName
				team[side] = &n
			}
		}
		teams = append(teams, team)
	}
	return teams
}

// JSON is the canonical encoding; unchanged state always yields the same bytes.
func (s *Snapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// Checksum is the hex SHA-256 of the canonical encoding.
func (s *Snapshot) Checksum() (string, error) {
	b, err := s.JSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
