package service

import (
	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/topology"
	"github.com/google/uuid"
)

// layoutMatches turns a topology into match rows. Opening matches get their
// participants from the pairings; everything else starts empty.
func layoutMatches(tournamentID uuid.UUID, topo *topology.Topology, roster []bracket.Participant) []bracket.Match {
	player := func(idx int) *uuid.UUID {
		if idx == topology.Bye || idx >= len(roster) {
			return nil
		}
		id := roster[idx].ID
		return &id
	}

	matches := make([]bracket.Match, 0, len(topo.Nodes))
	opening := 0
	for _, node := range topo.Nodes {
		m := bracket.Match{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Stage:        node.Ref.Stage,
			Round:        node.Ref.Round,
			MatchIndex:   node.Ref.MatchIndex,
			Meta:         node.Meta,
		}

		if node.Ref.IsOpening() && opening < len(topo.Pairs) {
			pair := topo.Pairs[opening]
			opening++
			m.Player1ID = player(pair[0])
			m.Player2ID = player(pair[1])
		}

		matches = append(matches, m)
	}
	return matches
}

// decideByes settles opening matches against a bye and returns them so their
// winners can be propagated once the rows exist.
func decideByes(matches []bracket.Match) []*bracket.Match {
	var byes []*bracket.Match
	for i := range matches {
		m := &matches[i]
		if !m.Ref().IsOpening() || !m.Walkover() {
			continue
		}
		if m.Player1ID != nil {
			m.Decide(1)
		} else {
			m.Decide(2)
		}
		byes = append(byes, m)
	}
	return byes
}
