// Package topology computes the match graph of a competition from its slot
// count alone. Nothing here touches storage; every function is pure.
package topology

import (
	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

// Node is one match position together with its propagation links.
type Node struct {
	Ref  bracket.MatchRef
	Meta bracket.Meta
}

type Topology struct {
	Type      bracket.TournamentType
	SlotCount int

	// Ordered by stage, round, match index
	Nodes []Node

	// First round pairings for elimination brackets, one pair per group
	// match (aligned with Nodes) for round robin
	Pairs []Pair

	// Round robin only: Grid[i][j] is the match between roster i and j
	Grid [][]*bracket.MatchRef

	WinnersRounds        int
	LosersRoundsOriginal int
	LosersRounds         int
	Offset               int

	index map[bracket.MatchRef]int
}

// Build computes the topology for a tournament type and roster size.
func Build(kind bracket.TournamentType, participants int) *Topology {
	switch kind {
	case bracket.RoundRobin:
		return RoundRobinGrid(participants)
	case bracket.DoubleElimination:
		slots := SlotCount(participants)
		pairs := Pairings(participants)
		t := DoubleElimination(slots, pairs)
		t.Pairs = pairs
		return t
	default:
		t := SingleElimination(SlotCount(participants))
		t.Pairs = Pairings(participants)
		return t
	}
}

// SlotCount is the next power of two that fits count, never less than 2.
func SlotCount(count int) int {
	slots := 2
	for slots < count {
		slots <<= 1
	}
	return slots
}

func (t *Topology) Node(ref bracket.MatchRef) (*Node, bool) {
	i, ok := t.index[ref]
	if !ok {
		return nil, false
	}
	return &t.Nodes[i], true
}

// Rounds returns the number of materialized rounds in a stage.
func (t *Topology) Rounds(stage bracket.Stage) int {
	rounds := 0
	for _, n := range t.Nodes {
		if n.Ref.Stage == stage && n.Ref.Round > rounds {
			rounds = n.Ref.Round
		}
	}
	return rounds
}

func (t *Topology) CountIn(stage bracket.Stage) int {
	count := 0
	for _, n := range t.Nodes {
		if n.Ref.Stage == stage {
			count++
		}
	}
	return count
}

func (t *Topology) add(ref bracket.MatchRef) *Node {
	if t.index == nil {
		t.index = make(map[bracket.MatchRef]int)
	}
	t.index[ref] = len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Ref: ref})
	return &t.Nodes[len(t.Nodes)-1]
}

// invertLinks registers every node as a source on the slots it feeds.
func (t *Topology) invertLinks() {
	for i := range t.Nodes {
		n := t.Nodes[i]
		for _, dest := range []*bracket.SlotRef{n.Meta.NextWinner, n.Meta.NextLoser} {
			if dest == nil {
				continue
			}
			target, ok := t.Node(dest.MatchRef)
			if !ok {
				continue
			}
			target.Meta.Sources.Set(dest.Slot, n.Ref)
		}
	}
}

func slotRef(stage bracket.Stage, round, index, slot int) *bracket.SlotRef {
	return &bracket.SlotRef{
		MatchRef: bracket.MatchRef{Stage: stage, Round: round, MatchIndex: index},
		Slot:     slot,
	}
}

// paritySlot sends odd match indexes to slot 1 and even ones to slot 2.
func paritySlot(matchIndex int) int {
	if matchIndex%2 != 0 {
		return 1
	}
	return 2
}

func half(matchIndex int) int {
	return (matchIndex + 1) / 2
}
