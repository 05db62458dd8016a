package topology

import (
	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

// RoundRobinGrid pairs every participant with every other exactly once.
// Grid cells (i, j) and (j, i) reference the same match; the diagonal is nil.
// Group matches have no sources or destinations.
func RoundRobinGrid(n int) *Topology {
	t := &Topology{Type: bracket.RoundRobin, SlotCount: n}
	t.Grid = make([][]*bracket.MatchRef, n)
	for i := range t.Grid {
		t.Grid[i] = make([]*bracket.MatchRef, n)
	}

	matchIndex := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			matchIndex++
			ref := bracket.MatchRef{Stage: bracket.StageGroup, Round: 1, MatchIndex: matchIndex}
			t.add(ref)
			t.Pairs = append(t.Pairs, Pair{i, j})
			t.Grid[i][j] = &ref
			t.Grid[j][i] = &ref
		}
	}

	return t
}
