package topology

import (
	"math/bits"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

// SingleElimination builds the main bracket for slotCount slots.
func SingleElimination(slotCount int) *Topology {
	t := &Topology{Type: bracket.SingleElimination, SlotCount: slotCount}
	totalRounds := log2(slotCount)
	t.WinnersRounds = totalRounds

	for r := 1; r <= totalRounds; r++ {
		for m := 1; m <= roundSize(slotCount, r); m++ {
			n := t.add(bracket.MatchRef{Stage: bracket.StageMain, Round: r, MatchIndex: m})
			if r < totalRounds {
				n.Meta.NextWinner = slotRef(bracket.StageMain, r+1, half(m), paritySlot(m))
			}
		}
	}

	t.invertLinks()
	return t
}

// roundSize is the number of matches in round r of a bracket with slotCount slots.
func roundSize(slotCount, r int) int {
	return max(1, slotCount>>r)
}

func log2(slotCount int) int {
	if slotCount <= 1 {
		return 0
	}
	return bits.Len(uint(slotCount)) - 1
}
