package topology

import (
	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

// DoubleElimination builds winners, losers and finals stages.
//
// pairs describes the first round so byes can be told apart from real
// matches; a nil pairs slice treats every first round match as real.
//
// Loser rounds are numbered by effective round 1..LosersRoundsOriginal.
// When at most one first round match has two real participants the first
// effective round is dropped (Offset 1) and the remaining rounds are
// materialized as 1..LosersRounds.
func DoubleElimination(slotCount int, pairs []Pair) *Topology {
	t := &Topology{Type: bracket.DoubleElimination, SlotCount: slotCount}

	wbRounds := max(1, log2(slotCount))
	t.WinnersRounds = wbRounds

	firstRoundSize := roundSize(slotCount, 1)
	realFirstRound := make([]bool, firstRoundSize+1)
	realCount := 0
	for m := 1; m <= firstRoundSize; m++ {
		isReal := pairs == nil || (m-1 < len(pairs) && pairs[m-1].Real() == 2)
		realFirstRound[m] = isReal
		if isReal {
			realCount++
		}
	}

	if wbRounds > 1 {
		t.LosersRoundsOriginal = 2 * (wbRounds - 1)
	}
	if realCount <= 1 {
		t.Offset = 1
	}
	t.LosersRounds = max(0, t.LosersRoundsOriginal-t.Offset)

	// effective round -> materialized round
	materialized := make(map[int]int)
	for e := t.Offset + 1; e <= t.LosersRoundsOriginal; e++ {
		materialized[e] = e - t.Offset
	}

	finalsSlot := func(slot int) *bracket.SlotRef {
		return slotRef(bracket.StageFinals, 1, 1, slot)
	}

	// Winners bracket
	for r := 1; r <= wbRounds; r++ {
		for m := 1; m <= roundSize(slotCount, r); m++ {
			n := t.add(bracket.MatchRef{Stage: bracket.StageWinners, Round: r, MatchIndex: m})
			if r < wbRounds {
				n.Meta.NextWinner = slotRef(bracket.StageWinners, r+1, half(m), paritySlot(m))
			} else {
				n.Meta.NextWinner = finalsSlot(1)
			}

			if r == 1 {
				if !realFirstRound[m] {
					continue // a bye produces no loser
				}
				e := 1 + t.Offset
				k, ok := materialized[e]
				switch {
				case ok:
					slot := paritySlot(m)
					if t.Offset == 1 {
						// the dropped round's winners would have occupied slot 1
						slot = 1
					}
					n.Meta.NextLoser = slotRef(bracket.StageLosers, k, half(m), slot)
				case t.LosersRoundsOriginal == 0:
					n.Meta.NextLoser = finalsSlot(2)
				}
				continue
			}

			if k, ok := nearestLoserRound(materialized, min(t.LosersRoundsOriginal, 2*(r-1))); ok {
				n.Meta.NextLoser = slotRef(bracket.StageLosers, k, m, 2)
			}
		}
	}

	// Losers bracket
	for e := t.Offset + 1; e <= t.LosersRoundsOriginal; e++ {
		k := materialized[e]
		for m := 1; m <= losersRoundSize(slotCount, e); m++ {
			n := t.add(bracket.MatchRef{Stage: bracket.StageLosers, Round: k, MatchIndex: m})
			switch {
			case e == t.LosersRoundsOriginal:
				n.Meta.NextWinner = finalsSlot(2)
			case e%2 != 0:
				n.Meta.NextWinner = slotRef(bracket.StageLosers, k+1, m, 1)
			default:
				n.Meta.NextWinner = slotRef(bracket.StageLosers, k+1, half(m), paritySlot(m))
			}
		}
	}

	t.add(bracket.MatchRef{Stage: bracket.StageFinals, Round: 1, MatchIndex: 1})

	t.pruneDeadEdges(pairs)
	t.invertLinks()
	return t
}

// losersRoundSize is the number of matches in effective loser round e.
// Odd rounds take winners bracket dropouts or merge pairs of the previous
// round, even rounds keep the previous count and add one dropout each.
func losersRoundSize(slotCount, e int) int {
	exponent := (e+1)/2 + 1
	return max(1, slotCount>>exponent)
}

// nearestLoserRound finds the closest materialized round at or below effective round e.
func nearestLoserRound(materialized map[int]int, e int) (int, bool) {
	for ; e >= 1; e-- {
		if k, ok := materialized[e]; ok {
			return k, true
		}
	}
	return 0, false
}

// pruneDeadEdges removes links that can never carry a participant. A match
// only produces a winner when at least one of its slots can be filled and
// only produces a loser when both can. Nodes are visited in feed order, so
// every incoming edge is settled before a node is inspected.
func (t *Topology) pruneDeadEdges(pairs []Pair) {
	live := make(map[bracket.MatchRef]int, len(t.Nodes))
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.Ref.Stage == bracket.StageWinners && n.Ref.Round == 1 {
			live[n.Ref] = 2
			if pairs != nil && n.Ref.MatchIndex-1 < len(pairs) {
				live[n.Ref] = pairs[n.Ref.MatchIndex-1].Real()
			}
		}

		switch live[n.Ref] {
		case 0:
			n.Meta.NextWinner = nil
			n.Meta.NextLoser = nil
		case 1:
			n.Meta.NextLoser = nil
		}

		for _, dest := range []*bracket.SlotRef{n.Meta.NextWinner, n.Meta.NextLoser} {
			if dest != nil {
				live[dest.MatchRef]++
			}
		}
	}
}
