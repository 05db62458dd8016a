package topology

// Bye marks an empty side of a pairing.
const Bye = -1

// Pair holds two roster indexes, either of which may be Bye.
type Pair [2]int

func (p Pair) Real() int {
	n := 0
	for _, i := range p {
		if i != Bye {
			n++
		}
	}
	return n
}

// Pairings builds the first round for a roster of count participants.
//
// Byes are front-loaded: each pair takes the next unclaimed roster slot as
// its first team, and while byes remain the second team is a bye. Only once
// the byes are used up do pairs take two roster slots. Slots are claimed in
// seed order, so the top seeds receive the byes: with 3 participants this
// yields {0, Bye}, {1, 2}, i.e. {P1, BYE}, {P2, P3}, never {P3, BYE}. This is
// not a standard seeding order (1 vs 8, 4 vs 5, ...).
func Pairings(count int) []Pair {
	slots := SlotCount(count)
	byes := slots - count
	next := 0

	claim := func() int {
		if next >= count {
			return Bye
		}
		next++
		return next - 1
	}

	pairs := make([]Pair, 0, slots/2)
	for i := 0; i < slots/2; i++ {
		team1 := claim()
		team2 := Bye
		if byes > 0 {
			byes--
		} else {
			team2 = claim()
		}
		pairs = append(pairs, Pair{team1, team2})
	}
	return pairs
}
