package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// propagator moves results along the links of a seeded bracket inside one
// transaction.
type propagator struct {
	ctx          context.Context
	tx           *sqlx.Tx
	store        *store.TournamentStore
	log          *zap.Logger
	tournamentID uuid.UUID
}

type edge struct {
	dest     bracket.SlotRef
	loser    bool
	implicit bool
}

// edges lists where a match sends its winner and loser. Main stage matches
// without readable links fall back to the fixed halving rule.
func (p *propagator) edges(m *bracket.Match) []edge {
	if m.Meta.HasLinks() {
		var out []edge
		if m.Meta.NextWinner != nil {
			out = append(out, edge{dest: *m.Meta.NextWinner})
		}
		if m.Meta.NextLoser != nil {
			out = append(out, edge{dest: *m.Meta.NextLoser, loser: true})
		}
		return out
	}

	if m.Meta.Invalid() {
		p.log.Warn("unreadable match links",
			zap.String("tournament_id", p.tournamentID.String()),
			zap.Stringer("match", m.Ref()),
			zap.Bool("halving_fallback", m.Stage == bracket.StageMain))
	}
	if m.Stage != bracket.StageMain {
		return nil
	}

	slot := 2
	if m.MatchIndex%2 != 0 {
		slot = 1
	}
	return []edge{{
		dest: bracket.SlotRef{
			MatchRef: bracket.MatchRef{Stage: bracket.StageMain, Round: m.Round + 1, MatchIndex: (m.MatchIndex + 1) / 2},
			Slot:     slot,
		},
		implicit: true,
	}}
}

// load fetches a destination, returning nil when no such match exists.
func (p *propagator) load(ref bracket.MatchRef) (*bracket.Match, error) {
	m, err := p.store.GetMatchByRefTx(p.ctx, p.tx, p.tournamentID, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("load match", err)
	}
	return m, nil
}

// advance writes the winner and loser of m into their destinations, clears
// whatever those destinations had already fed, and decides walkovers that
// become filled along the way.
func (p *propagator) advance(m *bracket.Match) error {
	queue := []*bracket.Match{m}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, e := range p.edges(cur) {
			dest, err := p.load(e.dest.MatchRef)
			if err != nil {
				return err
			}
			if dest == nil {
				if !e.implicit {
					p.log.Warn("link points at a missing match",
						zap.String("tournament_id", p.tournamentID.String()),
						zap.Stringer("from", cur.Ref()),
						zap.Stringer("to", e.dest.MatchRef))
				}
				continue
			}

			value := cur.WinnerID
			if e.loser {
				value = cur.LoserID()
			}

			dest.SetPlayer(e.dest.Slot, value)
			dest.ClearDecision()
			if err := p.store.UpdateMatchTx(p.ctx, p.tx, dest); err != nil {
				return storageErr("update match", err)
			}

			if err := p.clearDownstream(dest); err != nil {
				return err
			}

			if value != nil && dest.Walkover() {
				dest.Decide(e.dest.Slot)
				if err := p.store.UpdateMatchTx(p.ctx, p.tx, dest); err != nil {
					return storageErr("update match", err)
				}
				queue = append(queue, dest)
			}
		}
	}
	return nil
}

// clearDownstream voids every match reachable from root. A reached match
// loses its decision and the participant in the slot fed by the voided
// parent. Every edge is applied, but each match is expanded once, so
// malformed cyclic links still terminate.
func (p *propagator) clearDownstream(root *bracket.Match) error {
	visited := map[bracket.MatchRef]bool{root.Ref(): true}
	stack := []*bracket.Match{root}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, e := range p.edges(cur) {
			child, err := p.load(e.dest.MatchRef)
			if err != nil {
				return err
			}
			if child == nil {
				continue
			}

			slot := child.Meta.Sources.SlotOf(cur.Ref())
			if slot == 0 && (e.implicit || child.Meta.Invalid()) {
				slot = e.dest.Slot
			}
			if slot == 0 {
				p.log.Warn("downstream match does not list its source",
					zap.String("tournament_id", p.tournamentID.String()),
					zap.Stringer("from", cur.Ref()),
					zap.Stringer("to", child.Ref()))
			} else {
				child.SetPlayer(slot, nil)
			}
			child.ClearDecision()

			if err := p.store.UpdateMatchTx(p.ctx, p.tx, child); err != nil {
				return storageErr("update match", err)
			}

			if !visited[child.Ref()] {
				visited[child.Ref()] = true
				stack = append(stack, child)
			}
		}
	}
	return nil
}
