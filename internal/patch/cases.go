package patch

import "github.com/cardamom-sync/cardamom/internal/card"

// normalize returns c with ID forced to id, so a winner picked from any of
// the four input maps carries the id being reconciled even if its source
// Card happened to be stale on that field.
func normalize(id string, c card.Card) card.Card {
	c.ID = id
	return c
}

// caseFunc computes the hunks for one id given its presence across the
// four input maps. Table-driven over the 16 presence combinations rather
// than nested branches, per spec §9 "Tagged presence matrix over
// inheritance".
type caseFunc func(id string, p presence) []Hunk

// caseTable is indexed by presence.bitmask(): bit 3 = Lp, bit 2 = Ln,
// bit 1 = Rp, bit 0 = Rn, mirroring the "Lp Ln Rp Rn" column order of
// spec §4.4's presence table.
var caseTable = [16]caseFunc{
	0b0000: caseAbsent,
	0b0001: caseAddedOnRight,
	0b0010: caseStaleRightPrev,
	0b0011: casePriorSyncLostOnLeft,
	0b0100: caseAddedOnLeft,
	0b0101: caseAddedBothSides,
	0b0110: caseAddedLeftDeletedRight,
	0b0111: caseAddedLeftModifiedRight,
	0b1000: caseStaleLeftPrev,
	0b1001: caseDeletedLeftAddedRight,
	0b1010: caseStaleBothPrev,
	0b1011: caseDeletedLeftModifiedRight,
	0b1100: caseModifiedLeftInIsolation,
	0b1101: caseModifiedLeftAddedRight,
	0b1110: caseModifiedLeftDeletedRight,
	0b1111: casePresentEverywhere,
}

// 0000 — absent from all four maps: nothing to do.
func caseAbsent(id string, p presence) []Hunk {
	return nil
}

// 0001 — added on the right only. The winner is trivially R.next; reconcile
// fills in the three targets that don't have it yet (spec §8 scenario 2).
func caseAddedOnRight(id string, p presence) []Hunk {
	return reconcile(id, normalize(id, p.rn), p)
}

// 0010 — right's prev snapshot is stale: both next maps have moved on
// without it (or it was never mirrored). Just drop the stale entry.
func caseStaleRightPrev(id string, p presence) []Hunk {
	return []Hunk{{Target: PrevRight, Op: Del, ID: id}}
}

// 0011 — right has both prev and next but left has neither: left's own
// record of this id was lost. Pick the newer of right's two snapshots
// (ties favor next, since both candidates are on the same side) and
// rebuild left from it, patching up whichever of right's two snapshots
// lost the comparison.
func casePriorSyncLostOnLeft(id string, p presence) []Hunk {
	winner := pickWinner(
		candidate{priority: int(PrevRight), card: p.rp, ok: p.rpOk},
		candidate{priority: int(NextRight), card: p.rn, ok: p.rnOk},
	)
	return reconcile(id, normalize(id, winner), p)
}

// 0100 — added on the left only, symmetric to 0001.
func caseAddedOnLeft(id string, p presence) []Hunk {
	return reconcile(id, normalize(id, p.ln), p)
}

// 0101 — the same id appeared fresh on both sides in the same sync window.
// Newer wins (spec §8 scenario 3).
func caseAddedBothSides(id string, p presence) []Hunk {
	winner := pickWinner(
		candidate{priority: int(NextLeft), card: p.ln, ok: p.lnOk},
		candidate{priority: int(NextRight), card: p.rn, ok: p.rnOk},
	)
	return reconcile(id, normalize(id, winner), p)
}

// 0110 — added on the left, deleted on the right. The right's last known
// value before deletion is a candidate in its own right: if it's newer
// than the left's new card, the deletion stands and the new left copy is
// undone; otherwise the left copy resurrects the record on the right.
func caseAddedLeftDeletedRight(id string, p presence) []Hunk {
	if !p.ln.Date.After(p.rp.Date) {
		return []Hunk{
			{Target: NextLeft, Op: Del, ID: id},
			{Target: PrevRight, Op: Del, ID: id},
		}
	}
	return reconcile(id, normalize(id, p.ln), p)
}

// 0111 — added on the left, while the right has an existing record that
// was itself modified. Newer of the two current values wins and is
// propagated to whichever side doesn't have it.
func caseAddedLeftModifiedRight(id string, p presence) []Hunk {
	winner := pickWinner(
		candidate{priority: int(NextLeft), card: p.ln, ok: p.lnOk},
		candidate{priority: int(NextRight), card: p.rn, ok: p.rnOk},
	)
	return reconcile(id, normalize(id, winner), p)
}

// 1000 — left's prev snapshot is stale, symmetric to 0010.
func caseStaleLeftPrev(id string, p presence) []Hunk {
	return []Hunk{{Target: PrevLeft, Op: Del, ID: id}}
}

// 1001 — deleted on the left, added on the right (spec §8 scenario 4).
// Left's tombstone date (its prev snapshot) competes with the right's new
// card; newer wins.
func caseDeletedLeftAddedRight(id string, p presence) []Hunk {
	if !p.lp.Date.After(p.rn.Date) {
		return reconcile(id, normalize(id, p.rn), p)
	}
	return []Hunk{
		{Target: PrevLeft, Op: Del, ID: id},
		{Target: NextRight, Op: Del, ID: id},
	}
}

// 1010 — stale on both sides' prev snapshots, symmetric to 0010/1000.
func caseStaleBothPrev(id string, p presence) []Hunk {
	return []Hunk{
		{Target: PrevLeft, Op: Del, ID: id},
		{Target: PrevRight, Op: Del, ID: id},
	}
}

// 1011 — deleted on the left, but the right shows an existing record that
// was modified. The table treats deletion as dominant here: the record is
// removed everywhere rather than resurrected from the right's edit.
func caseDeletedLeftModifiedRight(id string, p presence) []Hunk {
	return []Hunk{
		{Target: PrevLeft, Op: Del, ID: id},
		{Target: PrevRight, Op: Del, ID: id},
		{Target: NextRight, Op: Del, ID: id},
	}
}

// 1100 — modified on the left with no trace on the right at all: pick
// the newer of left's prev/next (guards against clock skew) and push it
// out to the right. Left's own prev snapshot is refreshed too, so the
// next computation doesn't re-detect the same edit as still pending
// (idempotence, spec §8).
func caseModifiedLeftInIsolation(id string, p presence) []Hunk {
	winner := pickWinner(
		candidate{priority: int(PrevLeft), card: p.lp, ok: p.lpOk},
		candidate{priority: int(NextLeft), card: p.ln, ok: p.lnOk},
	)
	return reconcile(id, normalize(id, winner), p)
}

// 1101 — modified on the left while a fresh copy appeared on the right.
// Newer of the three live candidates wins.
func caseModifiedLeftAddedRight(id string, p presence) []Hunk {
	winner := pickWinner(
		candidate{priority: int(PrevLeft), card: p.lp, ok: p.lpOk},
		candidate{priority: int(NextLeft), card: p.ln, ok: p.lnOk},
		candidate{priority: int(NextRight), card: p.rn, ok: p.rnOk},
	)
	return reconcile(id, normalize(id, winner), p)
}

// 1110 — modified on the left, deleted on the right: deletion dominates,
// symmetric to 1011.
func caseModifiedLeftDeletedRight(id string, p presence) []Hunk {
	return []Hunk{
		{Target: PrevLeft, Op: Del, ID: id},
		{Target: NextLeft, Op: Del, ID: id},
		{Target: PrevRight, Op: Del, ID: id},
	}
}

// 1111 — present everywhere. Sort the four by date; the max dictates, and
// every target whose stored card differs from it gets Set (spec §8
// scenario 5, "timestamp monotonicity").
func casePresentEverywhere(id string, p presence) []Hunk {
	winner := pickWinner(
		candidate{priority: int(PrevLeft), card: p.lp, ok: p.lpOk},
		candidate{priority: int(NextLeft), card: p.ln, ok: p.lnOk},
		candidate{priority: int(PrevRight), card: p.rp, ok: p.rpOk},
		candidate{priority: int(NextRight), card: p.rn, ok: p.rnOk},
	)
	return reconcile(id, normalize(id, winner), p)
}

// candidate is one contender in a winner comparison, tagged with its
// target's tie-break priority (see Target's doc comment).
type candidate struct {
	priority int
	card     card.Card
	ok       bool
}

// pickWinner returns the candidate with the latest date, breaking ties by
// priority (higher wins): right side over left, next snapshot over prev
// within a side (spec §4.4 "Tie-break").
func pickWinner(candidates ...candidate) card.Card {
	var best card.Card
	bestPriority := -1
	haveBest := false
	for _, c := range candidates {
		if !c.ok {
			continue
		}
		switch {
		case !haveBest:
			best, bestPriority, haveBest = c.card, c.priority, true
		case c.card.Date.After(best.Date):
			best, bestPriority = c.card, c.priority
		case c.card.Date.Equal(best.Date) && c.priority > bestPriority:
			best, bestPriority = c.card, c.priority
		}
	}
	return best
}

// reconcile brings all four targets up to winner: Add where a target's
// own map has no entry for id, Set where it has a stale one, and
// nothing where it's already current (spec §4.4's per-target presence
// check, reverse-engineered from the worked 0001/0101/0011 scenarios in
// §8 — see DESIGN.md).
//
// "Already current" is judged by Date alone, not full Card.Equal: the
// local side's own next-snapshot cards never carry Content or ETag
// (spec §4.2, loaded lazily only when a push needs it), so a full
// structural comparison would always see the local targets as stale
// once a winner with real Content/ETag exists, even on an already-
// converged id, defeating idempotence (spec §8). The embedded Card
// still carries the winner's full Content/ETag for whichever store
// applies the hunk.
func reconcile(id string, winner card.Card, p presence) []Hunk {
	var hunks []Hunk
	add := func(target Target, ok bool, current card.Card) {
		switch {
		case !ok:
			hunks = append(hunks, Hunk{Target: target, Op: Add, ID: id, Card: winner})
		case !current.Date.Equal(winner.Date):
			hunks = append(hunks, Hunk{Target: target, Op: Set, ID: id, Card: winner})
		}
	}
	add(PrevLeft, p.lpOk, p.lp)
	add(NextLeft, p.lnOk, p.ln)
	add(PrevRight, p.rpOk, p.rp)
	add(NextRight, p.rnOk, p.rn)
	return hunks
}
