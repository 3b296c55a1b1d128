// Package patch derives the ordered set of mutations ("hunks") needed to
// bring two sides of a sync — left (local) and right (remote) — back into
// agreement, given each side's previously-observed ("prev") and
// currently-observed ("next") card maps (spec §4.4).
//
// Build is a pure function: no I/O, no shared state, fully deterministic
// given its four input maps.
package patch

import (
	"sort"

	"github.com/cardamom-sync/cardamom/internal/card"
)

// Target names one of the four places a hunk can be applied. The integer
// value doubles as tie-break priority: higher wins. This encodes the rule
// "ties resolve in favor of the right side, then the next snapshot" as a
// single total order, since PrevRight/NextRight (2,3) always outrank
// PrevLeft/NextLeft (0,1), and within a side Next outranks Prev.
type Target int

const (
	PrevLeft Target = iota
	NextLeft
	PrevRight
	NextRight
)

func (t Target) String() string {
	switch t {
	case PrevLeft:
		return "PrevLeft"
	case NextLeft:
		return "NextLeft"
	case PrevRight:
		return "PrevRight"
	case NextRight:
		return "NextRight"
	default:
		return "Target(?)"
	}
}

// Op is the mutation kind carried by a Hunk.
type Op int

const (
	Add Op = iota
	Set
	Del
)

func (o Op) String() string {
	switch o {
	case Add:
		return "Add"
	case Set:
		return "Set"
	case Del:
		return "Del"
	default:
		return "Op(?)"
	}
}

// Hunk is one mutation targeted at one side. Card is the zero value for
// Del operations, which only need ID.
type Hunk struct {
	Target Target
	Op     Op
	ID     string
	Card   card.Card
}

// SideState is one side's pair of snapshots: Prev is what was observed at
// the last successful sync, Next is what is observed now.
type SideState struct {
	Prev card.Map
	Next card.Map
}

// dedupKey identifies a hunk's slot in the patch. No two hunks sharing a
// key may survive into the final patch (spec §4.4 "Deduplication").
type dedupKey struct {
	Target Target
	ID     string
}

// Build folds left and right's prev/next maps into a deduplicated,
// deterministically ordered patch. Every id present in any of the four
// input maps is examined exactly once against the 16-case presence table.
func Build(left, right SideState) []Hunk {
	ids := unionIDs(left.Prev, left.Next, right.Prev, right.Next)

	dedup := make(map[dedupKey]Hunk)
	for _, id := range ids {
		p := presenceFor(id, left, right)
		bitmask := p.bitmask()
		for _, h := range caseTable[bitmask](id, p) {
			insertDedup(dedup, h)
		}
	}

	return sortedHunks(dedup)
}

// presence holds, for one id, the card and presence flag at each of the
// four input maps.
type presence struct {
	lp, ln, rp, rn         card.Card
	lpOk, lnOk, rpOk, rnOk bool
}

// unionIDs returns the sorted, deduplicated set of ids across all four
// maps. Sorting makes iteration order deterministic, which in turn makes
// Build's output deterministic independent of Go's randomized map
// iteration (spec §8 "Commutativity").
func unionIDs(maps ...card.Map) []string {
	seen := make(map[string]struct{})
	for _, m := range maps {
		for id := range m {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func presenceFor(id string, left, right SideState) presence {
	var p presence
	p.lp, p.lpOk = left.Prev[id]
	p.ln, p.lnOk = left.Next[id]
	p.rp, p.rpOk = right.Prev[id]
	p.rn, p.rnOk = right.Next[id]
	return p
}

// bitmask packs (Lp, Ln, Rp, Rn) presence into the 4-bit index used by
// caseTable, matching the column order of spec §4.4's presence table.
func (p presence) bitmask() int {
	b := 0
	if p.lpOk {
		b |= 0b1000
	}
	if p.lnOk {
		b |= 0b0100
	}
	if p.rpOk {
		b |= 0b0010
	}
	if p.rnOk {
		b |= 0b0001
	}
	return b
}

func insertDedup(dedup map[dedupKey]Hunk, h Hunk) {
	key := dedupKey{Target: h.Target, ID: h.ID}
	existing, ok := dedup[key]
	if !ok || !h.Card.Date.Before(existing.Card.Date) {
		dedup[key] = h
	}
}

func sortedHunks(dedup map[dedupKey]Hunk) []Hunk {
	hunks := make([]Hunk, 0, len(dedup))
	for _, h := range dedup {
		hunks = append(hunks, h)
	}
	sort.Slice(hunks, func(i, j int) bool {
		if hunks[i].Target != hunks[j].Target {
			return hunks[i].Target < hunks[j].Target
		}
		return hunks[i].ID < hunks[j].ID
	})
	return hunks
}
