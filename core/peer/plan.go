package peer

import (
	"slices"

	"github.com/jask/routesync/core/route"
)

// EditKind classifies one step of a set-routes plan.
type EditKind int

const (
	EditRemove EditKind = iota + 1
	EditMove
	EditInsert
)

func (k EditKind) String() string {
	switch k {
	case EditRemove:
		return "remove"
	case EditMove:
		return "move"
	case EditInsert:
		return "insert"
	}
	return "unknown"
}

// Edit is one step. To is the index in the final order; it is unused for
// removals.
type Edit struct {
	Kind EditKind
	ID   route.ID
	To   int
}

// Plan converts the peer's current order into Order. Applying Edits with
// Apply yields Order exactly.
type Plan struct {
	Order []route.ID
	Edits []Edit
}

// Diff builds a plan from old to next keyed by route id. Records on the
// longest common subsequence stay put; every other survivor is moved, ids
// missing from next are removed and ids missing from old are inserted.
func Diff(old, next []route.ID) Plan {
	keep := lcs(old, next)

	inNext := make(map[route.ID]bool, len(next))
	for _, id := range next {
		inNext[id] = true
	}
	inOld := make(map[route.ID]bool, len(old))
	for _, id := range old {
		inOld[id] = true
	}

	var edits []Edit
	for _, id := range old {
		if !inNext[id] {
			edits = append(edits, Edit{Kind: EditRemove, ID: id})
		}
	}
	for i, id := range next {
		if keep[id] {
			continue
		}
		kind := EditInsert
		if inOld[id] {
			kind = EditMove
		}
		edits = append(edits, Edit{Kind: kind, ID: id, To: i})
	}
	return Plan{Order: slices.Clone(next), Edits: edits}
}

// Apply runs the plan's edits against old. Removals and the sources of moves
// are taken out first; inserts and move targets are then placed in ascending
// final index.
func Apply(old []route.ID, edits []Edit) []route.ID {
	drop := make(map[route.ID]bool)
	for _, e := range edits {
		if e.Kind == EditRemove || e.Kind == EditMove {
			drop[e.ID] = true
		}
	}
	out := make([]route.ID, 0, len(old)+len(edits))
	for _, id := range old {
		if !drop[id] {
			out = append(out, id)
		}
	}
	for _, e := range edits {
		if e.Kind == EditRemove {
			continue
		}
		to := min(max(e.To, 0), len(out))
		out = slices.Insert(out, to, e.ID)
	}
	return out
}

// Counts returns the number of removes, moves and inserts in the plan.
func (p Plan) Counts() (removes, moves, inserts int) {
	for _, e := range p.Edits {
		switch e.Kind {
		case EditRemove:
			removes++
		case EditMove:
			moves++
		case EditInsert:
			inserts++
		}
	}
	return removes, moves, inserts
}

func lcs(a, b []route.ID) map[route.ID]bool {
	n, m := len(a), len(b)
	table := make([][]int, n+1)
	for i := range table {
		table[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				table[i][j] = table[i+1][j+1] + 1
			} else {
				table[i][j] = max(table[i+1][j], table[i][j+1])
			}
		}
	}
	keep := make(map[route.ID]bool, table[0][0])
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case a[i] == b[j]:
			keep[a[i]] = true
			i++
			j++
		case table[i+1][j] >= table[i][j+1]:
			i++
		default:
			j++
		}
	}
	return keep
}
