package chunker

import (
	"github.com/dshills/repochunk/pkg/types"
)

// packFlat is the greedy base case every strategy reduces to. Files are taken
// in order and added to the open draft while its total stays within target.
// A file larger than limit is split into fragments, one per draft.
func (r *run) packFlat(items []item, target, limit int) ([]draft, error) {
	var out []draft
	var cur draft

	flush := func() {
		if !cur.empty() {
			out = append(out, cur)
			cur = draft{}
		}
	}

	for _, it := range items {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		if it.tokens > limit {
			flush()
			frags, err := r.splitOversized(it)
			if err != nil {
				return nil, err
			}
			out = append(out, frags...)
			continue
		}
		if !cur.empty() && cur.tokens+it.tokens > target {
			flush()
		}
		cur.add(it)
	}
	flush()

	return out, nil
}

// splitOversized cuts a file that exceeds the budget into fragments and
// places each fragment in a draft of its own.
func (r *run) splitOversized(it item) ([]draft, error) {
	budget := r.opts.MaxTokensPerChunk
	pieces, err := r.split(it.file.Content, budget, it.file.Path)
	if err != nil {
		return nil, err
	}
	if len(pieces) == 0 {
		var d draft
		d.add(it)
		return []draft{d}, nil
	}

	out := make([]draft, 0, len(pieces))
	for i, piece := range pieces {
		n, err := r.count(piece, it.file.Path)
		if err != nil {
			return nil, err
		}
		frag := types.Fragment(it.file, piece, i+1, len(pieces), n)
		out = append(out, draft{files: []types.ChunkFile{frag}, tokens: n})
	}
	return out, nil
}

// unit is a group of files packed together when it fits
type unit struct {
	items  []item
	tokens int
}

func newUnit(items []item) unit {
	u := unit{items: items}
	for _, it := range items {
		u.tokens += it.tokens
	}
	return u
}

// packUnits greedily packs whole units like packFlat packs files. A unit over
// the budget is handed to oversize and its drafts are emitted in place.
func (r *run) packUnits(units []unit, oversize func(unit) ([]draft, error)) ([]draft, error) {
	budget := r.opts.MaxTokensPerChunk
	var out []draft
	var cur draft

	flush := func() {
		if !cur.empty() {
			out = append(out, cur)
			cur = draft{}
		}
	}

	for _, u := range units {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		if u.tokens > budget {
			flush()
			drafts, err := oversize(u)
			if err != nil {
				return nil, err
			}
			out = append(out, drafts...)
			continue
		}
		if !cur.empty() && cur.tokens+u.tokens > budget {
			flush()
		}
		for _, it := range u.items {
			cur.add(it)
		}
	}
	flush()

	return out, nil
}

// groups partitions items into connected groups: starting from each item not
// yet grouped, in order, everything reachable from it over resolved edges
// inside the item set. Group members are ordered breadth-first.
func (r *run) groups(items []item) []unit {
	inSet := make(map[string]int, len(items))
	for i, it := range items {
		inSet[it.file.Path] = i
	}

	// Paths outside the set count as visited so traversal stays inside it.
	visited := make(map[string]bool, r.graph.Len())
	for _, p := range r.graph.Paths() {
		if _, ok := inSet[p]; !ok {
			visited[p] = true
		}
	}

	var out []unit
	for _, it := range items {
		reach := r.graph.Reachable(it.file.Path, visited)
		if len(reach) == 0 {
			continue
		}
		members := make([]item, 0, len(reach))
		for _, p := range reach {
			members = append(members, items[inSet[p]])
		}
		out = append(out, newUnit(members))
	}
	return out
}

// itemsOf returns the items for paths, in the order given.
func (r *run) itemsOf(paths []string) []item {
	out := make([]item, 0, len(paths))
	for _, p := range paths {
		if i, ok := r.index[p]; ok {
			out = append(out, r.items[i])
		}
	}
	return out
}
