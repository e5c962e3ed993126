package chunker

import (
	"sort"
)

// strategyFunc packs the run's items into ordered drafts
type strategyFunc func(r *run) ([]draft, error)

var registry = map[Strategy]strategyFunc{
	StrategySemantic:        packSemantic,
	StrategyFileBased:       packFileBased,
	StrategyDirectoryBased:  packDirectoryBased,
	StrategyDependencyAware: packDependencyAware,
	StrategySizeBalanced:    packSizeBalanced,
}

// packFileBased packs files greedily in input order.
func packFileBased(r *run) ([]draft, error) {
	budget := r.opts.MaxTokensPerChunk
	return r.packFlat(r.items, budget, budget)
}

// packSemantic packs connected dependency groups whole. A group over the
// budget is packed file by file.
func packSemantic(r *run) ([]draft, error) {
	return r.semantic(r.items)
}

func (r *run) semantic(items []item) ([]draft, error) {
	budget := r.opts.MaxTokensPerChunk
	return r.packUnits(r.groups(items), func(u unit) ([]draft, error) {
		return r.packFlat(u.items, budget, budget)
	})
}

// packDirectoryBased emits one chunk per directory when the directory fits
// and packs the directory file by file otherwise. Directories appear in order
// of their first file.
func packDirectoryBased(r *run) ([]draft, error) {
	budget := r.opts.MaxTokensPerChunk

	var dirs []string
	byDir := make(map[string][]item)
	for _, it := range r.items {
		d := it.file.Dir()
		if _, ok := byDir[d]; !ok {
			dirs = append(dirs, d)
		}
		byDir[d] = append(byDir[d], it)
	}

	var out []draft
	for _, d := range dirs {
		u := newUnit(byDir[d])
		if u.tokens <= budget {
			var cur draft
			for _, it := range u.items {
				cur.add(it)
			}
			out = append(out, cur)
			continue
		}
		drafts, err := r.packFlat(u.items, budget, budget)
		if err != nil {
			return nil, err
		}
		out = append(out, drafts...)
	}
	return out, nil
}

// packDependencyAware follows each entry point's dependency chain and packs
// chains as units. Files no entry point reaches (cycles) are packed file by
// file afterwards, in input order.
func packDependencyAware(r *run) ([]draft, error) {
	budget := r.opts.MaxTokensPerChunk

	chains := r.dependencyChains()
	processed := make(map[string]bool, len(r.items))
	units := make([]unit, 0, len(chains))
	for _, chain := range chains {
		for _, p := range chain {
			processed[p] = true
		}
		units = append(units, newUnit(r.itemsOf(chain)))
	}

	out, err := r.packUnits(units, func(u unit) ([]draft, error) {
		return r.semantic(u.items)
	})
	if err != nil {
		return nil, err
	}

	var rest []item
	for _, it := range r.items {
		if !processed[it.file.Path] {
			rest = append(rest, it)
		}
	}
	tail, err := r.packFlat(rest, budget, budget)
	if err != nil {
		return nil, err
	}
	return append(out, tail...), nil
}

// dependencyChains returns, for each entry point in input order, the files
// reachable from it that no earlier chain claimed.
func (r *run) dependencyChains() [][]string {
	processed := make(map[string]bool, len(r.items))
	var chains [][]string
	for _, entry := range r.graph.EntryPoints() {
		if chain := r.graph.Reachable(entry, processed); len(chain) > 0 {
			chains = append(chains, chain)
		}
	}
	return chains
}

// packSizeBalanced packs files in ascending token order against a soft
// target below the budget, then flags small chunks.
func packSizeBalanced(r *run) ([]draft, error) {
	budget := r.opts.MaxTokensPerChunk
	soft := r.opts.softTarget()

	sorted := append([]item(nil), r.items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].tokens < sorted[j].tokens
	})

	drafts, err := r.packFlat(sorted, soft, budget)
	if err != nil {
		return nil, err
	}

	for i := range drafts {
		drafts[i].needsRebalancing = undersized(&drafts[i], soft)
	}
	if r.opts.MergeUndersized {
		drafts = mergeUndersized(drafts, soft, budget)
	}
	return drafts, nil
}

// undersized reports whether d is under half the soft target with fewer
// than three files.
func undersized(d *draft, soft int) bool {
	return 2*d.tokens < soft && len(d.files) < 3
}

// mergeUndersized folds each flagged draft into its predecessor when the
// union stays within budget. Fragment drafts are never merged so fragments
// of one file stay in separate chunks.
func mergeUndersized(drafts []draft, soft, budget int) []draft {
	if len(drafts) < 2 {
		return drafts
	}
	out := []draft{drafts[0]}
	for _, d := range drafts[1:] {
		prev := &out[len(out)-1]
		if d.needsRebalancing && !d.hasFragments() && !prev.hasFragments() && prev.tokens+d.tokens <= budget {
			prev.files = append(prev.files, d.files...)
			prev.tokens += d.tokens
			prev.needsRebalancing = undersized(prev, soft)
			continue
		}
		out = append(out, d)
	}
	return out
}
