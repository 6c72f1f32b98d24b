package sat

// xorFinder recovers XOR constraints from the clausal encoding
// produced by Tseitin-style conversion, grounded on
// original_source/src/xorfinder.cpp. It is driven by the Simplifier's
// "occ-xor" pass and consults the same OccurrenceMap.
type xorFinder struct {
	s   *CDCLSolver
	occ *OccurrenceMap
}

// runXorRecovery implements spec.md section 4.3: extract ternary XORs
// from the clause set, optionally merge them pairwise on a shared
// pivot ("xor-together"), and optionally run a top-level Gaussian
// closure over the recovered set to derive immediate units/binaries.
func (sp *Simplifier) runXorRecovery() {
	xf := &xorFinder{s: sp.s, occ: sp.occ}

	found := xf.findXors()
	if len(found) == 0 {
		return
	}
	sp.s.xors = append(sp.s.xors, found...)
	sp.s.stats.XorsRecovered += int64(len(found))

	if sp.s.cfg.XorTogether {
		before := len(sp.s.xors)
		sp.s.xors = xf.xorTogetherXors(sp.s.xors)
		sp.s.stats.XorsMerged += int64(before - len(sp.s.xors))
	}

	if sp.s.cfg.XorTopLevel {
		xf.toplevelGauss(sp.s.xors)
	}
}

type varTriple [3]Var

func sortVarTriple(t *varTriple) {
	for i := 1; i < 3; i++ {
		for j := i; j > 0 && t[j-1] > t[j]; j-- {
			t[j-1], t[j] = t[j], t[j-1]
		}
	}
}

// signPattern returns, for a 3-literal clause whose variables are
// exactly vars, the per-variable negation pattern (in vars order) and
// its parity (true if an odd number of the three literals are
// negated).
func signPattern(lits []Lit, vars varTriple) ([3]bool, bool) {
	var pattern [3]bool
	for _, l := range lits {
		for i, v := range vars {
			if l.Var() == v {
				pattern[i] = l.Sign()
			}
		}
	}
	parity := pattern[0] != pattern[1]
	parity = parity != pattern[2]
	return pattern, parity
}

// findXors scans irredundant ternary clauses for groups of at least
// four clauses over the same three variables that cover four distinct
// sign patterns, all of one negation parity: together they are
// precisely the four blocking clauses of x1 xor x2 xor x3 = rhs.
func (xf *xorFinder) findXors() []*Xor {
	// Every xor recovered here has three variables, so a length cap
	// below three leaves nothing to recover.
	if xf.s.cfg.MaxXorToFind > 0 && xf.s.cfg.MaxXorToFind < 3 {
		return nil
	}
	groups := make(map[varTriple][]CRef)
	for _, ref := range xf.s.clauses {
		c := xf.s.arena.Get(ref)
		if c.Removed || c.Redundant || len(c.Lits) != 3 {
			continue
		}
		t := varTriple{c.Lits[0].Var(), c.Lits[1].Var(), c.Lits[2].Var()}
		sortVarTriple(&t)
		groups[t] = append(groups[t], ref)
	}

	var out []*Xor
	for vars, refs := range groups {
		if len(refs) < 4 {
			continue
		}
		seen := make(map[[3]bool]bool, 4)
		parityVotes := 0
		for _, ref := range refs {
			c := xf.s.arena.Get(ref)
			pattern, parity := signPattern(c.Lits, vars)
			seen[pattern] = true
			if parity {
				parityVotes++
			}
		}
		if len(seen) != 4 {
			continue
		}
		// A genuine xor's four blocking clauses all share one parity.
		if parityVotes != 0 && parityVotes != len(refs) {
			continue
		}
		forbiddenParity := parityVotes == len(refs)
		rhs := !forbiddenParity

		out = append(out, &Xor{
			Vars:          []Var{vars[0], vars[1], vars[2]},
			Rhs:           rhs,
			SourceClauses: append([]CRef(nil), refs...),
		})
		for _, ref := range refs {
			xf.s.arena.Get(ref).UsedInXor = true
		}
	}
	return out
}

// xorSharedVarCount counts the variables a and b have in common. Used
// to refuse an xor-together merge when a candidate pivot variable is
// not the only thing the pair shares (spec.md section 4.3: "Do not
// merge when the shared-variable count differs from 1").
func xorSharedVarCount(a, b *Xor) int {
	set := make(map[Var]bool, len(a.Vars))
	for _, v := range a.Vars {
		set[v] = true
	}
	n := 0
	for _, v := range b.Vars {
		if set[v] {
			n++
		}
	}
	return n
}

// xorTogetherXors repeatedly merges pairs of xors sharing exactly one
// variable, driven by an "interesting variable" worklist recomputed
// each round, per spec.md section 4.3: a variable is only "interesting"
// when it currently occurs in exactly two xors system-wide
// (original_source/src/xorfinder.cpp:595-596 `if (occcnt[v] != 2)
// continue`), and the chosen pair must share exactly that one variable
// (xorfinder.cpp:620-628 refuses `clash_num > 1`).
func (xf *xorFinder) xorTogetherXors(xors []*Xor) []*Xor {
	list := append([]*Xor(nil), xors...)
	for {
		occ := make(map[Var][]int)
		for i, x := range list {
			for _, v := range x.Vars {
				occ[v] = append(occ[v], i)
			}
		}
		merged := false
		for v, idxs := range occ {
			if len(idxs) != 2 {
				continue
			}
			i, j := idxs[0], idxs[1]
			if xorSharedVarCount(list[i], list[j]) != 1 {
				continue
			}
			combined := xorTogether(list[i], list[j], v)
			a, b := i, j
			if a > b {
				a, b = b, a
			}
			next := make([]*Xor, 0, len(list)-1)
			next = append(next, list[:a]...)
			next = append(next, list[a+1:b]...)
			next = append(next, list[b+1:]...)
			next = append(next, combined)
			list = next
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	return list
}

// toplevelGauss runs the same fixpoint/classification logic as the
// on-the-fly Gauss engine, once, over the full recovered xor set at
// decision level 0, immediately deriving any units or binary clauses
// implied before search begins (original_source/src/toplevelgauss.cpp).
func (xf *xorFinder) toplevelGauss(xors []*Xor) error {
	order := xf.s.gauss.sortedVarsByActivity()
	_, err := xf.s.gauss.fullInit(xors, order)
	if err != nil {
		return err
	}
	xf.s.propagateAll()
	return nil
}
