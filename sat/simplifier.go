package sat

// Simplifier is the occurrence-based rewriter of spec.md section 4.2:
// between CDCL runs it rewrites the clause set in place, shrinking it
// and eliminating variables while preserving satisfiability modulo
// the blocked-clause store. It is grounded on the teacher's
// inprocessor.go/preprocessor.go scaffolding, generalized to the
// int-Var/arena model and to the exact pass semantics of
// original_source/src/occsimplifier.cpp.
type Simplifier struct {
	s       *CDCLSolver
	occ     *OccurrenceMap
	blocked *BlockedStore
	eq      *EqLinkTable
	budget  int64 // hot-loop decrement counter; 0 means unlimited
}

// NewSimplifier takes ownership of s's clause list for the duration
// of a pass schedule, per spec.md section 9 "Exclusive ownership".
func NewSimplifier(s *CDCLSolver, blocked *BlockedStore, eq *EqLinkTable) *Simplifier {
	return &Simplifier{s: s, blocked: blocked, eq: eq}
}

// DefaultSchedule is the pass order named in spec.md section 4.2.
var DefaultSchedule = []string{
	"occ-backw-sub-str",
	"occ-ternary-res",
	"occ-xor",
	"occ-bve",
	"occ-bva",
}

// Run executes the named pass schedule. Each pass ensures the
// occurrence map is consistent and propagates pending units first;
// after each pass, backward subsumption/strengthening runs again over
// any newly added clauses.
func (sp *Simplifier) Run(schedule []string) error {
	sp.occ = NewOccurrenceMap()
	sp.occ.build(sp.s.arena, sp.s.clauses)

	for _, pass := range schedule {
		if err := sp.runPass(pass); err != nil {
			return err
		}
		if ref := sp.s.propagateAll(); ref != crefUndef {
			return errConflictSentinel
		}
		sp.occ.build(sp.s.arena, sp.s.clauses)
		sp.backwardSubsumeStrengthen()
	}
	return nil
}

func (sp *Simplifier) runPass(pass string) error {
	switch pass {
	case "occ-backw-sub-str":
		sp.backwardSubsumeStrengthen()
	case "occ-ternary-res":
		if sp.s.cfg.DoTernRes {
			sp.ternaryResolution()
		}
	case "occ-xor":
		if sp.s.cfg.DoFindXors {
			sp.runXorRecovery()
		}
	case "occ-bve":
		if sp.s.cfg.DoVarElim && sp.s.cfg.DoBVE {
			sp.boundedVariableElimination()
		}
	case "occ-bva":
		if sp.s.cfg.DoBVA {
			// Bounded variable addition is treated as a side module per
			// spec.md section 4.2; per the Open Questions it must run
			// strictly after XOR recovery has stabilized. No fresh-variable
			// refactoring candidates are currently generated, so this is a
			// deliberate no-op placeholder rather than a real pass.
		}
	}
	return nil
}

func literalSet(lits []Lit) map[Lit]bool {
	m := make(map[Lit]bool, len(lits))
	for _, l := range lits {
		m[l] = true
	}
	return m
}

func isSubsetLits(small, big []Lit) bool {
	bigSet := literalSet(big)
	for _, l := range small {
		if !bigSet[l] {
			return false
		}
	}
	return true
}

// removeClauseFromSolver tombstones ref in the arena, the occurrence
// map, and the CDCL long-clause watch lists.
func (sp *Simplifier) removeClauseFromSolver(ref CRef) {
	c := sp.s.arena.Get(ref)
	if c.Removed {
		return
	}
	for _, l := range c.Lits {
		sp.occ.remove(l, ref)
	}
	if len(c.Lits) >= 2 {
		sp.s.watches.removeLongOrBinary(c.Lits[0].Not(), ref, len(c.Lits) == 2, c.Lits[1])
		sp.s.watches.removeLongOrBinary(c.Lits[1].Not(), ref, len(c.Lits) == 2, c.Lits[0])
	}
	sp.s.proof.Delete(c.Lits)
	sp.s.arena.Free(ref)
	sp.removeFromList(ref)
}

func (sp *Simplifier) removeFromList(ref CRef) {
	for i, r := range sp.s.clauses {
		if r == ref {
			sp.s.clauses = append(sp.s.clauses[:i], sp.s.clauses[i+1:]...)
			return
		}
	}
}

// strengthenClause removes literal l from D's clause in place,
// re-registering watches if D is a long clause.
func (sp *Simplifier) strengthenClause(ref CRef, l Lit) {
	c := sp.s.arena.Get(ref)
	old := append([]Lit(nil), c.Lits...)
	wasBinary := len(c.Lits) == 2
	if wasBinary {
		sp.s.watches.removeLongOrBinary(c.Lits[0].Not(), ref, true, c.Lits[1])
		sp.s.watches.removeLongOrBinary(c.Lits[1].Not(), ref, true, c.Lits[0])
	} else if len(c.Lits) >= 2 {
		sp.s.watches.removeLongOrBinary(c.Lits[0].Not(), ref, false, c.Lits[1])
		sp.s.watches.removeLongOrBinary(c.Lits[1].Not(), ref, false, c.Lits[0])
	}
	sp.occ.remove(l, ref)
	out := c.Lits[:0]
	for _, x := range c.Lits {
		if x != l {
			out = append(out, x)
		}
	}
	c.Lits = out

	switch len(c.Lits) {
	case 0:
		c.Removed = true
		sp.removeFromList(ref)
		sp.s.proof.Delete(old)
	case 1:
		if sp.s.trail.varValue(c.Lits[0].Var()) == LUndef {
			sp.s.trail.enqueue(c.Lits[0], crefUndef)
		}
		sp.occ.remove(c.Lits[0], ref)
		c.Removed = true
		sp.removeFromList(ref)
		sp.s.proof.Add(c.Lits)
		sp.s.proof.Delete(old)
	default:
		sp.s.watches.add(c.Lits[0].Not(), Watch{Kind: watchFor(c.Lits), Ref: ref, Other: c.Lits[1], Blocker: c.Lits[1]})
		sp.s.watches.add(c.Lits[1].Not(), Watch{Kind: watchFor(c.Lits), Ref: ref, Other: c.Lits[0], Blocker: c.Lits[0]})
		sp.s.proof.Add(c.Lits)
		sp.s.proof.DelayDelete(old)
		sp.s.proof.FinishDelay()
	}
}

func watchFor(lits []Lit) watchKind {
	if len(lits) == 2 {
		return watchBinary
	}
	return watchLong
}

// backwardSubsumeStrengthen implements spec.md section 4.2
// "occ-backw-sub-str": for each clause C, find clauses D that C
// subsumes (delete D) or that C strengthens by one literal (remove
// the negated literal from D). An abstraction bitmask per clause
// prunes candidates before the exact subset check.
func (sp *Simplifier) backwardSubsumeStrengthen() {
	for _, ref := range append([]CRef(nil), sp.s.clauses...) {
		c := sp.s.arena.Get(ref)
		if c.Removed || len(c.Lits) == 0 {
			continue
		}
		absC := abstraction(c)

		rarest := c.Lits[0]
		for _, l := range c.Lits[1:] {
			if len(sp.occ.list(l)) < len(sp.occ.list(rarest)) {
				rarest = l
			}
		}

		// A clause to strengthen may hold rarest negated, so both
		// polarities of rarest are scanned.
		for _, candRef := range append(append([]CRef(nil), sp.occ.list(rarest)...), sp.occ.list(rarest.Not())...) {
			if candRef == ref {
				continue
			}
			d := sp.s.arena.Get(candRef)
			if d.Removed || len(d.Lits) <= len(c.Lits)-1 {
				continue
			}
			if absC&^abstraction(d) != 0 {
				continue
			}
			if len(d.Lits) >= len(c.Lits) && isSubsetLits(c.Lits, d.Lits) {
				sp.removeClauseFromSolver(candRef)
				sp.s.stats.ClausesSubsumed++
				continue
			}
			if lit, ok := strengthenCandidate(c, d); ok {
				sp.strengthenClause(candRef, lit)
				sp.s.stats.ClausesStrength++
			}
		}
	}
	sp.discoverEquivalences()
}

// discoverEquivalences scans the current binary clauses for pairs over
// the same two variables whose literal patterns force an equivalence
// (a = b, or a = not b), recording each into the simplifier's
// EqLinkTable. This is the "equivalence substitution map produced by
// equivalent-literal replacement" spec.md section 4.4 step 3 consumes,
// grounded on original_source/src/varreplacer.h's binary-clause-pair
// discovery of x = y / x = -y equivalences.
func (sp *Simplifier) discoverEquivalences() {
	if sp.eq == nil {
		return
	}
	type pairKey struct{ a, b Var }
	patterns := make(map[pairKey]map[[2]bool]bool)
	for _, ref := range sp.s.clauses {
		c := sp.s.arena.Get(ref)
		if c.Removed || len(c.Lits) != 2 {
			continue
		}
		va, vb := c.Lits[0].Var(), c.Lits[1].Var()
		sa, sb := c.Lits[0].Sign(), c.Lits[1].Sign()
		if va == vb {
			continue
		}
		if va > vb {
			va, vb, sa, sb = vb, va, sb, sa
		}
		key := pairKey{va, vb}
		if patterns[key] == nil {
			patterns[key] = make(map[[2]bool]bool)
		}
		patterns[key][[2]bool{sa, sb}] = true
	}
	for key, pats := range patterns {
		// (a ∨ b) and (¬a ∨ ¬b): a implies ¬b and ¬a implies b, so a == ¬b.
		if pats[[2]bool{false, false}] && pats[[2]bool{true, true}] {
			sp.eq.Union(NewLit(key.a, false), NewLit(key.b, true))
		}
		// (a ∨ ¬b) and (¬a ∨ b): a implies b and ¬a implies ¬b, so a == b.
		if pats[[2]bool{false, true}] && pats[[2]bool{true, false}] {
			sp.eq.Union(NewLit(key.a, false), NewLit(key.b, false))
		}
	}
}

// strengthenCandidate finds the single literal l of c whose negation
// appears in d such that (c \ {l}) subset (d \ {not l}), per spec.md
// "D ⊇ C ∖ {¬ℓ} ∪ {ℓ}".
func strengthenCandidate(c, d *Clause) (Lit, bool) {
	dset := literalSet(d.Lits)
	for _, l := range c.Lits {
		if !dset[l.Not()] {
			continue
		}
		ok := true
		for _, m := range c.Lits {
			if m == l {
				continue
			}
			if !dset[m] {
				ok = false
				break
			}
		}
		if ok {
			return l.Not(), true
		}
	}
	return litUndef, false
}

// ternaryResolution implements spec.md section 4.2 "occ-ternary-res".
func (sp *Simplifier) ternaryResolution() {
	for _, ref := range append([]CRef(nil), sp.s.clauses...) {
		c := sp.s.arena.Get(ref)
		if c.Removed || c.Redundant || len(c.Lits) != 3 {
			continue
		}
		for _, l := range c.Lits {
			for _, candRef := range append([]CRef(nil), sp.occ.list(l.Not())...) {
				if candRef == ref {
					continue
				}
				d := sp.s.arena.Get(candRef)
				if d.Removed || d.Redundant || len(d.Lits) != 3 {
					continue
				}
				// resolve returns nil when a second variable clashes.
				resolvent := resolve(c.Lits, d.Lits, l)
				if resolvent == nil || len(resolvent) > 3 {
					continue
				}
				if ok, _ := sp.s.addClauseInternal(resolvent, false); ok {
					sp.s.stats.TernaryResolvent++
				}
			}
		}
	}
}

func sharedVarCount(c, d *Clause) int {
	vs := make(map[Var]bool, len(c.Lits))
	for _, l := range c.Lits {
		vs[l.Var()] = true
	}
	n := 0
	for _, l := range d.Lits {
		if vs[l.Var()] {
			n++
		}
	}
	return n
}

// resolve computes the resolvent of c and d on literal l (present in
// c, with l.Not() present in d), deduplicated, or nil if tautological.
func resolve(c, d []Lit, l Lit) []Lit {
	set := make(map[Lit]bool, len(c)+len(d))
	for _, x := range c {
		if x != l {
			set[x] = true
		}
	}
	for _, x := range d {
		if x != l.Not() {
			set[x] = true
		}
	}
	out := make([]Lit, 0, len(set))
	for x := range set {
		if set[x.Not()] {
			return nil // tautology
		}
		out = append(out, x)
	}
	return out
}

// boundedVariableElimination implements spec.md section 4.2
// "occ-bve": a candidate variable v is eliminated when its full
// resolvent set does not grow the clause count by more than `grow`
// over |C(v)| + |C(¬v)|. grow doubles each outer iteration, per
// spec.md's BVE growth schedule.
func (sp *Simplifier) boundedVariableElimination() {
	grow := sp.s.cfg.BVEGrow
	for iter := 0; iter < 4; iter++ {
		progressed := sp.bveRound(grow)
		if grow == 0 {
			grow = 1
		} else {
			grow *= 2
		}
		if !progressed {
			break
		}
	}
}

func (sp *Simplifier) bveRound(grow int) bool {
	progressed := false
	for v := 0; v < sp.s.nvars; v++ {
		vv := Var(v)
		if sp.s.trail.varValue(vv) != LUndef {
			continue
		}
		pos := sp.occ.list(NewLit(vv, false))
		neg := sp.occ.list(NewLit(vv, true))
		if len(pos) == 0 || len(neg) == 0 {
			continue
		}
		if len(pos) > 16 || len(neg) > 16 {
			continue // bound the resolution fan-out for this pass
		}

		resolvents := make([][]Lit, 0, len(pos)*len(neg))
		ok := true
		for _, pr := range pos {
			pc := sp.s.arena.Get(pr)
			if pc.Removed {
				continue
			}
			for _, nr := range neg {
				nc := sp.s.arena.Get(nr)
				if nc.Removed {
					continue
				}
				res := resolve(pc.Lits, nc.Lits, NewLit(vv, false))
				if res == nil {
					continue // tautological resolvent, dropped
				}
				resolvents = append(resolvents, res)
			}
			if len(resolvents) > len(pos)+len(neg)+grow {
				ok = false
				break
			}
		}
		if !ok || len(resolvents) > len(pos)+len(neg)+grow {
			continue
		}

		sp.eliminateVar(vv, pos, neg, resolvents)
		progressed = true
	}
	return progressed
}

// eliminateVar replaces every clause touching v with the resolvent
// set, recording the removed clauses in the blocked store keyed on v
// (spec.md section 4.2 "Blocked-clause recording").
func (sp *Simplifier) eliminateVar(v Var, pos, neg []CRef, resolvents [][]Lit) {
	var removed []*Clause
	for _, r := range append(append([]CRef(nil), pos...), neg...) {
		c := sp.s.arena.Get(r)
		if c.Removed {
			continue
		}
		removed = append(removed, &Clause{Lits: append([]Lit(nil), c.Lits...)})
		sp.removeClauseFromSolver(r)
	}
	sp.blocked.Record(v, removed)

	for _, res := range resolvents {
		sp.s.addClauseInternal(res, false)
	}
	sp.s.stats.VarsEliminated++
}
