package sat

// OccurrenceMap is an unordered index, per literal, of every clause
// reference in which it appears, per spec.md section 3. It is
// maintained by the Simplifier only while it holds the CNF, between
// CDCL invocations (spec.md section 9, "Exclusive ownership of
// clauses by simplifier vs. CDCL").
type OccurrenceMap struct {
	byLit map[Lit][]CRef
}

func NewOccurrenceMap() *OccurrenceMap {
	return &OccurrenceMap{byLit: make(map[Lit][]CRef)}
}

func (o *OccurrenceMap) add(l Lit, ref CRef) {
	o.byLit[l] = append(o.byLit[l], ref)
}

func (o *OccurrenceMap) list(l Lit) []CRef { return o.byLit[l] }

func (o *OccurrenceMap) remove(l Lit, ref CRef) {
	entries := o.byLit[l]
	for i, e := range entries {
		if e == ref {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(o.byLit, l)
	} else {
		o.byLit[l] = entries
	}
}

// build recomputes the occurrence map from the given live clause refs.
func (o *OccurrenceMap) build(a *ClauseAllocator, refs []CRef) {
	o.byLit = make(map[Lit][]CRef)
	for _, ref := range refs {
		c := a.Get(ref)
		if c.Removed {
			continue
		}
		for _, l := range c.Lits {
			o.add(l, ref)
		}
	}
}

// abstraction computes a clause's subsumption-pruning bitmask: one bit
// per (variable mod 64), per spec.md section 4.2 "occ-backw-sub-str".
func abstraction(c *Clause) uint64 {
	var a uint64
	for _, l := range c.Lits {
		a |= 1 << uint(uint32(l.Var())%64)
	}
	return a
}
