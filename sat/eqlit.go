package sat

// EqLinkTable is the equivalent-literal replacement table: a
// union-find over literals (not just variables, since x = -y is a
// valid equivalence) supplementing spec.md per
// original_source/src/varreplacer.h. Every variable starts as its own
// representative; Union records x == y (or x == -y) and all lookups
// are path-compressed.
type EqLinkTable struct {
	parent []Lit // parent[v] is a literal equivalent to NewLit(v, false)
	rank   []int
}

func NewEqLinkTable(nvars int) *EqLinkTable {
	e := &EqLinkTable{}
	e.grow(nvars)
	return e
}

func (e *EqLinkTable) grow(nvars int) {
	for len(e.parent) < nvars {
		v := Var(len(e.parent))
		e.parent = append(e.parent, NewLit(v, false))
		e.rank = append(e.rank, 0)
	}
}

// Find returns the canonical literal equivalent to l, applying path
// compression. The sign of the result already accounts for every
// polarity flip accumulated along the union chain.
func (e *EqLinkTable) Find(l Lit) Lit {
	v := l.Var()
	p := e.parent[v]
	if p.Var() == v {
		if l.Sign() {
			return p.Not()
		}
		return p
	}
	root := e.Find(p) // canonical literal equivalent to NewLit(v, false)
	e.parent[v] = root
	if l.Sign() {
		return root.Not()
	}
	return root
}

// Union records that a and b are equivalent literals. It returns
// false if this forces a == not a (a cyclic contradiction, caught as
// a top-level conflict upstream).
func (e *EqLinkTable) Union(a, b Lit) bool {
	ra, rb := e.Find(a), e.Find(b)
	if ra.Var() == rb.Var() {
		return ra == rb
	}
	va, vb := ra.Var(), rb.Var()
	if e.rank[va] < e.rank[vb] {
		// Re-root so vb becomes the surviving representative: express
		// "NewLit(va,false) == ra" as "NewLit(va,false) == rb (negated if
		// ra is a negative literal)".
		if ra.Sign() {
			e.parent[va] = rb.Not()
		} else {
			e.parent[va] = rb
		}
		if e.rank[va] == e.rank[vb] {
			e.rank[vb]++
		}
		return true
	}
	// va survives, vb reroots onto it: express "NewLit(vb,false) == rb"
	// as "NewLit(vb,false) == ra (negated if rb is a negative
	// literal)" — the mirror of the branch above, so the condition is on
	// rb's sign here, not ra's.
	if rb.Sign() {
		e.parent[vb] = ra.Not()
	} else {
		e.parent[vb] = ra
	}
	if e.rank[va] == e.rank[vb] {
		e.rank[va]++
	}
	return true
}

// Representative reports whether v is its own canonical representative.
func (e *EqLinkTable) Representative(v Var) bool {
	return e.parent[v].Var() == v
}

// Extend applies the equivalence substitution map to a model, per
// spec.md section 4.4 step 3: "each replaced variable is assigned from
// its representative's value, with parity." Representatives must
// already hold a value in model before this runs.
func (e *EqLinkTable) Extend(model []LBool) {
	for v := 0; v < len(e.parent); v++ {
		vv := Var(v)
		if e.Representative(vv) {
			continue
		}
		rep := e.Find(NewLit(vv, false))
		if int(rep.Var()) >= len(model) {
			continue
		}
		model[vv] = litValue(rep, model[rep.Var()])
	}
}
