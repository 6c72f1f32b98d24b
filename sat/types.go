// Package sat implements a CDCL SAT engine augmented with on-the-fly
// Gauss-Jordan elimination over GF(2) for XOR constraints, an
// occurrence-based inprocessing simplifier, and XOR recovery /
// recomposition over clause groups.
package sat

import (
	"fmt"
)

// Var is a non-negative variable identifier. Variables are allocated
// from a process-wide (per-Solver) counter starting at 0.
type Var int32

const varUndef Var = -1

// Lit is a packed (variable, sign) literal. The low bit carries the
// sign: Lit.Sign() == true means negated. Complementation flips the
// low bit, matching the classic MiniSat-style packing.
type Lit int32

// litUndef is returned where no literal applies.
const litUndef Lit = -1

// NewLit packs a variable and a sign into a Lit. neg == true yields
// the negated literal.
func NewLit(v Var, neg bool) Lit {
	l := Lit(v) << 1
	if neg {
		l |= 1
	}
	return l
}

// Var extracts the variable this literal refers to.
func (l Lit) Var() Var { return Var(l >> 1) }

// Sign reports whether the literal is negated.
func (l Lit) Sign() bool { return l&1 == 1 }

// Not returns the complementary literal.
func (l Lit) Not() Lit { return l ^ 1 }

func (l Lit) String() string {
	if l.Sign() {
		return fmt.Sprintf("-%d", l.Var()+1)
	}
	return fmt.Sprintf("%d", l.Var()+1)
}

// LBool is a three-valued truth value: True, False, or Undef.
type LBool uint8

const (
	LFalse LBool = iota
	LTrue
	LUndef
)

func (b LBool) String() string {
	switch b {
	case LTrue:
		return "true"
	case LFalse:
		return "false"
	default:
		return "undef"
	}
}

// boolToLBool converts a concrete bool into LTrue/LFalse.
func boolToLBool(v bool) LBool {
	if v {
		return LTrue
	}
	return LFalse
}

// litValue evaluates a literal under a variable's value.
func litValue(l Lit, vv LBool) LBool {
	if vv == LUndef {
		return LUndef
	}
	if l.Sign() {
		if vv == LTrue {
			return LFalse
		}
		return LTrue
	}
	return vv
}

// CRef is an arena offset identifying a clause. Clauses are never
// referenced by pointer outside the arena; watch entries and the
// occurrence map hold offsets only, so the arena is free to
// consolidate (move live clauses) without invalidating callers that
// reacquire the clause through the allocator.
type CRef uint32

const crefUndef CRef = 0xFFFFFFFF

// Clause is an ordered, duplicate-free disjunction of literals plus
// solver bookkeeping. Clauses live in a ClauseAllocator arena.
type Clause struct {
	Lits []Lit

	Redundant     bool // learnt clause, as opposed to an original/irredundant one
	Removed       bool // tombstoned; still occupies arena space until consolidation
	Freed         bool // returned to the allocator's free list
	UsedInXor     bool // contributed to a recovered Xor
	XorIsDetached bool // CNF encoding detached from watches; Gauss owns it
	GaussTemp     bool // allocated by the Gauss engine as a conflict/propagation reason

	LBD      int32
	Activity float64
	Epoch    uint32 // creation epoch; no code path sets or reads it
}

func (c *Clause) String() string {
	return fmt.Sprintf("%v", c.Lits)
}

// ClauseAllocator is the single arena owning every clause. External
// code references clauses via CRef, never *Clause, so the arena is
// free to reuse slots vacated by Free.
type ClauseAllocator struct {
	clauses []*Clause
	free    []CRef
}

// NewClauseAllocator creates an empty arena.
func NewClauseAllocator() *ClauseAllocator {
	return &ClauseAllocator{clauses: make([]*Clause, 0, 1024)}
}

// Alloc stores lits as a new clause and returns its offset.
func (a *ClauseAllocator) Alloc(lits []Lit, redundant bool) CRef {
	c := &Clause{Lits: append([]Lit(nil), lits...), Redundant: redundant}
	if n := len(a.free); n > 0 {
		ref := a.free[n-1]
		a.free = a.free[:n-1]
		a.clauses[ref] = c
		return ref
	}
	a.clauses = append(a.clauses, c)
	return CRef(len(a.clauses) - 1)
}

// Get dereferences a CRef. The returned pointer must not be retained
// across a Free of the same ref.
func (a *ClauseAllocator) Get(ref CRef) *Clause {
	return a.clauses[ref]
}

// Free tombstones a clause and returns its slot to the free list.
// Freed clauses must not be referenced by any watchlist afterward.
func (a *ClauseAllocator) Free(ref CRef) {
	c := a.clauses[ref]
	if c == nil || c.Freed {
		return
	}
	c.Removed = true
	c.Freed = true
	a.free = append(a.free, ref)
}

// Live reports whether ref still points at a non-freed clause.
func (a *ClauseAllocator) Live(ref CRef) bool {
	c := a.clauses[ref]
	return c != nil && !c.Freed
}

// Xor is a parity constraint x1 xor x2 xor ... xor xk = rhs.
type Xor struct {
	Vars      []Var // strictly sorted, no duplicates
	Rhs       bool  // target parity
	ClashVars []Var // variables internal to a slicing cut, for model extension
	Detached  bool  // CNF encoding detached from watches, Gauss owns it

	// SourceClauses names the CNF-encoding clauses this xor was
	// recovered from (populated by findXors), if any. Empty for xors
	// added directly via AddXorClause, which have no CNF encoding to
	// detach. Used by the Gauss engine's detach/reattach protocol,
	// spec.md section 4.3.
	SourceClauses []CRef

	// origin points back at the persistent, solver-owned Xor (the one
	// living in CDCLSolver.xors) that a per-init cleaned copy was
	// derived from, so the detach/reattach protocol can flag the
	// object fullyUndoXorDetach later walks, rather than a throwaway
	// clone. Nil for an Xor that is itself the persistent owner.
	origin *Xor
}

// root returns the persistent, solver-owned Xor this one was derived
// from via cleanXor, or itself if it already is that Xor.
func (x *Xor) root() *Xor {
	if x.origin != nil {
		return x.origin
	}
	return x
}

func (x *Xor) String() string {
	rhs := 0
	if x.Rhs {
		rhs = 1
	}
	return fmt.Sprintf("xor%v = %d", x.Vars, rhs)
}

// containsVar reports whether v is one of the xor's variables.
func (x *Xor) containsVar(v Var) bool {
	for _, u := range x.Vars {
		if u == v {
			return true
		}
	}
	return false
}

// xorTogether XORs a with b on their single shared variable pivot, per spec.md 4.3 "XOR-together": the shared variable joins
// clash_vars and the remaining variables/rhs are XORed together.
func xorTogether(a, b *Xor, pivot Var) *Xor {
	seen := make(map[Var]int, len(a.Vars)+len(b.Vars))
	for _, v := range a.Vars {
		seen[v]++
	}
	for _, v := range b.Vars {
		seen[v]++
	}
	merged := make([]Var, 0, len(seen))
	for v, n := range seen {
		if v == pivot {
			continue
		}
		if n%2 == 1 {
			merged = append(merged, v)
		}
	}
	sortVars(merged)
	clash := append(append([]Var(nil), a.ClashVars...), b.ClashVars...)
	clash = append(clash, pivot)
	var sources []CRef
	if len(a.SourceClauses) > 0 || len(b.SourceClauses) > 0 {
		sources = append(append([]CRef(nil), a.SourceClauses...), b.SourceClauses...)
	}
	return &Xor{Vars: merged, Rhs: a.Rhs != b.Rhs, ClashVars: dedupVars(clash), SourceClauses: sources}
}

func sortVars(vs []Var) {
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && vs[j-1] > vs[j]; j-- {
			vs[j-1], vs[j] = vs[j], vs[j-1]
		}
	}
}

func dedupVars(vs []Var) []Var {
	sortVars(vs)
	out := vs[:0]
	for i, v := range vs {
		if i == 0 || v != vs[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// SolverStatus is the tri-state result of a solve attempt.
type SolverStatus int

const (
	Undef SolverStatus = iota
	Sat
	Unsat
)

func (s SolverStatus) String() string {
	switch s {
	case Sat:
		return "SAT"
	case Unsat:
		return "UNSAT"
	default:
		return "UNDEF"
	}
}

// Stats mirrors the teacher's SolverStatistics, generalized to the
// int-Var model and extended with Gauss/simplifier counters named in
// spec.md.
type Stats struct {
	Decisions      int64
	Propagations   int64
	Conflicts      int64
	Restarts       int64
	LearnedClauses int64
	DeletedClauses int64

	GaussPropagations int64
	GaussConflicts    int64
	GaussInits        int64
	GaussDisabled     int64

	XorsRecovered    int64
	XorsMerged       int64
	VarsEliminated   int64
	ClausesSubsumed  int64
	ClausesStrength  int64
	TernaryResolvent int64
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"decisions=%d propagations=%d conflicts=%d restarts=%d learned=%d "+
			"gauss{props=%d conflicts=%d inits=%d disabled=%d} "+
			"xor{recovered=%d merged=%d} elim=%d subsumed=%d",
		s.Decisions, s.Propagations, s.Conflicts, s.Restarts, s.LearnedClauses,
		s.GaussPropagations, s.GaussConflicts, s.GaussInits, s.GaussDisabled,
		s.XorsRecovered, s.XorsMerged, s.VarsEliminated, s.ClausesSubsumed)
}
