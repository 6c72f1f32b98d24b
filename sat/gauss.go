package sat

import (
	"sort"

	"github.com/pkg/errors"
)

// gaussOutcomeKind is the result of prop_gauss, per spec.md section 4.1
// "Propagation contract".
type gaussOutcomeKind int

const (
	gaussAlreadySat gaussOutcomeKind = iota
	gaussNewWatch
	gaussPropagate
	gaussConflict
)

// gaussOutcome carries the per-row result of re-examining a row after
// an assignment. Lits holds the row's reason clause for Propagate and
// Conflict outcomes.
type gaussOutcome struct {
	kind gaussOutcomeKind
	lits []Lit
	prop Lit // the propagated literal, valid when kind == gaussPropagate
}

// priority orders outcomes so eliminate_col's fold-in keeps the most
// severe one: conflict < propagation < new-watch < already-sat, per
// spec.md section 4.1 "Row selection and the basic/non-basic swap".
func (o gaussOutcome) priority() int {
	switch o.kind {
	case gaussConflict:
		return 0
	case gaussPropagate:
		return 1
	case gaussNewWatch:
		return 2
	default:
		return 3
	}
}

func betterOutcome(a, b gaussOutcome) gaussOutcome {
	if a.priority() <= b.priority() {
		return a
	}
	return b
}

// gaussWatchEntry is a {row, matrixID} pair registered against a
// variable; GaussEngine triggers prop_gauss for every entry whenever
// that variable becomes assigned, regardless of polarity (Gauss rows
// reason about assignment, not sign).
type gaussWatchEntry struct {
	row      int
	matrixID int
}

// GaussEngine maintains the set of active PackedMatrix instances
// incrementally under CDCL assignments: it propagates unit
// consequences, detects conflicts, and generates learnt clauses for
// the CDCL conflict analyzer, per spec.md section 4.1.
type GaussEngine struct {
	cfg     Config
	s       *CDCLSolver
	matrices []*PackedMatrix
	nextID   int

	watchIdx map[Var][]gaussWatchEntry

	// tempClauses tracks arena refs allocated by this engine (GaussTemp
	// clauses), keyed by the decision level active when allocated, so
	// canceling can free everything above a backtrack target.
	tempClauses map[int][]CRef

	usefulProps map[int]int64 // per matrix id, for autodisable
	disabled    map[int]bool
}

func newGaussEngine(s *CDCLSolver, cfg Config) *GaussEngine {
	return &GaussEngine{
		cfg:         cfg,
		s:           s,
		watchIdx:    make(map[Var][]gaussWatchEntry),
		tempClauses: make(map[int][]CRef),
		usefulProps: make(map[int]int64),
		disabled:    make(map[int]bool),
	}
}

// cleanXor folds already-assigned variables of x into the RHS and
// drops them, per spec.md section 4.1 step 1.
func (g *GaussEngine) cleanXor(x *Xor) *Xor {
	vars := make([]Var, 0, len(x.Vars))
	rhs := x.Rhs
	for _, v := range x.Vars {
		vv := g.s.trail.varValue(v)
		if vv == LUndef {
			vars = append(vars, v)
			continue
		}
		if vv == LTrue {
			rhs = !rhs
		}
	}
	return &Xor{
		Vars:          vars,
		Rhs:           rhs,
		ClashVars:     x.ClashVars,
		SourceClauses: x.SourceClauses,
		Detached:      x.Detached,
		origin:        x.root(),
	}
}

// fullInit implements spec.md section 4.1 "Initialization (full_init)".
// It may enqueue top-level units directly onto the trail and returns
// created=false (not a fatal condition) when the resulting matrix is
// empty or oversize. A clean reducing to () = 1 is reported as a
// global conflict via the returned error.
func (g *GaussEngine) fullInit(xors []*Xor, order []Var) (created bool, err error) {
	pending := make([]*Xor, 0, len(xors))
	for _, x := range xors {
		pending = append(pending, g.cleanXor(x))
	}

	// Resolve unit/empty rows before building the matrix; a unit
	// enqueue can make other rows unit or empty, so iterate to a
	// fixpoint (spec.md: "rerun init on the reduced XOR set").
	for {
		progressed := false
		next := pending[:0]
		for _, x := range pending {
			x = g.cleanXor(x)
			switch len(x.Vars) {
			case 0:
				if x.Rhs {
					return false, errConflict
				}
				progressed = true
			case 1:
				v := x.Vars[0]
				lit := NewLit(v, !x.Rhs)
				if g.s.trail.varValue(v) == LUndef {
					g.s.trail.enqueue(lit, crefUndef)
				}
				progressed = true
			default:
				next = append(next, x)
			}
		}
		pending = next
		if !progressed {
			break
		}
	}

	if len(pending) == 0 {
		return false, nil
	}

	// Column order: high-activity variables first, then any XOR
	// variable missing from the order appended at the tail.
	colOrder := make([]Var, 0, len(order))
	seen := make(map[Var]bool, len(order))
	for _, v := range order {
		colOrder = append(colOrder, v)
		seen[v] = true
	}
	for _, x := range pending {
		for _, v := range x.Vars {
			if !seen[v] {
				seen[v] = true
				colOrder = append(colOrder, v)
			}
		}
	}

	if len(pending) > g.cfg.MaxMatrixSize || len(colOrder) > g.cfg.MaxMatrixSize {
		return false, nil // matrix oversize: non-fatal, skip
	}

	m := g.buildMatrix(pending, colOrder)
	g.reduce(m)
	created, err = g.classifyRows(m)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	m.id = g.nextID
	g.nextID++
	g.matrices = append(g.matrices, m)
	g.registerWatches(m)
	g.s.stats.GaussInits++
	if g.s.logger != nil {
		g.s.logger.Debugw("gauss matrix initialized", "matrix_id", m.id, "rows", m.numRows, "cols", m.numCols)
	}
	if g.cfg.XorDetachReattach {
		g.applyXorDetach(m)
	}
	return true, nil
}

// errConflictSentinel marks a top-level XOR reduction to () = 1, a
// global UNSAT per spec.md section 4.1 step 5.
var errConflictSentinel = errors.New("gauss: top-level xor conflict")

var errConflict = errConflictSentinel

func (g *GaussEngine) buildMatrix(xs []*Xor, colOrder []Var) *PackedMatrix {
	m := &PackedMatrix{
		numRows: len(xs),
		numCols: len(colOrder),
	}
	m.colToVar = colOrder
	maxVar := Var(0)
	for _, v := range colOrder {
		if v > maxVar {
			maxVar = v
		}
	}
	m.varToCol = make([]int32, maxVar+1)
	for i := range m.varToCol {
		m.varToCol[i] = unassignedCol
	}
	for j, v := range colOrder {
		m.varToCol[v] = int32(j)
	}

	m.rows = make([]bitRow, len(xs))
	m.basicVar = make([]Var, len(xs))
	m.otherWatch = make([]Var, len(xs))
	m.rowSat = make([]bool, len(xs))
	m.origXors = make([]*Xor, len(xs))
	for i, x := range xs {
		row := newBitRow(m.nbitsAug())
		for _, v := range x.Vars {
			row.set(m.colOf(v), true)
		}
		row.set(m.numCols, x.Rhs)
		m.rows[i] = row
		m.basicVar[i] = varUndef
		m.otherWatch[i] = varUndef
		m.origXors[i] = x.root()
	}
	return m
}

// reduce performs Gauss-Jordan reduction to reduced row-echelon form,
// per spec.md section 4.1 step 4.
func (g *GaussEngine) reduce(m *PackedMatrix) {
	pivotRow := 0
	for col := 0; col < m.numCols && pivotRow < m.numRows; col++ {
		found := -1
		for r := pivotRow; r < m.numRows; r++ {
			if m.rows[r].get(col) {
				found = r
				break
			}
		}
		if found == -1 {
			continue
		}
		if found != pivotRow {
			m.swapRows(found, pivotRow)
		}
		for r := 0; r < m.numRows; r++ {
			if r != pivotRow && m.rows[r].get(col) {
				m.rows[r].xorInto(m.rows[pivotRow])
			}
		}
		m.basicVar[pivotRow] = m.colToVar[col]
		pivotRow++
	}
}

// classifyRows implements the popcount table in spec.md section 4.1
// step 5.
func (g *GaussEngine) classifyRows(m *PackedMatrix) (created bool, err error) {
	kept := make([]int, 0, m.numRows)
	for r := 0; r < m.numRows; r++ {
		pc := m.rows[r].popcount(m.numCols)
		rhs := m.rhs(r)
		switch {
		case pc == 0 && !rhs:
			// tautological, discard
		case pc == 0 && rhs:
			return false, errConflictSentinel
		case pc == 1:
			col := m.rows[r].firstSet(0, m.numCols)
			v := m.colToVar[col]
			if g.s.trail.varValue(v) == LUndef {
				g.s.trail.enqueue(NewLit(v, !rhs), crefUndef)
			}
		case pc == 2:
			c0 := m.rows[r].firstSet(0, m.numCols)
			c1 := m.rows[r].firstSet(c0+1, m.numCols)
			v0, v1 := m.colToVar[c0], m.colToVar[c1]
			// v0 xor v1 = rhs as two binaries: rhs=true gives (v0 v v1)
			// and (¬v0 v ¬v1); rhs=false gives (v0 v ¬v1) and (¬v0 v v1).
			g.s.addBinaryClause(NewLit(v0, false), NewLit(v1, !rhs))
			g.s.addBinaryClause(NewLit(v0, true), NewLit(v1, rhs))
		default:
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return false, nil
	}
	// Compact the matrix down to the kept rows, choosing watches.
	nm := &PackedMatrix{numCols: m.numCols, colToVar: m.colToVar, varToCol: m.varToCol}
	for _, r := range kept {
		nm.rows = append(nm.rows, m.rows[r])
		nm.basicVar = append(nm.basicVar, m.basicVar[r])
		nm.otherWatch = append(nm.otherWatch, varUndef)
		nm.rowSat = append(nm.rowSat, false)
		nm.origXors = append(nm.origXors, m.origXors[r])
	}
	nm.numRows = len(kept)
	for r := range nm.rows {
		g.pickOtherWatch(nm, r)
	}
	*m = *nm
	return true, nil
}

// pickOtherWatch scans row r for an unassigned, non-basic variable to
// serve as its second watch.
func (g *GaussEngine) pickOtherWatch(m *PackedMatrix, r int) {
	basic := m.basicVar[r]
	for c := 0; c < m.numCols; c++ {
		if !m.rows[r].get(c) {
			continue
		}
		v := m.colToVar[c]
		if v == basic {
			continue
		}
		if g.s.trail.varValue(v) == LUndef {
			m.otherWatch[r] = v
			return
		}
	}
	m.otherWatch[r] = varUndef
}

func (g *GaussEngine) registerWatches(m *PackedMatrix) {
	for r := 0; r < m.numRows; r++ {
		if m.basicVar[r] != varUndef {
			g.watchIdx[m.basicVar[r]] = append(g.watchIdx[m.basicVar[r]], gaussWatchEntry{r, m.id})
		}
		if m.otherWatch[r] != varUndef {
			g.watchIdx[m.otherWatch[r]] = append(g.watchIdx[m.otherWatch[r]], gaussWatchEntry{r, m.id})
		}
	}
}

// onAssign is called by the CDCL propagate loop whenever v becomes
// assigned. It re-examines every row watching v and returns the most
// severe outcome found (conflict beats propagation beats a bare
// watch update), enqueuing any propagated literals along the way.
func (g *GaussEngine) onAssign(v Var) gaussOutcome {
	entries := append([]gaussWatchEntry(nil), g.watchIdx[v]...)
	best := gaussOutcome{kind: gaussAlreadySat}
	for _, e := range entries {
		if g.disabled[e.matrixID] {
			continue
		}
		m := g.matrixByID(e.matrixID)
		if m == nil {
			continue
		}
		out := g.propGauss(m, e.row, v)
		if out.kind == gaussPropagate {
			switch g.s.trail.value(out.prop) {
			case LUndef:
				g.s.trail.enqueue(out.prop, g.storeReason(out.lits))
			case LFalse:
				// An earlier row already set the literal the other way.
				out = gaussOutcome{kind: gaussConflict, lits: out.lits}
			}
		}
		best = betterOutcome(best, out)
	}
	return best
}

func (g *GaussEngine) matrixByID(id int) *PackedMatrix {
	for _, m := range g.matrices {
		if m.id == id {
			return m
		}
	}
	return nil
}

// propGauss re-examines row r of matrix m after variable p became
// assigned, per spec.md section 4.1 "Propagation contract" and "Row
// selection and the basic/non-basic swap".
func (g *GaussEngine) propGauss(m *PackedMatrix, r int, p Var) gaussOutcome {
	if m.rowSat[r] {
		return gaussOutcome{kind: gaussAlreadySat}
	}

	oldBasic := m.basicVar[r]
	unassigned := make([]Var, 0, 2)
	for c := 0; c < m.numCols; c++ {
		if !m.rows[r].get(c) {
			continue
		}
		v := m.colToVar[c]
		if g.s.trail.varValue(v) == LUndef {
			unassigned = append(unassigned, v)
		}
	}

	switch len(unassigned) {
	case 0:
		rhs := m.rhs(r)
		parity := false
		for c := 0; c < m.numCols; c++ {
			if m.rows[r].get(c) && g.s.trail.varValue(m.colToVar[c]) == LTrue {
				parity = !parity
			}
		}
		if parity == rhs {
			m.rowSat[r] = true
			return gaussOutcome{kind: gaussAlreadySat}
		}
		lits := g.falseLits(m, r)
		g.s.stats.GaussConflicts++
		return gaussOutcome{kind: gaussConflict, lits: lits}

	case 1:
		unitVar := unassigned[0]
		rhs := m.rhs(r)
		parity := false
		for c := 0; c < m.numCols; c++ {
			v := m.colToVar[c]
			if m.rows[r].get(c) && v != unitVar && g.s.trail.varValue(v) == LTrue {
				parity = !parity
			}
		}
		want := parity != rhs // value unitVar must take so total parity == rhs
		lits := g.falseLits(m, r)
		propLit := NewLit(unitVar, !want)
		lits = append(lits, propLit)
		g.s.stats.GaussPropagations++
		g.usefulProps[m.id]++
		return gaussOutcome{kind: gaussPropagate, lits: lits, prop: propLit}

	default:
		// Two or more unassigned: reassign basic/other watches among
		// them, running eliminate_col if the basic variable changed.
		newBasic := oldBasic
		if g.s.trail.varValue(oldBasic) != LUndef {
			newBasic = unassigned[0]
		}
		var newOther Var = varUndef
		for _, v := range unassigned {
			if v != newBasic {
				newOther = v
				break
			}
		}
		m.basicVar[r] = newBasic
		m.otherWatch[r] = newOther
		if newBasic != oldBasic {
			g.registerSingle(newBasic, r, m.id)
			g.eliminateCol(m, newBasic, r)
		}
		g.registerSingle(newOther, r, m.id)
		return gaussOutcome{kind: gaussNewWatch}
	}
}

func (g *GaussEngine) registerSingle(v Var, row, matrixID int) {
	for _, e := range g.watchIdx[v] {
		if e.row == row && e.matrixID == matrixID {
			return
		}
	}
	g.watchIdx[v] = append(g.watchIdx[v], gaussWatchEntry{row, matrixID})
}

// eliminateCol restores the invariant that e is basic only in row r,
// per spec.md section 4.1: XOR row r into every other row with a 1 in
// e's column, and fold the re-examination of each touched row into
// the caller's outcome via the solver's Gauss conflict queue.
func (g *GaussEngine) eliminateCol(m *PackedMatrix, e Var, r int) {
	col := m.colOf(e)
	if col == unassignedCol {
		return
	}
	for s := 0; s < m.numRows; s++ {
		if s == r || !m.rows[s].get(col) {
			continue
		}
		m.rows[s].xorInto(m.rows[r])
		g.pickOtherWatch(m, s)
	}
}

// falseLits builds the reason-clause literals for row r: each
// assigned variable contributes the literal that is currently false,
// per spec.md "Conflict-clause generation".
func (g *GaussEngine) falseLits(m *PackedMatrix, r int) []Lit {
	lits := make([]Lit, 0, m.numCols)
	for c := 0; c < m.numCols; c++ {
		if !m.rows[r].get(c) {
			continue
		}
		v := m.colToVar[c]
		if g.s.trail.varValue(v) == LUndef {
			continue
		}
		lits = append(lits, NewLit(v, g.s.trail.varValue(v) == LTrue))
	}
	return lits
}

// storeReason allocates a row's reason literals as an arena clause
// flagged Gauss-temporary, per spec.md "Conflict-clause generation".
// It is not registered in the ordinary CDCL watch lists: Gauss owns
// its own watchIdx, and the reason only needs to be dereferenceable
// by CRef for the conflict analyzer.
func (g *GaussEngine) storeReason(lits []Lit) CRef {
	ref := g.s.arena.Alloc(lits, true)
	g.s.arena.Get(ref).GaussTemp = true
	level := g.s.trail.level()
	g.tempClauses[level] = append(g.tempClauses[level], ref)
	return ref
}

// canceling is called by CDCL when a backtrack crosses decision
// levels: it frees every temporary arena clause this engine owns
// above the target level, per spec.md section 4.1 "Cancellation".
func (g *GaussEngine) canceling(targetLevel int) {
	for level, refs := range g.tempClauses {
		if level <= targetLevel {
			continue
		}
		for _, ref := range refs {
			g.s.arena.Free(ref)
		}
		delete(g.tempClauses, level)
	}
	for _, m := range g.matrices {
		for r := range m.rowSat {
			m.rowSat[r] = false
		}
	}
}

// maybeAutoDisable disables a matrix whose propagation count since it
// was built is below AutoDisableMinProps, per spec.md section 6.2 "autodisable". A
// disabled matrix no longer owns any xor it had detached the CNF
// encoding for, so those are reattached immediately.
func (g *GaussEngine) maybeAutoDisable() {
	if !g.cfg.AutoDisable {
		return
	}
	for _, m := range g.matrices {
		if g.disabled[m.id] {
			continue
		}
		if g.usefulProps[m.id] < g.cfg.AutoDisableMinProps {
			g.disabled[m.id] = true
			g.s.stats.GaussDisabled++
			g.undoDetachForMatrix(m)
		}
	}
}

// applyXorDetach attempts to detach the CNF encoding of every xor
// whose row survived into matrix m, per spec.md section 4.3
// "Detach/reattach protocol".
func (g *GaussEngine) applyXorDetach(m *PackedMatrix) {
	for _, x := range m.origXors {
		if x != nil {
			g.detachXor(x)
		}
	}
}

// detachXor detaches x's CNF-encoding clauses from the CDCL watch
// lists so they stop participating in unit propagation now that the
// Gauss matrix has subsumed x, per spec.md section 4.3. All of:
//   - x has clauses to detach and is not already detached,
//   - every variable of x appears in no unremoved clause other than x's own
//     source clauses (a variable shared with another clause, including
//     another xor's source clauses, blocks detachment),
//   - no current assumption literal coincides with a clash variable,
//   - detachment is globally enabled (checked by the caller),
//
// must hold.
func (g *GaussEngine) detachXor(x *Xor) {
	if x.Detached || len(x.SourceClauses) == 0 {
		return
	}
	for _, v := range x.ClashVars {
		for _, a := range g.s.assumptions {
			if a.Var() == v {
				return
			}
		}
	}
	for _, v := range x.Vars {
		if !g.variableOnlyUsedBy(v, x.SourceClauses) {
			return
		}
	}
	for _, ref := range x.SourceClauses {
		c := g.s.arena.Get(ref)
		if c.Removed || c.XorIsDetached {
			continue
		}
		g.s.detachClauseWatches(ref)
		c.XorIsDetached = true
	}
	for _, v := range x.ClashVars {
		g.s.heur.remove(v)
	}
	x.Detached = true
}

// variableOnlyUsedBy reports whether every live clause in the
// solver's irredundant clause set that mentions v is one of allowed.
func (g *GaussEngine) variableOnlyUsedBy(v Var, allowed []CRef) bool {
	allowedSet := make(map[CRef]bool, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = true
	}
	for _, ref := range g.s.clauses {
		if allowedSet[ref] {
			continue
		}
		c := g.s.arena.Get(ref)
		if c.Removed {
			continue
		}
		for _, l := range c.Lits {
			if l.Var() == v {
				return false
			}
		}
	}
	return true
}

// undoDetachForMatrix reattaches every xor detached on m's behalf,
// once m is disabled and no longer owns them.
func (g *GaussEngine) undoDetachForMatrix(m *PackedMatrix) {
	for _, x := range m.origXors {
		if x != nil && x.Detached {
			g.reattachXor(x)
		}
	}
}

// fullyUndoXorDetach reattaches every currently detached xor's CNF
// encoding, per spec.md section 4.3 "Undo (fully_undo_xor_detach)".
// Called before rebuilding the Gauss matrices from scratch so a fresh
// init never inherits stale detach state.
func (g *GaussEngine) fullyUndoXorDetach() {
	for _, x := range g.s.xors {
		if x.Detached {
			g.reattachXor(x)
		}
	}
}

// reattachXor reattaches x's CNF-encoding clauses' watches, re-cleaning
// each against the current top-level assignment (a clause already
// satisfied by a unit learned while detached is left alone rather than
// rewatched), and restores x's clash variables to decision status.
func (g *GaussEngine) reattachXor(x *Xor) {
	for _, ref := range x.SourceClauses {
		c := g.s.arena.Get(ref)
		if c.Removed || !c.XorIsDetached {
			continue
		}
		if !clauseSatisfiedByTrail(g.s, c) {
			g.s.reattachClauseWatches(ref)
		}
		c.XorIsDetached = false
	}
	for _, v := range x.ClashVars {
		if g.s.trail.varValue(v) == LUndef {
			g.s.heur.insert(v)
		}
	}
	x.Detached = false
}

func clauseSatisfiedByTrail(s *CDCLSolver, c *Clause) bool {
	for _, l := range c.Lits {
		if s.trail.value(l) == LTrue {
			return true
		}
	}
	return false
}

// sortedVarsByActivity returns the solver's variables ordered by
// descending VSIDS activity, used as the Gauss column order heuristic
// (spec.md section 4.1 step 2).
func (g *GaussEngine) sortedVarsByActivity() []Var {
	vars := make([]Var, g.s.NumVars())
	for i := range vars {
		vars[i] = Var(i)
	}
	sort.Slice(vars, func(i, j int) bool {
		return g.s.heur.activity[vars[i]] > g.s.heur.activity[vars[j]]
	})
	return vars
}
