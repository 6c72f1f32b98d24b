package sat

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CDCLSolver is the CDCL shell of spec.md section 4 (the "Trail ·
// watches · decide" layer), generalized from the teacher's CDCLSolver
// (sat/cdcl.go) to the int-Var/arena model and wired to consult the
// Gauss engine as a collaborator during propagation, per spec.md
// section 2 "CDCL Shell ... consulted only as a collaborator."
type CDCLSolver struct {
	cfg Config

	arena   *ClauseAllocator
	watches *WatchList
	trail   *Trail
	heur    *vsids
	gauss   *GaussEngine

	clauses []CRef
	learnts []CRef

	xors []*Xor

	mustSet []bool // variables seen as both l and not-l, assigned false by convention

	nvars int
	qhead int

	stats  Stats
	logger *zap.SugaredLogger
	proof  ProofSink

	interrupted int32 // atomic flag, spec.md interrupt_asap()

	model      []LBool
	conflict   []Lit // negated-assumption subset, valid after Unsat-under-assumptions
	lastStatus SolverStatus

	assumptions []Lit // current Solve call's assumptions, consulted by the Gauss engine's detach check

	startTime time.Time
}

// NewCDCLSolver constructs an empty solver with the given
// configuration and logger (nil logger installs a no-op zap logger).
func NewCDCLSolver(cfg Config, logger *zap.SugaredLogger) *CDCLSolver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &CDCLSolver{
		cfg:     cfg,
		arena:   NewClauseAllocator(),
		watches: NewWatchList(),
		trail:   NewTrail(0),
		heur:    newVSIDS(0),
		logger:  logger,
		proof:   NopProofSink{},
	}
	s.gauss = newGaussEngine(s, cfg)
	return s
}

// SetProofSink installs the proof trace observer consulted at every
// clause add/detach/delete site, per spec.md section 6.3. A nil sink
// is ignored, leaving the existing (by default no-op) sink in place.
func (s *CDCLSolver) SetProofSink(p ProofSink) {
	if p != nil {
		s.proof = p
	}
}

// NumVars returns the number of variables currently allocated.
func (s *CDCLSolver) NumVars() int { return s.nvars }

// NewVar allocates and returns a fresh variable.
func (s *CDCLSolver) NewVar() (Var, error) {
	if s.nvars >= maxVars {
		return varUndef, ErrTooManyVars
	}
	v := Var(s.nvars)
	s.nvars++
	s.trail.grow(s.nvars)
	s.heur.grow(s.nvars)
	s.heur.insert(v)
	if len(s.mustSet) < s.nvars {
		s.mustSet = append(s.mustSet, false)
	}
	return v, nil
}

// NewVars allocates n fresh variables, returning the first one; the
// rest are v, v+1, ..., v+n-1.
func (s *CDCLSolver) NewVars(n int) (Var, error) {
	if s.nvars+n > maxVars {
		return varUndef, ErrTooManyVars
	}
	first := Var(s.nvars)
	for i := 0; i < n; i++ {
		if _, err := s.NewVar(); err != nil {
			return varUndef, err
		}
	}
	return first, nil
}

// AddClause adds a disjunctive clause, deduplicating literals and
// dropping a clause containing both l and not-l while flagging the
// variable as must-set, per spec.md section 8 "Boundary behaviors".
// It returns false on immediate (level-0) UNSAT.
func (s *CDCLSolver) AddClause(lits []Lit) (bool, error) {
	if len(lits) > maxClauseLen {
		return false, ErrTooLongClause
	}
	dedup := dedupLits(lits)
	for i, a := range dedup {
		for j := i + 1; j < len(dedup); j++ {
			if dedup[j] == a.Not() {
				if int(a.Var()) < len(s.mustSet) {
					s.mustSet[a.Var()] = true
				}
				return true, nil // tautology: satisfied, nothing to add
			}
		}
	}
	return s.addClauseInternal(dedup, false)
}

func dedupLits(lits []Lit) []Lit {
	seen := make(map[Lit]bool, len(lits))
	out := make([]Lit, 0, len(lits))
	for _, l := range lits {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func (s *CDCLSolver) addClauseInternal(lits []Lit, redundant bool) (bool, error) {
	switch len(lits) {
	case 0:
		return false, nil // empty clause: immediate global UNSAT
	case 1:
		s.proof.Add(lits)
		if s.trail.level() != 0 {
			s.trail.cancelUntil(0)
		}
		v := lits[0].Var()
		cur := s.trail.varValue(v)
		if cur != LUndef {
			return cur == boolToLBool(!lits[0].Sign()), nil
		}
		s.trail.enqueue(lits[0], crefUndef)
		return s.propagateAll() == crefUndef, nil
	case 2:
		ref := s.arena.Alloc(lits, redundant)
		s.watches.add(lits[0].Not(), Watch{Kind: watchBinary, Other: lits[1]})
		s.watches.add(lits[1].Not(), Watch{Kind: watchBinary, Other: lits[0]})
		if redundant {
			s.learnts = append(s.learnts, ref)
		} else {
			s.clauses = append(s.clauses, ref)
		}
		s.proof.Add(lits)
		return true, nil
	default:
		ref := s.arena.Alloc(lits, redundant)
		s.watchLong(ref)
		if redundant {
			s.learnts = append(s.learnts, ref)
		} else {
			s.clauses = append(s.clauses, ref)
		}
		s.proof.Add(lits)
		return true, nil
	}
}

// addBinaryClause adds an ordinary (non-learnt) binary clause,
// used internally by the Gauss engine when a row's popcount reduces
// to 2 (spec.md section 4.1 step 5) and by the occurrence simplifier.
func (s *CDCLSolver) addBinaryClause(a, b Lit) {
	s.addClauseInternal([]Lit{a, b}, false)
}

// detachClauseWatches removes ref's watch entries so it no longer
// participates in unit propagation, without freeing its arena slot or
// removing it from the clause list, per spec.md section 4.3
// "Detach/reattach protocol".
func (s *CDCLSolver) detachClauseWatches(ref CRef) {
	c := s.arena.Get(ref)
	if len(c.Lits) < 2 {
		return
	}
	isBinary := len(c.Lits) == 2
	s.watches.removeLongOrBinary(c.Lits[0].Not(), ref, isBinary, c.Lits[1])
	s.watches.removeLongOrBinary(c.Lits[1].Not(), ref, isBinary, c.Lits[0])
	s.proof.Delete(c.Lits)
}

// reattachClauseWatches restores ref's watch entries after a prior
// detachClauseWatches, per spec.md section 4.3 "fully_undo_xor_detach".
func (s *CDCLSolver) reattachClauseWatches(ref CRef) {
	c := s.arena.Get(ref)
	if len(c.Lits) < 2 {
		return
	}
	if len(c.Lits) == 2 {
		s.watches.add(c.Lits[0].Not(), Watch{Kind: watchBinary, Other: c.Lits[1]})
		s.watches.add(c.Lits[1].Not(), Watch{Kind: watchBinary, Other: c.Lits[0]})
		s.proof.Add(c.Lits)
		return
	}
	s.watchLong(ref)
	s.proof.Add(c.Lits)
}

func (s *CDCLSolver) watchLong(ref CRef) {
	c := s.arena.Get(ref)
	s.watches.add(c.Lits[0].Not(), Watch{Kind: watchLong, Ref: ref, Blocker: c.Lits[1]})
	s.watches.add(c.Lits[1].Not(), Watch{Kind: watchLong, Ref: ref, Blocker: c.Lits[0]})
}

// AddXorClause adds an XOR constraint, cutting it into chunks of
// XorVarPerCut+2 variables linked by fresh helper variables when it
// is longer, per spec.md section 6.1 and section 9 "XOR cutting".
func (s *CDCLSolver) AddXorClause(vars []Var, rhs bool) error {
	// x xor x = 0: only variables listed an odd number of times are
	// kept, in sorted order.
	counts := make(map[Var]int, len(vars))
	for _, v := range vars {
		counts[v]++
	}
	norm := make([]Var, 0, len(counts))
	for v, n := range counts {
		if n%2 == 1 {
			norm = append(norm, v)
		}
	}
	sortVars(norm)
	vars = norm
	cut := s.cfg.XorVarPerCut + 2
	if cut < 3 {
		cut = 3
	}
	if len(vars) <= cut {
		s.xors = append(s.xors, &Xor{Vars: append([]Var(nil), vars...), Rhs: rhs})
		return nil
	}
	remaining := append([]Var(nil), vars...)
	runningRhs := rhs
	for len(remaining) > cut {
		chunk := append([]Var(nil), remaining[:cut-1]...)
		helper, err := s.NewVar()
		if err != nil {
			return err
		}
		chunk = append(chunk, helper)
		s.xors = append(s.xors, &Xor{Vars: chunk, Rhs: false, ClashVars: []Var{helper}})
		remaining = append(append([]Var(nil), remaining[cut-1:]...), helper)
	}
	s.xors = append(s.xors, &Xor{Vars: remaining, Rhs: runningRhs})
	return nil
}

// propagateAll runs BCP to a fixpoint, consulting the Gauss engine
// after every assignment, and returns crefUndef or the conflicting
// clause's ref.
func (s *CDCLSolver) propagateAll() CRef {
	for s.qhead < len(s.trail.trailLits()) {
		p := s.trail.trailLits()[s.qhead]
		s.qhead++

		if ref := s.propagateLit(p); ref != crefUndef {
			return ref
		}

		out := s.gauss.onAssign(p.Var())
		switch out.kind {
		case gaussConflict:
			return s.gauss.storeReason(out.lits)
		case gaussPropagate:
			if s.trail.varValue(out.prop.Var()) == LUndef {
				ref := s.gauss.storeReason(out.lits)
				s.trail.enqueue(out.prop, ref)
			}
		}
	}
	return crefUndef
}

// propagateLit resolves every ordinary (binary/long) watch on the
// negation of p, the classic two-watched-literal algorithm. A clause
// watching literal l is registered under l.Not(), so the clauses that
// contain the now-false negP are found under p.
func (s *CDCLSolver) propagateLit(p Lit) CRef {
	negP := p.Not()
	entries := s.watches.list(p)
	kept := entries[:0]
	var conflict CRef = crefUndef

	for i := 0; i < len(entries); i++ {
		w := entries[i]
		if w.Kind == watchBinary {
			v := s.trail.value(w.Other)
			if v == LFalse {
				conflict = s.arena.Alloc([]Lit{negP, w.Other}, false)
				kept = append(kept, entries[i:]...)
				goto drain
			}
			if v == LUndef {
				s.trail.enqueue(w.Other, s.binaryReason(negP, w.Other))
			}
			kept = append(kept, w)
			continue
		}

		// watchLong
		if s.trail.value(w.Blocker) == LTrue {
			kept = append(kept, w)
			continue
		}
		c := s.arena.Get(w.Ref)
		if c.Removed {
			continue
		}
		// ensure negP is Lits[1] for uniform scanning
		if c.Lits[0] == negP {
			c.Lits[0], c.Lits[1] = c.Lits[1], c.Lits[0]
		}
		newBlocker := c.Lits[0]
		if newBlocker != w.Blocker && s.trail.value(newBlocker) == LTrue {
			kept = append(kept, Watch{Kind: watchLong, Ref: w.Ref, Blocker: newBlocker})
			continue
		}
		found := false
		for k := 2; k < len(c.Lits); k++ {
			if s.trail.value(c.Lits[k]) != LFalse {
				c.Lits[1], c.Lits[k] = c.Lits[k], c.Lits[1]
				s.watches.add(c.Lits[1].Not(), Watch{Kind: watchLong, Ref: w.Ref, Blocker: c.Lits[0]})
				found = true
				break
			}
		}
		if found {
			continue
		}
		kept = append(kept, Watch{Kind: watchLong, Ref: w.Ref, Blocker: newBlocker})
		if s.trail.value(newBlocker) == LFalse {
			conflict = w.Ref
			kept = append(kept, entries[i+1:]...)
			goto drain
		}
		s.trail.enqueue(newBlocker, w.Ref)
	}
drain:
	s.watches.setList(p, kept)
	return conflict
}

func (s *CDCLSolver) binaryReason(a, b Lit) CRef {
	return s.arena.Alloc([]Lit{a, b}, false)
}

// Solve runs CDCL search under the given assumptions, consulting
// Gauss propagation and the occurrence simplifier per spec.md section
// 2. It returns Sat/Unsat/Undef per section 6.1.
func (s *CDCLSolver) Solve(assumptions []Lit) SolverStatus {
	s.startTime = time.Now()
	s.qhead = 0
	s.assumptions = assumptions

	if _, err := s.runGaussInit(); err != nil {
		s.lastStatus = Unsat
		return Unsat
	}
	if ref := s.propagateAll(); ref != crefUndef {
		s.lastStatus = Unsat
		return Unsat
	}

	for _, a := range assumptions {
		s.trail.newDecisionLevel()
		cur := s.trail.varValue(a.Var())
		if cur == boolToLBool(a.Sign() == false) {
			continue
		}
		if cur != LUndef {
			s.conflict = []Lit{a.Not()}
			s.lastStatus = Unsat
			return Unsat
		}
		s.trail.enqueue(a, crefUndef)
		if ref := s.propagateAll(); ref != crefUndef {
			s.conflict = s.extractAssumptionConflict(assumptions)
			s.lastStatus = Unsat
			return Unsat
		}
	}
	assumeLevel := s.trail.level()

	for {
		if atomic.LoadInt32(&s.interrupted) != 0 {
			s.lastStatus = Undef
			return Undef
		}
		if s.cfg.MaxTime > 0 && time.Since(s.startTime).Nanoseconds() > s.cfg.MaxTime {
			s.lastStatus = Undef
			return Undef
		}
		if s.cfg.MaxConflicts > 0 && s.stats.Conflicts > s.cfg.MaxConflicts {
			s.lastStatus = Undef
			return Undef
		}

		confl := s.propagateAll()
		if confl != crefUndef {
			s.stats.Conflicts++
			if s.trail.level() <= assumeLevel {
				if s.trail.level() == 0 {
					s.lastStatus = Unsat
					return Unsat
				}
				s.conflict = s.extractAssumptionConflict(assumptions)
				s.lastStatus = Unsat
				return Unsat
			}
			learnt, bt, lbd := s.analyzeConflict(confl)
			s.cancelUntil(bt)
			ref, _ := s.addClauseInternal(learnt, true)
			_ = ref
			if len(learnt) >= 2 {
				lastRef := s.learnts[len(s.learnts)-1]
				s.arena.Get(lastRef).LBD = int32(lbd)
			}
			for _, l := range learnt {
				s.heur.bump(l.Var())
			}
			s.heur.decayActivity()
			if len(learnt) > 0 {
				s.trail.enqueue(learnt[0], s.reasonRefFor(learnt))
			}
			s.gauss.maybeAutoDisable()
			continue
		}

		if s.allAssigned() {
			s.buildModel()
			s.lastStatus = Sat
			return Sat
		}

		next := s.heur.pick(func(v Var) bool { return s.trail.varValue(v) != LUndef })
		if next == varUndef {
			s.buildModel()
			s.lastStatus = Sat
			return Sat
		}
		s.trail.newDecisionLevel()
		s.stats.Decisions++
		s.trail.enqueue(NewLit(next, s.decisionPolarity(next)), crefUndef)
	}
}

func (s *CDCLSolver) reasonRefFor(learnt []Lit) CRef {
	if len(learnt) == 1 {
		return crefUndef
	}
	// the most recently allocated clause is the one just learned
	return s.learnts[len(s.learnts)-1]
}

func (s *CDCLSolver) decisionPolarity(v Var) bool {
	switch s.cfg.PolarityMode {
	case PolarityPos:
		return false
	case PolarityNeg:
		return true
	case PolaritySaved:
		return s.trail.vd[v].polarity == false
	default:
		return false
	}
}

func (s *CDCLSolver) cancelUntil(level int) {
	popped := s.trail.cancelUntil(level)
	for _, l := range popped {
		s.heur.insert(l.Var())
	}
	if s.qhead > len(s.trail.trailLits()) {
		s.qhead = len(s.trail.trailLits())
	}
	s.gauss.canceling(level)
}

func (s *CDCLSolver) allAssigned() bool {
	for v := 0; v < s.nvars; v++ {
		if s.trail.varValue(Var(v)) == LUndef {
			return false
		}
	}
	return true
}

func (s *CDCLSolver) buildModel() {
	s.model = make([]LBool, s.nvars)
	for v := 0; v < s.nvars; v++ {
		s.model[v] = s.trail.varValue(Var(v))
	}
}

// extractAssumptionConflict returns a subset of the negated
// assumptions entailed by the conflict, per spec.md section 7
// "Assumption conflict".
func (s *CDCLSolver) extractAssumptionConflict(assumptions []Lit) []Lit {
	out := make([]Lit, 0, len(assumptions))
	for _, a := range assumptions {
		if lvl := s.trail.levelOf(a.Var()); lvl >= 0 {
			out = append(out, a.Not())
		}
	}
	if len(out) == 0 {
		for _, a := range assumptions {
			out = append(out, a.Not())
		}
	}
	return out
}

// runGaussInit (re)builds the Gauss engine's matrices from the
// current XOR set at decision level 0.
func (s *CDCLSolver) runGaussInit() (bool, error) {
	if !s.cfg.DoFindXors && len(s.xors) == 0 {
		return false, nil
	}
	s.gauss.fullyUndoXorDetach()
	s.gauss.matrices = nil
	s.gauss.watchIdx = make(map[Var][]gaussWatchEntry)
	order := s.gauss.sortedVarsByActivity()
	created, err := s.gauss.fullInit(s.xors, order)
	if err != nil {
		return false, err
	}
	return created, nil
}

// InterruptASAP raises the interrupt flag consulted at loop
// boundaries by Solve, per spec.md section 6.1.
func (s *CDCLSolver) InterruptASAP() {
	atomic.StoreInt32(&s.interrupted, 1)
}
