package sat

// analyzeConflict implements First-UIP conflict analysis, generalized
// from the teacher's FirstUIPAnalyzer (sat/conflict_analysis.go) from
// string-variable resolution steps to literal-level resolution over
// the arena, and extended to also resolve through Gauss-reason
// clauses (conflict clauses produced by prop_gauss, spec.md 4.1).
//
// It returns the learnt clause literals (not yet allocated in the
// arena), the backtrack level, and the LBD of the learnt clause.
func (s *CDCLSolver) analyzeConflict(confl CRef) ([]Lit, int, int) {
	seen := make(map[Var]bool)
	learnt := []Lit{litUndef} // placeholder for the asserting literal
	level := s.trail.level()

	pathC := 0
	p := litUndef
	reason := confl

	idx := len(s.trail.trailLits())
	for {
		var lits []Lit
		if reason == crefUndef {
			// No reason clause (a decision or a level-0 unit): it
			// contributes no literals.
			lits = nil
		} else {
			lits = s.arena.Get(reason).Lits
		}
		for _, q := range lits {
			if q == p {
				continue
			}
			v := q.Var()
			if seen[v] {
				continue
			}
			seen[v] = true
			if s.trail.levelOf(v) == level {
				pathC++
			} else if s.trail.levelOf(v) > 0 {
				learnt = append(learnt, q)
			}
		}

		// find next seen literal on the trail, scanning backward
		for idx > 0 {
			idx--
			lit := s.trail.trailLits()[idx]
			if seen[lit.Var()] {
				break
			}
		}
		p = s.trail.trailLits()[idx]
		seen[p.Var()] = false
		pathC--
		reason = s.trail.reasonOf(p.Var())
		if pathC <= 0 {
			break
		}
	}
	learnt[0] = p.Not()

	// LBD: number of distinct decision levels among the learnt literals.
	levels := make(map[int]bool, len(learnt))
	for _, l := range learnt {
		levels[s.trail.levelOf(l.Var())] = true
	}
	lbd := len(levels)

	// Backtrack level: second-highest level among the learnt clause's
	// literals (the highest is the asserting literal's level).
	bt := 0
	if len(learnt) > 1 {
		maxI := 1
		for i := 2; i < len(learnt); i++ {
			if s.trail.levelOf(learnt[i].Var()) > s.trail.levelOf(learnt[maxI].Var()) {
				maxI = i
			}
		}
		learnt[1], learnt[maxI] = learnt[maxI], learnt[1]
		bt = s.trail.levelOf(learnt[1].Var())
	}

	return learnt, bt, lbd
}
